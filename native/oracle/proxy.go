package oracle

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

const (
	MinBorrowFactorBps = 10_000
	MaxCollateralBps   = 10_000
	MinLiqIncentiveBps = 10_000
	MaxLiqIncentiveBps = 20_000
)

// TokenConfig holds the risk factors applied on top of raw oracle values.
type TokenConfig struct {
	BorrowFactorBps     uint64 `json:"borrowFactorBps" toml:"borrow_factor_bps" yaml:"borrow_factor_bps"`
	CollateralFactorBps uint64 `json:"collateralFactorBps" toml:"collateral_factor_bps" yaml:"collateral_factor_bps"`
	LiqIncentiveBps     uint64 `json:"liqIncentiveBps" toml:"liq_incentive_bps" yaml:"liq_incentive_bps"`
}

// Validate checks the factor bounds.
func (c TokenConfig) Validate() error {
	if c.BorrowFactorBps < MinBorrowFactorBps {
		return ErrBadBorrowFactor
	}
	if c.CollateralFactorBps > MaxCollateralBps {
		return ErrBadCollateral
	}
	if c.LiqIncentiveBps < MinLiqIncentiveBps || c.LiqIncentiveBps > MaxLiqIncentiveBps {
		return ErrBadLiqIncentive
	}
	return nil
}

// Proxy is the oracle surface the lending core talks to. It pairs a price
// source with per-asset risk factors; an asset without factors is not
// supported.
type Proxy struct {
	mu      sync.RWMutex
	source  Source
	configs map[common.Address]TokenConfig
}

func NewProxy(source Source) *Proxy {
	return &Proxy{source: source, configs: make(map[common.Address]TokenConfig)}
}

// SetOracles installs factor configs. Nothing is written unless every entry
// validates.
func (p *Proxy) SetOracles(assets []common.Address, configs []TokenConfig) error {
	if len(assets) != len(configs) {
		return ErrLengthMismatch
	}
	for i, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("asset %s: %w", assets[i].Hex(), err)
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, asset := range assets {
		p.configs[asset] = configs[i]
	}
	return nil
}

func (p *Proxy) UnsetOracles(assets []common.Address) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, asset := range assets {
		delete(p.configs, asset)
	}
}

// Factors returns the config for asset.
func (p *Proxy) Factors(asset common.Address) (TokenConfig, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cfg, ok := p.configs[asset]
	return cfg, ok
}

// Support reports whether asset has factors and a live price.
func (p *Proxy) Support(ctx context.Context, asset common.Address) bool {
	if _, ok := p.Factors(asset); !ok || p.source == nil {
		return false
	}
	px, err := p.source.Price(ctx, asset)
	return err == nil && px != nil && px.Sign() > 0
}

func (p *Proxy) price(ctx context.Context, asset common.Address) (TokenConfig, *big.Int, error) {
	cfg, ok := p.Factors(asset)
	if !ok {
		return TokenConfig{}, nil, fmt.Errorf("%w: %s", ErrUnsupported, asset.Hex())
	}
	if p.source == nil {
		return TokenConfig{}, nil, ErrNilSource
	}
	px, err := p.source.Price(ctx, asset)
	if err != nil {
		return TokenConfig{}, nil, err
	}
	return cfg, px, nil
}

// ValueOf converts amount of asset into the common value unit.
func (p *Proxy) ValueOf(ctx context.Context, asset common.Address, amount *big.Int) (*big.Int, error) {
	_, px, err := p.price(ctx, asset)
	if err != nil {
		return nil, err
	}
	return Value(amount, px), nil
}

// CollateralValue is ValueOf discounted by the collateral factor.
func (p *Proxy) CollateralValue(ctx context.Context, asset common.Address, amount *big.Int) (*big.Int, error) {
	cfg, px, err := p.price(ctx, asset)
	if err != nil {
		return nil, err
	}
	out := Value(amount, px)
	out.Mul(out, new(big.Int).SetUint64(cfg.CollateralFactorBps))
	return out.Quo(out, bpsScale), nil
}

// BorrowValue is ValueOf inflated by the borrow factor.
func (p *Proxy) BorrowValue(ctx context.Context, asset common.Address, amount *big.Int) (*big.Int, error) {
	cfg, px, err := p.price(ctx, asset)
	if err != nil {
		return nil, err
	}
	out := Value(amount, px)
	out.Mul(out, bpsScale)
	return out.Quo(out, new(big.Int).SetUint64(cfg.BorrowFactorBps)), nil
}
