package config

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"lendcore/native/bank"
	"lendcore/native/oracle"
)

// BankListing is a resolved genesis bank.
type BankListing struct {
	Underlying common.Address
	Wrapped    common.Address
}

// PricedAsset is a resolved oracle entry. Price is nil for redis-sourced assets.
type PricedAsset struct {
	Asset  common.Address
	Source string
	Price  *big.Int
	Token  oracle.TokenConfig
}

// Balance is a resolved genesis balance.
type Balance struct {
	Asset  common.Address
	Holder common.Address
	Amount *big.Int
}

// Runtime is the typed view of Config used to assemble a node.
type Runtime struct {
	Admin         common.Address
	ModuleAddress common.Address
	WrappedNative common.Address
	Banks         []BankListing
	Oracles       []PricedAsset
	Genesis       []Balance
}

// Validate reports the first problem found in c.
func (c Config) Validate() error {
	_, err := c.Resolve()
	return err
}

// Resolve parses addresses, prices and amounts.
func (c Config) Resolve() (*Runtime, error) {
	if c.ListenAddress == "" {
		return nil, errors.New("config: listen address required")
	}
	if c.Auth.Enabled && strings.TrimSpace(c.Auth.HMACSecret) == "" {
		return nil, errors.New("config: auth.hmac_secret required when auth is enabled")
	}
	if c.RateLimit.RequestsPerMinute < 0 || c.RateLimit.Burst < 0 {
		return nil, errors.New("config: rate_limit values must be non-negative")
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return nil, fmt.Errorf("config: unknown log level %q", c.Log.Level)
	}

	rt := &Runtime{}
	var err error
	if rt.Admin, err = parseAddress("admin", c.Admin, false); err != nil {
		return nil, err
	}
	if rt.ModuleAddress, err = parseAddress("module_address", c.ModuleAddress, false); err != nil {
		return nil, err
	}
	if rt.WrappedNative, err = parseAddress("wrapped_native", c.WrappedNative, true); err != nil {
		return nil, err
	}

	seenBanks := make(map[common.Address]struct{}, len(c.Banks))
	for i, b := range c.Banks {
		underlying, err := parseAddress(fmt.Sprintf("banks[%d].underlying", i), b.Underlying, false)
		if err != nil {
			return nil, err
		}
		wrapped, err := parseAddress(fmt.Sprintf("banks[%d].wrapped", i), b.Wrapped, false)
		if err != nil {
			return nil, err
		}
		if _, dup := seenBanks[underlying]; dup {
			return nil, fmt.Errorf("config: banks[%d]: %s listed twice", i, underlying.Hex())
		}
		seenBanks[underlying] = struct{}{}
		rt.Banks = append(rt.Banks, BankListing{Underlying: underlying, Wrapped: wrapped})
	}

	seenOracles := make(map[common.Address]struct{}, len(c.Oracles))
	for i, o := range c.Oracles {
		field := fmt.Sprintf("oracles[%d]", i)
		asset, err := parseAddress(field+".asset", o.Asset, false)
		if err != nil {
			return nil, err
		}
		if _, dup := seenOracles[asset]; dup {
			return nil, fmt.Errorf("config: %s: %s configured twice", field, asset.Hex())
		}
		seenOracles[asset] = struct{}{}
		if err := o.Token().Validate(); err != nil {
			return nil, fmt.Errorf("config: %s: %w", field, err)
		}
		entry := PricedAsset{Asset: asset, Source: o.Source, Token: o.Token()}
		switch o.Source {
		case SourceSimple:
			if entry.Price, err = oracle.ParsePrice(o.Price); err != nil {
				return nil, fmt.Errorf("config: %s.price: %w", field, err)
			}
		case SourceRedis:
			if strings.TrimSpace(c.Redis.Addr) == "" {
				return nil, fmt.Errorf("config: %s uses redis but redis.addr is empty", field)
			}
		default:
			return nil, fmt.Errorf("config: %s: unknown source %q", field, o.Source)
		}
		rt.Oracles = append(rt.Oracles, entry)
	}

	for i, g := range c.Genesis {
		field := fmt.Sprintf("genesis[%d]", i)
		var asset common.Address
		if strings.EqualFold(strings.TrimSpace(g.Asset), "native") {
			asset = bank.NativeAsset
		} else if asset, err = parseAddress(field+".asset", g.Asset, false); err != nil {
			return nil, err
		}
		holder, err := parseAddress(field+".holder", g.Holder, false)
		if err != nil {
			return nil, err
		}
		amount, ok := new(big.Int).SetString(strings.TrimSpace(g.Amount), 10)
		if !ok || amount.Sign() < 0 {
			return nil, fmt.Errorf("config: %s.amount: invalid base-unit amount %q", field, g.Amount)
		}
		rt.Genesis = append(rt.Genesis, Balance{Asset: asset, Holder: holder, Amount: amount})
	}
	return rt, nil
}

func parseAddress(field, raw string, optional bool) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if optional {
			return common.Address{}, nil
		}
		return common.Address{}, fmt.Errorf("config: %s required", field)
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("config: %s: invalid address %q", field, raw)
	}
	addr := common.HexToAddress(raw)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("config: %s: zero address", field)
	}
	return addr, nil
}
