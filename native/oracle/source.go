package oracle

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Source quotes Q112 prices for assets.
type Source interface {
	Price(ctx context.Context, asset common.Address) (*big.Int, error)
}

// Simple is an admin-fed price table.
type Simple struct {
	mu     sync.RWMutex
	prices map[common.Address]*big.Int
}

func NewSimple() *Simple {
	return &Simple{prices: make(map[common.Address]*big.Int)}
}

// SetPrices stores Q112 prices for the given assets. The update is rejected
// as a whole if any price is not positive.
func (s *Simple) SetPrices(assets []common.Address, prices []*big.Int) error {
	if len(assets) != len(prices) {
		return ErrLengthMismatch
	}
	for i, px := range prices {
		if px == nil || px.Sign() <= 0 {
			return fmt.Errorf("%w: asset %s", ErrInvalidPrice, assets[i].Hex())
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, asset := range assets {
		s.prices[asset] = new(big.Int).Set(prices[i])
	}
	return nil
}

func (s *Simple) Price(_ context.Context, asset common.Address) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	px, ok := s.prices[asset]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoPrice, asset.Hex())
	}
	return new(big.Int).Set(px), nil
}

// Core routes each asset to the source responsible for pricing it.
type Core struct {
	mu     sync.RWMutex
	routes map[common.Address]Source
}

func NewCore() *Core {
	return &Core{routes: make(map[common.Address]Source)}
}

// SetRoute points each asset at its source. A nil source removes the route.
func (c *Core) SetRoute(assets []common.Address, sources []Source) error {
	if len(assets) != len(sources) {
		return ErrLengthMismatch
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, asset := range assets {
		if sources[i] == nil {
			delete(c.routes, asset)
			continue
		}
		c.routes[asset] = sources[i]
	}
	return nil
}

func (c *Core) Price(ctx context.Context, asset common.Address) (*big.Int, error) {
	c.mu.RLock()
	src, ok := c.routes[asset]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no route for %s", ErrUnsupported, asset.Hex())
	}
	return src.Price(ctx, asset)
}
