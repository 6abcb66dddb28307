package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"

	"lendcore/config"
	"lendcore/core/events"
	"lendcore/core/state"
	"lendcore/gateway/middleware"
	"lendcore/gateway/routes"
	"lendcore/native/bank"
	"lendcore/native/bank/spell"
	nativecommon "lendcore/native/common"
	"lendcore/native/oracle"
	"lendcore/observability"
	"lendcore/services/bankindex"
	"lendcore/storage"
	"lendcore/storage/trie"
)

var headKey = []byte("lendcore/head")

// durableState records the committed root after every commit so a restarted
// node reopens the trie where it left off.
type durableState struct {
	*state.Manager
	db storage.Database
}

func (s *durableState) Commit() (common.Hash, error) {
	root, err := s.Manager.Commit()
	if err != nil {
		return root, err
	}
	if err := s.db.Put(headKey, root.Bytes()); err != nil {
		return root, fmt.Errorf("persist head root: %w", err)
	}
	return root, nil
}

type node struct {
	engine  *bank.Engine
	state   *durableState
	db      storage.Database
	index   *bankindex.Index
	redis   *oracle.Redis
	handler http.Handler
}

func (n *node) Close() {
	if n.index != nil {
		_ = n.index.Close()
	}
	if n.redis != nil {
		_ = n.redis.Close()
	}
	n.db.Close()
}

func openDatabase(dataDir string) (storage.Database, error) {
	if dataDir == "" {
		return storage.NewMemDB(), nil
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	return storage.NewLevelDB(filepath.Join(dataDir, "state"))
}

func buildNode(ctx context.Context, cfg config.Config, logger *slog.Logger) (n *node, err error) {
	rt, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}
	db, err := openDatabase(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	n = &node{db: db}
	defer func() {
		if err != nil {
			n.Close()
		}
	}()

	head, err := db.Get(headKey)
	fresh := errors.Is(err, storage.ErrNotFound)
	if err != nil && !fresh {
		return nil, fmt.Errorf("read head root: %w", err)
	}
	tr, err := trie.NewTrie(db, head)
	if err != nil {
		return nil, fmt.Errorf("open state trie: %w", err)
	}
	n.state = &durableState{Manager: state.NewManager(tr), db: db}
	if fresh {
		for _, bal := range rt.Genesis {
			if err := n.state.Mint(bal.Asset, bal.Holder, bal.Amount); err != nil {
				return nil, fmt.Errorf("genesis balance: %w", err)
			}
		}
		root, err := n.state.Commit()
		if err != nil {
			return nil, fmt.Errorf("commit genesis: %w", err)
		}
		logger.Info("genesis committed", "root", root.Hex(), "balances", len(rt.Genesis))
	} else {
		logger.Info("state reopened", "root", common.BytesToHash(head).Hex())
	}

	prices := oracle.NewSimple()
	core := oracle.NewCore()
	proxy := oracle.NewProxy(core)
	var (
		assets  []common.Address
		configs []oracle.TokenConfig
	)
	for _, entry := range rt.Oracles {
		var src oracle.Source
		switch entry.Source {
		case config.SourceRedis:
			if n.redis == nil {
				n.redis, err = oracle.NewRedis(ctx, oracle.RedisConfig{
					Addr:     cfg.Redis.Addr,
					Password: cfg.Redis.Password,
					DB:       cfg.Redis.DB,
					MaxAge:   cfg.Redis.MaxAge,
				})
				if err != nil {
					return nil, err
				}
			}
			src = n.redis
		default:
			if err := prices.SetPrices([]common.Address{entry.Asset}, []*big.Int{entry.Price}); err != nil {
				return nil, err
			}
			src = prices
		}
		if err := core.SetRoute([]common.Address{entry.Asset}, []oracle.Source{src}); err != nil {
			return nil, err
		}
		assets = append(assets, entry.Asset)
		configs = append(configs, entry.Token)
	}
	if err := proxy.SetOracles(assets, configs); err != nil {
		return nil, fmt.Errorf("oracle factors: %w", err)
	}

	emitters := events.Fanout{observability.Events()}
	if cfg.Index.DSN != "" {
		if n.index, err = bankindex.Open(cfg.Index.DSN, logger); err != nil {
			return nil, err
		}
		emitters = append(emitters, n.index)
	}

	pauses := nativecommon.NewPauses()
	pauses.Set("bank", cfg.Pauses.Bank)

	n.engine = bank.NewEngine(rt.Admin, rt.ModuleAddress, rt.WrappedNative)
	n.engine.SetState(n.state)
	n.engine.SetOracle(proxy)
	n.engine.SetPauses(pauses)
	n.engine.SetEmitter(emitters)
	n.engine.SetLogger(logger.With("component", "bank"))
	n.engine.SetMetrics(observability.BankMetrics())

	if !cfg.Pauses.Bank {
		for _, listing := range rt.Banks {
			if _, err := n.engine.Bank(listing.Underlying); err == nil {
				continue
			} else if !errors.Is(err, bank.ErrNotListed) {
				return nil, err
			}
			if err := n.engine.AddBank(rt.Admin, listing.Underlying, listing.Wrapped); err != nil {
				return nil, fmt.Errorf("list bank %s: %w", listing.Underlying.Hex(), err)
			}
		}
	}

	routeCfg := routes.Config{
		Engine: n.engine,
		Spells: spell.NewRegistry(),
		Prices: prices,
		Routes: core,
		Proxy:  proxy,
		Authenticator: middleware.NewAuthenticator(middleware.AuthConfig{
			Enabled:    cfg.Auth.Enabled,
			HMACSecret: cfg.Auth.HMACSecret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
			ClockSkew:  cfg.Auth.ClockSkew,
		}, logger),
		RateLimiter: middleware.NewRateLimiter(middleware.RateLimit{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		}),
		Observability: middleware.NewObservability(logger, cfg.Log.Level == "debug"),
		Logger:        logger,
	}
	if n.index != nil {
		routeCfg.Index = n.index
	}
	n.handler = routes.New(routeCfg)
	return n, nil
}
