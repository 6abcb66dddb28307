package bank

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"lendcore/core/events"
	"lendcore/core/state"
	"lendcore/native/oracle"
	"lendcore/storage"
	"lendcore/storage/trie"
)

func addr(b byte) common.Address {
	var a common.Address
	a[19] = b
	a[0] = 0x10
	return a
}

var (
	adminAddr  = addr(0xA0)
	moduleAddr = addr(0xA1)
	alice      = addr(0xB1)
	bob        = addr(0xB2)
	lpToken    = addr(0xC1)
	usdt       = addr(0xC2)
	usdtVault  = addr(0xC3)
	weth       = addr(0xC4)
	wethVault  = addr(0xC5)
	dai        = addr(0xC6)
	daiVault   = addr(0xC7)
)

type recorder struct{ got []events.Event }

func (r *recorder) Emit(evt events.Event) { r.got = append(r.got, evt) }

func (r *recorder) types() []string {
	out := make([]string, len(r.got))
	for i, evt := range r.got {
		out[i] = evt.EventType()
	}
	return out
}

type fixture struct {
	engine  *Engine
	state   *state.Manager
	prices  *oracle.Simple
	proxy   *oracle.Proxy
	emitted *recorder
}

func mustQ112(t *testing.T, raw string) *big.Int {
	t.Helper()
	px, err := oracle.ParsePrice(raw)
	if err != nil {
		t.Fatalf("parse price: %v", err)
	}
	return px
}

// newFixture lists USDT and WETH, funds both vaults and gives alice and bob
// LP collateral, USDT and native currency.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	tr, err := trie.NewTrie(db, nil)
	if err != nil {
		t.Fatalf("new trie: %v", err)
	}
	mgr := state.NewManager(tr)

	seed := func(asset, holder common.Address, amount int64) {
		if err := mgr.Mint(asset, holder, big.NewInt(amount)); err != nil {
			t.Fatalf("mint: %v", err)
		}
	}
	seed(usdt, usdtVault, 1_000_000)
	seed(dai, daiVault, 1_000_000)
	seed(NativeAsset, adminAddr, 10_000)
	if err := mgr.Wrap(NativeAsset, weth, adminAddr, big.NewInt(10_000)); err != nil {
		t.Fatalf("wrap: %v", err)
	}
	if err := mgr.Transfer(weth, adminAddr, wethVault, big.NewInt(10_000)); err != nil {
		t.Fatalf("fund weth vault: %v", err)
	}
	for _, holder := range []common.Address{alice, bob} {
		seed(lpToken, holder, 1_000)
		seed(usdt, holder, 100)
		seed(NativeAsset, holder, 1_000)
	}
	if _, err := mgr.Commit(); err != nil {
		t.Fatalf("commit genesis: %v", err)
	}

	prices := oracle.NewSimple()
	assets := []common.Address{lpToken, usdt, weth, dai}
	if err := prices.SetPrices(assets, []*big.Int{
		mustQ112(t, "250"), mustQ112(t, "500"), mustQ112(t, "2"), mustQ112(t, "1"),
	}); err != nil {
		t.Fatalf("set prices: %v", err)
	}
	proxy := oracle.NewProxy(prices)
	flat := oracle.TokenConfig{BorrowFactorBps: 10_000, CollateralFactorBps: 10_000, LiqIncentiveBps: 10_000}
	if err := proxy.SetOracles(assets, []oracle.TokenConfig{flat, flat, flat, flat}); err != nil {
		t.Fatalf("set oracles: %v", err)
	}

	engine := NewEngine(adminAddr, moduleAddr, weth)
	engine.SetState(mgr)
	engine.SetOracle(proxy)
	rec := &recorder{}
	engine.SetEmitter(rec)

	if err := engine.AddBank(adminAddr, usdt, usdtVault); err != nil {
		t.Fatalf("add usdt bank: %v", err)
	}
	if err := engine.AddBank(adminAddr, weth, wethVault); err != nil {
		t.Fatalf("add weth bank: %v", err)
	}
	rec.got = nil
	return &fixture{engine: engine, state: mgr, prices: prices, proxy: proxy, emitted: rec}
}

func (f *fixture) balance(t *testing.T, asset, holder common.Address) int64 {
	t.Helper()
	bal, err := f.state.Balance(asset, holder)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal.Int64()
}

func (f *fixture) shares(t *testing.T, id uint64, bank common.Address) int64 {
	t.Helper()
	pos, ok, err := f.state.Position(id)
	if err != nil || !ok {
		t.Fatalf("load position %d: ok=%v err=%v", id, ok, err)
	}
	return pos.SharesOf(bank).Int64()
}

func (f *fixture) bankTotals(t *testing.T, bank common.Address) (int64, int64) {
	t.Helper()
	rec, ok, err := f.state.Bank(bank)
	if err != nil || !ok {
		t.Fatalf("load bank: ok=%v err=%v", ok, err)
	}
	return rec.TotalDebt.Int64(), rec.TotalDebtShare.Int64()
}

// open creates a position for owner with the given LP collateral.
func (f *fixture) open(t *testing.T, owner common.Address, collateral int64, steps func(ec *Context) error) uint64 {
	t.Helper()
	id, err := f.engine.Execute(context.Background(), ExecuteRequest{
		Caller:           owner,
		Spell:            stepSpell(steps),
		CollateralToken:  lpToken,
		CollateralAmount: big.NewInt(collateral),
	})
	if err != nil {
		t.Fatalf("open position: %v", err)
	}
	return id
}

func (f *fixture) run(owner common.Address, id uint64, steps func(ec *Context) error) error {
	_, err := f.engine.Execute(context.Background(), ExecuteRequest{
		Caller:     owner,
		PositionID: id,
		Spell:      stepSpell(steps),
	})
	return err
}

func stepSpell(steps func(ec *Context) error) Spell {
	return NewSpell("test", func(_ context.Context, ec *Context, _ []byte) error {
		if steps == nil {
			return nil
		}
		return steps(ec)
	})
}
