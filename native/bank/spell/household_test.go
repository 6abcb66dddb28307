package spell

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"lendcore/core/state"
	"lendcore/native/bank"
	"lendcore/native/oracle"
	"lendcore/storage"
	"lendcore/storage/trie"
)

var (
	admin   = common.HexToAddress("0x00000000000000000000000000000000000000a0")
	custody = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	owner   = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	lp      = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	usdc    = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	vault   = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	wnative = common.HexToAddress("0x00000000000000000000000000000000000000c4")
)

func newEngine(t *testing.T) (*bank.Engine, *state.Manager) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	tr, err := trie.NewTrie(db, nil)
	if err != nil {
		t.Fatalf("new trie: %v", err)
	}
	mgr := state.NewManager(tr)
	for _, seed := range []struct {
		asset, holder common.Address
		amount        int64
	}{
		{usdc, vault, 10_000},
		{lp, owner, 1_000},
		{bank.NativeAsset, owner, 500},
	} {
		if err := mgr.Mint(seed.asset, seed.holder, big.NewInt(seed.amount)); err != nil {
			t.Fatalf("mint: %v", err)
		}
	}
	if _, err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	prices := oracle.NewSimple()
	one, _ := oracle.ParsePrice("1")
	if err := prices.SetPrices([]common.Address{lp, usdc}, []*big.Int{one, one}); err != nil {
		t.Fatalf("set prices: %v", err)
	}
	proxy := oracle.NewProxy(prices)
	cfg := oracle.TokenConfig{BorrowFactorBps: 10_000, CollateralFactorBps: 10_000, LiqIncentiveBps: 10_000}
	if err := proxy.SetOracles([]common.Address{lp, usdc}, []oracle.TokenConfig{cfg, cfg}); err != nil {
		t.Fatalf("set oracles: %v", err)
	}

	engine := bank.NewEngine(admin, custody, wnative)
	engine.SetState(mgr)
	engine.SetOracle(proxy)
	if err := engine.AddBank(admin, usdc, vault); err != nil {
		t.Fatalf("add bank: %v", err)
	}
	return engine, mgr
}

func mustEncode(t *testing.T, method string, args ...interface{}) []byte {
	t.Helper()
	data, err := Encode(method, args...)
	if err != nil {
		t.Fatalf("encode %s: %v", method, err)
	}
	return data
}

func TestHouseholdBatch(t *testing.T) {
	engine, mgr := newEngine(t)
	data, err := Batch(
		mustEncode(t, "putCollateral", lp, big.NewInt(100)),
		mustEncode(t, "borrow", usdc, big.NewInt(60)),
		mustEncode(t, "repay", usdc, big.NewInt(10)),
		mustEncode(t, "wrapNative", big.NewInt(20)),
	)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	id, err := engine.Execute(context.Background(), bank.ExecuteRequest{Caller: owner, Spell: Household{}, Data: data})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	info, err := engine.Position(id)
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if info.CollateralToken != lp || info.CollateralSize.Int64() != 100 {
		t.Fatalf("unexpected collateral: %+v", info)
	}
	debt, _ := engine.DebtOf(id, usdc)
	if debt.Int64() != 50 {
		t.Fatalf("expected 50 debt, got %s", debt)
	}
	wrapped, _ := mgr.Balance(wnative, owner)
	if wrapped.Int64() != 20 {
		t.Fatalf("expected 20 wrapped native, got %s", wrapped)
	}
}

func TestHouseholdRevertsWholeBatch(t *testing.T) {
	engine, mgr := newEngine(t)
	root := mgr.Root()
	data, err := Batch(
		mustEncode(t, "putCollateral", lp, big.NewInt(100)),
		mustEncode(t, "borrow", usdc, big.NewInt(101)),
	)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	_, err = engine.Execute(context.Background(), bank.ExecuteRequest{Caller: owner, Spell: Household{}, Data: data})
	if !errors.Is(err, bank.ErrInsolvent) {
		t.Fatalf("expected ErrInsolvent, got %v", err)
	}
	if mgr.Hash() != root {
		t.Fatalf("state changed after failed batch")
	}
}

func TestHouseholdRejectsGarbage(t *testing.T) {
	engine, _ := newEngine(t)
	cases := []struct {
		data []byte
		want error
	}{
		{[]byte{0x01, 0x02}, ErrMalformed},
		{[]byte{0xde, 0xad, 0xbe, 0xef}, ErrUnknownMethod},
		{append(mustEncode(t, "borrow", usdc, big.NewInt(1))[:4], 0x01), ErrMalformed},
	}
	for _, tc := range cases {
		_, err := engine.Execute(context.Background(), bank.ExecuteRequest{Caller: owner, Spell: Household{}, Data: tc.data})
		if !errors.Is(err, tc.want) {
			t.Fatalf("data %x: expected %v, got %v", tc.data, tc.want, err)
		}
	}
	if _, err := Encode("selfDestruct"); !errors.Is(err, ErrUnknownMethod) {
		t.Fatalf("expected ErrUnknownMethod, got %v", err)
	}
}

func TestHouseholdBatchDepth(t *testing.T) {
	engine, _ := newEngine(t)
	call := mustEncode(t, "wrapNative", big.NewInt(1))
	for i := 0; i <= maxBatchDepth; i++ {
		next, err := Batch(call)
		if err != nil {
			t.Fatalf("batch: %v", err)
		}
		call = next
	}
	_, err := engine.Execute(context.Background(), bank.ExecuteRequest{Caller: owner, Spell: Household{}, Data: call})
	if !errors.Is(err, ErrBatchDepth) {
		t.Fatalf("expected ErrBatchDepth, got %v", err)
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	s, err := reg.Lookup(" Household ")
	if err != nil || s.Name() != HouseholdName {
		t.Fatalf("lookup household: %v", err)
	}
	if _, err := reg.Lookup("missing"); !errors.Is(err, ErrUnknownSpell) {
		t.Fatalf("expected ErrUnknownSpell, got %v", err)
	}
	reg.Register(bank.NewSpell("Noop", func(context.Context, *bank.Context, []byte) error { return nil }))
	names := reg.Names()
	if len(names) != 2 || names[0] != "household" || names[1] != "noop" {
		t.Fatalf("unexpected names: %v", names)
	}
	methods := Methods()
	if len(methods) != 9 {
		t.Fatalf("expected 9 household methods, got %d", len(methods))
	}
	if !sort.StringsAreSorted(methods) || methods[0] != "batch(bytes[])" {
		t.Fatalf("methods must be sorted: %v", methods)
	}
	again := Methods()
	for i := range methods {
		if again[i] != methods[i] {
			t.Fatalf("method order is not stable: %v vs %v", methods, again)
		}
	}
}
