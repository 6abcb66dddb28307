package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"

	"lendcore/core/events"
	"lendcore/core/state"
	"lendcore/gateway/middleware"
	"lendcore/native/bank"
	"lendcore/native/bank/spell"
	"lendcore/native/oracle"
	"lendcore/services/bankindex"
	"lendcore/storage"
	"lendcore/storage/trie"
)

var (
	adminAddr  = common.HexToAddress("0x00000000000000000000000000000000000000a0")
	moduleAddr = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	alice      = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	lpToken    = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	usdt       = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	usdtVault  = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	weth       = common.HexToAddress("0x00000000000000000000000000000000000000c4")
)

type stubIndex struct{ filters []bankindex.Filter }

func (s *stubIndex) List(_ context.Context, f bankindex.Filter) ([]bankindex.Entry, error) {
	s.filters = append(s.filters, f)
	return []bankindex.Entry{{Sequence: 1, Event: events.Flatten(events.Borrow{PositionID: f.PositionID, Bank: usdt})}}, nil
}

type harness struct {
	handler http.Handler
	engine  *bank.Engine
	index   *stubIndex
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	tr, err := trie.NewTrie(db, nil)
	require.NoError(t, err)
	mgr := state.NewManager(tr)
	require.NoError(t, mgr.Mint(usdt, usdtVault, big.NewInt(1_000_000)))
	require.NoError(t, mgr.Mint(lpToken, alice, big.NewInt(1_000)))
	_, err = mgr.Commit()
	require.NoError(t, err)

	prices := oracle.NewSimple()
	px, err := oracle.ParsePrice("1")
	require.NoError(t, err)
	require.NoError(t, prices.SetPrices([]common.Address{lpToken, usdt}, []*big.Int{px, px}))
	core := oracle.NewCore()
	require.NoError(t, core.SetRoute([]common.Address{lpToken, usdt}, []oracle.Source{prices, prices}))
	proxy := oracle.NewProxy(core)
	flat := oracle.TokenConfig{BorrowFactorBps: 10_000, CollateralFactorBps: 8_000, LiqIncentiveBps: 10_000}
	require.NoError(t, proxy.SetOracles([]common.Address{lpToken, usdt}, []oracle.TokenConfig{flat, flat}))

	engine := bank.NewEngine(adminAddr, moduleAddr, weth)
	engine.SetState(mgr)
	engine.SetOracle(proxy)
	require.NoError(t, engine.AddBank(adminAddr, usdt, usdtVault))

	idx := &stubIndex{}
	handler := New(Config{
		Engine:        engine,
		Spells:        spell.NewRegistry(),
		Prices:        prices,
		Routes:        core,
		Proxy:         proxy,
		Index:         idx,
		Authenticator: middleware.NewAuthenticator(middleware.AuthConfig{}, nil),
	})
	return &harness{handler: handler, engine: engine, index: idx}
}

func (h *harness) do(t *testing.T, method, path string, caller common.Address, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if caller != (common.Address{}) {
		req.Header.Set(middleware.CallerHeader, caller.Hex())
	}
	res := httptest.NewRecorder()
	h.handler.ServeHTTP(res, req)
	return res
}

func householdCalls(t *testing.T, borrow int64) hexutil.Bytes {
	t.Helper()
	put, err := spell.Encode("putCollateral", lpToken, big.NewInt(500))
	require.NoError(t, err)
	b, err := spell.Encode("borrow", usdt, big.NewInt(borrow))
	require.NoError(t, err)
	data, err := spell.Batch(put, b)
	require.NoError(t, err)
	return data
}

func TestExecuteOpensPosition(t *testing.T) {
	h := newHarness(t)
	res := h.do(t, http.MethodPost, "/v1/execute", alice, map[string]interface{}{
		"spell": "household",
		"data":  householdCalls(t, 300),
	})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	var out executeResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out))
	require.Equal(t, uint64(1), out.PositionID)
	require.Equal(t, alice, out.Position.Owner)
	require.Equal(t, int64(500), out.Position.CollateralSize.Int64())
	require.Len(t, out.Position.Debts, 1)
	require.Equal(t, int64(300), out.Position.Debts[0].Amount.Int64())

	res = h.do(t, http.MethodGet, "/v1/positions/1", common.Address{}, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var pos positionResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &pos))
	require.Empty(t, pos.ValuationError)
	require.Equal(t, int64(400), pos.CollateralValue.Int64())
	require.Equal(t, int64(300), pos.BorrowValue.Int64())
}

func TestExecuteMapsEngineErrors(t *testing.T) {
	h := newHarness(t)

	res := h.do(t, http.MethodPost, "/v1/execute", alice, map[string]interface{}{
		"spell": "household",
		"data":  householdCalls(t, 401),
	})
	require.Equal(t, http.StatusUnprocessableEntity, res.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.Equal(t, "insolvent", body.Reason)
	next, err := h.engine.NextPositionID()
	require.NoError(t, err)
	require.Equal(t, uint64(1), next)

	res = h.do(t, http.MethodPost, "/v1/execute", alice, map[string]interface{}{"spell": "nope"})
	require.Equal(t, http.StatusNotFound, res.Code)

	res = h.do(t, http.MethodPost, "/v1/execute", alice, map[string]interface{}{"spell": "household", "bogus": 1})
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = h.do(t, http.MethodPost, "/v1/execute", common.Address{}, map[string]interface{}{"spell": "household"})
	require.Equal(t, http.StatusUnauthorized, res.Code)

	h.do(t, http.MethodPost, "/v1/execute", alice, map[string]interface{}{"spell": "household", "data": householdCalls(t, 10)})
	res = h.do(t, http.MethodPost, "/v1/execute", adminAddr, map[string]interface{}{"spell": "household", "positionId": 1})
	require.Equal(t, http.StatusForbidden, res.Code)
}

func TestBankRoutes(t *testing.T) {
	h := newHarness(t)

	res := h.do(t, http.MethodGet, "/v1/banks", common.Address{}, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var list struct {
		Banks []bank.BankInfo `json:"banks"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &list))
	require.Len(t, list.Banks, 1)
	require.Equal(t, uint64(8_000), list.Banks[0].CollateralFactorBps)

	res = h.do(t, http.MethodGet, "/v1/banks/"+weth.Hex(), common.Address{}, nil)
	require.Equal(t, http.StatusNotFound, res.Code)
	res = h.do(t, http.MethodGet, "/v1/banks/zzz", common.Address{}, nil)
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = h.do(t, http.MethodPost, "/v1/admin/banks", alice, addBankRequest{Underlying: weth.Hex(), Wrapped: moduleAddr.Hex()})
	require.Equal(t, http.StatusForbidden, res.Code)
	res = h.do(t, http.MethodPost, "/v1/admin/banks", adminAddr, addBankRequest{Underlying: weth.Hex(), Wrapped: usdtVault.Hex()})
	require.Equal(t, http.StatusConflict, res.Code)
	wethVault := common.HexToAddress("0x00000000000000000000000000000000000000c5")
	res = h.do(t, http.MethodPost, "/v1/admin/banks", adminAddr, addBankRequest{Underlying: weth.Hex(), Wrapped: wethVault.Hex()})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	res = h.do(t, http.MethodPost, "/v1/admin/banks", adminAddr, addBankRequest{Underlying: weth.Hex(), Wrapped: wethVault.Hex()})
	require.Equal(t, http.StatusConflict, res.Code)
}

func TestAdminOraclesAndEvents(t *testing.T) {
	h := newHarness(t)
	res := h.do(t, http.MethodPost, "/v1/admin/oracles", adminAddr, setOraclesRequest{Oracles: []oracleEntry{
		{Asset: weth.Hex(), Price: "2000.5", BorrowFactorBps: 12_000, CollateralFactorBps: 7_500, LiqIncentiveBps: 11_000},
	}})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	res = h.do(t, http.MethodPost, "/v1/admin/oracles", adminAddr, setOraclesRequest{Oracles: []oracleEntry{
		{Asset: weth.Hex(), BorrowFactorBps: 9_000, CollateralFactorBps: 7_500, LiqIncentiveBps: 11_000},
	}})
	require.Equal(t, http.StatusUnprocessableEntity, res.Code)

	res = h.do(t, http.MethodGet, "/v1/positions/7/events?type=bank.borrow&limit=5", common.Address{}, nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Len(t, h.index.filters, 1)
	require.Equal(t, bankindex.Filter{PositionID: 7, Type: events.TypeBorrow, Limit: 5}, h.index.filters[0])

	res = h.do(t, http.MethodGet, "/v1/positions/0", common.Address{}, nil)
	require.Equal(t, http.StatusBadRequest, res.Code)
	res = h.do(t, http.MethodGet, "/v1/positions/42", common.Address{}, nil)
	require.Equal(t, http.StatusNotFound, res.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)
	res := h.do(t, http.MethodGet, "/healthz", common.Address{}, nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "ok", res.Body.String())
	res = h.do(t, http.MethodGet, "/metrics", common.Address{}, nil)
	require.Equal(t, http.StatusOK, res.Code)
}

func TestListSpells(t *testing.T) {
	h := newHarness(t)
	res := h.do(t, http.MethodGet, "/v1/spells", common.Address{}, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var body struct {
		Spells           []string `json:"spells"`
		HouseholdMethods []string `json:"householdMethods"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.Equal(t, []string{spell.HouseholdName}, body.Spells)
	require.Equal(t, spell.Methods(), body.HouseholdMethods)
	require.Contains(t, body.HouseholdMethods, "batch(bytes[])")
}
