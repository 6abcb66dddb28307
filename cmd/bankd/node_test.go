package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"lendcore/config"
	"lendcore/gateway/middleware"
	"lendcore/native/bank/spell"
	"lendcore/services/bankindex"
)

const (
	admin   = "0x00000000000000000000000000000000000000a0"
	alice   = "0x00000000000000000000000000000000000000b1"
	lpToken = "0x00000000000000000000000000000000000000c1"
	usdt    = "0x00000000000000000000000000000000000000c2"
	vault   = "0x00000000000000000000000000000000000000c3"
)

func testConfig(dataDir, dsn string) config.Config {
	cfg := config.Default()
	cfg.Admin = admin
	cfg.DataDir = dataDir
	cfg.Index.DSN = dsn
	cfg.Banks = []config.BankConfig{{Underlying: usdt, Wrapped: vault}}
	cfg.Oracles = []config.OracleConfig{
		{Asset: lpToken, Source: config.SourceSimple, Price: "2", BorrowFactorBps: 10_000, CollateralFactorBps: 5_000, LiqIncentiveBps: 10_000},
		{Asset: usdt, Source: config.SourceSimple, Price: "1", BorrowFactorBps: 10_000, CollateralFactorBps: 10_000, LiqIncentiveBps: 10_000},
	}
	cfg.Genesis = []config.BalanceConfig{
		{Asset: usdt, Holder: vault, Amount: "1000000"},
		{Asset: lpToken, Holder: alice, Amount: "1000"},
	}
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func executeBorrow(t *testing.T, h http.Handler, borrow int64) *httptest.ResponseRecorder {
	t.Helper()
	put, err := spell.Encode("putCollateral", common.HexToAddress(lpToken), big.NewInt(100))
	require.NoError(t, err)
	b, err := spell.Encode("borrow", common.HexToAddress(usdt), big.NewInt(borrow))
	require.NoError(t, err)
	data, err := spell.Batch(put, b)
	require.NoError(t, err)
	body, err := json.Marshal(map[string]interface{}{"spell": "household", "data": hexutil.Bytes(data)})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/execute", bytes.NewReader(body))
	req.Header.Set(middleware.CallerHeader, alice)
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res
}

func TestNodeServesAndIndexes(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	n, err := buildNode(context.Background(), testConfig("", dsn), quietLogger())
	require.NoError(t, err)
	defer n.Close()

	res := executeBorrow(t, n.handler, 100)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	res = executeBorrow(t, n.handler, 1_000)
	require.Equal(t, http.StatusUnprocessableEntity, res.Code)

	entries, err := n.index.List(context.Background(), bankindex.Filter{PositionID: 1})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "bank.execute", entries[2].Event.Type)
}

func TestNodeReopensPersistedState(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	cfg := testConfig(dir, "")

	n, err := buildNode(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	res := executeBorrow(t, n.handler, 50)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	root := n.engine.StateRoot()
	n.Close()

	reopened, err := buildNode(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	defer reopened.Close()
	require.Equal(t, root, reopened.engine.StateRoot())

	bal, err := reopened.engine.Balance(common.HexToAddress(usdt), common.HexToAddress(alice))
	require.NoError(t, err)
	require.Equal(t, int64(50), bal.Int64())
	next, err := reopened.engine.NextPositionID()
	require.NoError(t, err)
	require.Equal(t, uint64(2), next)
}

func TestNodeRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig("", "")
	cfg.Admin = ""
	_, err := buildNode(context.Background(), cfg, quietLogger())
	require.Error(t, err)
}
