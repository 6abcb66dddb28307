package routes

import (
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"

	"lendcore/gateway/middleware"
	"lendcore/native/bank"
	"lendcore/native/bank/spell"
	"lendcore/native/oracle"
	"lendcore/services/bankindex"
)

func parseAddress(raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid address %q", raw)
	}
	return common.HexToAddress(raw), nil
}

// parseAmount accepts a non-negative base-10 integer. Empty means zero.
func parseAmount(field, raw string) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%s: invalid amount %q", field, raw)
	}
	return v, nil
}

func positionID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid position id %q", chi.URLParam(r, "id"))
	}
	return id, nil
}

func (s *server) listBanks(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	banks, err := s.cfg.Engine.AllBanks()
	s.mu.Unlock()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"banks": banks})
}

func (s *server) getBank(w http.ResponseWriter, r *http.Request) {
	asset, err := parseAddress(chi.URLParam(r, "asset"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	s.mu.Lock()
	info, err := s.cfg.Engine.Bank(asset)
	s.mu.Unlock()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

type positionResponse struct {
	Position        bank.PositionInfo `json:"position"`
	CollateralValue *big.Int          `json:"collateralValue,omitempty"`
	BorrowValue     *big.Int          `json:"borrowValue,omitempty"`
	ValuationError  string            `json:"valuationError,omitempty"`
}

func (s *server) getPosition(w http.ResponseWriter, r *http.Request) {
	id, err := positionID(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	ctx, cancel := s.context(r.Context())
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	info, err := s.cfg.Engine.Position(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	resp := positionResponse{Position: info}
	coll, cerr := s.cfg.Engine.CollateralValue(ctx, id)
	debt, derr := s.cfg.Engine.BorrowValue(ctx, id)
	if verr := errors.Join(cerr, derr); verr != nil {
		resp.ValuationError = verr.Error()
	} else {
		resp.CollateralValue, resp.BorrowValue = coll, debt
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) positionEvents(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Index == nil {
		writeJSONError(w, http.StatusServiceUnavailable, errors.New("event index disabled"))
		return
	}
	id, err := positionID(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	filter := bankindex.Filter{PositionID: id, Type: r.URL.Query().Get("type")}
	if raw := r.URL.Query().Get("after"); raw != "" {
		if filter.AfterSeq, err = strconv.ParseUint(raw, 10, 64); err != nil {
			writeBadRequest(w, fmt.Errorf("invalid after %q", raw))
			return
		}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if filter.Limit, err = strconv.Atoi(raw); err != nil {
			writeBadRequest(w, fmt.Errorf("invalid limit %q", raw))
			return
		}
	}
	ctx, cancel := s.context(r.Context())
	defer cancel()
	entries, err := s.cfg.Index.List(ctx, filter)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": entries})
}

func (s *server) listSpells(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"spells":           s.cfg.Spells.Names(),
		"householdMethods": spell.Methods(),
	})
}

type executeRequest struct {
	PositionID       uint64        `json:"positionId"`
	Spell            string        `json:"spell"`
	CollateralToken  string        `json:"collateralToken"`
	CollateralAmount string        `json:"collateralAmount"`
	NativeValue      string        `json:"nativeValue"`
	Data             hexutil.Bytes `json:"data"`
}

type executeResponse struct {
	PositionID uint64            `json:"positionId"`
	Position   bank.PositionInfo `json:"position"`
	StateRoot  common.Hash       `json:"stateRoot"`
}

func (s *server) execute(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, errors.New("caller unknown"))
		return
	}
	var body executeRequest
	if err := decodeRequest(r, &body); err != nil {
		writeBadRequest(w, err)
		return
	}
	sp, err := s.cfg.Spells.Lookup(body.Spell)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	req := bank.ExecuteRequest{Caller: caller, PositionID: body.PositionID, Spell: sp, Data: body.Data}
	if body.CollateralToken != "" {
		if req.CollateralToken, err = parseAddress(body.CollateralToken); err != nil {
			writeBadRequest(w, fmt.Errorf("collateralToken: %w", err))
			return
		}
	}
	if req.CollateralAmount, err = parseAmount("collateralAmount", body.CollateralAmount); err != nil {
		writeBadRequest(w, err)
		return
	}
	if req.NativeValue, err = parseAmount("nativeValue", body.NativeValue); err != nil {
		writeBadRequest(w, err)
		return
	}

	ctx, cancel := s.context(r.Context())
	defer cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := s.cfg.Engine.Execute(ctx, req)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	info, err := s.cfg.Engine.Position(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, executeResponse{PositionID: id, Position: info, StateRoot: s.cfg.Engine.StateRoot()})
}

type addBankRequest struct {
	Underlying string `json:"underlying"`
	Wrapped    string `json:"wrapped"`
}

func (s *server) addBank(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.CallerFromContext(r.Context())
	var body addBankRequest
	if err := decodeRequest(r, &body); err != nil {
		writeBadRequest(w, err)
		return
	}
	underlying, err := parseAddress(body.Underlying)
	if err != nil {
		writeBadRequest(w, fmt.Errorf("underlying: %w", err))
		return
	}
	wrapped, err := parseAddress(body.Wrapped)
	if err != nil {
		writeBadRequest(w, fmt.Errorf("wrapped: %w", err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.cfg.Engine.AddBank(caller, underlying, wrapped); err != nil {
		writeEngineError(w, err)
		return
	}
	info, err := s.cfg.Engine.Bank(underlying)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

type oracleEntry struct {
	Asset               string `json:"asset"`
	Price               string `json:"price"`
	BorrowFactorBps     uint64 `json:"borrowFactorBps"`
	CollateralFactorBps uint64 `json:"collateralFactorBps"`
	LiqIncentiveBps     uint64 `json:"liqIncentiveBps"`
}

type setOraclesRequest struct {
	Oracles []oracleEntry `json:"oracles"`
}

// setOracles updates risk factors, and for entries carrying a price, routes
// the asset to the admin-set price source.
func (s *server) setOracles(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Proxy == nil {
		writeJSONError(w, http.StatusServiceUnavailable, errors.New("oracle administration disabled"))
		return
	}
	var body setOraclesRequest
	if err := decodeRequest(r, &body); err != nil {
		writeBadRequest(w, err)
		return
	}
	if len(body.Oracles) == 0 {
		writeBadRequest(w, errors.New("oracles: at least one entry required"))
		return
	}
	var (
		assets  []common.Address
		configs []oracle.TokenConfig
		priced  []common.Address
		prices  []*big.Int
	)
	for i, entry := range body.Oracles {
		asset, err := parseAddress(entry.Asset)
		if err != nil {
			writeBadRequest(w, fmt.Errorf("oracles[%d]: %w", i, err))
			return
		}
		cfg := oracle.TokenConfig{
			BorrowFactorBps:     entry.BorrowFactorBps,
			CollateralFactorBps: entry.CollateralFactorBps,
			LiqIncentiveBps:     entry.LiqIncentiveBps,
		}
		if err := cfg.Validate(); err != nil {
			writeEngineError(w, fmt.Errorf("oracles[%d]: %w", i, err))
			return
		}
		assets = append(assets, asset)
		configs = append(configs, cfg)
		if strings.TrimSpace(entry.Price) == "" {
			continue
		}
		px, err := oracle.ParsePrice(entry.Price)
		if err != nil {
			writeEngineError(w, fmt.Errorf("oracles[%d]: %w", i, err))
			return
		}
		priced = append(priced, asset)
		prices = append(prices, px)
	}
	if len(priced) > 0 && (s.cfg.Prices == nil || s.cfg.Routes == nil) {
		writeJSONError(w, http.StatusServiceUnavailable, errors.New("price source not configured"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(priced) > 0 {
		if err := s.cfg.Prices.SetPrices(priced, prices); err != nil {
			writeEngineError(w, err)
			return
		}
		sources := make([]oracle.Source, len(priced))
		for i := range sources {
			sources[i] = s.cfg.Prices
		}
		if err := s.cfg.Routes.SetRoute(priced, sources); err != nil {
			writeEngineError(w, err)
			return
		}
	}
	if err := s.cfg.Proxy.SetOracles(assets, configs); err != nil {
		writeEngineError(w, err)
		return
	}
	s.logger.Info("oracle factors updated", "assets", len(assets), "priced", len(priced))
	writeJSON(w, http.StatusOK, map[string]interface{}{"updated": len(assets)})
}
