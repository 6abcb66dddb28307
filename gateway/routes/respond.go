package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"lendcore/core/state"
	nativecommon "lendcore/native/common"
	"lendcore/native/bank"
	"lendcore/native/bank/spell"
	"lendcore/native/oracle"
)

const requestLimit = 1 << 20 // 1 MiB

var errEmptyBody = errors.New("request body is empty")

func decodeRequest(r *http.Request, out interface{}) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, requestLimit))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(data) == 0 {
		return errEmptyBody
	}
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Errorf("marshal response: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	message := strings.TrimSpace(err.Error())
	if message == "" {
		message = http.StatusText(status)
	}
	body, _ := json.Marshal(errorBody{Error: message, Reason: bank.ErrorReason(err)})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSONError(w, http.StatusBadRequest, err)
}

// writeEngineError maps ledger failures onto HTTP status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	writeJSONError(w, statusFor(err), err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, bank.ErrNotFound), errors.Is(err, bank.ErrNotListed), errors.Is(err, spell.ErrUnknownSpell):
		return http.StatusNotFound
	case errors.Is(err, bank.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, bank.ErrAlreadyListed), errors.Is(err, bank.ErrContextBusy):
		return http.StatusConflict
	case errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusServiceUnavailable
	case errors.Is(err, bank.ErrInvalidAsset),
		errors.Is(err, bank.ErrZeroAmount),
		errors.Is(err, bank.ErrExcessRepay),
		errors.Is(err, bank.ErrInsufficientCollateral),
		errors.Is(err, bank.ErrInsolvent),
		errors.Is(err, bank.ErrNilSpell),
		errors.Is(err, state.ErrInsufficientBalance),
		errors.Is(err, spell.ErrUnknownMethod),
		errors.Is(err, spell.ErrMalformed),
		errors.Is(err, spell.ErrBatchDepth),
		errors.Is(err, oracle.ErrUnsupported),
		errors.Is(err, oracle.ErrNoPrice),
		errors.Is(err, oracle.ErrLengthMismatch),
		errors.Is(err, oracle.ErrBadBorrowFactor),
		errors.Is(err, oracle.ErrBadCollateral),
		errors.Is(err, oracle.ErrBadLiqIncentive),
		errors.Is(err, oracle.ErrInvalidPrice):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
