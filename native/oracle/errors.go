package oracle

import "errors"

var (
	ErrUnsupported     = errors.New("oracle: asset not supported")
	ErrNoPrice         = errors.New("oracle: price unavailable")
	ErrLengthMismatch  = errors.New("oracle: input length mismatch")
	ErrBadBorrowFactor = errors.New("oracle: borrow factor must be at least 10000 bps")
	ErrBadCollateral   = errors.New("oracle: collateral factor must not exceed 10000 bps")
	ErrBadLiqIncentive = errors.New("oracle: liquidation incentive must be within [10000, 20000] bps")
	ErrInvalidPrice    = errors.New("oracle: price must be positive")
	ErrNilSource       = errors.New("oracle: source not configured")
)
