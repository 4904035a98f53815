package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure, with no infrastructure dependency.

var (
	// Guard errors. Every rejected operation leaves state untouched.
	ErrStringTooLong   = errors.New("string too long")
	ErrIncorrectStatus = errors.New("machine/order status is not the expected status")
	ErrDurationTooMuch = errors.New("order duration exceeds machine max duration")
	ErrInvalidPeriod   = errors.New("reward period is invalid")
	ErrRepeatClaim     = errors.New("reward has been claimed")

	// Addressing errors
	ErrNotFound     = errors.New("record not found")
	ErrExists       = errors.New("record already exists")
	ErrUnauthorized = errors.New("signer is not authorized for this record")

	// Value transfer errors
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrDecimalsMismatch   = errors.New("token decimals mismatch")
	ErrMintNotFound       = errors.New("token mint not found")
	ErrInvalidPubkey      = errors.New("invalid public key")
	ErrArithmeticOverflow = errors.New("arithmetic overflow")

	// ErrStopScan ends a Tx.Scan early; it is never returned to callers.
	ErrStopScan = errors.New("stop scan")
)
