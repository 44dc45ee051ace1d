package models

import "errors"

// Domain error taxonomy. Services wrap these with fmt.Errorf("%w: ...") to
// carry the authoritative amounts involved; handlers match with errors.Is
// to pick HTTP status codes.
var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrInvalidAllocation = errors.New("invalid allocation")
	ErrNoActiveSchedule  = errors.New("no active cash round schedule")
	ErrAmountRequired    = errors.New("amount required")
	ErrAlreadyExists     = errors.New("already exists")
)
