package api

import "errors"

// Order and transport error taxonomy. Callers branch on these with
// errors.Is; the wrapped error keeps the venue's original message.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidQuantity     = errors.New("invalid quantity")
	ErrVenueRejected       = errors.New("venue rejected request")
	ErrNetwork             = errors.New("network error")
)
