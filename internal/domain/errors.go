package domain

import "errors"

var (
	// ErrOrderNotFound is returned when an order id cannot be resolved.
	ErrOrderNotFound = errors.New("order not found")

	// ErrMissingInstrument is returned when an order has no instrument symbol.
	ErrMissingInstrument = errors.New("missing instrument")

	// ErrMissingClient is returned when an order has no client id.
	ErrMissingClient = errors.New("missing client id")

	// ErrInvalidSide is returned when the side is not BUY or SELL.
	ErrInvalidSide = errors.New("invalid side")

	// ErrInvalidType is returned when the type is not LIMIT or MARKET.
	ErrInvalidType = errors.New("invalid order type")

	// ErrInvalidQuantity is returned when the quantity is not positive.
	ErrInvalidQuantity = errors.New("quantity must be positive")

	// ErrInvalidPrice is returned when a limit price is not positive.
	ErrInvalidPrice = errors.New("limit price must be positive")
)

// ValidationError wraps a boundary validation failure with the field that
// caused it. Validation failures never become domain events.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return "validation failed [" + e.Field + "]: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidation checks whether an error is a boundary validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
