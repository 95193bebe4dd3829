package errors

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyExists    = errors.New("already exists")
	ErrProductNotFound  = errors.New("product not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrForbidden        = errors.New("order does not belong to user")
	ErrAlreadyPaid      = errors.New("order already paid")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrPaymentDisabled  = errors.New("payment is not configured")
	ErrSignatureInvalid = errors.New("notification signature invalid")
	ErrDecryptionFailed = errors.New("notification decryption failed")
)

// GatewayError reports a failed call to the payment provider. RawBody is kept
// for diagnostics only and must never reach API clients.
type GatewayError struct {
	Op      string
	Status  int
	RawBody string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment gateway %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("payment gateway %s: status %d", e.Op, e.Status)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// IsGatewayError reports whether err is a GatewayError.
func IsGatewayError(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge)
}
