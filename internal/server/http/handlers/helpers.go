package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/polkiloo/memberpay/internal/domain/errors"
	"github.com/polkiloo/memberpay/internal/server/http/middleware"
)

// CurrentUserID extracts authenticated user identifier from context.
func CurrentUserID(c *gin.Context) int64 {
	val, ok := c.Get(middleware.UserIDContextKey)
	if !ok {
		return 0
	}
	id, _ := val.(int64)
	return id
}

// statusFromError maps domain errors onto HTTP statuses.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, domainErrors.ErrInvalidArgument),
		errors.Is(err, domainErrors.ErrProductNotFound),
		errors.Is(err, domainErrors.ErrUserNotFound):
		return http.StatusBadRequest
	case errors.Is(err, domainErrors.ErrDecryptionFailed):
		return http.StatusBadRequest
	case errors.Is(err, domainErrors.ErrSignatureInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, domainErrors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domainErrors.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainErrors.ErrAlreadyPaid):
		return http.StatusConflict
	case errors.Is(err, domainErrors.ErrPaymentDisabled):
		return http.StatusServiceUnavailable
	case domainErrors.IsGatewayError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
