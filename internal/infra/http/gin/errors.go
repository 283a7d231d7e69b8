package ginserver

import (
	"errors"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/apperr"
	"staybook/internal/app/commands"
	"staybook/internal/app/queries"
	"staybook/internal/infra/obs"
)

const (
	actorHeader       = "X-Actor-ID"
	idempotencyHeader = "Idempotency-Key"
	eventHeader       = "X-Event-ID"
)

func statusFor(err error) int {
	if errors.Is(err, commands.ErrHandlerNotFound) || errors.Is(err, queries.ErrHandlerNotFound) {
		return http.StatusNotImplemented
	}
	switch apperr.Classify(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindContention, apperr.KindInvariant:
		return http.StatusConflict
	case apperr.KindExternal:
		return http.StatusServiceUnavailable
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error(), "kind": string(apperr.Classify(err))}
	if status == http.StatusInternalServerError {
		body["error"] = "internal error"
		body["request_id"] = obs.RequestIDFromContext(c.Request.Context())
	}
	if apperr.IsRetriable(err) {
		c.Header("Retry-After", "1")
	}
	c.AbortWithStatusJSON(status, body)
}

func actorID(c *gin.Context) string {
	return c.GetHeader(actorHeader)
}
