package middleware

import (
	"errors"
	"net/http"

	"designlens/internal/transport/httpdto"
	lens_errors "designlens/pkg/errors"
	"designlens/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler renders the last error attached with c.Error when the handler
// has not written a response itself.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status, code := StatusFor(err)
		if l != nil {
			log := l.WithContext(c.Request.Context())
			if status >= http.StatusInternalServerError {
				log.Error("request error", zap.Int("status", status), zap.Error(err))
			} else {
				log.Info("request rejected", zap.Int("status", status), zap.Error(err))
			}
		}

		var vErr *lens_errors.ValidationError
		if errors.As(err, &vErr) {
			c.JSON(status, httpdto.NewFieldErrorResponse(vErr.Message, code, vErr.Field))
			return
		}
		msg := err.Error()
		if status == http.StatusInternalServerError {
			msg = "internal error"
		}
		c.JSON(status, httpdto.NewErrorResponse(msg, code))
	}
}

// StatusFor maps the error taxonomy onto an HTTP status and an envelope code.
func StatusFor(err error) (int, string) {
	var (
		vErr        *lens_errors.ValidationError
		creditErr   *lens_errors.CreditError
		analysisErr *lens_errors.AnalysisError
	)
	switch {
	case errors.As(err, &vErr), errors.Is(err, lens_errors.ErrInvalidInput):
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.As(err, &creditErr):
		return http.StatusPaymentRequired, "INSUFFICIENT_CREDITS"
	case errors.Is(err, lens_errors.ErrAnalysisInProgress):
		return http.StatusConflict, "ANALYSIS_IN_PROGRESS"
	case errors.Is(err, lens_errors.ErrNotFound), errors.Is(err, lens_errors.ErrNoActiveSession):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.As(err, &analysisErr):
		return http.StatusBadGateway, "ANALYSIS_FAILED"
	case errors.Is(err, lens_errors.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, lens_errors.ErrRateLimited):
		return http.StatusTooManyRequests, "RATE_LIMITED"
	case errors.Is(err, lens_errors.ErrAlreadyExists):
		return http.StatusConflict, "ALREADY_EXISTS"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
