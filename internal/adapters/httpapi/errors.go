package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bakerycore/internal/adapters/reports"
	"bakerycore/pkg/domain"
)

const dayLayout = "2006-01-02"

// statusFor maps the domain error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, reports.ErrQueueFull):
		return http.StatusServiceUnavailable
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case domain.IsInvalidArgument(err):
		return http.StatusBadRequest
	case domain.IsInsufficientStock(err), domain.IsInvalidState(err):
		return http.StatusUnprocessableEntity
	case domain.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (h *handler) badRequest(c *gin.Context, err error) {
	h.logger.Warn("invalid request", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func pathID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.InvalidArgumentError{Field: "id", Reason: "must be a positive integer"}
	}
	return id, nil
}

// parseDay accepts YYYY-MM-DD or RFC 3339.
func parseDay(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, domain.InvalidArgumentError{Field: field, Reason: "required"}
	}
	if t, err := time.Parse(dayLayout, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, domain.InvalidArgumentError{Field: field, Reason: "expected YYYY-MM-DD or RFC 3339"}
	}
	return t, nil
}

func queryRange(c *gin.Context) (time.Time, time.Time, error) {
	start, err := parseDay("start", c.Query("start"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end := start
	if raw := c.Query("end"); raw != "" {
		if end, err = parseDay("end", raw); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return start, end, nil
}
