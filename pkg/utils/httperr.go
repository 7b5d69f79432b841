package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"mangashelf/pkg/database"
	"mangashelf/pkg/models"
)

// ErrorStatus maps a domain error to an HTTP status code.
func ErrorStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrUnavailable), errors.Is(err, database.ErrLocked):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes err as {"error": ...}. Internal errors are not echoed
// to the client.
func RespondError(c *gin.Context, err error, fallback string) {
	status := ErrorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = fallback
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"error": msg})
}
