package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gigcredit/backend/internal/domain/loan"
)

// writeError maps a domain error to a transport response. Internal errors
// never expose their cause.
func writeError(c *gin.Context, err error) {
	var e *loan.Error
	if !errors.As(err, &e) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	body := gin.H{"error": e.Code}
	if e.Message != "" && e.Message != e.Code {
		body["message"] = e.Message
	}
	if len(e.Reasons) > 0 {
		body["reasons"] = e.Reasons
	}

	switch e.Kind {
	case loan.KindValidation, loan.KindIneligible:
		c.JSON(http.StatusBadRequest, body)
	case loan.KindNotFound:
		c.JSON(http.StatusNotFound, body)
	case loan.KindPrecondition, loan.KindConflict:
		c.JSON(http.StatusConflict, body)
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
