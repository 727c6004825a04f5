package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	domainerrors "github.com/builders-garden/swifty/internal/domain/errors"
)

// Success writes data as the bare JSON body
func Success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// Error writes {code, message, error}. Errors that are not an AppError are
// classified by their payment error kind. Server-side causes are attached
// to the gin context for the access log and never leave the process.
func Error(c *gin.Context, err error) {
	appErr := domainerrors.FromPaymentError(err)
	if appErr.Status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}

	c.JSON(appErr.Status, gin.H{
		"code":    appErr.Code,
		"message": appErr.Message,
		"error":   appErr.Message,
	})
}

// Failure writes a failed payment attempt next to the error classifying it
func Failure(c *gin.Context, err error, attempt interface{}) {
	appErr := domainerrors.FromPaymentError(err)
	_ = c.Error(err)

	c.JSON(appErr.Status, gin.H{
		"code":    appErr.Code,
		"message": appErr.Message,
		"attempt": attempt,
	})
}
