package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"commentboard/internal/cookies"
	"commentboard/internal/logging"
	"commentboard/internal/services"
)

// writeAccountError maps an account failure to its response. Clients get a
// generic message per kind; the detail goes to the log only.
func writeAccountError(c *gin.Context, log logging.Logger, op string, err error) {
	ctx := c.Request.Context()
	kind := services.KindOf(err)

	switch kind {
	case services.KindValidation:
		log.Info(ctx, op+": rejected", "err", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
	case services.KindUnauthorized:
		log.Info(ctx, op+": unauthorized", "err", err)
		c.Status(http.StatusUnauthorized)
	case services.KindStateCorrupted:
		log.Warn(ctx, op+": signup state corrupted", "err", err)
		cookies.Clear(c.Writer, cookies.Signup...)
		c.JSON(http.StatusNotFound, gin.H{"error": "please restart signup"})
	case services.KindInvalidCode:
		log.Info(ctx, op+": invalid code", "err", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid confirmation code"})
	case services.KindExpiredNonce:
		log.Info(ctx, op+": confirmation expired", "err", err)
		c.JSON(http.StatusGone, gin.H{"error": "confirmation code expired"})
	default:
		log.Error(ctx, op+": internal error", "kind", kind.String(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func asAccountError(err error) (*services.AccountError, bool) {
	var ae *services.AccountError
	ok := errors.As(err, &ae)
	return ae, ok
}
