package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"commentboard/internal/cookies"
	"commentboard/internal/services"
)

const (
	CtxLoginID   = "login_id"
	CtxLoginName = "login_name"
)

// RequireSession admits requests whose AccessToken cookie carries a valid
// session with all claims present. Failures get 401 with an empty body.
func RequireSession(sessions *services.SessionIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		// preflight
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		raw, ok := cookies.Decode(c.Request, cookies.AccessToken)
		if !ok {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		claims, loginID, err := sessions.Authenticate(raw[cookies.AccessToken])
		if err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		c.Set(CtxLoginID, loginID)
		c.Set(CtxLoginName, claims.Name)
		c.Next()
	}
}
