package handlers

import (
	"github.com/gin-gonic/gin"

	"commentboard/internal/middleware"
)

func getLoginID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(middleware.CtxLoginID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
