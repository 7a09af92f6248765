package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"commentboard/internal/middleware"
)

func TestGetLoginID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	_, ok := getLoginID(c)
	assert.False(t, ok)

	c.Set(middleware.CtxLoginID, "7")
	_, ok = getLoginID(c)
	assert.False(t, ok)

	c.Set(middleware.CtxLoginID, int64(7))
	id, ok := getLoginID(c)
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)
}
