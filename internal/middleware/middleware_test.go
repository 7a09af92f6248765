package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commentboard/internal/cookies"
	"commentboard/internal/logging"
	"commentboard/internal/ratelimit"
	"commentboard/internal/services"
)

func init() { gin.SetMode(gin.TestMode) }

func sessionRouter(sessions *services.SessionIssuer) *gin.Engine {
	r := gin.New()
	r.POST("/add+comment", RequireSession(sessions), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"login_id": c.GetInt64(CtxLoginID), "name": c.GetString(CtxLoginName)})
	})
	return r
}

func TestRequireSession(t *testing.T) {
	sessions := services.NewSessionIssuer("secret", time.Hour)
	good, _, err := sessions.Issue(7, "al", "a@b.com")
	require.NoError(t, err)
	bare, _, err := sessions.Issue(7, "", "")
	require.NoError(t, err)
	foreign, _, err := services.NewSessionIssuer("other", time.Hour).Issue(7, "al", "a@b.com")
	require.NoError(t, err)

	tests := []struct {
		name   string
		cookie string
		want   int
	}{
		{"valid", good, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"claims missing", bare, http.StatusUnauthorized},
		{"foreign signature", foreign, http.StatusUnauthorized},
		{"garbage", "abc", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/add+comment", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: cookies.AccessToken, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			sessionRouter(sessions).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Empty(t, rec.Body.String())
			} else {
				assert.JSONEq(t, `{"login_id":7,"name":"al"}`, rec.Body.String())
			}
		})
	}
}

type countingLimiter struct {
	max  int
	seen map[string]int
	err  error
}

func (l *countingLimiter) Allow(_ context.Context, key string) error {
	if l.err != nil {
		return l.err
	}
	l.seen[key]++
	if l.seen[key] > l.max {
		return ratelimit.ErrLimited
	}
	return nil
}

func TestThrottle(t *testing.T) {
	l := &countingLimiter{max: 2, seen: map[string]int{}}
	r := gin.New()
	r.POST("/login", Throttle(l, logging.Nop()), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
	assert.Len(t, l.seen, 1)
}

func TestThrottle_FailsOpen(t *testing.T) {
	l := &countingLimiter{err: ratelimit.ErrUnavailable}
	r := gin.New()
	r.POST("/login", Throttle(l, logging.Nop()), func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	_, err := uuid.Parse(rec.Header().Get(HeaderRequestID))
	require.NoError(t, err)

	known := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(HeaderRequestID, known)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, known, rec.Header().Get(HeaderRequestID))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(HeaderRequestID, "<script>")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.NotEqual(t, "<script>", rec.Header().Get(HeaderRequestID))
}
