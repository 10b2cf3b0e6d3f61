package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowsync/flowsync-api/pkg/jwt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func bearerRouter(tm *jwt.TokenManager, handlerCalled *bool) *gin.Engine {
	router := gin.New()
	router.Use(BearerAuthMiddleware(tm))
	router.GET("/test", func(c *gin.Context) {
		*handlerCalled = true
		claims, err := GetClaims(c)
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, claims.UserID)
	})
	return router
}

func TestBearerAuthMiddleware_ValidToken(t *testing.T) {
	tm := jwt.NewTokenManager("secret", "flowsync-api", time.Hour)
	token, err := tm.GenerateToken("user-1")
	require.NoError(t, err)

	handlerCalled := false
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	bearerRouter(tm, &handlerCalled).ServeHTTP(w, req)

	assert.True(t, handlerCalled)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", w.Body.String())
}

func TestBearerAuthMiddleware_Rejects(t *testing.T) {
	tm := jwt.NewTokenManager("secret", "flowsync-api", time.Hour)
	expired, err := jwt.NewTokenManager("secret", "flowsync-api", -time.Minute).GenerateToken("user-1")
	require.NoError(t, err)
	foreign, err := jwt.NewTokenManager("other", "flowsync-api", time.Hour).GenerateToken("user-1")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		body   string
	}{
		{"missing header", "", "Unauthorized"},
		{"wrong scheme", "Basic abc", "Unauthorized"},
		{"wrong secret", "Bearer " + foreign, "Unauthorized"},
		{"expired", "Bearer " + expired, "Token expired"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlerCalled := false
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			bearerRouter(tm, &handlerCalled).ServeHTTP(w, req)

			assert.False(t, handlerCalled)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}

func signedRequest(secret string, ts time.Time, body string) *http.Request {
	stamp := strconv.FormatInt(ts.UnixMilli(), 10)
	req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(body))
	req.Header.Set(WebflowTimestampHeader, stamp)
	req.Header.Set(WebflowSignatureHeader, SignWebflowPayload(secret, stamp, []byte(body)))
	return req
}

func webhookRouter(secret string, received *string) *gin.Engine {
	router := gin.New()
	router.Use(WebflowSignatureMiddleware(secret, 5*time.Minute))
	router.POST("/hook", func(c *gin.Context) {
		raw, _ := c.GetRawData()
		*received = string(raw)
		c.Status(http.StatusOK)
	})
	return router
}

func TestWebflowSignatureMiddleware_Valid(t *testing.T) {
	var received string
	body := `{"triggerType":"collection_item_created"}`

	w := httptest.NewRecorder()
	webhookRouter("whsec", &received).ServeHTTP(w, signedRequest("whsec", time.Now(), body))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, body, received)
}

func TestWebflowSignatureMiddleware_Rejects(t *testing.T) {
	body := `{"triggerType":"collection_item_created"}`

	tampered := signedRequest("whsec", time.Now(), body)
	tampered.Body = http.NoBody

	unsigned := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(body))

	tests := []struct {
		name string
		req  *http.Request
	}{
		{"wrong secret", signedRequest("other", time.Now(), body)},
		{"stale timestamp", signedRequest("whsec", time.Now().Add(-time.Hour), body)},
		{"body changed", tampered},
		{"missing headers", unsigned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var received string
			w := httptest.NewRecorder()
			webhookRouter("whsec", &received).ServeHTTP(w, tt.req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Empty(t, received)
		})
	}
}

func TestRateLimiter_PerKey(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := NewRateLimiter(ctx, 0.001, 1, ParamKey("id"))
	router := gin.New()
	router.Use(rl.Middleware())
	router.GET("/things/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	get := func(path string) int {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
		return w.Code
	}

	assert.Equal(t, http.StatusOK, get("/things/a"))
	assert.Equal(t, http.StatusTooManyRequests, get("/things/a"))
	assert.Equal(t, http.StatusOK, get("/things/b"))
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	for _, production := range []bool{false, true} {
		router := gin.New()
		router.Use(SecurityHeadersMiddleware(production))
		router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", http.NoBody))

		assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
		assert.Equal(t, production, w.Header().Get("Strict-Transport-Security") != "")
	}
}

func TestBodySizeLimitMiddleware(t *testing.T) {
	router := gin.New()
	router.POST("/test", BodySizeLimitMiddleware(8), func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.String(http.StatusOK, string(body))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/test", strings.NewReader("small")))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "small", w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/test", strings.NewReader("far too large")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	// chunked bodies have no Content-Length and are cut off while reading
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader("far too large"))
	req.ContentLength = -1
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
