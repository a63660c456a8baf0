package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextlogic/remix-api/internal/handler"
	"github.com/nextlogic/remix-api/internal/model"
	"github.com/nextlogic/remix-api/pkg/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAuthenticator struct {
	sessions map[string]*auth.Claims
	err      error
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, token string) (*auth.Claims, error) {
	if f.err != nil {
		return nil, f.err
	}
	claims, ok := f.sessions[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return claims, nil
}

func claimsFor(id uuid.UUID, role string) *auth.Claims {
	return &auth.Claims{Role: role, RegisteredClaims: jwt.RegisteredClaims{ID: uuid.NewString(), Subject: id.String()}}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) handler.Response {
	t.Helper()
	var resp handler.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func sessionEngine(a Authenticator) *gin.Engine {
	m := NewSessionMiddleware(a, "sid")
	r := gin.New()
	r.Use(ErrorHandler())
	ok := func(c *gin.Context) {
		id, found := AccountIDFrom(c)
		c.JSON(http.StatusOK, gin.H{"logged_in": found, "id": id.String()})
	}
	r.GET("/optional", m.Optional(), ok)
	r.GET("/required", m.Required(), ok)
	r.GET("/admin", m.Required(), m.Admin(), ok)
	return r
}

func get(r http.Handler, path, cookie string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: cookie})
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSessionMiddleware(t *testing.T) {
	student, admin := uuid.New(), uuid.New()
	a := &fakeAuthenticator{sessions: map[string]*auth.Claims{
		"student": claimsFor(student, model.RoleStudent),
		"admin":   claimsFor(admin, model.RoleAdmin),
	}}
	r := sessionEngine(a)

	w := get(r, "/optional", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"logged_in":false`)

	w = get(r, "/optional", "garbage")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"logged_in":false`)

	w = get(r, "/optional", "student")
	assert.Contains(t, w.Body.String(), student.String())

	w = get(r, "/required", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "unauthorized", resp.Code)

	w = get(r, "/required", "student")
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(r, "/admin", "student")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "admin_required", decode(t, w).Code)

	w = get(r, "/admin", "admin")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSessionMiddleware_StorageError(t *testing.T) {
	r := sessionEngine(&fakeAuthenticator{err: errors.New("redis: connection refused")})

	w := get(r, "/required", "student")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "internal server error", resp.Message)
	assert.NotContains(t, w.Body.String(), "redis")

	w = get(r, "/optional", "student")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGuestSession(t *testing.T) {
	cfg := CookieConfig{Name: "guest", MaxAge: time.Hour}
	r := gin.New()
	r.GET("/", GuestSession(cfg), func(c *gin.Context) {
		c.String(http.StatusOK, GuestIDFrom(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	id := w.Body.String()
	_, err := ulid.ParseStrict(id)
	require.NoError(t, err)
	cookie := w.Result().Cookies()[0]
	assert.Equal(t, id, cookie.Value)
	assert.True(t, cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "guest", Value: id})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, id, w.Body.String())
	assert.Empty(t, w.Result().Cookies())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "guest", Value: "not-a-ulid"})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.NotEqual(t, "not-a-ulid", w.Body.String())
}

func TestTimeout(t *testing.T) {
	r := gin.New()
	r.Use(Timeout(TimeoutConfig{Duration: 20 * time.Millisecond}))
	r.GET("/slow", func(c *gin.Context) {
		<-c.Request.Context().Done()
	})
	r.GET("/fast", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := get(r, "/slow", "")
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, "timeout", decode(t, w).Code)

	w = get(r, "/fast", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 2})
	r := gin.New()
	r.Use(ErrorHandler(), rl.RateLimit())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1"))
	assert.Equal(t, http.StatusOK, send("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1"))
	assert.Equal(t, http.StatusOK, send("10.0.0.2"))
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS(DefaultCORSConfig([]string{"https://app.example.com"})))
	r.POST("/remix", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/remix", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))

	req = httptest.NewRequest(http.MethodPost, "/remix", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/", func(c *gin.Context) { panic("boom") })

	w := get(r, "/", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal_error", decode(t, w).Code)
	assert.NotEmpty(t, w.Header().Get(HeaderXRequestID))
}

func TestSizeLimit(t *testing.T) {
	r := gin.New()
	r.Use(SizeLimit(SizeLimitConfig{MaxBodySize: 16, SkipPaths: []string{"/webhook"}}))
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.POST("/contact", ok)
	r.POST("/webhook", ok)

	body := strings.Repeat("x", 64)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/contact", strings.NewReader(body)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body)))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHeaders(t *testing.T) {
	r := gin.New()
	r.Use(Logger(), SecurityHeaders(SecurityConfig{HSTS: true, HSTSMaxAge: 60}), NoStore())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := get(r, "/", "")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "max-age=60; includeSubDomains", w.Header().Get("Strict-Transport-Security"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}
