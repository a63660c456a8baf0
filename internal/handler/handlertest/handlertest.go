// Package handlertest wires real services over the in-memory store so
// handler tests can drive full requests through gin.
package handlertest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nextlogic/remix-api/internal/handler"
	"github.com/nextlogic/remix-api/internal/middleware"
	"github.com/nextlogic/remix-api/internal/model"
	"github.com/nextlogic/remix-api/internal/repository/memory"
	authsvc "github.com/nextlogic/remix-api/internal/service/auth"
	"github.com/nextlogic/remix-api/internal/service/entitlement"
	"github.com/nextlogic/remix-api/internal/service/referral"
	"github.com/nextlogic/remix-api/pkg/auth"
	"github.com/nextlogic/remix-api/pkg/logger"
	"github.com/nextlogic/remix-api/pkg/security"
)

const FreeUses = 3

var (
	SessionCookie = middleware.CookieConfig{Name: "remix_session", MaxAge: time.Hour}
	GuestCookie   = middleware.CookieConfig{Name: "remix_guest", MaxAge: 24 * time.Hour}
)

type Env struct {
	Store        *memory.Store
	JWT          auth.JWTService
	Auth         *authsvc.Service
	Referrals    *referral.Service
	Entitlements *entitlement.Service
	Session      *middleware.SessionMiddleware
	Engine       *gin.Engine
}

func New(t *testing.T) *Env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	handler.UseJSONFieldNames()

	store := memory.New(FreeUses)
	jwtSvc, err := auth.NewJWTService("handler-test-secret", "remix-test", time.Hour)
	require.NoError(t, err)

	referrals := referral.NewService(store.AccountRepo(), store.ReferralRepo(), referral.DefaultReward, nil, logger.Nop())
	authService := authsvc.NewService(store.AccountRepo(), store.CohortRepo(), referrals, store.Revocations(),
		security.NewBcryptHasher(bcrypt.MinCost), jwtSvc, FreeUses, logger.Nop())
	entitlements := entitlement.NewService(store.AccountRepo(), store.CohortRepo(), store.GuestQuota(),
		entitlement.Config{FreeUses: FreeUses}, nil, logger.Nop())

	engine := gin.New()
	engine.Use(middleware.ErrorHandler())

	return &Env{
		Store:        store,
		JWT:          jwtSvc,
		Auth:         authService,
		Referrals:    referrals,
		Entitlements: entitlements,
		Session:      middleware.NewSessionMiddleware(authService, SessionCookie.Name),
		Engine:       engine,
	}
}

// Account stores a student with the default quota after applying mods.
func (e *Env) Account(mods ...func(*model.Account)) *model.Account {
	a := &model.Account{
		ID:           uuid.New(),
		Name:         "Student",
		Email:        uuid.NewString()[:8] + "@example.com",
		Role:         model.RoleStudent,
		UsesLeft:     FreeUses,
		ReferralCode: authsvc.NewReferralCode(),
	}
	for _, m := range mods {
		m(a)
	}
	e.Store.PutAccount(a)
	return a
}

// Cookie issues a session cookie for a.
func (e *Env) Cookie(t *testing.T, a *model.Account) *http.Cookie {
	t.Helper()
	token, _, err := e.JWT.Issue(a.ID, a.Role)
	require.NoError(t, err)
	return &http.Cookie{Name: SessionCookie.Name, Value: token}
}

// Do sends body as JSON, or raw when it is a []byte.
func (e *Env) Do(method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case []byte:
		buf.Write(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	e.Engine.ServeHTTP(w, req)
	return w
}

// Body is the decoded response envelope.
type Body struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message"`
	Code    string                 `json:"code"`
	Data    map[string]interface{} `json:"data"`
}

func Decode(t *testing.T, w *httptest.ResponseRecorder) Body {
	t.Helper()
	var b Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b), w.Body.String())
	return b
}

// ResponseCookie finds a cookie set on the response.
func ResponseCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// DecodeData unmarshals only the data field, for endpoints that answer with a list.
func DecodeData(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, v), string(env.Data))
}
