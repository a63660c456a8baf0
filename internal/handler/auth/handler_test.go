package auth

import (
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextlogic/remix-api/internal/handler/handlertest"
	"github.com/nextlogic/remix-api/internal/model"
)

func setup(t *testing.T) *handlertest.Env {
	env := handlertest.New(t)
	NewHandler(env.Auth, env.Entitlements, env.Session,
		handlertest.SessionCookie, handlertest.GuestCookie).RegisterRoutes(&env.Engine.RouterGroup)
	return env
}

type jsonBody = map[string]interface{}

func registerBody(email string) jsonBody {
	return jsonBody{"name": "Ada", "email": email, "password": "password123"}
}

func TestRegister(t *testing.T) {
	env := setup(t)

	w := env.Do(http.MethodPost, "/register", registerBody("ada@example.com"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := handlertest.Decode(t, w)
	assert.Equal(t, "success", body.Status)
	assert.Len(t, body.Data["referral_code"], 8)
	assert.Nil(t, handlertest.ResponseCookie(w, handlertest.SessionCookie.Name))

	w = env.Do(http.MethodPost, "/register", registerBody("ADA@example.com"))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "conflict", handlertest.Decode(t, w).Code)
}

func TestRegister_Validation(t *testing.T) {
	env := setup(t)

	w := env.Do(http.MethodPost, "/register", jsonBody{"name": "Ada", "email": "not-an-email", "password": "password123"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := handlertest.Decode(t, w)
	assert.Equal(t, "validation_error", body.Code)
	assert.Contains(t, body.Message, "email")

	w = env.Do(http.MethodPost, "/register", []byte("{"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := registerBody("bob@example.com")
	req["access_code"] = "NOPE1234"
	w = env.Do(http.MethodPost, "/register", req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid access code", handlertest.Decode(t, w).Message)
}

func TestLoginCheckSessionLogout(t *testing.T) {
	env := setup(t)
	require.Equal(t, http.StatusCreated, env.Do(http.MethodPost, "/register", registerBody("ada@example.com")).Code)

	w := env.Do(http.MethodPost, "/login", jsonBody{"email": "ada@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.Do(http.MethodPost, "/login", jsonBody{"email": "ada@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cookie := handlertest.ResponseCookie(w, handlertest.SessionCookie.Name)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	ent := handlertest.Decode(t, w).Data["entitlement"].(map[string]interface{})
	assert.Equal(t, true, ent["logged_in"])
	assert.Equal(t, float64(handlertest.FreeUses), ent["uses_left"])

	w = env.Do(http.MethodGet, "/check_session", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, handlertest.Decode(t, w).Data["logged_in"])

	w = env.Do(http.MethodPost, "/logout", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	cleared := handlertest.ResponseCookie(w, handlertest.SessionCookie.Name)
	require.NotNil(t, cleared)
	assert.True(t, cleared.MaxAge < 0)

	// the revoked token no longer counts as a session
	w = env.Do(http.MethodGet, "/check_session", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, handlertest.Decode(t, w).Data["logged_in"])

	w = env.Do(http.MethodPost, "/logout", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCheckSession_Guest(t *testing.T) {
	env := setup(t)

	w := env.Do(http.MethodGet, "/check_session", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := handlertest.Decode(t, w)
	assert.Equal(t, false, body.Data["logged_in"])
	assert.Equal(t, float64(handlertest.FreeUses), body.Data["uses_left"])
	assert.NotNil(t, handlertest.ResponseCookie(w, handlertest.GuestCookie.Name))
}

func TestCheckSession_UnknownAccount(t *testing.T) {
	env := setup(t)
	ghost := &model.Account{ID: uuid.New(), Role: model.RoleStudent}
	cookie := env.Cookie(t, ghost)

	w := env.Do(http.MethodGet, "/check_session", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, handlertest.Decode(t, w).Data["logged_in"])
	cleared := handlertest.ResponseCookie(w, handlertest.SessionCookie.Name)
	require.NotNil(t, cleared)
	assert.True(t, cleared.MaxAge < 0)
}

func TestCheckSession_StorageFailure(t *testing.T) {
	env := setup(t)
	account := env.Account()
	cookie := env.Cookie(t, account)
	env.Store.Fail("accounts.Get", errors.New("connection reset"))

	w := env.Do(http.MethodGet, "/check_session", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, handlertest.Decode(t, w).Data["logged_in"])
}
