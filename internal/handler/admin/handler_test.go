package admin

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextlogic/remix-api/internal/handler/handlertest"
	"github.com/nextlogic/remix-api/internal/model"
	"github.com/nextlogic/remix-api/internal/service/admin"
	"github.com/nextlogic/remix-api/internal/service/usage"
	"github.com/nextlogic/remix-api/pkg/logger"
)

func setup(t *testing.T) (*handlertest.Env, *usage.Service) {
	env := handlertest.New(t)
	recorder := usage.NewService(env.Store.UsageRepo(), nil, logger.Nop())
	svc := admin.NewService(env.Store.AccountRepo(), env.Store.CohortRepo(), recorder, env.Entitlements, logger.Nop())
	NewHandler(svc, env.Session).RegisterRoutes(&env.Engine.RouterGroup)
	return env, recorder
}

func asAdmin(a *model.Account) { a.Role = model.RoleAdmin }

func TestAdmin_RequiresAdmin(t *testing.T) {
	env, _ := setup(t)

	w := env.Do(http.MethodGet, "/admin/codes", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.Do(http.MethodGet, "/admin/codes", nil, env.Cookie(t, env.Account()))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "admin_required", handlertest.Decode(t, w).Code)
}

func TestAdmin_AccessCodes(t *testing.T) {
	env, _ := setup(t)
	cookie := env.Cookie(t, env.Account(asAdmin))

	w := env.Do(http.MethodPost, "/admin/codes", map[string]string{"school_name": "Hillside High"}, cookie)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := handlertest.Decode(t, w).Data
	code := created["code"].(string)
	assert.Len(t, code, 8)
	assert.Equal(t, "Hillside High", created["school_name"])

	w = env.Do(http.MethodGet, "/admin/codes", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	var codes []model.AccessCode
	handlertest.DecodeData(t, w, &codes)
	require.Len(t, codes, 1)
	assert.Equal(t, code, codes[0].Code)

	w = env.Do(http.MethodPut, "/admin/codes/"+code+"/tools", map[string][]string{"tools": {"tweet", "email"}}, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var settings []model.ToolSetting
	handlertest.DecodeData(t, w, &settings)
	enabled := map[string]bool{}
	for _, s := range settings {
		enabled[s.Tool] = s.Enabled
	}
	assert.True(t, enabled["tweet"])
	assert.True(t, enabled["email"])
	assert.False(t, enabled["linkedin"])

	w = env.Do(http.MethodPut, "/admin/codes/"+code+"/tools", map[string][]string{"tools": {"limerick"}}, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.Do(http.MethodGet, "/admin/codes/NOPE0000/tools", nil, cookie)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdmin_OtherAdminsCodesAreHidden(t *testing.T) {
	env, _ := setup(t)
	owner := env.Cookie(t, env.Account(asAdmin))
	other := env.Cookie(t, env.Account(asAdmin))

	w := env.Do(http.MethodPost, "/admin/codes", map[string]string{}, owner)
	require.Equal(t, http.StatusCreated, w.Code)
	code := handlertest.Decode(t, w).Data["code"].(string)

	w = env.Do(http.MethodGet, "/admin/codes/"+code+"/tools", nil, other)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdmin_Students(t *testing.T) {
	env, recorder := setup(t)
	adminCookie := env.Cookie(t, env.Account(asAdmin))

	w := env.Do(http.MethodPost, "/admin/codes", map[string]string{"school_name": "Hillside High"}, adminCookie)
	require.Equal(t, http.StatusCreated, w.Code)
	code := handlertest.Decode(t, w).Data["code"].(string)

	resp, err := env.Auth.Register(context.Background(), &model.RegisterRequest{
		Name: "Student", Email: "student@example.com", Password: "password123", AccessCode: code,
	})
	require.NoError(t, err)
	studentID := resp.Account.ID
	_, err = recorder.Record(context.Background(), studentID, "tweet", "input", "output")
	require.NoError(t, err)

	w = env.Do(http.MethodGet, "/admin/students", nil, adminCookie)
	require.Equal(t, http.StatusOK, w.Code)
	var students []model.StudentActivity
	handlertest.DecodeData(t, w, &students)
	require.Len(t, students, 1)
	assert.Equal(t, studentID, students[0].ID)

	w = env.Do(http.MethodGet, "/admin/students/"+studentID.String()+"/history", nil, adminCookie)
	require.Equal(t, http.StatusOK, w.Code)
	var history []model.HistoryEntry
	handlertest.DecodeData(t, w, &history)
	require.Len(t, history, 1)
	assert.Equal(t, "tweet", history[0].Tool)

	w = env.Do(http.MethodGet, "/admin/students/"+uuid.NewString()+"/history", nil, adminCookie)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.Do(http.MethodGet, "/admin/students/not-a-uuid/history", nil, adminCookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
