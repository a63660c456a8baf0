package contact

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextlogic/remix-api/internal/handler/handlertest"
	"github.com/nextlogic/remix-api/internal/model"
	"github.com/nextlogic/remix-api/internal/service/contact"
	"github.com/nextlogic/remix-api/pkg/logger"
)

func setup(t *testing.T) *handlertest.Env {
	env := handlertest.New(t)
	NewHandler(contact.NewService(env.Store.ContactRepo(), logger.Nop())).RegisterRoutes(&env.Engine.RouterGroup)
	return env
}

func TestSubmit(t *testing.T) {
	env := setup(t)

	w := env.Do(http.MethodPost, "/contact", map[string]string{
		"name":    "Ada",
		"email":   "ada@example.com",
		"message": "Do you offer school discounts?",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Thanks, we will get back to you soon.", handlertest.Decode(t, w).Data["message"])

	msgs := env.Store.ContactMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.ContactPending, msgs[0].Status)
}

func TestSubmit_Errors(t *testing.T) {
	env := setup(t)

	w := env.Do(http.MethodPost, "/contact", map[string]string{"name": "Ada", "email": "ada@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "message is required", handlertest.Decode(t, w).Message)

	env.Store.Fail("contacts.Enqueue", errors.New("connection reset"))
	w = env.Do(http.MethodPost, "/contact", map[string]string{
		"name": "Ada", "email": "ada@example.com", "message": "hello",
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, env.Store.ContactMessages())
}
