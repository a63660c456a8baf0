package contact

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextlogic/remix-api/internal/model"
	"github.com/nextlogic/remix-api/internal/repository/memory"
	"github.com/nextlogic/remix-api/pkg/logger"
)

func TestSubmit(t *testing.T) {
	store := memory.New(3)
	svc := NewService(store.ContactRepo(), logger.Nop())

	msg, err := svc.Submit(context.Background(), &model.ContactRequest{
		Name: " Ada ", Email: "ada@example.com", Message: " Hello there ",
	})
	require.NoError(t, err)
	assert.Equal(t, model.ContactPending, msg.Status)

	queued := store.ContactMessages()
	require.Len(t, queued, 1)
	assert.Equal(t, "Ada", queued[0].Name)
	assert.Equal(t, "Hello there", queued[0].Message)
}

func TestSubmit_StorageFailure(t *testing.T) {
	store := memory.New(3)
	store.Fail("contacts.Enqueue", errors.New("db down"))
	svc := NewService(store.ContactRepo(), logger.Nop())

	_, err := svc.Submit(context.Background(), &model.ContactRequest{Name: "A", Email: "a@example.com", Message: "m"})
	assert.Error(t, err)
}
