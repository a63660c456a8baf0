package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextlogic/remix-api/internal/email"
	"github.com/nextlogic/remix-api/internal/model"
	"github.com/nextlogic/remix-api/internal/repository/memory"
	"github.com/nextlogic/remix-api/pkg/logger"
	"github.com/nextlogic/remix-api/pkg/metrics"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []email.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg email.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func enqueue(t *testing.T, store *memory.Store, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, store.ContactRepo().Enqueue(context.Background(), &model.ContactMessage{
			Name: "Ada", Email: "ada@example.com", Message: "hi",
		}))
	}
}

func newDispatcher(store *memory.Store, mailer email.Mailer, m *metrics.Metrics) *MailDispatcher {
	return NewMailDispatcher(store.ContactRepo(), mailer, MailDispatcherConfig{
		BatchSize:    2,
		PollInterval: time.Second,
		MaxAttempts:  2,
		From:         "no-reply@example.com",
		To:           "support@example.com",
	}, logger.Nop(), m)
}

func TestMailDispatcher_DeliversInBatches(t *testing.T) {
	store := memory.New(3)
	enqueue(t, store, 3)
	mailer := &fakeMailer{}
	m := metrics.NewTestMetrics()
	d := newDispatcher(store, mailer, m)

	stats, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Sent)

	stats, err = d.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Sent)

	assert.Len(t, mailer.sent, 3)
	assert.Equal(t, "support@example.com", mailer.sent[0].To)
	assert.Equal(t, "ada@example.com", mailer.sent[0].ReplyTo)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.MailDelivered))
	for _, msg := range store.ContactMessages() {
		assert.Equal(t, model.ContactSent, msg.Status)
	}
}

func TestMailDispatcher_FailureMarksFailedAfterMaxAttempts(t *testing.T) {
	store := memory.New(3)
	enqueue(t, store, 1)
	mailer := &fakeMailer{err: errors.New("connection refused")}
	m := metrics.NewTestMetrics()
	d := newDispatcher(store, mailer, m)

	_, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.ContactPending, store.ContactMessages()[0].Status)

	_, err = d.RunOnce(context.Background())
	require.NoError(t, err)
	msg := store.ContactMessages()[0]
	assert.Equal(t, model.ContactFailed, msg.Status)
	assert.Equal(t, 2, msg.Attempts)
	require.NotNil(t, msg.LastError)
	assert.Contains(t, *msg.LastError, "connection refused")
	assert.Equal(t, float64(2), testutil.ToFloat64(m.MailFailed))
}

func TestMailDispatcher_SkipsWhileBreakerOpen(t *testing.T) {
	store := memory.New(3)
	enqueue(t, store, 1)
	mailer := &fakeMailer{err: errors.New("connection refused")}
	d := newDispatcher(store, mailer, metrics.NewTestMetrics())
	d.config.MaxAttempts = 10

	for i := 0; i < 3; i++ {
		_, err := d.RunOnce(context.Background())
		require.NoError(t, err)
	}
	require.Equal(t, 3, store.ContactMessages()[0].Attempts)

	stats, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Sent+stats.Failed)
	assert.Equal(t, 3, store.ContactMessages()[0].Attempts)
}

func TestMailDispatcher_RepositoryError(t *testing.T) {
	store := memory.New(3)
	store.Fail("contacts.ProcessPending", errors.New("db down"))
	d := newDispatcher(store, &fakeMailer{}, metrics.NewTestMetrics())

	_, err := d.RunOnce(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestMailCleanupWorker(t *testing.T) {
	store := memory.New(3)
	enqueue(t, store, 2)
	d := newDispatcher(store, &fakeMailer{}, metrics.NewTestMetrics())
	_, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	enqueue(t, store, 1)

	w := NewMailCleanupWorker(store.ContactRepo(), 24*time.Hour, time.Hour, logger.Nop())
	w.now = func() time.Time { return time.Now().Add(48 * time.Hour) }

	rows, err := w.cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), rows)

	remaining := store.ContactMessages()
	require.Len(t, remaining, 1)
	assert.Equal(t, model.ContactPending, remaining[0].Status)
}
