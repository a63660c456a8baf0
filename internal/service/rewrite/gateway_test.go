package rewrite

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextlogic/remix-api/pkg/logger"
	"github.com/nextlogic/remix-api/pkg/metrics"
)

func newGateway(url string, timeout time.Duration) *GeminiGateway {
	return NewGeminiGateway(Config{
		BaseURL:         url,
		Model:           "gemini-test",
		APIKey:          "secret-key",
		Timeout:         timeout,
		Temperature:     0.7,
		MaxOutputTokens: 2000,
	}, metrics.NewTestMetrics(), logger.Nop())
}

func TestTransform_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "secret-key", r.URL.Query().Get("key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		require.Len(t, req.Contents[0].Parts, 1)
		assert.Equal(t, Prompt("linkedin", "hello world"), req.Contents[0].Parts[0].Text)
		assert.Equal(t, 0.7, req.GenerationConfig.Temperature)
		assert.Equal(t, 2000, req.GenerationConfig.MaxOutputTokens)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Rewritten!"}]}}]}`))
	}))
	defer server.Close()

	out, err := newGateway(server.URL, time.Second).Transform(context.Background(), "hello world", "linkedin")
	require.NoError(t, err)
	assert.Equal(t, "Rewritten!", out)
}

func TestTransform_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name: "non-2xx status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "quota", http.StatusTooManyRequests)
			},
			want: ErrService,
		},
		{
			name: "malformed payload",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"candidates":`))
			},
			want: ErrService,
		},
		{
			name: "no candidates",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"candidates":[]}`))
			},
			want: ErrService,
		},
		{
			name: "no parts",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"candidates":[{"content":{"parts":[]}}]}`))
			},
			want: ErrService,
		},
		{
			name: "slow service",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-time.After(time.Second):
				case <-r.Context().Done():
				}
			},
			want: ErrTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			_, err := newGateway(server.URL, 50*time.Millisecond).Transform(context.Background(), "text", "tweet")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTransform_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := newGateway(url, time.Second).Transform(context.Background(), "text", "tweet")
	assert.ErrorIs(t, err, ErrService)
	assert.NotContains(t, err.Error(), "secret-key")
}

func TestPrompt(t *testing.T) {
	assert.Equal(t, "Summarize this in 2-3 sentences:\n\nabc", Prompt("summary", "abc"))
	assert.Equal(t, "Rewrite the following content so it is clear and engaging:\n\nabc", Prompt("mystery", "abc"))

	// text containing format verbs is passed through untouched
	assert.Contains(t, Prompt("tweet", "100%s done"), "100%s done")
}
