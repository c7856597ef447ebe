package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaostheorist/chaos/internal/domain"
)

type completionRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func fakeOpenAI(t *testing.T, status int, reply string, seen *completionRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"upstream down","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIProvider_SendsHistoryAndInstruction(t *testing.T) {
	var seen completionRequest
	srv := fakeOpenAI(t, http.StatusOK, "Volatility is elevated.", &seen)
	p := NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1"}, nil)

	history := []domain.ChatMessage{
		{Sender: domain.SenderUser, Text: "status?"},
		{Sender: domain.SenderAI, Text: "stable"},
	}
	got, err := p.Complete(context.Background(), history, "and now?", "Be concise.")
	require.NoError(t, err)
	assert.Equal(t, "Volatility is elevated.", got)

	assert.Equal(t, "gpt-4o-mini", seen.Model)
	require.Len(t, seen.Messages, 4)
	roles := []string{seen.Messages[0].Role, seen.Messages[1].Role, seen.Messages[2].Role, seen.Messages[3].Role}
	assert.Equal(t, []string{"system", "user", "assistant", "user"}, roles)
	assert.Equal(t, "and now?", seen.Messages[3].Content)
}

func TestOpenAIProvider_ServerErrorIsAIService(t *testing.T) {
	srv := fakeOpenAI(t, http.StatusInternalServerError, "", nil)
	p := NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1"}, nil)

	_, err := p.Complete(context.Background(), nil, "hi", "")
	assert.ErrorIs(t, err, domain.ErrAIService)
}

func TestDemoProvider(t *testing.T) {
	got, err := DemoProvider{}.Complete(context.Background(), nil, "rates?", "")
	require.NoError(t, err)
	assert.Equal(t, DemoReplyPrefix+"rates?", got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = DemoProvider{Delay: time.Hour}.Complete(ctx, nil, "x", "")
	assert.ErrorIs(t, err, context.Canceled)
}

type flaky struct {
	calls int
	err   error
}

func (f *flaky) Name() string { return "flaky" }

func (f *flaky) Complete(ctx context.Context, _ []domain.ChatMessage, text, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "ok: " + text, nil
}

func TestGuard_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &flaky{err: errors.New("503")}
	g := NewGuard(inner, GuardConfig{FailureThreshold: 2, OpenTimeout: time.Hour}, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := g.Complete(ctx, nil, "x", "")
		require.ErrorIs(t, err, domain.ErrAIService)
	}
	assert.False(t, g.Healthy())

	_, err := g.Complete(ctx, nil, "x", "")
	require.ErrorIs(t, err, domain.ErrAIService)
	assert.Equal(t, 2, inner.calls, "open breaker must not call the provider")
}

func TestGuard_PassesThrough(t *testing.T) {
	g := NewGuard(&flaky{}, GuardConfig{RequestsPerMinute: 600, Burst: 5}, nil)
	got, err := g.Complete(context.Background(), nil, "x", "")
	require.NoError(t, err)
	assert.Equal(t, "ok: x", got)
	assert.True(t, g.Healthy())
	assert.Equal(t, "flaky", g.Name())
}

func TestGuard_LimiterHonoursContext(t *testing.T) {
	g := NewGuard(&flaky{}, GuardConfig{RequestsPerMinute: 1}, nil)
	ctx := context.Background()
	_, err := g.Complete(ctx, nil, "first", "")
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = g.Complete(short, nil, "second", "")
	assert.ErrorIs(t, err, domain.ErrAIService)
}
