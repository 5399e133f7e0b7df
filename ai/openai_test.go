package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"cdr.dev/slog"
	"cdr.dev/slog/sloggers/sloghuman"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const completionBody = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1,
	"model": "o1-mini",
	"choices": [{
		"index": 0,
		"message": {"role": "assistant", "content": "hello"},
		"finish_reason": "stop"
	}]
}`

type recorded struct {
	mu      sync.Mutex
	headers []http.Header
	bodies  []map[string]any
}

func (r *recorded) last() (http.Header, map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.headers[len(r.headers)-1], r.bodies[len(r.bodies)-1]
}

func newServer(t *testing.T, status int, body string) (*httptest.Server, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var payload map[string]any
		assert.NoError(t, json.Unmarshal(raw, &payload))

		rec.mu.Lock()
		rec.headers = append(rec.headers, r.Header.Clone())
		rec.bodies = append(rec.bodies, payload)
		rec.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func TestNewOpenAI_EmptyKey(t *testing.T) {
	_, err := NewOpenAI(OpenAIOptions{})
	require.Error(t, err)
}

func TestOpenAI_ThroughLazy(t *testing.T) {
	srv, rec := newServer(t, http.StatusOK, completionBody)

	l := NewLazy(func(context.Context) (Client, error) {
		return NewOpenAI(OpenAIOptions{
			Key:         "sk-test",
			BaseURL:     srv.URL + "/v1/",
			Environment: DefaultEnvironment(),
		})
	})

	resp, err := l.CreateChatCompletion(context.Background(), openai.ChatCompletionRequest{
		Model:       "o1-mini",
		Temperature: 0.7,
		TopP:        0.9,
		Messages: OpenAI([]ChatMessage{
			{Role: User, Content: "hi"},
		}),
	})
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "hello", resp.Choices[0].Message.Content)

	headers, body := rec.last()
	assert.Equal(t, "Bearer sk-test", headers.Get("Authorization"))
	assert.Equal(t, SiteURL, headers.Get("HTTP-Referer"))
	assert.Equal(t, AppName, headers.Get("X-Title"))
	assert.NotEmpty(t, headers.Get("X-Request-Id"))

	// DropParams is on by default.
	assert.NotContains(t, body, "temperature")
	assert.NotContains(t, body, "top_p")
	assert.Equal(t, "o1-mini", body["model"])
}

func TestOpenAI_RequestIDsDiffer(t *testing.T) {
	srv, rec := newServer(t, http.StatusOK, completionBody)
	c, err := NewOpenAI(OpenAIOptions{Key: "sk-test", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)
	c.Configure(DefaultSettings())

	for i := 0; i < 2; i++ {
		_, err = c.CreateChatCompletion(context.Background(), openai.ChatCompletionRequest{Model: "gpt-4o"})
		require.NoError(t, err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.headers, 2)
	assert.NotEqual(t, rec.headers[0].Get("X-Request-Id"), rec.headers[1].Get("X-Request-Id"))
	// No environment, no attribution.
	assert.Empty(t, rec.headers[0].Get("X-Title"))
}

func TestOpenAI_Prepare(t *testing.T) {
	c, err := NewOpenAI(OpenAIOptions{Key: "sk-test"})
	require.NoError(t, err)
	oc := c.(*openAIClient)
	ctx := context.Background()
	req := openai.ChatCompletionRequest{Model: "o3-mini", Temperature: 1, PresencePenalty: 0.5}

	// Unconfigured clients pass parameters through.
	assert.Equal(t, req, oc.prepare(ctx, req))

	oc.Configure(DefaultSettings())
	got := oc.prepare(ctx, req)
	assert.Zero(t, got.Temperature)
	assert.Zero(t, got.PresencePenalty)
	// The caller's request is untouched.
	assert.EqualValues(t, 1, req.Temperature)
}

func TestDropUnsupportedParams(t *testing.T) {
	req := openai.ChatCompletionRequest{
		Model:            "gpt-4o",
		Temperature:      0.2,
		FrequencyPenalty: 1,
	}
	assert.Nil(t, dropUnsupportedParams(&req))
	assert.EqualValues(t, float32(0.2), req.Temperature)

	req = openai.ChatCompletionRequest{
		Model:            "o1-preview",
		Temperature:      0.2,
		FrequencyPenalty: 1,
		LogProbs:         true,
		TopLogProbs:      3,
	}
	assert.Equal(t, []string{"temperature", "frequency_penalty", "logprobs"}, dropUnsupportedParams(&req))
	assert.Zero(t, req.TopLogProbs)
}

func TestOpenAI_FailureReporting(t *testing.T) {
	errBody := `{"error": {"message": "boom", "type": "server_error"}}`

	for _, suppress := range []bool{true, false} {
		srv, _ := newServer(t, http.StatusInternalServerError, errBody)
		var buf bytes.Buffer
		c, err := NewOpenAI(OpenAIOptions{
			Key:     "sk-test",
			BaseURL: srv.URL + "/v1",
			Logger:  slog.Make(sloghuman.Sink(&buf)),
		})
		require.NoError(t, err)
		s := DefaultSettings()
		s.SuppressDebugInfo = suppress
		c.Configure(s)

		_, err = c.CreateChatCompletion(context.Background(), openai.ChatCompletionRequest{Model: "gpt-4o"})
		require.Error(t, err)
		if suppress {
			assert.NotContains(t, buf.String(), "chat completion failed")
		} else {
			assert.Contains(t, buf.String(), "chat completion failed")
		}
	}
}

func TestOpenAI_VerboseLogsRequests(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, completionBody)
	var buf bytes.Buffer
	c, err := NewOpenAI(OpenAIOptions{
		Key:     "sk-test",
		BaseURL: srv.URL + "/v1",
		Logger:  slog.Make(sloghuman.Sink(&buf)),
	})
	require.NoError(t, err)
	c.Configure(Settings{Verbose: true})

	_, err = c.CreateChatCompletion(context.Background(), openai.ChatCompletionRequest{Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "model request")
	assert.Contains(t, buf.String(), "request_id")
}
