package ai

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"

	"cdr.dev/slog"
	"cdr.dev/slog/sloggers/sloghuman"
	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
)

// OpenAIOptions configure NewOpenAI.
type OpenAIOptions struct {
	Key string
	// BaseURL overrides the API endpoint, e.g. for OpenRouter or a local
	// proxy.
	BaseURL     string
	Environment Environment
	// Transport is the underlying round tripper; http.DefaultTransport when
	// nil.
	Transport http.RoundTripper
	Logger    slog.Logger
}

type openAIClient struct {
	client    *openai.Client
	transport *attributionTransport
	baseLog   slog.Logger
	log       slog.Logger
	settings  Settings
}

var _ Client = (*openAIClient)(nil)

// NewOpenAI returns a Client backed by go-openai. The client is
// unconfigured: every Settings field is off until Configure is called.
func NewOpenAI(opts OpenAIOptions) (Client, error) {
	if opts.Key == "" {
		return nil, errors.New("openai: api key is empty")
	}

	rt := opts.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	transport := &attributionTransport{
		base: rt,
		env:  opts.Environment,
	}

	cfg := openai.DefaultConfig(opts.Key)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Transport: transport}

	c := &openAIClient{
		client:    openai.NewClientWithConfig(cfg),
		transport: transport,
		baseLog:   opts.Logger,
		log:       opts.Logger,
	}
	return c, nil
}

// OpenAIFromEnv is a Constructor reading OPENAI_API_KEY and the optional
// OPENAI_BASE_URL.
func OpenAIFromEnv(_ context.Context) (Client, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, errors.New("$OPENAI_API_KEY is not set")
	}
	return NewOpenAI(OpenAIOptions{
		Key:         key,
		BaseURL:     os.Getenv("OPENAI_BASE_URL"),
		Environment: DefaultEnvironment(),
		Logger:      slog.Make(sloghuman.Sink(os.Stderr)).Named("openai"),
	})
}

func (c *openAIClient) Configure(s Settings) {
	c.settings = s

	level := slog.LevelInfo
	if s.DebugLogging {
		level = slog.LevelDebug
	}
	c.log = c.baseLog.Leveled(level)
	c.transport.log = c.log
	c.transport.verbose = s.Verbose
}

func (c *openAIClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	req = c.prepare(ctx, req)
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		c.reportFailure(ctx, req, err)
		return resp, err
	}
	return resp, nil
}

func (c *openAIClient) CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionStream, error) {
	req = c.prepare(ctx, req)
	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		c.reportFailure(ctx, req, err)
		return nil, err
	}
	return stream, nil
}

func (c *openAIClient) prepare(ctx context.Context, req openai.ChatCompletionRequest) openai.ChatCompletionRequest {
	if !c.settings.DropParams {
		return req
	}
	dropped := dropUnsupportedParams(&req)
	if len(dropped) > 0 {
		c.log.Debug(ctx, "dropped unsupported params",
			slog.F("model", req.Model),
			slog.F("params", dropped),
		)
	}
	return req
}

func (c *openAIClient) reportFailure(ctx context.Context, req openai.ChatCompletionRequest, err error) {
	if c.settings.SuppressDebugInfo {
		return
	}
	c.log.Warn(ctx, "chat completion failed",
		slog.F("model", req.Model),
		slog.F("messages", len(req.Messages)),
		slog.F("stream", req.Stream),
		slog.Error(err),
	)
}

// isReasoningModel reports whether model belongs to the o-series, which
// rejects the classic sampling parameters.
func isReasoningModel(model string) bool {
	for _, prefix := range []string{"o1", "o3", "o4"} {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

// dropUnsupportedParams clears parameters the model would reject and returns
// their names.
func dropUnsupportedParams(req *openai.ChatCompletionRequest) []string {
	if !isReasoningModel(req.Model) {
		return nil
	}
	var dropped []string
	if req.Temperature != 0 {
		req.Temperature = 0
		dropped = append(dropped, "temperature")
	}
	if req.TopP != 0 {
		req.TopP = 0
		dropped = append(dropped, "top_p")
	}
	if req.PresencePenalty != 0 {
		req.PresencePenalty = 0
		dropped = append(dropped, "presence_penalty")
	}
	if req.FrequencyPenalty != 0 {
		req.FrequencyPenalty = 0
		dropped = append(dropped, "frequency_penalty")
	}
	if req.LogProbs {
		req.LogProbs = false
		req.TopLogProbs = 0
		dropped = append(dropped, "logprobs")
	}
	return dropped
}

// attributionTransport identifies the application to routing providers and
// tags every request with an id.
type attributionTransport struct {
	base    http.RoundTripper
	env     Environment
	log     slog.Logger
	verbose bool
}

func (t *attributionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	id := uuid.NewString()
	req.Header.Set("X-Request-Id", id)
	if t.env.SiteURL != "" {
		req.Header.Set("HTTP-Referer", t.env.SiteURL)
	}
	if t.env.AppName != "" {
		req.Header.Set("X-Title", t.env.AppName)
	}
	if t.verbose {
		t.log.Info(req.Context(), "model request",
			slog.F("request_id", id),
			slog.F("method", req.Method),
			slog.F("url", req.URL.String()),
		)
	}
	return t.base.RoundTrip(req)
}
