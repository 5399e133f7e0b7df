package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"cdr.dev/slog"
	"github.com/sashabaranov/go-openai"
)

// Client is the part of the model client that callers of this package use.
type Client interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionStream, error)
	// Configure is called exactly once, right after construction and before
	// any request is forwarded.
	Configure(Settings)
}

// Constructor builds the underlying client. It may be expensive.
type Constructor func(ctx context.Context) (Client, error)

// Settings are the overrides applied to a freshly constructed client, in
// field order.
type Settings struct {
	// SuppressDebugInfo hides the request context that is otherwise logged
	// alongside failed requests.
	SuppressDebugInfo bool
	// Verbose logs every forwarded request.
	Verbose bool
	// DropParams silently removes request parameters the target model does
	// not accept instead of passing them to the API.
	DropParams bool
	// DebugLogging enables the client's debug log level.
	DebugLogging bool
}

func DefaultSettings() Settings {
	return Settings{
		SuppressDebugInfo: true,
		Verbose:           false,
		DropParams:        true,
		DebugLogging:      false,
	}
}

// ClientUnavailableError is returned when the underlying client could not be
// constructed. The handle stays unconstructed, so the next call retries.
type ClientUnavailableError struct {
	Err error
}

func (e *ClientUnavailableError) Error() string {
	return fmt.Sprintf("model client unavailable: %v", e.Err)
}

func (e *ClientUnavailableError) Unwrap() error {
	return e.Err
}

// Lazy defers construction of a Client until the first request. It is safe
// for concurrent use; construction and configuration run at most once per
// successful attempt.
type Lazy struct {
	construct Constructor
	settings  Settings
	log       slog.Logger

	mu     sync.Mutex
	client atomic.Pointer[Client]
}

type LazyOption func(*Lazy)

func WithSettings(s Settings) LazyOption {
	return func(l *Lazy) {
		l.settings = s
	}
}

func WithLogger(log slog.Logger) LazyOption {
	return func(l *Lazy) {
		l.log = log
	}
}

func NewLazy(construct Constructor, opts ...LazyOption) *Lazy {
	l := &Lazy{
		construct: construct,
		settings:  DefaultSettings(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Constructed reports whether the underlying client exists. It never
// triggers construction.
func (l *Lazy) Constructed() bool {
	return l.client.Load() != nil
}

// ErrConstructed is returned by Reconfigure once the client exists.
var ErrConstructed = errors.New("model client already constructed")

// Settings returns the overrides applied on construction.
func (l *Lazy) Settings() Settings {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.settings
}

// Reconfigure applies opts to a handle that has not been constructed yet,
// e.g. from command-line flags. Once the client exists its configuration is
// fixed and ErrConstructed is returned.
func (l *Lazy) Reconfigure(opts ...LazyOption) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.client.Load() != nil {
		return ErrConstructed
	}
	for _, opt := range opts {
		opt(l)
	}
	return nil
}

// Client returns the underlying client, constructing and configuring it on
// first use.
func (l *Lazy) Client(ctx context.Context) (Client, error) {
	if c := l.client.Load(); c != nil {
		return *c, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Another caller may have finished while we waited.
	if c := l.client.Load(); c != nil {
		return *c, nil
	}

	l.log.Debug(ctx, "constructing model client")
	c, err := l.construct(ctx)
	if err != nil {
		l.log.Warn(ctx, "model client construction failed", slog.Error(err))
		return nil, &ClientUnavailableError{Err: err}
	}
	if c == nil {
		return nil, &ClientUnavailableError{Err: fmt.Errorf("constructor returned nil client")}
	}
	c.Configure(l.settings)
	l.client.Store(&c)
	l.log.Debug(ctx, "model client ready",
		slog.F("drop_params", l.settings.DropParams),
		slog.F("debug_logging", l.settings.DebugLogging),
	)
	return c, nil
}

func (l *Lazy) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	c, err := l.Client(ctx)
	if err != nil {
		return openai.ChatCompletionResponse{}, err
	}
	return c.CreateChatCompletion(ctx, req)
}

func (l *Lazy) CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionStream, error) {
	c, err := l.Client(ctx)
	if err != nil {
		return nil, err
	}
	return c.CreateChatCompletionStream(ctx, req)
}

// Default is the process-wide handle. It builds a go-openai client from the
// environment on first use.
var Default = NewLazy(OpenAIFromEnv)
