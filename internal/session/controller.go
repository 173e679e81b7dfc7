// Package session owns the lifecycle of the active provider adapter: which
// backend is selected, the single in-flight request, and the teardown that
// keeps exactly one adapter alive at a time.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/llmchat-dev/llmchat/internal/config"
	"github.com/llmchat-dev/llmchat/internal/llm"
	"github.com/llmchat-dev/llmchat/internal/llm/providers"
)

// ErrRequestInFlight is returned when a provider switch or a second send is
// attempted while a request is pending. Switching mid-request is disallowed
// outright rather than left as a race.
var ErrRequestInFlight = errors.New("session: a request is already in flight")

// Factory builds an adapter from a config. Swappable in tests.
type Factory func(cfg llm.ModelConfig) (llm.Provider, error)

// Controller holds the currently selected provider, constructs its adapter
// lazily on the first send, and discards it on failure or switch so the
// next call starts clean.
type Controller struct {
	mu sync.Mutex

	cfg     *config.Manager
	factory Factory
	logger  *slog.Logger

	provider    llm.Provider
	selected    llm.ProviderID
	temperature float64
	busy        bool
}

// New builds a controller seeded from the saved app config.
func New(cfg *config.Manager) *Controller {
	app := cfg.App()
	selected := llm.ProviderID(app.Provider)
	if !selected.Valid() {
		selected = llm.ProviderMistral
	}
	return &Controller{
		cfg:         cfg,
		factory:     providers.New,
		logger:      slog.Default(),
		selected:    selected,
		temperature: app.Temperature,
	}
}

// SetFactory replaces the adapter constructor. Intended for tests.
func (c *Controller) SetFactory(f Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factory = f
}

// Selected returns the currently selected provider.
func (c *Controller) Selected() llm.ProviderID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// Temperature returns the running temperature setting.
func (c *Controller) Temperature() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.temperature
}

// SetTemperature updates the running temperature setting.
func (c *Controller) SetTemperature(t float64) error {
	if t < 0 || t > 1 {
		return &llm.ValidationError{Reason: "temperature out of range [0, 1]"}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.temperature = t
	return nil
}

// Select switches the active backend. The current adapter is closed (close
// errors are logged as warnings, never propagated); construction of the new
// adapter is deferred to the next send. Rejected while a request is pending.
func (c *Controller) Select(id llm.ProviderID) error {
	if !id.Valid() {
		return &llm.ValidationError{Reason: "unknown provider " + string(id)}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrRequestInFlight
	}
	if id == c.selected {
		return nil
	}
	c.closeProviderLocked()
	c.selected = id
	return nil
}

// Send appends prompt as a user message to the supplied history, submits
// the full ordered history, and returns the reply text. On any failure the
// adapter is closed and discarded so the next call starts clean; there is
// no automatic retry.
func (c *Controller) Send(ctx context.Context, prompt string, history []llm.Message) (string, error) {
	p, err := c.acquire()
	if err != nil {
		return "", err
	}

	reply, err := p.ChatCompletion(ctx, c.request(prompt, history))
	c.release(err != nil)
	if err != nil {
		return "", err
	}
	return reply, nil
}

// Stream is Send with incremental delivery. The session stays busy until
// the returned stream is closed; closing after a transport failure discards
// the adapter just like a failed Send.
func (c *Controller) Stream(ctx context.Context, prompt string, history []llm.Message) (llm.TextStream, error) {
	p, err := c.acquire()
	if err != nil {
		return nil, err
	}

	st, err := p.StreamCompletion(ctx, c.request(prompt, history))
	if err != nil {
		c.release(true)
		return nil, err
	}
	return &sessionStream{stream: st, c: c}, nil
}

// ValidateCredentials checks the selected backend's credential or endpoint
// without touching the conversational state.
func (c *Controller) ValidateCredentials(ctx context.Context) error {
	p, err := c.acquire()
	if err != nil {
		return err
	}
	err = p.ValidateCredentials(ctx)
	c.release(err != nil)
	return err
}

// Close tears down the active adapter, if any.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeProviderLocked()
	return nil
}

func (c *Controller) request(prompt string, history []llm.Message) llm.CompletionRequest {
	msgs := make([]llm.Message, 0, len(history)+1)
	msgs = append(msgs, history...)
	msgs = append(msgs, llm.NewMessage(llm.RoleUser, prompt))
	return llm.CompletionRequest{Messages: msgs, Temperature: c.temperature}
}

// acquire constructs the adapter if absent and marks the session busy.
func (c *Controller) acquire() (llm.Provider, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return nil, ErrRequestInFlight
	}
	if c.provider == nil {
		mc, err := c.cfg.ModelConfig(c.selected)
		if err != nil {
			return nil, err
		}
		p, err := c.factory(mc)
		if err != nil {
			return nil, err
		}
		c.provider = p
	}
	c.busy = true
	return c.provider, nil
}

// release clears the busy flag; on failure the adapter is discarded.
func (c *Controller) release(failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	if failed {
		c.closeProviderLocked()
	}
}

func (c *Controller) closeProviderLocked() {
	if c.provider == nil {
		return
	}
	if err := c.provider.Close(); err != nil {
		c.logger.Warn("closing provider", "provider", c.selected, "error", err)
	}
	c.provider = nil
}

// sessionStream ties the stream lifetime to the controller's busy flag.
type sessionStream struct {
	stream  *llm.Stream
	c       *Controller
	failed  bool
	release sync.Once
}

func (s *sessionStream) Recv() (string, error) {
	frag, err := s.stream.Recv()
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, llm.ErrStreamClosed) {
		s.failed = true
	}
	return frag, err
}

func (s *sessionStream) Close() error {
	err := s.stream.Close()
	s.release.Do(func() { s.c.release(s.failed) })
	return err
}
