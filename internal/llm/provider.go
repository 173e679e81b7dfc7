package llm

import "context"

// DefaultMaxTokens is used when a request leaves MaxTokens unset and the
// backend's wire format requires an explicit value.
const DefaultMaxTokens = 2048

// CompletionRequest is the uniform input to every backend: the full ordered
// history, a temperature in [0,1], and an optional output token cap
// (0 lets the backend pick its own default).
type CompletionRequest struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Validate enforces the caller-side constraints shared by all backends.
func (r CompletionRequest) Validate() error {
	if len(r.Messages) == 0 {
		return validationf("message list must not be empty")
	}
	if r.Temperature < 0 || r.Temperature > 1 {
		return validationf("temperature %.2f out of range [0, 1]", r.Temperature)
	}
	if r.MaxTokens < 0 {
		return validationf("max tokens must not be negative")
	}
	return nil
}

// Provider is the uniform capability set over one chat-completion backend.
//
// An instance moves through uninitialized → ready (after Initialize) →
// closed (after Close, terminal). Completion calls on an uninitialized
// provider initialize it implicitly; a closed provider rejects everything
// and a fresh instance is required to reconnect.
type Provider interface {
	// Name is the human-readable backend name.
	Name() string

	// Model is the backend-specific model identifier in use.
	Model() string

	// IsLocal reports whether the backend is a locally served model.
	IsLocal() bool

	// Initialize establishes whatever connection state the backend needs:
	// an authenticated HTTP client for hosted APIs, a reachability probe
	// for local servers. It fails if the backend is unreachable or rejects
	// the configuration.
	Initialize(ctx context.Context) error

	// ChatCompletion submits the ordered history in the backend's wire
	// format and returns the extracted reply text.
	ChatCompletion(ctx context.Context, req CompletionRequest) (string, error)

	// StreamCompletion is ChatCompletion with incremental delivery. The
	// returned stream is finite and not restartable; the caller must
	// close it.
	StreamCompletion(ctx context.Context, req CompletionRequest) (*Stream, error)

	// ValidateCredentials performs a minimal real request to confirm the
	// configured credential or endpoint actually works. nil means valid.
	ValidateCredentials(ctx context.Context) error

	// Close releases the network session if one is held. Calling it more
	// than once is a no-op.
	Close() error
}

// TextStream is the read side of a streamed reply, satisfied by *Stream and
// by wrappers that attach lifecycle bookkeeping.
type TextStream interface {
	Recv() (string, error)
	Close() error
}
