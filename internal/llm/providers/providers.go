// Package providers implements the llm.Provider capability set for each
// supported backend: Mistral and Gemini over their hosted APIs, LM Studio
// and Ollama over local HTTP servers. Each adapter is a self-contained
// request/response mapping; New dispatches on the provider tag.
package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/llmchat-dev/llmchat/internal/llm"
)

const requestTimeout = 90 * time.Second

// New constructs the adapter for cfg's provider tag. A config tagged for an
// unknown provider, or one failing validation, is rejected here rather than
// deferred to first use.
func New(cfg llm.ModelConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case llm.ProviderMistral:
		return NewMistral(cfg)
	case llm.ProviderGemini:
		return NewGemini(cfg)
	case llm.ProviderLMStudio:
		return NewLMStudio(cfg)
	case llm.ProviderOllama:
		return NewOllama(cfg)
	default:
		return nil, &llm.ValidationError{Reason: fmt.Sprintf("unknown provider %q", cfg.Provider)}
	}
}

// ModelLister is implemented by backends that expose a model inventory.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// connState tracks the lifecycle of one adapter instance. closed is
// terminal; a fresh instance is required to reconnect.
type connState int

const (
	stateUninitialized connState = iota
	stateReady
	stateClosed
)

func errClosed(id llm.ProviderID) error {
	return &llm.ValidationError{Reason: fmt.Sprintf("%s: provider is closed", id)}
}

// statusError drains the response body into an APIError carrying the status
// code and body text. The caller still owns resp.Body.
func statusError(id llm.ProviderID, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return &llm.APIError{
		Provider:   id,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

// transportError wraps DNS, timeout, and connection-level failures so they
// surface as the same error kind as HTTP-status failures, with the cause
// preserved.
func transportError(id llm.ProviderID, err error) error {
	return &llm.APIError{Provider: id, Err: err}
}

func mismatch(want, got llm.ProviderID) error {
	return &llm.ValidationError{Reason: fmt.Sprintf("config tagged %q given to the %s provider", got, want)}
}
