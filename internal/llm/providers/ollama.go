package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/llmchat-dev/llmchat/internal/llm"
)

// OllamaProvider talks to a local Ollama server. Initialize checks both
// that the server answers and that the configured model is actually pulled.
type OllamaProvider struct {
	cfg        llm.ModelConfig
	httpClient *http.Client
	state      connState
}

// NewOllama validates the config and returns an uninitialized adapter.
func NewOllama(cfg llm.ModelConfig) (*OllamaProvider, error) {
	if cfg.Provider != llm.ProviderOllama {
		return nil, mismatch(llm.ProviderOllama, cfg.Provider)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &OllamaProvider{cfg: cfg}, nil
}

func (p *OllamaProvider) Name() string  { return "Ollama" }
func (p *OllamaProvider) Model() string { return p.cfg.Model }
func (p *OllamaProvider) IsLocal() bool { return true }

// Initialize probes the version endpoint and verifies model presence.
func (p *OllamaProvider) Initialize(ctx context.Context) error {
	switch p.state {
	case stateClosed:
		return errClosed(llm.ProviderOllama)
	case stateReady:
		return nil
	}
	p.httpClient = &http.Client{Timeout: requestTimeout}
	if err := p.probe(ctx); err != nil {
		p.httpClient.CloseIdleConnections()
		p.httpClient = nil
		return fmt.Errorf("ollama initialization failed: %w", err)
	}
	p.state = stateReady
	return nil
}

func (p *OllamaProvider) ensureReady(ctx context.Context) error {
	switch p.state {
	case stateClosed:
		return errClosed(llm.ProviderOllama)
	case stateUninitialized:
		return p.Initialize(ctx)
	}
	return nil
}

func (p *OllamaProvider) probe(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/api/version", nil)
	if err != nil {
		return err
	}
	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return transportError(llm.ProviderOllama, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &llm.APIError{Provider: llm.ProviderOllama, StatusCode: resp.StatusCode, Body: "version endpoint unavailable"}
	}

	// The server is up; now confirm the model is pulled.
	data, err := json.Marshal(map[string]string{"name": p.cfg.Model})
	if err != nil {
		return err
	}
	showReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/api/show", bytes.NewReader(data))
	if err != nil {
		return err
	}
	showReq.Header.Set("Content-Type", "application/json")

	showResp, err := p.httpClient.Do(showReq)
	if err != nil {
		return transportError(llm.ProviderOllama, err)
	}
	defer showResp.Body.Close()
	if showResp.StatusCode != http.StatusOK {
		return fmt.Errorf("model %q not available: %w", p.cfg.Model, statusError(llm.ProviderOllama, showResp))
	}
	return nil
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaRequest struct {
	Model    string                 `json:"model"`
	Messages []ollamaMessage        `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type ollamaResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

type ollamaTagList struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

func (p *OllamaProvider) ChatCompletion(ctx context.Context, req llm.CompletionRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if err := p.ensureReady(ctx); err != nil {
		return "", err
	}

	resp, err := p.post(ctx, req, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", transportError(llm.ProviderOllama, fmt.Errorf("decode response: %w", err))
	}
	if parsed.Message.Content == "" && parsed.Message.Role == "" {
		return "", transportError(llm.ProviderOllama, errors.New("response carries no message"))
	}
	return parsed.Message.Content, nil
}

func (p *OllamaProvider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (*llm.Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := p.ensureReady(ctx); err != nil {
		return nil, err
	}

	resp, err := p.post(ctx, req, true)
	if err != nil {
		return nil, err
	}
	return llm.NewStream(llm.ProviderOllama, resp.Body, decodeOllamaChunk), nil
}

func (p *OllamaProvider) post(ctx context.Context, req llm.CompletionRequest, stream bool) (*http.Response, error) {
	msgs := make([]ollamaMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, ollamaMessage{Role: m.Role, Content: m.Content})
	}

	options := map[string]interface{}{"temperature": req.Temperature}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	body := ollamaRequest{
		Model:    p.cfg.Model,
		Messages: msgs,
		Stream:   stream,
		Options:  options,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(llm.ProviderOllama, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, statusError(llm.ProviderOllama, resp)
	}
	return resp, nil
}

func decodeOllamaChunk(line []byte) (string, bool) {
	var chunk ollamaResponse
	if err := json.Unmarshal(line, &chunk); err != nil {
		return "", false
	}
	if chunk.Message.Content == "" {
		return "", false
	}
	return chunk.Message.Content, true
}

// ListModels returns the names of the locally pulled models, sorted.
func (p *OllamaProvider) ListModels(ctx context.Context) ([]string, error) {
	if p.state == stateClosed {
		return nil, errClosed(llm.ProviderOllama)
	}
	if p.httpClient == nil {
		p.httpClient = &http.Client{Timeout: requestTimeout}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(llm.ProviderOllama, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(llm.ProviderOllama, resp)
	}

	var parsed ollamaTagList
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, transportError(llm.ProviderOllama, fmt.Errorf("decode tag list: %w", err))
	}
	names := make([]string, 0, len(parsed.Models))
	for _, m := range parsed.Models {
		names = append(names, m.Name)
	}
	sort.Strings(names)
	return names, nil
}

// ValidateCredentials reduces to a reachability check for a local server.
func (p *OllamaProvider) ValidateCredentials(ctx context.Context) error {
	if p.state == stateClosed {
		return errClosed(llm.ProviderOllama)
	}
	if p.httpClient == nil {
		p.httpClient = &http.Client{Timeout: requestTimeout}
	}
	return p.probe(ctx)
}

// Close releases the network session. Idempotent.
func (p *OllamaProvider) Close() error {
	if p.state == stateClosed {
		return nil
	}
	if p.httpClient != nil {
		p.httpClient.CloseIdleConnections()
		p.httpClient = nil
	}
	p.state = stateClosed
	return nil
}
