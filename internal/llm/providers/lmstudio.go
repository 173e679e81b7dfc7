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

// LMStudioProvider talks to LM Studio's local OpenAI-compatible server.
// No credential is involved; reachability of the /v1/models endpoint is the
// readiness signal.
type LMStudioProvider struct {
	cfg        llm.ModelConfig
	httpClient *http.Client
	state      connState
}

// NewLMStudio validates the config and returns an uninitialized adapter.
func NewLMStudio(cfg llm.ModelConfig) (*LMStudioProvider, error) {
	if cfg.Provider != llm.ProviderLMStudio {
		return nil, mismatch(llm.ProviderLMStudio, cfg.Provider)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &LMStudioProvider{cfg: cfg}, nil
}

func (p *LMStudioProvider) Name() string  { return "LM Studio" }
func (p *LMStudioProvider) Model() string { return p.cfg.Model }
func (p *LMStudioProvider) IsLocal() bool { return true }

// Initialize probes the model-listing endpoint to confirm the server is up.
func (p *LMStudioProvider) Initialize(ctx context.Context) error {
	switch p.state {
	case stateClosed:
		return errClosed(llm.ProviderLMStudio)
	case stateReady:
		return nil
	}
	p.httpClient = &http.Client{Timeout: requestTimeout}
	if err := p.probe(ctx); err != nil {
		p.httpClient.CloseIdleConnections()
		p.httpClient = nil
		return fmt.Errorf("lm studio initialization failed: %w", err)
	}
	p.state = stateReady
	return nil
}

func (p *LMStudioProvider) ensureReady(ctx context.Context) error {
	switch p.state {
	case stateClosed:
		return errClosed(llm.ProviderLMStudio)
	case stateUninitialized:
		return p.Initialize(ctx)
	}
	return nil
}

func (p *LMStudioProvider) probe(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/v1/models", nil)
	if err != nil {
		return err
	}
	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return transportError(llm.ProviderLMStudio, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(llm.ProviderLMStudio, resp)
	}
	return nil
}

type lmStudioMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type lmStudioRequest struct {
	Messages    []lmStudioMessage `json:"messages"`
	Model       string            `json:"model"`
	Temperature float64           `json:"temperature"`
	MaxTokens   int               `json:"max_tokens"`
	Stream      bool              `json:"stream"`
}

type lmStudioResponse struct {
	Choices []struct {
		Message lmStudioMessage `json:"message"`
	} `json:"choices"`
}

type lmStudioChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

type lmStudioModelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (p *LMStudioProvider) ChatCompletion(ctx context.Context, req llm.CompletionRequest) (string, error) {
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

	var parsed lmStudioResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", transportError(llm.ProviderLMStudio, fmt.Errorf("decode response: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return "", transportError(llm.ProviderLMStudio, errors.New("response contains no choices"))
	}
	return parsed.Choices[0].Message.Content, nil
}

func (p *LMStudioProvider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (*llm.Stream, error) {
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
	return llm.NewStream(llm.ProviderLMStudio, resp.Body, decodeLMStudioChunk), nil
}

func (p *LMStudioProvider) post(ctx context.Context, req llm.CompletionRequest, stream bool) (*http.Response, error) {
	msgs := make([]lmStudioMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, lmStudioMessage{Role: m.Role, Content: m.Content})
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = llm.DefaultMaxTokens
	}
	body := lmStudioRequest{
		Messages:    msgs,
		Model:       p.cfg.Model,
		Temperature: req.Temperature,
		MaxTokens:   maxTokens,
		Stream:      stream,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(llm.ProviderLMStudio, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, statusError(llm.ProviderLMStudio, resp)
	}
	return resp, nil
}

func decodeLMStudioChunk(line []byte) (string, bool) {
	line = bytes.TrimSpace(bytes.TrimPrefix(line, []byte("data:")))
	if len(line) == 0 || bytes.Equal(line, []byte("[DONE]")) {
		return "", false
	}
	var chunk lmStudioChunk
	if err := json.Unmarshal(line, &chunk); err != nil {
		return "", false
	}
	if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
		return "", false
	}
	return chunk.Choices[0].Delta.Content, true
}

// ListModels returns the ids of the models the server has loaded, sorted.
func (p *LMStudioProvider) ListModels(ctx context.Context) ([]string, error) {
	if err := p.ensureReady(ctx); err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/v1/models", nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(llm.ProviderLMStudio, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(llm.ProviderLMStudio, resp)
	}

	var parsed lmStudioModelList
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, transportError(llm.ProviderLMStudio, fmt.Errorf("decode model list: %w", err))
	}
	names := make([]string, 0, len(parsed.Data))
	for _, m := range parsed.Data {
		names = append(names, m.ID)
	}
	sort.Strings(names)
	return names, nil
}

// ValidateCredentials reduces to a reachability check for a local server.
func (p *LMStudioProvider) ValidateCredentials(ctx context.Context) error {
	if p.state == stateClosed {
		return errClosed(llm.ProviderLMStudio)
	}
	if p.httpClient == nil {
		p.httpClient = &http.Client{Timeout: requestTimeout}
	}
	return p.probe(ctx)
}

// Close releases the network session. Idempotent.
func (p *LMStudioProvider) Close() error {
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
