package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/llmchat-dev/llmchat/internal/llm"
)

const mistralDefaultBaseURL = "https://codestral.mistral.ai/v1"

// MistralProvider talks to the hosted Mistral chat-completions API with
// bearer-token auth.
type MistralProvider struct {
	cfg        llm.ModelConfig
	httpClient *http.Client
	state      connState
}

// NewMistral validates the config and returns an uninitialized adapter.
func NewMistral(cfg llm.ModelConfig) (*MistralProvider, error) {
	if cfg.Provider != llm.ProviderMistral {
		return nil, mismatch(llm.ProviderMistral, cfg.Provider)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = mistralDefaultBaseURL
	}
	return &MistralProvider{cfg: cfg}, nil
}

func (p *MistralProvider) Name() string  { return "Mistral" }
func (p *MistralProvider) Model() string { return p.cfg.Model }
func (p *MistralProvider) IsLocal() bool { return false }

// Initialize binds an HTTP client and confirms the credential with a real
// request. On failure the adapter rolls back to uninitialized.
func (p *MistralProvider) Initialize(ctx context.Context) error {
	switch p.state {
	case stateClosed:
		return errClosed(llm.ProviderMistral)
	case stateReady:
		return nil
	}
	p.httpClient = &http.Client{Timeout: requestTimeout}
	p.state = stateReady
	if err := p.ValidateCredentials(ctx); err != nil {
		p.httpClient.CloseIdleConnections()
		p.httpClient = nil
		p.state = stateUninitialized
		return err
	}
	return nil
}

func (p *MistralProvider) ensureReady(ctx context.Context) error {
	switch p.state {
	case stateClosed:
		return errClosed(llm.ProviderMistral)
	case stateUninitialized:
		return p.Initialize(ctx)
	}
	return nil
}

type mistralMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type mistralRequest struct {
	Model       string           `json:"model"`
	Messages    []mistralMessage `json:"messages"`
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Stream      bool             `json:"stream,omitempty"`
}

type mistralResponse struct {
	Choices []struct {
		Message mistralMessage `json:"message"`
	} `json:"choices"`
}

type mistralChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (p *MistralProvider) ChatCompletion(ctx context.Context, req llm.CompletionRequest) (string, error) {
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

	var parsed mistralResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", transportError(llm.ProviderMistral, fmt.Errorf("decode response: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return "", transportError(llm.ProviderMistral, errors.New("response contains no choices"))
	}
	return parsed.Choices[0].Message.Content, nil
}

func (p *MistralProvider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (*llm.Stream, error) {
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
	return llm.NewStream(llm.ProviderMistral, resp.Body, decodeMistralChunk), nil
}

// post issues one chat-completions request and returns the response with a
// verified 200 status. The caller owns resp.Body.
func (p *MistralProvider) post(ctx context.Context, req llm.CompletionRequest, stream bool) (*http.Response, error) {
	msgs := make([]mistralMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, mistralMessage{Role: m.Role, Content: m.Content})
	}

	body := mistralRequest{
		Model:       p.cfg.Model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(llm.ProviderMistral, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, statusError(llm.ProviderMistral, resp)
	}
	return resp, nil
}

// decodeMistralChunk handles the newline-delimited SSE-style chunks: an
// optional "data:" prefix, a "[DONE]" sentinel, and delta payloads.
func decodeMistralChunk(line []byte) (string, bool) {
	line = bytes.TrimSpace(bytes.TrimPrefix(line, []byte("data:")))
	if len(line) == 0 || bytes.Equal(line, []byte("[DONE]")) {
		return "", false
	}
	var chunk mistralChunk
	if err := json.Unmarshal(line, &chunk); err != nil {
		return "", false
	}
	if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
		return "", false
	}
	return chunk.Choices[0].Delta.Content, true
}

// ValidateCredentials issues a short real completion to prove the key works.
func (p *MistralProvider) ValidateCredentials(ctx context.Context) error {
	probe := llm.CompletionRequest{
		Messages:    []llm.Message{llm.NewMessage(llm.RoleUser, "connection test")},
		Temperature: 0.1,
		MaxTokens:   10,
	}
	if _, err := p.ChatCompletion(ctx, probe); err != nil {
		return fmt.Errorf("mistral credential check failed: %w", err)
	}
	return nil
}

// Close releases the network session. Idempotent.
func (p *MistralProvider) Close() error {
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
