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

const geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1"

// GeminiProvider talks to the hosted Google Gemini API. The key is passed
// as a query parameter and the "assistant" role is relabeled "model" on the
// wire, which is the vocabulary this backend expects.
type GeminiProvider struct {
	cfg        llm.ModelConfig
	httpClient *http.Client
	state      connState
}

// NewGemini validates the config and returns an uninitialized adapter.
func NewGemini(cfg llm.ModelConfig) (*GeminiProvider, error) {
	if cfg.Provider != llm.ProviderGemini {
		return nil, mismatch(llm.ProviderGemini, cfg.Provider)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = geminiDefaultBaseURL
	}
	return &GeminiProvider{cfg: cfg}, nil
}

func (p *GeminiProvider) Name() string  { return "Google Gemini" }
func (p *GeminiProvider) Model() string { return p.cfg.Model }
func (p *GeminiProvider) IsLocal() bool { return false }

// Initialize binds an HTTP client and confirms the key with a real request.
func (p *GeminiProvider) Initialize(ctx context.Context) error {
	switch p.state {
	case stateClosed:
		return errClosed(llm.ProviderGemini)
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

func (p *GeminiProvider) ensureReady(ctx context.Context) error {
	switch p.state {
	case stateClosed:
		return errClosed(llm.ProviderGemini)
	case stateUninitialized:
		return p.Initialize(ctx)
	}
	return nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (p *GeminiProvider) ChatCompletion(ctx context.Context, req llm.CompletionRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if err := p.ensureReady(ctx); err != nil {
		return "", err
	}

	resp, err := p.post(ctx, req, "generateContent")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", transportError(llm.ProviderGemini, fmt.Errorf("decode response: %w", err))
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", transportError(llm.ProviderGemini, errors.New("no candidates in response"))
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

func (p *GeminiProvider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (*llm.Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := p.ensureReady(ctx); err != nil {
		return nil, err
	}

	resp, err := p.post(ctx, req, "streamGenerateContent")
	if err != nil {
		return nil, err
	}
	return llm.NewStream(llm.ProviderGemini, resp.Body, decodeGeminiChunk), nil
}

// post issues one generateContent-family request and returns the response
// with a verified 200 status. The caller owns resp.Body.
func (p *GeminiProvider) post(ctx context.Context, req llm.CompletionRequest, method string) (*http.Response, error) {
	contents := make([]geminiContent, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := "user"
		if m.Role == llm.RoleAssistant {
			role = "model"
		}
		contents = append(contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: m.Content}},
		})
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = llm.DefaultMaxTokens
	}
	body := geminiRequest{
		Contents: contents,
		GenerationConfig: geminiGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: maxTokens,
		},
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/models/%s:%s?key=%s", p.cfg.BaseURL, p.cfg.Model, method, p.cfg.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(llm.ProviderGemini, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, statusError(llm.ProviderGemini, resp)
	}
	return resp, nil
}

func decodeGeminiChunk(line []byte) (string, bool) {
	// The stream arrives as a JSON array split across lines; strip the
	// framing so each candidate object decodes on its own.
	line = bytes.TrimSpace(bytes.Trim(line, "[],"))
	if len(line) == 0 {
		return "", false
	}
	var chunk geminiResponse
	if err := json.Unmarshal(line, &chunk); err != nil {
		return "", false
	}
	if len(chunk.Candidates) == 0 || len(chunk.Candidates[0].Content.Parts) == 0 {
		return "", false
	}
	text := chunk.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return "", false
	}
	return text, true
}

// ValidateCredentials issues a short real completion to prove the key works.
func (p *GeminiProvider) ValidateCredentials(ctx context.Context) error {
	probe := llm.CompletionRequest{
		Messages:    []llm.Message{llm.NewMessage(llm.RoleUser, "connection test")},
		Temperature: 0.1,
		MaxTokens:   10,
	}
	if _, err := p.ChatCompletion(ctx, probe); err != nil {
		return fmt.Errorf("gemini credential check failed: %w", err)
	}
	return nil
}

// Close releases the network session. Idempotent.
func (p *GeminiProvider) Close() error {
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
