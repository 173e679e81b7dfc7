package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmchat-dev/llmchat/internal/llm"
)

func geminiReply(text string) geminiResponse {
	var resp geminiResponse
	resp.Candidates = append(resp.Candidates, struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	}{})
	resp.Candidates[0].Content.Parts = []geminiPart{{Text: text}}
	return resp
}

func TestGeminiChatCompletion(t *testing.T) {
	var gotReq geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/test-model:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if key := r.URL.Query().Get("key"); key != "test-key" {
			t.Errorf("expected key query parameter, got %q", key)
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(geminiReply("Hello from Gemini!"))
	}))
	defer server.Close()

	p, err := NewGemini(remoteConfig(llm.ProviderGemini, server.URL))
	require.NoError(t, err)
	defer p.Close()

	reply, err := p.ChatCompletion(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{
			llm.NewMessage(llm.RoleUser, "Hello"),
			llm.NewMessage(llm.RoleAssistant, "Hi there"),
			llm.NewMessage(llm.RoleUser, "How are you?"),
		},
		Temperature: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello from Gemini!", reply)

	// The assistant role is relabeled "model" on the wire and the order
	// is preserved.
	require.Len(t, gotReq.Contents, 3)
	assert.Equal(t, "user", gotReq.Contents[0].Role)
	assert.Equal(t, "model", gotReq.Contents[1].Role)
	assert.Equal(t, "user", gotReq.Contents[2].Role)
	assert.Equal(t, llm.DefaultMaxTokens, gotReq.GenerationConfig.MaxOutputTokens)
}

func TestGeminiStreamCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, ":generateContent") {
			// Credential probe during implicit initialization.
			json.NewEncoder(w).Encode(geminiReply("ok"))
			return
		}
		if !strings.HasSuffix(r.URL.Path, ":streamGenerateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		// The streaming endpoint frames the chunks as one JSON array.
		chunk := func(text string) string {
			data, _ := json.Marshal(geminiReply(text))
			return string(data)
		}
		fmt.Fprintf(w, "[%s,\n", chunk("Hel"))
		fmt.Fprint(w, "garbage line\n")
		fmt.Fprintf(w, "%s]\n", chunk("lo"))
	}))
	defer server.Close()

	p, err := NewGemini(remoteConfig(llm.ProviderGemini, server.URL))
	require.NoError(t, err)
	defer p.Close()

	st, err := p.StreamCompletion(context.Background(), llm.CompletionRequest{
		Messages:    []llm.Message{llm.NewMessage(llm.RoleUser, "Hello")},
		Temperature: 0.7,
	})
	require.NoError(t, err)
	defer st.Close()

	var frags []string
	for {
		frag, err := st.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		frags = append(frags, frag)
	}
	assert.Equal(t, []string{"Hel", "lo"}, frags)
}

func TestGeminiAPIErrorCarriesStatusAndBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"API key not valid"}}`)
	}))
	defer server.Close()

	p, err := NewGemini(remoteConfig(llm.ProviderGemini, server.URL))
	require.NoError(t, err)

	err = p.ValidateCredentials(context.Background())
	require.Error(t, err)

	apiErr, ok := llm.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "API key not valid")
}

func TestGeminiEmptyCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[]}`)
	}))
	defer server.Close()

	p, err := NewGemini(remoteConfig(llm.ProviderGemini, server.URL))
	require.NoError(t, err)
	defer p.Close()

	_, err = p.ChatCompletion(context.Background(), llm.CompletionRequest{
		Messages:    []llm.Message{llm.NewMessage(llm.RoleUser, "Hello")},
		Temperature: 0.7,
	})
	require.Error(t, err)
	_, ok := llm.AsAPIError(err)
	assert.True(t, ok)
}

func TestGeminiDefaultBaseURL(t *testing.T) {
	p, err := NewGemini(remoteConfig(llm.ProviderGemini, ""))
	require.NoError(t, err)
	assert.Equal(t, geminiDefaultBaseURL, p.cfg.BaseURL)
}
