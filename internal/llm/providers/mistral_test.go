package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmchat-dev/llmchat/internal/llm"
)

// newMistralServer mocks the hosted chat-completions endpoint. Streaming
// requests get SSE-style chunks, plain requests the full JSON response.
func newMistralServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected path /chat/completions, got %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("expected bearer auth, got %q", auth)
		}

		var req mistralRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Messages)

		if req.Stream {
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", reply)
			fmt.Fprint(w, "data: this line is not json\n\n")
			fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"!\"}}]}\n\n")
			fmt.Fprint(w, "data: [DONE]\n\n")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mistralResponse{
			Choices: []struct {
				Message mistralMessage `json:"message"`
			}{{Message: mistralMessage{Role: "assistant", Content: reply}}},
		})
	}))
}

func TestMistralChatCompletion(t *testing.T) {
	server := newMistralServer(t, "Hello from Mistral!")
	defer server.Close()

	p, err := NewMistral(remoteConfig(llm.ProviderMistral, server.URL))
	require.NoError(t, err)
	defer p.Close()

	reply, err := p.ChatCompletion(context.Background(), llm.CompletionRequest{
		Messages:    []llm.Message{llm.NewMessage(llm.RoleUser, "Hello")},
		Temperature: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello from Mistral!", reply)
}

func TestMistralStreamCompletion(t *testing.T) {
	server := newMistralServer(t, "Hello")
	defer server.Close()

	p, err := NewMistral(remoteConfig(llm.ProviderMistral, server.URL))
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
	// The malformed chunk and the [DONE] sentinel are skipped; the rest
	// arrives in order.
	assert.Equal(t, []string{"Hello", "!"}, frags)
}

func TestMistralRejectsEmptyMessages(t *testing.T) {
	p, err := NewMistral(remoteConfig(llm.ProviderMistral, "http://localhost:1"))
	require.NoError(t, err)

	_, err = p.ChatCompletion(context.Background(), llm.CompletionRequest{Temperature: 0.7})
	require.Error(t, err)
	assert.True(t, llm.IsValidation(err))
}

func TestMistralAPIErrorCarriesStatusAndBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"Unauthorized"}`)
	}))
	defer server.Close()

	p, err := NewMistral(remoteConfig(llm.ProviderMistral, server.URL))
	require.NoError(t, err)

	_, err = p.ChatCompletion(context.Background(), llm.CompletionRequest{
		Messages:    []llm.Message{llm.NewMessage(llm.RoleUser, "Hello")},
		Temperature: 0.7,
	})
	require.Error(t, err)

	apiErr, ok := llm.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "Unauthorized")
}

func TestMistralValidateCredentials(t *testing.T) {
	server := newMistralServer(t, "ok")
	defer server.Close()

	p, err := NewMistral(remoteConfig(llm.ProviderMistral, server.URL))
	require.NoError(t, err)
	defer p.Close()

	assert.NoError(t, p.ValidateCredentials(context.Background()))
}

func TestMistralInitializeRollsBackOnBadKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer server.Close()

	p, err := NewMistral(remoteConfig(llm.ProviderMistral, server.URL))
	require.NoError(t, err)

	require.Error(t, p.Initialize(context.Background()))
	assert.Equal(t, stateUninitialized, p.state)
}

func TestMistralClosedIsTerminal(t *testing.T) {
	p, err := NewMistral(remoteConfig(llm.ProviderMistral, ""))
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	_, err = p.ChatCompletion(context.Background(), llm.CompletionRequest{
		Messages:    []llm.Message{llm.NewMessage(llm.RoleUser, "Hello")},
		Temperature: 0.7,
	})
	require.Error(t, err)
	assert.True(t, llm.IsValidation(err))

	assert.Error(t, p.Initialize(context.Background()))
}

func TestMistralDefaultBaseURL(t *testing.T) {
	p, err := NewMistral(remoteConfig(llm.ProviderMistral, ""))
	require.NoError(t, err)
	assert.Equal(t, mistralDefaultBaseURL, p.cfg.BaseURL)
}
