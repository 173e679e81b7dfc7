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

// newOllamaServer mocks the local Ollama server with the endpoints the
// adapter touches: version, show, chat, and tags.
func newOllamaServer(t *testing.T, reply string, pulled bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/version", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"version":"0.5.4"}`)
	})
	mux.HandleFunc("POST /api/show", func(w http.ResponseWriter, r *http.Request) {
		if !pulled {
			http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{}`)
	})
	mux.HandleFunc("POST /api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Messages)
		assert.Equal(t, "test-model", req.Model)

		if req.Stream {
			fmt.Fprintf(w, "{\"message\":{\"role\":\"assistant\",\"content\":%q},\"done\":false}\n", reply)
			fmt.Fprint(w, "###broken###\n")
			fmt.Fprint(w, "{\"message\":{\"role\":\"assistant\",\"content\":\"!\"},\"done\":false}\n")
			fmt.Fprint(w, "{\"message\":{\"role\":\"assistant\",\"content\":\"\"},\"done\":true}\n")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"message":{"role":"assistant","content":%q},"done":true}`, reply)
	})
	mux.HandleFunc("GET /api/tags", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"models":[{"name":"b"},{"name":"a"}]}`)
	})
	return httptest.NewServer(mux)
}

func TestOllamaChatCompletion(t *testing.T) {
	server := newOllamaServer(t, "Hello from Ollama!", true)
	defer server.Close()

	p, err := NewOllama(localConfig(llm.ProviderOllama, server.URL))
	require.NoError(t, err)
	defer p.Close()

	reply, err := p.ChatCompletion(context.Background(), llm.CompletionRequest{
		Messages:    []llm.Message{llm.NewMessage(llm.RoleUser, "Hello")},
		Temperature: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello from Ollama!", reply)
}

func TestOllamaStreamSkipsMalformedLines(t *testing.T) {
	server := newOllamaServer(t, "Hello", true)
	defer server.Close()

	p, err := NewOllama(localConfig(llm.ProviderOllama, server.URL))
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
	assert.Equal(t, []string{"Hello", "!"}, frags)
}

func TestOllamaInitializeChecksModelPresence(t *testing.T) {
	server := newOllamaServer(t, "", false)
	defer server.Close()

	p, err := NewOllama(localConfig(llm.ProviderOllama, server.URL))
	require.NoError(t, err)

	err = p.Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `model "test-model" not available`)

	apiErr, ok := llm.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestOllamaListModelsSorted(t *testing.T) {
	server := newOllamaServer(t, "", true)
	defer server.Close()

	p, err := NewOllama(localConfig(llm.ProviderOllama, server.URL))
	require.NoError(t, err)
	defer p.Close()

	names, err := p.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestOllamaValidateCredentialsIsReachability(t *testing.T) {
	server := newOllamaServer(t, "", true)
	defer server.Close()

	p, err := NewOllama(localConfig(llm.ProviderOllama, server.URL))
	require.NoError(t, err)
	defer p.Close()

	assert.NoError(t, p.ValidateCredentials(context.Background()))
}

func TestOllamaClosedIsTerminal(t *testing.T) {
	p, err := NewOllama(localConfig(llm.ProviderOllama, "http://localhost:1"))
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	_, err = p.ListModels(context.Background())
	require.Error(t, err)
	assert.True(t, llm.IsValidation(err))
}
