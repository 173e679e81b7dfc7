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

// newLMStudioServer mocks the local OpenAI-compatible server: the model
// inventory on GET and chat completions on POST.
func newLMStudioServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/models", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"id":"zeta"},{"id":"alpha"},{"id":"mid"}]}`)
	})
	mux.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req lmStudioRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Messages)

		if req.Stream {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", reply)
			fmt.Fprint(w, "data: [DONE]\n\n")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"choices":[{"message":{"role":"assistant","content":%q}}]}`, reply)
	})
	return httptest.NewServer(mux)
}

func TestLMStudioChatCompletion(t *testing.T) {
	server := newLMStudioServer(t, "Hello from LM Studio!")
	defer server.Close()

	p, err := NewLMStudio(localConfig(llm.ProviderLMStudio, server.URL))
	require.NoError(t, err)
	defer p.Close()

	reply, err := p.ChatCompletion(context.Background(), llm.CompletionRequest{
		Messages:    []llm.Message{llm.NewMessage(llm.RoleUser, "Hello")},
		Temperature: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello from LM Studio!", reply)
}

func TestLMStudioStreamCompletion(t *testing.T) {
	server := newLMStudioServer(t, "Hello")
	defer server.Close()

	p, err := NewLMStudio(localConfig(llm.ProviderLMStudio, server.URL))
	require.NoError(t, err)
	defer p.Close()

	st, err := p.StreamCompletion(context.Background(), llm.CompletionRequest{
		Messages:    []llm.Message{llm.NewMessage(llm.RoleUser, "Hello")},
		Temperature: 0.7,
	})
	require.NoError(t, err)
	defer st.Close()

	frag, err := st.Recv()
	require.NoError(t, err)
	assert.Equal(t, "Hello", frag)

	_, err = st.Recv()
	assert.Equal(t, io.EOF, err)
}

func TestLMStudioListModelsSorted(t *testing.T) {
	server := newLMStudioServer(t, "")
	defer server.Close()

	p, err := NewLMStudio(localConfig(llm.ProviderLMStudio, server.URL))
	require.NoError(t, err)
	defer p.Close()

	names, err := p.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}

func TestLMStudioInitializeUnreachable(t *testing.T) {
	server := httptest.NewServer(nil)
	server.Close() // reachable address, refused connection

	p, err := NewLMStudio(localConfig(llm.ProviderLMStudio, server.URL))
	require.NoError(t, err)

	err = p.Initialize(context.Background())
	require.Error(t, err)
	_, ok := llm.AsAPIError(err)
	assert.True(t, ok)
	assert.Equal(t, stateUninitialized, p.state)
}

func TestLMStudioValidateCredentialsIsReachability(t *testing.T) {
	server := newLMStudioServer(t, "")
	defer server.Close()

	p, err := NewLMStudio(localConfig(llm.ProviderLMStudio, server.URL))
	require.NoError(t, err)
	defer p.Close()

	assert.NoError(t, p.ValidateCredentials(context.Background()))
}

func TestLMStudioClosedIsTerminal(t *testing.T) {
	p, err := NewLMStudio(localConfig(llm.ProviderLMStudio, "http://localhost:1"))
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	err = p.ValidateCredentials(context.Background())
	require.Error(t, err)
	assert.True(t, llm.IsValidation(err))
}
