package llm

import (
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeTestLine(line []byte) (string, bool) {
	var chunk struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(line, &chunk); err != nil {
		return "", false
	}
	if chunk.Text == "" {
		return "", false
	}
	return chunk.Text, true
}

func collect(t *testing.T, s *Stream) []string {
	t.Helper()
	var frags []string
	for {
		frag, err := s.Recv()
		if err == io.EOF {
			return frags
		}
		require.NoError(t, err)
		frags = append(frags, frag)
	}
}

func TestStreamRecvInOrder(t *testing.T) {
	body := io.NopCloser(strings.NewReader(
		`{"text":"Hel"}` + "\n" +
			`{"text":"lo"}` + "\n" +
			`{"text":"!"}` + "\n"))
	s := NewStream(ProviderOllama, body, decodeTestLine)
	defer s.Close()

	assert.Equal(t, []string{"Hel", "lo", "!"}, collect(t, s))
}

func TestStreamSkipsMalformedLines(t *testing.T) {
	// A garbage line in the middle must not abort the stream or reorder
	// the fragments around it.
	body := io.NopCloser(strings.NewReader(
		`{"text":"one"}` + "\n" +
			`{not json at all` + "\n" +
			"\n" +
			`{"text":""}` + "\n" +
			`{"text":"two"}` + "\n"))
	s := NewStream(ProviderMistral, body, decodeTestLine)
	defer s.Close()

	assert.Equal(t, []string{"one", "two"}, collect(t, s))
}

func TestStreamEmptyBody(t *testing.T) {
	s := NewStream(ProviderGemini, io.NopCloser(strings.NewReader("")), decodeTestLine)
	defer s.Close()

	_, err := s.Recv()
	assert.Equal(t, io.EOF, err)
}

func TestStreamRecvAfterClose(t *testing.T) {
	s := NewStream(ProviderOllama, io.NopCloser(strings.NewReader(`{"text":"x"}`)), decodeTestLine)
	require.NoError(t, s.Close())

	_, err := s.Recv()
	assert.ErrorIs(t, err, ErrStreamClosed)
}

func TestStreamCloseIdempotent(t *testing.T) {
	s := NewStream(ProviderOllama, io.NopCloser(strings.NewReader("")), decodeTestLine)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
