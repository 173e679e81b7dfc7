package llm

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"log/slog"
)

// ErrStreamClosed is returned by Recv after Close.
var ErrStreamClosed = errors.New("stream closed")

// DecodeFunc extracts the text fragment from one line of a backend's
// line-delimited streaming response. ok is false when the line carries no
// text: a keep-alive, a done sentinel, an empty delta, or malformed JSON.
type DecodeFunc func(line []byte) (fragment string, ok bool)

// Stream is a finite sequence of reply fragments read lazily from the
// backend's response body. It ends with io.EOF when the backend closes the
// connection and cannot be restarted. Malformed lines are logged and
// skipped; they never abort the stream.
type Stream struct {
	provider ProviderID
	body     io.ReadCloser
	scanner  *bufio.Scanner
	decode   DecodeFunc
	closed   bool
}

// NewStream wraps a line-delimited response body. The body is owned by the
// stream and released by Close.
func NewStream(provider ProviderID, body io.ReadCloser, decode DecodeFunc) *Stream {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Stream{provider: provider, body: body, scanner: sc, decode: decode}
}

// Recv returns the next text fragment, or io.EOF once the backend has
// closed the connection.
func (s *Stream) Recv() (string, error) {
	if s.closed {
		return "", ErrStreamClosed
	}
	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		frag, ok := s.decode(line)
		if !ok {
			slog.Debug("skipping undecodable stream line",
				"provider", s.provider, "line", string(line))
			continue
		}
		return frag, nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", &APIError{Provider: s.provider, Err: err}
	}
	return "", io.EOF
}

// Close releases the underlying response body. Safe to call more than once.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
