package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// sseWriter wraps an http.ResponseWriter for streaming the chat frame
// grammar to a widget client.
type sseWriter struct {
	w       io.Writer
	flusher http.Flusher
}

// newSSEWriter sets the streaming headers and verifies flusher support.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flusher interface")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	return &sseWriter{w: w, flusher: flusher}, nil
}

// WriteMeta emits a comment-framed metadata line, ":<name>:<json>\n".
// Plain SSE parsers treat it as a comment; the widget decoder understands
// the :articles: form as an out-of-band article list.
func (s *sseWriter) WriteMeta(name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, ":%s:%s\n", name, data); err != nil {
		return fmt.Errorf("write metadata line: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// Relay copies the upstream byte stream to the client, flushing after
// every read so frames reach the widget as they are produced. Frame
// boundaries are preserved as-is; reassembly is the decoder's job.
func (s *sseWriter) Relay(r io.Reader) error {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := s.w.Write(buf[:n]); werr != nil {
				return fmt.Errorf("write to client: %w", werr)
			}
			s.flusher.Flush()
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read upstream: %w", err)
		}
	}
}
