package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Writer emits protocol frames onto a chunked HTTP response, flushing after
// every frame so events arrive as they are produced.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter prepares w for event streaming and writes the response headers.
func NewWriter(w http.ResponseWriter) *Writer {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: flusher}
}

// Write encodes one event as a data frame.
func (s *Writer) Write(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "%s %s\n", framePrefix, payload); err != nil {
		return err
	}
	s.flush()
	return nil
}

// Error emits a terminal error frame.
func (s *Writer) Error(message string) error {
	return s.Write(Event{Type: EventError, Message: message})
}

// Close writes the sentinel line ending the stream.
func (s *Writer) Close() error {
	if _, err := fmt.Fprintf(s.w, "%s %s\n", framePrefix, sentinel); err != nil {
		return err
	}
	s.flush()
	return nil
}

func (s *Writer) flush() {
	if s.flusher != nil {
		s.flusher.Flush()
	}
}
