package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	framePrefix = "data:"
	sentinel    = "[DONE]"
)

// ErrTruncated is returned when a stream ends without a complete or error
// frame. Callers treat it as an implicit network failure.
var ErrTruncated = errors.New("stream ended without terminal event")

// FailureError is raised when the stream delivers an explicit error frame.
type FailureError struct {
	Message string
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("stream failed: %s", e.Message)
}

// Parser decodes an incremental byte stream into protocol events. It keeps a
// single rolling buffer of the trailing partial line and nothing else.
// Malformed frames are swallowed as non-fatal warnings; an error frame ends
// the stream as a failure.
type Parser struct {
	buf      []byte
	warnings int
	terminal bool
	done     bool
}

func NewParser() *Parser {
	return &Parser{}
}

// Feed appends a chunk to the rolling buffer and returns every event whose
// frame completed. Once a terminal event or the sentinel has been seen all
// further bytes are discarded.
func (p *Parser) Feed(chunk []byte) []Event {
	if p.done {
		return nil
	}
	p.buf = append(p.buf, chunk...)

	var events []Event
	for {
		i := bytes.IndexByte(p.buf, '\n')
		if i < 0 {
			break
		}
		line := string(p.buf[:i])
		p.buf = p.buf[i+1:]

		ev, ok := p.parseLine(line)
		if !ok {
			continue
		}
		events = append(events, ev)
		if ev.Terminal() {
			p.terminal = true
			p.done = true
			p.buf = nil
			break
		}
	}
	return events
}

func (p *Parser) parseLine(line string) (Event, bool) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return Event{}, false
	}
	if !strings.HasPrefix(line, framePrefix) {
		return Event{}, false
	}
	data := strings.TrimSpace(strings.TrimPrefix(line, framePrefix))
	if data == sentinel {
		p.done = true
		p.buf = nil
		return Event{}, false
	}

	var ev Event
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		p.warnings++
		return Event{}, false
	}
	switch ev.Type {
	case EventPhase, EventThinking, EventText, EventInterimComplete, EventComplete, EventError:
		return ev, true
	default:
		p.warnings++
		return Event{}, false
	}
}

// Warnings is the number of frames dropped as malformed or unrecognized.
func (p *Parser) Warnings() int {
	return p.warnings
}

// Terminated reports whether a complete or error frame has been seen.
func (p *Parser) Terminated() bool {
	return p.terminal
}

// Finish must be called once the underlying stream has ended. It returns
// ErrTruncated if no terminal frame arrived.
func (p *Parser) Finish() error {
	if !p.terminal {
		return ErrTruncated
	}
	return nil
}

// Decode drains r through a Parser, calling emit for each event in receipt
// order. It returns a *FailureError for an explicit error frame, ErrTruncated
// for a stream that ends without a terminal frame, and the context error if
// ctx is cancelled mid-stream.
func Decode(ctx context.Context, r io.Reader, emit func(Event)) error {
	p := NewParser()
	buf := make([]byte, 4096)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, readErr := r.Read(buf)
		if n > 0 {
			for _, ev := range p.Feed(buf[:n]) {
				emit(ev)
				if ev.Type == EventError {
					return &FailureError{Message: ev.Message}
				}
			}
		}
		if p.Terminated() {
			return nil
		}
		if readErr == io.EOF {
			return p.Finish()
		}
		if readErr != nil {
			return readErr
		}
	}
}
