package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"conceptforge/internal/logger"
	"conceptforge/internal/stream"
	"conceptforge/internal/wizard"
)

// CompletionClient is the wizard's HTTP client for the streamed completion
// endpoints. Run never blocks: the exchange happens in a goroutine and every
// outcome is reported through the event channel, which closes without a
// terminal event on transport failure.
type CompletionClient struct {
	baseURL string
	client  *http.Client
	log     *logger.Logger
}

// NewCompletionClient creates a new completion client. The http.Client must
// not carry a global timeout; streams are bounded by the caller's context.
func NewCompletionClient(baseURL string, log *logger.Logger) *CompletionClient {
	return &CompletionClient{
		baseURL: baseURL,
		client:  &http.Client{},
		log:     log.With("component", "completion-client"),
	}
}

var opPaths = map[wizard.Operation]string{
	wizard.OpStart:         "/v1/wizard/stage1",
	wizard.OpAnalyzeStage1: "/v1/wizard/analyze-stage1",
	wizard.OpAnalyzeStage2: "/v1/wizard/analyze-stage2",
	wizard.OpFinalize:      "/v1/wizard/finalize",
}

// Run implements wizard.CompletionService.
func (c *CompletionClient) Run(ctx context.Context, req wizard.Request) <-chan stream.Event {
	ch := make(chan stream.Event, 16)
	go func() {
		defer close(ch)
		if err := c.exchange(ctx, req, ch); err != nil {
			// No terminal frame was delivered; the machine reads the bare
			// close as a network failure.
			c.log.Warn("completion exchange failed", "op", req.Op, "error", err)
		}
	}()
	return ch
}

func (c *CompletionClient) exchange(ctx context.Context, req wizard.Request, ch chan<- stream.Event) error {
	path, ok := opPaths[req.Op]
	if !ok {
		return fmt.Errorf("unknown operation %q", req.Op)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("completion endpoint %s returned %d: %s", path, resp.StatusCode, string(errBody))
	}

	err = stream.Decode(ctx, resp.Body, func(ev stream.Event) {
		ch <- ev
	})
	var failure *stream.FailureError
	if errors.As(err, &failure) {
		// The error frame itself was already delivered; nothing more to do.
		return nil
	}
	return err
}
