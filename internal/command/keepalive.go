package command

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// MsgSiteNotReady starts the message of a keep-alive run that gave up.
const MsgSiteNotReady = "Site did not become ready"

// defaultPollInterval is the wait between keep-alive attempts.
const defaultPollInterval = 5 * time.Second

// KeepAliveProcessor wakes a sleeping hosted application by requesting
// "--url" until it answers with a 2xx status or the context ends.
type KeepAliveProcessor struct {
	client   *http.Client
	interval time.Duration
}

// NewKeepAliveProcessor creates a processor polling every interval. A
// non-positive interval uses five seconds.
func NewKeepAliveProcessor(client *http.Client, interval time.Duration) *KeepAliveProcessor {
	if client == nil {
		client = http.DefaultClient
	}
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &KeepAliveProcessor{client: client, interval: interval}
}

// Run implements Processor.
func (p *KeepAliveProcessor) Run(ctx context.Context, args string) Result {
	parsed, err := SplitArgs(args)
	if err != nil {
		return Result{Message: fmt.Sprintf("Error: %v", err)}
	}
	target, ok := FlagValue(parsed, "--url")
	if !ok || target == "" {
		return Result{Message: "Error: missing --url argument"}
	}

	began := time.Now()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var last string
	for attempt := 1; ; attempt++ {
		status, err := p.poll(ctx, target)
		switch {
		case err != nil:
			last = err.Error()
		case status >= 200 && status < 300:
			return Result{
				Success: true,
				Message: fmt.Sprintf("Site ready after %d attempt(s) in %s (status %d)", attempt, time.Since(began).Round(time.Millisecond), status),
			}
		default:
			last = fmt.Sprintf("status %d", status)
		}

		select {
		case <-ctx.Done():
			// The tool ran to completion; the phrase marks the site as down.
			return Result{Success: true, Message: fmt.Sprintf("%s after %d attempt(s): %s", MsgSiteNotReady, attempt, last)}
		case <-ticker.C:
		}
	}
}

func (p *KeepAliveProcessor) poll(ctx context.Context, target string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20)) //nolint:errcheck // drain for reuse
	return resp.StatusCode, nil
}
