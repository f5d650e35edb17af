package probe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxMessageLength caps failure messages recorded by ProcessException.
const MaxMessageLength = 512

// Status texts shared by several variants.
const (
	StatusError     = "Error"
	StatusException = "Exception"
	StatusTimeout   = "Timeout"
	StatusNoResult  = "No Result"
)

// NetConnect is implemented by every protocol variant.
//
// Design decision: Only Connect differs between protocols. Variants embed
// *Base, which supplies the rest of the interface, so the state machine
// and result bookkeeping exist in exactly one place.
type NetConnect interface {
	// PreConnect marks the handle running, allocates a fresh Result and
	// returns a context scoped to the effective timeout.
	PreConnect(ctx context.Context) context.Context

	// Connect performs the protocol exchange. It must end every path in
	// ProcessStatus or ProcessException and never panic.
	Connect(ctx context.Context)

	// PostConnect marks the handle idle and releases the timeout scope.
	PostConnect()

	// ProcessException records a failure.
	ProcessException(fullMessage, shortStatus string)

	// Handle returns the runtime state the variant works on.
	Handle() *Handle
}

// Base implements the shared part of NetConnect.
type Base struct {
	handle            *Handle
	prefix            string
	timeoutMultiplier int

	started time.Time
	timeout time.Duration
}

// NewBase creates a Base for handle. prefix labels failure messages
// (e.g. "HTTP"). timeoutMultiplier extends the configured timeout for
// slow variants; values below one are treated as one.
func NewBase(handle *Handle, prefix string, timeoutMultiplier int) *Base {
	if timeoutMultiplier < 1 {
		timeoutMultiplier = 1
	}
	return &Base{
		handle:            handle,
		prefix:            prefix,
		timeoutMultiplier: timeoutMultiplier,
	}
}

// Handle returns the runtime state of the probe.
func (b *Base) Handle() *Handle { return b.handle }

// Settings returns a snapshot of the probe configuration.
func (b *Base) Settings() Settings { return b.handle.config.Snapshot() }

// Prefix returns the label used in failure messages.
func (b *Base) Prefix() string { return b.prefix }

// Timeout returns the effective timeout of the current run.
func (b *Base) Timeout() time.Duration {
	if b.timeout == 0 {
		return b.Settings().EffectiveTimeout() * time.Duration(b.timeoutMultiplier)
	}
	return b.timeout
}

// PreConnect implements NetConnect.
func (b *Base) PreConnect(ctx context.Context) context.Context {
	h := b.handle
	h.running.Store(true)

	s := h.config.Snapshot()
	h.resetResult(Result{
		EntityID:  s.EntityID,
		CycleID:   CycleFromContext(ctx),
		EventTime: time.Now(),
	})

	b.timeout = s.EffectiveTimeout() * time.Duration(b.timeoutMultiplier)
	b.started = time.Now()

	runCtx, cancel := context.WithTimeout(ctx, b.timeout)
	h.setCancel(cancel)
	return runCtx
}

// PostConnect implements NetConnect.
func (b *Base) PostConnect() {
	b.handle.releaseCancel()
	b.handle.running.Store(false)
}

// Elapsed returns the milliseconds since PreConnect.
func (b *Base) Elapsed() int64 {
	return time.Since(b.started).Milliseconds()
}

// ProcessStatus records a successful run. The message is statusText
// followed by the extra texts, trimmed.
func (b *Base) ProcessStatus(statusText string, roundTripTime int64, extra ...string) {
	message := strings.TrimSpace(statusText + " " + strings.Join(extra, " "))
	b.handle.updateResult(func(r *Result) {
		r.IsUp = true
		r.Message = message
		r.Snapshot.Status = statusText
		r.Snapshot.RoundTripTime = roundTripTime
	})
}

// ProcessException records a failed run.
func (b *Base) ProcessException(fullMessage, shortStatus string) {
	message := truncate(b.prefix+": "+fullMessage, MaxMessageLength)
	if b.prefix == "" {
		message = truncate(fullMessage, MaxMessageLength)
	}
	b.handle.updateResult(func(r *Result) {
		r.IsUp = false
		r.Message = message
		r.Snapshot.Status = shortStatus
		r.Snapshot.RoundTripTime = UnknownRoundTrip
	})
}

// ProcessTimeout records a run that hit its deadline.
func (b *Base) ProcessTimeout(what string) {
	b.ProcessException(fmt.Sprintf("Timed out %s after %s", what, b.Timeout()), StatusTimeout)
}

// SetStatusCode stores a protocol specific status code in the result.
func (b *Base) SetStatusCode(code int) {
	b.handle.updateResult(func(r *Result) {
		r.Snapshot.StatusCode = code
	})
}

// IsTimeout reports whether err or ctx indicates an expired deadline.
func IsTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

// Run executes one full lifecycle of nc and returns the recorded result.
// It returns false without running when the handle is already running.
func Run(ctx context.Context, nc NetConnect) (Result, bool) {
	h := nc.Handle()
	if !h.TryStart() {
		return h.Result(), false
	}

	runCtx := nc.PreConnect(ctx)
	connect(runCtx, nc)

	if !h.Result().Completed() {
		if runCtx.Err() != nil {
			nc.ProcessException("Run cancelled before a reply was received", StatusTimeout)
		} else {
			nc.ProcessException("Connect returned no result", StatusNoResult)
		}
	}

	nc.PostConnect()
	return h.Result(), true
}

func connect(ctx context.Context, nc NetConnect) {
	defer func() {
		if r := recover(); r != nil {
			nc.ProcessException(fmt.Sprintf("Unexpected failure: %v", r), StatusException)
		}
	}()
	nc.Connect(ctx)
}

// truncate shortens s to at most maxLen bytes on a rune boundary.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
