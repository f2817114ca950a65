package intercept

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/kzs0/callspan/trace"
)

// State is the lifecycle position of a Guard.
type State int

const (
	StateIdle State = iota
	StateStarted
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateStarted:
		return "STARTED"
	case StateClosed:
		return "CLOSED"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// Outcomes recorded in client call metrics.
const (
	OutcomeOK     = "ok"
	OutcomeError  = "error"
	OutcomeForced = "forced"
)

// Guard owns the span of one in-flight call.
type Guard struct {
	interceptor *Interceptor
	span        *trace.Span
	parent      context.Context

	mu      sync.Mutex
	state   State
	started time.Time
	stop    func() bool
}

func (g *Guard) start(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.state = StateStarted
	g.started = time.Now()
	// A call abandoned by cancellation may never report completion.
	g.stop = context.AfterFunc(ctx, func() { g.forceClose(ctx) })
}

// Finish logs the "cr" event, tags err if any, and closes the span. Only the
// first of Finish and a forced close has any effect.
func (g *Guard) Finish(err error) {
	if !g.transition() {
		return
	}

	g.span.LogEvent(trace.EventClientRecv)
	outcome := OutcomeOK
	if err != nil {
		g.span.Tag("error", err.Error())
		outcome = OutcomeError
	}
	g.close(outcome)
}

func (g *Guard) forceClose(ctx context.Context) {
	if !g.transition() {
		return
	}

	cause := context.Cause(ctx)
	g.span.Tag("error", cause.Error())
	g.interceptor.logger.WarnContext(g.parent, "client span closed before completion",
		slog.String("span", g.span.String()),
		slog.Any("error", cause),
	)
	g.close(OutcomeForced)
}

// transition moves STARTED to CLOSED and reports whether it did.
func (g *Guard) transition() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != StateStarted {
		return false
	}
	g.state = StateClosed
	return true
}

func (g *Guard) close(outcome string) {
	if g.stop != nil {
		g.stop()
	}
	i := g.interceptor
	i.tracer.Close(g.span)
	i.metrics.record(outcome, g.started)
	i.logger.DebugContext(g.parent, "closed client span",
		slog.String("span", g.span.String()),
		slog.String("outcome", outcome),
	)
}

// TagResponse tags the span from the response status code.
func (g *Guard) TagResponse(status int) {
	if g.span == nil {
		return
	}
	g.interceptor.safely(g.span, "response tags", func() {
		g.interceptor.tags.AddResponseTags(g.span, status)
	})
}

// Tag sets a tag on the span.
func (g *Guard) Tag(key, value string) {
	if g.span != nil {
		g.span.Tag(key, value)
	}
}

// Span returns the guarded span, or nil if the tracer produced none.
func (g *Guard) Span() *trace.Span {
	return g.span
}

// State returns the current lifecycle state.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Parent returns the context as it was before the call was dispatched.
func (g *Guard) Parent() context.Context {
	return g.parent
}
