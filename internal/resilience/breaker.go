package resilience

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ErrOpenCircuit is returned by Do when the breaker refuses a call.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State represents the current breaker state.
type State int

const (
	// Closed accepts all calls and tracks failures.
	Closed State = iota
	// Open rejects calls until the cool-off period expires.
	Open
	// HalfOpen lets a single probe through to test recovery.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Options configures a Breaker.
type Options struct {
	// Target labels metrics and logs, e.g. "quote_cache".
	Target string
	// MinCalls is the number of outcomes observed before the failure ratio is evaluated.
	MinCalls int
	// FailureRatio opens the breaker once failures/calls reaches it.
	FailureRatio float64
	// OpenFor is the cool-off period before a half-open probe.
	OpenFor time.Duration
	Metrics *Metrics
	Logger  *zerolog.Logger
	Now     func() time.Time
}

// Breaker is a failure-ratio circuit breaker for an optional dependency.
type Breaker struct {
	mu        sync.Mutex
	state     State
	failures  int
	successes int
	probing   bool
	openedAt  time.Time

	target       string
	minCalls     int
	failureRatio float64
	openFor      time.Duration
	metrics      *Metrics
	logger       zerolog.Logger
	now          func() time.Time
}

// NewBreaker applies defaults (5 calls, ratio 0.5, 30s) to unset options.
func NewBreaker(opts Options) *Breaker {
	b := &Breaker{
		state:        Closed,
		target:       strings.TrimSpace(opts.Target),
		minCalls:     opts.MinCalls,
		failureRatio: opts.FailureRatio,
		openFor:      opts.OpenFor,
		metrics:      opts.Metrics,
		logger:       zerolog.Nop(),
		now:          opts.Now,
	}
	if b.target == "" {
		b.target = "default"
	}
	if b.minCalls <= 0 {
		b.minCalls = 5
	}
	if b.failureRatio <= 0 || b.failureRatio > 1 {
		b.failureRatio = 0.5
	}
	if b.openFor <= 0 {
		b.openFor = 30 * time.Second
	}
	if opts.Logger != nil {
		b.logger = *opts.Logger
	}
	if b.now == nil {
		b.now = time.Now
	}
	b.metrics.setState(b.target, b.state)
	return b
}

// State returns the current state.
func (b *Breaker) State() State {
	if b == nil {
		return Closed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a call may proceed. A nil breaker always allows.
func (b *Breaker) Allow(ctx context.Context) bool {
	if b == nil {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if b.now().Sub(b.openedAt) < b.openFor {
			return false
		}
		b.transitionLocked(ctx, HalfOpen)
		b.probing = true
		return true
	case HalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return true
	}
}

// Report records the outcome of an allowed call.
func (b *Breaker) Report(ctx context.Context, success bool) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		return
	case HalfOpen:
		b.probing = false
		if success {
			b.transitionLocked(ctx, Closed)
		} else {
			b.transitionLocked(ctx, Open)
		}
		return
	}

	if success {
		b.successes++
	} else {
		b.failures++
	}
	total := b.failures + b.successes
	if total < b.minCalls {
		return
	}
	if float64(b.failures)/float64(total) >= b.failureRatio {
		b.transitionLocked(ctx, Open)
		return
	}
	if total > b.minCalls*2 {
		// decay so old outcomes stop dominating the ratio
		b.successes /= 2
		b.failures /= 2
	}
}

// Do runs fn when the breaker allows it and reports the outcome. Errors for which
// ignore returns true count as successes.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error, ignore func(error) bool) error {
	if !b.Allow(ctx) {
		b.metrics.rejected(b.target)
		return ErrOpenCircuit
	}
	err := fn(ctx)
	b.Report(ctx, err == nil || (ignore != nil && ignore(err)))
	return err
}

func (b *Breaker) transitionLocked(ctx context.Context, next State) {
	prev := b.state
	if prev == next {
		return
	}
	b.state = next
	b.failures, b.successes = 0, 0
	switch next {
	case Open:
		b.openedAt = b.now()
	case Closed:
		b.openedAt = time.Time{}
	}
	b.metrics.setState(b.target, next)
	b.metrics.transition(b.target, prev, next)

	evt := b.logger.Warn()
	if next == Closed {
		evt = b.logger.Info()
	}
	evt = evt.Str("target", b.target).Str("from_state", prev.String()).Str("to_state", next.String())
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		evt = evt.Str("trace_id", sc.TraceID().String())
	}
	evt.Msg("breaker_transition")
}
