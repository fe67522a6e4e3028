// Package achievement evaluates badge requirements against a learner's
// attempt history. The Engine answers pass/fail and progress queries for a
// single requirement schema; the Evaluator runs a full pass over every badge
// for one user with a shared stats cache.
package achievement

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mathquest/mathquest/internal/domain"
	"github.com/mathquest/mathquest/internal/infra/metrics"
)

// DefaultStreakOverfetch is how many recent attempts per streak target are
// scanned when no cached streak is available.
const DefaultStreakOverfetch = 3

// Engine dispatches requirement schemas to their checker and progress getter.
// It holds no per-call state and is safe for concurrent use.
type Engine struct {
	store     domain.AttemptStore
	reporter  domain.ErrorReporter
	logger    *zap.Logger
	now       func() time.Time
	overfetch int
	scanLimit int
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source used for "today".
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithReporter replaces the default log-and-count error reporter.
func WithReporter(r domain.ErrorReporter) Option {
	return func(e *Engine) { e.reporter = r }
}

// WithStreakOverfetch sets the recent-attempt scan multiplier.
func WithStreakOverfetch(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.overfetch = n
		}
	}
}

// WithStreakScanLimit bounds the per-type scan used when building a stats cache.
func WithStreakScanLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.scanLimit = n
		}
	}
}

// NewEngine creates an engine reading from store.
func NewEngine(store domain.AttemptStore, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		store:     store,
		logger:    logger,
		now:       time.Now,
		overfetch: DefaultStreakOverfetch,
		scanLimit: DefaultStreakScanLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.reporter == nil {
		e.reporter = NewLogReporter(logger)
	}
	return e
}

func (e *Engine) newContext(ctx context.Context, userID string, event *domain.TriggeringEvent, cache *domain.StatsCache) *evalContext {
	return &evalContext{
		ctx:       ctx,
		store:     e.store,
		userID:    userID,
		event:     event,
		cache:     cache,
		now:       e.now().UTC(),
		overfetch: e.overfetch,
	}
}

// CheckRequirements reports whether userID satisfies the schema. Unrecognized
// schemas return CheckNotHandled. Any error or panic while checking is
// reported and yields CheckFailed. event and cache may be nil.
func (e *Engine) CheckRequirements(ctx context.Context, userID string, schema domain.RequirementSchema, event *domain.TriggeringEvent, cache *domain.StatsCache) domain.CheckResult {
	start := time.Now()
	kind := DetectKind(schema)
	result := domain.CheckNotHandled
	defer func() {
		metrics.Evaluations.WithLabelValues(string(domain.OpCheck), kind.String(), result.String()).Inc()
		metrics.EvaluationLatency.WithLabelValues(string(domain.OpCheck)).Observe(time.Since(start).Seconds())
	}()

	if !kind.Known() || checkers[kind] == nil {
		return result
	}

	passed, err := runCheck(checkers[kind], e.newContext(ctx, userID, event, cache), schema)
	if err != nil {
		e.report(ctx, kind, domain.OpCheck, userID, err)
		result = domain.CheckFailed
		return result
	}
	result = domain.ResultOf(passed)
	return result
}

// RequirementProgress returns completion toward the schema. ok is false when
// the kind is unrecognized, progress is not applicable, or evaluation failed.
func (e *Engine) RequirementProgress(ctx context.Context, userID string, schema domain.RequirementSchema, cache *domain.StatsCache) (p domain.Progress, ok bool) {
	start := time.Now()
	kind := DetectKind(schema)
	outcome := "not_handled"
	defer func() {
		metrics.Evaluations.WithLabelValues(string(domain.OpProgress), kind.String(), outcome).Inc()
		metrics.EvaluationLatency.WithLabelValues(string(domain.OpProgress)).Observe(time.Since(start).Seconds())
	}()

	if !kind.Known() || progressGetters[kind] == nil {
		return domain.Progress{}, false
	}

	p, ok, err := runProgress(progressGetters[kind], e.newContext(ctx, userID, nil, cache), schema)
	switch {
	case err != nil:
		e.report(ctx, kind, domain.OpProgress, userID, err)
		outcome = "error"
		return domain.Progress{}, false
	case !ok:
		outcome = "not_applicable"
		return domain.Progress{}, false
	}
	outcome = "ok"
	return p, true
}

// recoveredPanic wraps a value recovered from a checker or progress getter.
type recoveredPanic struct {
	value any
}

func (p *recoveredPanic) Error() string {
	return fmt.Sprint(p.value)
}

func runCheck(fn checkFunc, ec *evalContext, s domain.RequirementSchema) (passed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			passed, err = false, &recoveredPanic{value: r}
		}
	}()
	return fn(ec, s)
}

func runProgress(fn progressFunc, ec *evalContext, s domain.RequirementSchema) (p domain.Progress, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, ok, err = domain.Progress{}, false, &recoveredPanic{value: r}
		}
	}()
	return fn(ec, s)
}

func (e *Engine) report(ctx context.Context, kind domain.RequirementKind, op domain.EvalOp, userID string, err error) {
	_, panicked := err.(*recoveredPanic)
	e.reporter.Report(ctx, &domain.EvaluationError{
		Kind:     kind,
		Op:       op,
		UserID:   userID,
		Err:      err,
		Panicked: panicked,
	})
}

// ─── Error Reporting ────────────────────────────────────────────────────────

// LogReporter writes evaluation errors to a zap logger and counts them.
type LogReporter struct {
	logger *zap.Logger
}

// NewLogReporter creates the default error reporter.
func NewLogReporter(logger *zap.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

// Report implements domain.ErrorReporter.
func (r *LogReporter) Report(_ context.Context, err *domain.EvaluationError) {
	kind, subject := err.Kind.String(), zap.String("kind", err.Kind.String())
	if err.Op == domain.OpStats {
		kind, subject = "none", zap.String("aggregate", err.Aggregate)
	}
	metrics.EvaluationErrors.WithLabelValues(string(err.Op), kind, strconv.FormatBool(err.Panicked)).Inc()
	fields := []zap.Field{
		subject,
		zap.String("op", string(err.Op)),
		zap.String("user_id", err.UserID),
		zap.Error(err.Err),
	}
	if err.Panicked {
		fields = append(fields, zap.Bool("panic", true))
		r.logger.Error("requirement evaluation failed", fields...)
		return
	}
	r.logger.Warn("requirement evaluation failed", fields...)
}
