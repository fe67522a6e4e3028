package domain

import (
	"fmt"
	"time"
)

// ─── Check Results ──────────────────────────────────────────────────────────

// CheckResult is the tri-state outcome of a requirement check.
type CheckResult int

const (
	// CheckNotHandled means the schema matched no known kind; the caller
	// should fall back to its legacy per-badge logic.
	CheckNotHandled CheckResult = iota
	CheckFailed
	CheckPassed
)

// Handled reports whether the engine recognized the schema.
func (r CheckResult) Handled() bool { return r != CheckNotHandled }

// Passed reports whether the requirement is satisfied.
func (r CheckResult) Passed() bool { return r == CheckPassed }

func (r CheckResult) String() string {
	switch r {
	case CheckPassed:
		return "passed"
	case CheckFailed:
		return "failed"
	default:
		return "not_handled"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r CheckResult) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *CheckResult) UnmarshalText(b []byte) error {
	switch string(b) {
	case "passed":
		*r = CheckPassed
	case "failed":
		*r = CheckFailed
	case "not_handled":
		*r = CheckNotHandled
	default:
		return fmt.Errorf("unknown check result %q", b)
	}
	return nil
}

// ResultOf converts a boolean check into a handled result.
func ResultOf(passed bool) CheckResult {
	if passed {
		return CheckPassed
	}
	return CheckFailed
}

// ─── Progress ───────────────────────────────────────────────────────────────

// Progress is fractional completion toward a requirement.
type Progress struct {
	Fraction float64 `json:"fraction"`
	Current  int     `json:"current"`
	Target   int     `json:"target"`
}

// NewProgress clamps current/target into [0, 1].
func NewProgress(current, target int) Progress {
	p := Progress{Current: current, Target: target}
	if target <= 0 {
		return p
	}
	p.Fraction = float64(current) / float64(target)
	if p.Fraction > 1 {
		p.Fraction = 1
	}
	if p.Fraction < 0 {
		p.Fraction = 0
	}
	return p
}

// BinaryProgress is all-or-nothing completion.
func BinaryProgress(done bool) Progress {
	if done {
		return Progress{Fraction: 1, Current: 1, Target: 1}
	}
	return Progress{Fraction: 0, Current: 0, Target: 1}
}

// Complete reports whether the fraction reached 1.
func (p Progress) Complete() bool { return p.Fraction >= 1 }

// ─── Evaluation Errors ──────────────────────────────────────────────────────

// EvalOp names the engine operation that failed.
type EvalOp string

const (
	OpCheck    EvalOp = "check"
	OpProgress EvalOp = "progress"
	OpStats    EvalOp = "stats"
)

// EvaluationError is the structured record reported for every error the
// engine contains.
type EvaluationError struct {
	Kind RequirementKind
	Op   EvalOp
	// Aggregate names the stats cache entry that failed. Set only for OpStats,
	// where no requirement kind is involved.
	Aggregate string
	UserID    string
	Err       error
	Panicked  bool
}

// Subject is what failed: the aggregate for stats errors, else the kind name.
func (e *EvaluationError) Subject() string {
	if e.Op == OpStats {
		return e.Aggregate
	}
	return e.Kind.String()
}

func (e *EvaluationError) Error() string {
	if e.Panicked {
		return fmt.Sprintf("%s %s for user %s: panic: %v", e.Op, e.Subject(), e.UserID, e.Err)
	}
	return fmt.Sprintf("%s %s for user %s: %v", e.Op, e.Subject(), e.UserID, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// ─── Badges ─────────────────────────────────────────────────────────────────

// Badge is a badge definition owned by the platform.
type Badge struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	Requirements RequirementSchema `json:"requirements"`
}

// BadgeResult is one badge's outcome within an evaluation pass.
type BadgeResult struct {
	BadgeID  string          `json:"badge_id"`
	Kind     RequirementKind `json:"kind"`
	Result   CheckResult     `json:"result"`
	Legacy   bool            `json:"legacy,omitempty"`
	Progress *Progress       `json:"progress,omitempty"`
}

// PassResult is the outcome of evaluating every badge for one user.
type PassResult struct {
	PassID      string        `json:"pass_id"`
	UserID      string        `json:"user_id"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	Badges      []BadgeResult `json:"badges"`
	CacheMisses int           `json:"cache_misses"`
}

// Passed returns the IDs of the badges whose requirements are satisfied.
func (r *PassResult) Passed() []string {
	var ids []string
	for _, b := range r.Badges {
		if b.Result.Passed() {
			ids = append(ids, b.BadgeID)
		}
	}
	return ids
}
