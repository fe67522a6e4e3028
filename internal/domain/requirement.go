// Package domain holds the badge requirement types shared by the evaluation
// engine, the stores and the transport layers.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ─── Requirement Fields ─────────────────────────────────────────────────────

// Field names recognized in a requirement schema.
const (
	FieldAttemptsCount      = "attempts_count"
	FieldLogicAttemptsCount = "logic_attempts_count"
	FieldMinAttempts        = "min_attempts"
	FieldSuccessRate        = "success_rate"
	FieldExerciseType       = "exercise_type"
	FieldConsecutiveCorrect = "consecutive_correct"
	FieldMaxTime            = "max_time"
	FieldConsecutiveDays    = "consecutive_days"
	FieldPerfectDay         = "perfect_day"
	FieldAllTypes           = "all_types"
	FieldMinPerType         = "min_per_type"
	FieldMinCount           = "min_count"
	FieldComebackDays       = "comeback_days"
)

// ExerciseTypeLogic is the catalog type of logic puzzles.
const ExerciseTypeLogic = "logic"

// PerfectDayMinAttempts is the number of attempts a day needs before it can
// count as perfect.
const PerfectDayMinAttempts = 3

// ─── Requirement Kinds ──────────────────────────────────────────────────────

// RequirementKind tags the unlock condition a schema describes.
type RequirementKind int

const (
	KindUnknown RequirementKind = iota
	KindAttemptsCount
	KindLogicAttemptsCount
	KindMixte
	KindSuccessRate
	KindConsecutive
	KindMaxTime
	KindConsecutiveDays
	KindPerfectDay
	KindAllTypes
	KindMinPerType
	KindComeback

	// KindCount is the size of tables indexed by kind.
	KindCount
)

var kindNames = [KindCount]string{
	KindUnknown:            "unrecognized",
	KindAttemptsCount:      "attempts_count",
	KindLogicAttemptsCount: "logic_attempts_count",
	KindMixte:              "mixte",
	KindSuccessRate:        "success_rate",
	KindConsecutive:        "consecutive",
	KindMaxTime:            "max_time",
	KindConsecutiveDays:    "consecutive_days",
	KindPerfectDay:         "perfect_day",
	KindAllTypes:           "all_types",
	KindMinPerType:         "min_per_type",
	KindComeback:           "comeback",
}

// String returns the wire name of the kind.
func (k RequirementKind) String() string {
	if k < 0 || k >= KindCount {
		return kindNames[KindUnknown]
	}
	return kindNames[k]
}

// Known reports whether k is one of the evaluable kinds.
func (k RequirementKind) Known() bool {
	return k > KindUnknown && k < KindCount
}

// MarshalText implements encoding.TextMarshaler.
func (k RequirementKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *RequirementKind) UnmarshalText(b []byte) error {
	*k = ParseKind(string(b))
	return nil
}

// ParseKind maps a wire name back to its kind. Unknown names yield KindUnknown.
func ParseKind(s string) RequirementKind {
	for k, name := range kindNames {
		if name == s {
			return RequirementKind(k)
		}
	}
	return KindUnknown
}

// ─── Requirement Schema ─────────────────────────────────────────────────────

// RequirementSchema is a badge's declarative unlock condition: field name to
// threshold. Values come from deserialized JSON and are loosely typed.
type RequirementSchema map[string]any

// ParseRequirementSchema decodes a JSON object into a schema, keeping numbers
// as json.Number so integer thresholds survive unchanged.
func ParseRequirementSchema(raw []byte) (RequirementSchema, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var s RequirementSchema
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	if s == nil {
		return nil, fmt.Errorf("%w: not an object", ErrInvalidSchema)
	}
	return s, nil
}

// Has reports whether key is present with a non-null value.
func (s RequirementSchema) Has(key string) bool {
	v, ok := s[key]
	return ok && v != nil
}

// Float returns the numeric value of key.
func (s RequirementSchema) Float(key string) (float64, error) {
	v, ok := s[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("%s: %w", key, ErrMissingField)
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

// Int returns the value of key as an integer. Fractional values are
// truncated toward zero.
func (s RequirementSchema) Int(key string) (int, error) {
	f, err := s.Float(key)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

// Target returns a strictly positive integer threshold.
func (s RequirementSchema) Target(key string) (int, error) {
	n, err := s.Int(key)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s = %d: %w", key, n, ErrInvalidThreshold)
	}
	return n, nil
}

// String returns the value of key as a string. Non-string values are
// formatted with fmt.
func (s RequirementSchema) String(key string) (string, error) {
	v, ok := s[key]
	if !ok || v == nil {
		return "", fmt.Errorf("%s: %w", key, ErrMissingField)
	}
	if str, ok := v.(string); ok {
		return str, nil
	}
	return fmt.Sprint(v), nil
}

func toFloat(v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidThreshold, n.String())
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidThreshold, n)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidThreshold, v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: not finite", ErrInvalidThreshold)
	}
	return f, nil
}
