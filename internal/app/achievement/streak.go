package achievement

import (
	"time"

	"github.com/mathquest/mathquest/internal/domain"
)

// ─── Streaks ────────────────────────────────────────────────────────────────

// CorrectStreak counts correct attempts from the newest until the first
// incorrect one. attempts must be ordered newest first.
func CorrectStreak(attempts []domain.Attempt) int {
	n := 0
	for _, a := range attempts {
		if !a.Correct {
			break
		}
		n++
	}
	return n
}

// DayStreak counts consecutive active days ending today. dates must be
// ordered newest first; a streak without activity today is zero.
func DayStreak(dates []time.Time, today time.Time) int {
	today = domain.Day(today)
	if len(dates) == 0 || !domain.Day(dates[0]).Equal(today) {
		return 0
	}

	n := 0
	expected := today
	for _, d := range dates {
		d = domain.Day(d)
		switch {
		case d.Equal(expected):
			n++
			expected = expected.AddDate(0, 0, -1)
		case d.After(expected):
			// duplicate of a day already counted
		default:
			return n
		}
	}
	return n
}

// GapDays is the number of whole days between two instants.
func GapDays(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from) / (24 * time.Hour))
}

func coveredTypes(active, succeeded []string) int {
	seen := make(map[string]struct{}, len(succeeded))
	for _, t := range succeeded {
		seen[t] = struct{}{}
	}
	n := 0
	for _, t := range active {
		if _, ok := seen[t]; ok {
			n++
		}
	}
	return n
}

func typesAtThreshold(active []string, counts map[string]int, threshold int) int {
	n := 0
	for _, t := range active {
		if counts[t] >= threshold {
			n++
		}
	}
	return n
}
