package achievement_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mathquest/mathquest/internal/domain"
)

// now is the fixed engine clock used by every test.
var now = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

// daysAgo returns an instant on the UTC day d days before now.
func daysAgo(d int) time.Time {
	return now.AddDate(0, 0, -d)
}

// memStore is an in-memory AttemptStore with per-method failure injection.
type memStore struct {
	mu       sync.Mutex
	attempts []domain.Attempt
	active   []string
	badges   []domain.Badge
	fail     map[string]error
	panicOn  map[string]bool
	calls    map[string]int
	seq      int
}

func newMemStore(active ...string) *memStore {
	return &memStore{
		active:  active,
		fail:    map[string]error{},
		panicOn: map[string]bool{},
		calls:   map[string]int{},
	}
}

// add records an attempt; attempts added later are newer unless at is set.
func (m *memStore) add(exerciseType string, correct bool, at time.Time, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.attempts = append(m.attempts, domain.Attempt{
		ID:           fmt.Sprintf("a%d", m.seq),
		UserID:       "u1",
		ExerciseType: exerciseType,
		Correct:      correct,
		Duration:     d,
		CreatedAt:    at,
	})
}

// addSeq records results oldest first, one minute apart, ending at now.
func (m *memStore) addSeq(exerciseType string, results ...bool) {
	start := now.Add(-time.Duration(len(results)) * time.Minute)
	for i, ok := range results {
		m.add(exerciseType, ok, start.Add(time.Duration(i+1)*time.Minute), 30*time.Second)
	}
}

func (m *memStore) enter(method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[method]++
	if m.panicOn[method] {
		panic("store exploded in " + method)
	}
	return m.fail[method]
}

func (m *memStore) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

func (m *memStore) matching(userID string, f domain.AttemptFilter) []domain.Attempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Attempt
	for _, a := range m.attempts {
		if a.UserID != userID {
			continue
		}
		if f.ExerciseType != "" && a.ExerciseType != f.ExerciseType {
			continue
		}
		if !f.Since.IsZero() && a.CreatedAt.Before(f.Since) {
			continue
		}
		if !f.Until.IsZero() && !a.CreatedAt.Before(f.Until) {
			continue
		}
		if f.ExcludeID != "" && a.ID == f.ExcludeID {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memStore) AttemptTotals(_ context.Context, userID string, f domain.AttemptFilter) (domain.AttemptTotals, error) {
	if err := m.enter("AttemptTotals"); err != nil {
		return domain.AttemptTotals{}, err
	}
	var t domain.AttemptTotals
	for _, a := range m.matching(userID, f) {
		t.Total++
		if a.Correct {
			t.Correct++
		}
	}
	return t, nil
}

func (m *memStore) RecentAttempts(_ context.Context, userID string, f domain.AttemptFilter, limit int) ([]domain.Attempt, error) {
	if err := m.enter("RecentAttempts"); err != nil {
		return nil, err
	}
	out := m.matching(userID, f)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) FastestCorrect(_ context.Context, userID string) (domain.FastestTime, error) {
	if err := m.enter("FastestCorrect"); err != nil {
		return domain.FastestTime{}, err
	}
	var best domain.FastestTime
	for _, a := range m.matching(userID, domain.AttemptFilter{}) {
		if !a.Correct || a.Duration <= 0 {
			continue
		}
		if !best.Valid || a.Duration < best.Duration {
			best = domain.FastestTime{Duration: a.Duration, Valid: true}
		}
	}
	return best, nil
}

func (m *memStore) ActivityDates(_ context.Context, userID string) ([]time.Time, error) {
	if err := m.enter("ActivityDates"); err != nil {
		return nil, err
	}
	var dates []time.Time
	seen := map[time.Time]bool{}
	for _, a := range m.matching(userID, domain.AttemptFilter{}) {
		d := domain.Day(a.CreatedAt)
		if !seen[d] {
			seen[d] = true
			dates = append(dates, d)
		}
	}
	return dates, nil
}

func (m *memStore) ActiveExerciseTypes(context.Context) ([]string, error) {
	if err := m.enter("ActiveExerciseTypes"); err != nil {
		return nil, err
	}
	return append([]string(nil), m.active...), nil
}

func (m *memStore) SucceededExerciseTypes(_ context.Context, userID string) ([]string, error) {
	if err := m.enter("SucceededExerciseTypes"); err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for _, a := range m.matching(userID, domain.AttemptFilter{}) {
		if a.Correct && !seen[a.ExerciseType] {
			seen[a.ExerciseType] = true
			out = append(out, a.ExerciseType)
		}
	}
	return out, nil
}

func (m *memStore) CorrectCountsByType(_ context.Context, userID string) (map[string]int, error) {
	if err := m.enter("CorrectCountsByType"); err != nil {
		return nil, err
	}
	out := map[string]int{}
	for _, a := range m.matching(userID, domain.AttemptFilter{}) {
		if a.Correct {
			out[a.ExerciseType]++
		}
	}
	return out, nil
}

func (m *memStore) ListBadges(context.Context) ([]domain.Badge, error) {
	if err := m.enter("ListBadges"); err != nil {
		return nil, err
	}
	return m.badges, nil
}

// legacyFunc adapts a function to achievement.LegacyChecker.
type legacyFunc func(ctx context.Context, userID string, b domain.Badge, ev *domain.TriggeringEvent) (bool, error)

func (f legacyFunc) CheckLegacy(ctx context.Context, userID string, b domain.Badge, ev *domain.TriggeringEvent) (bool, error) {
	return f(ctx, userID, b, ev)
}
