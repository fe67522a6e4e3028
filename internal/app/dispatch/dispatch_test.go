package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/mathquest/mathquest/internal/app/achievement"
	"github.com/mathquest/mathquest/internal/domain"
	"github.com/mathquest/mathquest/internal/logging"
)

// memBus is an in-process Bus.
type memBus struct {
	mu        sync.Mutex
	subs      map[string]chan []byte
	published map[string][][]byte
	failPub   error
}

func newMemBus() *memBus {
	return &memBus{subs: map[string]chan []byte{}, published: map[string][][]byte{}}
}

func (b *memBus) Subscribe(_ context.Context, channel string) (<-chan []byte, func() error, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan []byte, 16)
	b.subs[channel] = ch
	return ch, func() error { return nil }, nil
}

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failPub != nil {
		return b.failPub
	}
	b.published[channel] = append(b.published[channel], payload)
	if ch, ok := b.subs[channel]; ok {
		ch <- payload
	}
	return nil
}

func (b *memBus) results(channel string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]byte(nil), b.published[channel]...)
}

// recordingRunner records the order of evaluated users.
type recordingRunner struct {
	mu     sync.Mutex
	seen   []domain.AttemptRecorded
	events []*domain.TriggeringEvent
	err    error
}

func (r *recordingRunner) EvaluateUser(_ context.Context, userID string, ev *domain.TriggeringEvent, trigger achievement.Trigger) (*domain.PassResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.seen = append(r.seen, domain.AttemptRecorded{UserID: userID, AttemptID: ev.AttemptID})
	r.events = append(r.events, ev)
	return &domain.PassResult{PassID: "p-" + ev.AttemptID, UserID: userID}, nil
}

func (r *recordingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

func message(t *testing.T, user, attempt string) []byte {
	t.Helper()
	raw, err := json.Marshal(domain.AttemptRecorded{
		UserID: user, AttemptID: attempt, ExerciseType: "addition",
		Correct: true, DurationMs: 3500, OccurredAt: time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return raw
}

// ─── Decode ─────────────────────────────────────────────────────────────────

func TestDecode(t *testing.T) {
	msg, err := Decode([]byte(`{"user_id":"u1","attempt_id":"a1","correct":true,"duration_ms":1500,"occurred_at":"2026-03-10T15:00:00Z"}`))
	require.NoError(t, err)
	ev := msg.Event()
	assert.Equal(t, 1500*time.Millisecond, ev.Duration)
	assert.True(t, ev.Correct)
	assert.Equal(t, "a1", ev.AttemptID)

	for _, bad := range []string{`not json`, `{}`, `{"user_id":"u1","duration_ms":-5}`} {
		_, err := Decode([]byte(bad))
		assert.ErrorIs(t, err, ErrMalformed, bad)
	}
}

func TestShardFor_Stable(t *testing.T) {
	for _, u := range []string{"u1", "u2", "someone-else"} {
		s := shardFor(u, 4)
		assert.GreaterOrEqual(t, s, 0)
		assert.Less(t, s, 4)
		assert.Equal(t, s, shardFor(u, 4))
	}
}

// ─── Handle ─────────────────────────────────────────────────────────────────

func TestHandle_PublishesResult(t *testing.T) {
	bus := newMemBus()
	runner := &recordingRunner{}
	d := New(bus, runner, DefaultConfig(), nil)

	require.NoError(t, d.Handle(context.Background(), message(t, "u1", "a1")))

	out := bus.results("mathquest.results")
	require.Len(t, out, 1)
	var res domain.PassResult
	require.NoError(t, json.Unmarshal(out[0], &res))
	assert.Equal(t, "p-a1", res.PassID)
	assert.Equal(t, 3500*time.Millisecond, runner.events[0].Duration)
}

func TestHandle_Errors(t *testing.T) {
	bus := newMemBus()
	runner := &recordingRunner{err: errors.New("badges unavailable")}
	log := logging.NewTestLogger()
	d := New(bus, runner, DefaultConfig(), log.Logger)

	assert.ErrorIs(t, d.Handle(context.Background(), []byte(`{`)), ErrMalformed)
	assert.Error(t, d.Handle(context.Background(), message(t, "u1", "a1")))
	assert.Empty(t, bus.results("mathquest.results"))
	assert.Len(t, log.FilterMessage("evaluation pass failed").All(), 1)

	runner.err = nil
	bus.failPub = errors.New("redis down")
	assert.Error(t, d.Handle(context.Background(), message(t, "u1", "a2")))
}

// ─── Run ────────────────────────────────────────────────────────────────────

func TestRun_ConsumesUntilCancelled(t *testing.T) {
	bus := newMemBus()
	runner := &recordingRunner{}
	cfg := DefaultConfig()
	cfg.Workers = 3
	d := New(bus, runner, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool {
		bus.mu.Lock()
		defer bus.mu.Unlock()
		return bus.subs[cfg.AttemptsChannel] != nil
	}, time.Second, 5*time.Millisecond)

	attempts := []string{"a1", "a2", "a3", "a4", "a5", "a6"}
	for i, a := range attempts {
		user := "u1"
		if i%2 == 1 {
			user = "u2"
		}
		require.NoError(t, bus.Publish(ctx, cfg.AttemptsChannel, message(t, user, a)))
	}
	require.NoError(t, bus.Publish(ctx, cfg.AttemptsChannel, []byte(`garbage`)))

	require.Eventually(t, func() bool { return runner.count() == len(attempts) }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	// Per-user order is preserved.
	var u1 []string
	for _, s := range runner.seen {
		if s.UserID == "u1" {
			u1 = append(u1, s.AttemptID)
		}
	}
	assert.Equal(t, []string{"a1", "a3", "a5"}, u1)
	assert.Len(t, bus.results(cfg.ResultsChannel), len(attempts))
}

// gatedRunner blocks its first pass until released and records whether each
// pass started with a live context.
type gatedRunner struct {
	mu        sync.Mutex
	calls     int
	cancelled int
	started   chan struct{}
	release   chan struct{}
}

func (r *gatedRunner) EvaluateUser(ctx context.Context, userID string, ev *domain.TriggeringEvent, _ achievement.Trigger) (*domain.PassResult, error) {
	r.mu.Lock()
	r.calls++
	first := r.calls == 1
	if ctx.Err() != nil {
		r.cancelled++
	}
	r.mu.Unlock()
	if first {
		close(r.started)
		<-r.release
	}
	return &domain.PassResult{PassID: "p-" + ev.AttemptID, UserID: userID}, nil
}

func TestRun_DropsQueuedMessagesOnCancel(t *testing.T) {
	bus := newMemBus()
	runner := &gatedRunner{started: make(chan struct{}), release: make(chan struct{})}
	cfg := DefaultConfig()
	cfg.Workers = 1
	cfg.QueueSize = 8
	log := logging.NewTestLogger()
	d := New(bus, runner, cfg, log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool {
		bus.mu.Lock()
		defer bus.mu.Unlock()
		return bus.subs[cfg.AttemptsChannel] != nil
	}, time.Second, 5*time.Millisecond)

	for _, a := range []string{"a1", "a2", "a3", "a4", "a5"} {
		require.NoError(t, bus.Publish(ctx, cfg.AttemptsChannel, message(t, "u1", a)))
	}
	select {
	case <-runner.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first pass never started")
	}
	require.Eventually(t, func() bool {
		bus.mu.Lock()
		defer bus.mu.Unlock()
		return len(bus.subs[cfg.AttemptsChannel]) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	close(runner.release)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Equal(t, 1, runner.calls, "queued messages are not evaluated after cancel")
	assert.Zero(t, runner.cancelled)
	log.AssertLogged(t, zapcore.WarnLevel, "dropped queued attempt messages")
}
