// Package dispatch consumes attempt-recorded messages from a bus, runs an
// evaluation pass for the attempt's user and publishes the pass result.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/mathquest/mathquest/internal/app/achievement"
	"github.com/mathquest/mathquest/internal/domain"
	"github.com/mathquest/mathquest/internal/infra/metrics"
)

// ErrMalformed marks messages that cannot be decoded into an attempt.
var ErrMalformed = errors.New("malformed attempt message")

// Bus is a publish/subscribe transport.
type Bus interface {
	// Subscribe delivers payloads published on channel until ctx ends or
	// the returned close function is called.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func() error, error)
	Publish(ctx context.Context, channel string, payload []byte) error
}

// PassRunner runs an evaluation pass for one user.
type PassRunner interface {
	EvaluateUser(ctx context.Context, userID string, event *domain.TriggeringEvent, trigger achievement.Trigger) (*domain.PassResult, error)
}

// Config controls channels and concurrency.
type Config struct {
	AttemptsChannel string
	ResultsChannel  string
	Workers         int // shards; messages for one user always land on the same shard
	QueueSize       int // per-shard buffer
}

// DefaultConfig returns the standard channel names and four workers.
func DefaultConfig() Config {
	return Config{
		AttemptsChannel: "mathquest.attempts",
		ResultsChannel:  "mathquest.results",
		Workers:         4,
		QueueSize:       64,
	}
}

// Dispatcher routes attempt messages to evaluation workers.
type Dispatcher struct {
	bus    Bus
	runner PassRunner
	cfg    Config
	logger *zap.Logger
}

// New creates a dispatcher.
func New(bus Bus, runner PassRunner, cfg Config, logger *zap.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{bus: bus, runner: runner, cfg: cfg, logger: logger.Named("dispatch")}
}

// Run consumes messages until ctx is cancelled or the subscription closes.
func (d *Dispatcher) Run(ctx context.Context) error {
	msgs, closeSub, err := d.bus.Subscribe(ctx, d.cfg.AttemptsChannel)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", d.cfg.AttemptsChannel, err)
	}
	defer closeSub()

	shards := make([]chan domain.AttemptRecorded, d.cfg.Workers)
	var (
		wg      sync.WaitGroup
		dropped atomic.Int64
	)
	for i := range shards {
		shards[i] = make(chan domain.AttemptRecorded, d.cfg.QueueSize)
		wg.Add(1)
		go func(in <-chan domain.AttemptRecorded) {
			defer wg.Done()
			for msg := range in {
				metrics.DispatchQueueDepth.Dec()
				// Once stopping, drain without evaluating.
				if ctx.Err() != nil {
					dropped.Add(1)
					metrics.MessagesReceived.WithLabelValues("dropped").Inc()
					continue
				}
				d.process(ctx, msg)
			}
		}(shards[i])
	}

	d.logger.Info("dispatcher started",
		zap.String("channel", d.cfg.AttemptsChannel), zap.Int("workers", d.cfg.Workers))

	defer func() {
		for _, s := range shards {
			close(s)
		}
		wg.Wait()
		if n := dropped.Load(); n > 0 {
			d.logger.Warn("dropped queued attempt messages on shutdown", zap.Int64("count", n))
		}
		d.logger.Info("dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case payload, ok := <-msgs:
			if !ok {
				return nil
			}
			msg, err := Decode(payload)
			if err != nil {
				metrics.MessagesReceived.WithLabelValues("malformed").Inc()
				d.logger.Warn("skipping attempt message", zap.Error(err))
				continue
			}
			metrics.DispatchQueueDepth.Inc()
			select {
			case shards[shardFor(msg.UserID, len(shards))] <- msg:
			case <-ctx.Done():
				metrics.DispatchQueueDepth.Dec()
				return nil
			}
		}
	}
}

// Handle decodes and processes one payload synchronously.
func (d *Dispatcher) Handle(ctx context.Context, payload []byte) error {
	msg, err := Decode(payload)
	if err != nil {
		metrics.MessagesReceived.WithLabelValues("malformed").Inc()
		return err
	}
	return d.process(ctx, msg)
}

func (d *Dispatcher) process(ctx context.Context, msg domain.AttemptRecorded) error {
	res, err := d.runner.EvaluateUser(ctx, msg.UserID, msg.Event(), achievement.TriggerEvent)
	if err != nil {
		metrics.MessagesReceived.WithLabelValues("failed").Inc()
		d.logger.Error("evaluation pass failed", zap.String("user_id", msg.UserID), zap.Error(err))
		return err
	}

	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode pass result: %w", err)
	}
	if err := d.bus.Publish(ctx, d.cfg.ResultsChannel, payload); err != nil {
		metrics.MessagesReceived.WithLabelValues("failed").Inc()
		d.logger.Error("publish pass result failed", zap.String("pass_id", res.PassID), zap.Error(err))
		return fmt.Errorf("publish result: %w", err)
	}
	metrics.MessagesReceived.WithLabelValues("ok").Inc()
	return nil
}

// Decode parses and validates an attempt-recorded message.
func Decode(payload []byte) (domain.AttemptRecorded, error) {
	var msg domain.AttemptRecorded
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if msg.UserID == "" {
		return msg, fmt.Errorf("%w: user_id required", ErrMalformed)
	}
	if msg.DurationMs < 0 {
		return msg, fmt.Errorf("%w: negative duration", ErrMalformed)
	}
	return msg, nil
}

func shardFor(userID string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return int(h.Sum32() % uint32(n))
}
