package daemon

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathquest/mathquest/internal/app/dispatch"
	"github.com/mathquest/mathquest/internal/domain"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	t.Setenv("MATHQUEST_HOME", t.TempDir())
	cfg := DefaultConfig()
	cfg.API.Port = 0
	return cfg
}

func TestOpenStore_Drivers(t *testing.T) {
	ctx := context.Background()

	_, err := OpenStore(ctx, StoreConfig{Driver: "mysql"})
	assert.True(t, errors.Is(err, domain.ErrUnsupportedDriver), "got %v", err)

	_, err = OpenStore(ctx, StoreConfig{Driver: DriverPostgres})
	assert.ErrorIs(t, err, domain.ErrMissingField)

	s, err := OpenStore(ctx, StoreConfig{Driver: DriverSQLite, Path: t.TempDir()})
	require.NoError(t, err)
	assert.NoError(t, s.Ping(ctx))
	assert.NoError(t, s.Close())
}

func TestNewWithConfig_SQLite(t *testing.T) {
	cfg := testConfig(t)
	d, err := NewWithConfig(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer d.Close()

	assert.NotNil(t, d.Engine)
	assert.NotNil(t, d.Evaluator)
	assert.NotNil(t, d.Server)
	assert.NotNil(t, d.Sweeper)
	assert.Nil(t, d.Bus)
	assert.Nil(t, d.Dispatcher)

	d.Health.RunOnce(context.Background())
	statuses := d.Health.Statuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, "store", statuses[0].Name)
	assert.True(t, statuses[0].Healthy)
}

func TestNewWithConfig_Redis(t *testing.T) {
	cfg := testConfig(t)
	cfg.Redis.Enabled = true
	cfg.Sweep.Enabled = false

	d, err := NewWithConfig(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer d.Close()

	assert.NotNil(t, d.Bus)
	assert.NotNil(t, d.Dispatcher)
	assert.Nil(t, d.Sweeper)
}

func TestNewWithConfig_UnsupportedDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Driver = "oracle"

	_, err := NewWithConfig(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, domain.ErrUnsupportedDriver)
}

func TestServe_StopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	d, err := NewWithConfig(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

// quietBus is a Bus that never delivers and records when its subscription ends.
type quietBus struct {
	unsubscribed atomic.Bool
}

func (b *quietBus) Subscribe(context.Context, string) (<-chan []byte, func() error, error) {
	return make(chan []byte), func() error {
		time.Sleep(20 * time.Millisecond)
		b.unsubscribed.Store(true)
		return nil
	}, nil
}

func (b *quietBus) Publish(context.Context, string, []byte) error { return nil }

func TestServe_WaitsForDispatcher(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sweep.Enabled = false
	d, err := NewWithConfig(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer d.Close()

	bus := &quietBus{}
	d.Dispatcher = dispatch.New(bus, d.Evaluator, dispatch.DefaultConfig(), d.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	assert.True(t, bus.unsubscribed.Load(), "dispatcher finished before Serve returned")
}

func TestAddr(t *testing.T) {
	d := &Daemon{Config: Config{API: APIConfig{Host: "0.0.0.0", Port: 8420}}}
	assert.Equal(t, "0.0.0.0:8420", d.Addr())
}
