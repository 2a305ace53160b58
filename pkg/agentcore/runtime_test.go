package agentcore_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/agentcore/pkg/agentcore"
	"github.com/randalmurphal/agentcore/pkg/agentcore/agentdef"
	"github.com/randalmurphal/agentcore/pkg/agentcore/config"
	acerrors "github.com/randalmurphal/agentcore/pkg/agentcore/errors"
	"github.com/randalmurphal/agentcore/pkg/agentcore/event"
	"github.com/randalmurphal/agentcore/pkg/agentcore/observability"
	"github.com/randalmurphal/agentcore/pkg/agentcore/scheduler"
)

// newRuntime returns a started runtime whose timers never fire during a test,
// so ticks only happen through TickNow.
func newRuntime(t *testing.T, opts ...agentcore.Option) *agentcore.Runtime {
	t.Helper()
	opts = append([]agentcore.Option{
		agentcore.WithLogger(observability.DiscardLogger()),
		agentcore.WithTickInterval(time.Hour),
	}, opts...)
	rt := agentcore.New(opts...)
	rt.Start(context.Background())
	t.Cleanup(rt.Stop)
	return rt
}

func TestRegister(t *testing.T) {
	rt := newRuntime(t)

	require.NoError(t, rt.Register(agentcore.NewAgent("b", nil)))
	require.NoError(t, rt.Register(agentcore.NewAgent("a", nil)))

	assert.ErrorIs(t, rt.Register(agentcore.NewAgent("a", nil)), agentcore.ErrDuplicateAgent)
	assert.ErrorIs(t, rt.Register(nil), agentcore.ErrNilAgent)
	assert.ErrorIs(t, rt.Register(agentcore.NewAgent("", nil)), agentcore.ErrEmptyAgentName)

	assert.Equal(t, []string{"a", "b"}, rt.Agents())

	sched, ok := rt.Scheduler("a")
	require.True(t, ok)
	assert.True(t, sched.IsRunning())
	assert.Equal(t, time.Hour, sched.BaseInterval())

	_, ok = rt.Scheduler("missing")
	assert.False(t, ok)
}

func TestUnregister(t *testing.T) {
	rt := newRuntime(t)
	require.NoError(t, rt.Register(agentcore.NewAgent("a", nil)))

	sched, _ := rt.Scheduler("a")
	assert.True(t, rt.Unregister("a"))
	assert.False(t, rt.Unregister("a"))
	assert.False(t, sched.IsRunning())
	assert.Empty(t, rt.Agents())

	err := rt.TickNow(context.Background(), "a")
	assert.ErrorIs(t, err, agentcore.ErrUnknownAgent)
}

func TestTickEvents(t *testing.T) {
	rt := newRuntime(t)
	require.NoError(t, rt.Register(agentcore.NewAgent("scout", func(ctx agentcore.Context) error {
		return nil
	})))

	require.NoError(t, rt.TickNow(context.Background(), "scout"))

	started := rt.Bus().EventsByType(agentcore.EventTickStarted)
	completed := rt.Bus().EventsByType(agentcore.EventTickCompleted)
	require.Len(t, started, 1)
	require.Len(t, completed, 1)
	assert.Empty(t, rt.Bus().EventsByType(agentcore.EventTickFailed))

	assert.Equal(t, "scout", started[0].Source)
	assert.Equal(t, started[0].CorrelationID, completed[0].CorrelationID)
	assert.Equal(t, started[0].ID, completed[0].CausationID)

	payload, ok := completed[0].Data.(agentcore.TickPayload)
	require.True(t, ok)
	assert.Equal(t, "scout", payload.Agent)
	assert.Equal(t, int64(1), payload.Tick)
	assert.NotEmpty(t, payload.TickID)
	assert.Empty(t, payload.Error)
}

func TestTickEventsReachHandlers(t *testing.T) {
	rt := newRuntime(t)
	require.NoError(t, rt.Register(agentcore.NewAgent("scout", nil)))

	var seen []string
	rt.Bus().On(event.Wildcard, func(_ context.Context, evt event.Event) error {
		seen = append(seen, evt.Type)
		return nil
	})

	require.NoError(t, rt.TickNow(context.Background(), "scout"))
	assert.Equal(t, []string{agentcore.EventTickStarted, agentcore.EventTickCompleted}, seen)
}

func TestTickFailure(t *testing.T) {
	rt := newRuntime(t)
	boom := errors.New("boom")
	require.NoError(t, rt.Register(agentcore.NewAgent("flaky", func(agentcore.Context) error {
		return boom
	})))

	err := rt.TickNow(context.Background(), "flaky")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var tickErr *scheduler.TickError
	require.ErrorAs(t, err, &tickErr)
	assert.Equal(t, "flaky", tickErr.Scheduler)

	var agentErr *agentcore.AgentError
	require.ErrorAs(t, err, &agentErr)
	assert.Equal(t, "flaky", agentErr.Agent)
	assert.Equal(t, "tick", agentErr.Op)

	failed := rt.Bus().EventsByType(agentcore.EventTickFailed)
	require.Len(t, failed, 1)
	payload := failed[0].Data.(agentcore.TickPayload)
	assert.Contains(t, payload.Error, "boom")

	sched, _ := rt.Scheduler("flaky")
	assert.Equal(t, int64(1), sched.Metrics().ErrorCount)
	assert.Equal(t, 90*time.Minute, sched.Interval())
}

func TestTickPanic(t *testing.T) {
	rt := newRuntime(t)
	require.NoError(t, rt.Register(agentcore.NewAgent("crashy", func(agentcore.Context) error {
		panic("kaboom")
	})))

	err := rt.TickNow(context.Background(), "crashy")
	require.Error(t, err)

	var agentErr *agentcore.AgentError
	require.ErrorAs(t, err, &agentErr)
	var panicErr *acerrors.PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "kaboom", panicErr.Value)

	// The agent keeps its schedule after a panic.
	sched, _ := rt.Scheduler("crashy")
	assert.True(t, sched.IsRunning())
}

func TestTickContext(t *testing.T) {
	rt := newRuntime(t)

	var got struct {
		name   string
		tick   int64
		bus    *event.Bus
		hasDef bool
		logger bool
	}
	require.NoError(t, rt.Register(agentcore.NewAgent("inspector", func(ctx agentcore.Context) error {
		got.name = ctx.AgentName()
		got.tick = ctx.TickNumber()
		got.bus = ctx.Bus()
		got.hasDef = ctx.Definition() != nil
		got.logger = ctx.Logger() != nil
		_, err := ctx.Coordinator().WithCache(ctx, "k", func(context.Context) (any, error) {
			return 1, nil
		}, time.Minute)
		return err
	})))

	require.NoError(t, rt.TickNow(context.Background(), "inspector"))
	require.NoError(t, rt.TickNow(context.Background(), "inspector"))

	assert.Equal(t, "inspector", got.name)
	assert.Equal(t, int64(2), got.tick)
	assert.Same(t, rt.Bus(), got.bus)
	assert.False(t, got.hasDef)
	assert.True(t, got.logger)
	assert.Equal(t, 1, rt.Coordinator().Stats().Size)
}

func TestTimerDrivenTicks(t *testing.T) {
	rt := agentcore.New(
		agentcore.WithLogger(observability.DiscardLogger()),
		agentcore.WithTickInterval(5*time.Millisecond),
	)

	var ticks atomic.Int64
	require.NoError(t, rt.Register(agentcore.NewAgent("fast", func(agentcore.Context) error {
		ticks.Add(1)
		return nil
	})))

	rt.Start(context.Background())
	assert.True(t, rt.IsRunning())
	assert.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, time.Millisecond)

	rt.Stop()
	rt.Stop()
	assert.False(t, rt.IsRunning())

	time.Sleep(10 * time.Millisecond)
	after := ticks.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, ticks.Load())
}

func TestStopDuringTickLetsItFinish(t *testing.T) {
	rt := agentcore.New(
		agentcore.WithLogger(observability.DiscardLogger()),
		agentcore.WithTickInterval(5*time.Millisecond),
	)

	entered := make(chan struct{})
	release := make(chan struct{})
	tickErr := make(chan error, 1)
	var ticks atomic.Int64
	require.NoError(t, rt.Register(agentcore.NewAgent("slow", func(ctx agentcore.Context) error {
		if ticks.Add(1) > 1 {
			return nil
		}
		close(entered)
		<-release
		tickErr <- ctx.Err()
		return nil
	})))

	completed := make(chan struct{}, 1)
	rt.Bus().On(agentcore.EventTickCompleted, func(context.Context, event.Event) error {
		select {
		case completed <- struct{}{}:
		default:
		}
		return nil
	})

	rt.Start(context.Background())
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("tick never started")
	}

	rt.Stop()
	close(release)

	select {
	case err := <-tickErr:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("tick never finished")
	}
	select {
	case <-completed:
	case <-time.After(time.Second):
		t.Fatal("no completed event")
	}

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(1), ticks.Load())
	metrics := rt.Metrics()["slow"]
	assert.Zero(t, metrics.ErrorCount)
}

func TestRegisterWhileRunning(t *testing.T) {
	rt := newRuntime(t)
	require.NoError(t, rt.Register(agentcore.NewAgent("late", nil)))

	sched, _ := rt.Scheduler("late")
	assert.True(t, sched.IsRunning())
}

func TestStartContextCancel(t *testing.T) {
	rt := agentcore.New(
		agentcore.WithLogger(observability.DiscardLogger()),
		agentcore.WithTickInterval(time.Hour),
	)
	require.NoError(t, rt.Register(agentcore.NewAgent("a", nil)))

	ctx, cancel := context.WithCancel(context.Background())
	rt.Start(ctx)
	defer rt.Stop()

	sched, _ := rt.Scheduler("a")
	cancel()
	assert.Eventually(t, func() bool { return !sched.IsRunning() }, time.Second, time.Millisecond)
}

func TestSettings(t *testing.T) {
	settings := config.DefaultSettings()
	settings.BatchSize = 3
	settings.TickInterval = 0

	rt := agentcore.New(
		agentcore.WithSettings(settings),
		agentcore.WithTickInterval(2*time.Second),
		agentcore.WithBatchSize(-1),
	)

	got := rt.Settings()
	assert.Equal(t, 3, got.BatchSize)
	assert.Equal(t, 2*time.Second, got.TickInterval)
	assert.Len(t, rt.ID(), 26)
	assert.NotNil(t, rt.DeadLetters())
}

func TestWithBus(t *testing.T) {
	bus := event.NewBus(event.BusConfig{Logger: observability.DiscardLogger()})
	rt := newRuntime(t, agentcore.WithBus(bus))
	assert.Same(t, bus, rt.Bus())
	assert.Nil(t, rt.DeadLetters())
}

func TestHandlerFailuresReachDeadLetters(t *testing.T) {
	rt := newRuntime(t)
	require.NoError(t, rt.Register(agentcore.NewAgent("a", nil)))
	rt.Bus().On(agentcore.EventTickCompleted, func(context.Context, event.Event) error {
		return errors.New("listener down")
	})

	require.NoError(t, rt.TickNow(context.Background(), "a"))

	count, err := rt.DeadLetters().Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func writeDef(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefinitions(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeDef(t, dir, "watcher.yaml", "name: watcher\ntick_interval: 250ms\n"),
		writeDef(t, dir, "broken.yaml", "name: [oops"),
		writeDef(t, dir, "reporter.json", `{"name":"reporter","tags":["passive"]}`),
	}

	store := agentdef.NewMemoryStore()
	rt := newRuntime(t, agentcore.WithStore(store), agentcore.WithBatchSize(2))

	factory := func(def *agentdef.Definition) (agentcore.Agent, error) {
		if def.HasTag("passive") {
			return nil, nil
		}
		return agentcore.NewAgent(def.Name, func(ctx agentcore.Context) error {
			if ctx.Definition() == nil {
				return errors.New("missing definition")
			}
			return nil
		}), nil
	}

	res, err := rt.LoadDefinitions(context.Background(), paths, factory)
	require.NoError(t, err)

	assert.Len(t, res.Results, 2)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 1, res.Errors[0].Index)
	assert.Equal(t, []int{2, 1}, res.Metrics.BatchSizes)

	assert.Equal(t, []string{"reporter", "watcher"}, rt.Definitions().Names())
	assert.Equal(t, []string{"watcher"}, rt.Agents())

	sched, ok := rt.Scheduler("watcher")
	require.True(t, ok)
	assert.Equal(t, 250*time.Millisecond, sched.BaseInterval())
	require.NoError(t, rt.TickNow(context.Background(), "watcher"))

	infos, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, infos, 2)
}

func TestLoadDefinitions_FactoryErrors(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeDef(t, dir, "a.yaml", "name: a"),
		writeDef(t, dir, "b.yaml", "name: b"),
	}

	rt := newRuntime(t)
	require.NoError(t, rt.Register(agentcore.NewAgent("b", nil)))

	res, err := rt.LoadDefinitions(context.Background(), paths, func(def *agentdef.Definition) (agentcore.Agent, error) {
		if def.Name == "a" {
			return nil, errors.New("no such kind")
		}
		return agentcore.NewAgent(def.Name, nil), nil
	})
	require.Error(t, err)
	assert.Len(t, res.Results, 2)

	var agentErr *agentcore.AgentError
	require.ErrorAs(t, err, &agentErr)
	assert.Equal(t, "a", agentErr.Agent)
	assert.Equal(t, "build", agentErr.Op)
	assert.ErrorIs(t, err, agentcore.ErrDuplicateDefinition)

	// A definition registers even when building its agent fails, but not
	// when its name belongs to an agent that is already running.
	assert.Equal(t, []string{"a"}, rt.Definitions().Names())
}

func TestLoadDefinitions_DuplicateNames(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeDef(t, dir, "first.yaml", "name: worker\ntick_interval: 100ms\n"),
		writeDef(t, dir, "second.yaml", "name: worker\ntick_interval: 900ms\n"),
	}

	store := agentdef.NewMemoryStore()
	rt := newRuntime(t, agentcore.WithStore(store))

	res, err := rt.LoadDefinitions(context.Background(), paths, func(def *agentdef.Definition) (agentcore.Agent, error) {
		return agentcore.NewAgent(def.Name, nil), nil
	})
	assert.Len(t, res.Results, 2)
	require.ErrorIs(t, err, agentcore.ErrDuplicateDefinition)
	assert.ErrorContains(t, err, "second.yaml")

	def, ok := rt.Definitions().Get("worker")
	require.True(t, ok)
	assert.Equal(t, paths[0], def.Source)

	stored, err := store.Get(context.Background(), "worker")
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, stored.TickInterval.Std())

	sched, ok := rt.Scheduler("worker")
	require.True(t, ok)
	assert.Equal(t, 100*time.Millisecond, sched.BaseInterval())
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeDef(t, dir, "a.yaml", "name: a")
	writeDef(t, dir, "notes.md", "ignored")

	settings := config.DefaultSettings()
	settings.DefinitionDir = dir
	rt := newRuntime(t, agentcore.WithSettings(settings))

	res, err := rt.LoadDir(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Len(t, res.Results, 1)
	assert.Empty(t, rt.Agents())
	assert.Equal(t, []string{"a"}, rt.Definitions().Names())

	_, err = rt.LoadDir(context.Background(), filepath.Join(dir, "absent"), nil)
	assert.Error(t, err)
}

func TestWithErrorContext(t *testing.T) {
	assert.Nil(t, agentcore.WithErrorContext(nil))

	inner := agentcore.NewAgent("x", func(agentcore.Context) error {
		return &agentcore.AgentError{Agent: "other", Op: "sync", Err: errors.New("e")}
	})
	wrapped := agentcore.WithErrorContext(inner)
	assert.Equal(t, wrapped, agentcore.WithErrorContext(wrapped))
	assert.Equal(t, "x", wrapped.Name())

	err := wrapped.Tick(nil)
	var agentErr *agentcore.AgentError
	require.ErrorAs(t, err, &agentErr)
	// Existing agent errors are not re-wrapped.
	assert.Equal(t, "other", agentErr.Agent)

	ok := agentcore.WithErrorContext(agentcore.NewAgent("y", nil))
	assert.NoError(t, ok.Tick(nil))
}
