package shutdown

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinayprograms/automationkit/logging"
)

type exitRecorder struct {
	mu       sync.Mutex
	statuses []int
}

func (r *exitRecorder) exit(status int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

func (r *exitRecorder) calls() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.statuses...)
}

func newTestCoordinator(exit func(int)) *Coordinator {
	return NewCoordinator(Config{
		ForceExitTimeout: 5 * time.Second,
		Exit:             exit,
		Logger:           logging.Nop(),
	})
}

func status(n int, order *[]int, mu *sync.Mutex, tag int) Hook {
	return func(ctx context.Context) (int, error) {
		mu.Lock()
		*order = append(*order, tag)
		mu.Unlock()
		return n, nil
	}
}

func TestDrain_PriorityOrder(t *testing.T) {
	coord := newTestCoordinator(nil)

	var order []int
	var mu sync.Mutex
	coord.Register(status(0, &order, &mu, 5), 5, "five")
	coord.Register(status(0, &order, &mu, 1), 1, "one")
	coord.Register(status(0, &order, &mu, 3), 3, "three")

	assert.Equal(t, []string{"one", "three", "five"}, coord.Hooks())

	result, err := coord.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 5}, order)
	assert.Len(t, result.Results, 3)
	assert.False(t, result.Failed())
}

func TestDrain_EqualPrioritiesKeepRegistrationOrder(t *testing.T) {
	coord := newTestCoordinator(nil)

	var order []int
	var mu sync.Mutex
	coord.Register(status(0, &order, &mu, 1), 7, "first")
	coord.Register(status(0, &order, &mu, 0), 1, "early")
	coord.Register(status(0, &order, &mu, 2), 7, "second")
	coord.Register(status(0, &order, &mu, 3), 7, "third")

	_, err := coord.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, order)
}

func TestDrain_DuplicateHookRunsTwice(t *testing.T) {
	coord := newTestCoordinator(nil)

	calls := 0
	hook := func(ctx context.Context) (int, error) {
		calls++
		return 2, nil
	}
	coord.Register(hook, 1, "dup")
	coord.Register(hook, 1, "dup")

	result, err := coord.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 4, result.Status)
}

func TestDrain_FailuresArePenalizedAndDoNotAbort(t *testing.T) {
	coord := newTestCoordinator(nil)

	var ran []string
	coord.Register(func(ctx context.Context) (int, error) {
		ran = append(ran, "error")
		return 3, errors.New("close failed")
	}, 1, "error")
	coord.Register(func(ctx context.Context) (int, error) {
		ran = append(ran, "panic")
		panic("boom")
	}, 2, "panic")
	coord.Register(func(ctx context.Context) (int, error) {
		ran = append(ran, "ok")
		return 1, nil
	}, 3, "ok")

	result, err := coord.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"error", "panic", "ok"}, ran)
	assert.Equal(t, PenaltyStatus+PenaltyStatus+1, result.Status)
	assert.Equal(t, []string{"error", "panic"}, result.FailedHooks())
}

func TestDrain_ClearsRegistryAndRejectsSecondDrain(t *testing.T) {
	coord := newTestCoordinator(nil)
	coord.Register(func(ctx context.Context) (int, error) { return 0, nil }, 1, "")

	assert.Equal(t, []string{"Shutdown hook with priority 1"}, coord.Hooks())
	assert.Equal(t, StateIdle, coord.State())

	_, err := coord.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDone, coord.State())
	assert.Empty(t, coord.Hooks())

	select {
	case <-coord.Done():
	default:
		t.Fatal("expected Done channel to be closed")
	}

	_, err = coord.Drain(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyShutdown)

	coord.Register(func(ctx context.Context) (int, error) { return 0, nil }, 1, "late")
	assert.Empty(t, coord.Hooks(), "hooks registered after shutdown are dropped")
}

func TestDrain_RegistrationDuringDrainIsNotRun(t *testing.T) {
	coord := newTestCoordinator(nil)

	lateRan := false
	coord.Register(func(ctx context.Context) (int, error) {
		coord.Register(func(ctx context.Context) (int, error) {
			lateRan = true
			return 0, nil
		}, 99, "late")
		return 0, nil
	}, 1, "registers another")

	result, err := coord.Drain(context.Background())
	require.NoError(t, err)
	assert.False(t, lateRan)
	assert.Len(t, result.Results, 1)
	assert.Empty(t, coord.Hooks())
}

func TestDrain_OnProgress(t *testing.T) {
	var seen []HookResult
	coord := NewCoordinator(Config{
		Logger:     logging.Nop(),
		OnProgress: func(hr HookResult) { seen = append(seen, hr) },
	})
	coord.Register(func(ctx context.Context) (int, error) { return 4, nil }, 2, "metrics")

	_, err := coord.Drain(context.Background())
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, "metrics", seen[0].Description)
	assert.Equal(t, 2, seen[0].Priority)
	assert.Equal(t, 4, seen[0].Status)
}

func TestShutdown_ExitsOnceWithAggregateStatus(t *testing.T) {
	rec := &exitRecorder{}
	coord := newTestCoordinator(rec.exit)
	coord.Register(func(ctx context.Context) (int, error) { return 1, nil }, 1, "a")
	coord.Register(func(ctx context.Context) (int, error) { return 0, errors.New("x") }, 2, "b")

	assert.PanicsWithError(t, ErrExitReturned.Error(), func() {
		_ = coord.Shutdown(context.Background())
	})
	assert.Equal(t, []int{11}, rec.calls())
	assert.Equal(t, 11, coord.Result().Status)

	assert.ErrorIs(t, coord.Shutdown(context.Background()), ErrAlreadyShutdown)
	assert.Equal(t, []int{11}, rec.calls())
}

func TestShutdown_EmptyRegistryExitsImmediately(t *testing.T) {
	rec := &exitRecorder{}
	coord := newTestCoordinator(rec.exit)

	assert.PanicsWithError(t, ErrExitReturned.Error(), func() {
		_ = coord.Shutdown(context.Background())
	})
	assert.Equal(t, []int{0}, rec.calls())
	assert.Empty(t, coord.Result().Results)
}

func TestShutdown_ForceExitTimeout(t *testing.T) {
	exits := make(chan int, 2)
	coord := newTestCoordinator(func(s int) { exits <- s })
	coord.SetForceExitTimeout(50 * time.Millisecond)

	release := make(chan struct{})
	var hookCtxErr error
	coord.Register(func(ctx context.Context) (int, error) { return 2, nil }, 1, "fast")
	coord.Register(func(ctx context.Context) (int, error) {
		<-release
		hookCtxErr = ctx.Err()
		return 0, nil
	}, 2, "stuck")
	afterRan := false
	coord.Register(func(ctx context.Context) (int, error) {
		afterRan = true
		return 0, nil
	}, 3, "after")

	finished := make(chan interface{})
	go func() {
		defer func() { finished <- recover() }()
		_ = coord.Shutdown(context.Background())
	}()

	select {
	case s := <-exits:
		assert.Equal(t, 2, s, "forced exit carries the status accumulated so far")
	case <-time.After(2 * time.Second):
		t.Fatal("force exit did not fire")
	}
	close(release)

	assert.Equal(t, ErrExitReturned, <-finished)
	assert.Len(t, exits, 0, "exit must be invoked exactly once")
	assert.Error(t, hookCtxErr)
	assert.False(t, afterRan)
	assert.True(t, coord.Result().TimedOut)
}

func TestDrain_CancelledContextRunsEveryHook(t *testing.T) {
	coord := newTestCoordinator(func(int) {})
	var hookErrs []error
	hook := func(ctx context.Context) (int, error) {
		hookErrs = append(hookErrs, ctx.Err())
		return 1, nil
	}
	coord.Register(hook, 1, "a")
	coord.Register(hook, 2, "b")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := coord.Drain(ctx)
	require.NoError(t, err)
	assert.Len(t, res.Results, 2)
	assert.Equal(t, 2, res.Status)
	assert.False(t, res.TimedOut)
	assert.Equal(t, []error{nil, nil}, hookErrs)
}

func TestShutdown_CancelledContextRunsEveryHook(t *testing.T) {
	rec := &exitRecorder{}
	coord := newTestCoordinator(rec.exit)
	coord.Register(func(ctx context.Context) (int, error) { return 1, nil }, 1, "a")
	coord.Register(func(ctx context.Context) (int, error) { return 2, ctx.Err() }, 2, "b")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.PanicsWithError(t, ErrExitReturned.Error(), func() {
		_ = coord.Shutdown(ctx)
	})
	assert.Equal(t, []int{3}, rec.calls())
	assert.False(t, coord.Result().TimedOut)
}

func TestSetForceExitTimeout_NonPositiveUsesDefault(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Second} {
		rec := &exitRecorder{}
		coord := newTestCoordinator(rec.exit)
		coord.SetForceExitTimeout(d)
		coord.Register(func(ctx context.Context) (int, error) {
			time.Sleep(20 * time.Millisecond)
			return 3, nil
		}, 1, "slow")

		assert.PanicsWithError(t, ErrExitReturned.Error(), func() {
			_ = coord.Shutdown(context.Background())
		})
		assert.Equal(t, []int{3}, rec.calls(), "timeout %v", d)
	}
}

func TestHandleSignals(t *testing.T) {
	exits := make(chan int, 1)
	coord := newTestCoordinator(func(s int) {
		exits <- s
		runtime.Goexit()
	})
	coord.Register(func(ctx context.Context) (int, error) { return 3, nil }, 1, "hook")

	coord.HandleSignals()
	coord.Trigger()

	select {
	case s := <-exits:
		assert.Equal(t, 3, s)
	case <-time.After(2 * time.Second):
		t.Fatal("signal did not trigger shutdown")
	}
	<-coord.Done()
}

func TestReset(t *testing.T) {
	rec := &exitRecorder{}
	coord := newTestCoordinator(rec.exit)
	coord.Register(func(ctx context.Context) (int, error) { return 0, nil }, 1, "a")
	_, err := coord.Drain(context.Background())
	require.NoError(t, err)

	coord.Reset()
	assert.Equal(t, StateIdle, coord.State())
	assert.Nil(t, coord.Result())

	coord.Register(func(ctx context.Context) (int, error) { return 5, nil }, 1, "b")
	assert.PanicsWithError(t, ErrExitReturned.Error(), func() {
		_ = coord.Shutdown(context.Background())
	})
	assert.Equal(t, []int{5}, rec.calls())
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 10*time.Second, cfg.ForceExitTimeout)

	cfg.ForceExitTimeout = -1
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}
