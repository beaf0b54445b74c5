package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	kiterrors "github.com/vinayprograms/automationkit/errors"
	"github.com/vinayprograms/automationkit/logging"
)

// Coordinator holds the ordered shutdown hooks of a process and runs them
// once when the process is asked to terminate.
type Coordinator struct {
	mu         sync.Mutex
	config     Config
	log        *logging.Logger
	hooks      []registration
	state      State
	result     *ShutdownResult
	done       chan struct{}
	exitOnce   *sync.Once
	status     atomic.Int64
	forced     atomic.Bool
	signalChan chan os.Signal
}

// NewCoordinator creates a coordinator in the Idle state with no hooks.
func NewCoordinator(config Config) *Coordinator {
	config.ForceExitTimeout = forceExitTimeout(config.ForceExitTimeout)
	if config.Exit == nil {
		config.Exit = exitProcess
	}
	log := config.Logger
	if log == nil {
		log = logging.New()
	}

	return &Coordinator{
		config:     config,
		log:        log.WithComponent("shutdown"),
		done:       make(chan struct{}),
		exitOnce:   &sync.Once{},
		signalChan: make(chan os.Signal, 1),
	}
}

// Register adds a hook. Hooks run in ascending priority; hooks with equal
// priority run in registration order. The same hook may be registered more
// than once and then runs more than once.
//
// Hooks registered while a drain is running are kept but not run by that
// drain. Hooks registered after shutdown completed are dropped.
func (c *Coordinator) Register(hook Hook, priority int, description string) {
	if description == "" {
		description = fmt.Sprintf("Shutdown hook with priority %d", priority)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateDone {
		c.log.Warn("shutdown hook registered after shutdown, ignoring", map[string]interface{}{
			"hook": description,
		})
		return
	}

	i := len(c.hooks)
	for j, r := range c.hooks {
		if r.priority > priority {
			i = j
			break
		}
	}
	c.hooks = append(c.hooks, registration{})
	copy(c.hooks[i+1:], c.hooks[i:])
	c.hooks[i] = registration{hook: hook, priority: priority, description: description}
}

// RegisterLast adds a hook with DefaultPriority.
func (c *Coordinator) RegisterLast(hook Hook, description string) {
	c.Register(hook, DefaultPriority, description)
}

// SetForceExitTimeout sets the longest a shutdown may take. Zero or a
// negative duration selects DefaultForceExitTimeout.
func (c *Coordinator) SetForceExitTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config.ForceExitTimeout = forceExitTimeout(d)
}

func forceExitTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultForceExitTimeout
	}
	return d
}

// Hooks returns the descriptions of the registered hooks in run order.
func (c *Coordinator) Hooks() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, len(c.hooks))
	for i, r := range c.hooks {
		out[i] = r.description
	}
	return out
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Drain runs every registered hook, sequentially and in priority order, and
// clears the registry. A failing or panicking hook counts as PenaltyStatus
// and does not stop the remaining hooks. Once started, a drain is not
// cancelled by ctx: hooks receive a context that keeps ctx's values but not
// its deadline. Returns ErrAlreadyShutdown if a drain already started.
func (c *Coordinator) Drain(ctx context.Context) (*ShutdownResult, error) {
	return c.drain(context.WithoutCancel(ctx))
}

// drain runs the hooks with hookCtx. Hooks not yet started when the
// force-exit timer fired are skipped.
func (c *Coordinator) drain(hookCtx context.Context) (*ShutdownResult, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil, ErrAlreadyShutdown
	}
	c.state = StateDraining
	hooks := make([]registration, len(c.hooks))
	copy(hooks, c.hooks)
	onProgress := c.config.OnProgress
	c.mu.Unlock()

	start := time.Now()
	result := &ShutdownResult{Results: make([]HookResult, 0, len(hooks))}

	if len(hooks) == 0 {
		c.log.Info("Shutting down")
	} else {
		c.log.Info("Shutdown initiated, calling shutdown hooks", map[string]interface{}{
			"hooks": len(hooks),
		})
		for _, r := range hooks {
			if c.forced.Load() {
				result.TimedOut = true
				c.log.Warn("Shutdown timeout exceeded, skipping hook", map[string]interface{}{
					"hook": r.description,
				})
				continue
			}

			hr := c.runHook(hookCtx, r)
			result.Results = append(result.Results, hr)
			result.Status += hr.Status
			c.status.Store(int64(result.Status))

			if onProgress != nil {
				onProgress(hr)
			}
		}
		c.log.Info(fmt.Sprintf("Shutdown hooks completed with status '%d', exiting", result.Status))
	}
	result.TotalDuration = time.Since(start)

	c.mu.Lock()
	c.hooks = nil
	c.state = StateDone
	c.result = result
	close(c.done)
	c.mu.Unlock()

	return result, nil
}

// runHook calls one hook, converting errors and panics into the penalty status.
func (c *Coordinator) runHook(ctx context.Context, r registration) (hr HookResult) {
	hr = HookResult{Description: r.description, Priority: r.priority}
	c.log.ShutdownHookStart(r.description)
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			hr.Err = kiterrors.RecoverPanic(rec)
			hr.Status = PenaltyStatus
		}
		hr.Duration = time.Since(start)
		c.log.ShutdownHookComplete(r.description, hr.Status, hr.Duration, hr.Err)
	}()

	status, err := r.hook(ctx)
	if err != nil {
		hr.Err = err
		hr.Status = PenaltyStatus
		return hr
	}
	hr.Status = status
	return hr
}

// Shutdown drains the hooks and terminates the process through the
// configured exit callback, which is invoked exactly once. If the drain
// outlives the force-exit timeout, exit is forced with the status so far.
//
// Shutdown does not return on success: if the exit callback returns, it
// panics with ErrExitReturned. It returns ErrAlreadyShutdown when a
// shutdown is already under way.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	timeout := c.config.ForceExitTimeout
	c.mu.Unlock()

	hookCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	timer := time.AfterFunc(timeout, func() {
		c.log.Warn("Shutdown timeout exceeded, forcing exit", map[string]interface{}{
			"timeout": timeout.String(),
		})
		c.forced.Store(true)
		cancel()
		c.exit(int(c.status.Load()))
	})

	result, err := c.drain(hookCtx)
	timer.Stop()
	if err != nil {
		return err
	}

	c.exit(result.Status)
	panic(ErrExitReturned)
}

func (c *Coordinator) exit(status int) {
	c.mu.Lock()
	once, exit := c.exitOnce, c.config.Exit
	c.mu.Unlock()

	once.Do(func() {
		exit(status)
	})
}

// HandleSignals runs Shutdown when SIGTERM or SIGINT is received.
func (c *Coordinator) HandleSignals() {
	signal.Notify(c.signalChan, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-c.signalChan
		c.log.Info("Received signal", map[string]interface{}{"signal": sig.String()})
		if err := c.Shutdown(context.Background()); err != nil {
			c.log.Warn("Shutdown not started", map[string]interface{}{"error": err.Error()})
		}
	}()
}

// Trigger simulates a termination signal (useful for testing).
func (c *Coordinator) Trigger() {
	select {
	case c.signalChan <- syscall.SIGTERM:
	default:
	}
}

// Done returns a channel that is closed when the drain is complete.
func (c *Coordinator) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Result returns the drain result, or nil before the drain completed.
func (c *Coordinator) Result() *ShutdownResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Reset returns the coordinator to Idle with no hooks (mainly for testing).
// This is not safe to call during an active shutdown.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hooks = nil
	c.state = StateIdle
	c.result = nil
	c.done = make(chan struct{})
	c.exitOnce = &sync.Once{}
	c.status.Store(0)
	c.forced.Store(false)
}
