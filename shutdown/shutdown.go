package shutdown

import (
	"context"
	"errors"
	"math"
	"os"
	"time"

	"github.com/vinayprograms/automationkit/logging"
)

// Common errors.
var (
	// ErrAlreadyShutdown indicates shutdown was already initiated.
	ErrAlreadyShutdown = errors.New("shutdown already initiated")

	// ErrExitReturned is raised when the exit callback returns control.
	ErrExitReturned = errors.New("shutdown exit callback returned but should not have")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

const (
	// PenaltyStatus is counted for a hook that fails instead of its status.
	PenaltyStatus = 10

	// DefaultPriority runs a hook after every hook with an explicit priority.
	DefaultPriority = math.MaxInt

	// DefaultForceExitTimeout bounds the whole shutdown.
	DefaultForceExitTimeout = 10000 * time.Millisecond
)

// Hook is a cleanup action run at shutdown. It returns a status, 0 on
// success. The context is cancelled when the force-exit timeout fires.
type Hook func(ctx context.Context) (int, error)

// State is the lifecycle state of a Coordinator.
type State int

const (
	StateIdle State = iota
	StateDraining
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// HookResult contains the outcome of a single hook.
type HookResult struct {
	Description string
	Priority    int
	Status      int
	Duration    time.Duration

	// Err is the error or recovered panic of a failed hook.
	Err error
}

// ShutdownResult contains the complete drain result.
type ShutdownResult struct {
	TotalDuration time.Duration

	// Status is the sum of all hook statuses.
	Status int

	Results []HookResult

	// TimedOut is set when the force-exit timeout cut the drain short.
	TimedOut bool
}

// Failed returns true if any hook failed.
func (r *ShutdownResult) Failed() bool {
	for _, hr := range r.Results {
		if hr.Err != nil {
			return true
		}
	}
	return false
}

// FailedHooks returns the descriptions of hooks that failed.
func (r *ShutdownResult) FailedHooks() []string {
	var failed []string
	for _, hr := range r.Results {
		if hr.Err != nil {
			failed = append(failed, hr.Description)
		}
	}
	return failed
}

// Config configures the shutdown coordinator.
type Config struct {
	// ForceExitTimeout is the longest a shutdown may take before the process
	// is terminated regardless of running hooks.
	// Default: 10 seconds
	ForceExitTimeout time.Duration

	// Exit terminates the process with the aggregate status.
	// Default: os.Exit with the status capped at 255.
	Exit func(status int)

	// Logger receives shutdown progress. Default: logging.New().
	Logger *logging.Logger

	// OnProgress is called when each hook completes.
	OnProgress func(result HookResult)
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.ForceExitTimeout < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ForceExitTimeout: DefaultForceExitTimeout,
		Exit:             exitProcess,
	}
}

func exitProcess(status int) {
	if status > 255 {
		status = 255
	}
	os.Exit(status)
}

type registration struct {
	hook        Hook
	priority    int
	description string
}
