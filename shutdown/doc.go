// Package shutdown provides the ordered shutdown hooks of an automation
// client process.
//
// # Overview
//
// Components register asynchronous cleanup hooks with a priority while the
// process starts. When the process is asked to terminate, the Coordinator
// runs the hooks one after another (lower priority first), adds up their
// statuses and exits exactly once.
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                          Coordinator                             │
//	├──────────────────────────────────────────────────────────────────┤
//	│  Idle ──(signal / Shutdown)──▶ Draining ──(hooks done)──▶ Done   │
//	│                                                                  │
//	│  ┌─────────────┐   ┌─────────────┐   ┌─────────────┐             │
//	│  │  Hook  p=10 │ → │  Hook  p=50 │ → │ Hook p=max  │ → Exit(sum) │
//	│  └─────────────┘   └─────────────┘   └─────────────┘             │
//	└──────────────────────────────────────────────────────────────────┘
//
// # Usage
//
//	coord := shutdown.NewCoordinator(shutdown.DefaultConfig())
//	coord.HandleSignals() // SIGTERM, SIGINT
//
//	coord.Register(func(ctx context.Context) (int, error) {
//	    return 0, server.Stop(ctx)
//	}, 10, "stop accepting commands")
//
//	coord.RegisterLast(func(ctx context.Context) (int, error) {
//	    return 0, provider.Shutdown(ctx)
//	}, "flush traces")
//
// # Semantics
//
//   - Hooks never run concurrently. Each hook finishes before the next starts.
//   - A hook that returns an error or panics counts as PenaltyStatus (10) and
//     the drain carries on with the next hook.
//   - The registry is cleared after the drain. A second shutdown request
//     returns ErrAlreadyShutdown.
//   - A started drain is not cancelled by the caller's context. Hooks get a
//     context without its deadline.
//   - ForceExitTimeout (default 10s) bounds the whole shutdown. When it
//     fires, hook contexts are cancelled and the process exits with the
//     status accumulated so far.
//   - The exit callback is invoked exactly once. If it returns, Shutdown
//     panics with ErrExitReturned.
package shutdown
