// Package shutdown coordinates graceful process termination.
//
// Components register named hooks as they start; Wait blocks until SIGINT,
// SIGTERM, Trigger or context cancellation, then runs the hooks in reverse
// registration order under a shared timeout:
//
//	h := shutdown.NewHandler(15*time.Second, log)
//	h.OnShutdown("http", srv.Shutdown)
//	h.OnShutdown("storage", func(context.Context) error { return engine.Close() })
//	err := h.Wait(ctx)
package shutdown
