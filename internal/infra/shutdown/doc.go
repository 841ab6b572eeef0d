// Package shutdown coordinates a graceful stop on SIGINT or SIGTERM.
//
// Long-running commands derive their context from WithSignals and register
// cleanup hooks on a Handler:
//
//	ctx, stop := shutdown.WithSignals(context.Background())
//	defer stop()
//	h := shutdown.NewHandler(5 * time.Second)
//	h.OnShutdown(func(context.Context) error { return store.Close() })
//	<-ctx.Done()
//	err := h.Shutdown()
package shutdown
