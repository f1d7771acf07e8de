// Package shutdown coordinates graceful process termination.
//
// A Handler waits for SIGINT, SIGTERM, context cancellation or an
// explicit Trigger, then runs the registered hooks in reverse order under
// a shared deadline:
//
//	h := shutdown.NewHandler(15*time.Second, lg)
//	h.OnShutdown("http", srv.Shutdown)
//	go func() { h.Trigger(srv.ListenAndServe()) }()
//	err := h.Wait(ctx)
package shutdown
