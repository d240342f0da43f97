// Package shutdown runs ordered shutdown hooks on SIGINT or SIGTERM and
// reload callbacks on SIGHUP.
//
// Usage:
//
//	h := shutdown.NewHandler(30 * time.Second)
//	h.OnShutdown(srv.Shutdown)
//	h.OnReload(reloadConfig)
//	err := h.WaitContext(ctx)
package shutdown
