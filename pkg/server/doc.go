// Package server runs the rule API over HTTP.
//
// The server wraps the API handler in the middleware chain (recovery,
// request ID, logging, body limit), listens on the configured address and
// shuts down gracefully when its context is cancelled, when Stop is called,
// or on SIGINT or SIGTERM:
//
//	srv := server.NewServer(&cfg.Server, a.Handler(), logger)
//	srv.OnShutdown(store.Close)
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
//
// WithTLS switches the listener to HTTPS and Use adds middleware such as
// rate limiting inside the request logger.
//
// Shutdown waits up to ServerConfig.ShutdownTimeout for in-flight requests
// before running the registered shutdown hooks in reverse order.
package server
