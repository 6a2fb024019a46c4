package httphandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

const handlerTimeout = 5 * time.Second

type HTTPServer struct {
	httpServer *http.Server
}

// NewHTTPServer wraps handler with [AllowJSON] and a response timeout.
func NewHTTPServer(addr string, handler http.Handler) HTTPServer {
	handler = http.TimeoutHandler(AllowJSON(handler), handlerTimeout, "unavailable")
	s := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: handlerTimeout,
		IdleTimeout:       30 * time.Second,
	}
	return HTTPServer{s}
}

// Run blocks until the server is shut down and calls stopFn on return.
func (s HTTPServer) Run(stopFn context.CancelFunc) {
	const op = "HTTPServer.Run"
	log := slog.With("op", op)

	defer stopFn()
	log.Info("http server is listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("unexpected server shutdown", "err", err)
	}
}

func (s HTTPServer) Close(ctx context.Context) {
	const op = "HTTPServer.Close"
	log := slog.With("op", op)

	log.Info("closing http server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error("failed to shutdown gracefully", "err", err)
		return
	}
	log.Info("http server is closed")
}
