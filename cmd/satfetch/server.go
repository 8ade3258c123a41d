package main

import (
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// startMetricsServer listens on addr and serves handler in the background.
// It returns the bound address, which differs from addr when the port is 0.
func startMetricsServer(addr string, handler http.Handler, logger *zap.Logger) (*http.Server, string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", err
	}

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server stopped", zap.Error(err))
		}
	}()

	return server, ln.Addr().String(), nil
}
