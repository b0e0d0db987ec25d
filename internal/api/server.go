package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const readHeaderTimeout = 10 * time.Second

// StartServer serves handler on port in a goroutine and returns the server for
// graceful shutdown. name labels the listener in logs.
func StartServer(name string, handler http.Handler, port string) *http.Server {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info().Str("server", name).Str("address", srv.Addr).Msg("Listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Str("server", name).Msg("Failed to start server")
		}
	}()

	return srv
}

// ShutdownServer stops accepting connections and waits up to timeout for
// in-flight requests, including running checks, to finish.
func ShutdownServer(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server %s forced to shutdown: %w", srv.Addr, err)
	}
	log.Info().Str("address", srv.Addr).Msg("Server stopped")
	return nil
}
