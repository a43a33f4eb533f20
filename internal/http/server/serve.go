package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dropDatabas3/bizgate/internal/observability/logger"
)

// ShutdownTimeout es lo que se espera a que terminen los requests en vuelo.
const ShutdownTimeout = 10 * time.Second

// NewHTTPServer aplica los timeouts estándar a un handler.
func NewHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}
}

// Serve corre srv hasta que ctx se cancela y luego hace Shutdown. Si ln es
// nil escucha en srv.Addr. Retorna nil en un cierre ordenado.
func Serve(ctx context.Context, srv *http.Server, ln net.Listener) error {
	log := logger.From(ctx).With(logger.Layer("server"), logger.String("addr", srv.Addr))

	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", srv.Addr)
		if err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", logger.String("listen", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown incomplete", logger.Err(err))
		return err
	}
	<-errCh
	return nil
}
