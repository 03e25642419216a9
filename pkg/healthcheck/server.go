package healthcheck

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"k8s.io/klog/v2"
)

// Run serves /healthz on port until ctx is done.
func Run(ctx context.Context, port int, options ...Option) error {
	router := http.NewServeMux()
	router.Handle("/healthz", HandlerFunc(options...))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	doneCh := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			klog.Info("Healthz server is shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) // nolint: errcheck
		case <-doneCh:
		}
	}()

	klog.InfoS("Healthz server is listening", "addr", srv.Addr)
	err := srv.ListenAndServe()
	close(doneCh)
	if err == http.ErrServerClosed {
		return nil
	}
	klog.ErrorS(err, "Healthz server error")
	return err
}
