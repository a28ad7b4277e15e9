// Command publishevent is the invocation shim for the publish pipeline: a
// single Handle(ctx, event) error entry point wired once at cold start,
// fronted by an authenticated admin HTTP surface and unauthenticated health
// endpoints for schedulers/load balancers that drive it.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonwraymond/resilientfanout/health"
	"github.com/jonwraymond/resilientfanout/observe"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx)
	if err != nil {
		// Observer may not exist yet; fall back to stderr for a cold-start fault.
		os.Stderr.WriteString("publishevent: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger := app.observer.Logger()
	logger.Info(ctx, "starting publishevent", observe.Field{Key: "admin_addr", Value: app.cfg.AdminListenAddr})

	mux := http.NewServeMux()
	health.RegisterHandlers(mux, app.health.Aggregator())
	app.registerAdminRoutes(mux)

	srv := &http.Server{
		Addr:    app.cfg.AdminListenAddr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "admin server failed", observe.Field{Key: "error", Value: err.Error()})
		}
	}()

	// Run the pipeline once at startup, mirroring a single invocation of
	// Handle outside the scheduler that would normally trigger it.
	if err := app.Handle(ctx, nil); err != nil {
		logger.Error(ctx, "pipeline run failed", observe.Field{Key: "error", Value: err.Error()})
	}

	<-ctx.Done()
	logger.Info(context.Background(), "shutting down publishevent")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = app.observer.Shutdown(shutdownCtx)
}
