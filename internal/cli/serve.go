package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/justsurfingit/jobops-pipeline/internal/handlers"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the daily pipeline scheduler",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (default $PORT or 8080)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, db, cfg, logger, true)
	if err != nil {
		return err
	}
	if _, err := a.registry.Initialize(ctx); err != nil {
		return fmt.Errorf("load extractors: %w", err)
	}
	a.scheduler.StartWatcher(ctx)

	router := handlers.Router{
		Jobs:     handlers.NewJobHandler(a.llm, a.jobSvc),
		Pipeline: handlers.NewPipelineHandler(a.pipeline, a.runs, a.registry, cfg.WebhookSecret, logger),
		Actions:  handlers.NewActionHandler(a.actions, logger),
		Settings: handlers.NewSettingsHandler(a.settings),
	}

	port := cfg.Port
	if servePort != 0 {
		port = servePort
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	if a.pipeline.IsRunning() {
		a.pipeline.RequestCancel()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
