package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/neonvoidvibes/align/internal/engine"
	"github.com/neonvoidvibes/align/internal/llm"
	"github.com/neonvoidvibes/align/internal/server"
)

// backlogLimit caps how many pending messages serve queues at startup.
const backlogLimit = 10000

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server and analysis queue",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, reg, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: LLM not configured (%v), values will only decay\n", err)
	} else {
		fmt.Fprintf(os.Stderr, "  llm: %s (%s)\n", cfg.LLM.Provider, cfg.LLM.Model)
	}

	metrics := engine.NewMetrics()
	otel.SetMeterProvider(metrics.MeterProvider())
	defer metrics.Shutdown(context.Background())

	eng := engine.New(db, reg, llmClient, engine.WithMeterProvider(metrics.MeterProvider()))
	queue := engine.NewQueue(eng)

	// Resume work left by a previous process before taking new messages, so
	// older days are analyzed first.
	n, err := queue.EnqueuePending(db, backlogLimit)
	if err != nil {
		return err
	}
	if n > 0 {
		fmt.Fprintf(os.Stderr, "  backlog: %d pending messages queued\n", n)
	}

	if cfg.Maintenance.Enabled {
		m, err := engine.StartMaintenance(db, cfg.Maintenance.Schedule)
		if err != nil {
			return err
		}
		defer m.Stop()
		fmt.Fprintf(os.Stderr, "  maintenance: %s\n", cfg.Maintenance.Schedule)
	}

	srv := server.New(db, reg, queue, VersionString())
	srv.SetMetrics(metrics)

	addr := cfg.ListenAddr()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "align serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  db: %s\n", db.Path)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return queue.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "\nshutting down...")
		queue.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
