package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tripreport/internal/config"
	"tripreport/internal/logger"
	"tripreport/internal/server"
)

const shutdownTimeout = 15 * time.Second

// NewServeCmd creates the serve command for starting the HTTP server
func NewServeCmd() *cobra.Command {
	var (
		port   int
		host   string
		bundle string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and public report gallery",
		Long: `Start the tripreport web server.

The server provides:
  • Public gallery of published reports (/ and /reports/{id})
  • JSON API for reports (/api/reports)
  • Admin API for entries, settings, generation and publishing
    (requires ADMIN_API_KEY, sent as "Authorization: Bearer <key>")
  • Health check and Prometheus metrics (/health, /metrics)

Examples:
  # Start server on default port 8080
  tripreport serve

  # Start on a custom port with a bundle preloaded
  tripreport serve --port 3000 --bundle report-data.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port, host, bundle)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default from config: 8080)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP server host (default from config: 0.0.0.0)")
	cmd.Flags().StringVar(&bundle, "bundle", "", "report-data bundle to start the session with")

	return cmd
}

func runServe(ctx context.Context, port int, host, bundle string) error {
	log := logger.Get()

	serverCfg := config.GetServer()
	if port != 0 {
		serverCfg.Port = port
	}
	if host != "" {
		serverCfg.Host = host
	}
	if serverCfg.AdminAPIKey == "" {
		log.Warn("ADMIN_API_KEY not set; only the public gallery is available")
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()
	log.Info("Database connection successful", "driver", config.GetDatabase().Driver)

	sess, err := loadSession(ctx, st, bundle)
	if err != nil {
		return err
	}
	synth, err := newSynthesizer(ctx)
	if err != nil {
		return err
	}
	composer, err := newComposer(ctx)
	if err != nil {
		return err
	}

	srv := server.New(server.Deps{
		Store:     st,
		Session:   sess,
		Generator: synth,
		Composer:  composer,
	}, serverCfg)

	serverErrors := make(chan error, 1)
	go func() {
		log.Info(fmt.Sprintf("Server listening on http://%s:%d", serverCfg.Host, serverCfg.Port))
		log.Info("Press Ctrl+C to stop")
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Info("Server shutdown initiated", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown failed", "error", err)
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		log.Info("Server stopped successfully")
	}

	return nil
}
