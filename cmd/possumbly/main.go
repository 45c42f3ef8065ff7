package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gorm.io/gorm"

	"github.com/petejm/possumbly/internal/audit"
	"github.com/petejm/possumbly/internal/config"
	"github.com/petejm/possumbly/internal/db"
	"github.com/petejm/possumbly/internal/otel"
	"github.com/petejm/possumbly/internal/server"
	"github.com/petejm/possumbly/internal/version"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           version.Name,
		Short:         "Invite-gated meme studio and gallery server",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newSweepAuditCommand())
	return cmd
}

func setup(ctx context.Context) (config.Config, error) {
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	return config.Load(ctx)
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	cfg, err := setup(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cleanup, err := otel.Init(ctx, version.Name, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("init otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cleanup(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown otel")
		}
	}()

	database, err := db.Connect(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := db.Close(database); err != nil {
			log.Error().Err(err).Msg("close database")
		}
	}()

	if err := db.Migrate(ctx, database); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	recorder := audit.NewRecorder(database)
	defer recorder.Close()

	go sweepLoop(ctx, database, cfg.AuditRetention)

	// Identity providers are wired here from deployment configuration.
	// With none registered, login routes answer 404 and existing sessions
	// keep working.
	api, err := server.New(database, cfg, recorder, nil)
	if err != nil {
		return fmt.Errorf("init api: %w", err)
	}

	handler := gzhttp.GzipHandler(otelhttp.NewHandler(api.Routes(), "http"))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Str("version", version.Version).Msg("starting possumbly")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func sweepLoop(ctx context.Context, database *gorm.DB, retention time.Duration) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := audit.Sweep(ctx, database, retention)
			if err != nil {
				log.Error().Err(err).Msg("audit sweep failed")
				continue
			}
			if removed > 0 {
				log.Info().Int64("removed", removed).Msg("audit sweep")
			}
		}
	}
}

func newSweepAuditCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-audit",
		Short: "Delete audit entries past the retention window and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := setup(ctx)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			database, err := db.Connect(ctx, cfg.DBDSN)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer func() { _ = db.Close(database) }()

			removed, err := audit.Sweep(ctx, database, cfg.AuditRetention)
			if err != nil {
				return err
			}
			log.Info().Int64("removed", removed).Msg("audit sweep complete")
			return nil
		},
	}
}
