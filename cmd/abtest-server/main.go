// Command abtest-server serves creative decisions for the tracker script.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	abtest "github.com/tracklab/abtest-go"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "abtest-server",
		Short:         "Experiment targeting and creative selection server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newServeCmd(), newCheckCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, newLogger(cfg.Log, debug))
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "abtest.yaml", "path to the configuration file")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	return cmd
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <snapshot-file>",
		Short: "Validate a snapshot file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := abtest.ReadSnapshotFromFile(args[0])
			if err != nil {
				return err
			}
			experiments := 0
			for _, p := range snap.Projects {
				experiments += len(p.Experiments)
			}
			out := cmd.OutOrStdout()
			for _, problem := range snap.Problems() {
				fmt.Fprintf(out, "warning: %v\n", problem)
			}
			fmt.Fprintf(out, "ok: schema %s, %d projects, %d experiments\n",
				snap.SchemaVersion, len(snap.Projects), experiments)
			return nil
		},
	}
}

func snapshotSource(cfg *Config) (abtest.SnapshotSource, error) {
	switch cfg.Snapshot.Source {
	case SourceFile:
		return abtest.FileSnapshotSource{Path: cfg.Snapshot.File}, nil
	case SourceMinIO:
		return abtest.NewMinIOSnapshotSource(cfg.Snapshot.MinIO)
	}
	// nil selects the API source of the client.
	return nil, nil
}

func serve(ctx context.Context, cfg *Config, log *slog.Logger) error {
	tp, shutdownTracing, err := setupTracing(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Error("tracing shutdown", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	source, err := snapshotSource(cfg)
	if err != nil {
		return err
	}

	opts := []abtest.Option{
		abtest.WithContext(ctx),
		abtest.WithBaseURL(cfg.BaseURL),
		abtest.WithSlogLogger(log),
		abtest.WithMetricsRegisterer(reg),
		abtest.WithTracerProvider(tp),
		abtest.WithSnapshotRefreshInterval(cfg.Snapshot.RefreshInterval),
	}
	if source != nil {
		opts = append(opts, abtest.WithSnapshotSource(source))
	}
	if cfg.Impressions.Enabled {
		opts = append(opts, abtest.WithImpressions(cfg.Impressions.FlushInterval))
	}
	client := abtest.NewClient(cfg.APIKey, opts...)

	if err := client.UpdateSnapshot(ctx); err != nil {
		// The refresh loop keeps retrying; requests get 503 until it succeeds.
		log.Error("initial snapshot load failed", "error", err)
	}

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           newRouter(client, log, reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", slog.String("addr", cfg.Listen), slog.String("version", version))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(sctx); err != nil {
		log.Error("http shutdown", "error", err)
	}
	if err := client.FlushImpressions(sctx); err != nil {
		log.Error("final impression flush", "error", err)
	}
	return nil
}
