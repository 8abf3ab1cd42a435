package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/solatis/conditions/internal/core/api"
	"github.com/solatis/conditions/internal/core/auth"
	"github.com/solatis/conditions/internal/core/config"
	"github.com/solatis/conditions/internal/core/server"
	"github.com/solatis/conditions/internal/core/store"
	"github.com/solatis/conditions/internal/metrics"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	var insecure bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gRPC condition service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, root, insecure)
		},
	}

	cmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	cmd.Flags().Int("port", 50061, "gRPC server port")
	cmd.Flags().Int("metrics-port", 0, "Prometheus /metrics port (0 disables)")
	cmd.Flags().BoolVar(&insecure, "insecure", false, "disable API key authentication (development only)")
	return cmd
}

func runServe(cmd *cobra.Command, root *rootOptions, insecure bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := root.load(cmd)
	if err != nil {
		return err
	}

	database, queries, err := e.openQueries(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	m := metrics.New()
	m.RegisterDBStats(database.DB, database.DriverName())

	opts := []server.Option{server.WithMetrics(m), server.WithLogger(e.log)}
	if !insecure {
		secrets, err := config.HMACSecrets()
		if err != nil {
			return fmt.Errorf("failed to load HMAC secrets: %w", err)
		}
		if len(secrets) == 0 {
			return fmt.Errorf("no HMAC secrets configured (set %s_HMAC_SECRET environment variable or pass --insecure)", config.EnvPrefix)
		}
		opts = append(opts, server.WithAuthenticator(auth.NewAuthenticator(secrets, queries, auth.WithMetrics(m))))
	}

	service, err := api.NewConditionService(e.defs,
		api.WithStore(store.New(queries, e.defs, store.WithMetrics(m))),
		api.WithMetrics(m),
		api.WithLogger(e.log),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	grpcServer, err := server.NewGRPCServer(e.cfg, service, opts...)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	e.log.Info("starting condition service",
		slog.String("version", Version),
		slog.String("host", e.cfg.Host),
		slog.Int("port", e.cfg.Port),
		slog.Int("groups", len(e.defs)),
	)

	errChan := make(chan error, 1)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	case <-ctx.Done():
		e.log.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), e.cfg.RequestTimeout+5*time.Second)
		defer cancel()
		return grpcServer.Shutdown(shutdownCtx)
	}
}
