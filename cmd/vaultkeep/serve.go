package main

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/vaultkeep/server/internal/access"
	"github.com/vaultkeep/server/internal/auth"
	"github.com/vaultkeep/server/internal/authrequest"
	"github.com/vaultkeep/server/internal/config"
	"github.com/vaultkeep/server/internal/events"
	"github.com/vaultkeep/server/internal/migrate"
	"github.com/vaultkeep/server/internal/notify"
	"github.com/vaultkeep/server/internal/policy"
	"github.com/vaultkeep/server/internal/ratelimit"
	grpcserver "github.com/vaultkeep/server/internal/server/grpc"
	"github.com/vaultkeep/server/internal/store/postgres"
	"github.com/vaultkeep/server/internal/token"
	"github.com/vaultkeep/server/internal/vault"
)

func newServeCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run migrations and start the internal control-plane server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "optional YAML config file (env vars always take precedence)")
	return cmd
}

func runServe(parentCtx context.Context, cfg config.Config) error {
	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(parentCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting vaultkeep", zap.String("version", version))

	if err := migrate.Up(ctx, cfg.Database.DSN); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("pgxpool.New: %w", err)
	}
	defer pool.Close()

	st := postgres.Wrap(pool)

	priv, pub, err := token.LoadOrGenerateKeyPair(cfg.Token.DataDir)
	if err != nil {
		return fmt.Errorf("load token keypair: %w", err)
	}
	codec := token.New(priv, pub)
	for kind, ttl := range cfg.Token.Lifetimes {
		codec.WithLifetime(token.Kind(kind), ttl)
	}

	limiter := ratelimit.NewPG(pool, cfg.RateLimit.Window, cfg.RateLimit.MaxFailures, cfg.RateLimit.BlockFor)

	registry, err := buildTwoFactorRegistry(cfg, st)
	if err != nil {
		return fmt.Errorf("build 2fa registry: %w", err)
	}

	hub := notify.NewHub()
	var push *notify.PushRelay
	if cfg.Push.Endpoint != "" {
		push = notify.NewPushRelay(cfg.Push.Endpoint)
	}
	notifier := notify.New(hub, push, st, st)

	resolver := access.New(st)
	authEngine := auth.New(st, st, st, st, limiter, codec, registry, notifier)
	vaultEngine := vault.New(st, st, st, resolver, notifier)
	broker := authrequest.New(st, st, st, notifier)
	policyEngine := policy.New(st, st)
	eventLog := events.New(st)

	// authEngine/vaultEngine/broker/policyEngine are exercised by the
	// HTTP/JSON API external collaborator (spec section 6), not by
	// anything in this binary — this server's own surface is the admin
	// control plane below plus the background maintenance jobs, which
	// share vaultEngine/broker/eventLog for their purge operations.
	_ = authEngine
	_ = policyEngine

	grpcSrv := grpcserver.New(st, notifier)
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(
		grpcserver.RecoverUnary(logger),
		grpcserver.LoggingUnary(logger),
		grpcserver.AdminAuthUnary(codec),
	))
	grpcserver.Register(gs, grpcSrv)

	lis, err := net.Listen("tcp", cfg.Server.ControlPlaneAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.ControlPlaneAddr, err)
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- gs.Serve(lis) }()
	logger.Info("control plane listening", zap.String("addr", cfg.Server.ControlPlaneAddr))

	jobs := newJobRunner(logger, vaultEngine, broker, eventLog, cfg.Events.Retention)
	jobsDone := jobs.run(ctx)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			logger.Error("grpc server stopped", zap.Error(err))
		}
	}

	gs.GracefulStop()
	<-jobsDone
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
