// Command userimportd serves the user service over gRPC, backed by the
// in-memory store.
package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/userimport/internal/config"
	"github.com/JonMunkholm/userimport/internal/core"
	"github.com/JonMunkholm/userimport/internal/logging"
	"github.com/JonMunkholm/userimport/internal/rpc"
	"github.com/JonMunkholm/userimport/internal/store"
)

func main() {
	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	rules, err := core.ParseRuleSet(cfg.Upload.ValidationRules)
	if err != nil {
		slog.Error("invalid validation rules", "error", err)
		os.Exit(1)
	}

	memory := store.NewMemory(core.NewPipeline(core.NewValidator(core.WithRuleSet(rules))))
	grpcServer := rpc.NewGRPCServer(rpc.NewServer(memory), slog.Default())

	lis, err := net.Listen("tcp", cfg.Backend.RPCListenAddr)
	if err != nil {
		slog.Error("failed to listen", "addr", cfg.Backend.RPCListenAddr, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("user service listening", "addr", lis.Addr().String(), "rules", rules)
		return grpcServer.Serve(lis)
	})

	g.Go(func() error {
		<-gCtx.Done()
		slog.Info("shutting down...", "users", memory.Len())
		grpcServer.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("user service stopped", "error", err)
		os.Exit(1)
	}
}
