package cmd

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/promptsched/internal/auth"
	"github.com/nextlevelbuilder/promptsched/internal/config"
	"github.com/nextlevelbuilder/promptsched/internal/cron"
	"github.com/nextlevelbuilder/promptsched/internal/gateway"
	"github.com/nextlevelbuilder/promptsched/internal/modelclient"
	"github.com/nextlevelbuilder/promptsched/internal/models"
	"github.com/nextlevelbuilder/promptsched/internal/notify"
	"github.com/nextlevelbuilder/promptsched/internal/repair"
	"github.com/nextlevelbuilder/promptsched/internal/scheduler"
	"github.com/nextlevelbuilder/promptsched/internal/tracing"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler engine and notification socket",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	tracer, shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		Endpoint: cfg.OTLPEndpoint,
		Protocol: cfg.OTLPProtocol,
		Insecure: cfg.OTLPInsecure,
	})
	if err != nil {
		return err
	}

	stores, closeStores, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer closeStores()

	registry := models.NewRegistry()
	if err := registry.LoadFile(cfg.ModelCatalog); err != nil {
		return fmt.Errorf("load model catalog: %w", err)
	}
	slog.Info("model catalog loaded", "models", len(registry.IDs()))

	secret := cfg.JWTSecret
	if secret == "" {
		secret = randomSecret()
		slog.Warn("JWT_SECRET not set, using ephemeral secret; tokens will not survive restarts")
	}
	minter := auth.NewMinter(secret, auth.DefaultTokenTTL)

	var sharedPool *gateway.RedisSessionPool
	if cfg.RedisURL != "" {
		sharedPool, err = gateway.NewRedisSessionPool(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer sharedPool.Close()
	}

	hub := gateway.NewHub(minter, sharedPool)
	wsServer := &http.Server{Addr: cfg.WSListenAddr, Handler: wsMux(hub)}
	go func() {
		slog.Info("notification socket listening", "addr", cfg.WSListenAddr)
		if err := wsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("notification socket failed", "error", err)
		}
	}()

	notifier := notify.New(hub, hub, notify.NewLinkBuilder(cfg.WebUIURL), notify.NewNtfyClient())
	client := modelclient.New(cfg.CompletionsBaseURL(), minter)
	pipeline := repair.NewPipeline(client)

	runner := scheduler.NewRunner(
		stores.jobs, stores.chats, stores.users,
		registry, pipeline, cron.New(), notifier, tracer,
	)
	loop := scheduler.NewLoop(runner, stores.jobs, cfg.CheckInterval, cfg.Concurrency)
	loop.Start()

	// Block until shutdown signal.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		slog.Info("shutdown signal received", "signal", s.String())
	case <-ctx.Done():
	}

	loop.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	wsServer.Shutdown(shutdownCtx)
	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Warn("tracing shutdown failed", "error", err)
	}
	return nil
}

func wsMux(hub *gateway.Hub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	return mux
}

func randomSecret() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}
