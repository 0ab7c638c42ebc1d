package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bealsbe/DiscordChannelLink/internal/config"
	"github.com/bealsbe/DiscordChannelLink/internal/db"
	"github.com/bealsbe/DiscordChannelLink/internal/gateway"
	"github.com/bealsbe/DiscordChannelLink/internal/links"
	"github.com/bealsbe/DiscordChannelLink/internal/presence"
	"github.com/bealsbe/DiscordChannelLink/internal/rooms"
	"github.com/bealsbe/DiscordChannelLink/internal/visibility"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	if cfg.BotToken == "" && !cfg.LocalMode {
		slog.Error("CHANNELLINK_BOT_TOKEN must be set (or enable CHANNELLINK_LOCAL_MODE)")
		os.Exit(1)
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		slog.Error("open database", "err", err)
		os.Exit(1)
	}
	defer database.Close()

	var api rooms.API
	if cfg.LocalMode {
		slog.Warn("local mode: using in-process room API")
		api = rooms.NewMemory()
	} else {
		api = rooms.NewClient(cfg.RoomAPIURL, cfg.BotToken)
	}

	store := links.NewStore(database, links.NewProvisioner(api))
	controller := visibility.NewController(api)
	handler := presence.NewHandler(store, controller, api)
	gw := gateway.NewClient(cfg.GatewayURL, cfg.BotToken, handler)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go gw.Run(ctx)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	// Health probe — polled by Docker HEALTHCHECK and load balancers
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]bool{"ok": true}) //nolint:errcheck
	})

	r.Handle("/metrics", promhttp.Handler())

	// Read-only link listing for reconciliation tooling.
	r.Get("/links", func(w http.ResponseWriter, r *http.Request) {
		list, err := store.List(r.Context())
		if err != nil {
			http.Error(w, `{"error":"store unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		if list == nil {
			list = []links.Link{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(list) //nolint:errcheck
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		slog.Info("ops server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("ops server stopped", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	// New events are rejected from here on; in-flight transitions (including
	// provisioning) complete before the process exits.
	handler.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("ops server shutdown", "err", err)
	}
}
