package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/quietline/frontdesk/internal/config"
	"github.com/quietline/frontdesk/internal/handler"
	"github.com/quietline/frontdesk/internal/metrics"
	"github.com/quietline/frontdesk/internal/service/agent"
	"github.com/quietline/frontdesk/internal/service/call"
	"github.com/quietline/frontdesk/internal/service/notify"
	"github.com/quietline/frontdesk/internal/store"
	"github.com/quietline/frontdesk/internal/telnyx"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer st.Close()

	hub := notify.NewHub()
	m := metrics.New(prometheus.DefaultRegisterer)

	telnyxClient := telnyx.New(cfg.Telnyx, st)
	if !telnyxClient.Configured() {
		log.Println("Telnyx credentials not configured, inbound calls cannot be answered")
	}

	engine := agent.New(st, st, hub)
	callSvc := call.NewService(telnyxClient, engine, st, st, hub, m, cfg.Agent.IdleTimeout)

	// Idle sessions are reaped on a schedule so an undelivered hangup webhook
	// cannot leak a session forever.
	reaper := cron.New()
	if _, err := reaper.AddFunc(cfg.Agent.CleanupSchedule, callSvc.CleanupInactiveSessions); err != nil {
		log.Fatalf("invalid cleanup schedule %q: %v", cfg.Agent.CleanupSchedule, err)
	}
	reaper.Start()
	defer reaper.Stop()

	router := handler.NewRouter(cfg.Telnyx, st, hub, telnyxClient, callSvc, m)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Frontdesk agent listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
