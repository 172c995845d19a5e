package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatdesk/clients/backendclient"
	"chatdesk/cmd/gateway/router"
	"chatdesk/config"
	"chatdesk/coordinator"
	"chatdesk/eventbus"
	"chatdesk/internal/logger"
	"chatdesk/state"
)

// @title           Chatdesk Gateway API
// @version         1.0
// @description     View-facing API of the chat client core (sessions, timeline, documents)
// @BasePath        /api/v1
func main() {
	config.InitApp()
	cfg := config.GetConfig()
	logger.InitFromEnv("LOG_LEVEL", cfg.Logging.Level)

	bus := eventbus.NewMemoryEventBus(0)
	defer bus.Close()

	store := state.NewStore(cfg.Chat.DefaultModel, bus)
	coord := coordinator.New(backendclient.New(cfg.Backend), store, bus, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := coord.Bootstrap(ctx); err != nil {
		// 백엔드가 늦게 떠도 게이트웨이는 기동한다. 목록은 다음 조회에서 다시 읽는다.
		logger.WarnWithFields("bootstrap incomplete", logger.Fields{"error": err.Error()})
	}

	srv := &http.Server{
		Addr:              cfg.Gateway.Addr,
		Handler:           router.New(coord, bus, cfg.Gateway),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.InfoWithFields("gateway listening", logger.Fields{"addr": cfg.Gateway.Addr, "backend": cfg.Backend.BaseURL})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorWithFields("gateway stopped", logger.Fields{"error": err.Error()})
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithFields("gateway shutdown failed", logger.Fields{"error": err.Error()})
	}
}
