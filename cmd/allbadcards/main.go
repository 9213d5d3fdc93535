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

	"go.uber.org/zap"

	"github.com/hamitb/allbadcards/internal/appbuilder"
	appcfg "github.com/hamitb/allbadcards/internal/config"
	"github.com/hamitb/allbadcards/internal/obslog"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.Init(cfg.Log.Options()); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()
	logger := obslog.L()

	deps, err := appbuilder.New(context.Background(), cfg)
	if err != nil {
		logger.Fatal("init_failed", zap.Error(err))
	}
	defer func() { _ = deps.Close() }()

	api := deps.API.HTTPServer()
	ws := &http.Server{
		Addr:              cfg.WSAddr,
		Handler:           deps.Hub.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("api_listening", zap.String("addr", cfg.HTTPAddr))
		errCh <- api.ListenAndServe(cfg.HTTPAddr)
	}()
	go func() {
		logger.Info("ws_listening", zap.String("addr", cfg.WSAddr))
		if err := ws.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for termination signal or a listener failure
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutdown", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("listener_failed", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ws.Shutdown(ctx); err != nil {
		logger.Warn("ws_shutdown", zap.Error(err))
	}
	if err := api.ShutdownWithContext(ctx); err != nil {
		logger.Warn("api_shutdown", zap.Error(err))
	}
}
