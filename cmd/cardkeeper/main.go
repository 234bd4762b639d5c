// Package main запускает HTTP-сервер сервиса cardkeeper.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/cardkeeper/internal/config"
	"github.com/mmeshcher/cardkeeper/internal/handler"
	"github.com/mmeshcher/cardkeeper/internal/middleware"
	"github.com/mmeshcher/cardkeeper/internal/projection"
	"github.com/mmeshcher/cardkeeper/internal/repository"
	"github.com/mmeshcher/cardkeeper/internal/service"
	"github.com/mmeshcher/cardkeeper/internal/templates"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		sugar.Fatalw("timezone error", "timezone", cfg.Timezone, "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	var templatesClient *templates.Client
	if cfg.TemplateServiceAddress != "" {
		templatesClient = templates.NewClient(cfg.TemplateServiceAddress)
	}

	windowCfg := projection.WindowConfig{
		Months: cfg.AdmissionWindowMonths,
		Limit:  cfg.AdmissionLimit,
	}

	svc := service.NewService(repo, templatesClient, cfg.FirstRenewalMonths, windowCfg)
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, logger, authMiddleware, location, cfg.TimelinePageSize)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск фоновой синхронизации каталога шаблонов карт
	g.Go(func() error {
		svc.StartTemplateSync(ctx, time.Hour)
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting cardkeeper server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
