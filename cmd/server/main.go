// Package main はAPIサーバーのエントリポイント。
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"phigrate-web/config"
	"phigrate-web/internal/cache"
	"phigrate-web/internal/handler"
	"phigrate-web/internal/infra"
	"phigrate-web/internal/repository"
	"phigrate-web/internal/usecase"
)

const version = "1.0.0"

func main() {
	ctx := context.Background()

	// .envファイルを読み込む（存在しない場合は無視）
	// 既存の環境変数は上書きしない
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// トレーサー初期化（ロガー設定の前に実行）
	tp, err := infra.InitTracer(ctx, cfg, version)
	if err != nil {
		slog.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	if tp != nil {
		defer func() {
			if err := tp.Shutdown(ctx); err != nil {
				slog.Error("failed to shutdown tracer", "error", err)
			}
		}()
	}

	infra.SetupLogger(os.Stdout, cfg)

	// プロジェクト登録用DB
	db, err := infra.NewDB(cfg.DatabaseURL, cfg)
	if err != nil {
		slog.Error("failed to init database", "error", err)
		os.Exit(1)
	}
	projectRepo := repository.NewProjectRepository(db)
	if err := projectRepo.AutoMigrate(ctx); err != nil {
		slog.Error("failed to migrate projects table", "error", err)
		os.Exit(1)
	}

	// DI
	migrationService := usecase.NewMigrationService(
		repository.NewConfigRepository(),
		repository.NewMigrationFileRepository(),
		repository.NewMigrationRepository(repository.MySQLDialer, cfg.DBTimeout),
		infra.NewPhigrateRunner(cfg.PhigrateBin, cfg.MigrateTimeout, cfg.OutputLimit),
	)
	collectionCache := cache.NewCollectionCache(cfg.CacheTTL)
	if cfg.WatchMigrations {
		watchCtx, stopWatch := context.WithCancel(ctx)
		defer stopWatch()
		if err := collectionCache.StartWatcher(watchCtx); err != nil {
			slog.Warn("failed to start migrations watcher", "error", err)
		}
	}
	projectService := usecase.NewProjectService(projectRepo, migrationService, collectionCache)
	h := handler.NewProjectHandler(projectService)
	router := handler.NewRouter(h, cfg)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		<-sigCh

		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("starting server", "port", cfg.Port, "version", version)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
