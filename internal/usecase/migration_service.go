package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"phigrate-web/internal/domain"
)

// ConfigRepository はプロジェクト設定を読み込むリポジトリのインターフェース。
type ConfigRepository interface {
	LoadConfig(configPath, section string) (*domain.ProjectPaths, error)
}

// MigrationFileRepository はマイグレーションファイルを扱うリポジトリのインターフェース。
type MigrationFileRepository interface {
	Scan(ctx context.Context, dir string) ([]*domain.Migration, error)
	Content(ctx context.Context, dir, migrationID string) ([]byte, error)
}

// MigrationRepository は適用済みバージョンを取得するリポジトリのインターフェース。
type MigrationRepository interface {
	FetchVersions(ctx context.Context, settings map[string]string) ([]string, error)
}

// MigrationRunner は外部のマイグレーションツールを実行するインターフェース。
type MigrationRunner interface {
	Run(ctx context.Context, configPath, dbConfigPath, section, migrationID string) (*domain.RunResult, error)
}

var tracer = otel.Tracer("phigrate-web/internal/usecase")

// MigrationService はマイグレーション照合と実行のビジネスロジックを提供する。
// 状態を持たないため、異なるプロジェクトに対して並行に呼び出せる。
type MigrationService struct {
	configs ConfigRepository
	files   MigrationFileRepository
	repo    MigrationRepository
	runner  MigrationRunner
}

// NewMigrationService は新しいMigrationServiceを生成する。
func NewMigrationService(configs ConfigRepository, files MigrationFileRepository, repo MigrationRepository, runner MigrationRunner) *MigrationService {
	return &MigrationService{
		configs: configs,
		files:   files,
		repo:    repo,
		runner:  runner,
	}
}

// LoadConfig は設定ファイルを読み込み、パスを解決する。
func (s *MigrationService) LoadConfig(configPath, section string) (*domain.ProjectPaths, error) {
	return s.configs.LoadConfig(configPath, section)
}

// ScanMigrations はマイグレーションディレクトリをスキャンする。
func (s *MigrationService) ScanMigrations(ctx context.Context, dir string) ([]*domain.Migration, error) {
	return s.files.Scan(ctx, dir)
}

// FetchDBVersions は適用済みバージョンを取得する。
func (s *MigrationService) FetchDBVersions(ctx context.Context, settings map[string]string) ([]string, error) {
	return s.repo.FetchVersions(ctx, settings)
}

// Reconcile は設定読み込み→スキャン→DB参照→照合を順に行う。
// いずれかの段階で失敗した場合は途中結果を返さない。
func (s *MigrationService) Reconcile(ctx context.Context, configPath, section string) (*domain.Collection, *domain.ProjectPaths, error) {
	ctx, span := tracer.Start(ctx, "MigrationService.Reconcile")
	defer span.End()
	span.SetAttributes(
		attribute.String("phigrate.config_path", configPath),
		attribute.String("phigrate.section", section),
	)

	fail := func(step string, err error) (*domain.Collection, *domain.ProjectPaths, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, step)
		slog.ErrorContext(ctx, "failed to reconcile migrations",
			"operation", "reconcile",
			"step", step,
			"config_path", configPath,
			"section", section,
			"error", err,
		)
		return nil, nil, err
	}

	paths, err := s.configs.LoadConfig(configPath, section)
	if err != nil {
		return fail("load_config", err)
	}

	files, err := s.files.Scan(ctx, paths.MigrationDir)
	if err != nil {
		return fail("scan", err)
	}

	versions, err := s.repo.FetchVersions(ctx, paths.DBSettings)
	if err != nil {
		return fail("fetch_versions", err)
	}

	collection := Merge(paths.MigrationDir, files, versions)
	span.SetAttributes(
		attribute.Int("phigrate.migrations", collection.Len()),
		attribute.Bool("phigrate.up_to_date", collection.IsUpToDate()),
	)
	return collection, paths, nil
}

// RunMigration は指定バージョンまでマイグレーションを実行する。
// 実行後の再照合は行わない。
func (s *MigrationService) RunMigration(ctx context.Context, configPath, dbConfigPath, section, migrationID string) (*domain.RunResult, error) {
	if migrationID == "" {
		return nil, domain.ErrInvalidMigrationID
	}

	result, err := s.runner.Run(ctx, configPath, dbConfigPath, section, migrationID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to run migration",
			"operation", "run_migration",
			"config_path", configPath,
			"section", section,
			"version", migrationID,
			"error", err,
		)
		return result, fmt.Errorf("running migration %s: %w", migrationID, err)
	}

	slog.InfoContext(ctx, "migration process exited",
		"operation", "run_migration",
		"version", migrationID,
		"exit_code", result.ExitCode,
	)
	return result, nil
}

// ReadMigrationContent はマイグレーションファイルの内容を返す。
// 該当ファイルがない場合は nil を返す。
func (s *MigrationService) ReadMigrationContent(ctx context.Context, dir, migrationID string) ([]byte, error) {
	if migrationID == "" {
		return nil, domain.ErrInvalidMigrationID
	}
	return s.files.Content(ctx, dir, migrationID)
}
