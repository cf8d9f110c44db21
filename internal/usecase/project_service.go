// Package usecase はアプリケーションのユースケースを実装する。
package usecase

import (
	"context"
	"fmt"

	"phigrate-web/internal/domain"
)

// ProjectRepository はプロジェクト永続化のインターフェース。
type ProjectRepository interface {
	Create(ctx context.Context, project *domain.Project) error
	FindByID(ctx context.Context, id string) (*domain.Project, error)
	FindAll(ctx context.Context) ([]*domain.Project, error)
	Update(ctx context.Context, project *domain.Project) error
	Delete(ctx context.Context, id string) (bool, error)
}

// CollectionCache はプロジェクト単位の照合結果キャッシュのインターフェース。
type CollectionCache interface {
	Get(projectID string) (*domain.Collection, bool)
	Put(projectID string, collection *domain.Collection)
	Invalidate(projectID string)
}

// ProjectService はプロジェクトとそのマイグレーションに関するビジネスロジックを提供する。
type ProjectService struct {
	repo       ProjectRepository
	migrations *MigrationService
	cache      CollectionCache
}

// NewProjectService は新しいProjectServiceを生成する。
func NewProjectService(repo ProjectRepository, migrations *MigrationService, cache CollectionCache) *ProjectService {
	return &ProjectService{
		repo:       repo,
		migrations: migrations,
		cache:      cache,
	}
}

// Create はプロジェクトを登録する。
func (s *ProjectService) Create(ctx context.Context, project *domain.Project) (*domain.Project, error) {
	if err := project.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}
	return project, nil
}

// Get はプロジェクトを取得する。
func (s *ProjectService) Get(ctx context.Context, id string) (*domain.Project, error) {
	project, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("finding project: %w", err)
	}
	if project == nil {
		return nil, domain.ErrProjectNotFound
	}
	return project, nil
}

// List は全プロジェクトを取得する。
func (s *ProjectService) List(ctx context.Context) ([]*domain.Project, error) {
	projects, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("finding projects: %w", err)
	}
	return projects, nil
}

// Update はプロジェクトを更新し、キャッシュを破棄する。
func (s *ProjectService) Update(ctx context.Context, project *domain.Project) (*domain.Project, error) {
	if _, err := s.Get(ctx, project.ID); err != nil {
		return nil, err
	}
	if err := project.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("updating project: %w", err)
	}
	s.cache.Invalidate(project.ID)

	return s.Get(ctx, project.ID)
}

// Delete はプロジェクトを削除し、キャッシュを破棄する。
func (s *ProjectService) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	s.cache.Invalidate(id)
	if !deleted {
		return domain.ErrProjectNotFound
	}
	return nil
}

// Migrations はプロジェクトの照合結果を返す。refresh が true の場合はキャッシュを使わない。
func (s *ProjectService) Migrations(ctx context.Context, id string, refresh bool) (*domain.Collection, error) {
	if !refresh {
		if collection, ok := s.cache.Get(id); ok {
			return collection, nil
		}
	}

	project, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	collection, _, err := s.migrations.Reconcile(ctx, project.ConfigPath, project.Section)
	if err != nil {
		s.cache.Invalidate(id)
		return nil, err
	}
	s.cache.Put(id, collection)
	return collection, nil
}

// MigrationContent はプロジェクトのマイグレーションファイルの内容を返す。
func (s *ProjectService) MigrationContent(ctx context.Context, id, migrationID string) ([]byte, error) {
	project, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	paths, err := s.migrations.LoadConfig(project.ConfigPath, project.Section)
	if err != nil {
		return nil, err
	}
	return s.migrations.ReadMigrationContent(ctx, paths.MigrationDir, migrationID)
}

// Migrate は指定バージョンまでマイグレーションを実行し、キャッシュを破棄する。
func (s *ProjectService) Migrate(ctx context.Context, id, migrationID string) (*domain.RunResult, error) {
	project, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	paths, err := s.migrations.LoadConfig(project.ConfigPath, project.Section)
	if err != nil {
		return nil, err
	}

	defer s.cache.Invalidate(id)
	return s.migrations.RunMigration(ctx, paths.ConfigPath, paths.DBConfigPath, paths.Section, migrationID)
}

// CheckConfig は設定ファイルとセクションが解決できるかを確認する。
func (s *ProjectService) CheckConfig(configPath, section string) (*domain.ProjectPaths, error) {
	if configPath == "" || section == "" {
		return nil, fmt.Errorf("%w: config path and section are required", domain.ErrInvalidProject)
	}
	return s.migrations.LoadConfig(configPath, section)
}
