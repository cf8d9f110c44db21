// Package repository はデータアクセス層の実装を提供する。
package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"phigrate-web/internal/domain"
)

// ProjectModel はgorm用のモデル定義。
type ProjectModel struct {
	ID         string    `gorm:"type:char(36);primaryKey"`
	Title      string    `gorm:"type:varchar(255);not null"`
	ConfigPath string    `gorm:"type:varchar(1024);not null"`
	Section    string    `gorm:"type:varchar(255);not null"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime;index:idx_created_at"`
	UpdatedAt  time.Time `gorm:"not null;autoUpdateTime"`
}

// TableName はテーブル名を返す。
func (ProjectModel) TableName() string {
	return "projects"
}

// BeforeCreate はレコード作成前にUUIDを生成する。
func (p *ProjectModel) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

// toDomain はモデルをドメインエンティティに変換する。
func (p *ProjectModel) toDomain() *domain.Project {
	return &domain.Project{
		ID:         p.ID,
		Title:      p.Title,
		ConfigPath: p.ConfigPath,
		Section:    p.Section,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

// ProjectRepository はプロジェクトの永続化を提供する。
type ProjectRepository struct {
	db *gorm.DB
}

// NewProjectRepository は新しいProjectRepositoryを生成する。
func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// AutoMigrate はprojectsテーブルを作成・更新する。
func (r *ProjectRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&ProjectModel{})
}

// Create は新しいプロジェクトを保存する。
func (r *ProjectRepository) Create(ctx context.Context, project *domain.Project) error {
	model := &ProjectModel{
		ID:         project.ID,
		Title:      project.Title,
		ConfigPath: project.ConfigPath,
		Section:    project.Section,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		slog.ErrorContext(ctx, "failed to create project",
			"operation", "create",
			"title", project.Title,
			"error", err,
		)
		return err
	}
	// gormで設定された値をドメインエンティティに反映
	project.ID = model.ID
	project.CreatedAt = model.CreatedAt
	project.UpdatedAt = model.UpdatedAt
	return nil
}

// FindByID はIDでプロジェクトを取得する。存在しない場合は nil を返す。
func (r *ProjectRepository) FindByID(ctx context.Context, id string) (*domain.Project, error) {
	var model ProjectModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find project",
			"operation", "find_by_id",
			"project_id", id,
			"error", err,
		)
		return nil, err
	}
	return model.toDomain(), nil
}

// FindAll は全プロジェクトを作成日時の新しい順に取得する。
func (r *ProjectRepository) FindAll(ctx context.Context) ([]*domain.Project, error) {
	var models []ProjectModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&models).Error; err != nil {
		slog.ErrorContext(ctx, "failed to find all projects",
			"operation", "find_all",
			"error", err,
		)
		return nil, err
	}

	projects := make([]*domain.Project, len(models))
	for i, m := range models {
		projects[i] = m.toDomain()
	}
	return projects, nil
}

// Update はプロジェクトの内容を更新する。
func (r *ProjectRepository) Update(ctx context.Context, project *domain.Project) error {
	err := r.db.WithContext(ctx).
		Model(&ProjectModel{ID: project.ID}).
		Updates(map[string]interface{}{
			"title":       project.Title,
			"config_path": project.ConfigPath,
			"section":     project.Section,
		}).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to update project",
			"operation", "update",
			"project_id", project.ID,
			"error", err,
		)
		return err
	}
	return nil
}

// Delete はプロジェクトを削除する。削除した件数が0の場合は false を返す。
func (r *ProjectRepository) Delete(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&ProjectModel{})
	if result.Error != nil {
		slog.ErrorContext(ctx, "failed to delete project",
			"operation", "delete",
			"project_id", id,
			"error", result.Error,
		)
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
