// Package handler はHTTPハンドラを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"phigrate-web/internal/domain"
	"phigrate-web/internal/middleware"
	"phigrate-web/internal/usecase"
	"phigrate-web/pkg/httputil"
)

var migrationIDRegex = regexp.MustCompile(`^[0-9A-Za-z_-]+$`)

// ProjectHandler はプロジェクトとマイグレーションのHTTPハンドラを提供する。
type ProjectHandler struct {
	service *usecase.ProjectService
}

// NewProjectHandler は新しいProjectHandlerを生成する。
func NewProjectHandler(service *usecase.ProjectService) *ProjectHandler {
	return &ProjectHandler{service: service}
}

func validateProjectID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrProjectNotFound
	}
	return nil
}

func validateMigrationID(id string) error {
	if len(id) > 64 || !migrationIDRegex.MatchString(id) {
		return domain.ErrInvalidMigrationID
	}
	return nil
}

// ProjectRequest はプロジェクト作成・更新のリクエスト形式。
type ProjectRequest struct {
	Title      string `json:"title"`
	ConfigPath string `json:"config_path"`
	Section    string `json:"section"`
}

// MigrationListResponse はマイグレーション一覧のレスポンス形式。
type MigrationListResponse struct {
	Directory  string              `json:"directory"`
	Status     int                 `json:"status"`
	UpToDate   bool                `json:"up_to_date"`
	UpdatedAt  string              `json:"updated_at"`
	Length     int                 `json:"length"`
	Migrations []MigrationResponse `json:"migrations"`
}

// MigrationResponse はマイグレーション1件のレスポンス形式。
type MigrationResponse struct {
	ID         string `json:"id"`
	Basename   string `json:"basename"`
	Name       string `json:"name"`
	Status     int    `json:"status"`
	StatusName string `json:"status_name"`
}

// ProjectResponse はプロジェクトのレスポンス形式。
type ProjectResponse struct {
	ID         string                 `json:"id"`
	Title      string                 `json:"title"`
	ConfigPath string                 `json:"config_path"`
	Section    string                 `json:"section"`
	CreatedAt  string                 `json:"created_at"`
	UpdatedAt  string                 `json:"updated_at"`
	Migrations *MigrationListResponse `json:"migrations,omitempty"`
}

// ProjectListResponse はプロジェクト一覧のレスポンス形式。
type ProjectListResponse struct {
	Projects []ProjectResponse `json:"projects"`
}

// CheckConfigResponse は設定確認のレスポンス形式。
type CheckConfigResponse struct {
	ConfigPath   string `json:"config_path"`
	Section      string `json:"section"`
	MigrationDir string `json:"migration_dir"`
	DBConfigPath string `json:"db_config_path"`
}

func toProjectResponse(p *domain.Project) ProjectResponse {
	return ProjectResponse{
		ID:         p.ID,
		Title:      p.Title,
		ConfigPath: p.ConfigPath,
		Section:    p.Section,
		CreatedAt:  p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  p.UpdatedAt.Format(time.RFC3339),
	}
}

func toMigrationListResponse(c *domain.Collection, descending bool) *MigrationListResponse {
	migrations := c.Ascending()
	if descending {
		migrations = c.Descending()
	}
	resp := &MigrationListResponse{
		Directory:  c.Directory,
		Status:     int(c.Status),
		UpToDate:   c.IsUpToDate(),
		UpdatedAt:  c.UpdatedAt.UTC().Format(time.RFC3339),
		Length:     c.Len(),
		Migrations: make([]MigrationResponse, len(migrations)),
	}
	for i, m := range migrations {
		resp.Migrations[i] = MigrationResponse{
			ID:         m.ID,
			Basename:   m.Basename,
			Name:       m.Name,
			Status:     int(m.Status),
			StatusName: m.Status.String(),
		}
	}
	return resp
}

// writeError はエラー種別に応じたレスポンスを返す。
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrProjectNotFound):
		httputil.Error(w, http.StatusNotFound, "PROJECT_NOT_FOUND", "project not found")
	case errors.Is(err, domain.ErrInvalidProject):
		httputil.Error(w, http.StatusBadRequest, "INVALID_PROJECT", err.Error())
	case errors.Is(err, domain.ErrInvalidMigrationID):
		httputil.Error(w, http.StatusBadRequest, "INVALID_MIGRATION_ID", "invalid migration id")
	case errors.Is(err, domain.ErrConfigNotFound),
		errors.Is(err, domain.ErrSectionNotFound),
		errors.Is(err, domain.ErrKeyNotFound),
		errors.Is(err, domain.ErrPathNotFound),
		errors.Is(err, domain.ErrDirectoryNotFound),
		errors.Is(err, domain.ErrNoConnectionConfig):
		httputil.Error(w, http.StatusUnprocessableEntity, "INVALID_CONFIG", err.Error())
	case errors.Is(err, domain.ErrConnection):
		httputil.Error(w, http.StatusBadGateway, "DB_CONNECTION_ERROR", err.Error())
	case errors.Is(err, domain.ErrRunCanceled):
		httputil.Error(w, http.StatusGatewayTimeout, "MIGRATION_CANCELED", err.Error())
	case errors.Is(err, domain.ErrSpawn):
		httputil.Error(w, http.StatusInternalServerError, "SPAWN_ERROR", err.Error())
	case errors.Is(err, domain.ErrRead):
		httputil.Error(w, http.StatusInternalServerError, "READ_ERROR", "failed to read migration file")
	default:
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// MigrateCanceledResponse は中断されたマイグレーションのレスポンス。
type MigrateCanceledResponse struct {
	httputil.ErrorResponse
	Result *domain.RunResult `json:"result"`
}

func decodeProjectRequest(r *http.Request) (*domain.Project, error) {
	var req ProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("%w: invalid request body", domain.ErrInvalidProject)
	}
	return &domain.Project{
		Title:      req.Title,
		ConfigPath: req.ConfigPath,
		Section:    req.Section,
	}, nil
}

// ListProjects はプロジェクト一覧を返す。
func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	resp := ProjectListResponse{Projects: make([]ProjectResponse, len(projects))}
	for i, p := range projects {
		resp.Projects[i] = toProjectResponse(p)
	}
	httputil.JSON(w, http.StatusOK, resp)
}

// CreateProject はプロジェクトを登録する。
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	project, err := decodeProjectRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	created, err := h.service.Create(r.Context(), project)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "CREATE_PROJECT", "", "", middleware.ResultFailed)
		writeError(w, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "CREATE_PROJECT", created.ID, "", middleware.ResultSuccess)
	httputil.JSON(w, http.StatusCreated, toProjectResponse(created))
}

// GetProject はプロジェクトを返す。?migrations=true の場合は照合結果を含める。
func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "project_id")
	if err := validateProjectID(projectID); err != nil {
		writeError(w, err)
		return
	}

	project, err := h.service.Get(r.Context(), projectID)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := toProjectResponse(project)
	if r.URL.Query().Get("migrations") == "true" {
		collection, err := h.service.Migrations(r.Context(), projectID, false)
		if err != nil {
			writeError(w, err)
			return
		}
		resp.Migrations = toMigrationListResponse(collection, false)
	}
	httputil.JSON(w, http.StatusOK, resp)
}

// UpdateProject はプロジェクトを更新する。
func (h *ProjectHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "project_id")
	if err := validateProjectID(projectID); err != nil {
		writeError(w, err)
		return
	}

	project, err := decodeProjectRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	project.ID = projectID

	updated, err := h.service.Update(r.Context(), project)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "UPDATE_PROJECT", projectID, "", middleware.ResultFailed)
		writeError(w, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "UPDATE_PROJECT", projectID, "", middleware.ResultSuccess)
	httputil.JSON(w, http.StatusOK, toProjectResponse(updated))
}

// DeleteProject はプロジェクトを削除する。
func (h *ProjectHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "project_id")
	if err := validateProjectID(projectID); err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.Delete(r.Context(), projectID); err != nil {
		middleware.WriteAuditLog(r.Context(), "DELETE_PROJECT", projectID, "", middleware.ResultFailed)
		writeError(w, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "DELETE_PROJECT", projectID, "", middleware.ResultSuccess)
	w.WriteHeader(http.StatusNoContent)
}

// CheckConfig は設定ファイルとセクションを検証する。
func (h *ProjectHandler) CheckConfig(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	paths, err := h.service.CheckConfig(query.Get("config_path"), query.Get("section"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, CheckConfigResponse{
		ConfigPath:   paths.ConfigPath,
		Section:      paths.Section,
		MigrationDir: paths.MigrationDir,
		DBConfigPath: paths.DBConfigPath,
	})
}

// ListMigrations はプロジェクトのマイグレーション照合結果を返す。
// ?order=desc で新しい順、?refresh=true でキャッシュを使わずに再照合する。
func (h *ProjectHandler) ListMigrations(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "project_id")
	if err := validateProjectID(projectID); err != nil {
		writeError(w, err)
		return
	}

	query := r.URL.Query()
	collection, err := h.service.Migrations(r.Context(), projectID, query.Get("refresh") == "true")
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "LIST_MIGRATIONS", projectID, "", middleware.ResultFailed)
		writeError(w, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "LIST_MIGRATIONS", projectID, "", middleware.ResultSuccess)
	httputil.JSON(w, http.StatusOK, toMigrationListResponse(collection, query.Get("order") == "desc"))
}

// GetMigrationContent はマイグレーションファイルの内容を返す。
func (h *ProjectHandler) GetMigrationContent(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "project_id")
	if err := validateProjectID(projectID); err != nil {
		writeError(w, err)
		return
	}
	migrationID := chi.URLParam(r, "migration_id")
	if err := validateMigrationID(migrationID); err != nil {
		writeError(w, err)
		return
	}

	content, err := h.service.MigrationContent(r.Context(), projectID, migrationID)
	if err != nil {
		writeError(w, err)
		return
	}
	if content == nil {
		httputil.Error(w, http.StatusNotFound, "MIGRATION_NOT_FOUND", "migration file not found")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

// Migrate は指定バージョンまでマイグレーションを実行する。
func (h *ProjectHandler) Migrate(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "project_id")
	if err := validateProjectID(projectID); err != nil {
		writeError(w, err)
		return
	}
	migrationID := chi.URLParam(r, "migration_id")
	if err := validateMigrationID(migrationID); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.service.Migrate(r.Context(), projectID, migrationID)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "MIGRATE", projectID, migrationID, middleware.ResultFailed)
		// 中断時もそれまでの出力を返す
		if errors.Is(err, domain.ErrRunCanceled) && result != nil {
			httputil.JSON(w, http.StatusGatewayTimeout, MigrateCanceledResponse{
				ErrorResponse: httputil.ErrorResponse{Code: "MIGRATION_CANCELED", Message: err.Error()},
				Result:        result,
			})
			return
		}
		writeError(w, err)
		return
	}

	outcome := middleware.ResultSuccess
	if result.ExitCode != 0 {
		outcome = middleware.ResultFailed
	}
	middleware.WriteAuditLog(r.Context(), "MIGRATE", projectID, migrationID, outcome)
	httputil.JSON(w, http.StatusOK, result)
}
