package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"phigrate-web/internal/domain"
)

// mockProjectRepository はテスト用のモックプロジェクトリポジトリ。
type mockProjectRepository struct {
	projects  map[string]*domain.Project
	createErr error
	findErr   error
}

func newMockProjectRepository(projects ...*domain.Project) *mockProjectRepository {
	m := &mockProjectRepository{projects: make(map[string]*domain.Project)}
	for _, p := range projects {
		m.projects[p.ID] = p
	}
	return m
}

func (m *mockProjectRepository) Create(ctx context.Context, project *domain.Project) error {
	if m.createErr != nil {
		return m.createErr
	}
	project.ID = "generated-id"
	project.CreatedAt = time.Now()
	project.UpdatedAt = project.CreatedAt
	m.projects[project.ID] = project
	return nil
}

func (m *mockProjectRepository) FindByID(ctx context.Context, id string) (*domain.Project, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	p, ok := m.projects[id]
	if !ok {
		return nil, nil
	}
	return p, nil
}

func (m *mockProjectRepository) FindAll(ctx context.Context) ([]*domain.Project, error) {
	result := make([]*domain.Project, 0, len(m.projects))
	for _, p := range m.projects {
		result = append(result, p)
	}
	return result, nil
}

func (m *mockProjectRepository) Update(ctx context.Context, project *domain.Project) error {
	stored := *project
	stored.UpdatedAt = time.Now()
	m.projects[project.ID] = &stored
	return nil
}

func (m *mockProjectRepository) Delete(ctx context.Context, id string) (bool, error) {
	if _, ok := m.projects[id]; !ok {
		return false, nil
	}
	delete(m.projects, id)
	return true, nil
}

// mockCollectionCache はテスト用のモックキャッシュ。
type mockCollectionCache struct {
	entries     map[string]*domain.Collection
	invalidated []string
}

func newMockCollectionCache() *mockCollectionCache {
	return &mockCollectionCache{entries: make(map[string]*domain.Collection)}
}

func (m *mockCollectionCache) Get(projectID string) (*domain.Collection, bool) {
	c, ok := m.entries[projectID]
	return c, ok
}

func (m *mockCollectionCache) Put(projectID string, collection *domain.Collection) {
	m.entries[projectID] = collection
}

func (m *mockCollectionCache) Invalidate(projectID string) {
	m.invalidated = append(m.invalidated, projectID)
	delete(m.entries, projectID)
}

func testProject() *domain.Project {
	return &domain.Project{
		ID:         "p1",
		Title:      "app",
		ConfigPath: "/srv/app/build.ini",
		Section:    "development",
	}
}

type serviceFixture struct {
	repo     *mockProjectRepository
	cache    *mockCollectionCache
	configs  *mockConfigRepository
	fileRepo *mockMigrationFileRepository
	dbRepo   *mockMigrationRepository
	runner   *mockMigrationRunner
	service  *ProjectService
}

func setupProjectService(projects ...*domain.Project) *serviceFixture {
	f := &serviceFixture{
		repo:     newMockProjectRepository(projects...),
		cache:    newMockCollectionCache(),
		configs:  &mockConfigRepository{paths: testPaths()},
		fileRepo: &mockMigrationFileRepository{files: files("1_A.php")},
		dbRepo:   &mockMigrationRepository{versions: []string{"1"}},
		runner:   &mockMigrationRunner{result: &domain.RunResult{}},
	}
	migrations := NewMigrationService(f.configs, f.fileRepo, f.dbRepo, f.runner)
	f.service = NewProjectService(f.repo, migrations, f.cache)
	return f
}

func TestProjectService_Create(t *testing.T) {
	f := setupProjectService()

	project, err := f.service.Create(context.Background(), &domain.Project{Title: "app", ConfigPath: "/a.ini", Section: "dev"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if project.ID != "generated-id" {
		t.Errorf("want generated id, got %s", project.ID)
	}

	_, err = f.service.Create(context.Background(), &domain.Project{Title: "app"})
	if !errors.Is(err, domain.ErrInvalidProject) {
		t.Errorf("want ErrInvalidProject, got %v", err)
	}
}

func TestProjectService_Get_NotFound(t *testing.T) {
	f := setupProjectService()

	_, err := f.service.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrProjectNotFound) {
		t.Errorf("want ErrProjectNotFound, got %v", err)
	}
}

func TestProjectService_Migrations_UsesCache(t *testing.T) {
	f := setupProjectService(testProject())
	ctx := context.Background()

	first, err := f.service.Migrations(ctx, "p1", false)
	if err != nil {
		t.Fatalf("Migrations failed: %v", err)
	}
	second, err := f.service.Migrations(ctx, "p1", false)
	if err != nil {
		t.Fatalf("Migrations failed: %v", err)
	}
	if first != second {
		t.Error("second call must be served from cache")
	}
	if f.dbRepo.calls != 1 {
		t.Errorf("want 1 DB fetch, got %d", f.dbRepo.calls)
	}

	if _, err := f.service.Migrations(ctx, "p1", true); err != nil {
		t.Fatalf("Migrations failed: %v", err)
	}
	if f.dbRepo.calls != 2 {
		t.Errorf("refresh must bypass cache, got %d fetches", f.dbRepo.calls)
	}
}

func TestProjectService_Migrations_ErrorInvalidates(t *testing.T) {
	f := setupProjectService(testProject())
	f.dbRepo.err = domain.ErrConnection

	_, err := f.service.Migrations(context.Background(), "p1", true)
	if !errors.Is(err, domain.ErrConnection) {
		t.Errorf("want ErrConnection, got %v", err)
	}
	if _, ok := f.cache.entries["p1"]; ok {
		t.Error("failed reconcile must not be cached")
	}
}

func TestProjectService_InvalidatesCache(t *testing.T) {
	ctx := context.Background()

	t.Run("update", func(t *testing.T) {
		f := setupProjectService(testProject())
		f.cache.Put("p1", domain.NewCollection("dir"))

		updated := testProject()
		updated.Title = "renamed"
		got, err := f.service.Update(ctx, updated)
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if got.Title != "renamed" {
			t.Errorf("want renamed, got %s", got.Title)
		}
		if _, ok := f.cache.entries["p1"]; ok {
			t.Error("update must invalidate the cache")
		}
	})

	t.Run("delete", func(t *testing.T) {
		f := setupProjectService(testProject())
		f.cache.Put("p1", domain.NewCollection("dir"))

		if err := f.service.Delete(ctx, "p1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, ok := f.cache.entries["p1"]; ok {
			t.Error("delete must invalidate the cache")
		}
		if err := f.service.Delete(ctx, "p1"); !errors.Is(err, domain.ErrProjectNotFound) {
			t.Errorf("want ErrProjectNotFound, got %v", err)
		}
	})

	t.Run("migrate", func(t *testing.T) {
		f := setupProjectService(testProject())
		f.cache.Put("p1", domain.NewCollection("dir"))

		if _, err := f.service.Migrate(ctx, "p1", "1"); err != nil {
			t.Fatalf("Migrate failed: %v", err)
		}
		if _, ok := f.cache.entries["p1"]; ok {
			t.Error("migrate must invalidate the cache")
		}
		if f.runner.args[1] != "/srv/app/db.ini" {
			t.Errorf("want db config from resolved paths, got %v", f.runner.args)
		}
	})
}

func TestProjectService_Update_NotFound(t *testing.T) {
	f := setupProjectService()

	_, err := f.service.Update(context.Background(), testProject())
	if !errors.Is(err, domain.ErrProjectNotFound) {
		t.Errorf("want ErrProjectNotFound, got %v", err)
	}
}

func TestProjectService_MigrationContent(t *testing.T) {
	f := setupProjectService(testProject())
	f.fileRepo.content = []byte("<?php")

	content, err := f.service.MigrationContent(context.Background(), "p1", "1")
	if err != nil {
		t.Fatalf("MigrationContent failed: %v", err)
	}
	if string(content) != "<?php" {
		t.Errorf("unexpected content: %q", content)
	}
}

func TestProjectService_CheckConfig(t *testing.T) {
	f := setupProjectService()

	if _, err := f.service.CheckConfig("", "dev"); !errors.Is(err, domain.ErrInvalidProject) {
		t.Errorf("want ErrInvalidProject, got %v", err)
	}

	paths, err := f.service.CheckConfig("/srv/app/build.ini", "development")
	if err != nil {
		t.Fatalf("CheckConfig failed: %v", err)
	}
	if paths.MigrationDir != "/srv/app/migrations" {
		t.Errorf("unexpected paths: %+v", paths)
	}
}
