package usecase

import (
	"context"
	"errors"
	"testing"

	"phigrate-web/internal/domain"
)

// mockConfigRepository はテスト用のモック設定リポジトリ。
type mockConfigRepository struct {
	paths *domain.ProjectPaths
	err   error
	calls int
}

func (m *mockConfigRepository) LoadConfig(configPath, section string) (*domain.ProjectPaths, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.paths, nil
}

// mockMigrationFileRepository はテスト用のモックファイルリポジトリ。
type mockMigrationFileRepository struct {
	files      []*domain.Migration
	scanErr    error
	content    []byte
	contentErr error
	scannedDir string
	scanCalls  int
}

func (m *mockMigrationFileRepository) Scan(ctx context.Context, dir string) ([]*domain.Migration, error) {
	m.scanCalls++
	m.scannedDir = dir
	return m.files, m.scanErr
}

func (m *mockMigrationFileRepository) Content(ctx context.Context, dir, migrationID string) ([]byte, error) {
	return m.content, m.contentErr
}

// mockMigrationRepository はテスト用のモックDBリポジトリ。
type mockMigrationRepository struct {
	versions []string
	err      error
	calls    int
}

func (m *mockMigrationRepository) FetchVersions(ctx context.Context, settings map[string]string) ([]string, error) {
	m.calls++
	return m.versions, m.err
}

// mockMigrationRunner はテスト用のモックランナー。
type mockMigrationRunner struct {
	result *domain.RunResult
	err    error
	args   []string
}

func (m *mockMigrationRunner) Run(ctx context.Context, configPath, dbConfigPath, section, migrationID string) (*domain.RunResult, error) {
	m.args = []string{configPath, dbConfigPath, section, migrationID}
	return m.result, m.err
}

func testPaths() *domain.ProjectPaths {
	return &domain.ProjectPaths{
		ConfigPath:   "/srv/app/build.ini",
		ConfigDir:    "/srv/app",
		Section:      "development",
		MigrationDir: "/srv/app/migrations",
		DBConfigPath: "/srv/app/db.ini",
		DBSettings:   map[string]string{"host": "localhost", "user": "root"},
	}
}

func TestMigrationService_Reconcile(t *testing.T) {
	configs := &mockConfigRepository{paths: testPaths()}
	fileRepo := &mockMigrationFileRepository{files: files("1_A.php", "2_B.php")}
	repo := &mockMigrationRepository{versions: []string{"2", "1"}}
	svc := NewMigrationService(configs, fileRepo, repo, &mockMigrationRunner{})

	collection, paths, err := svc.Reconcile(context.Background(), "/srv/app/build.ini", "development")
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if fileRepo.scannedDir != "/srv/app/migrations" {
		t.Errorf("want scan of migrations dir, got %s", fileRepo.scannedDir)
	}
	if paths.DBConfigPath != "/srv/app/db.ini" {
		t.Errorf("unexpected paths: %+v", paths)
	}
	if collection.Len() != 2 || !collection.IsUpToDate() {
		t.Errorf("want 2 applied migrations, got %d (up to date: %v)", collection.Len(), collection.IsUpToDate())
	}
	if collection.Directory != "/srv/app/migrations" {
		t.Errorf("want directory /srv/app/migrations, got %s", collection.Directory)
	}
}

func TestMigrationService_Reconcile_ShortCircuit(t *testing.T) {
	t.Run("config error skips scan and fetch", func(t *testing.T) {
		configs := &mockConfigRepository{err: domain.ErrConfigNotFound}
		fileRepo := &mockMigrationFileRepository{}
		repo := &mockMigrationRepository{}
		svc := NewMigrationService(configs, fileRepo, repo, &mockMigrationRunner{})

		collection, _, err := svc.Reconcile(context.Background(), "missing.ini", "dev")
		if !errors.Is(err, domain.ErrConfigNotFound) {
			t.Errorf("want ErrConfigNotFound, got %v", err)
		}
		if collection != nil {
			t.Error("want no partial result")
		}
		if fileRepo.scanCalls != 0 || repo.calls != 0 {
			t.Errorf("later steps must not run: scan=%d fetch=%d", fileRepo.scanCalls, repo.calls)
		}
	})

	t.Run("scan error skips fetch", func(t *testing.T) {
		configs := &mockConfigRepository{paths: testPaths()}
		fileRepo := &mockMigrationFileRepository{scanErr: domain.ErrDirectoryNotFound}
		repo := &mockMigrationRepository{}
		svc := NewMigrationService(configs, fileRepo, repo, &mockMigrationRunner{})

		_, _, err := svc.Reconcile(context.Background(), "build.ini", "dev")
		if !errors.Is(err, domain.ErrDirectoryNotFound) {
			t.Errorf("want ErrDirectoryNotFound, got %v", err)
		}
		if repo.calls != 0 {
			t.Error("fetch must not run after a scan failure")
		}
	})

	t.Run("fetch error", func(t *testing.T) {
		configs := &mockConfigRepository{paths: testPaths()}
		fileRepo := &mockMigrationFileRepository{}
		repo := &mockMigrationRepository{err: domain.ErrConnection}
		svc := NewMigrationService(configs, fileRepo, repo, &mockMigrationRunner{})

		collection, paths, err := svc.Reconcile(context.Background(), "build.ini", "dev")
		if !errors.Is(err, domain.ErrConnection) {
			t.Errorf("want ErrConnection, got %v", err)
		}
		if collection != nil || paths != nil {
			t.Error("want no partial result")
		}
	})
}

func TestMigrationService_RunMigration(t *testing.T) {
	runner := &mockMigrationRunner{result: &domain.RunResult{ExitCode: 0, Stdout: "ok"}}
	svc := NewMigrationService(&mockConfigRepository{}, &mockMigrationFileRepository{}, &mockMigrationRepository{}, runner)

	result, err := svc.RunMigration(context.Background(), "/srv/app/build.ini", "/srv/app/db.ini", "development", "20120911072233")
	if err != nil {
		t.Fatalf("RunMigration failed: %v", err)
	}
	if result.Stdout != "ok" {
		t.Errorf("want stdout ok, got %q", result.Stdout)
	}
	want := []string{"/srv/app/build.ini", "/srv/app/db.ini", "development", "20120911072233"}
	for i := range want {
		if runner.args[i] != want[i] {
			t.Errorf("arg %d: want %s, got %s", i, want[i], runner.args[i])
		}
	}
}

func TestMigrationService_RunMigration_Errors(t *testing.T) {
	runner := &mockMigrationRunner{err: domain.ErrSpawn}
	svc := NewMigrationService(&mockConfigRepository{}, &mockMigrationFileRepository{}, &mockMigrationRepository{}, runner)

	if _, err := svc.RunMigration(context.Background(), "a.ini", "b.ini", "dev", ""); !errors.Is(err, domain.ErrInvalidMigrationID) {
		t.Errorf("want ErrInvalidMigrationID, got %v", err)
	}
	if runner.args != nil {
		t.Error("runner must not be called for an empty id")
	}

	if _, err := svc.RunMigration(context.Background(), "a.ini", "b.ini", "dev", "1"); !errors.Is(err, domain.ErrSpawn) {
		t.Errorf("want ErrSpawn, got %v", err)
	}
}

func TestMigrationService_ReadMigrationContent(t *testing.T) {
	fileRepo := &mockMigrationFileRepository{content: []byte("<?php")}
	svc := NewMigrationService(&mockConfigRepository{}, fileRepo, &mockMigrationRepository{}, &mockMigrationRunner{})

	content, err := svc.ReadMigrationContent(context.Background(), "/srv/app/migrations", "1")
	if err != nil {
		t.Fatalf("ReadMigrationContent failed: %v", err)
	}
	if string(content) != "<?php" {
		t.Errorf("unexpected content: %q", content)
	}

	if _, err := svc.ReadMigrationContent(context.Background(), "/srv/app/migrations", ""); !errors.Is(err, domain.ErrInvalidMigrationID) {
		t.Errorf("want ErrInvalidMigrationID, got %v", err)
	}
}
