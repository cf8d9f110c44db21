package main

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"phigrate-web/internal/domain"
)

func TestHandleErrorResponse(t *testing.T) {
	err := handleErrorResponse(404, []byte(`{"code":"PROJECT_NOT_FOUND","message":"project not found"}`))
	if err == nil || err.Error() != "Error: project not found" {
		t.Errorf("unexpected error: %v", err)
	}

	err = handleErrorResponse(502, []byte(`Bad Gateway`))
	if err == nil || err.Error() != "Error: server returned status 502" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestExitCode(t *testing.T) {
	if got := exitCode(&exitError{code: 3}); got != 3 {
		t.Errorf("want 3, got %d", got)
	}
	if got := exitCode(fmt.Errorf("running migration 1: %w", domain.ErrRunCanceled)); got != 130 {
		t.Errorf("want 130, got %d", got)
	}
	if got := exitCode(errors.New("boom")); got != 1 {
		t.Errorf("want 1, got %d", got)
	}
}

func TestRenderMigrations(t *testing.T) {
	var buf bytes.Buffer
	renderMigrations(&buf, []*domain.Migration{
		{ID: "20120911072233", Basename: "20120911072233_CreateTableUsers.php", Name: "Create Table Users", Status: domain.MigrationStatusInDB},
		{ID: "20121011072233", Status: domain.MigrationStatusNoFile},
	})

	out := buf.String()
	for _, want := range []string{"VERSION", "Create Table Users", "in_db", "20121011072233", "no_file"} {
		if !strings.Contains(out, want) {
			t.Errorf("output must contain %q:\n%s", want, out)
		}
	}

	buf.Reset()
	renderMigrations(&buf, nil)
	if !strings.Contains(buf.String(), "(no migrations)") {
		t.Errorf("unexpected output for empty list: %q", buf.String())
	}
}

func TestRenderProjects(t *testing.T) {
	var buf bytes.Buffer
	renderProjects(&buf, []projectRow{
		{ID: "0b7f2d9c-1111-4c1e-9c55-3f4c2a9d0e01", Title: "app", Section: "test", ConfigPath: "/srv/app/config/application.ini"},
	})

	out := buf.String()
	for _, want := range []string{"ID", "CONFIG_PATH", "0b7f2d9c-1111-4c1e-9c55-3f4c2a9d0e01", "app", "/srv/app/config/application.ini"} {
		if !strings.Contains(out, want) {
			t.Errorf("output must contain %q:\n%s", want, out)
		}
	}
	// StyleLight の罫線で描画される
	if !strings.Contains(out, "┌") {
		t.Errorf("want table borders:\n%s", out)
	}

	buf.Reset()
	renderProjects(&buf, nil)
	if !strings.Contains(buf.String(), "(no projects)") {
		t.Errorf("unexpected output for empty list: %q", buf.String())
	}
}
