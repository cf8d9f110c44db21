package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"golang.org/x/sync/errgroup"

	"phigrate-web/internal/domain"
)

// statConcurrency はスキャン時に同時実行するLstatの上限。
const statConcurrency = 16

// MigrationFileRepository はマイグレーションファイルへのアクセスを提供する。
type MigrationFileRepository struct{}

// NewMigrationFileRepository は新しいMigrationFileRepositoryを生成する。
func NewMigrationFileRepository() *MigrationFileRepository {
	return &MigrationFileRepository{}
}

// Scan はディレクトリ内の通常ファイルからマイグレーション一覧を生成する。
// 返却順は保証しない。
func (r *MigrationFileRepository) Scan(ctx context.Context, dir string) ([]*domain.Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w (%s)", domain.ErrDirectoryNotFound, dir)
		}
		slog.ErrorContext(ctx, "failed to read migrations directory",
			"operation", "scan",
			"dir", dir,
			"error", err,
		)
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	// 各エントリのLstatを並行して実行し、全件揃ってから返す
	found := make([]*domain.Migration, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(statConcurrency)
	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			info, err := os.Lstat(filepath.Join(dir, entry.Name()))
			if err != nil {
				// 読み込み中に削除されたファイルは無視する
				if errors.Is(err, os.ErrNotExist) {
					return nil
				}
				return err
			}
			if info.Mode().IsRegular() {
				found[i] = domain.NewMigration(entry.Name())
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		slog.ErrorContext(ctx, "failed to stat migration file",
			"operation", "scan",
			"dir", dir,
			"error", err,
		)
		return nil, fmt.Errorf("failed to stat migration file: %w", err)
	}

	migrations := make([]*domain.Migration, 0, len(found))
	for _, m := range found {
		if m != nil {
			migrations = append(migrations, m)
		}
	}
	return migrations, nil
}

// Content は "<migrationID>_" で始まる最初のファイルの内容を返す。
// 該当ファイルがない場合は nil, nil を返す。
func (r *MigrationFileRepository) Content(ctx context.Context, dir, migrationID string) ([]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w (%s)", domain.ErrDirectoryNotFound, dir)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrRead, err)
	}

	pattern := regexp.MustCompile("^" + regexp.QuoteMeta(migrationID) + "_")
	for _, entry := range entries {
		if !pattern.MatchString(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			slog.ErrorContext(ctx, "failed to read migration file",
				"operation", "content",
				"file_path", path,
				"error", err,
			)
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrRead, path, err)
		}
		return content, nil
	}
	return nil, nil
}
