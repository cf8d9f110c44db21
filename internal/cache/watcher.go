package cache

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// StartWatcher はマイグレーションディレクトリの変更監視を開始する。
// ディレクトリ内でファイルが追加・削除・変更されると、そのディレクトリを参照する
// プロジェクトのキャッシュを破棄する。ctx が終了すると監視を停止する。
func (c *CollectionCache) StartWatcher(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.watcher = watcher
	// 監視開始前に保存された一覧も対象にする
	for id, e := range c.entries {
		if e.collection.Directory != "" {
			c.track(id, e.collection.Directory)
		}
	}
	c.mu.Unlock()

	go c.watch(ctx, watcher)
	return nil
}

// track はディレクトリとプロジェクトの対応を記録する。c.mu を保持して呼ぶこと。
func (c *CollectionCache) track(projectID, dir string) {
	dir = filepath.Clean(dir)
	ids, ok := c.dirs[dir]
	if !ok {
		if err := c.watcher.Add(dir); err != nil {
			slog.Warn("failed to watch migrations directory",
				"operation", "watch",
				"dir", dir,
				"error", err,
			)
			return
		}
		ids = make(map[string]struct{})
		c.dirs[dir] = ids
	}
	ids[projectID] = struct{}{}
}

func (c *CollectionCache) watch(ctx context.Context, watcher *fsnotify.Watcher) {
	defer func() {
		c.mu.Lock()
		c.watcher = nil
		c.dirs = make(map[string]map[string]struct{})
		c.mu.Unlock()
		_ = watcher.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) == 0 {
				continue
			}
			c.invalidateDir(filepath.Dir(event.Name))
			// 監視中のディレクトリ自体の削除・移動
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				c.forgetDir(watcher, event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("migrations directory watcher error", "operation", "watch", "error", err)
		}
	}
}

// invalidateDir はディレクトリを参照する全プロジェクトのキャッシュを破棄する。
func (c *CollectionCache) invalidateDir(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.dirs[filepath.Clean(dir)] {
		delete(c.entries, id)
		slog.Debug("migration cache invalidated by file change",
			"operation", "watch",
			"project_id", id,
			"dir", dir,
		)
	}
}

// forgetDir はディレクトリのキャッシュを破棄し、監視対象から外す。
// 同じパスが再作成された場合は次の Put で改めて監視する。
func (c *CollectionCache) forgetDir(watcher *fsnotify.Watcher, dir string) {
	dir = filepath.Clean(dir)
	c.invalidateDir(dir)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.dirs[dir]; !ok {
		return
	}
	delete(c.dirs, dir)
	// 削除済みのディレクトリは fsnotify 側で監視が外れているためエラーは無視する
	_ = watcher.Remove(dir)
}
