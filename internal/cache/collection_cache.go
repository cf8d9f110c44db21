// Package cache はプロジェクト単位のマイグレーション一覧キャッシュを提供する。
package cache

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"phigrate-web/internal/domain"
)

type entry struct {
	collection *domain.Collection
	storedAt   time.Time
}

// CollectionCache はプロジェクトIDをキーに照合結果を保持する。
// ttl が0以下の場合は明示的に無効化されるまで保持する。
type CollectionCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]entry

	// ディレクトリ監視（StartWatcher で有効化）
	watcher *fsnotify.Watcher
	dirs    map[string]map[string]struct{}
}

// NewCollectionCache は新しいCollectionCacheを生成する。
func NewCollectionCache(ttl time.Duration) *CollectionCache {
	return &CollectionCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
		dirs:    make(map[string]map[string]struct{}),
	}
}

// Get はキャッシュ済みの一覧を返す。期限切れの場合は見つからない扱いになる。
func (c *CollectionCache) Get(projectID string) (*domain.Collection, bool) {
	c.mu.RLock()
	e, ok := c.entries[projectID]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(e.storedAt) > c.ttl {
		c.Invalidate(projectID)
		return nil, false
	}
	return e.collection, true
}

// Put は一覧を保存する。監視が有効な場合は一覧のディレクトリを監視対象に加える。
func (c *CollectionCache) Put(projectID string, collection *domain.Collection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[projectID] = entry{collection: collection, storedAt: c.now()}
	if c.watcher != nil && collection.Directory != "" {
		c.track(projectID, collection.Directory)
	}
}

// Invalidate は指定プロジェクトのキャッシュを破棄する。
func (c *CollectionCache) Invalidate(projectID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, projectID)
}
