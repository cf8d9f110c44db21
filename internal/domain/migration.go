package domain

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
	"time"
)

// MigrationStatus はマイグレーションの適用状態を表す
type MigrationStatus int

const (
	MigrationStatusNotInDB MigrationStatus = 0 // ファイルのみ存在（未適用）
	MigrationStatusInDB    MigrationStatus = 1 // ファイルとDB記録の両方が存在
	MigrationStatusNoFile  MigrationStatus = 2 // DB記録のみ存在
)

// String はステータスの表示名を返す。
func (s MigrationStatus) String() string {
	switch s {
	case MigrationStatusInDB:
		return "in_db"
	case MigrationStatusNoFile:
		return "no_file"
	default:
		return "not_in_db"
	}
}

var (
	migrationIDPattern   = regexp.MustCompile(`^(\d+)_`)
	migrationNamePattern = regexp.MustCompile(`^\d+_(\w+)\.\w+$`)
	capitalPattern       = regexp.MustCompile(`([A-Z])`)
)

// Migration はマイグレーションファイル1件を表すドメインモデル
type Migration struct {
	Basename string          `json:"basename"` // ファイル名（DBのみの場合は空）
	Name     string          `json:"name"`     // 表示用の名前
	ID       string          `json:"id"`       // バージョン（ファイル名の先頭の数字）
	Status   MigrationStatus `json:"status"`
}

// NewMigration はファイル名からMigrationを生成する。
// ファイル名のフォーマット: {id}_{Name}.{ext} (例: 20120911072233_AddUsersTable.php)
func NewMigration(basename string) *Migration {
	m := &Migration{Basename: basename, Status: MigrationStatusNotInDB}
	if match := migrationIDPattern.FindStringSubmatch(basename); match != nil {
		m.ID = match[1]
	}
	if match := migrationNamePattern.FindStringSubmatch(basename); match != nil {
		m.Name = strings.TrimSpace(capitalPattern.ReplaceAllString(match[1], " $1"))
	}
	return m
}

// Clone はMigrationのコピーを返す。
func (m *Migration) Clone() *Migration {
	c := *m
	return &c
}

// CollectionStatus はコレクション全体の状態を表す。
type CollectionStatus int

const (
	CollectionStatusStale    CollectionStatus = 0
	CollectionStatusUpToDate CollectionStatus = 1
)

// Collection はIDをキーとしたマイグレーションの集合。
// 並び順は保持せず、Ascending/Descendingで都度導出する。
type Collection struct {
	Directory string
	Status    CollectionStatus
	UpdatedAt time.Time

	entries map[string]*Migration
}

// NewCollection は空のCollectionを生成する。
func NewCollection(directory string) *Collection {
	return &Collection{
		Directory: directory,
		Status:    CollectionStatusStale,
		UpdatedAt: time.Now(),
		entries:   make(map[string]*Migration),
	}
}

// Add はマイグレーションを追加する。同じIDは上書きされる。
func (c *Collection) Add(m *Migration) {
	c.entries[m.ID] = m
}

// Get はIDに対応するマイグレーションを返す。
func (c *Collection) Get(id string) (*Migration, bool) {
	m, ok := c.entries[id]
	return m, ok
}

// Len は件数を返す。
func (c *Collection) Len() int {
	return len(c.entries)
}

// IsUpToDate は全件がDB適用済みかどうかを返す。
func (c *Collection) IsUpToDate() bool {
	return c.Status == CollectionStatusUpToDate
}

// IDs はIDを辞書順（昇順）で返す。
func (c *Collection) IDs() []string {
	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Ascending はID昇順の一覧を返す。
func (c *Collection) Ascending() []*Migration {
	ids := c.IDs()
	result := make([]*Migration, len(ids))
	for i, id := range ids {
		result[i] = c.entries[id]
	}
	return result
}

// Descending はID降順（新しい順）の一覧を返す。
func (c *Collection) Descending() []*Migration {
	asc := c.Ascending()
	result := make([]*Migration, len(asc))
	for i, m := range asc {
		result[len(asc)-1-i] = m
	}
	return result
}

type collectionJSON struct {
	Directory  string       `json:"directory"`
	Status     int          `json:"status"`
	UpToDate   bool         `json:"up_to_date"`
	UpdatedAt  string       `json:"updated_at"`
	Length     int          `json:"length"`
	Migrations []*Migration `json:"migrations"`
}

// MarshalJSON は昇順の一覧としてJSONに変換する。
func (c *Collection) MarshalJSON() ([]byte, error) {
	return json.Marshal(collectionJSON{
		Directory:  c.Directory,
		Status:     int(c.Status),
		UpToDate:   c.IsUpToDate(),
		UpdatedAt:  c.UpdatedAt.UTC().Format(time.RFC3339),
		Length:     c.Len(),
		Migrations: c.Ascending(),
	})
}

// ProjectPaths は設定ファイルから解決したパス一式。
type ProjectPaths struct {
	ConfigPath   string
	ConfigDir    string
	Section      string
	MigrationDir string
	DBConfigPath string
	// DBSettings はデータベース設定INIの該当セクションのキーと値
	DBSettings map[string]string
}

// RunResult はマイグレーション実行結果を表す。
type RunResult struct {
	ExitCode  int    `json:"exit_code"`
	Stdout    string `json:"stdout"`
	Stderr    string `json:"stderr"`
	Truncated bool   `json:"truncated"`
}
