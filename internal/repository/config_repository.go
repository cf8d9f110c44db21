package repository

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"

	"phigrate-web/internal/domain"
)

const (
	keyMigrationDir   = "migration.dir"
	keyDatabaseConfig = "database.config"
)

// IniSection はINIの1セクション分のキーと値。
type IniSection map[string]string

// Value は指定キーの値を返す。
func (s IniSection) Value(key string) (string, error) {
	if v, ok := s[key]; ok {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s", domain.ErrKeyNotFound, key)
}

// IniFile はセクション名をキーとしたINIファイルの内容。
type IniFile map[string]IniSection

// Section は指定セクションを返す。
func (f IniFile) Section(name string) (IniSection, error) {
	sec, ok := f[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSectionNotFound, name)
	}
	return sec, nil
}

// LoadIni はINIファイルを読み込む。
// "[test : default]" 形式のセクションは親セクションの値を継承する。
// "[test.migration]" 形式のサブセクションのキーは "migration.<key>" として test に展開される。
func LoadIni(path string) (IniFile, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w (%s)", domain.ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	cfg, err := ini.LoadSources(ini.LoadOptions{SkipUnrecognizableLines: true}, path)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	raw := make(IniFile)
	parents := make(map[string]string)
	for _, sec := range cfg.Sections() {
		if sec.Name() == ini.DefaultSection && len(sec.Keys()) == 0 {
			continue
		}
		name, parent := splitSectionName(sec.Name())
		values := raw[name]
		if values == nil {
			values = make(IniSection)
			raw[name] = values
		}
		for k, v := range sec.KeysHash() {
			values[k] = v
		}
		if parent != "" {
			parents[name] = parent
		}
	}

	// サブセクションは継承の解決前に親セクションへ展開する
	for name, values := range raw {
		base, sub, ok := strings.Cut(name, ".")
		if !ok {
			continue
		}
		target, exists := raw[base]
		if !exists {
			continue
		}
		for k, v := range values {
			key := sub + "." + k
			if _, set := target[key]; !set {
				target[key] = v
			}
		}
	}

	file := make(IniFile, len(raw))
	for name := range raw {
		file[name] = resolveSection(raw, parents, name, map[string]bool{})
	}

	return file, nil
}

func splitSectionName(name string) (string, string) {
	child, parent, ok := strings.Cut(name, ":")
	if !ok {
		return strings.TrimSpace(name), ""
	}
	return strings.TrimSpace(child), strings.TrimSpace(parent)
}

func resolveSection(raw IniFile, parents map[string]string, name string, seen map[string]bool) IniSection {
	result := make(IniSection)
	if seen[name] {
		return result
	}
	seen[name] = true

	if parent, ok := parents[name]; ok {
		if _, exists := raw[parent]; exists {
			for k, v := range resolveSection(raw, parents, parent, seen) {
				result[k] = v
			}
		}
	}
	for k, v := range raw[name] {
		result[k] = v
	}
	return result
}

// isRelativePath は "./" または "../" で始まるパスかどうかを返す。
func isRelativePath(p string) bool {
	return strings.HasPrefix(p, "./") || strings.HasPrefix(p, "../")
}

// normalizePath は設定ファイルのディレクトリを基準に相対パスを解決する。
func normalizePath(configDir, p string) string {
	if isRelativePath(p) {
		return filepath.Clean(filepath.Join(configDir, p))
	}
	return p
}

// ConfigRepository はプロジェクトのINI設定を読み込む。
type ConfigRepository struct{}

// NewConfigRepository は新しいConfigRepositoryを生成する。
func NewConfigRepository() *ConfigRepository {
	return &ConfigRepository{}
}

// LoadConfig はアプリケーション設定とデータベース設定を読み込み、パスを解決する。
func (r *ConfigRepository) LoadConfig(configPath, section string) (*domain.ProjectPaths, error) {
	appIni, err := LoadIni(configPath)
	if err != nil {
		slog.Error("failed to load application config",
			"operation", "load_config",
			"config_path", configPath,
			"error", err,
		)
		return nil, fmt.Errorf("application config: %w", err)
	}

	appSection, err := appIni.Section(section)
	if err != nil {
		return nil, fmt.Errorf("%w in application config", err)
	}

	configDir := filepath.Dir(configPath)

	migrationDir, err := appSection.Value(keyMigrationDir)
	if err != nil {
		return nil, fmt.Errorf("%w in config file", err)
	}
	migrationDir = normalizePath(configDir, migrationDir)
	if _, err := os.Stat(migrationDir); err != nil {
		return nil, fmt.Errorf("%w: migrations dir not found (%s)", domain.ErrPathNotFound, migrationDir)
	}

	dbConfigPath, err := appSection.Value(keyDatabaseConfig)
	if err != nil {
		return nil, fmt.Errorf("%w in config file", err)
	}
	dbConfigPath = normalizePath(configDir, dbConfigPath)
	if _, err := os.Stat(dbConfigPath); err != nil {
		return nil, fmt.Errorf("%w: database config file not found (%s)", domain.ErrPathNotFound, dbConfigPath)
	}

	dbIni, err := LoadIni(dbConfigPath)
	if err != nil {
		return nil, fmt.Errorf("database config: %w", err)
	}
	dbSection, err := dbIni.Section(section)
	if err != nil {
		return nil, fmt.Errorf("%w in database config", err)
	}

	return &domain.ProjectPaths{
		ConfigPath:   configPath,
		ConfigDir:    configDir,
		Section:      section,
		MigrationDir: migrationDir,
		DBConfigPath: dbConfigPath,
		DBSettings:   dbSection,
	}, nil
}
