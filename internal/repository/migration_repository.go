package repository

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"phigrate-web/internal/domain"
)

// DefaultFetchTimeout はDB接続・問い合わせのデフォルトのタイムアウト。
const DefaultFetchTimeout = 10 * time.Second

// SchemaMigrationModel はschema_migrationsテーブルのモデル。
type SchemaMigrationModel struct {
	Version string `gorm:"column:version;primaryKey;type:varchar(255)"`
}

// TableName はテーブル名を指定。
func (SchemaMigrationModel) TableName() string {
	return "schema_migrations"
}

// Dialer はDSNからDB接続を開く。
type Dialer func(ctx context.Context, dsn string) (*gorm.DB, error)

// MySQLDialer はgorm + MySQLドライバで接続し、疎通確認まで行う。
func MySQLDialer(ctx context.Context, dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// MigrationRepository は対象データベースのschema_migrationsを参照するリポジトリ。
type MigrationRepository struct {
	dial    Dialer
	timeout time.Duration
}

// NewMigrationRepository は新しいMigrationRepositoryを生成する。
// dial が nil の場合は MySQLDialer を使う。
func NewMigrationRepository(dial Dialer, timeout time.Duration) *MigrationRepository {
	if dial == nil {
		dial = MySQLDialer
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &MigrationRepository{dial: dial, timeout: timeout}
}

// allowedOptions は接続設定として受け付けるキー。
var allowedOptions = map[string]bool{
	"host":       true,
	"port":       true,
	"user":       true,
	"password":   true,
	"database":   true,
	"socketPath": true,
}

// ConnectionOptions は許可されたキーだけを抽出する。"socket" は "socketPath" として扱う。
func ConnectionOptions(settings map[string]string) map[string]string {
	options := make(map[string]string)
	for k, v := range settings {
		switch {
		case allowedOptions[k]:
			options[k] = v
		case k == "socket":
			options["socketPath"] = v
		}
	}
	return options
}

// BuildDSN は接続オプションからMySQLのDSNを組み立てる。
func BuildDSN(options map[string]string, timeout time.Duration) string {
	cfg := mysqldriver.NewConfig()
	cfg.User = options["user"]
	cfg.Passwd = options["password"]
	cfg.DBName = options["database"]
	cfg.Timeout = timeout
	cfg.ReadTimeout = timeout

	if socket := options["socketPath"]; socket != "" {
		cfg.Net = "unix"
		cfg.Addr = socket
	} else {
		host := options["host"]
		if host == "" {
			host = "localhost"
		}
		port := options["port"]
		if port == "" {
			port = "3306"
		}
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(host, port)
	}
	return cfg.FormatDSN()
}

// FetchVersions は適用済みバージョンを降順で取得する。
func (r *MigrationRepository) FetchVersions(ctx context.Context, settings map[string]string) ([]string, error) {
	options := ConnectionOptions(settings)
	if len(options) == 0 {
		return nil, domain.ErrNoConnectionConfig
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	db, err := r.dial(ctx, BuildDSN(options, r.timeout))
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database",
			"operation", "fetch_versions",
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", domain.ErrConnection, err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	var versions []string
	if err := db.WithContext(ctx).Model(&SchemaMigrationModel{}).Order("version DESC").Pluck("version", &versions).Error; err != nil {
		slog.ErrorContext(ctx, "failed to find applied versions",
			"operation", "fetch_versions",
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", domain.ErrConnection, err)
	}
	if versions == nil {
		versions = []string{}
	}
	return versions, nil
}
