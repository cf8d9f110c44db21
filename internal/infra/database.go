// Package infra は外部サービスとの接続を提供する。
package infra

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"phigrate-web/config"
)

const sqlitePrefix = "sqlite://"

// NewDB はgormによるプロジェクト登録用データベース接続を初期化する。
// "sqlite://" で始まるURLはSQLite、それ以外はMySQLのDSNとして扱う。
func NewDB(databaseURL string, cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if path, ok := strings.CutPrefix(databaseURL, sqlitePrefix); ok {
		dialector = sqlite.Open(path)
	} else {
		dialector = mysql.Open(databaseURL)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if cfg != nil && cfg.OtelEnabled {
		if err := db.Use(tracing.NewPlugin()); err != nil {
			return nil, fmt.Errorf("registering tracing plugin: %w", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 接続プール設定
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}
