// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"time"
)

// 監査ログの結果
const (
	ResultSuccess = "SUCCESS"
	ResultFailed  = "FAILED"
)

// WriteAuditLog はプロジェクト操作の監査ログを出力する。
func WriteAuditLog(ctx context.Context, operation, projectID, migrationID, result string) {
	attrs := []any{
		"operation", operation,
		"project_id", projectID,
		"result", result,
		"timestamp", time.Now().UTC().Format(time.RFC3339),
	}
	if migrationID != "" {
		attrs = append(attrs, "migration_id", migrationID)
	}
	slog.InfoContext(ctx, "project operation completed", attrs...)
}
