// Package domain はドメインモデルとビジネスルールを定義する。
package domain

import (
	"fmt"
	"time"
)

// Project は登録済みのマイグレーション対象プロジェクトを表す。
type Project struct {
	ID         string
	Title      string
	ConfigPath string
	Section    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Validate は必須項目が空でないかを検証する。
func (p *Project) Validate() error {
	switch {
	case p.Title == "":
		return fmt.Errorf("%w: title cannot be blank", ErrInvalidProject)
	case p.ConfigPath == "":
		return fmt.Errorf("%w: config path cannot be blank", ErrInvalidProject)
	case p.Section == "":
		return fmt.Errorf("%w: section cannot be blank", ErrInvalidProject)
	}
	return nil
}
