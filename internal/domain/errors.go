package domain

import "errors"

var (
	// ErrConfigNotFound はアプリケーション設定ファイルが存在しない場合のエラー。
	ErrConfigNotFound = errors.New("config file not found")

	// ErrSectionNotFound はINIファイルに指定セクションが存在しない場合のエラー。
	ErrSectionNotFound = errors.New("section not found")

	// ErrKeyNotFound はセクションに必須キーが存在しない場合のエラー。
	ErrKeyNotFound = errors.New("key not found")

	// ErrPathNotFound は正規化後のパスが存在しない場合のエラー。
	ErrPathNotFound = errors.New("path not found")

	// ErrDirectoryNotFound はスキャン対象ディレクトリが存在しない場合のエラー。
	ErrDirectoryNotFound = errors.New("directory not found")

	// ErrNoConnectionConfig はDB接続に使えるキーが一つもない場合のエラー。
	ErrNoConnectionConfig = errors.New("no data config found for connect to DB")

	// ErrConnection はDB接続・問い合わせに失敗した場合のエラー。
	ErrConnection = errors.New("connecting to DB")

	// ErrSpawn はマイグレーション実行ファイルの起動に失敗した場合のエラー。
	ErrSpawn = errors.New("failed to spawn migration process")

	// ErrRunCanceled はマイグレーション実行がタイムアウト・キャンセルされた場合のエラー。
	ErrRunCanceled = errors.New("migration process canceled")

	// ErrRead はマイグレーションファイルの読み込みに失敗した場合のエラー。
	ErrRead = errors.New("failed to read migration file")

	// ErrInvalidMigrationID はマイグレーションIDが空の場合のエラー。
	ErrInvalidMigrationID = errors.New("invalid migration id")

	// ErrProjectNotFound はプロジェクトが存在しない場合のエラー。
	ErrProjectNotFound = errors.New("project not found")

	// ErrInvalidProject はプロジェクトの入力値が不正な場合のエラー。
	ErrInvalidProject = errors.New("invalid project")
)
