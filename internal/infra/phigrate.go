package infra

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"phigrate-web/internal/domain"
)

const (
	// DefaultPhigrateBin はマイグレーション実行ファイルのデフォルト名。
	DefaultPhigrateBin = "phigrate"
	// DefaultOutputLimit は標準出力・標準エラーそれぞれの保持上限（バイト）。
	DefaultOutputLimit = 1 << 20
	// waitDelay はプロセス終了後に出力パイプが閉じられるまで待つ上限。
	waitDelay = 2 * time.Second
)

// limitedBuffer は上限を超えた書き込みを捨てるバッファ。
// 子プロセスの出力が止まらないよう、Write は常に成功を返す。
type limitedBuffer struct {
	mu        sync.Mutex
	buf       strings.Builder
	limit     int
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	remaining := b.limit - b.buf.Len()
	if remaining <= 0 {
		if len(p) > 0 {
			b.truncated = true
		}
		return len(p), nil
	}
	if len(p) > remaining {
		b.buf.Write(p[:remaining])
		b.truncated = true
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *limitedBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truncated
}

// PhigrateRunner は外部コマンド phigrate を実行する。
type PhigrateRunner struct {
	bin         string
	timeout     time.Duration
	outputLimit int
}

// NewPhigrateRunner は新しいPhigrateRunnerを生成する。
// timeout が0以下の場合は呼び出し元のcontextのみに従う。
func NewPhigrateRunner(bin string, timeout time.Duration, outputLimit int) *PhigrateRunner {
	if bin == "" {
		bin = DefaultPhigrateBin
	}
	if outputLimit <= 0 {
		outputLimit = DefaultOutputLimit
	}
	return &PhigrateRunner{bin: bin, timeout: timeout, outputLimit: outputLimit}
}

// Args は phigrate に渡す引数を組み立てる。
func Args(configPath, dbConfigPath, section, migrationID string) []string {
	return []string{
		"-c", configPath,
		"-d", dbConfigPath,
		"ENV=" + section,
		"db:migrate",
		"VERSION=" + migrationID,
	}
}

// Run は設定ファイルのディレクトリを作業ディレクトリとして phigrate を実行し、
// 終了するまで待って出力と終了コードを返す。終了コードはそのまま返し、エラーにはしない。
func (r *PhigrateRunner) Run(ctx context.Context, configPath, dbConfigPath, section, migrationID string) (*domain.RunResult, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	args := Args(configPath, dbConfigPath, section, migrationID)
	stdout := &limitedBuffer{limit: r.outputLimit}
	stderr := &limitedBuffer{limit: r.outputLimit}

	cmd := exec.CommandContext(ctx, r.bin, args...)
	cmd.Dir = filepath.Dir(configPath)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay
	// phigrate がラッパースクリプトの場合も子孫プロセスごと停止する
	killProcessGroup(cmd)

	slog.InfoContext(ctx, "starting migration process",
		"operation", "run",
		"cmd", r.bin+" "+strings.Join(args, " "),
		"dir", cmd.Dir,
	)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSpawn, err)
	}

	waitErr := cmd.Wait()
	result := &domain.RunResult{
		ExitCode:  -1,
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Truncated: stdout.Truncated() || stderr.Truncated(),
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err := waitError(ctx, waitErr); err != nil {
		return result, err
	}

	slog.InfoContext(ctx, "migration process finished",
		"operation", "run",
		"exit_code", result.ExitCode,
		"truncated", result.Truncated,
	)
	return result, nil
}

// waitError は cmd.Wait の結果を実行エラーに変換する。
// 0以外の終了コードは結果として扱い、エラーにしない。
// context の終了は Wait が失敗した場合のみ中断として扱う。
func waitError(ctx context.Context, waitErr error) error {
	if waitErr == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", domain.ErrRunCanceled, ctxErr)
	}
	var exitErr *exec.ExitError
	switch {
	case errors.As(waitErr, &exitErr):
		return nil
	case errors.Is(waitErr, exec.ErrWaitDelay):
		slog.WarnContext(ctx, "migration process left its output open after exit",
			"operation", "run",
			"error", waitErr,
		)
		return nil
	default:
		return fmt.Errorf("waiting for migration process: %w", waitErr)
	}
}
