//go:build unix

package infra

import (
	"os/exec"
	"syscall"
)

// killProcessGroup は子プロセスを新しいプロセスグループで起動し、
// キャンセル時にグループ全体へ SIGKILL を送るよう設定する。
func killProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
