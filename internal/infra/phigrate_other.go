//go:build !unix

package infra

import "os/exec"

// killProcessGroup はプロセスグループを持たない環境では何もしない。
// キャンセル時は exec.CommandContext の既定どおり直接の子プロセスのみ停止し、
// 残ったパイプは WaitDelay で閉じる。
func killProcessGroup(cmd *exec.Cmd) {}
