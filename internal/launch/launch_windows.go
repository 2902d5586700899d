//go:build windows

package launch

import (
	"os/exec"
	"syscall"
)

func configure(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
}

func openCommand(target string) (string, []string) {
	if isVirtual(target) {
		return "explorer.exe", []string{target}
	}
	return "rundll32.exe", []string{"url.dll,FileProtocolHandler", target}
}

func revealCommand(path string) (string, []string) {
	return "explorer.exe", []string{"/select," + path}
}
