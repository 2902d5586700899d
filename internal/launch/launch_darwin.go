//go:build darwin

package launch

import "os/exec"

func configure(*exec.Cmd) {}

func openCommand(target string) (string, []string) { return "open", []string{target} }

func revealCommand(path string) (string, []string) { return "open", []string{"-R", path} }
