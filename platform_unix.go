//go:build unix

// Unix process plumbing: process groups, execute permission, shebang
// execution, and exit status decoding.

package main

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

var relaySignals = []os.Signal{unix.SIGHUP, unix.SIGINT, unix.SIGQUIT, unix.SIGTERM}

// sysProcAttr puts children in their own process group so fatal signals
// can be forwarded to everything a recipe spawns.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

func killProcessGroup(pgid int, sig os.Signal) {
	if number, ok := sig.(syscall.Signal); ok {
		unix.Kill(-pgid, number)
	}
}

func signalNumber(sig os.Signal) int {
	if number, ok := sig.(syscall.Signal); ok {
		return int(number)
	}
	return 0
}

// setExecutable sets the owner execute bit on a script file.
func setExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.Chmod(path, info.Mode().Perm()|0o100)
}

// makeShebangCommand runs a shebang script. The kernel interprets the
// shebang line, so the script executes directly.
func makeShebangCommand(path, shebang string) (*exec.Cmd, error) {
	_ = shebang
	return exec.Command(path), nil
}

// exitStatus decodes a finished process state into an exit code and, when
// the process died from a signal, the signal number.
func exitStatus(state *os.ProcessState) (code int, signal int) {
	if status, ok := state.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return 0, int(status.Signal())
	}
	return state.ExitCode(), 0
}
