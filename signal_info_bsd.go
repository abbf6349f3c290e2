//go:build darwin || dragonfly || freebsd || netbsd || openbsd

package main

import (
	"os"

	"golang.org/x/sys/unix"
)

// SIGINFO exists only on the BSDs; it triggers a status printout rather
// than shutdown.
var infoSignal os.Signal = unix.SIGINFO
