//go:build !windows

package main

import (
	"os"
	"os/exec"
	"os/signal"
	"syscall"
)

// notifyStopSignals registers the signals that end a foreground command.
// On Unix a closed terminal (SIGHUP) stops it as well.
func notifyStopSignals(ch chan<- os.Signal) {
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
}

func stopSignals(ch chan<- os.Signal) {
	signal.Stop(ch)
}

// detach starts cmd in its own session so it outlives the terminal.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
