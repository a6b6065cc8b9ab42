//go:build windows

package main

import (
	"os"
	"os/exec"
	"os/signal"
	"syscall"
)

// notifyStopSignals registers the signals that end a foreground command.
// Windows has no SIGHUP; only SIGINT and SIGTERM are registered.
func notifyStopSignals(ch chan<- os.Signal) {
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
}

func stopSignals(ch chan<- os.Signal) {
	signal.Stop(ch)
}

// detach starts cmd in a new process group so console Ctrl+C does not reach it.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}
