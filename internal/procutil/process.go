package procutil

import "time"

// WaitForExit polls until pid is gone or timeout elapses. It reports whether
// the process exited.
func WaitForExit(pid int, timeout, poll time.Duration) bool {
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}
	deadline := time.Now().Add(timeout)
	for {
		if !IsProcessAlive(pid) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(poll)
	}
}
