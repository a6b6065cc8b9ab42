package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/geto-app/geto/internal/config"
)

// fakeDevice answers the adb invocations issued by the CLI.
type fakeDevice struct {
	mu        sync.Mutex
	packages  []string
	settings  map[string]string // "scope/key" -> value
	denyScope string
	puts      []string
	launched  []string
}

func newFakeDevice(packages ...string) *fakeDevice {
	return &fakeDevice{
		packages: packages,
		settings: map[string]string{
			"system/show_touches":            "0",
			"global/window_animation_scale":  "1.0",
			"global/animator_duration_scale": "1.0",
			"secure/accessibility_enabled":   "0",
		},
	}
}

func (d *fakeDevice) Run(_ context.Context, _ string, args ...string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(args) >= 2 && args[0] == "-s" {
		args = args[2:]
	}
	if len(args) > 0 && args[0] == "devices" {
		return []byte("List of devices attached\nemulator-5554 device product:sdk model:Pixel_7 device:emu\n"), nil
	}
	if len(args) < 2 || args[0] != "shell" {
		return nil, fmt.Errorf("unexpected adb call %v", args)
	}

	words := strings.Fields(args[1])
	switch {
	case len(words) >= 3 && words[0] == "pm" && words[1] == "list":
		var b strings.Builder
		for _, pkg := range d.packages {
			fmt.Fprintf(&b, "package:%s\n", pkg)
		}
		return []byte(b.String()), nil
	case len(words) == 5 && words[0] == "settings" && words[1] == "put":
		if words[2] == d.denyScope {
			return []byte("java.lang.SecurityException: Permission denial: writing to settings requires:android.permission.WRITE_SECURE_SETTINGS"), fmt.Errorf("exit status 255")
		}
		d.settings[words[2]+"/"+words[3]] = words[4]
		d.puts = append(d.puts, words[2]+"/"+words[3]+"="+words[4])
		return nil, nil
	case len(words) == 4 && words[0] == "settings" && words[1] == "get":
		if v, ok := d.settings[words[2]+"/"+words[3]]; ok {
			return []byte(v + "\n"), nil
		}
		return []byte("null\n"), nil
	case len(words) == 3 && words[0] == "settings" && words[1] == "list":
		var keys []string
		for k, v := range d.settings {
			if scope, key, _ := strings.Cut(k, "/"); scope == words[2] {
				keys = append(keys, key+"="+v)
			}
		}
		sort.Strings(keys)
		return []byte(strings.Join(keys, "\n")), nil
	case words[0] == "cmd" && words[1] == "package":
		pkg := words[len(words)-1]
		return []byte("priority=0 preferredOrder=0 match=0x108000\n" + pkg + "/.MainActivity\n"), nil
	case words[0] == "am" && words[1] == "start":
		d.launched = append(d.launched, words[len(words)-1])
		return []byte("Starting: Intent { cmp=" + words[len(words)-1] + " }\n"), nil
	}
	return nil, fmt.Errorf("unexpected shell command %q", args[1])
}

func (d *fakeDevice) putCalls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.puts...)
}

func (d *fakeDevice) launches() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.launched...)
}

// useDevice points the CLI at a fresh instance home and the given device.
func useDevice(t *testing.T, d *fakeDevice) {
	t.Helper()
	t.Setenv(config.HomeEnv, t.TempDir())
	prev := adbRunner
	adbRunner = d
	t.Cleanup(func() { adbRunner = prev })
}

// captureStdout runs fn with stdout redirected to a pipe and returns the output.
// Reading happens in a goroutine to avoid deadlock if output exceeds the pipe buffer.
// WARNING: Modifies the global os.Stdout, incompatible with t.Parallel().
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	os.Stdout = w
	t.Cleanup(func() { os.Stdout = oldStdout })

	ch := make(chan string, 1)
	go func() {
		var buf bytes.Buffer
		buf.ReadFrom(r)
		ch <- buf.String()
	}()

	fn()
	w.Close()
	os.Stdout = oldStdout

	return <-ch
}

// runCLI executes the root command with args and returns stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var runErr error
	output := captureStdout(t, func() {
		cmd := newRootCommand()
		cmd.SetArgs(args)
		cmd.SetErr(&bytes.Buffer{})
		runErr = cmd.Execute()
	})
	return output, runErr
}

func mustRunCLI(t *testing.T, args ...string) string {
	t.Helper()
	output, err := runCLI(t, args...)
	if err != nil {
		t.Fatalf("geto %s: %v\noutput:\n%s", strings.Join(args, " "), err, output)
	}
	return output
}
