// Package adb drives an Android device through the adb command-line tool.
// It implements the settings, package and launcher ports of the domain.
package adb

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// BinaryEnv overrides adb discovery when set.
const BinaryEnv = "GETO_ADB"

// Runner executes a command and returns its combined stdout and stderr.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// FindBinary resolves the adb executable: $GETO_ADB, then the platform-tools
// directory of $ANDROID_SDK_ROOT or $ANDROID_HOME, then plain "adb" from PATH.
func FindBinary() string {
	if bin := strings.TrimSpace(os.Getenv(BinaryEnv)); bin != "" {
		return bin
	}
	if sdkRoot := os.Getenv("ANDROID_SDK_ROOT"); sdkRoot != "" {
		return filepath.Join(sdkRoot, "platform-tools", "adb")
	}
	if androidHome := os.Getenv("ANDROID_HOME"); androidHome != "" {
		return filepath.Join(androidHome, "platform-tools", "adb")
	}
	return "adb"
}

// Options configures a Client.
type Options struct {
	Binary string // adb executable (defaults to FindBinary)
	Serial string // target device serial, passed as -s
	Runner Runner // defaults to ExecRunner
}

// Client issues adb commands against one device.
type Client struct {
	binary string
	serial string
	runner Runner
}

// New constructs a Client.
func New(opts Options) *Client {
	if opts.Binary == "" {
		opts.Binary = FindBinary()
	}
	if opts.Runner == nil {
		opts.Runner = ExecRunner{}
	}
	return &Client{
		binary: opts.Binary,
		serial: strings.TrimSpace(opts.Serial),
		runner: opts.Runner,
	}
}

// Binary returns the adb executable in use.
func (c *Client) Binary() string {
	return c.binary
}

// Serial returns the target device serial, if any.
func (c *Client) Serial() string {
	return c.serial
}

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	full := make([]string, 0, len(args)+2)
	if c.serial != "" {
		full = append(full, "-s", c.serial)
	}
	full = append(full, args...)
	out, err := c.runner.Run(ctx, c.binary, full...)
	return string(out), err
}

// shell runs "adb shell" with the given words. Each word is quoted so that
// values with spaces or shell metacharacters reach the device intact.
func (c *Client) shell(ctx context.Context, words ...string) (string, error) {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = shellQuote(w)
	}
	return c.run(ctx, "shell", strings.Join(quoted, " "))
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' ||
			strings.ContainsRune("._-/:=@%+,", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func commandError(what string, out string, err error) error {
	msg := strings.TrimSpace(out)
	if msg == "" {
		return fmt.Errorf("adb: %s: %w", what, err)
	}
	return fmt.Errorf("adb: %s: %w: %s", what, err, msg)
}
