package adb

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/geto-app/geto/internal/domain"
)

const launcherCategory = "android.intent.category.LAUNCHER"

// InstalledPackages lists the package names installed on the device.
func (c *Client) InstalledPackages(ctx context.Context) ([]string, error) {
	return c.listPackages(ctx)
}

// ThirdPartyPackages lists user-installed packages only.
func (c *Client) ThirdPartyPackages(ctx context.Context) ([]string, error) {
	return c.listPackages(ctx, "-3")
}

func (c *Client) listPackages(ctx context.Context, flags ...string) ([]string, error) {
	words := append([]string{"pm", "list", "packages"}, flags...)
	out, err := c.shell(ctx, words...)
	if err != nil {
		return nil, commandError("pm list packages", out, err)
	}

	var pkgs []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		name, ok := strings.CutPrefix(line, "package:")
		if !ok || name == "" {
			continue
		}
		pkgs = append(pkgs, name)
	}
	sort.Strings(pkgs)
	return pkgs, nil
}

// LaunchIntent resolves the launcher activity of pkg.
func (c *Client) LaunchIntent(ctx context.Context, pkg string) (domain.LaunchIntent, error) {
	out, err := c.shell(ctx, "cmd", "package", "resolve-activity", "--brief", "-c", launcherCategory, pkg)
	if err != nil {
		return domain.LaunchIntent{}, commandError("resolve launcher activity for "+pkg, out, err)
	}

	component := lastLine(out)
	if !strings.Contains(component, "/") {
		return domain.LaunchIntent{}, fmt.Errorf("adb: %s: %w", pkg, domain.ErrNoLaunchIntent)
	}
	return domain.LaunchIntent{Package: pkg, Component: component}, nil
}

// Launch starts the activity named by intent.
func (c *Client) Launch(ctx context.Context, intent domain.LaunchIntent) error {
	if intent.Component == "" {
		return fmt.Errorf("adb: launch %s: %w", intent.Package, domain.ErrNoLaunchIntent)
	}
	out, err := c.shell(ctx, "am", "start", "-n", intent.Component)
	if err != nil {
		return commandError("am start "+intent.Component, out, err)
	}
	if strings.Contains(out, "Error:") {
		return fmt.Errorf("adb: am start %s: %s", intent.Component, strings.TrimSpace(out))
	}
	return nil
}

// PermissionGrantCommand returns the command that grants pkg the permission
// needed to write secure and global settings.
func (c *Client) PermissionGrantCommand(pkg string) string {
	parts := []string{c.binary}
	if c.serial != "" {
		parts = append(parts, "-s", c.serial)
	}
	parts = append(parts, "shell", "pm", "grant", pkg, "android.permission.WRITE_SECURE_SETTINGS")
	return strings.Join(parts, " ")
}

func lastLine(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
