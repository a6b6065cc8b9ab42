package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/geto-app/geto/internal/domain"
	"github.com/geto-app/geto/internal/templates"
	"github.com/geto-app/geto/internal/usecase"
)

func newPackagesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "packages",
		Short:         "List packages on the device or packages with a profile",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          listPackages,
	}
	cmd.Flags().String("source", "third_party", "Package source (device|third_party|configured)")
	return cmd
}

func listPackages(cmd *cobra.Command, _ []string) error {
	out := newOutputFormatter(cmd)
	source, _ := cmd.Flags().GetString("source")

	env, err := openEnv(cmd)
	if err != nil {
		return out.Error("Failed to open instance", err)
	}
	defer env.Close()

	ctx := commandContext(cmd)
	var pkgs []string
	switch strings.ToLower(strings.TrimSpace(source)) {
	case "device":
		pkgs, err = env.adb.InstalledPackages(ctx)
	case "third_party", "":
		pkgs, err = env.adb.ThirdPartyPackages(ctx)
	case "configured":
		pkgs, err = env.entries.Packages(ctx)
	default:
		return out.Error("Invalid --source", fmt.Errorf("unknown source %q", source))
	}
	if err != nil {
		return out.Error("Failed to list packages", err)
	}
	sort.Strings(pkgs)
	return printList(out, "packages", pkgs, "No packages found.")
}

func newDevicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "devices",
		Short:         "List devices visible to adb",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          listDevices,
	}
}

func listDevices(cmd *cobra.Command, _ []string) error {
	out := newOutputFormatter(cmd)
	devices, err := newADBClient(cmd).Devices(commandContext(cmd))
	if err != nil {
		return out.Error("Failed to list devices", err)
	}
	if out.jsonMode {
		return out.Print(map[string]any{"devices": devices})
	}
	if len(devices) == 0 {
		fmt.Println("No devices attached.")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SERIAL\tSTATE\tMODEL")
	for _, d := range devices {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Serial, d.State, d.Model)
	}
	return tw.Flush()
}

// --- preferences ---

const (
	prefUseAutoLaunch   = "use_auto_launch"
	prefTheme           = "theme"
	prefUseDynamicColor = "use_dynamic_color"
	prefCleanupSchedule = "cleanup_schedule"
)

func newPrefsCommand() *cobra.Command {
	prefsCmd := &cobra.Command{
		Use:           "prefs",
		Short:         "Show or change user preferences",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	getCmd := &cobra.Command{
		Use:           "get",
		Short:         "Show preferences",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          prefsGet,
	}

	setCmd := &cobra.Command{
		Use:   "set key=value [key=value...]",
		Short: "Change preferences",
		Long: `Change one or more preferences. Keys:
  use_auto_launch    true|false (also yes|no, on|off)
  theme              system|light|dark
  use_dynamic_color  true|false (also yes|no, on|off)
  cleanup_schedule   cron expression or @every duration, "" disables the sweep`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          prefsSet,
	}

	prefsCmd.AddCommand(getCmd, setCmd)
	return prefsCmd
}

func printPreferences(out *OutputFormatter, prefs domain.UserPreferences) error {
	if out.jsonMode {
		return out.Print(prefs)
	}
	schedule := prefs.CleanupSchedule
	if schedule == "" {
		schedule = "(disabled)"
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%t\n", prefUseAutoLaunch, prefs.UseAutoLaunch)
	fmt.Fprintf(tw, "%s\t%s\n", prefTheme, prefs.Theme)
	fmt.Fprintf(tw, "%s\t%t\n", prefUseDynamicColor, prefs.UseDynamicColor)
	fmt.Fprintf(tw, "%s\t%s\n", prefCleanupSchedule, schedule)
	return tw.Flush()
}

func prefsGet(cmd *cobra.Command, _ []string) error {
	out := newOutputFormatter(cmd)
	env, err := openEnv(cmd)
	if err != nil {
		return out.Error("Failed to open instance", err)
	}
	defer env.Close()

	prefs, err := env.store.Preferences(commandContext(cmd))
	if err != nil {
		return out.Error("Failed to load preferences", err)
	}
	return printPreferences(out, prefs)
}

// applyPreference sets one key=value pair on prefs.
func applyPreference(prefs *domain.UserPreferences, pair string) error {
	key, value, ok := strings.Cut(pair, "=")
	if !ok {
		return fmt.Errorf("expected key=value, got %q", pair)
	}
	key = strings.ToLower(strings.TrimSpace(key))
	value = strings.TrimSpace(value)

	switch key {
	case prefUseAutoLaunch:
		v, err := parseSwitch(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		prefs.UseAutoLaunch = v
	case prefUseDynamicColor:
		v, err := parseSwitch(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		prefs.UseDynamicColor = v
	case prefTheme:
		switch theme := domain.Theme(strings.ToLower(value)); theme {
		case domain.ThemeSystem, domain.ThemeLight, domain.ThemeDark:
			prefs.Theme = theme
		default:
			return fmt.Errorf("theme: unknown value %q", value)
		}
	case prefCleanupSchedule:
		if value != "" {
			if _, err := cron.ParseStandard(value); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
		prefs.CleanupSchedule = value
	default:
		return fmt.Errorf("unknown preference %q", key)
	}
	return nil
}

// parseSwitch accepts yes/no and on/off in addition to the forms cast
// understands.
func parseSwitch(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "yes", "y", "on":
		return true, nil
	case "no", "n", "off":
		return false, nil
	}
	return cast.ToBoolE(value)
}

func prefsSet(cmd *cobra.Command, args []string) error {
	out := newOutputFormatter(cmd)
	env, err := openEnv(cmd)
	if err != nil {
		return out.Error("Failed to open instance", err)
	}
	defer env.Close()

	ctx := commandContext(cmd)
	prefs, err := env.store.Preferences(ctx)
	if err != nil {
		return out.Error("Failed to load preferences", err)
	}
	for _, pair := range args {
		if err := applyPreference(&prefs, pair); err != nil {
			return out.Error("Invalid preference", err)
		}
	}
	if err := env.store.SavePreferences(ctx, prefs); err != nil {
		return out.Error("Failed to save preferences", err)
	}
	return printPreferences(out, prefs)
}

// --- cleanup ---

func newCleanupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove profiles of packages no longer installed",
		Long: `Compare the packages that own entries with the packages installed on the
device and delete the entries of every package that is gone. Asks for
confirmation on a terminal; pass --yes in scripts.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runCleanup,
	}
	cmd.Flags().Bool("dry-run", false, "Only list the packages that would be removed")
	cmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	out := newOutputFormatter(cmd)
	env, err := openEnv(cmd)
	if err != nil {
		return out.Error("Failed to open instance", err)
	}
	defer env.Close()

	ctx := commandContext(cmd)
	orphans, err := env.sweep.Orphans(ctx)
	if err != nil {
		if errors.Is(err, usecase.ErrNoInstalledPackages) {
			return out.Error("Refusing to clean up", err)
		}
		return out.Error("Failed to compare packages", err)
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if len(orphans) == 0 || dryRun {
		if out.jsonMode {
			return out.Print(map[string]any{"dry_run": dryRun, "orphans": nonNil(orphans)})
		}
		if len(orphans) == 0 {
			fmt.Println("Nothing to clean up.")
			return nil
		}
		fmt.Println("Profiles of uninstalled packages:")
		for _, pkg := range orphans {
			fmt.Printf("  %s\n", pkg)
		}
		return nil
	}

	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		fmt.Printf("Profiles of %d uninstalled packages will be deleted: %s\n", len(orphans), strings.Join(orphans, ", "))
		ok, err := confirm("Continue?")
		if err != nil {
			return out.Error("Failed to read confirmation", err)
		}
		if !ok {
			return out.Error("Cleanup cancelled", errors.New("confirmation required (use --yes when not running in a terminal)"))
		}
	}

	report, err := env.sweep.Run(ctx)
	if err != nil {
		return out.Error("Cleanup failed", err)
	}
	return out.Success(
		fmt.Sprintf("Removed %d entries of %d uninstalled packages", report.RemovedEntries, len(report.RemovedPackages)),
		map[string]any{"removed_packages": nonNil(report.RemovedPackages), "removed_entries": report.RemovedEntries},
	)
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

// --- templates ---

func newTemplatesCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "templates",
		Short:         "List the built-in setting templates",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          listTemplates,
	}
}

func listTemplates(cmd *cobra.Command, _ []string) error {
	out := newOutputFormatter(cmd)
	catalog, err := templates.Load()
	if err != nil {
		return out.Error("Failed to load templates", err)
	}
	if out.jsonMode {
		return out.Print(map[string]any{"templates": catalog})
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSCOPE\tKEY\tLAUNCH\tREVERT\tDESCRIPTION")
	for _, t := range catalog {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Scope, t.Key, t.ValueOnLaunch, t.ValueOnRevert, t.Description)
	}
	return tw.Flush()
}

// --- permission ---

func newPermissionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "permission <package>",
		Short: "Print the command granting a package WRITE_SECURE_SETTINGS",
		Long: `Secure and global settings can only be written by apps holding
android.permission.WRITE_SECURE_SETTINGS. Print the adb command that grants it
to the given package.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          printPermissionCommand,
	}
}

func printPermissionCommand(cmd *cobra.Command, args []string) error {
	out := newOutputFormatter(cmd)
	pkg, err := packageArg(args)
	if err != nil {
		return out.Error("Invalid package", err)
	}
	command := newADBClient(cmd).PermissionGrantCommand(pkg)
	if out.jsonMode {
		return out.Print(map[string]any{"package": pkg, "command": command})
	}
	fmt.Println(command)
	return nil
}
