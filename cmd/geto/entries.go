package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/geto-app/geto/internal/domain"
	"github.com/geto-app/geto/internal/templates"
	"github.com/geto-app/geto/internal/usecase"
	"github.com/geto-app/geto/internal/validate"
)

func newEntriesCommand() *cobra.Command {
	entriesCmd := &cobra.Command{
		Use:           "entries",
		Short:         "Manage the settings profile of an app",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	listCmd := &cobra.Command{
		Use:           "list <package>",
		Short:         "List the entries of a package",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          entriesList,
	}

	addCmd := &cobra.Command{
		Use:   "add <package>",
		Short: "Add an entry to a package profile",
		Long: `Add a setting to the profile of an installed package.

Use --template to start from a catalog entry (see "geto templates"); explicit
flags override the template values. When --revert is omitted the device's
current value is recorded as the revert value.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          entriesAdd,
	}
	addCmd.Flags().String("template", "", "Template ID to start from")
	addCmd.Flags().String("scope", "", "Settings scope (system|secure|global)")
	addCmd.Flags().String("key", "", "Setting key")
	addCmd.Flags().String("launch", "", "Value written when the app is launched")
	addCmd.Flags().String("revert", "", "Value written when settings are reverted")
	addCmd.Flags().String("label", "", "Display label")
	addCmd.Flags().Bool("disabled", false, "Store the entry disabled")

	editCmd := &cobra.Command{
		Use:           "edit <id>",
		Short:         "Change the label, key or values of an entry",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          entriesEdit,
	}
	editCmd.Flags().String("key", "", "Setting key")
	editCmd.Flags().String("launch", "", "Value written when the app is launched")
	editCmd.Flags().String("revert", "", "Value written when settings are reverted")
	editCmd.Flags().String("label", "", "Display label")

	rmCmd := &cobra.Command{
		Use:           "rm <id>",
		Aliases:       []string{"delete"},
		Short:         "Delete an entry",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          entriesRemove,
	}

	toggleCmd := &cobra.Command{
		Use:           "toggle <id>",
		Short:         "Enable or disable an entry (flips it without --on/--off)",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          entriesToggle,
	}
	toggleCmd.Flags().Bool("on", false, "Enable the entry")
	toggleCmd.Flags().Bool("off", false, "Disable the entry")
	toggleCmd.MarkFlagsMutuallyExclusive("on", "off")

	entriesCmd.AddCommand(listCmd, addCmd, editCmd, rmCmd, toggleCmd)
	return entriesCmd
}

func entriesList(cmd *cobra.Command, args []string) error {
	out := newOutputFormatter(cmd)
	pkg, err := packageArg(args)
	if err != nil {
		return out.Error("Invalid package", err)
	}

	env, err := openEnv(cmd)
	if err != nil {
		return out.Error("Failed to open instance", err)
	}
	defer env.Close()

	entries, err := env.entries.List(commandContext(cmd), pkg)
	if err != nil {
		return out.Error("Failed to list entries", err)
	}
	return printEntries(out, pkg, entries)
}

// entryFromFlags builds the entry described by the add flags, starting from
// the template when one is named.
func entryFromFlags(cmd *cobra.Command, pkg string) (domain.SettingEntry, error) {
	entry := domain.SettingEntry{Package: pkg, Enabled: true}

	if id, _ := cmd.Flags().GetString("template"); strings.TrimSpace(id) != "" {
		tpl, ok, err := templates.Find(strings.TrimSpace(id))
		if err != nil {
			return entry, err
		}
		if !ok {
			return entry, fmt.Errorf("unknown template %q", id)
		}
		entry = tpl.ToEntry(pkg)
	}

	flags := cmd.Flags()
	if flags.Changed("scope") {
		raw, _ := flags.GetString("scope")
		scope, err := domain.ParseScope(raw)
		if err != nil {
			return entry, err
		}
		entry.Scope = scope
	}
	if flags.Changed("key") {
		entry.Key, _ = flags.GetString("key")
	}
	if flags.Changed("launch") {
		entry.ValueOnLaunch, _ = flags.GetString("launch")
	}
	if flags.Changed("revert") {
		entry.ValueOnRevert, _ = flags.GetString("revert")
	}
	if flags.Changed("label") {
		entry.Label, _ = flags.GetString("label")
	}
	if disabled, _ := flags.GetBool("disabled"); disabled {
		entry.Enabled = false
	}

	entry.Key = strings.TrimSpace(entry.Key)
	if entry.Scope == "" {
		return entry, errors.New("--scope is required without --template")
	}
	if err := validate.SettingKey(entry.Key); err != nil {
		return entry, err
	}
	return entry, nil
}

func entriesAdd(cmd *cobra.Command, args []string) error {
	out := newOutputFormatter(cmd)
	pkg, err := packageArg(args)
	if err != nil {
		return out.Error("Invalid package", err)
	}
	entry, err := entryFromFlags(cmd, pkg)
	if err != nil {
		return out.Error("Invalid entry", err)
	}

	env, err := openEnv(cmd)
	if err != nil {
		return out.Error("Failed to open instance", err)
	}
	defer env.Close()

	ctx := commandContext(cmd)
	stored, err := env.entries.Add(ctx, entry)
	if err != nil {
		var notInstalled *usecase.PackageNotInstalledError
		if errors.As(err, &notInstalled) && len(notInstalled.Suggestions) > 0 && !out.jsonMode {
			fmt.Printf("Did you mean: %s\n", strings.Join(notInstalled.Suggestions, ", "))
		}
		return out.Error("Failed to add entry", err)
	}

	var keySuggestions []string
	if !stored.SafeToWrite {
		keySuggestions, _ = env.entries.SuggestKeys(ctx, stored.Scope, stored.Key)
	}

	if out.jsonMode {
		return out.Print(map[string]any{"entry": stored, "key_suggestions": keySuggestions})
	}
	fmt.Printf("Added entry %d to %s: %s/%s = %s (revert %s)\n",
		stored.ID, stored.Package, stored.Scope, stored.Key, stored.ValueOnLaunch, stored.ValueOnRevert)
	if !stored.SafeToWrite {
		fmt.Printf("Note: %s is not defined in the %s table on this device; it will be created on apply.\n", stored.Key, stored.Scope)
		if len(keySuggestions) > 0 {
			fmt.Printf("Similar existing keys: %s\n", strings.Join(keySuggestions, ", "))
		}
	}
	return nil
}

func entriesEdit(cmd *cobra.Command, args []string) error {
	out := newOutputFormatter(cmd)
	id, err := parseEntryID(args[0])
	if err != nil {
		return out.Error("Invalid entry", err)
	}

	env, err := openEnv(cmd)
	if err != nil {
		return out.Error("Failed to open instance", err)
	}
	defer env.Close()

	ctx := commandContext(cmd)
	entry, err := env.entries.Get(ctx, id)
	if err != nil {
		return out.Error("Failed to load entry", err)
	}

	flags := cmd.Flags()
	changed := false
	if flags.Changed("key") {
		entry.Key, _ = flags.GetString("key")
		if err := validate.SettingKey(strings.TrimSpace(entry.Key)); err != nil {
			return out.Error("Invalid entry", err)
		}
		changed = true
	}
	if flags.Changed("launch") {
		entry.ValueOnLaunch, _ = flags.GetString("launch")
		changed = true
	}
	if flags.Changed("revert") {
		entry.ValueOnRevert, _ = flags.GetString("revert")
		changed = true
	}
	if flags.Changed("label") {
		entry.Label, _ = flags.GetString("label")
		changed = true
	}
	if !changed {
		return out.Error("Nothing to change", errors.New("pass at least one of --key, --launch, --revert, --label"))
	}

	updated, err := env.entries.Update(ctx, entry)
	if err != nil {
		return out.Error("Failed to update entry", err)
	}
	if out.jsonMode {
		return out.Print(map[string]any{"entry": updated})
	}
	fmt.Printf("Updated entry %d: %s/%s = %s (revert %s)\n",
		updated.ID, updated.Scope, updated.Key, updated.ValueOnLaunch, updated.ValueOnRevert)
	return nil
}

func entriesRemove(cmd *cobra.Command, args []string) error {
	out := newOutputFormatter(cmd)
	id, err := parseEntryID(args[0])
	if err != nil {
		return out.Error("Invalid entry", err)
	}

	env, err := openEnv(cmd)
	if err != nil {
		return out.Error("Failed to open instance", err)
	}
	defer env.Close()

	if err := env.entries.Delete(commandContext(cmd), id); err != nil {
		return out.Error("Failed to delete entry", err)
	}
	return out.Success(fmt.Sprintf("Deleted entry %d", id), map[string]any{"id": id})
}

func entriesToggle(cmd *cobra.Command, args []string) error {
	out := newOutputFormatter(cmd)
	id, err := parseEntryID(args[0])
	if err != nil {
		return out.Error("Invalid entry", err)
	}

	env, err := openEnv(cmd)
	if err != nil {
		return out.Error("Failed to open instance", err)
	}
	defer env.Close()

	ctx := commandContext(cmd)
	var enabled bool
	switch on, off := cmd.Flags().Changed("on"), cmd.Flags().Changed("off"); {
	case on:
		enabled, _ = cmd.Flags().GetBool("on")
	case off:
		disabled, _ := cmd.Flags().GetBool("off")
		enabled = !disabled
	default:
		current, err := env.entries.Get(ctx, id)
		if err != nil {
			return out.Error("Failed to load entry", err)
		}
		enabled = !current.Enabled
	}

	entry, err := env.entries.Toggle(ctx, id, enabled)
	if err != nil {
		return out.Error("Failed to toggle entry", err)
	}
	return out.Success(fmt.Sprintf("Entry %d is now %s", entry.ID, enabledLabel(entry.Enabled)), map[string]any{
		"id":      entry.ID,
		"enabled": entry.Enabled,
	})
}
