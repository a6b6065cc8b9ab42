package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/geto-app/geto/internal/profile"
	"github.com/geto-app/geto/internal/validate"
)

func newExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "export <package>",
		Short:         "Write the profile of a package as YAML",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          exportProfile,
	}
	cmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")
	return cmd
}

func newImportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Add the entries of an exported profile",
		Long: `Read a profile written by "geto export" ("-" reads stdin) and add its
entries. Entries equal to one already stored for the package are skipped.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          importProfile,
	}
	cmd.Flags().String("package", "", "Import into this package instead of the one named in the file")
	return cmd
}

func exportProfile(cmd *cobra.Command, args []string) error {
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
	if len(entries) == 0 {
		return out.Error("Nothing to export", fmt.Errorf("no entries for %s", pkg))
	}
	doc := profile.FromEntries(pkg, entries)

	path, _ := cmd.Flags().GetString("output")
	path = strings.TrimSpace(path)
	if path == "" || path == "-" {
		return profile.Encode(os.Stdout, doc)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return out.Error("Failed to create output directory", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return out.Error("Failed to create output file", err)
	}
	if err := profile.Encode(f, doc); err != nil {
		f.Close()
		return out.Error("Failed to write profile", err)
	}
	if err := f.Close(); err != nil {
		return out.Error("Failed to write profile", err)
	}
	return out.Success(fmt.Sprintf("Exported %d entries of %s to %s", len(entries), pkg, path), map[string]any{
		"package": pkg,
		"entries": len(entries),
		"path":    path,
	})
}

func importProfile(cmd *cobra.Command, args []string) error {
	out := newOutputFormatter(cmd)

	var r io.Reader = stdin
	if path := strings.TrimSpace(args[0]); path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return out.Error("Failed to open profile", err)
		}
		defer f.Close()
		r = f
	}

	doc, err := profile.Decode(r)
	if err != nil {
		return out.Error("Failed to read profile", err)
	}

	target, _ := cmd.Flags().GetString("package")
	entries := doc.SettingEntries(target)
	if len(entries) == 0 {
		return out.Error("Nothing to import", fmt.Errorf("profile has no entries"))
	}
	pkg := entries[0].Package
	if err := validate.PackageName(pkg); err != nil {
		return out.Error("Invalid package", err)
	}
	for _, e := range entries {
		if err := validate.SettingKey(e.Key); err != nil {
			return out.Error("Invalid profile", err)
		}
	}

	env, err := openEnv(cmd)
	if err != nil {
		return out.Error("Failed to open instance", err)
	}
	defer env.Close()

	added, err := env.entries.Import(commandContext(cmd), entries)
	if err != nil {
		return out.Error("Failed to import profile", err)
	}
	return out.Success(
		fmt.Sprintf("Imported %d of %d entries into %s", added, len(entries), pkg),
		map[string]any{"package": pkg, "added": added, "skipped": len(entries) - added},
	)
}
