package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/geto-app/geto/internal/config"
	getoversion "github.com/geto-app/geto/internal/version"
)

// OutputFormatter handles output in JSON or human-readable format
type OutputFormatter struct {
	jsonMode bool
}

// newOutputFormatter creates a new formatter based on the command's --json flag
func newOutputFormatter(cmd *cobra.Command) *OutputFormatter {
	jsonMode, _ := cmd.Flags().GetBool("json")
	return &OutputFormatter{jsonMode: jsonMode}
}

// Print outputs data in the appropriate format
func (f *OutputFormatter) Print(data interface{}) error {
	if s, ok := data.(string); ok && !f.jsonMode {
		fmt.Println(s)
		return nil
	}
	jsonBytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(jsonBytes))
	return nil
}

// Success outputs a success message
func (f *OutputFormatter) Success(message string, data map[string]interface{}) error {
	if f.jsonMode {
		output := map[string]interface{}{
			"success": true,
			"message": message,
		}
		for k, v := range data {
			output[k] = v
		}
		return f.Print(output)
	}
	fmt.Println(message)
	return nil
}

// Error outputs an error message
func (f *OutputFormatter) Error(message string, err error) error {
	if f.jsonMode {
		output := map[string]interface{}{
			"success": false,
			"error":   message,
		}
		if err != nil {
			output["details"] = err.Error()
		}
		jsonBytes, _ := json.MarshalIndent(output, "", "  ")
		fmt.Fprintln(os.Stderr, string(jsonBytes))
	} else {
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", message, err)
		} else {
			fmt.Fprintln(os.Stderr, message)
		}
	}
	if err == nil {
		return reportedError{errors.New(message)}
	}
	return reportedError{fmt.Errorf("%s: %w", message, err)}
}

// reportedError marks errors the formatter already printed.
type reportedError struct {
	err error
}

func (e reportedError) Error() string { return e.err.Error() }

func (e reportedError) Unwrap() error { return e.err }

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "geto",
		Short: "Geto - per-app Android settings profiles",
		Long: `Geto stores sets of Android system, secure and global settings per app.
Applying a profile writes the launch values through adb and starts the app;
reverting writes the revert values back.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.Version = getoversion.String()
	rootCmd.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")

	flags := rootCmd.PersistentFlags()
	flags.Bool("json", false, "Output in JSON format")
	flags.String("instance", config.DefaultInstance, "Instance name")
	flags.String("adb", "", "Path to the adb binary (default: $GETO_ADB, Android SDK, PATH)")
	flags.String("serial", "", "Device serial passed to adb -s")

	rootCmd.AddCommand(
		newEntriesCommand(),
		newApplyCommand(),
		newRevertCommand(),
		newLaunchCommand(),
		newPackagesCommand(),
		newDevicesCommand(),
		newPrefsCommand(),
		newCleanupCommand(),
		newTemplatesCommand(),
		newExportCommand(),
		newImportCommand(),
		newWatchCommand(),
		newPermissionCommand(),
		newDaemonCommand(),
		newVersionCommand(),
	)
	return rootCmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		var reported reportedError
		if !errors.As(err, &reported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
