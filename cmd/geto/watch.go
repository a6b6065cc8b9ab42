package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/geto-app/geto/internal/domain"
)

func newWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "watch <package>",
		Short:         "Print the profile of a package whenever it changes",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          watchEntries,
	}
	cmd.Flags().Duration("interval", time.Second, "Polling interval")
	return cmd
}

func watchEntries(cmd *cobra.Command, args []string) error {
	out := newOutputFormatter(cmd)
	pkg, err := packageArg(args)
	if err != nil {
		return out.Error("Invalid package", err)
	}
	interval, _ := cmd.Flags().GetDuration("interval")

	env, err := openEnv(cmd)
	if err != nil {
		return out.Error("Failed to open instance", err)
	}
	defer env.Close()

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	notifyStopSignals(sigCh)
	defer stopSignals(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	updates, err := env.entries.Watch(ctx, pkg, interval)
	if err != nil {
		return out.Error("Failed to watch entries", err)
	}
	if !out.jsonMode {
		fmt.Printf("Watching %s (Ctrl+C to stop)\n", pkg)
	}
	for entries := range updates {
		if err := printWatchUpdate(out, pkg, entries); err != nil {
			return out.Error("Failed to print update", err)
		}
	}
	return nil
}

func printWatchUpdate(out *OutputFormatter, pkg string, entries []domain.SettingEntry) error {
	if entries == nil {
		entries = []domain.SettingEntry{}
	}
	if out.jsonMode {
		line, err := json.Marshal(map[string]any{
			"package":   pkg,
			"entries":   entries,
			"timestamp": time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		fmt.Println(string(line))
		return nil
	}
	fmt.Printf("\n[%s] %d entries\n", time.Now().Format(time.TimeOnly), len(entries))
	if len(entries) > 0 {
		printEntryTable(os.Stdout, entries)
	}
	return nil
}
