package main

import (
	"fmt"

	"github.com/spf13/cobra"

	getoversion "github.com/geto-app/geto/internal/version"
)

func newVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show client and daemon versions",
		Args:  cobra.NoArgs,
		RunE:  runVersion,
	}
	return cmd
}

func runVersion(cmd *cobra.Command, _ []string) error {
	out := newOutputFormatter(cmd)
	clientVersion := getoversion.String()

	info, daemonErr := fetchDaemonInfo(commandContext(cmd), cmd)
	daemonReachable := daemonErr == nil
	daemonVersion := info.Health.Version

	if out.jsonMode {
		data := map[string]any{
			"client": clientVersion,
		}
		if daemonReachable {
			if daemonVersion != "" {
				data["daemon"] = daemonVersion
			} else {
				data["daemon"] = "unknown"
			}
			if w := getoversion.CheckVersionMismatch(daemonVersion); w != "" {
				data["mismatch"] = true
				data["warning"] = w
			}
		} else {
			data["daemon"] = nil
			data["daemon_error"] = daemonErr.Error()
		}
		return out.Print(data)
	}

	fmt.Printf("Client: %s\n", getoversion.FormatVersion(clientVersion))
	if daemonReachable {
		if daemonVersion != "" {
			fmt.Printf("Daemon: %s\n", getoversion.FormatVersion(daemonVersion))
		} else {
			fmt.Println("Daemon: running (version unknown)")
		}
		if w := getoversion.CheckVersionMismatch(daemonVersion); w != "" {
			fmt.Println(w)
		}
	} else {
		fmt.Printf("Daemon: unavailable (%v)\n", daemonErr)
	}

	return nil
}
