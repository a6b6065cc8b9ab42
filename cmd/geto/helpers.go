package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/geto-app/geto/internal/adb"
	configstore "github.com/geto-app/geto/internal/config/store"
	"github.com/geto-app/geto/internal/domain"
	"github.com/geto-app/geto/internal/usecase"
	"github.com/geto-app/geto/internal/validate"
)

// adbRunner overrides the process runner behind every adb client. Tests
// replace it with a fake device.
var adbRunner adb.Runner

// stdin is read by interactive prompts.
var stdin io.Reader = os.Stdin

// isTerminal reports whether stdout is attached to a terminal.
var isTerminal = func() bool {
	return terminal.IsTerminal(int(os.Stdout.Fd()))
}

// cliEnv bundles the store, device client and use cases for one command.
type cliEnv struct {
	store   *configstore.Store
	adb     *adb.Client
	entries *usecase.EntryService
	apply   *usecase.ApplySettings
	revert  *usecase.RevertSettings
	launch  *usecase.AutoLaunch
	sweep   *usecase.CleanupSweep
}

func instanceName(cmd *cobra.Command) (string, error) {
	instance, _ := cmd.Flags().GetString("instance")
	instance = strings.TrimSpace(instance)
	if !validate.Ident(instance) {
		return "", fmt.Errorf("invalid instance name %q", instance)
	}
	return instance, nil
}

func newADBClient(cmd *cobra.Command) *adb.Client {
	binary, _ := cmd.Flags().GetString("adb")
	serial, _ := cmd.Flags().GetString("serial")
	return adb.New(adb.Options{Binary: binary, Serial: serial, Runner: adbRunner})
}

// openEnv opens the instance store and wires the use cases against the
// selected device.
func openEnv(cmd *cobra.Command) (*cliEnv, error) {
	instance, err := instanceName(cmd)
	if err != nil {
		return nil, err
	}
	store, err := configstore.Open(configstore.Options{InstanceName: instance})
	if err != nil {
		return nil, fmt.Errorf("open config store: %w", err)
	}
	client := newADBClient(cmd)

	deps := usecase.Deps{
		Entries:     store,
		Preferences: store,
		Writer:      client,
		Packages:    client,
	}
	return &cliEnv{
		store:   store,
		adb:     client,
		entries: usecase.NewEntryService(store, client, client, nil),
		apply:   usecase.NewApplySettings(deps),
		revert:  usecase.NewRevertSettings(deps),
		launch:  usecase.NewAutoLaunch(deps),
		sweep:   usecase.NewCleanupSweep(store, client, nil, nil),
	}, nil
}

func (e *cliEnv) Close() {
	if e == nil || e.store == nil {
		return
	}
	_ = e.store.Close()
}

func packageArg(args []string) (string, error) {
	pkg := strings.TrimSpace(args[0])
	if err := validate.PackageName(pkg); err != nil {
		return "", err
	}
	return pkg, nil
}

func parseEntryID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid entry id %q", raw)
	}
	return id, nil
}

// confirm asks a yes/no question. Without a terminal on stdout it returns
// false so scripted runs must pass --yes explicitly.
func confirm(prompt string) (bool, error) {
	if !isTerminal() {
		return false, nil
	}
	fmt.Printf("%s [y/N]: ", prompt)
	answer, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func enabledLabel(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}

func printEntryTable(w io.Writer, entries []domain.SettingEntry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tENABLED\tSCOPE\tKEY\tLAUNCH\tREVERT\tLABEL")
	for _, e := range entries {
		key := e.Key
		if !e.SafeToWrite {
			key += " (new)"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, enabledLabel(e.Enabled), e.Scope, key, e.ValueOnLaunch, e.ValueOnRevert, e.DisplayLabel())
	}
	tw.Flush()
}

func printEntries(out *OutputFormatter, pkg string, entries []domain.SettingEntry) error {
	if entries == nil {
		entries = []domain.SettingEntry{}
	}
	if out.jsonMode {
		return out.Print(map[string]any{"package": pkg, "entries": entries})
	}
	if len(entries) == 0 {
		fmt.Printf("No settings configured for %s.\n", pkg)
		return nil
	}
	printEntryTable(os.Stdout, entries)
	return nil
}

func printList(out *OutputFormatter, key string, items []string, empty string) error {
	if items == nil {
		items = []string{}
	}
	if out.jsonMode {
		return out.Print(map[string]any{key: items})
	}
	if len(items) == 0 {
		fmt.Println(empty)
		return nil
	}
	for _, item := range items {
		fmt.Println(item)
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
