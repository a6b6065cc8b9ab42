package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/geto-app/geto/internal/config"
	configstore "github.com/geto-app/geto/internal/config/store"
	"github.com/geto-app/geto/internal/procutil"
	daemonruntime "github.com/geto-app/geto/internal/runtime"
	"github.com/geto-app/geto/internal/server"
	getoversion "github.com/geto-app/geto/internal/version"
)

const (
	daemonBinary       = "getod"
	daemonStartTimeout = 5 * time.Second
	daemonStopTimeout  = 10 * time.Second
	healthTimeout      = 3 * time.Second
	pidPollInterval    = 100 * time.Millisecond
)

var errDaemonNotRunning = errors.New("daemon is not running")

func newDaemonCommand() *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:           "daemon",
		Short:         "Daemon management commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	daemonStartCmd := &cobra.Command{
		Use:           "start",
		Short:         "Start getod in the background",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          daemonStart,
	}
	daemonStartCmd.Flags().String("listen", "", "HTTP listen address (default: "+server.DefaultListen+")")
	daemonStartCmd.Flags().StringSlice("allow-origin", nil, "Additional browser origins allowed to call the API")
	daemonStartCmd.Flags().String("getod", "", "Path to the getod binary (default: next to geto, then PATH)")

	daemonStatusCmd := &cobra.Command{
		Use:           "status",
		Short:         "Get daemon status",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          daemonStatus,
	}

	daemonStopCmd := &cobra.Command{
		Use:           "stop",
		Short:         "Stop the daemon",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          daemonStop,
	}

	daemonCmd.AddCommand(daemonStartCmd, daemonStatusCmd, daemonStopCmd)
	return daemonCmd
}

// findDaemonBinary prefers a getod installed next to the running geto.
func findDaemonBinary(override string) (string, error) {
	if override = strings.TrimSpace(override); override != "" {
		return override, nil
	}
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), daemonBinary)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return exec.LookPath(daemonBinary)
}

func daemonStart(cmd *cobra.Command, _ []string) error {
	out := newOutputFormatter(cmd)
	instance, err := instanceName(cmd)
	if err != nil {
		return out.Error("Invalid instance", err)
	}
	pidFile := config.GetInstancePaths(instance).PIDFile
	if pid, running := daemonruntime.RunningPID(pidFile); running {
		return out.Error("Daemon already running", fmt.Errorf("PID %d", pid))
	}

	override, _ := cmd.Flags().GetString("getod")
	binary, err := findDaemonBinary(override)
	if err != nil {
		return out.Error("Failed to locate getod", err)
	}

	args := []string{"--instance", instance}
	if v, _ := cmd.Flags().GetString("adb"); v != "" {
		args = append(args, "--adb", v)
	}
	if v, _ := cmd.Flags().GetString("serial"); v != "" {
		args = append(args, "--serial", v)
	}
	if v, _ := cmd.Flags().GetString("listen"); v != "" {
		args = append(args, "--listen", v)
	}
	origins, _ := cmd.Flags().GetStringSlice("allow-origin")
	for _, origin := range origins {
		args = append(args, "--allow-origin", origin)
	}

	// getod writes its own log file; stdio stays detached.
	proc := exec.Command(binary, args...)
	detach(proc)
	if err := proc.Start(); err != nil {
		return out.Error("Failed to start daemon", err)
	}

	exited := make(chan error, 1)
	go func() { exited <- proc.Wait() }()

	deadline := time.After(daemonStartTimeout)
	for {
		if pid, running := daemonruntime.RunningPID(pidFile); running && pid == proc.Process.Pid {
			return out.Success(fmt.Sprintf("Daemon started (PID %d)", pid), map[string]any{
				"pid":      pid,
				"instance": instance,
			})
		}
		select {
		case err := <-exited:
			if err == nil {
				err = errors.New("getod exited during startup")
			}
			logPath := filepath.Join(config.GetInstancePaths(instance).Logs, "daemon.log")
			return out.Error("Daemon failed to start (see "+logPath+")", err)
		case <-deadline:
			_ = procutil.GracefulTerminate(proc.Process)
			return out.Error("Daemon did not come up", fmt.Errorf("no pid file after %s", daemonStartTimeout))
		case <-time.After(pidPollInterval):
		}
	}
}

func daemonStop(cmd *cobra.Command, _ []string) error {
	out := newOutputFormatter(cmd)
	instance, err := instanceName(cmd)
	if err != nil {
		return out.Error("Invalid instance", err)
	}

	pid, running := daemonruntime.RunningPID(config.GetInstancePaths(instance).PIDFile)
	if !running {
		return out.Error("Failed to stop daemon", errDaemonNotRunning)
	}
	if err := procutil.TerminateByPID(pid); err != nil {
		return out.Error("Failed to signal daemon", err)
	}
	if !procutil.WaitForExit(pid, daemonStopTimeout, pidPollInterval) {
		return out.Error("Daemon did not stop", fmt.Errorf("PID %d still running after %s", pid, daemonStopTimeout))
	}
	return out.Success("Daemon stopped", map[string]any{
		"pid":    pid,
		"method": "signal",
	})
}

// daemonInfo describes a running daemon.
type daemonInfo struct {
	PID     int                   `json:"pid"`
	Address string                `json:"address,omitempty"`
	Health  server.HealthResponse `json:"health"`
}

// fetchDaemonInfo locates the daemon of the selected instance through its pid
// file and queries its health endpoint.
func fetchDaemonInfo(ctx context.Context, cmd *cobra.Command) (daemonInfo, error) {
	instance, err := instanceName(cmd)
	if err != nil {
		return daemonInfo{}, err
	}
	pid, running := daemonruntime.RunningPID(config.GetInstancePaths(instance).PIDFile)
	if !running {
		return daemonInfo{}, errDaemonNotRunning
	}
	info := daemonInfo{PID: pid}

	store, err := configstore.Open(configstore.Options{InstanceName: instance})
	if err != nil {
		return info, fmt.Errorf("open config store: %w", err)
	}
	addr, err := store.DaemonAddress(ctx)
	store.Close()
	if err != nil {
		return info, err
	}
	if addr == "" {
		return info, errors.New("daemon has not recorded its address yet")
	}
	info.Address = addr

	health, err := fetchHealth(ctx, "http://"+addr)
	if err != nil {
		return info, err
	}
	info.Health = health
	return info, nil
}

func fetchHealth(ctx context.Context, baseURL string) (server.HealthResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/healthz", nil)
	if err != nil {
		return server.HealthResponse{}, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return server.HealthResponse{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return server.HealthResponse{}, fmt.Errorf("health check returned %s", resp.Status)
	}
	var health server.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return server.HealthResponse{}, fmt.Errorf("decode health response: %w", err)
	}
	return health, nil
}

func daemonStatus(cmd *cobra.Command, _ []string) error {
	out := newOutputFormatter(cmd)
	info, err := fetchDaemonInfo(commandContext(cmd), cmd)
	if errors.Is(err, errDaemonNotRunning) {
		if out.jsonMode {
			return out.Print(map[string]any{"running": false})
		}
		fmt.Println("Daemon is not running.")
		return nil
	}
	if err != nil {
		return out.Error("Failed to fetch daemon status", err)
	}

	warning := getoversion.CheckVersionMismatch(info.Health.Version)
	if out.jsonMode {
		data := map[string]any{
			"running":        true,
			"pid":            info.PID,
			"address":        info.Address,
			"version":        info.Health.Version,
			"instance":       info.Health.Instance,
			"uptime_seconds": info.Health.UptimeSeconds,
		}
		if warning != "" {
			data["mismatch"] = true
			data["warning"] = warning
		}
		return out.Print(data)
	}

	fmt.Println("Daemon Status:")
	fmt.Printf("  PID: %d\n", info.PID)
	fmt.Printf("  Address: http://%s\n", info.Address)
	fmt.Printf("  Version: %s\n", getoversion.FormatVersion(info.Health.Version))
	fmt.Printf("  Instance: %s\n", info.Health.Instance)
	fmt.Printf("  Uptime: %s\n", time.Duration(info.Health.UptimeSeconds*float64(time.Second)).Round(time.Second))
	if warning != "" {
		fmt.Println(warning)
	}
	return nil
}
