package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/geto-app/geto/internal/adb"
	"github.com/geto-app/geto/internal/config"
	configstore "github.com/geto-app/geto/internal/config/store"
	"github.com/geto-app/geto/internal/daemon"
	"github.com/geto-app/geto/internal/server"
	"github.com/geto-app/geto/internal/validate"
	getoversion "github.com/geto-app/geto/internal/version"
)

// stopTimeout bounds how long getod waits for services after a signal.
const stopTimeout = 10 * time.Second

type daemonFlags struct {
	instance string
	listen   string
	adbPath  string
	serial   string
	origins  []string
}

func main() {
	flags := &daemonFlags{}
	rootCmd := &cobra.Command{
		Use:           "getod",
		Short:         "Geto daemon - serves per-app settings profiles over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(flags)
		},
	}
	rootCmd.Version = getoversion.String()
	rootCmd.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")

	rootCmd.Flags().StringVar(&flags.instance, "instance", config.DefaultInstance, "Instance name")
	rootCmd.Flags().StringVar(&flags.listen, "listen", server.DefaultListen, "HTTP listen address")
	rootCmd.Flags().StringVar(&flags.adbPath, "adb", "", "Path to the adb binary (default: $GETO_ADB, Android SDK, PATH)")
	rootCmd.Flags().StringVar(&flags.serial, "serial", "", "Device serial passed to adb -s")
	rootCmd.Flags().StringSliceVar(&flags.origins, "allow-origin", nil, "Additional browser origins allowed to call the API")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runDaemon(flags *daemonFlags) error {
	instance := strings.TrimSpace(flags.instance)
	if !validate.Ident(instance) {
		return fmt.Errorf("invalid instance name %q", instance)
	}
	for _, origin := range flags.origins {
		if err := validate.Origin(origin); err != nil {
			return fmt.Errorf("invalid --allow-origin: %w", err)
		}
	}
	if err := setupLogging(instance); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialise logging: %v\n", err)
	}

	if pid, running := daemon.IsRunning(instance); running {
		return fmt.Errorf("daemon is already running (PID %d)", pid)
	}

	store, err := configstore.Open(configstore.Options{InstanceName: instance})
	if err != nil {
		return fmt.Errorf("failed to open config store: %w", err)
	}

	client := adb.New(adb.Options{Binary: flags.adbPath, Serial: flags.serial})
	d, err := daemon.New(daemon.Options{
		Store:          store,
		ADB:            client,
		Listen:         flags.listen,
		AllowedOrigins: flags.origins,
	})
	if err != nil {
		store.Close()
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- d.Start()
	}()

	log.Printf("Geto daemon started (PID: %d)", os.Getpid())

	select {
	case sig := <-sigChan:
		log.Printf("Received signal %s, shutting down...", sig)
		if err := d.Shutdown(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
		select {
		case err := <-errChan:
			if err != nil {
				log.Printf("Daemon error: %v", err)
				return err
			}
		case <-time.After(stopTimeout):
			return fmt.Errorf("daemon did not stop within %s", stopTimeout)
		}
	case err := <-errChan:
		if err != nil {
			log.Printf("Daemon error: %v", err)
			return err
		}
	}

	log.Println("Daemon stopped")
	return nil
}

func setupLogging(instance string) error {
	paths, err := config.EnsureInstanceDirs(instance)
	if err != nil {
		return fmt.Errorf("initialise instance directories: %w", err)
	}

	logPath := filepath.Join(paths.Logs, "daemon.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	multi := io.MultiWriter(os.Stdout, logFile)
	log.SetOutput(multi)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	log.Printf("=== Geto Daemon Starting (PID: %d) ===", os.Getpid())
	log.Printf("Log file: %s", logPath)
	return nil
}
