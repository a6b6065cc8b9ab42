package config

import (
	"os"
	"path/filepath"
)

const (
	DefaultInstance = "default"

	// HomeEnv overrides the Geto home directory (defaults to ~/.geto).
	HomeEnv = "GETO_HOME"
)

// InstancePaths contains all paths for a Geto instance.
type InstancePaths struct {
	Home       string // Instance home directory
	ConfigDB   string // SQLite store path
	PIDFile    string // Daemon pid file
	Logs       string // Logs directory
	ExportsDir string // Default directory for profile exports
}

// GetInstancePaths returns all paths for a given instance.
// Empty instance name defaults to "default".
func GetInstancePaths(instanceName string) InstancePaths {
	if instanceName == "" {
		instanceName = DefaultInstance
	}

	instanceDir := filepath.Join(GetGetoHome(), "instances", instanceName)

	return InstancePaths{
		Home:       instanceDir,
		ConfigDB:   filepath.Join(instanceDir, "geto.db"),
		PIDFile:    filepath.Join(instanceDir, "getod.pid"),
		Logs:       filepath.Join(instanceDir, "logs"),
		ExportsDir: filepath.Join(instanceDir, "exports"),
	}
}

// GetGetoHome returns the Geto home directory, honouring GETO_HOME.
func GetGetoHome() string {
	if override := os.Getenv(HomeEnv); override != "" {
		return ExpandPath(override)
	}
	userHome, _ := os.UserHomeDir()
	return filepath.Join(userHome, ".geto")
}

// ExpandPath expands ~ to the user home directory.
func ExpandPath(path string) string {
	if len(path) == 0 {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) == 1 {
			return home
		}
		if path[1] == '/' || path[1] == os.PathSeparator {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// EnsureInstanceDirs creates the directory structure for the given instance if it does not exist.
func EnsureInstanceDirs(instanceName string) (InstancePaths, error) {
	paths := GetInstancePaths(instanceName)

	for _, dir := range []string{paths.Home, paths.Logs, paths.ExportsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return paths, err
		}
	}

	return paths, nil
}
