package commands

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/vitals/internal/core/config"
)

type Flags struct {
	LogLevel     string
	LogFile      string
	ConfigPath   string
	DataDir      string
	SessionID    string
	ProfilerPort int

	// Config is loaded in the Before hook and available to all commands
	Config *config.Config
}

// DefaultConfigPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "vitals", "config.yaml")
}

// DefaultDataDir returns the default data directory using XDG_DATA_HOME.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "vitals")
}

// DefaultLogFile returns the default log file path using the system's state directory.
// On macOS: ~/Library/Logs/vitals/vitals.log
// On Linux: $XDG_STATE_HOME/vitals/vitals.log (defaults to ~/.local/state/vitals/vitals.log)
func DefaultLogFile() string {
	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome != "" {
		return filepath.Join(stateHome, "vitals", "vitals.log")
	}

	home, _ := os.UserHomeDir()

	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Logs", "vitals", "vitals.log")
	}

	return filepath.Join(home, ".local", "state", "vitals", "vitals.log")
}

// sessionFlag is shared by every command that attaches to a session.
func sessionFlag(dest *string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:        "session",
		Aliases:     []string{"s"},
		Usage:       "session id to subscribe to",
		Sources:     cli.EnvVars("VITALS_SESSION"),
		Destination: dest,
	}
}
