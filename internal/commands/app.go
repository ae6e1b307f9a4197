package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/vitals/internal/core/config"
	"github.com/colonyops/vitals/internal/core/styles"
	"github.com/colonyops/vitals/pkg/logutils"
)

// NewApp builds the root command with every subcommand registered. The
// Before hook fills flags.Config; the docs generator uses the same tree.
func NewApp(flags *Flags, version string) *cli.Command {
	var logCloser func()

	app := &cli.Command{
		Name:      "vitals",
		Usage:     "Real-time health notifications in your terminal",
		UsageText: "vitals [global options] command [command options]",
		Description: `Vitals subscribes to a session's push channel and turns insight and
reminder events into notifications, shown as short-lived toasts and kept
in a read/unread history.

Run 'vitals --session ID' to open the dashboard.
Run 'vitals listen --session ID' to print notifications without the dashboard.`,
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (trace, debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("VITALS_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to <data-dir>/vitals.log)",
				Sources:     cli.EnvVars("VITALS_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("VITALS_CONFIG"),
				Value:       DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("VITALS_DATA_DIR"),
				Value:       DefaultDataDir(),
				Destination: &flags.DataDir,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			// Always log to a file; the dashboard owns the terminal.
			logFile := flags.LogFile
			if logFile == "" {
				logFile = filepath.Join(flags.DataDir, "vitals.log")
			}

			logger, closer, err := logutils.New(flags.LogLevel, logFile)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger
			logCloser = closer

			cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			for _, w := range cfg.Warnings() {
				log.Warn().Str("item", w.Item).Msg(w.Message)
			}

			// Apply configured theme (validation ensures name is valid)
			palette, _ := styles.GetPalette(cfg.TUI.Theme)
			styles.SetTheme(palette)

			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	tuiCmd := NewTuiCmd(flags)

	app = tuiCmd.Register(app)
	app = NewListenCmd(flags).Register(app)
	app = NewSendCmd(flags).Register(app)
	app = NewConfigValidateCmd(flags).Register(app)
	app = NewDoctorCmd(flags).Register(app)

	// Register TUI flags on root command
	app.Flags = append(app.Flags, tuiCmd.Flags()...)

	// Set TUI as default action when no subcommand is provided
	app.Action = func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() > 0 {
			return fmt.Errorf("unknown command %q. Run 'vitals --help' for usage", c.Args().First())
		}
		return tuiCmd.Run(ctx, c)
	}

	return app
}
