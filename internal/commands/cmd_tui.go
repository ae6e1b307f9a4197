package commands

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/vitals/internal/core/eventbus"
	"github.com/colonyops/vitals/internal/tui"
	"github.com/colonyops/vitals/internal/vitals"
	"github.com/colonyops/vitals/pkg/utils"
)

type TuiCmd struct {
	flags *Flags
}

// NewTuiCmd creates a new tui command
func NewTuiCmd(flags *Flags) *TuiCmd {
	return &TuiCmd{flags: flags}
}

// Flags returns the TUI-specific flags for registration on the root command
func (cmd *TuiCmd) Flags() []cli.Flag {
	session := sessionFlag(&cmd.flags.SessionID)
	session.Local = true

	return []cli.Flag{
		session,
		&cli.IntFlag{
			Name:        "profiler-port",
			Usage:       "enable pprof and /debug/vitals on the specified local port (e.g., 6060)",
			Sources:     cli.EnvVars("VITALS_PROFILER_PORT"),
			Local:       true,
			Destination: &cmd.flags.ProfilerPort,
		},
	}
}

// Register adds the tui command to the application.
func (cmd *TuiCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "tui",
		Usage:     "Open the notification dashboard",
		UsageText: "vitals tui --session ID",
		Flags:     cmd.Flags(),
		Action:    cmd.run,
	})
	return app
}

// Run executes the TUI. Exported for use as default command.
func (cmd *TuiCmd) Run(ctx context.Context, c *cli.Command) error {
	return cmd.run(ctx, c)
}

func (cmd *TuiCmd) run(ctx context.Context, c *cli.Command) error {
	sessionID := cmd.flags.SessionID
	if err := requireSession(sessionID); err != nil {
		return err
	}

	dialer, cleanup, err := openDialer(ctx, cmd.flags.Config)
	if err != nil {
		return err
	}
	defer cleanup()

	session := vitals.NewSession(cmd.flags.Config, dialer, vitals.WithLogger(log.Logger))
	defer session.Close()

	// Build the model before Start so no change is missed.
	model := tui.New(session, sessionID)

	notices := &utils.DeferredWriter{}
	session.OnConnectionFailed(func(p eventbus.ConnectionFailedPayload) {
		_, _ = fmt.Fprintf(notices, "connection to session %s failed after %d attempts: %v\n", p.SessionID, p.Attempts, p.Err)
	})

	stopProfiler, err := startProfiler(ctx, cmd.flags.ProfilerPort, sessionID, session)
	if err != nil {
		return err
	}
	defer stopProfiler()

	if err := session.Start(ctx, sessionID); err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, runErr := p.Run()

	// Shown once the alternate screen is gone.
	if err := notices.Flush(c.Root().ErrWriter); err != nil {
		log.Warn().Err(err).Msg("failed to write notices")
	}

	if runErr != nil {
		return fmt.Errorf("run tui: %w", runErr)
	}
	return nil
}
