package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/vitals/internal/core/eventbus"
	"github.com/colonyops/vitals/internal/core/logging"
	"github.com/colonyops/vitals/internal/core/notify"
	"github.com/colonyops/vitals/internal/vitals"
	"github.com/colonyops/vitals/pkg/iojson"
)

// listenSession is the part of vitals.Session the listen command needs.
type listenSession interface {
	OnChange(fn func()) func()
	OnConnectionFailed(fn func(eventbus.ConnectionFailedPayload)) eventbus.Subscription
	Notifications() []notify.Notification
	Start(ctx context.Context, sessionID string) error
}

var _ listenSession = (*vitals.Session)(nil)

type ListenCmd struct {
	flags *Flags
	json  bool
}

// NewListenCmd creates a new listen command
func NewListenCmd(flags *Flags) *ListenCmd {
	return &ListenCmd{flags: flags}
}

// Register adds the listen command to the application
func (cmd *ListenCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "listen",
		Usage:     "Print notifications for a session as they arrive",
		UsageText: "vitals listen --session ID [--json]",
		Description: `Connects to the session's push channel without the dashboard and prints
each new notification. Exits on interrupt, or with an error once
reconnecting gives up.`,
		Flags: []cli.Flag{
			sessionFlag(&cmd.flags.SessionID),
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print notifications as JSON lines",
				Destination: &cmd.json,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ListenCmd) run(ctx context.Context, c *cli.Command) error {
	sessionID := cmd.flags.SessionID
	if err := requireSession(sessionID); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialer, cleanup, err := openDialer(ctx, cmd.flags.Config)
	if err != nil {
		return err
	}
	defer cleanup()

	session := vitals.NewSession(cmd.flags.Config, dialer, vitals.WithLogger(log.Logger))
	defer session.Close()

	return cmd.listen(ctx, c.Root().Writer, session, sessionID)
}

// listen prints every notification not seen before until ctx ends or the
// connection gives up. Callbacks only signal; reads happen on this goroutine
// so the session loop is never blocked on output.
func (cmd *ListenCmd) listen(ctx context.Context, w io.Writer, s listenSession, sessionID string) error {
	changed := make(chan struct{}, 1)
	failed := make(chan eventbus.ConnectionFailedPayload, 1)

	unsubscribe := s.OnChange(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	s.OnConnectionFailed(func(p eventbus.ConnectionFailedPayload) {
		select {
		case failed <- p:
		default:
		}
	})

	ctx = logging.WithSessionID(ctx, sessionID)
	if err := s.Start(ctx, sessionID); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	log.Info().Ctx(ctx).Msg("listening")

	seen := make(map[string]struct{})
	for {
		select {
		case <-ctx.Done():
			log.Info().Ctx(ctx).Int("received", len(seen)).Msg("stopped listening")
			return nil
		case p := <-failed:
			return fmt.Errorf("connection failed after %d attempts: %w", p.Attempts, p.Err)
		case <-changed:
			for _, n := range s.Notifications() {
				if _, ok := seen[n.ID]; ok {
					continue
				}
				seen[n.ID] = struct{}{}
				if err := cmd.print(w, n); err != nil {
					return err
				}
			}
		}
	}
}

func (cmd *ListenCmd) print(w io.Writer, n notify.Notification) error {
	if cmd.json {
		return iojson.WriteLine(w, n)
	}

	_, err := fmt.Fprintf(w, "%s [%s] %s: %s\n", n.CreatedAt.Format("15:04:05"), n.Category, n.Title, n.Message)
	return err
}
