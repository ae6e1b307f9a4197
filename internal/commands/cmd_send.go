package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/vitals/internal/core/config"
	"github.com/colonyops/vitals/internal/core/connection"
	"github.com/colonyops/vitals/internal/core/eventbus"
	"github.com/colonyops/vitals/internal/core/logging"
	"github.com/colonyops/vitals/internal/core/styles"
	"github.com/colonyops/vitals/internal/transport/redispubsub"
	"github.com/colonyops/vitals/pkg/iojson"
)

// envelopePublisher delivers an envelope to a session's subscribers.
type envelopePublisher interface {
	Publish(ctx context.Context, sessionID string, env connection.Envelope) (int64, error)
}

type publisherFactory func(ctx context.Context, cfg *config.Config) (envelopePublisher, func(), error)

func redisPublisher(ctx context.Context, cfg *config.Config) (envelopePublisher, func(), error) {
	client, err := redispubsub.Open(ctx, cfg.Transport.Redis.URL)
	if err != nil {
		return nil, func() {}, fmt.Errorf("open redis: %w", err)
	}
	return redispubsub.NewPublisher(client, cfg.Transport.Redis.ChannelPrefix), func() { _ = client.Close() }, nil
}

type SendCmd struct {
	flags *Flags

	// Command-specific flags
	eventType   string
	title       string
	description string
	category    string
	at          string
	json        bool

	file         iojson.FileReader[connection.Envelope]
	newPublisher publisherFactory
	interactive  func() bool
}

// NewSendCmd creates a new send command
func NewSendCmd(flags *Flags) *SendCmd {
	cmd := &SendCmd{
		flags:        flags,
		newPublisher: redisPublisher,
	}
	cmd.interactive = func() bool { return !cmd.file.Provided() }
	return cmd
}

// Register adds the send command to the application
func (cmd *SendCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "send",
		Usage:     "Publish a notification event to a session over Redis",
		UsageText: "vitals send --session ID [--type T] [--title TITLE] [-f event.json]",
		Description: `Publishes an event envelope to the session's Redis channel.

new_insight and new_reminder events can be built from flags. Any other event
is read as a JSON envelope ({"type": ..., "payload": ...}) from -f or stdin.
When required fields are missing and stdin is a terminal, a form prompts
for them.`,
		Flags: []cli.Flag{
			sessionFlag(&cmd.flags.SessionID),
			&cli.StringFlag{
				Name:        "type",
				Aliases:     []string{"t"},
				Usage:       "event type (new_insight, new_reminder, ...)",
				Destination: &cmd.eventType,
			},
			&cli.StringFlag{
				Name:        "title",
				Usage:       "notification title",
				Destination: &cmd.title,
			},
			&cli.StringFlag{
				Name:        "description",
				Aliases:     []string{"d"},
				Usage:       "insight description",
				Destination: &cmd.description,
			},
			&cli.StringFlag{
				Name:        "category",
				Usage:       "reminder category",
				Destination: &cmd.category,
			},
			&cli.StringFlag{
				Name:        "time",
				Usage:       "reminder time (e.g. 08:00)",
				Destination: &cmd.at,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print the publish result as JSON",
				Destination: &cmd.json,
			},
			cmd.file.Flag(),
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *SendCmd) run(ctx context.Context, c *cli.Command) error {
	sessionID := cmd.flags.SessionID
	if err := requireSession(sessionID); err != nil {
		return err
	}

	env, err := cmd.envelope(c)
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		return err
	}

	pub, cleanup, err := cmd.newPublisher(ctx, cmd.flags.Config)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx = logging.WithEventType(logging.WithSessionID(ctx, sessionID), env.Type)

	receivers, err := pub.Publish(ctx, sessionID, env)
	if err != nil {
		return err
	}
	log.Info().Ctx(ctx).Int64("receivers", receivers).Msg("event published")

	w := c.Root().Writer
	if cmd.json {
		return iojson.WriteWith(w, c.Root().ErrWriter, struct {
			SessionID string `json:"session_id"`
			Type      string `json:"type"`
			Receivers int64  `json:"receivers"`
		}{sessionID, env.Type, receivers})
	}

	_, err = fmt.Fprintf(w, "published %s to session %s (%d receivers)\n", env.Type, sessionID, receivers)
	return err
}

// envelope resolves the event to send from flags, a file or stdin, or the
// interactive form, in that order.
func (cmd *SendCmd) envelope(c *cli.Command) (connection.Envelope, error) {
	if c.IsSet("file") || (cmd.eventType != "" && !buildable(cmd.eventType)) {
		return cmd.readEnvelope()
	}

	if !cmd.complete() {
		if !cmd.interactive() {
			return cmd.readEnvelope()
		}
		if err := cmd.runForm(); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return connection.Envelope{}, err
			}
			return connection.Envelope{}, fmt.Errorf("form: %w", err)
		}
	}

	return buildEnvelope(cmd.eventType, cmd.title, cmd.description, cmd.category, cmd.at)
}

func (cmd *SendCmd) readEnvelope() (connection.Envelope, error) {
	env, err := cmd.file.Read()
	if err != nil {
		return connection.Envelope{}, err
	}
	if cmd.eventType != "" {
		env.Type = cmd.eventType
	}
	if env.Type == "" {
		return connection.Envelope{}, errors.New("envelope type is required; set \"type\" or pass --type")
	}
	return env, nil
}

func (cmd *SendCmd) complete() bool {
	return buildable(cmd.eventType) && strings.TrimSpace(cmd.title) != ""
}

func buildable(eventType string) bool {
	switch eventbus.Event(eventType) {
	case eventbus.EventNewInsight, eventbus.EventNewReminder:
		return true
	}
	return false
}

// buildEnvelope encodes a single insight or reminder from its fields.
func buildEnvelope(eventType, title, description, category, at string) (connection.Envelope, error) {
	var payload any
	switch eventbus.Event(eventType) {
	case eventbus.EventNewInsight:
		payload = eventbus.Insight{Title: title, Description: description}
	case eventbus.EventNewReminder:
		payload = eventbus.Reminder{Title: title, Category: category, Time: at}
	default:
		return connection.Envelope{}, fmt.Errorf("cannot build %q from flags; use -f with a JSON envelope", eventType)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return connection.Envelope{}, fmt.Errorf("encode payload: %w", err)
	}
	return connection.Envelope{Type: eventType, Payload: data}, nil
}

func (cmd *SendCmd) runForm() error {
	if cmd.eventType == "" {
		cmd.eventType = string(eventbus.EventNewInsight)
	}
	isReminder := func() bool { return cmd.eventType == string(eventbus.EventNewReminder) }

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Event").
				Options(
					huh.NewOption("Insight", string(eventbus.EventNewInsight)),
					huh.NewOption("Reminder", string(eventbus.EventNewReminder)),
				).
				Value(&cmd.eventType),
			huh.NewInput().
				Title("Title").
				Validate(validateTitle).
				Value(&cmd.title),
		),
		huh.NewGroup(
			huh.NewText().
				Title("Description").
				Description("Markdown is rendered in the dashboard").
				Value(&cmd.description),
		).WithHideFunc(isReminder),
		huh.NewGroup(
			huh.NewInput().
				Title("Category").
				Placeholder("medication").
				Value(&cmd.category),
			huh.NewInput().
				Title("Time").
				Placeholder("08:00").
				Value(&cmd.at),
		).WithHideFunc(func() bool { return !isReminder() }),
	).WithTheme(styles.FormTheme()).Run()
}

func validateTitle(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("title is required")
	}
	return nil
}
