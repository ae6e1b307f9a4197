package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hay-kot/criterio"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/vitals/internal/core/config"
	"github.com/colonyops/vitals/internal/core/styles"
	"github.com/colonyops/vitals/pkg/iojson"
)

type ConfigValidateCmd struct {
	flags  *Flags
	format string
}

// NewConfigValidateCmd creates a new config validate command.
func NewConfigValidateCmd(flags *Flags) *ConfigValidateCmd {
	return &ConfigValidateCmd{flags: flags}
}

// Register adds the config validate command to the application.
func (cmd *ConfigValidateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Commands: []*cli.Command{
			{
				Name:        "validate",
				Usage:       "Validate configuration file",
				UsageText:   "vitals config validate [options]",
				Description: "Validates the configuration file, checking transport URLs, event patterns, and file paths.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "format",
						Usage:       "output format (text, json)",
						Value:       "text",
						Destination: &cmd.format,
					},
				},
				Action: cmd.run,
			},
		},
	})

	return app
}

type validationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

type validationResult struct {
	Valid    bool                       `json:"valid"`
	Errors   []validationError          `json:"errors,omitempty"`
	Warnings []config.ValidationWarning `json:"warnings,omitempty"`
}

func (cmd *ConfigValidateCmd) run(_ context.Context, c *cli.Command) error {
	result := validateConfig(cmd.flags.Config, cmd.flags.ConfigPath)

	w := c.Root().Writer
	if cmd.format == "json" {
		if err := iojson.WriteWith(w, c.Root().ErrWriter, result); err != nil {
			return err
		}
	} else if err := outputText(w, result); err != nil {
		return err
	}

	if !result.Valid {
		return cli.Exit("", 1)
	}
	return nil
}

func validateConfig(cfg *config.Config, configPath string) validationResult {
	result := validationResult{Warnings: cfg.Warnings()}

	err := cfg.ValidateDeep(configPath)
	if err == nil {
		result.Valid = true
		return result
	}

	var fieldErrs criterio.FieldErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			result.Errors = append(result.Errors, validationError{Field: fe.Field, Message: fe.Err.Error()})
		}
		return result
	}

	result.Errors = append(result.Errors, validationError{Message: err.Error()})
	return result
}

func outputText(w io.Writer, result validationResult) error {
	var lines []string

	for _, warn := range result.Warnings {
		line := fmt.Sprintf("%s %s: %s", styles.IconWarning, warn.Category, warn.Message)
		if warn.Item != "" {
			line += fmt.Sprintf(" (%s)", warn.Item)
		}
		lines = append(lines, line)
	}

	for _, e := range result.Errors {
		if e.Field != "" {
			lines = append(lines, fmt.Sprintf("%s %s: %s", styles.IconError, e.Field, e.Message))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s %s", styles.IconError, e.Message))
	}

	if result.Valid {
		lines = append(lines, fmt.Sprintf("%s Configuration is valid", styles.IconSuccess))
	} else {
		lines = append(lines, fmt.Sprintf("%s %d error(s) found", styles.IconError, len(result.Errors)))
	}

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
