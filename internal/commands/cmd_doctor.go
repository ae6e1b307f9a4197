package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/vitals/internal/core/doctor"
	"github.com/colonyops/vitals/internal/core/styles"
	"github.com/colonyops/vitals/pkg/iojson"
)

type DoctorCmd struct {
	flags   *Flags
	format  string
	timeout time.Duration
}

func NewDoctorCmd(flags *Flags) *DoctorCmd {
	return &DoctorCmd{flags: flags}
}

func (cmd *DoctorCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "doctor",
		Usage:       "Run health checks on your vitals setup",
		UsageText:   "vitals doctor [options]",
		Description: "Runs diagnostic checks on configuration, the data directory, and push channel reachability.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (text, json)",
				Value:       "text",
				Destination: &cmd.format,
			},
			&cli.DurationFlag{
				Name:        "timeout",
				Usage:       "how long to wait for the push channel",
				Value:       doctor.DefaultDialTimeout,
				Destination: &cmd.timeout,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *DoctorCmd) run(ctx context.Context, c *cli.Command) error {
	cfg := cmd.flags.Config
	checks := []doctor.Check{
		doctor.NewConfigCheck(cfg, cmd.flags.ConfigPath),
		doctor.NewDataDirCheck(cfg.DataDir),
	}

	dialer, cleanup, err := openDialer(ctx, cfg)
	defer cleanup()
	if err != nil {
		checks = append(checks, failedCheck{name: "Transport", label: string(cfg.Transport.Kind), err: err})
	} else {
		checks = append(checks, doctor.NewTransportCheck(string(cfg.Transport.Kind), dialer, "doctor", cmd.timeout))
	}

	results := doctor.RunAll(ctx, checks)
	_, _, failed := doctor.Summary(results)

	w := c.Root().Writer
	if cmd.format == "json" {
		err = cmd.outputJSON(w, c.Root().ErrWriter, results)
	} else {
		err = cmd.outputText(w, results)
	}
	if err != nil {
		return err
	}

	if failed > 0 {
		return cli.Exit("", 1)
	}
	return nil
}

// failedCheck reports a check that could not be set up.
type failedCheck struct {
	name  string
	label string
	err   error
}

func (f failedCheck) Name() string { return f.name }

func (f failedCheck) Run(context.Context) doctor.Result {
	return doctor.Result{
		Name:  f.name,
		Items: []doctor.CheckItem{{Label: f.label, Status: doctor.StatusFail, Detail: f.err.Error()}},
	}
}

type summaryJSON struct {
	Passed int `json:"passed"`
	Warned int `json:"warned"`
	Failed int `json:"failed"`
}

func (cmd *DoctorCmd) outputJSON(w, ew io.Writer, results []doctor.Result) error {
	passed, warned, failed := doctor.Summary(results)

	out := struct {
		Healthy bool            `json:"healthy"`
		Summary summaryJSON     `json:"summary"`
		Checks  []doctor.Result `json:"checks"`
	}{
		Healthy: failed == 0,
		Summary: summaryJSON{Passed: passed, Warned: warned, Failed: failed},
		Checks:  results,
	}

	return iojson.WriteWith(w, ew, out)
}

func (cmd *DoctorCmd) outputText(w io.Writer, results []doctor.Result) error {
	divider := styles.DividerStyle.Render(strings.Repeat("─", 40))

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, styles.CommandHeaderStyle.Render("Vitals Doctor"))
	_, _ = fmt.Fprintln(w, divider)
	_, _ = fmt.Fprintln(w)

	for _, result := range results {
		_, _ = fmt.Fprintln(w, styles.CommandStyle.Bold(true).Render(result.Name))

		for _, item := range result.Items {
			var detail string
			if item.Detail != "" {
				detail = " " + styles.MutedStyle.Render(item.Detail)
			}

			_, _ = fmt.Fprintf(w, "  %s %s%s\n", statusIcon(item.Status), item.Label, detail)
		}

		_, _ = fmt.Fprintln(w)
	}

	passed, warned, failed := doctor.Summary(results)
	_, err := fmt.Fprintf(w, "%s  %s  %s\n",
		styles.StatusStyle(string(doctor.StatusPass)).Render(fmt.Sprintf("%d passed", passed)),
		styles.StatusStyle(string(doctor.StatusWarn)).Render(fmt.Sprintf("%d warnings", warned)),
		styles.StatusStyle(string(doctor.StatusFail)).Render(fmt.Sprintf("%d failed", failed)),
	)
	return err
}

func statusIcon(s doctor.Status) string {
	switch s {
	case doctor.StatusPass:
		return styles.StatusStyle(string(s)).Render("✔")
	case doctor.StatusWarn:
		return styles.StatusStyle(string(s)).Render("●")
	default:
		return styles.StatusStyle(string(s)).Render("✘")
	}
}
