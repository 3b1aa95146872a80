package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/proteus/pkg/cli/config"
	"github.com/secmon-lab/proteus/pkg/domain/model"
	"github.com/secmon-lab/proteus/pkg/service/worker"
	"github.com/secmon-lab/proteus/pkg/usecase"
	"github.com/secmon-lab/proteus/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdTick() *cli.Command {
	var tickTimeout time.Duration
	var repoCfg config.Repository
	var slackCfg config.Slack
	var rotationCfg config.Rotation

	flags := []cli.Flag{
		&cli.DurationFlag{
			Name:        "tick-timeout",
			Usage:       "Deadline of the tick",
			Category:    "Rotation",
			Value:       worker.DefaultTickTimeout,
			Sources:     cli.EnvVars("PROTEUS_TICK_TIMEOUT"),
			Destination: &tickTimeout,
		},
	}
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, slackCfg.Flags()...)
	flags = append(flags, rotationCfg.Flags()...)

	return &cli.Command{
		Name:  "tick",
		Usage: "Run a single avatar rotation pass and exit",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logging.Default().Info("tick configuration",
				"repository", repoCfg,
				"rotation", rotationCfg,
				"tick_timeout", tickTimeout,
			)

			repo, err := repoCfg.Configure(ctx, nil)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			ucOpts, err := rotationCfg.Configure(ctx)
			if err != nil {
				return err
			}
			uc := usecase.New(repo, slackCfg.Configure(), ucOpts...)

			tickCtx, cancel := context.WithTimeout(ctx, tickTimeout)
			defer cancel()

			report, err := uc.Avatar.RunTick(tickCtx, time.Now())
			if err != nil {
				return goerr.Wrap(err, "tick failed")
			}

			printTickReport(writerOf(c), report)
			return nil
		},
	}
}

func printTickReport(w io.Writer, report *model.TickReport) {
	label := color.New(color.FgCyan).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()

	failed := fmt.Sprint(report.Failed)
	if report.Failed > 0 || report.PersistFailed > 0 {
		failed = bad(failed)
	}

	_, _ = fmt.Fprintf(w, "%s %s (%s)\n", label("tick"), report.TickID, report.Duration().Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  %-15s %d\n", "candidates", report.Candidates)
	_, _ = fmt.Fprintf(w, "  %-15s %d\n", "eligible", report.Eligible)
	_, _ = fmt.Fprintf(w, "  %-15s %d\n", "succeeded", report.Succeeded)
	_, _ = fmt.Fprintf(w, "  %-15s %s\n", "failed", failed)
	_, _ = fmt.Fprintf(w, "  %-15s %d\n", "persist failed", report.PersistFailed)
	_, _ = fmt.Fprintf(w, "  %-15s %d\n", "abandoned", report.Abandoned)
}
