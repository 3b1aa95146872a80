package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/proteus/pkg/cli/config"
	"github.com/secmon-lab/proteus/pkg/domain/model"
	"github.com/secmon-lab/proteus/pkg/usecase"
	"github.com/secmon-lab/proteus/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdUsers() *cli.Command {
	var repoCfg config.Repository

	return &cli.Command{
		Name:  "users",
		Usage: "Inspect and recover user records",
		Flags: repoCfg.Flags(),
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List every user with its cadence and next update window",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withUserUseCase(ctx, &repoCfg, func(uc *usecase.UserUseCase) error {
						users, err := uc.List(ctx)
						if err != nil {
							return err
						}
						printUsers(writerOf(c), users, model.DefaultFrequencyTable())
						return nil
					})
				},
			},
			cmdUsersReset(&repoCfg),
		},
	}
}

func cmdUsersReset(repoCfg *config.Repository) *cli.Command {
	var teamID, userID string

	return &cli.Command{
		Name:  "reset",
		Usage: "Clear the error state; a user whose window passed is rotated on the next tick",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "team",
				Usage:       "Slack team ID",
				Required:    true,
				Destination: &teamID,
			},
			&cli.StringFlag{
				Name:        "user",
				Usage:       "Slack user ID",
				Required:    true,
				Destination: &userID,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return withUserUseCase(ctx, repoCfg, func(uc *usecase.UserUseCase) error {
				key := model.UserKey{TeamID: model.SlackTeamID(teamID), UserID: model.SlackUserID(userID)}
				if _, err := uc.Reset(ctx, key); err != nil {
					return goerr.Wrap(err, "failed to reset user")
				}
				_, _ = fmt.Fprintf(writerOf(c), "%s %s\n", color.GreenString("reset"), key.String())
				return nil
			})
		},
	}
}

func withUserUseCase(ctx context.Context, repoCfg *config.Repository, fn func(uc *usecase.UserUseCase) error) error {
	repo, err := repoCfg.Configure(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to initialize repository")
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logging.Default().Error("failed to close repository", "error", err.Error())
		}
	}()

	return fn(usecase.NewUserUseCase(repo, nil))
}

func writerOf(c *cli.Command) io.Writer {
	if w := c.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func printUsers(w io.Writer, users []*model.User, table *model.FrequencyTable) {
	header := color.New(color.Bold).SprintfFunc()
	invalid := color.New(color.FgRed).SprintFunc()

	_, _ = fmt.Fprintln(w, header("%-24s %-7s %-12s %-20s %s", "KEY", "VALID", "CADENCE", "LAST CHANGE", "NEXT WINDOW"))
	for _, u := range users {
		valid := "yes"
		if !u.Valid {
			valid = invalid("no ")
		}

		last, next := "-", "now"
		if u.LastAvatarChange != nil {
			last = u.LastAvatarChange.UTC().Format(time.DateTime)
		}
		if start, end, ok := u.NextWindow(); ok {
			next = start.UTC().Format(time.DateTime) + " .. " + end.UTC().Format(time.DateTime)
		}
		if !u.Valid {
			next = "-"
		}

		cadence := table.Label(u.UpdateFrequencySeconds)
		if cadence == "" {
			cadence = fmt.Sprintf("%ds", u.UpdateFrequencySeconds)
		}

		_, _ = fmt.Fprintf(w, "%-24s %-7s %-12s %-20s %s\n", u.Key().String(), valid, cadence, last, next)
	}
	_, _ = fmt.Fprintf(w, "%d user(s)\n", len(users))
}
