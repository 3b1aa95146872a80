package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/proteus/pkg/cli/config"
	"github.com/secmon-lab/proteus/pkg/domain/interfaces"
	"github.com/secmon-lab/proteus/pkg/repository/memory"
	"github.com/secmon-lab/proteus/pkg/usecase"
	"github.com/secmon-lab/proteus/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdValidate() *cli.Command {
	var checkDB bool
	var repoCfg config.Repository
	var rotationCfg config.Rotation

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "check-db",
			Usage:       "Also check stored users for consistency",
			Sources:     cli.EnvVars("PROTEUS_VALIDATE_CHECK_DB"),
			Destination: &checkDB,
		},
	}
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, rotationCfg.Flags()...)

	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate view templates and optionally check DB consistency",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()

			ucOpts, err := rotationCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "configuration validation failed")
			}

			var repo interfaces.Repository = memory.New()
			if checkDB {
				repo, err = repoCfg.Configure(ctx, nil)
				if err != nil {
					return goerr.Wrap(err, "failed to initialize repository")
				}
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logger.Error("failed to close repository", "error", err.Error())
				}
			}()

			uc := usecase.New(repo, nil, ucOpts...)

			if err := uc.ValidateTemplates(); err != nil {
				return goerr.Wrap(err, "template validation failed")
			}
			logger.Info("Template validation passed", "view_config", rotationCfg)

			if !checkDB {
				logger.Info("DB consistency check skipped")
				return nil
			}

			result, err := uc.ValidateDB(ctx, time.Now())
			if err != nil {
				return goerr.Wrap(err, "DB consistency check failed")
			}

			if result.HasIssues() {
				for _, issue := range result.Issues {
					logger.Warn("DB consistency issue found",
						"key", issue.Key,
						"message", issue.Message,
						"expected", issue.Expected,
						"actual", issue.Actual,
					)
				}

				return fmt.Errorf("DB consistency check found %d issue(s) in %d user(s)", len(result.Issues), result.Checked)
			}

			logger.Info("DB consistency check passed", "checked", result.Checked)
			return nil
		},
	}
}
