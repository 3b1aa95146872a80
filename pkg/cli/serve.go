package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/proteus/pkg/cli/config"
	httpctrl "github.com/secmon-lab/proteus/pkg/controller/http"
	"github.com/secmon-lab/proteus/pkg/service/metrics"
	"github.com/secmon-lab/proteus/pkg/service/worker"
	"github.com/secmon-lab/proteus/pkg/usecase"
	"github.com/secmon-lab/proteus/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var addr string
	var tickInterval time.Duration
	var tickTimeout time.Duration
	var runOnStart bool
	var disableWorker bool
	var repoCfg config.Repository
	var slackCfg config.Slack
	var rotationCfg config.Rotation

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("PROTEUS_ADDR"),
			Destination: &addr,
		},
		&cli.DurationFlag{
			Name:        "tick-interval",
			Usage:       "Interval of the avatar rotation tick, aligned to the interval boundary",
			Category:    "Rotation",
			Value:       worker.DefaultInterval,
			Sources:     cli.EnvVars("PROTEUS_TICK_INTERVAL"),
			Destination: &tickInterval,
		},
		&cli.DurationFlag{
			Name:        "tick-timeout",
			Usage:       "Deadline of a single tick",
			Category:    "Rotation",
			Value:       worker.DefaultTickTimeout,
			Sources:     cli.EnvVars("PROTEUS_TICK_TIMEOUT"),
			Destination: &tickTimeout,
		},
		&cli.BoolFlag{
			Name:        "run-on-start",
			Usage:       "Run a tick immediately after start",
			Category:    "Rotation",
			Sources:     cli.EnvVars("PROTEUS_RUN_ON_START"),
			Destination: &runOnStart,
		},
		&cli.BoolFlag{
			Name:        "disable-worker",
			Usage:       "Serve HTTP only, for hosts that trigger `proteus tick` externally",
			Category:    "Rotation",
			Sources:     cli.EnvVars("PROTEUS_DISABLE_WORKER"),
			Destination: &disableWorker,
		},
	}

	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, slackCfg.Flags()...)
	flags = append(flags, rotationCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server and avatar rotation worker",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logging.Default().Info("serve configuration",
				"addr", addr,
				"repository", repoCfg,
				"slack", slackCfg,
				"rotation", rotationCfg,
			)

			if err := slackCfg.Validate(); err != nil {
				return err
			}

			m := metrics.New()

			repo, err := repoCfg.Configure(ctx, m)
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
			ucOpts = append(ucOpts,
				usecase.WithMetrics(m),
				usecase.WithBotToken(slackCfg.BotToken()),
			)
			uc := usecase.New(repo, slackCfg.Configure(), ucOpts...)

			httpOpts := []httpctrl.Options{
				httpctrl.WithMetrics(m),
				httpctrl.WithRedirectURI(slackCfg.RedirectURI()),
			}
			if slackCfg.IsWebhookConfigured() {
				httpOpts = append(httpOpts, httpctrl.WithSlackSigningSecret(slackCfg.SigningSecret()))
				logging.Default().Info("Slack signature verification enabled")
			}

			httpHandler, err := httpctrl.New(uc, httpOpts...)
			if err != nil {
				return goerr.Wrap(err, "failed to create http server")
			}
			server := &http.Server{
				Addr:              addr,
				Handler:           httpHandler,
				ReadHeaderTimeout: 30 * time.Second,
			}

			var rotationWorker *worker.AvatarRotationWorker
			if !disableWorker {
				rotationWorker = worker.NewAvatarRotationWorker(uc.Avatar, tickInterval,
					worker.WithTickTimeout(tickTimeout),
					worker.WithRunOnStart(runOnStart),
				)
				if err := rotationWorker.Start(ctx); err != nil {
					return goerr.Wrap(err, "failed to start avatar rotation worker")
				}
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			var runErr error
			select {
			case runErr = <-errCh:
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)
			}

			// Stop the worker first so no tick starts while the server drains
			if rotationWorker != nil {
				rotationWorker.Stop()
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil && runErr == nil {
				runErr = goerr.Wrap(err, "failed to shutdown server gracefully")
			}

			logging.Default().Info("Server shutdown completed")
			return runErr
		},
	}
}
