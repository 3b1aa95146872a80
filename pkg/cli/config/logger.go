package config

import (
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/fatih/color"
	"github.com/m-mizutani/clog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/masq"
	"github.com/secmon-lab/proteus/pkg/domain/model"
	"github.com/secmon-lab/proteus/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// slackTokenPattern matches Slack OAuth tokens that end up in free-form log values
var slackTokenPattern = regexp.MustCompile(`xox[abposr]-[0-9A-Za-z-]+`)

type Logger struct {
	level  string
	format string
	output string
}

func (x *Logger) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Aliases:     []string{"l"},
			Usage:       "Log level [debug|info|warn|error]",
			Category:    "Logging",
			Value:       "info",
			Destination: &x.level,
			Sources:     cli.EnvVars("PROTEUS_LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format [console|json]",
			Category:    "Logging",
			Value:       "console",
			Destination: &x.format,
			Sources:     cli.EnvVars("PROTEUS_LOG_FORMAT"),
		},
		&cli.StringFlag{
			Name:        "log-output",
			Usage:       "Log output [stdout|stderr|<file path>]",
			Category:    "Logging",
			Value:       "stdout",
			Destination: &x.output,
			Sources:     cli.EnvVars("PROTEUS_LOG_OUTPUT"),
		},
	}
}

func (x Logger) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("level", x.level),
		slog.String("format", x.format),
		slog.String("output", x.output),
	)
}

func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, goerr.Wrap(model.ErrConfiguration, "invalid log level", goerr.V("level", level))
	}
}

// NewLogger builds a logger writing to w. Fields tagged masq:"secret" and Slack tokens are redacted.
func (x *Logger) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLogLevel(x.level)
	if err != nil {
		return nil, err
	}

	filter := masq.New(
		masq.WithTag("secret"),
		masq.WithRegex(slackTokenPattern),
	)

	switch x.format {
	case "", "console":
		// color.NoColor is set when stdout is not a terminal
		useColor := w == io.Writer(os.Stdout) && !color.NoColor
		return slog.New(clog.New(
			clog.WithWriter(w),
			clog.WithLevel(level),
			clog.WithColor(useColor),
			clog.WithReplaceAttr(filter),
		)), nil

	case "json":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			AddSource:   true,
			Level:       level,
			ReplaceAttr: filter,
		})), nil

	default:
		return nil, goerr.Wrap(model.ErrConfiguration, "invalid log format", goerr.V("format", x.format))
	}
}

// Configure sets up the default logger. The returned function closes the log file, if any.
func (x *Logger) Configure() (func(), error) {
	closer := func() {}

	var w io.Writer
	switch x.output {
	case "", "stdout", "-":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(x.output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600) // #nosec G304 -- path comes from the operator
		if err != nil {
			return nil, goerr.Wrap(model.ErrConfiguration, "failed to open log file",
				goerr.V("path", x.output),
				goerr.V("cause", err.Error()))
		}
		w = f
		closer = func() {
			if err := f.Close(); err != nil {
				logging.Default().Error("failed to close log file", "error", err)
			}
		}
	}

	logger, err := x.NewLogger(w)
	if err != nil {
		closer()
		return nil, err
	}

	logging.SetDefault(logger)
	return closer, nil
}
