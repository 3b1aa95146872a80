package config

import (
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/proteus/pkg/domain/model"
	"github.com/secmon-lab/proteus/pkg/domain/types"
	slacksvc "github.com/secmon-lab/proteus/pkg/service/slack"
	"github.com/urfave/cli/v3"
)

type Slack struct {
	clientID      string
	clientSecret  string
	botToken      string
	signingSecret string
	redirectURI   string
	timeout       time.Duration
}

func (x *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-client-id",
			Usage:       "Slack OAuth client ID",
			Category:    "Slack",
			Destination: &x.clientID,
			Sources:     cli.EnvVars("PROTEUS_SLACK_CLIENT_ID"),
		},
		&cli.StringFlag{
			Name:        "slack-client-secret",
			Usage:       "Slack OAuth client secret",
			Category:    "Slack",
			Destination: &x.clientSecret,
			Sources:     cli.EnvVars("PROTEUS_SLACK_CLIENT_SECRET"),
		},
		&cli.StringFlag{
			Name:        "slack-bot-token",
			Usage:       "Slack Bot User OAuth Token (publishes the Home tab of workspaces without a stored install)",
			Category:    "Slack",
			Destination: &x.botToken,
			Sources:     cli.EnvVars("PROTEUS_SLACK_BOT_TOKEN"),
		},
		&cli.StringFlag{
			Name:        "slack-signing-secret",
			Usage:       "Slack Signing Secret (for webhook verification)",
			Category:    "Slack",
			Destination: &x.signingSecret,
			Sources:     cli.EnvVars("PROTEUS_SLACK_SIGNING_SECRET"),
		},
		&cli.StringFlag{
			Name:        "slack-redirect-uri",
			Usage:       "OAuth redirect URI, e.g. https://your-domain.com/auth/slack/callback",
			Category:    "Slack",
			Destination: &x.redirectURI,
			Sources:     cli.EnvVars("PROTEUS_SLACK_REDIRECT_URI"),
		},
		&cli.DurationFlag{
			Name:        "slack-timeout",
			Usage:       "Timeout of a single Slack API call",
			Category:    "Slack",
			Value:       slacksvc.DefaultTimeout,
			Destination: &x.timeout,
			Sources:     cli.EnvVars("PROTEUS_SLACK_TIMEOUT"),
		},
	}
}

func (x Slack) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("client-id.len", len(x.clientID)),
		slog.Int("client-secret.len", len(x.clientSecret)),
		slog.Int("bot-token.len", len(x.botToken)),
		slog.Bool("signing-secret", x.signingSecret != ""),
		slog.String("redirect-uri", x.redirectURI),
		slog.Duration("timeout", x.timeout),
	)
}

// Validate checks the settings the HTTP server cannot run without
func (x *Slack) Validate() error {
	if x.clientID == "" || x.clientSecret == "" {
		return goerr.Wrap(model.ErrConfiguration, "--slack-client-id and --slack-client-secret are required")
	}
	if x.botToken == "" {
		return goerr.Wrap(model.ErrConfiguration, "--slack-bot-token is required")
	}
	if !types.AccessToken(x.botToken).IsBotToken() {
		return goerr.Wrap(model.ErrConfiguration, "--slack-bot-token is not a bot token")
	}
	return nil
}

// Configure creates the Slack service. OAuth credentials are optional for commands that only
// use stored user tokens.
func (x *Slack) Configure() slacksvc.Service {
	opts := []slacksvc.Option{slacksvc.WithTimeout(x.timeout)}
	if x.clientID != "" && x.clientSecret != "" {
		opts = append(opts, slacksvc.WithOAuthCredentials(x.clientID, x.clientSecret))
	}
	return slacksvc.New(opts...)
}

// BotToken returns the Slack bot token
func (x *Slack) BotToken() types.AccessToken {
	return types.AccessToken(x.botToken)
}

// IsWebhookConfigured checks if Slack webhook is configured
func (x *Slack) IsWebhookConfigured() bool {
	return x.signingSecret != ""
}

// SigningSecret returns the Slack signing secret
func (x *Slack) SigningSecret() string {
	return x.signingSecret
}

// RedirectURI returns the OAuth redirect URI
func (x *Slack) RedirectURI() string {
	return x.redirectURI
}
