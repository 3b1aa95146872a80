package slack

import (
	"context"

	"github.com/secmon-lab/proteus/pkg/domain/model"
	"github.com/secmon-lab/proteus/pkg/domain/types"
)

// Service provides the Slack Web API calls proteus needs. Every call carries its own token
// because photos are set with per-user tokens and views are published with per-team bot tokens.
type Service interface {
	// SetUserPhoto uploads image as the profile photo of the token owner (users.setPhoto)
	SetUserPhoto(ctx context.Context, token types.AccessToken, image []byte, crop PhotoCrop) error

	// PublishHomeTab publishes a rendered views.publish document ({"user_id":…,"view":{…}})
	PublishHomeTab(ctx context.Context, token types.AccessToken, doc []byte) error

	// ExchangeOAuthCode completes the OAuth v2 install flow (oauth.v2.access)
	ExchangeOAuthCode(ctx context.Context, code, redirectURI string) (*OAuthResult, error)

	// AuthorizeURL returns the URL users are sent to for installing the app
	AuthorizeURL(redirectURI string) string
}

// PhotoCrop is the square area users.setPhoto keeps
type PhotoCrop struct {
	X int
	Y int
	W int
}

// OAuthResult is the outcome of a successful install
type OAuthResult struct {
	TeamID    model.SlackTeamID
	UserID    model.SlackUserID
	UserToken types.AccessToken `masq:"secret"`
	BotUserID model.SlackUserID
	BotToken  types.AccessToken `masq:"secret"`
}
