package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/proteus/pkg/domain/model"
	"github.com/secmon-lab/proteus/pkg/domain/types"
	"github.com/secmon-lab/proteus/pkg/utils/safe"
	"github.com/slack-go/slack"
)

const (
	// DefaultTimeout bounds a single Slack API call
	DefaultTimeout = 30 * time.Second

	authorizeURL = "https://slack.com/oauth/v2/authorize"
	botScopes    = "chat:write"
	userScopes   = "users.profile:write"
)

// client implements Service interface
type client struct {
	clientID     string
	clientSecret string
	apiURL       string
	httpClient   *http.Client
	timeout      time.Duration
}

// Option is a functional option for client configuration
type Option func(*client)

// WithOAuthCredentials sets the app credentials used by the install flow
func WithOAuthCredentials(clientID, clientSecret string) Option {
	return func(c *client) {
		c.clientID = clientID
		c.clientSecret = clientSecret
	}
}

// WithAPIURL points the client to another Web API endpoint. The URL must end with "/".
func WithAPIURL(apiURL string) Option {
	return func(c *client) {
		c.apiURL = apiURL
	}
}

// WithHTTPClient replaces the HTTP client used for API calls
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the per-call deadline. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(c *client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New creates a new Slack service
func New(opts ...Option) Service {
	c := &client{
		apiURL:     slack.APIURL,
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *client) api(token types.AccessToken) *slack.Client {
	return slack.New(token.String(),
		slack.OptionAPIURL(c.apiURL),
		slack.OptionHTTPClient(c.httpClient),
	)
}

// SetUserPhoto writes image to a temporary file because the upload API of slack-go takes a path
func (c *client) SetUserPhoto(ctx context.Context, token types.AccessToken, image []byte, crop PhotoCrop) error {
	if len(image) == 0 {
		return goerr.Wrap(model.ErrValidation, "image is empty")
	}

	f, err := os.CreateTemp("", "proteus-avatar-*.png")
	if err != nil {
		return goerr.Wrap(err, "failed to create temporary image file")
	}
	defer safe.Remove(ctx, os.Remove, f.Name())

	if _, err := f.Write(image); err != nil {
		safe.Close(ctx, f)
		return goerr.Wrap(err, "failed to write temporary image file", goerr.V("path", f.Name()))
	}
	if err := f.Close(); err != nil {
		return goerr.Wrap(err, "failed to close temporary image file", goerr.V("path", f.Name()))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := slack.UserSetPhotoParams{CropX: crop.X, CropY: crop.Y, CropW: crop.W}
	if err := c.api(token).SetUserPhotoContext(ctx, f.Name(), params); err != nil {
		return goerr.Wrap(model.ErrUpstream, "users.setPhoto failed",
			goerr.V("crop", crop),
			goerr.V("cause", err.Error()))
	}

	return nil
}

type publishDocument struct {
	UserID string                   `json:"user_id"`
	View   slack.HomeTabViewRequest `json:"view"`
}

// PublishHomeTab parses doc into the typed request. An "initial_option" rendered as an empty
// object is removed first because views.publish rejects option objects without text.
func (c *client) PublishHomeTab(ctx context.Context, token types.AccessToken, doc []byte) error {
	cleaned, err := dropEmptyInitialOptions(doc)
	if err != nil {
		return goerr.Wrap(model.ErrValidation, "home tab document is not valid JSON", goerr.V("cause", err.Error()))
	}

	var pd publishDocument
	if err := json.Unmarshal(cleaned, &pd); err != nil {
		return goerr.Wrap(model.ErrValidation, "home tab document does not match views.publish",
			goerr.V("cause", err.Error()))
	}
	if pd.UserID == "" {
		return goerr.Wrap(model.ErrValidation, "home tab document has no user_id")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if _, err := c.api(token).PublishViewContext(ctx, slack.PublishViewContextRequest{
		UserID: pd.UserID,
		View:   pd.View,
	}); err != nil {
		return goerr.Wrap(model.ErrUpstream, "views.publish failed",
			goerr.V("user_id", pd.UserID),
			goerr.V("cause", err.Error()))
	}

	return nil
}

func dropEmptyInitialOptions(doc []byte) ([]byte, error) {
	var v any
	if err := json.Unmarshal(doc, &v); err != nil {
		return nil, err
	}
	return json.Marshal(stripEmptyInitialOption(v))
}

func stripEmptyInitialOption(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if m, ok := child.(map[string]any); ok && k == "initial_option" && len(m) == 0 {
				delete(t, k)
				continue
			}
			t[k] = stripEmptyInitialOption(child)
		}
	case []any:
		for i := range t {
			t[i] = stripEmptyInitialOption(t[i])
		}
	}
	return v
}

func (c *client) ExchangeOAuthCode(ctx context.Context, code, redirectURI string) (*OAuthResult, error) {
	if c.clientID == "" || c.clientSecret == "" {
		return nil, goerr.Wrap(model.ErrConfiguration, "slack client ID and secret are required")
	}
	if code == "" {
		return nil, goerr.Wrap(model.ErrValidation, "oauth code is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := slack.GetOAuthV2ResponseContext(ctx, c.httpClient, c.clientID, c.clientSecret, code, redirectURI)
	if err != nil {
		return nil, goerr.Wrap(model.ErrUpstream, "oauth.v2.access failed", goerr.V("cause", err.Error()))
	}

	result := &OAuthResult{
		TeamID:    model.SlackTeamID(resp.Team.ID),
		UserID:    model.SlackUserID(resp.AuthedUser.ID),
		UserToken: types.AccessToken(resp.AuthedUser.AccessToken),
		BotUserID: model.SlackUserID(resp.BotUserID),
		BotToken:  types.AccessToken(resp.AccessToken),
	}
	if result.TeamID == "" || result.UserID == "" || result.UserToken == "" {
		return nil, goerr.Wrap(model.ErrUpstream, "oauth response lacks team or user",
			goerr.V("team_id", result.TeamID),
			goerr.V("user_id", result.UserID))
	}

	return result, nil
}

func (c *client) AuthorizeURL(redirectURI string) string {
	q := url.Values{}
	q.Set("client_id", c.clientID)
	q.Set("scope", botScopes)
	q.Set("user_scope", userScopes)
	if redirectURI != "" {
		q.Set("redirect_uri", redirectURI)
	}
	return authorizeURL + "?" + q.Encode()
}
