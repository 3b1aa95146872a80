package types

import "strings"

// UserTokenPrefix is the prefix of Slack user OAuth tokens. Only user tokens may call
// users.setPhoto on behalf of a user.
const UserTokenPrefix = "xoxp-"

// BotTokenPrefix is the prefix of Slack bot tokens
const BotTokenPrefix = "xoxb-"

// AccessToken is a Slack OAuth token
type AccessToken string

// IsUserToken reports whether the token belongs to the user token class
func (t AccessToken) IsUserToken() bool {
	return strings.HasPrefix(string(t), UserTokenPrefix)
}

// IsBotToken reports whether the token belongs to the bot token class
func (t AccessToken) IsBotToken() bool {
	return strings.HasPrefix(string(t), BotTokenPrefix)
}

// String returns the raw token
func (t AccessToken) String() string {
	return string(t)
}
