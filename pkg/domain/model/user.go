package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/proteus/pkg/domain/types"
)

// SlackUserID represents a unique identifier for a Slack user
type SlackUserID string

// SlackTeamID represents a unique identifier for a Slack workspace (team)
type SlackTeamID string

// DefaultUpdateFrequencySeconds is the cadence given to newly installed users
const DefaultUpdateFrequencySeconds = 3600

// UserKey is the composite key of a user record. The team acts as the partition.
type UserKey struct {
	TeamID SlackTeamID
	UserID SlackUserID
}

// String returns "team:user", which is also the document ID used by document stores
func (k UserKey) String() string {
	return string(k.TeamID) + ":" + string(k.UserID)
}

// Validate checks both halves of the key are present
func (k UserKey) Validate() error {
	if k.TeamID == "" {
		return goerr.Wrap(ErrValidation, "team ID is required", goerr.V("user_id", k.UserID))
	}
	if k.UserID == "" {
		return goerr.Wrap(ErrValidation, "user ID is required", goerr.V("team_id", k.TeamID))
	}
	return nil
}

// User is a user who installed the app and whose avatar is rotated
type User struct {
	TeamID                 SlackTeamID
	UserID                 SlackUserID
	AccessToken            types.AccessToken `masq:"secret"`
	LastAvatarChange       *time.Time        // nil = never updated
	UpdateFrequencySeconds int
	Valid                  bool // false = error state, excluded from scheduling
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// NewUser creates a schedulable user with the default cadence
func NewUser(teamID SlackTeamID, userID SlackUserID, token types.AccessToken, now time.Time) *User {
	return &User{
		TeamID:                 teamID,
		UserID:                 userID,
		AccessToken:            token,
		UpdateFrequencySeconds: DefaultUpdateFrequencySeconds,
		Valid:                  true,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
}

// Key returns the composite key of the user
func (u *User) Key() UserKey {
	return UserKey{TeamID: u.TeamID, UserID: u.UserID}
}

// Validate checks the record can be persisted
func (u *User) Validate() error {
	if err := u.Key().Validate(); err != nil {
		return err
	}
	if u.UpdateFrequencySeconds <= 0 {
		return goerr.Wrap(ErrValidation, "update frequency must be positive",
			goerr.V("key", u.Key().String()),
			goerr.V("frequency", u.UpdateFrequencySeconds))
	}
	return nil
}

// Frequency returns the cadence as a duration
func (u *User) Frequency() time.Duration {
	return time.Duration(u.UpdateFrequencySeconds) * time.Second
}

// NextWindow returns the tolerance window [last+0.9f, last+1.1f] around the ideal next update.
// ok is false when the avatar has never been changed.
func (u *User) NextWindow() (start, end time.Time, ok bool) {
	if u.LastAvatarChange == nil {
		return time.Time{}, time.Time{}, false
	}
	f := u.Frequency()
	last := *u.LastAvatarChange
	return last.Add(f * 9 / 10), last.Add(f * 11 / 10), true
}

// IsDue reports whether the user should be updated at now. Both window bounds are inclusive.
func (u *User) IsDue(now time.Time) bool {
	start, end, ok := u.NextWindow()
	if !ok {
		return true
	}
	return !now.Before(start) && !now.After(end)
}

// RecordSuccess advances LastAvatarChange to at. Older timestamps are ignored so the value only
// moves forward.
func (u *User) RecordSuccess(at time.Time) {
	if u.LastAvatarChange != nil && !at.After(*u.LastAvatarChange) {
		return
	}
	t := at
	u.LastAvatarChange = &t
	u.UpdatedAt = at
}

// WindowPassed reports whether the tolerance window ended before now. Such a user is never
// due again on its own.
func (u *User) WindowPassed(now time.Time) bool {
	_, end, ok := u.NextWindow()
	return ok && now.After(end)
}

// Reactivate clears the error state for an operator reset or a reinstall. When the window
// already passed, LastAvatarChange is cleared so the next tick rotates the user; this is the
// only path that moves it backwards. It reports whether the timestamp was cleared.
func (u *User) Reactivate(now time.Time) bool {
	u.Valid = true
	u.UpdatedAt = now
	if !u.WindowPassed(now) {
		return false
	}
	u.LastAvatarChange = nil
	return true
}

// MarkInvalid puts the user into the error state
func (u *User) MarkInvalid(at time.Time) {
	u.Valid = false
	u.UpdatedAt = at
}

// Copy returns a deep copy of the user
func (u *User) Copy() *User {
	c := *u
	if u.LastAvatarChange != nil {
		t := *u.LastAvatarChange
		c.LastAvatarChange = &t
	}
	return &c
}

// WorkspaceBot holds the bot token of a workspace the app is installed in
type WorkspaceBot struct {
	TeamID      SlackTeamID
	BotUserID   SlackUserID
	AccessToken types.AccessToken `masq:"secret"`
	UpdatedAt   time.Time
}
