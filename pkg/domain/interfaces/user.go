package interfaces

import (
	"context"

	"github.com/secmon-lab/proteus/pkg/domain/model"
)

// UserRepository persists users keyed by (team, user).
//
// Upsert is atomic per key and last-write-wins; callers never need read-modify-write
// transactions across keys.
type UserRepository interface {
	// ListValid retrieves users whose Valid flag is true (store-side filter)
	ListValid(ctx context.Context) ([]*model.User, error)

	// ListAll retrieves every user including those in the error state
	ListAll(ctx context.Context) ([]*model.User, error)

	// Get retrieves a user by key. Returns ErrNotFound if absent.
	Get(ctx context.Context, key model.UserKey) (*model.User, error)

	// Upsert inserts or replaces the user identified by its key
	Upsert(ctx context.Context, user *model.User) error
}

// WorkspaceBotRepository persists bot tokens per workspace
type WorkspaceBotRepository interface {
	// Get retrieves the bot of a team. Returns ErrNotFound if absent.
	Get(ctx context.Context, teamID model.SlackTeamID) (*model.WorkspaceBot, error)

	// Upsert inserts or replaces the bot of a team
	Upsert(ctx context.Context, bot *model.WorkspaceBot) error
}
