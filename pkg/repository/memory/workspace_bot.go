package memory

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/proteus/pkg/domain/interfaces"
	"github.com/secmon-lab/proteus/pkg/domain/model"
)

type workspaceBotRepository struct {
	mu   sync.RWMutex
	bots map[model.SlackTeamID]*model.WorkspaceBot
}

var _ interfaces.WorkspaceBotRepository = &workspaceBotRepository{}

func newWorkspaceBotRepository() *workspaceBotRepository {
	return &workspaceBotRepository{
		bots: make(map[model.SlackTeamID]*model.WorkspaceBot),
	}
}

func (r *workspaceBotRepository) Get(ctx context.Context, teamID model.SlackTeamID) (*model.WorkspaceBot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bot, ok := r.bots[teamID]
	if !ok {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "workspace bot not found", goerr.V("team_id", teamID))
	}
	botCopy := *bot
	return &botCopy, nil
}

func (r *workspaceBotRepository) Upsert(ctx context.Context, bot *model.WorkspaceBot) error {
	if bot.TeamID == "" {
		return goerr.Wrap(model.ErrValidation, "team ID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	botCopy := *bot
	r.bots[bot.TeamID] = &botCopy
	return nil
}
