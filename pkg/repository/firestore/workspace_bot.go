package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/proteus/pkg/domain/interfaces"
	"github.com/secmon-lab/proteus/pkg/domain/model"
	"github.com/secmon-lab/proteus/pkg/domain/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const workspaceBotsCollection = "workspace_bots"

type workspaceBotRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.WorkspaceBotRepository = &workspaceBotRepository{}

func newWorkspaceBotRepository(client *firestore.Client) *workspaceBotRepository {
	return &workspaceBotRepository{client: client}
}

type workspaceBotDoc struct {
	TeamID      string    `firestore:"team_id"`
	BotUserID   string    `firestore:"bot_user_id"`
	AccessToken string    `firestore:"access_token"`
	UpdatedAt   time.Time `firestore:"updated_at"`
}

func (r *workspaceBotRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, workspaceBotsCollection))
}

func (r *workspaceBotRepository) Get(ctx context.Context, teamID model.SlackTeamID) (*model.WorkspaceBot, error) {
	doc, err := r.collection().Doc(string(teamID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(interfaces.ErrNotFound, "workspace bot not found", goerr.V("team_id", teamID))
		}
		return nil, goerr.Wrap(err, "failed to get workspace bot", goerr.V("team_id", teamID))
	}

	var d workspaceBotDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal workspace bot", goerr.V("team_id", teamID))
	}

	return &model.WorkspaceBot{
		TeamID:      model.SlackTeamID(d.TeamID),
		BotUserID:   model.SlackUserID(d.BotUserID),
		AccessToken: types.AccessToken(d.AccessToken),
		UpdatedAt:   d.UpdatedAt,
	}, nil
}

func (r *workspaceBotRepository) Upsert(ctx context.Context, bot *model.WorkspaceBot) error {
	if bot.TeamID == "" {
		return goerr.Wrap(model.ErrValidation, "team ID is required")
	}

	d := &workspaceBotDoc{
		TeamID:      string(bot.TeamID),
		BotUserID:   string(bot.BotUserID),
		AccessToken: string(bot.AccessToken),
		UpdatedAt:   bot.UpdatedAt,
	}
	if _, err := r.collection().Doc(string(bot.TeamID)).Set(ctx, d); err != nil {
		return goerr.Wrap(err, "failed to save workspace bot", goerr.V("team_id", bot.TeamID))
	}
	return nil
}
