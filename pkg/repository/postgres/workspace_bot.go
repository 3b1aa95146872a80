package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/proteus/pkg/domain/interfaces"
	"github.com/secmon-lab/proteus/pkg/domain/model"
	"github.com/secmon-lab/proteus/pkg/domain/types"
)

type workspaceBotRepository struct {
	pool  *pgxpool.Pool
	table string
}

var _ interfaces.WorkspaceBotRepository = &workspaceBotRepository{}

func (r *workspaceBotRepository) Get(ctx context.Context, teamID model.SlackTeamID) (*model.WorkspaceBot, error) {
	var (
		botUserID, token string
		bot              = model.WorkspaceBot{TeamID: teamID}
	)
	err := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT bot_user_id, access_token, updated_at FROM %s WHERE team_id = $1`, r.table),
		string(teamID),
	).Scan(&botUserID, &token, &bot.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, goerr.Wrap(interfaces.ErrNotFound, "workspace bot not found", goerr.V("team_id", teamID))
		}
		return nil, goerr.Wrap(err, "failed to get workspace bot", goerr.V("team_id", teamID))
	}

	bot.BotUserID = model.SlackUserID(botUserID)
	bot.AccessToken = types.AccessToken(token)
	return &bot, nil
}

func (r *workspaceBotRepository) Upsert(ctx context.Context, bot *model.WorkspaceBot) error {
	if bot.TeamID == "" {
		return goerr.Wrap(model.ErrValidation, "team ID is required")
	}

	_, err := r.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (team_id, bot_user_id, access_token, updated_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (team_id) DO UPDATE SET
			bot_user_id = EXCLUDED.bot_user_id,
			access_token = EXCLUDED.access_token,
			updated_at = EXCLUDED.updated_at`, r.table),
		string(bot.TeamID), string(bot.BotUserID), string(bot.AccessToken), bot.UpdatedAt,
	)
	if err != nil {
		return goerr.Wrap(err, "failed to upsert workspace bot", goerr.V("team_id", bot.TeamID))
	}
	return nil
}
