package usecase

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/proteus/pkg/domain/interfaces"
	"github.com/secmon-lab/proteus/pkg/domain/model"
	"github.com/secmon-lab/proteus/pkg/domain/types"
	slacksvc "github.com/secmon-lab/proteus/pkg/service/slack"
	"github.com/secmon-lab/proteus/pkg/service/view"
	"github.com/secmon-lab/proteus/pkg/utils/logging"
)

// HomeTabUseCase publishes the settings panel to a user's Home tab
type HomeTabUseCase struct {
	repo         interfaces.Repository
	slackService slacksvc.Service
	renderer     *view.Renderer
	botToken     types.AccessToken
}

func NewHomeTabUseCase(repo interfaces.Repository, slackService slacksvc.Service, renderer *view.Renderer, botToken types.AccessToken) *HomeTabUseCase {
	return &HomeTabUseCase{
		repo:         repo,
		slackService: slackService,
		renderer:     renderer,
		botToken:     botToken,
	}
}

// Publish renders the Home tab with the user's current cadence. Users who never installed the
// app have nothing to configure, so nothing is published for them.
func (uc *HomeTabUseCase) Publish(ctx context.Context, teamID model.SlackTeamID, userID model.SlackUserID) error {
	key := model.UserKey{TeamID: teamID, UserID: userID}
	if err := key.Validate(); err != nil {
		return err
	}

	user, err := uc.repo.User().Get(ctx, key)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			logging.From(ctx).Debug("home tab skipped for unknown user", "key", key.String())
			return nil
		}
		return goerr.Wrap(err, "failed to get user for home tab", goerr.V("key", key.String()))
	}

	token, err := uc.resolveBotToken(ctx, teamID)
	if err != nil {
		return err
	}

	doc, err := uc.renderer.RenderHomeTab(userID, user.UpdateFrequencySeconds)
	if err != nil {
		return goerr.Wrap(err, "failed to render home tab", goerr.V("key", key.String()))
	}

	if err := uc.slackService.PublishHomeTab(ctx, token, doc); err != nil {
		return goerr.Wrap(err, "failed to publish home tab", goerr.V("key", key.String()))
	}

	logging.From(ctx).Info("home tab published",
		"key", key.String(),
		"frequency", user.UpdateFrequencySeconds)
	return nil
}

func (uc *HomeTabUseCase) resolveBotToken(ctx context.Context, teamID model.SlackTeamID) (types.AccessToken, error) {
	bot, err := uc.repo.WorkspaceBot().Get(ctx, teamID)
	switch {
	case err == nil && bot.AccessToken != "":
		return bot.AccessToken, nil
	case err != nil && !errors.Is(err, interfaces.ErrNotFound):
		return "", goerr.Wrap(err, "failed to get workspace bot", goerr.V("team_id", teamID))
	}

	if uc.botToken == "" {
		return "", goerr.Wrap(model.ErrConfiguration, "no bot token for workspace", goerr.V("team_id", teamID))
	}
	return uc.botToken, nil
}
