package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/proteus/pkg/domain/interfaces"
	"github.com/secmon-lab/proteus/pkg/domain/model"
	slacksvc "github.com/secmon-lab/proteus/pkg/service/slack"
	"github.com/secmon-lab/proteus/pkg/utils/logging"
)

// InstallUseCase registers users and workspaces through the OAuth v2 install flow
type InstallUseCase struct {
	repo         interfaces.Repository
	slackService slacksvc.Service
	clock        func() time.Time
}

func NewInstallUseCase(repo interfaces.Repository, slackService slacksvc.Service, clock func() time.Time) *InstallUseCase {
	if clock == nil {
		clock = time.Now
	}
	return &InstallUseCase{repo: repo, slackService: slackService, clock: clock}
}

// AuthorizeURL returns where users start the install
func (uc *InstallUseCase) AuthorizeURL(redirectURI string) string {
	return uc.slackService.AuthorizeURL(redirectURI)
}

// Complete exchanges code for tokens and stores the user and the workspace bot. Reinstalling
// keeps the cadence of an existing user and clears its error state; a passed window is
// released so the user is rotated on the next tick.
func (uc *InstallUseCase) Complete(ctx context.Context, code, redirectURI string) (*slacksvc.OAuthResult, error) {
	result, err := uc.slackService.ExchangeOAuthCode(ctx, code, redirectURI)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to exchange oauth code")
	}
	if !result.UserToken.IsUserToken() {
		return nil, goerr.Wrap(model.ErrUpstream, "oauth response did not include a user token",
			goerr.V("team_id", result.TeamID),
			goerr.V("user_id", result.UserID))
	}

	now := uc.clock()
	key := model.UserKey{TeamID: result.TeamID, UserID: result.UserID}

	user, err := uc.repo.User().Get(ctx, key)
	switch {
	case err == nil:
		user.AccessToken = result.UserToken
		user.Reactivate(now)
	case errors.Is(err, interfaces.ErrNotFound):
		user = model.NewUser(result.TeamID, result.UserID, result.UserToken, now)
	default:
		return nil, goerr.Wrap(model.ErrPersistence, "failed to look up installing user",
			goerr.V("key", key.String()),
			goerr.V("cause", err.Error()))
	}

	if err := uc.repo.User().Upsert(ctx, user); err != nil {
		return nil, goerr.Wrap(model.ErrPersistence, "failed to save installed user",
			goerr.V("key", key.String()),
			goerr.V("cause", err.Error()))
	}

	if result.BotToken != "" {
		bot := &model.WorkspaceBot{
			TeamID:      result.TeamID,
			BotUserID:   result.BotUserID,
			AccessToken: result.BotToken,
			UpdatedAt:   now,
		}
		if err := uc.repo.WorkspaceBot().Upsert(ctx, bot); err != nil {
			return nil, goerr.Wrap(model.ErrPersistence, "failed to save workspace bot",
				goerr.V("team_id", result.TeamID),
				goerr.V("cause", err.Error()))
		}
	}

	logging.From(ctx).Info("app installed", "key", key.String(), "user", user)
	return result, nil
}
