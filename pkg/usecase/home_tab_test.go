package usecase_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/proteus/pkg/domain/model"
	"github.com/secmon-lab/proteus/pkg/domain/types"
	"github.com/secmon-lab/proteus/pkg/repository/memory"
	"github.com/secmon-lab/proteus/pkg/usecase"
)

func TestHomeTabPublish(t *testing.T) {
	ctx := context.Background()

	t.Run("uses the workspace bot token", func(t *testing.T) {
		repo := memory.New()
		slack := newMockSlackService()
		user := model.NewUser("T1", "U1", "xoxp-1", tickBase)
		user.UpdateFrequencySeconds = 7200
		putUser(t, repo, user)
		gt.NoError(t, repo.WorkspaceBot().Upsert(ctx, &model.WorkspaceBot{TeamID: "T1", AccessToken: "xoxb-team"})).Required()

		uc := usecase.New(repo, slack, usecase.WithBotToken("xoxb-default"))
		gt.NoError(t, uc.HomeTab.Publish(ctx, "T1", "U1")).Required()

		gt.Value(t, slack.publishCount()).Equal(1)
		gt.Value(t, slack.publishedBy[0]).Equal(types.AccessToken("xoxb-team"))
		gt.String(t, string(slack.published[0])).Contains(`"user_id": "U1"`)
		gt.String(t, string(slack.published[0])).Contains("Every 2 Hours")
	})

	t.Run("falls back to the configured bot token", func(t *testing.T) {
		repo := memory.New()
		slack := newMockSlackService()
		putUser(t, repo, model.NewUser("T1", "U1", "xoxp-1", tickBase))

		uc := usecase.New(repo, slack, usecase.WithBotToken("xoxb-default"))
		gt.NoError(t, uc.HomeTab.Publish(ctx, "T1", "U1")).Required()
		gt.Value(t, slack.publishedBy[0]).Equal(types.AccessToken("xoxb-default"))
	})

	t.Run("no token at all", func(t *testing.T) {
		repo := memory.New()
		putUser(t, repo, model.NewUser("T1", "U1", "xoxp-1", tickBase))

		uc := usecase.New(repo, newMockSlackService())
		gt.Error(t, uc.HomeTab.Publish(ctx, "T1", "U1")).Is(model.ErrConfiguration)
	})

	t.Run("unknown user publishes nothing", func(t *testing.T) {
		slack := newMockSlackService()
		uc := usecase.New(memory.New(), slack, usecase.WithBotToken("xoxb-default"))
		gt.NoError(t, uc.HomeTab.Publish(ctx, "T1", "U404"))
		gt.Value(t, slack.publishCount()).Equal(0)
	})

	t.Run("missing identifiers", func(t *testing.T) {
		uc := usecase.New(memory.New(), newMockSlackService())
		gt.Error(t, uc.HomeTab.Publish(ctx, "", "U1")).Is(model.ErrValidation)
	})

	t.Run("publish failure is returned", func(t *testing.T) {
		repo := memory.New()
		slack := newMockSlackService()
		slack.publishErr = model.ErrUpstream
		putUser(t, repo, model.NewUser("T1", "U1", "xoxp-1", tickBase))

		uc := usecase.New(repo, slack, usecase.WithBotToken("xoxb-default"))
		gt.Error(t, uc.HomeTab.Publish(ctx, "T1", "U1")).Is(model.ErrUpstream)
	})
}
