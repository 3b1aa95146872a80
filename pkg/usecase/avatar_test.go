package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/proteus/pkg/domain/interfaces"
	"github.com/secmon-lab/proteus/pkg/domain/model"
	"github.com/secmon-lab/proteus/pkg/domain/types"
	"github.com/secmon-lab/proteus/pkg/repository/memory"
	"github.com/secmon-lab/proteus/pkg/service/avatar"
	slacksvc "github.com/secmon-lab/proteus/pkg/service/slack"
	"github.com/secmon-lab/proteus/pkg/usecase"
)

var tickBase = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newAvatarUseCase(repo interfaces.Repository, slack *mockSlackService, src avatar.Source, settings usecase.AvatarSettings) *usecase.AvatarUseCase {
	if settings.Clock == nil {
		settings.Clock = func() time.Time { return tickBase.Add(time.Minute) }
	}
	return usecase.NewAvatarUseCase(repo, src, slack, settings)
}

func userWithLast(team model.SlackTeamID, id model.SlackUserID, token types.AccessToken, last *time.Time) *model.User {
	u := model.NewUser(team, id, token, tickBase.Add(-48*time.Hour))
	u.LastAvatarChange = last
	return u
}

func TestRunTickFirstRun(t *testing.T) {
	repo := memory.New()
	slack := newMockSlackService()
	putUser(t, repo, userWithLast("T1", "U1", "xoxp-1", nil))

	uc := newAvatarUseCase(repo, slack, staticSource(pngImage(t, 256, 256)), usecase.AvatarSettings{})

	// any now works for a user that was never updated
	for _, now := range []time.Time{tickBase, tickBase.Add(-1000 * time.Hour)} {
		report, err := uc.RunTick(context.Background(), now)
		gt.NoError(t, err).Required()
		gt.Value(t, report.Eligible).Equal(1)

		// reset for the next iteration
		u := getUser(t, repo, "T1", "U1")
		u.LastAvatarChange = nil
		putUser(t, repo, u)
	}

	gt.Value(t, slack.photoCount("xoxp-1")).Equal(2)
	gt.Value(t, slack.photos["xoxp-1"][0]).Equal(slacksvc.PhotoCrop{X: 0, Y: 0, W: 512})
}

func TestRunTickRecordsTickTime(t *testing.T) {
	repo := memory.New()
	slack := newMockSlackService()
	putUser(t, repo, userWithLast("T1", "U1", "xoxp-1", nil))

	completed := tickBase.Add(90 * time.Second)
	uc := newAvatarUseCase(repo, slack, staticSource(pngImage(t, 600, 600)), usecase.AvatarSettings{
		Clock: func() time.Time { return completed },
	})

	report, err := uc.RunTick(context.Background(), tickBase)
	gt.NoError(t, err).Required()
	gt.Value(t, report.Succeeded).Equal(1)

	got := getUser(t, repo, "T1", "U1")
	gt.Bool(t, got.Valid).True()
	gt.Bool(t, got.LastAvatarChange.Equal(tickBase)).True()
}

func TestRunTickSlowUploadKeepsHourlyUserDue(t *testing.T) {
	repo := memory.New()
	slack := newMockSlackService()
	putUser(t, repo, userWithLast("T1", "U1", "xoxp-1", nil))

	// every upload finishes 7 minutes after its tick fired
	var now time.Time
	uc := newAvatarUseCase(repo, slack, staticSource(pngImage(t, 600, 600)), usecase.AvatarSettings{
		Clock: func() time.Time { return now.Add(7 * time.Minute) },
	})

	for i := range 5 {
		now = tickBase.Add(time.Duration(i) * time.Hour)
		report, err := uc.RunTick(context.Background(), now)
		gt.NoError(t, err).Required()
		gt.Value(t, report.Eligible).Equal(1)
		gt.Value(t, report.Succeeded).Equal(1)
	}

	gt.Value(t, slack.photoCount("xoxp-1")).Equal(5)
	gt.Bool(t, getUser(t, repo, "T1", "U1").LastAvatarChange.Equal(tickBase.Add(4*time.Hour))).True()
}

func TestRunTickWindowBoundaries(t *testing.T) {
	last := tickBase
	testCases := []struct {
		name string
		now  time.Time
		due  bool
	}{
		{name: "just before window start", now: last.Add(54*time.Minute - time.Second), due: false},
		{name: "at window start", now: last.Add(54 * time.Minute), due: true},
		{name: "ideal time", now: last.Add(60 * time.Minute), due: true},
		{name: "at window end", now: last.Add(66 * time.Minute), due: true},
		{name: "just after window end", now: last.Add(66*time.Minute + time.Second), due: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repo := memory.New()
			slack := newMockSlackService()
			putUser(t, repo, userWithLast("T1", "U1", "xoxp-1", &last))

			uc := newAvatarUseCase(repo, slack, staticSource(pngImage(t, 600, 600)), usecase.AvatarSettings{
				Clock: func() time.Time { return tc.now },
			})
			report, err := uc.RunTick(context.Background(), tc.now)
			gt.NoError(t, err).Required()

			gt.Value(t, report.Candidates).Equal(1)
			if tc.due {
				gt.Value(t, report.Eligible).Equal(1)
				gt.Value(t, slack.photoCount("xoxp-1")).Equal(1)
			} else {
				gt.Value(t, report.Eligible).Equal(0)
				gt.Value(t, slack.photoCount("xoxp-1")).Equal(0)
				gt.Bool(t, getUser(t, repo, "T1", "U1").LastAvatarChange.Equal(last)).True()
			}
		})
	}
}

func TestRunTickFailureIsolation(t *testing.T) {
	t.Run("upload failure of one user does not affect another", func(t *testing.T) {
		repo := memory.New()
		slack := newMockSlackService()
		slack.failTokens["xoxp-bad"] = true
		putUser(t, repo, userWithLast("T1", "UA", "xoxp-bad", nil))
		putUser(t, repo, userWithLast("T1", "UB", "xoxp-good", nil))

		uc := newAvatarUseCase(repo, slack, staticSource(pngImage(t, 600, 600)), usecase.AvatarSettings{})
		report, err := uc.RunTick(context.Background(), tickBase)
		gt.NoError(t, err).Required()

		gt.Value(t, report.Eligible).Equal(2)
		gt.Value(t, report.Succeeded).Equal(1)
		gt.Value(t, report.Failed).Equal(1)
		gt.Bool(t, getUser(t, repo, "T1", "UA").Valid).False()
		gt.Value(t, getUser(t, repo, "T1", "UA").LastAvatarChange == nil).Equal(true)
		gt.Bool(t, getUser(t, repo, "T1", "UB").Valid).True()
		gt.Value(t, slack.photoCount("xoxp-good")).Equal(1)
	})

	t.Run("wrong token class is a permanent failure", func(t *testing.T) {
		repo := memory.New()
		slack := newMockSlackService()
		putUser(t, repo, userWithLast("T1", "UA", "xoxb-bot", nil))
		putUser(t, repo, userWithLast("T1", "UB", "xoxp-good", nil))

		uc := newAvatarUseCase(repo, slack, staticSource(pngImage(t, 600, 600)), usecase.AvatarSettings{})
		report, err := uc.RunTick(context.Background(), tickBase)
		gt.NoError(t, err).Required()

		gt.Value(t, report.Failed).Equal(1)
		gt.Value(t, report.Succeeded).Equal(1)
		gt.Value(t, slack.photoCount("xoxb-bot")).Equal(0)
		gt.Bool(t, getUser(t, repo, "T1", "UA").Valid).False()
	})

	t.Run("invalid users are never selected", func(t *testing.T) {
		repo := memory.New()
		slack := newMockSlackService()
		invalid := userWithLast("T1", "UA", "xoxp-a", nil)
		invalid.MarkInvalid(tickBase)
		putUser(t, repo, invalid)

		uc := newAvatarUseCase(repo, slack, staticSource(pngImage(t, 600, 600)), usecase.AvatarSettings{})
		report, err := uc.RunTick(context.Background(), tickBase)
		gt.NoError(t, err).Required()
		gt.Value(t, report.Candidates).Equal(0)
		gt.Value(t, slack.photoCount("xoxp-a")).Equal(0)
	})
}

func TestRunTickSourceFailures(t *testing.T) {
	testCases := []struct {
		name string
		src  avatar.Source
	}{
		{name: "empty image", src: staticSource(nil)},
		{name: "fetch error", src: sourceFunc(func(ctx context.Context) ([]byte, error) {
			return nil, goerr.Wrap(model.ErrUpstream, "timeout")
		})},
		{name: "undecodable image", src: staticSource([]byte("<html>not an image</html>"))},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repo := memory.New()
			slack := newMockSlackService()
			putUser(t, repo, userWithLast("T1", "U1", "xoxp-1", nil))

			uc := newAvatarUseCase(repo, slack, tc.src, usecase.AvatarSettings{})
			report, err := uc.RunTick(context.Background(), tickBase)
			gt.NoError(t, err).Required()

			gt.Value(t, report.Failed).Equal(1)
			gt.Value(t, slack.photoCount("xoxp-1")).Equal(0)
			gt.Bool(t, getUser(t, repo, "T1", "U1").Valid).False()
		})
	}
}

func TestRunTickPersistence(t *testing.T) {
	t.Run("list failure is fatal to the tick", func(t *testing.T) {
		repo := newFaultyRepository()
		repo.users.failList = true

		uc := newAvatarUseCase(repo, newMockSlackService(), staticSource(pngImage(t, 600, 600)), usecase.AvatarSettings{})
		_, err := uc.RunTick(context.Background(), tickBase)
		gt.Error(t, err).Is(model.ErrPersistence)
	})

	t.Run("upsert failure is counted and does not stop other users", func(t *testing.T) {
		repo := newFaultyRepository()
		slack := newMockSlackService()
		putUser(t, repo, userWithLast("T1", "UA", "xoxp-a", nil))
		putUser(t, repo, userWithLast("T1", "UB", "xoxp-b", nil))
		repo.users.failUpsert[model.UserKey{TeamID: "T1", UserID: "UA"}] = true

		uc := newAvatarUseCase(repo, slack, staticSource(pngImage(t, 600, 600)), usecase.AvatarSettings{})
		report, err := uc.RunTick(context.Background(), tickBase)
		gt.NoError(t, err).Required()

		gt.Value(t, report.Succeeded).Equal(2)
		gt.Value(t, report.PersistFailed).Equal(1)
		gt.Value(t, getUser(t, repo, "T1", "UA").LastAvatarChange == nil).Equal(true)
		gt.Value(t, getUser(t, repo, "T1", "UB").LastAvatarChange != nil).Equal(true)
	})
}

func TestRunTickCancellation(t *testing.T) {
	repo := memory.New()
	slack := newMockSlackService()
	slack.delay = 5 * time.Second
	putUser(t, repo, userWithLast("T1", "U1", "xoxp-1", nil))
	putUser(t, repo, userWithLast("T1", "U2", "xoxp-2", nil))

	uc := newAvatarUseCase(repo, slack, staticSource(pngImage(t, 600, 600)), usecase.AvatarSettings{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	report, err := uc.RunTick(ctx, tickBase)
	gt.NoError(t, err).Required()
	gt.Value(t, report.Abandoned).Equal(2)
	gt.Value(t, report.Failed).Equal(0)
	gt.Value(t, report.PersistFailed).Equal(0)

	// nothing persisted: still valid and never updated
	for _, id := range []model.SlackUserID{"U1", "U2"} {
		u := getUser(t, repo, "T1", id)
		gt.Bool(t, u.Valid).True()
		gt.Value(t, u.LastAvatarChange == nil).Equal(true)
	}
}

func TestRunTickBoundedConcurrency(t *testing.T) {
	repo := memory.New()
	slack := newMockSlackService()
	slack.delay = 20 * time.Millisecond
	for _, id := range []model.SlackUserID{"U1", "U2", "U3", "U4", "U5", "U6"} {
		putUser(t, repo, userWithLast("T1", id, types.AccessToken("xoxp-"+string(id)), nil))
	}

	uc := newAvatarUseCase(repo, slack, staticSource(pngImage(t, 600, 600)), usecase.AvatarSettings{Concurrency: 2})
	report, err := uc.RunTick(context.Background(), tickBase)
	gt.NoError(t, err).Required()

	gt.Value(t, report.Succeeded).Equal(6)
	gt.Number(t, slack.maxInFlight).LessOrEqual(2)
	gt.Value(t, report.TickID != "").Equal(true)
}
