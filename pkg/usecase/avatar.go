package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/proteus/pkg/domain/interfaces"
	"github.com/secmon-lab/proteus/pkg/domain/model"
	"github.com/secmon-lab/proteus/pkg/service/avatar"
	"github.com/secmon-lab/proteus/pkg/service/metrics"
	slacksvc "github.com/secmon-lab/proteus/pkg/service/slack"
	"github.com/secmon-lab/proteus/pkg/utils/errutil"
	"github.com/secmon-lab/proteus/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

// AvatarSettings tunes a rotation tick. Zero values fall back to defaults.
type AvatarSettings struct {
	Concurrency  int
	StoreTimeout time.Duration
	Metrics      *metrics.Metrics
	Normalize    []avatar.NormalizeOption
	Clock        func() time.Time
}

// AvatarUseCase rotates the profile photos of users whose cadence window is open
type AvatarUseCase struct {
	repo         interfaces.Repository
	source       avatar.Source
	slackService slacksvc.Service
	settings     AvatarSettings
}

func NewAvatarUseCase(repo interfaces.Repository, source avatar.Source, slackService slacksvc.Service, settings AvatarSettings) *AvatarUseCase {
	if settings.Concurrency <= 0 {
		settings.Concurrency = DefaultConcurrency
	}
	if settings.StoreTimeout <= 0 {
		settings.StoreTimeout = DefaultStoreTimeout
	}
	if settings.Clock == nil {
		settings.Clock = time.Now
	}

	return &AvatarUseCase{
		repo:         repo,
		source:       source,
		slackService: slackService,
		settings:     settings,
	}
}

type rotationResult int

const (
	rotationSucceeded rotationResult = iota
	rotationFailed
	rotationAbandoned
)

// RunTick evaluates every valid user against now and rotates the due ones on a bounded pool.
// Only a failure to read the user list is returned; per-user failures end up in the report.
func (uc *AvatarUseCase) RunTick(ctx context.Context, now time.Time) (*model.TickReport, error) {
	report := &model.TickReport{
		TickID:    uuid.NewString(),
		StartedAt: uc.settings.Clock(),
	}
	logger := logging.From(ctx).With("tick_id", report.TickID)
	ctx = logging.With(ctx, logger)

	listCtx, cancel := context.WithTimeout(ctx, uc.settings.StoreTimeout)
	users, err := uc.repo.User().ListValid(listCtx)
	cancel()
	if err != nil {
		return nil, goerr.Wrap(model.ErrPersistence, "failed to list valid users",
			goerr.V("tick_id", report.TickID),
			goerr.V("cause", err.Error()))
	}
	report.Candidates = len(users)

	var due []*model.User
	for _, u := range users {
		if u.Valid && u.IsDue(now) {
			due = append(due, u)
		}
	}
	report.Eligible = len(due)

	logger.Info("rotation tick started",
		"now", now,
		"candidates", report.Candidates,
		"eligible", report.Eligible,
	)

	var (
		mu sync.Mutex
		eg errgroup.Group
	)
	eg.SetLimit(uc.settings.Concurrency)

	for _, u := range due {
		eg.Go(func() error {
			result, persisted := uc.processUser(ctx, u, now)

			mu.Lock()
			defer mu.Unlock()
			switch result {
			case rotationSucceeded:
				report.Succeeded++
			case rotationFailed:
				report.Failed++
			case rotationAbandoned:
				report.Abandoned++
			}
			if result != rotationAbandoned && !persisted {
				report.PersistFailed++
			}
			return nil
		})
	}
	_ = eg.Wait()

	report.FinishedAt = uc.settings.Clock()
	uc.settings.Metrics.RecordTick(report)

	logger.Info("rotation tick finished",
		"eligible", report.Eligible,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"persist_failed", report.PersistFailed,
		"abandoned", report.Abandoned,
		"duration", report.Duration().String(),
	)

	return report, nil
}

// processUser runs the pipeline of one user and persists the outcome. A failure caused by
// tick cancellation leaves the stored record untouched. Success is recorded at the tick time
// now, so the next window stays centred on a later tick however long the batch runs.
func (uc *AvatarUseCase) processUser(ctx context.Context, user *model.User, now time.Time) (rotationResult, bool) {
	logger := logging.From(ctx).With("key", user.Key().String())
	ctx = logging.With(ctx, logger)

	if ctx.Err() != nil {
		return rotationAbandoned, false
	}

	result := rotationSucceeded
	if err := uc.rotate(ctx, user); err != nil {
		if ctx.Err() != nil {
			logger.Warn("rotation abandoned by tick cancellation", "error", err.Error())
			return rotationAbandoned, false
		}
		_ = errutil.Handle(ctx, err, "avatar rotation failed, marking user invalid")
		user.MarkInvalid(uc.settings.Clock())
		result = rotationFailed
	} else {
		user.RecordSuccess(now)
		logger.Info("avatar rotated")
	}

	// The outcome is complete at this point, so it is written even if the tick deadline expires
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.settings.StoreTimeout)
	defer cancel()
	if err := uc.repo.User().Upsert(storeCtx, user); err != nil {
		_ = errutil.Handle(ctx, goerr.Wrap(model.ErrPersistence, "failed to persist rotation outcome",
			goerr.V("key", user.Key().String()),
			goerr.V("cause", err.Error())), "persisting user failed")
		return result, false
	}

	return result, true
}

// rotate validates the token, fetches and normalizes an image and uploads it
func (uc *AvatarUseCase) rotate(ctx context.Context, user *model.User) error {
	if !user.AccessToken.IsUserToken() {
		return goerr.Wrap(model.ErrValidation, "stored token is not a user token",
			goerr.V("key", user.Key().String()))
	}

	raw, err := uc.source.Fetch(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to fetch source image", goerr.V("key", user.Key().String()))
	}
	if len(raw) == 0 {
		return goerr.Wrap(model.ErrUpstream, "source image is empty", goerr.V("key", user.Key().String()))
	}

	img, err := avatar.Normalize(raw, uc.settings.Normalize...)
	if err != nil {
		return goerr.Wrap(err, "failed to normalize image", goerr.V("key", user.Key().String()))
	}

	crop := slacksvc.PhotoCrop{X: img.Crop.X, Y: img.Crop.Y, W: img.Crop.Side}
	if err := uc.slackService.SetUserPhoto(ctx, user.AccessToken, img.PNG, crop); err != nil {
		return goerr.Wrap(err, "failed to set user photo",
			goerr.V("key", user.Key().String()),
			goerr.V("width", img.Width),
			goerr.V("height", img.Height))
	}

	return nil
}
