package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/proteus/pkg/domain/interfaces"
	"github.com/secmon-lab/proteus/pkg/domain/model"
	"github.com/secmon-lab/proteus/pkg/utils/logging"
)

// UserUseCase covers operator actions on user records
type UserUseCase struct {
	repo  interfaces.Repository
	clock func() time.Time
}

func NewUserUseCase(repo interfaces.Repository, clock func() time.Time) *UserUseCase {
	if clock == nil {
		clock = time.Now
	}
	return &UserUseCase{repo: repo, clock: clock}
}

// List returns every user including those in the error state
func (uc *UserUseCase) List(ctx context.Context) ([]*model.User, error) {
	users, err := uc.repo.User().ListAll(ctx)
	if err != nil {
		return nil, goerr.Wrap(model.ErrPersistence, "failed to list users", goerr.V("cause", err.Error()))
	}
	return users, nil
}

// Reset clears the error state. A user whose window passed without a tick also loses its
// last change so it is due on the next tick; otherwise the schedule is kept.
func (uc *UserUseCase) Reset(ctx context.Context, key model.UserKey) (*model.User, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	user, err := uc.repo.User().Get(ctx, key)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get user", goerr.V("key", key.String()))
	}

	madeDue := user.Reactivate(uc.clock())

	if err := uc.repo.User().Upsert(ctx, user); err != nil {
		return nil, goerr.Wrap(model.ErrPersistence, "failed to save user",
			goerr.V("key", key.String()),
			goerr.V("cause", err.Error()))
	}

	logging.From(ctx).Info("user reset", "key", key.String(), "made_due", madeDue)
	return user, nil
}
