package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/proteus/pkg/domain/interfaces"
	"github.com/secmon-lab/proteus/pkg/domain/model"
)

type userRepository struct {
	mu    sync.RWMutex
	users map[model.UserKey]*model.User
}

var _ interfaces.UserRepository = &userRepository{}

func newUserRepository() *userRepository {
	return &userRepository{
		users: make(map[model.UserKey]*model.User),
	}
}

func (r *userRepository) list(filter func(*model.User) bool) []*model.User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]*model.User, 0, len(r.users))
	for _, user := range r.users {
		if filter(user) {
			// Return a deep copy to prevent external modifications
			users = append(users, user.Copy())
		}
	}

	// Stable order keeps tests deterministic
	sort.Slice(users, func(i, j int) bool {
		return users[i].Key().String() < users[j].Key().String()
	})
	return users
}

// ListValid retrieves users that are not in the error state
func (r *userRepository) ListValid(ctx context.Context) ([]*model.User, error) {
	return r.list(func(u *model.User) bool { return u.Valid }), nil
}

// ListAll retrieves all users
func (r *userRepository) ListAll(ctx context.Context) ([]*model.User, error) {
	return r.list(func(*model.User) bool { return true }), nil
}

// Get retrieves a single user by key
func (r *userRepository) Get(ctx context.Context, key model.UserKey) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[key]
	if !ok {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "user not found", goerr.V("key", key.String()))
	}

	return user.Copy(), nil
}

// Upsert inserts or replaces a user
func (r *userRepository) Upsert(ctx context.Context, user *model.User) error {
	if err := user.Validate(); err != nil {
		return goerr.Wrap(err, "invalid user")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Store a deep copy to prevent external modifications
	r.users[user.Key()] = user.Copy()
	return nil
}
