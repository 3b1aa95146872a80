package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/proteus/pkg/domain/interfaces"
	"github.com/secmon-lab/proteus/pkg/domain/model"
	"github.com/secmon-lab/proteus/pkg/domain/types"
)

const userColumns = `team_id, user_id, access_token, last_avatar_change, update_frequency_seconds, valid, created_at, updated_at`

type userRepository struct {
	pool  *pgxpool.Pool
	table string // sanitized identifier
}

var _ interfaces.UserRepository = &userRepository{}

func scanUser(scan func(dest ...any) error) (*model.User, error) {
	var (
		teamID, userID, token string
		last                  *time.Time
		u                     model.User
	)
	if err := scan(&teamID, &userID, &token, &last, &u.UpdateFrequencySeconds, &u.Valid, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.TeamID = model.SlackTeamID(teamID)
	u.UserID = model.SlackUserID(userID)
	u.AccessToken = types.AccessToken(token)
	u.LastAvatarChange = last
	return &u, nil
}

func (r *userRepository) query(ctx context.Context, sql string, args ...any) ([]*model.User, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query users")
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan user")
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate users")
	}
	return users, nil
}

func (r *userRepository) ListValid(ctx context.Context) ([]*model.User, error) {
	return r.query(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE valid ORDER BY team_id, user_id`, userColumns, r.table))
}

func (r *userRepository) ListAll(ctx context.Context) ([]*model.User, error) {
	return r.query(ctx, fmt.Sprintf(`SELECT %s FROM %s ORDER BY team_id, user_id`, userColumns, r.table))
}

func (r *userRepository) Get(ctx context.Context, key model.UserKey) (*model.User, error) {
	if err := key.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid user key")
	}

	row := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE team_id = $1 AND user_id = $2`, userColumns, r.table),
		string(key.TeamID), string(key.UserID))

	u, err := scanUser(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, goerr.Wrap(interfaces.ErrNotFound, "user not found", goerr.V("key", key.String()))
		}
		return nil, goerr.Wrap(err, "failed to get user", goerr.V("key", key.String()))
	}
	return u, nil
}

// Upsert writes the whole row in one statement; ON CONFLICT keeps it atomic per key
func (r *userRepository) Upsert(ctx context.Context, user *model.User) error {
	if err := user.Validate(); err != nil {
		return goerr.Wrap(err, "invalid user")
	}

	_, err := r.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (team_id, user_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			last_avatar_change = EXCLUDED.last_avatar_change,
			update_frequency_seconds = EXCLUDED.update_frequency_seconds,
			valid = EXCLUDED.valid,
			updated_at = EXCLUDED.updated_at`, r.table, userColumns),
		string(user.TeamID), string(user.UserID), string(user.AccessToken), user.LastAvatarChange,
		user.UpdateFrequencySeconds, user.Valid, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return goerr.Wrap(err, "failed to upsert user", goerr.V("key", user.Key().String()))
	}
	return nil
}
