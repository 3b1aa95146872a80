package postgres

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/proteus/pkg/domain/interfaces"
	"github.com/secmon-lab/proteus/pkg/domain/model"
)

// DefaultTableName is the users table used when no table name is configured
const DefaultTableName = "users"

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

type Postgres struct {
	pool         *pgxpool.Pool
	user         *userRepository
	workspaceBot *workspaceBotRepository
}

var _ interfaces.Repository = &Postgres{}

// New connects to the database and creates the tables if they do not exist yet
func New(ctx context.Context, dsn, tableName string) (*Postgres, error) {
	if tableName == "" {
		tableName = DefaultTableName
	}
	if !tableNamePattern.MatchString(tableName) {
		return nil, goerr.Wrap(model.ErrConfiguration, "invalid table name", goerr.V("table", tableName))
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create postgres pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, goerr.Wrap(err, "failed to connect to postgres")
	}

	p := &Postgres{
		pool:         pool,
		user:         &userRepository{pool: pool, table: pgx.Identifier{tableName}.Sanitize()},
		workspaceBot: &workspaceBotRepository{pool: pool, table: pgx.Identifier{tableName + "_workspace_bots"}.Sanitize()},
	}

	if err := p.ensureSchema(ctx, tableName); err != nil {
		pool.Close()
		return nil, err
	}

	return p, nil
}

func (p *Postgres) ensureSchema(ctx context.Context, tableName string) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			team_id                  TEXT        NOT NULL,
			user_id                  TEXT        NOT NULL,
			access_token             TEXT        NOT NULL,
			last_avatar_change       TIMESTAMPTZ NULL,
			update_frequency_seconds INTEGER     NOT NULL DEFAULT 3600,
			valid                    BOOLEAN     NOT NULL DEFAULT TRUE,
			created_at               TIMESTAMPTZ NOT NULL,
			updated_at               TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (team_id, user_id)
		)`, p.user.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (valid)`,
			pgx.Identifier{tableName + "_valid_idx"}.Sanitize(), p.user.table),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			team_id      TEXT        PRIMARY KEY,
			bot_user_id  TEXT        NOT NULL,
			access_token TEXT        NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL
		)`, p.workspaceBot.table),
	}

	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return goerr.Wrap(err, "failed to create schema", goerr.V("table", tableName))
		}
	}
	return nil
}

func (p *Postgres) User() interfaces.UserRepository {
	return p.user
}

func (p *Postgres) WorkspaceBot() interfaces.WorkspaceBotRepository {
	return p.workspaceBot
}

// PoolStats reports connection counts for the pool collector
func (p *Postgres) PoolStats() (total, idle, acquired int32) {
	st := p.pool.Stat()
	return st.TotalConns(), st.IdleConns(), st.AcquiredConns()
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
