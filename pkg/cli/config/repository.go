package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/proteus/pkg/domain/interfaces"
	"github.com/secmon-lab/proteus/pkg/domain/model"
	"github.com/secmon-lab/proteus/pkg/repository/firestore"
	"github.com/secmon-lab/proteus/pkg/repository/memory"
	"github.com/secmon-lab/proteus/pkg/repository/postgres"
	"github.com/secmon-lab/proteus/pkg/service/metrics"
	"github.com/secmon-lab/proteus/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

const (
	BackendMemory    = "memory"
	BackendFirestore = "firestore"
	BackendPostgres  = "postgres"
)

// Repository holds CLI flags for repository backend configuration
type Repository struct {
	backend          string
	projectID        string
	databaseID       string
	collectionPrefix string
	postgresDSN      string
	tableName        string
}

// Flags returns CLI flags for repository configuration
func (r *Repository) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "repository-backend",
			Usage:       "Repository backend type (firestore, postgres or memory)",
			Category:    "Repository",
			Value:       BackendFirestore,
			Sources:     cli.EnvVars("PROTEUS_REPOSITORY_BACKEND"),
			Destination: &r.backend,
		},
		&cli.StringFlag{
			Name:        "table-name",
			Usage:       "Name of the user table (firestore collection or postgres table)",
			Category:    "Repository",
			Value:       postgres.DefaultTableName,
			Sources:     cli.EnvVars("PROTEUS_TABLE_NAME"),
			Destination: &r.tableName,
		},
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Firestore Project ID (required when using firestore backend)",
			Category:    "Repository",
			Sources:     cli.EnvVars("PROTEUS_FIRESTORE_PROJECT_ID"),
			Destination: &r.projectID,
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore Database ID",
			Category:    "Repository",
			Sources:     cli.EnvVars("PROTEUS_FIRESTORE_DATABASE_ID"),
			Destination: &r.databaseID,
		},
		&cli.StringFlag{
			Name:        "firestore-collection-prefix",
			Usage:       "Prefix for every Firestore collection name",
			Category:    "Repository",
			Sources:     cli.EnvVars("PROTEUS_FIRESTORE_COLLECTION_PREFIX"),
			Destination: &r.collectionPrefix,
		},
		&cli.StringFlag{
			Name:        "postgres-dsn",
			Usage:       "PostgreSQL connection string (required when using postgres backend)",
			Category:    "Repository",
			Sources:     cli.EnvVars("PROTEUS_POSTGRES_DSN"),
			Destination: &r.postgresDSN,
		},
	}
}

func (r Repository) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("backend", r.backend),
		slog.String("table_name", r.tableName),
		slog.String("firestore_project_id", r.projectID),
		slog.String("firestore_database_id", r.databaseID),
		slog.Int("postgres_dsn.len", len(r.postgresDSN)),
	)
}

// Backend returns the configured backend type
func (r *Repository) Backend() string {
	return r.backend
}

// ProjectID returns the Firestore project ID
func (r *Repository) ProjectID() string {
	return r.projectID
}

// DatabaseID returns the Firestore database ID
func (r *Repository) DatabaseID() string {
	return r.databaseID
}

// UsersCollection returns the full Firestore collection name of users
func (r *Repository) UsersCollection() string {
	name := r.tableName
	if name == "" {
		name = firestore.DefaultUsersCollection
	}
	if r.collectionPrefix != "" {
		return r.collectionPrefix + "_" + name
	}
	return name
}

// Configure initializes and returns a repository based on the configured backend.
// The caller is responsible for calling Close() on the returned repository. When m is not nil
// and the backend has a connection pool, its statistics are exported.
func (r *Repository) Configure(ctx context.Context, m *metrics.Metrics) (interfaces.Repository, error) {
	switch r.backend {
	case BackendFirestore:
		if r.projectID == "" {
			return nil, goerr.Wrap(model.ErrConfiguration, "firestore-project-id is required when using firestore backend")
		}
		repo, err := firestore.New(ctx, r.projectID, r.databaseID,
			firestore.WithCollectionPrefix(r.collectionPrefix),
			firestore.WithUsersCollection(r.tableName),
		)
		if err != nil {
			return nil, goerr.Wrap(model.ErrConfiguration, "failed to initialize firestore repository",
				goerr.V("cause", err.Error()))
		}
		logging.Default().Info("Using Firestore repository",
			"project_id", r.projectID,
			"database_id", r.databaseID,
			"collection", r.UsersCollection(),
		)
		return repo, nil

	case BackendPostgres:
		if r.postgresDSN == "" {
			return nil, goerr.Wrap(model.ErrConfiguration, "postgres-dsn is required when using postgres backend")
		}
		repo, err := postgres.New(ctx, r.postgresDSN, r.tableName)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize postgres repository")
		}
		if m != nil {
			m.RegisterDBPoolCollector(repo.PoolStats)
		}
		logging.Default().Info("Using PostgreSQL repository", "table", r.tableName)
		return repo, nil

	case BackendMemory:
		logging.Default().Info("Using in-memory repository (development mode)")
		return memory.New(), nil

	default:
		return nil, goerr.Wrap(model.ErrConfiguration, "invalid repository backend", goerr.V("backend", r.backend))
	}
}
