package config_test

import (
	"context"
	"os"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/proteus/pkg/cli/config"
	"github.com/secmon-lab/proteus/pkg/domain/model"
	"github.com/secmon-lab/proteus/pkg/repository/memory"
	"github.com/secmon-lab/proteus/pkg/service/metrics"
)

func TestRepositoryConfigure(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		repo, err := config.NewRepositoryForTest(config.BackendMemory, "", "", "").Configure(ctx, nil)
		gt.NoError(t, err).Required()
		defer repo.Close()
		_, ok := repo.(*memory.Memory)
		gt.Bool(t, ok).True()
	})

	t.Run("firestore requires project ID", func(t *testing.T) {
		_, err := config.NewRepositoryForTest(config.BackendFirestore, "", "", "users").Configure(ctx, nil)
		gt.Error(t, err).Is(model.ErrConfiguration)
	})

	t.Run("postgres requires DSN", func(t *testing.T) {
		_, err := config.NewRepositoryForTest(config.BackendPostgres, "", "", "users").Configure(ctx, nil)
		gt.Error(t, err).Is(model.ErrConfiguration)
	})

	t.Run("postgres rejects bad table name", func(t *testing.T) {
		_, err := config.NewRepositoryForTest(config.BackendPostgres, "", "postgres://localhost/none", "users; drop").Configure(ctx, nil)
		gt.Error(t, err).Is(model.ErrConfiguration)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := config.NewRepositoryForTest("dynamo", "", "", "").Configure(ctx, nil)
		gt.Error(t, err).Is(model.ErrConfiguration)
	})

	t.Run("postgres exports pool metrics", func(t *testing.T) {
		dsn := os.Getenv("TEST_POSTGRES_DSN")
		if dsn == "" {
			t.Skip("TEST_POSTGRES_DSN is not set")
		}

		m := metrics.New()
		repo, err := config.NewRepositoryForTest(config.BackendPostgres, "", dsn, "config_test_users").Configure(ctx, m)
		gt.NoError(t, err).Required()
		defer repo.Close()

		families, err := m.Registry().Gather()
		gt.NoError(t, err).Required()
		found := false
		for _, f := range families {
			if f.GetName() == "proteus_db_pool_total_conns" {
				found = true
			}
		}
		gt.Bool(t, found).True()
	})
}

func TestRepositoryUsersCollection(t *testing.T) {
	gt.Value(t, config.NewRepositoryForTest(config.BackendFirestore, "p", "", "").UsersCollection()).Equal("users")
	gt.Value(t, config.NewRepositoryForTest(config.BackendFirestore, "p", "", "avatars").UsersCollection()).Equal("avatars")
}
