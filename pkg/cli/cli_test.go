package cli_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/proteus/pkg/cli"
	"github.com/secmon-lab/proteus/pkg/domain/interfaces"
	"github.com/secmon-lab/proteus/pkg/domain/model"
)

func TestRun_TickOnEmptyStore(t *testing.T) {
	err := cli.Run(context.Background(), []string{
		"proteus", "tick",
		"--repository-backend", "memory",
		"--tick-timeout", "5s",
	}, "test")
	gt.NoError(t, err)
}

func TestRun_UsersList(t *testing.T) {
	err := cli.Run(context.Background(), []string{
		"proteus", "users", "--repository-backend", "memory", "list",
	}, "test")
	gt.NoError(t, err)
}

func TestRun_UsersResetUnknownUser(t *testing.T) {
	err := cli.Run(context.Background(), []string{
		"proteus", "users", "--repository-backend", "memory",
		"reset", "--team", "T1", "--user", "U1",
	}, "test")
	gt.Error(t, err).Is(interfaces.ErrNotFound)
}

func TestRun_ServeRequiresSlackCredentials(t *testing.T) {
	t.Setenv("PROTEUS_SLACK_CLIENT_ID", "")
	t.Setenv("PROTEUS_SLACK_CLIENT_SECRET", "")
	t.Setenv("PROTEUS_SLACK_BOT_TOKEN", "")

	err := cli.Run(context.Background(), []string{
		"proteus", "serve", "--repository-backend", "memory",
	}, "test")
	gt.Error(t, err).Is(model.ErrConfiguration)
}

func TestRun_MigrateRequiresProject(t *testing.T) {
	t.Setenv("PROTEUS_FIRESTORE_PROJECT_ID", "")
	err := cli.Run(context.Background(), []string{"proteus", "migrate", "--dry-run"}, "test")
	gt.Error(t, err).Is(model.ErrConfiguration)
}
