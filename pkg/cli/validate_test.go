package cli_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/proteus/pkg/cli"
)

func TestRun_ValidateCommand_DefaultTemplates(t *testing.T) {
	err := cli.Run(context.Background(), []string{"proteus", "validate"}, "test")
	gt.NoError(t, err)
}

func TestRun_ValidateCommand_ValidViewConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "view.toml")
	content := `
frequency_option = '''{ "text": { "type": "plain_text", "text": "{OPTION_TEXT}" }, "value": "{OPTION_VALUE}" }'''
`
	gt.NoError(t, os.WriteFile(path, []byte(content), 0o600)).Required()

	err := cli.Run(context.Background(), []string{"proteus", "validate", "--view-config", path}, "test")
	gt.NoError(t, err)
}

func TestRun_ValidateCommand_BrokenHomeTab(t *testing.T) {
	path := filepath.Join(t.TempDir(), "view.toml")
	content := `
home_tab = '''{ "user_id": "{USER_ID}", "view": { "type": "home", "blocks": [ {OPTION_LIST '''
`
	gt.NoError(t, os.WriteFile(path, []byte(content), 0o600)).Required()

	err := cli.Run(context.Background(), []string{"proteus", "validate", "--view-config", path}, "test")
	gt.Error(t, err)
}

func TestRun_ValidateCommand_MissingViewConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")
	err := cli.Run(context.Background(), []string{"proteus", "validate", "--view-config", path}, "test")
	gt.Error(t, err)
}

func TestRun_ValidateCommand_CheckMemoryDB(t *testing.T) {
	err := cli.Run(context.Background(), []string{
		"proteus", "validate",
		"--check-db",
		"--repository-backend", "memory",
	}, "test")
	gt.NoError(t, err)
}
