package memory

import (
	"github.com/secmon-lab/proteus/pkg/domain/interfaces"
)

// Repository is an alias for Memory to match the pattern
type Repository = Memory

// Memory keeps all records in process memory. Used for tests and development.
type Memory struct {
	user         *userRepository
	workspaceBot *workspaceBotRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		user:         newUserRepository(),
		workspaceBot: newWorkspaceBotRepository(),
	}
}

func (m *Memory) User() interfaces.UserRepository {
	return m.user
}

func (m *Memory) WorkspaceBot() interfaces.WorkspaceBotRepository {
	return m.workspaceBot
}

func (m *Memory) Close() error {
	return nil
}
