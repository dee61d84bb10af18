package repomanager

import (
	"context"

	"github.com/dmitrijs2005/accounts/internal/server/repositories/users"
)

// InMemoryRepositoryManager serves the memory:// DSN. Migrations and Close
// are no-ops.
type InMemoryRepositoryManager struct {
	users *users.MemoryRepository
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{users: users.NewMemoryRepository()}
}

func (m *InMemoryRepositoryManager) RunMigrations(context.Context) error { return nil }

func (m *InMemoryRepositoryManager) Users() users.Repository { return m.users }

func (m *InMemoryRepositoryManager) Close(context.Context) error { return nil }
