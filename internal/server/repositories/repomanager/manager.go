package repomanager

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/accounts/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Users() users.Repository
	Close(ctx context.Context) error
}

const memoryDSN = "memory://"

// New picks the backend from the DSN scheme: mongodb:// and mongodb+srv://
// select MongoDB, memory:// keeps everything in process, anything else is
// handed to the pgx driver.
func New(ctx context.Context, dsn, mongoDatabase string) (RepositoryManager, error) {
	if dsn == memoryDSN {
		return NewInMemoryRepositoryManager(), nil
	}
	if isMongoDSN(dsn) {
		m, err := NewMongoRepositoryManager(ctx, dsn, mongoDatabase)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	m, err := OpenPostgres(dsn)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func isMongoDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "mongodb://") || strings.HasPrefix(dsn, "mongodb+srv://")
}
