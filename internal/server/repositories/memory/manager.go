// Package memory is an in-process implementation of the repositories. It
// follows the Postgres implementations' semantics (conditional OTP updates,
// compare-and-set status changes) and backs service and handler tests.
package memory

import (
	"context"
	"database/sql"
	"maps"
	"sync"

	"github.com/dmitrijs2005/laplink/internal/dbx"
	"github.com/dmitrijs2005/laplink/internal/server/models"
	"github.com/dmitrijs2005/laplink/internal/server/repositories/requests"
	"github.com/dmitrijs2005/laplink/internal/server/repositories/users"
)

// InMemoryRepositoryManager vends repositories sharing one store. The DBTX
// arguments are ignored.
type InMemoryRepositoryManager struct {
	mu       sync.Mutex
	users    map[string]models.User
	emails   map[string]string
	requests map[string]storedRequest
	seq      int64
}

type storedRequest struct {
	req models.Request
	seq int64
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{
		users:    map[string]models.User{},
		emails:   map[string]string{},
		requests: map[string]storedRequest{},
	}
}

func (m *InMemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}

func (m *InMemoryRepositoryManager) Users(dbx.DBTX) users.Repository {
	return &userRepo{m: m}
}

func (m *InMemoryRepositoryManager) Requests(dbx.DBTX) requests.Repository {
	return &requestRepo{m: m}
}

// WithTx snapshots the store and restores it when fn fails. Concurrent
// units of work are not isolated from each other.
func (m *InMemoryRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	m.mu.Lock()
	u, e, r, seq := maps.Clone(m.users), maps.Clone(m.emails), maps.Clone(m.requests), m.seq
	m.mu.Unlock()

	if err := fn(ctx, nil); err != nil {
		m.mu.Lock()
		m.users, m.emails, m.requests, m.seq = u, e, r, seq
		m.mu.Unlock()
		return err
	}
	return nil
}
