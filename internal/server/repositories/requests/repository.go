// Package requests is the request ledger: service, sell and buy tickets with
// their admin-owned status and notes.
package requests

import (
	"context"

	"github.com/dmitrijs2005/laplink/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, req *models.Request) (*models.Request, error)
	GetByID(ctx context.Context, id string) (*models.Request, error)
	// ListByOwner returns the owner's requests of a category, newest first.
	ListByOwner(ctx context.Context, ownerID string, category models.Category) ([]*models.Request, error)
	// List returns requests across all owners with Owner populated.
	List(ctx context.Context, filter models.RequestFilter) ([]*models.Request, error)
	// UpdateStatus sets status and, when notes is non-nil, admin notes, but
	// only while the stored status still equals from. It returns
	// common.ErrorNotFound when no row matched.
	UpdateStatus(ctx context.Context, id string, from, to models.Status, notes *string) (*models.Request, error)
}
