package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrijs2005/laplink/internal/common"
	"github.com/dmitrijs2005/laplink/internal/server/models"
	"github.com/google/uuid"
)

type requestRepo struct {
	m *InMemoryRepositoryManager
}

func (r *requestRepo) Create(_ context.Context, req *models.Request) (*models.Request, error) {
	if req.Payload == nil {
		return nil, fmt.Errorf("%w: empty payload", common.ErrValidation)
	}

	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.Kind = req.Payload.Kind()
	if req.Status == "" {
		req.Status = models.StatusNew
	}
	now := time.Now()
	req.CreatedAt, req.UpdatedAt = now, now

	r.m.seq++
	stored := *req
	stored.Owner = nil
	r.m.requests[req.ID] = storedRequest{req: stored, seq: r.m.seq}
	return req, nil
}

func (r *requestRepo) GetByID(_ context.Context, id string) (*models.Request, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	s, ok := r.m.requests[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	req := s.req
	return &req, nil
}

func (r *requestRepo) ListByOwner(_ context.Context, ownerID string, category models.Category) ([]*models.Request, error) {
	kinds := category.Kinds()
	if len(kinds) == 0 {
		return nil, fmt.Errorf("%w: unknown category %q", common.ErrValidation, category)
	}
	return r.collect(func(req *models.Request) bool {
		return req.OwnerID == ownerID && slices.Contains(kinds, req.Kind)
	}, false), nil
}

func (r *requestRepo) List(_ context.Context, filter models.RequestFilter) ([]*models.Request, error) {
	kinds := filter.Category.Kinds()
	if filter.Kind != "" {
		kinds = []models.Kind{filter.Kind}
	}
	if len(kinds) == 0 {
		return nil, fmt.Errorf("%w: unknown category %q", common.ErrValidation, filter.Category)
	}
	return r.collect(func(req *models.Request) bool {
		return slices.Contains(kinds, req.Kind) && (filter.Status == "" || req.Status == filter.Status)
	}, true), nil
}

func (r *requestRepo) UpdateStatus(_ context.Context, id string, from, to models.Status, notes *string) (*models.Request, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	s, ok := r.m.requests[id]
	if !ok || s.req.Status != from {
		return nil, common.ErrorNotFound
	}
	s.req.Status = to
	if notes != nil {
		s.req.AdminNotes = *notes
	}
	s.req.UpdatedAt = time.Now()
	r.m.requests[id] = s

	req := s.req
	return &req, nil
}

// collect returns matching requests newest first, optionally with owners.
func (r *requestRepo) collect(match func(*models.Request) bool, withOwner bool) []*models.Request {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var found []storedRequest
	for _, s := range r.m.requests {
		if match(&s.req) {
			found = append(found, s)
		}
	}
	slices.SortFunc(found, func(a, b storedRequest) int {
		return int(b.seq - a.seq)
	})

	out := make([]*models.Request, 0, len(found))
	for _, s := range found {
		req := s.req
		if withOwner {
			if u, ok := r.m.users[req.OwnerID]; ok {
				req.Owner = &models.Owner{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone}
			}
		}
		out = append(out, &req)
	}
	return out
}
