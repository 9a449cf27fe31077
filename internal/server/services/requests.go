package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/laplink/internal/common"
	"github.com/dmitrijs2005/laplink/internal/dbx"
	"github.com/dmitrijs2005/laplink/internal/logging"
	"github.com/dmitrijs2005/laplink/internal/server/auth"
	"github.com/dmitrijs2005/laplink/internal/server/lifecycle"
	"github.com/dmitrijs2005/laplink/internal/server/models"
	"github.com/dmitrijs2005/laplink/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// TransitionInput is an admin status change. Notes, when set, replace the
// stored admin notes.
type TransitionInput struct {
	ID     string
	Status models.Status
	Notes  *string
}

// RequestService creates requests and moves them through their lifecycle.
type RequestService struct {
	db       dbx.DBTX
	repos    repomanager.RepositoryManager
	notifier Notifier
	logger   logging.Logger
	async    dispatcher
}

func NewRequestService(db dbx.DBTX, repos repomanager.RepositoryManager, notifier Notifier, logger logging.Logger) *RequestService {
	return &RequestService{
		db:       db,
		repos:    repos,
		notifier: notifier,
		logger:   logger,
		async:    newDispatcher(logger),
	}
}

// Create validates payload, stores it as a NEW request of category and
// alerts the admin in the background.
func (s *RequestService) Create(ctx context.Context, ownerID string, category models.Category, payload models.Payload) (*models.Request, error) {
	if payload == nil {
		return nil, fmt.Errorf("%w: missing payload", common.ErrValidation)
	}
	if payload.Kind().Category() != category {
		return nil, fmt.Errorf("%w: request type %q is not allowed here", common.ErrValidation, payload.Kind())
	}
	payload.Normalize()
	if err := validateInput(payload); err != nil {
		return nil, err
	}
	if scoped, ok := payload.(models.OwnerScoped); ok {
		if err := scoped.ValidateOwner(ownerID); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
		}
	}

	req, err := s.repos.Requests(s.db).Create(ctx, &models.Request{
		OwnerID: ownerID,
		Payload: payload,
		Status:  lifecycle.For(category).Initial(),
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "request created", "request_id", req.ID, "kind", req.Kind)

	alert := *req
	if owner, err := s.repos.Users(s.db).GetByID(ctx, ownerID); err == nil {
		alert.Owner = &models.Owner{ID: owner.ID, Name: owner.Name, Email: owner.Email, Phone: owner.Phone}
	}
	s.async.dispatch(ctx, "admin_new_request", func(ctx context.Context) error {
		return s.notifier.NotifyAdmin(ctx, &alert)
	})

	return req, nil
}

// ListMine returns the caller's requests of a category, newest first.
func (s *RequestService) ListMine(ctx context.Context, ownerID string, category models.Category) ([]*models.Request, error) {
	return s.repos.Requests(s.db).ListByOwner(ctx, ownerID, category)
}

// ListAll returns every request matching filter with owner contacts. Admin only.
func (s *RequestService) ListAll(ctx context.Context, caller auth.Identity, filter models.RequestFilter) ([]*models.Request, error) {
	if !caller.IsAdmin() {
		return nil, common.ErrForbidden
	}
	machine := lifecycle.For(filter.Category)
	if machine == nil {
		return nil, fmt.Errorf("%w: unknown category %q", common.ErrValidation, filter.Category)
	}
	if filter.Kind != "" && filter.Kind.Category() != filter.Category {
		return nil, fmt.Errorf("%w: unknown type %q", common.ErrValidation, filter.Kind)
	}
	if filter.Status != "" && !machine.Known(filter.Status) {
		return nil, fmt.Errorf("%w %q", lifecycle.ErrUnknownStatus, filter.Status)
	}
	return s.repos.Requests(s.db).List(ctx, filter)
}

// Transition moves a request of category to a new status along its
// lifecycle graph. The write only lands if the status is still the one
// that was checked; otherwise lifecycle.ErrStatusConflict is returned.
func (s *RequestService) Transition(ctx context.Context, caller auth.Identity, category models.Category, in TransitionInput) (*models.Request, error) {
	if !caller.IsAdmin() {
		return nil, common.ErrForbidden
	}
	if in.Status == "" {
		return nil, fmt.Errorf("%w: status is required", common.ErrValidation)
	}

	// Ids are UUIDs; anything else cannot resolve.
	if uuid.Validate(in.ID) != nil {
		return nil, common.ErrorNotFound
	}

	repo := s.repos.Requests(s.db)
	current, err := repo.GetByID(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if current.Kind.Category() != category {
		return nil, common.ErrorNotFound
	}

	if err := lifecycle.For(category).Check(current.Status, in.Status); err != nil {
		return nil, err
	}

	updated, err := repo.UpdateStatus(ctx, current.ID, current.Status, in.Status, in.Notes)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: %s", lifecycle.ErrStatusConflict, current.ID)
		}
		return nil, err
	}

	s.logger.Info(ctx, "request status changed",
		"request_id", updated.ID, "from", current.Status, "to", updated.Status, "admin_id", caller.UserID)
	return updated, nil
}
