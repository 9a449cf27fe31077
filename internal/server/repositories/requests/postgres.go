package requests

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/laplink/internal/common"
	"github.com/dmitrijs2005/laplink/internal/dbx"
	"github.com/dmitrijs2005/laplink/internal/server/models"
	"github.com/google/uuid"
)

const requestColumns = `id, owner_id, kind, payload, status, admin_notes, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, req *models.Request) (*models.Request, error) {
	if req.Payload == nil {
		return nil, fmt.Errorf("%w: empty payload", common.ErrValidation)
	}
	raw, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.Kind = req.Payload.Kind()
	if req.Status == "" {
		req.Status = models.StatusNew
	}

	query :=
		`INSERT INTO requests (id, owner_id, kind, payload, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`

	err = r.db.QueryRowContext(ctx, query, req.ID, req.OwnerID, string(req.Kind), string(raw), string(req.Status)).
		Scan(&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return req, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = $1`

	req, err := scanRequest(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, err
	}
	return req, nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string, category models.Category) ([]*models.Request, error) {
	kinds := category.Kinds()
	if len(kinds) == 0 {
		return nil, fmt.Errorf("%w: unknown category %q", common.ErrValidation, category)
	}

	args := []any{ownerID}
	in := placeholders(&args, kinds)

	query := `SELECT ` + requestColumns + ` FROM requests
		 WHERE owner_id = $1 AND kind IN (` + in + `)
		 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) List(ctx context.Context, filter models.RequestFilter) ([]*models.Request, error) {
	kinds := filter.Category.Kinds()
	if filter.Kind != "" {
		kinds = []models.Kind{filter.Kind}
	}
	if len(kinds) == 0 {
		return nil, fmt.Errorf("%w: unknown category %q", common.ErrValidation, filter.Category)
	}

	var args []any
	var sb strings.Builder
	sb.WriteString(`SELECT r.id, r.owner_id, r.kind, r.payload, r.status, r.admin_notes, r.created_at, r.updated_at,
		 u.name, u.email, u.phone
		 FROM requests r JOIN users u ON u.id = r.owner_id
		 WHERE r.kind IN (`)
	sb.WriteString(placeholders(&args, kinds))
	sb.WriteString(`)`)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		fmt.Fprintf(&sb, ` AND r.status = $%d`, len(args))
	}
	sb.WriteString(` ORDER BY r.created_at DESC`)

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.Request
	for rows.Next() {
		var (
			owner models.Owner
			phone sql.NullString
		)
		req, err := scanRequest(rows, &owner.Name, &owner.Email, &phone)
		if err != nil {
			return nil, err
		}
		owner.ID = req.OwnerID
		owner.Phone = phone.String
		req.Owner = &owner
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, from, to models.Status, notes *string) (*models.Request, error) {
	query :=
		`UPDATE requests SET status = $3, admin_notes = COALESCE($4, admin_notes), updated_at = now()
		 WHERE id = $1 AND status = $2
		 RETURNING ` + requestColumns

	var notesArg sql.NullString
	if notes != nil {
		notesArg = sql.NullString{String: *notes, Valid: true}
	}

	req, err := scanRequest(r.db.QueryRowContext(ctx, query, id, string(from), string(to), notesArg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, err
	}
	return req, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRequest reads requestColumns followed by any extra destinations.
func scanRequest(s scanner, extra ...any) (*models.Request, error) {
	var (
		req   models.Request
		kind  string
		stat  string
		raw   []byte
		notes sql.NullString
	)

	dest := append([]any{&req.ID, &req.OwnerID, &kind, &raw, &stat, &notes, &req.CreatedAt, &req.UpdatedAt}, extra...)
	if err := s.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	payload, err := models.DecodePayload(models.Kind(kind), raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	req.Kind = models.Kind(kind)
	req.Status = models.Status(stat)
	req.AdminNotes = notes.String
	req.Payload = payload
	return &req, nil
}

// placeholders appends kinds to args and returns the matching "$n, $m" list.
func placeholders(args *[]any, kinds []models.Kind) string {
	ph := make([]string, 0, len(kinds))
	for _, k := range kinds {
		*args = append(*args, string(k))
		ph = append(ph, fmt.Sprintf("$%d", len(*args)))
	}
	return strings.Join(ph, ", ")
}
