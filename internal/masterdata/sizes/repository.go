package sizes

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bagline-erp/bagline/internal/platform/db"
	"github.com/bagline-erp/bagline/internal/shared"
)

type Repository interface {
	List(ctx context.Context, activeOnly bool) ([]Size, error)
	Get(ctx context.Context, id uuid.UUID) (Size, error)
	Create(ctx context.Context, label string) (Size, error)
	Update(ctx context.Context, id uuid.UUID, label string) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Purge(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, activeOnly bool) ([]Size, error) {
	query := `SELECT id, size_label, is_active, created_at, updated_at FROM sizes`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY size_label`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Size
	for rows.Next() {
		var s Size
		if err := rows.Scan(&s.ID, &s.Label, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Size, error) {
	var s Size
	err := r.pool.QueryRow(ctx, `SELECT id, size_label, is_active, created_at, updated_at FROM sizes WHERE id = $1`, id).
		Scan(&s.ID, &s.Label, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Size{}, shared.NotFound("size %s not found", id)
	}
	return s, err
}

func (r *repository) Create(ctx context.Context, label string) (Size, error) {
	s := Size{ID: uuid.New(), Label: label, IsActive: true}
	err := r.pool.QueryRow(ctx, `INSERT INTO sizes (id, size_label, is_active, created_at, updated_at)
VALUES ($1, $2, TRUE, NOW(), NOW()) RETURNING created_at, updated_at`, s.ID, label).Scan(&s.CreatedAt, &s.UpdatedAt)
	if db.IsUniqueViolation(err, "") {
		return Size{}, shared.DuplicateKey("size label %q already exists", label)
	}
	if err != nil {
		return Size{}, err
	}
	return s, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, label string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE sizes SET size_label = $1, updated_at = NOW() WHERE id = $2`, label, id)
	if db.IsUniqueViolation(err, "") {
		return shared.DuplicateKey("size label %q already exists", label)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("size %s not found", id)
	}
	return nil
}

func (r *repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE sizes SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("size %s not found", id)
	}
	return nil
}

func (r *repository) Purge(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sizes WHERE id = $1`, id)
	if db.IsForeignKeyViolation(err) {
		return shared.Invariant("size %s has dependent batches; deactivate instead", id)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("size %s not found", id)
	}
	return nil
}
