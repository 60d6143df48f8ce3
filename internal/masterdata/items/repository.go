package items

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bagline-erp/bagline/internal/platform/db"
	"github.com/bagline-erp/bagline/internal/shared"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Item, int, error)
	Get(ctx context.Context, id uuid.UUID) (Item, error)
	Create(ctx context.Context, item Item) (Item, error)
	Update(ctx context.Context, id uuid.UUID, item Item) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Purge(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const itemColumns = `id, item_code, item_name, standard_bag_weight, is_active, created_at, updated_at`

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Item, int, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM items WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		clause := ` AND (item_code ILIKE $` + strconv.Itoa(argCount) + ` OR item_name ILIKE $` + strconv.Itoa(argCount) + `)`
		query += clause
		countQuery += clause
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.ActiveOnly {
		query += ` AND is_active`
		countQuery += ` AND is_active`
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY item_code`
	argCount++
	query += ` LIMIT $` + strconv.Itoa(argCount)
	args = append(args, filters.Limit)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, filters.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Code, &it.Name, &it.StandardBagWeight, &it.IsActive, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, it)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Item, error) {
	var it Item
	err := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id).
		Scan(&it.ID, &it.Code, &it.Name, &it.StandardBagWeight, &it.IsActive, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, shared.NotFound("item %s not found", id)
	}
	return it, err
}

func (r *repository) Create(ctx context.Context, item Item) (Item, error) {
	item.ID = uuid.New()
	err := r.pool.QueryRow(ctx, `INSERT INTO items (id, item_code, item_name, standard_bag_weight, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, TRUE, NOW(), NOW()) RETURNING created_at, updated_at`,
		item.ID, item.Code, item.Name, item.StandardBagWeight).Scan(&item.CreatedAt, &item.UpdatedAt)
	if db.IsUniqueViolation(err, "") {
		return Item{}, shared.DuplicateKey("item code %q already exists", item.Code)
	}
	if err != nil {
		return Item{}, err
	}
	item.IsActive = true
	return item, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, item Item) error {
	tag, err := r.pool.Exec(ctx, `UPDATE items SET item_name = $1, standard_bag_weight = $2, updated_at = NOW() WHERE id = $3`,
		item.Name, item.StandardBagWeight, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("item %s not found", id)
	}
	return nil
}

func (r *repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE items SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("item %s not found", id)
	}
	return nil
}

func (r *repository) Purge(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if db.IsForeignKeyViolation(err) {
		return shared.Invariant("item %s has dependent batches; deactivate instead", id)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("item %s not found", id)
	}
	return nil
}
