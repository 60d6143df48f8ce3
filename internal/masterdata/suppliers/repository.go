package suppliers

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
	List(ctx context.Context, filters shared.ListFilters) ([]Supplier, int, error)
	Get(ctx context.Context, id uuid.UUID) (Supplier, error)
	Create(ctx context.Context, supplier Supplier) (Supplier, error)
	Update(ctx context.Context, id uuid.UUID, supplier Supplier) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Purge(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const supplierColumns = `id, supplier_name, bol_prefix, next_bol_no, contact_name, contact_phone, contact_email, notes, is_active, created_at, updated_at`

func scanSupplier(row pgx.Row) (Supplier, error) {
	var s Supplier
	err := row.Scan(&s.ID, &s.Name, &s.BOLPrefix, &s.NextBOLNo, &s.ContactName, &s.ContactPhone,
		&s.ContactEmail, &s.Notes, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Supplier, int, error) {
	query := `SELECT ` + supplierColumns + ` FROM suppliers WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM suppliers WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		clause := ` AND (supplier_name ILIKE $` + strconv.Itoa(argCount) + ` OR bol_prefix ILIKE $` + strconv.Itoa(argCount) + `)`
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

	query += ` ORDER BY supplier_name`
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

	var out []Supplier
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Supplier, error) {
	s, err := scanSupplier(r.pool.QueryRow(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, shared.NotFound("supplier %s not found", id)
	}
	return s, err
}

func (r *repository) Create(ctx context.Context, supplier Supplier) (Supplier, error) {
	supplier.ID = uuid.New()
	if supplier.NextBOLNo < 1 {
		supplier.NextBOLNo = 1
	}
	err := r.pool.QueryRow(ctx, `INSERT INTO suppliers (id, supplier_name, bol_prefix, next_bol_no, contact_name, contact_phone, contact_email, notes, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, NOW(), NOW()) RETURNING created_at, updated_at`,
		supplier.ID, supplier.Name, supplier.BOLPrefix, supplier.NextBOLNo,
		supplier.ContactName, supplier.ContactPhone, supplier.ContactEmail, supplier.Notes).
		Scan(&supplier.CreatedAt, &supplier.UpdatedAt)
	if db.IsUniqueViolation(err, "suppliers_bol_prefix_key") {
		return Supplier{}, shared.DuplicateKey("BOL prefix %q already exists", supplier.BOLPrefix)
	}
	if db.IsUniqueViolation(err, "") {
		return Supplier{}, shared.DuplicateKey("supplier name %q already exists", supplier.Name)
	}
	if err != nil {
		return Supplier{}, err
	}
	supplier.IsActive = true
	return supplier, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, supplier Supplier) error {
	tag, err := r.pool.Exec(ctx, `UPDATE suppliers SET supplier_name = $1, bol_prefix = $2, contact_name = $3, contact_phone = $4, contact_email = $5, notes = $6, updated_at = NOW() WHERE id = $7`,
		supplier.Name, supplier.BOLPrefix, supplier.ContactName, supplier.ContactPhone, supplier.ContactEmail, supplier.Notes, id)
	if db.IsUniqueViolation(err, "suppliers_bol_prefix_key") {
		return shared.DuplicateKey("BOL prefix %q already exists", supplier.BOLPrefix)
	}
	if db.IsUniqueViolation(err, "") {
		return shared.DuplicateKey("supplier name %q already exists", supplier.Name)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("supplier %s not found", id)
	}
	return nil
}

func (r *repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE suppliers SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("supplier %s not found", id)
	}
	return nil
}

func (r *repository) Purge(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM suppliers WHERE id = $1`, id)
	if db.IsForeignKeyViolation(err) {
		return shared.Invariant("supplier %s has dependent batches or BOLs; deactivate instead", id)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("supplier %s not found", id)
	}
	return nil
}
