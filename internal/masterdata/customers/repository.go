package customers

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
	List(ctx context.Context, filters shared.ListFilters) ([]Customer, int, error)
	Get(ctx context.Context, id uuid.UUID) (Customer, error)
	Create(ctx context.Context, c Customer) (Customer, error)
	Update(ctx context.Context, id uuid.UUID, c Customer) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Purge(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const customerColumns = `id, customer_name, customer_code, customer_address, customer_city, customer_state, customer_zip, contact_name, contact_phone, contact_email, notes, is_active, created_at, updated_at`

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.Code, &c.Address, &c.City, &c.State, &c.Zip,
		&c.ContactName, &c.ContactPhone, &c.ContactEmail, &c.Notes, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Customer, int, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM customers WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		clause := ` AND (customer_name ILIKE $` + strconv.Itoa(argCount) + ` OR customer_code ILIKE $` + strconv.Itoa(argCount) + `)`
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

	query += ` ORDER BY customer_name`
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

	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Customer, error) {
	c, err := scanCustomer(r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, shared.NotFound("customer %s not found", id)
	}
	return c, err
}

func (r *repository) Create(ctx context.Context, c Customer) (Customer, error) {
	c.ID = uuid.New()
	err := r.pool.QueryRow(ctx, `INSERT INTO customers (id, customer_name, customer_code, customer_address, customer_city, customer_state, customer_zip, contact_name, contact_phone, contact_email, notes, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, TRUE, NOW(), NOW()) RETURNING created_at, updated_at`,
		c.ID, c.Name, c.Code, c.Address, c.City, c.State, c.Zip, c.ContactName, c.ContactPhone, c.ContactEmail, c.Notes).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	if db.IsUniqueViolation(err, "customers_customer_name_key") {
		return Customer{}, shared.DuplicateKey("customer name %q already exists", c.Name)
	}
	if err != nil {
		return Customer{}, err
	}
	c.IsActive = true
	return c, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, c Customer) error {
	tag, err := r.pool.Exec(ctx, `UPDATE customers SET customer_name = $1, customer_code = $2, customer_address = $3, customer_city = $4, customer_state = $5, customer_zip = $6, contact_name = $7, contact_phone = $8, contact_email = $9, notes = $10, updated_at = NOW() WHERE id = $11`,
		c.Name, c.Code, c.Address, c.City, c.State, c.Zip, c.ContactName, c.ContactPhone, c.ContactEmail, c.Notes, id)
	if db.IsUniqueViolation(err, "customers_customer_name_key") {
		return shared.DuplicateKey("customer name %q already exists", c.Name)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("customer %s not found", id)
	}
	return nil
}

func (r *repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE customers SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("customer %s not found", id)
	}
	return nil
}

func (r *repository) Purge(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if db.IsForeignKeyViolation(err) {
		return shared.Invariant("customer %s has dependent locations or BOLs; deactivate instead", id)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("customer %s not found", id)
	}
	return nil
}
