// Package carriers manages trucking companies.
package carriers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bagline-erp/bagline/internal/platform/db"
	"github.com/bagline-erp/bagline/internal/shared"
)

type Carrier struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Code         string    `json:"code"`
	ContactName  string    `json:"contact_name"`
	ContactPhone string    `json:"contact_phone"`
	ContactEmail string    `json:"contact_email"`
	Notes        string    `json:"notes"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UpsertRequest is the payload for creating or updating a carrier.
type UpsertRequest struct {
	Name         string `json:"name" validate:"required,max=100"`
	Code         string `json:"code" validate:"required,max=20"`
	ContactName  string `json:"contact_name" validate:"max=100"`
	ContactPhone string `json:"contact_phone" validate:"max=20"`
	ContactEmail string `json:"contact_email" validate:"omitempty,email"`
	Notes        string `json:"notes"`
}

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Carrier, int, error)
	Get(ctx context.Context, id uuid.UUID) (Carrier, error)
	Create(ctx context.Context, c Carrier) (Carrier, error)
	Update(ctx context.Context, id uuid.UUID, c Carrier) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Purge(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const carrierColumns = `id, carrier_name, carrier_code, contact_name, contact_phone, contact_email, notes, is_active, created_at, updated_at`

func scanCarrier(row pgx.Row) (Carrier, error) {
	var c Carrier
	err := row.Scan(&c.ID, &c.Name, &c.Code, &c.ContactName, &c.ContactPhone, &c.ContactEmail,
		&c.Notes, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Carrier, int, error) {
	query := `SELECT ` + carrierColumns + ` FROM carriers WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM carriers WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		clause := ` AND (carrier_name ILIKE $` + strconv.Itoa(argCount) + ` OR carrier_code ILIKE $` + strconv.Itoa(argCount) + `)`
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

	query += ` ORDER BY carrier_code`
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

	var out []Carrier
	for rows.Next() {
		c, err := scanCarrier(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Carrier, error) {
	c, err := scanCarrier(r.pool.QueryRow(ctx, `SELECT `+carrierColumns+` FROM carriers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Carrier{}, shared.NotFound("carrier %s not found", id)
	}
	return c, err
}

func (r *repository) Create(ctx context.Context, c Carrier) (Carrier, error) {
	c.ID = uuid.New()
	err := r.pool.QueryRow(ctx, `INSERT INTO carriers (id, carrier_name, carrier_code, contact_name, contact_phone, contact_email, notes, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, NOW(), NOW()) RETURNING created_at, updated_at`,
		c.ID, c.Name, c.Code, c.ContactName, c.ContactPhone, c.ContactEmail, c.Notes).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	if db.IsUniqueViolation(err, "") {
		return Carrier{}, shared.DuplicateKey("carrier name or code already exists")
	}
	if err != nil {
		return Carrier{}, err
	}
	c.IsActive = true
	return c, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, c Carrier) error {
	tag, err := r.pool.Exec(ctx, `UPDATE carriers SET carrier_name = $1, carrier_code = $2, contact_name = $3, contact_phone = $4, contact_email = $5, notes = $6, updated_at = NOW() WHERE id = $7`,
		c.Name, c.Code, c.ContactName, c.ContactPhone, c.ContactEmail, c.Notes, id)
	if db.IsUniqueViolation(err, "") {
		return shared.DuplicateKey("carrier name or code already exists")
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("carrier %s not found", id)
	}
	return nil
}

func (r *repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE carriers SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("carrier %s not found", id)
	}
	return nil
}

func (r *repository) Purge(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM carriers WHERE id = $1`, id)
	if db.IsForeignKeyViolation(err) {
		return shared.Invariant("carrier %s has trucks; deactivate instead", id)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("carrier %s not found", id)
	}
	return nil
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Carrier, int, error) {
	return s.repo.List(ctx, filters.Normalize())
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Carrier, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, req UpsertRequest) (Carrier, error) {
	c, err := fromRequest(req)
	if err != nil {
		return Carrier{}, err
	}
	return s.repo.Create(ctx, c)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpsertRequest) (Carrier, error) {
	c, err := fromRequest(req)
	if err != nil {
		return Carrier{}, err
	}
	if err := s.repo.Update(ctx, id, c); err != nil {
		return Carrier{}, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.repo.SetActive(ctx, id, false)
}

func (s *Service) Reactivate(ctx context.Context, id uuid.UUID) error {
	return s.repo.SetActive(ctx, id, true)
}

func (s *Service) Purge(ctx context.Context, id uuid.UUID) error {
	return s.repo.Purge(ctx, id)
}

func fromRequest(req UpsertRequest) (Carrier, error) {
	name := strings.TrimSpace(req.Name)
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if name == "" || code == "" {
		return Carrier{}, shared.Validation("carrier name and code are required")
	}
	return Carrier{
		Name:         name,
		Code:         code,
		ContactName:  req.ContactName,
		ContactPhone: req.ContactPhone,
		ContactEmail: req.ContactEmail,
		Notes:        req.Notes,
	}, nil
}
