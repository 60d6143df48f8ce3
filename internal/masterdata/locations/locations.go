// Package locations manages customer delivery locations. A location name
// is unique within its customer, not globally.
package locations

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bagline-erp/bagline/internal/platform/db"
	"github.com/bagline-erp/bagline/internal/shared"
)

type Location struct {
	ID           uuid.UUID `json:"id"`
	CustomerID   uuid.UUID `json:"customer_id"`
	CustomerName string    `json:"customer_name,omitempty"`
	Name         string    `json:"name"`
	Address      string    `json:"address"`
	City         string    `json:"city"`
	State        string    `json:"state"`
	Zip          string    `json:"zip"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UpsertRequest is the payload for creating or updating a location.
type UpsertRequest struct {
	CustomerID uuid.UUID `json:"customer_id" validate:"required"`
	Name       string    `json:"name" validate:"required,max=100"`
	Address    string    `json:"address" validate:"max=200"`
	City       string    `json:"city" validate:"max=50"`
	State      string    `json:"state" validate:"max=2"`
	Zip        string    `json:"zip" validate:"max=10"`
}

type Repository interface {
	ListByCustomer(ctx context.Context, customerID uuid.UUID, activeOnly bool) ([]Location, error)
	Get(ctx context.Context, id uuid.UUID) (Location, error)
	Create(ctx context.Context, loc Location) (Location, error)
	Update(ctx context.Context, id uuid.UUID, loc Location) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Purge(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const locationColumns = `l.id, l.customer_id, c.customer_name, l.location_name, l.location_address, l.location_city, l.location_state, l.location_zip, l.is_active, l.created_at, l.updated_at`

func scanLocation(row pgx.Row) (Location, error) {
	var l Location
	err := row.Scan(&l.ID, &l.CustomerID, &l.CustomerName, &l.Name, &l.Address, &l.City, &l.State, &l.Zip,
		&l.IsActive, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

func (r *repository) ListByCustomer(ctx context.Context, customerID uuid.UUID, activeOnly bool) ([]Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations l JOIN customers c ON c.id = l.customer_id WHERE l.customer_id = $1`
	if activeOnly {
		query += ` AND l.is_active`
	}
	query += ` ORDER BY l.location_name`
	rows, err := r.pool.Query(ctx, query, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Location, error) {
	l, err := scanLocation(r.pool.QueryRow(ctx, `SELECT `+locationColumns+` FROM locations l JOIN customers c ON c.id = l.customer_id WHERE l.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Location{}, shared.NotFound("location %s not found", id)
	}
	return l, err
}

func (r *repository) Create(ctx context.Context, loc Location) (Location, error) {
	loc.ID = uuid.New()
	err := r.pool.QueryRow(ctx, `INSERT INTO locations (id, customer_id, location_name, location_address, location_city, location_state, location_zip, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, NOW(), NOW()) RETURNING created_at, updated_at`,
		loc.ID, loc.CustomerID, loc.Name, loc.Address, loc.City, loc.State, loc.Zip).
		Scan(&loc.CreatedAt, &loc.UpdatedAt)
	if db.IsUniqueViolation(err, "") {
		return Location{}, shared.DuplicateKey("location %q already exists for this customer", loc.Name)
	}
	if db.IsForeignKeyViolation(err) {
		return Location{}, shared.NotFound("customer %s not found", loc.CustomerID)
	}
	if err != nil {
		return Location{}, err
	}
	loc.IsActive = true
	return loc, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, loc Location) error {
	tag, err := r.pool.Exec(ctx, `UPDATE locations SET location_name = $1, location_address = $2, location_city = $3, location_state = $4, location_zip = $5, updated_at = NOW() WHERE id = $6`,
		loc.Name, loc.Address, loc.City, loc.State, loc.Zip, id)
	if db.IsUniqueViolation(err, "") {
		return shared.DuplicateKey("location %q already exists for this customer", loc.Name)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("location %s not found", id)
	}
	return nil
}

func (r *repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE locations SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("location %s not found", id)
	}
	return nil
}

func (r *repository) Purge(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM locations WHERE id = $1`, id)
	if db.IsForeignKeyViolation(err) {
		return shared.Invariant("location %s is referenced by BOLs; deactivate instead", id)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("location %s not found", id)
	}
	return nil
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListByCustomer(ctx context.Context, customerID uuid.UUID, activeOnly bool) ([]Location, error) {
	return s.repo.ListByCustomer(ctx, customerID, activeOnly)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Location, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, req UpsertRequest) (Location, error) {
	loc, err := fromRequest(req)
	if err != nil {
		return Location{}, err
	}
	return s.repo.Create(ctx, loc)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpsertRequest) (Location, error) {
	loc, err := fromRequest(req)
	if err != nil {
		return Location{}, err
	}
	if err := s.repo.Update(ctx, id, loc); err != nil {
		return Location{}, err
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

func fromRequest(req UpsertRequest) (Location, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Location{}, shared.Validation("location name is required")
	}
	if req.CustomerID == uuid.Nil {
		return Location{}, shared.Validation("customer is required")
	}
	return Location{
		CustomerID: req.CustomerID,
		Name:       name,
		Address:    req.Address,
		City:       req.City,
		State:      strings.ToUpper(req.State),
		Zip:        req.Zip,
	}, nil
}
