// Package trucks manages trucks belonging to a carrier.
package trucks

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

// Truck numbers are unique within a carrier, not globally.
type Truck struct {
	ID            uuid.UUID `json:"id"`
	CarrierID     uuid.UUID `json:"carrier_id"`
	CarrierName   string    `json:"carrier_name"`
	TruckNumber   string    `json:"truck_number"`
	TrailerNumber string    `json:"trailer_number"`
	Notes         string    `json:"notes"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type UpsertRequest struct {
	CarrierID     uuid.UUID `json:"carrier_id" validate:"required"`
	TruckNumber   string    `json:"truck_number" validate:"required,max=20"`
	TrailerNumber string    `json:"trailer_number" validate:"max=20"`
	Notes         string    `json:"notes"`
}

type Repository interface {
	ListByCarrier(ctx context.Context, carrierID uuid.UUID, activeOnly bool) ([]Truck, error)
	Get(ctx context.Context, id uuid.UUID) (Truck, error)
	Create(ctx context.Context, t Truck) (Truck, error)
	Update(ctx context.Context, id uuid.UUID, t Truck) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Purge(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const truckSelect = `SELECT t.id, t.carrier_id, c.carrier_name, t.truck_number, t.trailer_number, t.notes, t.is_active, t.created_at, t.updated_at
FROM trucks t JOIN carriers c ON c.id = t.carrier_id`

func scanTruck(row pgx.Row) (Truck, error) {
	var t Truck
	err := row.Scan(&t.ID, &t.CarrierID, &t.CarrierName, &t.TruckNumber, &t.TrailerNumber,
		&t.Notes, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (r *repository) ListByCarrier(ctx context.Context, carrierID uuid.UUID, activeOnly bool) ([]Truck, error) {
	query := truckSelect + ` WHERE t.carrier_id = $1`
	if activeOnly {
		query += ` AND t.is_active`
	}
	query += ` ORDER BY t.truck_number`

	rows, err := r.pool.Query(ctx, query, carrierID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Truck
	for rows.Next() {
		t, err := scanTruck(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Truck, error) {
	t, err := scanTruck(r.pool.QueryRow(ctx, truckSelect+` WHERE t.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Truck{}, shared.NotFound("truck %s not found", id)
	}
	return t, err
}

func (r *repository) Create(ctx context.Context, t Truck) (Truck, error) {
	t.ID = uuid.New()
	err := r.pool.QueryRow(ctx, `INSERT INTO trucks (id, carrier_id, truck_number, trailer_number, notes, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, TRUE, NOW(), NOW()) RETURNING created_at, updated_at`,
		t.ID, t.CarrierID, t.TruckNumber, t.TrailerNumber, t.Notes).
		Scan(&t.CreatedAt, &t.UpdatedAt)
	if db.IsUniqueViolation(err, "") {
		return Truck{}, shared.DuplicateKey("truck %s already exists for this carrier", t.TruckNumber)
	}
	if db.IsForeignKeyViolation(err) {
		return Truck{}, shared.NotFound("carrier %s not found", t.CarrierID)
	}
	if err != nil {
		return Truck{}, err
	}
	t.IsActive = true
	return t, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, t Truck) error {
	tag, err := r.pool.Exec(ctx, `UPDATE trucks SET carrier_id = $1, truck_number = $2, trailer_number = $3, notes = $4, updated_at = NOW() WHERE id = $5`,
		t.CarrierID, t.TruckNumber, t.TrailerNumber, t.Notes, id)
	if db.IsUniqueViolation(err, "") {
		return shared.DuplicateKey("truck %s already exists for this carrier", t.TruckNumber)
	}
	if db.IsForeignKeyViolation(err) {
		return shared.NotFound("carrier %s not found", t.CarrierID)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("truck %s not found", id)
	}
	return nil
}

func (r *repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE trucks SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("truck %s not found", id)
	}
	return nil
}

func (r *repository) Purge(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM trucks WHERE id = $1`, id)
	if db.IsForeignKeyViolation(err) {
		return shared.Invariant("truck %s is referenced by bills of lading; deactivate instead", id)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("truck %s not found", id)
	}
	return nil
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListByCarrier(ctx context.Context, carrierID uuid.UUID, activeOnly bool) ([]Truck, error) {
	return s.repo.ListByCarrier(ctx, carrierID, activeOnly)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Truck, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, req UpsertRequest) (Truck, error) {
	t, err := fromRequest(req)
	if err != nil {
		return Truck{}, err
	}
	return s.repo.Create(ctx, t)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpsertRequest) (Truck, error) {
	t, err := fromRequest(req)
	if err != nil {
		return Truck{}, err
	}
	if err := s.repo.Update(ctx, id, t); err != nil {
		return Truck{}, err
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

func fromRequest(req UpsertRequest) (Truck, error) {
	number := strings.ToUpper(strings.TrimSpace(req.TruckNumber))
	if req.CarrierID == uuid.Nil || number == "" {
		return Truck{}, shared.Validation("carrier and truck number are required")
	}
	return Truck{
		CarrierID:     req.CarrierID,
		TruckNumber:   number,
		TrailerNumber: strings.ToUpper(strings.TrimSpace(req.TrailerNumber)),
		Notes:         req.Notes,
	}, nil
}
