package bol

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
	List(ctx context.Context, filters shared.ListFilters) ([]BOL, int, error)
	Get(ctx context.Context, id uuid.UUID) (BOL, error)

	// InTx runs fn transactionally with bounded retry; a serialization
	// failure surviving the budget comes back as a conflict error.
	InTx(ctx context.Context, fn func(tx pgx.Tx) error) error

	CreateTx(ctx context.Context, tx pgx.Tx, b BOL) (BOL, error)
	GetForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (BOL, error)
	GetLineTx(ctx context.Context, tx pgx.Tx, lineID uuid.UUID) (LineItem, error)
	LinesTx(ctx context.Context, tx pgx.Tx, bolID uuid.UUID) ([]LineItem, error)
	InsertLineTx(ctx context.Context, tx pgx.Tx, line LineItem) (LineItem, error)
	UpdateLineQuantityTx(ctx context.Context, tx pgx.Tx, lineID uuid.UUID, qty int64) error
	DeleteLineTx(ctx context.Context, tx pgx.Tx, lineID uuid.UUID) error
	RecomputeTotalsTx(ctx context.Context, tx pgx.Tx, bolID uuid.UUID) (int64, float64, error)
	DeleteTx(ctx context.Context, tx pgx.Tx, bolID uuid.UUID) error
}

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var _ Repository = (*Store)(nil)

const bolSelect = `SELECT o.id, o.bol_number, o.supplier_id, s.supplier_name, o.customer_id, c.customer_name,
	o.location_id, COALESCE(l.location_name, ''), o.truck_id, COALESCE(t.truck_number, ''),
	o.ship_date, o.total_bags, o.total_weight_mt, o.notes, o.created_at, o.updated_at
FROM bols o
JOIN suppliers s ON s.id = o.supplier_id
JOIN customers c ON c.id = o.customer_id
LEFT JOIN locations l ON l.id = o.location_id
LEFT JOIN trucks t ON t.id = o.truck_id`

func scanBOL(row pgx.Row) (BOL, error) {
	var b BOL
	err := row.Scan(&b.ID, &b.BOLNumber, &b.SupplierID, &b.SupplierName, &b.CustomerID, &b.CustomerName,
		&b.LocationID, &b.LocationName, &b.TruckID, &b.TruckNumber,
		&b.ShipDate, &b.TotalBags, &b.TotalWeightMT, &b.Notes, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

const lineSelect = `SELECT li.id, li.bol_id, li.batch_id, bt.barcode, i.item_code, li.quantity_shipped,
	ROUND((li.quantity_shipped * i.standard_bag_weight)::numeric, 2)::float8, li.created_at
FROM bol_items li
JOIN batches bt ON bt.id = li.batch_id
JOIN items i ON i.id = bt.item_id`

func scanLine(row pgx.Row) (LineItem, error) {
	var li LineItem
	err := row.Scan(&li.ID, &li.BOLID, &li.BatchID, &li.Barcode, &li.ItemCode,
		&li.QuantityShipped, &li.WeightMT, &li.CreatedAt)
	return li, err
}

func (st *Store) List(ctx context.Context, filters shared.ListFilters) ([]BOL, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		p := strconv.Itoa(argCount)
		where += ` AND (o.bol_number ILIKE $` + p + ` OR c.customer_name ILIKE $` + p + `)`
		args = append(args, "%"+filters.Search+"%")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM bols o JOIN customers c ON c.id = o.customer_id` + where
	if err := st.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := bolSelect + where + ` ORDER BY o.ship_date DESC, o.bol_number DESC`
	argCount++
	query += ` LIMIT $` + strconv.Itoa(argCount)
	args = append(args, filters.Limit)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, filters.Offset())

	rows, err := st.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []BOL
	for rows.Next() {
		b, err := scanBOL(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	return out, total, rows.Err()
}

func (st *Store) Get(ctx context.Context, id uuid.UUID) (BOL, error) {
	b, err := scanBOL(st.pool.QueryRow(ctx, bolSelect+` WHERE o.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return BOL{}, shared.NotFound("BOL %s not found", id)
	}
	if err != nil {
		return BOL{}, err
	}

	rows, err := st.pool.Query(ctx, lineSelect+` WHERE li.bol_id = $1 ORDER BY li.created_at`, id)
	if err != nil {
		return BOL{}, err
	}
	defer rows.Close()
	for rows.Next() {
		li, err := scanLine(rows)
		if err != nil {
			return BOL{}, err
		}
		b.Items = append(b.Items, li)
	}
	return b, rows.Err()
}

func (st *Store) InTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	err := db.WithTxRetry(ctx, st.pool, fn)
	if db.IsSerializationFailure(err) {
		return shared.Conflict(err, "concurrent modification; try again")
	}
	return err
}

func (st *Store) CreateTx(ctx context.Context, tx pgx.Tx, b BOL) (BOL, error) {
	b.ID = uuid.New()
	err := tx.QueryRow(ctx, `INSERT INTO bols
(id, bol_number, supplier_id, customer_id, location_id, truck_id, ship_date, total_bags, total_weight_mt, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, 0, 0, $8, NOW(), NOW())
RETURNING created_at, updated_at`,
		b.ID, b.BOLNumber, b.SupplierID, b.CustomerID, b.LocationID, b.TruckID, b.ShipDate, b.Notes).
		Scan(&b.CreatedAt, &b.UpdatedAt)
	if db.IsUniqueViolation(err, "bols_bol_number_key") {
		return BOL{}, shared.DuplicateKey("BOL number %s already exists", b.BOLNumber)
	}
	if db.IsForeignKeyViolation(err) {
		return BOL{}, shared.NotFound("supplier, customer, location, or truck not found")
	}
	if err != nil {
		return BOL{}, err
	}
	return b, nil
}

func (st *Store) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (BOL, error) {
	var b BOL
	err := tx.QueryRow(ctx, `SELECT id, bol_number, supplier_id, customer_id, ship_date, total_bags, total_weight_mt
FROM bols WHERE id = $1 FOR UPDATE`, id).
		Scan(&b.ID, &b.BOLNumber, &b.SupplierID, &b.CustomerID, &b.ShipDate, &b.TotalBags, &b.TotalWeightMT)
	if errors.Is(err, pgx.ErrNoRows) {
		return BOL{}, shared.NotFound("BOL %s not found", id)
	}
	return b, err
}

func (st *Store) GetLineTx(ctx context.Context, tx pgx.Tx, lineID uuid.UUID) (LineItem, error) {
	var li LineItem
	err := tx.QueryRow(ctx, `SELECT id, bol_id, batch_id, quantity_shipped, created_at
FROM bol_items WHERE id = $1 FOR UPDATE`, lineID).
		Scan(&li.ID, &li.BOLID, &li.BatchID, &li.QuantityShipped, &li.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return LineItem{}, shared.NotFound("BOL line item %s not found", lineID)
	}
	return li, err
}

func (st *Store) LinesTx(ctx context.Context, tx pgx.Tx, bolID uuid.UUID) ([]LineItem, error) {
	rows, err := tx.Query(ctx, `SELECT id, bol_id, batch_id, quantity_shipped, created_at
FROM bol_items WHERE bol_id = $1 FOR UPDATE`, bolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LineItem
	for rows.Next() {
		var li LineItem
		if err := rows.Scan(&li.ID, &li.BOLID, &li.BatchID, &li.QuantityShipped, &li.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, li)
	}
	return out, rows.Err()
}

func (st *Store) InsertLineTx(ctx context.Context, tx pgx.Tx, line LineItem) (LineItem, error) {
	line.ID = uuid.New()
	err := tx.QueryRow(ctx, `INSERT INTO bol_items (id, bol_id, batch_id, quantity_shipped, created_at)
VALUES ($1, $2, $3, $4, NOW()) RETURNING created_at`,
		line.ID, line.BOLID, line.BatchID, line.QuantityShipped).
		Scan(&line.CreatedAt)
	if err != nil {
		return LineItem{}, err
	}
	return line, nil
}

func (st *Store) UpdateLineQuantityTx(ctx context.Context, tx pgx.Tx, lineID uuid.UUID, qty int64) error {
	tag, err := tx.Exec(ctx, `UPDATE bol_items SET quantity_shipped = $1 WHERE id = $2`, qty, lineID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("BOL line item %s not found", lineID)
	}
	return nil
}

func (st *Store) DeleteLineTx(ctx context.Context, tx pgx.Tx, lineID uuid.UUID) error {
	tag, err := tx.Exec(ctx, `DELETE FROM bol_items WHERE id = $1`, lineID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("BOL line item %s not found", lineID)
	}
	return nil
}

// RecomputeTotalsTx rewrites the stored totals from the line items. The
// totals are denormalized for listing only; this is their single writer.
func (st *Store) RecomputeTotalsTx(ctx context.Context, tx pgx.Tx, bolID uuid.UUID) (int64, float64, error) {
	var bags int64
	var weight float64
	err := tx.QueryRow(ctx, `UPDATE bols SET
	total_bags = totals.bags,
	total_weight_mt = totals.weight,
	updated_at = NOW()
FROM (
	SELECT COALESCE(SUM(li.quantity_shipped), 0) AS bags,
		ROUND(COALESCE(SUM(li.quantity_shipped * i.standard_bag_weight), 0)::numeric, 2)::float8 AS weight
	FROM bol_items li
	JOIN batches bt ON bt.id = li.batch_id
	JOIN items i ON i.id = bt.item_id
	WHERE li.bol_id = $1
) totals
WHERE bols.id = $1
RETURNING totals.bags, totals.weight`, bolID).Scan(&bags, &weight)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, shared.NotFound("BOL %s not found", bolID)
	}
	return bags, weight, err
}

func (st *Store) DeleteTx(ctx context.Context, tx pgx.Tx, bolID uuid.UUID) error {
	tag, err := tx.Exec(ctx, `DELETE FROM bols WHERE id = $1`, bolID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("BOL %s not found", bolID)
	}
	return nil
}
