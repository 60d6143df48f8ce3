package batch

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

// BarcodeParts are the reference fields a barcode is derived from.
type BarcodeParts struct {
	ItemCode  string
	SizeLabel string
	BOLPrefix string
}

type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Batch, int, error)
	Get(ctx context.Context, id uuid.UUID) (Batch, error)
	GetByBarcode(ctx context.Context, barcode string) (Batch, error)
	BarcodeParts(ctx context.Context, itemID, sizeID, supplierID uuid.UUID) (BarcodeParts, error)
	Create(ctx context.Context, b Batch) (Batch, error)
	// Mutate loads the batch under a row lock, applies fn, and persists the
	// resulting quantity and status in the same transaction. Serialization
	// conflicts are retried; a lost race surfaces as a conflict error.
	Mutate(ctx context.Context, id uuid.UUID, fn func(*Batch) error) (Batch, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Purge(ctx context.Context, id uuid.UUID) error
}

// ListFilters narrows batch listings.
type ListFilters struct {
	shared.ListFilters
	Status     Status
	SupplierID uuid.UUID
	ItemID     uuid.UUID
}

// Store is the postgres-backed repository. BOL code uses its tx-scoped
// methods to move quantities inside its own transactions.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var _ Repository = (*Store)(nil)

const batchSelect = `SELECT b.id, b.barcode, b.item_id, i.item_code, b.size_id, z.size_label,
	b.supplier_id, s.supplier_name, b.lot_number, b.barge, b.starting_quantity, b.current_quantity,
	b.receipt_date, b.status, b.notes, b.is_active,
	ROUND((b.current_quantity * i.standard_bag_weight)::numeric, 2)::float8,
	b.created_at, b.updated_at
FROM batches b
JOIN items i ON i.id = b.item_id
JOIN sizes z ON z.id = b.size_id
JOIN suppliers s ON s.id = b.supplier_id`

func scanBatch(row pgx.Row) (Batch, error) {
	var b Batch
	err := row.Scan(&b.ID, &b.Barcode, &b.ItemID, &b.ItemCode, &b.SizeID, &b.SizeLabel,
		&b.SupplierID, &b.SupplierName, &b.LotNumber, &b.Barge, &b.StartingQuantity, &b.CurrentQuantity,
		&b.ReceiptDate, &b.Status, &b.Notes, &b.IsActive, &b.TotalWeightMT, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func (st *Store) List(ctx context.Context, filters ListFilters) ([]Batch, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		p := strconv.Itoa(argCount)
		where += ` AND (b.barcode ILIKE $` + p + ` OR b.lot_number ILIKE $` + p + ` OR b.barge ILIKE $` + p + `)`
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.Status != "" {
		argCount++
		where += ` AND b.status = $` + strconv.Itoa(argCount)
		args = append(args, filters.Status)
	}
	if filters.SupplierID != uuid.Nil {
		argCount++
		where += ` AND b.supplier_id = $` + strconv.Itoa(argCount)
		args = append(args, filters.SupplierID)
	}
	if filters.ItemID != uuid.Nil {
		argCount++
		where += ` AND b.item_id = $` + strconv.Itoa(argCount)
		args = append(args, filters.ItemID)
	}
	if filters.ActiveOnly {
		where += ` AND b.is_active`
	}

	var total int
	if err := st.pool.QueryRow(ctx, `SELECT COUNT(*) FROM batches b`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := batchSelect + where + ` ORDER BY b.receipt_date DESC, b.barcode`
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

	var out []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	return out, total, rows.Err()
}

func (st *Store) Get(ctx context.Context, id uuid.UUID) (Batch, error) {
	b, err := scanBatch(st.pool.QueryRow(ctx, batchSelect+` WHERE b.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Batch{}, shared.NotFound("batch %s not found", id)
	}
	return b, err
}

func (st *Store) GetByBarcode(ctx context.Context, barcode string) (Batch, error) {
	b, err := scanBatch(st.pool.QueryRow(ctx, batchSelect+` WHERE b.barcode = $1`, barcode))
	if errors.Is(err, pgx.ErrNoRows) {
		return Batch{}, shared.NotFound("batch with barcode %s not found", barcode)
	}
	return b, err
}

func (st *Store) BarcodeParts(ctx context.Context, itemID, sizeID, supplierID uuid.UUID) (BarcodeParts, error) {
	var parts BarcodeParts
	err := st.pool.QueryRow(ctx, `SELECT i.item_code, z.size_label, s.bol_prefix
FROM items i, sizes z, suppliers s
WHERE i.id = $1 AND z.id = $2 AND s.id = $3`, itemID, sizeID, supplierID).
		Scan(&parts.ItemCode, &parts.SizeLabel, &parts.BOLPrefix)
	if errors.Is(err, pgx.ErrNoRows) {
		return BarcodeParts{}, shared.NotFound("item, size, or supplier not found")
	}
	return parts, err
}

func (st *Store) Create(ctx context.Context, b Batch) (Batch, error) {
	b.ID = uuid.New()
	err := st.pool.QueryRow(ctx, `INSERT INTO batches
(id, barcode, item_id, size_id, supplier_id, lot_number, barge, starting_quantity, current_quantity, receipt_date, status, notes, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, TRUE, NOW(), NOW())
RETURNING created_at, updated_at`,
		b.ID, b.Barcode, b.ItemID, b.SizeID, b.SupplierID, b.LotNumber, b.Barge,
		b.StartingQuantity, b.CurrentQuantity, b.ReceiptDate, b.Status, b.Notes).
		Scan(&b.CreatedAt, &b.UpdatedAt)
	if db.IsUniqueViolation(err, "batches_barcode_key") {
		// Barcode races and reused receipt identifiers both land here; the
		// caller may retry with an explicit disambiguating barcode.
		return Batch{}, shared.Conflict(err, "barcode %s already exists", b.Barcode)
	}
	if db.IsForeignKeyViolation(err) {
		return Batch{}, shared.NotFound("item, size, or supplier not found")
	}
	if err != nil {
		return Batch{}, err
	}
	return st.Get(ctx, b.ID)
}

func (st *Store) Mutate(ctx context.Context, id uuid.UUID, fn func(*Batch) error) (Batch, error) {
	var out Batch
	err := db.WithTxRetry(ctx, st.pool, func(tx pgx.Tx) error {
		b, err := st.mutateTx(ctx, tx, id, fn)
		if err != nil {
			return err
		}
		out = b
		return nil
	})
	if db.IsSerializationFailure(err) {
		return Batch{}, shared.Conflict(err, "batch %s is being modified concurrently; try again", id)
	}
	if err != nil {
		return Batch{}, err
	}
	return out, nil
}

// MutateTx is Mutate inside a caller-owned transaction. The BOL allocator
// uses it so line inserts and ledger moves commit or roll back together.
func (st *Store) MutateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, fn func(*Batch) error) (Batch, error) {
	return st.mutateTx(ctx, tx, id, fn)
}

func (st *Store) AllocateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, qty int64) (Batch, error) {
	return st.mutateTx(ctx, tx, id, func(b *Batch) error { return b.Allocate(qty) })
}

func (st *Store) RestoreTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, qty int64) (Batch, error) {
	return st.mutateTx(ctx, tx, id, func(b *Batch) error { return b.Restore(qty) })
}

func (st *Store) mutateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, fn func(*Batch) error) (Batch, error) {
	var b Batch
	err := tx.QueryRow(ctx, `SELECT id, barcode, starting_quantity, current_quantity, status
FROM batches WHERE id = $1 FOR UPDATE`, id).
		Scan(&b.ID, &b.Barcode, &b.StartingQuantity, &b.CurrentQuantity, &b.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return Batch{}, shared.NotFound("batch %s not found", id)
	}
	if err != nil {
		return Batch{}, err
	}

	if err := fn(&b); err != nil {
		return Batch{}, err
	}

	_, err = tx.Exec(ctx, `UPDATE batches SET current_quantity = $1, status = $2, updated_at = NOW() WHERE id = $3`,
		b.CurrentQuantity, b.Status, b.ID)
	if err != nil {
		return Batch{}, err
	}
	return b, nil
}

func (st *Store) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := st.pool.Exec(ctx, `UPDATE batches SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("batch %s not found", id)
	}
	return nil
}

func (st *Store) Purge(ctx context.Context, id uuid.UUID) error {
	tag, err := st.pool.Exec(ctx, `DELETE FROM batches WHERE id = $1`, id)
	if db.IsForeignKeyViolation(err) {
		return shared.Invariant("batch %s is referenced by BOL line items; deactivate instead", id)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("batch %s not found", id)
	}
	return nil
}
