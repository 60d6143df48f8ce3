package bol

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/bagline-erp/bagline/internal/batch"
	"github.com/bagline-erp/bagline/internal/observability"
	"github.com/bagline-erp/bagline/internal/shared"
)

// fakeBackend backs both the BOL repository and the ledger slice with
// in-memory state so allocator semantics can be exercised without
// postgres. Transactions degrade to direct mutation: the service's
// failure paths all bail before the first write, which is what the tests
// rely on.
type fakeBackend struct {
	mu       sync.Mutex
	prefixes map[uuid.UUID]string
	counters map[uuid.UUID]int64
	batches  map[uuid.UUID]*batch.Batch
	weights  map[uuid.UUID]float64
	bols     map[uuid.UUID]*BOL
	lines    map[uuid.UUID]*LineItem
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		prefixes: map[uuid.UUID]string{},
		counters: map[uuid.UUID]int64{},
		batches:  map[uuid.UUID]*batch.Batch{},
		weights:  map[uuid.UUID]float64{},
		bols:     map[uuid.UUID]*BOL{},
		lines:    map[uuid.UUID]*LineItem{},
	}
}

func (f *fakeBackend) addSupplier(prefix string, next int64) uuid.UUID {
	id := uuid.New()
	f.prefixes[id] = prefix
	f.counters[id] = next
	return id
}

func (f *fakeBackend) addBatch(qty int64, bagWeight float64) uuid.UUID {
	id := uuid.New()
	f.batches[id] = &batch.Batch{
		ID:               id,
		Barcode:          "B" + id.String()[:8],
		StartingQuantity: qty,
		CurrentQuantity:  qty,
		Status:           batch.StatusActive,
	}
	f.weights[id] = bagWeight
	return id
}

func (f *fakeBackend) issue(ctx context.Context, tx pgx.Tx, supplierID uuid.UUID) (string, error) {
	prefix, ok := f.prefixes[supplierID]
	if !ok {
		return "", shared.NotFound("supplier %s not found", supplierID)
	}
	n := f.counters[supplierID]
	f.counters[supplierID] = n + 1
	return fmt.Sprintf("%s%d", prefix, n), nil
}

func (f *fakeBackend) AllocateTx(ctx context.Context, tx pgx.Tx, batchID uuid.UUID, qty int64) (batch.Batch, error) {
	b, ok := f.batches[batchID]
	if !ok {
		return batch.Batch{}, shared.NotFound("batch %s not found", batchID)
	}
	if err := b.Allocate(qty); err != nil {
		return batch.Batch{}, err
	}
	return *b, nil
}

func (f *fakeBackend) RestoreTx(ctx context.Context, tx pgx.Tx, batchID uuid.UUID, qty int64) (batch.Batch, error) {
	b, ok := f.batches[batchID]
	if !ok {
		return batch.Batch{}, shared.NotFound("batch %s not found", batchID)
	}
	if err := b.Restore(qty); err != nil {
		return batch.Batch{}, err
	}
	return *b, nil
}

func (f *fakeBackend) List(ctx context.Context, filters shared.ListFilters) ([]BOL, int, error) {
	var out []BOL
	for _, b := range f.bols {
		out = append(out, *b)
	}
	return out, len(out), nil
}

func (f *fakeBackend) Get(ctx context.Context, id uuid.UUID) (BOL, error) {
	b, ok := f.bols[id]
	if !ok {
		return BOL{}, shared.NotFound("BOL %s not found", id)
	}
	out := *b
	out.Items = nil
	for _, li := range f.lines {
		if li.BOLID == id {
			line := *li
			line.WeightMT = round2(float64(line.QuantityShipped) * f.weights[line.BatchID])
			out.Items = append(out.Items, line)
		}
	}
	return out, nil
}

// InTx serializes like the row-locked transaction it stands in for.
func (f *fakeBackend) InTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(nil)
}

func (f *fakeBackend) CreateTx(ctx context.Context, tx pgx.Tx, b BOL) (BOL, error) {
	b.ID = uuid.New()
	f.bols[b.ID] = &b
	return b, nil
}

func (f *fakeBackend) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (BOL, error) {
	b, ok := f.bols[id]
	if !ok {
		return BOL{}, shared.NotFound("BOL %s not found", id)
	}
	return *b, nil
}

func (f *fakeBackend) GetLineTx(ctx context.Context, tx pgx.Tx, lineID uuid.UUID) (LineItem, error) {
	li, ok := f.lines[lineID]
	if !ok {
		return LineItem{}, shared.NotFound("BOL line item %s not found", lineID)
	}
	return *li, nil
}

func (f *fakeBackend) LinesTx(ctx context.Context, tx pgx.Tx, bolID uuid.UUID) ([]LineItem, error) {
	var out []LineItem
	for _, li := range f.lines {
		if li.BOLID == bolID {
			out = append(out, *li)
		}
	}
	return out, nil
}

func (f *fakeBackend) InsertLineTx(ctx context.Context, tx pgx.Tx, line LineItem) (LineItem, error) {
	line.ID = uuid.New()
	f.lines[line.ID] = &line
	return line, nil
}

func (f *fakeBackend) UpdateLineQuantityTx(ctx context.Context, tx pgx.Tx, lineID uuid.UUID, qty int64) error {
	li, ok := f.lines[lineID]
	if !ok {
		return shared.NotFound("BOL line item %s not found", lineID)
	}
	li.QuantityShipped = qty
	return nil
}

func (f *fakeBackend) DeleteLineTx(ctx context.Context, tx pgx.Tx, lineID uuid.UUID) error {
	if _, ok := f.lines[lineID]; !ok {
		return shared.NotFound("BOL line item %s not found", lineID)
	}
	delete(f.lines, lineID)
	return nil
}

func (f *fakeBackend) RecomputeTotalsTx(ctx context.Context, tx pgx.Tx, bolID uuid.UUID) (int64, float64, error) {
	b, ok := f.bols[bolID]
	if !ok {
		return 0, 0, shared.NotFound("BOL %s not found", bolID)
	}
	var bags int64
	var weight float64
	for _, li := range f.lines {
		if li.BOLID == bolID {
			bags += li.QuantityShipped
			weight += float64(li.QuantityShipped) * f.weights[li.BatchID]
		}
	}
	b.TotalBags = bags
	b.TotalWeightMT = round2(weight)
	return bags, b.TotalWeightMT, nil
}

func (f *fakeBackend) DeleteTx(ctx context.Context, tx pgx.Tx, bolID uuid.UUID) error {
	if _, ok := f.bols[bolID]; !ok {
		return shared.NotFound("BOL %s not found", bolID)
	}
	for id, li := range f.lines {
		if li.BOLID == bolID {
			delete(f.lines, id)
		}
	}
	delete(f.bols, bolID)
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeBackend) {
	t.Helper()
	backend := newFakeBackend()
	svc := NewService(slog.Default(), backend, backend, observability.NewMetrics())
	svc.issue = backend.issue
	return svc, backend
}

func TestCreateIssuesSequentialNumbers(t *testing.T) {
	svc, backend := newTestService(t)
	ctx := context.Background()
	supplierID := backend.addSupplier("YAS", 1001)

	first, err := svc.Create(ctx, CreateRequest{SupplierID: supplierID, CustomerID: uuid.New()})
	require.NoError(t, err)
	require.Equal(t, "YAS1001", first.BOLNumber)
	require.Equal(t, int64(1002), backend.counters[supplierID])

	second, err := svc.Create(ctx, CreateRequest{SupplierID: supplierID, CustomerID: uuid.New()})
	require.NoError(t, err)
	require.Equal(t, "YAS1002", second.BOLNumber)
}

func TestConcurrentCreatesIssueDistinctNumbers(t *testing.T) {
	svc, backend := newTestService(t)
	ctx := context.Background()
	supplierID := backend.addSupplier("YAS", 1001)

	const writers = 10
	var wg sync.WaitGroup
	numbers := make(chan string, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := svc.Create(ctx, CreateRequest{SupplierID: supplierID, CustomerID: uuid.New()})
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			numbers <- b.BOLNumber
		}()
	}
	wg.Wait()
	close(numbers)

	seen := map[string]bool{}
	for n := range numbers {
		require.False(t, seen[n], "number %s issued twice", n)
		seen[n] = true
	}
	for i := 1001; i < 1001+writers; i++ {
		require.True(t, seen[fmt.Sprintf("YAS%d", i)], "number YAS%d never issued", i)
	}
	require.Equal(t, int64(1001+writers), backend.counters[supplierID])
}

func TestCreateStartsEmpty(t *testing.T) {
	svc, backend := newTestService(t)
	supplierID := backend.addSupplier("YAS", 1)

	b, err := svc.Create(context.Background(), CreateRequest{SupplierID: supplierID, CustomerID: uuid.New()})
	require.NoError(t, err)
	require.Equal(t, int64(0), b.TotalBags)
	require.Equal(t, float64(0), b.TotalWeightMT)
	require.False(t, b.ShipDate.IsZero())
}

func TestCreateUnknownSupplier(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), CreateRequest{SupplierID: uuid.New(), CustomerID: uuid.New()})
	require.Equal(t, shared.KindNotFound, shared.KindOf(err))
}

func TestAddLineAllocatesAndTotals(t *testing.T) {
	svc, backend := newTestService(t)
	ctx := context.Background()
	supplierID := backend.addSupplier("YAS", 1001)
	batchID := backend.addBatch(100, 1.5)

	created, err := svc.Create(ctx, CreateRequest{SupplierID: supplierID, CustomerID: uuid.New()})
	require.NoError(t, err)

	b, err := svc.AddLine(ctx, created.ID, batchID, 50)
	require.NoError(t, err)
	require.Equal(t, int64(50), b.TotalBags)
	require.Equal(t, 75.00, b.TotalWeightMT)
	require.Len(t, b.Items, 1)
	require.Equal(t, 75.00, b.Items[0].WeightMT)
	require.Equal(t, int64(50), backend.batches[batchID].CurrentQuantity)
}

func TestAddLineInsufficientLeavesNoLine(t *testing.T) {
	svc, backend := newTestService(t)
	ctx := context.Background()
	supplierID := backend.addSupplier("YAS", 1)
	batchID := backend.addBatch(10, 1.0)

	created, err := svc.Create(ctx, CreateRequest{SupplierID: supplierID, CustomerID: uuid.New()})
	require.NoError(t, err)

	_, err = svc.AddLine(ctx, created.ID, batchID, 11)
	require.Equal(t, shared.KindInsufficientQuantity, shared.KindOf(err))

	b, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Empty(t, b.Items)
	require.Equal(t, int64(0), b.TotalBags)
	require.Equal(t, int64(10), backend.batches[batchID].CurrentQuantity)
}

func TestAddLineHeldBatch(t *testing.T) {
	svc, backend := newTestService(t)
	ctx := context.Background()
	supplierID := backend.addSupplier("YAS", 1)
	batchID := backend.addBatch(10, 1.0)
	require.NoError(t, backend.batches[batchID].SetHold())

	created, err := svc.Create(ctx, CreateRequest{SupplierID: supplierID, CustomerID: uuid.New()})
	require.NoError(t, err)

	_, err = svc.AddLine(ctx, created.ID, batchID, 5)
	require.Equal(t, shared.KindHold, shared.KindOf(err))
}

func TestEditLineQuantityMovesDelta(t *testing.T) {
	svc, backend := newTestService(t)
	ctx := context.Background()
	supplierID := backend.addSupplier("YAS", 1)
	batchID := backend.addBatch(100, 1.5)

	created, err := svc.Create(ctx, CreateRequest{SupplierID: supplierID, CustomerID: uuid.New()})
	require.NoError(t, err)
	b, err := svc.AddLine(ctx, created.ID, batchID, 50)
	require.NoError(t, err)
	lineID := b.Items[0].ID

	// shrink: 20 bags go back to the batch
	b, err = svc.EditLineQuantity(ctx, lineID, 30)
	require.NoError(t, err)
	require.Equal(t, int64(30), b.TotalBags)
	require.Equal(t, 45.00, b.TotalWeightMT)
	require.Equal(t, int64(70), backend.batches[batchID].CurrentQuantity)

	// grow: 40 more come out
	b, err = svc.EditLineQuantity(ctx, lineID, 70)
	require.NoError(t, err)
	require.Equal(t, int64(70), b.TotalBags)
	require.Equal(t, 105.00, b.TotalWeightMT)
	require.Equal(t, int64(30), backend.batches[batchID].CurrentQuantity)
}

func TestEditLineFailureLeavesLineUnchanged(t *testing.T) {
	svc, backend := newTestService(t)
	ctx := context.Background()
	supplierID := backend.addSupplier("YAS", 1)
	batchID := backend.addBatch(60, 2.0)

	created, err := svc.Create(ctx, CreateRequest{SupplierID: supplierID, CustomerID: uuid.New()})
	require.NoError(t, err)
	b, err := svc.AddLine(ctx, created.ID, batchID, 50)
	require.NoError(t, err)
	lineID := b.Items[0].ID

	// only 10 bags left; growing the line to 70 needs 20
	_, err = svc.EditLineQuantity(ctx, lineID, 70)
	require.Equal(t, shared.KindInsufficientQuantity, shared.KindOf(err))

	b, err = svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, int64(50), b.Items[0].QuantityShipped)
	require.Equal(t, int64(50), b.TotalBags)
	require.Equal(t, int64(10), backend.batches[batchID].CurrentQuantity)
}

func TestRemoveLineRestores(t *testing.T) {
	svc, backend := newTestService(t)
	ctx := context.Background()
	supplierID := backend.addSupplier("YAS", 1)
	batchID := backend.addBatch(100, 1.5)

	created, err := svc.Create(ctx, CreateRequest{SupplierID: supplierID, CustomerID: uuid.New()})
	require.NoError(t, err)
	b, err := svc.AddLine(ctx, created.ID, batchID, 40)
	require.NoError(t, err)

	b, err = svc.RemoveLine(ctx, b.Items[0].ID)
	require.NoError(t, err)
	require.Empty(t, b.Items)
	require.Equal(t, int64(0), b.TotalBags)
	require.Equal(t, float64(0), b.TotalWeightMT)
	require.Equal(t, int64(100), backend.batches[batchID].CurrentQuantity)
}

func TestDeleteRestoresAllLines(t *testing.T) {
	svc, backend := newTestService(t)
	ctx := context.Background()
	supplierID := backend.addSupplier("YAS", 1)
	batchA := backend.addBatch(100, 1.0)
	batchB := backend.addBatch(200, 2.0)

	created, err := svc.Create(ctx, CreateRequest{SupplierID: supplierID, CustomerID: uuid.New()})
	require.NoError(t, err)
	_, err = svc.AddLine(ctx, created.ID, batchA, 30)
	require.NoError(t, err)
	_, err = svc.AddLine(ctx, created.ID, batchB, 200)
	require.NoError(t, err)
	require.Equal(t, batch.StatusDepleted, backend.batches[batchB].Status)

	require.NoError(t, svc.Delete(ctx, created.ID))
	require.Equal(t, int64(100), backend.batches[batchA].CurrentQuantity)
	require.Equal(t, int64(200), backend.batches[batchB].CurrentQuantity)
	require.Equal(t, batch.StatusActive, backend.batches[batchB].Status)
	require.Empty(t, backend.lines)

	_, err = svc.Get(ctx, created.ID)
	require.Equal(t, shared.KindNotFound, shared.KindOf(err))
}

func TestTotalsMatchLinesUnderAnyOrder(t *testing.T) {
	svc, backend := newTestService(t)
	ctx := context.Background()
	supplierID := backend.addSupplier("YAS", 1)
	batchA := backend.addBatch(500, 1.5)
	batchB := backend.addBatch(300, 0.75)

	created, err := svc.Create(ctx, CreateRequest{SupplierID: supplierID, CustomerID: uuid.New()})
	require.NoError(t, err)

	b, err := svc.AddLine(ctx, created.ID, batchA, 120)
	require.NoError(t, err)
	lineA := b.Items[0].ID
	b, err = svc.AddLine(ctx, created.ID, batchB, 80)
	require.NoError(t, err)
	_, err = svc.EditLineQuantity(ctx, lineA, 90)
	require.NoError(t, err)

	b, err = svc.Get(ctx, created.ID)
	require.NoError(t, err)
	var bags int64
	var weight float64
	for _, li := range b.Items {
		bags += li.QuantityShipped
		weight += li.WeightMT
	}
	require.Equal(t, bags, b.TotalBags)
	require.InDelta(t, weight, b.TotalWeightMT, 0.01)
	require.Equal(t, int64(170), b.TotalBags)
	require.Equal(t, 195.00, b.TotalWeightMT)
}
