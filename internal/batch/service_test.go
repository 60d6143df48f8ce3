package batch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/bagline-erp/bagline/internal/observability"
	"github.com/bagline-erp/bagline/internal/shared"
)

type fakeRepo struct {
	mu      sync.Mutex
	batches map[uuid.UUID]*Batch
	parts   BarcodeParts
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		batches: map[uuid.UUID]*Batch{},
		parts:   BarcodeParts{ItemCode: "BX75", SizeLabel: "-16", BOLPrefix: "YAS"},
	}
}

func (f *fakeRepo) List(ctx context.Context, filters ListFilters) ([]Batch, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []Batch{}
	for _, b := range f.batches {
		out = append(out, *b)
	}
	return out, len(out), nil
}

func (f *fakeRepo) Get(ctx context.Context, id uuid.UUID) (Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[id]
	if !ok {
		return Batch{}, shared.NotFound("batch %s not found", id)
	}
	return *b, nil
}

func (f *fakeRepo) GetByBarcode(ctx context.Context, barcode string) (Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.batches {
		if b.Barcode == barcode {
			return *b, nil
		}
	}
	return Batch{}, shared.NotFound("batch with barcode %s not found", barcode)
}

func (f *fakeRepo) BarcodeParts(ctx context.Context, itemID, sizeID, supplierID uuid.UUID) (BarcodeParts, error) {
	return f.parts, nil
}

func (f *fakeRepo) Create(ctx context.Context, b Batch) (Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.batches {
		if existing.Barcode == b.Barcode {
			return Batch{}, shared.Conflict(nil, "barcode %s already exists", b.Barcode)
		}
	}
	b.ID = uuid.New()
	b.IsActive = true
	f.batches[b.ID] = &b
	return b, nil
}

func (f *fakeRepo) Mutate(ctx context.Context, id uuid.UUID, fn func(*Batch) error) (Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[id]
	if !ok {
		return Batch{}, shared.NotFound("batch %s not found", id)
	}
	next := *b
	if err := fn(&next); err != nil {
		return Batch{}, err
	}
	*b = next
	return next, nil
}

func (f *fakeRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[id]
	if !ok {
		return shared.NotFound("batch %s not found", id)
	}
	b.IsActive = active
	return nil
}

func (f *fakeRepo) Purge(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.batches[id]; !ok {
		return shared.NotFound("batch %s not found", id)
	}
	delete(f.batches, id)
	return nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	depleted []string
}

func (f *fakeNotifier) BatchDepleted(ctx context.Context, batchID uuid.UUID, barcode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.depleted = append(f.depleted, barcode)
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeRepo, *fakeNotifier) {
	t.Helper()
	repo := newFakeRepo()
	notifier := &fakeNotifier{}
	svc := NewService(slog.Default(), repo, observability.NewMetrics(), notifier)
	return svc, repo, notifier
}

func createBatch(t *testing.T, svc *Service, qty int64) Batch {
	t.Helper()
	b, err := svc.Create(context.Background(), CreateRequest{
		ItemID:           uuid.New(),
		SizeID:           uuid.New(),
		SupplierID:       uuid.New(),
		LotNumber:        "L100",
		Barge:            "BARGE1",
		StartingQuantity: qty,
	})
	require.NoError(t, err)
	return b
}

func TestCreateDerivesBarcode(t *testing.T) {
	svc, _, _ := newTestService(t)

	b := createBatch(t, svc, 500)
	require.Equal(t, "BARGE1L100YASBX75-16", b.Barcode)
	require.Equal(t, StatusActive, b.Status)
	require.Equal(t, int64(500), b.CurrentQuantity)
	require.Equal(t, int64(500), b.StartingQuantity)
}

func TestCreateExplicitBarcodeWins(t *testing.T) {
	svc, _, _ := newTestService(t)

	b, err := svc.Create(context.Background(), CreateRequest{
		ItemID:           uuid.New(),
		SizeID:           uuid.New(),
		SupplierID:       uuid.New(),
		LotNumber:        "L200",
		Barge:            "BARGE2",
		StartingQuantity: 10,
		Barcode:          "custom-1",
	})
	require.NoError(t, err)
	require.Equal(t, "CUSTOM-1", b.Barcode)
}

func TestCreateRejectsNonPositiveQuantity(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), CreateRequest{
		ItemID:           uuid.New(),
		SizeID:           uuid.New(),
		SupplierID:       uuid.New(),
		LotNumber:        "L100",
		Barge:            "BARGE1",
		StartingQuantity: 0,
	})
	require.Equal(t, shared.KindValidation, shared.KindOf(err))
}

func TestCreateBarcodeCollisionIsConflict(t *testing.T) {
	svc, _, _ := newTestService(t)

	createBatch(t, svc, 100)
	_, err := svc.Create(context.Background(), CreateRequest{
		ItemID:           uuid.New(),
		SizeID:           uuid.New(),
		SupplierID:       uuid.New(),
		LotNumber:        "L100",
		Barge:            "BARGE1",
		StartingQuantity: 50,
	})
	require.Equal(t, shared.KindConflict, shared.KindOf(err))
}

func TestAllocateDownToDepleted(t *testing.T) {
	svc, _, notifier := newTestService(t)
	ctx := context.Background()
	b := createBatch(t, svc, 500)

	b2, err := svc.Allocate(ctx, b.ID, 200)
	require.NoError(t, err)
	require.Equal(t, int64(300), b2.CurrentQuantity)
	require.Equal(t, StatusActive, b2.Status)

	b3, err := svc.Allocate(ctx, b.ID, 300)
	require.NoError(t, err)
	require.Equal(t, int64(0), b3.CurrentQuantity)
	require.Equal(t, StatusDepleted, b3.Status)
	require.Equal(t, []string{b.Barcode}, notifier.depleted)

	_, err = svc.Allocate(ctx, b.ID, 1)
	require.Equal(t, shared.KindInsufficientQuantity, shared.KindOf(err))
	var iq *shared.InsufficientQuantityError
	require.ErrorAs(t, err, &iq)
	require.Equal(t, int64(1), iq.Requested)
	require.Equal(t, int64(0), iq.Available)

	got, err := svc.Get(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), got.CurrentQuantity)
}

func TestAllocateNeverClamps(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	b := createBatch(t, svc, 100)

	_, err := svc.Allocate(ctx, b.ID, 150)
	require.Equal(t, shared.KindInsufficientQuantity, shared.KindOf(err))

	got, err := svc.Get(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, int64(100), got.CurrentQuantity)
}

func TestAllocateRestoreRoundTrip(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	b := createBatch(t, svc, 100)

	_, err := svc.Allocate(ctx, b.ID, 40)
	require.NoError(t, err)
	got, err := svc.Restore(ctx, b.ID, 40)
	require.NoError(t, err)
	require.Equal(t, int64(100), got.CurrentQuantity)
	require.Equal(t, StatusActive, got.Status)
}

func TestRestoreRevivesDepleted(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	b := createBatch(t, svc, 50)

	_, err := svc.Allocate(ctx, b.ID, 50)
	require.NoError(t, err)

	got, err := svc.Restore(ctx, b.ID, 10)
	require.NoError(t, err)
	require.Equal(t, int64(10), got.CurrentQuantity)
	require.Equal(t, StatusActive, got.Status)
}

func TestRestoreCannotExceedStarting(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	b := createBatch(t, svc, 100)

	_, err := svc.Allocate(ctx, b.ID, 30)
	require.NoError(t, err)
	_, err = svc.Restore(ctx, b.ID, 31)
	require.Equal(t, shared.KindInvariant, shared.KindOf(err))

	got, err := svc.Get(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, int64(70), got.CurrentQuantity)
}

func TestHoldBlocksAllocation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	b := createBatch(t, svc, 100)

	_, err := svc.SetHold(ctx, b.ID)
	require.NoError(t, err)

	_, err = svc.Allocate(ctx, b.ID, 10)
	require.Equal(t, shared.KindHold, shared.KindOf(err))

	got, err := svc.ClearHold(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, StatusActive, got.Status)

	_, err = svc.Allocate(ctx, b.ID, 10)
	require.NoError(t, err)
}

func TestRestoreAllowedOnHold(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	b := createBatch(t, svc, 100)

	_, err := svc.Allocate(ctx, b.ID, 20)
	require.NoError(t, err)
	_, err = svc.SetHold(ctx, b.ID)
	require.NoError(t, err)

	got, err := svc.Restore(ctx, b.ID, 20)
	require.NoError(t, err)
	require.Equal(t, int64(100), got.CurrentQuantity)
	require.Equal(t, StatusOnHold, got.Status)
}

func TestMarkShipped(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	b := createBatch(t, svc, 10)

	_, err := svc.MarkShipped(ctx, b.ID)
	require.Equal(t, shared.KindInvariant, shared.KindOf(err))

	_, err = svc.Allocate(ctx, b.ID, 10)
	require.NoError(t, err)

	got, err := svc.MarkShipped(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, StatusShipped, got.Status)

	_, err = svc.Restore(ctx, b.ID, 5)
	require.Equal(t, shared.KindInvariant, shared.KindOf(err))
}

func TestHoldOnlyFromActive(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	b := createBatch(t, svc, 10)

	_, err := svc.Allocate(ctx, b.ID, 10)
	require.NoError(t, err)

	_, err = svc.SetHold(ctx, b.ID)
	require.Equal(t, shared.KindInvariant, shared.KindOf(err))
}

func TestQuantityBoundsHoldUnderSequences(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	b := createBatch(t, svc, 25)

	ops := []struct {
		allocate bool
		qty      int64
	}{
		{true, 10}, {true, 5}, {false, 3}, {true, 13}, {false, 25}, {true, 30}, {false, 1},
	}
	for _, op := range ops {
		if op.allocate {
			_, _ = svc.Allocate(ctx, b.ID, op.qty)
		} else {
			_, _ = svc.Restore(ctx, b.ID, op.qty)
		}
		got, err := svc.Get(ctx, b.ID)
		require.NoError(t, err)
		require.GreaterOrEqual(t, got.CurrentQuantity, int64(0))
		require.LessOrEqual(t, got.CurrentQuantity, got.StartingQuantity)
		require.Equal(t, got.CurrentQuantity == 0, got.Status == StatusDepleted)
	}
}

func TestConcurrentAllocationsNeverOvershoot(t *testing.T) {
	svc, _, notifier := newTestService(t)
	ctx := context.Background()
	b := createBatch(t, svc, 100)

	const callers = 150
	var wg sync.WaitGroup
	var succeeded, insufficient atomic.Int64
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Allocate(ctx, b.ID, 1)
			switch {
			case err == nil:
				succeeded.Add(1)
			case shared.KindOf(err) == shared.KindInsufficientQuantity:
				insufficient.Add(1)
			default:
				t.Errorf("unexpected allocate error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(100), succeeded.Load())
	require.Equal(t, int64(callers-100), insufficient.Load())

	got, err := svc.Get(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), got.CurrentQuantity)
	require.Equal(t, StatusDepleted, got.Status)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Equal(t, []string{b.Barcode}, notifier.depleted)
}
