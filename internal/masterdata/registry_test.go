package masterdata

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/bagline-erp/bagline/internal/shared"
)

func newTestRegistry(t *testing.T) (*Registry, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	// nil pool: these tests only exercise the cache path
	return NewRegistry(slog.Default(), nil, client, time.Minute), mr
}

func TestFindActiveServesFromCache(t *testing.T) {
	reg, mr := newTestRegistry(t)

	want := []Selector{
		{ID: uuid.New(), Label: "BX75 — Bauxite 75"},
		{ID: uuid.New(), Label: "BX50 — Bauxite 50"},
	}
	payload, err := json.Marshal(want)
	require.NoError(t, err)
	require.NoError(t, mr.Set("bagline:selectors:items", string(payload)))

	got, err := reg.FindActive(context.Background(), "items")
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestFindActiveUnknownEntity(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, err := reg.FindActive(context.Background(), "widgets")
	require.Equal(t, shared.KindValidation, shared.KindOf(err))
}

func TestExistsUnknownEntity(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, err := reg.Exists(context.Background(), "widgets", "X")
	require.Equal(t, shared.KindValidation, shared.KindOf(err))
}

func TestInvalidateDropsCachedList(t *testing.T) {
	reg, mr := newTestRegistry(t)

	require.NoError(t, mr.Set("bagline:selectors:suppliers", `[]`))
	reg.Invalidate(context.Background(), "suppliers")
	require.False(t, mr.Exists("bagline:selectors:suppliers"))

	// unknown entities are a no-op
	reg.Invalidate(context.Background(), "widgets")
}
