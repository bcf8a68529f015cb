package repository

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"climalog/internal/migrate"
	"climalog/internal/modules/readings/types"

	_ "github.com/mattn/go-sqlite3"
)

func openDB(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", "file:"+path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if _, err := migrate.Run(context.Background(), db); err != nil {
		_ = db.Close()
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db := openDB(t, filepath.Join(t.TempDir(), "readings.db"))
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	})
	return db
}

func f(v float64) *float64 { return &v }

func mustAppend(t *testing.T, repo ReadingsRepository, r types.Reading) int64 {
	t.Helper()
	id, err := repo.Append(context.Background(), r)
	if err != nil {
		t.Fatalf("Append(%+v): %v", r, err)
	}
	return id
}

func times(rs []types.Reading) []float64 {
	out := make([]float64, len(rs))
	for i, r := range rs {
		out[i] = r.Time
	}
	return out
}

func TestQueryRecent_EmptyStore(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	got, err := repo.QueryRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("QueryRecent: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("QueryRecent on empty store = %#v, want empty non-nil slice", got)
	}
}

func TestAppend_AssignsUniqueIncreasingIDs(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	seen := map[int64]bool{}
	var prev int64
	for i := 0; i < 5; i++ {
		id := mustAppend(t, repo, types.Reading{Time: 1000})
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		if id <= prev {
			t.Fatalf("id %d not greater than previous %d", id, prev)
		}
		seen[id] = true
		prev = id
	}
}

func TestQueryRecent_LatestOfTwo(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	mustAppend(t, repo, types.Reading{Time: 1000, Temp: f(22.5), RH: f(55)})
	id2 := mustAppend(t, repo, types.Reading{Time: 2000, Temp: f(23.0), RH: f(50)})

	got, err := repo.QueryRecent(context.Background(), 1)
	if err != nil {
		t.Fatalf("QueryRecent: %v", err)
	}
	want := []types.Reading{{ID: id2, Time: 2000, Temp: f(23.0), RH: f(50)}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("QueryRecent(1) = %+v, want %+v", got, want)
	}
}

func TestQueryRecent_OrdersByTimeNotInsertion(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	for _, ts := range []float64{100, 300, 200} {
		mustAppend(t, repo, types.Reading{Time: ts})
	}

	got, err := repo.QueryRecent(context.Background(), 3)
	if err != nil {
		t.Fatalf("QueryRecent: %v", err)
	}
	if want := []float64{300, 200, 100}; !reflect.DeepEqual(times(got), want) {
		t.Fatalf("times = %v, want %v", times(got), want)
	}
}

func TestQueryRecent_TopK(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	inserted := []float64{50, 10, 90, 70, 30, 80, 20, 60, 40}
	for _, ts := range inserted {
		mustAppend(t, repo, types.Reading{Time: ts})
	}

	all := []float64{90, 80, 70, 60, 50, 40, 30, 20, 10}
	for k := 1; k <= len(inserted); k++ {
		got, err := repo.QueryRecent(context.Background(), k)
		if err != nil {
			t.Fatalf("QueryRecent(%d): %v", k, err)
		}
		if want := all[:k]; !reflect.DeepEqual(times(got), want) {
			t.Errorf("QueryRecent(%d) times = %v, want %v", k, times(got), want)
		}
	}

	got, err := repo.QueryRecent(context.Background(), 100)
	if err != nil {
		t.Fatalf("QueryRecent(100): %v", err)
	}
	if len(got) != len(inserted) {
		t.Errorf("QueryRecent(100) len = %d, want %d", len(got), len(inserted))
	}
}

func TestQueryRecent_TiesNewestInsertFirst(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	first := mustAppend(t, repo, types.Reading{Time: 500, Temp: f(1)})
	second := mustAppend(t, repo, types.Reading{Time: 500, Temp: f(2)})
	mustAppend(t, repo, types.Reading{Time: 100})

	got, err := repo.QueryRecent(context.Background(), 3)
	if err != nil {
		t.Fatalf("QueryRecent: %v", err)
	}
	if got[0].ID != second || got[1].ID != first {
		t.Fatalf("tie order ids = [%d %d], want [%d %d]", got[0].ID, got[1].ID, second, first)
	}
}

func TestQueryRecent_Idempotent(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	for _, ts := range []float64{3, 1, 2} {
		mustAppend(t, repo, types.Reading{Time: ts, Temp: f(ts * 10)})
	}

	first, err := repo.QueryRecent(context.Background(), 2)
	if err != nil {
		t.Fatalf("QueryRecent: %v", err)
	}
	for i := 0; i < 3; i++ {
		again, err := repo.QueryRecent(context.Background(), 2)
		if err != nil {
			t.Fatalf("QueryRecent: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("QueryRecent not idempotent: %+v vs %+v", first, again)
		}
	}
}

func TestAppend_NullFieldsRoundTrip(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	mustAppend(t, repo, types.Reading{Time: 42})

	got, err := repo.QueryRecent(context.Background(), 1)
	if err != nil {
		t.Fatalf("QueryRecent: %v", err)
	}
	if got[0].Temp != nil || got[0].RH != nil {
		t.Fatalf("null fields came back as temp=%v rh=%v", got[0].Temp, got[0].RH)
	}
}

func TestAppend_DurableAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "durable.db")

	db := openDB(t, path)
	id := mustAppend(t, NewRepository(db), types.Reading{Time: 1234, Temp: f(21), RH: f(40)})
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := openDB(t, path)
	defer func() { _ = reopened.Close() }()

	got, err := NewRepository(reopened).QueryRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("QueryRecent after reopen: %v", err)
	}
	want := []types.Reading{{ID: id, Time: 1234, Temp: f(21), RH: f(40)}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("after reopen = %+v, want %+v", got, want)
	}
}

func TestQueryRecent_RejectsNonPositiveLimit(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	for _, limit := range []int{0, -1} {
		_, err := repo.QueryRecent(context.Background(), limit)
		if !errors.Is(err, types.ErrInvalidLimit) {
			t.Errorf("QueryRecent(%d) err = %v, want ErrInvalidLimit", limit, err)
		}
	}
}

func TestCount(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	for i := 0; i < 4; i++ {
		mustAppend(t, repo, types.Reading{Time: float64(i)})
	}
	n, err := repo.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 4 {
		t.Fatalf("Count = %d, want 4", n)
	}
}

func TestStorageFailures(t *testing.T) {
	db := openDB(t, filepath.Join(t.TempDir(), "closed.db"))
	repo := NewRepository(db)
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	ctx := context.Background()

	if _, err := repo.Append(ctx, types.Reading{Time: 1}); !errors.Is(err, types.ErrStorage) {
		t.Errorf("Append on closed db err = %v, want ErrStorage", err)
	}
	if _, err := repo.QueryRecent(ctx, 1); !errors.Is(err, types.ErrStorage) {
		t.Errorf("QueryRecent on closed db err = %v, want ErrStorage", err)
	}
	if _, err := repo.Count(ctx); !errors.Is(err, types.ErrStorage) {
		t.Errorf("Count on closed db err = %v, want ErrStorage", err)
	}
}
