package ban

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-http/internal/infrastructure/database"
	_ "github.com/nerrad567/gray-logic-http/migrations"
)

// testStore opens a migrated in-memory database.
func testStore(t *testing.T) *SQLiteStore {
	t.Helper()

	db, err := database.Open(database.Config{Path: ":memory:", BusyTimeout: 5})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return NewSQLiteStore(db.DB)
}

func TestSQLiteStore_SaveAndLoad(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	bans, err := store.LoadBans(ctx)
	if err != nil {
		t.Fatalf("LoadBans() on empty table error = %v", err)
	}
	if len(bans) != 0 {
		t.Fatalf("LoadBans() = %d bans, want 0", len(bans))
	}

	when := time.Date(2026, 10, 15, 8, 30, 0, 0, time.UTC)
	v6 := netip.MustParseAddr("2001:db8::1")
	for _, b := range []Ban{
		{IP: testIP, BannedAt: when, Attempts: 3},
		{IP: v6, BannedAt: when.Add(time.Hour), Attempts: 4},
	} {
		if err := store.SaveBan(ctx, b); err != nil {
			t.Fatalf("SaveBan(%s) error = %v", b.IP, err)
		}
	}

	bans, err = store.LoadBans(ctx)
	if err != nil {
		t.Fatalf("LoadBans() error = %v", err)
	}
	if len(bans) != 2 {
		t.Fatalf("LoadBans() = %d bans, want 2", len(bans))
	}
	if bans[0].IP != testIP || bans[0].Attempts != 3 || !bans[0].BannedAt.Equal(when) {
		t.Errorf("bans[0] = %+v", bans[0])
	}
	if bans[1].IP != v6 {
		t.Errorf("bans[1].IP = %s, want %s", bans[1].IP, v6)
	}
}

func TestSQLiteStore_SaveReplaces(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	when := time.Date(2026, 10, 15, 8, 30, 0, 0, time.UTC)

	if err := store.SaveBan(ctx, Ban{IP: testIP, BannedAt: when, Attempts: 3}); err != nil {
		t.Fatalf("SaveBan() error = %v", err)
	}
	if err := store.SaveBan(ctx, Ban{IP: testIP, BannedAt: when.Add(time.Minute), Attempts: 7}); err != nil {
		t.Fatalf("SaveBan() again error = %v", err)
	}

	bans, err := store.LoadBans(ctx)
	if err != nil {
		t.Fatalf("LoadBans() error = %v", err)
	}
	if len(bans) != 1 || bans[0].Attempts != 7 {
		t.Errorf("LoadBans() = %+v, want a single ban with 7 attempts", bans)
	}
}

func TestTracker_SurvivesRestart(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	first := NewTracker(Options{Threshold: 2, Store: store})
	first.RecordFailure(ctx, testIP) //nolint:errcheck // below threshold
	if _, err := first.RecordFailure(ctx, testIP); err != nil {
		t.Fatalf("RecordFailure() error = %v", err)
	}

	restarted := NewTracker(Options{Threshold: 2, Store: store})
	if err := restarted.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !restarted.IsBanned(testIP) {
		t.Error("ban lost across restart")
	}
}
