package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/setevik/communicatord/internal/flags"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func makeFlag(t *testing.T, unit, section, name string, priority int) *flags.Flag {
	t.Helper()
	f, err := flags.New(unit, section, name)
	if err != nil {
		t.Fatal(err)
	}
	f.SetMessage("test problem").SetPriority(priority)
	return f
}

func TestRecordAndQuery(t *testing.T) {
	db := testDB(t)

	f := makeFlag(t, "core-plugins", "attachment", "clamav-missing", 42)
	if err := db.Record(f, ActionRaise); err != nil {
		t.Fatalf("Record: %v", err)
	}

	transitions, err := db.Query(Filter{
		Since: time.Now().Add(-1 * time.Hour),
		Limit: 10,
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(transitions) != 1 {
		t.Fatalf("expected 1 transition, got %d", len(transitions))
	}

	got := transitions[0]
	if got.Unit != "core-plugins" || got.Section != "attachment" || got.Name != "clamav-missing" {
		t.Errorf("identity = %s/%s/%s", got.Unit, got.Section, got.Name)
	}
	if got.Action != ActionRaise {
		t.Errorf("Action = %q, want raise", got.Action)
	}
	if got.Priority != 42 {
		t.Errorf("Priority = %d, want 42", got.Priority)
	}
	if got.Message != "test problem" {
		t.Errorf("Message = %q", got.Message)
	}
	if got.Hostname == "" {
		t.Error("Hostname should be captured")
	}
}

func TestQueryFilters(t *testing.T) {
	db := testDB(t)

	f1 := makeFlag(t, "alpha", "one", "first", 10)
	f2 := makeFlag(t, "alpha", "two", "second", 20)
	f3 := makeFlag(t, "beta", "one", "third", 30)

	if err := db.Record(f1, ActionRaise); err != nil {
		t.Fatal(err)
	}
	if err := db.Record(f2, ActionRaise); err != nil {
		t.Fatal(err)
	}
	if err := db.Record(f3, ActionRaise); err != nil {
		t.Fatal(err)
	}
	if err := db.Record(f1, ActionClear); err != nil {
		t.Fatal(err)
	}

	since := time.Now().Add(-1 * time.Hour)

	// Filter by unit.
	transitions, err := db.Query(Filter{Since: since, Unit: "alpha"})
	if err != nil {
		t.Fatal(err)
	}
	if len(transitions) != 3 {
		t.Errorf("unit filter: got %d transitions, want 3", len(transitions))
	}

	// Filter by action.
	transitions, err = db.Query(Filter{Since: since, Action: ActionClear})
	if err != nil {
		t.Fatal(err)
	}
	if len(transitions) != 1 {
		t.Errorf("action filter: got %d transitions, want 1", len(transitions))
	}

	// Filter by limit.
	transitions, err = db.Query(Filter{Since: since, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(transitions) != 2 {
		t.Errorf("limit filter: got %d transitions, want 2", len(transitions))
	}
}

func TestPurge(t *testing.T) {
	db := testDB(t)

	f := makeFlag(t, "unit", "section", "name", 5)
	if err := db.Record(f, ActionRaise); err != nil {
		t.Fatal(err)
	}

	// Backdate the row past the retention cutoff.
	old := time.Now().Add(-100 * 24 * time.Hour).UTC().Format(time.RFC3339Nano)
	if _, err := db.db.Exec(`UPDATE transitions SET created_at = ?`, old); err != nil {
		t.Fatal(err)
	}

	if err := db.Record(f, ActionRaise); err != nil {
		t.Fatal(err)
	}

	purged, err := db.Purge(90 * 24 * time.Hour)
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if purged != 1 {
		t.Errorf("purged %d transitions, want 1", purged)
	}

	count, err := db.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("after purge: %d transitions remain, want 1", count)
	}
}

func TestCount(t *testing.T) {
	db := testDB(t)

	count, err := db.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Errorf("empty db count = %d, want 0", count)
	}

	f := makeFlag(t, "unit", "section", "name", 5)
	for i := 0; i < 5; i++ {
		if err := db.Record(f, ActionRaise); err != nil {
			t.Fatal(err)
		}
	}

	count, err = db.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 5 {
		t.Errorf("count = %d, want 5", count)
	}
}

func TestCheckCooldownFirstRaise(t *testing.T) {
	db := testDB(t)

	f := makeFlag(t, "unit", "section", "name", 60)
	result, err := db.CheckCooldown(f, time.Hour)
	if err != nil {
		t.Fatalf("CheckCooldown: %v", err)
	}
	if !result.ShouldNotify {
		t.Error("first raise should notify")
	}
	if result.RecentCount != 0 {
		t.Errorf("RecentCount = %d, want 0", result.RecentCount)
	}
}

func TestCheckCooldownSuppression(t *testing.T) {
	db := testDB(t)

	f := makeFlag(t, "unit", "section", "name", 60)
	if err := db.Record(f, ActionRaise); err != nil {
		t.Fatal(err)
	}

	result, err := db.CheckCooldown(f, time.Hour)
	if err != nil {
		t.Fatalf("CheckCooldown: %v", err)
	}
	if result.ShouldNotify {
		t.Error("repeat raise within the window should be suppressed")
	}
	if result.RecentCount != 1 {
		t.Errorf("RecentCount = %d, want 1", result.RecentCount)
	}
}

func TestCheckCooldownIgnoresOtherTriples(t *testing.T) {
	db := testDB(t)

	other := makeFlag(t, "unit", "section", "other", 60)
	if err := db.Record(other, ActionRaise); err != nil {
		t.Fatal(err)
	}

	f := makeFlag(t, "unit", "section", "name", 60)
	result, err := db.CheckCooldown(f, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if !result.ShouldNotify {
		t.Error("a different triple should not suppress notification")
	}
}

func TestCheckCooldownIgnoresClears(t *testing.T) {
	db := testDB(t)

	f := makeFlag(t, "unit", "section", "name", 60)
	if err := db.Record(f, ActionClear); err != nil {
		t.Fatal(err)
	}

	result, err := db.CheckCooldown(f, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if !result.ShouldNotify {
		t.Error("a prior clear should not suppress a raise notification")
	}
}
