package flags

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// writeTestRecord drops a minimal valid flag file into dir.
func writeTestRecord(t *testing.T, dir, unit, section, name string) {
	t.Helper()
	path := filepath.Join(dir, fmt.Sprintf("%s_%s_%s.flag", unit, section, name))
	record := fmt.Sprintf("unit=%s\nsection=%s\nname=%s\nmessage=test problem\n", unit, section, name)
	if err := os.WriteFile(path, []byte(record), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadAllEmptyDirectory(t *testing.T) {
	testDir(t)

	if got := LoadAll(); len(got) != 0 {
		t.Errorf("LoadAll = %d flags, want 0", len(got))
	}
}

func TestLoadAllUnresolvedDirectory(t *testing.T) {
	resetDirectory()
	SetDirectory(filepath.Join(t.TempDir(), "missing"))
	t.Cleanup(resetDirectory)

	if got := LoadAll(); len(got) != 0 {
		t.Errorf("LoadAll = %d flags, want empty for unresolved directory", len(got))
	}
}

func TestLoadAllReturnsSavedFlags(t *testing.T) {
	dir := testDir(t)

	writeTestRecord(t, dir, "alpha", "one", "first")
	writeTestRecord(t, dir, "beta", "two", "second")
	writeTestRecord(t, dir, "gamma", "three", "third")

	got := LoadAll()
	if len(got) != 3 {
		t.Fatalf("LoadAll = %d flags, want 3", len(got))
	}
	units := map[string]bool{}
	for _, f := range got {
		units[f.Unit()] = true
	}
	for _, unit := range []string{"alpha", "beta", "gamma"} {
		if !units[unit] {
			t.Errorf("unit %q missing from LoadAll result", unit)
		}
	}
}

func TestLoadAllSkipsMalformedRecords(t *testing.T) {
	dir := testDir(t)

	writeTestRecord(t, dir, "alpha", "one", "first")
	// Missing the mandatory message field.
	bad := filepath.Join(dir, "beta_two_second.flag")
	if err := os.WriteFile(bad, []byte("unit=beta\nsection=two\nname=second\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	writeTestRecord(t, dir, "gamma", "three", "third")

	got := LoadAll()
	if len(got) != 2 {
		t.Fatalf("LoadAll = %d flags, want 2 (malformed record skipped)", len(got))
	}
	for _, f := range got {
		if f.Unit() == "beta" {
			t.Error("malformed record was not skipped")
		}
	}
}

func TestLoadAllOverflow(t *testing.T) {
	dir := testDir(t)

	for i := 0; i < 101; i++ {
		writeTestRecord(t, dir, "unit", "section", fmt.Sprintf("problem-%03d", i))
	}

	got := LoadAll()
	if len(got) != DefaultLimit {
		t.Fatalf("LoadAll = %d flags, want exactly %d", len(got), DefaultLimit)
	}

	sentinel := got[len(got)-1]
	if sentinel.Unit() != "communicatord" || sentinel.Section() != "flag" || sentinel.Name() != "too-many-flags" {
		t.Errorf("last flag = %s/%s/%s, want communicatord/flag/too-many-flags",
			sentinel.Unit(), sentinel.Section(), sentinel.Name())
	}
	if sentinel.Priority() != 97 {
		t.Errorf("sentinel priority = %d, want 97", sentinel.Priority())
	}
	if want := []string{"flag", "too-many"}; !reflect.DeepEqual(sentinel.Tags(), want) {
		t.Errorf("sentinel tags = %v, want %v", sentinel.Tags(), want)
	}
	if sentinel.State() != StateUp {
		t.Errorf("sentinel state = %v, want StateUp", sentinel.State())
	}

	// The sentinel goes through the normal save path so the overflow stays
	// visible on the next load.
	if _, err := os.Stat(filepath.Join(dir, "communicatord_flag_too-many-flags.flag")); err != nil {
		t.Errorf("sentinel was not persisted: %v", err)
	}

	// Everything before the sentinel is a real record.
	for _, f := range got[:len(got)-1] {
		if f.Unit() != "unit" {
			t.Errorf("unexpected flag %s/%s/%s before the sentinel", f.Unit(), f.Section(), f.Name())
		}
	}
}

func TestLoadAllCustomLimit(t *testing.T) {
	dir := testDir(t)
	SetLimit(10)
	t.Cleanup(func() { SetLimit(0) })

	for i := 0; i < 20; i++ {
		writeTestRecord(t, dir, "unit", "section", fmt.Sprintf("problem-%02d", i))
	}

	got := LoadAll()
	if len(got) != 10 {
		t.Fatalf("LoadAll = %d flags, want 10", len(got))
	}
	last := got[len(got)-1]
	if last.Name() != "too-many-flags" {
		t.Errorf("last flag = %q, want the overflow sentinel", last.Name())
	}
}
