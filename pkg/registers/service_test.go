package registers

import (
	"testing"
	"time"
)

func TestCatalog_UniqueIDs(t *testing.T) {
	seen := map[uint16]bool{}
	for _, r := range All() {
		if seen[uint16(r.ID)] {
			t.Fatalf("duplicate register %d", r.ID)
		}
		seen[uint16(r.ID)] = true
	}
}

func TestDefaults(t *testing.T) {
	ids := Defaults()
	if len(ids) == 0 || ids[0] != HeatEnergy {
		t.Fatalf("defaults=%v", ids)
	}
	for _, id := range ids {
		r, ok := Lookup(id)
		if !ok || !r.EnabledByDefault {
			t.Fatalf("register %d is not enabled by default", id)
		}
	}
}

func TestParseID(t *testing.T) {
	if id, err := ParseID("1001"); err != nil || id != 1001 {
		t.Fatalf("ParseID=%d err=%v", id, err)
	}
	for _, raw := range []string{"", "-1", "70000", "abc"} {
		if _, err := ParseID(raw); err == nil {
			t.Fatalf("ParseID(%q) should fail", raw)
		}
	}
}

func TestDateFromValue(t *testing.T) {
	got, err := DateFromValue(240131, time.UTC)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if want := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if got, err := DateFromValue(50101, time.UTC); err != nil || got.Year() != 2005 {
		t.Fatalf("short value: %v %v", got, err)
	}
	if _, err := DateFromValue(241399, time.UTC); err == nil {
		t.Fatalf("expected invalid date error")
	}
}
