package home

import (
	"testing"

	"github.com/wmarritt/hems/tables"
)

func testCatalog(t *testing.T) *tables.Catalog {
	t.Helper()
	cat, err := tables.DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog() returned error: %v", err)
	}
	return cat
}

func TestNewStateDefaults(t *testing.T) {
	cat := testCatalog(t)
	s := NewState(0, 5.1, 10.0, 20.0, 1.0, cat)

	if s.SoCE != 5.0 {
		t.Errorf("expected SoCE=5.0 (half of 10.0), got %v", s.SoCE)
	}
	if s.SoCTh != 10.0 {
		t.Errorf("expected SoCTh=10.0 (half of 20.0), got %v", s.SoCTh)
	}
	if s.TFridge != 4.0 || s.TFreezer != -18.0 {
		t.Errorf("unexpected initial fridge/freezer temps: %v, %v", s.TFridge, s.TFreezer)
	}
	for _, a := range cat.Appliances {
		if s.AlreadyRun[a.ID] {
			t.Errorf("expected appliance %q to start as not-run", a.Name)
		}
	}
}

func TestCommitOptimalAdvancesStateAndHistory(t *testing.T) {
	cat := testCatalog(t)
	s := NewState(0, 5.1, 10.0, 20.0, 1.0, cat)

	dishwasher, ok := cat.ByName("Dish washer")
	if !ok {
		t.Fatalf("expected 'Dish washer' in catalog")
	}

	in := CommitInput{
		Status:                StatusOptimal,
		NextSoCE:              6.0,
		NextSoCTh:             11.0,
		NextTFridge:           3.5,
		NextTFreezer:          -17.0,
		FridgeCompressorPower: 0.2,
		StartingAppliances:    []tables.ApplianceID{dishwasher.ID},
	}
	s.Commit(in, 20, nil)

	if s.SoCE != 6.0 || s.SoCTh != 11.0 || s.TFridge != 3.5 || s.TFreezer != -17.0 {
		t.Fatalf("Commit did not advance state as expected: %+v", s)
	}
	if !s.AlreadyRun[dishwasher.ID] {
		t.Fatalf("expected Dish washer to be marked already-run")
	}
	if v, ok := s.History.Get(20, dishwasher.ID); !ok || v < 0.5 {
		t.Fatalf("expected history to record Dish washer start at step 20, got (%v, %v)", v, ok)
	}
	if v, ok := s.History.Get(20, fridgeApplianceID); !ok || v != 0.2 {
		t.Fatalf("expected fridge compressor history 0.2 at step 20, got (%v, %v)", v, ok)
	}
}

// Invariant 6: replaying the same commit on a fresh copy is a no-op
// after the first application.
func TestCommitIdempotent(t *testing.T) {
	cat := testCatalog(t)
	s := NewState(0, 5.1, 10.0, 20.0, 1.0, cat)
	dishwasher, _ := cat.ByName("Dish washer")

	in := CommitInput{
		Status:                StatusOptimal,
		NextSoCE:              6.0,
		NextSoCTh:             11.0,
		NextTFridge:           3.5,
		NextTFreezer:          -17.0,
		FridgeCompressorPower: 0.2,
		StartingAppliances:    []tables.ApplianceID{dishwasher.ID},
	}
	s.Commit(in, 20, nil)
	after := *s
	s.Commit(in, 20, nil)

	if s.SoCE != after.SoCE || s.SoCTh != after.SoCTh || s.TFridge != after.TFridge || s.TFreezer != after.TFreezer {
		t.Fatalf("replaying commit mutated state: before=%+v after=%+v", after, *s)
	}
}

func TestCommitSafeModeAndDumbFallbackIdle(t *testing.T) {
	cat := testCatalog(t)
	for _, status := range []Status{StatusSafeMode, StatusDumbFallback} {
		s := NewState(0, 5.1, 10.0, 20.0, 1.0, cat)
		before := *s
		s.Commit(CommitInput{Status: status}, 5, nil)
		if s.SoCE != before.SoCE || s.SoCTh != before.SoCTh || s.TFridge != before.TFridge || s.TFreezer != before.TFreezer {
			t.Errorf("status %v: expected state to idle, got mutation", status)
		}
	}
}

func TestCommitClampsOutOfRangeValues(t *testing.T) {
	cat := testCatalog(t)
	s := NewState(0, 5.1, 10.0, 20.0, 1.0, cat)

	s.Commit(CommitInput{
		Status:       StatusOptimal,
		NextSoCE:     -5.0,  // below 0
		NextSoCTh:    5.0,
		NextTFridge:  10.0,  // above FridgeTempMax
		NextTFreezer: -30.0, // below FreezerTempMin
	}, 0, nil)

	if s.SoCE != 0 {
		t.Errorf("expected SoCE clamped to 0, got %v", s.SoCE)
	}
	if s.TFridge != tables.FridgeTempMax {
		t.Errorf("expected TFridge clamped to %v, got %v", tables.FridgeTempMax, s.TFridge)
	}
	if s.TFreezer != tables.FreezerTempMin {
		t.Errorf("expected TFreezer clamped to %v, got %v", tables.FreezerTempMin, s.TFreezer)
	}
}

func TestResetDailyFlags(t *testing.T) {
	cat := testCatalog(t)
	s := NewState(0, 5.1, 10.0, 20.0, 1.0, cat)
	dishwasher, _ := cat.ByName("Dish washer")
	s.AlreadyRun[dishwasher.ID] = true

	s.ResetDailyFlags()

	if s.AlreadyRun[dishwasher.ID] {
		t.Fatalf("expected already-run flags cleared after ResetDailyFlags")
	}
}

// Invariant 1: at most one start per appliance per rolling N-step window.
func TestHistoryAtMostOneStartPerWindow(t *testing.T) {
	cat := testCatalog(t)
	s := NewState(0, 5.1, 10.0, 20.0, 1.0, cat)
	dishwasher, _ := cat.ByName("Dish washer")

	s.Commit(CommitInput{Status: StatusOptimal, StartingAppliances: []tables.ApplianceID{dishwasher.ID}}, 20, nil)

	if got := s.History.CountInWindow(67, tables.SlotsPerDay, dishwasher.ID); got != 1 {
		t.Fatalf("expected exactly 1 start in window, got %d", got)
	}
}
