package sim

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/wmarritt/hems/planner"

	_ "github.com/lib/pq"
)

func TestSaveAndLoadResultsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/results.json"

	results := &Results{
		CommunityDemand: []float64{1.5, 2.0, 0.5},
		H0SoC:           []float64{5.0, 5.2, 5.1},
		StepLog: []StepRecord{
			{Step: 0, PeakDemand: 1.5, NegotiationIterations: 0},
			{Step: 1, PeakDemand: 2.0, NegotiationIterations: 2, Warning: "transformer breach unresolved"},
		},
	}

	if err := SaveResults(path, results); err != nil {
		t.Fatalf("SaveResults() returned error: %v", err)
	}

	loaded, err := LoadResults(path)
	if err != nil {
		t.Fatalf("LoadResults() returned error: %v", err)
	}

	if len(loaded.CommunityDemand) != len(results.CommunityDemand) {
		t.Fatalf("expected %d community_demand entries, got %d", len(results.CommunityDemand), len(loaded.CommunityDemand))
	}
	if loaded.StepLog[1].Warning != results.StepLog[1].Warning {
		t.Errorf("expected warning to round-trip, got %q", loaded.StepLog[1].Warning)
	}
}

func TestSaveResultsToWriterUsesFourSpaceIndent(t *testing.T) {
	var buf bytes.Buffer
	if err := SaveResultsToWriter(&buf, &Results{CommunityDemand: []float64{1}, H0SoC: []float64{1}}); err != nil {
		t.Fatalf("SaveResultsToWriter() returned error: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("\n    \"community_demand\"")) {
		t.Errorf("expected 4-space-indented JSON, got:\n%s", buf.String())
	}
}

// TestPersistStepProposalsRoundTrip exercises the Postgres sink against
// a real database. It is skipped unless TEST_POSTGRES_CONN is set.
func TestPersistStepProposalsRoundTrip(t *testing.T) {
	connString := os.Getenv("TEST_POSTGRES_CONN")
	if connString == "" {
		t.Skip("skipping: TEST_POSTGRES_CONN not set")
	}

	db, err := sql.Open("postgres", connString)
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "DELETE FROM home_step_history WHERE step = $1", 999); err != nil {
		t.Fatalf("failed to clean up table: %v", err)
	}

	proposals := []planner.ProposalResult{
		{HouseID: 0, Status: planner.StatusOptimal, Import0: 1.2, NextSoCE: 5.0},
		{HouseID: 1, Status: planner.StatusSafeMode, Import0: 1.0, NextSoCE: 4.0},
	}

	if err := persistStepProposals(ctx, db, 999, proposals); err != nil {
		t.Fatalf("persistStepProposals() returned error: %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM home_step_history WHERE step = $1", 999).Scan(&count); err != nil {
		t.Fatalf("failed to count inserted rows: %v", err)
	}
	if count != len(proposals) {
		t.Errorf("expected %d persisted rows, got %d", len(proposals), count)
	}
}
