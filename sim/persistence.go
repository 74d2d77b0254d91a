package sim

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/wmarritt/hems/planner"
)

// Results is the simulation driver's persisted output: the community
// demand and house-0 SoC trajectories, plus a per-step diagnostic log
// of negotiation outcomes.
type Results struct {
	CommunityDemand []float64    `json:"community_demand"` // aggregate kW imported at slot 0, per step
	H0SoC           []float64    `json:"h0_soc"`            // house 0's battery SoC (kWh), per step
	StepLog         []StepRecord `json:"step_log,omitempty"`
}

// StepRecord is one simulation step's negotiation outcome, useful for
// diagnosing how often (and how hard) the transformer limit bound.
type StepRecord struct {
	Step                 int     `json:"step"`
	PeakDemand           float64 `json:"peak_demand"`
	NegotiationIterations int     `json:"negotiation_iterations"`
	Warning              string  `json:"warning,omitempty"`
}

// SaveResults writes results as UTF-8, indent-4 JSON.
func SaveResults(path string, results *Results) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create results file: %w", err)
	}
	defer file.Close()

	return SaveResultsToWriter(file, results)
}

// SaveResultsToWriter writes results as indent-4 JSON to w.
func SaveResultsToWriter(w io.Writer, results *Results) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "    ")
	if err := encoder.Encode(results); err != nil {
		return fmt.Errorf("failed to encode results JSON: %w", err)
	}
	return nil
}

// LoadResults reads a previously-saved results file.
func LoadResults(path string) (*Results, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open results file: %w", err)
	}
	defer file.Close()

	var results Results
	if err := json.NewDecoder(file).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode results JSON: %w", err)
	}
	return &results, nil
}

// persistStepProposals is the optional Postgres sink for per-home
// negotiation outcomes: delete-then-insert per step so reruns of a
// step are idempotent, inside a single transaction.
func persistStepProposals(ctx context.Context, db *sql.DB, step int, proposals []planner.ProposalResult) error {
	if db == nil {
		return fmt.Errorf("database connection not available")
	}
	if len(proposals) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM home_step_history WHERE step = $1`, step); err != nil {
		return fmt.Errorf("failed to delete existing step history: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO home_step_history (
			step, house_id, status, import0, charge0, discharge0,
			next_soc_e, next_soc_th, next_t_fridge, next_t_freezer,
			fridge_compressor_power, explanation
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range proposals {
		_, err := stmt.ExecContext(ctx,
			step, p.HouseID, p.Status.String(), p.Import0, p.Charge0, p.Discharge0,
			p.NextSoCE, p.NextSoCTh, p.NextTFridge, p.NextTFreezer,
			p.FridgeCompressorPower, p.Explanation,
		)
		if err != nil {
			return fmt.Errorf("failed to insert history for house %d: %w", p.HouseID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
