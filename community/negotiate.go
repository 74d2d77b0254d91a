// Package community runs the iterative penalty negotiation that
// reconciles homes' independently-planned import profiles against a
// shared transformer limit.
package community

import (
	"fmt"
	"log"
	"sync"

	"github.com/wmarritt/hems/home"
	"github.com/wmarritt/hems/planner"
	"github.com/wmarritt/hems/tables"
)

// Home bundles one home's mutable state with the planner that proposes
// against it. The controller only ever reads State via Snapshot during
// negotiation; State is mutated afterwards by the driver's Commit pass.
type Home struct {
	State   *home.State
	Planner *planner.Planner
}

// Result is what one negotiate() call settles on: the approved (or
// safe-moded) proposal per home, the resulting slot-0 aggregate import,
// how many penalty-raising rounds preceded acceptance (0 when the first
// round has no breach; MaxIters when the budget ran out), and a
// non-empty Warning if the
// iteration budget was exhausted with a breach still outstanding.
type Result struct {
	Approved             []planner.ProposalResult
	FirstSlotTotalImport float64
	Iterations           int
	Warning              string
}

// Controller owns the per-step penalty vector and negotiation knobs.
// It is stateless between calls to Negotiate, the penalty vector
// itself is reset to zero at the start of every step.
type Controller struct {
	TransformerLimit float64
	PenaltyStep      float64
	MaxIters         int

	// MaxParallelHomes bounds how many home proposals run concurrently
	// within one negotiation round. Zero means unbounded (one goroutine
	// per home), which is fine for the community sizes this system
	// targets; the bound exists for pathologically large communities.
	MaxParallelHomes int

	Logger *log.Logger
}

// Negotiate runs a dual-ascent-style loop: propose, aggregate, check
// for a transformer breach, bump the penalty on any breached slot, and
// repeat. Within each round, every home's propose() call is
// independent and may run in parallel; the round-to-round reduction
// (breach detection, penalty bump) is strictly serial.
func (c *Controller) Negotiate(homes []Home, currentStep int) Result {
	pi := make([]float64, tables.HorizonSlots)
	maxIters := c.MaxIters
	if maxIters <= 0 {
		maxIters = 10
	}

	var proposals []planner.ProposalResult
	var aggregate [tables.HorizonSlots]float64

	for iter := 0; iter < maxIters; iter++ {
		proposals = c.proposeAll(homes, currentStep, pi)

		for k := range aggregate {
			aggregate[k] = 0
		}
		for _, p := range proposals {
			for k, v := range p.ProposedImportProfile {
				aggregate[k] += v
			}
		}

		var breaches []int
		for k, v := range aggregate {
			if v > c.TransformerLimit+1e-9 {
				breaches = append(breaches, k)
			}
		}

		if len(breaches) == 0 {
			return Result{
				Approved:             proposals,
				FirstSlotTotalImport: aggregate[0],
				Iterations:           iter,
			}
		}

		for _, k := range breaches {
			pi[k] += c.PenaltyStep
		}

		if iter == maxIters-1 {
			warning := fmt.Sprintf("transformer breach unresolved after %d iterations on %d slot(s); accepting last proposal set", maxIters, len(breaches))
			if c.Logger != nil {
				c.Logger.Printf("community: %s", warning)
			}
			return Result{
				Approved:             proposals,
				FirstSlotTotalImport: aggregate[0],
				Iterations:           maxIters,
				Warning:              warning,
			}
		}
	}

	// Unreachable: maxIters >= 1 guarantees the loop above always
	// returns on its final iteration.
	return Result{Approved: proposals, FirstSlotTotalImport: aggregate[0], Iterations: maxIters}
}

// proposeAll computes one negotiation round's proposals, substituting
// a synthesized Safe-mode proposal for any home whose own solve came
// back non-optimal. Results are returned in homes' original order
// regardless of completion order.
func (c *Controller) proposeAll(homes []Home, currentStep int, pi []float64) []planner.ProposalResult {
	results := make([]planner.ProposalResult, len(homes))

	sem := make(chan struct{}, c.parallelism(len(homes)))
	var wg sync.WaitGroup

	for i, h := range homes {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, h Home) {
			defer wg.Done()
			defer func() { <-sem }()

			result := h.Planner.Propose(h.State.Snapshot(), currentStep, pi)
			if result.Status != planner.StatusOptimal {
				if c.Logger != nil {
					c.Logger.Printf("home %d: propose returned %v, synthesizing safe-mode proposal", h.State.HouseID, result.Status)
				}
				result = planner.SafeModeProposal(h.State.HouseID)
			}
			results[i] = result
		}(i, h)
	}

	wg.Wait()
	return results
}

func (c *Controller) parallelism(numHomes int) int {
	if c.MaxParallelHomes <= 0 || c.MaxParallelHomes > numHomes {
		return numHomes
	}
	return c.MaxParallelHomes
}
