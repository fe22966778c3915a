package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/orian/spoolplan/models"
)

// averageSwapSeconds is the assumed operator cost of one manual filament
// change, used for the estimated-time-saved heuristic.
const averageSwapSeconds = 180.0

// ErrSlotContention reports an internal invariant failure: the simulation
// needed to evict a color whose usage range had not yet ended. Given
// correctly projected ranges this cannot happen; when it does, it means
// more colors are simultaneously active than the feeder has slots, and a
// silently wrong swap plan would ruin a real print, so the optimizer fails
// loudly instead.
var ErrSlotContention = errors.New("slot contention: eviction candidate still in use")

// Optimize assigns color usage ranges onto the feeder topology using the
// selected strategy and computes the manual swap sequence. The annealing
// config is ignored by the greedy strategy.
//
// Degenerate inputs are valid, not errors: zero slots or an empty range
// list yield a trivial result with no assignments and no swaps.
func Optimize(ranges []models.ColorUsageRange, topo models.Topology, strategy models.Strategy, cfg models.AnnealConfig) (*models.OptimizationResult, error) {
	if err := topo.Validate(); err != nil {
		return nil, err
	}

	sorted := sortRanges(ranges)
	if len(sorted) == 0 || topo.TotalSlots() == 0 {
		return &models.OptimizationResult{
			TotalColors:     countColors(sorted),
			TotalSlots:      topo.TotalSlots(),
			SlotAssignments: []models.SlotAssignment{},
			ManualSwaps:     []models.ManualSwap{},
		}, nil
	}

	switch strategy {
	case models.StrategyGreedy, "":
		return optimizeGreedy(sorted, topo)
	case models.StrategyAnnealing:
		return optimizeAnnealing(sorted, topo, cfg)
	default:
		return nil, fmt.Errorf("unknown strategy %q", strategy)
	}
}

// sortRanges orders by start layer ascending with color id as the tie
// break. The copy keeps the caller's slice untouched.
func sortRanges(ranges []models.ColorUsageRange) []models.ColorUsageRange {
	sorted := make([]models.ColorUsageRange, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].StartLayer != sorted[j].StartLayer {
			return sorted[i].StartLayer < sorted[j].StartLayer
		}
		return sorted[i].ColorID < sorted[j].ColorID
	})
	return sorted
}

func countColors(ranges []models.ColorUsageRange) int {
	seen := make(map[string]bool)
	for _, r := range ranges {
		seen[r.ColorID] = true
	}
	return len(seen)
}

// naiveSwapCount is the no-feeder baseline: every transition between
// consecutive usage ranges would be a manual change.
func naiveSwapCount(ranges []models.ColorUsageRange) int {
	if len(ranges) <= 1 {
		return 0
	}
	return len(ranges) - 1
}
