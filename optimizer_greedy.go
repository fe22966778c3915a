package main

import (
	"fmt"

	"github.com/orian/spoolplan/models"
)

// slotSim simulates slot occupancy over a start-ordered range list. It is
// built once and reset between runs without reallocating its internal
// slices; the annealing strategy depends on that for its iteration budget.
type slotSim struct {
	topo  models.Topology
	slots int

	occupant []string // "" = empty
	occEnd   []int    // end layer of the occupant's current range

	history [][]string // chronological occupants per slot
	swaps   []models.ManualSwap

	candidates []int // scratch for eviction candidate collection
}

func newSlotSim(topo models.Topology) *slotSim {
	n := topo.TotalSlots()
	s := &slotSim{
		topo:     topo,
		slots:    n,
		occupant: make([]string, n),
		occEnd:   make([]int, n),
		history:  make([][]string, n),
	}
	for i := range s.history {
		s.history[i] = make([]string, 0, 4)
	}
	return s
}

func (s *slotSim) reset() {
	for i := 0; i < s.slots; i++ {
		s.occupant[i] = ""
		s.occEnd[i] = 0
		s.history[i] = s.history[i][:0]
	}
	s.swaps = s.swaps[:0]
}

// run places every range in order. choose picks the eviction victim from
// the valid candidate list (sorted by occupant end layer ascending, then
// slot index); the greedy strategy always picks candidates[0]. decision
// counts eviction events so callers can index per-decision choices.
func (s *slotSim) run(ranges []models.ColorUsageRange, choose func(decision int, n int) int) error {
	decision := 0
	for _, r := range ranges {
		// Already loaded from a previous range: just extend.
		if idx := s.find(r.ColorID); idx >= 0 {
			s.occEnd[idx] = r.EndLayer
			continue
		}

		// Lowest empty slot first: deterministic and swap-free.
		if idx := s.findEmpty(); idx >= 0 {
			s.occupant[idx] = r.ColorID
			s.occEnd[idx] = r.EndLayer
			s.history[idx] = append(s.history[idx], r.ColorID)
			continue
		}

		// Eviction. Only occupants whose range has ended are valid
		// victims; evicting a live color would mean two ranges need the
		// same slot simultaneously.
		s.candidates = s.candidates[:0]
		for i := 0; i < s.slots; i++ {
			if s.occEnd[i] < r.StartLayer {
				s.candidates = append(s.candidates, i)
			}
		}
		if len(s.candidates) == 0 {
			return fmt.Errorf("%w: color %s at layer %d", ErrSlotContention, r.ColorID, r.StartLayer)
		}
		s.sortCandidates()

		idx := s.candidates[choose(decision, len(s.candidates))]
		decision++

		unit, slot := s.topo.Slot(idx)
		freedAt := s.occEnd[idx]
		pauseStart := freedAt + 1
		if pauseStart > r.StartLayer {
			pauseStart = r.StartLayer
		}
		s.swaps = append(s.swaps, models.ManualSwap{
			AtLayer:         r.StartLayer,
			Unit:            unit,
			Slot:            slot,
			FromColor:       s.occupant[idx],
			ToColor:         r.ColorID,
			Reason:          fmt.Sprintf("%s finished at layer %d; slot needed for %s", s.occupant[idx], freedAt, r.ColorID),
			PauseStartLayer: pauseStart,
			PauseEndLayer:   r.StartLayer,
		})
		s.occupant[idx] = r.ColorID
		s.occEnd[idx] = r.EndLayer
		s.history[idx] = append(s.history[idx], r.ColorID)
	}
	return nil
}

func (s *slotSim) find(color string) int {
	for i := 0; i < s.slots; i++ {
		if s.occupant[i] == color {
			return i
		}
	}
	return -1
}

func (s *slotSim) findEmpty() int {
	for i := 0; i < s.slots; i++ {
		if s.occupant[i] == "" {
			return i
		}
	}
	return -1
}

// sortCandidates orders by occupant end layer ascending, slot index as the
// tie break. Insertion sort: the list is at most the slot count.
func (s *slotSim) sortCandidates() {
	c := s.candidates
	for i := 1; i < len(c); i++ {
		for j := i; j > 0; j-- {
			a, b := c[j-1], c[j]
			if s.occEnd[a] < s.occEnd[b] || (s.occEnd[a] == s.occEnd[b] && a < b) {
				break
			}
			c[j-1], c[j] = b, a
		}
	}
}

// result freezes the simulation into an OptimizationResult.
func (s *slotSim) result(ranges []models.ColorUsageRange) *models.OptimizationResult {
	assignments := make([]models.SlotAssignment, 0, s.slots)
	required := 0
	for i := 0; i < s.slots; i++ {
		if len(s.history[i]) == 0 {
			continue
		}
		required++
		unit, slot := s.topo.Slot(i)
		colors := make([]string, len(s.history[i]))
		copy(colors, s.history[i])
		assignments = append(assignments, models.SlotAssignment{
			Unit:        unit,
			Slot:        slot,
			Colors:      colors,
			IsPermanent: len(colors) == 1,
		})
	}
	swaps := make([]models.ManualSwap, len(s.swaps))
	copy(swaps, s.swaps)

	saved := float64(naiveSwapCount(ranges)-len(swaps)) * averageSwapSeconds
	if saved < 0 {
		saved = 0
	}
	return &models.OptimizationResult{
		TotalColors:        countColors(ranges),
		TotalSlots:         s.slots,
		RequiredSlots:      required,
		SlotAssignments:    assignments,
		ManualSwaps:        swaps,
		EstimatedTimeSaved: saved,
	}
}

// optimizeGreedy simulates the print in range start order: lowest free
// slot wins, and when eviction is forced the victim is the occupant whose
// usage ended earliest. Fully deterministic; run twice on the same input
// it produces identical output.
func optimizeGreedy(sorted []models.ColorUsageRange, topo models.Topology) (*models.OptimizationResult, error) {
	sim := newSlotSim(topo)
	if err := sim.run(sorted, func(int, int) int { return 0 }); err != nil {
		return nil, err
	}
	return sim.result(sorted), nil
}
