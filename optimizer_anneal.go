package main

import (
	"math"
	"math/rand"

	"github.com/orian/spoolplan/models"
)

// defaultAnnealSeed keeps unseeded runs reproducible.
const defaultAnnealSeed = 94121

// optimizeAnnealing refines the greedy solution by perturbing eviction
// choices. The search state is a vector of per-decision victim indexes
// (0 = the greedy earliest-ended pick); evaluation replays the slot
// simulation with those choices. The simulator is reset, not rebuilt,
// between trials, and a rejected proposal rolls back a single vector entry,
// so no per-iteration allocation scales with the iteration budget.
//
// Cost is the swap count plus a penalty for swaps landing close together
// in layer-space (back-to-back manual changes are hard on the operator).
// The penalty coefficients come from cfg; only ordering properties are
// guaranteed, not exact cost values.
//
// The best state starts as greedy and is only replaced by strictly fewer
// swaps (or equal swaps at lower cost), so the returned plan is never
// worse than greedy's.
func optimizeAnnealing(sorted []models.ColorUsageRange, topo models.Topology, cfg models.AnnealConfig) (*models.OptimizationResult, error) {
	def := models.DefaultAnnealConfig()
	if cfg.Iterations <= 0 {
		cfg.Iterations = def.Iterations
	}
	if cfg.InitialTemp <= 0 {
		cfg.InitialTemp = def.InitialTemp
	}
	if cfg.Cooling <= 0 || cfg.Cooling >= 1 {
		cfg.Cooling = def.Cooling
	}
	if cfg.ProximityLayers <= 0 {
		cfg.ProximityLayers = def.ProximityLayers
	}
	if cfg.ProximityPenalty < 0 {
		cfg.ProximityPenalty = def.ProximityPenalty
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = defaultAnnealSeed
	}

	sim := newSlotSim(topo)
	choices := make([]int, len(sorted))
	pick := func(decision, n int) int {
		if decision >= len(choices) {
			return 0
		}
		return choices[decision] % n
	}

	evaluate := func() (int, float64, error) {
		sim.reset()
		if err := sim.run(sorted, pick); err != nil {
			return 0, 0, err
		}
		return len(sim.swaps), float64(len(sim.swaps)) + proximityPenalty(sim.swaps, cfg), nil
	}

	// Greedy baseline: the all-zero choice vector.
	curSwaps, curCost, err := evaluate()
	if err != nil {
		return nil, err
	}
	bestSwaps, bestCost := curSwaps, curCost
	bestChoices := make([]int, len(choices))

	rng := rand.New(rand.NewSource(seed))
	temp := cfg.InitialTemp

	for it := 0; it < cfg.Iterations && bestSwaps > 0 && len(choices) > 0; it++ {
		d := rng.Intn(len(choices))
		prev := choices[d]
		choices[d] = rng.Intn(sim.slots)

		swaps, cost, err := evaluate()
		if err != nil {
			// The perturbed replay hit contention inherent to the input;
			// roll back and keep searching.
			choices[d] = prev
			temp *= cfg.Cooling
			continue
		}

		delta := cost - curCost
		if delta <= 0 || rng.Float64() < math.Exp(-delta/temp) {
			curSwaps, curCost = swaps, cost
			if swaps < bestSwaps || (swaps == bestSwaps && cost < bestCost) {
				bestSwaps, bestCost = swaps, cost
				copy(bestChoices, choices)
			}
		} else {
			choices[d] = prev
		}
		temp *= cfg.Cooling
	}

	copy(choices, bestChoices)
	sim.reset()
	if err := sim.run(sorted, pick); err != nil {
		return nil, err
	}
	return sim.result(sorted), nil
}

// proximityPenalty charges for consecutive swaps closer together than the
// configured layer distance. Swaps arrive in AtLayer order.
func proximityPenalty(swaps []models.ManualSwap, cfg models.AnnealConfig) float64 {
	p := 0.0
	for i := 1; i < len(swaps); i++ {
		if swaps[i].AtLayer-swaps[i-1].AtLayer < cfg.ProximityLayers {
			p += cfg.ProximityPenalty
		}
	}
	return p
}
