package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/orian/spoolplan/models"
)

// PlanRequest is the incoming request for computing a swap plan.
type PlanRequest struct {
	Topology models.Topology     `json:"topology"`
	Strategy models.Strategy     `json:"strategy,omitempty"`
	Anneal   models.AnnealConfig `json:"anneal,omitempty"`
}

// getStrategy returns the requested strategy or the greedy default.
func getStrategy(s models.Strategy) models.Strategy {
	if s == "" {
		return models.StrategyGreedy
	}
	return s
}

// computePlan projects the analysis into usage ranges, runs the optimizer
// and wraps the result as a persistable plan.
func computePlan(analysis *models.Analysis, req *PlanRequest) (*models.Plan, error) {
	if analysis.Stats == nil {
		return nil, fmt.Errorf("analysis %s has no stats", analysis.ID)
	}
	stats := analysis.Stats
	ranges := ProjectColorUsage(stats.LayerColorMap, stats.TotalLayers)

	strategy := getStrategy(req.Strategy)
	result, err := Optimize(ranges, req.Topology, strategy, req.Anneal)
	if err != nil {
		return nil, err
	}
	attachZHeights(result, stats)

	return &models.Plan{
		ID:         uuid.New().String(),
		AnalysisID: analysis.ID,
		Strategy:   strategy,
		Topology:   req.Topology,
		Result:     result,
		CreatedAt:  time.Now(),
	}, nil
}

// attachZHeights estimates the Z height of each swap from the print's
// average layer height. Approximate on purpose: the operator needs a
// ballpark pause height, not micron accuracy.
func attachZHeights(result *models.OptimizationResult, stats *models.GcodeStats) {
	if stats.TotalLayers == 0 || stats.TotalHeight <= 0 {
		return
	}
	perLayer := stats.TotalHeight / float64(stats.TotalLayers)
	for i := range result.ManualSwaps {
		result.ManualSwaps[i].ZHeight = float64(result.ManualSwaps[i].AtLayer+1) * perLayer
	}
}

// buildPlanExport assembles the JSON export: everything needed to
// recompute the swap plan later without re-parsing the original file.
func buildPlanExport(analysis *models.Analysis, plan *models.Plan) *models.PlanExport {
	return &models.PlanExport{
		Colors:        analysis.Stats.Colors,
		TotalLayers:   analysis.Stats.TotalLayers,
		LayerColorMap: analysis.Stats.LayerColorMap,
		Topology:      plan.Topology,
		Strategy:      plan.Strategy,
		Result:        *plan.Result,
	}
}

// recomputeFromExport re-runs the optimizer from an imported export. The
// export carries the projected inputs, so the swap plan is reproducible
// byte-for-byte for the deterministic greedy strategy.
func recomputeFromExport(exp *models.PlanExport) (*models.OptimizationResult, error) {
	ranges := ProjectColorUsage(exp.LayerColorMap, exp.TotalLayers)
	return Optimize(ranges, exp.Topology, getStrategy(exp.Strategy), models.AnnealConfig{})
}
