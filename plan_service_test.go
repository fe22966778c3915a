package main

import (
	"testing"

	"github.com/orian/spoolplan/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureAnalysis() *models.Analysis {
	return &models.Analysis{
		ID:         "a-1",
		FileName:   "benchy.gcode",
		SourceKind: "gcode",
		Stats: &models.GcodeStats{
			TotalLayers: 60,
			TotalHeight: 12.0,
			Colors: []*models.ColorInfo{
				{ID: "T0", HexValue: "#FF0000"},
				{ID: "T1", HexValue: "#00FF00"},
				{ID: "T2", HexValue: "#0000FF"},
			},
			LayerColorMap: func() map[int][]string {
				m := map[int][]string{}
				for i := 0; i < 20; i++ {
					m[i] = []string{"T0"}
				}
				for i := 20; i < 40; i++ {
					m[i] = []string{"T1"}
				}
				for i := 40; i < 60; i++ {
					m[i] = []string{"T2"}
				}
				return m
			}(),
		},
	}
}

func TestComputePlan(t *testing.T) {
	analysis := fixtureAnalysis()
	req := &PlanRequest{Topology: models.Topology{UnitCount: 1, SlotsPerUnit: 2}}

	plan, err := computePlan(analysis, req)
	require.NoError(t, err)

	assert.NotEmpty(t, plan.ID)
	assert.Equal(t, "a-1", plan.AnalysisID)
	assert.Equal(t, models.StrategyGreedy, plan.Strategy)
	assert.False(t, plan.CreatedAt.IsZero())

	require.NotNil(t, plan.Result)
	assert.Equal(t, 3, plan.Result.TotalColors)
	// Three sequential colors on two slots: one swap when T2 arrives.
	require.Len(t, plan.Result.ManualSwaps, 1)
	swap := plan.Result.ManualSwaps[0]
	assert.Equal(t, 40, swap.AtLayer)
	assert.Equal(t, "T0", swap.FromColor)
	assert.Equal(t, "T2", swap.ToColor)

	// 60 layers over 12mm gives 0.2mm per layer.
	assert.InDelta(t, float64(swap.AtLayer+1)*0.2, swap.ZHeight, 1e-9)
}

func TestComputePlanNoStats(t *testing.T) {
	analysis := &models.Analysis{ID: "a-2"}
	_, err := computePlan(analysis, &PlanRequest{Topology: models.Topology{UnitCount: 1, SlotsPerUnit: 4}})
	assert.Error(t, err)
}

func TestAttachZHeightsDegenerate(t *testing.T) {
	result := &models.OptimizationResult{
		ManualSwaps: []models.ManualSwap{{AtLayer: 10}},
	}
	attachZHeights(result, &models.GcodeStats{TotalLayers: 0, TotalHeight: 0})
	assert.Equal(t, 0.0, result.ManualSwaps[0].ZHeight)
}

func TestPlanExportRoundTrip(t *testing.T) {
	analysis := fixtureAnalysis()
	// Zero height skips Z attachment so the recomputed result matches
	// byte for byte.
	analysis.Stats.TotalHeight = 0

	req := &PlanRequest{Topology: models.Topology{UnitCount: 1, SlotsPerUnit: 2}}
	plan, err := computePlan(analysis, req)
	require.NoError(t, err)

	exp := buildPlanExport(analysis, plan)
	assert.Equal(t, analysis.Stats.TotalLayers, exp.TotalLayers)
	assert.Equal(t, plan.Strategy, exp.Strategy)
	assert.Len(t, exp.Colors, 3)

	recomputed, err := recomputeFromExport(exp)
	require.NoError(t, err)
	assert.Equal(t, plan.Result, recomputed)
}

func TestGetStrategy(t *testing.T) {
	assert.Equal(t, models.StrategyGreedy, getStrategy(""))
	assert.Equal(t, models.StrategyGreedy, getStrategy(models.StrategyGreedy))
	assert.Equal(t, models.StrategyAnnealing, getStrategy(models.StrategyAnnealing))
}
