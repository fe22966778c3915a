package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGcodeStatsColor(t *testing.T) {
	stats := &GcodeStats{
		Colors: []*ColorInfo{
			{ID: "T0", HexValue: "#FF0000"},
			{ID: "T1", HexValue: "#00FF00"},
		},
	}

	c := stats.Color("T1")
	assert.NotNil(t, c)
	assert.Equal(t, "#00FF00", c.HexValue)

	assert.Nil(t, stats.Color("T9"))
}

func TestToolChangeJSON(t *testing.T) {
	tc := ToolChange{Layer: 5, LineNumber: 120, ToTool: "T1", ZHeight: 1.2}

	jsonBytes, err := json.Marshal(tc)
	assert.NoError(t, err)
	// FromTool is omitted for the first selection in a file.
	assert.Equal(t, `{"layer":5,"lineNumber":120,"toTool":"T1","zHeight":1.2}`, string(jsonBytes))
}

func TestColorInfoJSON(t *testing.T) {
	c := ColorInfo{
		ID:         "T0",
		HexValue:   DefaultHexValue,
		FirstLayer: 0,
		LastLayer:  10,
		LayersUsed: map[int]bool{0: true},
	}

	jsonBytes, err := json.Marshal(c)
	assert.NoError(t, err)

	var parsed map[string]interface{}
	assert.NoError(t, json.Unmarshal(jsonBytes, &parsed))
	assert.Equal(t, "T0", parsed["id"])
	assert.Equal(t, "#888888", parsed["hexValue"])
	assert.NotContains(t, parsed, "name")
}

func TestPlanExportRoundTripJSON(t *testing.T) {
	exp := PlanExport{
		Colors:      []*ColorInfo{{ID: "T0", HexValue: "#FF0000"}},
		TotalLayers: 60,
		LayerColorMap: map[int][]string{
			0: {"T0"},
		},
		Topology: Topology{UnitCount: 1, SlotsPerUnit: 4},
		Strategy: StrategyGreedy,
		Result: OptimizationResult{
			TotalColors:     1,
			TotalSlots:      4,
			RequiredSlots:   1,
			SlotAssignments: []SlotAssignment{{Unit: 1, Slot: 1, Colors: []string{"T0"}, IsPermanent: true}},
			ManualSwaps:     []ManualSwap{},
		},
	}

	jsonBytes, err := json.Marshal(exp)
	assert.NoError(t, err)

	var back PlanExport
	assert.NoError(t, json.Unmarshal(jsonBytes, &back))
	assert.Equal(t, exp, back)
}
