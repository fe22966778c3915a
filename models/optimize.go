package models

import (
	"fmt"
	"time"
)

// Strategy selects the slot-assignment algorithm.
type Strategy string

const (
	// StrategyGreedy simulates the print layer-by-layer, always assigning
	// to the lowest free slot and evicting the occupant that finished
	// earliest. Deterministic, and minimal under its eviction rule.
	StrategyGreedy Strategy = "greedy"

	// StrategyAnnealing refines the greedy solution with simulated
	// annealing. Best-effort: never worse than greedy, not guaranteed
	// optimal.
	StrategyAnnealing Strategy = "annealing"
)

// Topology describes the physical feeder configuration. Exactly one of the
// two variants is used: AMS-style units with multiple slots, or individual
// toolheads holding one filament each.
type Topology struct {
	// UnitCount is the number of AMS units. 0 when ToolheadCount is set.
	UnitCount int `json:"unitCount,omitempty"`

	// SlotsPerUnit is the slot count per unit, typically 4.
	SlotsPerUnit int `json:"slotsPerUnit,omitempty"`

	// ToolheadCount models independent toolheads, one slot each.
	// 0 when the AMS variant is used.
	ToolheadCount int `json:"toolheadCount,omitempty"`
}

// DefaultSlotsPerUnit is the slot count of a standard AMS unit.
const DefaultSlotsPerUnit = 4

// TotalSlots returns the number of physical filament positions.
func (t Topology) TotalSlots() int {
	if t.ToolheadCount > 0 {
		return t.ToolheadCount
	}
	return t.UnitCount * t.SlotsPerUnit
}

// Slot converts a flat slot index to (unit, slot), both 1-based.
func (t Topology) Slot(index int) (unit, slot int) {
	if t.ToolheadCount > 0 {
		return index + 1, 1
	}
	return index/t.SlotsPerUnit + 1, index%t.SlotsPerUnit + 1
}

// Validate reports a configuration error, or nil. A topology with zero
// total slots is valid input to the optimizer (it yields a trivial result),
// but mixed or negative variants are not.
func (t Topology) Validate() error {
	if t.ToolheadCount > 0 && (t.UnitCount > 0 || t.SlotsPerUnit > 0) {
		return fmt.Errorf("topology: toolhead and AMS variants are mutually exclusive")
	}
	if t.ToolheadCount < 0 || t.UnitCount < 0 || t.SlotsPerUnit < 0 {
		return fmt.Errorf("topology: counts must be non-negative")
	}
	if t.UnitCount > 0 && t.SlotsPerUnit == 0 {
		return fmt.Errorf("topology: slotsPerUnit required with unitCount")
	}
	return nil
}

// ColorUsageRange is one maximal contiguous span of layers during which a
// color is continuously active. A color used in layers [3,7] and again in
// [40,42] yields two ranges. This is the optimizer's unit of work: the
// color must be physically loaded for the whole range.
type ColorUsageRange struct {
	ColorID    string `json:"colorId"`
	StartLayer int    `json:"startLayer"`
	EndLayer   int    `json:"endLayer"`
}

// SlotAssignment records one physical slot's occupants over the print's
// lifetime. The same slot may host multiple colors sequentially; Colors is
// chronological.
type SlotAssignment struct {
	// Unit and Slot are 1-based.
	Unit int `json:"unit"`
	Slot int `json:"slot"`

	Colors []string `json:"colors"`

	// IsPermanent is true when the slot never needs a manual swap.
	IsPermanent bool `json:"isPermanent"`
}

// ManualSwap is one operator-performed filament change.
//
// Swaps are strictly ordered by AtLayer ascending, and no two swaps for the
// same slot have overlapping pause windows.
type ManualSwap struct {
	// AtLayer is the layer by which the new color must be loaded.
	AtLayer int `json:"atLayer"`

	// ZHeight at AtLayer, when the print's layer heights are known.
	ZHeight float64 `json:"zHeight,omitempty"`

	// Unit and Slot are 1-based, matching SlotAssignment.
	Unit int `json:"unit"`
	Slot int `json:"slot"`

	FromColor string `json:"fromColor"`
	ToColor   string `json:"toColor"`

	// Reason is a human-readable justification for the swap.
	Reason string `json:"reason"`

	// PauseStartLayer..PauseEndLayer is the window in which the operator
	// may perform the swap without harming the print: it opens once the
	// outgoing color's last use has passed and closes at AtLayer.
	PauseStartLayer int `json:"pauseStartLayer"`
	PauseEndLayer   int `json:"pauseEndLayer"`
}

// OptimizationResult is the optimizer's final output for one analysis and
// topology.
type OptimizationResult struct {
	TotalColors int `json:"totalColors"`
	TotalSlots  int `json:"totalSlots"`

	// RequiredSlots is the number of distinct slots actually used. It may
	// exceed nothing: when colors outnumber capacity, ManualSwaps is
	// non-empty instead.
	RequiredSlots int `json:"requiredSlots"`

	SlotAssignments []SlotAssignment `json:"slotAssignments"`

	// ManualSwaps is ordered by AtLayer ascending.
	ManualSwaps []ManualSwap `json:"manualSwaps"`

	// EstimatedTimeSaved is seconds saved versus the no-feeder baseline
	// where every tool change is a manual swap. Heuristic.
	EstimatedTimeSaved float64 `json:"estimatedTimeSaved"`
}

// AnnealConfig tunes the simulated-annealing strategy. The proximity
// penalty coefficients are deliberately exposed: the right weighting for
// "swaps too close together" is operator preference, not a constant.
type AnnealConfig struct {
	// Iterations is the total trial budget.
	Iterations int `json:"iterations"`

	// InitialTemp is the starting acceptance temperature.
	InitialTemp float64 `json:"initialTemp"`

	// Cooling is the geometric decay factor applied per iteration,
	// in (0,1).
	Cooling float64 `json:"cooling"`

	// ProximityLayers is the layer distance under which two swaps on any
	// slot are considered uncomfortably close.
	ProximityLayers int `json:"proximityLayers"`

	// ProximityPenalty is the cost added per too-close swap pair.
	ProximityPenalty float64 `json:"proximityPenalty"`

	// Seed makes runs reproducible. 0 selects the fixed default seed.
	Seed int64 `json:"seed,omitempty"`
}

// DefaultAnnealConfig returns the default annealing parameters.
func DefaultAnnealConfig() AnnealConfig {
	return AnnealConfig{
		Iterations:       20000,
		InitialTemp:      8.0,
		Cooling:          0.9995,
		ProximityLayers:  5,
		ProximityPenalty: 0.25,
	}
}

// Plan is one persisted optimization run.
type Plan struct {
	// ID is the unique identifier for this plan (UUID).
	ID string `json:"id"`

	// AnalysisID references the analysis the plan was computed from.
	AnalysisID string `json:"analysisId"`

	Strategy Strategy            `json:"strategy"`
	Topology Topology            `json:"topology"`
	Result   *OptimizationResult `json:"result"`

	CreatedAt time.Time `json:"createdAt"`
}

// PlanExport is the JSON export contract: everything needed to recompute a
// swap plan without re-parsing the original file. Field names match the
// in-memory model exactly for round-trip fidelity.
type PlanExport struct {
	Colors        []*ColorInfo       `json:"colors"`
	TotalLayers   int                `json:"totalLayers"`
	LayerColorMap map[int][]string   `json:"layerColorMap"`
	Topology      Topology           `json:"topology"`
	Strategy      Strategy           `json:"strategy"`
	Result        OptimizationResult `json:"result"`
}
