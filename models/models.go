// Package models defines the core data types for spoolplan,
// a G-code color-usage analyzer and AMS slot planner for
// multi-material 3D prints.
package models

import "time"

// DefaultHexValue is the filament color used when no color definition
// comment was found for a tool. Slicers are not required to embed one.
const DefaultHexValue = "#888888"

// ColorInfo describes one filament/tool identity observed during a parse.
// Entries are created the first time a tool token appears and are frozen
// once parsing completes.
type ColorInfo struct {
	// ID is the tool index token as it appears in the G-code (e.g. "T0").
	ID string `json:"id"`

	// Name is the optional human-readable filament name, if the slicer
	// embedded one.
	Name string `json:"name,omitempty"`

	// HexValue is the display color as "#RRGGBB". Defaults to
	// DefaultHexValue when the file carries no color definition.
	HexValue string `json:"hexValue"`

	// FirstLayer and LastLayer bound the layers where this color appears.
	FirstLayer int `json:"firstLayer"`
	LastLayer  int `json:"lastLayer"`

	// LayersUsed is the exact set of layers in which the color was active.
	// Usage may be non-contiguous; keys are layer numbers.
	LayersUsed map[int]bool `json:"layersUsed"`

	// UsagePercentage is in [0,100]. Derived from layer counts, unless a
	// weight-based filament estimate exists, in which case weight share
	// dominates.
	UsagePercentage float64 `json:"usagePercentage"`
}

// ToolChange is one discrete tool-switch event. Instances are created once
// per detected switch and never mutated.
type ToolChange struct {
	// Layer is the layer at which the switch occurred.
	Layer int `json:"layer"`

	// LineNumber is the 1-based G-code line of the switch command.
	LineNumber int `json:"lineNumber"`

	// FromTool and ToTool are tool index tokens. FromTool is empty for the
	// first tool selection in a file.
	FromTool string `json:"fromTool,omitempty"`
	ToTool   string `json:"toTool"`

	// ZHeight is the Z position at the switch, if known.
	ZHeight float64 `json:"zHeight,omitempty"`
}

// SlicerInfo identifies the slicer that produced a file, harvested from
// generator comments.
type SlicerInfo struct {
	Software string `json:"software"`
	Version  string `json:"version,omitempty"`
}

// FilamentEstimate is a per-color material usage estimate embedded by the
// slicer. Either field may be zero when the dialect only reports one unit.
type FilamentEstimate struct {
	ColorID string `json:"colorId"`

	// Length in millimeters.
	Length float64 `json:"length,omitempty"`

	// Weight in grams. Weight, when present, dominates the usage
	// percentage shown for the color.
	Weight float64 `json:"weight,omitempty"`
}

// Diagnostic is one recoverable issue encountered during parsing. Parsing
// never stops for these; they are collected and returned alongside the
// primary result.
type Diagnostic struct {
	// Line is the 1-based line number the issue was observed on,
	// 0 when not line-specific.
	Line int `json:"line,omitempty"`

	Message string `json:"message"`
}

// GcodeStats is the aggregate result of parsing one G-code file or 3MF
// package.
//
// Invariant: every color id referenced by ToolChanges or LayerColorMap has
// a corresponding entry in Colors.
type GcodeStats struct {
	// TotalLayers is the number of layers detected (highest layer + 1).
	TotalLayers int `json:"totalLayers"`

	// TotalHeight is the final Z height in millimeters.
	TotalHeight float64 `json:"totalHeight"`

	// Colors holds one entry per observed tool, in first-seen order.
	Colors []*ColorInfo `json:"colors"`

	// ToolChanges is chronological, ordered by line number.
	ToolChanges []ToolChange `json:"toolChanges"`

	// LayerColorMap maps a layer number to the color ids active in it.
	LayerColorMap map[int][]string `json:"layerColorMap"`

	// SlicerInfo is present only when a generator comment was recognized.
	SlicerInfo *SlicerInfo `json:"slicerInfo,omitempty"`

	// PrintTime is the slicer's own human-readable estimate, verbatim.
	PrintTime string `json:"printTime,omitempty"`

	// EstimatedPrintTime is the estimate in seconds, when the dialect
	// embeds a machine-readable one.
	EstimatedPrintTime float64 `json:"estimatedPrintTime,omitempty"`

	// FilamentEstimates holds per-color length/weight estimates. 3MF
	// package metadata, when present, supersedes values derived from
	// G-code comments.
	FilamentEstimates []FilamentEstimate `json:"filamentEstimates,omitempty"`

	// Partial is set when parsing stopped early (truncated file, read
	// failure mid-stream) and the stats reflect only the consumed prefix.
	Partial bool `json:"partial,omitempty"`

	// ParseTime is wall-clock parse duration in milliseconds. Diagnostic
	// only; excluded from idempotence comparisons.
	ParseTime float64 `json:"parseTime"`
}

// Color returns the ColorInfo for a tool id, or nil if unknown.
func (s *GcodeStats) Color(id string) *ColorInfo {
	for _, c := range s.Colors {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// Analysis is one persisted parse result.
type Analysis struct {
	// ID is the unique identifier for this analysis (UUID). It doubles as
	// the parse job id while parsing is in flight.
	ID string `json:"id"`

	// FileName is the uploaded file's name.
	FileName string `json:"fileName"`

	// SourceKind is "gcode" or "3mf".
	SourceKind string `json:"sourceKind"`

	// Stats is nil while the parse job is still running.
	Stats *GcodeStats `json:"stats,omitempty"`

	// Diagnostics collected during the parse.
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`

	// Tags contains all tags associated with this analysis.
	Tags []*AnalysisTag `json:"tags,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// ProgressEvent reports advisory parse progress. Events never block
// correctness; a host may drop them freely.
type ProgressEvent struct {
	// ProcessedRatio is in [0,1], estimated from consumed bytes.
	ProcessedRatio float64 `json:"processedRatio"`

	Message string `json:"message"`

	// CurrentLayer is the layer the parser had reached when the event
	// was emitted.
	CurrentLayer int `json:"currentLayer"`
}
