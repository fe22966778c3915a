package main

import (
	"context"
	"strings"
	"testing"

	"github.com/orian/spoolplan/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// prusaTwoColor is a minimal two-color print in PrusaSlicer's dialect:
// layers are inferred from Z increases.
const prusaTwoColor = `; generated by PrusaSlicer 2.7.1 on 2024-01-15
; external perimeters extrusion width = 0.45mm
T0
G1 Z0.2 F300
G1 X10 Y10 E1.5
G1 Z0.4
T1
G1 X20 Y20 E2.0
G1 Z0.6
G1 X30 Y30 E1.0
; filament used [g] = 38.2, 61.8
; extruder_colour = #FF0000;#00FF00
; estimated printing time (normal mode) = 1h 33m 14s
`

func parseString(t *testing.T, input string) (*models.GcodeStats, []models.Diagnostic) {
	t.Helper()
	stats, diags, err := ParseGcode(context.Background(), BytesLineReader([]byte(input)), ParseOptions{})
	require.NoError(t, err)
	require.NotNil(t, stats)
	return stats, diags
}

func TestParseGcodePrusaTwoColor(t *testing.T) {
	stats, diags := parseString(t, prusaTwoColor)

	assert.Empty(t, diags)
	assert.Equal(t, 3, stats.TotalLayers)
	assert.InDelta(t, 0.6, stats.TotalHeight, 1e-9)
	assert.False(t, stats.Partial)

	require.NotNil(t, stats.SlicerInfo)
	assert.Equal(t, "PrusaSlicer", stats.SlicerInfo.Software)
	assert.Equal(t, "2.7.1", stats.SlicerInfo.Version)
	assert.Equal(t, "1h 33m 14s", stats.PrintTime)
	assert.Equal(t, 5594.0, stats.EstimatedPrintTime)

	require.Len(t, stats.Colors, 2)
	t0, t1 := stats.Color("T0"), stats.Color("T1")
	require.NotNil(t, t0)
	require.NotNil(t, t1)
	assert.Equal(t, "#FF0000", t0.HexValue)
	assert.Equal(t, "#00FF00", t1.HexValue)
	assert.Equal(t, 0, t0.FirstLayer)
	assert.Equal(t, 1, t0.LastLayer)
	assert.Equal(t, 1, t1.FirstLayer)
	assert.Equal(t, 2, t1.LastLayer)

	// Weight estimates dominate the usage split.
	assert.InDelta(t, 38.2, t0.UsagePercentage, 1e-9)
	assert.InDelta(t, 61.8, t1.UsagePercentage, 1e-9)

	require.Len(t, stats.ToolChanges, 2)
	assert.Equal(t, "", stats.ToolChanges[0].FromTool)
	assert.Equal(t, "T0", stats.ToolChanges[0].ToTool)
	assert.Equal(t, "T0", stats.ToolChanges[1].FromTool)
	assert.Equal(t, "T1", stats.ToolChanges[1].ToTool)
	assert.Equal(t, 1, stats.ToolChanges[1].Layer)

	assert.Equal(t, []string{"T0"}, stats.LayerColorMap[0])
	assert.Equal(t, []string{"T0", "T1"}, stats.LayerColorMap[1])
	assert.Equal(t, []string{"T1"}, stats.LayerColorMap[2])

	require.Len(t, stats.FilamentEstimates, 2)
	assert.Equal(t, "T0", stats.FilamentEstimates[0].ColorID)
	assert.Equal(t, 38.2, stats.FilamentEstimates[0].Weight)
}

func TestParseGcodeBambuMarkerDriven(t *testing.T) {
	input := `; total layer number: 3
; filament_colour = #0000FF
; layer num/total_layer_count: 1/3
T0
G1 Z0.2
G1 X1 Y1 E1
; layer num/total_layer_count: 2/3
G1 Z0.4
G1 X2 Y2 E1
; layer num/total_layer_count: 3/3
G1 Z0.6
G1 X3 Y3 E1
`
	stats, diags := parseString(t, input)

	assert.Empty(t, diags)
	// Markers drive the layer index; the Z increases must not double count.
	assert.Equal(t, 3, stats.TotalLayers)
	require.Len(t, stats.Colors, 1)
	assert.Equal(t, "#0000FF", stats.Colors[0].HexValue)
	assert.Equal(t, 0, stats.Colors[0].FirstLayer)
	assert.Equal(t, 2, stats.Colors[0].LastLayer)
}

func TestParseGcodeCuraLayerMarkers(t *testing.T) {
	input := `;Generated with Cura_SteamEngine 5.6.0
;LAYER_COUNT:4
T0
;LAYER:0
G1 Z0.2
G1 X1 E1
;LAYER:1
G1 Z0.4
G1 X2 E1
;TIME:3672
`
	stats, _ := parseString(t, input)

	require.NotNil(t, stats.SlicerInfo)
	assert.Equal(t, "Cura_SteamEngine", stats.SlicerInfo.Software)
	// The declared count exceeds what the file shows; trust the declaration.
	assert.Equal(t, 4, stats.TotalLayers)
	assert.Equal(t, 3672.0, stats.EstimatedPrintTime)
}

func TestParseGcodePseudoToolsIgnored(t *testing.T) {
	input := `T0
G1 Z0.2
G1 X1 E1
M620 S255A
T255
T1000
M621 S255A
M620 S1A
T1
G1 X2 E1
`
	stats, diags := parseString(t, input)

	assert.Empty(t, diags)
	// T255/T1000 are park positions, not filaments. The M620 S1A pre-stage
	// performs the switch to T1; the following T1 is then a no-op.
	require.Len(t, stats.Colors, 2)
	require.Len(t, stats.ToolChanges, 2)
	assert.Equal(t, "T1", stats.ToolChanges[1].ToTool)
}

func TestParseGcodeMalformedTokens(t *testing.T) {
	input := `T0
G1 Z0.2
G1 X1 Zbogus E1
Tx
G1 X2 E1
G1 Z0.4
`
	stats, diags := parseString(t, input)

	// Both malformed tokens recover with a diagnostic; parsing continues.
	require.Len(t, diags, 2)
	assert.Contains(t, diags[0].Message, "malformed Z parameter")
	assert.Equal(t, 3, diags[0].Line)
	assert.Contains(t, diags[1].Message, "malformed tool token")
	assert.Equal(t, 2, stats.TotalLayers)
	assert.False(t, stats.Partial)
}

func TestParseGcodeInlineComments(t *testing.T) {
	input := `T0 ; select first tool
G1 Z0.2 ; initial layer height
G1 X1 E1
; just a note
`
	stats, diags := parseString(t, input)

	assert.Empty(t, diags)
	require.Len(t, stats.Colors, 1)
	assert.InDelta(t, 0.2, stats.TotalHeight, 1e-9)
}

func TestParseGcodeEmptyInput(t *testing.T) {
	stats, diags := parseString(t, "")

	assert.Empty(t, diags)
	assert.Equal(t, 0, stats.TotalLayers)
	assert.Equal(t, 0.0, stats.TotalHeight)
	assert.Empty(t, stats.Colors)
	assert.Empty(t, stats.ToolChanges)
}

func TestParseGcodeBinaryInput(t *testing.T) {
	data := append([]byte("not text"), 0, 0, 0)
	_, _, err := ParseGcode(context.Background(), BytesLineReader(data), ParseOptions{})
	assert.ErrorIs(t, err, ErrEncoding)
}

func TestParseGcodeCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, diags, err := ParseGcode(ctx, BytesLineReader([]byte(prusaTwoColor)), ParseOptions{})
	assert.ErrorIs(t, err, ErrCancelled)
	// Cancellation never yields partial stats.
	assert.Nil(t, stats)
	assert.Nil(t, diags)
}

func TestParseGcodeIdempotent(t *testing.T) {
	first, _ := parseString(t, prusaTwoColor)
	second, _ := parseString(t, prusaTwoColor)

	first.ParseTime = 0
	second.ParseTime = 0
	assert.Equal(t, first, second)
}

func TestParseGcodeProgressEvents(t *testing.T) {
	// Pad the file past one chunk so at least one mid-parse event fires.
	var sb strings.Builder
	sb.WriteString("T0\nG1 Z0.2\n")
	for sb.Len() < readChunkSize+1024 {
		sb.WriteString("G1 X10.000 Y10.000 E0.03456\n")
	}

	var events []models.ProgressEvent
	_, _, err := ParseGcode(context.Background(), BytesLineReader([]byte(sb.String())), ParseOptions{
		Progress: func(ev models.ProgressEvent) { events = append(events, ev) },
	})
	require.NoError(t, err)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, 1.0, last.ProcessedRatio)
	for i := 1; i < len(events); i++ {
		assert.GreaterOrEqual(t, events[i].ProcessedRatio, events[i-1].ProcessedRatio)
	}
}

func TestParseGcodeLayerFallbackPercentages(t *testing.T) {
	// No weight estimates: the split falls back to layer share.
	input := `T0
G1 Z0.2
G1 X1 E1
G1 Z0.4
T1
G1 X2 E1
`
	stats, _ := parseString(t, input)

	t0, t1 := stats.Color("T0"), stats.Color("T1")
	require.NotNil(t, t0)
	require.NotNil(t, t1)
	// T0 touches layers 0 and 1 of 2; T1 only layer 1.
	assert.InDelta(t, 100.0, t0.UsagePercentage, 1e-9)
	assert.InDelta(t, 50.0, t1.UsagePercentage, 1e-9)
}
