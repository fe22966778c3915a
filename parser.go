package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/orian/spoolplan/models"
)

// ErrCancelled is returned when a parse job is cancelled at a chunk
// boundary. No partial stats accompany it: callers must never see a
// half-built result.
var ErrCancelled = errors.New("parse cancelled")

// zEpsilon guards layer detection against float noise in Z parameters.
const zEpsilon = 1e-3

// pseudo-tool indexes at or above this are printer-internal (Bambu uses
// T255/T1000 for park and wipe positions), never filament selections.
const maxRealTool = 254

// ParseOptions configures one parse run.
type ParseOptions struct {
	// Progress receives advisory events at chunk boundaries; may be nil.
	// It must not block: dropping events is always safe.
	Progress func(models.ProgressEvent)
}

// parseState is the parser's running state, threaded through each
// line-processing step as a value. Keeping it a small copyable struct
// makes single-transition unit tests trivial: feed one line and a state,
// assert the new state.
type parseState struct {
	layer int
	tool  string
	z     float64
	zSeen bool

	// markerDriven is set once an explicit numeric layer marker is seen;
	// Z-increase detection is then disabled to avoid double counting.
	markerDriven bool
}

// statsBuilder accumulates everything a parse produces besides the running
// state: colors, tool changes, the layer/color map, metadata, diagnostics.
type statsBuilder struct {
	colors     map[string]*models.ColorInfo
	colorOrder []string

	toolChanges []models.ToolChange

	layerColors map[int][]string
	layerSeen   map[int]map[string]bool

	hexByIndex map[int]string
	grams      []float64
	lengths    []float64

	slicer         *models.SlicerInfo
	printTime      string
	estSeconds     float64
	layerCountHint int

	diags []models.Diagnostic
}

func newStatsBuilder() *statsBuilder {
	return &statsBuilder{
		colors:      make(map[string]*models.ColorInfo),
		layerColors: make(map[int][]string),
		layerSeen:   make(map[int]map[string]bool),
		hexByIndex:  make(map[int]string),
	}
}

func (b *statsBuilder) diag(line int, format string, args ...interface{}) {
	b.diags = append(b.diags, models.Diagnostic{Line: line, Message: fmt.Sprintf(format, args...)})
}

// ensureColor upserts the ColorInfo for a tool id, creating it with the
// defined hex (or the default) on first sight.
func (b *statsBuilder) ensureColor(id string) *models.ColorInfo {
	if c, ok := b.colors[id]; ok {
		return c
	}
	hex := models.DefaultHexValue
	if idx, err := strconv.Atoi(strings.TrimPrefix(id, "T")); err == nil {
		if h, ok := b.hexByIndex[idx]; ok && h != "" {
			hex = h
		}
	}
	c := &models.ColorInfo{
		ID:         id,
		HexValue:   hex,
		FirstLayer: -1,
		LastLayer:  -1,
		LayersUsed: make(map[int]bool),
	}
	b.colors[id] = c
	b.colorOrder = append(b.colorOrder, id)
	return c
}

// markLayer records that a color is active in a layer, extending its usage
// bounds monotonically.
func (b *statsBuilder) markLayer(layer int, tool string) {
	if tool == "" {
		return
	}
	seen := b.layerSeen[layer]
	if seen == nil {
		seen = make(map[string]bool)
		b.layerSeen[layer] = seen
	}
	if !seen[tool] {
		seen[tool] = true
		b.layerColors[layer] = append(b.layerColors[layer], tool)
	}
	c := b.ensureColor(tool)
	if c.FirstLayer < 0 || layer < c.FirstLayer {
		c.FirstLayer = layer
	}
	if layer > c.LastLayer {
		c.LastLayer = layer
	}
	c.LayersUsed[layer] = true
}

// processLine applies one G-code line to the parse state, returning the
// new state. Accumulated output goes into b.
func processLine(st parseState, line string, lineNo int, b *statsBuilder) parseState {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return st
	}

	if strings.HasPrefix(trimmed, ";") {
		return applyDirective(st, ResolveComment(trimmed[1:]), b)
	}

	// Strip trailing inline comment before tokenizing.
	if i := strings.IndexByte(trimmed, ';'); i >= 0 {
		trimmed = strings.TrimSpace(trimmed[:i])
		if trimmed == "" {
			return st
		}
	}
	fields := strings.Fields(trimmed)
	cmd := strings.ToUpper(fields[0])

	switch {
	case cmd == "G0" || cmd == "G1":
		return applyMove(st, fields[1:], lineNo, b)

	case len(cmd) > 1 && cmd[0] == 'T':
		n, err := strconv.Atoi(cmd[1:])
		if err != nil {
			b.diag(lineNo, "malformed tool token %q", fields[0])
			return st
		}
		return applyToolChange(st, n, lineNo, b)

	case cmd == "M620" || cmd == "M621":
		// Bambu AMS filament staging: M620 S<n>A pre-stages slot n,
		// M621 S<n>A completes the switch. A following T<n> is a no-op
		// because the tool already matches.
		for _, f := range fields[1:] {
			if len(f) < 2 || (f[0] != 'S' && f[0] != 's') {
				continue
			}
			digits := strings.TrimRight(f[1:], "ABab")
			n, err := strconv.Atoi(digits)
			if err != nil {
				b.diag(lineNo, "malformed AMS slot token %q", f)
				return st
			}
			return applyToolChange(st, n, lineNo, b)
		}
		return st
	}
	return st
}

func applyToolChange(st parseState, n, lineNo int, b *statsBuilder) parseState {
	if n < 0 || n >= maxRealTool {
		return st
	}
	id := "T" + strconv.Itoa(n)
	if id == st.tool {
		return st
	}
	b.toolChanges = append(b.toolChanges, models.ToolChange{
		Layer:      st.layer,
		LineNumber: lineNo,
		FromTool:   st.tool,
		ToTool:     id,
		ZHeight:    st.z,
	})
	st.tool = id
	b.markLayer(st.layer, id)
	return st
}

func applyMove(st parseState, params []string, lineNo int, b *statsBuilder) parseState {
	newZ := st.z
	haveZ := false
	for _, p := range params {
		if len(p) < 2 {
			continue
		}
		switch p[0] {
		case 'Z', 'z':
			v, err := strconv.ParseFloat(p[1:], 64)
			if err != nil {
				// Recoverable: skip the field, keep the line.
				b.diag(lineNo, "malformed Z parameter %q", p)
				continue
			}
			newZ = v
			haveZ = true
		}
	}
	if !haveZ {
		return st
	}
	return advanceZ(st, newZ, b)
}

// advanceZ moves the tracked Z height and, unless an explicit layer marker
// dialect drives the layer index, counts an increase as a layer change.
func advanceZ(st parseState, z float64, b *statsBuilder) parseState {
	if !st.zSeen {
		// The first Z move establishes the initial layer height; content
		// printed there belongs to layer 0.
		st.z = z
		st.zSeen = true
		b.markLayer(st.layer, st.tool)
		return st
	}
	if z > st.z+zEpsilon {
		st.z = z
		if !st.markerDriven {
			st.layer++
			b.markLayer(st.layer, st.tool)
		}
	}
	return st
}

func applyDirective(st parseState, d Directive, b *statsBuilder) parseState {
	switch d.Kind {
	case DirectiveLayerMarker:
		if d.Layer >= 0 {
			st.markerDriven = true
			if d.Layer != st.layer {
				st.layer = d.Layer
			}
			b.markLayer(st.layer, st.tool)
		}
		if d.ZHeight > 0 {
			st = advanceZ(st, d.ZHeight, b)
		}

	case DirectiveLayerCount:
		b.layerCountHint = d.TotalLayers

	case DirectiveColorDefinition:
		for i, hex := range d.Hexes {
			if hex == "" {
				continue
			}
			b.hexByIndex[i] = hex
			if c, ok := b.colors["T"+strconv.Itoa(i)]; ok {
				c.HexValue = hex
			}
		}

	case DirectiveFilamentWeight:
		b.grams = d.Grams

	case DirectiveFilamentLength:
		b.lengths = d.Lengths

	case DirectivePrintTime:
		b.printTime = d.TimeText
		b.estSeconds = d.Seconds

	case DirectiveSlicerInfo:
		b.slicer = &models.SlicerInfo{Software: d.Software, Version: d.Version}
	}
	return st
}

// finalize freezes the accumulated state into a GcodeStats.
func (b *statsBuilder) finalize(st parseState, lines int, partial bool) *models.GcodeStats {
	stats := &models.GcodeStats{
		Colors:             make([]*models.ColorInfo, 0, len(b.colorOrder)),
		ToolChanges:        b.toolChanges,
		LayerColorMap:      b.layerColors,
		SlicerInfo:         b.slicer,
		PrintTime:          b.printTime,
		EstimatedPrintTime: b.estSeconds,
		Partial:            partial,
	}
	if lines > 0 {
		stats.TotalLayers = st.layer + 1
		if b.layerCountHint > stats.TotalLayers {
			stats.TotalLayers = b.layerCountHint
		}
		stats.TotalHeight = st.z
	}
	for _, id := range b.colorOrder {
		stats.Colors = append(stats.Colors, b.colors[id])
	}
	stats.FilamentEstimates = b.buildEstimates()
	computeUsagePercentages(stats)
	return stats
}

func (b *statsBuilder) buildEstimates() []models.FilamentEstimate {
	n := len(b.grams)
	if len(b.lengths) > n {
		n = len(b.lengths)
	}
	if n == 0 {
		return nil
	}
	out := make([]models.FilamentEstimate, 0, n)
	for i := 0; i < n; i++ {
		e := models.FilamentEstimate{ColorID: "T" + strconv.Itoa(i)}
		if i < len(b.grams) {
			e.Weight = b.grams[i]
		}
		if i < len(b.lengths) {
			e.Length = b.lengths[i]
		}
		out = append(out, e)
	}
	return out
}

// computeUsagePercentages derives each color's share. Layer counts are the
// baseline; weight-based filament estimates dominate when present because
// they reflect actual extruded material, not just layer presence.
func computeUsagePercentages(stats *models.GcodeStats) {
	weightByColor := make(map[string]float64)
	totalWeight := 0.0
	for _, e := range stats.FilamentEstimates {
		if e.Weight > 0 {
			weightByColor[e.ColorID] = e.Weight
			totalWeight += e.Weight
		}
	}
	for _, c := range stats.Colors {
		if w, ok := weightByColor[c.ID]; ok && totalWeight > 0 {
			c.UsagePercentage = w / totalWeight * 100
		} else if stats.TotalLayers > 0 {
			c.UsagePercentage = float64(len(c.LayersUsed)) / float64(stats.TotalLayers) * 100
		}
	}
}

// ParseGcode consumes the reader to completion and returns the aggregate
// stats plus the recoverable diagnostics collected along the way.
//
// The reader is consumed at chunk granularity: every readChunkSize bytes
// the parser checks ctx for cancellation and emits a progress event. On
// cancellation it returns ErrCancelled and no stats. A read failure after
// some lines succeeded truncates: the best-effort stats accumulated so far
// are returned with Partial set, because G-code files are frequently cut
// short by upload tools and a prefix is still useful.
func ParseGcode(ctx context.Context, r *LineReader, opts ParseOptions) (*models.GcodeStats, []models.Diagnostic, error) {
	start := time.Now()
	b := newStatsBuilder()
	st := parseState{}

	lineNo := 0
	partial := false
	lastChunk := int64(-1)

	for {
		if chunk := r.Consumed() / readChunkSize; chunk != lastChunk {
			lastChunk = chunk
			select {
			case <-ctx.Done():
				return nil, nil, ErrCancelled
			default:
			}
			if opts.Progress != nil && lineNo > 0 {
				opts.Progress(models.ProgressEvent{
					ProcessedRatio: r.Ratio(),
					Message:        fmt.Sprintf("parsing layer %d", st.layer),
					CurrentLayer:   st.layer,
				})
			}
		}

		line, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if errors.Is(err, ErrEncoding) {
				return nil, b.diags, err
			}
			if lineNo == 0 {
				// Nothing consumed: terminal I/O error.
				return nil, nil, err
			}
			b.diag(lineNo+1, "read failed mid-stream, truncating: %v", err)
			partial = true
			break
		}
		lineNo++
		st = processLine(st, line, lineNo, b)
	}

	select {
	case <-ctx.Done():
		return nil, nil, ErrCancelled
	default:
	}

	stats := b.finalize(st, lineNo, partial)
	stats.ParseTime = float64(time.Since(start).Microseconds()) / 1000.0

	if opts.Progress != nil {
		opts.Progress(models.ProgressEvent{
			ProcessedRatio: 1,
			Message:        "parse complete",
			CurrentLayer:   st.layer,
		})
	}
	return stats, b.diags, nil
}
