package main

import (
	"regexp"
	"strconv"
	"strings"
)

// DirectiveKind tags the variant a comment line resolved to.
type DirectiveKind int

const (
	// DirectiveUnrecognized is the benign default: the comment matched no
	// known dialect, or matched one but carried a malformed payload.
	DirectiveUnrecognized DirectiveKind = iota

	// DirectiveLayerMarker marks a layer boundary. Layer is -1 when the
	// dialect only announces the boundary, not the index.
	DirectiveLayerMarker

	// DirectiveLayerCount announces the total layer count up front.
	DirectiveLayerCount

	// DirectiveColorDefinition lists filament display colors per extruder.
	DirectiveColorDefinition

	// DirectiveFilamentWeight lists per-extruder material weight in grams.
	DirectiveFilamentWeight

	// DirectiveFilamentLength lists per-extruder material length in mm.
	DirectiveFilamentLength

	// DirectivePrintTime carries the slicer's print time estimate.
	DirectivePrintTime

	// DirectiveSlicerInfo identifies the generating slicer.
	DirectiveSlicerInfo
)

// Directive is the tagged result of resolving one comment payload. Only
// the fields relevant to Kind are populated.
type Directive struct {
	Kind DirectiveKind

	// LayerMarker
	Layer   int // -1 when unknown
	ZHeight float64

	// LayerCount
	TotalLayers int

	// ColorDefinition: hex values in extruder order ("#RRGGBB").
	Hexes []string

	// FilamentWeight / FilamentLength: values in extruder order.
	Grams   []float64
	Lengths []float64

	// PrintTime
	Seconds  float64
	TimeText string

	// SlicerInfo
	Software string
	Version  string
}

// matcher is one dialect-specific pattern. apply returns ok=false when the
// pattern matched but the numeric payload is malformed; the resolver then
// downgrades to Unrecognized instead of trying other dialects, so no
// matcher backtracks into a partial match from a different dialect.
type matcher struct {
	re    *regexp.Regexp
	apply func(m []string) (Directive, bool)
}

// dialectMatchers is tried in fixed priority order, first match wins. The
// order is load-bearing where dialects overlap: Bambu Studio and OrcaSlicer
// share most comment keys, PrusaSlicer's "filament used" lines would
// otherwise shadow Bambu's "total filament" variants, and Cura's bare
// "LAYER:" prefix is the loosest pattern so it goes last. New dialects are
// appended here, never registered at runtime.
var dialectMatchers = []matcher{
	// Bambu Studio / OrcaSlicer
	{
		re: regexp.MustCompile(`^\s*total layer number:\s*(\d+)`),
		apply: func(m []string) (Directive, bool) {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				return Directive{}, false
			}
			return Directive{Kind: DirectiveLayerCount, TotalLayers: n}, true
		},
	},
	{
		re: regexp.MustCompile(`^\s*layer num/total_layer_count:\s*(\d+)/\d+`),
		apply: func(m []string) (Directive, bool) {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				return Directive{}, false
			}
			// Bambu counts layers from 1.
			return Directive{Kind: DirectiveLayerMarker, Layer: n - 1}, true
		},
	},
	{
		re: regexp.MustCompile(`^\s*total filament weight \[g\]\s*:\s*(.+)$`),
		apply: func(m []string) (Directive, bool) {
			grams, ok := parseFloatList(m[1])
			if !ok {
				return Directive{}, false
			}
			return Directive{Kind: DirectiveFilamentWeight, Grams: grams}, true
		},
	},
	{
		re: regexp.MustCompile(`^\s*total filament length \[mm\]\s*:\s*(.+)$`),
		apply: func(m []string) (Directive, bool) {
			lengths, ok := parseFloatList(m[1])
			if !ok {
				return Directive{}, false
			}
			return Directive{Kind: DirectiveFilamentLength, Lengths: lengths}, true
		},
	},
	{
		re: regexp.MustCompile(`^\s*model printing time:\s*(\d+)s`),
		apply: func(m []string) (Directive, bool) {
			secs, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				return Directive{}, false
			}
			return Directive{Kind: DirectivePrintTime, Seconds: secs, TimeText: m[1] + "s"}, true
		},
	},
	{
		re: regexp.MustCompile(`^\s*filament_colour\s*=\s*(.+)$`),
		apply: func(m []string) (Directive, bool) {
			hexes, ok := parseHexList(m[1])
			if !ok {
				return Directive{}, false
			}
			return Directive{Kind: DirectiveColorDefinition, Hexes: hexes}, true
		},
	},

	// PrusaSlicer
	{
		re: regexp.MustCompile(`^\s*extruder_colour\s*=\s*(.+)$`),
		apply: func(m []string) (Directive, bool) {
			hexes, ok := parseHexList(m[1])
			if !ok {
				return Directive{}, false
			}
			return Directive{Kind: DirectiveColorDefinition, Hexes: hexes}, true
		},
	},
	{
		re: regexp.MustCompile(`^\s*filament used \[g\]\s*=\s*(.+)$`),
		apply: func(m []string) (Directive, bool) {
			grams, ok := parseFloatList(m[1])
			if !ok {
				return Directive{}, false
			}
			return Directive{Kind: DirectiveFilamentWeight, Grams: grams}, true
		},
	},
	{
		re: regexp.MustCompile(`^\s*filament used \[mm\]\s*=\s*(.+)$`),
		apply: func(m []string) (Directive, bool) {
			lengths, ok := parseFloatList(m[1])
			if !ok {
				return Directive{}, false
			}
			return Directive{Kind: DirectiveFilamentLength, Lengths: lengths}, true
		},
	},
	{
		re: regexp.MustCompile(`^\s*estimated printing time.*=\s*(.+)$`),
		apply: func(m []string) (Directive, bool) {
			text := strings.TrimSpace(m[1])
			secs, ok := parseDurationText(text)
			if !ok {
				return Directive{}, false
			}
			return Directive{Kind: DirectivePrintTime, Seconds: secs, TimeText: text}, true
		},
	},
	{
		// Shared by PrusaSlicer, Bambu Studio and OrcaSlicer.
		re: regexp.MustCompile(`^\s*generated by (\S+)\s+(\S+)`),
		apply: func(m []string) (Directive, bool) {
			return Directive{Kind: DirectiveSlicerInfo, Software: m[1], Version: m[2]}, true
		},
	},
	{
		// Prusa/Bambu layer boundary; the layer index comes from Z
		// tracking, not the comment.
		re: regexp.MustCompile(`^LAYER_CHANGE\s*$`),
		apply: func(m []string) (Directive, bool) {
			return Directive{Kind: DirectiveLayerMarker, Layer: -1}, true
		},
	},
	{
		re: regexp.MustCompile(`^Z:([0-9.]+)\s*$`),
		apply: func(m []string) (Directive, bool) {
			z, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				return Directive{}, false
			}
			return Directive{Kind: DirectiveLayerMarker, Layer: -1, ZHeight: z}, true
		},
	},

	// Cura
	{
		re: regexp.MustCompile(`^LAYER_COUNT:(\d+)\s*$`),
		apply: func(m []string) (Directive, bool) {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				return Directive{}, false
			}
			return Directive{Kind: DirectiveLayerCount, TotalLayers: n}, true
		},
	},
	{
		re: regexp.MustCompile(`^LAYER:(-?\d+)\s*$`),
		apply: func(m []string) (Directive, bool) {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				return Directive{}, false
			}
			if n < 0 {
				// Raft/brim layers; fold into layer 0.
				n = 0
			}
			return Directive{Kind: DirectiveLayerMarker, Layer: n}, true
		},
	},
	{
		re: regexp.MustCompile(`^TIME:(\d+)\s*$`),
		apply: func(m []string) (Directive, bool) {
			secs, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				return Directive{}, false
			}
			return Directive{Kind: DirectivePrintTime, Seconds: secs, TimeText: m[1] + "s"}, true
		},
	},
	{
		re: regexp.MustCompile(`^Generated with (\S+)\s+(\S+)`),
		apply: func(m []string) (Directive, bool) {
			return Directive{Kind: DirectiveSlicerInfo, Software: m[1], Version: m[2]}, true
		},
	},
	{
		re: regexp.MustCompile(`^Filament used:\s*(.+)$`),
		apply: func(m []string) (Directive, bool) {
			lengths, ok := parseMeterList(m[1])
			if !ok {
				return Directive{}, false
			}
			return Directive{Kind: DirectiveFilamentLength, Lengths: lengths}, true
		},
	},
}

// ResolveComment classifies the payload of one comment line (the substring
// after the first ';'). Unrecognized comments are not an error; callers
// simply ignore them. This function does no I/O and never fails: malformed
// numeric payloads inside an otherwise-matched pattern downgrade to
// Unrecognized, since slicer output is not standardized enough to treat
// strictness as a virtue.
func ResolveComment(payload string) Directive {
	for i := range dialectMatchers {
		m := dialectMatchers[i].re.FindStringSubmatch(payload)
		if m == nil {
			continue
		}
		d, ok := dialectMatchers[i].apply(m)
		if !ok {
			return Directive{Kind: DirectiveUnrecognized}
		}
		return d
	}
	return Directive{Kind: DirectiveUnrecognized}
}

// parseFloatList parses "2.32,3.75" or "2.32, 3.75". All entries must
// parse for the list to be accepted.
func parseFloatList(s string) ([]float64, bool) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}

// parseMeterList parses Cura's "1.234m, 0.5m" into millimeters.
func parseMeterList(s string) ([]float64, bool) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSuffix(strings.TrimSpace(p), "m")
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, false
		}
		out = append(out, v*1000)
	}
	return out, true
}

var hexRe = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// parseHexList parses "#FF0000;#00FF00". Entries that are not 6-digit hex
// colors fall back to the default color rather than rejecting the line:
// Prusa leaves unset extruder colors empty ("" or ";;").
func parseHexList(s string) ([]string, bool) {
	parts := strings.Split(s, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if hexRe.MatchString(p) {
			out = append(out, strings.ToUpper(p))
		} else {
			out = append(out, "")
		}
	}
	return out, true
}

var durationRe = regexp.MustCompile(`(?:(\d+)d)?\s*(?:(\d+)h)?\s*(?:(\d+)m)?\s*(?:(\d+)s)?`)

// parseDurationText parses Prusa's "1h 33m 14s" form into seconds.
func parseDurationText(s string) (float64, bool) {
	m := durationRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	total := 0.0
	any := false
	for i, mult := range []float64{86400, 3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		v, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			return 0, false
		}
		total += v * mult
		any = true
	}
	if !any {
		return 0, false
	}
	return total, true
}
