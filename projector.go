package main

import (
	"sort"

	"github.com/orian/spoolplan/models"
)

// ProjectColorUsage collapses a layer/color map into maximal contiguous
// usage ranges, one per unbroken run of layers in which a color is active.
// A color used in layers [3,7] and again in [40,42] yields two ranges:
// these are exactly the spans during which the color must be physically
// loaded, which is what the slot optimizer consumes.
//
// The result is sorted by start layer ascending, ties broken by color id,
// so downstream optimization is deterministic. Pure function; an empty map
// yields an empty slice.
func ProjectColorUsage(layerColorMap map[int][]string, totalLayers int) []models.ColorUsageRange {
	if len(layerColorMap) == 0 || totalLayers <= 0 {
		return nil
	}

	active := make(map[string]bool)
	open := make(map[string]int) // color -> start layer of the open run
	var ranges []models.ColorUsageRange

	closeRun := func(color string, endLayer int) {
		ranges = append(ranges, models.ColorUsageRange{
			ColorID:    color,
			StartLayer: open[color],
			EndLayer:   endLayer,
		})
		delete(open, color)
	}

	for layer := 0; layer < totalLayers; layer++ {
		for c := range active {
			active[c] = false
		}
		for _, c := range layerColorMap[layer] {
			active[c] = true
			if _, running := open[c]; !running {
				open[c] = layer
			}
		}
		for c, isActive := range active {
			if !isActive {
				if _, running := open[c]; running {
					closeRun(c, layer-1)
				}
				delete(active, c)
			}
		}
	}
	// Runs still open at the final layer.
	for c := range open {
		ranges = append(ranges, models.ColorUsageRange{
			ColorID:    c,
			StartLayer: open[c],
			EndLayer:   totalLayers - 1,
		})
	}
	sort.Slice(ranges, func(i, j int) bool {
		if ranges[i].StartLayer != ranges[j].StartLayer {
			return ranges[i].StartLayer < ranges[j].StartLayer
		}
		return ranges[i].ColorID < ranges[j].ColorID
	})
	return ranges
}
