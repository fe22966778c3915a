package main

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/orian/spoolplan/models"
)

// sliceInfoPath is the Bambu Studio / OrcaSlicer per-plate metadata entry.
const sliceInfoPath = "Metadata/slice_info.config"

// Is3MF reports whether the bytes look like a zip container. 3MF is plain
// zip, so this also matches misnamed uploads.
func Is3MF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("PK\x03\x04"))
}

// Parse3MF locates the embedded plate G-code inside a 3MF package, parses
// it through the regular pipeline, and overlays the package's per-filament
// weight table when present. Package weights are the slicer's own final
// numbers and supersede anything derived from G-code comments.
func Parse3MF(ctx context.Context, data []byte, opts ParseOptions) (*models.GcodeStats, []models.Diagnostic, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, fmt.Errorf("open 3mf container: %w", err)
	}

	entry := findGcodeEntry(zr)
	if entry == nil {
		return nil, nil, fmt.Errorf("3mf container has no plate G-code entry")
	}

	reader := NewLineReader(func() (io.ReadCloser, error) {
		return entry.Open()
	}, int64(entry.UncompressedSize64))
	defer reader.Close()

	stats, diags, err := ParseGcode(ctx, reader, opts)
	if err != nil {
		return nil, diags, err
	}

	filaments, err := readSliceInfo(zr)
	if err != nil {
		// Metadata is optional; fall back to G-code-derived estimates.
		diags = append(diags, models.Diagnostic{Message: fmt.Sprintf("slice_info.config unavailable: %v", err)})
		return stats, diags, nil
	}
	applySliceInfo(stats, filaments)
	return stats, diags, nil
}

// findGcodeEntry picks the plate G-code entry by path convention:
// Metadata/plate_*.gcode first, then any .gcode entry. Ties break by name
// so multi-plate packages resolve deterministically to the first plate.
func findGcodeEntry(zr *zip.Reader) *zip.File {
	var plates, others []*zip.File
	for _, f := range zr.File {
		if !strings.HasSuffix(f.Name, ".gcode") {
			continue
		}
		if strings.HasPrefix(f.Name, "Metadata/plate_") {
			plates = append(plates, f)
		} else {
			others = append(others, f)
		}
	}
	pick := func(files []*zip.File) *zip.File {
		if len(files) == 0 {
			return nil
		}
		sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
		return files[0]
	}
	if f := pick(plates); f != nil {
		return f
	}
	return pick(others)
}

// sliceInfoConfig mirrors the slice_info.config XML shape.
type sliceInfoConfig struct {
	XMLName xml.Name `xml:"config"`
	Plates  []struct {
		Filaments []sliceFilament `xml:"filament"`
	} `xml:"plate"`
}

type sliceFilament struct {
	ID    string `xml:"id,attr"`
	Type  string `xml:"type,attr"`
	Color string `xml:"color,attr"`
	UsedM string `xml:"used_m,attr"`
	UsedG string `xml:"used_g,attr"`
}

func readSliceInfo(zr *zip.Reader) ([]sliceFilament, error) {
	var entry *zip.File
	for _, f := range zr.File {
		if f.Name == sliceInfoPath {
			entry = f
			break
		}
	}
	if entry == nil {
		return nil, fmt.Errorf("no %s entry", sliceInfoPath)
	}
	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", sliceInfoPath, err)
	}
	defer rc.Close()

	var cfg sliceInfoConfig
	if err := xml.NewDecoder(rc).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", sliceInfoPath, err)
	}
	var filaments []sliceFilament
	for _, p := range cfg.Plates {
		filaments = append(filaments, p.Filaments...)
	}
	if len(filaments) == 0 {
		return nil, fmt.Errorf("%s lists no filaments", sliceInfoPath)
	}
	return filaments, nil
}

// applySliceInfo overlays package filament metadata onto parsed stats:
// weights and lengths replace G-code-derived estimates, and colors/names
// fill in tools the comment dialects left at defaults.
func applySliceInfo(stats *models.GcodeStats, filaments []sliceFilament) {
	estimates := make([]models.FilamentEstimate, 0, len(filaments))
	for _, f := range filaments {
		idx, err := strconv.Atoi(f.ID)
		if err != nil || idx < 1 {
			continue
		}
		// slice_info filament ids are 1-based.
		colorID := "T" + strconv.Itoa(idx-1)
		e := models.FilamentEstimate{ColorID: colorID}
		if g, err := strconv.ParseFloat(f.UsedG, 64); err == nil {
			e.Weight = g
		}
		if m, err := strconv.ParseFloat(f.UsedM, 64); err == nil {
			e.Length = m * 1000
		}
		estimates = append(estimates, e)

		if c := stats.Color(colorID); c != nil {
			if hexRe.MatchString(f.Color) {
				c.HexValue = strings.ToUpper(f.Color)
			}
			if c.Name == "" && f.Type != "" {
				c.Name = f.Type
			}
		}
	}
	if len(estimates) == 0 {
		return
	}
	stats.FilamentEstimates = estimates
	computeUsagePercentages(stats)
}
