package main

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const plateGcode = `; generated by OrcaSlicer 2.1.1 on 2024-06-01
T0
G1 Z0.2 F300
G1 X10 Y10 E1.5
G1 Z0.4
T1
G1 X20 Y20 E2.0
`

const sliceInfoXML = `<?xml version="1.0" encoding="UTF-8"?>
<config>
  <plate>
    <metadata key="index" value="1"/>
    <filament id="1" tray_info_idx="GFA00" type="PLA" color="#FF0000" used_m="1.20" used_g="3.80"/>
    <filament id="2" tray_info_idx="GFG00" type="PETG" color="#00FF00" used_m="2.50" used_g="7.90"/>
  </plate>
</config>
`

func build3MF(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestIs3MF(t *testing.T) {
	archive := build3MF(t, map[string]string{"Metadata/plate_1.gcode": plateGcode})
	assert.True(t, Is3MF(archive))
	assert.False(t, Is3MF([]byte(plateGcode)))
	assert.False(t, Is3MF(nil))
}

func TestParse3MF(t *testing.T) {
	archive := build3MF(t, map[string]string{
		"3D/3dmodel.model":       "<model/>",
		"Metadata/plate_1.gcode": plateGcode,
		sliceInfoPath:            sliceInfoXML,
	})

	stats, diags, err := Parse3MF(context.Background(), archive, ParseOptions{})
	require.NoError(t, err)
	assert.Empty(t, diags)

	require.NotNil(t, stats.SlicerInfo)
	assert.Equal(t, "OrcaSlicer", stats.SlicerInfo.Software)
	assert.Equal(t, 2, stats.TotalLayers)

	// Package metadata supersedes anything from the G-code body.
	require.Len(t, stats.FilamentEstimates, 2)
	assert.Equal(t, "T0", stats.FilamentEstimates[0].ColorID)
	assert.Equal(t, 3.8, stats.FilamentEstimates[0].Weight)
	assert.Equal(t, 1200.0, stats.FilamentEstimates[0].Length)
	assert.Equal(t, "T1", stats.FilamentEstimates[1].ColorID)
	assert.Equal(t, 7.9, stats.FilamentEstimates[1].Weight)

	t0, t1 := stats.Color("T0"), stats.Color("T1")
	require.NotNil(t, t0)
	require.NotNil(t, t1)
	assert.Equal(t, "#FF0000", t0.HexValue)
	assert.Equal(t, "PLA", t0.Name)
	assert.Equal(t, "#00FF00", t1.HexValue)
	assert.Equal(t, "PETG", t1.Name)

	// Weight share: 3.8 and 7.9 of 11.7 grams.
	assert.InDelta(t, 32.48, t0.UsagePercentage, 0.01)
	assert.InDelta(t, 67.52, t1.UsagePercentage, 0.01)
}

func TestParse3MFWithoutSliceInfo(t *testing.T) {
	archive := build3MF(t, map[string]string{
		"Metadata/plate_1.gcode": plateGcode,
	})

	stats, diags, err := Parse3MF(context.Background(), archive, ParseOptions{})
	require.NoError(t, err)
	require.NotNil(t, stats)

	// Missing metadata degrades to G-code-derived data with a diagnostic.
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Message, "slice_info.config unavailable")
	assert.Len(t, stats.Colors, 2)
}

func TestParse3MFMultiPlatePicksFirst(t *testing.T) {
	second := `T0
G1 Z0.2
G1 X1 E1
G1 Z0.4
G1 X2 E1
G1 Z0.6
G1 X3 E1
`
	archive := build3MF(t, map[string]string{
		"Metadata/plate_2.gcode": second,
		"Metadata/plate_1.gcode": plateGcode,
	})

	stats, _, err := Parse3MF(context.Background(), archive, ParseOptions{})
	require.NoError(t, err)
	// plate_1 has two layers, plate_2 has three; name order wins.
	assert.Equal(t, 2, stats.TotalLayers)
	assert.Len(t, stats.Colors, 2)
}

func TestParse3MFNoGcodeEntry(t *testing.T) {
	archive := build3MF(t, map[string]string{
		"3D/3dmodel.model": "<model/>",
	})

	_, _, err := Parse3MF(context.Background(), archive, ParseOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no plate G-code")
}

func TestParse3MFNotAnArchive(t *testing.T) {
	_, _, err := Parse3MF(context.Background(), []byte("plain text"), ParseOptions{})
	assert.Error(t, err)
}

func TestParse3MFCancellation(t *testing.T) {
	archive := build3MF(t, map[string]string{
		"Metadata/plate_1.gcode": plateGcode,
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, _, err := Parse3MF(ctx, archive, ParseOptions{})
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Nil(t, stats)
}
