package main

import (
	"testing"

	"github.com/orian/spoolplan/models"
	"github.com/stretchr/testify/assert"
)

func TestProjectColorUsage(t *testing.T) {
	tests := []struct {
		name        string
		layerColors map[int][]string
		totalLayers int
		want        []models.ColorUsageRange
	}{
		{
			name: "overlapping pair",
			layerColors: map[int][]string{
				0: {"T0"},
				1: {"T0", "T1"},
				2: {"T1"},
			},
			totalLayers: 3,
			want: []models.ColorUsageRange{
				{ColorID: "T0", StartLayer: 0, EndLayer: 1},
				{ColorID: "T1", StartLayer: 1, EndLayer: 2},
			},
		},
		{
			name: "gap splits into two ranges",
			layerColors: map[int][]string{
				0: {"T0"},
				1: {"T0"},
				4: {"T0"},
				5: {"T0"},
			},
			totalLayers: 6,
			want: []models.ColorUsageRange{
				{ColorID: "T0", StartLayer: 0, EndLayer: 1},
				{ColorID: "T0", StartLayer: 4, EndLayer: 5},
			},
		},
		{
			name: "single layer run",
			layerColors: map[int][]string{
				3: {"T2"},
			},
			totalLayers: 10,
			want: []models.ColorUsageRange{
				{ColorID: "T2", StartLayer: 3, EndLayer: 3},
			},
		},
		{
			name: "run reaching the final layer stays open until the end",
			layerColors: map[int][]string{
				8: {"T0"},
				9: {"T0"},
			},
			totalLayers: 10,
			want: []models.ColorUsageRange{
				{ColorID: "T0", StartLayer: 8, EndLayer: 9},
			},
		},
		{
			name: "ties sort by color id",
			layerColors: map[int][]string{
				0: {"T1", "T0"},
			},
			totalLayers: 1,
			want: []models.ColorUsageRange{
				{ColorID: "T0", StartLayer: 0, EndLayer: 0},
				{ColorID: "T1", StartLayer: 0, EndLayer: 0},
			},
		},
		{
			name:        "empty map",
			layerColors: map[int][]string{},
			totalLayers: 5,
			want:        nil,
		},
		{
			name: "zero layers",
			layerColors: map[int][]string{
				0: {"T0"},
			},
			totalLayers: 0,
			want:        nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ProjectColorUsage(tt.layerColors, tt.totalLayers)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProjectColorUsageDeterministic(t *testing.T) {
	layerColors := map[int][]string{}
	for i := 0; i < 50; i++ {
		layerColors[i] = []string{"T0"}
		if i%7 < 3 {
			layerColors[i] = append(layerColors[i], "T1")
		}
		if i%11 < 2 {
			layerColors[i] = append(layerColors[i], "T2")
		}
	}

	first := ProjectColorUsage(layerColors, 50)
	second := ProjectColorUsage(layerColors, 50)
	assert.Equal(t, first, second)

	for i := 1; i < len(first); i++ {
		assert.GreaterOrEqual(t, first[i].StartLayer, first[i-1].StartLayer)
	}
	for _, r := range first {
		assert.LessOrEqual(t, r.StartLayer, r.EndLayer)
	}
}
