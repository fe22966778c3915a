package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTag(t *testing.T) {
	tests := []struct {
		name      string
		tag       string
		wantKey   string
		wantValue string
	}{
		{"simple tag", "benchy", "benchy", ""},
		{"key-value tag", "printer=x1c", "printer", "x1c"},
		{"system tag", "system:starred", "system:starred", ""},
		{"value with equals", "note=a=b", "note", "a=b"},
		{"whitespace trimmed", " printer = x1c ", "printer", "x1c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, value := ParseTag(tt.tag)
			assert.Equal(t, tt.wantKey, key)
			assert.Equal(t, tt.wantValue, value)
		})
	}
}

func TestFormatTag(t *testing.T) {
	simple := &AnalysisTag{TagKey: "benchy"}
	assert.Equal(t, "benchy", simple.FormatTag())

	kv := &AnalysisTag{TagKey: "printer", TagValue: "x1c"}
	assert.Equal(t, "printer=x1c", kv.FormatTag())
}

func TestIsSystemTag(t *testing.T) {
	assert.True(t, (&AnalysisTag{TagKey: "system:starred"}).IsSystemTag())
	assert.False(t, (&AnalysisTag{TagKey: "benchy"}).IsSystemTag())
	assert.False(t, (&AnalysisTag{TagKey: "printer", TagValue: "system:x"}).IsSystemTag())
}
