package main

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineReaderNext(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "unix newlines",
			input: "G1 X1\nG1 X2\nG1 X3\n",
			want:  []string{"G1 X1", "G1 X2", "G1 X3"},
		},
		{
			name:  "windows newlines",
			input: "G1 X1\r\nG1 X2\r\n",
			want:  []string{"G1 X1", "G1 X2"},
		},
		{
			name:  "truncated final line",
			input: "G1 X1\nG1 X2",
			want:  []string{"G1 X1", "G1 X2"},
		},
		{
			name:  "empty lines preserved",
			input: "\n\nG1 X1\n",
			want:  []string{"", "", "G1 X1"},
		},
		{
			name:  "empty input",
			input: "",
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := BytesLineReader([]byte(tt.input))
			defer r.Close()

			got := []string{}
			for {
				line, err := r.Next()
				if err == io.EOF {
					break
				}
				assert.NoError(t, err)
				got = append(got, line)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, len(tt.want), r.Line())
		})
	}
}

func TestLineReaderBinaryInput(t *testing.T) {
	data := []byte("solid\x00\x00\x00binary stl payload")
	r := BytesLineReader(data)
	defer r.Close()

	_, err := r.Next()
	assert.ErrorIs(t, err, ErrEncoding)
}

func TestLineReaderRestart(t *testing.T) {
	r := BytesLineReader([]byte("first\nsecond\n"))
	defer r.Close()

	line, err := r.Next()
	assert.NoError(t, err)
	assert.Equal(t, "first", line)
	assert.Greater(t, r.Consumed(), int64(0))

	assert.NoError(t, r.Restart())
	assert.Equal(t, int64(0), r.Consumed())
	assert.Equal(t, 0, r.Line())

	line, err = r.Next()
	assert.NoError(t, err)
	assert.Equal(t, "first", line)
}

func TestLineReaderRatio(t *testing.T) {
	data := []byte("0123456789\nabcdefghij\n")
	r := BytesLineReader(data)
	defer r.Close()

	assert.Equal(t, 0.0, r.Ratio())

	_, err := r.Next()
	assert.NoError(t, err)
	assert.InDelta(t, 0.5, r.Ratio(), 0.01)

	_, err = r.Next()
	assert.NoError(t, err)
	assert.Equal(t, 1.0, r.Ratio())

	// Unknown size pins the ratio at zero.
	unknown := NewLineReader(r.open, 0)
	defer unknown.Close()
	_, err = unknown.Next()
	assert.NoError(t, err)
	assert.Equal(t, 0.0, unknown.Ratio())
}
