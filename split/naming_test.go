package split

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutputPath(t *testing.T) {
	tests := []struct {
		input string
		index int
		n     int
		want  string
	}{
		{"scan.nxs", 0, 12, "scan_01.nxs"},
		{"scan.nxs", 11, 12, "scan_12.nxs"},
		{"scan.nxs", 0, 1, "scan_1.nxs"},
		{"scan.nxs", 4, 100, "scan_005.nxs"},
		{"/data/sample.h5", 2, 3, "/data/sample_3.h5"},
		{"/data/run.1/scan", 2, 3, "/data/run.1/scan_3"},
		{"a.b.nxs", 9, 10, "a.b_10.nxs"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, OutputPath(tt.input, tt.index, tt.n), "%s %d/%d", tt.input, tt.index, tt.n)
	}
}

func TestOutputPathsDistinct(t *testing.T) {
	seen := make(map[string]bool)
	for j := 0; j < 25; j++ {
		p := OutputPath("scan.nxs", j, 25)
		assert.False(t, seen[p], p)
		seen[p] = true
	}
}
