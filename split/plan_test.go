package split

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan(t *testing.T) {
	tests := []struct {
		name  string
		sizes []int
		n     int
		want  [][]Segment
	}{
		{
			name:  "boundary inside block",
			sizes: []int{3, 5},
			n:     2,
			want: [][]Segment{
				{{Block: 0, Start: 0, End: 3}, {Block: 1, Start: 0, End: 1}},
				{{Block: 1, Start: 1, End: 5}},
			},
		},
		{
			name:  "boundaries on blocks",
			sizes: []int{4, 4},
			n:     2,
			want: [][]Segment{
				{{Block: 0, Start: 0, End: 4}},
				{{Block: 1, Start: 0, End: 4}},
			},
		},
		{
			name:  "single partition",
			sizes: []int{2, 3, 1},
			n:     1,
			want: [][]Segment{
				{{Block: 0, Start: 0, End: 2}, {Block: 1, Start: 0, End: 3}, {Block: 2, Start: 0, End: 1}},
			},
		},
		{
			name:  "one frame each",
			sizes: []int{2, 1},
			n:     3,
			want: [][]Segment{
				{{Block: 0, Start: 0, End: 1}},
				{{Block: 0, Start: 1, End: 2}},
				{{Block: 1, Start: 0, End: 1}},
			},
		},
		{
			name:  "partition spans three blocks",
			sizes: []int{1, 1, 1, 3},
			n:     2,
			want: [][]Segment{
				{{Block: 0, Start: 0, End: 1}, {Block: 1, Start: 0, End: 1}, {Block: 2, Start: 0, End: 1}},
				{{Block: 3, Start: 0, End: 3}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts, err := Plan(tt.sizes, tt.n)
			require.NoError(t, err)
			require.Len(t, parts, tt.n)

			total := 0
			for _, s := range tt.sizes {
				total += s
			}
			size := total / tt.n
			for j, p := range parts {
				assert.Equal(t, j, p.Index)
				assert.Equal(t, j*size, p.Start)
				assert.Equal(t, (j+1)*size, p.End)
				assert.Equal(t, tt.want[j], p.Segments, "partition %d", j)

				var frames int
				for _, s := range p.Segments {
					frames += s.Len()
				}
				assert.Equal(t, p.Len(), frames)
			}
			require.NoError(t, VerifyCoverage(parts, tt.sizes))
		})
	}
}

func TestPlanPreconditions(t *testing.T) {
	tests := []struct {
		name   string
		sizes  []int
		n      int
		target error
	}{
		{"indivisible", []int{4, 3, 3}, 3, ErrIndivisible},
		{"zero partitions", []int{4}, 0, ErrInvalidPartitionCount},
		{"negative partitions", []int{4}, -2, ErrInvalidPartitionCount},
		{"empty block", []int{4, 0, 2}, 2, ErrEmptyBlock},
		{"no blocks", nil, 1, ErrNoBlocks},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts, err := Plan(tt.sizes, tt.n)
			require.Error(t, err)
			assert.Nil(t, parts)
			assert.ErrorIs(t, err, tt.target)

			var pe *PreconditionError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.n, pe.Partitions)
		})
	}
}

func TestPlanIndivisibleReportsTotals(t *testing.T) {
	_, err := Plan([]int{4, 3, 3}, 3)
	var pe *PreconditionError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 10, pe.TotalFrames)
	assert.Contains(t, err.Error(), "remainder of 1")
}

func TestPlanPreconditionTotals(t *testing.T) {
	tests := []struct {
		name  string
		sizes []int
		n     int
		total int
	}{
		{"empty block counts every block", []int{4, 0, 2}, 2, 6},
		{"zero partitions", []int{4, 2}, 0, 6},
		{"no blocks", nil, 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Plan(tt.sizes, tt.n)
			var pe *PreconditionError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.total, pe.TotalFrames)
			assert.NotContains(t, err.Error(), "total frames 0")
		})
	}
}

func TestVerifyCoverage(t *testing.T) {
	sizes := []int{3, 5}
	valid := func() []Partition {
		parts, err := Plan(sizes, 2)
		require.NoError(t, err)
		return parts
	}

	tests := []struct {
		name   string
		mutate func([]Partition) []Partition
		msg    string
	}{
		{"none", func([]Partition) []Partition { return nil }, "no partitions"},
		{"bad index", func(p []Partition) []Partition {
			p[1].Index = 5
			return p
		}, "has index 5"},
		{"gap", func(p []Partition) []Partition {
			p[1].Segments[0].Start = 2
			return p
		}, "starts at frame"},
		{"overlap", func(p []Partition) []Partition {
			p[0].Segments = append(p[0].Segments, Segment{Block: 0, Start: 0, End: 1})
			return p
		}, "starts at frame"},
		{"segment past block", func(p []Partition) []Partition {
			p[1].Segments[0].End = 6
			return p
		}, "invalid segment"},
		{"unknown block", func(p []Partition) []Partition {
			p[1].Segments[0].Block = 2
			return p
		}, "invalid segment"},
		{"short segments", func(p []Partition) []Partition {
			p[1].Segments[0].End = 4
			return p
		}, "end at frame 7"},
		{"unequal sizes", func(p []Partition) []Partition {
			p[1].End = 7
			p[1].Segments[0].End = 4
			return p
		}, "covers [4,7)"},
		{"missing partition", func(p []Partition) []Partition {
			return p[:1]
		}, "4 of 8 frames"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyCoverage(tt.mutate(valid()), sizes)
			require.ErrorIs(t, err, ErrCoverage)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestRuns(t *testing.T) {
	window := []frameRef{
		{local: 3, block: 0},
		{local: 4, block: 0},
		{local: 0, block: 1},
		{local: 0, block: 2},
		{local: 1, block: 2},
	}
	assert.Equal(t, []Segment{
		{Block: 0, Start: 3, End: 5},
		{Block: 1, Start: 0, End: 1},
		{Block: 2, Start: 0, End: 2},
	}, runs(window))
	assert.Empty(t, runs(nil))
}
