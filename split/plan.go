package split

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// Segment is a maximal run of one block's frames inside a partition.
// End is exclusive.
type Segment struct {
	Block int
	Start int
	End   int
}

// Len returns the number of frames in the segment.
func (s Segment) Len() int { return s.End - s.Start }

// Partition is one contiguous slice [Start, End) of the global frame
// sequence. Index is 0-based; outputs are numbered from 1.
type Partition struct {
	Index    int
	Start    int
	End      int
	Segments []Segment
}

// Len returns the number of frames in the partition.
func (p Partition) Len() int { return p.End - p.Start }

// frameRef locates one frame of the global sequence.
type frameRef struct {
	local int
	block int
}

// Plan divides the frames of blocks with the given sizes, in block order,
// into n partitions of equal size. Each partition lists the runs of block
// frames it covers.
func Plan(blockSizes []int, n int) ([]Partition, error) {
	total := 0
	for _, s := range blockSizes {
		total += max(s, 0)
	}
	for i, s := range blockSizes {
		if s <= 0 {
			return nil, &PreconditionError{
				Reason:      fmt.Sprintf("block %d has %d frames", i, s),
				TotalFrames: total,
				Partitions:  n,
				Err:         ErrEmptyBlock,
			}
		}
	}
	if n < 1 {
		return nil, &PreconditionError{TotalFrames: total, Partitions: n, Err: ErrInvalidPartitionCount}
	}
	if len(blockSizes) == 0 {
		return nil, &PreconditionError{Partitions: n, Err: ErrNoBlocks}
	}
	if total%n != 0 {
		return nil, &PreconditionError{
			Reason:      fmt.Sprintf("%d frames leave a remainder of %d", total, total%n),
			TotalFrames: total,
			Partitions:  n,
			Err:         ErrIndivisible,
		}
	}

	frames := expand(blockSizes, total)
	size := total / n
	parts := make([]Partition, n)
	for j := range parts {
		start, end := j*size, (j+1)*size
		parts[j] = Partition{
			Index:    j,
			Start:    start,
			End:      end,
			Segments: runs(frames[start:end]),
		}
	}
	return parts, nil
}

// expand lists every frame in global order.
func expand(blockSizes []int, total int) []frameRef {
	out := make([]frameRef, 0, total)
	for b, size := range blockSizes {
		for i := 0; i < size; i++ {
			out = append(out, frameRef{local: i, block: b})
		}
	}
	return out
}

// runs groups a window of frames into segments. A run is extended while
// frames continue in the same block and flushed when the block changes.
func runs(window []frameRef) []Segment {
	var (
		out []Segment
		cur Segment
		in  bool // accumulating a run
	)
	for _, f := range window {
		if in && f.block == cur.Block && f.local == cur.End {
			cur.End++
			continue
		}
		if in {
			out = append(out, cur)
		}
		cur = Segment{Block: f.block, Start: f.local, End: f.local + 1}
		in = true
	}
	if in {
		out = append(out, cur)
	}
	return out
}

// VerifyCoverage checks that the partitions cover every frame of the blocks
// exactly once, in block order, with equal sizes.
func VerifyCoverage(partitions []Partition, blockSizes []int) error {
	if len(partitions) == 0 {
		return fmt.Errorf("%w: no partitions", ErrCoverage)
	}
	offsets := make([]uint64, len(blockSizes)+1)
	for i, s := range blockSizes {
		offsets[i+1] = offsets[i] + uint64(s)
	}
	total := offsets[len(blockSizes)]
	size := uint64(partitions[0].Len())

	seen := roaring64.New()
	var cursor uint64
	for i, p := range partitions {
		if p.Index != i {
			return fmt.Errorf("%w: partition %d has index %d", ErrCoverage, i, p.Index)
		}
		if uint64(p.Start) != cursor || uint64(p.Len()) != size {
			return fmt.Errorf("%w: partition %d covers [%d,%d), want [%d,%d)", ErrCoverage, i+1, p.Start, p.End, cursor, cursor+size)
		}
		for _, s := range p.Segments {
			if s.Block < 0 || s.Block >= len(blockSizes) || s.Start < 0 || s.Start >= s.End || s.End > blockSizes[s.Block] {
				return fmt.Errorf("%w: partition %d has invalid segment %+v", ErrCoverage, i+1, s)
			}
			lo := offsets[s.Block] + uint64(s.Start)
			hi := lo + uint64(s.Len())
			if lo != cursor {
				return fmt.Errorf("%w: partition %d segment %+v starts at frame %d, want %d", ErrCoverage, i+1, s, lo, cursor)
			}
			r := roaring64.New()
			r.AddRange(lo, hi)
			if seen.Intersects(r) {
				return fmt.Errorf("%w: frames [%d,%d) covered twice", ErrCoverage, lo, hi)
			}
			seen.Or(r)
			cursor = hi
		}
		if cursor != uint64(p.End) {
			return fmt.Errorf("%w: segments of partition %d end at frame %d, want %d", ErrCoverage, i+1, cursor, p.End)
		}
	}
	if n := seen.GetCardinality(); n != total {
		return fmt.Errorf("%w: %d of %d frames covered", ErrCoverage, n, total)
	}
	return nil
}
