package split

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrIndivisible is returned when the frames cannot be shared evenly.
	ErrIndivisible = errors.New("total frames not divisible by partition count")

	// ErrInvalidPartitionCount is returned when fewer than one partition is requested.
	ErrInvalidPartitionCount = errors.New("partition count must be at least 1")

	// ErrEmptyBlock is returned for a block without frames.
	ErrEmptyBlock = errors.New("block has no frames")

	// ErrNoBlocks is returned when the data group has no block entries.
	ErrNoBlocks = errors.New("no blocks found")

	// ErrCoverage is returned when a plan does not cover the frames exactly once.
	ErrCoverage = errors.New("partitions do not cover the frames")
)

// PreconditionError reports invalid input detected before any output is
// written. Err is one of the sentinels above. TotalFrames is zero when no
// frames were counted and Partitions is zero when the count was not yet
// known, and the message leaves such figures out.
type PreconditionError struct {
	Reason      string
	TotalFrames int
	Partitions  int
	Err         error
}

func (e *PreconditionError) Error() string {
	msg := "precondition failed"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	var figures []string
	if e.TotalFrames > 0 {
		figures = append(figures, fmt.Sprintf("total frames %d", e.TotalFrames))
	}
	if e.Partitions != 0 || errors.Is(e.Err, ErrInvalidPartitionCount) {
		figures = append(figures, fmt.Sprintf("partitions %d", e.Partitions))
	}
	if len(figures) > 0 {
		msg += " (" + strings.Join(figures, ", ") + ")"
	}
	return msg
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// SourceFormatError reports a master or block file that does not have the
// expected structure.
//
// The underlying error (if any) can be accessed via errors.Unwrap.
type SourceFormatError struct {
	Path   string
	Reason string
	Err    error
}

func (e *SourceFormatError) Error() string {
	msg := fmt.Sprintf("source format: %s: %s", e.Path, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SourceFormatError) Unwrap() error { return e.Err }

// MaterializationError reports the failure of one partition. Other
// partitions are unaffected.
type MaterializationError struct {
	Partition int // 0-based
	Output    string
	Op        string
	Err       error
}

func (e *MaterializationError) Error() string {
	return fmt.Sprintf("partition %d (%s): %s: %v", e.Partition+1, e.Output, e.Op, e.Err)
}

func (e *MaterializationError) Unwrap() error { return e.Err }
