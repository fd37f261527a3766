// Package split divides a NeXus/HDF5 master file into partitions of equal
// frame count. Each output is a copy of the master whose per-frame arrays
// are cut to the partition and whose bulk data is a virtual dataset
// referring to ranges of the original block files. No bulk data is copied.
package split

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/robert-malhotra/nxsplit/hdf5"
)

// Splitter splits master files. A Splitter holds only configuration and
// can be reused.
type Splitter struct {
	opts *options
}

// New creates a Splitter.
func New(opts ...Option) *Splitter {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Splitter{opts: o}
}

// Result describes a run.
type Result struct {
	Input      string
	Table      *BlockTable
	Partitions []Partition
	Outputs    []string // one per partition
}

// Run splits input into n outputs next to it. Scanning and planning
// errors are returned before anything is written. Partitions that fail do
// not stop the others; their errors are joined and returned once every
// partition has finished. Cancelling ctx stops scheduling partitions.
func (s *Splitter) Run(ctx context.Context, input string, n int) (*Result, error) {
	o := s.opts
	log := o.logger.WithInput(input)
	table, aux, parts, err := s.prepare(ctx, log, input, n)
	if err != nil {
		return nil, err
	}
	res := &Result{Input: input, Table: table, Partitions: parts, Outputs: make([]string, n)}
	for j := range parts {
		res.Outputs[j] = OutputPath(input, j, n)
	}
	if o.dryRun {
		return res, nil
	}

	var g errgroup.Group
	g.SetLimit(o.workers)
	errs := make([]error, n+1)
	for j, p := range parts {
		if err := ctx.Err(); err != nil {
			errs[n] = err
			break
		}
		j, p := j, p
		g.Go(func() error {
			errs[j] = s.writePartition(ctx, log, p, table, aux, input, res.Outputs[j])
			return nil
		})
	}
	g.Wait()
	return res, errors.Join(errs...)
}

// prepare scans and plans input. The input is closed before any output is
// written.
func (s *Splitter) prepare(ctx context.Context, log *Logger, input string, n int) (*BlockTable, []*AuxArray, []Partition, error) {
	f, err := hdf5.Open(input)
	if err != nil {
		return nil, nil, nil, &SourceFormatError{Path: input, Reason: "opening master file", Err: err}
	}
	defer f.Close()

	layout := s.opts.layout
	table, err := ScanBlocks(f, layout)
	if err != nil {
		return nil, nil, nil, err
	}
	log.LogBlocks(ctx, table)
	if n < 1 {
		return nil, nil, nil, &PreconditionError{TotalFrames: table.TotalFrames(), Partitions: n, Err: ErrInvalidPartitionCount}
	}

	aux, err := LoadAuxArrays(f, layout.AuxArrays, table.TotalFrames())
	if err != nil {
		return nil, nil, nil, err
	}
	sizes := table.Sizes()
	parts, err := Plan(sizes, n)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := VerifyCoverage(parts, sizes); err != nil {
		return nil, nil, nil, err
	}
	log.LogPlan(ctx, parts)
	return table, aux, parts, nil
}

func (s *Splitter) writePartition(ctx context.Context, log *Logger, p Partition, table *BlockTable, aux []*AuxArray, input, output string) (err error) {
	log.LogPartitionStart(ctx, p, output)
	defer func() {
		if err != nil {
			log.LogPartitionError(ctx, p, output, err)
		} else {
			log.LogPartitionDone(ctx, p, output)
		}
	}()

	if err := hdf5.CopyFile(input, output); err != nil {
		return &MaterializationError{Partition: p.Index, Output: output, Op: "copy", Err: err}
	}
	out, err := hdf5.OpenReadWrite(output)
	if err != nil {
		return &MaterializationError{Partition: p.Index, Output: output, Op: "open", Err: err}
	}
	err = Materialize(p, table, aux, out, MaterializeOptions{Layout: s.opts.layout, FillValue: s.opts.fill})
	if cerr := out.Close(); cerr != nil {
		err = errors.Join(err, &MaterializationError{Partition: p.Index, Output: output, Op: "close", Err: cerr})
	}
	return err
}
