package split

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/robert-malhotra/nxsplit/hdf5"
)

// Block is one source dataset contributing a contiguous run of frames.
type Block struct {
	Name        string // link name in the data group
	File        string // source file as named by the link
	Dataset     string // dataset path inside File
	Frames      int
	FrameShape  []uint64
	Datatype    *hdf5.Datatype
	ElementSize int
}

// BlockTable is the ordered list of blocks with the frame shape and type
// shared by all of them, taken from the first block. It is built once and
// not modified afterwards.
type BlockTable struct {
	Blocks      []Block
	FrameShape  []uint64
	Datatype    *hdf5.Datatype
	ElementSize int
}

// TotalFrames returns the number of frames over all blocks.
func (t *BlockTable) TotalFrames() int {
	var n int
	for _, b := range t.Blocks {
		n += b.Frames
	}
	return n
}

// Sizes returns the frame count of each block in order.
func (t *BlockTable) Sizes() []int {
	out := make([]int, len(t.Blocks))
	for i, b := range t.Blocks {
		out[i] = b.Frames
	}
	return out
}

// compatible checks that a block has the table's frame shape and type.
func (t *BlockTable) compatible(b Block) error {
	if !slices.Equal(b.FrameShape, t.FrameShape) {
		return &SourceFormatError{
			Path:   b.File,
			Reason: fmt.Sprintf("block %s has frame shape %v, want %v", b.Name, b.FrameShape, t.FrameShape),
		}
	}
	if !b.Datatype.Equal(t.Datatype) {
		return &SourceFormatError{
			Path:   b.File,
			Reason: fmt.Sprintf("block %s has element type %s, want %s", b.Name, b.Datatype, t.Datatype),
		}
	}
	return nil
}

// ScanBlocks lists the block links of the data group of f and orders them
// by file name, then link name. Every block must match the frame shape and
// element type of the first.
func ScanBlocks(f *hdf5.File, layout Layout) (*BlockTable, error) {
	g, err := f.OpenGroup(layout.DataGroup)
	if err != nil {
		return nil, &SourceFormatError{Path: f.Path(), Reason: "data group " + layout.DataGroup, Err: err}
	}
	links, err := g.Links()
	if err != nil {
		return nil, &SourceFormatError{Path: f.Path(), Reason: "listing " + layout.DataGroup, Err: err}
	}

	var blocks []Block
	for _, l := range links {
		if !strings.HasPrefix(l.Name, layout.BlockPrefix) {
			continue
		}
		b, err := describeBlock(f, g, l)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	if len(blocks) == 0 {
		return nil, &PreconditionError{
			Reason: fmt.Sprintf("no %s* entries in %s", layout.BlockPrefix, layout.DataGroup),
			Err:    ErrNoBlocks,
		}
	}

	slices.SortFunc(blocks, func(a, b Block) int {
		if c := strings.Compare(a.File, b.File); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	table := &BlockTable{
		Blocks:      blocks,
		FrameShape:  blocks[0].FrameShape,
		Datatype:    blocks[0].Datatype,
		ElementSize: blocks[0].ElementSize,
	}
	for _, b := range blocks {
		if b.Frames == 0 {
			return nil, &PreconditionError{
				Reason:      fmt.Sprintf("block %s in %s", b.Name, b.File),
				TotalFrames: table.TotalFrames(),
				Err:         ErrEmptyBlock,
			}
		}
	}
	for _, b := range blocks[1:] {
		if err := table.compatible(b); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// describeBlock reads the shape and type of the dataset behind a block
// link. External links keep the file name they were written with; blocks
// stored in the master or reached through soft links are named relative to
// the master's directory.
func describeBlock(f *hdf5.File, g *hdf5.Group, l hdf5.Link) (Block, error) {
	ds, err := g.OpenDataset(l.Name)
	if err != nil {
		return Block{}, &SourceFormatError{Path: f.Path(), Reason: "block " + l.Name, Err: err}
	}

	b := Block{Name: l.Name}
	switch l.Kind {
	case hdf5.ExternalLink:
		b.File, b.Dataset = l.File, hdf5.CleanPath(l.Target)
	default:
		b.Dataset = ds.Path()
		b.File = filepath.Base(f.Path())
		if ds.File() != f {
			rel, err := filepath.Rel(filepath.Dir(f.Path()), ds.File().Path())
			if err != nil {
				return Block{}, &SourceFormatError{Path: f.Path(), Reason: "block " + l.Name, Err: err}
			}
			b.File = rel
		}
	}

	shape := ds.Shape()
	if len(shape) < 1 {
		return Block{}, &SourceFormatError{Path: b.File, Reason: fmt.Sprintf("block %s is a scalar", l.Name)}
	}
	b.Frames = int(shape[0])
	b.FrameShape = shape[1:]
	b.Datatype = ds.Datatype()
	b.ElementSize = ds.ElementSize()
	return b, nil
}
