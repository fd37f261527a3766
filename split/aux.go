package split

import (
	"fmt"

	"github.com/robert-malhotra/nxsplit/hdf5"
)

// AuxArray is a per-frame 1-D array held in memory.
type AuxArray struct {
	Path        string
	Aliases     []string // other paths naming the same dataset
	Data        []byte   // raw elements
	ElementSize int
	Len         int
}

// Slice returns the raw elements [start, end).
func (a *AuxArray) Slice(start, end int) []byte {
	return a.Data[start*a.ElementSize : end*a.ElementSize]
}

// LoadAuxArrays reads the per-frame arrays at paths. Each must be 1-D with
// one element per frame. Paths that are hard links to one dataset are read
// once.
func LoadAuxArrays(f *hdf5.File, paths []string, totalFrames int) ([]*AuxArray, error) {
	var (
		out    []*AuxArray
		byAddr = make(map[uint64]*AuxArray)
	)
	for _, p := range paths {
		ds, err := f.OpenDataset(p)
		if err != nil {
			return nil, &SourceFormatError{Path: f.Path(), Reason: "auxiliary array " + p, Err: err}
		}
		if ds.File() != f {
			return nil, &SourceFormatError{Path: f.Path(), Reason: fmt.Sprintf("auxiliary array %s is stored in %s", p, ds.File().Path())}
		}
		if a, ok := byAddr[ds.Address()]; ok {
			a.Aliases = append(a.Aliases, p)
			continue
		}
		if ds.Rank() != 1 {
			return nil, &SourceFormatError{Path: f.Path(), Reason: fmt.Sprintf("auxiliary array %s has rank %d, want 1", p, ds.Rank())}
		}
		if n := ds.Shape()[0]; n != uint64(totalFrames) {
			return nil, &SourceFormatError{Path: f.Path(), Reason: fmt.Sprintf("auxiliary array %s has %d elements for %d frames", p, n, totalFrames)}
		}
		data, err := ds.ReadRaw()
		if err != nil {
			return nil, &SourceFormatError{Path: f.Path(), Reason: "reading auxiliary array " + p, Err: err}
		}
		a := &AuxArray{Path: p, Data: data, ElementSize: ds.ElementSize(), Len: totalFrames}
		byAddr[ds.Address()] = a
		out = append(out, a)
	}
	return out, nil
}
