package hdf5

import (
	"fmt"
	"os"

	"github.com/robert-malhotra/nxsplit/internal/alloc"
	"github.com/robert-malhotra/nxsplit/internal/binary"
	"github.com/robert-malhotra/nxsplit/internal/superblock"
)

// Create creates a new HDF5 file, truncating any existing one, with an empty
// root group. The file is open for editing.
//
// Example:
//
//	f, err := hdf5.Create("scan.nxs", hdf5.WithLegacyFormat())
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
//	entry, err := f.Root().CreateGroup("entry")
func Create(path string, opts ...Option) (*File, error) {
	o := defaultFileOptions()
	for _, opt := range opts {
		opt(o)
	}

	osf, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}

	var sb *superblock.Superblock
	if o.legacy {
		sb = superblock.NewV0(uint8(o.offsetSize), uint8(o.lengthSize))
	} else {
		sb = superblock.New(uint8(o.offsetSize), uint8(o.lengthSize))
	}
	cfg := sb.Config()

	f := &File{
		path:       path,
		file:       osf,
		reader:     binary.NewReader(osf, cfg),
		superblock: sb,
		cfg:        cfg,
		writable:   true,
		allocator:  alloc.New(uint64(sb.Size())),
	}

	root, err := f.writeGroup(nil, nil)
	if err != nil {
		osf.Close()
		return nil, fmt.Errorf("creating root group: %w", err)
	}
	if err := f.setRoot(root); err != nil {
		osf.Close()
		return nil, err
	}
	if err := f.Flush(); err != nil {
		osf.Close()
		return nil, err
	}
	return f, nil
}
