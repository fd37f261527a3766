package hdf5

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/robert-malhotra/nxsplit/internal/alloc"
	"github.com/robert-malhotra/nxsplit/internal/binary"
	"github.com/robert-malhotra/nxsplit/internal/object"
	"github.com/robert-malhotra/nxsplit/internal/superblock"
)

// ErrNotHDF5 is returned when a file has no HDF5 signature.
var ErrNotHDF5 = superblock.ErrNotHDF5

// File is an open HDF5 file. A File is not safe for concurrent use.
type File struct {
	path       string
	file       *os.File
	reader     *binary.Reader
	superblock *superblock.Superblock
	cfg        binary.Config
	closed     bool

	// Cache of files opened through external links and virtual mappings,
	// keyed by absolute path.
	externals map[string]*File

	// Write support fields
	writable  bool
	allocator *alloc.Allocator
}

// Open opens an HDF5 file for reading.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	hf, err := newFile(path, f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return hf, nil
}

// OpenReadWrite opens an existing HDF5 file for editing. New objects are
// appended after the current end of file.
func OpenReadWrite(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	hf, err := newFile(path, f)
	if err != nil {
		f.Close()
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat: %w", err)
	}
	eof := hf.superblock.EOFAddress
	if size := uint64(info.Size() - hf.cfg.Base); size > eof {
		eof = size
	}
	hf.writable = true
	hf.allocator = alloc.New(eof)
	return hf, nil
}

func newFile(path string, f *os.File) (*File, error) {
	sb, err := superblock.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading superblock: %w", err)
	}
	cfg := sb.Config()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("reading superblock: %w", err)
	}
	hf := &File{
		path:       path,
		file:       f,
		reader:     binary.NewReader(f, cfg),
		superblock: sb,
		cfg:        cfg,
	}

	// The root header must at least parse.
	if _, err := hf.header(sb.RootGroupAddress); err != nil {
		return nil, fmt.Errorf("opening root group: %w", err)
	}
	return hf, nil
}

// Close flushes pending metadata of a writable file and closes it along
// with every file opened through its links.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	var errs []error
	if f.writable {
		errs = append(errs, f.Flush())
	}
	for _, ext := range f.externals {
		errs = append(errs, ext.Close())
	}
	f.externals = nil
	f.closed = true
	errs = append(errs, f.file.Close())
	return errors.Join(errs...)
}

// Flush writes the superblock with the current end of file and syncs the
// file to disk.
func (f *File) Flush() error {
	if f.closed {
		return ErrClosed
	}
	if !f.writable {
		return ErrReadOnly
	}
	f.superblock.EOFAddress = f.allocator.EOF()
	if _, err := f.file.WriteAt(f.superblock.Encode(), f.superblock.FileOffset); err != nil {
		return fmt.Errorf("writing superblock: %w", err)
	}
	// Extend the file to the end of the last allocation.
	if err := f.file.Truncate(int64(f.superblock.EOFAddress) + f.cfg.Base); err != nil {
		return fmt.Errorf("extending file: %w", err)
	}
	return f.file.Sync()
}

// Path returns the file path.
func (f *File) Path() string {
	return f.path
}

// Version returns the superblock version.
func (f *File) Version() int {
	return int(f.superblock.Version)
}

// Writable reports whether the file was opened for editing.
func (f *File) Writable() bool {
	return f.writable
}

// Root returns the root group.
func (f *File) Root() *Group {
	return &Group{file: f, path: "/", addr: f.superblock.RootGroupAddress}
}

// OpenGroup opens a group by absolute path.
func (f *File) OpenGroup(path string) (*Group, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.Root().OpenGroup(path)
}

// OpenDataset opens a dataset by absolute path.
func (f *File) OpenDataset(path string) (*Dataset, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.Root().OpenDataset(path)
}

// AllocStats reports the space appended to a writable file.
func (f *File) AllocStats() alloc.Stats {
	if f.allocator == nil {
		return alloc.Stats{}
	}
	return f.allocator.Stats()
}

// header reads the object header at addr.
func (f *File) header(addr uint64) (*object.Header, error) {
	if f.closed {
		return nil, ErrClosed
	}
	if f.cfg.IsUndefined(addr) {
		return nil, fmt.Errorf("%w: undefined object address", ErrNotFound)
	}
	return object.Read(f.reader, addr)
}

// headerVersion is the object header version written for new objects.
func (f *File) headerVersion() uint8 {
	if f.superblock.Version < 2 {
		return 1
	}
	return 2
}

// legacy reports whether new groups are written as symbol tables.
func (f *File) legacy() bool {
	return f.superblock.Version < 2
}

// append writes data at a fresh address at the end of the file.
func (f *File) append(data []byte, tag string) (uint64, error) {
	if !f.writable {
		return 0, ErrReadOnly
	}
	addr := f.allocator.Alloc(uint64(len(data)), tag)
	if err := f.writeAt(addr, data); err != nil {
		return 0, err
	}
	return addr, nil
}

// reserve allocates size bytes to be written later.
func (f *File) reserve(size int, tag string) (uint64, error) {
	if !f.writable {
		return 0, ErrReadOnly
	}
	return f.allocator.Alloc(uint64(size), tag), nil
}

func (f *File) writeAt(addr uint64, data []byte) error {
	if _, err := f.file.WriteAt(data, int64(addr)+f.cfg.Base); err != nil {
		return fmt.Errorf("writing %d bytes at %d: %w", len(data), addr, err)
	}
	return nil
}

// external opens the file name relative to the directory of f. Files are
// cached and closed with f.
func (f *File) external(name string) (*File, error) {
	p := name
	if !filepath.IsAbs(p) {
		p = filepath.Join(filepath.Dir(f.path), name)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return nil, err
	}
	if self, err := filepath.Abs(f.path); err == nil && self == abs {
		return f, nil
	}
	if ext, ok := f.externals[abs]; ok {
		return ext, nil
	}
	ext, err := Open(abs)
	if err != nil {
		return nil, err
	}
	if f.externals == nil {
		f.externals = make(map[string]*File)
	}
	f.externals[abs] = ext
	return ext, nil
}
