// Package hdf5 reads and edits HDF5 files in pure Go.
//
// Files are edited by appending: a changed object header is written anew at
// the end of the file and every hard link to the old header is pointed at
// the new one. Bulk data that is not rewritten is never touched.
package hdf5

import "errors"

// Common errors
var (
	ErrNotFound    = errors.New("object not found")
	ErrExists      = errors.New("object already exists")
	ErrNotDataset  = errors.New("object is not a dataset")
	ErrNotGroup    = errors.New("object is not a group")
	ErrUnsupported = errors.New("unsupported feature")
	ErrInvalidPath = errors.New("invalid path")
	ErrClosed      = errors.New("file is closed")
	ErrReadOnly    = errors.New("file is not writable")
	ErrLinkDepth   = errors.New("maximum link depth exceeded")
)

// MaxLinkDepth is the maximum number of soft and external links followed
// while resolving one path.
const MaxLinkDepth = 100
