package hdf5

import "github.com/robert-malhotra/nxsplit/internal/message"

// Option configures file creation.
type Option func(*fileOptions)

type fileOptions struct {
	offsetSize int
	lengthSize int
	legacy     bool
}

func defaultFileOptions() *fileOptions {
	return &fileOptions{
		offsetSize: 8,
		lengthSize: 8,
	}
}

// WithOffsetSize sets the size in bytes of file addresses (2, 4, or 8).
func WithOffsetSize(size int) Option {
	return func(o *fileOptions) {
		if size == 2 || size == 4 || size == 8 {
			o.offsetSize = size
		}
	}
}

// WithLengthSize sets the size in bytes of lengths (2, 4, or 8).
func WithLengthSize(size int) Option {
	return func(o *fileOptions) {
		if size == 2 || size == 4 || size == 8 {
			o.lengthSize = size
		}
	}
}

// WithLegacyFormat creates the file the way the library's default ("earliest")
// format bounds do: a version 0 superblock, version 1 object headers and
// symbol table groups. Groups holding external links use link messages.
func WithLegacyFormat() Option {
	return func(o *fileOptions) {
		o.legacy = true
	}
}

// DatasetOption configures dataset creation.
type DatasetOption func(*datasetOptions)

type datasetOptions struct {
	chunks     []uint64
	maxDims    []uint64
	chunkIndex message.ChunkIndexType
	filters    []message.Filter
	fill       []byte
	compact    bool
	attributes []attrDef
}

// attrDef holds an attribute to create.
type attrDef struct {
	name  string
	value any
}

// WithChunks stores the dataset in chunks of the given shape.
func WithChunks(dims ...uint64) DatasetOption {
	return func(o *datasetOptions) {
		o.chunks = dims
	}
}

// WithMaxDims sets the maximum dimensions. Use Unlimited for an extendible
// axis; chunking is then required.
func WithMaxDims(dims ...uint64) DatasetOption {
	return func(o *datasetOptions) {
		o.maxDims = dims
	}
}

// Unlimited is the max dimension of an extendible axis.
const Unlimited = message.Unlimited

// WithFixedArrayIndex indexes chunks with a fixed array instead of a
// version 1 B-tree.
func WithFixedArrayIndex() DatasetOption {
	return func(o *datasetOptions) {
		o.chunkIndex = message.ChunkIndexFixedArray
	}
}

// WithDeflate compresses chunks with zlib at level 0-9.
func WithDeflate(level int) DatasetOption {
	return func(o *datasetOptions) {
		if level >= 0 && level <= 9 {
			o.filters = append(o.filters, message.Filter{ID: message.FilterDeflate, ClientData: []uint32{uint32(level)}})
		}
	}
}

// WithShuffle enables the shuffle filter.
func WithShuffle() DatasetOption {
	return func(o *datasetOptions) {
		o.filters = append(o.filters, message.Filter{ID: message.FilterShuffle})
	}
}

// WithFletcher32 adds a Fletcher-32 checksum to every chunk.
func WithFletcher32() DatasetOption {
	return func(o *datasetOptions) {
		o.filters = append(o.filters, message.Filter{ID: message.FilterFletcher32, Flags: 0})
	}
}

// WithLZ4 compresses chunks with the LZ4 filter.
func WithLZ4() DatasetOption {
	return func(o *datasetOptions) {
		o.filters = append(o.filters, message.Filter{ID: message.FilterLZ4, Name: "lz4", Flags: message.FilterOptional})
	}
}

// WithZstd compresses chunks with the Zstandard filter.
func WithZstd(level int) DatasetOption {
	return func(o *datasetOptions) {
		o.filters = append(o.filters, message.Filter{ID: message.FilterZstd, Name: "zstd", Flags: message.FilterOptional, ClientData: []uint32{uint32(level)}})
	}
}

// WithFill sets the fill value, one encoded element.
func WithFill(value []byte) DatasetOption {
	return func(o *datasetOptions) {
		o.fill = value
	}
}

// WithCompact stores the data inside the object header.
func WithCompact() DatasetOption {
	return func(o *datasetOptions) {
		o.compact = true
	}
}

// WithAttribute adds an attribute. The value can be a string or a numeric
// scalar or slice.
func WithAttribute(name string, value any) DatasetOption {
	return func(o *datasetOptions) {
		o.attributes = append(o.attributes, attrDef{name: name, value: value})
	}
}
