// Package layout reads and writes the raw data of HDF5 datasets.
//
// [Storage] describes a dataset's layout, shape, element size and filters.
// [ReadSlice] copies a rectangular selection into a row-major buffer for
// compact, contiguous and chunked layouts. Chunks are located through any of
// the chunk indexes: version 1 and 2 B-trees, single chunk, implicit, fixed
// array and extensible array.
//
// On the write side, [SplitChunks] cuts a buffer into filtered chunks and
// [EncodeFixedArray] builds a fixed array index for them.
package layout
