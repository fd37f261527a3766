// Package filter implements the HDF5 chunk filters.
//
// A [Pipeline] is built from a filter pipeline message. Reading applies the
// filters in reverse order, skipping those masked out for a chunk; writing
// applies them in order. Supported filters are deflate, shuffle, Fletcher-32,
// LZ4 (32004) and Zstandard (32015).
package filter
