// Package heap reads and writes HDF5 heaps.
//
// Local heaps hold the link names of old style groups. Global heap
// collections hold variable-length objects such as the mapping list of a
// virtual dataset; [EncodeCollection] builds a new collection. Fractal heaps
// hold the link messages of dense groups; [FractalHeap.Locate] finds the
// file position of a managed object so it can be read or patched.
package heap
