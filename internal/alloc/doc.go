// Package alloc tracks space appended to an HDF5 file being edited.
//
// Objects are never written over live data: every new header, heap or
// chunk goes to the end of the file and the [Allocator] hands out those
// addresses. Objects that a relocation leaves unreachable are recorded with
// [Allocator.Release] so their size can be reported; the space is not
// reused.
//
//	a := alloc.New(eof)
//	addr := a.Alloc(uint64(len(header)), "object header")
package alloc
