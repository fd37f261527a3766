// Package object reads and writes HDF5 object headers.
//
// Every HDF5 object (group, dataset, committed datatype) has an object header
// holding its metadata as a list of header messages. Version 1 headers are
// used by files with a version 0 or 1 superblock; version 2 headers carry the
// "OHDR" signature and a checksum per chunk.
//
// Headers are read with [Read], which follows continuation chunks and keeps
// every message together with its encoded body and file position. The
// positions allow hard link addresses to be patched in place with
// [Header.Patch], which also refreshes the chunk checksum.
//
// New headers are encoded with [Encode] and written by the caller:
//
//	bodies := []object.Body{
//		object.BodyOf(dataspace, cfg),
//		object.BodyOf(datatype, cfg),
//		object.BodyOf(layout, cfg),
//	}
//	buf := object.Encode(2, bodies, cfg)
package object
