// Package superblock reads and patches HDF5 superblocks.
//
// The superblock is located by searching for the 8-byte signature
// (89 48 44 46 0D 0A 1A 0A) at offsets 0, 512, 1024 and 2048.
//
// Versions 0 and 1 describe the root group with a symbol table entry whose
// scratch pad may cache the root B-tree and local heap addresses. Versions 2
// and 3 store the root object header address directly and end with a lookup3
// checksum.
//
// Editing a file only ever touches two fields: the end-of-file address and
// the root group address. [Superblock.Encode] re-emits the superblock in its
// original version with those fields updated, preserving every other byte of
// a v0/v1 superblock.
package superblock
