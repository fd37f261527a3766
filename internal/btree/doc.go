// Package btree reads HDF5 version 1 and version 2 B-trees.
//
// Version 1 B-trees index the symbol table nodes of old style groups (node
// type 0) and the chunks of chunked datasets (node type 1). Version 2
// B-trees are generic record stores; this package iterates their records
// and decodes the chunk (types 10 and 11) and link name (type 5) records.
//
// Chunk indexes made of a single leaf can also be encoded with
// [EncodeChunkLeaf], which is how rewritten datasets store their data.
package btree
