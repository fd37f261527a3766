package btree

import (
	"fmt"

	"github.com/robert-malhotra/nxsplit/internal/binary"
)

const (
	signatureV1  = "TREE"
	nodeGroup    = 0
	nodeRawChunk = 1

	// maxDepth bounds recursion through corrupt trees.
	maxDepth = 64
)

// nodeV1 is a version 1 B-tree node with its keys kept encoded.
type nodeV1 struct {
	Type     uint8
	Level    uint8
	Keys     [][]byte // len(Children)+1 keys
	Children []uint64
}

/*
Version 1 node:
"TREE", type(1), level(1), entries used(2), left sibling(O), right sibling(O),
key 0, child 0, key 1, child 1, ..., key N
*/
func readNodeV1(r *binary.Reader, address uint64, nodeType uint8, keySize int) (*nodeV1, error) {
	nr := r.At(int64(address))
	ok, err := nr.ExpectSignature(signatureV1)
	if err != nil {
		return nil, fmt.Errorf("reading B-tree node at %d: %w", address, err)
	}
	if !ok {
		return nil, fmt.Errorf("invalid B-tree signature at %d", address)
	}

	n := &nodeV1{}
	if n.Type, err = nr.ReadUint8(); err != nil {
		return nil, err
	}
	if n.Type != nodeType {
		return nil, fmt.Errorf("B-tree node at %d has type %d, expected %d", address, n.Type, nodeType)
	}
	if n.Level, err = nr.ReadUint8(); err != nil {
		return nil, err
	}
	used, err := nr.ReadUint16()
	if err != nil {
		return nil, err
	}
	nr.Skip(int64(2 * nr.OffsetSize()))

	for i := 0; i < int(used); i++ {
		key, err := nr.ReadBytes(keySize)
		if err != nil {
			return nil, err
		}
		child, err := nr.ReadOffset()
		if err != nil {
			return nil, err
		}
		n.Keys = append(n.Keys, key)
		n.Children = append(n.Children, child)
	}
	key, err := nr.ReadBytes(keySize)
	if err != nil {
		return nil, err
	}
	n.Keys = append(n.Keys, key)
	return n, nil
}

// walkV1 calls leaf for every child pointer of every leaf node.
func walkV1(r *binary.Reader, address uint64, nodeType uint8, keySize, depth int, leaf func(key []byte, child uint64) error) error {
	if depth > maxDepth {
		return fmt.Errorf("B-tree deeper than %d levels", maxDepth)
	}
	n, err := readNodeV1(r, address, nodeType, keySize)
	if err != nil {
		return err
	}
	for i, child := range n.Children {
		if n.Level > 0 {
			err = walkV1(r, child, nodeType, keySize, depth+1, leaf)
		} else {
			err = leaf(n.Keys[i], child)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
