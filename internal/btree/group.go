package btree

import (
	"fmt"

	"github.com/robert-malhotra/nxsplit/internal/binary"
	"github.com/robert-malhotra/nxsplit/internal/heap"
)

const signatureSymbolNode = "SNOD"

// Symbol table entry cache types.
const (
	CacheNone     = 0
	CacheHeader   = 1
	CacheSoftLink = 2
)

// SymbolEntry is one entry of a symbol table node.
type SymbolEntry struct {
	Name          string
	NameOffset    uint64
	ObjectAddress uint64
	CacheType     uint32
	Scratch       []byte
	SoftLink      string

	// Pos is the absolute file position of the entry.
	Pos int64
}

// SymbolEntrySize returns the encoded size of a symbol table entry.
func SymbolEntrySize(cfg binary.Config) int { return 2*cfg.OffsetSize + 24 }

// ObjectAddressPos returns the absolute position of the object address.
func (e SymbolEntry) ObjectAddressPos(cfg binary.Config) int64 {
	return e.Pos + int64(cfg.OffsetSize)
}

// ReadSymbolTable returns the entries of an old style group, in name order.
func ReadSymbolTable(r *binary.Reader, btreeAddr uint64, names *heap.LocalHeap) ([]SymbolEntry, error) {
	var entries []SymbolEntry
	err := walkV1(r, btreeAddr, nodeGroup, r.LengthSize(), 0, func(_ []byte, snod uint64) error {
		es, err := readSymbolNode(r, snod, names)
		if err != nil {
			return err
		}
		entries = append(entries, es...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

/*
Symbol table node:
"SNOD", version(1), reserved(1), number of symbols(2), entries
*/
func readSymbolNode(r *binary.Reader, address uint64, names *heap.LocalHeap) ([]SymbolEntry, error) {
	nr := r.At(int64(address))
	ok, err := nr.ExpectSignature(signatureSymbolNode)
	if err != nil {
		return nil, fmt.Errorf("reading symbol table node at %d: %w", address, err)
	}
	if !ok {
		return nil, fmt.Errorf("invalid symbol table node signature at %d", address)
	}
	version, err := nr.ReadUint8()
	if err != nil {
		return nil, err
	}
	if version != 1 {
		return nil, fmt.Errorf("unsupported symbol table node version %d", version)
	}
	nr.Skip(1)
	count, err := nr.ReadUint16()
	if err != nil {
		return nil, err
	}

	entries := make([]SymbolEntry, 0, count)
	for i := 0; i < int(count); i++ {
		e, err := ReadSymbolEntry(nr)
		if err != nil {
			return nil, fmt.Errorf("symbol table entry %d: %w", i, err)
		}
		if e.Name, err = names.String(e.NameOffset); err != nil {
			return nil, err
		}
		if e.CacheType == CacheSoftLink {
			off := r.Config().Uint(e.Scratch, 4)
			if e.SoftLink, err = names.String(off); err != nil {
				return nil, err
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ReadSymbolEntry reads a symbol table entry at the reader position. The
// name is left for the caller to resolve.
func ReadSymbolEntry(r *binary.Reader) (SymbolEntry, error) {
	e := SymbolEntry{Pos: r.Pos()}
	var err error
	if e.NameOffset, err = r.ReadOffset(); err != nil {
		return e, err
	}
	if e.ObjectAddress, err = r.ReadOffset(); err != nil {
		return e, err
	}
	if e.CacheType, err = r.ReadUint32(); err != nil {
		return e, err
	}
	r.Skip(4)
	e.Scratch, err = r.ReadBytes(16)
	return e, err
}

func putSymbolEntry(b *binary.Buffer, e SymbolEntry) {
	b.PutOffset(e.NameOffset)
	b.PutOffset(e.ObjectAddress)
	b.PutUint32(e.CacheType)
	b.PutZeros(4)
	scratch := make([]byte, 16)
	copy(scratch, e.Scratch)
	b.PutBytes(scratch)
}

// EncodeSymbolNode encodes a symbol table node. The node is sized for 2k
// entries, k being the group leaf node K.
func EncodeSymbolNode(entries []SymbolEntry, k int, cfg binary.Config) ([]byte, error) {
	if len(entries) > 2*k {
		return nil, fmt.Errorf("symbol table node holds at most %d entries, got %d", 2*k, len(entries))
	}
	b := binary.NewBuffer(cfg)
	b.PutString(signatureSymbolNode)
	b.PutUint8(1)
	b.PutUint8(0)
	b.PutUint16(uint16(len(entries)))
	for _, e := range entries {
		putSymbolEntry(b, e)
	}
	b.PutZeros(8 + 2*k*SymbolEntrySize(cfg) - b.Len())
	return b.Bytes(), nil
}

// EncodeGroupNode encodes a leaf group B-tree node over symbol table nodes.
// keys holds len(children)+1 local heap offsets: the empty name, then the
// last name of each child. The node is sized for 2k children.
func EncodeGroupNode(children, keys []uint64, k int, cfg binary.Config) ([]byte, error) {
	if len(children) > 2*k {
		return nil, fmt.Errorf("group B-tree node holds at most %d children, got %d", 2*k, len(children))
	}
	if len(keys) != len(children)+1 {
		return nil, fmt.Errorf("group B-tree node needs %d keys, got %d", len(children)+1, len(keys))
	}
	b := binary.NewBuffer(cfg)
	b.PutString(signatureV1)
	b.PutUint8(nodeGroup)
	b.PutUint8(0)
	b.PutUint16(uint16(len(children)))
	b.PutUndefined()
	b.PutUndefined()
	for i, c := range children {
		b.PutLength(keys[i])
		b.PutOffset(c)
	}
	b.PutLength(keys[len(children)])
	full := 8 + 2*cfg.OffsetSize + 2*k*(cfg.LengthSize+cfg.OffsetSize) + cfg.LengthSize
	b.PutZeros(full - b.Len())
	return b.Bytes(), nil
}
