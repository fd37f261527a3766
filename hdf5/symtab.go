package hdf5

import (
	"github.com/robert-malhotra/nxsplit/internal/btree"
	"github.com/robert-malhotra/nxsplit/internal/heap"
	"github.com/robert-malhotra/nxsplit/internal/message"
)

// groupKs returns the leaf and internal node K of group B-trees.
func (f *File) groupKs() (leaf, internal int) {
	leaf, internal = int(f.superblock.GroupLeafNodeK), int(f.superblock.GroupInternalNodeK)
	if leaf == 0 {
		leaf = 4
	}
	if internal == 0 {
		internal = 16
	}
	return leaf, internal
}

// fitsSymbolTable reports whether links can be stored as a symbol table
// under a single B-tree node. External links need link messages.
func (f *File) fitsSymbolTable(links []*message.Link) bool {
	leaf, internal := f.groupKs()
	if len(links) > 2*leaf*2*internal {
		return false
	}
	for _, l := range links {
		if l.LinkType == message.LinkExternal {
			return false
		}
	}
	return true
}

// writeSymbolTable writes the local heap, symbol table nodes and B-tree of
// an old style group holding links, which are sorted by name.
func (f *File) writeSymbolTable(links []*message.Link) (*message.SymbolTable, error) {
	cfg := f.cfg
	leaf, internal := f.groupKs()

	strs := make([]string, 0, len(links))
	for _, l := range links {
		strs = append(strs, l.Name)
	}
	softAt := make(map[int]int)
	for i, l := range links {
		if l.LinkType == message.LinkSoft {
			softAt[i] = len(strs)
			strs = append(strs, l.SoftPath)
		}
	}

	probe, _ := heap.EncodeLocalHeap(strs, 0, cfg)
	heapAddr, err := f.reserve(len(probe), "local heap")
	if err != nil {
		return nil, err
	}
	data, offsets := heap.EncodeLocalHeap(strs, heapAddr, cfg)
	if err := f.writeAt(heapAddr, data); err != nil {
		return nil, err
	}

	var (
		children []uint64
		keys     = []uint64{0}
	)
	per := 2 * leaf
	for start := 0; start < len(links); start += per {
		end := min(start+per, len(links))
		entries := make([]btree.SymbolEntry, 0, end-start)
		for i := start; i < end; i++ {
			e := btree.SymbolEntry{NameOffset: offsets[i], ObjectAddress: links[i].Address}
			if j, ok := softAt[i]; ok {
				e.ObjectAddress = cfg.Undefined()
				e.CacheType = btree.CacheSoftLink
				e.Scratch = make([]byte, 16)
				cfg.PutUint(e.Scratch, offsets[j], 4)
			}
			entries = append(entries, e)
		}
		node, err := btree.EncodeSymbolNode(entries, leaf, cfg)
		if err != nil {
			return nil, err
		}
		addr, err := f.append(node, "symbol table node")
		if err != nil {
			return nil, err
		}
		children = append(children, addr)
		keys = append(keys, offsets[end-1])
	}

	node, err := btree.EncodeGroupNode(children, keys, internal, cfg)
	if err != nil {
		return nil, err
	}
	btreeAddr, err := f.append(node, "group B-tree")
	if err != nil {
		return nil, err
	}
	return &message.SymbolTable{BTreeAddress: btreeAddr, HeapAddress: heapAddr}, nil
}
