package hdf5

import (
	"fmt"

	"github.com/robert-malhotra/nxsplit/internal/btree"
	"github.com/robert-malhotra/nxsplit/internal/message"
)

// relink points every hard link to the object header at old to new. Links
// are patched in place: link messages in headers and dense storage, symbol
// table entries and the superblock root entry.
func (f *File) relink(old, new uint64) error {
	var patched int
	sb := f.superblock
	if sb.RootGroupAddress == old {
		sb.SetRoot(new)
		if _, err := f.file.WriteAt(sb.Encode(), sb.FileOffset); err != nil {
			return fmt.Errorf("writing superblock: %w", err)
		}
		patched++
	}

	visited := map[uint64]bool{old: true}
	var walk func(addr uint64) error
	walk = func(addr uint64) error {
		if visited[addr] {
			return nil
		}
		visited[addr] = true
		h, err := f.header(addr)
		if err != nil {
			return err
		}
		if !h.IsGroup() {
			return nil
		}
		links, err := f.readLinks(h)
		if err != nil {
			return err
		}
		for _, l := range links {
			if l.msg.LinkType != message.LinkHard {
				continue
			}
			target := l.msg.Address
			if target == old {
				if err := f.patchLink(h.Address, l, new); err != nil {
					return fmt.Errorf("relinking %s: %w", l.msg.Name, err)
				}
				patched++
				target = new
			}
			if err := walk(target); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(sb.RootGroupAddress); err != nil {
		return err
	}
	if patched == 0 {
		return fmt.Errorf("%w: no link to object header at %d", ErrNotFound, old)
	}
	return nil
}

// patchLink rewrites the address of one stored hard link.
func (f *File) patchLink(groupAddr uint64, l storedLink, addr uint64) error {
	buf := make([]byte, f.cfg.OffsetSize)
	f.cfg.PutUint(buf, addr, f.cfg.OffsetSize)

	switch l.source {
	case inHeader:
		h, err := f.header(groupAddr)
		if err != nil {
			return err
		}
		return h.Patch(f.file, l.entry, l.msg.AddressOffset, buf)

	case inFractalHeap:
		if !l.heapOK {
			return fmt.Errorf("%w: link stored inside its heap ID", ErrUnsupported)
		}
		return l.heap.Patch(f.file, l.loc, l.msg.AddressOffset, buf)

	case inSymbolTable:
		if _, err := f.file.WriteAt(buf, l.symbol.ObjectAddressPos(f.cfg)); err != nil {
			return err
		}
		if l.symbol.CacheType != btree.CacheHeader {
			return nil
		}
		// The cached B-tree and heap belonged to the old header.
		cache := make([]byte, 8+16)
		_, err := f.file.WriteAt(cache, l.symbol.Pos+2*int64(f.cfg.OffsetSize))
		return err
	}
	return fmt.Errorf("unknown link storage %d", l.source)
}
