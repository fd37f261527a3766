package layout

import (
	"fmt"
	"math/bits"

	"github.com/robert-malhotra/nxsplit/internal/binary"
	"github.com/robert-malhotra/nxsplit/internal/btree"
	"github.com/robert-malhotra/nxsplit/internal/message"
)

const (
	eaHeaderSig     = "EAHD"
	eaIndexSig      = "EAIB"
	eaSuperSig      = "EASB"
	eaDataBlockSig  = "EADB"
	eaHeaderVersion = 0
)

type eaHeader struct {
	client          uint8
	elemSize        int
	maxBits         uint8
	idxBlkElmts     uint64
	dblkMinElmts    uint64
	sblkMinDataPtrs uint64
	pageBits        uint8
	maxIdxSet       uint64
	iblock          uint64
	elem            arrayElement
	address         uint64
}

type eaSuperInfo struct {
	ndblks     uint64
	dblkNelmts uint64
}

func (h *eaHeader) superInfo(u int) eaSuperInfo {
	return eaSuperInfo{
		ndblks:     1 << (u / 2),
		dblkNelmts: (1 << ((u + 1) / 2)) * h.dblkMinElmts,
	}
}

func (h *eaHeader) nsblks() int {
	return 1 + int(h.maxBits) - (bits.Len64(h.dblkMinElmts) - 1)
}

func (h *eaHeader) blockOffsetSize() int { return (int(h.maxBits) + 7) / 8 }

func readEAHeader(r *binary.Reader, address uint64) (*eaHeader, error) {
	cfg := r.Config()
	n := 4 + 2 + 6 + 6*cfg.LengthSize + cfg.OffsetSize
	buf, err := readChecksummed(r, r.At(int64(address)).Pos(), n, "extensible array header")
	if err != nil {
		return nil, err
	}
	if string(buf[:4]) != eaHeaderSig {
		return nil, fmt.Errorf("invalid extensible array header signature")
	}
	if buf[4] != eaHeaderVersion {
		return nil, fmt.Errorf("unsupported extensible array version %d", buf[4])
	}
	h := &eaHeader{
		client:          buf[5],
		elemSize:        int(buf[6]),
		maxBits:         buf[7],
		idxBlkElmts:     uint64(buf[8]),
		dblkMinElmts:    uint64(buf[9]),
		sblkMinDataPtrs: uint64(buf[10]),
		pageBits:        buf[11],
		address:         address,
	}
	stats := buf[12:]
	h.maxIdxSet = cfg.Length(stats[4*cfg.LengthSize:])
	h.iblock = cfg.Offset(stats[6*cfg.LengthSize:])
	if !isPow2(h.dblkMinElmts) || !isPow2(h.sblkMinDataPtrs) {
		return nil, fmt.Errorf("extensible array block sizes must be powers of two")
	}
	if h.elem, err = newArrayElement(h.client, h.elemSize, cfg.OffsetSize); err != nil {
		return nil, err
	}
	return h, nil
}

func isPow2(v uint64) bool { return v != 0 && v&(v-1) == 0 }

// eaWalker visits array elements in index order.
type eaWalker struct {
	r     *binary.Reader
	h     *eaHeader
	next  uint64
	visit func(i uint64, buf []byte)
}

func (w *eaWalker) done() bool { return w.next >= w.h.maxIdxSet }

func (w *eaWalker) emit(buf []byte, n uint64) {
	for i := uint64(0); i < n && !w.done(); i++ {
		w.visit(w.next, buf[int(i)*w.h.elemSize:])
		w.next++
	}
}

func (w *eaWalker) skip(n uint64) { w.next += n }

func (w *eaWalker) prefix() int {
	return 4 + 2 + w.r.OffsetSize() + w.h.blockOffsetSize()
}

func (w *eaWalker) dataBlock(address, nelmts uint64, pageInit []byte) error {
	if address == 0 || w.r.IsUndefinedOffset(address) {
		w.skip(nelmts)
		return nil
	}
	base := w.r.At(int64(address)).Pos()
	esz := w.h.elemSize
	pageElmts := uint64(1) << w.h.pageBits

	if nelmts <= pageElmts {
		buf, err := readChecksummed(w.r, base, w.prefix()+int(nelmts)*esz, "extensible array data block")
		if err != nil {
			return err
		}
		if string(buf[:4]) != eaDataBlockSig {
			return fmt.Errorf("invalid extensible array data block signature")
		}
		w.emit(buf[w.prefix():], nelmts)
		return nil
	}

	head, err := readChecksummed(w.r, base, w.prefix(), "extensible array data block")
	if err != nil {
		return err
	}
	if string(head[:4]) != eaDataBlockSig {
		return fmt.Errorf("invalid extensible array data block signature")
	}
	npages := nelmts / pageElmts
	pos := base + int64(w.prefix()+4)
	for p := uint64(0); p < npages && !w.done(); p++ {
		pageLen := int(pageElmts) * esz
		if pageInit == nil || bitSet(pageInit, p) {
			page, err := readChecksummed(w.r, pos, pageLen, "extensible array page")
			if err != nil {
				return err
			}
			w.emit(page, pageElmts)
		} else {
			w.skip(pageElmts)
		}
		pos += int64(pageLen + 4)
	}
	return nil
}

func (w *eaWalker) superBlock(address uint64, info eaSuperInfo) error {
	if address == 0 || w.r.IsUndefinedOffset(address) {
		w.skip(info.ndblks * info.dblkNelmts)
		return nil
	}
	pageElmts := uint64(1) << w.h.pageBits
	var bitmapLen int
	if info.dblkNelmts > pageElmts {
		bitmapLen = int((info.dblkNelmts/pageElmts + 7) / 8)
	}
	osz := w.r.OffsetSize()
	n := w.prefix() + int(info.ndblks)*bitmapLen + int(info.ndblks)*osz
	buf, err := readChecksummed(w.r, w.r.At(int64(address)).Pos(), n, "extensible array super block")
	if err != nil {
		return err
	}
	if string(buf[:4]) != eaSuperSig {
		return fmt.Errorf("invalid extensible array super block signature")
	}
	bitmaps := buf[w.prefix():]
	addrs := bitmaps[int(info.ndblks)*bitmapLen:]
	cfg := w.r.Config()
	for d := uint64(0); d < info.ndblks && !w.done(); d++ {
		var init []byte
		if bitmapLen > 0 {
			init = bitmaps[int(d)*bitmapLen : int(d+1)*bitmapLen]
		}
		if err := w.dataBlock(cfg.Offset(addrs[int(d)*osz:]), info.dblkNelmts, init); err != nil {
			return err
		}
	}
	return nil
}

func (w *eaWalker) indexBlock() error {
	h := w.h
	cfg := w.r.Config()
	osz := cfg.OffsetSize
	iblkSblks := 2 * (bits.Len64(h.sblkMinDataPtrs) - 1)
	ndblkAddrs := 2 * int(h.sblkMinDataPtrs-1)
	nsblkAddrs := h.nsblks() - iblkSblks
	if nsblkAddrs < 0 {
		return fmt.Errorf("invalid extensible array parameters")
	}

	prefix := 4 + 2 + osz
	n := prefix + int(h.idxBlkElmts)*h.elemSize + (ndblkAddrs+nsblkAddrs)*osz
	buf, err := readChecksummed(w.r, w.r.At(int64(h.iblock)).Pos(), n, "extensible array index block")
	if err != nil {
		return err
	}
	if string(buf[:4]) != eaIndexSig {
		return fmt.Errorf("invalid extensible array index block signature")
	}
	w.emit(buf[prefix:], h.idxBlkElmts)

	addrs := buf[prefix+int(h.idxBlkElmts)*h.elemSize:]
	d := 0
	for u := 0; u < iblkSblks && !w.done(); u++ {
		info := h.superInfo(u)
		for j := uint64(0); j < info.ndblks && !w.done(); j++ {
			if err := w.dataBlock(cfg.Offset(addrs[d*osz:]), info.dblkNelmts, nil); err != nil {
				return err
			}
			d++
		}
	}
	addrs = addrs[ndblkAddrs*osz:]
	for s := 0; s < nsblkAddrs && !w.done(); s++ {
		if err := w.superBlock(cfg.Offset(addrs[s*osz:]), h.superInfo(iblkSblks+s)); err != nil {
			return err
		}
	}
	return nil
}

func readExtensibleArray(r *binary.Reader, address uint64, s Storage, shape []uint64) (*btree.ChunkIndex, error) {
	h, err := readEAHeader(r, address)
	if err != nil {
		return nil, err
	}
	idx := &btree.ChunkIndex{}
	if r.IsUndefinedOffset(h.iblock) || h.maxIdxSet == 0 {
		return idx, nil
	}

	unlim := unlimitedDim(s)
	// Chunks are numbered with the unlimited dimension moved to the front.
	ext := swizzle(indexExtent(s), unlim)
	grid := NewGrid(ext, swizzle(shape, unlim))
	cfg := r.Config()

	w := &eaWalker{r: r, h: h, visit: func(i uint64, buf []byte) {
		addr, size, mask := h.elem.decode(buf, cfg)
		if addr == 0 || cfg.IsUndefined(addr) {
			return
		}
		off := unswizzle(grid.Offset(i), unlim)
		for d := range off {
			if off[d] >= s.Dims[d] {
				return
			}
		}
		idx.Entries = append(idx.Entries, btree.ChunkEntry{
			Offset: off, Address: addr, Size: size, FilterMask: mask,
		})
	}}
	if err := w.indexBlock(); err != nil {
		return nil, err
	}
	return idx, nil
}

func unlimitedDim(s Storage) int {
	for d, m := range s.MaxDims {
		if m == message.Unlimited {
			return d
		}
	}
	return 0
}

func swizzle(v []uint64, d int) []uint64 {
	out := make([]uint64, 0, len(v))
	out = append(out, v[d])
	out = append(out, v[:d]...)
	return append(out, v[d+1:]...)
}

func unswizzle(v []uint64, d int) []uint64 {
	out := make([]uint64, 0, len(v))
	out = append(out, v[1:d+1]...)
	out = append(out, v[0])
	return append(out, v[d+1:]...)
}
