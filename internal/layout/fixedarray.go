package layout

import (
	"fmt"
	"math/bits"

	"github.com/robert-malhotra/nxsplit/internal/binary"
	"github.com/robert-malhotra/nxsplit/internal/btree"
)

const (
	faHeaderSig = "FAHD"
	faBlockSig  = "FADB"

	clientChunk         = 0
	clientFilteredChunk = 1
)

// arrayElement decodes one fixed or extensible array element.
type arrayElement struct {
	filtered bool
	sizeLen  int
}

func newArrayElement(client uint8, entrySize, offsetSize int) (arrayElement, error) {
	switch client {
	case clientChunk:
		if entrySize != offsetSize {
			return arrayElement{}, fmt.Errorf("chunk array element size %d, want %d", entrySize, offsetSize)
		}
		return arrayElement{}, nil
	case clientFilteredChunk:
		n := entrySize - offsetSize - 4
		if n < 1 || n > 8 {
			return arrayElement{}, fmt.Errorf("filtered chunk array element size %d", entrySize)
		}
		return arrayElement{filtered: true, sizeLen: n}, nil
	}
	return arrayElement{}, fmt.Errorf("unknown array client %d", client)
}

// decode returns the chunk address, size and filter mask of the element at
// the start of buf.
func (a arrayElement) decode(buf []byte, cfg binary.Config) (addr, size uint64, mask uint32) {
	addr = cfg.Offset(buf)
	if a.filtered {
		size = cfg.Uint(buf[cfg.OffsetSize:], a.sizeLen)
		mask = uint32(cfg.Uint(buf[cfg.OffsetSize+a.sizeLen:], 4))
	}
	return addr, size, mask
}

// bitSet reads bit i of an MSB-first bitmap.
func bitSet(bitmap []byte, i uint64) bool {
	return bitmap[i/8]&(0x80>>(i%8)) != 0
}

// readChecksummed reads n bytes followed by their lookup3 checksum.
func readChecksummed(r *binary.Reader, pos int64, n int, what string) ([]byte, error) {
	buf, err := r.AtAbs(pos).ReadBytes(n + 4)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", what, err)
	}
	sum := r.Config().ByteOrder.Uint32(buf[n:])
	if !binary.VerifyLookup3(buf[:n], sum) {
		return nil, fmt.Errorf("%s checksum mismatch", what)
	}
	return buf[:n], nil
}

func readFixedArray(r *binary.Reader, address uint64, s Storage, shape []uint64) (*btree.ChunkIndex, error) {
	cfg := r.Config()
	hdrLen := 4 + 4 + cfg.LengthSize + cfg.OffsetSize
	hdr, err := readChecksummed(r, r.At(int64(address)).Pos(), hdrLen, "fixed array header")
	if err != nil {
		return nil, err
	}
	if string(hdr[:4]) != faHeaderSig {
		return nil, fmt.Errorf("invalid fixed array header signature")
	}
	if hdr[4] != 0 {
		return nil, fmt.Errorf("unsupported fixed array version %d", hdr[4])
	}
	elem, err := newArrayElement(hdr[5], int(hdr[6]), cfg.OffsetSize)
	if err != nil {
		return nil, err
	}
	entrySize := int(hdr[6])
	pageBits := hdr[7]
	nelmts := cfg.Length(hdr[8:])
	dblk := cfg.Offset(hdr[8+cfg.LengthSize:])

	idx := &btree.ChunkIndex{}
	if cfg.IsUndefined(dblk) || nelmts == 0 {
		return idx, nil
	}
	grid := NewGrid(indexExtent(s), shape)
	if nelmts < grid.Len() {
		return nil, fmt.Errorf("fixed array holds %d elements for %d chunks", nelmts, grid.Len())
	}

	add := func(i uint64, buf []byte) {
		addr, size, mask := elem.decode(buf, cfg)
		if addr == 0 || cfg.IsUndefined(addr) || i >= grid.Len() {
			return
		}
		idx.Entries = append(idx.Entries, btree.ChunkEntry{
			Offset: grid.Offset(i), Address: addr, Size: size, FilterMask: mask,
		})
	}

	base := r.At(int64(dblk)).Pos()
	prefix := 4 + 2 + cfg.OffsetSize
	pageElmts := uint64(1) << pageBits

	if nelmts <= pageElmts {
		body, err := readChecksummed(r, base, prefix+int(nelmts)*entrySize, "fixed array data block")
		if err != nil {
			return nil, err
		}
		if string(body[:4]) != faBlockSig {
			return nil, fmt.Errorf("invalid fixed array data block signature")
		}
		for i := uint64(0); i < nelmts; i++ {
			add(i, body[prefix+int(i)*entrySize:])
		}
		return idx, nil
	}

	npages := (nelmts + pageElmts - 1) / pageElmts
	bitmapLen := int((npages + 7) / 8)
	head, err := readChecksummed(r, base, prefix+bitmapLen, "fixed array data block")
	if err != nil {
		return nil, err
	}
	if string(head[:4]) != faBlockSig {
		return nil, fmt.Errorf("invalid fixed array data block signature")
	}
	bitmap := head[prefix:]
	pos := base + int64(prefix+bitmapLen+4)
	for p := uint64(0); p < npages; p++ {
		n := pageElmts
		if p == npages-1 {
			n = nelmts - p*pageElmts
		}
		pageLen := int(n) * entrySize
		if bitSet(bitmap, p) {
			page, err := readChecksummed(r, pos, pageLen, "fixed array page")
			if err != nil {
				return nil, err
			}
			for i := uint64(0); i < n; i++ {
				add(p*pageElmts+i, page[int(i)*entrySize:])
			}
		}
		pos += int64(pageLen + 4)
	}
	return idx, nil
}

// FilteredSizeLen returns the width of the chunk size field of filtered
// chunk array elements for chunks of chunkBytes unfiltered bytes.
func FilteredSizeLen(chunkBytes uint64) int {
	n := 1 + (bits.Len64(chunkBytes)-1+8)/8
	return min(n, 8)
}

// EncodeFixedArray encodes a fixed array chunk index for the chunks of grid
// to be written at address. The header is followed directly by a single
// unpaged data block. Chunks missing from entries are left undefined.
// sizeLen is zero for unfiltered datasets.
func EncodeFixedArray(entries []btree.ChunkEntry, grid Grid, sizeLen int, address uint64, cfg binary.Config) ([]byte, uint8) {
	nelmts := grid.Len()
	entrySize := cfg.OffsetSize
	client := uint8(clientChunk)
	if sizeLen > 0 {
		entrySize += sizeLen + 4
		client = clientFilteredChunk
	}
	pageBits := uint8(max(10, bits.Len64(nelmts)))

	b := binary.NewBuffer(cfg)
	b.PutString(faHeaderSig)
	b.PutUint8(0)
	b.PutUint8(client)
	b.PutUint8(uint8(entrySize))
	b.PutUint8(pageBits)
	b.PutLength(nelmts)
	hdrLen := b.Len() + cfg.OffsetSize + 4
	b.PutOffset(address + uint64(hdrLen))
	b.AppendChecksum()

	elems := make([]btree.ChunkEntry, nelmts)
	for _, e := range entries {
		elems[grid.Index(e.Offset)] = e
	}

	start := b.Len()
	b.PutString(faBlockSig)
	b.PutUint8(0)
	b.PutUint8(client)
	b.PutOffset(address)
	for _, e := range elems {
		if e.Offset == nil {
			b.PutUndefined()
			if sizeLen > 0 {
				b.PutZeros(sizeLen + 4)
			}
			continue
		}
		b.PutOffset(e.Address)
		if sizeLen > 0 {
			b.PutUintN(e.Size, sizeLen)
			b.PutUint32(e.FilterMask)
		}
	}
	appendChecksumFrom(b, start)
	return b.Bytes(), pageBits
}

func appendChecksumFrom(b *binary.Buffer, start int) {
	b.PutUint32(binary.Lookup3(b.Bytes()[start:]))
}
