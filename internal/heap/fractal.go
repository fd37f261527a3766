package heap

import (
	"fmt"
	"io"
	"math/bits"
	"sort"

	"github.com/robert-malhotra/nxsplit/internal/binary"
)

const (
	signatureFractal  = "FRHP"
	signatureDirect   = "FHDB"
	signatureIndirect = "FHIB"

	fractalChecksumDirect = 0x02

	idManaged = 0
	idHuge    = 1
	idTiny    = 2
)

// FractalHeap is a fractal heap with the positions of its direct blocks.
type FractalHeap struct {
	Address        uint64
	IDLength       int
	Flags          uint8
	MaxManagedSize uint32
	TableWidth     int
	StartBlockSize uint64
	MaxDirectSize  uint64
	MaxHeapBits    int
	RootAddress    uint64
	RootRows       int

	addrSize int
	offSize  int
	lenSize  int
	blocks   []directBlock
}

type directBlock struct {
	heapOffset uint64
	size       uint64
	pos        int64 // absolute
}

// Location is the position of a managed object in the file.
type Location struct {
	Pos    int64
	Length int
	block  directBlock
}

// ReadFractalHeap reads a fractal heap header and indexes its direct blocks.
// Heaps with I/O filters are not supported.
func ReadFractalHeap(r *binary.Reader, address uint64) (*FractalHeap, error) {
	hr := r.At(int64(address))
	ok, err := hr.ExpectSignature(signatureFractal)
	if err != nil {
		return nil, fmt.Errorf("reading fractal heap at %d: %w", address, err)
	}
	if !ok {
		return nil, fmt.Errorf("invalid fractal heap signature at %d", address)
	}
	version, err := hr.ReadUint8()
	if err != nil {
		return nil, err
	}
	if version != 0 {
		return nil, fmt.Errorf("unsupported fractal heap version %d", version)
	}

	h := &FractalHeap{Address: address, addrSize: r.OffsetSize()}
	idLen, err := hr.ReadUint16()
	if err != nil {
		return nil, err
	}
	h.IDLength = int(idLen)
	filterLen, err := hr.ReadUint16()
	if err != nil {
		return nil, err
	}
	if filterLen != 0 {
		return nil, fmt.Errorf("filtered fractal heaps are not supported")
	}
	if h.Flags, err = hr.ReadUint8(); err != nil {
		return nil, err
	}
	if h.MaxManagedSize, err = hr.ReadUint32(); err != nil {
		return nil, err
	}
	// huge object and free space bookkeeping
	L, O := int64(r.LengthSize()), int64(r.OffsetSize())
	hr.Skip(L + O + L + O + 3*L + 5*L)

	width, err := hr.ReadUint16()
	if err != nil {
		return nil, err
	}
	h.TableWidth = int(width)
	if h.StartBlockSize, err = hr.ReadLength(); err != nil {
		return nil, err
	}
	if h.MaxDirectSize, err = hr.ReadLength(); err != nil {
		return nil, err
	}
	maxBits, err := hr.ReadUint16()
	if err != nil {
		return nil, err
	}
	h.MaxHeapBits = int(maxBits)
	hr.Skip(2)
	if h.RootAddress, err = hr.ReadOffset(); err != nil {
		return nil, err
	}
	rows, err := hr.ReadUint16()
	if err != nil {
		return nil, err
	}
	h.RootRows = int(rows)

	if h.TableWidth == 0 || !isPow2(h.StartBlockSize) || !isPow2(h.MaxDirectSize) {
		return nil, fmt.Errorf("invalid fractal heap doubling table")
	}
	h.offSize = (h.MaxHeapBits + 7) / 8
	h.lenSize = (log2(h.MaxDirectSize) + 7) / 8
	if n := limitEncSize(uint64(h.MaxManagedSize)); n < h.lenSize {
		h.lenSize = n
	}

	if err := h.index(r); err != nil {
		return nil, err
	}
	return h, nil
}

func isPow2(v uint64) bool { return v != 0 && v&(v-1) == 0 }

func log2(v uint64) int { return bits.Len64(v) - 1 }

func limitEncSize(v uint64) int {
	if v == 0 {
		return 1
	}
	return log2(v)/8 + 1
}

func (h *FractalHeap) rowSize(row int) uint64 {
	if row == 0 {
		return h.StartBlockSize
	}
	return h.StartBlockSize << (row - 1)
}

func (h *FractalHeap) index(r *binary.Reader) error {
	if r.IsUndefinedOffset(h.RootAddress) {
		return nil
	}
	if h.RootRows == 0 {
		h.blocks = append(h.blocks, directBlock{size: h.StartBlockSize, pos: r.Config().Base + int64(h.RootAddress)})
	} else if err := h.indexIndirect(r, h.RootAddress, 0, h.RootRows, 0); err != nil {
		return err
	}
	sort.Slice(h.blocks, func(i, j int) bool { return h.blocks[i].heapOffset < h.blocks[j].heapOffset })
	return nil
}

/*
Indirect block: "FHIB", version(1), heap header address(O), block offset,
rows*width child addresses (direct blocks first), checksum
*/
func (h *FractalHeap) indexIndirect(r *binary.Reader, address, heapOffset uint64, rows, depth int) error {
	if depth > 64 {
		return fmt.Errorf("fractal heap indirect blocks nested too deep")
	}
	ir := r.At(int64(address))
	ok, err := ir.ExpectSignature(signatureIndirect)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("invalid fractal heap indirect block signature at %d", address)
	}
	ir.Skip(int64(1 + r.OffsetSize() + h.offSize))

	off := heapOffset
	for row := 0; row < rows; row++ {
		size := h.rowSize(row)
		for col := 0; col < h.TableWidth; col++ {
			child, err := ir.ReadOffset()
			if err != nil {
				return err
			}
			if !r.IsUndefinedOffset(child) {
				if size <= h.MaxDirectSize {
					h.blocks = append(h.blocks, directBlock{heapOffset: off, size: size, pos: r.Config().Base + int64(child)})
				} else {
					childRows := log2(size) - log2(h.StartBlockSize*uint64(h.TableWidth)) + 1
					if err := h.indexIndirect(r, child, off, childRows, depth+1); err != nil {
						return err
					}
				}
			}
			off += size
		}
	}
	return nil
}

// Locate returns the position of a managed object.
func (h *FractalHeap) Locate(id []byte) (Location, error) {
	if len(id) < 1+h.offSize+h.lenSize {
		return Location{}, fmt.Errorf("fractal heap ID too short")
	}
	if id[0]>>6 != 0 {
		return Location{}, fmt.Errorf("unsupported fractal heap ID version %d", id[0]>>6)
	}
	if kind := (id[0] >> 4) & 0x03; kind != idManaged {
		return Location{}, fmt.Errorf("fractal heap object of type %d is not managed", kind)
	}
	cfg := binary.DefaultConfig()
	off := cfg.Uint(id[1:], h.offSize)
	n := cfg.Uint(id[1+h.offSize:], h.lenSize)

	i := sort.Search(len(h.blocks), func(i int) bool { return h.blocks[i].heapOffset+h.blocks[i].size > off })
	if i == len(h.blocks) || h.blocks[i].heapOffset > off {
		return Location{}, fmt.Errorf("fractal heap offset %d not in any direct block", off)
	}
	b := h.blocks[i]
	if off-b.heapOffset+n > b.size {
		return Location{}, fmt.Errorf("fractal heap object at %d overruns its block", off)
	}
	return Location{Pos: b.pos + int64(off-b.heapOffset), Length: int(n), block: b}, nil
}

// Read returns the object identified by id. Tiny objects are decoded from
// the ID itself.
func (h *FractalHeap) Read(r *binary.Reader, id []byte) ([]byte, error) {
	if len(id) > 0 && (id[0]>>4)&0x03 == idTiny {
		n := int(id[0]&0x0F) + 1
		if 1+n > len(id) {
			return nil, fmt.Errorf("tiny fractal heap object truncated")
		}
		return append([]byte(nil), id[1:1+n]...), nil
	}
	loc, err := h.Locate(id)
	if err != nil {
		return nil, err
	}
	return r.AtAbs(loc.Pos).ReadBytes(loc.Length)
}

// ReadWriterAt is a file opened for update.
type ReadWriterAt interface {
	io.ReaderAt
	io.WriterAt
}

// Patch overwrites part of a managed object and refreshes the direct block
// checksum when the heap keeps one.
func (h *FractalHeap) Patch(f ReadWriterAt, loc Location, off int, data []byte) error {
	if off < 0 || off+len(data) > loc.Length {
		return fmt.Errorf("fractal heap patch outside object")
	}
	if _, err := f.WriteAt(data, loc.Pos+int64(off)); err != nil {
		return err
	}
	if h.Flags&fractalChecksumDirect == 0 {
		return nil
	}

	block := make([]byte, loc.block.size)
	if _, err := f.ReadAt(block, loc.block.pos); err != nil {
		return err
	}
	// signature, version, heap address, block offset
	sumAt := 5 + h.addrSize + h.offSize
	copy(block[sumAt:sumAt+4], make([]byte, 4))
	var sum [4]byte
	binary.DefaultConfig().PutUint(sum[:], uint64(binary.Lookup3(block)), 4)
	_, err := f.WriteAt(sum[:], loc.block.pos+int64(sumAt))
	return err
}
