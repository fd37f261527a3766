package btree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/nxsplit/internal/binary"
	"github.com/robert-malhotra/nxsplit/internal/heap"
)

var cfg = binary.DefaultConfig()

type image struct{ buf []byte }

func (im *image) put(b []byte) uint64 {
	addr := uint64(len(im.buf))
	im.buf = append(im.buf, b...)
	return addr
}

func (im *image) reader() *binary.Reader { return binary.NewBytesReader(im.buf, cfg) }

func TestChunkLeafRoundTrip(t *testing.T) {
	im := &image{}
	im.put(make([]byte, 8))
	entries := []ChunkEntry{
		{Offset: []uint64{0, 0}, Size: 64, Address: 1000},
		{Offset: []uint64{4, 0}, Size: 60, FilterMask: 1, Address: 2000},
	}
	leaf, err := EncodeChunkLeaf(entries, []uint64{4, 8, 2}, 32, cfg)
	require.NoError(t, err)
	addr := im.put(leaf)

	idx, err := ReadChunkIndexV1(im.reader(), addr, 2)
	require.NoError(t, err)
	assert.Equal(t, entries, idx.Entries)

	shape := []uint64{4, 8}
	assert.Equal(t, uint64(2000), idx.FindChunk([]uint64{5, 7}, shape).Address)
	assert.Equal(t, uint64(1000), idx.FindChunk([]uint64{3, 0}, shape).Address)
	assert.Nil(t, idx.FindChunk([]uint64{8, 0}, shape))
}

func TestEncodeChunkLeafLimits(t *testing.T) {
	_, err := EncodeChunkLeaf(nil, []uint64{4, 1}, 32, cfg)
	assert.Error(t, err)

	many := make([]ChunkEntry, 5)
	for i := range many {
		many[i] = ChunkEntry{Offset: []uint64{uint64(i)}, Size: 1, Address: uint64(i)}
	}
	_, err = EncodeChunkLeaf(many, []uint64{1, 1}, 2, cfg)
	assert.Error(t, err)
}

func TestChunkIndexV1Undefined(t *testing.T) {
	idx, err := ReadChunkIndexV1((&image{}).reader(), cfg.Undefined(), 1)
	require.NoError(t, err)
	assert.Empty(t, idx.Entries)
}

func TestChunkIndexV1TwoLevels(t *testing.T) {
	im := &image{}
	im.put(make([]byte, 8))
	dims := []uint64{2, 1}
	left, err := EncodeChunkLeaf([]ChunkEntry{
		{Offset: []uint64{0}, Size: 2, Address: 100},
		{Offset: []uint64{2}, Size: 2, Address: 200},
	}, dims, 2, cfg)
	require.NoError(t, err)
	right, err := EncodeChunkLeaf([]ChunkEntry{
		{Offset: []uint64{4}, Size: 2, Address: 300},
	}, dims, 2, cfg)
	require.NoError(t, err)
	l := im.put(left)
	r := im.put(right)

	b := binary.NewBuffer(cfg)
	b.PutString(signatureV1)
	b.PutUint8(nodeRawChunk)
	b.PutUint8(1)
	b.PutUint16(2)
	b.PutUndefined()
	b.PutUndefined()
	key := func(off uint64) {
		b.PutUint32(2)
		b.PutUint32(0)
		b.PutUint64(off)
		b.PutUint64(0)
	}
	key(0)
	b.PutOffset(l)
	key(4)
	b.PutOffset(r)
	key(6)
	root := im.put(b.Bytes())

	idx, err := ReadChunkIndexV1(im.reader(), root, 1)
	require.NoError(t, err)
	require.Len(t, idx.Entries, 3)
	for i, want := range []uint64{100, 200, 300} {
		assert.Equal(t, want, idx.Entries[i].Address)
	}
}

func TestReadNodeV1WrongType(t *testing.T) {
	im := &image{}
	leaf, err := EncodeChunkLeaf([]ChunkEntry{{Offset: []uint64{0}, Address: 1}}, []uint64{1, 1}, 2, cfg)
	require.NoError(t, err)
	addr := im.put(leaf)
	_, err = ReadSymbolTable(im.reader(), addr, nil)
	assert.ErrorContains(t, err, "type 1")
}

// buildSymbolTable writes a local heap, one symbol table node and a group
// B-tree for the given names. The last entry is a cached soft link.
func buildSymbolTable(im *image, names []string, soft string) (btreeAddr, heapAddr uint64) {
	data := make([]byte, 8)
	intern := func(n string) uint64 {
		off := uint64(len(data))
		data = append(data, n...)
		data = append(data, 0)
		for len(data)%8 != 0 {
			data = append(data, 0)
		}
		return off
	}
	offsets := make([]uint64, len(names))
	for i, n := range names {
		offsets[i] = intern(n)
	}
	softOff := intern(soft)

	dataAddr := im.put(data)
	h := binary.NewBuffer(cfg)
	h.PutString("HEAP")
	h.PutUint8(0)
	h.PutZeros(3)
	h.PutLength(uint64(len(data)))
	h.PutUndefined()
	h.PutOffset(dataAddr)
	heapAddr = im.put(h.Bytes())

	s := binary.NewBuffer(cfg)
	s.PutString(signatureSymbolNode)
	s.PutUint8(1)
	s.PutUint8(0)
	s.PutUint16(uint16(len(names)))
	for i := range names {
		s.PutOffset(offsets[i])
		s.PutOffset(uint64(5000 + i))
		if i == len(names)-1 {
			s.PutUint32(CacheSoftLink)
			s.PutZeros(4)
			s.PutUint32(uint32(softOff))
			s.PutZeros(12)
		} else {
			s.PutUint32(CacheHeader)
			s.PutZeros(4 + 16)
		}
	}
	snod := im.put(s.Bytes())

	b := binary.NewBuffer(cfg)
	b.PutString(signatureV1)
	b.PutUint8(nodeGroup)
	b.PutUint8(0)
	b.PutUint16(1)
	b.PutUndefined()
	b.PutUndefined()
	b.PutLength(0)
	b.PutOffset(snod)
	b.PutLength(offsets[len(offsets)-1])
	btreeAddr = im.put(b.Bytes())
	return btreeAddr, heapAddr
}

func TestReadSymbolTable(t *testing.T) {
	im := &image{}
	im.put(make([]byte, 16))
	bt, hp := buildSymbolTable(im, []string{"data_000001", "data_000002", "latest"}, "/entry/data/data_000002")

	names, err := heap.ReadLocalHeap(im.reader(), hp)
	require.NoError(t, err)
	entries, err := ReadSymbolTable(im.reader(), bt, names)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "data_000001", entries[0].Name)
	assert.Equal(t, uint64(5000), entries[0].ObjectAddress)
	assert.Equal(t, uint32(CacheHeader), entries[0].CacheType)
	assert.Equal(t, "latest", entries[2].Name)
	assert.Equal(t, "/entry/data/data_000002", entries[2].SoftLink)

	// the object address can be patched in place
	pos := entries[1].ObjectAddressPos(cfg)
	assert.Equal(t, uint64(5001), cfg.Offset(im.buf[pos:]))
	assert.Equal(t, 40, SymbolEntrySize(cfg))
}

func TestReadSymbolEntry(t *testing.T) {
	b := binary.NewBuffer(cfg)
	b.PutOffset(0)
	b.PutOffset(96)
	b.PutUint32(CacheHeader)
	b.PutZeros(4)
	b.PutOffset(136)
	b.PutOffset(680)
	e, err := ReadSymbolEntry(binary.NewBytesReader(b.Bytes(), cfg))
	require.NoError(t, err)
	assert.Equal(t, uint64(96), e.ObjectAddress)
	assert.Equal(t, uint64(136), cfg.Offset(e.Scratch))
	assert.Equal(t, uint64(680), cfg.Offset(e.Scratch[8:]))
}

func v2Header(typ uint8, nodeSize uint32, recSize, depth uint16, root uint64, rootN uint16, total uint64) []byte {
	b := binary.NewBuffer(cfg)
	b.PutString(signatureV2Header)
	b.PutUint8(0)
	b.PutUint8(typ)
	b.PutUint32(nodeSize)
	b.PutUint16(recSize)
	b.PutUint16(depth)
	b.PutUint8(100)
	b.PutUint8(40)
	b.PutOffset(root)
	b.PutUint16(rootN)
	b.PutLength(total)
	b.AppendChecksum()
	return b.Bytes()
}

func v2Leaf(typ uint8, recs ...[]byte) []byte {
	b := binary.NewBuffer(cfg)
	b.PutString(signatureV2Leaf)
	b.PutUint8(0)
	b.PutUint8(typ)
	for _, r := range recs {
		b.PutBytes(r)
	}
	b.AppendChecksum()
	return b.Bytes()
}

func chunkRecord(addr uint64, scaled ...uint64) []byte {
	b := binary.NewBuffer(cfg)
	b.PutOffset(addr)
	for _, s := range scaled {
		b.PutUint64(s)
	}
	return b.Bytes()
}

func TestReadChunkIndexV2Leaf(t *testing.T) {
	im := &image{}
	im.put(make([]byte, 8))
	leaf := im.put(v2Leaf(TypeChunkNoFilter,
		chunkRecord(700, 0, 0),
		chunkRecord(800, 1, 0),
		chunkRecord(cfg.Undefined(), 2, 0),
	))
	hdr := im.put(v2Header(TypeChunkNoFilter, 512, 24, 0, leaf, 3, 3))

	idx, err := ReadChunkIndexV2(im.reader(), hdr, []uint64{10, 4})
	require.NoError(t, err)
	require.Len(t, idx.Entries, 2)
	assert.Equal(t, []uint64{10, 0}, idx.Entries[1].Offset)
	assert.Equal(t, uint64(800), idx.Entries[1].Address)
}

func TestReadChunkIndexV2Filtered(t *testing.T) {
	im := &image{}
	rec := binary.NewBuffer(cfg)
	rec.PutOffset(900)
	rec.PutUintN(123, 2)
	rec.PutUint32(0x2)
	rec.PutUint64(3)
	leaf := im.put(v2Leaf(TypeChunkWithFilter, rec.Bytes()))
	hdr := im.put(v2Header(TypeChunkWithFilter, 512, uint16(rec.Len()), 0, leaf, 1, 1))

	idx, err := ReadChunkIndexV2(im.reader(), hdr, []uint64{5})
	require.NoError(t, err)
	require.Len(t, idx.Entries, 1)
	assert.Equal(t, ChunkEntry{Offset: []uint64{15}, Size: 123, FilterMask: 2, Address: 900}, idx.Entries[0])
}

func TestV2InternalNode(t *testing.T) {
	im := &image{}
	im.put(make([]byte, 8))
	l0 := im.put(v2Leaf(TypeChunkNoFilter, chunkRecord(10, 0), chunkRecord(20, 1)))
	l1 := im.put(v2Leaf(TypeChunkNoFilter, chunkRecord(40, 3)))

	// 16 byte records in 512 byte nodes: one byte record counts
	b := binary.NewBuffer(cfg)
	b.PutString(signatureV2Internal)
	b.PutUint8(0)
	b.PutUint8(TypeChunkNoFilter)
	b.PutBytes(chunkRecord(30, 2))
	b.PutOffset(l0)
	b.PutUint8(2)
	b.PutOffset(l1)
	b.PutUint8(1)
	b.AppendChecksum()
	root := im.put(b.Bytes())
	hdr := im.put(v2Header(TypeChunkNoFilter, 512, 16, 1, root, 1, 4))

	idx, err := ReadChunkIndexV2(im.reader(), hdr, []uint64{1})
	require.NoError(t, err)
	var addrs []uint64
	for _, e := range idx.Entries {
		addrs = append(addrs, e.Address)
	}
	assert.Equal(t, []uint64{10, 20, 30, 40}, addrs)
}

func TestReadLinkNames(t *testing.T) {
	im := &image{}
	rec := func(hash uint32, id byte) []byte {
		b := binary.NewBuffer(cfg)
		b.PutUint32(hash)
		b.PutBytes([]byte{0, id, 0, 0, 0, 0, 8})
		return b.Bytes()
	}
	leaf := im.put(v2Leaf(TypeLinkName, rec(0x10, 1), rec(0x20, 2)))
	hdr := im.put(v2Header(TypeLinkName, 512, 11, 0, leaf, 2, 2))

	names, err := ReadLinkNames(im.reader(), hdr)
	require.NoError(t, err)
	require.Len(t, names, 2)
	assert.Equal(t, uint32(0x20), names[1].Hash)
	assert.Equal(t, []byte{0, 2, 0, 0, 0, 0, 8}, names[1].HeapID)

	_, err = ReadChunkIndexV2(im.reader(), hdr, []uint64{1})
	assert.ErrorContains(t, err, "not a chunk index")
}

func TestV2HeaderChecksum(t *testing.T) {
	im := &image{}
	h := v2Header(TypeLinkName, 512, 11, 0, cfg.Undefined(), 0, 0)
	h[8] ^= 1
	addr := im.put(h)
	_, err := ReadV2Header(im.reader(), addr)
	assert.ErrorContains(t, err, "checksum")
}

func TestEncodeSymbolTable(t *testing.T) {
	im := &image{}
	im.put(make([]byte, 8))
	names := []string{"alpha", "beta", "gamma"}
	heapAddr := uint64(len(im.buf))
	enc, offsets := heap.EncodeLocalHeap(append(names, "/alpha"), heapAddr, cfg)
	im.put(enc)

	var nodes []uint64
	for _, part := range [][]int{{0, 1}, {2}} {
		var entries []SymbolEntry
		for _, i := range part {
			entries = append(entries, SymbolEntry{NameOffset: offsets[i], ObjectAddress: uint64(100 * (i + 1))})
		}
		if part[0] == 2 {
			scratch := make([]byte, 16)
			cfg.PutUint(scratch, offsets[3], 4)
			entries[0].CacheType = CacheSoftLink
			entries[0].Scratch = scratch
		}
		node, err := EncodeSymbolNode(entries, 4, cfg)
		require.NoError(t, err)
		assert.Len(t, node, 8+8*SymbolEntrySize(cfg))
		nodes = append(nodes, im.put(node))
	}
	tree, err := EncodeGroupNode(nodes, []uint64{0, offsets[1], offsets[2]}, 16, cfg)
	require.NoError(t, err)
	root := im.put(tree)

	lh, err := heap.ReadLocalHeap(im.reader(), heapAddr)
	require.NoError(t, err)
	entries, err := ReadSymbolTable(im.reader(), root, lh)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "beta", entries[1].Name)
	assert.Equal(t, uint64(200), entries[1].ObjectAddress)
	assert.Equal(t, "/alpha", entries[2].SoftLink)

	_, err = EncodeSymbolNode(make([]SymbolEntry, 9), 4, cfg)
	assert.Error(t, err)
	_, err = EncodeGroupNode(nodes, []uint64{0}, 16, cfg)
	assert.Error(t, err)
}
