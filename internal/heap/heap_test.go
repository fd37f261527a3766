package heap

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/nxsplit/internal/binary"
)

var cfg = binary.DefaultConfig()

func TestLocalHeap(t *testing.T) {
	b := binary.NewBuffer(cfg)
	b.PutString("HEAP")
	b.PutUint8(0)
	b.PutZeros(3)
	b.PutLength(24)
	b.PutLength(binary.DefaultConfig().Undefined())
	b.PutOffset(64)
	img := make([]byte, 128)
	copy(img, b.Bytes())
	copy(img[64:], "\x00\x00\x00\x00\x00\x00\x00\x00entry\x00\x00\x00data\x00")

	h, err := ReadLocalHeap(binary.NewReader(bytes.NewReader(img), cfg), 0)
	require.NoError(t, err)
	name, err := h.String(8)
	require.NoError(t, err)
	assert.Equal(t, "entry", name)
	name, err = h.String(16)
	require.NoError(t, err)
	assert.Equal(t, "data", name)

	_, err = h.String(100)
	assert.Error(t, err)
}

func TestGlobalCollectionRoundTrip(t *testing.T) {
	objects := [][]byte{[]byte("first"), bytes.Repeat([]byte{7}, 21)}
	coll := EncodeCollection(objects, cfg)
	assert.Len(t, coll, MinCollectionSize)

	img := make([]byte, 8, 8+len(coll))
	img = append(img, coll...)
	r := binary.NewReader(bytes.NewReader(img), cfg)

	h, err := ReadGlobalHeap(r, 8)
	require.NoError(t, err)
	assert.Equal(t, uint64(MinCollectionSize), h.Size)

	got, err := h.Object(1)
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))

	got, err = ReadGlobalObject(r, GlobalHeapID{Collection: 8, Index: 2})
	require.NoError(t, err)
	assert.Equal(t, objects[1], got)

	_, err = h.Object(3)
	assert.Error(t, err)
}

func TestLargeCollection(t *testing.T) {
	big := bytes.Repeat([]byte{1}, 5000)
	coll := EncodeCollection([][]byte{big}, cfg)
	assert.Greater(t, len(coll), MinCollectionSize)
	assert.Zero(t, len(coll)%8)

	img := append(make([]byte, 8), coll...)
	h, err := ReadGlobalHeap(binary.NewReader(bytes.NewReader(img), cfg), 8)
	require.NoError(t, err)
	got, err := h.Object(1)
	require.NoError(t, err)
	assert.Equal(t, big, got)

	_, err = ReadGlobalHeap(binary.NewReader(bytes.NewReader(img), cfg), 0)
	assert.ErrorContains(t, err, "invalid global heap address")
}

func TestParseGlobalHeapID(t *testing.T) {
	b := binary.NewBuffer(cfg)
	b.PutOffset(0x1234)
	b.PutUint32(3)
	id, err := ParseGlobalHeapID(b.Bytes(), cfg)
	require.NoError(t, err)
	assert.Equal(t, GlobalHeapID{Collection: 0x1234, Index: 3}, id)

	_, err = ParseGlobalHeapID([]byte{1, 2}, cfg)
	assert.Error(t, err)
}

// fractalImage builds a heap whose root is a single checksummed direct block
// of 512 bytes at 256 holding payload at heap offset 40.
func fractalImage(payload []byte) []byte {
	const blockAt, blockSize = 256, 512
	b := binary.NewBuffer(cfg)
	b.PutString("FRHP")
	b.PutUint8(0)
	b.PutUint16(7)
	b.PutUint16(0)
	b.PutUint8(0x02)
	b.PutUint32(4096)
	// huge object and free space bookkeeping
	b.PutZeros(12 * 8)
	b.PutUint16(4)
	b.PutLength(blockSize)
	b.PutLength(65536)
	b.PutUint16(32)
	b.PutUint16(1)
	b.PutOffset(blockAt)
	b.PutUint16(0)
	b.AppendChecksum()

	img := make([]byte, blockAt+blockSize)
	copy(img, b.Bytes())

	d := binary.NewBuffer(cfg)
	d.PutString("FHDB")
	d.PutUint8(0)
	d.PutOffset(0)
	d.PutUintN(0, 4)
	d.PutUint32(0)
	block := make([]byte, blockSize)
	copy(block, d.Bytes())
	copy(block[40:], payload)
	sum := binary.Lookup3(block)
	cfg.PutUint(block[d.Len()-4:], uint64(sum), 4)
	copy(img[blockAt:], block)
	return img
}

func managedID(off, n uint64) []byte {
	// offset 4 bytes (32 bit heap), length 2 bytes (64 KiB direct blocks)
	id := make([]byte, 7)
	cfg.PutUint(id[1:], off, 4)
	cfg.PutUint(id[5:], n, 2)
	return id
}

func TestFractalHeapReadAndPatch(t *testing.T) {
	payload := []byte("link message body")
	path := filepath.Join(t.TempDir(), "heap.bin")
	require.NoError(t, os.WriteFile(path, fractalImage(payload), 0o644))
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)
	defer f.Close()

	r := binary.NewReader(f, cfg)
	h, err := ReadFractalHeap(r, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, h.offSize)
	assert.Equal(t, 2, h.lenSize)

	id := managedID(40, uint64(len(payload)))
	got, err := h.Read(r, id)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	loc, err := h.Locate(id)
	require.NoError(t, err)
	require.NoError(t, h.Patch(f, loc, 0, []byte("LINK")))

	got, err = h.Read(r, id)
	require.NoError(t, err)
	assert.Equal(t, "LINK message body", string(got))

	block := make([]byte, 512)
	_, err = f.ReadAt(block, 256)
	require.NoError(t, err)
	sumAt := 5 + 8 + 4
	stored := cfg.Uint(block[sumAt:], 4)
	copy(block[sumAt:], make([]byte, 4))
	assert.Equal(t, uint64(binary.Lookup3(block)), stored)

	_, err = h.Locate(managedID(600, 4))
	assert.Error(t, err)
}

func TestFractalHeapTinyObject(t *testing.T) {
	h := &FractalHeap{}
	got, err := h.Read(nil, []byte{0x20 | 2, 'a', 'b', 'c', 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestEncodeLocalHeap(t *testing.T) {
	pre := make([]byte, 24)
	enc, offsets := EncodeLocalHeap([]string{"entry", "a_longer_name"}, uint64(len(pre)), cfg)
	assert.Equal(t, []uint64{8, 16}, offsets)

	img := append(pre, enc...)
	h, err := ReadLocalHeap(binary.NewBytesReader(img, cfg), uint64(len(pre)))
	require.NoError(t, err)
	assert.Equal(t, uint64(32), h.DataSize)
	s, err := h.String(16)
	require.NoError(t, err)
	assert.Equal(t, "a_longer_name", s)
	s, err = h.String(0)
	require.NoError(t, err)
	assert.Empty(t, s)
}
