package object

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/nxsplit/internal/binary"
	"github.com/robert-malhotra/nxsplit/internal/message"
)

var cfg = binary.DefaultConfig()

func datasetBodies() []Body {
	return []Body{
		BodyOf(message.NewDataspace([]uint64{4, 2}, nil), cfg),
		BodyOf(message.NewFixedPointDatatype(4, true, message.LittleEndian), cfg),
		BodyOf(message.NewContiguousLayout(0x100, 32), cfg),
		BodyOf(message.NewHardLink("alias", 0x40), cfg),
	}
}

// place puts an encoded header at addr inside a zeroed image.
func place(buf []byte, addr int, size int) []byte {
	img := make([]byte, size)
	copy(img[addr:], buf)
	return img
}

func TestEncodeReadRoundTrip(t *testing.T) {
	for _, version := range []uint8{1, 2} {
		img := place(Encode(version, datasetBodies(), cfg), 64, 1024)
		h, err := Read(binary.NewReader(bytes.NewReader(img), cfg), 64)
		require.NoError(t, err, "version %d", version)

		assert.Equal(t, version, h.Version)
		assert.True(t, h.IsDataset())
		assert.Equal(t, []uint64{4, 2}, h.Dataspace().Dimensions)
		assert.Equal(t, "int32", h.Datatype().String())
		assert.Equal(t, uint64(0x100), h.DataLayout().Address)

		links, idx := h.Links()
		require.Len(t, links, 1)
		assert.Equal(t, 3, idx[0])
		assert.Len(t, h.Bodies(message.TypeLink), 3)
	}
}

func TestChecksumVerified(t *testing.T) {
	buf := Encode(2, datasetBodies(), cfg)
	buf[10] ^= 0x01
	img := place(buf, 0, 512)
	_, err := Read(binary.NewReader(bytes.NewReader(img), cfg), 0)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestV1Continuation(t *testing.T) {
	// first chunk: dataspace + continuation to 512
	ds := BodyOf(message.NewDataspace([]uint64{9}, nil), cfg)
	dt := BodyOf(message.NewFixedPointDatatype(2, false, message.LittleEndian), cfg)

	second := encodeV1([]Body{dt}, cfg)[16:]
	cont := BodyOf(&message.Continuation{Offset: 512, Length: uint64(len(second))}, cfg)
	first := encodeV1([]Body{ds, cont}, cfg)

	img := make([]byte, 1024)
	copy(img, first)
	copy(img[512:], second)

	h, err := Read(binary.NewReader(bytes.NewReader(img), cfg), 0)
	require.NoError(t, err)
	require.Len(t, h.Chunks, 2)
	assert.Equal(t, []uint64{9}, h.Dataspace().Dimensions)
	assert.Equal(t, "uint16", h.Datatype().String())
	assert.Equal(t, 1, h.Entries[2].Chunk)
}

func TestPatchRefreshesChecksum(t *testing.T) {
	for _, version := range []uint8{1, 2} {
		path := filepath.Join(t.TempDir(), "h.bin")
		require.NoError(t, os.WriteFile(path, place(Encode(version, datasetBodies(), cfg), 128, 1024), 0o644))
		f, err := os.OpenFile(path, os.O_RDWR, 0)
		require.NoError(t, err)
		defer f.Close()

		h, err := Read(binary.NewReader(f, cfg), 128)
		require.NoError(t, err)
		links, idx := h.Links()

		addr := make([]byte, cfg.OffsetSize)
		cfg.PutUint(addr, 0x9000, cfg.OffsetSize)
		require.NoError(t, h.Patch(f, idx[0], links[0].AddressOffset, addr))

		again, err := Read(binary.NewReader(f, cfg), 128)
		require.NoError(t, err, "version %d", version)
		relinked, _ := again.Links()
		assert.Equal(t, uint64(0x9000), relinked[0].Address)
	}
}

func TestPatchOutOfRange(t *testing.T) {
	h := &Header{Entries: []Entry{{Body: Body{Data: make([]byte, 4)}}}}
	assert.Error(t, h.Patch(nil, 0, 2, make([]byte, 4)))
	assert.Error(t, h.Patch(nil, 3, 0, nil))
}
