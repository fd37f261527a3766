package filter

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/nxsplit/internal/message"
)

func sample() []byte {
	var b bytes.Buffer
	for i := 0; i < 500; i++ {
		b.Write([]byte{byte(i), 0, 0, 0, byte(i % 7), 1, 2})
	}
	return b.Bytes()
}

func TestFiltersRoundTrip(t *testing.T) {
	filters := []Filter{
		NewDeflate([]uint32{4}),
		NewShuffle(nil, 4),
		Fletcher32{},
		NewLZ4(nil),
		NewLZ4([]uint32{256}),
		NewZstd([]uint32{3}),
	}
	in := sample()
	for _, f := range filters {
		enc, err := f.Encode(in)
		require.NoError(t, err, "filter %d", f.ID())
		dec, err := f.Decode(enc)
		require.NoError(t, err, "filter %d", f.ID())
		assert.Equal(t, in, dec, "filter %d", f.ID())
	}
}

func TestShuffleLayout(t *testing.T) {
	s := NewShuffle([]uint32{2}, 8)
	enc, err := s.Encode([]byte{1, 2, 3, 4, 5, 6, 9})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 3, 5, 2, 4, 6, 9}, enc)
}

func TestLZ4RawBlock(t *testing.T) {
	// incompressible input is stored raw
	in := []byte{0x13, 0x57, 0x9b}
	enc, err := NewLZ4(nil).Encode(in)
	require.NoError(t, err)
	assert.Equal(t, in, enc[16:])
	dec, err := NewLZ4(nil).Decode(enc)
	require.NoError(t, err)
	assert.Equal(t, in, dec)
}

func TestFletcher32Mismatch(t *testing.T) {
	enc, err := Fletcher32{}.Encode([]byte{1, 2, 3, 4})
	require.NoError(t, err)
	enc[0] ^= 0xFF
	_, err = Fletcher32{}.Decode(enc)
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestPipelineOrderAndMask(t *testing.T) {
	fp := &message.FilterPipeline{Filters: []message.Filter{
		{ID: message.FilterShuffle},
		{ID: message.FilterDeflate, ClientData: []uint32{6}},
	}}
	p, err := NewPipeline(fp, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Len())

	in := sample()
	enc, err := p.Encode(in)
	require.NoError(t, err)
	dec, err := p.Decode(enc, 0)
	require.NoError(t, err)
	assert.Equal(t, in, dec)

	// deflate skipped for this chunk
	shuffled, err := NewShuffle(nil, 4).Encode(in)
	require.NoError(t, err)
	dec, err = p.Decode(shuffled, 0b10)
	require.NoError(t, err)
	assert.Equal(t, in, dec)
}

func TestUnsupportedFilter(t *testing.T) {
	_, err := New(message.Filter{ID: message.FilterSZIP}, 4)
	assert.ErrorIs(t, err, ErrUnsupported)

	f, err := New(message.Filter{ID: 30000, Flags: message.FilterOptional}, 4)
	require.NoError(t, err)
	assert.Nil(t, f)

	assert.False(t, Supported(&message.FilterPipeline{Filters: []message.Filter{{ID: message.FilterSZIP}}}))
	assert.True(t, Supported(nil))
}
