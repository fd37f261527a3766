package binary

// Buffer is an append-only encoder. Structures are built in memory, checksummed
// if needed, and written to the file with a single WriteAt.
type Buffer struct {
	cfg Config
	buf []byte
}

// NewBuffer creates an empty buffer.
func NewBuffer(cfg Config) *Buffer {
	return &Buffer{cfg: cfg}
}

// Config returns the buffer configuration.
func (b *Buffer) Config() Config { return b.cfg }

// Len returns the number of bytes written.
func (b *Buffer) Len() int { return len(b.buf) }

// Bytes returns the encoded bytes.
func (b *Buffer) Bytes() []byte { return b.buf }

// Reset empties the buffer.
func (b *Buffer) Reset() { b.buf = b.buf[:0] }

func (b *Buffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *Buffer) PutBytes(p []byte) { b.buf = append(b.buf, p...) }

func (b *Buffer) PutString(s string) { b.buf = append(b.buf, s...) }

// PutCString appends s and a NUL terminator.
func (b *Buffer) PutCString(s string) {
	b.buf = append(b.buf, s...)
	b.buf = append(b.buf, 0)
}

func (b *Buffer) PutUint8(v uint8) { b.buf = append(b.buf, v) }

func (b *Buffer) PutUint16(v uint16) { b.PutUintN(uint64(v), 2) }

func (b *Buffer) PutUint32(v uint32) { b.PutUintN(uint64(v), 4) }

func (b *Buffer) PutUint64(v uint64) { b.PutUintN(v, 8) }

// PutUintN appends an n-byte unsigned integer.
func (b *Buffer) PutUintN(v uint64, n int) {
	var tmp [8]byte
	b.cfg.PutUint(tmp[:n], v, n)
	b.buf = append(b.buf, tmp[:n]...)
}

// PutOffset appends a file address.
func (b *Buffer) PutOffset(v uint64) { b.PutUintN(v, b.cfg.OffsetSize) }

// PutUndefined appends the undefined address.
func (b *Buffer) PutUndefined() { b.PutOffset(b.cfg.Undefined()) }

// PutLength appends a length field.
func (b *Buffer) PutLength(v uint64) { b.PutUintN(v, b.cfg.LengthSize) }

// PutZeros appends n zero bytes.
func (b *Buffer) PutZeros(n int) {
	for i := 0; i < n; i++ {
		b.buf = append(b.buf, 0)
	}
}

// Pad appends zeros until Len is a multiple of alignment.
func (b *Buffer) Pad(alignment int) {
	if alignment <= 1 {
		return
	}
	if rem := len(b.buf) % alignment; rem != 0 {
		b.PutZeros(alignment - rem)
	}
}

// SetUint32 overwrites four bytes at pos.
func (b *Buffer) SetUint32(pos int, v uint32) {
	b.cfg.PutUint(b.buf[pos:pos+4], uint64(v), 4)
}

// SetUintN overwrites n bytes at pos.
func (b *Buffer) SetUintN(pos int, v uint64, n int) {
	b.cfg.PutUint(b.buf[pos:pos+n], v, n)
}

// AppendChecksum appends the lookup3 checksum of everything written so far.
func (b *Buffer) AppendChecksum() {
	b.PutUint32(Lookup3(b.buf))
}
