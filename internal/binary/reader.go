package binary

import (
	"bytes"
	"encoding/binary"
	"io"
)

// Reader is a cursor over an io.ReaderAt. Readers are cheap to copy with At;
// each copy has an independent position.
type Reader struct {
	r   io.ReaderAt
	cfg Config
	pos int64 // absolute
}

// NewReader creates a reader positioned at absolute offset 0.
func NewReader(r io.ReaderAt, cfg Config) *Reader {
	return &Reader{r: r, cfg: cfg}
}

// NewBytesReader creates a reader over an in-memory slice, typically the body
// of a header message. Base is ignored.
func NewBytesReader(data []byte, cfg Config) *Reader {
	cfg.Base = 0
	return &Reader{r: bytes.NewReader(data), cfg: cfg}
}

// At returns a reader positioned at file address addr (relative to Config.Base).
func (r *Reader) At(addr int64) *Reader {
	return &Reader{r: r.r, cfg: r.cfg, pos: r.cfg.Base + addr}
}

// AtAbs returns a reader positioned at an absolute offset.
func (r *Reader) AtAbs(pos int64) *Reader {
	return &Reader{r: r.r, cfg: r.cfg, pos: pos}
}

// WithConfig returns a reader at the same position using cfg.
func (r *Reader) WithConfig(cfg Config) *Reader {
	return &Reader{r: r.r, cfg: cfg, pos: r.pos}
}

// Source returns the underlying io.ReaderAt.
func (r *Reader) Source() io.ReaderAt { return r.r }

// Config returns the reader configuration.
func (r *Reader) Config() Config { return r.cfg }

// Pos returns the absolute position.
func (r *Reader) Pos() int64 { return r.pos }

// Addr returns the position as a file address.
func (r *Reader) Addr() uint64 { return uint64(r.pos - r.cfg.Base) }

// Skip advances the position by n bytes.
func (r *Reader) Skip(n int64) { r.pos += n }

// Align advances the position to the next multiple of alignment relative to base.
func (r *Reader) Align(base, alignment int64) {
	if alignment <= 1 {
		return
	}
	if rem := (r.pos - base) % alignment; rem != 0 {
		r.pos += alignment - rem
	}
}

// Peek reads n bytes without advancing.
func (r *Reader) Peek(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := r.r.ReadAt(buf, r.pos); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadBytes reads exactly n bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	buf, err := r.Peek(n)
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	r.pos += int64(n)
	return buf, nil
}

func (r *Reader) ReadUint8() (uint8, error) {
	v, err := r.ReadUintN(1)
	return uint8(v), err
}

func (r *Reader) ReadUint16() (uint16, error) {
	v, err := r.ReadUintN(2)
	return uint16(v), err
}

func (r *Reader) ReadUint32() (uint32, error) {
	v, err := r.ReadUintN(4)
	return uint32(v), err
}

func (r *Reader) ReadUint64() (uint64, error) {
	return r.ReadUintN(8)
}

// ReadUintN reads an n-byte unsigned integer.
func (r *Reader) ReadUintN(n int) (uint64, error) {
	buf, err := r.ReadBytes(n)
	if err != nil {
		return 0, err
	}
	return r.cfg.Uint(buf, n), nil
}

// ReadOffset reads a file address.
func (r *Reader) ReadOffset() (uint64, error) { return r.ReadUintN(r.cfg.OffsetSize) }

// ReadLength reads a length field.
func (r *Reader) ReadLength() (uint64, error) { return r.ReadUintN(r.cfg.LengthSize) }

// ReadCString reads a NUL-terminated string, consuming the terminator.
func (r *Reader) ReadCString(max int) (string, error) {
	var out []byte
	for len(out) < max {
		b, err := r.ReadUint8()
		if err != nil {
			return "", err
		}
		if b == 0 {
			return string(out), nil
		}
		out = append(out, b)
	}
	return string(out), nil
}

// ExpectSignature reads len(sig) bytes and reports whether they match.
func (r *Reader) ExpectSignature(sig string) (bool, error) {
	buf, err := r.ReadBytes(len(sig))
	if err != nil {
		return false, err
	}
	return string(buf) == sig, nil
}

func (r *Reader) IsUndefinedOffset(v uint64) bool { return r.cfg.IsUndefined(v) }

func (r *Reader) OffsetSize() int { return r.cfg.OffsetSize }

func (r *Reader) LengthSize() int { return r.cfg.LengthSize }

func (r *Reader) ByteOrder() binary.ByteOrder { return r.cfg.ByteOrder }
