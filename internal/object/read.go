package object

import (
	"fmt"

	"github.com/robert-malhotra/nxsplit/internal/binary"
	"github.com/robert-malhotra/nxsplit/internal/message"
)

// maxContinuations bounds the number of chunks followed for one header.
const maxContinuations = 4096

// Read parses the object header at address, following continuation chunks.
func Read(r *binary.Reader, address uint64) (*Header, error) {
	hr := r.At(int64(address))
	peek, err := hr.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("reading object header at %d: %w", address, err)
	}

	h := &Header{Address: address}
	switch {
	case string(peek) == signatureHeader:
		err = h.readV2(hr)
	case peek[0] == 1:
		err = h.readV1(hr)
	default:
		return nil, fmt.Errorf("%w: unknown format at address %d", ErrInvalidHeader, address)
	}
	if err != nil {
		return nil, fmt.Errorf("object header at %d: %w", address, err)
	}
	return h, nil
}

/*
Version 1 prefix:
0   1  version
1   1  reserved
2   2  number of messages
4   4  reference count
8   4  header size
12  4  padding
Messages: type(2) size(2) flags(1) reserved(3) data, sizes are multiples of 8.
*/
func (h *Header) readV1(r *binary.Reader) error {
	h.Version = 1
	r.Skip(2)
	if _, err := r.ReadUint16(); err != nil {
		return err
	}
	var err error
	if h.RefCount, err = r.ReadUint32(); err != nil {
		return err
	}
	size, err := r.ReadUint32()
	if err != nil {
		return err
	}
	r.Skip(4)
	return h.follow(r, Chunk{Pos: r.Pos(), Size: int64(size)})
}

/*
Version 2 prefix:
"OHDR", version(1), flags(1), [times(16)], [attribute phase(4)],
chunk 0 size (1 << (flags&3) bytes), messages, checksum(4).
Messages: type(1) size(2) flags(1) [creation order(2)] data.
*/
func (h *Header) readV2(r *binary.Reader) error {
	start := r.Pos()
	r.Skip(4)
	version, err := r.ReadUint8()
	if err != nil {
		return err
	}
	if version != 2 {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	h.Version = 2
	if h.Flags, err = r.ReadUint8(); err != nil {
		return err
	}
	h.RefCount = 1
	if h.Flags&0x20 != 0 {
		r.Skip(16)
	}
	if h.Flags&0x10 != 0 {
		r.Skip(4)
	}
	size, err := r.ReadUintN(1 << (h.Flags & 0x03))
	if err != nil {
		return err
	}
	// the checksum covers the prefix too
	prefix := r.Pos() - start
	return h.follow(r.AtAbs(start), Chunk{Pos: start, Size: prefix + int64(size), Checksummed: true})
}

// follow reads the first chunk and every continuation it leads to.
func (h *Header) follow(r *binary.Reader, first Chunk) error {
	queue := []Chunk{first}
	for len(queue) > 0 {
		if len(h.Chunks) >= maxContinuations {
			return fmt.Errorf("%w: too many continuation chunks", ErrInvalidHeader)
		}
		c := queue[0]
		queue = queue[1:]
		h.Chunks = append(h.Chunks, c)

		conts, err := h.readChunk(r, len(h.Chunks)-1)
		if err != nil {
			return err
		}
		for _, cont := range conts {
			next := Chunk{Pos: r.Config().Base + int64(cont.Offset), Size: int64(cont.Length)}
			if h.Version == 2 {
				next.Size -= 4
				next.Checksummed = true
			}
			queue = append(queue, next)
		}
	}
	return nil
}

func (h *Header) readChunk(r *binary.Reader, idx int) ([]*message.Continuation, error) {
	c := h.Chunks[idx]
	raw, err := r.AtAbs(c.Pos).ReadBytes(int(c.Size))
	if err != nil {
		return nil, err
	}
	if c.Checksummed {
		sum, err := r.AtAbs(c.Pos + c.Size).ReadUint32()
		if err != nil {
			return nil, err
		}
		if !binary.VerifyLookup3(raw, sum) {
			return nil, ErrChecksumMismatch
		}
	}

	cfg := r.Config()
	var pos int
	switch {
	case h.Version == 1:
	case idx == 0:
		pos = 6
		if h.Flags&0x20 != 0 {
			pos += 16
		}
		if h.Flags&0x10 != 0 {
			pos += 4
		}
		pos += 1 << (h.Flags & 0x03)
	default:
		if string(raw[:4]) != signatureContinuation {
			return nil, fmt.Errorf("%w: bad continuation signature %q", ErrInvalidHeader, raw[:4])
		}
		pos = 4
	}

	var conts []*message.Continuation
	for {
		var (
			typ   message.Type
			size  int
			flags uint8
		)
		if h.Version == 1 {
			if pos+8 > len(raw) {
				break
			}
			typ = message.Type(cfg.Uint(raw[pos:], 2))
			size = int(cfg.Uint(raw[pos+2:], 2))
			flags = raw[pos+4]
			pos += 8
		} else {
			// a gap smaller than a message prefix ends the chunk
			if pos+4 > len(raw) {
				break
			}
			typ = message.Type(raw[pos])
			size = int(cfg.Uint(raw[pos+1:], 2))
			flags = raw[pos+3]
			pos += 4
			if h.Flags&0x04 != 0 {
				pos += 2
			}
		}
		if pos+size > len(raw) {
			return nil, fmt.Errorf("%w: message of type 0x%04x overruns chunk", ErrInvalidHeader, uint16(typ))
		}
		data := raw[pos : pos+size]
		e := Entry{Body: Body{Type: typ, Flags: flags, Data: data}, Pos: c.Pos + int64(pos), Chunk: idx}
		pos += size

		if typ == message.TypeNIL {
			continue
		}
		e.Msg, err = message.Parse(typ, data, flags, cfg)
		if err != nil {
			if typ != message.TypeAttribute {
				return nil, err
			}
			e.Msg = &message.Raw{MsgType: typ, Data: data}
		}
		if cont, ok := e.Msg.(*message.Continuation); ok {
			conts = append(conts, cont)
		}
		h.Entries = append(h.Entries, e)
	}
	return conts, nil
}
