package object

import (
	"fmt"
	"io"

	"github.com/robert-malhotra/nxsplit/internal/binary"
)

// ReadWriterAt is a file opened for update.
type ReadWriterAt interface {
	io.ReaderAt
	io.WriterAt
}

// Patch overwrites data at offset off within the body of entry i, both in
// the file and in memory. The checksum of the enclosing chunk is refreshed.
func (h *Header) Patch(f ReadWriterAt, i, off int, data []byte) error {
	if i < 0 || i >= len(h.Entries) {
		return fmt.Errorf("patch: no message %d", i)
	}
	e := &h.Entries[i]
	if off < 0 || off+len(data) > len(e.Data) {
		return fmt.Errorf("patch: range %d+%d outside message of %d bytes", off, len(data), len(e.Data))
	}
	if _, err := f.WriteAt(data, e.Pos+int64(off)); err != nil {
		return err
	}
	copy(e.Data[off:], data)

	c := h.Chunks[e.Chunk]
	if !c.Checksummed {
		return nil
	}
	raw := make([]byte, c.Size)
	if _, err := f.ReadAt(raw, c.Pos); err != nil {
		return err
	}
	var sum [4]byte
	binary.DefaultConfig().PutUint(sum[:], uint64(binary.Lookup3(raw)), 4)
	_, err := f.WriteAt(sum[:], c.Pos+c.Size)
	return err
}
