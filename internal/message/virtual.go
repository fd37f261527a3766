package message

import (
	"fmt"

	"github.com/robert-malhotra/nxsplit/internal/binary"
)

// SameFile is the source file name of a mapping into the file holding the
// virtual dataset.
const SameFile = "."

// VirtualMapping maps a selection of a source dataset onto a selection of
// the virtual dataset.
type VirtualMapping struct {
	SourceFile    string
	SourceDataset string
	SourceSelect  *Selection
	VirtualSelect *Selection
}

// Entry flags of the version 1 mapping encoding.
const (
	vdsFileShared    = 0x01
	vdsDatasetShared = 0x02
	vdsSameFile      = 0x04
)

// EncodeVirtualMappings builds the global heap object referenced by a
// virtual layout. The encoding is version 0 followed by a checksum.
func EncodeVirtualMappings(mappings []VirtualMapping, cfg binary.Config) []byte {
	b := binary.NewBuffer(cfg)
	b.PutUint8(0)
	b.PutLength(uint64(len(mappings)))
	for _, m := range mappings {
		b.PutCString(m.SourceFile)
		b.PutCString(m.SourceDataset)
		m.SourceSelect.Encode(b)
		m.VirtualSelect.Encode(b)
	}
	b.AppendChecksum()
	return b.Bytes()
}

// DecodeVirtualMappings parses a mapping list stored in a global heap object.
func DecodeVirtualMappings(data []byte, cfg binary.Config) ([]VirtualMapping, error) {
	if len(data) < 5 {
		return nil, fmt.Errorf("virtual mapping list too short")
	}
	body := data[:len(data)-4]
	if !binary.VerifyLookup3(body, le32(data[len(data)-4:])) {
		return nil, fmt.Errorf("virtual mapping list checksum mismatch")
	}

	r := binary.NewBytesReader(body, cfg)
	version, _ := r.ReadUint8()
	if version > 1 {
		return nil, fmt.Errorf("unsupported virtual mapping version %d", version)
	}
	n, err := r.ReadLength()
	if err != nil {
		return nil, err
	}
	if n > uint64(len(body)) {
		return nil, fmt.Errorf("virtual mapping count %d exceeds data", n)
	}

	out := make([]VirtualMapping, 0, n)
	for i := uint64(0); i < n; i++ {
		var m VirtualMapping
		var flags uint8
		if version == 1 {
			if flags, err = r.ReadUint8(); err != nil {
				return nil, err
			}
		}

		switch {
		case flags&vdsSameFile != 0:
			m.SourceFile = SameFile
		case flags&vdsFileShared != 0:
			origin, err := r.ReadLength()
			if err != nil {
				return nil, err
			}
			if origin >= uint64(len(out)) {
				return nil, fmt.Errorf("mapping %d: bad shared file reference", i)
			}
			m.SourceFile = out[origin].SourceFile
		default:
			if m.SourceFile, err = r.ReadCString(len(body)); err != nil {
				return nil, err
			}
		}

		if flags&vdsDatasetShared != 0 {
			origin, err := r.ReadLength()
			if err != nil {
				return nil, err
			}
			if origin >= uint64(len(out)) {
				return nil, fmt.Errorf("mapping %d: bad shared dataset reference", i)
			}
			m.SourceDataset = out[origin].SourceDataset
		} else if m.SourceDataset, err = r.ReadCString(len(body)); err != nil {
			return nil, err
		}

		if m.SourceSelect, err = DecodeSelection(r); err != nil {
			return nil, fmt.Errorf("mapping %d source selection: %w", i, err)
		}
		if m.VirtualSelect, err = DecodeSelection(r); err != nil {
			return nil, fmt.Errorf("mapping %d virtual selection: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}
