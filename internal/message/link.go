package message

import (
	"bytes"
	"fmt"

	"github.com/robert-malhotra/nxsplit/internal/binary"
)

// LinkType is the kind of link stored in a link message.
type LinkType uint8

const (
	LinkHard     LinkType = 0
	LinkSoft     LinkType = 1
	LinkExternal LinkType = 64
)

func (t LinkType) String() string {
	switch t {
	case LinkHard:
		return "hard"
	case LinkSoft:
		return "soft"
	case LinkExternal:
		return "external"
	}
	return fmt.Sprintf("link(%d)", uint8(t))
}

// Link message flag bits.
const (
	linkFlagSizeMask      = 0x03
	linkFlagCreationOrder = 0x04
	linkFlagTypePresent   = 0x08
	linkFlagCharset       = 0x10
)

// Link represents a link message (type 0x0006).
type Link struct {
	LinkType      LinkType
	Name          string
	CreationOrder int64
	HasOrder      bool
	Charset       CharacterSet

	// Hard link target. AddressOffset is the position of the address inside
	// the encoded message body.
	Address       uint64
	AddressOffset int

	// Soft link target.
	SoftPath string

	// External link target.
	ExternalFile string
	ExternalPath string
}

func (m *Link) Type() Type { return TypeLink }

func parseLink(data []byte, cfg binary.Config) (*Link, error) {
	r := binary.NewBytesReader(data, cfg)
	version, err := r.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("link message too short")
	}
	if version != 1 {
		return nil, fmt.Errorf("unsupported link message version %d", version)
	}
	flags, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}

	m := &Link{}
	if flags&linkFlagTypePresent != 0 {
		t, err := r.ReadUint8()
		if err != nil {
			return nil, err
		}
		m.LinkType = LinkType(t)
	}
	if flags&linkFlagCreationOrder != 0 {
		v, err := r.ReadUint64()
		if err != nil {
			return nil, err
		}
		m.CreationOrder = int64(v)
		m.HasOrder = true
	}
	if flags&linkFlagCharset != 0 {
		c, err := r.ReadUint8()
		if err != nil {
			return nil, err
		}
		m.Charset = CharacterSet(c)
	}
	nameLen, err := r.ReadUintN(1 << (flags & linkFlagSizeMask))
	if err != nil {
		return nil, err
	}
	name, err := r.ReadBytes(int(nameLen))
	if err != nil {
		return nil, err
	}
	m.Name = string(name)

	switch m.LinkType {
	case LinkHard:
		m.AddressOffset = int(r.Pos())
		if m.Address, err = r.ReadOffset(); err != nil {
			return nil, err
		}
	case LinkSoft:
		n, err := r.ReadUint16()
		if err != nil {
			return nil, err
		}
		p, err := r.ReadBytes(int(n))
		if err != nil {
			return nil, err
		}
		m.SoftPath = string(p)
	case LinkExternal:
		n, err := r.ReadUint16()
		if err != nil {
			return nil, err
		}
		info, err := r.ReadBytes(int(n))
		if err != nil {
			return nil, err
		}
		if err := m.parseExternal(info); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported link type %d", m.LinkType)
	}
	return m, nil
}

// external link value: version/flags byte, file name, object path
func (m *Link) parseExternal(info []byte) error {
	if len(info) < 1 {
		return fmt.Errorf("external link value empty")
	}
	parts := bytes.SplitN(info[1:], []byte{0}, 3)
	if len(parts) < 2 {
		return fmt.Errorf("external link value malformed")
	}
	m.ExternalFile = string(parts[0])
	m.ExternalPath = string(parts[1])
	return nil
}

func (m *Link) Encode(b *binary.Buffer) {
	nameLen := uint64(len(m.Name))
	sizeCode := uint8(0)
	switch {
	case nameLen > 0xFFFFFFFF:
		sizeCode = 3
	case nameLen > 0xFFFF:
		sizeCode = 2
	case nameLen > 0xFF:
		sizeCode = 1
	}
	flags := sizeCode
	if m.LinkType != LinkHard {
		flags |= linkFlagTypePresent
	}
	if m.HasOrder {
		flags |= linkFlagCreationOrder
	}
	if m.Charset != 0 {
		flags |= linkFlagCharset
	}

	start := b.Len()
	b.PutUint8(1)
	b.PutUint8(flags)
	if flags&linkFlagTypePresent != 0 {
		b.PutUint8(uint8(m.LinkType))
	}
	if m.HasOrder {
		b.PutUint64(uint64(m.CreationOrder))
	}
	if flags&linkFlagCharset != 0 {
		b.PutUint8(uint8(m.Charset))
	}
	b.PutUintN(nameLen, 1<<sizeCode)
	b.PutString(m.Name)

	switch m.LinkType {
	case LinkHard:
		m.AddressOffset = b.Len() - start
		b.PutOffset(m.Address)
	case LinkSoft:
		b.PutUint16(uint16(len(m.SoftPath)))
		b.PutString(m.SoftPath)
	case LinkExternal:
		b.PutUint16(uint16(len(m.ExternalFile) + len(m.ExternalPath) + 3))
		b.PutUint8(0)
		b.PutCString(m.ExternalFile)
		b.PutCString(m.ExternalPath)
	}
}

// NewHardLink creates a hard link to the object header at addr.
func NewHardLink(name string, addr uint64) *Link {
	return &Link{LinkType: LinkHard, Name: name, Address: addr}
}

// NewSoftLink creates a soft link to path.
func NewSoftLink(name, path string) *Link {
	return &Link{LinkType: LinkSoft, Name: name, SoftPath: path}
}

// NewExternalLink creates a link to path inside file.
func NewExternalLink(name, file, path string) *Link {
	return &Link{LinkType: LinkExternal, Name: name, ExternalFile: file, ExternalPath: path}
}
