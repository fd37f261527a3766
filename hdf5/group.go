package hdf5

import (
	"fmt"
	"path"
	"sort"

	"github.com/robert-malhotra/nxsplit/internal/btree"
	"github.com/robert-malhotra/nxsplit/internal/heap"
	"github.com/robert-malhotra/nxsplit/internal/message"
	"github.com/robert-malhotra/nxsplit/internal/object"
)

// Group is an HDF5 group. A Group handle stays valid across edits made
// through it; edits through another handle to the same group leave this
// one reading the old header.
type Group struct {
	file *File
	path string
	addr uint64
}

// LinkKind is the kind of a link.
type LinkKind uint8

const (
	HardLink LinkKind = iota
	SoftLink
	ExternalLink
)

func (k LinkKind) String() string {
	switch k {
	case HardLink:
		return "hard"
	case SoftLink:
		return "soft"
	case ExternalLink:
		return "external"
	}
	return fmt.Sprintf("LinkKind(%d)", uint8(k))
}

// Link is a named entry of a group.
type Link struct {
	Name string
	Kind LinkKind

	// Address is the object header address of a hard link.
	Address uint64

	// Target is the path of a soft link, or the object path inside File of an
	// external link.
	Target string
	File   string
}

// linkSource is where a link is stored.
type linkSource uint8

const (
	inHeader linkSource = iota
	inFractalHeap
	inSymbolTable
)

// storedLink is a link together with its storage location, used to patch
// hard link addresses in place.
type storedLink struct {
	msg    *message.Link
	source linkSource
	entry  int // header entry index
	heap   *heap.FractalHeap
	loc    heap.Location
	heapOK bool // loc is valid
	symbol btree.SymbolEntry
}

// Name returns the last component of the group path.
func (g *Group) Name() string {
	if g.path == "/" {
		return "/"
	}
	return path.Base(g.path)
}

// Path returns the path the group was opened with.
func (g *Group) Path() string {
	return g.path
}

// Address returns the address of the group's object header.
func (g *Group) Address() uint64 {
	return g.addr
}

// File returns the file holding the group.
func (g *Group) File() *File {
	return g.file
}

func (g *Group) header() (*object.Header, error) {
	h, err := g.file.header(g.addr)
	if err != nil {
		return nil, err
	}
	if !h.IsGroup() && !isEmptyGroup(h) {
		return nil, fmt.Errorf("%s: %w", g.path, ErrNotGroup)
	}
	return h, nil
}

// isEmptyGroup reports whether h could be a group without any group
// message, as written by some old tools for the root.
func isEmptyGroup(h *object.Header) bool {
	return !h.IsDataset() && h.Datatype() == nil && h.Dataspace() == nil
}

// Links returns the links of the group sorted by name.
func (g *Group) Links() ([]Link, error) {
	h, err := g.header()
	if err != nil {
		return nil, err
	}
	stored, err := g.file.readLinks(h)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", g.path, err)
	}
	out := make([]Link, len(stored))
	for i, s := range stored {
		out[i] = publicLink(s.msg)
	}
	return out, nil
}

func publicLink(m *message.Link) Link {
	switch m.LinkType {
	case message.LinkSoft:
		return Link{Name: m.Name, Kind: SoftLink, Target: m.SoftPath}
	case message.LinkExternal:
		return Link{Name: m.Name, Kind: ExternalLink, Target: m.ExternalPath, File: m.ExternalFile}
	}
	return Link{Name: m.Name, Kind: HardLink, Address: m.Address}
}

// Members returns the link names of the group in name order.
func (g *Group) Members() ([]string, error) {
	links, err := g.Links()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(links))
	for i, l := range links {
		names[i] = l.Name
	}
	return names, nil
}

// Link returns the link called name.
func (g *Group) Link(name string) (Link, error) {
	links, err := g.Links()
	if err != nil {
		return Link{}, err
	}
	for _, l := range links {
		if l.Name == name {
			return l, nil
		}
	}
	return Link{}, fmt.Errorf("%s: %w", JoinPath(g.path, name), ErrNotFound)
}

// Has reports whether the group has a link called name.
func (g *Group) Has(name string) bool {
	_, err := g.Link(name)
	return err == nil
}

// OpenGroup opens a group by path relative to g. Soft and external links
// are followed.
func (g *Group) OpenGroup(p string) (*Group, error) {
	f, addr, full, err := g.lookup(p, 0)
	if err != nil {
		return nil, err
	}
	sub := &Group{file: f, path: full, addr: addr}
	if _, err := sub.header(); err != nil {
		return nil, err
	}
	return sub, nil
}

// OpenDataset opens a dataset by path relative to g. Soft and external
// links are followed.
func (g *Group) OpenDataset(p string) (*Dataset, error) {
	f, addr, full, err := g.lookup(p, 0)
	if err != nil {
		return nil, err
	}
	return f.openDataset(addr, full)
}

// Attrs returns the attributes of the group.
func (g *Group) Attrs() ([]*Attribute, error) {
	h, err := g.header()
	if err != nil {
		return nil, err
	}
	return g.file.attributes(h), nil
}

// Attr returns the attribute called name.
func (g *Group) Attr(name string) (*Attribute, error) {
	attrs, err := g.Attrs()
	if err != nil {
		return nil, err
	}
	return findAttr(attrs, g.path, name)
}

// lookup resolves p relative to g and returns the file and header address
// of the object with its path in that file. depth counts the soft and
// external links followed so far.
func (g *Group) lookup(p string, depth int) (*File, uint64, string, error) {
	f, addr, cur := g.file, g.addr, g.path
	if len(p) > 0 && p[0] == '/' {
		addr, cur = f.superblock.RootGroupAddress, "/"
	}
	for _, name := range SplitPath(p) {
		if name == ".." {
			return nil, 0, "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
		h, err := f.header(addr)
		if err != nil {
			return nil, 0, "", err
		}
		if !h.IsGroup() && !isEmptyGroup(h) {
			return nil, 0, "", fmt.Errorf("%s: %w", cur, ErrNotGroup)
		}
		links, err := f.readLinks(h)
		if err != nil {
			return nil, 0, "", fmt.Errorf("%s: %w", cur, err)
		}
		i := sort.Search(len(links), func(i int) bool { return links[i].msg.Name >= name })
		if i == len(links) || links[i].msg.Name != name {
			return nil, 0, "", fmt.Errorf("%s: %w", JoinPath(cur, name), ErrNotFound)
		}
		l := links[i].msg
		parent := cur
		cur = JoinPath(cur, name)

		switch l.LinkType {
		case message.LinkHard:
			addr = l.Address
		case message.LinkSoft:
			if depth++; depth > MaxLinkDepth {
				return nil, 0, "", fmt.Errorf("%s: %w", cur, ErrLinkDepth)
			}
			target := l.SoftPath
			if target == "" || target[0] != '/' {
				target = JoinPath(parent, target)
			}
			f, addr, cur, err = f.Root().lookup(target, depth)
			if err != nil {
				return nil, 0, "", err
			}
		case message.LinkExternal:
			if depth++; depth > MaxLinkDepth {
				return nil, 0, "", fmt.Errorf("%s: %w", cur, ErrLinkDepth)
			}
			ext, err := f.external(l.ExternalFile)
			if err != nil {
				return nil, 0, "", fmt.Errorf("%s: external file %s: %w", cur, l.ExternalFile, err)
			}
			f, addr, cur, err = ext.Root().lookup(l.ExternalPath, depth)
			if err != nil {
				return nil, 0, "", err
			}
		default:
			return nil, 0, "", fmt.Errorf("%s: %w: link type %d", cur, ErrUnsupported, l.LinkType)
		}
	}
	return f, addr, cur, nil
}

// readLinks returns every link of the group header h sorted by name. Links
// are read from old style symbol tables, dense storage and link messages.
func (f *File) readLinks(h *object.Header) ([]storedLink, error) {
	var out []storedLink

	if st := h.SymbolTable(); st != nil {
		names, err := heap.ReadLocalHeap(f.reader, st.HeapAddress)
		if err != nil {
			return nil, fmt.Errorf("symbol table names: %w", err)
		}
		entries, err := btree.ReadSymbolTable(f.reader, st.BTreeAddress, names)
		if err != nil {
			return nil, fmt.Errorf("symbol table: %w", err)
		}
		for _, e := range entries {
			m := message.NewHardLink(e.Name, e.ObjectAddress)
			if e.CacheType == btree.CacheSoftLink {
				m = message.NewSoftLink(e.Name, e.SoftLink)
			}
			out = append(out, storedLink{msg: m, source: inSymbolTable, symbol: e})
		}
	}

	if li := h.LinkInfo(); li != nil && li.Dense(f.cfg) {
		dense, err := f.readDenseLinks(li)
		if err != nil {
			return nil, fmt.Errorf("dense links: %w", err)
		}
		out = append(out, dense...)
	}

	links, idx := h.Links()
	for i, l := range links {
		out = append(out, storedLink{msg: l, source: inHeader, entry: idx[i]})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].msg.Name < out[j].msg.Name })
	return out, nil
}

func (f *File) readDenseLinks(li *message.LinkInfo) ([]storedLink, error) {
	fh, err := heap.ReadFractalHeap(f.reader, li.FractalHeapAddress)
	if err != nil {
		return nil, err
	}
	records, err := btree.ReadLinkNames(f.reader, li.NameIndexAddress)
	if err != nil {
		return nil, err
	}
	out := make([]storedLink, 0, len(records))
	for _, rec := range records {
		data, err := fh.Read(f.reader, rec.HeapID)
		if err != nil {
			return nil, err
		}
		msg, err := message.Parse(message.TypeLink, data, 0, f.cfg)
		if err != nil {
			return nil, err
		}
		s := storedLink{msg: msg.(*message.Link), source: inFractalHeap, heap: fh}
		if loc, err := fh.Locate(rec.HeapID); err == nil {
			s.loc, s.heapOK = loc, true
		}
		out = append(out, s)
	}
	return out, nil
}
