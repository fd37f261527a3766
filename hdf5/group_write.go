package hdf5

import (
	"fmt"
	"sort"

	"github.com/robert-malhotra/nxsplit/internal/dtype"
	"github.com/robert-malhotra/nxsplit/internal/message"
	"github.com/robert-malhotra/nxsplit/internal/object"
	"github.com/robert-malhotra/nxsplit/internal/superblock"
)

// groupRef is a freshly written group header.
type groupRef struct {
	addr uint64
	stab *message.SymbolTable // nil for link message groups
}

// CreateGroup creates a subgroup.
func (g *Group) CreateGroup(name string) (*Group, error) {
	if !validName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	if err := g.writable(); err != nil {
		return nil, err
	}
	ref, err := g.file.writeGroup(nil, nil)
	if err != nil {
		return nil, err
	}
	if err := g.addLink(message.NewHardLink(name, ref.addr)); err != nil {
		return nil, err
	}
	return &Group{file: g.file, path: JoinPath(g.path, name), addr: ref.addr}, nil
}

// RequireGroup opens the group at path p relative to g, creating missing
// groups along the way.
func (g *Group) RequireGroup(p string) (*Group, error) {
	cur := g
	for _, name := range SplitPath(p) {
		next, err := cur.OpenGroup(name)
		if err == nil {
			cur = next
			continue
		}
		if next, err = cur.CreateGroup(name); err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// CreateSoftLink creates a link resolved by path when followed.
func (g *Group) CreateSoftLink(name, target string) error {
	if !validName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	return g.addLink(message.NewSoftLink(name, target))
}

// CreateExternalLink creates a link to the object at path inside file. A
// relative file name is resolved against the directory of the linking file.
func (g *Group) CreateExternalLink(name, file, path string) error {
	if !validName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	return g.addLink(message.NewExternalLink(name, file, path))
}

// CreateHardLink creates an additional name for the object at target, an
// absolute path in the same file.
func (g *Group) CreateHardLink(name, target string) error {
	if !validName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	f, addr, _, err := g.file.Root().lookup(target, 0)
	if err != nil {
		return err
	}
	if f != g.file {
		return fmt.Errorf("%w: hard link to %s crosses files", ErrInvalidPath, target)
	}
	return g.addLink(message.NewHardLink(name, addr))
}

// RemoveLinks removes every link whose name satisfies match and returns the
// number removed. The linked objects are left in the file.
func (g *Group) RemoveLinks(match func(name string) bool) (int, error) {
	if err := g.writable(); err != nil {
		return 0, err
	}
	links, err := g.Links()
	if err != nil {
		return 0, err
	}
	var n int
	for _, l := range links {
		if match(l.Name) {
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	err = g.editLinks(func(links []*message.Link) ([]*message.Link, error) {
		kept := links[:0]
		for _, l := range links {
			if !match(l.Name) {
				kept = append(kept, l)
			}
		}
		return kept, nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Unlink removes the link called name.
func (g *Group) Unlink(name string) error {
	n, err := g.RemoveLinks(func(s string) bool { return s == name })
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", JoinPath(g.path, name), ErrNotFound)
	}
	return nil
}

// CreateDataset creates a dataset holding data, the row-major encoded
// elements of an array of shape dims.
func (g *Group) CreateDataset(name string, dt *Datatype, dims []uint64, data []byte, opts ...DatasetOption) (*Dataset, error) {
	if !validName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	if err := g.writable(); err != nil {
		return nil, err
	}
	o := &datasetOptions{}
	for _, opt := range opts {
		opt(o)
	}
	addr, err := g.file.writeDataset(dt.msg, dims, data, o)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", JoinPath(g.path, name), err)
	}
	if err := g.addLink(message.NewHardLink(name, addr)); err != nil {
		return nil, err
	}
	return g.file.openDataset(addr, JoinPath(g.path, name))
}

// CreateNumeric creates a dataset of shape dims from values, with the
// datatype matching T.
//
// Example:
//
//	omega := []float64{0, 0.1, 0.2}
//	ds, err := hdf5.CreateNumeric(g, "omega", []uint64{3}, omega)
func CreateNumeric[T Number](g *Group, name string, dims []uint64, values []T, opts ...DatasetOption) (*Dataset, error) {
	dt := TypeOf[T]()
	data, err := dtype.Encode(dt.msg, values)
	if err != nil {
		return nil, err
	}
	return g.CreateDataset(name, dt, dims, data, opts...)
}

func (g *Group) writable() error {
	if g.file.closed {
		return ErrClosed
	}
	if !g.file.writable {
		return ErrReadOnly
	}
	return nil
}

func (g *Group) addLink(l *message.Link) error {
	return g.editLinks(func(links []*message.Link) ([]*message.Link, error) {
		for _, x := range links {
			if x.Name == l.Name {
				return nil, fmt.Errorf("%s: %w", JoinPath(g.path, l.Name), ErrExists)
			}
		}
		return append(links, l), nil
	})
}

// SetAttr adds an attribute to the group or replaces the one with the same
// name. The value can be a string or a numeric scalar or slice.
func (g *Group) SetAttr(name string, value any) error {
	attr, err := encodeAttribute(name, value)
	if err != nil {
		return err
	}
	cfg := g.file.cfg
	return g.rewrite(nil, func(bodies []object.Body) []object.Body {
		out := bodies[:0]
		for _, b := range bodies {
			if b.Type == message.TypeAttribute {
				m, err := message.Parse(b.Type, b.Data, b.Flags, cfg)
				if a, ok := m.(*message.Attribute); err == nil && ok && a.Name == name {
					continue
				}
			}
			out = append(out, b)
		}
		return append(out, object.BodyOf(attr, cfg))
	})
}

// editLinks replaces the group header with one holding the links returned
// by edit, keeping every other message, and points all hard links to the
// group at the new header.
func (g *Group) editLinks(edit func([]*message.Link) ([]*message.Link, error)) error {
	return g.rewrite(edit, nil)
}

// rewrite writes a new group header with edited links and other messages.
// Either edit may be nil.
func (g *Group) rewrite(editLinks func([]*message.Link) ([]*message.Link, error), editBodies func([]object.Body) []object.Body) error {
	if err := g.writable(); err != nil {
		return err
	}
	f := g.file
	h, err := g.header()
	if err != nil {
		return err
	}
	stored, err := f.readLinks(h)
	if err != nil {
		return fmt.Errorf("%s: %w", g.path, err)
	}
	links := make([]*message.Link, len(stored))
	for i, s := range stored {
		links[i] = s.msg
	}
	if editLinks != nil {
		if links, err = editLinks(links); err != nil {
			return err
		}
	}

	kept := h.Bodies(message.TypeLink, message.TypeLinkInfo, message.TypeGroupInfo, message.TypeSymbolTable)
	if editBodies != nil {
		kept = editBodies(kept)
	}
	ref, err := f.writeGroup(links, kept)
	if err != nil {
		return fmt.Errorf("%s: %w", g.path, err)
	}

	isRoot := g.addr == f.superblock.RootGroupAddress
	if err := f.relink(g.addr, ref.addr); err != nil {
		return fmt.Errorf("%s: %w", g.path, err)
	}
	if isRoot {
		if err := f.setRoot(ref); err != nil {
			return err
		}
	}
	f.release(h, "group header")
	g.addr = ref.addr
	return nil
}

// writeGroup writes a group header holding links and the extra bodies.
// Files in the legacy format get symbol table groups unless a link cannot
// be stored in one.
func (f *File) writeGroup(links []*message.Link, extra []object.Body) (groupRef, error) {
	links = append([]*message.Link(nil), links...)
	sort.Slice(links, func(i, j int) bool { return links[i].Name < links[j].Name })

	var (
		ref    groupRef
		bodies []object.Body
	)
	if f.legacy() && f.fitsSymbolTable(links) {
		stab, err := f.writeSymbolTable(links)
		if err != nil {
			return groupRef{}, err
		}
		ref.stab = stab
		bodies = append(bodies, object.BodyOf(stab, f.cfg))
	} else {
		bodies = append(bodies,
			object.BodyOf(message.NewCompactLinkInfo(f.cfg), f.cfg),
			object.BodyOf(&message.GroupInfo{}, f.cfg))
		for _, l := range links {
			bodies = append(bodies, object.BodyOf(l, f.cfg))
		}
	}
	bodies = append(bodies, extra...)

	addr, err := f.append(object.Encode(f.headerVersion(), bodies, f.cfg), "group header")
	if err != nil {
		return groupRef{}, err
	}
	ref.addr = addr
	return ref, nil
}

// setRoot points the superblock at a new root group header.
func (f *File) setRoot(ref groupRef) error {
	sb := f.superblock
	sb.SetRoot(ref.addr)
	if ref.stab != nil && sb.HasRootEntry() {
		sb.RootCacheType = superblock.CacheSymbolTable
		sb.RootBTreeAddress = ref.stab.BTreeAddress
		sb.RootHeapAddress = ref.stab.HeapAddress
	}
	if _, err := f.file.WriteAt(sb.Encode(), sb.FileOffset); err != nil {
		return fmt.Errorf("writing superblock: %w", err)
	}
	return nil
}

// release records the space of a replaced header.
func (f *File) release(h *object.Header, tag string) {
	for _, c := range h.Chunks {
		f.allocator.Release(uint64(c.Pos-f.cfg.Base), uint64(c.Size), tag)
	}
}
