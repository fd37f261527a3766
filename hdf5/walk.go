package hdf5

import (
	"errors"
)

// SkipGroup can be returned by a WalkFunc called for a group to skip its
// members.
var SkipGroup = errors.New("skip this group")

// WalkFunc is called for each object visited by Walk. obj is a *Group, a
// *Dataset, or a Link for soft and external links, which are reported but
// not followed. err is set when the object could not be opened.
type WalkFunc func(path string, obj any, err error) error

// Walk visits g and everything below it in link name order. Objects reached
// through more than one hard link are visited once.
//
// Example:
//
//	hdf5.Walk(f.Root(), func(p string, obj any, err error) error {
//	    if err != nil {
//	        return err
//	    }
//	    if ds, ok := obj.(*hdf5.Dataset); ok {
//	        fmt.Println(p, ds.Shape())
//	    }
//	    return nil
//	})
func Walk(g *Group, fn WalkFunc) error {
	seen := map[uint64]bool{}
	err := walkGroup(g, fn, seen)
	if errors.Is(err, SkipGroup) {
		return nil
	}
	return err
}

func walkGroup(g *Group, fn WalkFunc, seen map[uint64]bool) error {
	seen[g.addr] = true
	if err := fn(g.path, g, nil); err != nil {
		return err
	}

	links, err := g.Links()
	if err != nil {
		return fn(g.path, nil, err)
	}
	for _, l := range links {
		child := JoinPath(g.path, l.Name)
		if l.Kind != HardLink {
			if err := fn(child, l, nil); err != nil && !errors.Is(err, SkipGroup) {
				return err
			}
			continue
		}
		if seen[l.Address] {
			continue
		}

		h, err := g.file.header(l.Address)
		switch {
		case err != nil:
			err = fn(child, nil, err)
		case h.IsGroup() || isEmptyGroup(h):
			err = walkGroup(&Group{file: g.file, path: child, addr: l.Address}, fn, seen)
		default:
			seen[l.Address] = true
			ds, derr := g.file.openDataset(l.Address, child)
			if derr != nil {
				err = fn(child, nil, derr)
			} else {
				err = fn(child, ds, nil)
			}
		}
		if err != nil && !errors.Is(err, SkipGroup) {
			return err
		}
	}
	return nil
}
