// Diagnostic tool for inspecting NeXus/HDF5 files: prints the object tree
// with dataset shapes and layouts, and the source mappings of virtual
// datasets.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/robert-malhotra/nxsplit/hdf5"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, w io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(w, "Usage: diagnose <file.h5>")
		return 2
	}

	filename := args[0]
	fmt.Fprintf(w, "=== Analyzing %s ===\n\n", filename)

	f, err := hdf5.Open(filename)
	if err != nil {
		fmt.Fprintf(w, "ERROR: Failed to open file: %v\n", err)
		return 1
	}
	defer f.Close()

	fmt.Fprintf(w, "Superblock version: %d\n\n", f.Version())

	failed := false
	err = hdf5.Walk(f.Root(), func(p string, obj any, err error) error {
		indent := strings.Repeat("  ", depth(p))
		if err != nil {
			failed = true
			fmt.Fprintf(w, "%s%q: ERROR: %v\n", indent, p, err)
			return nil
		}
		switch o := obj.(type) {
		case *hdf5.Group:
			printGroup(w, indent, o)
		case *hdf5.Dataset:
			if !printDataset(w, indent, o) {
				failed = true
			}
		case hdf5.Link:
			printLink(w, indent, p, o)
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(w, "ERROR: %v\n", err)
		return 1
	}
	if failed {
		return 1
	}
	return 0
}

func depth(p string) int {
	return len(hdf5.SplitPath(p))
}

func printGroup(w io.Writer, indent string, g *hdf5.Group) {
	members, err := g.Members()
	if err != nil {
		fmt.Fprintf(w, "%sGroup %q: ERROR getting members: %v\n", indent, g.Path(), err)
		return
	}
	fmt.Fprintf(w, "%sGroup %q:\n", indent, g.Path())
	fmt.Fprintf(w, "%s  Members: %d\n", indent, len(members))
	if attrs, err := g.Attrs(); err == nil {
		printAttrs(w, indent+"  ", attrs)
	}
}

func printDataset(w io.Writer, indent string, ds *hdf5.Dataset) bool {
	fmt.Fprintf(w, "%sDataset %q:\n", indent, ds.Path())
	fmt.Fprintf(w, "%s  Shape: %v\n", indent, ds.Shape())
	fmt.Fprintf(w, "%s  Type: %s\n", indent, ds.Datatype())
	fmt.Fprintf(w, "%s  Layout: %s", indent, ds.Layout())
	if c := ds.ChunkShape(); c != nil {
		fmt.Fprintf(w, " %v", c)
	}
	fmt.Fprintln(w)
	printAttrs(w, indent+"  ", ds.Attrs())

	if !ds.IsVirtual() {
		return true
	}
	sources, err := ds.VirtualSources()
	if err != nil {
		fmt.Fprintf(w, "%s  ERROR reading mappings: %v\n", indent, err)
		return false
	}
	fmt.Fprintf(w, "%s  Fill: %x\n", indent, ds.FillValue())
	fmt.Fprintf(w, "%s  Mappings: %d\n", indent, len(sources))
	for _, s := range sources {
		fmt.Fprintf(w, "%s    %s:%s start %v -> start %v count %v\n", indent, s.File, s.Dataset, s.SrcStart, s.DstStart, s.Count)
	}
	return true
}

func printLink(w io.Writer, indent, p string, l hdf5.Link) {
	switch l.Kind {
	case hdf5.ExternalLink:
		fmt.Fprintf(w, "%sExternal link %q -> %s:%s\n", indent, p, l.File, l.Target)
	default:
		fmt.Fprintf(w, "%sSoft link %q -> %s\n", indent, p, l.Target)
	}
}

func printAttrs(w io.Writer, indent string, attrs []*hdf5.Attribute) {
	for _, a := range attrs {
		v, err := a.Value()
		if err != nil {
			fmt.Fprintf(w, "%s@%s: ERROR: %v\n", indent, a.Name(), err)
			continue
		}
		fmt.Fprintf(w, "%s@%s = %v\n", indent, a.Name(), unwrapSingle(v))
	}
}

// unwrapSingle returns the element of a one-element slice.
func unwrapSingle(v any) any {
	switch s := v.(type) {
	case []string:
		if len(s) == 1 {
			return s[0]
		}
	case []int64:
		if len(s) == 1 {
			return s[0]
		}
	case []float64:
		if len(s) == 1 {
			return s[0]
		}
	}
	return v
}
