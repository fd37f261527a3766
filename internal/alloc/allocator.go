package alloc

import (
	"fmt"
	"sort"
	"sync"
)

// Alignment of every allocation.
const Alignment = 8

// Allocator hands out addresses at the end of a file.
type Allocator struct {
	mu          sync.Mutex
	base        uint64
	eof         uint64
	allocations []Allocation
	released    []Allocation
}

// Allocation is one block handed out or released.
type Allocation struct {
	Addr uint64
	Size uint64
	Tag  string
}

// Stats summarizes allocator activity.
type Stats struct {
	Allocations   int
	BytesAlloc    uint64
	BytesReleased uint64
}

// New creates an allocator for a file whose data ends at eof.
func New(eof uint64) *Allocator {
	return &Allocator{base: eof, eof: eof}
}

// Alloc reserves size bytes and returns their address.
func (a *Allocator) Alloc(size uint64, tag string) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if r := a.eof % Alignment; r != 0 {
		a.eof += Alignment - r
	}
	addr := a.eof
	a.eof += size
	a.allocations = append(a.allocations, Allocation{Addr: addr, Size: size, Tag: tag})
	return addr
}

// Release records that a block is no longer referenced.
func (a *Allocator) Release(addr, size uint64, tag string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.released = append(a.released, Allocation{Addr: addr, Size: size, Tag: tag})
}

// EOF returns the end of allocated space.
func (a *Allocator) EOF() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.eof
}

// Stats returns a summary of allocations and releases.
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := Stats{Allocations: len(a.allocations)}
	for _, b := range a.allocations {
		s.BytesAlloc += b.Size
	}
	for _, b := range a.released {
		s.BytesReleased += b.Size
	}
	return s
}

// Allocations returns a copy of the blocks handed out, in address order.
func (a *Allocator) Allocations() []Allocation {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := append([]Allocation(nil), a.allocations...)
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out
}

// Validate checks that no two allocations overlap and that all lie between
// the starting end of file and the current one.
func (a *Allocator) Validate() error {
	blocks := a.Allocations()
	a.mu.Lock()
	base, eof := a.base, a.eof
	a.mu.Unlock()

	for i, b := range blocks {
		if b.Addr < base || b.Addr+b.Size > eof {
			return fmt.Errorf("allocation %q [%d,%d) outside [%d,%d)", b.Tag, b.Addr, b.Addr+b.Size, base, eof)
		}
		if i > 0 {
			prev := blocks[i-1]
			if prev.Addr+prev.Size > b.Addr {
				return fmt.Errorf("allocations %q and %q overlap", prev.Tag, b.Tag)
			}
		}
	}
	return nil
}
