package proc

import (
	"fmt"
	"sort"

	"github.com/manastech/noir/pkg/acir"
)

// Breakpoint is a pause request at an opcode address.
type Breakpoint struct {
	// ID is a unique monotonically increasing number assigned on creation.
	ID int
	// Addr is the opcode address execution pauses at.
	Addr acir.OpcodeLocation

	// TotalHitCount counts how many times execution paused here.
	TotalHitCount uint64
}

func (bp *Breakpoint) String() string {
	return fmt.Sprintf("Breakpoint %d at %s", bp.ID, bp.Addr)
}

// BreakpointRegistry holds the active breakpoints of a session, keyed by
// opcode address. At most one breakpoint exists per address. The registry
// survives restarts; it is owned by the session controller and never
// mutated by execution itself.
type BreakpointRegistry struct {
	m      map[acir.OpcodeLocation]*Breakpoint
	nextID int
}

// NewBreakpointRegistry returns an empty registry.
func NewBreakpointRegistry() *BreakpointRegistry {
	return &BreakpointRegistry{m: make(map[acir.OpcodeLocation]*Breakpoint)}
}

// Set adds a breakpoint at addr. Setting an address that already has one
// is a no-op; the second result reports whether a breakpoint was created.
func (r *BreakpointRegistry) Set(addr acir.OpcodeLocation) (*Breakpoint, bool) {
	if bp, ok := r.m[addr]; ok {
		return bp, false
	}
	r.nextID++
	bp := &Breakpoint{ID: r.nextID, Addr: addr}
	r.m[addr] = bp
	return bp, true
}

// Clear removes the breakpoint at addr, reporting whether one existed.
func (r *BreakpointRegistry) Clear(addr acir.OpcodeLocation) (*Breakpoint, bool) {
	bp, ok := r.m[addr]
	if ok {
		delete(r.m, addr)
	}
	return bp, ok
}

// ClearAll removes every breakpoint.
func (r *BreakpointRegistry) ClearAll() {
	r.m = make(map[acir.OpcodeLocation]*Breakpoint)
}

// Has reports whether a breakpoint is set at addr.
func (r *BreakpointRegistry) Has(addr acir.OpcodeLocation) bool {
	_, ok := r.m[addr]
	return ok
}

// At returns the breakpoint at addr, if any.
func (r *BreakpointRegistry) At(addr acir.OpcodeLocation) (*Breakpoint, bool) {
	bp, ok := r.m[addr]
	return bp, ok
}

// All returns the breakpoints sorted by address.
func (r *BreakpointRegistry) All() []*Breakpoint {
	bps := make([]*Breakpoint, 0, len(r.m))
	for _, bp := range r.m {
		bps = append(bps, bp)
	}
	sort.Slice(bps, func(i, j int) bool { return bps[i].Addr.Before(bps[j].Addr) })
	return bps
}

// Len returns the number of active breakpoints.
func (r *BreakpointRegistry) Len() int {
	return len(r.m)
}
