// Package acir models the outer tier of a compiled circuit: the ordered
// opcode list, the witness map it is solved against, and the arithmetic
// gate solving primitive. The inner tier lives in pkg/brillig.
package acir

import (
	"fmt"
	"strconv"
	"strings"
)

// OpcodeLocation addresses a position in the combined program. It is a
// tagged variant: either a bare outer opcode index, or an outer index plus
// the index of an instruction inside the Brillig block invoked there. A
// bare outer location at a Brillig call opcode means "about to enter the
// block".
type OpcodeLocation struct {
	AcirIndex    int
	BrilligIndex int
	InBrillig    bool
}

// AcirLocation addresses the outer opcode at index i.
func AcirLocation(i int) OpcodeLocation {
	return OpcodeLocation{AcirIndex: i}
}

// BrilligLocation addresses instruction j inside the block invoked by the
// outer opcode at index i.
func BrilligLocation(i, j int) OpcodeLocation {
	return OpcodeLocation{AcirIndex: i, BrilligIndex: j, InBrillig: true}
}

// Compare orders locations by execution order: first by outer index, with
// the bare outer location preceding every inner location at the same index.
func (l OpcodeLocation) Compare(other OpcodeLocation) int {
	switch {
	case l.AcirIndex != other.AcirIndex:
		if l.AcirIndex < other.AcirIndex {
			return -1
		}
		return 1
	case l.InBrillig != other.InBrillig:
		if !l.InBrillig {
			return -1
		}
		return 1
	case !l.InBrillig:
		return 0
	case l.BrilligIndex < other.BrilligIndex:
		return -1
	case l.BrilligIndex > other.BrilligIndex:
		return 1
	}
	return 0
}

// Before reports whether l precedes other in execution order.
func (l OpcodeLocation) Before(other OpcodeLocation) bool {
	return l.Compare(other) < 0
}

// String renders the location in the debugger's address syntax: "12" for an
// outer opcode, "12.3" for instruction 3 of the block invoked at opcode 12.
func (l OpcodeLocation) String() string {
	if l.InBrillig {
		return fmt.Sprintf("%d.%d", l.AcirIndex, l.BrilligIndex)
	}
	return strconv.Itoa(l.AcirIndex)
}

// ParseOpcodeLocation parses the address syntax accepted by String.
func ParseOpcodeLocation(s string) (OpcodeLocation, error) {
	parts := strings.SplitN(s, ".", 2)
	outer, err := strconv.Atoi(parts[0])
	if err != nil || outer < 0 {
		return OpcodeLocation{}, fmt.Errorf("invalid opcode location %q", s)
	}
	if len(parts) == 1 {
		return AcirLocation(outer), nil
	}
	inner, err := strconv.Atoi(parts[1])
	if err != nil || inner < 0 {
		return OpcodeLocation{}, fmt.Errorf("invalid opcode location %q", s)
	}
	return BrilligLocation(outer, inner), nil
}
