package acir

import (
	"fmt"
	"strings"

	"github.com/manastech/noir/pkg/brillig"
)

// BrilligCall invokes an unconstrained block. Inputs are expressions
// evaluated against the witness map to produce the block's calldata;
// outputs name the witnesses that receive the block's results. When the
// optional predicate evaluates to zero the call is skipped and the outputs
// are bound to zero.
type BrilligCall struct {
	ID        uint32       `cbor:"id"`
	Inputs    []Expression `cbor:"inputs,omitempty"`
	Outputs   []Witness    `cbor:"outputs,omitempty"`
	Predicate *Expression  `cbor:"predicate,omitempty"`
}

// Opcode is one outer-tier opcode: either an arithmetic gate or a Brillig
// call. Exactly one field is non-nil.
type Opcode struct {
	AssertZero  *Expression  `cbor:"assert_zero,omitempty"`
	BrilligCall *BrilligCall `cbor:"brillig_call,omitempty"`
}

// IsBrilligCall reports whether the opcode invokes an unconstrained block.
func (op *Opcode) IsBrilligCall() bool {
	return op.BrilligCall != nil
}

func (op Opcode) String() string {
	switch {
	case op.AssertZero != nil:
		return op.AssertZero.String()
	case op.BrilligCall != nil:
		c := op.BrilligCall
		outs := make([]string, len(c.Outputs))
		for i, w := range c.Outputs {
			outs[i] = w.String()
		}
		return fmt.Sprintf("BRILLIG CALL func %d, outputs [%s]", c.ID, strings.Join(outs, ", "))
	}
	return "INVALID"
}

// Circuit is the immutable outer opcode list produced by the compiler.
type Circuit struct {
	Opcodes []Opcode `cbor:"opcodes"`
}

// Program bundles a circuit with the unconstrained blocks it references.
type Program struct {
	Circuit                Circuit            `cbor:"circuit"`
	UnconstrainedFunctions []brillig.Bytecode `cbor:"unconstrained,omitempty"`
}

// Bytecode returns the unconstrained block with the given id.
func (p *Program) Bytecode(id uint32) (*brillig.Bytecode, error) {
	if int(id) >= len(p.UnconstrainedFunctions) {
		return nil, fmt.Errorf("unknown brillig function id %d", id)
	}
	return &p.UnconstrainedFunctions[id], nil
}

// ValidLocation reports whether the location addresses an existing opcode
// or block instruction of the program.
func (p *Program) ValidLocation(loc OpcodeLocation) bool {
	if loc.AcirIndex < 0 || loc.AcirIndex >= len(p.Circuit.Opcodes) {
		return false
	}
	if !loc.InBrillig {
		return true
	}
	call := p.Circuit.Opcodes[loc.AcirIndex].BrilligCall
	if call == nil {
		return false
	}
	bytecode, err := p.Bytecode(call.ID)
	if err != nil {
		return false
	}
	return loc.BrilligIndex >= 0 && loc.BrilligIndex < len(bytecode.Code)
}
