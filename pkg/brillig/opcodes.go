// Package brillig implements the unconstrained bytecode VM invoked from
// Brillig call opcodes of an ACIR circuit. The VM executes register/memory
// instructions outside the constraint system and hands its outputs back to
// the solver when the block returns.
package brillig

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// BinaryOp enumerates the field operations available to BinaryFieldOp.
type BinaryOp int

const (
	BinaryAdd BinaryOp = iota
	BinarySub
	BinaryMul
	BinaryDiv
	BinaryEquals
	BinaryLessThan
)

func (op BinaryOp) String() string {
	switch op {
	case BinaryAdd:
		return "add"
	case BinarySub:
		return "sub"
	case BinaryMul:
		return "mul"
	case BinaryDiv:
		return "div"
	case BinaryEquals:
		return "eq"
	case BinaryLessThan:
		return "lt"
	}
	return fmt.Sprintf("BinaryOp(%d)", int(op))
}

// Const loads an immediate field value into a register.
type Const struct {
	Dst   int
	Value fr.Element
}

// BinaryFieldOp applies Op to two registers and stores the result.
// Division follows field semantics: x/0 evaluates to 0 because the
// field inverse of zero is defined as zero.
type BinaryFieldOp struct {
	Op  BinaryOp
	Dst int
	Lhs int
	Rhs int
}

// Mov copies one register into another.
type Mov struct {
	Dst int
	Src int
}

// Load reads the memory cell addressed by the SrcPtr register into Dst.
type Load struct {
	Dst    int
	SrcPtr int
}

// Store writes the Src register into the memory cell addressed by the
// DstPtr register.
type Store struct {
	DstPtr int
	Src    int
}

// Jump sets the program counter unconditionally.
type Jump struct {
	Target int
}

// JumpIf sets the program counter when the condition register is nonzero.
type JumpIf struct {
	Cond   int
	Target int
}

// JumpIfNot sets the program counter when the condition register is zero.
type JumpIfNot struct {
	Cond   int
	Target int
}

// Call jumps to Target pushing the return address on the VM call stack.
// Calls remain part of the inner tier; the debugger never reports them
// as a tier change.
type Call struct {
	Target int
}

// Return pops the call stack and resumes after the matching Call.
type Return struct{}

// CalldataCopy copies Size values of the block's calldata, starting at
// Offset, into memory beginning at cell Dst.
type CalldataCopy struct {
	Dst    int
	Offset int
	Size   int
}

// Stop terminates the block. The block outputs are the Size memory cells
// starting at ReturnOffset.
type Stop struct {
	ReturnOffset int
	ReturnSize   int
}

// Opcode is a single Brillig instruction. Exactly one field is non-nil.
// The one-pointer-per-variant layout keeps the type serializable while
// still allowing exhaustive dispatch in the VM.
type Opcode struct {
	Const         *Const         `cbor:"const,omitempty"`
	BinaryFieldOp *BinaryFieldOp `cbor:"binary,omitempty"`
	Mov           *Mov           `cbor:"mov,omitempty"`
	Load          *Load          `cbor:"load,omitempty"`
	Store         *Store         `cbor:"store,omitempty"`
	Jump          *Jump          `cbor:"jump,omitempty"`
	JumpIf        *JumpIf        `cbor:"jumpif,omitempty"`
	JumpIfNot     *JumpIfNot     `cbor:"jumpifnot,omitempty"`
	Call          *Call          `cbor:"call,omitempty"`
	Return        *Return        `cbor:"return,omitempty"`
	CalldataCopy  *CalldataCopy  `cbor:"calldatacopy,omitempty"`
	Stop          *Stop          `cbor:"stop,omitempty"`
}

func (op Opcode) String() string {
	switch {
	case op.Const != nil:
		return fmt.Sprintf("CONST r%d = %s", op.Const.Dst, op.Const.Value.String())
	case op.BinaryFieldOp != nil:
		b := op.BinaryFieldOp
		return fmt.Sprintf("%s r%d = r%d, r%d", b.Op, b.Dst, b.Lhs, b.Rhs)
	case op.Mov != nil:
		return fmt.Sprintf("MOV r%d = r%d", op.Mov.Dst, op.Mov.Src)
	case op.Load != nil:
		return fmt.Sprintf("LOAD r%d = [r%d]", op.Load.Dst, op.Load.SrcPtr)
	case op.Store != nil:
		return fmt.Sprintf("STORE [r%d] = r%d", op.Store.DstPtr, op.Store.Src)
	case op.Jump != nil:
		return fmt.Sprintf("JUMP %d", op.Jump.Target)
	case op.JumpIf != nil:
		return fmt.Sprintf("JUMPIF r%d -> %d", op.JumpIf.Cond, op.JumpIf.Target)
	case op.JumpIfNot != nil:
		return fmt.Sprintf("JUMPIFNOT r%d -> %d", op.JumpIfNot.Cond, op.JumpIfNot.Target)
	case op.Call != nil:
		return fmt.Sprintf("CALL %d", op.Call.Target)
	case op.Return != nil:
		return "RETURN"
	case op.CalldataCopy != nil:
		c := op.CalldataCopy
		return fmt.Sprintf("CALLDATACOPY m%d = calldata[%d..%d]", c.Dst, c.Offset, c.Offset+c.Size)
	case op.Stop != nil:
		return fmt.Sprintf("STOP m%d..m%d", op.Stop.ReturnOffset, op.Stop.ReturnOffset+op.Stop.ReturnSize)
	}
	return "INVALID"
}

// Bytecode is one unconstrained block as emitted by the compiler. The
// register and memory sizes are part of the compiler contract; accesses
// outside them are faults, never silently clamped.
type Bytecode struct {
	Code          []Opcode `cbor:"code"`
	RegisterCount int      `cbor:"registers"`
	MemorySize    int      `cbor:"memory"`
}
