package brillig

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/sirupsen/logrus"

	"github.com/manastech/noir/pkg/logflags"
)

// Status describes the outcome of a single VM step.
type Status int

const (
	// Continuing means the instruction executed and more remain.
	Continuing Status = iota
	// BlockReturned means the block terminated; Outputs holds its results.
	BlockReturned
	// CalledNestedBlock means the instruction pushed a call stack frame.
	// Nested calls are still inner-tier execution, the distinction only
	// matters for stack display.
	CalledNestedBlock
)

// InvalidRegisterError is an access to a register outside the block's
// declared register file.
type InvalidRegisterError struct {
	Index int
	Count int
}

func (e InvalidRegisterError) Error() string {
	return fmt.Sprintf("invalid register index %d (register count %d)", e.Index, e.Count)
}

// InvalidMemoryError is an access to a memory cell outside the block's
// declared memory size.
type InvalidMemoryError struct {
	Index int
	Size  int
}

func (e InvalidMemoryError) Error() string {
	return fmt.Sprintf("invalid memory index %d (memory size %d)", e.Index, e.Size)
}

// OutOfBoundsJumpError is a jump, call or fallthrough to a program counter
// outside the bytecode.
type OutOfBoundsJumpError struct {
	Target int
	Length int
}

func (e OutOfBoundsJumpError) Error() string {
	return fmt.Sprintf("jump target %d out of bounds (bytecode length %d)", e.Target, e.Length)
}

// ErrRegistersNotAvailable is returned when inspecting the register file of
// a VM that has not executed its first instruction yet. At that point the
// registers do not correspond to any well-defined execution state, so the
// VM refuses to report them instead of showing stale zeroes.
var ErrRegistersNotAvailable = fmt.Errorf("registers not yet available")

// VM executes one invocation of an unconstrained block. It owns the block's
// registers, memory, program counter and call stack for the lifetime of the
// invocation; the solve driver discards it when the block returns.
type VM struct {
	bytecode  *Bytecode
	calldata  []fr.Element
	registers []fr.Element
	memory    []fr.Element
	pc        int
	callStack []int
	started   bool
	outputs   []fr.Element
	done      bool

	log *logrus.Entry
}

// NewVM initializes a VM for one block invocation. The calldata is the
// block's resolved input values; instructions read it via CalldataCopy.
func NewVM(bytecode *Bytecode, calldata []fr.Element) *VM {
	return &VM{
		bytecode:  bytecode,
		calldata:  append([]fr.Element(nil), calldata...),
		registers: make([]fr.Element, bytecode.RegisterCount),
		memory:    make([]fr.Element, bytecode.MemorySize),
		log:       logflags.VMLogger(),
	}
}

// PC returns the current program counter.
func (vm *VM) PC() int { return vm.pc }

// Done reports whether the block has terminated.
func (vm *VM) Done() bool { return vm.done }

// Outputs returns the block outputs. Only valid once StepOne has reported
// BlockReturned.
func (vm *VM) Outputs() []fr.Element { return vm.outputs }

// CallStack returns the return addresses of active nested calls, outermost
// first.
func (vm *VM) CallStack() []int {
	return append([]int(nil), vm.callStack...)
}

// Registers returns a copy of the register file. Before the first step the
// registers are not populated by any instruction and reading them would
// report a state that never existed, so ErrRegistersNotAvailable is
// returned instead.
func (vm *VM) Registers() ([]fr.Element, error) {
	if !vm.started {
		return nil, ErrRegistersNotAvailable
	}
	return append([]fr.Element(nil), vm.registers...), nil
}

// ReadRegister returns the value of register i.
func (vm *VM) ReadRegister(i int) (fr.Element, error) {
	var zero fr.Element
	if !vm.started {
		return zero, ErrRegistersNotAvailable
	}
	if i < 0 || i >= len(vm.registers) {
		return zero, InvalidRegisterError{Index: i, Count: len(vm.registers)}
	}
	return vm.registers[i], nil
}

// WriteRegister overwrites register i. The write is visible to the next
// executed instruction.
func (vm *VM) WriteRegister(i int, v fr.Element) error {
	if i < 0 || i >= len(vm.registers) {
		return InvalidRegisterError{Index: i, Count: len(vm.registers)}
	}
	vm.registers[i] = v
	return nil
}

// Memory returns a copy of the block memory.
func (vm *VM) Memory() []fr.Element {
	return append([]fr.Element(nil), vm.memory...)
}

// ReadMemory returns the value of memory cell i.
func (vm *VM) ReadMemory(i int) (fr.Element, error) {
	var zero fr.Element
	if i < 0 || i >= len(vm.memory) {
		return zero, InvalidMemoryError{Index: i, Size: len(vm.memory)}
	}
	return vm.memory[i], nil
}

// WriteMemory overwrites memory cell i.
func (vm *VM) WriteMemory(i int, v fr.Element) error {
	if i < 0 || i >= len(vm.memory) {
		return InvalidMemoryError{Index: i, Size: len(vm.memory)}
	}
	vm.memory[i] = v
	return nil
}

// StepOne executes exactly the instruction at the current program counter.
// A failing step leaves the VM state untouched: faults are detected before
// any register, memory or control flow mutation is applied.
func (vm *VM) StepOne() (Status, error) {
	if vm.done {
		return BlockReturned, nil
	}
	if vm.pc < 0 || vm.pc >= len(vm.bytecode.Code) {
		return Continuing, OutOfBoundsJumpError{Target: vm.pc, Length: len(vm.bytecode.Code)}
	}
	op := vm.bytecode.Code[vm.pc]
	status, err := vm.exec(&op)
	if err != nil {
		vm.log.Debugf("fault at pc %d: %v", vm.pc, err)
		return Continuing, err
	}
	vm.started = true
	if status == BlockReturned {
		vm.log.Debugf("block returned %d values", len(vm.outputs))
	}
	return status, nil
}

func (vm *VM) exec(op *Opcode) (Status, error) {
	switch {
	case op.Const != nil:
		if err := vm.checkRegister(op.Const.Dst); err != nil {
			return Continuing, err
		}
		vm.registers[op.Const.Dst] = op.Const.Value
		vm.pc++
		return Continuing, nil

	case op.BinaryFieldOp != nil:
		b := op.BinaryFieldOp
		if err := vm.checkRegisters(b.Dst, b.Lhs, b.Rhs); err != nil {
			return Continuing, err
		}
		lhs, rhs := vm.registers[b.Lhs], vm.registers[b.Rhs]
		var res fr.Element
		switch b.Op {
		case BinaryAdd:
			res.Add(&lhs, &rhs)
		case BinarySub:
			res.Sub(&lhs, &rhs)
		case BinaryMul:
			res.Mul(&lhs, &rhs)
		case BinaryDiv:
			// Inverse(0) is 0 in the field package, so x/0 = 0.
			var inv fr.Element
			inv.Inverse(&rhs)
			res.Mul(&lhs, &inv)
		case BinaryEquals:
			if lhs.Equal(&rhs) {
				res.SetOne()
			}
		case BinaryLessThan:
			if lhs.Cmp(&rhs) < 0 {
				res.SetOne()
			}
		default:
			return Continuing, fmt.Errorf("unknown binary field op %d", int(b.Op))
		}
		vm.registers[b.Dst] = res
		vm.pc++
		return Continuing, nil

	case op.Mov != nil:
		if err := vm.checkRegisters(op.Mov.Dst, op.Mov.Src); err != nil {
			return Continuing, err
		}
		vm.registers[op.Mov.Dst] = vm.registers[op.Mov.Src]
		vm.pc++
		return Continuing, nil

	case op.Load != nil:
		if err := vm.checkRegisters(op.Load.Dst, op.Load.SrcPtr); err != nil {
			return Continuing, err
		}
		addr, err := vm.pointer(op.Load.SrcPtr)
		if err != nil {
			return Continuing, err
		}
		vm.registers[op.Load.Dst] = vm.memory[addr]
		vm.pc++
		return Continuing, nil

	case op.Store != nil:
		if err := vm.checkRegisters(op.Store.DstPtr, op.Store.Src); err != nil {
			return Continuing, err
		}
		addr, err := vm.pointer(op.Store.DstPtr)
		if err != nil {
			return Continuing, err
		}
		vm.memory[addr] = vm.registers[op.Store.Src]
		vm.pc++
		return Continuing, nil

	case op.Jump != nil:
		if err := vm.checkJump(op.Jump.Target); err != nil {
			return Continuing, err
		}
		vm.pc = op.Jump.Target
		return Continuing, nil

	case op.JumpIf != nil:
		if err := vm.checkRegister(op.JumpIf.Cond); err != nil {
			return Continuing, err
		}
		if err := vm.checkJump(op.JumpIf.Target); err != nil {
			return Continuing, err
		}
		if !vm.registers[op.JumpIf.Cond].IsZero() {
			vm.pc = op.JumpIf.Target
		} else {
			vm.pc++
		}
		return Continuing, nil

	case op.JumpIfNot != nil:
		if err := vm.checkRegister(op.JumpIfNot.Cond); err != nil {
			return Continuing, err
		}
		if err := vm.checkJump(op.JumpIfNot.Target); err != nil {
			return Continuing, err
		}
		if vm.registers[op.JumpIfNot.Cond].IsZero() {
			vm.pc = op.JumpIfNot.Target
		} else {
			vm.pc++
		}
		return Continuing, nil

	case op.Call != nil:
		if err := vm.checkJump(op.Call.Target); err != nil {
			return Continuing, err
		}
		vm.callStack = append(vm.callStack, vm.pc+1)
		vm.pc = op.Call.Target
		return CalledNestedBlock, nil

	case op.Return != nil:
		if len(vm.callStack) == 0 {
			return Continuing, OutOfBoundsJumpError{Target: -1, Length: len(vm.bytecode.Code)}
		}
		ret := vm.callStack[len(vm.callStack)-1]
		if err := vm.checkJump(ret); err != nil {
			return Continuing, err
		}
		vm.callStack = vm.callStack[:len(vm.callStack)-1]
		vm.pc = ret
		return Continuing, nil

	case op.CalldataCopy != nil:
		c := op.CalldataCopy
		if c.Offset < 0 || c.Size < 0 || c.Offset+c.Size > len(vm.calldata) {
			return Continuing, InvalidMemoryError{Index: c.Offset + c.Size, Size: len(vm.calldata)}
		}
		if c.Dst < 0 || c.Dst+c.Size > len(vm.memory) {
			return Continuing, InvalidMemoryError{Index: c.Dst + c.Size, Size: len(vm.memory)}
		}
		copy(vm.memory[c.Dst:c.Dst+c.Size], vm.calldata[c.Offset:c.Offset+c.Size])
		vm.pc++
		return Continuing, nil

	case op.Stop != nil:
		s := op.Stop
		if s.ReturnOffset < 0 || s.ReturnSize < 0 || s.ReturnOffset+s.ReturnSize > len(vm.memory) {
			return Continuing, InvalidMemoryError{Index: s.ReturnOffset + s.ReturnSize, Size: len(vm.memory)}
		}
		vm.outputs = append([]fr.Element(nil), vm.memory[s.ReturnOffset:s.ReturnOffset+s.ReturnSize]...)
		vm.done = true
		return BlockReturned, nil
	}
	return Continuing, fmt.Errorf("invalid opcode at pc %d", vm.pc)
}

func (vm *VM) pointer(reg int) (int, error) {
	p := vm.registers[reg]
	if !p.IsUint64() {
		return 0, InvalidMemoryError{Index: -1, Size: len(vm.memory)}
	}
	addr := int(p.Uint64())
	if addr < 0 || addr >= len(vm.memory) {
		return 0, InvalidMemoryError{Index: addr, Size: len(vm.memory)}
	}
	return addr, nil
}

func (vm *VM) checkRegister(i int) error {
	if i < 0 || i >= len(vm.registers) {
		return InvalidRegisterError{Index: i, Count: len(vm.registers)}
	}
	return nil
}

func (vm *VM) checkRegisters(is ...int) error {
	for _, i := range is {
		if err := vm.checkRegister(i); err != nil {
			return err
		}
	}
	return nil
}

func (vm *VM) checkJump(target int) error {
	if target < 0 || target >= len(vm.bytecode.Code) {
		return OutOfBoundsJumpError{Target: target, Length: len(vm.bytecode.Code)}
	}
	return nil
}
