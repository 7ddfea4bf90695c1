package brillig

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func elem(v int64) fr.Element {
	var e fr.Element
	e.SetInt64(v)
	return e
}

// inverseBlock computes the field inverse of its single calldata value.
func inverseBlock() *Bytecode {
	return &Bytecode{
		Code: []Opcode{
			{CalldataCopy: &CalldataCopy{Dst: 0, Offset: 0, Size: 1}},
			{Const: &Const{Dst: 0, Value: elem(1)}},
			{Const: &Const{Dst: 1, Value: elem(0)}},
			{Load: &Load{Dst: 2, SrcPtr: 1}},
			{BinaryFieldOp: &BinaryFieldOp{Op: BinaryDiv, Dst: 3, Lhs: 0, Rhs: 2}},
			{Store: &Store{DstPtr: 1, Src: 3}},
			{Stop: &Stop{ReturnOffset: 0, ReturnSize: 1}},
		},
		RegisterCount: 4,
		MemorySize:    1,
	}
}

func runToCompletion(t *testing.T, vm *VM) []fr.Element {
	t.Helper()
	for i := 0; i < 1000; i++ {
		status, err := vm.StepOne()
		require.NoError(t, err)
		if status == BlockReturned {
			return vm.Outputs()
		}
	}
	t.Fatal("block did not terminate")
	return nil
}

func TestVMComputesInverse(t *testing.T) {
	vm := NewVM(inverseBlock(), []fr.Element{elem(5)})
	outputs := runToCompletion(t, vm)
	require.Len(t, outputs, 1)

	var product fr.Element
	five := elem(5)
	product.Mul(&outputs[0], &five)
	assert.Equal(t, elem(1), product)
}

func TestVMDivisionByZeroYieldsZero(t *testing.T) {
	vm := NewVM(inverseBlock(), []fr.Element{elem(0)})
	outputs := runToCompletion(t, vm)
	require.Len(t, outputs, 1)
	assert.True(t, outputs[0].IsZero())
}

func TestVMRegistersNotAvailableBeforeFirstStep(t *testing.T) {
	vm := NewVM(inverseBlock(), []fr.Element{elem(5)})

	_, err := vm.Registers()
	require.ErrorIs(t, err, ErrRegistersNotAvailable)
	_, err = vm.ReadRegister(0)
	require.ErrorIs(t, err, ErrRegistersNotAvailable)

	_, err = vm.StepOne()
	require.NoError(t, err)
	regs, err := vm.Registers()
	require.NoError(t, err)
	assert.Len(t, regs, 4)
}

func TestVMInvalidRegisterFault(t *testing.T) {
	bytecode := &Bytecode{
		Code:          []Opcode{{Const: &Const{Dst: 9, Value: elem(1)}}},
		RegisterCount: 2,
	}
	vm := NewVM(bytecode, nil)
	_, err := vm.StepOne()
	var regErr InvalidRegisterError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, 9, regErr.Index)
	assert.Equal(t, 2, regErr.Count)
	// The faulting step mutated nothing.
	assert.Equal(t, 0, vm.PC())
}

func TestVMInvalidMemoryFault(t *testing.T) {
	bytecode := &Bytecode{
		Code: []Opcode{
			{Const: &Const{Dst: 0, Value: elem(5)}},
			{Load: &Load{Dst: 1, SrcPtr: 0}},
		},
		RegisterCount: 2,
		MemorySize:    2,
	}
	vm := NewVM(bytecode, nil)
	_, err := vm.StepOne()
	require.NoError(t, err)
	_, err = vm.StepOne()
	var memErr InvalidMemoryError
	require.ErrorAs(t, err, &memErr)
	assert.Equal(t, 5, memErr.Index)
	assert.Equal(t, 1, vm.PC())
}

func TestVMOutOfBoundsJump(t *testing.T) {
	bytecode := &Bytecode{
		Code: []Opcode{{Jump: &Jump{Target: 42}}},
	}
	vm := NewVM(bytecode, nil)
	_, err := vm.StepOne()
	var jumpErr OutOfBoundsJumpError
	require.ErrorAs(t, err, &jumpErr)
	assert.Equal(t, 42, jumpErr.Target)
	assert.Equal(t, 0, vm.PC())
}

func TestVMReturnWithoutCallFaults(t *testing.T) {
	bytecode := &Bytecode{Code: []Opcode{{Return: &Return{}}}}
	vm := NewVM(bytecode, nil)
	_, err := vm.StepOne()
	var jumpErr OutOfBoundsJumpError
	require.ErrorAs(t, err, &jumpErr)
}

func TestVMCallAndReturn(t *testing.T) {
	bytecode := &Bytecode{
		Code: []Opcode{
			{Call: &Call{Target: 2}},
			{Stop: &Stop{}},
			{Const: &Const{Dst: 0, Value: elem(7)}},
			{Return: &Return{}},
		},
		RegisterCount: 1,
	}
	vm := NewVM(bytecode, nil)

	status, err := vm.StepOne()
	require.NoError(t, err)
	assert.Equal(t, CalledNestedBlock, status)
	assert.Equal(t, []int{1}, vm.CallStack())
	assert.Equal(t, 2, vm.PC())

	_, err = vm.StepOne()
	require.NoError(t, err)
	status, err = vm.StepOne()
	require.NoError(t, err)
	assert.Equal(t, Continuing, status)
	assert.Empty(t, vm.CallStack())
	assert.Equal(t, 1, vm.PC())

	status, err = vm.StepOne()
	require.NoError(t, err)
	assert.Equal(t, BlockReturned, status)
	assert.True(t, vm.Done())
}

func TestVMConditionalJumps(t *testing.T) {
	// r0 = 0; skip to 3 via JumpIfNot; r1 stays 0.
	bytecode := &Bytecode{
		Code: []Opcode{
			{Const: &Const{Dst: 0, Value: elem(0)}},
			{JumpIfNot: &JumpIfNot{Cond: 0, Target: 3}},
			{Const: &Const{Dst: 1, Value: elem(9)}},
			{Stop: &Stop{}},
		},
		RegisterCount: 2,
	}
	vm := NewVM(bytecode, nil)
	_, err := vm.StepOne()
	require.NoError(t, err)
	_, err = vm.StepOne()
	require.NoError(t, err)
	assert.Equal(t, 3, vm.PC())
	r1, err := vm.ReadRegister(1)
	require.NoError(t, err)
	assert.True(t, r1.IsZero())
}

func TestVMComparisonOps(t *testing.T) {
	bytecode := &Bytecode{
		Code: []Opcode{
			{Const: &Const{Dst: 0, Value: elem(3)}},
			{Const: &Const{Dst: 1, Value: elem(7)}},
			{BinaryFieldOp: &BinaryFieldOp{Op: BinaryLessThan, Dst: 2, Lhs: 0, Rhs: 1}},
			{BinaryFieldOp: &BinaryFieldOp{Op: BinaryEquals, Dst: 3, Lhs: 0, Rhs: 1}},
			{Stop: &Stop{}},
		},
		RegisterCount: 4,
	}
	vm := NewVM(bytecode, nil)
	for i := 0; i < 4; i++ {
		_, err := vm.StepOne()
		require.NoError(t, err)
	}
	lt, err := vm.ReadRegister(2)
	require.NoError(t, err)
	assert.Equal(t, elem(1), lt)
	eq, err := vm.ReadRegister(3)
	require.NoError(t, err)
	assert.True(t, eq.IsZero())
}
