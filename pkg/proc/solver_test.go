package proc

import (
	"errors"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/manastech/noir/pkg/acir"
	"github.com/manastech/noir/pkg/brillig"
)

func elem(v int64) fr.Element {
	var e fr.Element
	e.SetInt64(v)
	return e
}

// assertDistinctProgram builds the classic x != y circuit:
//
//	opcode 0: _0 - _1 - _2 = 0          (derives the difference)
//	opcode 1: BRILLIG CALL inverse(_2) -> _3
//	opcode 2: _2*_3 - 1 = 0             (holds iff the difference is nonzero)
//
// The block computes the field inverse of its single input, which is zero
// for a zero input, making opcode 2 fail exactly when x == y.
func assertDistinctProgram() *acir.Program {
	one := elem(1)
	minusOne := elem(-1)
	return &acir.Program{
		Circuit: acir.Circuit{
			Opcodes: []acir.Opcode{
				{AssertZero: &acir.Expression{
					LinearCombinations: []acir.LinearTerm{
						{Coefficient: one, Witness: 0},
						{Coefficient: minusOne, Witness: 1},
						{Coefficient: minusOne, Witness: 2},
					},
				}},
				{BrilligCall: &acir.BrilligCall{
					ID:      0,
					Inputs:  []acir.Expression{*acir.WitnessExpression(2)},
					Outputs: []acir.Witness{3},
				}},
				{AssertZero: &acir.Expression{
					MulTerms: []acir.MulTerm{{Coefficient: one, WitnessLeft: 2, WitnessRight: 3}},
					Constant: minusOne,
				}},
			},
		},
		UnconstrainedFunctions: []brillig.Bytecode{inverseBlock()},
	}
}

func inverseBlock() brillig.Bytecode {
	return brillig.Bytecode{
		Code: []brillig.Opcode{
			{CalldataCopy: &brillig.CalldataCopy{Dst: 0, Offset: 0, Size: 1}},
			{Const: &brillig.Const{Dst: 0, Value: elem(1)}},
			{Const: &brillig.Const{Dst: 1, Value: elem(0)}},
			{Load: &brillig.Load{Dst: 2, SrcPtr: 1}},
			{BinaryFieldOp: &brillig.BinaryFieldOp{Op: brillig.BinaryDiv, Dst: 3, Lhs: 0, Rhs: 2}},
			{Store: &brillig.Store{DstPtr: 1, Src: 3}},
			{Stop: &brillig.Stop{ReturnOffset: 0, ReturnSize: 1}},
		},
		RegisterCount: 4,
		MemorySize:    1,
	}
}

func newTestSolver(x, y int64) *Solver {
	initial := acir.WitnessMap{0: elem(x), 1: elem(y)}
	return NewSolver(assertDistinctProgram(), acir.ArithmeticSolver{}, initial)
}

func runSolver(t *testing.T, s *Solver) error {
	t.Helper()
	for i := 0; i < 1000; i++ {
		if s.Done() {
			return nil
		}
		if err := s.StepOne(); err != nil {
			return err
		}
	}
	t.Fatal("solve did not terminate")
	return nil
}

func TestSolveToCompletion(t *testing.T) {
	s := newTestSolver(5, 3)
	if err := runSolver(t, s); err != nil {
		t.Fatalf("solve failed: %v", err)
	}
	if !s.Done() {
		t.Fatal("solver not done after completion")
	}

	diff, ok := s.ReadWitness(2)
	if !ok {
		t.Fatal("witness _2 not bound")
	}
	if want := elem(2); !diff.Equal(&want) {
		t.Errorf("witness _2 = %s, want 2", diff.String())
	}
	inv, ok := s.ReadWitness(3)
	if !ok {
		t.Fatal("witness _3 not bound")
	}
	var product fr.Element
	product.Mul(&diff, &inv)
	if one := elem(1); !product.Equal(&one) {
		t.Errorf("_2 * _3 = %s, want 1", product.String())
	}
}

func TestEnteringBlockIsOneUnit(t *testing.T) {
	s := newTestSolver(5, 3)
	if err := s.StepOne(); err != nil {
		t.Fatalf("step over gate failed: %v", err)
	}
	loc, _ := s.CurrentLocation()
	if want := acir.AcirLocation(1); loc != want {
		t.Fatalf("location = %s, want %s", loc, want)
	}

	// One unit enters the block without executing any instruction.
	if err := s.StepOne(); err != nil {
		t.Fatalf("entering block failed: %v", err)
	}
	loc, _ = s.CurrentLocation()
	if want := acir.BrilligLocation(1, 0); loc != want {
		t.Fatalf("location = %s, want %s", loc, want)
	}
	if !s.ExecutingBrillig() {
		t.Fatal("not executing brillig after entering block")
	}
	if _, err := s.RegisterValues(); !errors.Is(err, brillig.ErrRegistersNotAvailable) {
		t.Errorf("registers error = %v, want ErrRegistersNotAvailable", err)
	}

	// After one instruction the registers become observable.
	if err := s.StepOne(); err != nil {
		t.Fatalf("first block instruction failed: %v", err)
	}
	if _, err := s.RegisterValues(); err != nil {
		t.Errorf("registers unavailable after first instruction: %v", err)
	}
}

func TestStepOverBlock(t *testing.T) {
	s := newTestSolver(5, 3)
	if err := s.StepOne(); err != nil {
		t.Fatal(err)
	}
	if err := s.StepOverBlock(); err != nil {
		t.Fatalf("step over block failed: %v", err)
	}
	loc, _ := s.CurrentLocation()
	if want := acir.AcirLocation(2); loc != want {
		t.Errorf("location = %s, want %s", loc, want)
	}
	if s.ExecutingBrillig() {
		t.Error("still executing brillig after stepping over the block")
	}
	if _, ok := s.ReadWitness(3); !ok {
		t.Error("block output _3 not bound")
	}
}

func TestUnsatisfiedConstraintPreservesLocation(t *testing.T) {
	s := newTestSolver(4, 4)
	err := runSolver(t, s)
	if !errors.Is(err, acir.ErrUnsatisfiedConstraint) {
		t.Fatalf("error = %v, want ErrUnsatisfiedConstraint", err)
	}
	loc, ok := s.CurrentLocation()
	if !ok {
		t.Fatal("no current location after failure")
	}
	if want := acir.AcirLocation(2); loc != want {
		t.Errorf("failing location = %s, want %s", loc, want)
	}
	// The failing gate bound nothing.
	inv, _ := s.ReadWitness(3)
	if !inv.IsZero() {
		t.Errorf("witness _3 = %s, want 0", inv.String())
	}
	if !errors.Is(s.Failed(), acir.ErrUnsatisfiedConstraint) {
		t.Errorf("Failed() = %v, want ErrUnsatisfiedConstraint", s.Failed())
	}
}

func TestPredicateZeroSkipsBlock(t *testing.T) {
	program := assertDistinctProgram()
	zero := elem(0)
	program.Circuit.Opcodes[1].BrilligCall.Predicate = acir.ConstantExpression(zero)
	// Drop the final gate: with the block skipped its output is zero and
	// the inverse check cannot hold.
	program.Circuit.Opcodes = program.Circuit.Opcodes[:2]

	s := NewSolver(program, acir.ArithmeticSolver{}, acir.WitnessMap{0: elem(5), 1: elem(3)})
	if err := s.StepOne(); err != nil {
		t.Fatal(err)
	}
	// The disabled call is a single unit, no block entry.
	if err := s.StepOne(); err != nil {
		t.Fatalf("skipping disabled call failed: %v", err)
	}
	if !s.Done() {
		t.Fatal("solver not done")
	}
	out, ok := s.ReadWitness(3)
	if !ok {
		t.Fatal("output of disabled call not bound")
	}
	if !out.IsZero() {
		t.Errorf("output of disabled call = %s, want 0", out.String())
	}
}

func TestRestartResetsState(t *testing.T) {
	s := newTestSolver(5, 3)
	if err := runSolver(t, s); err != nil {
		t.Fatal(err)
	}
	s.Restart()

	if s.Done() {
		t.Fatal("solver done right after restart")
	}
	loc, _ := s.CurrentLocation()
	if want := acir.AcirLocation(0); loc != want {
		t.Errorf("location = %s, want %s", loc, want)
	}
	if _, ok := s.ReadWitness(2); ok {
		t.Error("derived witness _2 still bound after restart")
	}
	if err := runSolver(t, s); err != nil {
		t.Fatalf("re-run after restart failed: %v", err)
	}
}

func TestRestartDiscardsOverrides(t *testing.T) {
	s := newTestSolver(5, 3)
	prev := s.OverwriteWitness(1, elem(5))
	if prev == nil {
		t.Fatal("no previous value reported for overwritten witness")
	}
	if want := elem(3); !prev.Equal(&want) {
		t.Errorf("previous value = %s, want 3", prev.String())
	}

	// x == y now, so the solve fails.
	if err := runSolver(t, s); !errors.Is(err, acir.ErrUnsatisfiedConstraint) {
		t.Fatalf("error = %v, want ErrUnsatisfiedConstraint", err)
	}

	s.Restart()
	if s.Failed() != nil {
		t.Errorf("Failed() after restart = %v, want nil", s.Failed())
	}
	if err := runSolver(t, s); err != nil {
		t.Fatalf("solve after restart failed: %v", err)
	}
}

func TestCallStack(t *testing.T) {
	s := newTestSolver(5, 3)
	stack := s.CallStack()
	if len(stack) != 1 || stack[0] != acir.AcirLocation(0) {
		t.Errorf("initial call stack = %v, want [0]", stack)
	}

	if err := s.StepOne(); err != nil {
		t.Fatal(err)
	}
	if err := s.StepOne(); err != nil {
		t.Fatal(err)
	}
	stack = s.CallStack()
	if len(stack) != 1 || stack[0] != acir.BrilligLocation(1, 0) {
		t.Errorf("in-block call stack = %v, want [1.0]", stack)
	}
}
