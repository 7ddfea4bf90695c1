// Package proc drives a concrete solve of a compiled circuit one unit at a
// time. It owns the witness map and the outer opcode cursor, delegating to
// a Brillig VM while an unconstrained block is active. The session layer
// in service/debugger builds the pause/resume protocol on top of it.
package proc

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/sirupsen/logrus"

	"github.com/manastech/noir/pkg/acir"
	"github.com/manastech/noir/pkg/brillig"
	"github.com/manastech/noir/pkg/logflags"
)

// ErrExecutionFinished is returned by stepping operations once the program
// is exhausted.
var ErrExecutionFinished = errors.New("execution finished")

// ErrNotExecutingBrillig is returned for register/memory access while no
// unconstrained block is active.
var ErrNotExecutingBrillig = errors.New("not executing a Brillig block")

// Solver advances an ACIR solve one unit at a time. A unit is either one
// gate opcode, the transition into an unconstrained block, or one Brillig
// instruction. The two tiers are mutually exclusive: vm is non-nil exactly
// while a block invocation is in flight.
type Solver struct {
	program *acir.Program
	gates   acir.GateSolver
	initial acir.WitnessMap

	witness   acir.WitnessMap
	acirIndex int
	vm        *brillig.VM
	failed    error

	log *logrus.Entry
}

// NewSolver prepares a solve of program from the given initial partial
// assignment. The initial map is copied; the caller keeps ownership of its
// copy.
func NewSolver(program *acir.Program, gates acir.GateSolver, initial acir.WitnessMap) *Solver {
	return &Solver{
		program: program,
		gates:   gates,
		initial: initial.Copy(),
		witness: initial.Copy(),
		log:     logflags.SolverLogger(),
	}
}

// Program returns the program being solved.
func (s *Solver) Program() *acir.Program { return s.program }

// Done reports whether every outer opcode has been executed.
func (s *Solver) Done() bool {
	return s.acirIndex >= len(s.program.Circuit.Opcodes)
}

// CurrentLocation returns the address of the next unit to execute. The
// second result is false once the program is exhausted.
func (s *Solver) CurrentLocation() (acir.OpcodeLocation, bool) {
	if s.Done() {
		return acir.OpcodeLocation{}, false
	}
	if s.vm != nil {
		return acir.BrilligLocation(s.acirIndex, s.vm.PC()), true
	}
	return acir.AcirLocation(s.acirIndex), true
}

// ExecutingBrillig reports whether an unconstrained block is active.
func (s *Solver) ExecutingBrillig() bool { return s.vm != nil }

// VM returns the active Brillig VM, or nil outside a block.
func (s *Solver) VM() *brillig.VM { return s.vm }

// WitnessMap returns the live witness map. Callers must not mutate it
// directly; overrides go through OverwriteWitness.
func (s *Solver) WitnessMap() acir.WitnessMap { return s.witness }

// ReadWitness returns the value bound to w, if any.
func (s *Solver) ReadWitness(w acir.Witness) (fr.Element, bool) {
	return s.witness.Get(w)
}

// OverwriteWitness binds w to value, returning the previous binding if
// there was one. The override is visible to all subsequent opcode
// evaluations.
func (s *Solver) OverwriteWitness(w acir.Witness, value fr.Element) *fr.Element {
	s.log.Debugf("overwriting witness %s", w)
	return s.witness.Insert(w, value)
}

// StepOne executes exactly one unit. At a Brillig call opcode the first
// unit is the transition into the block (the VM is created but has not
// executed its first instruction); subsequent units are single VM
// instructions until the block returns, which also completes the call
// opcode. A failing step applies none of its effects.
func (s *Solver) StepOne() error {
	err := s.stepOne()
	if err != nil && err != ErrExecutionFinished {
		s.failed = err
	}
	return err
}

// Failed returns the error that aborted the solve, if any. Only a restart
// clears it.
func (s *Solver) Failed() error { return s.failed }

func (s *Solver) stepOne() error {
	if s.Done() {
		return ErrExecutionFinished
	}
	if s.vm != nil {
		return s.stepBrillig()
	}
	op := &s.program.Circuit.Opcodes[s.acirIndex]
	switch {
	case op.AssertZero != nil:
		if err := s.gates.SolveGate(op.AssertZero, s.witness); err != nil {
			return fmt.Errorf("opcode %d: %w", s.acirIndex, err)
		}
		s.acirIndex++
		return nil
	case op.BrilligCall != nil:
		return s.enterBrillig(op.BrilligCall)
	}
	return fmt.Errorf("opcode %d: invalid opcode", s.acirIndex)
}

func (s *Solver) enterBrillig(call *acir.BrilligCall) error {
	if call.Predicate != nil {
		pred, err := call.Predicate.Evaluate(s.witness)
		if err != nil {
			return fmt.Errorf("opcode %d predicate: %w", s.acirIndex, err)
		}
		if pred.IsZero() {
			// Disabled call: outputs are zero, the block never runs.
			var zero fr.Element
			for _, w := range call.Outputs {
				s.witness.Insert(w, zero)
			}
			s.acirIndex++
			return nil
		}
	}
	calldata := make([]fr.Element, 0, len(call.Inputs))
	for i := range call.Inputs {
		v, err := call.Inputs[i].Evaluate(s.witness)
		if err != nil {
			return fmt.Errorf("opcode %d input %d: %w", s.acirIndex, i, err)
		}
		calldata = append(calldata, v)
	}
	bytecode, err := s.program.Bytecode(call.ID)
	if err != nil {
		return fmt.Errorf("opcode %d: %w", s.acirIndex, err)
	}
	s.log.Debugf("entering brillig function %d at opcode %d", call.ID, s.acirIndex)
	s.vm = brillig.NewVM(bytecode, calldata)
	return nil
}

func (s *Solver) stepBrillig() error {
	status, err := s.vm.StepOne()
	if err != nil {
		return fmt.Errorf("opcode %d.%d: %w", s.acirIndex, s.vm.PC(), err)
	}
	if status != brillig.BlockReturned {
		return nil
	}
	call := s.program.Circuit.Opcodes[s.acirIndex].BrilligCall
	outputs := s.vm.Outputs()
	if len(outputs) != len(call.Outputs) {
		return fmt.Errorf("opcode %d: %w: block returned %d values for %d outputs",
			s.acirIndex, acir.ErrUnsatisfiedConstraint, len(outputs), len(call.Outputs))
	}
	for i, w := range call.Outputs {
		if prev, bound := s.witness.Get(w); bound && !prev.Equal(&outputs[i]) {
			return fmt.Errorf("opcode %d: %w: output witness %s already bound to a different value",
				s.acirIndex, acir.ErrUnsatisfiedConstraint, w)
		}
	}
	for i, w := range call.Outputs {
		s.witness.Insert(w, outputs[i])
	}
	s.log.Debugf("brillig block at opcode %d returned %d outputs", s.acirIndex, len(outputs))
	s.vm = nil
	s.acirIndex++
	return nil
}

// StepOverBlock runs the pending or active block invocation to completion
// in one call, without intermediate pause points. At a gate opcode it is
// equivalent to StepOne.
func (s *Solver) StepOverBlock() error {
	if s.Done() {
		return ErrExecutionFinished
	}
	start := s.acirIndex
	for {
		if err := s.StepOne(); err != nil {
			return err
		}
		if s.vm == nil || s.acirIndex != start {
			return nil
		}
	}
}

// Restart discards all solver state, rebuilding the witness map from the
// initial assignment and resetting the cursor to the first opcode.
func (s *Solver) Restart() {
	s.log.Debug("restarting solve")
	s.witness = s.initial.Copy()
	s.acirIndex = 0
	s.vm = nil
	s.failed = nil
}

// RegisterValues returns the active block's register file.
func (s *Solver) RegisterValues() ([]fr.Element, error) {
	if s.vm == nil {
		return nil, ErrNotExecutingBrillig
	}
	return s.vm.Registers()
}

// MemoryValues returns the active block's memory.
func (s *Solver) MemoryValues() ([]fr.Element, error) {
	if s.vm == nil {
		return nil, ErrNotExecutingBrillig
	}
	return s.vm.Memory(), nil
}

// WriteRegister overwrites a register of the active block.
func (s *Solver) WriteRegister(i int, v fr.Element) error {
	if s.vm == nil {
		return ErrNotExecutingBrillig
	}
	return s.vm.WriteRegister(i, v)
}

// WriteMemory overwrites a memory cell of the active block.
func (s *Solver) WriteMemory(i int, v fr.Element) error {
	if s.vm == nil {
		return ErrNotExecutingBrillig
	}
	return s.vm.WriteMemory(i, v)
}

// CallStack returns the addresses of the active frames, outermost first.
// Outside a block it is just the current outer opcode; inside, the outer
// call opcode frames of the VM call stack followed by the current
// instruction.
func (s *Solver) CallStack() []acir.OpcodeLocation {
	loc, ok := s.CurrentLocation()
	if !ok {
		return nil
	}
	if s.vm == nil {
		return []acir.OpcodeLocation{loc}
	}
	frames := []acir.OpcodeLocation{}
	for _, ret := range s.vm.CallStack() {
		// The frame's call site is the instruction before the return
		// address.
		frames = append(frames, acir.BrilligLocation(s.acirIndex, ret-1))
	}
	return append(frames, loc)
}
