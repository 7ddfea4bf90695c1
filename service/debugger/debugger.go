// Package debugger provides the session controller shared by the terminal
// and DAP front ends. It serializes all access to the underlying solver,
// runs it between pause points, and exposes flat api views of the
// execution state. One Debugger drives one solve session.
package debugger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/sirupsen/logrus"

	"github.com/manastech/noir/pkg/acir"
	"github.com/manastech/noir/pkg/brillig"
	"github.com/manastech/noir/pkg/debuginfo"
	"github.com/manastech/noir/pkg/logflags"
	"github.com/manastech/noir/pkg/proc"
	"github.com/manastech/noir/service/api"
)

// ErrUnknownBreakpointAddress is returned when a breakpoint command names
// an address outside the program.
var ErrUnknownBreakpointAddress = errors.New("no opcode at address")

// ErrNotExecutingBrillig is returned for register and memory commands
// while no unconstrained block is active.
var ErrNotExecutingBrillig = proc.ErrNotExecutingBrillig

// ErrRegistersNotAvailable is returned for register commands after the
// block has been entered but before its first instruction ran.
var ErrRegistersNotAvailable = brillig.ErrRegistersNotAvailable

// ErrInvalidState is returned when a command is issued in a session state
// that does not support it. It is never fatal; the session state is
// unchanged.
type ErrInvalidState struct {
	Command string
	State   api.SessionState
}

func (e *ErrInvalidState) Error() string {
	return fmt.Sprintf("%s not available in state %q", e.Command, e.State)
}

// Config holds everything needed to start a debug session.
type Config struct {
	Program *acir.Program
	// Symbols may be empty but not nil.
	Symbols *debuginfo.DebugArtifact
	// InitialWitness is the partial assignment execution starts from.
	InitialWitness acir.WitnessMap
}

// Debugger owns one debug session. All methods are safe for concurrent
// use; a mutex serializes command execution, so at most one command runs
// at a time and every command observes a quiescent solver.
type Debugger struct {
	config *Config

	mu          sync.Mutex
	solver      *proc.Solver
	breakpoints *proc.BreakpointRegistry
	state       api.SessionState
	hitBp       *proc.Breakpoint
	err         error
	final       acir.WitnessMap

	log *logrus.Entry
}

// New creates a session in the NotStarted state.
func New(config *Config) (*Debugger, error) {
	if config.Program == nil {
		return nil, errors.New("debugger requires a program")
	}
	if config.Symbols == nil {
		return nil, errors.New("debugger requires debug symbols")
	}
	d := &Debugger{
		config:      config,
		solver:      proc.NewSolver(config.Program, acir.ArithmeticSolver{}, config.InitialWitness),
		breakpoints: proc.NewBreakpointRegistry(),
		state:       api.NotStarted,
		log:         logflags.DebuggerLogger(),
	}
	return d, nil
}

// State returns a snapshot of the session.
func (d *Debugger) State() *api.DebuggerState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stateLocked()
}

func (d *Debugger) stateLocked() *api.DebuggerState {
	st := &api.DebuggerState{State: d.state}
	if loc, ok := d.solver.CurrentLocation(); ok && d.state != api.NotStarted {
		l := d.apiLocation(loc)
		st.Location = &l
	}
	if d.state == api.PausedAtBreakpoint && d.hitBp != nil {
		bp := d.apiBreakpoint(d.hitBp)
		st.Breakpoint = &bp
	}
	if d.err != nil {
		st.Err = d.err.Error()
	}
	return st
}

func (d *Debugger) apiLocation(loc acir.OpcodeLocation) api.Location {
	l := api.Location{Addr: loc}
	if src, ok := d.config.Symbols.PrimaryLocation(loc); ok {
		if f, ok := d.config.Symbols.File(src.File); ok {
			l.File = f.Path
		}
		l.Line = src.Line
	}
	return l
}

func (d *Debugger) apiBreakpoint(bp *proc.Breakpoint) api.Breakpoint {
	out := api.Breakpoint{ID: bp.ID, Addr: bp.Addr, TotalHitCount: bp.TotalHitCount}
	if src, ok := d.config.Symbols.PrimaryLocation(bp.Addr); ok {
		if f, ok := d.config.Symbols.File(src.File); ok {
			out.File = f.Path
		}
		out.Line = src.Line
	}
	return out
}

func (d *Debugger) checkPaused(command string) error {
	switch d.state {
	case api.PausedAtBreakpoint, api.PausedAfterStep:
		return nil
	}
	return &ErrInvalidState{Command: command, State: d.state}
}

// stepUnit advances the solver one unit and folds failure and completion
// into the session state. It reports whether execution reached a terminal
// state.
func (d *Debugger) stepUnit() bool {
	return d.settle(d.solver.StepOne())
}

// settle folds the outcome of a solver advance into the session state,
// reporting whether execution reached a terminal state.
func (d *Debugger) settle(err error) bool {
	if err != nil {
		d.log.Errorf("execution failed: %v", err)
		d.state = api.Failed
		d.err = err
		return true
	}
	if d.solver.Done() {
		d.log.Debug("execution finished")
		d.state = api.Finished
		d.final = d.solver.WitnessMap().Copy()
		return true
	}
	return false
}

// pauseAt records a breakpoint pause at the current location, if a
// breakpoint is set there.
func (d *Debugger) pauseAtBreakpoint() bool {
	loc, ok := d.solver.CurrentLocation()
	if !ok {
		return false
	}
	bp, ok := d.breakpoints.At(loc)
	if !ok {
		return false
	}
	bp.TotalHitCount++
	d.state = api.PausedAtBreakpoint
	d.hitBp = bp
	d.log.Debugf("hit %s", bp)
	return true
}

func (d *Debugger) depth() int {
	if vm := d.solver.VM(); vm != nil {
		return 1 + len(vm.CallStack())
	}
	return 0
}

// Start begins execution, pausing before the first opcode. A program with
// no opcodes finishes immediately.
func (d *Debugger) Start() (*api.DebuggerState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != api.NotStarted {
		return nil, &ErrInvalidState{Command: "start", State: d.state}
	}
	if d.solver.Done() {
		d.state = api.Finished
		d.final = d.solver.WitnessMap().Copy()
		return d.stateLocked(), nil
	}
	d.state = api.PausedAfterStep
	return d.stateLocked(), nil
}

// StepInstruction executes exactly one unit. It always results in a step
// pause, even when the reached address has a breakpoint.
func (d *Debugger) StepInstruction() (*api.DebuggerState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkPaused("step"); err != nil {
		return nil, err
	}
	if !d.stepUnit() {
		d.state = api.PausedAfterStep
	}
	return d.stateLocked(), nil
}

// StepOpcode advances execution to the next outer opcode, running any
// block invocation in between to completion. Breakpoints inside the block
// take precedence and pause early.
func (d *Debugger) StepOpcode() (*api.DebuggerState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkPaused("step"); err != nil {
		return nil, err
	}
	// With no breakpoints to watch for, the whole block invocation runs as
	// one solver call.
	if d.breakpoints.Len() == 0 {
		if !d.settle(d.solver.StepOverBlock()) {
			d.state = api.PausedAfterStep
		}
		return d.stateLocked(), nil
	}
	start, _ := d.solver.CurrentLocation()
	for {
		if d.stepUnit() {
			return d.stateLocked(), nil
		}
		if d.pauseAtBreakpoint() {
			return d.stateLocked(), nil
		}
		if loc, ok := d.solver.CurrentLocation(); ok && loc.AcirIndex != start.AcirIndex {
			d.state = api.PausedAfterStep
			return d.stateLocked(), nil
		}
	}
}

// Step advances execution to the next source line, descending into block
// invocations and nested calls. Addresses without source mapping are
// skipped. Breakpoints take precedence.
func (d *Debugger) Step() (*api.DebuggerState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkPaused("step"); err != nil {
		return nil, err
	}
	return d.runToNewLine(-1), nil
}

// Next advances execution to the next source line without descending into
// calls deeper than the current frame. Breakpoints take precedence even
// inside deeper frames.
func (d *Debugger) Next() (*api.DebuggerState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkPaused("next"); err != nil {
		return nil, err
	}
	return d.runToNewLine(d.depth()), nil
}

// runToNewLine steps until execution reaches an address whose primary
// source line differs from the starting one. maxDepth < 0 disables the
// depth filter; otherwise only frames at or above maxDepth are candidate
// stops.
func (d *Debugger) runToNewLine(maxDepth int) *api.DebuggerState {
	var startSrc debuginfo.SourceLocation
	startMapped := false
	if loc, ok := d.solver.CurrentLocation(); ok {
		startSrc, startMapped = d.config.Symbols.PrimaryLocation(loc)
	}
	for {
		if d.stepUnit() {
			return d.stateLocked()
		}
		if d.pauseAtBreakpoint() {
			return d.stateLocked()
		}
		if maxDepth >= 0 && d.depth() > maxDepth {
			continue
		}
		loc, _ := d.solver.CurrentLocation()
		src, ok := d.config.Symbols.PrimaryLocation(loc)
		if !ok {
			continue
		}
		if !startMapped || src != startSrc {
			d.state = api.PausedAfterStep
			return d.stateLocked()
		}
	}
}

// StepOut runs until the current frame returns, then pauses at the next
// source-mapped address. Outside a block it behaves like Continue.
func (d *Debugger) StepOut() (*api.DebuggerState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkPaused("out"); err != nil {
		return nil, err
	}
	startDepth := d.depth()
	for {
		if d.stepUnit() {
			return d.stateLocked(), nil
		}
		if d.pauseAtBreakpoint() {
			return d.stateLocked(), nil
		}
		if startDepth == 0 || d.depth() >= startDepth {
			continue
		}
		loc, _ := d.solver.CurrentLocation()
		if _, ok := d.config.Symbols.PrimaryLocation(loc); !ok {
			continue
		}
		d.state = api.PausedAfterStep
		return d.stateLocked(), nil
	}
}

// Continue resumes execution until a breakpoint, the end of the program,
// or a failure. It always makes progress: a breakpoint at the paused
// address does not re-trigger without executing at least one unit.
func (d *Debugger) Continue() (*api.DebuggerState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkPaused("continue"); err != nil {
		return nil, err
	}
	d.state = api.Running
	for {
		if d.stepUnit() {
			return d.stateLocked(), nil
		}
		if d.pauseAtBreakpoint() {
			return d.stateLocked(), nil
		}
	}
}

// Restart rewinds the session to a fresh pause before the first opcode.
// Breakpoints and their identities survive; witness overrides and any
// failure are discarded. Valid in every state except NotStarted.
func (d *Debugger) Restart() (*api.DebuggerState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == api.NotStarted {
		return nil, &ErrInvalidState{Command: "restart", State: d.state}
	}
	d.solver.Restart()
	d.err = nil
	d.hitBp = nil
	d.final = nil
	if d.solver.Done() {
		d.state = api.Finished
		d.final = d.solver.WitnessMap().Copy()
	} else {
		d.state = api.PausedAfterStep
	}
	d.log.Debug("session restarted")
	return d.stateLocked(), nil
}

// CreateBreakpoint sets a breakpoint at an opcode address. Setting an
// address that already has one returns the existing breakpoint.
func (d *Debugger) CreateBreakpoint(addr acir.OpcodeLocation) (api.Breakpoint, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.config.Program.ValidLocation(addr) {
		return api.Breakpoint{}, fmt.Errorf("%w: %s", ErrUnknownBreakpointAddress, addr)
	}
	bp, created := d.breakpoints.Set(addr)
	if created {
		d.log.Debugf("created %s", bp)
	}
	return d.apiBreakpoint(bp), nil
}

// CreateBreakpointAtLine resolves a source line to the first opcode
// mapped to it and sets a breakpoint there.
func (d *Debugger) CreateBreakpointAtLine(file debuginfo.FileID, line int) (api.Breakpoint, error) {
	d.mu.Lock()
	addr, ok := d.config.Symbols.FindOpcodeForLine(file, line)
	d.mu.Unlock()
	if !ok {
		return api.Breakpoint{}, fmt.Errorf("%w: no opcode for line %d", ErrUnknownBreakpointAddress, line)
	}
	return d.CreateBreakpoint(addr)
}

// ClearBreakpoint removes the breakpoint at an address.
func (d *Debugger) ClearBreakpoint(addr acir.OpcodeLocation) (api.Breakpoint, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	bp, ok := d.breakpoints.Clear(addr)
	if !ok {
		return api.Breakpoint{}, fmt.Errorf("%w: %s", ErrUnknownBreakpointAddress, addr)
	}
	d.log.Debugf("cleared %s", bp)
	return d.apiBreakpoint(bp), nil
}

// ClearAllBreakpoints removes every breakpoint.
func (d *Debugger) ClearAllBreakpoints() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.breakpoints.ClearAll()
}

// Breakpoints returns the active breakpoints sorted by address.
func (d *Debugger) Breakpoints() []api.Breakpoint {
	d.mu.Lock()
	defer d.mu.Unlock()
	bps := d.breakpoints.All()
	out := make([]api.Breakpoint, len(bps))
	for i, bp := range bps {
		out[i] = d.apiBreakpoint(bp)
	}
	return out
}

// ReadWitness returns the value bound to a witness, if any.
func (d *Debugger) ReadWitness(w acir.Witness) (fr.Element, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.solver.ReadWitness(w)
}

// OverwriteWitness binds a witness to a value mid-session, returning the
// previous binding if there was one. Only allowed while paused.
func (d *Debugger) OverwriteWitness(w acir.Witness, value fr.Element) (*fr.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkPaused("witness update"); err != nil {
		return nil, err
	}
	return d.solver.OverwriteWitness(w, value), nil
}

// WitnessAssignments returns every bound witness in index order.
func (d *Debugger) WitnessAssignments() []api.WitnessAssignment {
	d.mu.Lock()
	defer d.mu.Unlock()
	wm := d.solver.WitnessMap()
	out := make([]api.WitnessAssignment, 0, len(wm))
	for _, w := range wm.Indices() {
		v, _ := wm.Get(w)
		out = append(out, api.WitnessAssignment{Index: w, Value: v.String()})
	}
	return out
}

// FinalWitness returns a copy of the witness map of a finished execution.
func (d *Debugger) FinalWitness() (acir.WitnessMap, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != api.Finished {
		return nil, &ErrInvalidState{Command: "final witness", State: d.state}
	}
	return d.final.Copy(), nil
}

// Registers returns the register file of the active block.
func (d *Debugger) Registers() ([]fr.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.solver.RegisterValues()
}

// SetRegister overwrites a register of the active block. Only allowed
// while paused.
func (d *Debugger) SetRegister(i int, v fr.Element) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkPaused("register update"); err != nil {
		return err
	}
	return d.solver.WriteRegister(i, v)
}

// Memory returns the memory of the active block.
func (d *Debugger) Memory() ([]fr.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.solver.MemoryValues()
}

// SetMemory overwrites a memory cell of the active block. Only allowed
// while paused.
func (d *Debugger) SetMemory(i int, v fr.Element) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkPaused("memory update"); err != nil {
		return err
	}
	return d.solver.WriteMemory(i, v)
}

// Variables resolves the source-level variables visible at the paused
// address. Bindings whose storage holds no value yet are reported as
// unbound rather than omitted.
func (d *Debugger) Variables() []api.Variable {
	d.mu.Lock()
	defer d.mu.Unlock()
	loc, ok := d.solver.CurrentLocation()
	if !ok {
		return nil
	}
	var regs []fr.Element
	if d.solver.ExecutingBrillig() {
		regs, _ = d.solver.RegisterValues()
	}
	var out []api.Variable
	for _, scope := range d.config.Symbols.ScopesAt(loc) {
		for _, b := range scope.Variables {
			v := api.Variable{Name: b.Name, Unbound: true}
			switch {
			case b.Witness != nil:
				if val, bound := d.solver.ReadWitness(*b.Witness); bound {
					v.Value = val.String()
					v.Unbound = false
				}
			case b.Register != nil:
				if regs != nil && *b.Register < len(regs) {
					v.Value = regs[*b.Register].String()
					v.Unbound = false
				}
			}
			out = append(out, v)
		}
	}
	return out
}

// Stacktrace returns the active frames, innermost first.
func (d *Debugger) Stacktrace() []api.StackFrame {
	d.mu.Lock()
	defer d.mu.Unlock()
	addrs := d.solver.CallStack()
	frames := make([]api.StackFrame, 0, len(addrs))
	for i := len(addrs) - 1; i >= 0; i-- {
		frame := api.StackFrame{
			Index:    len(addrs) - 1 - i,
			Location: d.apiLocation(addrs[i]),
		}
		if scopes := d.config.Symbols.ScopesAt(addrs[i]); len(scopes) > 0 {
			frame.Function = scopes[len(scopes)-1].FunctionName
		}
		frames = append(frames, frame)
	}
	return frames
}

// Opcodes lists the program's outer opcodes and, for the block invocation
// currently in flight, its instructions. The opcode execution is paused at
// is marked current.
func (d *Debugger) Opcodes() []api.OpcodeInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	current, executing := d.solver.CurrentLocation()
	var out []api.OpcodeInfo
	for i := range d.config.Program.Circuit.Opcodes {
		op := &d.config.Program.Circuit.Opcodes[i]
		addr := acir.AcirLocation(i)
		out = append(out, api.OpcodeInfo{
			Addr:       addr,
			Text:       op.String(),
			Current:    executing && !current.InBrillig && current.AcirIndex == i,
			Breakpoint: d.breakpoints.Has(addr),
		})
		if op.BrilligCall == nil || !executing || !current.InBrillig || current.AcirIndex != i {
			continue
		}
		bytecode, err := d.config.Program.Bytecode(op.BrilligCall.ID)
		if err != nil {
			continue
		}
		for j := range bytecode.Code {
			addr := acir.BrilligLocation(i, j)
			out = append(out, api.OpcodeInfo{
				Addr:       addr,
				Text:       bytecode.Code[j].String(),
				Current:    current.BrilligIndex == j,
				Breakpoint: d.breakpoints.Has(addr),
			})
		}
	}
	return out
}

// Symbols returns the session's debug symbol table.
func (d *Debugger) Symbols() *debuginfo.DebugArtifact {
	return d.config.Symbols
}

// Error returns the failure that ended execution, if any.
func (d *Debugger) Error() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}
