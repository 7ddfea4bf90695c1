// Package api defines the types the session controller exposes to its
// front ends. They are flat, serializable views over the execution state,
// decoupled from the solver's internal representation.
package api

import (
	"github.com/manastech/noir/pkg/acir"
)

// SessionState names the phase of the debug session state machine.
type SessionState string

const (
	// NotStarted means execution has not begun.
	NotStarted SessionState = "not started"
	// Running means execution is advancing between pause points.
	Running SessionState = "running"
	// PausedAtBreakpoint means execution stopped at a breakpoint address.
	PausedAtBreakpoint SessionState = "paused at breakpoint"
	// PausedAfterStep means execution stopped because a stepping command
	// completed.
	PausedAfterStep SessionState = "paused"
	// Finished means every opcode executed successfully.
	Finished SessionState = "finished"
	// Failed means execution hit a fatal error.
	Failed SessionState = "failed"
)

// Location describes where execution is paused, both as an opcode address
// and, when symbols cover it, as a source position.
type Location struct {
	Addr acir.OpcodeLocation `json:"addr"`
	File string              `json:"file,omitempty"`
	Line int                 `json:"line,omitempty"`
}

// DebuggerState is a snapshot of the session after a command completes.
type DebuggerState struct {
	State SessionState `json:"state"`
	// Location is the address of the next unit to execute. Nil when the
	// session is not started or no longer executing.
	Location *Location `json:"location,omitempty"`
	// Breakpoint is set when State is PausedAtBreakpoint.
	Breakpoint *Breakpoint `json:"breakpoint,omitempty"`
	// Err describes the failure when State is Failed.
	Err string `json:"error,omitempty"`
}

// Exited reports whether the session reached a terminal state.
func (s *DebuggerState) Exited() bool {
	return s.State == Finished || s.State == Failed
}

// Breakpoint is the view of an active breakpoint.
type Breakpoint struct {
	ID            int                 `json:"id"`
	Addr          acir.OpcodeLocation `json:"addr"`
	File          string              `json:"file,omitempty"`
	Line          int                 `json:"line,omitempty"`
	TotalHitCount uint64              `json:"totalHitCount"`
}

// WitnessAssignment is one bound witness of the outer tier.
type WitnessAssignment struct {
	Index acir.Witness `json:"index"`
	Value string       `json:"value"`
}

// Variable is one source-level variable resolved at the paused address. A
// variable whose storage holds no value yet has Unbound set.
type Variable struct {
	Name    string `json:"name"`
	Value   string `json:"value"`
	Unbound bool   `json:"unbound,omitempty"`
}

// StackFrame is one activation frame of the paused execution, outermost
// last.
type StackFrame struct {
	Index    int      `json:"index"`
	Function string   `json:"function"`
	Location Location `json:"location"`
}

// OpcodeInfo is one line of an opcode listing.
type OpcodeInfo struct {
	Addr acir.OpcodeLocation `json:"addr"`
	Text string              `json:"text"`
	// Current marks the opcode execution is paused at.
	Current bool `json:"current,omitempty"`
	// Breakpoint marks opcodes with an active breakpoint.
	Breakpoint bool `json:"breakpoint,omitempty"`
}
