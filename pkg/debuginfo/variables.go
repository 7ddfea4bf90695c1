package debuginfo

import (
	"github.com/manastech/noir/pkg/acir"
)

// VariableBinding ties a source-level variable name to its runtime
// storage: a witness of the outer tier, or a register of the active
// unconstrained block. Exactly one of Witness and Register is set.
type VariableBinding struct {
	Name     string        `cbor:"name"`
	Witness  *acir.Witness `cbor:"witness,omitempty"`
	Register *int          `cbor:"register,omitempty"`
}

// Scope is the variable visibility range of one function activation in the
// compiled program. Start and End are inclusive opcode address bounds.
type Scope struct {
	FunctionName string              `cbor:"function"`
	Params       []string            `cbor:"params,omitempty"`
	Start        acir.OpcodeLocation `cbor:"start"`
	End          acir.OpcodeLocation `cbor:"end"`
	Variables    []VariableBinding   `cbor:"variables,omitempty"`
}

// Contains reports whether the scope covers the given address.
func (s *Scope) Contains(loc acir.OpcodeLocation) bool {
	return !loc.Before(s.Start) && !s.End.Before(loc)
}

// ScopesAt returns the scopes covering an address, outermost first. The
// result is empty, not an error, when the table has no bindings for the
// address.
func (a *DebugArtifact) ScopesAt(loc acir.OpcodeLocation) []Scope {
	var out []Scope
	for _, s := range a.scopes {
		if s.Contains(loc) {
			out = append(out, s)
		}
	}
	return out
}

// VariableNames returns the names of every variable bound anywhere in the
// program. Used by the REPL for completion.
func (a *DebugArtifact) VariableNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, s := range a.scopes {
		for _, v := range s.Variables {
			if !seen[v.Name] {
				seen[v.Name] = true
				names = append(names, v.Name)
			}
		}
	}
	return names
}
