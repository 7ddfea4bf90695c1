// Package debuginfo holds the compiler-emitted debug symbols of a circuit:
// the association between opcode addresses and source spans, the source
// file map, and the variable-to-witness bindings used for variable display.
// The tables are built once and read-only for the debugger's lifetime.
package debuginfo

import (
	"sort"
	"strings"

	"github.com/manastech/noir/pkg/acir"
)

// FileID identifies a source file in the artifact's file map.
type FileID uint32

// SourceLocation is a position in a source file.
type SourceLocation struct {
	File   FileID `cbor:"file"`
	Line   int    `cbor:"line"`
	Column int    `cbor:"column"`
}

// SourceFile is one entry of the artifact's file map. The full source text
// travels with the artifact so the debugger can list code without access
// to the original project tree.
type SourceFile struct {
	Path   string `cbor:"path"`
	Source string `cbor:"source"`
}

// RawSymbols is the symbol table as emitted by the compiler, before
// indexing. Locations for one opcode address are ordered innermost first,
// reflecting inlining context.
type RawSymbols struct {
	Locations map[acir.OpcodeLocation][]SourceLocation `cbor:"locations"`
	Files     map[FileID]SourceFile                    `cbor:"files"`
	Scopes    []Scope                                  `cbor:"scopes,omitempty"`
}

// DebugArtifact is the indexed, immutable form of the symbol table.
type DebugArtifact struct {
	locations map[acir.OpcodeLocation][]SourceLocation
	ordered   []acir.OpcodeLocation
	files     map[FileID]SourceFile
	scopes    []Scope
}

// Build indexes a raw symbol table. It is total over every address: an
// address absent from the table maps to the empty location list, never an
// error. Deterministic for a given input.
func Build(raw *RawSymbols) *DebugArtifact {
	a := &DebugArtifact{
		locations: make(map[acir.OpcodeLocation][]SourceLocation, len(raw.Locations)),
		files:     make(map[FileID]SourceFile, len(raw.Files)),
		scopes:    append([]Scope(nil), raw.Scopes...),
	}
	for loc, src := range raw.Locations {
		a.locations[loc] = append([]SourceLocation(nil), src...)
		a.ordered = append(a.ordered, loc)
	}
	sort.Slice(a.ordered, func(i, j int) bool { return a.ordered[i].Before(a.ordered[j]) })
	for id, f := range raw.Files {
		a.files[id] = f
	}
	return a
}

// LocationsFor returns the source locations associated with an opcode
// address in symbol-table order, innermost first. The result is empty,
// not an error, for addresses with no associated source.
func (a *DebugArtifact) LocationsFor(loc acir.OpcodeLocation) []SourceLocation {
	return a.locations[loc]
}

// PrimaryLocation returns the first (innermost) source location for an
// address, if any. It is the location the step-by-source-line policy
// compares against.
func (a *DebugArtifact) PrimaryLocation(loc acir.OpcodeLocation) (SourceLocation, bool) {
	locs := a.locations[loc]
	if len(locs) == 0 {
		return SourceLocation{}, false
	}
	return locs[0], true
}

// File returns the file map entry for id.
func (a *DebugArtifact) File(id FileID) (SourceFile, bool) {
	f, ok := a.files[id]
	return f, ok
}

// FindFile resolves a path to a file id. It accepts both the exact path
// recorded in the file map and any unambiguous suffix of it.
func (a *DebugArtifact) FindFile(path string) (FileID, bool) {
	for id, f := range a.files {
		if f.Path == path {
			return id, true
		}
	}
	var match FileID
	found := false
	for id, f := range a.files {
		if strings.HasSuffix(f.Path, path) {
			if found {
				return 0, false
			}
			match, found = id, true
		}
	}
	return match, found
}

// FindOpcodeForLine returns the first opcode address (in execution order)
// whose primary source location is at the given file and line. Used to
// resolve line breakpoints.
func (a *DebugArtifact) FindOpcodeForLine(file FileID, line int) (acir.OpcodeLocation, bool) {
	for _, loc := range a.ordered {
		primary, ok := a.PrimaryLocation(loc)
		if ok && primary.File == file && primary.Line == line {
			return loc, true
		}
	}
	return acir.OpcodeLocation{}, false
}
