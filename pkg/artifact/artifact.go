// Package artifact reads and writes compiled circuit artifacts and
// witness files. An artifact bundles the program with its debug symbols
// in a single CBOR document; witness assignments travel separately as
// YAML.
package artifact

import (
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
	yaml "gopkg.in/yaml.v2"

	"github.com/manastech/noir/pkg/acir"
	"github.com/manastech/noir/pkg/debuginfo"
)

// Artifact is the on-disk form of a compiled circuit with debug symbols.
type Artifact struct {
	Program acir.Program `cbor:"program"`
	Symbols RawSymbols   `cbor:"debug_symbols"`
}

// RawSymbols is the serialized symbol table. Locations are stored as an
// entry list rather than a map so the document stays independent of map
// key encoding.
type RawSymbols struct {
	Locations []LocationEntry                           `cbor:"locations,omitempty"`
	Files     map[debuginfo.FileID]debuginfo.SourceFile `cbor:"files,omitempty"`
	Scopes    []debuginfo.Scope                         `cbor:"scopes,omitempty"`
}

// LocationEntry associates one opcode address with its source locations,
// innermost first.
type LocationEntry struct {
	Addr   acir.OpcodeLocation        `cbor:"addr"`
	Source []debuginfo.SourceLocation `cbor:"source"`
}

// DebugSymbols converts the serialized table into its indexed runtime
// form.
func (a *Artifact) DebugSymbols() *debuginfo.DebugArtifact {
	raw := &debuginfo.RawSymbols{
		Locations: make(map[acir.OpcodeLocation][]debuginfo.SourceLocation, len(a.Symbols.Locations)),
		Files:     a.Symbols.Files,
		Scopes:    a.Symbols.Scopes,
	}
	for _, e := range a.Symbols.Locations {
		raw.Locations[e.Addr] = e.Source
	}
	return debuginfo.Build(raw)
}

// Load reads and decodes an artifact file.
func Load(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading artifact: %w", err)
	}
	var a Artifact
	if err := cbor.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decoding artifact %s: %w", path, err)
	}
	return &a, nil
}

// Save encodes and writes an artifact file.
func Save(path string, a *Artifact) error {
	data, err := cbor.Marshal(a)
	if err != nil {
		return fmt.Errorf("encoding artifact: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// LoadWitness reads a YAML witness file mapping witness indices to field
// element literals, decimal or 0x-prefixed hex.
func LoadWitness(path string) (acir.WitnessMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading witness file: %w", err)
	}
	var raw map[uint32]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding witness file %s: %w", path, err)
	}
	wm := make(acir.WitnessMap, len(raw))
	for idx, lit := range raw {
		v, err := acir.ParseFieldElement(lit)
		if err != nil {
			return nil, fmt.Errorf("witness %d: %w", idx, err)
		}
		wm[acir.Witness(idx)] = v
	}
	return wm, nil
}

// SaveWitness writes a witness map as a YAML witness file with the
// indices in order.
func SaveWitness(path string, wm acir.WitnessMap) error {
	indices := wm.Indices()
	out := make(yaml.MapSlice, 0, len(indices))
	for _, w := range indices {
		v, _ := wm.Get(w)
		out = append(out, yaml.MapItem{Key: uint32(w), Value: v.String()})
	}
	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("encoding witness file: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
