package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manastech/noir/pkg/acir"
	"github.com/manastech/noir/pkg/brillig"
	"github.com/manastech/noir/pkg/debuginfo"
)

func elem(v int64) fr.Element {
	var e fr.Element
	e.SetInt64(v)
	return e
}

func testArtifact() *Artifact {
	one := elem(1)
	return &Artifact{
		Program: acir.Program{
			Circuit: acir.Circuit{
				Opcodes: []acir.Opcode{
					{AssertZero: &acir.Expression{
						LinearCombinations: []acir.LinearTerm{{Coefficient: one, Witness: 0}},
						Constant:           elem(-5),
					}},
					{BrilligCall: &acir.BrilligCall{
						ID:      0,
						Inputs:  []acir.Expression{*acir.WitnessExpression(0)},
						Outputs: []acir.Witness{1},
					}},
				},
			},
			UnconstrainedFunctions: []brillig.Bytecode{{
				Code: []brillig.Opcode{
					{CalldataCopy: &brillig.CalldataCopy{Dst: 0, Offset: 0, Size: 1}},
					{Stop: &brillig.Stop{ReturnOffset: 0, ReturnSize: 1}},
				},
				RegisterCount: 1,
				MemorySize:    1,
			}},
		},
		Symbols: RawSymbols{
			Locations: []LocationEntry{
				{Addr: acir.AcirLocation(0), Source: []debuginfo.SourceLocation{{File: 0, Line: 1}}},
				{Addr: acir.BrilligLocation(1, 0), Source: []debuginfo.SourceLocation{{File: 0, Line: 2}}},
			},
			Files: map[debuginfo.FileID]debuginfo.SourceFile{
				0: {Path: "main.nr", Source: "a\nb\n"},
			},
		},
	}
}

func TestArtifactRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "program.acir")
	require.NoError(t, Save(path, testArtifact()))

	loaded, err := Load(path)
	require.NoError(t, err)

	require.Len(t, loaded.Program.Circuit.Opcodes, 2)
	assert.NotNil(t, loaded.Program.Circuit.Opcodes[0].AssertZero)
	assert.NotNil(t, loaded.Program.Circuit.Opcodes[1].BrilligCall)
	require.Len(t, loaded.Program.UnconstrainedFunctions, 1)
	assert.Len(t, loaded.Program.UnconstrainedFunctions[0].Code, 2)

	sym := loaded.DebugSymbols()
	src, ok := sym.PrimaryLocation(acir.BrilligLocation(1, 0))
	require.True(t, ok)
	assert.Equal(t, 2, src.Line)
	f, ok := sym.File(0)
	require.True(t, ok)
	assert.Equal(t, "main.nr", f.Path)
}

func TestLoadMissingArtifact(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.acir"))
	assert.Error(t, err)
}

func TestWitnessRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "witness.yml")
	wm := acir.WitnessMap{0: elem(5), 3: elem(42)}
	require.NoError(t, SaveWitness(path, wm))

	loaded, err := LoadWitness(path)
	require.NoError(t, err)
	assert.True(t, wm.Equal(loaded))
}

func TestLoadWitnessParsesLiterals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "witness.yml")
	require.NoError(t, os.WriteFile(path, []byte("0: \"7\"\n1: \"0x0a\"\n"), 0644))

	wm, err := LoadWitness(path)
	require.NoError(t, err)
	v, ok := wm.Get(0)
	require.True(t, ok)
	assert.Equal(t, elem(7), v)
	v, ok = wm.Get(1)
	require.True(t, ok)
	assert.Equal(t, elem(10), v)
}

func TestLoadWitnessRejectsBadLiteral(t *testing.T) {
	path := filepath.Join(t.TempDir(), "witness.yml")
	require.NoError(t, os.WriteFile(path, []byte("0: \"zzz\"\n"), 0644))
	_, err := LoadWitness(path)
	assert.Error(t, err)
}
