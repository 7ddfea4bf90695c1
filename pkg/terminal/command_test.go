package terminal

import (
	"bytes"
	"strings"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/manastech/noir/pkg/acir"
	"github.com/manastech/noir/pkg/config"
	"github.com/manastech/noir/pkg/debuginfo"
	"github.com/manastech/noir/service/debugger"
)

func elem(v int64) fr.Element {
	var e fr.Element
	e.SetInt64(v)
	return e
}

func testTerm(t *testing.T) (*Term, *bytes.Buffer) {
	t.Helper()
	one := elem(1)
	program := &acir.Program{
		Circuit: acir.Circuit{
			Opcodes: []acir.Opcode{
				{AssertZero: &acir.Expression{
					LinearCombinations: []acir.LinearTerm{{Coefficient: one, Witness: 0}},
					Constant:           elem(-5),
				}},
			},
		},
	}
	w0 := acir.Witness(0)
	symbols := debuginfo.Build(&debuginfo.RawSymbols{
		Scopes: []debuginfo.Scope{{
			FunctionName: "main",
			Start:        acir.AcirLocation(0),
			End:          acir.AcirLocation(0),
			Variables:    []debuginfo.VariableBinding{{Name: "x", Witness: &w0}},
		}},
	})
	dbg, err := debugger.New(&debugger.Config{
		Program:        program,
		Symbols:        symbols,
		InitialWitness: acir.WitnessMap{0: elem(5)},
	})
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	term := &Term{dbg: dbg, conf: &config.Config{}, sources: newSourceCache()}
	term.stdout = &out
	term.cmds = DebugCommands(term)
	return term, &out
}

func TestCommandAliases(t *testing.T) {
	term, _ := testTerm(t)
	for _, pair := range [][2]string{
		{"continue", "c"},
		{"step", "s"},
		{"into", "i"},
		{"break", "b"},
		{"witness", "w"},
		{"quit", "q"},
	} {
		found := false
		for _, cmd := range term.cmds.cmds {
			if cmd.match(pair[1]) && cmd.match(pair[0]) {
				found = true
			}
		}
		if !found {
			t.Errorf("%q is not an alias of %q", pair[1], pair[0])
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	term, _ := testTerm(t)
	if err := term.cmds.Call("frobnicate", term); err != errNoCmd {
		t.Errorf("error = %v, want errNoCmd", err)
	}
}

func TestEmptyCommandRepeatsLast(t *testing.T) {
	term, out := testTerm(t)
	if err := term.cmds.Call("help", term); err != nil {
		t.Fatal(err)
	}
	out.Reset()
	if err := term.cmds.Call("", term); err != nil {
		t.Fatal(err)
	}
	if out.Len() == 0 {
		t.Error("empty command did not repeat the previous one")
	}
}

func TestMergeAddsAliases(t *testing.T) {
	term, _ := testTerm(t)
	term.cmds.Merge(map[string][]string{"continue": {"go"}})
	if err := term.cmds.Call("go", term); err != nil {
		// "go" before start fails with a state error, not errNoCmd.
		if err == errNoCmd {
			t.Fatal("merged alias not found")
		}
	}
}

func TestWitnessCommand(t *testing.T) {
	term, out := testTerm(t)
	if _, err := term.dbg.Start(); err != nil {
		t.Fatal(err)
	}

	if err := term.cmds.Call("witness", term); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); !strings.Contains(got, "_0 = 5") {
		t.Errorf("witness listing = %q, want it to contain \"_0 = 5\"", got)
	}

	out.Reset()
	if err := term.cmds.Call("witness 0 7", term); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); !strings.Contains(got, "changed from 5 to 7") {
		t.Errorf("witness update output = %q, want previous value report", got)
	}
}

func TestBreakCommandRejectsBadAddress(t *testing.T) {
	term, _ := testTerm(t)
	if err := term.cmds.Call("break 99", term); err == nil {
		t.Error("break accepted an address outside the program")
	}
	if err := term.cmds.Call("break bogus", term); err == nil {
		t.Error("break accepted a malformed address")
	}
}

func TestParseFileLine(t *testing.T) {
	file, line, ok := parseFileLine("main.nr:12")
	if !ok || file != "main.nr" || line != 12 {
		t.Errorf("parseFileLine = (%q, %d, %v), want (main.nr, 12, true)", file, line, ok)
	}
	if _, _, ok := parseFileLine("12"); ok {
		t.Error("bare number parsed as file:line")
	}
	if _, _, ok := parseFileLine("main.nr:x"); ok {
		t.Error("non-numeric line parsed as file:line")
	}
}

func TestParseWitnessIndex(t *testing.T) {
	for _, input := range []string{"3", "_3"} {
		w, err := parseWitnessIndex(input)
		if err != nil {
			t.Fatalf("parseWitnessIndex(%q): %v", input, err)
		}
		if w != 3 {
			t.Errorf("parseWitnessIndex(%q) = %d, want 3", input, w)
		}
	}
	if _, err := parseWitnessIndex("abc"); err == nil {
		t.Error("parseWitnessIndex accepted a non-numeric index")
	}
}

func TestCompleteCommands(t *testing.T) {
	term, _ := testTerm(t)
	comps := term.complete("bre")
	found := false
	for _, c := range comps {
		if c == "break" {
			found = true
		}
	}
	if !found {
		t.Errorf("completions for \"bre\" = %v, want to include break", comps)
	}

	comps = term.complete("witness x")
	if len(comps) != 1 || comps[0] != "witness x" {
		t.Errorf("variable completions = %v, want [witness x]", comps)
	}
}
