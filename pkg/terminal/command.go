package terminal

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/cosiner/argv"
	"github.com/derekparker/trie"

	"github.com/manastech/noir/pkg/acir"
	"github.com/manastech/noir/service/api"
	"github.com/manastech/noir/service/debugger"
)

type cmdfunc func(t *Term, args string) error

type command struct {
	aliases []string
	cmdFn   cmdfunc
	helpMsg string
}

// Returns true if the command string matches one of the aliases for this command
func (c command) match(cmdstr string) bool {
	for _, v := range c.aliases {
		if v == cmdstr {
			return true
		}
	}
	return false
}

// Commands represents the command table of the terminal.
type Commands struct {
	cmds    []command
	lastCmd string

	cmdCompleter *trie.Trie
	varCompleter *trie.Trie
}

// DebugCommands returns a Commands object with all the commands the
// terminal supports.
func DebugCommands(t *Term) *Commands {
	c := &Commands{}

	c.cmds = []command{
		{aliases: []string{"help", "h"}, cmdFn: c.help, helpMsg: `Prints the help message.

	help [command]

Type "help" followed by the name of a command for full documentation.`},
		{aliases: []string{"break", "b"}, cmdFn: breakCmd, helpMsg: `Sets a breakpoint.

	break <address>
	break <line>
	break <file>:<line>

An address is an opcode index like "12", or "12.3" for instruction 3 of
the unconstrained block invoked at opcode 12.`},
		{aliases: []string{"delete", "db"}, cmdFn: deleteCmd, helpMsg: `Deletes the breakpoint at an address.

	delete <address>`},
		{aliases: []string{"breakpoints", "bp"}, cmdFn: breakpointsCmd, helpMsg: "Prints the active breakpoints."},
		{aliases: []string{"continue", "c"}, cmdFn: continueCmd, helpMsg: "Runs until the next breakpoint or the end of the program."},
		{aliases: []string{"step", "s"}, cmdFn: stepCmd, helpMsg: `Advances to the next opcode of the constraint system.

A pending unconstrained block invocation runs to completion unless a
breakpoint inside it pauses execution first.`},
		{aliases: []string{"into", "i"}, cmdFn: intoCmd, helpMsg: `Advances one execution unit.

At an unconstrained block invocation the first unit enters the block;
further units execute single instructions.`},
		{aliases: []string{"next", "n"}, cmdFn: nextCmd, helpMsg: "Advances to the next source line, descending into calls."},
		{aliases: []string{"over", "o"}, cmdFn: overCmd, helpMsg: "Advances to the next source line, stepping over calls."},
		{aliases: []string{"out", "u"}, cmdFn: outCmd, helpMsg: "Runs until the current function returns."},
		{aliases: []string{"restart", "r"}, cmdFn: restartCmd, helpMsg: `Rewinds execution to the beginning.

Breakpoints are preserved; witness overrides are discarded.`},
		{aliases: []string{"opcodes", "op"}, cmdFn: opcodesCmd, helpMsg: "Prints the program opcodes, marking the current one."},
		{aliases: []string{"witness", "w"}, cmdFn: witnessCmd, helpMsg: `Shows or updates the witness map.

	witness
	witness <index>
	witness <index> <value>

With no arguments prints every bound witness. Values are decimal or
0x-prefixed field element literals.`},
		{aliases: []string{"registers", "regs"}, cmdFn: registersCmd, helpMsg: "Prints the registers of the active unconstrained block."},
		{aliases: []string{"regset"}, cmdFn: regsetCmd, helpMsg: `Updates a register of the active unconstrained block.

	regset <index> <value>`},
		{aliases: []string{"memory", "mem"}, cmdFn: memoryCmd, helpMsg: "Prints the memory of the active unconstrained block."},
		{aliases: []string{"memset"}, cmdFn: memsetCmd, helpMsg: `Updates a memory cell of the active unconstrained block.

	memset <index> <value>`},
		{aliases: []string{"vars", "v"}, cmdFn: varsCmd, helpMsg: "Prints the variables visible at the current position."},
		{aliases: []string{"stacktrace", "bt"}, cmdFn: stacktraceCmd, helpMsg: "Prints the stack trace of the paused execution."},
		{aliases: []string{"list", "l"}, cmdFn: listCmd, helpMsg: "Prints the source around the current position."},
		{aliases: []string{"quit", "q", "exit"}, cmdFn: quitCmd, helpMsg: "Exits the debugger."},
	}

	c.cmdCompleter = trie.New()
	for _, cmd := range c.cmds {
		for _, alias := range cmd.aliases {
			c.cmdCompleter.Add(alias, nil)
		}
	}
	c.varCompleter = trie.New()
	for _, name := range t.dbg.Symbols().VariableNames() {
		c.varCompleter.Add(name, nil)
	}

	return c
}

// Merge adds aliases to existing commands.
func (c *Commands) Merge(allAliases map[string][]string) {
	for i := range c.cmds {
		if aliases, ok := allAliases[c.cmds[i].aliases[0]]; ok {
			c.cmds[i].aliases = append(c.cmds[i].aliases, aliases...)
			for _, alias := range aliases {
				c.cmdCompleter.Add(alias, nil)
			}
		}
	}
}

var errNoCmd = errors.New("command not available")

// Find looks up the command function for cmdstr.
func (c *Commands) Find(cmdstr string) cmdfunc {
	for _, v := range c.cmds {
		if v.match(cmdstr) {
			return v.cmdFn
		}
	}
	return func(t *Term, args string) error {
		return errNoCmd
	}
}

// Call runs the command in cmdstr. An empty command repeats the previous
// one.
func (c *Commands) Call(cmdstr string, t *Term) error {
	if cmdstr == "" {
		cmdstr = c.lastCmd
		if cmdstr == "" {
			return nil
		}
	}
	c.lastCmd = cmdstr
	vals := strings.SplitN(strings.TrimSpace(cmdstr), " ", 2)
	cmdname := vals[0]
	var args string
	if len(vals) > 1 {
		args = strings.TrimSpace(vals[1])
	}
	return c.Find(cmdname)(t, args)
}

// splitArgs splits a command argument string into words, honoring quoting.
func splitArgs(args string) ([]string, error) {
	if args == "" {
		return nil, nil
	}
	v, err := argv.Argv(args, func(s string) (string, error) {
		return s, nil
	}, nil)
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (c *Commands) help(t *Term, args string) error {
	if args != "" {
		for _, cmd := range c.cmds {
			if cmd.match(args) {
				fmt.Fprintln(t.stdout, cmd.helpMsg)
				return nil
			}
		}
		return errNoCmd
	}
	fmt.Fprintln(t.stdout, "The following commands are available:")
	w := 0
	for _, cmd := range c.cmds {
		if l := len(strings.Join(cmd.aliases, "|")); l > w {
			w = l
		}
	}
	for _, cmd := range c.cmds {
		h := cmd.helpMsg
		if idx := strings.Index(h, "\n"); idx >= 0 {
			h = h[:idx]
		}
		fmt.Fprintf(t.stdout, "    %-*s %s\n", w, strings.Join(cmd.aliases, "|"), h)
	}
	fmt.Fprintln(t.stdout, "Type help followed by a command for full documentation.")
	return nil
}

func breakCmd(t *Term, args string) error {
	if args == "" {
		return errors.New("address required")
	}
	if file, line, ok := parseFileLine(args); ok {
		id, found := t.dbg.Symbols().FindFile(file)
		if !found {
			return fmt.Errorf("no source file matching %q", file)
		}
		bp, err := t.dbg.CreateBreakpointAtLine(id, line)
		if err != nil {
			return err
		}
		fmt.Fprintf(t.stdout, "%s set at %s\n", formatBreakpointName(&bp), bp.Addr)
		return nil
	}
	addr, err := acir.ParseOpcodeLocation(args)
	if err != nil {
		return err
	}
	bp, err := t.dbg.CreateBreakpoint(addr)
	if err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "%s set at %s\n", formatBreakpointName(&bp), bp.Addr)
	return nil
}

// parseFileLine recognizes the "file:line" and bare "line" breakpoint
// argument forms. A bare number is ambiguous with an opcode address, so
// only the explicit colon form selects by line.
func parseFileLine(args string) (string, int, bool) {
	idx := strings.LastIndex(args, ":")
	if idx < 0 {
		return "", 0, false
	}
	line, err := strconv.Atoi(args[idx+1:])
	if err != nil || line < 1 {
		return "", 0, false
	}
	return args[:idx], line, true
}

func formatBreakpointName(bp *api.Breakpoint) string {
	return fmt.Sprintf("Breakpoint %d", bp.ID)
}

func deleteCmd(t *Term, args string) error {
	if args == "" {
		return errors.New("address required")
	}
	addr, err := acir.ParseOpcodeLocation(args)
	if err != nil {
		return err
	}
	bp, err := t.dbg.ClearBreakpoint(addr)
	if err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "%s cleared at %s\n", formatBreakpointName(&bp), bp.Addr)
	return nil
}

func breakpointsCmd(t *Term, args string) error {
	bps := t.dbg.Breakpoints()
	if len(bps) == 0 {
		fmt.Fprintln(t.stdout, "No breakpoints set")
		return nil
	}
	for i := range bps {
		bp := &bps[i]
		if bp.File != "" {
			fmt.Fprintf(t.stdout, "%s at %s %s:%d (%d hits)\n", formatBreakpointName(bp), bp.Addr, bp.File, bp.Line, bp.TotalHitCount)
			continue
		}
		fmt.Fprintf(t.stdout, "%s at %s (%d hits)\n", formatBreakpointName(bp), bp.Addr, bp.TotalHitCount)
	}
	return nil
}

func continueCmd(t *Term, args string) error {
	state, err := t.dbg.Continue()
	if err != nil {
		return err
	}
	t.printState(state)
	return nil
}

func stepCmd(t *Term, args string) error {
	state, err := t.dbg.StepOpcode()
	if err != nil {
		return err
	}
	t.printState(state)
	return nil
}

func intoCmd(t *Term, args string) error {
	state, err := t.dbg.StepInstruction()
	if err != nil {
		return err
	}
	t.printState(state)
	return nil
}

func nextCmd(t *Term, args string) error {
	state, err := t.dbg.Step()
	if err != nil {
		return err
	}
	t.printState(state)
	return nil
}

func overCmd(t *Term, args string) error {
	state, err := t.dbg.Next()
	if err != nil {
		return err
	}
	t.printState(state)
	return nil
}

func outCmd(t *Term, args string) error {
	state, err := t.dbg.StepOut()
	if err != nil {
		return err
	}
	t.printState(state)
	return nil
}

func restartCmd(t *Term, args string) error {
	state, err := t.dbg.Restart()
	if err != nil {
		return err
	}
	fmt.Fprintln(t.stdout, "Restarted from the beginning")
	t.printState(state)
	return nil
}

func opcodesCmd(t *Term, args string) error {
	for _, op := range t.dbg.Opcodes() {
		marker := "  "
		if op.Current {
			marker = "->"
		}
		bpMark := " "
		if op.Breakpoint {
			bpMark = "*"
		}
		if op.Addr.InBrillig {
			fmt.Fprintf(t.stdout, "%s%s    | %7s  %s\n", marker, bpMark, op.Addr, op.Text)
			continue
		}
		fmt.Fprintf(t.stdout, "%s%s %4s  %s\n", marker, bpMark, op.Addr, op.Text)
	}
	return nil
}

func witnessCmd(t *Term, args string) error {
	argn, err := splitArgs(args)
	if err != nil {
		return err
	}
	switch len(argn) {
	case 0:
		assignments := t.dbg.WitnessAssignments()
		if len(assignments) == 0 {
			fmt.Fprintln(t.stdout, "No witnesses bound")
			return nil
		}
		for _, a := range assignments {
			fmt.Fprintf(t.stdout, "%s = %s\n", a.Index, a.Value)
		}
		return nil
	case 1:
		w, err := parseWitnessIndex(argn[0])
		if err != nil {
			return err
		}
		v, bound := t.dbg.ReadWitness(w)
		if !bound {
			fmt.Fprintf(t.stdout, "%s is not bound\n", w)
			return nil
		}
		fmt.Fprintf(t.stdout, "%s = %s\n", w, v.String())
		return nil
	case 2:
		w, err := parseWitnessIndex(argn[0])
		if err != nil {
			return err
		}
		v, err := acir.ParseFieldElement(argn[1])
		if err != nil {
			return err
		}
		prev, err := t.dbg.OverwriteWitness(w, v)
		if err != nil {
			return err
		}
		if prev != nil {
			fmt.Fprintf(t.stdout, "%s changed from %s to %s\n", w, prev.String(), v.String())
			return nil
		}
		fmt.Fprintf(t.stdout, "%s = %s\n", w, v.String())
		return nil
	}
	return errors.New("too many arguments")
}

func parseWitnessIndex(s string) (acir.Witness, error) {
	s = strings.TrimPrefix(s, "_")
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid witness index %q", s)
	}
	return acir.Witness(n), nil
}

func registersCmd(t *Term, args string) error {
	regs, err := t.dbg.Registers()
	if err != nil {
		if errors.Is(err, debugger.ErrRegistersNotAvailable) {
			fmt.Fprintln(t.stdout, "Registers not yet available")
			return nil
		}
		return err
	}
	for i := range regs {
		fmt.Fprintf(t.stdout, "r%-3d = %s\n", i, regs[i].String())
	}
	return nil
}

func regsetCmd(t *Term, args string) error {
	i, v, err := parseIndexValue(args)
	if err != nil {
		return err
	}
	if err := t.dbg.SetRegister(i, v); err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "r%d = %s\n", i, v.String())
	return nil
}

func memoryCmd(t *Term, args string) error {
	mem, err := t.dbg.Memory()
	if err != nil {
		return err
	}
	for i := range mem {
		fmt.Fprintf(t.stdout, "m%-3d = %s\n", i, mem[i].String())
	}
	return nil
}

func memsetCmd(t *Term, args string) error {
	i, v, err := parseIndexValue(args)
	if err != nil {
		return err
	}
	if err := t.dbg.SetMemory(i, v); err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "m%d = %s\n", i, v.String())
	return nil
}

func parseIndexValue(args string) (int, fr.Element, error) {
	var zero fr.Element
	argn, err := splitArgs(args)
	if err != nil {
		return 0, zero, err
	}
	if len(argn) != 2 {
		return 0, zero, errors.New("expected index and value")
	}
	i, err := strconv.Atoi(argn[0])
	if err != nil || i < 0 {
		return 0, zero, fmt.Errorf("invalid index %q", argn[0])
	}
	v, err := acir.ParseFieldElement(argn[1])
	if err != nil {
		return 0, zero, err
	}
	return i, v, nil
}

func varsCmd(t *Term, args string) error {
	vars := t.dbg.Variables()
	if len(vars) == 0 {
		fmt.Fprintln(t.stdout, "No variables in scope")
		return nil
	}
	sort.SliceStable(vars, func(i, j int) bool { return vars[i].Name < vars[j].Name })
	for _, v := range vars {
		if v.Unbound {
			fmt.Fprintf(t.stdout, "%s = (not bound)\n", v.Name)
			continue
		}
		fmt.Fprintf(t.stdout, "%s = %s\n", v.Name, v.Value)
	}
	return nil
}

func stacktraceCmd(t *Term, args string) error {
	frames := t.dbg.Stacktrace()
	for _, f := range frames {
		name := f.Function
		if name == "" {
			name = "???"
		}
		if f.Location.File != "" {
			fmt.Fprintf(t.stdout, "%d  %s at %s %s:%d\n", f.Index, name, f.Location.Addr, f.Location.File, f.Location.Line)
			continue
		}
		fmt.Fprintf(t.stdout, "%d  %s at %s\n", f.Index, name, f.Location.Addr)
	}
	return nil
}

func listCmd(t *Term, args string) error {
	state := t.dbg.State()
	if state.Location == nil {
		return errors.New("no current position")
	}
	t.listAround(state.Location)
	return nil
}

func quitCmd(t *Term, args string) error {
	t.quit = true
	return nil
}
