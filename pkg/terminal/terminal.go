// Package terminal implements the interactive command line front end of
// the debugger.
package terminal

import (
	"fmt"
	"io"
	"os"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/peterh/liner"
	"github.com/sirupsen/logrus"

	"github.com/manastech/noir/pkg/config"
	"github.com/manastech/noir/pkg/debuginfo"
	"github.com/manastech/noir/pkg/logflags"
	"github.com/manastech/noir/service/api"
	"github.com/manastech/noir/service/debugger"
)

const (
	historyFile      string = ".dbg_history"
	defaultListLines int    = 5
)

// Term represents the terminal running the debug session.
type Term struct {
	dbg    *debugger.Debugger
	conf   *config.Config
	prompt string
	line   *liner.State
	cmds   *Commands
	stdout io.Writer
	quit   bool

	sources *sourceCache

	historyFile *os.File

	log *logrus.Entry
}

// New returns a terminal driving the given session.
func New(dbg *debugger.Debugger, conf *config.Config) *Term {
	if conf == nil {
		conf = &config.Config{}
	}
	t := &Term{
		dbg:     dbg,
		conf:    conf,
		prompt:  "(noir-dbg) ",
		line:    liner.NewLiner(),
		stdout:  os.Stdout,
		sources: newSourceCache(),
		log:     logflags.REPLLogger(),
	}
	t.cmds = DebugCommands(t)
	if conf.Aliases != nil {
		t.cmds.Merge(conf.Aliases)
	}
	t.line.SetCompleter(t.complete)
	return t
}

// Close returns the terminal to its previous mode.
func (t *Term) Close() {
	t.line.Close()
}

// Run begins the debug session and processes commands until the user
// quits or input is exhausted.
func (t *Term) Run() error {
	defer t.Close()

	t.openHistory()
	defer t.saveHistory()

	state, err := t.dbg.Start()
	if err != nil {
		return err
	}
	t.printState(state)

	for !t.quit {
		cmdstr, err := t.promptForInput()
		if err != nil {
			if err == io.EOF {
				fmt.Fprintln(t.stdout, "exit")
				return nil
			}
			if err == liner.ErrPromptAborted {
				continue
			}
			return fmt.Errorf("prompt for input failed: %w", err)
		}
		if err := t.cmds.Call(cmdstr, t); err != nil {
			fmt.Fprintf(t.stdout, "Command failed: %v\n", err)
		}
	}
	return nil
}

func (t *Term) promptForInput() (string, error) {
	l, err := t.line.Prompt(t.prompt)
	if err != nil {
		return "", err
	}
	l = strings.TrimSuffix(l, "\n")
	if l != "" {
		t.line.AppendHistory(l)
	}
	return l, nil
}

func (t *Term) openHistory() {
	path, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		return
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		t.log.Debugf("opening history file: %v", err)
		return
	}
	t.historyFile = f
	t.line.ReadHistory(f)
}

func (t *Term) saveHistory() {
	if t.historyFile == nil {
		return
	}
	if _, err := t.historyFile.Seek(0, io.SeekStart); err == nil {
		_ = t.historyFile.Truncate(0)
		_, _ = t.line.WriteHistory(t.historyFile)
	}
	t.historyFile.Close()
}

// printState reports where and why execution paused, with a one line
// source excerpt when symbols cover the address.
func (t *Term) printState(state *api.DebuggerState) {
	switch state.State {
	case api.Finished:
		fmt.Fprintln(t.stdout, "Execution finished")
		return
	case api.Failed:
		fmt.Fprintf(t.stdout, "Execution failed: %s\n", state.Err)
		return
	case api.PausedAtBreakpoint:
		if bp := state.Breakpoint; bp != nil {
			fmt.Fprintf(t.stdout, "Breakpoint %d hit (total: %d)\n", bp.ID, bp.TotalHitCount)
		}
	}
	loc := state.Location
	if loc == nil {
		return
	}
	if loc.File != "" {
		fmt.Fprintf(t.stdout, "At opcode %s: %s:%d\n", loc.Addr, loc.File, loc.Line)
		t.listLine(loc)
		return
	}
	fmt.Fprintf(t.stdout, "At opcode %s\n", loc.Addr)
}

// listLine prints the single source line at loc with its number.
func (t *Term) listLine(loc *api.Location) {
	lines, ok := t.sourceLines(loc)
	if !ok || loc.Line < 1 || loc.Line > len(lines) {
		return
	}
	fmt.Fprintf(t.stdout, "=> %4d: %s\n", loc.Line, lines[loc.Line-1])
}

// listAround prints a window of source lines around loc.
func (t *Term) listAround(loc *api.Location) {
	lines, ok := t.sourceLines(loc)
	if !ok {
		fmt.Fprintln(t.stdout, "No source available")
		return
	}
	first := loc.Line - defaultListLines
	if first < 1 {
		first = 1
	}
	last := loc.Line + defaultListLines
	if last > len(lines) {
		last = len(lines)
	}
	for i := first; i <= last; i++ {
		marker := "  "
		if i == loc.Line {
			marker = "=>"
		}
		if t.conf.SourceListLineColor != "" {
			fmt.Fprintf(t.stdout, "%s %s%4d:\033[0m %s\n", marker, t.conf.SourceListLineColor, i, lines[i-1])
			continue
		}
		fmt.Fprintf(t.stdout, "%s %4d: %s\n", marker, i, lines[i-1])
	}
}

func (t *Term) sourceLines(loc *api.Location) ([]string, bool) {
	sym := t.dbg.Symbols()
	src, ok := sym.PrimaryLocation(loc.Addr)
	if !ok {
		return nil, false
	}
	return t.sources.lines(src.File, sym)
}

// complete offers completions for command names and, after a command,
// variable names.
func (t *Term) complete(line string) []string {
	if idx := strings.LastIndex(line, " "); idx >= 0 {
		prefix, word := line[:idx+1], line[idx+1:]
		if word == "" {
			return nil
		}
		var out []string
		for _, name := range t.cmds.varCompleter.PrefixSearch(word) {
			out = append(out, prefix+name)
		}
		return out
	}
	return t.cmds.cmdCompleter.PrefixSearch(line)
}

// sourceCache memoizes split source files. Artifacts embed full sources,
// so splitting is cheap but repeated on every listing without the cache.
type sourceCache struct {
	cache *lru.Cache
}

func newSourceCache() *sourceCache {
	cache, _ := lru.New(16)
	return &sourceCache{cache: cache}
}

func (s *sourceCache) lines(id debuginfo.FileID, sym *debuginfo.DebugArtifact) ([]string, bool) {
	if v, ok := s.cache.Get(id); ok {
		return v.([]string), true
	}
	f, ok := sym.File(id)
	if !ok {
		return nil, false
	}
	lines := strings.Split(strings.ReplaceAll(f.Source, "\r\n", "\n"), "\n")
	s.cache.Add(id, lines)
	return lines, true
}
