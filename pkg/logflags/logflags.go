// Package logflags configures per-layer loggers for the debugger. Logging
// is off by default and enabled per component through the --log-output
// flag.
package logflags

import (
	"errors"
	"io"
	"log"
	"strings"

	"github.com/sirupsen/logrus"
)

var debugger = false
var solver = false
var vm = false
var dapFlag = false
var repl = false

func makeLogger(flag bool, fields logrus.Fields) *logrus.Entry {
	logger := logrus.New().WithFields(fields)
	logger.Logger.Level = logrus.DebugLevel
	if !flag {
		logger.Logger.Level = logrus.PanicLevel
	}
	return logger
}

// DebuggerLogger returns a logger for the session controller.
func DebuggerLogger() *logrus.Entry {
	return makeLogger(debugger, logrus.Fields{"layer": "debugger"})
}

// SolverLogger returns a logger for the outer solve driver.
func SolverLogger() *logrus.Entry {
	return makeLogger(solver, logrus.Fields{"layer": "solver"})
}

// VMLogger returns a logger for Brillig VM stepping.
func VMLogger() *logrus.Entry {
	return makeLogger(vm, logrus.Fields{"layer": "solver", "kind": "brillig"})
}

// DAPLogger returns a logger for the DAP service.
func DAPLogger() *logrus.Entry {
	return makeLogger(dapFlag, logrus.Fields{"layer": "dap"})
}

// REPLLogger returns a logger for the terminal front end.
func REPLLogger() *logrus.Entry {
	return makeLogger(repl, logrus.Fields{"layer": "repl"})
}

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

// Setup sets logging flags based on the contents of logstr.
func Setup(logFlag bool, logstr string) error {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	if !logFlag {
		log.SetOutput(io.Discard)
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logstr == "" {
		logstr = "debugger"
	}
	for _, logcmd := range strings.Split(logstr, ",") {
		switch logcmd {
		case "debugger":
			debugger = true
		case "solver":
			solver = true
		case "brillig":
			vm = true
		case "dap":
			dapFlag = true
		case "repl":
			repl = true
		}
	}
	return nil
}
