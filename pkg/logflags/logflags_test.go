package logflags

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestSetupRejectsOutputWithoutLog(t *testing.T) {
	if err := Setup(false, "solver"); err == nil {
		t.Error("no error for --log-output without --log")
	}
	if err := Setup(false, ""); err != nil {
		t.Errorf("Setup with logging disabled: %v", err)
	}
}

func TestSetupEnablesLayers(t *testing.T) {
	if err := Setup(true, "brillig,dap"); err != nil {
		t.Fatal(err)
	}
	if got := VMLogger().Logger.Level; got != logrus.DebugLevel {
		t.Errorf("brillig logger level = %v, want debug", got)
	}
	if got := DAPLogger().Logger.Level; got != logrus.DebugLevel {
		t.Errorf("dap logger level = %v, want debug", got)
	}
	// Layers not named stay silent.
	if got := SolverLogger().Logger.Level; got != logrus.PanicLevel {
		t.Errorf("solver logger level = %v, want panic", got)
	}
}
