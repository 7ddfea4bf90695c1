// Package cmds implements the command line interface of the debugger.
package cmds

import (
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"

	"github.com/manastech/noir/pkg/acir"
	"github.com/manastech/noir/pkg/artifact"
	"github.com/manastech/noir/pkg/config"
	"github.com/manastech/noir/pkg/logflags"
	"github.com/manastech/noir/pkg/terminal"
	"github.com/manastech/noir/service/dap"
	"github.com/manastech/noir/service/debugger"
)

var (
	// log turns logging on.
	log bool
	// logOutput selects the components that log.
	logOutput string
	// addr is the address the DAP server listens on.
	addr string
)

// New returns the root command.
func New() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:   "noir-debug <artifact> [witness]",
		Short: "Interactive debugger for compiled circuits.",
		Long: `Steps a circuit solve opcode by opcode, into unconstrained blocks,
with breakpoints, witness inspection and source level views.

The artifact argument is a compiled circuit with debug symbols. The
optional witness argument is a YAML file with the initial witness
assignment.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: replCmd,
	}
	rootCommand.PersistentFlags().BoolVar(&log, "log", false, "Enable debugger logging.")
	rootCommand.PersistentFlags().StringVar(&logOutput, "log-output", "", "Comma separated list of components that should produce debug output (debugger, solver, brillig, dap, repl).")

	dapCommand := &cobra.Command{
		Use:   "dap [artifact] [witness]",
		Short: "Starts a headless Debug Adapter Protocol server.",
		Long: `Starts a headless server speaking the Debug Adapter Protocol on a TCP
address, for use from editors. When the artifact is not given on the
command line the client supplies it in the launch request.`,
		Args: cobra.MaximumNArgs(2),
		RunE: dapCmd,
	}
	dapCommand.Flags().StringVar(&addr, "listen", "127.0.0.1:0", "Address to listen on.")
	rootCommand.AddCommand(dapCommand)

	return rootCommand
}

func replCmd(cmd *cobra.Command, args []string) error {
	if err := logflags.Setup(log, logOutput); err != nil {
		return err
	}
	dbg, err := loadSession(args)
	if err != nil {
		return err
	}
	conf, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
	}
	cmd.SilenceUsage = true
	return terminal.New(dbg, conf).Run()
}

func dapCmd(cmd *cobra.Command, args []string) error {
	if err := logflags.Setup(log, logOutput); err != nil {
		return err
	}
	var dbg *debugger.Debugger
	if len(args) > 0 {
		var err error
		dbg, err = loadSession(args)
		if err != nil {
			return err
		}
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer listener.Close()
	fmt.Printf("DAP server listening at: %s\n", listener.Addr())
	cmd.SilenceUsage = true
	return dap.NewServer(&dap.Config{Debugger: dbg, Listener: listener}).Run()
}

func loadSession(args []string) (*debugger.Debugger, error) {
	a, err := artifact.Load(args[0])
	if err != nil {
		return nil, err
	}
	witness := acir.WitnessMap{}
	if len(args) > 1 {
		witness, err = artifact.LoadWitness(args[1])
		if err != nil {
			return nil, err
		}
	}
	return debugger.New(&debugger.Config{
		Program:        &a.Program,
		Symbols:        a.DebugSymbols(),
		InitialWitness: witness,
	})
}
