// Package dap implements a Debug Adapter Protocol server over the
// session controller, so editors can drive the debugger. One server
// serves one editor connection and one debug session.
package dap

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/google/go-dap"
	"github.com/sirupsen/logrus"

	"github.com/manastech/noir/pkg/acir"
	"github.com/manastech/noir/pkg/artifact"
	"github.com/manastech/noir/pkg/logflags"
	"github.com/manastech/noir/service/api"
	"github.com/manastech/noir/service/debugger"
)

// Config collects what the server needs to run.
type Config struct {
	// Debugger is the session to serve. When nil the session is built from
	// the launch request's program and witness paths.
	Debugger *debugger.Debugger
	Listener net.Listener
}

// Server accepts a single editor connection and serves the protocol on
// it until disconnect.
type Server struct {
	config *Config
	log    *logrus.Entry
}

// NewServer creates a Server.
func NewServer(config *Config) *Server {
	return &Server{
		config: config,
		log:    logflags.DAPLogger(),
	}
}

// Run accepts one connection and serves it to completion.
func (s *Server) Run() error {
	conn, err := s.config.Listener.Accept()
	if err != nil {
		return err
	}
	session := &Session{
		config:    s.config,
		dbg:       s.config.Debugger,
		conn:      conn,
		reader:    bufio.NewReader(conn),
		handles:   newHandlesMap(),
		sourceBps: make(map[string][]acir.OpcodeLocation),
		log:       s.log,
	}
	defer conn.Close()
	return session.serve()
}

// Session is the state of one editor connection.
type Session struct {
	config *Config
	dbg    *debugger.Debugger

	conn   net.Conn
	reader *bufio.Reader

	// sendingMu protects the write side of the connection. Responses and
	// events may interleave from the handler and run goroutines.
	sendingMu sync.Mutex

	handles   *handlesMap
	sourceBps map[string][]acir.OpcodeLocation

	log *logrus.Entry
}

var errDisconnect = errors.New("disconnect")

func (s *Session) serve() error {
	for {
		request, err := dap.ReadProtocolMessage(s.reader)
		if err != nil {
			var decodeErr *dap.DecodeProtocolMessageFieldError
			if errors.As(err, &decodeErr) {
				s.log.Errorf("decoding request: %v", err)
				continue
			}
			if err == io.EOF {
				return nil
			}
			return err
		}
		s.log.Debugf("[<- from client] %T", request)
		if err := s.handleRequest(request); err != nil {
			if err == errDisconnect {
				return nil
			}
			return err
		}
	}
}

func (s *Session) handleRequest(request dap.Message) error {
	switch request := request.(type) {
	case *dap.InitializeRequest:
		s.onInitializeRequest(request)
	case *dap.LaunchRequest:
		s.onLaunchRequest(request)
	case *dap.SetBreakpointsRequest:
		s.onSetBreakpointsRequest(request)
	case *dap.ConfigurationDoneRequest:
		s.onConfigurationDoneRequest(request)
	case *dap.ThreadsRequest:
		s.onThreadsRequest(request)
	case *dap.StackTraceRequest:
		s.onStackTraceRequest(request)
	case *dap.ScopesRequest:
		s.onScopesRequest(request)
	case *dap.VariablesRequest:
		s.onVariablesRequest(request)
	case *dap.ContinueRequest:
		s.onContinueRequest(request)
	case *dap.NextRequest:
		s.onNextRequest(request)
	case *dap.StepInRequest:
		s.onStepInRequest(request)
	case *dap.StepOutRequest:
		s.onStepOutRequest(request)
	case *dap.RestartRequest:
		s.onRestartRequest(request)
	case *dap.DisconnectRequest:
		s.onDisconnectRequest(request)
		return errDisconnect
	default:
		r, ok := request.(dap.RequestMessage)
		if ok {
			s.sendErrorResponse(*r.GetRequest(), "Unsupported command",
				fmt.Sprintf("cannot process %q request", r.GetRequest().Command))
		}
	}
	return nil
}

func (s *Session) send(message dap.Message) {
	s.sendingMu.Lock()
	defer s.sendingMu.Unlock()
	s.log.Debugf("[-> to client] %T", message)
	if err := dap.WriteProtocolMessage(s.conn, message); err != nil {
		s.log.Errorf("writing message: %v", err)
	}
}

func newResponse(request dap.Request) *dap.Response {
	return &dap.Response{
		ProtocolMessage: dap.ProtocolMessage{
			Seq:  0,
			Type: "response",
		},
		Command:    request.Command,
		RequestSeq: request.Seq,
		Success:    true,
	}
}

func newEvent(event string) *dap.Event {
	return &dap.Event{
		ProtocolMessage: dap.ProtocolMessage{
			Seq:  0,
			Type: "event",
		},
		Event: event,
	}
}

func (s *Session) sendErrorResponse(request dap.Request, summary, details string) {
	er := &dap.ErrorResponse{}
	er.Response = *newResponse(request)
	er.Success = false
	er.Message = summary
	er.Body.Error = &dap.ErrorMessage{Format: fmt.Sprintf("%s: %s", summary, details)}
	s.log.Debug(er.Body.Error.Format)
	s.send(er)
}

func (s *Session) onInitializeRequest(request *dap.InitializeRequest) {
	response := &dap.InitializeResponse{Response: *newResponse(request.Request)}
	response.Body.SupportsConfigurationDoneRequest = true
	response.Body.SupportsRestartRequest = true
	response.Body.SupportsSteppingGranularity = false
	response.Body.SupportsFunctionBreakpoints = false
	response.Body.SupportsConditionalBreakpoints = false
	s.send(response)
}

type launchArgs struct {
	// Program is the path of the compiled artifact.
	Program string `json:"program"`
	// Witness is the path of the initial witness file, optional.
	Witness string `json:"witness,omitempty"`
}

func (s *Session) onLaunchRequest(request *dap.LaunchRequest) {
	if s.dbg == nil {
		var args launchArgs
		if err := json.Unmarshal(request.Arguments, &args); err != nil {
			s.sendErrorResponse(request.Request, "Failed to launch", err.Error())
			return
		}
		if args.Program == "" {
			s.sendErrorResponse(request.Request, "Failed to launch", "the 'program' attribute is missing in debug configuration")
			return
		}
		dbg, err := loadSession(args.Program, args.Witness)
		if err != nil {
			s.sendErrorResponse(request.Request, "Failed to launch", err.Error())
			return
		}
		s.dbg = dbg
	}
	s.send(&dap.LaunchResponse{Response: *newResponse(request.Request)})
	s.send(&dap.InitializedEvent{Event: *newEvent("initialized")})
}

func loadSession(programPath, witnessPath string) (*debugger.Debugger, error) {
	a, err := artifact.Load(programPath)
	if err != nil {
		return nil, err
	}
	witness := acir.WitnessMap{}
	if witnessPath != "" {
		witness, err = artifact.LoadWitness(witnessPath)
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

func (s *Session) onSetBreakpointsRequest(request *dap.SetBreakpointsRequest) {
	if s.dbg == nil {
		s.sendErrorResponse(request.Request, "Unable to set breakpoints", "no program loaded")
		return
	}
	path := request.Arguments.Source.Path
	for _, addr := range s.sourceBps[path] {
		_, _ = s.dbg.ClearBreakpoint(addr)
	}
	s.sourceBps[path] = nil

	response := &dap.SetBreakpointsResponse{Response: *newResponse(request.Request)}
	response.Body.Breakpoints = make([]dap.Breakpoint, len(request.Arguments.Breakpoints))
	fileID, fileFound := s.dbg.Symbols().FindFile(path)
	for i, want := range request.Arguments.Breakpoints {
		got := dap.Breakpoint{Line: want.Line, Source: &dap.Source{Path: path}}
		if fileFound {
			if bp, err := s.dbg.CreateBreakpointAtLine(fileID, want.Line); err == nil {
				got.Id = bp.ID
				got.Verified = true
				got.Line = bp.Line
				s.sourceBps[path] = append(s.sourceBps[path], bp.Addr)
			}
		}
		response.Body.Breakpoints[i] = got
	}
	s.send(response)
}

func (s *Session) onConfigurationDoneRequest(request *dap.ConfigurationDoneRequest) {
	s.send(&dap.ConfigurationDoneResponse{Response: *newResponse(request.Request)})
	if s.dbg == nil {
		return
	}
	state, err := s.dbg.Start()
	if err != nil {
		s.sendErrorResponse(request.Request, "Failed to start", err.Error())
		return
	}
	s.sendStopState(state, "entry")
}

func (s *Session) onThreadsRequest(request *dap.ThreadsRequest) {
	response := &dap.ThreadsResponse{Response: *newResponse(request.Request)}
	response.Body.Threads = []dap.Thread{{Id: 1, Name: "circuit"}}
	s.send(response)
}

func (s *Session) onStackTraceRequest(request *dap.StackTraceRequest) {
	response := &dap.StackTraceResponse{Response: *newResponse(request.Request)}
	for _, f := range s.dbg.Stacktrace() {
		name := f.Function
		if name == "" {
			name = fmt.Sprintf("opcode %s", f.Location.Addr)
		}
		frame := dap.StackFrame{Id: f.Index, Name: name, Line: f.Location.Line}
		if f.Location.File != "" {
			frame.Source = &dap.Source{Path: f.Location.File}
		}
		response.Body.StackFrames = append(response.Body.StackFrames, frame)
	}
	response.Body.TotalFrames = len(response.Body.StackFrames)
	s.send(response)
}

// Scope kinds stored behind variables-reference handles.
type scopeKind int

const (
	scopeLocals scopeKind = iota
	scopeWitness
	scopeRegisters
	scopeMemory
)

func (s *Session) onScopesRequest(request *dap.ScopesRequest) {
	response := &dap.ScopesResponse{Response: *newResponse(request.Request)}
	response.Body.Scopes = []dap.Scope{
		{Name: "Locals", VariablesReference: s.handles.create(scopeLocals)},
		{Name: "Witness Map", VariablesReference: s.handles.create(scopeWitness)},
	}
	if _, err := s.dbg.Registers(); !errors.Is(err, debugger.ErrNotExecutingBrillig) {
		response.Body.Scopes = append(response.Body.Scopes,
			dap.Scope{Name: "Registers", VariablesReference: s.handles.create(scopeRegisters)},
			dap.Scope{Name: "Memory", VariablesReference: s.handles.create(scopeMemory)})
	}
	s.send(response)
}

func (s *Session) onVariablesRequest(request *dap.VariablesRequest) {
	v, ok := s.handles.get(request.Arguments.VariablesReference)
	if !ok {
		s.sendErrorResponse(request.Request, "Unable to lookup variables",
			fmt.Sprintf("unknown reference %d", request.Arguments.VariablesReference))
		return
	}
	response := &dap.VariablesResponse{Response: *newResponse(request.Request)}
	response.Body.Variables = []dap.Variable{}
	switch v.(scopeKind) {
	case scopeLocals:
		for _, local := range s.dbg.Variables() {
			value := local.Value
			if local.Unbound {
				value = "(not bound)"
			}
			response.Body.Variables = append(response.Body.Variables,
				dap.Variable{Name: local.Name, Value: value})
		}
	case scopeWitness:
		for _, a := range s.dbg.WitnessAssignments() {
			response.Body.Variables = append(response.Body.Variables,
				dap.Variable{Name: a.Index.String(), Value: a.Value, Type: "field"})
		}
	case scopeRegisters:
		regs, err := s.dbg.Registers()
		if err != nil {
			response.Body.Variables = append(response.Body.Variables,
				dap.Variable{Name: "registers", Value: "(not yet available)"})
			break
		}
		for i := range regs {
			response.Body.Variables = append(response.Body.Variables,
				dap.Variable{Name: fmt.Sprintf("r%d", i), Value: regs[i].String(), Type: "field"})
		}
	case scopeMemory:
		mem, err := s.dbg.Memory()
		if err != nil {
			break
		}
		for i := range mem {
			response.Body.Variables = append(response.Body.Variables,
				dap.Variable{Name: fmt.Sprintf("m%d", i), Value: mem[i].String(), Type: "field"})
		}
	}
	s.send(response)
}

func (s *Session) onContinueRequest(request *dap.ContinueRequest) {
	response := &dap.ContinueResponse{Response: *newResponse(request.Request)}
	response.Body.AllThreadsContinued = true
	s.send(response)
	s.resume("breakpoint", s.dbg.Continue)
}

func (s *Session) onNextRequest(request *dap.NextRequest) {
	s.send(&dap.NextResponse{Response: *newResponse(request.Request)})
	s.resume("step", s.dbg.Next)
}

func (s *Session) onStepInRequest(request *dap.StepInRequest) {
	s.send(&dap.StepInResponse{Response: *newResponse(request.Request)})
	s.resume("step", s.dbg.Step)
}

func (s *Session) onStepOutRequest(request *dap.StepOutRequest) {
	s.send(&dap.StepOutResponse{Response: *newResponse(request.Request)})
	s.resume("step", s.dbg.StepOut)
}

func (s *Session) onRestartRequest(request *dap.RestartRequest) {
	state, err := s.dbg.Restart()
	if err != nil {
		s.sendErrorResponse(request.Request, "Failed to restart", err.Error())
		return
	}
	s.send(&dap.RestartResponse{Response: *newResponse(request.Request)})
	s.sendStopState(state, "entry")
}

func (s *Session) onDisconnectRequest(request *dap.DisconnectRequest) {
	s.send(&dap.DisconnectResponse{Response: *newResponse(request.Request)})
}

// resume runs a stepping command and reports its outcome to the client.
func (s *Session) resume(reason string, run func() (*api.DebuggerState, error)) {
	s.handles.reset()
	state, err := run()
	if err != nil {
		s.log.Errorf("resume failed: %v", err)
		return
	}
	s.sendStopState(state, reason)
}

func (s *Session) sendStopState(state *api.DebuggerState, reason string) {
	switch state.State {
	case api.Finished:
		s.send(&dap.TerminatedEvent{Event: *newEvent("terminated")})
	case api.Failed:
		output := &dap.OutputEvent{Event: *newEvent("output")}
		output.Body.Category = "stderr"
		output.Body.Output = fmt.Sprintf("execution failed: %s\n", state.Err)
		s.send(output)
		s.send(&dap.TerminatedEvent{Event: *newEvent("terminated")})
	case api.PausedAtBreakpoint:
		s.sendStoppedEvent("breakpoint")
	default:
		s.sendStoppedEvent(reason)
	}
}

func (s *Session) sendStoppedEvent(reason string) {
	event := &dap.StoppedEvent{Event: *newEvent("stopped")}
	event.Body.Reason = reason
	event.Body.ThreadId = 1
	event.Body.AllThreadsStopped = true
	s.send(event)
}
