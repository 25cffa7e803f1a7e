// Package server exposes interpreter sessions and the program library
// over Connect (HTTP/JSON), plus an LSP front end for editors.
package server

import (
	"net/http"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"

	"github.com/HanzPo/brainfuck/library"
)

var log = commonlog.GetLogger("brainfuck.server")

// Server is the workbench server wrapping interpreter sessions. It
// serves Connect (HTTP/JSON) endpoints on a single port.
type Server struct {
	sessions *SessionStore
	mux      *http.ServeMux
}

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	lib *library.Library
}

// WithLibrary enables the library service backed by the given store.
// Without it, only the session service is registered.
func WithLibrary(lib *library.Library) ServerOption {
	return func(c *serverConfig) { c.lib = lib }
}

// New creates a Server with a fresh session store.
func New(opts ...ServerOption) *Server {
	cfg := &serverConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &Server{
		sessions: NewSessionStore(),
		mux:      http.NewServeMux(),
	}

	codec := connect.WithCodec(jsonCodec{})

	sessionSvc := NewSessionService(s.sessions)
	s.mux.Handle(ProcCreateSession, connect.NewUnaryHandler(ProcCreateSession, sessionSvc.CreateSession, codec))
	s.mux.Handle(ProcDestroySession, connect.NewUnaryHandler(ProcDestroySession, sessionSvc.DestroySession, codec))
	s.mux.Handle(ProcGetState, connect.NewUnaryHandler(ProcGetState, sessionSvc.GetState, codec))
	s.mux.Handle(ProcStep, connect.NewUnaryHandler(ProcStep, sessionSvc.Step, codec))
	s.mux.Handle(ProcRun, connect.NewUnaryHandler(ProcRun, sessionSvc.Run, codec))
	s.mux.Handle(ProcPause, connect.NewUnaryHandler(ProcPause, sessionSvc.Pause, codec))
	s.mux.Handle(ProcResume, connect.NewUnaryHandler(ProcResume, sessionSvc.Resume, codec))
	s.mux.Handle(ProcReset, connect.NewUnaryHandler(ProcReset, sessionSvc.Reset, codec))
	s.mux.Handle(ProcProvideInput, connect.NewUnaryHandler(ProcProvideInput, sessionSvc.ProvideInput, codec))
	s.mux.Handle(ProcSaveImage, connect.NewUnaryHandler(ProcSaveImage, sessionSvc.SaveImage, codec))
	s.mux.Handle(ProcRestoreImage, connect.NewUnaryHandler(ProcRestoreImage, sessionSvc.RestoreImage, codec))

	if cfg.lib != nil {
		libSvc := NewLibraryService(cfg.lib)
		s.mux.Handle(ProcSaveProgram, connect.NewUnaryHandler(ProcSaveProgram, libSvc.SaveProgram, codec))
		s.mux.Handle(ProcGetProgram, connect.NewUnaryHandler(ProcGetProgram, libSvc.GetProgram, codec))
		s.mux.Handle(ProcListPrograms, connect.NewUnaryHandler(ProcListPrograms, libSvc.ListPrograms, codec))
		s.mux.Handle(ProcDeleteProgram, connect.NewUnaryHandler(ProcDeleteProgram, libSvc.DeleteProgram, codec))
		s.mux.Handle(ProcListRuns, connect.NewUnaryHandler(ProcListRuns, libSvc.ListRuns, codec))
	}

	return s
}

// Handler returns the HTTP handler serving all registered endpoints.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Sessions returns the server's session store.
func (s *Server) Sessions() *SessionStore {
	return s.sessions
}

// ListenAndServe starts the HTTP server on the given address.
// The address should be in the form "host:port" or ":port".
func (s *Server) ListenAndServe(addr string) error {
	log.Noticef("brainfuck session server listening on %s", addr)
	log.Infof("  Connect (HTTP/JSON): http://%s%s", addr, ProcCreateSession)
	return http.ListenAndServe(addr, s.mux)
}

// Stop tears down all sessions.
func (s *Server) Stop() {
	s.sessions.Close()
}
