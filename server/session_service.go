package server

import (
	"context"
	"fmt"

	"connectrpc.com/connect"

	"github.com/HanzPo/brainfuck/vm"
)

// SessionService implements the SessionService Connect handlers: one
// interpreter session per loaded program, with step-wise and continuous
// execution, cooperative pause/resume, asynchronous input delivery, and
// state images.
type SessionService struct {
	sessions *SessionStore
}

// NewSessionService creates a SessionService.
func NewSessionService(sessions *SessionStore) *SessionService {
	return &SessionService{sessions: sessions}
}

// lookup resolves a session ID or produces the canonical connect error.
func (s *SessionService) lookup(id string) (*Session, *connect.Error) {
	if id == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("session_id is required"))
	}
	session, ok := s.sessions.Get(id)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("session %q not found", id))
	}
	return session, nil
}

// CreateSession loads a program into a fresh interpreter session.
func (s *SessionService) CreateSession(
	ctx context.Context,
	req *connect.Request[CreateSessionRequest],
) (*connect.Response[CreateSessionResponse], error) {
	if req.Msg.Program == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("program is required"))
	}

	session, err := s.sessions.Create(req.Msg.Name, req.Msg.Program, req.Msg.MemorySize)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	return connect.NewResponse(&CreateSessionResponse{SessionID: session.ID}), nil
}

// DestroySession tears down a session, cancelling any in-flight run.
func (s *SessionService) DestroySession(
	ctx context.Context,
	req *connect.Request[DestroySessionRequest],
) (*connect.Response[DestroySessionResponse], error) {
	if _, cerr := s.lookup(req.Msg.SessionID); cerr != nil {
		return nil, cerr
	}

	s.sessions.Destroy(req.Msg.SessionID)
	return connect.NewResponse(&DestroySessionResponse{}), nil
}

// GetState returns a consistent snapshot of the session's interpreter.
func (s *SessionService) GetState(
	ctx context.Context,
	req *connect.Request[GetStateRequest],
) (*connect.Response[GetStateResponse], error) {
	session, cerr := s.lookup(req.Msg.SessionID)
	if cerr != nil {
		return nil, cerr
	}

	state := session.worker.Interpreter().State()
	return connect.NewResponse(&GetStateResponse{
		Program:        session.Program,
		Memory:         state.Memory,
		Pointer:        state.Pointer,
		ProgramCounter: state.ProgramCounter,
		Output:         state.Output,
		Input:          state.Input,
		InputIndex:     state.InputIndex,
		IsRunning:      state.IsRunning,
		IsPaused:       state.IsPaused,
		LastError:      session.LastError(),
	}), nil
}

// Step executes a single instruction. A ',' on an exhausted buffer
// suspends until input arrives over ProvideInput or the request context
// ends.
func (s *SessionService) Step(
	ctx context.Context,
	req *connect.Request[StepRequest],
) (*connect.Response[StepResponse], error) {
	session, cerr := s.lookup(req.Msg.SessionID)
	if cerr != nil {
		return nil, cerr
	}
	if session.RunInFlight() {
		return nil, connect.NewError(connect.CodeFailedPrecondition, fmt.Errorf("session %q has a run loop in flight", session.ID))
	}

	result, err := session.worker.Do(func(in *vm.Interpreter) (interface{}, error) {
		stepped, err := in.Step(ctx)
		return stepped, err
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeAborted, err)
	}

	return connect.NewResponse(&StepResponse{Stepped: result.(bool)}), nil
}

// Run starts the continuous run loop on the session worker and returns
// immediately; progress is observed through GetState.
func (s *SessionService) Run(
	ctx context.Context,
	req *connect.Request[RunRequest],
) (*connect.Response[RunResponse], error) {
	session, cerr := s.lookup(req.Msg.SessionID)
	if cerr != nil {
		return nil, cerr
	}

	if err := session.StartRun(false); err != nil {
		return nil, connect.NewError(connect.CodeFailedPrecondition, err)
	}
	return connect.NewResponse(&RunResponse{Started: true}), nil
}

// Pause requests cooperative suspension of the session's run loop.
func (s *SessionService) Pause(
	ctx context.Context,
	req *connect.Request[PauseRequest],
) (*connect.Response[PauseResponse], error) {
	session, cerr := s.lookup(req.Msg.SessionID)
	if cerr != nil {
		return nil, cerr
	}

	session.worker.Interpreter().Pause()
	return connect.NewResponse(&PauseResponse{}), nil
}

// Resume restarts a paused run loop from the current state.
func (s *SessionService) Resume(
	ctx context.Context,
	req *connect.Request[ResumeRequest],
) (*connect.Response[ResumeResponse], error) {
	session, cerr := s.lookup(req.Msg.SessionID)
	if cerr != nil {
		return nil, cerr
	}

	if !session.worker.Interpreter().IsPaused() {
		return connect.NewResponse(&ResumeResponse{Started: false}), nil
	}
	if err := session.StartRun(true); err != nil {
		return nil, connect.NewError(connect.CodeFailedPrecondition, err)
	}
	return connect.NewResponse(&ResumeResponse{Started: true}), nil
}

// Reset reinitializes the session's interpreter in place.
func (s *SessionService) Reset(
	ctx context.Context,
	req *connect.Request[ResetRequest],
) (*connect.Response[ResetResponse], error) {
	session, cerr := s.lookup(req.Msg.SessionID)
	if cerr != nil {
		return nil, cerr
	}
	if session.RunInFlight() {
		return nil, connect.NewError(connect.CodeFailedPrecondition, fmt.Errorf("pause session %q before resetting", session.ID))
	}

	_, err := session.worker.Do(func(in *vm.Interpreter) (interface{}, error) {
		in.Reset()
		return nil, nil
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(&ResetResponse{}), nil
}

// ProvideInput queues input text, resolving a suspended ',' instruction.
func (s *SessionService) ProvideInput(
	ctx context.Context,
	req *connect.Request[ProvideInputRequest],
) (*connect.Response[ProvideInputResponse], error) {
	session, cerr := s.lookup(req.Msg.SessionID)
	if cerr != nil {
		return nil, cerr
	}

	if err := session.ProvideInput(req.Msg.Text); err != nil {
		return nil, connect.NewError(connect.CodeResourceExhausted, err)
	}
	return connect.NewResponse(&ProvideInputResponse{}), nil
}

// SaveImage captures the session's execution state as a CBOR image.
func (s *SessionService) SaveImage(
	ctx context.Context,
	req *connect.Request[SaveImageRequest],
) (*connect.Response[SaveImageResponse], error) {
	session, cerr := s.lookup(req.Msg.SessionID)
	if cerr != nil {
		return nil, cerr
	}

	data, err := session.worker.Interpreter().Image()
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(&SaveImageResponse{Image: data}), nil
}

// RestoreImage creates a new session resuming from a saved image.
func (s *SessionService) RestoreImage(
	ctx context.Context,
	req *connect.Request[RestoreImageRequest],
) (*connect.Response[RestoreImageResponse], error) {
	if len(req.Msg.Image) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("image is required"))
	}

	session, err := s.sessions.Restore(req.Msg.Name, req.Msg.Image)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	return connect.NewResponse(&RestoreImageResponse{SessionID: session.ID}), nil
}
