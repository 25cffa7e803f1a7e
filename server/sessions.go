package server

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/HanzPo/brainfuck/vm"
)

// inputQueueSize bounds how much input text can be queued ahead of the
// interpreter consuming it.
const inputQueueSize = 16

// Session owns one interpreter, the worker goroutine that serializes
// access to it, and the input queue backing its input source.
type Session struct {
	ID      string
	Name    string
	Program string

	worker  *Worker
	inputCh chan string

	ctx    context.Context
	cancel context.CancelFunc

	runActive atomic.Bool

	mu      sync.Mutex
	lastErr string
}

// newSession builds a session around a fresh interpreter. The session's
// input source blocks on the input queue, so a ',' instruction suspends
// until ProvideInput feeds it (or the session is destroyed).
func newSession(name, program string, memorySize int) (*Session, error) {
	s := &Session{
		ID:      uuid.NewString(),
		Name:    name,
		Program: program,
		inputCh: make(chan string, inputQueueSize),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	opts := []vm.Option{vm.WithInputSource(s.awaitInput)}
	if memorySize > 0 {
		opts = append(opts, vm.WithMemorySize(memorySize))
	}

	interp, err := vm.New(program, opts...)
	if err != nil {
		s.cancel()
		return nil, err
	}
	s.worker = NewWorker(interp)
	return s, nil
}

// restoreSession builds a session around an interpreter restored from an
// image. The restored interpreter is rebound to the session's input queue.
func restoreSession(name string, data []byte) (*Session, error) {
	s := &Session{
		ID:      uuid.NewString(),
		Name:    name,
		inputCh: make(chan string, inputQueueSize),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	interp, err := vm.FromImage(data, vm.WithInputSource(s.awaitInput))
	if err != nil {
		s.cancel()
		return nil, err
	}
	s.Program = interp.Program()
	s.worker = NewWorker(interp)
	return s, nil
}

// awaitInput is the session's input source: it resolves when input text
// arrives over ProvideInput, or fails when the context ends.
func (s *Session) awaitInput(ctx context.Context) (string, error) {
	select {
	case text := <-s.inputCh:
		return text, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-s.ctx.Done():
		return "", s.ctx.Err()
	}
}

// ProvideInput queues input text for the interpreter. It fails when the
// queue is full rather than blocking the caller.
func (s *Session) ProvideInput(text string) error {
	select {
	case s.inputCh <- text:
		return nil
	default:
		return fmt.Errorf("input queue full for session %s", s.ID)
	}
}

// StartRun launches the run loop on the session worker. Only one run
// loop may be in flight per session.
func (s *Session) StartRun(resume bool) error {
	if !s.runActive.CompareAndSwap(false, true) {
		return fmt.Errorf("session %s already has a run loop in flight", s.ID)
	}

	go func() {
		defer s.runActive.Store(false)
		_, err := s.worker.Do(func(in *vm.Interpreter) (interface{}, error) {
			if resume {
				return nil, in.Resume(s.ctx)
			}
			return nil, in.Run(s.ctx)
		})
		s.setLastError(err)
	}()
	return nil
}

// RunInFlight reports whether a run loop currently occupies the worker.
func (s *Session) RunInFlight() bool {
	return s.runActive.Load()
}

func (s *Session) setLastError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastErr = err.Error()
	} else {
		s.lastErr = ""
	}
}

// LastError returns the error message from the most recent run loop, or
// an empty string.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// close cancels any in-flight run or input wait and stops the worker.
func (s *Session) close() {
	s.cancel()
	s.worker.Stop()
}

// SessionStore manages interpreter sessions.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionStore creates a new session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
	}
}

// Create creates a session running the given program.
func (s *SessionStore) Create(name, program string, memorySize int) (*Session, error) {
	session, err := newSession(name, program, memorySize)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	return session, nil
}

// Restore creates a session from a state image.
func (s *SessionStore) Restore(name string, image []byte) (*Session, error) {
	session, err := restoreSession(name, image)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	return session, nil
}

// Get retrieves a session by ID.
func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	return session, ok
}

// Destroy removes a session and releases its resources.
func (s *SessionStore) Destroy(id string) {
	s.mu.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		session.close()
	}
}

// Close destroys every session in the store.
func (s *SessionStore) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, session := range sessions {
		session.close()
	}
}
