package vm

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

// DefaultMemorySize is the tape length used when no size is configured.
const DefaultMemorySize = 30000

// ErrInvalidMemorySize is returned by New when the configured tape size
// is zero or negative.
var ErrInvalidMemorySize = errors.New("vm: memory size must be a positive integer")

// OutputSink receives one character each time a '.' instruction executes.
// It runs synchronously within the step that produced the character and
// must not block indefinitely.
type OutputSink func(ch byte)

// InputSource supplies additional input text on demand. It is invoked
// only when the input buffer is exhausted at the moment a ',' instruction
// executes, and may block until input is available. Returning an empty
// string is allowed; the current cell is then written as 0.
type InputSource func(ctx context.Context) (string, error)

// Option configures an Interpreter at construction time.
type Option func(*Interpreter)

// WithMemorySize sets the tape length. Must be positive or New fails.
func WithMemorySize(n int) Option {
	return func(in *Interpreter) { in.memorySize = n }
}

// WithOutputSink binds the callback invoked on every '.' instruction.
func WithOutputSink(sink OutputSink) Option {
	return func(in *Interpreter) { in.sink = sink }
}

// WithInputSource binds the callback that acquires input text when the
// buffer runs dry. Without a source, ',' writes 0 on an empty buffer.
func WithInputSource(source InputSource) Option {
	return func(in *Interpreter) { in.source = source }
}

// ---------------------------------------------------------------------------
// Interpreter: tape machine execution engine
// ---------------------------------------------------------------------------

// Interpreter executes a Brainfuck program over a fixed-size wrapping
// byte tape. It is bound to an immutable program text for its lifetime.
//
// Step and Run are not reentrant: a second call while one is in flight
// (for example while a step is awaiting the input source) is a caller
// error. Callers that share an Interpreter across goroutines must
// serialize execution themselves; the server package does this with a
// per-session worker goroutine. State, Pause, and Resume are safe to
// call concurrently with a running loop.
type Interpreter struct {
	program    string
	memorySize int
	sink       OutputSink
	source     InputSource

	mu         sync.Mutex
	memory     []byte
	pointer    int
	counter    int
	output     []byte
	input      []byte
	inputIndex int
	loopStack  []int

	running atomic.Bool
	paused  atomic.Bool
}

// New creates an Interpreter bound to the given program text. Characters
// outside the eight command characters are ignored during execution.
func New(program string, opts ...Option) (*Interpreter, error) {
	in := &Interpreter{
		program:    program,
		memorySize: DefaultMemorySize,
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.memorySize <= 0 {
		return nil, ErrInvalidMemorySize
	}
	in.memory = make([]byte, in.memorySize)
	return in, nil
}

// Program returns the program text the interpreter is bound to.
func (in *Interpreter) Program() string {
	return in.program
}

// State is a consistent point-in-time snapshot of interpreter state.
// Slices are defensive copies; mutating a State never affects the engine.
type State struct {
	Memory         []byte
	Pointer        int
	ProgramCounter int
	Output         string
	Input          string
	InputIndex     int
	IsRunning      bool
	IsPaused       bool
}

// State returns a snapshot taken at a step boundary. It never tears:
// all fields reflect the same point in the step sequence.
func (in *Interpreter) State() State {
	in.mu.Lock()
	defer in.mu.Unlock()

	memory := make([]byte, len(in.memory))
	copy(memory, in.memory)

	return State{
		Memory:         memory,
		Pointer:        in.pointer,
		ProgramCounter: in.counter,
		Output:         string(in.output),
		Input:          string(in.input),
		InputIndex:     in.inputIndex,
		IsRunning:      in.running.Load(),
		IsPaused:       in.paused.Load(),
	}
}

// Reset reinitializes all execution state in place: zeroed tape, pointer
// and counter at 0, cleared output, input, flags, and loop stack. The
// program binding and tape size are unchanged. No callbacks are invoked.
func (in *Interpreter) Reset() {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.memory = make([]byte, in.memorySize)
	in.pointer = 0
	in.counter = 0
	in.output = nil
	in.input = nil
	in.inputIndex = 0
	in.loopStack = nil
	in.running.Store(false)
	in.paused.Store(false)
}

// Step executes at most one instruction. It returns false once the
// program counter has reached the end of the program text, true after
// any executed step (including no-op comment characters).
//
// The only suspension point is the ',' instruction with an exhausted
// input buffer and a bound input source: the step blocks until the
// source resolves or ctx is cancelled. All other instructions complete
// without blocking.
func (in *Interpreter) Step(ctx context.Context) (bool, error) {
	in.mu.Lock()

	if in.counter >= len(in.program) {
		in.running.Store(false)
		in.mu.Unlock()
		return false, nil
	}

	var emitted byte
	emit := false

	switch in.program[in.counter] {
	case '>':
		in.pointer = (in.pointer + 1) % len(in.memory)

	case '<':
		in.pointer = (in.pointer - 1 + len(in.memory)) % len(in.memory)

	case '+':
		in.memory[in.pointer]++

	case '-':
		in.memory[in.pointer]--

	case '.':
		emitted = in.memory[in.pointer]
		in.output = append(in.output, emitted)
		emit = in.sink != nil

	case ',':
		if in.source != nil && in.inputIndex >= len(in.input) {
			// Suspend this step until the source resolves. The lock is
			// released so State and Pause stay usable during the wait.
			source := in.source
			in.mu.Unlock()
			text, err := source(ctx)
			if err != nil {
				in.running.Store(false)
				return false, err
			}
			in.mu.Lock()
			in.input = append(in.input, text...)
		}
		if in.inputIndex < len(in.input) {
			in.memory[in.pointer] = in.input[in.inputIndex]
			in.inputIndex++
		} else {
			in.memory[in.pointer] = 0
		}

	case '[':
		if in.memory[in.pointer] == 0 {
			// Jump to the matching ']'; the increment below lands just
			// past it. Unmatched brackets are not validated: the scan
			// may run off the end, which terminates the program.
			depth := 1
			pos := in.counter + 1
			for pos < len(in.program) && depth > 0 {
				switch in.program[pos] {
				case '[':
					depth++
				case ']':
					depth--
				}
				if depth == 0 {
					break
				}
				pos++
			}
			in.counter = pos
		} else {
			in.loopStack = append(in.loopStack, in.counter)
		}

	case ']':
		if in.memory[in.pointer] != 0 {
			// Peek, don't pop: the '[' position stays on the stack until
			// the loop actually exits.
			if n := len(in.loopStack); n > 0 {
				in.counter = in.loopStack[n-1]
			}
		} else if n := len(in.loopStack); n > 0 {
			in.loopStack = in.loopStack[:n-1]
		}
		// A ']' with an empty loop stack falls through as a no-op.

	default:
		// Comment character.
	}

	in.counter++
	in.mu.Unlock()

	if emit {
		// The sink runs outside the lock but still synchronously within
		// this step, so sink invocations keep execution order.
		in.sink(emitted)
	}
	return true, nil
}

// Run drives repeated stepping until the program terminates, a pause is
// requested, or ctx is cancelled. It yields to the scheduler once per
// step so a surrounding interactive system stays responsive. IsRunning
// reports true only while the loop is actively executing.
func (in *Interpreter) Run(ctx context.Context) error {
	in.running.Store(true)
	in.paused.Store(false)

	for {
		stepped, err := in.Step(ctx)
		if err != nil {
			in.running.Store(false)
			return err
		}
		if !stepped {
			in.running.Store(false)
			return nil
		}

		runtime.Gosched()

		if in.paused.Load() {
			in.running.Store(false)
			return nil
		}
		if err := ctx.Err(); err != nil {
			in.running.Store(false)
			return err
		}
	}
}

// Pause requests cooperative suspension of a run loop. It takes effect
// at the next iteration boundary, never preempting a step in progress;
// a step blocked on the input source pauses once that step completes.
func (in *Interpreter) Pause() {
	in.paused.Store(true)
}

// Resume restarts the run loop from the current state if the interpreter
// is paused. It is not a separate code path: it clears the pause flag
// and re-invokes Run. Resuming a non-paused interpreter is a no-op.
func (in *Interpreter) Resume(ctx context.Context) error {
	if !in.paused.Load() {
		return nil
	}
	return in.Run(ctx)
}

// IsRunning reports whether a run loop is actively executing.
func (in *Interpreter) IsRunning() bool {
	return in.running.Load()
}

// IsPaused reports whether a pause has been requested or taken effect.
func (in *Interpreter) IsPaused() bool {
	return in.paused.Load()
}
