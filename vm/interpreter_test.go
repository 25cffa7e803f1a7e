package vm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

func TestNewDefaults(t *testing.T) {
	in, err := New("+")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	state := in.State()
	if len(state.Memory) != DefaultMemorySize {
		t.Errorf("tape length = %d, want %d", len(state.Memory), DefaultMemorySize)
	}
	if state.Pointer != 0 || state.ProgramCounter != 0 {
		t.Errorf("initial pointer/counter = %d/%d, want 0/0", state.Pointer, state.ProgramCounter)
	}
	if state.IsRunning || state.IsPaused {
		t.Error("new interpreter should be neither running nor paused")
	}
}

func TestNewInvalidMemorySize(t *testing.T) {
	for _, size := range []int{0, -1, -30000} {
		if _, err := New("+", WithMemorySize(size)); !errors.Is(err, ErrInvalidMemorySize) {
			t.Errorf("New(size=%d) error = %v, want ErrInvalidMemorySize", size, err)
		}
	}
}

// ---------------------------------------------------------------------------
// Single instructions
// ---------------------------------------------------------------------------

func TestIncrementDecrement(t *testing.T) {
	in, _ := New("+++--", WithMemorySize(1))
	if err := in.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := in.State().Memory[0]; got != 1 {
		t.Errorf("cell = %d, want 1", got)
	}
}

func TestCellWraparoundLaw(t *testing.T) {
	// 256 increments return the cell to its original value.
	in, _ := New(strings.Repeat("+", 256), WithMemorySize(1))
	if err := in.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := in.State().Memory[0]; got != 0 {
		t.Errorf("cell after 256 '+' = %d, want 0", got)
	}

	in, _ = New("-", WithMemorySize(1))
	in.Run(context.Background())
	if got := in.State().Memory[0]; got != 255 {
		t.Errorf("cell after '-' from 0 = %d, want 255", got)
	}
}

func TestPointerWraparoundLaw(t *testing.T) {
	// memory.length moves return the pointer to its original index.
	const size = 5
	in, _ := New(strings.Repeat(">", size), WithMemorySize(size))
	in.Run(context.Background())
	if got := in.State().Pointer; got != 0 {
		t.Errorf("pointer after %d '>' = %d, want 0", size, got)
	}

	in, _ = New("<", WithMemorySize(size))
	in.Run(context.Background())
	if got := in.State().Pointer; got != size-1 {
		t.Errorf("pointer after '<' from 0 = %d, want %d", got, size-1)
	}
}

func TestCommentCharactersIgnored(t *testing.T) {
	in, _ := New("a+ b+\nc+! ", WithMemorySize(1))
	if err := in.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := in.State().Memory[0]; got != 3 {
		t.Errorf("cell = %d, want 3", got)
	}
}

// ---------------------------------------------------------------------------
// Output and input
// ---------------------------------------------------------------------------

func TestOutputSinkScenario(t *testing.T) {
	// Program "+++." with a one-cell tape emits exactly one character,
	// code point 3.
	var got []byte
	in, _ := New("+++.", WithMemorySize(1), WithOutputSink(func(ch byte) {
		got = append(got, ch)
	}))
	if err := in.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(got) != 1 || got[0] != 3 {
		t.Errorf("sink received %v, want [3]", got)
	}

	state := in.State()
	if state.Pointer != 0 {
		t.Errorf("pointer = %d, want 0", state.Pointer)
	}
	if state.Memory[0] != 3 {
		t.Errorf("cell = %d, want 3", state.Memory[0])
	}
	if state.Output != string([]byte{3}) {
		t.Errorf("accumulated output = %q, want %q", state.Output, string([]byte{3}))
	}
}

func TestOutputWithoutSink(t *testing.T) {
	in, _ := New("+.", WithMemorySize(1))
	if err := in.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := in.State().Output; got != string([]byte{1}) {
		t.Errorf("output = %q, want %q", got, string([]byte{1}))
	}
}

func TestInputSourceScenario(t *testing.T) {
	// ",." with a source resolving to "A" echoes "A" through the sink.
	var got []byte
	in, _ := New(",.",
		WithOutputSink(func(ch byte) { got = append(got, ch) }),
		WithInputSource(func(ctx context.Context) (string, error) {
			return "A", nil
		}))
	if err := in.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if string(got) != "A" {
		t.Errorf("sink received %q, want %q", got, "A")
	}
}

func TestInputSourceOncePerExhaustion(t *testing.T) {
	calls := 0
	in, _ := New(",,",
		WithInputSource(func(ctx context.Context) (string, error) {
			calls++
			return "AB", nil
		}))
	if err := in.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// The first ',' exhausts, the source returns two characters, so the
	// second ',' consumes from the buffer without a new request.
	if calls != 1 {
		t.Errorf("source calls = %d, want 1", calls)
	}

	state := in.State()
	if state.Input != "AB" || state.InputIndex != 2 {
		t.Errorf("input/cursor = %q/%d, want %q/2", state.Input, state.InputIndex, "AB")
	}
}

func TestInputSourceRepeatedExhaustion(t *testing.T) {
	inputs := []string{"x", "y"}
	calls := 0
	in, _ := New(",>,",
		WithMemorySize(2),
		WithInputSource(func(ctx context.Context) (string, error) {
			text := inputs[calls]
			calls++
			return text, nil
		}))
	if err := in.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 2 {
		t.Errorf("source calls = %d, want 2", calls)
	}

	mem := in.State().Memory
	if mem[0] != 'x' || mem[1] != 'y' {
		t.Errorf("cells = %v, want ['x' 'y']", mem[:2])
	}
}

func TestInputWithoutSourceWritesZero(t *testing.T) {
	in, _ := New("+,", WithMemorySize(1))
	if err := in.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := in.State().Memory[0]; got != 0 {
		t.Errorf("cell = %d, want 0", got)
	}
}

func TestInputSourceEmptyResultWritesZero(t *testing.T) {
	in, _ := New("+,", WithMemorySize(1),
		WithInputSource(func(ctx context.Context) (string, error) {
			return "", nil
		}))
	if err := in.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := in.State().Memory[0]; got != 0 {
		t.Errorf("cell = %d, want 0", got)
	}
}

func TestInputSourceError(t *testing.T) {
	wantErr := errors.New("source gone")
	in, _ := New(",", WithInputSource(func(ctx context.Context) (string, error) {
		return "", wantErr
	}))
	if err := in.Run(context.Background()); !errors.Is(err, wantErr) {
		t.Errorf("Run error = %v, want %v", err, wantErr)
	}
	if in.IsRunning() {
		t.Error("interpreter still running after source error")
	}
}

// ---------------------------------------------------------------------------
// Loops and brackets
// ---------------------------------------------------------------------------

func TestLoopScenario(t *testing.T) {
	// "++[>+++<-]>." runs the loop twice, leaving 6 in the second cell.
	var got []byte
	in, _ := New("++[>+++<-]>.", WithOutputSink(func(ch byte) {
		got = append(got, ch)
	}))
	if err := in.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != 1 || got[0] != 6 {
		t.Errorf("sink received %v, want [6]", got)
	}
}

func TestLoopBodyExecutionCount(t *testing.T) {
	// A countdown loop's body runs exactly as many times as the
	// counter's initial value, and leaves the counter cell at 0.
	const n = 5
	in, _ := New(strings.Repeat("+", n) + "[-]")

	ctx := context.Background()
	decrements := 0
	for {
		state := in.State()
		if state.ProgramCounter < len(in.Program()) && in.Program()[state.ProgramCounter] == '-' {
			decrements++
		}
		stepped, err := in.Step(ctx)
		if err != nil {
			t.Fatalf("Step: %v", err)
		}
		if !stepped {
			break
		}
	}

	if decrements != n {
		t.Errorf("loop body executions = %d, want %d", decrements, n)
	}
	if got := in.State().Memory[0]; got != 0 {
		t.Errorf("counter cell = %d, want 0", got)
	}
}

func TestSkipLoopOnZeroCell(t *testing.T) {
	in, _ := New("[+++]>+", WithMemorySize(2))
	if err := in.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	mem := in.State().Memory
	if mem[0] != 0 || mem[1] != 1 {
		t.Errorf("cells = %v, want [0 1]", mem[:2])
	}
}

func TestNestedLoops(t *testing.T) {
	// 3 * 2 via nested loops: outer runs 3 times, inner adds 2 each.
	in, _ := New("+++[>++[>+<-]<-]>>.", WithOutputSink(func(byte) {}))
	if err := in.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := in.State().Memory[2]; got != 6 {
		t.Errorf("product cell = %d, want 6", got)
	}
}

func TestUnmatchedClosingBracket(t *testing.T) {
	// Scenario: a lone ']' with a zero cell does not raise. One step
	// executes, then execution reaches natural termination.
	in, _ := New("]")
	ctx := context.Background()

	stepped, err := in.Step(ctx)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !stepped {
		t.Error("first Step = false, want true")
	}

	stepped, err = in.Step(ctx)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if stepped {
		t.Error("second Step = true, want false (terminated)")
	}
}

func TestUnmatchedClosingBracketNonzeroCell(t *testing.T) {
	// '+]' leaves a nonzero cell at the ']' with nothing on the loop
	// stack: defined as a no-op fall-through, so the program terminates.
	in, _ := New("+]")
	if err := in.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if in.State().ProgramCounter != 2 {
		t.Errorf("counter = %d, want 2", in.State().ProgramCounter)
	}
}

func TestUnmatchedOpeningBracketRunsOffEnd(t *testing.T) {
	// The forward scan finds no match and runs off the end; the program
	// terminates mechanically instead of raising.
	in, _ := New("[+++")
	if err := in.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := in.State().Memory[0]; got != 0 {
		t.Errorf("cell = %d, want 0 (body must be skipped)", got)
	}
}

// ---------------------------------------------------------------------------
// Step/termination protocol
// ---------------------------------------------------------------------------

func TestStepAfterTermination(t *testing.T) {
	in, _ := New("+", WithMemorySize(1))
	ctx := context.Background()

	if stepped, _ := in.Step(ctx); !stepped {
		t.Fatal("first Step = false, want true")
	}

	before := in.State()
	for i := 0; i < 3; i++ {
		stepped, err := in.Step(ctx)
		if err != nil {
			t.Fatalf("Step: %v", err)
		}
		if stepped {
			t.Fatal("Step after termination = true, want false")
		}
	}
	after := in.State()

	if after.ProgramCounter != before.ProgramCounter || after.Memory[0] != before.Memory[0] {
		t.Error("Step after termination mutated state")
	}
}

func TestResetRestoresInitialState(t *testing.T) {
	in, _ := New("+++>++.", WithMemorySize(4), WithOutputSink(func(byte) {}))
	if err := in.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	in.Reset()
	state := in.State()

	if state.ProgramCounter != 0 || state.Pointer != 0 {
		t.Errorf("counter/pointer after Reset = %d/%d, want 0/0", state.ProgramCounter, state.Pointer)
	}
	if state.Output != "" || state.Input != "" || state.InputIndex != 0 {
		t.Error("Reset did not clear output/input")
	}
	for i, cell := range state.Memory {
		if cell != 0 {
			t.Fatalf("cell %d = %d after Reset, want 0", i, cell)
		}
	}
	if state.IsRunning || state.IsPaused {
		t.Error("Reset did not clear flags")
	}

	// The program binding survives: running again reproduces the result.
	if err := in.Run(context.Background()); err != nil {
		t.Fatalf("Run after Reset: %v", err)
	}
	if got := in.State().Memory[1]; got != 2 {
		t.Errorf("cell 1 after rerun = %d, want 2", got)
	}
}

func TestStateSnapshotIsDefensiveCopy(t *testing.T) {
	in, _ := New("+", WithMemorySize(4))
	state := in.State()
	state.Memory[0] = 99

	if got := in.State().Memory[0]; got != 0 {
		t.Errorf("engine cell = %d after snapshot mutation, want 0", got)
	}
}

// ---------------------------------------------------------------------------
// Pause and resume
// ---------------------------------------------------------------------------

// waitUntil polls cond for up to two seconds.
func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestPauseAndResume(t *testing.T) {
	// "+[]" never terminates: pause must suspend it, resume must pick
	// up from the same position.
	in, _ := New("+[]")
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- in.Run(ctx) }()

	waitUntil(t, func() bool { return in.State().ProgramCounter > 0 })
	in.Pause()

	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !in.IsPaused() {
		t.Error("IsPaused = false after pause took effect")
	}
	if in.IsRunning() {
		t.Error("IsRunning = true after run loop exited")
	}

	paused := in.State()
	if paused.ProgramCounter < 1 || paused.ProgramCounter > 3 {
		t.Errorf("paused counter = %d, want within the loop", paused.ProgramCounter)
	}
	if paused.Memory[0] != 1 {
		t.Errorf("cell = %d at pause, want 1", paused.Memory[0])
	}

	// Resume restarts the loop from the current state.
	go func() { done <- in.Resume(ctx) }()
	waitUntil(t, in.IsRunning)

	in.Pause()
	if err := <-done; err != nil {
		t.Fatalf("Resume: %v", err)
	}

	resumed := in.State()
	if resumed.Memory[0] != 1 {
		t.Errorf("cell = %d after resume, want 1 (no reset happened)", resumed.Memory[0])
	}
	if resumed.ProgramCounter < 1 || resumed.ProgramCounter > 3 {
		t.Errorf("counter = %d after resume, want within the loop", resumed.ProgramCounter)
	}
}

func TestResumeWithoutPauseIsNoop(t *testing.T) {
	in, _ := New("+")
	if err := in.Resume(context.Background()); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if got := in.State().ProgramCounter; got != 0 {
		t.Errorf("counter = %d after no-op Resume, want 0", got)
	}
}

func TestRunHonorsContextCancellation(t *testing.T) {
	in, _ := New("+[]")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- in.Run(ctx) }()

	waitUntil(t, func() bool { return in.State().ProgramCounter > 0 })
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
	if in.IsRunning() {
		t.Error("IsRunning = true after cancellation")
	}
}

// ---------------------------------------------------------------------------
// Programs
// ---------------------------------------------------------------------------

const helloWorld = "++++++++[>++++[>++>+++>+++>+<<<<-]>+>+>->>+[<]<-]>>.>---.+++++++..+++.>>.<-.<.+++.------.--------.>>+.>++."

func TestHelloWorld(t *testing.T) {
	var out []byte
	in, _ := New(helloWorld, WithOutputSink(func(ch byte) {
		out = append(out, ch)
	}))
	if err := in.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	const want = "Hello World!\n"
	if string(out) != want {
		t.Errorf("output = %q, want %q", out, want)
	}
	if got := in.State().Output; got != want {
		t.Errorf("accumulated output = %q, want %q", got, want)
	}
}

func TestOutputOrderMatchesExecutionOrder(t *testing.T) {
	var out []byte
	in, _ := New("+.+.+.", WithMemorySize(1), WithOutputSink(func(ch byte) {
		out = append(out, ch)
	}))
	if err := in.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if string(out) != string([]byte{1, 2, 3}) {
		t.Errorf("sink order = %v, want [1 2 3]", out)
	}
}
