package server

import (
	"fmt"

	"github.com/HanzPo/brainfuck/vm"
)

// workerRequest represents a unit of work to be executed on the session's
// interpreter goroutine.
type workerRequest struct {
	fn   func(*vm.Interpreter) (interface{}, error)
	done chan workerResult
}

// workerResult holds the return value from an interpreter operation.
type workerResult struct {
	value interface{}
	err   error
}

// Worker serializes all interpreter access through a single goroutine.
// Step and Run are not reentrant; all RPC handlers for a session must go
// through its worker to avoid overlapping step transitions.
type Worker struct {
	interp   *vm.Interpreter
	requests chan workerRequest
	quit     chan struct{}
}

// NewWorker creates a Worker and starts the processing goroutine.
func NewWorker(in *vm.Interpreter) *Worker {
	w := &Worker{
		interp:   in,
		requests: make(chan workerRequest, 16),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

// loop processes interpreter requests sequentially on a dedicated goroutine.
func (w *Worker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs a function on the interpreter, recovering from panics.
func (w *Worker) execute(fn func(*vm.Interpreter) (interface{}, error)) workerResult {
	var result workerResult
	func() {
		defer func() {
			if r := recover(); r != nil {
				result.err = fmt.Errorf("%v", r)
			}
		}()
		result.value, result.err = fn(w.interp)
	}()
	return result
}

// Do submits a function for execution on the interpreter goroutine and
// blocks until it completes. Returns the result and any error (including
// panics).
func (w *Worker) Do(fn func(*vm.Interpreter) (interface{}, error)) (interface{}, error) {
	req := workerRequest{
		fn:   fn,
		done: make(chan workerResult, 1),
	}
	w.requests <- req
	result := <-req.done
	return result.value, result.err
}

// Stop shuts down the worker goroutine.
func (w *Worker) Stop() {
	close(w.quit)
}

// Interpreter returns the underlying interpreter for operations that are
// safe without serialization (State, Pause, Image).
func (w *Worker) Interpreter() *vm.Interpreter {
	return w.interp
}
