// Package vm implements the Brainfuck interpreter engine.
//
// This package contains:
//   - The tape machine: fixed-size wrapping byte tape, data pointer,
//     program counter, and loop-match stack
//   - Step-wise and run-to-completion execution with cooperative
//     pause/resume
//   - Asynchronous input acquisition through a caller-supplied source
//   - CBOR state images for suspending and restoring execution
package vm
