package vm

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Image format version. Bumped on incompatible layout changes.
const imageVersion = 1

// cborEncMode uses canonical mode for deterministic encoding.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// image is the serialized form of an interpreter's execution state,
// including mid-program suspension points.
type image struct {
	Version    int    `cbor:"version"`
	Program    string `cbor:"program"`
	Memory     []byte `cbor:"memory"`
	Pointer    int    `cbor:"pointer"`
	Counter    int    `cbor:"counter"`
	Output     []byte `cbor:"output"`
	Input      []byte `cbor:"input"`
	InputIndex int    `cbor:"input_index"`
	LoopStack  []int  `cbor:"loop_stack"`
}

// Image captures the interpreter's full execution state as CBOR bytes.
// The image can be restored later with FromImage, resuming exactly where
// execution left off. Capturing a running interpreter snapshots it at a
// step boundary.
func (in *Interpreter) Image() ([]byte, error) {
	in.mu.Lock()
	img := image{
		Version:    imageVersion,
		Program:    in.program,
		Memory:     append([]byte(nil), in.memory...),
		Pointer:    in.pointer,
		Counter:    in.counter,
		Output:     append([]byte(nil), in.output...),
		Input:      append([]byte(nil), in.input...),
		InputIndex: in.inputIndex,
		LoopStack:  append([]int(nil), in.loopStack...),
	}
	in.mu.Unlock()

	data, err := cborEncMode.Marshal(&img)
	if err != nil {
		return nil, fmt.Errorf("vm: marshal image: %w", err)
	}
	return data, nil
}

// FromImage reconstructs an Interpreter from an image produced by Image.
// WithOutputSink and WithInputSource options apply to the restored
// interpreter; WithMemorySize is ignored since the tape comes from the
// image itself.
func FromImage(data []byte, opts ...Option) (*Interpreter, error) {
	var img image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("vm: unmarshal image: %w", err)
	}
	if img.Version != imageVersion {
		return nil, fmt.Errorf("vm: unsupported image version %d", img.Version)
	}
	if len(img.Memory) == 0 {
		return nil, fmt.Errorf("vm: image has an empty tape")
	}
	if img.Pointer < 0 || img.Pointer >= len(img.Memory) {
		return nil, fmt.Errorf("vm: image pointer %d out of range [0, %d)", img.Pointer, len(img.Memory))
	}
	if img.InputIndex < 0 || img.InputIndex > len(img.Input) {
		return nil, fmt.Errorf("vm: image input cursor %d out of range [0, %d]", img.InputIndex, len(img.Input))
	}
	if img.Counter < 0 {
		return nil, fmt.Errorf("vm: image program counter %d is negative", img.Counter)
	}

	in := &Interpreter{program: img.Program}
	for _, opt := range opts {
		opt(in)
	}
	in.memorySize = len(img.Memory)

	in.memory = img.Memory
	in.pointer = img.Pointer
	in.counter = img.Counter
	in.output = img.Output
	in.input = img.Input
	in.inputIndex = img.InputIndex
	in.loopStack = img.LoopStack
	return in, nil
}
