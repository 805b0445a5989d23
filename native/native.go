// Package native turns finished machine code into a callable routine.
//
// A region moves through exactly two usable states. Prepare maps it readable
// and writable, copies the code in, then switches it to readable and
// executable before returning; the region is never writable and executable
// at the same time. Release unmaps it. All unsafe operations in the module
// are confined to this package.
package native

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

var (
	ErrUnsupported = errors.New("native: native execution is not supported on this platform")
	ErrEmptyCode   = errors.New("native: no code to prepare")
	ErrReleased    = errors.New("native: handle has been released")
	ErrEmptyFrame  = errors.New("native: frame block must hold at least the status word")
)

type state uint8

const (
	stateWritable state = iota
	stateExecutable
	stateReleased
)

func (s state) String() string {
	switch s {
	case stateWritable:
		return "writable"
	case stateExecutable:
		return "executable"
	case stateReleased:
		return "released"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Handle owns one executable region. A Handle is not safe for concurrent
// use: Release must not run while an Invoke is in flight, which the owner
// guarantees by serializing both.
type Handle struct {
	mem   []byte
	size  int
	entry int
	state state
}

// Prepare copies code into a fresh region and makes it executable. entry is
// the offset of the first instruction.
func Prepare(code []byte, entry int) (*Handle, error) {
	if len(code) == 0 {
		return nil, ErrEmptyCode
	}
	if entry < 0 || entry >= len(code) {
		return nil, fmt.Errorf("native: entry offset %d outside code of %d bytes", entry, len(code))
	}
	mem, err := mapWritable(len(code))
	if err != nil {
		return nil, err
	}
	h := &Handle{mem: mem, size: len(code), entry: entry, state: stateWritable}
	copy(h.mem, code)
	if err := protectExec(h.mem); err != nil {
		if uerr := unmap(h.mem); uerr != nil {
			err = multierror.Append(err, uerr)
		}
		h.state = stateReleased
		return nil, err
	}
	h.state = stateExecutable
	return h, nil
}

// Size returns the length of the code in bytes.
func (h *Handle) Size() int {
	return h.size
}

// Invoke runs the routine with rdi pointing at frame[0] and returns rax.
func (h *Handle) Invoke(frame []int64) (int64, error) {
	if h.state != stateExecutable {
		return 0, fmt.Errorf("%w (state %s)", ErrReleased, h.state)
	}
	if len(frame) == 0 {
		return 0, ErrEmptyFrame
	}
	return call(h.mem, h.entry, frame), nil
}

// Release unmaps the region. It must be called exactly once.
func (h *Handle) Release() error {
	if h.state == stateReleased {
		return ErrReleased
	}
	h.state = stateReleased
	mem := h.mem
	h.mem = nil
	return unmap(mem)
}
