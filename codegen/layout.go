package codegen

import "fmt"

// Layout maps variable names to frame slots. Slots are assigned in the order
// names are first written during generation, seeded inputs first, and are
// never reused within one artifact.
type Layout struct {
	names []string
	index map[string]int
	seeds int
}

func newLayout() *Layout {
	return &Layout{index: map[string]int{}}
}

func (l *Layout) allocate(name string) int {
	if slot, ok := l.index[name]; ok {
		return slot
	}
	slot := len(l.names)
	l.names = append(l.names, name)
	l.index[name] = slot
	return slot
}

// Len returns the number of slots.
func (l *Layout) Len() int {
	return len(l.names)
}

// Slot returns the slot assigned to name.
func (l *Layout) Slot(name string) (int, bool) {
	slot, ok := l.index[name]
	return slot, ok
}

// Name returns the name held in slot.
func (l *Layout) Name(slot int) string {
	return l.names[slot]
}

// Names returns the names in slot order.
func (l *Layout) Names() []string {
	return append([]string(nil), l.names...)
}

// Seeds returns the names whose slots are loaded from the environment before
// the generated code runs. They occupy the first slots.
func (l *Layout) Seeds() []string {
	return append([]string(nil), l.names[:l.seeds]...)
}

// FrameOffset returns the rbp-relative offset of a slot in the native frame.
func FrameOffset(slot int) int32 {
	return -8 * int32(slot+1)
}

// Frame is the block of 64-bit words shared between the caller and generated
// code. Word 0 is the status; slot i occupies the value word 1+2i and the
// written flag word 2+2i. Generated code receives its address in rdi.
type Frame []int64

// Status values written to word 0 of a frame.
const (
	StatusOK int64 = iota
	StatusDivideByZero
	StatusModuloByZero
)

// NewFrame returns a zeroed frame sized for the layout.
func (l *Layout) NewFrame() Frame {
	return make(Frame, 1+2*l.Len())
}

func valueOffset(slot int) int32 {
	return 8 * int32(1+2*slot)
}

func flagOffset(slot int) int32 {
	return 8 * int32(2+2*slot)
}

// Status returns the status word.
func (f Frame) Status() int64 {
	return f[0]
}

// Set stores the initial value of a slot.
func (f Frame) Set(slot int, v int64) {
	f[1+2*slot] = v
}

// Value returns the value of a slot.
func (f Frame) Value(slot int) int64 {
	return f[1+2*slot]
}

// Written reports whether the generated code assigned the slot.
func (f Frame) Written(slot int) bool {
	return f[2+2*slot] != 0
}

// Reset zeroes the frame for reuse.
func (f Frame) Reset() {
	clear(f)
}

func (f Frame) String() string {
	return fmt.Sprintf("frame(status=%d, words=%d)", f.Status(), len(f))
}
