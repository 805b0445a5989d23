package amd64

// PUSH/POP move 8 bytes between a register and the top of the native stack.

// Push emits push r.
func (a *Assembler) Push(r Reg) {
	a.emit(0x50 + byte(r))
}

// Pop emits pop r.
func (a *Assembler) Pop(r Reg) {
	a.emit(0x58 + byte(r))
}
