// Package amd64 encodes and decodes the small subset of x86-64 machine
// instructions used by the native code generator.
//
// Only the eight legacy general purpose registers are supported, so REX.W is
// the only prefix ever emitted. Memory operands are always [base+disp32]
// with a base other than RSP, which keeps every encoding free of SIB bytes.
package amd64

import (
	"encoding/binary"
	"fmt"
)

// Reg is a 64-bit general purpose register, numbered by its encoding.
type Reg uint8

const (
	RAX Reg = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
)

var regNames = [...]string{"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi"}
var reg32Names = [...]string{"eax", "ecx", "edx", "ebx", "esp", "ebp", "esi", "edi"}
var reg8Names = [...]string{"al", "cl", "dl", "bl", "spl", "bpl", "sil", "dil"}

func (r Reg) String() string {
	if int(r) < len(regNames) {
		return regNames[r]
	}
	return fmt.Sprintf("r?%d", uint8(r))
}

// Name32 returns the name of the low 32 bits of the register.
func (r Reg) Name32() string {
	return reg32Names[r&7]
}

// Name8 returns the name of the low byte of the register.
func (r Reg) Name8() string {
	return reg8Names[r&7]
}

const (
	rexW byte = 0x48

	modIndirectDisp32 byte = 0b10
	modDirect         byte = 0b11
)

func modrm(mod byte, reg byte, rm Reg) byte {
	return mod<<6 | (reg&7)<<3 | byte(rm)&7
}

// Assembler accumulates encoded instructions.
type Assembler struct {
	buf []byte
}

// New returns an empty Assembler.
func New() *Assembler {
	return &Assembler{buf: make([]byte, 0, 256)}
}

// Bytes returns the encoded instructions. The slice is owned by the
// assembler until it is no longer written to.
func (a *Assembler) Bytes() []byte {
	return a.buf
}

// Len returns the current offset, which is the offset of the next instruction.
func (a *Assembler) Len() int {
	return len(a.buf)
}

func (a *Assembler) emit(b ...byte) {
	a.buf = append(a.buf, b...)
}

func (a *Assembler) emit32(v int32) {
	a.buf = binary.LittleEndian.AppendUint32(a.buf, uint32(v))
}

func (a *Assembler) emit64(v int64) {
	a.buf = binary.LittleEndian.AppendUint64(a.buf, uint64(v))
}

func checkBase(base Reg) {
	if base == RSP {
		panic("amd64: rsp is not a supported base register")
	}
}
