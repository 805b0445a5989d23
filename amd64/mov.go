package amd64

import "math"

// MOV instructions between registers, immediates and [base+disp32] memory.

// MovRegReg emits mov dst, src.
func (a *Assembler) MovRegReg(dst, src Reg) {
	a.emit(rexW, 0x89, modrm(modDirect, byte(src), dst))
}

// MovRegImm emits the shortest mov that loads imm into dst: the sign-extended
// imm32 form when imm fits, movabs otherwise.
func (a *Assembler) MovRegImm(dst Reg, imm int64) {
	if imm >= math.MinInt32 && imm <= math.MaxInt32 {
		a.emit(rexW, 0xC7, modrm(modDirect, 0, dst))
		a.emit32(int32(imm))
		return
	}
	a.emit(rexW, 0xB8+byte(dst))
	a.emit64(imm)
}

// MovRegMem emits mov dst, qword [base+disp].
func (a *Assembler) MovRegMem(dst Reg, base Reg, disp int32) {
	checkBase(base)
	a.emit(rexW, 0x8B, modrm(modIndirectDisp32, byte(dst), base))
	a.emit32(disp)
}

// MovMemReg emits mov qword [base+disp], src.
func (a *Assembler) MovMemReg(base Reg, disp int32, src Reg) {
	checkBase(base)
	a.emit(rexW, 0x89, modrm(modIndirectDisp32, byte(src), base))
	a.emit32(disp)
}

// MovMemImm emits mov qword [base+disp], imm32 (sign-extended).
func (a *Assembler) MovMemImm(base Reg, disp int32, imm int32) {
	checkBase(base)
	a.emit(rexW, 0xC7, modrm(modIndirectDisp32, 0, base))
	a.emit32(disp)
	a.emit32(imm)
}

// MovzxReg8 emits movzx dst32, src8, zero-filling all 64 bits of dst.
func (a *Assembler) MovzxReg8(dst, src Reg) {
	a.emit(0x0F, 0xB6, modrm(modDirect, byte(dst), src))
}
