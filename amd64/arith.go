package amd64

// Add emits add dst, src.
func (a *Assembler) Add(dst, src Reg) {
	a.emit(rexW, 0x01, modrm(modDirect, byte(src), dst))
}

// Sub emits sub dst, src.
func (a *Assembler) Sub(dst, src Reg) {
	a.emit(rexW, 0x29, modrm(modDirect, byte(src), dst))
}

// Imul emits imul dst, src (low 64 bits of the signed product).
func (a *Assembler) Imul(dst, src Reg) {
	a.emit(rexW, 0x0F, 0xAF, modrm(modDirect, byte(dst), src))
}

// Cqo emits cqo, sign-extending rax into rdx:rax.
func (a *Assembler) Cqo() {
	a.emit(rexW, 0x99)
}

// Idiv emits idiv r: rax = rdx:rax / r, rdx = rdx:rax % r.
func (a *Assembler) Idiv(r Reg) {
	a.emit(rexW, 0xF7, modrm(modDirect, 7, r))
}

// Neg emits neg r.
func (a *Assembler) Neg(r Reg) {
	a.emit(rexW, 0xF7, modrm(modDirect, 3, r))
}

// Xor32 emits xor dst32, src32, which also clears the upper 32 bits of dst.
func (a *Assembler) Xor32(dst, src Reg) {
	a.emit(0x31, modrm(modDirect, byte(src), dst))
}

// AddImm emits add r, imm32.
func (a *Assembler) AddImm(r Reg, imm int32) {
	a.emit(rexW, 0x81, modrm(modDirect, 0, r))
	a.emit32(imm)
}

// SubImm emits sub r, imm32.
func (a *Assembler) SubImm(r Reg, imm int32) {
	a.emit(rexW, 0x81, modrm(modDirect, 5, r))
	a.emit32(imm)
}
