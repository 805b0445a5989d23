package amd64

import "fmt"

// Cond is an x86 condition code, the low nibble of the Jcc and SETcc opcodes.
type Cond uint8

const (
	CondE  Cond = 0x4 // equal / zero
	CondNE Cond = 0x5 // not equal / not zero
	CondL  Cond = 0xC // less (signed)
	CondGE Cond = 0xD // greater or equal (signed)
	CondLE Cond = 0xE // less or equal (signed)
	CondG  Cond = 0xF // greater (signed)
)

var condNames = map[Cond]string{
	CondE:  "e",
	CondNE: "ne",
	CondL:  "l",
	CondGE: "ge",
	CondLE: "le",
	CondG:  "g",
}

func (c Cond) String() string {
	if name, ok := condNames[c]; ok {
		return name
	}
	return fmt.Sprintf("cc%x", uint8(c))
}

// Cmp emits cmp a, b, setting flags from a - b.
func (a *Assembler) Cmp(x, y Reg) {
	a.emit(rexW, 0x39, modrm(modDirect, byte(y), x))
}

// CmpImm8 emits cmp r, imm8 (sign-extended).
func (a *Assembler) CmpImm8(r Reg, imm int8) {
	a.emit(rexW, 0x83, modrm(modDirect, 7, r), byte(imm))
}

// Test emits test x, y.
func (a *Assembler) Test(x, y Reg) {
	a.emit(rexW, 0x85, modrm(modDirect, byte(y), x))
}

// Setcc emits set<cc> r8, writing 1 or 0 to the low byte of r.
func (a *Assembler) Setcc(cc Cond, r Reg) {
	a.emit(0x0F, 0x90+byte(cc), modrm(modDirect, 0, r))
}
