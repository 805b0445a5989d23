package amd64

import (
	"encoding/binary"
	"fmt"
)

// Branches are emitted with a zero rel32 placeholder. The returned site is the
// offset of that placeholder; Patch fills it once the target is known.

// Jcc emits j<cc> rel32 and returns the placeholder site.
func (a *Assembler) Jcc(cc Cond) int {
	a.emit(0x0F, 0x80+byte(cc))
	site := a.Len()
	a.emit32(0)
	return site
}

// Jmp emits jmp rel32 and returns the placeholder site.
func (a *Assembler) Jmp() int {
	a.emit(0xE9)
	site := a.Len()
	a.emit32(0)
	return site
}

// Ret emits ret.
func (a *Assembler) Ret() {
	a.emit(0xC3)
}

// Patch writes the displacement from the branch at site to target:
// target - site - 4, since rel32 is relative to the end of the instruction.
func (a *Assembler) Patch(site, target int) error {
	if site < 0 || site+4 > len(a.buf) {
		return fmt.Errorf("amd64: patch site %d out of range", site)
	}
	if target < 0 || target > len(a.buf) {
		return fmt.Errorf("amd64: branch target %d out of range", target)
	}
	disp := int32(target - site - 4)
	binary.LittleEndian.PutUint32(a.buf[site:], uint32(disp))
	return nil
}
