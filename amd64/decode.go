package amd64

import (
	"encoding/binary"
	"fmt"
)

// Op identifies a decoded instruction form.
type Op uint8

const (
	OpInvalid Op = iota
	OpPush
	OpPop
	OpMovRR
	OpMovRI
	OpMovAbs
	OpLoad
	OpStore
	OpStoreImm
	OpMovzx
	OpAdd
	OpSub
	OpImul
	OpCqo
	OpIdiv
	OpNeg
	OpXor32
	OpAddImm
	OpSubImm
	OpTest
	OpCmp
	OpCmpImm
	OpSetcc
	OpJcc
	OpJmp
	OpRet
)

// Inst is one decoded instruction. Which fields are meaningful depends on Op.
type Inst struct {
	Offset int
	Len    int
	Op     Op
	Dst    Reg
	Src    Reg
	Base   Reg
	Disp   int32
	Imm    int64
	Cond   Cond
	// Target is the absolute offset a branch transfers to.
	Target int
}

// End returns the offset just past the instruction.
func (i Inst) End() int {
	return i.Offset + i.Len
}

// IsBranch reports whether the instruction may transfer control elsewhere.
func (i Inst) IsBranch() bool {
	return i.Op == OpJcc || i.Op == OpJmp
}

func mem(base Reg, disp int32) string {
	if disp < 0 {
		return fmt.Sprintf("qword [%s-0x%x]", base, -int64(disp))
	}
	return fmt.Sprintf("qword [%s+0x%x]", base, disp)
}

// String formats the instruction in Intel syntax.
func (i Inst) String() string {
	switch i.Op {
	case OpPush:
		return fmt.Sprintf("push %s", i.Dst)
	case OpPop:
		return fmt.Sprintf("pop %s", i.Dst)
	case OpMovRR:
		return fmt.Sprintf("mov %s, %s", i.Dst, i.Src)
	case OpMovRI:
		return fmt.Sprintf("mov %s, %d", i.Dst, i.Imm)
	case OpMovAbs:
		return fmt.Sprintf("movabs %s, %d", i.Dst, i.Imm)
	case OpLoad:
		return fmt.Sprintf("mov %s, %s", i.Dst, mem(i.Base, i.Disp))
	case OpStore:
		return fmt.Sprintf("mov %s, %s", mem(i.Base, i.Disp), i.Src)
	case OpStoreImm:
		return fmt.Sprintf("mov %s, %d", mem(i.Base, i.Disp), i.Imm)
	case OpMovzx:
		return fmt.Sprintf("movzx %s, %s", i.Dst.Name32(), i.Src.Name8())
	case OpAdd:
		return fmt.Sprintf("add %s, %s", i.Dst, i.Src)
	case OpSub:
		return fmt.Sprintf("sub %s, %s", i.Dst, i.Src)
	case OpImul:
		return fmt.Sprintf("imul %s, %s", i.Dst, i.Src)
	case OpCqo:
		return "cqo"
	case OpIdiv:
		return fmt.Sprintf("idiv %s", i.Dst)
	case OpNeg:
		return fmt.Sprintf("neg %s", i.Dst)
	case OpXor32:
		return fmt.Sprintf("xor %s, %s", i.Dst.Name32(), i.Src.Name32())
	case OpAddImm:
		return fmt.Sprintf("add %s, %d", i.Dst, i.Imm)
	case OpSubImm:
		return fmt.Sprintf("sub %s, %d", i.Dst, i.Imm)
	case OpTest:
		return fmt.Sprintf("test %s, %s", i.Dst, i.Src)
	case OpCmp:
		return fmt.Sprintf("cmp %s, %s", i.Dst, i.Src)
	case OpCmpImm:
		return fmt.Sprintf("cmp %s, %d", i.Dst, i.Imm)
	case OpSetcc:
		return fmt.Sprintf("set%s %s", i.Cond, i.Dst.Name8())
	case OpJcc:
		return fmt.Sprintf("j%s 0x%x", i.Cond, i.Target)
	case OpJmp:
		return fmt.Sprintf("jmp 0x%x", i.Target)
	case OpRet:
		return "ret"
	}
	return "(bad)"
}

// DecodeError reports bytes that are not part of the supported subset.
type DecodeError struct {
	Offset int
	Msg    string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("amd64: decode at offset 0x%x: %s", e.Offset, e.Msg)
}

type decoder struct {
	code []byte
	pos  int
	inst Inst
}

func (d *decoder) fail(format string, args ...any) error {
	return &DecodeError{Offset: d.inst.Offset, Msg: fmt.Sprintf(format, args...)}
}

func (d *decoder) readByte() (byte, error) {
	if d.pos >= len(d.code) {
		return 0, d.fail("truncated instruction")
	}
	b := d.code[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) readInt32() (int32, error) {
	if d.pos+4 > len(d.code) {
		return 0, d.fail("truncated immediate")
	}
	v := int32(binary.LittleEndian.Uint32(d.code[d.pos:]))
	d.pos += 4
	return v, nil
}

func (d *decoder) readInt64() (int64, error) {
	if d.pos+8 > len(d.code) {
		return 0, d.fail("truncated immediate")
	}
	v := int64(binary.LittleEndian.Uint64(d.code[d.pos:]))
	d.pos += 8
	return v, nil
}

// modrm reads a ModRM byte and returns its fields.
func (d *decoder) modrm() (mod byte, reg byte, rm Reg, err error) {
	b, err := d.readByte()
	if err != nil {
		return 0, 0, 0, err
	}
	return b >> 6, (b >> 3) & 7, Reg(b & 7), nil
}

// direct reads a register-direct ModRM byte.
func (d *decoder) direct() (reg byte, rm Reg, err error) {
	mod, reg, rm, err := d.modrm()
	if err != nil {
		return 0, 0, err
	}
	if mod != modDirect {
		return 0, 0, d.fail("expected register operand")
	}
	return reg, rm, nil
}

// memory reads a [base+disp32] ModRM byte and its displacement.
func (d *decoder) memory() (reg byte, base Reg, disp int32, err error) {
	mod, reg, base, err := d.modrm()
	if err != nil {
		return 0, 0, 0, err
	}
	if mod != modIndirectDisp32 || base == RSP {
		return 0, 0, 0, d.fail("unsupported memory operand")
	}
	disp, err = d.readInt32()
	return reg, base, disp, err
}

// Decode decodes code into instructions. It accepts exactly the forms the
// Assembler emits and fails on anything else.
func Decode(code []byte) ([]Inst, error) {
	d := &decoder{code: code}
	var out []Inst
	for d.pos < len(code) {
		d.inst = Inst{Offset: d.pos}
		if err := d.next(); err != nil {
			return nil, err
		}
		d.inst.Len = d.pos - d.inst.Offset
		out = append(out, d.inst)
	}
	return out, nil
}

func (d *decoder) next() error {
	in := &d.inst
	b, err := d.readByte()
	if err != nil {
		return err
	}
	switch {
	case b >= 0x50 && b <= 0x57:
		in.Op, in.Dst = OpPush, Reg(b-0x50)
		return nil
	case b >= 0x58 && b <= 0x5F:
		in.Op, in.Dst = OpPop, Reg(b-0x58)
		return nil
	case b == 0xC3:
		in.Op = OpRet
		return nil
	case b == 0xE9:
		rel, err := d.readInt32()
		if err != nil {
			return err
		}
		in.Op, in.Target = OpJmp, d.pos+int(rel)
		return nil
	case b == 0x31:
		reg, rm, err := d.direct()
		if err != nil {
			return err
		}
		in.Op, in.Dst, in.Src = OpXor32, rm, Reg(reg)
		return nil
	case b == 0x0F:
		return d.twoByte()
	case b == rexW:
		return d.rex()
	}
	return d.fail("unsupported opcode 0x%02x", b)
}

func (d *decoder) twoByte() error {
	in := &d.inst
	b, err := d.readByte()
	if err != nil {
		return err
	}
	switch {
	case b >= 0x80 && b <= 0x8F:
		rel, err := d.readInt32()
		if err != nil {
			return err
		}
		in.Op, in.Cond, in.Target = OpJcc, Cond(b-0x80), d.pos+int(rel)
		return nil
	case b >= 0x90 && b <= 0x9F:
		_, rm, err := d.direct()
		if err != nil {
			return err
		}
		in.Op, in.Cond, in.Dst = OpSetcc, Cond(b-0x90), rm
		return nil
	case b == 0xB6:
		reg, rm, err := d.direct()
		if err != nil {
			return err
		}
		in.Op, in.Dst, in.Src = OpMovzx, Reg(reg), rm
		return nil
	}
	return d.fail("unsupported opcode 0x0f 0x%02x", b)
}

func (d *decoder) rex() error {
	in := &d.inst
	b, err := d.readByte()
	if err != nil {
		return err
	}
	if b >= 0xB8 && b <= 0xBF {
		imm, err := d.readInt64()
		if err != nil {
			return err
		}
		in.Op, in.Dst, in.Imm = OpMovAbs, Reg(b-0xB8), imm
		return nil
	}
	switch b {
	case 0x99:
		in.Op = OpCqo
		return nil
	case 0x01, 0x29, 0x39, 0x85:
		reg, rm, err := d.direct()
		if err != nil {
			return err
		}
		in.Dst, in.Src = rm, Reg(reg)
		in.Op = map[byte]Op{0x01: OpAdd, 0x29: OpSub, 0x39: OpCmp, 0x85: OpTest}[b]
		return nil
	case 0x0F:
		b2, err := d.readByte()
		if err != nil {
			return err
		}
		if b2 != 0xAF {
			return d.fail("unsupported opcode 0x48 0x0f 0x%02x", b2)
		}
		reg, rm, err := d.direct()
		if err != nil {
			return err
		}
		in.Op, in.Dst, in.Src = OpImul, Reg(reg), rm
		return nil
	case 0x89:
		if d.pos < len(d.code) && d.code[d.pos]>>6 == modDirect {
			reg, rm, err := d.direct()
			if err != nil {
				return err
			}
			in.Op, in.Dst, in.Src = OpMovRR, rm, Reg(reg)
			return nil
		}
		reg, base, disp, err := d.memory()
		if err != nil {
			return err
		}
		in.Op, in.Base, in.Disp, in.Src = OpStore, base, disp, Reg(reg)
		return nil
	case 0x8B:
		reg, base, disp, err := d.memory()
		if err != nil {
			return err
		}
		in.Op, in.Dst, in.Base, in.Disp = OpLoad, Reg(reg), base, disp
		return nil
	case 0xC7:
		if d.pos < len(d.code) && d.code[d.pos]>>6 == modDirect {
			ext, rm, err := d.direct()
			if err != nil {
				return err
			}
			if ext != 0 {
				return d.fail("unsupported /%d for 0xc7", ext)
			}
			imm, err := d.readInt32()
			if err != nil {
				return err
			}
			in.Op, in.Dst, in.Imm = OpMovRI, rm, int64(imm)
			return nil
		}
		ext, base, disp, err := d.memory()
		if err != nil {
			return err
		}
		if ext != 0 {
			return d.fail("unsupported /%d for 0xc7", ext)
		}
		imm, err := d.readInt32()
		if err != nil {
			return err
		}
		in.Op, in.Base, in.Disp, in.Imm = OpStoreImm, base, disp, int64(imm)
		return nil
	case 0xF7:
		ext, rm, err := d.direct()
		if err != nil {
			return err
		}
		switch ext {
		case 7:
			in.Op = OpIdiv
		case 3:
			in.Op = OpNeg
		default:
			return d.fail("unsupported /%d for 0xf7", ext)
		}
		in.Dst = rm
		return nil
	case 0x81:
		ext, rm, err := d.direct()
		if err != nil {
			return err
		}
		imm, err := d.readInt32()
		if err != nil {
			return err
		}
		switch ext {
		case 0:
			in.Op = OpAddImm
		case 5:
			in.Op = OpSubImm
		default:
			return d.fail("unsupported /%d for 0x81", ext)
		}
		in.Dst, in.Imm = rm, int64(imm)
		return nil
	case 0x83:
		ext, rm, err := d.direct()
		if err != nil {
			return err
		}
		if ext != 7 {
			return d.fail("unsupported /%d for 0x83", ext)
		}
		imm, err := d.readByte()
		if err != nil {
			return err
		}
		in.Op, in.Dst, in.Imm = OpCmpImm, rm, int64(int8(imm))
		return nil
	}
	return d.fail("unsupported opcode 0x48 0x%02x", b)
}
