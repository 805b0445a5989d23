package codegen

import (
	"fmt"

	"github.com/deepnoodle-ai/hotpath/amd64"
)

// VerifyError describes an artifact that violates the frame discipline.
type VerifyError struct {
	Offset int
	Msg    string
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("codegen: verify at 0x%x: %s", e.Offset, e.Msg)
}

// Verify decodes an artifact and simulates its stack effect along every path.
// It checks that each instruction is reached with a single stack depth, that
// operand pops never underflow, that the stack is balanced when the frame is
// torn down and at every ret, that every memory operand addresses a frame slot
// or a word of the frame block, and that no branch was left unpatched.
func Verify(art *Artifact) error {
	insts, err := amd64.Decode(art.Code)
	if err != nil {
		return err
	}
	if len(insts) == 0 {
		return &VerifyError{Msg: "empty routine"}
	}
	v := &verifier{
		insts:      insts,
		index:      make(map[int]int, len(insts)),
		depthAt:    make(map[int]int, len(insts)),
		blockWords: 1 + 2*art.Layout.Len(),
		frameDepth: -1,
	}
	for i, in := range insts {
		v.index[in.Offset] = i
	}
	return v.run(art.Entry)
}

type verifier struct {
	insts      []amd64.Inst
	index      map[int]int
	depthAt    map[int]int
	blockWords int
	frameDepth int
	locals     int
}

type pathState struct {
	offset int
	depth  int
}

func (v *verifier) fail(offset int, format string, args ...any) error {
	return &VerifyError{Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

func (v *verifier) run(entry int) error {
	work := []pathState{{offset: entry}}
	for len(work) > 0 {
		s := work[len(work)-1]
		work = work[:len(work)-1]

		i, ok := v.index[s.offset]
		if !ok {
			return v.fail(s.offset, "control reaches a non-instruction offset")
		}
		if seen, ok := v.depthAt[s.offset]; ok {
			if seen != s.depth {
				return v.fail(s.offset, "stack depth %d conflicts with %d on another path", s.depth, seen)
			}
			continue
		}
		v.depthAt[s.offset] = s.depth

		in := v.insts[i]
		depth, err := v.step(in, s.depth)
		if err != nil {
			return err
		}
		switch in.Op {
		case amd64.OpRet:
			continue
		case amd64.OpJmp, amd64.OpJcc:
			if in.Target == in.End() {
				return v.fail(in.Offset, "branch displacement was never patched")
			}
			work = append(work, pathState{offset: in.Target, depth: depth})
			if in.Op == amd64.OpJmp {
				continue
			}
		}
		if i+1 >= len(v.insts) {
			return v.fail(in.Offset, "execution falls off the end of the routine")
		}
		work = append(work, pathState{offset: in.End(), depth: depth})
	}
	return nil
}

// step applies the stack effect of one instruction.
func (v *verifier) step(in amd64.Inst, depth int) (int, error) {
	framed := v.frameDepth >= 0
	operands := func(d int) int {
		return d - v.frameDepth - v.locals
	}
	switch in.Op {
	case amd64.OpPush:
		depth++
		if framed && operands(depth) > MaxDepth {
			return 0, v.fail(in.Offset, "operand depth exceeds %d", MaxDepth)
		}
	case amd64.OpPop:
		if depth == 0 || (framed && in.Dst != amd64.RBP && operands(depth) <= 0) {
			return 0, v.fail(in.Offset, "stack underflow")
		}
		depth--
	case amd64.OpMovRR:
		switch {
		case in.Dst == amd64.RBP && in.Src == amd64.RSP:
			if framed {
				return 0, v.fail(in.Offset, "frame established twice")
			}
			v.frameDepth, v.locals = depth, 0
		case in.Dst == amd64.RSP && in.Src == amd64.RBP:
			if !framed {
				return 0, v.fail(in.Offset, "frame torn down before it was established")
			}
			if n := operands(depth); n != 0 {
				return 0, v.fail(in.Offset, "unbalanced stack: %d operand words remain", n)
			}
			depth = v.frameDepth
		case in.Dst == amd64.RSP || in.Dst == amd64.RBP:
			return 0, v.fail(in.Offset, "unexpected write to %s", in.Dst)
		}
	case amd64.OpSubImm, amd64.OpAddImm:
		if in.Dst != amd64.RSP {
			break
		}
		if in.Imm%8 != 0 {
			return 0, v.fail(in.Offset, "stack adjustment %d is not word aligned", in.Imm)
		}
		words := int(in.Imm / 8)
		if in.Op == amd64.OpSubImm {
			if !framed || v.locals != 0 || depth != v.frameDepth {
				return 0, v.fail(in.Offset, "unexpected local allocation")
			}
			v.locals = words
			depth += words
			break
		}
		if !framed || operands(depth-words) < 0 {
			return 0, v.fail(in.Offset, "stack underflow")
		}
		depth -= words
	case amd64.OpLoad, amd64.OpStore, amd64.OpStoreImm:
		if err := v.checkMemory(in); err != nil {
			return 0, err
		}
	case amd64.OpRet:
		if depth != 0 {
			return 0, v.fail(in.Offset, "unbalanced stack at return: depth %d", depth)
		}
	}
	return depth, nil
}

func (v *verifier) checkMemory(in amd64.Inst) error {
	if in.Disp%8 != 0 {
		return v.fail(in.Offset, "unaligned memory operand %s", in)
	}
	switch in.Base {
	case amd64.RBP:
		if v.frameDepth < 0 || in.Disp >= 0 || int(-in.Disp/8) > v.locals {
			return v.fail(in.Offset, "memory operand outside the frame: %s", in)
		}
	case amd64.RDI:
		if in.Disp < 0 || int(in.Disp/8) >= v.blockWords {
			return v.fail(in.Offset, "memory operand outside the frame block: %s", in)
		}
	default:
		return v.fail(in.Offset, "unexpected base register %s", in.Base)
	}
	return nil
}
