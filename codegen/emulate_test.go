package codegen

import (
	"fmt"

	"github.com/deepnoodle-ai/hotpath/amd64"
)

// emulate runs generated code on a software model of the instruction subset,
// so artifacts can be checked on any host.
func emulate(art *Artifact, frame Frame) (int64, error) {
	insts, err := amd64.Decode(art.Code)
	if err != nil {
		return 0, err
	}
	index := map[int]int{}
	for i, in := range insts {
		index[in.Offset] = i
	}

	const stackWords = 512
	const returnAddr = -0x5eed
	var (
		regs       [8]int64
		stack      [stackWords]int64
		cmpL, cmpR int64
	)
	regs[amd64.RSP] = 8 * stackWords
	push := func(v int64) {
		regs[amd64.RSP] -= 8
		stack[regs[amd64.RSP]/8] = v
	}
	pop := func() int64 {
		v := stack[regs[amd64.RSP]/8]
		regs[amd64.RSP] += 8
		return v
	}
	addr := func(in amd64.Inst) *int64 {
		if in.Base == amd64.RDI {
			return &frame[int(in.Disp)/8]
		}
		return &stack[(regs[in.Base]+int64(in.Disp))/8]
	}
	holds := func(cc amd64.Cond) bool {
		switch cc {
		case amd64.CondE:
			return cmpL == cmpR
		case amd64.CondNE:
			return cmpL != cmpR
		case amd64.CondL:
			return cmpL < cmpR
		case amd64.CondGE:
			return cmpL >= cmpR
		case amd64.CondLE:
			return cmpL <= cmpR
		case amd64.CondG:
			return cmpL > cmpR
		}
		panic(fmt.Sprintf("condition %s", cc))
	}

	push(returnAddr)
	pc := art.Entry
	for steps := 0; steps < 100000; steps++ {
		in := insts[index[pc]]
		pc = in.End()
		switch in.Op {
		case amd64.OpPush:
			push(regs[in.Dst])
		case amd64.OpPop:
			regs[in.Dst] = pop()
		case amd64.OpMovRR:
			regs[in.Dst] = regs[in.Src]
		case amd64.OpMovRI, amd64.OpMovAbs:
			regs[in.Dst] = in.Imm
		case amd64.OpLoad:
			regs[in.Dst] = *addr(in)
		case amd64.OpStore:
			*addr(in) = regs[in.Src]
		case amd64.OpStoreImm:
			*addr(in) = in.Imm
		case amd64.OpMovzx:
			regs[in.Dst] = regs[in.Src] & 0xff
		case amd64.OpAdd:
			regs[in.Dst] += regs[in.Src]
		case amd64.OpSub:
			regs[in.Dst] -= regs[in.Src]
		case amd64.OpImul:
			regs[in.Dst] *= regs[in.Src]
		case amd64.OpCqo:
			regs[amd64.RDX] = regs[amd64.RAX] >> 63
		case amd64.OpIdiv:
			d := regs[in.Dst]
			if d == 0 || (d == -1 && regs[amd64.RAX] == -1<<63) {
				return 0, fmt.Errorf("#DE at 0x%x", in.Offset)
			}
			q, r := regs[amd64.RAX]/d, regs[amd64.RAX]%d
			regs[amd64.RAX], regs[amd64.RDX] = q, r
		case amd64.OpNeg:
			regs[in.Dst] = -regs[in.Dst]
		case amd64.OpXor32:
			regs[in.Dst] = int64(uint32(regs[in.Dst]) ^ uint32(regs[in.Src]))
		case amd64.OpAddImm:
			regs[in.Dst] += in.Imm
		case amd64.OpSubImm:
			regs[in.Dst] -= in.Imm
		case amd64.OpTest:
			cmpL, cmpR = regs[in.Dst]&regs[in.Src], 0
		case amd64.OpCmp:
			cmpL, cmpR = regs[in.Dst], regs[in.Src]
		case amd64.OpCmpImm:
			cmpL, cmpR = regs[in.Dst], in.Imm
		case amd64.OpSetcc:
			v := int64(0)
			if holds(in.Cond) {
				v = 1
			}
			regs[in.Dst] = regs[in.Dst]&^0xff | v
		case amd64.OpJcc:
			if holds(in.Cond) {
				pc = in.Target
			}
		case amd64.OpJmp:
			pc = in.Target
		case amd64.OpRet:
			if ret := pop(); ret != returnAddr {
				return 0, fmt.Errorf("ret to %d", ret)
			}
			if regs[amd64.RSP] != 8*stackWords {
				return 0, fmt.Errorf("rsp off by %d after return", 8*stackWords-regs[amd64.RSP])
			}
			return regs[amd64.RAX], nil
		default:
			return 0, fmt.Errorf("cannot emulate %s", in)
		}
	}
	return 0, fmt.Errorf("step limit exceeded")
}
