// Package dis supports analysis of generated machine code by disassembling
// it. Instructions are decoded with the amd64 package and annotated with the
// variable layout of the artifact they came from.
package dis

import (
	"fmt"
	"io"
	"strings"

	"github.com/deepnoodle-ai/hotpath/amd64"
	"github.com/deepnoodle-ai/hotpath/codegen"
	"github.com/deepnoodle-ai/hotpath/internal/table"
	"github.com/fatih/color"
)

// exitLen is the size of the shared exit sequence ending every artifact:
// mov rsp, rbp; pop rbp; ret.
const exitLen = 5

// Instruction represents a single machine instruction and its encoding.
type Instruction struct {
	Offset     int
	Bytes      []byte
	Text       string
	Annotation string
}

// Disassemble returns a parsed representation of an artifact's code.
func Disassemble(art *codegen.Artifact) ([]Instruction, error) {
	insts, err := amd64.Decode(art.Code)
	if err != nil {
		return nil, err
	}
	instructions := make([]Instruction, 0, len(insts))
	for _, in := range insts {
		instructions = append(instructions, Instruction{
			Offset:     in.Offset,
			Bytes:      art.Code[in.Offset:in.End()],
			Text:       in.String(),
			Annotation: annotate(in, art),
		})
	}
	return instructions, nil
}

func annotate(in amd64.Inst, art *codegen.Artifact) string {
	switch in.Op {
	case amd64.OpLoad, amd64.OpStore, amd64.OpStoreImm:
	case amd64.OpJcc, amd64.OpJmp:
		if in.Target == len(art.Code)-exitLen {
			return "exit"
		}
		return ""
	case amd64.OpRet:
		return "return rax"
	default:
		return ""
	}
	layout := art.Layout
	switch in.Base {
	case amd64.RBP:
		slot := int(-in.Disp/8) - 1
		if slot >= 0 && slot < layout.Len() {
			return layout.Name(slot)
		}
	case amd64.RDI:
		word := int(in.Disp / 8)
		if word == 0 {
			return "status"
		}
		slot := (word - 1) / 2
		if slot >= layout.Len() {
			return ""
		}
		if word%2 == 1 {
			return "value " + layout.Name(slot)
		}
		return "written " + layout.Name(slot)
	}
	return ""
}

// Print a string representation of the given instructions to the given writer.
func Print(instructions []Instruction, writer io.Writer) {
	bold := color.New(color.Bold)
	info := color.New(color.FgHiCyan)
	var lines [][]string
	for _, instr := range instructions {
		mnemonic, operands, _ := strings.Cut(instr.Text, " ")
		text := bold.Sprint(mnemonic)
		if operands != "" {
			text += " " + operands
		}
		annotation := ""
		if instr.Annotation != "" {
			annotation = info.Sprint(instr.Annotation)
		}
		lines = append(lines, []string{
			fmt.Sprintf("%d", instr.Offset),
			FormatBytes(instr.Bytes),
			text,
			annotation,
		})
	}

	table.NewTable(writer).
		WithHeader([]string{"OFFSET", "BYTES", "INSTRUCTION", "INFO"}).
		WithColumnAlignment([]table.Alignment{
			table.AlignRight,
			table.AlignLeft,
			table.AlignLeft,
			table.AlignLeft,
		}).
		WithHeaderAlignment([]table.Alignment{
			table.AlignCenter,
			table.AlignCenter,
			table.AlignCenter,
			table.AlignCenter,
		}).
		WithRows(lines).
		Render()
}

// FormatBytes formats bytes as space separated hex pairs.
func FormatBytes(b []byte) string {
	var sb strings.Builder
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02x", v)
	}
	return sb.String()
}

// HexDump formats code as offset-prefixed rows of 16 bytes with an extra
// space after the eighth byte of each row.
func HexDump(code []byte) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "machine code (%d bytes):\n", len(code))
	for row := 0; row < len(code); row += 16 {
		var line strings.Builder
		fmt.Fprintf(&line, "%08x: ", row)
		end := min(row+16, len(code))
		for i, b := range code[row:end] {
			fmt.Fprintf(&line, "%02x ", b)
			if i == 7 {
				line.WriteByte(' ')
			}
		}
		sb.WriteString(strings.TrimRight(line.String(), " "))
		sb.WriteByte('\n')
	}
	return sb.String()
}
