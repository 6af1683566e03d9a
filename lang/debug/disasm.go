// Package debug implements a bytecode disassembler used by the --trace CLI
// flag, grounded on original_source/include/debug.h and src/debug.c.
package debug

import (
	"fmt"
	"io"

	"github.com/mna/bryony/lang/machine"
)

// DisassembleChunk writes a human-readable listing of every instruction in
// chunk to w, labeled with name (a function name, or "<script>").
func DisassembleChunk(w io.Writer, chunk *machine.Chunk, name string) {
	fmt.Fprintf(w, "== %s ==\n", name)
	for offset := 0; offset < len(chunk.Code); {
		offset = DisassembleInstruction(w, chunk, offset)
	}
}

// DisassembleInstruction writes the instruction at offset and returns the
// offset of the next instruction.
func DisassembleInstruction(w io.Writer, chunk *machine.Chunk, offset int) int {
	fmt.Fprintf(w, "%04d ", offset)
	if offset > 0 && chunk.Lines[offset] == chunk.Lines[offset-1] {
		fmt.Fprint(w, "   | ")
	} else {
		fmt.Fprintf(w, "%4d ", chunk.Lines[offset])
	}

	op := machine.OpCode(chunk.Code[offset])
	switch op {
	case machine.OpConstant, machine.OpGetGlobal, machine.OpDefineGlobal, machine.OpSetGlobal,
		machine.OpGetProperty, machine.OpSetProperty, machine.OpGetSuper, machine.OpClass, machine.OpMethod:
		return constantInstruction(w, op, chunk, offset)

	case machine.OpGetLocal, machine.OpSetLocal, machine.OpGetUpvalue, machine.OpSetUpvalue, machine.OpCall:
		return byteInstruction(w, op, chunk, offset)

	case machine.OpJump, machine.OpJumpIfFalse:
		return jumpInstruction(w, op, 1, chunk, offset)
	case machine.OpLoop:
		return jumpInstruction(w, op, -1, chunk, offset)

	case machine.OpInvoke, machine.OpSuperInvoke:
		return invokeInstruction(w, op, chunk, offset)

	case machine.OpClosure:
		return closureInstruction(w, chunk, offset)

	default:
		fmt.Fprintln(w, op.String())
		return offset + 1
	}
}

func constantInstruction(w io.Writer, op machine.OpCode, chunk *machine.Chunk, offset int) int {
	idx := chunk.Code[offset+1]
	fmt.Fprintf(w, "%-16s %4d '%s'\n", op, idx, chunk.Constants[idx].String())
	return offset + 2
}

func byteInstruction(w io.Writer, op machine.OpCode, chunk *machine.Chunk, offset int) int {
	slot := chunk.Code[offset+1]
	fmt.Fprintf(w, "%-16s %4d\n", op, slot)
	return offset + 2
}

func jumpInstruction(w io.Writer, op machine.OpCode, sign int, chunk *machine.Chunk, offset int) int {
	jump := int(chunk.Code[offset+1])<<8 | int(chunk.Code[offset+2])
	fmt.Fprintf(w, "%-16s %4d -> %d\n", op, offset, offset+3+sign*jump)
	return offset + 3
}

func invokeInstruction(w io.Writer, op machine.OpCode, chunk *machine.Chunk, offset int) int {
	idx := chunk.Code[offset+1]
	argCount := chunk.Code[offset+2]
	fmt.Fprintf(w, "%-16s (%d args) %4d '%s'\n", op, argCount, idx, chunk.Constants[idx].String())
	return offset + 3
}

func closureInstruction(w io.Writer, chunk *machine.Chunk, offset int) int {
	offset++
	idx := chunk.Code[offset]
	offset++
	fmt.Fprintf(w, "%-16s %4d '%s'\n", machine.OpClosure, idx, chunk.Constants[idx].String())

	fn, ok := chunk.Constants[idx].(*machine.ObjFunction)
	if !ok {
		return offset
	}
	for i := 0; i < fn.UpvalueCount; i++ {
		isLocal := chunk.Code[offset]
		index := chunk.Code[offset+1]
		offset += 2
		kind := "upvalue"
		if isLocal != 0 {
			kind = "local"
		}
		fmt.Fprintf(w, "%04d      |                     %s %d\n", offset-2, kind, index)
	}
	return offset
}
