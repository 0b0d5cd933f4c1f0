package bytecode

import (
	"fmt"
	"io"
	"strings"
)

// Disassembler provides human-readable bytecode disassembly for debugging.
type Disassembler struct {
	writer io.Writer
	chunk  *Chunk
}

// NewDisassembler creates a new disassembler for the given chunk.
func NewDisassembler(chunk *Chunk, writer io.Writer) *Disassembler {
	return &Disassembler{
		writer: writer,
		chunk:  chunk,
	}
}

// DisassembleTo prints a complete disassembly of c to w.
func (c *Chunk) DisassembleTo(w io.Writer) {
	NewDisassembler(c, w).Disassemble()
}

// Disassemble prints a complete disassembly of the chunk.
func (d *Disassembler) Disassemble() {
	fmt.Fprintf(d.writer, "== %s ==\n", d.chunk.Name)
	fmt.Fprintf(d.writer, "Instructions: %d, Constants: %d, Lines: %d\n\n",
		len(d.chunk.Code), len(d.chunk.Constants), len(d.chunk.Lines))

	if len(d.chunk.Constants) > 0 {
		fmt.Fprintf(d.writer, "Constants Pool:\n")
		for i, constant := range d.chunk.Constants {
			fmt.Fprintf(d.writer, "  [%04d] %s\n", i, constant.String())
		}
		fmt.Fprintf(d.writer, "\n")
	}

	fmt.Fprintf(d.writer, "Bytecode:\n")
	for offset := 0; offset < len(d.chunk.Code); offset++ {
		d.DisassembleInstruction(offset)
	}

	fmt.Fprintf(d.writer, "\n")
}

// DisassembleInstruction prints a single instruction at the given offset.
func (d *Disassembler) DisassembleInstruction(offset int) {
	if offset < 0 || offset >= len(d.chunk.Code) {
		fmt.Fprintf(d.writer, "Invalid offset: %d\n", offset)
		return
	}

	inst := d.chunk.Code[offset]
	op := inst.OpCode()

	d.printInstructionHeader(offset)

	if d.tryDisassembleSimpleOp(inst, op) {
		return
	}
	if d.tryDisassembleConstantOp(inst, op, offset) {
		return
	}
	if d.tryDisassembleVarOp(inst, op) {
		return
	}
	if d.tryDisassembleJumpOp(inst, op, offset) {
		return
	}
	if d.tryDisassembleCallOp(inst, op) {
		return
	}

	fmt.Fprintf(d.writer, "UNKNOWN_OP %d\n", op)
}

func (d *Disassembler) printInstructionHeader(offset int) {
	line := d.chunk.GetLine(offset)
	if offset > 0 && line == d.chunk.GetLine(offset-1) {
		fmt.Fprintf(d.writer, "%04d    | ", offset)
	} else {
		fmt.Fprintf(d.writer, "%04d %4d ", offset, line)
	}
}

// tryDisassembleSimpleOp handles instructions with no meaningful operands.
func (d *Disassembler) tryDisassembleSimpleOp(inst Instruction, op OpCode) bool {
	switch op {
	case OpLoadUndefined, OpLoadNull, OpLoadTrue, OpLoadFalse,
		OpAdd, OpSub, OpMul, OpDiv, OpMod, OpPow, OpNegate, OpUnaryPlus,
		OpBitAnd, OpBitOr, OpBitXor, OpBitNot, OpShl, OpShr, OpSar,
		OpStrictEqual, OpStrictNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual,
		OpNot, OpToBool, OpIsNullish,
		OpPop, OpDup, OpSwap, OpRotate3,
		OpGetIndex, OpSetIndex,
		OpHasProp, OpInstanceOf, OpTypeOf, OpConcat,
		OpGetSelf, OpGetNewTarget,
		OpPopTry, OpThrow,
		OpAwait, OpYield, OpYieldStar,
		OpHalt:
		d.simpleInstruction(inst)
		return true
	}
	return false
}

// tryDisassembleConstantOp handles instructions whose B operand indexes the
// constant pool.
func (d *Disassembler) tryDisassembleConstantOp(inst Instruction, op OpCode, offset int) bool {
	switch op {
	case OpLoadConst, OpGetProp, OpSetProp, OpGetPrivateField, OpSetPrivateField,
		OpDeleteProp, OpMakeClosure:
		d.constantInstruction(inst, offset)
		return true
	}
	return false
}

// tryDisassembleVarOp handles local/global/upvalue/field slot access.
func (d *Disassembler) tryDisassembleVarOp(inst Instruction, op OpCode) bool {
	switch op {
	case OpLoadLocal, OpStoreLocal:
		d.byteInstruction(inst, "local")
		return true
	case OpLoadGlobal, OpStoreGlobal:
		d.byteInstruction(inst, "global")
		return true
	case OpLoadUpvalue, OpStoreUpvalue:
		d.byteInstruction(inst, "upvalue")
		return true
	case OpGetField, OpSetField:
		d.byteInstruction(inst, "field")
		return true
	}
	return false
}

// tryDisassembleJumpOp handles branch and try-region instructions.
func (d *Disassembler) tryDisassembleJumpOp(inst Instruction, op OpCode, offset int) bool {
	switch op {
	case OpJump, OpJumpIfTrue, OpJumpIfFalse, OpJumpIfTrueNoPop,
		OpJumpIfFalseNoPop, OpJumpIfNullishNoPop:
		d.jumpInstruction(inst, offset, 1)
		return true
	case OpLoop:
		d.jumpInstruction(inst, offset, -1)
		return true
	case OpTry:
		d.tryInstruction(inst, offset)
		return true
	}
	return false
}

// tryDisassembleCallOp handles call/new/closure/return/literal-aggregate
// instructions.
func (d *Disassembler) tryDisassembleCallOp(inst Instruction, op OpCode) bool {
	switch op {
	case OpCall, OpCallMethod, OpCallBuiltin, OpCallStrategy, OpCallPrivateMethod, OpNew:
		d.namedCallInstruction(inst)
		return true
	case OpCallValue, OpCallValueMethod, OpNewDynamic:
		d.callInstruction(inst)
		return true
	case OpSpreadArgs:
		fmt.Fprintf(d.writer, "%-20s args=%d mask=%04x\n", inst.String(), inst.A(), inst.B())
		return true
	case OpReturn:
		d.returnInstruction(inst)
		return true
	case OpNewArray:
		d.byteInstruction(inst, "elements")
		return true
	case OpNewObject:
		d.byteInstruction(inst, "pairs")
		return true
	case OpNewClassInstance:
		d.constantInstruction(inst, 0)
		return true
	}
	return false
}

func (d *Disassembler) simpleInstruction(inst Instruction) {
	fmt.Fprintf(d.writer, "%s\n", inst.String())
}

func (d *Disassembler) constantInstruction(inst Instruction, _ int) {
	constIndex := int(inst.B())
	constant := d.chunk.GetConstant(constIndex)
	fmt.Fprintf(d.writer, "%-20s %4d '%s'\n", inst.String(), constIndex, constant.String())
}

func (d *Disassembler) byteInstruction(inst Instruction, operandName string) {
	index := inst.B()
	fmt.Fprintf(d.writer, "%-20s %4d  ; %s index\n", inst.String(), index, operandName)
}

func (d *Disassembler) jumpInstruction(inst Instruction, offset int, sign int) {
	jumpOffset := int(inst.SignedB())
	target := offset + 1 + sign*jumpOffset
	fmt.Fprintf(d.writer, "%-20s %4d -> %04d\n", inst.String(), jumpOffset, target)
}

func (d *Disassembler) tryInstruction(inst Instruction, offset int) {
	info, ok := d.chunk.TryInfoAt(offset)
	if !ok {
		fmt.Fprintf(d.writer, "%-20s <no try info>\n", inst.String())
		return
	}
	fmt.Fprintf(d.writer, "%-20s catch=%v(%04d) finally=%v(%04d)\n",
		inst.String(), info.HasCatch, info.CatchTarget, info.HasFinally, info.FinallyTarget)
}

// namedCallInstruction prints a call/new whose B operand names the callee
// (function, class, builtin helper, or strategy key) via the constant pool.
func (d *Disassembler) namedCallInstruction(inst Instruction) {
	argCount := inst.A()
	idx := int(inst.B())
	name := d.chunk.GetConstant(idx)
	fmt.Fprintf(d.writer, "%-20s args=%d, %s\n", inst.String(), argCount, name.String())
}

// callInstruction prints a fully dynamic call/new taking its callee from the
// stack rather than the constant pool.
func (d *Disassembler) callInstruction(inst Instruction) {
	argCount := inst.A()
	fmt.Fprintf(d.writer, "%-20s args=%d\n", inst.String(), argCount)
}

func (d *Disassembler) returnInstruction(inst Instruction) {
	if inst.A() != 0 {
		fmt.Fprintf(d.writer, "%-20s (with value)\n", inst.String())
	} else {
		fmt.Fprintf(d.writer, "%-20s\n", inst.String())
	}
}

// DisassembleRange disassembles a range of instructions.
func (d *Disassembler) DisassembleRange(start, end int) {
	if start < 0 {
		start = 0
	}
	if end > len(d.chunk.Code) {
		end = len(d.chunk.Code)
	}

	fmt.Fprintf(d.writer, "== %s (instructions %d-%d) ==\n\n", d.chunk.Name, start, end-1)

	for offset := start; offset < end; offset++ {
		d.DisassembleInstruction(offset)
	}

	fmt.Fprintf(d.writer, "\n")
}

// DisassembleToString returns the disassembly as a string.
func DisassembleToString(chunk *Chunk) string {
	var sb strings.Builder
	d := NewDisassembler(chunk, &sb)
	d.Disassemble()
	return sb.String()
}

// DisassembleInstructionToString returns a single instruction disassembly as a string.
func DisassembleInstructionToString(chunk *Chunk, offset int) string {
	var sb strings.Builder
	d := NewDisassembler(chunk, &sb)
	d.DisassembleInstruction(offset)
	return sb.String()
}
