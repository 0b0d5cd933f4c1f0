package bytecode

import (
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"
)

// buildFixtureChunk assembles a small chunk by hand so the disassembly
// snapshot stays independent of compiler emission details.
func buildFixtureChunk() *Chunk {
	ch := NewChunk("fixture")
	one := ch.AddConstant(NumberValue(1))
	greeting := ch.AddConstant(StringValue("hi"))
	ch.Write(OpLoadConst, 0, uint16(one), 1)
	ch.Write(OpLoadConst, 0, uint16(greeting), 1)
	ch.WriteSimple(OpAdd, 1)
	jmp := ch.EmitJump(OpJumpIfFalse, 2)
	ch.WriteSimple(OpPop, 2)
	_ = ch.PatchJump(jmp)
	ch.Write(OpLoadLocal, 0, 0, 3)
	ch.Write(OpCallBuiltin, 1, uint16(greeting), 3)
	ch.WriteSimple(OpReturn, 4)
	ch.WriteSimple(OpHalt, 4)
	ch.LocalCount = 1
	return ch
}

func TestDisassembleSnapshot(t *testing.T) {
	snaps.MatchSnapshot(t, DisassembleToString(buildFixtureChunk()))
}

func TestDisassembleInstructionNames(t *testing.T) {
	for op := OpLoadConst; op <= OpHalt; op++ {
		if int(op) < len(OpCodeNames) && OpCodeNames[op] == "" {
			t.Errorf("opcode %d has no disassembler name", op)
		}
	}
}

func TestChunkStats(t *testing.T) {
	ch := buildFixtureChunk()
	stats := ch.GetStats()
	if stats.InstructionCount != ch.InstructionCount() {
		t.Errorf("instruction count mismatch: %d vs %d", stats.InstructionCount, ch.InstructionCount())
	}
	if stats.CodeBytes != ch.InstructionCount()*4 {
		t.Errorf("code bytes = %d, want %d", stats.CodeBytes, ch.InstructionCount()*4)
	}
	if err := ch.Validate(); err != nil {
		t.Errorf("fixture chunk must validate: %v", err)
	}
}
