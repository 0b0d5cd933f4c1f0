package bytecode

import "fmt"

// LineInfo stores line number information for error reporting, run-length
// encoded: each entry maps a range of instructions to a source line number.
type LineInfo struct {
	InstructionOffset int
	Line              int
}

// FieldMetadata describes a class field's compiled initializer expression.
type FieldMetadata struct {
	Name        string
	Initializer *Chunk // nil if the field has no initializer
}

// ClassMetadata carries the compiled field initializers a constructor runs
// before executing user constructor-body statements.
type ClassMetadata struct {
	Name   string
	Fields []*FieldMetadata
}

// TryInfo describes the catch/finally targets for a try-region entry
// instruction (C3 "Control flow").
type TryInfo struct {
	CatchTarget   int
	FinallyTarget int
	// FinallyEnd is the instruction index right after the finally block's own
	// code. The VM uses it to tell "control fell out of finally normally"
	// from "finally is still running", so a finally entered to service a
	// thrown value too large to catch (or no catch clause at all) knows when
	// to resume unwinding once the finally block itself completes.
	FinallyEnd int
	HasCatch   bool
	HasFinally bool
}

// Chunk is a compiled bytecode chunk: one function or top-level script
// body's worth of instructions, constants, and debug/class metadata.
type Chunk struct {
	tryInfos   map[int]TryInfo
	Name       string
	Code       []Instruction
	Constants  []Value
	Lines      []LineInfo
	Classes    map[string]*ClassMetadata
	LocalCount int
}

// NewChunk creates a new empty bytecode chunk.
func NewChunk(name string) *Chunk {
	return &Chunk{
		Code:      make([]Instruction, 0, 64),
		Constants: make([]Value, 0, 16),
		Lines:     make([]LineInfo, 0, 16),
		Classes:   make(map[string]*ClassMetadata),
		Name:      name,
		tryInfos:  make(map[int]TryInfo),
	}
}

// WriteInstruction appends an instruction and returns its index.
func (c *Chunk) WriteInstruction(instruction Instruction, line int) int {
	index := len(c.Code)
	c.Code = append(c.Code, instruction)
	c.addLineInfo(index, line)
	return index
}

// SetTryInfo records catch/finally metadata for the try instruction at index.
func (c *Chunk) SetTryInfo(index int, info TryInfo) {
	if c == nil {
		return
	}
	if c.tryInfos == nil {
		c.tryInfos = make(map[int]TryInfo)
	}
	c.tryInfos[index] = info
}

// TryInfoAt retrieves try metadata for the instruction at index.
func (c *Chunk) TryInfoAt(index int) (TryInfo, bool) {
	if c == nil || c.tryInfos == nil {
		return TryInfo{}, false
	}
	info, ok := c.tryInfos[index]
	return info, ok
}

// Write appends an instruction with operands.
func (c *Chunk) Write(op OpCode, a byte, b uint16, line int) int {
	return c.WriteInstruction(MakeInstruction(op, a, b), line)
}

// WriteSimple appends a no-operand instruction.
func (c *Chunk) WriteSimple(op OpCode, line int) int {
	return c.WriteInstruction(MakeSimpleInstruction(op), line)
}

// AddConstant interns value into the constant pool, deduplicating the
// primitive kinds where structural equality is cheap and meaningful.
func (c *Chunk) AddConstant(value Value) int {
	for i, existing := range c.Constants {
		if constantsEqual(existing, value) {
			return i
		}
	}
	index := len(c.Constants)
	c.Constants = append(c.Constants, value)
	return index
}

func constantsEqual(a, b Value) bool {
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case ValueUndefined, ValueNull:
		return true
	case ValueBool:
		return a.Data.(bool) == b.Data.(bool)
	case ValueNumber:
		return a.Data.(float64) == b.Data.(float64)
	case ValueString:
		return a.Data.(string) == b.Data.(string)
	default:
		return false
	}
}

// GetConstant retrieves a constant by index.
func (c *Chunk) GetConstant(index int) Value {
	if index < 0 || index >= len(c.Constants) {
		return Undefined()
	}
	return c.Constants[index]
}

func (c *Chunk) addLineInfo(instructionIndex, line int) {
	if len(c.Lines) == 0 || c.Lines[len(c.Lines)-1].Line != line {
		c.Lines = append(c.Lines, LineInfo{InstructionOffset: instructionIndex, Line: line})
	}
}

// GetLine returns the source line for an instruction index via binary search
// over the run-length-encoded line table.
func (c *Chunk) GetLine(instructionIndex int) int {
	if len(c.Lines) == 0 {
		return 0
	}
	left, right := 0, len(c.Lines)-1
	result := 0
	for left <= right {
		mid := (left + right) / 2
		if c.Lines[mid].InstructionOffset <= instructionIndex {
			result = c.Lines[mid].Line
			left = mid + 1
		} else {
			right = mid - 1
		}
	}
	return result
}

func (c *Chunk) InstructionCount() int { return len(c.Code) }
func (c *Chunk) ConstantCount() int    { return len(c.Constants) }

// PatchInstruction replaces an instruction at offset, used for backpatching
// jump targets after code generation.
func (c *Chunk) PatchInstruction(offset int, instruction Instruction) {
	if offset >= 0 && offset < len(c.Code) {
		c.Code[offset] = instruction
	}
}

// PatchJump fills in a forward jump's offset once the target is known.
func (c *Chunk) PatchJump(jumpInstruction int) error {
	offset := len(c.Code) - jumpInstruction - 1
	if offset > 32767 || offset < -32768 {
		return fmt.Errorf("jump offset too large: %d", offset)
	}
	inst := c.Code[jumpInstruction]
	c.Code[jumpInstruction] = MakeInstruction(inst.OpCode(), inst.A(), uint16(offset))
	return nil
}

// EmitJump emits a jump with a placeholder offset, returning its index for
// later PatchJump.
func (c *Chunk) EmitJump(op OpCode, line int) int {
	return c.Write(op, 0, 0xFFFF, line)
}

// EmitLoop emits a backward jump to loopStart.
func (c *Chunk) EmitLoop(loopStart int, line int) error {
	offset := len(c.Code) - loopStart + 1
	if offset > 32767 {
		return fmt.Errorf("loop body too large: %d instructions", offset)
	}
	c.Write(OpLoop, 0, uint16(-offset), line)
	return nil
}

// Optimize runs the bytecode optimizer's configured passes over the chunk.
func (c *Chunk) Optimize(opts ...OptimizeOption) {
	if c == nil || len(c.Code) == 0 {
		return
	}
	config := defaultOptimizeConfig()
	for _, opt := range opts {
		opt(&config)
	}
	newChunkOptimizer(c, config).run()
}

// ChunkStats summarizes a chunk for debugging/disassembly.
type ChunkStats struct {
	Name             string
	InstructionCount int
	ConstantCount    int
	CodeBytes        int
	UniqueLines      int
	LocalCount       int
}

func (c *Chunk) GetStats() ChunkStats {
	return ChunkStats{
		Name:             c.Name,
		InstructionCount: len(c.Code),
		ConstantCount:    len(c.Constants),
		CodeBytes:        len(c.Code) * 4,
		UniqueLines:      len(c.Lines),
		LocalCount:       c.LocalCount,
	}
}

func (c *Chunk) String() string {
	s := c.GetStats()
	return fmt.Sprintf("Chunk '%s': %d instructions, %d constants, %d locals, %d lines",
		s.Name, s.InstructionCount, s.ConstantCount, s.LocalCount, s.UniqueLines)
}

// Validate checks the chunk for basic well-formedness: every constant-pool
// reference made by an instruction must be in range.
func (c *Chunk) Validate() error {
	for i, inst := range c.Code {
		op := inst.OpCode()
		if op == OpLoadConst {
			idx := int(inst.B())
			if idx < 0 || idx >= len(c.Constants) {
				return fmt.Errorf("instruction %d: constant index %d out of range (pool size %d)", i, idx, len(c.Constants))
			}
		}
	}
	return nil
}
