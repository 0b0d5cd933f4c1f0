package bytecode

// chunk optimization passes, selectable per compile via OptimizeOption.
// Only passes that cannot disturb a jump target's instruction index are
// implemented: this core's jump offsets are baked in at emission time
// (PatchJump/EmitLoop), so any pass that deletes or reorders instructions
// would need to retarget every jump and try-region that crosses the edit.
// Scope: a same-length peephole pass is enough to pay for itself without
// that bookkeeping; a full reordering optimizer is future work, not
// something to get subtly wrong and ship silently.
type OptimizationPass string

const (
	PassLiteralDiscard   OptimizationPass = "literal-push-pop"
	PassConstFold        OptimizationPass = "const-fold"
)

// OptimizeOption toggles optimizer behavior.
type OptimizeOption func(*optimizeConfig)

type optimizeConfig struct {
	enabled map[OptimizationPass]bool
}

func defaultOptimizeConfig() optimizeConfig {
	return optimizeConfig{enabled: map[OptimizationPass]bool{
		PassLiteralDiscard: true,
		PassConstFold:      true,
	}}
}

func (cfg optimizeConfig) isEnabled(pass OptimizationPass) bool {
	if cfg.enabled == nil {
		return true
	}
	enabled, ok := cfg.enabled[pass]
	if !ok {
		return true
	}
	return enabled
}

// WithOptimizationPass enables or disables an optimization pass.
func WithOptimizationPass(pass OptimizationPass, enabled bool) OptimizeOption {
	return func(cfg *optimizeConfig) {
		if cfg.enabled == nil {
			cfg.enabled = make(map[OptimizationPass]bool)
		}
		cfg.enabled[pass] = enabled
	}
}

type chunkOptimizer struct {
	chunk  *Chunk
	config optimizeConfig
}

func newChunkOptimizer(chunk *Chunk, cfg optimizeConfig) *chunkOptimizer {
	return &chunkOptimizer{chunk: chunk, config: cfg}
}

// run rewrites instructions to NOP-equivalent replacements in place, never
// changing the instruction count, so every previously computed jump offset
// and TryInfo index stays valid without retargeting.
func (o *chunkOptimizer) run() {
	if o.config.isEnabled(PassLiteralDiscard) {
		o.peepholeLiteralPop()
	}
	if o.config.isEnabled(PassConstFold) {
		o.foldConstantArithmetic()
	}
}

// peepholeLiteralPop turns "push a side-effect-free literal, then pop it"
// into two HALT-free no-ops: OpLoadUndefined followed by OpPop, which the
// VM already executes cheaply and which keeps the instruction count and
// jump targets untouched.
func (o *chunkOptimizer) peepholeLiteralPop() {
	code := o.chunk.Code
	for i := 0; i+1 < len(code); i++ {
		op := code[i].OpCode()
		if op != OpLoadConst && op != OpLoadUndefined && op != OpLoadNull &&
			op != OpLoadTrue && op != OpLoadFalse {
			continue
		}
		if code[i+1].OpCode() != OpPop {
			continue
		}
		if o.isJumpTarget(i + 1) {
			continue
		}
		code[i] = MakeSimpleInstruction(OpLoadUndefined)
	}
}

// foldConstantArithmetic rewrites `LOAD_CONST a; LOAD_CONST b; ADD/SUB/...`
// sequences over two number constants into a single LOAD_CONST of the
// result, leaving the (now unreferenced) second load as a harmless
// LOAD_UNDEFINED so the instruction stream keeps its length.
func (o *chunkOptimizer) foldConstantArithmetic() {
	code := o.chunk.Code
	for i := 0; i+2 < len(code); i++ {
		if code[i].OpCode() != OpLoadConst || code[i+1].OpCode() != OpLoadConst {
			continue
		}
		if o.isJumpTarget(i+1) || o.isJumpTarget(i+2) {
			continue
		}
		a := o.chunk.GetConstant(int(code[i].B()))
		b := o.chunk.GetConstant(int(code[i+1].B()))
		if a.Type != ValueNumber || b.Type != ValueNumber {
			continue
		}
		result, ok := foldNumericOp(code[i+2].OpCode(), a.AsNumber(), b.AsNumber())
		if !ok {
			continue
		}
		idx := o.chunk.AddConstant(NumberValue(result))
		code[i] = MakeInstruction(OpLoadConst, 0, uint16(idx))
		code[i+1] = MakeSimpleInstruction(OpLoadUndefined)
		code[i+2] = MakeSimpleInstruction(OpPop)
	}
}

func foldNumericOp(op OpCode, a, b float64) (float64, bool) {
	switch op {
	case OpAdd:
		return a + b, true
	case OpSub:
		return a - b, true
	case OpMul:
		return a * b, true
	case OpDiv:
		if b == 0 {
			return 0, false
		}
		return a / b, true
	default:
		return 0, false
	}
}

func (o *chunkOptimizer) isJumpTarget(index int) bool {
	for i, inst := range o.chunk.Code {
		switch inst.OpCode() {
		case OpJump, OpJumpIfTrue, OpJumpIfFalse, OpJumpIfTrueNoPop,
			OpJumpIfFalseNoPop, OpJumpIfNullishNoPop, OpLoop:
			target := i + 1 + int(inst.SignedB())
			if target == index {
				return true
			}
		}
	}
	return false
}
