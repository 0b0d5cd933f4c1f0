// Instruction catalog for the TypeScript bytecode emitter.
//
// The physical instruction format is unchanged from the VM this package was
// adapted from: a 32-bit fixed-size instruction, [8-bit opcode][8-bit
// A][16-bit B], with an overlapping C() accessor for the rare 3-operand
// form. What changed is the catalog itself — opcodes now model the dynamic
// value universe (§3) and the dispatch/strategy/closure/state-machine
// lowering this core performs, rather than a statically-typed scripting
// language's ordinals, sets, and records.
package bytecode

// OpCode represents a bytecode instruction opcode.
type OpCode byte

const (
	// --- Constants, locals, globals, upvalues ---------------------------

	// OpLoadConst pushes a constant-pool entry. Stack: [] -> [v]
	OpLoadConst OpCode = iota
	// OpLoadUndefined pushes the undefined singleton. Stack: [] -> [undefined]
	OpLoadUndefined
	// OpLoadNull pushes null. Stack: [] -> [null]
	OpLoadNull
	// OpLoadTrue pushes true. Stack: [] -> [true]
	OpLoadTrue
	// OpLoadFalse pushes false. Stack: [] -> [false]
	OpLoadFalse
	// OpLoadLocal loads local slot B. Stack: [] -> [local[B]]
	OpLoadLocal
	// OpStoreLocal stores to local slot B. Stack: [v] -> []
	OpStoreLocal
	// OpLoadGlobal loads module export slot B. Stack: [] -> [global[B]]
	OpLoadGlobal
	// OpStoreGlobal stores to module export slot B. Stack: [v] -> []
	OpStoreGlobal
	// OpLoadUpvalue loads captured-variable slot B from the running
	// closure's display-class instance (C6). Stack: [] -> [upvalue[B]]
	OpLoadUpvalue
	// OpStoreUpvalue stores to captured-variable slot B. Stack: [v] -> []
	OpStoreUpvalue

	// --- Arithmetic & coercion (C1 helpers) ------------------------------

	// OpAdd calls the Add helper: numeric add, or string concat if either
	// operand is a string. Stack: [a, b] -> [Add(a,b)]
	OpAdd
	// OpSub, OpMul, OpDiv, OpMod, OpPow: numeric helpers with NaN
	// propagation. Stack: [a, b] -> [result]
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	// OpNegate negates a coerced-to-number value. Stack: [a] -> [-a]
	OpNegate
	// OpUnaryPlus forces numeric coercion. Stack: [a] -> [ToNumber(a)]
	OpUnaryPlus
	// OpBitAnd/Or/Xor/Not operate on ToInt32-coerced operands.
	OpBitAnd
	OpBitOr
	OpBitXor
	OpBitNot
	// OpShl/Shr/Sar: <<, >>, >>>.
	OpShl
	OpShr
	OpSar

	// --- Equality, relational, logical -----------------------------------

	// OpStrictEqual/OpStrictNotEqual implement === / !==. Stack: [a,b] -> [bool]
	OpStrictEqual
	OpStrictNotEqual
	// OpLess/LessEqual/Greater/GreaterEqual: relational comparisons.
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
	// OpNot: logical not (coerces via IsTruthy first). Stack: [a] -> [!a]
	OpNot
	// OpToBool coerces to boolean via IsTruthy. Stack: [a] -> [bool]
	OpToBool
	// OpIsNullish tests undefined/null, for `??`/`?.`. Stack: [a] -> [bool]
	OpIsNullish

	// --- Control flow ------------------------------------------------------

	// OpJump unconditionally jumps by signed offset B.
	OpJump
	// OpJumpIfTrue pops bool, jumps by B if true.
	OpJumpIfTrue
	// OpJumpIfFalse pops bool, jumps by B if false.
	OpJumpIfFalse
	// OpJumpIfTrueNoPop peeks bool, jumps by B if true, leaves it on stack
	// (short-circuit `||`).
	OpJumpIfTrueNoPop
	// OpJumpIfFalseNoPop peeks bool, jumps by B if false, leaves it on stack
	// (short-circuit `&&`).
	OpJumpIfFalseNoPop
	// OpJumpIfNullishNoPop peeks nullish, jumps by B if nullish, leaves it
	// on stack (`??` / `?.` guard).
	OpJumpIfNullishNoPop
	// OpLoop jumps backward by offset B for loop iteration.
	OpLoop

	// --- Function calls & dispatch (C4) -------------------------------------

	// OpCall invokes a statically-resolved function/method: A = arg count,
	// B = constant-pool index of the FunctionObject. Stack:
	// [callee?, arg1..argN] -> [result] (callee present only for methods;
	// see OpCallMethod).
	OpCall
	// OpCallMethod invokes a method with explicit `this` binding: A = arg
	// count. Stack: [receiver, arg1..argN] -> [result]
	OpCallMethod
	// OpCallValue performs the fully dynamic fallback (InvokeValue): A = arg
	// count. Stack: [callee, arg1..argN] -> [result]
	OpCallValue
	// OpCallValueMethod performs the fully dynamic method fallback
	// (InvokeMethodValue): A = arg count. Stack:
	// [receiver, callee, arg1..argN] -> [result]
	OpCallValueMethod
	// OpCallBuiltin invokes a named C1 helper or host-module shape: A = arg
	// count, B = constant-pool index of the helper name. Stack:
	// [arg1..argN] -> [result]
	OpCallBuiltin
	// OpCallStrategy invokes a C5 receiver-type strategy method: A = arg
	// count, B = constant-pool index of "Type.method". Stack:
	// [receiver, arg1..argN] -> [result]
	OpCallStrategy
	// OpSpreadArgs flattens the top N stack values (where argument i was
	// marked as a spread by the compiler) into a contiguous argument
	// vector; emitted before any Op*Call* whose argument list contains a
	// spread. A = arg count, B = bitmask (low 16 args) of which positions
	// are spreads.
	OpSpreadArgs
	// OpNew invokes a constructor: A = arg count, B = constant-pool index
	// of the ClassRecord name. Stack: [arg1..argN] -> [instance]
	OpNew
	// OpNewDynamic invokes `new` on a runtime callable value (bound
	// functions, function expressions used as constructors): A = arg
	// count. Stack: [callee, arg1..argN] -> [instance]
	OpNewDynamic
	// OpReturn returns from the current function. A = 1 if a value is on
	// the stack to return, 0 to return undefined.
	OpReturn
	// OpMakeClosure allocates a display-class capture record and pairs it
	// with a function handle (C6): B = constant-pool index of the
	// FunctionObject. The compiler has already pushed one value per
	// captured variable (resolved from local/upvalue/this) before this
	// instruction. Stack: [capture1..captureN] -> [callable]
	OpMakeClosure
	// OpGetSelf pushes the current `this` binding. Stack: [] -> [this]
	OpGetSelf
	// OpGetNewTarget pushes the current `new.target` binding (the
	// constructor being invoked via `new`, or undefined otherwise).
	OpGetNewTarget

	// --- Stack shuffling ----------------------------------------------------

	OpPop
	OpDup
	OpSwap
	// OpRotate3 rotates the top three values: [a,b,c] -> [b,c,a]. No
	// compiler path emits it.
	OpRotate3

	// --- Arrays --------------------------------------------------------------

	// OpNewArray builds an array from B elements already on the stack (or
	// fewer after OpSpreadArgs has run over them).
	OpNewArray
	// OpGetIndex: Stack: [obj, index] -> [GetIndex(obj,index)]
	OpGetIndex
	// OpSetIndex: Stack: [obj, index, value] -> []
	OpSetIndex

	// --- Objects, classes, properties ----------------------------------------

	// OpNewObject builds a plain object literal from B key/value pairs
	// already pushed as alternating [key, value, key, value, ...].
	OpNewObject
	// OpGetProp: name is constant-pool index B. Stack: [obj] -> [GetProperty(obj,name)]
	OpGetProp
	// OpSetProp: name is constant-pool index B. Stack: [obj, value] -> []
	OpSetProp
	// OpGetField reads a declared class property: B = constant-pool index
	// of the field name. Stack: [instance] -> [value]
	OpGetField
	// OpSetField is OpGetField's write counterpart; it performs no readonly
	// check. The compiler emits neither opcode: property access compiles to
	// OpGetProp/OpSetProp.
	OpSetField
	// OpGetPrivateField/OpSetPrivateField access a private (#name) field:
	// B = constant-pool index of the field name (privateFieldKey), looked up
	// in the receiver instance's own PrivateFields.
	OpGetPrivateField
	OpSetPrivateField
	// OpCallPrivateMethod: A = arg count, B = constant-pool index of the
	// privateMethodKey "ClassName\x00methodName" key.
	OpCallPrivateMethod
	// OpDeleteProp: the key comes from the stack, not from B.
	// Stack: [key, obj] -> [bool]
	OpDeleteProp
	// OpHasProp implements the `in` operator (own + inherited keys).
	// Stack: [name, obj] -> [bool]
	OpHasProp
	// OpInstanceOf honors Symbol.hasInstance if present, else the class
	// chain walk. Stack: [value, ctor] -> [bool]
	OpInstanceOf
	// OpTypeOf: Stack: [v] -> [string]
	OpTypeOf
	// OpNewClassInstance allocates zero-valued instance fields and runs
	// field initializers for class B (constant-pool index of the class
	// name), without invoking the constructor body. No compiler path emits
	// it: `new` goes through construct (vm_calls.go), which allocates via
	// the same newInstance routine and then calls the constructor.
	OpNewClassInstance

	// --- Template literals / misc expression forms ---------------------------

	// OpConcat is a 2-operand specialization of OpAdd guaranteed to receive
	// strings (the stack-type tag already proved this), skipping Add's
	// numeric-vs-string branch.
	OpConcat

	// --- Exceptions (C3 "Control flow") ---------------------------------------

	// OpTry begins a try region; B = constant-pool-free, metadata is
	// attached via Chunk.SetTryInfo keyed by this instruction's index.
	OpTry
	// OpPopTry removes the innermost exception-handler/finally record
	// without enacting it (normal fallthrough out of a try block).
	OpPopTry
	OpThrow

	// --- Iterator protocol, promises, module slots (C1 trampolines) ----------

	// (modeled as OpCallBuiltin with well-known helper names; no dedicated
	// opcodes needed beyond the ones above.)

	// --- Async/generator state machines (C7) ----------------------------------

	// OpAwait suspends the running async frame until the awaited value
	// settles (immediately, if already settled). Stack: [awaitable] -> [result]
	OpAwait
	// OpYield suspends the running generator frame, handing the yielded
	// value to the consumer, and resumes with whatever value .next(v) was
	// called with. Stack: [yielded] -> [sent]
	OpYield
	// OpYieldStar delegates to a nested (possibly async) iterable,
	// re-yielding each of its values, and leaves the delegate's final
	// return value on the stack when it completes. Stack: [iterable] -> [returnValue]
	OpYieldStar

	// --- Misc --------------------------------------------------------------

	OpHalt
)

// OpCodeNames maps opcodes to disassembler-friendly names.
var OpCodeNames = [...]string{
	OpLoadConst:           "LOAD_CONST",
	OpLoadUndefined:       "LOAD_UNDEFINED",
	OpLoadNull:            "LOAD_NULL",
	OpLoadTrue:            "LOAD_TRUE",
	OpLoadFalse:           "LOAD_FALSE",
	OpLoadLocal:           "LOAD_LOCAL",
	OpStoreLocal:          "STORE_LOCAL",
	OpLoadGlobal:          "LOAD_GLOBAL",
	OpStoreGlobal:         "STORE_GLOBAL",
	OpLoadUpvalue:         "LOAD_UPVALUE",
	OpStoreUpvalue:        "STORE_UPVALUE",
	OpAdd:                 "ADD",
	OpSub:                 "SUB",
	OpMul:                 "MUL",
	OpDiv:                 "DIV",
	OpMod:                 "MOD",
	OpPow:                 "POW",
	OpNegate:              "NEGATE",
	OpUnaryPlus:           "UNARY_PLUS",
	OpBitAnd:              "BIT_AND",
	OpBitOr:               "BIT_OR",
	OpBitXor:              "BIT_XOR",
	OpBitNot:              "BIT_NOT",
	OpShl:                 "SHL",
	OpShr:                 "SHR",
	OpSar:                 "SAR",
	OpStrictEqual:         "STRICT_EQUAL",
	OpStrictNotEqual:      "STRICT_NOT_EQUAL",
	OpLess:                "LESS",
	OpLessEqual:           "LESS_EQUAL",
	OpGreater:             "GREATER",
	OpGreaterEqual:        "GREATER_EQUAL",
	OpNot:                 "NOT",
	OpToBool:              "TO_BOOL",
	OpIsNullish:           "IS_NULLISH",
	OpJump:                "JUMP",
	OpJumpIfTrue:          "JUMP_IF_TRUE",
	OpJumpIfFalse:         "JUMP_IF_FALSE",
	OpJumpIfTrueNoPop:     "JUMP_IF_TRUE_NO_POP",
	OpJumpIfFalseNoPop:    "JUMP_IF_FALSE_NO_POP",
	OpJumpIfNullishNoPop:  "JUMP_IF_NULLISH_NO_POP",
	OpLoop:                "LOOP",
	OpCall:                "CALL",
	OpCallMethod:          "CALL_METHOD",
	OpCallValue:           "CALL_VALUE",
	OpCallValueMethod:     "CALL_VALUE_METHOD",
	OpCallBuiltin:         "CALL_BUILTIN",
	OpCallStrategy:        "CALL_STRATEGY",
	OpSpreadArgs:          "SPREAD_ARGS",
	OpNew:                 "NEW",
	OpNewDynamic:          "NEW_DYNAMIC",
	OpReturn:              "RETURN",
	OpMakeClosure:         "MAKE_CLOSURE",
	OpGetSelf:             "GET_SELF",
	OpGetNewTarget:        "GET_NEW_TARGET",
	OpPop:                 "POP",
	OpDup:                 "DUP",
	OpSwap:                "SWAP",
	OpRotate3:             "ROTATE3",
	OpNewArray:            "NEW_ARRAY",
	OpGetIndex:            "GET_INDEX",
	OpSetIndex:            "SET_INDEX",
	OpNewObject:           "NEW_OBJECT",
	OpGetProp:             "GET_PROP",
	OpSetProp:             "SET_PROP",
	OpGetField:            "GET_FIELD",
	OpSetField:            "SET_FIELD",
	OpGetPrivateField:     "GET_PRIVATE_FIELD",
	OpSetPrivateField:     "SET_PRIVATE_FIELD",
	OpCallPrivateMethod:   "CALL_PRIVATE_METHOD",
	OpDeleteProp:          "DELETE_PROP",
	OpHasProp:             "HAS_PROP",
	OpInstanceOf:          "INSTANCE_OF",
	OpTypeOf:              "TYPE_OF",
	OpNewClassInstance:    "NEW_CLASS_INSTANCE",
	OpConcat:              "CONCAT",
	OpTry:                 "TRY",
	OpPopTry:              "POP_TRY",
	OpThrow:               "THROW",
	OpAwait:                "AWAIT",
	OpYield:                "YIELD",
	OpYieldStar:            "YIELD_STAR",
	OpHalt:                "HALT",
}

// Instruction is a 32-bit fixed-size instruction: [8-bit opcode][8-bit
// A][16-bit B]. A rarely-used 3-operand ABC form overlaps B's high byte
// with C(); callers that need both full B and C must not combine them.
type Instruction uint32

func MakeInstruction(op OpCode, a byte, b uint16) Instruction {
	return Instruction(uint32(op) | uint32(a)<<8 | uint32(b)<<16)
}

func MakeSimpleInstruction(op OpCode) Instruction {
	return Instruction(op)
}

func MakeInstructionABC(op OpCode, a, b, c byte) Instruction {
	return Instruction(uint32(op) | uint32(a)<<8 | uint32(b)<<16 | uint32(c)<<24)
}

func (inst Instruction) OpCode() OpCode { return OpCode(inst & 0xFF) }
func (inst Instruction) A() byte        { return byte((inst >> 8) & 0xFF) }
func (inst Instruction) B() uint16      { return uint16((inst >> 16) & 0xFFFF) }
func (inst Instruction) SignedB() int16 { return int16(inst.B()) }
func (inst Instruction) C() byte        { return byte((inst >> 24) & 0xFF) }

func (inst Instruction) String() string {
	op := inst.OpCode()
	if int(op) < len(OpCodeNames) && OpCodeNames[op] != "" {
		return OpCodeNames[op]
	}
	return "UNKNOWN"
}
