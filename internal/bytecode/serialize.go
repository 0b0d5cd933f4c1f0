package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"sort"

	"github.com/google/uuid"

	"github.com/tscore-lang/tscore/internal/types"
)

// serialize.go implements the .tsb binary format: a compiled Program
// round-trips through a byte slice so the module cache can skip
// re-emission of unchanged sources. The format is self-contained — every
// FunctionObject reachable from the program (top-level functions, methods,
// closure constants, field initializers) is assigned an index in one flat
// function table, and chunks reference functions by that index.

const (
	tsbMagic   = "TSB1"
	tsbVersion = 1
)

// constant tags
const (
	tagUndefined byte = iota
	tagNull
	tagTrue
	tagFalse
	tagNumber
	tagString
	tagBigInt
	tagSymbol
	tagRegExp
	tagCallable
)

// EncodeProgram serializes prog into the .tsb wire form.
func EncodeProgram(prog *Program) ([]byte, error) {
	e := &programEncoder{
		buf:     &bytes.Buffer{},
		fnIndex: map[*FunctionObject]int{},
		chIndex: map[*Chunk]int{},
	}
	e.collectProgram(prog)

	e.buf.WriteString(tsbMagic)
	e.writeUvarint(tsbVersion)
	e.writeUvarint(uint64(prog.GlobalSlots))

	// Function table: metadata first, bodies (chunks) second, so the decoder
	// can allocate every FunctionObject before chunk constants refer to them.
	e.writeUvarint(uint64(len(e.fns)))
	for _, fn := range e.fns {
		e.writeString(fn.Name)
		e.writeUvarint(uint64(fn.Arity))
		e.writeVarint(int64(fn.RestIndex))
		e.writeUvarint(uint64(fn.Kind))
		e.writeUvarint(uint64(len(fn.ParamNames)))
		for _, p := range fn.ParamNames {
			e.writeString(p)
		}
		e.writeUvarint(uint64(len(fn.UpvalueDefs)))
		for _, uv := range fn.UpvalueDefs {
			e.writeBool(uv.IsLocal)
			e.writeVarint(int64(uv.Index))
			e.writeString(uv.Name)
		}
	}

	e.writeUvarint(uint64(len(e.chunks)))
	for _, ch := range e.chunks {
		if err := e.writeChunk(ch); err != nil {
			return nil, err
		}
	}
	// function -> chunk binding
	for _, fn := range e.fns {
		e.writeVarint(int64(e.chunkIndexOf(fn.Chunk)))
		e.writeUvarint(uint64(len(fn.Defaults)))
		for _, d := range fn.Defaults {
			e.writeVarint(int64(e.chunkIndexOf(d)))
		}
	}

	e.writeVarint(int64(e.chunkIndexOf(prog.Chunk)))

	// Classes, alphabetical for determinism.
	classNames := make([]string, 0, len(prog.Classes))
	for name := range prog.Classes {
		classNames = append(classNames, name)
	}
	sort.Strings(classNames)
	e.writeUvarint(uint64(len(classNames)))
	for _, name := range classNames {
		if err := e.writeClass(prog.Classes[name]); err != nil {
			return nil, err
		}
	}

	// Top-level functions by name.
	fnNames := make([]string, 0, len(prog.Functions))
	for name := range prog.Functions {
		fnNames = append(fnNames, name)
	}
	sort.Strings(fnNames)
	e.writeUvarint(uint64(len(fnNames)))
	for _, name := range fnNames {
		e.writeString(name)
		e.writeVarint(int64(e.fnIndex[prog.Functions[name]]))
	}

	// Modules.
	modPaths := make([]string, 0, len(prog.Modules))
	for p := range prog.Modules {
		modPaths = append(modPaths, p)
	}
	sort.Strings(modPaths)
	e.writeUvarint(uint64(len(modPaths)))
	for _, p := range modPaths {
		mod := prog.Modules[p]
		e.writeString(mod.Path)
		e.writeUvarint(uint64(len(mod.ExportsOrder)))
		for _, name := range mod.ExportsOrder {
			e.writeString(name)
			e.writeUvarint(uint64(mod.ExportSlots[name]))
		}
	}

	return e.buf.Bytes(), nil
}

type programEncoder struct {
	buf     *bytes.Buffer
	fns     []*FunctionObject
	fnIndex map[*FunctionObject]int
	chunks  []*Chunk
	chIndex map[*Chunk]int
}

func (e *programEncoder) collectProgram(prog *Program) {
	e.collectChunk(prog.Chunk)
	for _, fn := range sortedFunctionValues(prog.Functions) {
		e.collectFunction(fn)
	}
	for _, name := range sortedClassNames(prog.Classes) {
		cls := prog.Classes[name]
		for _, fn := range sortedFunctionValues(cls.Methods) {
			e.collectFunction(fn)
		}
		for _, fn := range sortedFunctionValues(cls.StaticMethods) {
			e.collectFunction(fn)
		}
		for _, fn := range sortedFunctionValues(cls.PrivateMethods) {
			e.collectFunction(fn)
		}
		for _, ch := range sortedChunkValues(cls.FieldInits) {
			e.collectChunk(ch)
		}
		for _, ch := range sortedChunkValues(cls.StaticFieldInits) {
			e.collectChunk(ch)
		}
	}
}

func (e *programEncoder) collectFunction(fn *FunctionObject) {
	if fn == nil {
		return
	}
	if _, seen := e.fnIndex[fn]; seen {
		return
	}
	e.fnIndex[fn] = len(e.fns)
	e.fns = append(e.fns, fn)
	e.collectChunk(fn.Chunk)
	for _, d := range fn.Defaults {
		e.collectChunk(d)
	}
}

func (e *programEncoder) collectChunk(ch *Chunk) {
	if ch == nil {
		return
	}
	if _, seen := e.chIndex[ch]; seen {
		return
	}
	e.chIndex[ch] = len(e.chunks)
	e.chunks = append(e.chunks, ch)
	for _, c := range ch.Constants {
		if callable, ok := c.Data.(*Callable); ok && c.Type == ValueFunction {
			e.collectFunction(callable.Method)
		}
	}
}

func (e *programEncoder) chunkIndexOf(ch *Chunk) int {
	if ch == nil {
		return -1
	}
	return e.chIndex[ch]
}

func (e *programEncoder) writeChunk(ch *Chunk) error {
	e.writeString(ch.Name)
	e.writeUvarint(uint64(ch.LocalCount))
	e.writeUvarint(uint64(len(ch.Code)))
	for _, inst := range ch.Code {
		var w [4]byte
		binary.LittleEndian.PutUint32(w[:], uint32(inst))
		e.buf.Write(w[:])
	}
	e.writeUvarint(uint64(len(ch.Lines)))
	for _, li := range ch.Lines {
		e.writeUvarint(uint64(li.InstructionOffset))
		e.writeUvarint(uint64(li.Line))
	}
	// try-region table
	tryIdx := make([]int, 0, len(ch.tryInfos))
	for i := range ch.tryInfos {
		tryIdx = append(tryIdx, i)
	}
	sort.Ints(tryIdx)
	e.writeUvarint(uint64(len(tryIdx)))
	for _, i := range tryIdx {
		info := ch.tryInfos[i]
		e.writeUvarint(uint64(i))
		e.writeUvarint(uint64(info.CatchTarget))
		e.writeUvarint(uint64(info.FinallyTarget))
		e.writeUvarint(uint64(info.FinallyEnd))
		e.writeBool(info.HasCatch)
		e.writeBool(info.HasFinally)
	}
	e.writeUvarint(uint64(len(ch.Constants)))
	for _, c := range ch.Constants {
		if err := e.writeConstant(c); err != nil {
			return err
		}
	}
	return nil
}

func (e *programEncoder) writeConstant(v Value) error {
	switch v.Type {
	case ValueUndefined:
		e.buf.WriteByte(tagUndefined)
	case ValueNull:
		e.buf.WriteByte(tagNull)
	case ValueBool:
		if v.AsBool() {
			e.buf.WriteByte(tagTrue)
		} else {
			e.buf.WriteByte(tagFalse)
		}
	case ValueNumber:
		e.buf.WriteByte(tagNumber)
		var w [8]byte
		binary.LittleEndian.PutUint64(w[:], math.Float64bits(v.AsNumber()))
		e.buf.Write(w[:])
	case ValueString:
		e.buf.WriteByte(tagString)
		e.writeString(v.AsString())
	case ValueBigInt:
		e.buf.WriteByte(tagBigInt)
		e.writeString(v.Data.(*big.Int).Text(10))
	case ValueSymbol:
		s := v.Data.(*Symbol)
		e.buf.WriteByte(tagSymbol)
		e.buf.Write(s.ID[:])
		e.writeString(s.Description)
	case ValueRegExp:
		re := v.Data.(*RegExpInstance)
		e.buf.WriteByte(tagRegExp)
		e.writeString(re.Source)
		e.writeString(re.Flags)
	case ValueFunction:
		c := v.Data.(*Callable)
		e.buf.WriteByte(tagCallable)
		e.writeString(c.Name)
		idx := -1
		if c.Method != nil {
			idx = e.fnIndex[c.Method]
		}
		e.writeVarint(int64(idx))
	default:
		return fmt.Errorf("constant kind %s is not serializable", v.Type.String())
	}
	return nil
}

func (e *programEncoder) writeClass(cls *ClassRecord) error {
	e.writeString(cls.Name)
	superName := ""
	if cls.Super != nil {
		superName = cls.Super.Name
	}
	e.writeString(superName)
	e.writeUvarint(uint64(cls.ConstructorArity))

	propNames := make([]string, 0, len(cls.Properties))
	for name := range cls.Properties {
		propNames = append(propNames, name)
	}
	sort.Strings(propNames)
	e.writeUvarint(uint64(len(propNames)))
	for _, name := range propNames {
		e.writeString(name)
		e.writeUvarint(uint64(cls.Properties[name]))
		e.writeBool(cls.ReadonlyProps[name])
	}

	e.writeStringFnMap(cls.Methods)
	e.writeStringFnMap(cls.StaticMethods)
	e.writeStringFnMap(cls.PrivateMethods)

	priv := make([]string, 0, len(cls.PrivateFields))
	for name := range cls.PrivateFields {
		priv = append(priv, name)
	}
	sort.Strings(priv)
	e.writeUvarint(uint64(len(priv)))
	for _, name := range priv {
		e.writeString(name)
	}

	e.writeUvarint(uint64(len(cls.FieldOrder)))
	for _, name := range cls.FieldOrder {
		e.writeString(name)
	}
	e.writeStringChunkMap(cls.FieldInits)
	e.writeStringChunkMap(cls.StaticFieldInits)
	return nil
}

func (e *programEncoder) writeStringFnMap(m map[string]*FunctionObject) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	e.writeUvarint(uint64(len(names)))
	for _, name := range names {
		e.writeString(name)
		e.writeVarint(int64(e.fnIndex[m[name]]))
	}
}

func (e *programEncoder) writeStringChunkMap(m map[string]*Chunk) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	e.writeUvarint(uint64(len(names)))
	for _, name := range names {
		e.writeString(name)
		e.writeVarint(int64(e.chunkIndexOf(m[name])))
	}
}

func (e *programEncoder) writeUvarint(v uint64) {
	var w [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(w[:], v)
	e.buf.Write(w[:n])
}

func (e *programEncoder) writeVarint(v int64) {
	var w [binary.MaxVarintLen64]byte
	n := binary.PutVarint(w[:], v)
	e.buf.Write(w[:n])
}

func (e *programEncoder) writeString(s string) {
	e.writeUvarint(uint64(len(s)))
	e.buf.WriteString(s)
}

func (e *programEncoder) writeBool(b bool) {
	if b {
		e.buf.WriteByte(1)
	} else {
		e.buf.WriteByte(0)
	}
}

// DecodeProgram reconstructs a Program from EncodeProgram's output.
func DecodeProgram(data []byte) (*Program, error) {
	d := &programDecoder{r: bytes.NewReader(data)}
	magic := make([]byte, len(tsbMagic))
	if _, err := d.r.Read(magic); err != nil || string(magic) != tsbMagic {
		return nil, fmt.Errorf("not a compiled module (bad magic)")
	}
	version := d.readUvarint()
	if version != tsbVersion {
		return nil, fmt.Errorf("unsupported compiled-module version %d", version)
	}
	globalSlots := int(d.readUvarint())

	fnCount := int(d.readUvarint())
	d.fns = make([]*FunctionObject, fnCount)
	for i := range d.fns {
		fn := &FunctionObject{}
		fn.Name = d.readString()
		fn.Arity = int(d.readUvarint())
		fn.RestIndex = int(d.readVarint())
		fn.Kind = FunctionKind(d.readUvarint())
		params := int(d.readUvarint())
		fn.ParamNames = make([]string, params)
		for p := range fn.ParamNames {
			fn.ParamNames[p] = d.readString()
		}
		upvals := int(d.readUvarint())
		fn.UpvalueDefs = make([]UpvalueDef, upvals)
		for u := range fn.UpvalueDefs {
			fn.UpvalueDefs[u].IsLocal = d.readBool()
			fn.UpvalueDefs[u].Index = int(d.readVarint())
			fn.UpvalueDefs[u].Name = d.readString()
		}
		d.fns[i] = fn
	}

	chunkCount := int(d.readUvarint())
	d.chunks = make([]*Chunk, chunkCount)
	for i := range d.chunks {
		ch, err := d.readChunk()
		if err != nil {
			return nil, err
		}
		d.chunks[i] = ch
	}

	for _, fn := range d.fns {
		fn.Chunk = d.chunkAt(int(d.readVarint()))
		defCount := int(d.readUvarint())
		fn.Defaults = make([]*Chunk, defCount)
		for i := range fn.Defaults {
			fn.Defaults[i] = d.chunkAt(int(d.readVarint()))
		}
	}
	if d.err != nil {
		return nil, d.err
	}

	prog := &Program{
		Chunk:       d.chunkAt(int(d.readVarint())),
		Classes:     map[string]*ClassRecord{},
		Functions:   map[string]*FunctionObject{},
		Modules:     map[string]*ModuleRecord{},
		GlobalSlots: globalSlots,
	}

	classCount := int(d.readUvarint())
	superNames := map[string]string{}
	for i := 0; i < classCount; i++ {
		cls, superName := d.readClass()
		prog.Classes[cls.Name] = cls
		superNames[cls.Name] = superName
	}
	for name, superName := range superNames {
		if superName != "" {
			prog.Classes[name].Super = prog.Classes[superName]
		}
	}
	for _, cls := range prog.Classes {
		for _, fn := range cls.Methods {
			fn.DeclaringCls = cls
		}
		for _, fn := range cls.StaticMethods {
			fn.DeclaringCls = cls
		}
		for _, fn := range cls.PrivateMethods {
			fn.DeclaringCls = cls
		}
	}

	fnCount = int(d.readUvarint())
	for i := 0; i < fnCount; i++ {
		name := d.readString()
		prog.Functions[name] = d.fnAt(int(d.readVarint()))
	}

	modCount := int(d.readUvarint())
	for i := 0; i < modCount; i++ {
		mod := &ModuleRecord{ExportSlots: map[string]uint16{}}
		mod.Path = d.readString()
		exports := int(d.readUvarint())
		for j := 0; j < exports; j++ {
			name := d.readString()
			mod.ExportSlots[name] = uint16(d.readUvarint())
			mod.ExportsOrder = append(mod.ExportsOrder, name)
		}
		prog.Modules[mod.Path] = mod
	}

	if d.err != nil {
		return nil, d.err
	}
	return prog, nil
}

type programDecoder struct {
	r      *bytes.Reader
	fns    []*FunctionObject
	chunks []*Chunk
	err    error
}

func (d *programDecoder) fail(format string, args ...interface{}) {
	if d.err == nil {
		d.err = fmt.Errorf(format, args...)
	}
}

func (d *programDecoder) fnAt(i int) *FunctionObject {
	if i < 0 || i >= len(d.fns) {
		return nil
	}
	return d.fns[i]
}

func (d *programDecoder) chunkAt(i int) *Chunk {
	if i < 0 || i >= len(d.chunks) {
		return nil
	}
	return d.chunks[i]
}

func (d *programDecoder) readChunk() (*Chunk, error) {
	ch := NewChunk(d.readString())
	ch.LocalCount = int(d.readUvarint())
	codeLen := int(d.readUvarint())
	ch.Code = make([]Instruction, codeLen)
	for i := range ch.Code {
		var w [4]byte
		if _, err := d.r.Read(w[:]); err != nil {
			return nil, err
		}
		ch.Code[i] = Instruction(binary.LittleEndian.Uint32(w[:]))
	}
	lineCount := int(d.readUvarint())
	ch.Lines = make([]LineInfo, lineCount)
	for i := range ch.Lines {
		ch.Lines[i].InstructionOffset = int(d.readUvarint())
		ch.Lines[i].Line = int(d.readUvarint())
	}
	tryCount := int(d.readUvarint())
	for i := 0; i < tryCount; i++ {
		at := int(d.readUvarint())
		info := TryInfo{
			CatchTarget:   int(d.readUvarint()),
			FinallyTarget: int(d.readUvarint()),
			FinallyEnd:    int(d.readUvarint()),
			HasCatch:      d.readBool(),
			HasFinally:    d.readBool(),
		}
		ch.SetTryInfo(at, info)
	}
	constCount := int(d.readUvarint())
	ch.Constants = make([]Value, constCount)
	for i := range ch.Constants {
		v, err := d.readConstant()
		if err != nil {
			return nil, err
		}
		ch.Constants[i] = v
	}
	return ch, nil
}

func (d *programDecoder) readConstant() (Value, error) {
	tag, err := d.r.ReadByte()
	if err != nil {
		return Undefined(), err
	}
	switch tag {
	case tagUndefined:
		return Undefined(), nil
	case tagNull:
		return Null(), nil
	case tagTrue:
		return BoolValue(true), nil
	case tagFalse:
		return BoolValue(false), nil
	case tagNumber:
		var w [8]byte
		if _, err := d.r.Read(w[:]); err != nil {
			return Undefined(), err
		}
		return NumberValue(math.Float64frombits(binary.LittleEndian.Uint64(w[:]))), nil
	case tagString:
		return StringValue(d.readString()), nil
	case tagBigInt:
		bi, ok := new(big.Int).SetString(d.readString(), 10)
		if !ok {
			return Undefined(), fmt.Errorf("malformed bigint constant")
		}
		return BigIntValue(bi), nil
	case tagSymbol:
		var id uuid.UUID
		if _, err := d.r.Read(id[:]); err != nil {
			return Undefined(), err
		}
		desc := d.readString()
		if s, ok := WellKnownSymbolByID(id); ok {
			return SymbolValue(s), nil
		}
		return SymbolValue(&Symbol{ID: id, Description: desc}), nil
	case tagRegExp:
		src := d.readString()
		flags := d.readString()
		return RegExpValue(&RegExpInstance{Source: src, Flags: flags, Global: bytes.ContainsRune([]byte(flags), 'g')}), nil
	case tagCallable:
		name := d.readString()
		idx := int(d.readVarint())
		return FunctionValue(&Callable{Name: name, Method: d.fnAt(idx)}), nil
	default:
		return Undefined(), fmt.Errorf("unknown constant tag %d", tag)
	}
}

func (d *programDecoder) readClass() (*ClassRecord, string) {
	cls := newClassRecord(d.readString(), nil)
	superName := d.readString()
	cls.ConstructorArity = int(d.readUvarint())

	props := int(d.readUvarint())
	for i := 0; i < props; i++ {
		name := d.readString()
		kind := d.readUvarint()
		readonly := d.readBool()
		cls.Properties[name] = types.Kind(kind)
		cls.ReadonlyProps[name] = readonly
	}
	cls.Methods = d.readStringFnMap()
	cls.StaticMethods = d.readStringFnMap()
	cls.PrivateMethods = d.readStringFnMap()
	priv := int(d.readUvarint())
	for i := 0; i < priv; i++ {
		cls.PrivateFields[d.readString()] = true
	}
	fields := int(d.readUvarint())
	for i := 0; i < fields; i++ {
		cls.FieldOrder = append(cls.FieldOrder, d.readString())
	}
	cls.FieldInits = d.readStringChunkMap()
	cls.StaticFieldInits = d.readStringChunkMap()
	for name := range cls.StaticFieldInits {
		cls.StaticFields[name] = Undefined()
	}
	return cls, superName
}

func (d *programDecoder) readStringFnMap() map[string]*FunctionObject {
	n := int(d.readUvarint())
	out := make(map[string]*FunctionObject, n)
	for i := 0; i < n; i++ {
		name := d.readString()
		out[name] = d.fnAt(int(d.readVarint()))
	}
	return out
}

func (d *programDecoder) readStringChunkMap() map[string]*Chunk {
	n := int(d.readUvarint())
	out := make(map[string]*Chunk, n)
	for i := 0; i < n; i++ {
		name := d.readString()
		out[name] = d.chunkAt(int(d.readVarint()))
	}
	return out
}

func (d *programDecoder) readUvarint() uint64 {
	v, err := binary.ReadUvarint(d.r)
	if err != nil {
		d.fail("truncated compiled module: %s", err.Error())
	}
	return v
}

func (d *programDecoder) readVarint() int64 {
	v, err := binary.ReadVarint(d.r)
	if err != nil {
		d.fail("truncated compiled module: %s", err.Error())
	}
	return v
}

func (d *programDecoder) readString() string {
	n := d.readUvarint()
	if d.err != nil || n > uint64(d.r.Len()) {
		d.fail("truncated string in compiled module")
		return ""
	}
	out := make([]byte, n)
	if _, err := d.r.Read(out); err != nil {
		d.fail("truncated string in compiled module")
		return ""
	}
	return string(out)
}

func (d *programDecoder) readBool() bool {
	b, err := d.r.ReadByte()
	if err != nil {
		d.fail("truncated compiled module")
		return false
	}
	return b != 0
}

func sortedFunctionValues(m map[string]*FunctionObject) []*FunctionObject {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*FunctionObject, 0, len(names))
	for _, name := range names {
		out = append(out, m[name])
	}
	return out
}

func sortedClassNames(m map[string]*ClassRecord) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedChunkValues(m map[string]*Chunk) []*Chunk {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*Chunk, 0, len(names))
	for _, name := range names {
		out = append(out, m[name])
	}
	return out
}
