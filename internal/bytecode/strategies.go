package bytecode

import "github.com/tscore-lang/tscore/internal/types"

// objectSpreadSentinelKey is the synthetic property key OpNewObject's VM
// handler recognizes as "expand the paired value's own properties here"
// rather than a literal key, letting object-spread (`{...a, b: 1}`) reuse
// OpNewObject's uniform [key, value] pair convention instead of needing a
// dedicated opcode.
const objectSpreadSentinelKey = "\x00spread"

// strategies.go implements C5: the per-receiver-type method registry that
// compiler_dispatch.go consults to turn `receiver.method(args)` into a direct
// OpCallStrategy rather than a fully dynamic property-then-call sequence,
// whenever the receiver's static or runtime type is one of the container
// kinds below. Each strategy key is "Type.method"; the VM's strategy table
// (vm_strategies_runtime.go) is keyed the same way so the compiler and runtime never
// have to agree on anything beyond the string.

// instanceStrategyMethods lists, per receiver value kind, the prototype
// method names this core implements as a strategy rather than a plain
// object property lookup.
var instanceStrategyMethods = map[string]map[string]bool{
	"Array": {
		"push": true, "pop": true, "shift": true, "unshift": true,
		"slice": true, "splice": true, "concat": true, "join": true,
		"indexOf": true, "lastIndexOf": true, "includes": true,
		"find": true, "findIndex": true, "filter": true, "map": true,
		"forEach": true, "reduce": true, "reduceRight": true, "some": true,
		"every": true, "sort": true, "reverse": true, "flat": true,
		"flatMap": true, "fill": true, "at": true, "keys": true,
		"values": true, "entries": true, "copyWithin": true,
	},
	"String": {
		"charAt": true, "charCodeAt": true, "codePointAt": true,
		"indexOf": true, "lastIndexOf": true, "includes": true,
		"startsWith": true, "endsWith": true, "slice": true,
		"substring": true, "substr": true, "split": true, "trim": true,
		"trimStart": true, "trimEnd": true, "toUpperCase": true,
		"toLowerCase": true, "repeat": true, "padStart": true,
		"padEnd": true, "replace": true, "replaceAll": true,
		"concat": true, "at": true, "match": true, "matchAll": true,
		"normalize": true, "localeCompare": true,
	},
	"Date": {
		"getTime": true, "getFullYear": true, "getMonth": true, "getDate": true,
		"getDay": true, "getHours": true, "getMinutes": true, "getSeconds": true,
		"getMilliseconds": true, "toISOString": true, "toDateString": true,
		"setFullYear": true, "setMonth": true, "setDate": true, "setHours": true,
		"valueOf": true,
	},
	"Map": {
		"get": true, "set": true, "has": true, "delete": true, "clear": true,
		"forEach": true, "keys": true, "values": true, "entries": true,
	},
	"Set": {
		"add": true, "has": true, "delete": true, "clear": true,
		"forEach": true, "values": true, "keys": true, "entries": true,
	},
	"WeakMap": {"get": true, "set": true, "has": true, "delete": true},
	"WeakSet": {"add": true, "has": true, "delete": true},
	"RegExp":  {"test": true, "exec": true},
	"Buffer":  {"toString": true, "slice": true, "write": true, "equals": true},
	"Promise": {"then": true, "catch": true, "finally": true},
}

// staticStrategyObjects lists the built-in namespace objects (Math, JSON,
// Object, Array, Number, Promise, Symbol, process, console) whose members dispatch
// through OpCallStrategy keyed "Namespace.member" rather than through a
// declared-variable lookup, since the identifier itself is never assigned
// or shadowed by user code in the supported subset.
var staticStrategyObjects = map[string]bool{
	"Math": true, "JSON": true, "Object": true, "Array": true,
	"Number": true, "Promise": true, "Symbol": true, "process": true,
	"console": true,
}

// receiverStrategyTypeName translates a checker-recorded TypeInfo into the
// C5 strategy table key for the value's runtime container kind, when the
// static type is precise enough to justify skipping dynamic dispatch.
func receiverStrategyTypeName(info types.TypeInfo) (string, bool) {
	switch info.Kind {
	case types.ArrayKind:
		return "Array", true
	case types.StringKind:
		return "String", true
	case types.ClassInstance:
		switch info.ClassName {
		case types.ClassDate, types.ClassMap, types.ClassSet, types.ClassWeakMap,
			types.ClassWeakSet, types.ClassRegExp, types.ClassBuffer, types.ClassPromise:
			return info.ClassName, true
		}
	}
	return "", false
}

// strategyMethodName returns the "Type.method" strategy key for a receiver
// type name from receiverStrategyTypeName, or false when instanceStrategyMethods
// does not list method for that type. Declared user classes never appear
// here: their methods dispatch through ClassRecord.ResolveInstanceMethod instead.
func strategyMethodName(receiverType string, method string) (string, bool) {
	methods, ok := instanceStrategyMethods[receiverType]
	if !ok || !methods[method] {
		return "", false
	}
	return receiverType + "." + method, true
}

func staticStrategyName(namespace, member string) (string, bool) {
	if !staticStrategyObjects[namespace] {
		return "", false
	}
	return namespace + "." + member, true
}
