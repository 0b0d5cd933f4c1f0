// Package builtinmods provides the emitter-visible call shapes of the
// built-in host modules (crypto, zlib, fs, os, path). Each module is a
// namespace object over the shared value model; both execution engines
// reach them through the engine's module loader.
package builtinmods

import (
	"github.com/tscore-lang/tscore/internal/bytecode"
)

// Names lists the module specifiers this package serves.
func Names() []string {
	return []string{"crypto", "zlib", "fs", "os", "path"}
}

// IsBuiltin reports whether specifier names a built-in module.
func IsBuiltin(specifier string) bool {
	switch specifier {
	case "crypto", "zlib", "fs", "os", "path":
		return true
	case "node:crypto", "node:zlib", "node:fs", "node:os", "node:path":
		return true
	}
	return false
}

// Lookup materializes the namespace object for specifier. Namespaces are
// built fresh per call; their members are stateless natives, so identity
// sharing buys nothing.
func Lookup(vm *bytecode.VM, specifier string) (bytecode.Value, bool) {
	switch trimNodePrefix(specifier) {
	case "crypto":
		return cryptoModule(vm), true
	case "zlib":
		return zlibModule(vm), true
	case "fs":
		return fsModule(vm), true
	case "os":
		return osModule(vm), true
	case "path":
		return pathModule(vm), true
	}
	return bytecode.Undefined(), false
}

func trimNodePrefix(s string) string {
	if len(s) > 5 && s[:5] == "node:" {
		return s[5:]
	}
	return s
}

func native(name string, fn bytecode.BuiltinFunction) bytecode.Value {
	return bytecode.FunctionValue(&bytecode.Callable{Name: name, Native: fn})
}

func arg(args []bytecode.Value, i int) bytecode.Value {
	if i < len(args) {
		return args[i]
	}
	return bytecode.Undefined()
}
