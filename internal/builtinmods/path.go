package builtinmods

import (
	"path/filepath"
	"strings"

	"github.com/tscore-lang/tscore/internal/bytecode"
)

func pathModule(vm *bytecode.VM) bytecode.Value {
	ns := bytecode.NewPlainObject()
	ns.Set("join", native("join", func(_ *bytecode.VM, _ *bytecode.Thread, _ bytecode.Value, args []bytecode.Value) (bytecode.Value, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = bytecode.ToDisplayString(a)
		}
		return bytecode.StringValue(filepath.Join(parts...)), nil
	}))
	ns.Set("resolve", native("resolve", func(_ *bytecode.VM, _ *bytecode.Thread, _ bytecode.Value, args []bytecode.Value) (bytecode.Value, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = bytecode.ToDisplayString(a)
		}
		abs, err := filepath.Abs(filepath.Join(parts...))
		if err != nil {
			return bytecode.Undefined(), hostError("EINVAL", "resolve: %s", err.Error())
		}
		return bytecode.StringValue(abs), nil
	}))
	ns.Set("basename", native("basename", func(_ *bytecode.VM, _ *bytecode.Thread, _ bytecode.Value, args []bytecode.Value) (bytecode.Value, error) {
		base := filepath.Base(bytecode.ToDisplayString(arg(args, 0)))
		if len(args) > 1 && !args[1].IsNullish() {
			base = strings.TrimSuffix(base, bytecode.ToDisplayString(args[1]))
		}
		return bytecode.StringValue(base), nil
	}))
	ns.Set("dirname", native("dirname", func(_ *bytecode.VM, _ *bytecode.Thread, _ bytecode.Value, args []bytecode.Value) (bytecode.Value, error) {
		return bytecode.StringValue(filepath.Dir(bytecode.ToDisplayString(arg(args, 0)))), nil
	}))
	ns.Set("extname", native("extname", func(_ *bytecode.VM, _ *bytecode.Thread, _ bytecode.Value, args []bytecode.Value) (bytecode.Value, error) {
		return bytecode.StringValue(filepath.Ext(bytecode.ToDisplayString(arg(args, 0)))), nil
	}))
	ns.Set("isAbsolute", native("isAbsolute", func(_ *bytecode.VM, _ *bytecode.Thread, _ bytecode.Value, args []bytecode.Value) (bytecode.Value, error) {
		return bytecode.BoolValue(filepath.IsAbs(bytecode.ToDisplayString(arg(args, 0)))), nil
	}))
	ns.Set("sep", bytecode.StringValue(string(filepath.Separator)))
	return bytecode.ObjectValue(ns)
}
