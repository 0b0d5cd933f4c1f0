package interp

import (
	"fmt"

	"github.com/tscore-lang/tscore/internal/ast"
	"github.com/tscore-lang/tscore/internal/bytecode"
)

func (in *Interpreter) execStatement(stmt ast.Statement, env *environment) error {
	switch s := stmt.(type) {
	case nil:
		return nil
	case *ast.ExpressionStatement:
		_, err := in.eval(s.Expression, env)
		return err
	case *ast.VarStatement:
		return in.execVarStatement(s, env)
	case *ast.BlockStatement:
		block := newEnvironment(env)
		return in.execBlock(s.Statements, block)
	case *ast.IfStatement:
		test, err := in.eval(s.Test, env)
		if err != nil {
			return err
		}
		if bytecode.IsTruthy(test) {
			return in.execStatement(s.Consequent, env)
		}
		return in.execStatement(s.Alternate, env)
	case *ast.WhileStatement:
		return in.execLoop("", env, nil, s.Test, nil, s.Body, false)
	case *ast.DoWhileStatement:
		return in.execLoop("", env, nil, s.Test, nil, s.Body, true)
	case *ast.ForStatement:
		return in.execForStatement("", s, env)
	case *ast.ForOfStatement:
		return in.execForOf("", s, env)
	case *ast.ForInStatement:
		return in.execForIn("", s, env)
	case *ast.BreakStatement:
		return breakSignal{label: s.Label}
	case *ast.ContinueStatement:
		return continueSignal{label: s.Label}
	case *ast.ReturnStatement:
		v := bytecode.Undefined()
		if s.Argument != nil {
			var err error
			if v, err = in.eval(s.Argument, env); err != nil {
				return err
			}
		}
		return returnSignal{value: v}
	case *ast.ThrowStatement:
		v, err := in.eval(s.Argument, env)
		if err != nil {
			return err
		}
		return bytecode.ThrownError(v)
	case *ast.TryStatement:
		return in.execTry(s, env)
	case *ast.SwitchStatement:
		return in.execSwitch(s, env)
	case *ast.LabeledStatement:
		return in.execLabeled(s, env)
	case *ast.FunctionDeclaration:
		env.declare(s.Function.Name, in.makeFunction(s.Function, env))
		return nil
	case *ast.ClassDeclaration:
		return in.declareClass(s.Body, env)
	case *ast.ImportStatement:
		return in.execImport(s, env)
	case *ast.ExportStatement:
		return in.execExport(s, env)
	default:
		return fmt.Errorf("interpreter: unsupported statement %T", stmt)
	}
}

func (in *Interpreter) execBlock(stmts []ast.Statement, env *environment) error {
	// Hoist function declarations within the block, same as the top level.
	for _, stmt := range stmts {
		if fd, ok := stmt.(*ast.FunctionDeclaration); ok {
			env.declare(fd.Function.Name, in.makeFunction(fd.Function, env))
		}
	}
	for _, stmt := range stmts {
		if _, ok := stmt.(*ast.FunctionDeclaration); ok {
			continue
		}
		if err := in.execStatement(stmt, env); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interpreter) execVarStatement(s *ast.VarStatement, env *environment) error {
	for _, decl := range s.Declarations {
		if decl.Pattern != nil {
			src, err := in.eval(decl.Init, env)
			if err != nil {
				return err
			}
			if err := in.bindPattern(decl.Pattern, src, env, true); err != nil {
				return err
			}
			continue
		}
		v := bytecode.Undefined()
		if decl.Init != nil {
			var err error
			if v, err = in.eval(decl.Init, env); err != nil {
				return err
			}
		}
		env.declare(decl.Name, v)
	}
	return nil
}

// bindPattern destructures src into the names of p. declare selects fresh
// bindings (let/const) versus assignment to existing ones.
func (in *Interpreter) bindPattern(p ast.Pattern, src Value, env *environment, declare bool) error {
	bind := func(name string, v Value) {
		if declare {
			env.declare(name, v)
			return
		}
		if !env.assign(name, v) {
			env.declare(name, v)
		}
	}
	switch pat := p.(type) {
	case *ast.ArrayPattern:
		for i, el := range pat.Elements {
			if el.Rest {
				rest, err := in.vm.CallBuiltin("__arraySliceFrom", []Value{src, bytecode.NumberValue(float64(i))})
				if err != nil {
					return err
				}
				if el.Target != nil {
					if err := in.bindPattern(el.Target, rest, env, declare); err != nil {
						return err
					}
				} else {
					bind(el.Name, rest)
				}
				continue
			}
			if el.Target == nil && el.Name == "" {
				continue // elision
			}
			v := in.vm.GetIndex(src, bytecode.NumberValue(float64(i)))
			if v.IsUndefined() && el.Default != nil {
				var err error
				if v, err = in.eval(el.Default, env); err != nil {
					return err
				}
			}
			if el.Target != nil {
				if err := in.bindPattern(el.Target, v, env, declare); err != nil {
					return err
				}
				continue
			}
			bind(el.Name, v)
		}
		return nil
	case *ast.ObjectPattern:
		var taken []Value
		for _, prop := range pat.Properties {
			if prop.Rest {
				rest, err := in.vm.CallBuiltin("__objectRestExcluding", []Value{src, bytecode.ArrayValue(bytecode.NewArrayInstance(taken))})
				if err != nil {
					return err
				}
				bind(prop.Name, rest)
				continue
			}
			taken = append(taken, bytecode.StringValue(prop.Key))
			v := in.vm.GetProperty(src, prop.Key)
			if v.IsUndefined() && prop.Default != nil {
				var err error
				if v, err = in.eval(prop.Default, env); err != nil {
					return err
				}
			}
			if prop.Target != nil {
				if err := in.bindPattern(prop.Target, v, env, declare); err != nil {
					return err
				}
				continue
			}
			name := prop.Name
			if name == "" {
				name = prop.Key
			}
			bind(name, v)
		}
		return nil
	default:
		return fmt.Errorf("interpreter: unsupported pattern %T", p)
	}
}

// execLoop runs while/do-while bodies with break/continue routing.
func (in *Interpreter) execLoop(label string, env *environment, init func() error, test ast.Expression, update func() error, body ast.Statement, bodyFirst bool) error {
	if init != nil {
		if err := init(); err != nil {
			return err
		}
	}
	for {
		if !bodyFirst && test != nil {
			t, err := in.eval(test, env)
			if err != nil {
				return err
			}
			if !bytecode.IsTruthy(t) {
				return nil
			}
		}
		err := in.execStatement(body, env)
		if err != nil {
			if done, loopErr := routeLoopSignal(err, label); done {
				return loopErr
			}
		}
		if update != nil {
			if err := update(); err != nil {
				return err
			}
		}
		if bodyFirst {
			t, err := in.eval(test, env)
			if err != nil {
				return err
			}
			if !bytecode.IsTruthy(t) {
				return nil
			}
		}
	}
}

// routeLoopSignal decides how a loop responds to an error bubbling out of
// its body: consume matching break/continue, propagate anything else.
// done=true means the loop should return loopErr (possibly nil for break).
func routeLoopSignal(err error, label string) (done bool, loopErr error) {
	switch sig := err.(type) {
	case breakSignal:
		if sig.label == "" || sig.label == label {
			return true, nil
		}
		return true, err
	case continueSignal:
		if sig.label == "" || sig.label == label {
			return false, nil
		}
		return true, err
	default:
		return true, err
	}
}

func (in *Interpreter) execForStatement(label string, s *ast.ForStatement, env *environment) error {
	scope := newEnvironment(env)
	init := func() error {
		switch i := s.Init.(type) {
		case *ast.VarStatement:
			return in.execVarStatement(i, scope)
		case ast.Expression:
			if i != nil {
				_, err := in.eval(i, scope)
				return err
			}
		}
		return nil
	}
	update := func() error {
		if s.Update != nil {
			_, err := in.eval(s.Update, scope)
			return err
		}
		return nil
	}
	return in.execLoop(label, scope, init, s.Test, update, s.Body, false)
}

func (in *Interpreter) execForOf(label string, s *ast.ForOfStatement, env *environment) error {
	iterable, err := in.eval(s.Iterable, env)
	if err != nil {
		return err
	}
	next, err := in.vm.Iterator(iterable, s.IsAwait)
	if err != nil {
		return err
	}
	for {
		item, done, err := next()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if s.IsAwait {
			if item, err = in.vm.Await(item); err != nil {
				return err
			}
		}
		scope := newEnvironment(env)
		if s.Pattern != nil {
			if err := in.bindPattern(s.Pattern, item, scope, true); err != nil {
				return err
			}
		} else if s.Kind == "" {
			if !env.assign(s.Name, item) {
				env.declare(s.Name, item)
			}
		} else {
			scope.declare(s.Name, item)
		}
		if err := in.execStatement(s.Body, scope); err != nil {
			if done, loopErr := routeLoopSignal(err, label); done {
				return loopErr
			}
		}
	}
}

func (in *Interpreter) execForIn(label string, s *ast.ForInStatement, env *environment) error {
	obj, err := in.eval(s.Object, env)
	if err != nil {
		return err
	}
	for _, key := range bytecode.OwnKeys(obj) {
		scope := newEnvironment(env)
		kv := bytecode.StringValue(key)
		if s.Kind == "" {
			if !env.assign(s.Name, kv) {
				env.declare(s.Name, kv)
			}
		} else {
			scope.declare(s.Name, kv)
		}
		if err := in.execStatement(s.Body, scope); err != nil {
			if done, loopErr := routeLoopSignal(err, label); done {
				return loopErr
			}
		}
	}
	return nil
}

func (in *Interpreter) execTry(s *ast.TryStatement, env *environment) error {
	runFinally := func(prior error) error {
		if s.Finally == nil {
			return prior
		}
		if err := in.execStatement(s.Finally, env); err != nil {
			return err // finally's own completion replaces the prior one
		}
		return prior
	}

	err := in.execStatement(s.Block, env)
	if err != nil {
		if isControlSignal(err) {
			return runFinally(err)
		}
		if s.Catch != nil {
			catchEnv := newEnvironment(env)
			if s.Catch.Param != "" {
				catchEnv.declare(s.Catch.Param, bytecode.ThrownValue(err))
			}
			err = in.execBlock(s.Catch.Body.Statements, catchEnv)
		}
	}
	return runFinally(err)
}

func isControlSignal(err error) bool {
	switch err.(type) {
	case breakSignal, continueSignal, returnSignal:
		return true
	}
	return false
}

func (in *Interpreter) execSwitch(s *ast.SwitchStatement, env *environment) error {
	disc, err := in.eval(s.Discriminant, env)
	if err != nil {
		return err
	}
	matched := -1
	for i, c := range s.Cases {
		if c.Test == nil {
			continue
		}
		t, err := in.eval(c.Test, env)
		if err != nil {
			return err
		}
		if bytecode.StrictEquals(disc, t) {
			matched = i
			break
		}
	}
	if matched < 0 {
		for i, c := range s.Cases {
			if c.Test == nil {
				matched = i
				break
			}
		}
	}
	if matched < 0 {
		return nil
	}
	scope := newEnvironment(env)
	for _, c := range s.Cases[matched:] {
		for _, stmt := range c.Statements {
			if err := in.execStatement(stmt, scope); err != nil {
				if b, ok := err.(breakSignal); ok && b.label == "" {
					return nil
				}
				return err
			}
		}
	}
	return nil
}

func (in *Interpreter) execLabeled(s *ast.LabeledStatement, env *environment) error {
	switch body := s.Body.(type) {
	case *ast.WhileStatement:
		return in.execLoop(s.Label, env, nil, body.Test, nil, body.Body, false)
	case *ast.DoWhileStatement:
		return in.execLoop(s.Label, env, nil, body.Test, nil, body.Body, true)
	case *ast.ForStatement:
		return in.execForStatement(s.Label, body, env)
	case *ast.ForOfStatement:
		return in.execForOf(s.Label, body, env)
	case *ast.ForInStatement:
		return in.execForIn(s.Label, body, env)
	default:
		err := in.execStatement(s.Body, env)
		if b, ok := err.(breakSignal); ok && b.label == s.Label {
			return nil
		}
		return err
	}
}

func (in *Interpreter) execImport(s *ast.ImportStatement, env *environment) error {
	if in.vm.LoadModule == nil {
		return fmt.Errorf("cannot resolve module %q: no module loader installed", s.Source)
	}
	ns, err := in.vm.LoadModule(s.Source)
	if err != nil {
		return err
	}
	if s.NamespaceAs != "" {
		env.declare(s.NamespaceAs, ns)
	}
	for _, spec := range s.Specifiers {
		key := spec.Imported
		if key == "default" {
			key = "$default"
		}
		env.declare(spec.Local, in.vm.GetProperty(ns, key))
	}
	return nil
}

func (in *Interpreter) execExport(s *ast.ExportStatement, env *environment) error {
	record := func(name string, v Value) {
		if _, seen := in.Exports[name]; !seen {
			in.exportsOrder = append(in.exportsOrder, name)
		}
		in.Exports[name] = v
	}
	if s.Decl != nil {
		if err := in.execStatement(s.Decl, env); err != nil {
			return err
		}
		switch d := s.Decl.(type) {
		case *ast.VarStatement:
			for _, decl := range d.Declarations {
				if v, ok := env.lookup(decl.Name); ok {
					record(decl.Name, v)
				}
			}
		case *ast.FunctionDeclaration:
			if v, ok := env.lookup(d.Function.Name); ok {
				record(d.Function.Name, v)
			}
		case *ast.ClassDeclaration:
			record(d.Body.Name, bytecode.StringValue(d.Body.Name))
		}
		return nil
	}
	if s.IsDefault {
		v, err := in.eval(s.DefaultExpr, env)
		if err != nil {
			return err
		}
		record("$default", v)
		return nil
	}
	for _, spec := range s.Specifiers {
		if v, ok := env.lookup(spec.Local); ok {
			record(spec.Exported, v)
		}
	}
	return nil
}

// ExportsOrder returns exported names in declaration order.
func (in *Interpreter) ExportsOrder() []string { return in.exportsOrder }
