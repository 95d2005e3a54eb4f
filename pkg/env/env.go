// Package env implements the lexically-nested name environment threaded
// through the lowering recursion. Children hold only the names they
// declare; unresolved lookups walk the parent chain.
package env

import (
	"fmt"

	"github.com/llir/llvm/ir/value"
)

// Environment maps names to IR value handles. The zero value is not
// usable; construct with New or Child.
type Environment struct {
	record map[string]value.Value
	parent *Environment
}

// New builds an environment seeded with record. A nil record is allowed.
func New(record map[string]value.Value, parent *Environment) *Environment {
	if record == nil {
		record = make(map[string]value.Value)
	}
	return &Environment{record: record, parent: parent}
}

// Child produces a fresh environment whose lookups fall back to e.
func (e *Environment) Child() *Environment {
	return New(nil, e)
}

// Define adds or overwrites a binding in the current frame, shadowing
// any parent binding of the same name.
func (e *Environment) Define(name string, v value.Value) value.Value {
	e.record[name] = v
	return v
}

// HasLocal reports whether name is bound in this frame, ignoring the
// parent chain. Used for duplicate-declaration checks.
func (e *Environment) HasLocal(name string) bool {
	_, ok := e.record[name]
	return ok
}

// Lookup resolves name through the parent chain.
func (e *Environment) Lookup(name string) (value.Value, error) {
	for scope := e; scope != nil; scope = scope.parent {
		if v, ok := scope.record[name]; ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("variable %q is not defined", name)
}
