package llvmgen

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
)

// VerifyModule runs structural checks over an emitted module and
// returns human-readable problems. It covers the invariants this
// engine is responsible for; full semantic verification is left to the
// downstream optimizer.
func VerifyModule(m *ir.Module) []string {
	var problems []string

	for _, fn := range m.Funcs {
		if len(fn.Blocks) == 0 {
			// Extern declaration.
			continue
		}

		for _, block := range fn.Blocks {
			if block.Term == nil {
				problems = append(problems,
					fmt.Sprintf("function %q: block %q has no terminator", fn.Name(), block.Name()))
				continue
			}

			if ret, ok := block.Term.(*ir.TermRet); ok {
				if ret.X == nil {
					if !types.Equal(fn.Sig.RetType, types.Void) {
						problems = append(problems,
							fmt.Sprintf("function %q: empty return from non-void function", fn.Name()))
					}
				} else if !types.Equal(ret.X.Type(), fn.Sig.RetType) {
					problems = append(problems,
						fmt.Sprintf("function %q: returns %s, declared %s",
							fn.Name(), ret.X.Type(), fn.Sig.RetType))
				}
			}
		}
	}

	return problems
}
