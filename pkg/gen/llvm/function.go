package llvmgen

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"

	"github.com/morning-lang/morningllvm/pkg/env"
	"github.com/morning-lang/morningllvm/pkg/logger"
	"github.com/morning-lang/morningllvm/pkg/sexp"
)

// A function form is [func NAME (PARAMS) BODY] or
// [func NAME (PARAMS) -> RETTAG BODY]. Parameters are bare symbols
// (inferred !int) or (NAME TYPETAG) pairs.

func hasReturnType(fnExp sexp.Exp) bool {
	return len(fnExp.List) > 5 && fnExp.List[3].IsSymbol("->")
}

func extractVarName(exp sexp.Exp) string {
	if exp.Kind == sexp.List {
		if len(exp.List) == 0 || exp.List[0].Kind != sexp.Symbol {
			logger.Criticalf("Malformed declaration name in %s", exp)
		}
		return exp.List[0].Text
	}
	if exp.Kind != sexp.Symbol {
		logger.Criticalf("Declaration name must be a symbol, got %s", exp)
	}
	return exp.Text
}

func (g *Generator) extractVarType(exp sexp.Exp) types.Type {
	if exp.Kind == sexp.List {
		if len(exp.List) != 2 || exp.List[1].Kind != sexp.Symbol {
			logger.Criticalf("Malformed type annotation in %s", exp)
		}
		return g.getType(exp.List[1].Text)
	}

	logger.Warnf("Missing type annotation for %q, inferring !int", exp.Text)
	return types.I64
}

func (g *Generator) extractFunctionType(fnExp sexp.Exp) (types.Type, []*ir.Param) {
	params := fnExp.List[2]
	if params.Kind != sexp.List {
		logger.Criticalf("Function parameter list expected, got %s", params)
	}

	retType := types.Type(types.I64)
	if hasReturnType(fnExp) {
		if fnExp.List[4].Kind != sexp.Symbol {
			logger.Criticalf("Return type tag expected after -> in %s", fnExp)
		}
		retType = g.getType(fnExp.List[4].Text)
	}

	irParams := make([]*ir.Param, 0, len(params.List))
	for _, param := range params.List {
		irParams = append(irParams, ir.NewParam(extractVarName(param), g.extractVarType(param)))
	}

	return retType, irParams
}

func (g *Generator) getFunction(name string) *ir.Func {
	for _, fn := range g.module.Funcs {
		if fn.Name() == name {
			return fn
		}
	}
	return nil
}

// compileFunction builds the prototype, binds parameters to entry-block
// slots, lowers the body, emits the return and restores the builder
// state of the enclosing function.
func (g *Generator) compileFunction(fnExp sexp.Exp, name string, outer *env.Environment) *ir.Func {
	if len(fnExp.List) < 4 {
		logger.Criticalf("func requires a name, a parameter list and a body: %s", fnExp)
	}

	params := fnExp.List[2]
	body := fnExp.List[3]
	if hasReturnType(fnExp) {
		body = fnExp.List[5]
	}

	fn := g.getFunction(name)
	if fn == nil {
		retType, irParams := g.extractFunctionType(fnExp)
		fn = g.module.NewFunc(name, retType, irParams...)
	}
	outer.Define(name, fn)

	prevFn := g.activeFn
	prevBlock := g.block
	prevLocals := g.localNames

	g.activeFn = fn
	g.localNames = make(map[string]int)
	g.setInsert(fn.NewBlock("entry"))

	fnEnv := outer.Child()
	for i, arg := range fn.Params {
		paramName := extractVarName(params.List[i])
		slot := g.allocVar(paramName, arg.Typ, fnEnv)
		g.block.NewStore(arg, slot)
	}

	result := g.genExpression(body, fnEnv)

	if g.block.Term == nil {
		if types.Equal(fn.Sig.RetType, types.Void) {
			g.block.NewRet(nil)
		} else {
			g.block.NewRet(g.initCast(result, fn.Sig.RetType, "return of "+name))
		}
	}

	g.localNames = prevLocals
	g.activeFn = prevFn
	g.setInsert(prevBlock)

	return fn
}
