// Package llvmgen is the lowering engine: it walks the expression tree
// produced by the reader and emits a complete LLVM module with a main
// function, user functions, globals and the libc extern declarations.
package llvmgen

import (
	"fmt"
	"os"
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/morning-lang/morningllvm/pkg/env"
	"github.com/morning-lang/morningllvm/pkg/logger"
	"github.com/morning-lang/morningllvm/pkg/sexp"
)

const (
	moduleName    = "MorningLangCompilationUnit"
	defaultTriple = "x86_64-unknown-linux-gnu"
)

// Generator owns one compilation: the module under construction, the
// insertion state of the two builders (main and entry-allocation), the
// loop stack and the symbol tables.
type Generator struct {
	module    *ir.Module
	block     *ir.Block
	activeFn  *ir.Func
	globalEnv *env.Environment

	printfFn  *ir.Func
	scanfFn   *ir.Func
	getcharFn *ir.Func
	mallocFn  *ir.Func
	freeFn    *ir.Func

	constants  map[string]bool
	arrayTypes map[string]*types.ArrayType

	loopStack  []loopFrame
	blockCount int
	localNames map[string]int
}

// New bootstraps a generator: module, target triple, externs, seeded
// globals and the main shell with its entry block.
func New() *Generator {
	g := &Generator{
		constants:  make(map[string]bool),
		arrayTypes: make(map[string]*types.ArrayType),
		localNames: make(map[string]int),
	}

	g.initializeModule()
	g.setupExternFunctions()
	g.setupGlobalEnvironment()
	g.setupMain()

	return g
}

func (g *Generator) initializeModule() {
	g.module = ir.NewModule()
	g.module.SourceFilename = moduleName
	g.module.TargetTriple = defaultTriple
}

func (g *Generator) setupExternFunctions() {
	// i64 printf(i8*, ...)
	g.printfFn = g.module.NewFunc("printf", types.I64, ir.NewParam("format", types.I8Ptr))
	g.printfFn.Sig.Variadic = true

	// i64 scanf(i8*, ...)
	g.scanfFn = g.module.NewFunc("scanf", types.I64, ir.NewParam("format", types.I8Ptr))
	g.scanfFn.Sig.Variadic = true

	// i64 getchar()
	g.getcharFn = g.module.NewFunc("getchar", types.I64)
}

// malloc and free are declared lazily, on the first mem form.

func (g *Generator) malloc() *ir.Func {
	if g.mallocFn == nil {
		g.mallocFn = g.module.NewFunc("malloc", types.I8Ptr, ir.NewParam("size", types.I64))
	}
	return g.mallocFn
}

func (g *Generator) free() *ir.Func {
	if g.freeFn == nil {
		g.freeFn = g.module.NewFunc("free", types.Void, ir.NewParam("ptr", types.I8Ptr))
	}
	return g.freeFn
}

func (g *Generator) setupGlobalEnvironment() {
	seed := map[string]constant.Constant{
		"_VERSION": constant.NewInt(types.I64, 300),
	}

	record := make(map[string]value.Value)
	for name, init := range seed {
		record[name] = g.createGlobalVariable(name, init, false)
	}

	g.globalEnv = env.New(record, nil)
}

func (g *Generator) createGlobalVariable(name string, init constant.Constant, mutable bool) *ir.Global {
	global := g.module.NewGlobalDef(name, init)
	global.Align = ir.Align(4)
	global.Immutable = !mutable
	return global
}

func (g *Generator) setupMain() {
	main := g.module.NewFunc("main", types.I64)
	g.globalEnv.Define("main", main)

	g.activeFn = main
	g.setInsert(main.NewBlock("entry"))
}

// Execute compiles program and writes the textual IR to
// outputBase + ".ll". Verification problems are reported to stderr but
// do not abort; the downstream optimizer rejects invalid modules.
func (g *Generator) Execute(program, outputBase string) error {
	out := g.EmitProgram(program)

	filename := outputBase + ".ll"
	if err := os.WriteFile(filename, []byte(out), 0o644); err != nil {
		return fmt.Errorf("cannot write IR file %s: %w", filename, err)
	}
	return nil
}

// EmitProgram lowers the program, wrapped in a top-level scope, and
// returns the serialized module.
func (g *Generator) EmitProgram(program string) string {
	logger.ResetTraceback()

	ast, err := sexp.Parse("[scope " + program + "]")
	if err != nil {
		logger.Criticalf("Syntax error: %s", err)
	}

	g.genExpression(ast, g.globalEnv)

	if g.block.Term == nil {
		g.block.NewRet(constant.NewInt(types.I64, 0))
	}

	for _, problem := range VerifyModule(g.module) {
		logger.Errorf("Module verification: %s", problem)
	}

	return g.module.String()
}

// Module exposes the module under construction; tests inspect it.
func (g *Generator) Module() *ir.Module {
	return g.module
}

// allocVar places an allocation in the entry block of the active
// function, regardless of the current insertion point, and binds it.
func (g *Generator) allocVar(name string, varType types.Type, scope *env.Environment) *ir.InstAlloca {
	alloca := ir.NewAlloca(varType)
	alloca.SetName(g.uniqueLocal(name))

	entry := g.activeFn.Blocks[0]
	entry.Insts = append(entry.Insts, alloca)

	scope.Define(name, alloca)
	return alloca
}

// uniqueLocal keeps textual value names collision-free when the same
// source name is shadowed within one function.
func (g *Generator) uniqueLocal(name string) string {
	g.localNames[name]++
	if n := g.localNames[name]; n > 1 {
		return fmt.Sprintf("%s%d", name, n-1)
	}
	return name
}

// stringPtr emits a C string literal: a private null-terminated
// global plus a pointer to its first byte. Each call creates a new
// global; identical literals are not shared.
func (g *Generator) stringPtr(text string) constant.Constant {
	def := g.module.NewGlobalDef("", constant.NewCharArrayFromString(text+"\x00"))
	def.Linkage = enum.LinkagePrivate
	def.Immutable = true

	zero := constant.NewInt(types.I64, 0)
	return constant.NewGetElementPtr(def.ContentType, def, zero, zero)
}

// interpretEscapes resolves the textual \n and \t sequences the reader
// deliberately left in string literals.
func interpretEscapes(s string) string {
	s = strings.ReplaceAll(s, "\\n", "\n")
	return strings.ReplaceAll(s, "\\t", "\t")
}
