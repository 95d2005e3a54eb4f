package llvmgen

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/morning-lang/morningllvm/pkg/env"
	"github.com/morning-lang/morningllvm/pkg/logger"
	"github.com/morning-lang/morningllvm/pkg/sexp"
)

func pushTraceback(exp sexp.Exp) {
	context := exp.Kind.String()
	if exp.Kind == sexp.List {
		if head := exp.HeadSymbol(); head != "" {
			context = head
		}
	}
	logger.PushExpression(context, exp.String())
}

func zero64() *constant.Int {
	return constant.NewInt(types.I64, 0)
}

// genExpression is the central dispatcher of the lowering engine.
func (g *Generator) genExpression(exp sexp.Exp, scope *env.Environment) value.Value {
	pushTraceback(exp)

	switch exp.Kind {
	case sexp.Number:
		return minimalIntConst(exp.Number)
	case sexp.Fractional:
		return constant.NewFloat(types.Double, exp.Fractional)
	case sexp.String:
		return g.stringPtr(interpretEscapes(exp.Text))
	case sexp.Symbol:
		return g.genSymbol(exp, scope)
	case sexp.List:
		return g.genList(exp, scope)
	}

	return zero64()
}

func (g *Generator) genSymbol(exp sexp.Exp, scope *env.Environment) value.Value {
	if exp.Text == "true" || exp.Text == "false" {
		n := int64(0)
		if exp.Text == "true" {
			n = 1
		}
		return constant.NewInt(types.I8, n)
	}

	v, err := scope.Lookup(exp.Text)
	if err != nil {
		logger.Criticalf("Unbound name: %s", err)
	}

	switch binding := v.(type) {
	case *ir.InstAlloca:
		return g.block.NewLoad(binding.ElemType, binding)
	case *ir.Global:
		return g.block.NewLoad(binding.ContentType, binding)
	}

	return v
}

func (g *Generator) genList(exp sexp.Exp, scope *env.Environment) value.Value {
	if len(exp.List) == 0 {
		logger.Criticalf("Empty list expression")
	}

	head := exp.List[0]
	if head.Kind != sexp.Symbol {
		logger.Criticalf("List head must name a form or a function: %s", exp)
	}
	oper := head.Text

	if op, ok := binaryOperator(oper); ok {
		if len(exp.List) != 3 {
			logger.Criticalf("Operator %q requires two operands: %s", oper, exp)
		}
		left := g.genExpression(exp.List[1], scope)
		right := g.genExpression(exp.List[2], scope)
		return g.genBinaryOp(op, left, right)
	}

	switch oper {
	case "bit-and", "bit-or", "bit-xor", "bit-shl", "bit-shr", "bit-not":
		return g.genBitwise(oper, exp, scope)
	case "scope":
		return g.genScope(exp, scope)
	case "var":
		return g.genDeclaration(exp, scope, false)
	case "const":
		return g.genDeclaration(exp, scope, true)
	case "set":
		return g.genSet(exp, scope)
	case "check":
		return g.genCheck(exp, scope)
	case "if":
		return g.genIf(exp, scope)
	case "while":
		return g.genWhile(exp, scope)
	case "loop":
		return g.genLoop(exp, scope)
	case "for":
		return g.genFor(exp, scope)
	case "break":
		return g.genLoopJump("break", g.currentLoop("break").breakTarget)
	case "continue":
		return g.genLoopJump("continue", g.currentLoop("continue").continueTarget)
	case "func":
		if len(exp.List) < 2 || exp.List[1].Kind != sexp.Symbol {
			logger.Criticalf("func requires a name: %s", exp)
		}
		return g.compileFunction(exp, exp.List[1].Text, scope)
	case "fprint":
		return g.genFprint(exp, scope)
	case "finput":
		return g.genFinput(exp, scope)
	case "array":
		return g.genArrayLiteral(exp, scope)
	case "index":
		gep, elemType := g.genIndexAddr(exp, scope)
		return g.block.NewLoad(elemType, gep)
	case "sizeof":
		return g.genSizeof(exp)
	case "mem-alloc":
		return g.genMemAlloc(exp, scope)
	case "mem-free":
		return g.genMemFree(exp, scope)
	case "mem-write":
		return g.genMemWrite(exp, scope)
	case "mem-read", "mem-deref":
		return g.genMemRead(exp, scope)
	case "mem-ptr":
		return g.genMemPtr(exp, scope)
	case "byte-read":
		return g.genByteRead(exp, scope)
	case "byte-write":
		return g.genByteWrite(exp, scope)
	}

	return g.genCall(exp, scope)
}

func (g *Generator) genScope(exp sexp.Exp, scope *env.Environment) value.Value {
	blockEnv := scope.Child()

	var result value.Value = zero64()
	for _, sub := range exp.List[1:] {
		result = g.genExpression(sub, blockEnv)
	}
	return result
}

func (g *Generator) genDeclaration(exp sexp.Exp, scope *env.Environment, isConst bool) value.Value {
	oper := exp.List[0].Text
	if len(exp.List) != 3 {
		logger.Criticalf("%s requires a name and an initializer: %s", oper, exp)
	}

	nameDecl := exp.List[1]
	name := extractVarName(nameDecl)

	if scope.HasLocal(name) {
		logger.Criticalf("Duplicate declaration of %q in the same scope", name)
	}

	init := g.genExpression(exp.List[2], scope)
	varType := g.extractVarType(nameDecl)
	casted := g.initCast(init, varType, "initializer of "+name)

	slot := g.allocVar(name, varType, scope)
	if arrType, ok := varType.(*types.ArrayType); ok {
		g.arrayTypes[name] = arrType
	}
	if isConst {
		g.constants[name] = true
	}

	g.block.NewStore(casted, slot)
	return casted
}

func (g *Generator) genSet(exp sexp.Exp, scope *env.Environment) value.Value {
	if len(exp.List) != 3 {
		logger.Criticalf("set requires a target and a value: %s", exp)
	}

	target := exp.List[1]
	if target.Kind == sexp.List && target.HeadSymbol() == "index" {
		gep, elemType := g.genIndexAddr(target, scope)
		v := g.genExpression(exp.List[2], scope)
		casted := g.initCast(v, elemType, "array element assignment")
		g.block.NewStore(casted, gep)
		return casted
	}

	if target.Kind != sexp.Symbol {
		logger.Criticalf("set target must be a name or an index form: %s", exp)
	}
	name := target.Text

	if g.constants[name] {
		logger.Criticalf("Cannot write to constant %q", name)
	}

	v := g.genExpression(exp.List[2], scope)

	binding, err := scope.Lookup(name)
	if err != nil {
		logger.Criticalf("Unbound name: %s", err)
	}

	var pointee types.Type
	switch b := binding.(type) {
	case *ir.InstAlloca:
		pointee = b.ElemType
	case *ir.Global:
		pointee = b.ContentType
	default:
		logger.Criticalf("Cannot assign to %q, it is not a variable", name)
	}

	casted := g.initCast(v, pointee, "assignment to "+name)
	g.block.NewStore(casted, binding)
	return casted
}

// genCheck lowers [check COND THEN] / [check COND THEN ELSE]: a
// two-way conditional joined by a phi when both branches fall through
// with a value.
func (g *Generator) genCheck(exp sexp.Exp, scope *env.Environment) value.Value {
	if len(exp.List) < 3 || len(exp.List) > 4 {
		logger.Criticalf("check requires a condition, a branch and an optional else branch: %s", exp)
	}
	hasElse := len(exp.List) == 4

	cond := g.toCondition(g.genExpression(exp.List[1], scope))

	thenBlock := g.attachedBlock("then")
	elseBlock := g.newBlock("else")
	endBlock := g.newBlock("ifend")

	if hasElse {
		g.block.NewCondBr(cond, thenBlock, elseBlock)
	} else {
		g.block.NewCondBr(cond, thenBlock, endBlock)
	}

	g.setInsert(thenBlock)
	thenValue := g.genExpression(exp.List[2], scope)
	thenExit := g.block
	thenFalls := thenExit.Term == nil
	if thenFalls {
		thenExit.NewBr(endBlock)
	}

	var elseValue value.Value
	var elseExit *ir.Block
	elseFalls := false
	if hasElse {
		g.attach(elseBlock)
		g.setInsert(elseBlock)
		elseValue = g.genExpression(exp.List[3], scope)
		elseExit = g.block
		elseFalls = elseExit.Term == nil
		if elseFalls {
			elseExit.NewBr(endBlock)
		}
	}

	g.attach(endBlock)
	g.setInsert(endBlock)

	if hasElse && thenFalls && elseFalls {
		vals := []value.Value{thenValue, elseValue}
		blocks := []*ir.Block{thenExit, elseExit}
		g.unifyBranchValues(vals, blocks, "check")
		return g.block.NewPhi(ir.NewIncoming(vals[0], blocks[0]), ir.NewIncoming(vals[1], blocks[1]))
	}

	return zero64()
}

// genIf lowers the n-way [if C1 B1 elif C2 B2 ... else BN] chain into
// conditional branches feeding one merge block.
func (g *Generator) genIf(exp sexp.Exp, scope *env.Environment) value.Value {
	if len(exp.List) < 4 {
		logger.Criticalf("if requires at least a condition, a block and an else block: %s", exp)
	}

	mergeBlock := g.newBlock("if.end")
	var branchValues []value.Value
	var branchBlocks []*ir.Block

	lowerBranch := func(body sexp.Exp) {
		v := g.genExpression(body, scope)
		if g.block.Term == nil {
			branchValues = append(branchValues, v)
			branchBlocks = append(branchBlocks, g.block)
			g.block.NewBr(mergeBlock)
		}
	}

	i := 1
	for i < len(exp.List) {
		if exp.List[i].IsSymbol("elif") || exp.List[i].IsSymbol("else") {
			break
		}
		if i+1 >= len(exp.List) {
			logger.Criticalf("if: missing block for condition: %s", exp)
		}

		cond := g.toCondition(g.genExpression(exp.List[i], scope))
		thenBlock := g.attachedBlock("if.then")
		nextBlock := g.attachedBlock("if.next")
		g.block.NewCondBr(cond, thenBlock, nextBlock)

		g.setInsert(thenBlock)
		lowerBranch(exp.List[i+1])

		g.setInsert(nextBlock)
		i += 2
	}

	sawElse := false
	for i < len(exp.List) {
		switch {
		case exp.List[i].IsSymbol("elif"):
			if i+2 >= len(exp.List) {
				logger.Criticalf("elif requires a condition and a block: %s", exp)
			}
			cond := g.toCondition(g.genExpression(exp.List[i+1], scope))
			elifBlock := g.attachedBlock("elif.then")
			nextBlock := g.attachedBlock("elif.next")
			g.block.NewCondBr(cond, elifBlock, nextBlock)

			g.setInsert(elifBlock)
			lowerBranch(exp.List[i+2])

			g.setInsert(nextBlock)
			i += 3
		case exp.List[i].IsSymbol("else"):
			if i+1 >= len(exp.List) {
				logger.Criticalf("else requires a block: %s", exp)
			}
			lowerBranch(exp.List[i+1])
			sawElse = true
			i = len(exp.List)
		default:
			logger.Criticalf("Expected elif or else after if conditions: %s", exp)
		}
	}

	// Without an else, the final fall-through block reaches the merge
	// carrying no value, so no phi can be formed.
	fallsThrough := !sawElse && g.block.Term == nil
	if fallsThrough {
		g.block.NewBr(mergeBlock)
	}

	g.attach(mergeBlock)
	g.setInsert(mergeBlock)

	if len(branchValues) == 0 || fallsThrough {
		return zero64()
	}

	g.unifyBranchValues(branchValues, branchBlocks, "if")
	incs := make([]*ir.Incoming, len(branchValues))
	for idx := range branchValues {
		incs[idx] = ir.NewIncoming(branchValues[idx], branchBlocks[idx])
	}
	return g.block.NewPhi(incs...)
}

// unifyBranchValues promotes integer branch results to the widest width
// in place, inserting casts into the contributing blocks. Mixed kinds
// are a type error.
func (g *Generator) unifyBranchValues(vals []value.Value, blocks []*ir.Block, form string) {
	widest := (*types.IntType)(nil)
	allInt := true
	for _, v := range vals {
		it, ok := v.Type().(*types.IntType)
		if !ok {
			allInt = false
			break
		}
		if widest == nil || it.BitSize > widest.BitSize {
			widest = it
		}
	}

	if allInt {
		for i := range vals {
			vals[i] = g.resizeInt(blocks[i], vals[i], widest)
		}
		return
	}

	first := vals[0].Type()
	for _, v := range vals[1:] {
		if !types.Equal(v.Type(), first) {
			logger.Criticalf("%s: all branches must return the same type, got %s and %s", form, first, v.Type())
		}
	}
}

func (g *Generator) genWhile(exp sexp.Exp, scope *env.Environment) value.Value {
	if len(exp.List) != 3 {
		logger.Criticalf("while requires a condition and a body: %s", exp)
	}

	breakBlock := g.newBlock("break")
	continueBlock := g.newBlock("continue")
	g.pushLoop(loopFrame{breakTarget: breakBlock, continueTarget: continueBlock})

	condBlock := g.attachedBlock("cond")
	g.block.NewBr(condBlock)

	bodyBlock := g.newBlock("body")

	g.setInsert(condBlock)
	cond := g.toCondition(g.genExpression(exp.List[1], scope))
	g.block.NewCondBr(cond, bodyBlock, breakBlock)

	g.attach(bodyBlock)
	g.setInsert(bodyBlock)
	g.genExpression(exp.List[2], scope)
	if g.block.Term == nil {
		g.block.NewBr(continueBlock)
	}

	g.attach(continueBlock)
	g.setInsert(continueBlock)
	g.block.NewBr(condBlock)

	g.attach(breakBlock)
	g.setInsert(breakBlock)
	g.popLoop()

	return zero64()
}

func (g *Generator) genLoop(exp sexp.Exp, scope *env.Environment) value.Value {
	bodyBlock := g.attachedBlock("loop.body")
	exitBlock := g.newBlock("loop.exit")

	g.block.NewBr(bodyBlock)
	g.setInsert(bodyBlock)

	g.pushLoop(loopFrame{breakTarget: exitBlock, continueTarget: bodyBlock})
	for _, sub := range exp.List[1:] {
		g.genExpression(sub, scope)
	}

	if g.block.Term == nil {
		g.block.NewBr(bodyBlock)
	}

	g.attach(exitBlock)
	g.setInsert(exitBlock)
	g.popLoop()

	return zero64()
}

func (g *Generator) genFor(exp sexp.Exp, scope *env.Environment) value.Value {
	if len(exp.List) != 5 {
		logger.Criticalf("for requires init, condition, step and body: %s", exp)
	}

	forEnv := scope.Child()
	g.genExpression(exp.List[1], forEnv)

	condBlock := g.attachedBlock("for.cond")
	bodyBlock := g.newBlock("for.body")
	stepBlock := g.newBlock("for.step")
	breakBlock := g.newBlock("for.break")

	g.block.NewBr(condBlock)

	g.setInsert(condBlock)
	cond := g.toCondition(g.genExpression(exp.List[2], forEnv))
	g.block.NewCondBr(cond, bodyBlock, breakBlock)

	g.attach(bodyBlock)
	g.setInsert(bodyBlock)
	g.pushLoop(loopFrame{breakTarget: breakBlock, continueTarget: stepBlock})
	g.genExpression(exp.List[4], forEnv)
	g.popLoop()

	if g.block.Term == nil {
		g.block.NewBr(stepBlock)
	}

	g.attach(stepBlock)
	g.setInsert(stepBlock)
	g.genExpression(exp.List[3], forEnv)
	g.block.NewBr(condBlock)

	g.attach(breakBlock)
	g.setInsert(breakBlock)

	return zero64()
}

// genLoopJump emits the branch for break/continue and opens a fresh
// block so any trailing expressions still have an insertion point.
func (g *Generator) genLoopJump(keyword string, target *ir.Block) value.Value {
	g.block.NewBr(target)

	after := g.attachedBlock("after_" + keyword)
	g.setInsert(after)

	return zero64()
}

func (g *Generator) genBitwise(oper string, exp sexp.Exp, scope *env.Environment) value.Value {
	if oper == "bit-not" {
		if len(exp.List) != 2 {
			logger.Criticalf("bit-not requires one operand: %s", exp)
		}
		v := g.genExpression(exp.List[1], scope)
		it, ok := v.Type().(*types.IntType)
		if !ok {
			logger.Criticalf("bit-not operand must be an integer, got %s", v.Type())
		}
		return g.block.NewXor(v, constant.NewInt(it, -1))
	}

	if len(exp.List) != 3 {
		logger.Criticalf("Operator %q requires two operands: %s", oper, exp)
	}

	left := g.genExpression(exp.List[1], scope)
	right := g.genExpression(exp.List[2], scope)

	leftType, leftOk := left.Type().(*types.IntType)
	rightType, rightOk := right.Type().(*types.IntType)
	if !leftOk || !rightOk {
		logger.Criticalf("%s operands must be integers, got %s and %s", oper, left.Type(), right.Type())
	}

	wide := leftType
	if rightType.BitSize > wide.BitSize {
		wide = rightType
	}
	left = g.resizeInt(g.block, left, wide)
	right = g.resizeInt(g.block, right, wide)

	switch oper {
	case "bit-and":
		return g.block.NewAnd(left, right)
	case "bit-or":
		return g.block.NewOr(left, right)
	case "bit-xor":
		return g.block.NewXor(left, right)
	case "bit-shl":
		return g.block.NewShl(left, right)
	}
	return g.block.NewLShr(left, right)
}

func (g *Generator) genCall(exp sexp.Exp, scope *env.Environment) value.Value {
	callee := g.genExpression(exp.List[0], scope)

	fn, ok := callee.(*ir.Func)
	if !ok {
		logger.Criticalf("Cannot call %s, it is not a function", exp.List[0])
	}

	args := make([]value.Value, 0, len(exp.List)-1)
	for _, operand := range exp.List[1:] {
		args = append(args, g.genExpression(operand, scope))
	}

	if len(args) < len(fn.Params) || (!fn.Sig.Variadic && len(args) != len(fn.Params)) {
		logger.Criticalf("Function %q expects %d arguments, got %d", fn.Name(), len(fn.Params), len(args))
	}

	return g.callFitted(fn, args)
}

// callFitted casts fixed arguments to their parameter types and applies
// the C default promotion to the variadic tail.
func (g *Generator) callFitted(fn *ir.Func, args []value.Value) value.Value {
	for i := range args {
		if i < len(fn.Params) {
			args[i] = g.initCast(args[i], fn.Params[i].Typ, "argument of "+fn.Name())
			continue
		}
		if it, ok := args[i].Type().(*types.IntType); ok && it.BitSize < 64 {
			args[i] = g.resizeInt(g.block, args[i], types.I64)
		}
	}
	return g.block.NewCall(fn, args...)
}

func (g *Generator) genFprint(exp sexp.Exp, scope *env.Environment) value.Value {
	if len(exp.List) < 2 {
		logger.Criticalf("fprint requires a format string: %s", exp)
	}

	args := make([]value.Value, 0, len(exp.List)-1)
	for _, operand := range exp.List[1:] {
		args = append(args, g.genExpression(operand, scope))
	}
	return g.callFitted(g.printfFn, args)
}

// genFinput lowers [finput FMT TARGETS...]. String conversions read a
// whole line: the %s specifier becomes %[^\n], the target reads into a
// 256-byte stack buffer, and leftover input is drained with getchar
// after the call.
func (g *Generator) genFinput(exp sexp.Exp, scope *env.Environment) value.Value {
	if len(exp.List) < 2 {
		logger.Criticalf("finput requires a format string: %s", exp)
	}
	if exp.List[1].Kind != sexp.String {
		logger.Criticalf("finput format must be a string literal: %s", exp)
	}

	format := interpretEscapes(exp.List[1].Text)
	specs := scanfConversions(format)
	targets := exp.List[2:]
	if len(specs) != len(targets) {
		logger.Criticalf("finput format has %d conversions but %d targets were given", len(specs), len(targets))
	}

	rewritten := replaceStringConversions(format)
	args := []value.Value{g.stringPtr(rewritten)}

	type bufferedTarget struct {
		binding value.Value
		pointer value.Value
	}
	var buffered []bufferedTarget
	hasString := false

	for i, target := range targets {
		if target.Kind != sexp.Symbol {
			logger.Criticalf("finput target must be a variable name: %s", target)
		}

		binding, err := scope.Lookup(target.Text)
		if err != nil {
			logger.Criticalf("Unbound name: %s", err)
		}

		if specs[i] == 's' {
			hasString = true
			buf := ir.NewAlloca(types.NewArray(finputBufferSize, types.I8))
			buf.SetName(g.uniqueLocal(target.Text + ".buf"))
			entry := g.activeFn.Blocks[0]
			entry.Insts = append(entry.Insts, buf)

			zero := zero64()
			ptr := g.block.NewGetElementPtr(buf.ElemType, buf, zero, zero)
			args = append(args, ptr)
			buffered = append(buffered, bufferedTarget{binding: binding, pointer: ptr})
			continue
		}

		args = append(args, binding)
	}

	call := g.callFitted(g.scanfFn, args)

	for _, b := range buffered {
		g.block.NewStore(b.pointer, b.binding)
	}

	if hasString {
		g.drainLine()
	}

	return call
}

const finputBufferSize = 256

// drainLine consumes the rest of the current input line so the next
// read starts clean: loop on getchar until newline or EOF.
func (g *Generator) drainLine() {
	drain := g.attachedBlock("drain")
	g.block.NewBr(drain)

	ch := drain.NewCall(g.getcharFn)
	isNewline := drain.NewICmp(enum.IPredEQ, ch, constant.NewInt(types.I64, '\n'))
	isEOF := drain.NewICmp(enum.IPredEQ, ch, constant.NewInt(types.I64, -1))
	done := drain.NewOr(isNewline, isEOF)

	end := g.attachedBlock("drain.end")
	drain.NewCondBr(done, end, drain)

	g.setInsert(end)
}

func (g *Generator) genArrayLiteral(exp sexp.Exp, scope *env.Environment) value.Value {
	if len(exp.List) < 2 {
		logger.Criticalf("array requires at least one element: %s", exp)
	}

	elems := make([]constant.Constant, 0, len(exp.List)-1)
	for _, operand := range exp.List[1:] {
		v := g.genExpression(operand, scope)
		c, ok := v.(constant.Constant)
		if !ok {
			logger.Criticalf("array elements must be constants: %s", operand)
		}
		elems = append(elems, c)
	}

	// Integer elements settle on the widest literal width; any other
	// mixture must already agree with the first element.
	widest := (*types.IntType)(nil)
	allInt := true
	for _, c := range elems {
		it, ok := c.Type().(*types.IntType)
		if !ok {
			allInt = false
			break
		}
		if widest == nil || it.BitSize > widest.BitSize {
			widest = it
		}
	}

	elemType := elems[0].Type()
	if allInt {
		elemType = widest
		for i := range elems {
			elems[i] = g.coerceConstant(elems[i], widest, "array literal")
		}
	} else {
		for _, c := range elems[1:] {
			if !types.Equal(c.Type(), elemType) {
				logger.Criticalf("array elements must share one type, got %s and %s", elemType, c.Type())
			}
		}
	}

	return constant.NewArray(types.NewArray(uint64(len(elems)), elemType), elems...)
}

// genIndexAddr resolves [index ARR IDX] to the address of the element.
func (g *Generator) genIndexAddr(exp sexp.Exp, scope *env.Environment) (value.Value, types.Type) {
	if len(exp.List) != 3 {
		logger.Criticalf("index requires an array and an index: %s", exp)
	}
	if exp.List[1].Kind != sexp.Symbol {
		logger.Criticalf("index target must be an array variable: %s", exp)
	}
	name := exp.List[1].Text

	arrType, ok := g.arrayTypes[name]
	if !ok {
		logger.Criticalf("Cannot index %q, it is not an array", name)
	}

	binding, err := scope.Lookup(name)
	if err != nil {
		logger.Criticalf("Unbound name: %s", err)
	}

	idx := g.genExpression(exp.List[2], scope)
	if !isInt(idx.Type()) {
		logger.Criticalf("Array index must be an integer, got %s", idx.Type())
	}
	idx = g.resizeInt(g.block, idx, types.I64)

	gep := g.block.NewGetElementPtr(arrType, binding, zero64(), idx)
	return gep, arrType.ElemType
}

func (g *Generator) genSizeof(exp sexp.Exp) value.Value {
	if len(exp.List) != 2 || exp.List[1].Kind != sexp.Symbol {
		logger.Criticalf("sizeof requires a type tag: %s", exp)
	}
	return constant.NewInt(types.I64, allocSize(g.getType(exp.List[1].Text)))
}

func (g *Generator) genMemAlloc(exp sexp.Exp, scope *env.Environment) value.Value {
	if len(exp.List) != 2 {
		logger.Criticalf("mem-alloc requires a size: %s", exp)
	}

	size := g.genExpression(exp.List[1], scope)
	if !isInt(size.Type()) {
		logger.Criticalf("mem-alloc size must be an integer, got %s", size.Type())
	}
	size = g.resizeInt(g.block, size, types.I64)

	return g.block.NewCall(g.malloc(), size)
}

func (g *Generator) genMemFree(exp sexp.Exp, scope *env.Environment) value.Value {
	if len(exp.List) != 2 {
		logger.Criticalf("mem-free requires a pointer: %s", exp)
	}

	ptr := g.genExpression(exp.List[1], scope)
	if !isPointer(ptr.Type()) {
		logger.Criticalf("mem-free expects a pointer, got %s", ptr.Type())
	}
	ptr = g.implicitCast(ptr, types.I8Ptr)

	g.block.NewCall(g.free(), ptr)
	return zero64()
}

func (g *Generator) genMemWrite(exp sexp.Exp, scope *env.Environment) value.Value {
	if len(exp.List) != 3 {
		logger.Criticalf("mem-write requires a pointer and a value: %s", exp)
	}

	ptr := g.genExpression(exp.List[1], scope)
	if !isPointer(ptr.Type()) {
		logger.Criticalf("mem-write expects a pointer, got %s", ptr.Type())
	}

	v := g.genExpression(exp.List[2], scope)
	typed := g.block.NewBitCast(ptr, types.NewPointer(v.Type()))
	g.block.NewStore(v, typed)
	return v
}

func (g *Generator) genMemRead(exp sexp.Exp, scope *env.Environment) value.Value {
	oper := exp.List[0].Text
	if len(exp.List) != 3 || exp.List[2].Kind != sexp.Symbol {
		logger.Criticalf("%s requires a pointer and a type tag: %s", oper, exp)
	}

	ptr := g.genExpression(exp.List[1], scope)
	if !isPointer(ptr.Type()) {
		logger.Criticalf("%s expects a pointer, got %s", oper, ptr.Type())
	}

	t := g.getType(exp.List[2].Text)
	if types.Equal(t, types.Void) {
		logger.Criticalf("%s cannot read !none", oper)
	}

	typed := g.block.NewBitCast(ptr, types.NewPointer(t))
	return g.block.NewLoad(t, typed)
}

func (g *Generator) genMemPtr(exp sexp.Exp, scope *env.Environment) value.Value {
	if len(exp.List) != 2 || exp.List[1].Kind != sexp.Symbol {
		logger.Criticalf("mem-ptr requires a variable name: %s", exp)
	}

	binding, err := scope.Lookup(exp.List[1].Text)
	if err != nil {
		logger.Criticalf("Unbound name: %s", err)
	}

	switch binding.(type) {
	case *ir.InstAlloca, *ir.Global:
		return g.block.NewBitCast(binding, types.I8Ptr)
	}

	logger.Criticalf("mem-ptr target %q is not a variable", exp.List[1].Text)
	return nil
}

func (g *Generator) genByteRead(exp sexp.Exp, scope *env.Environment) value.Value {
	if len(exp.List) != 2 {
		logger.Criticalf("byte-read requires a pointer: %s", exp)
	}

	ptr := g.genExpression(exp.List[1], scope)
	if !isPointer(ptr.Type()) {
		logger.Criticalf("byte-read expects a pointer, got %s", ptr.Type())
	}
	ptr = g.implicitCast(ptr, types.I8Ptr)

	return g.block.NewLoad(types.I8, ptr)
}

func (g *Generator) genByteWrite(exp sexp.Exp, scope *env.Environment) value.Value {
	if len(exp.List) != 3 {
		logger.Criticalf("byte-write requires a pointer and a value: %s", exp)
	}

	ptr := g.genExpression(exp.List[1], scope)
	if !isPointer(ptr.Type()) {
		logger.Criticalf("byte-write expects a pointer, got %s", ptr.Type())
	}
	ptr = g.implicitCast(ptr, types.I8Ptr)

	v := g.genExpression(exp.List[2], scope)
	if !isInt(v.Type()) {
		logger.Criticalf("byte-write value must be an integer, got %s", v.Type())
	}
	v = g.resizeInt(g.block, v, types.I8)

	g.block.NewStore(v, ptr)
	return v
}
