package llvmgen

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/morning-lang/morningllvm/pkg/logger"
)

// opAliases maps the mangled operator spellings used by generated code
// back to their glyphs.
var opAliases = map[string]string{
	"__PLUS_OPERAND__": "+",
	"__SUB_OPERAND__":  "-",
	"__MUL_OPERAND__":  "*",
	"__DIV_OPERAND__":  "/",
	"__CMPG__":         ">",
	"__CMPL__":         "<",
	"__CMPGE__":        ">=",
	"__CMPLE__":        "<=",
	"__CMPEQ__":        "==",
	"__CMPNE__":        "!=",
}

// Integer comparisons use unsigned predicates. That matches the
// original compiler bit-for-bit; see CHANGELOG.md.
var intPredicates = map[string]enum.IPred{
	">":  enum.IPredUGT,
	"<":  enum.IPredULT,
	">=": enum.IPredUGE,
	"<=": enum.IPredULE,
	"==": enum.IPredEQ,
	"!=": enum.IPredNE,
}

var floatPredicates = map[string]enum.FPred{
	">":  enum.FPredOGT,
	"<":  enum.FPredOLT,
	">=": enum.FPredOGE,
	"<=": enum.FPredOLE,
	"==": enum.FPredOEQ,
	"!=": enum.FPredONE,
}

func binaryOperator(oper string) (string, bool) {
	if glyph, ok := opAliases[oper]; ok {
		oper = glyph
	}
	switch oper {
	case "+", "-", "*", "/", ">", "<", ">=", "<=", "==", "!=":
		return oper, true
	}
	return "", false
}

// commonType picks the promotion target for a binary operation: double
// wins over integers, otherwise the left operand's type.
func commonType(left, right value.Value) types.Type {
	if types.Equal(left.Type(), types.Double) || types.Equal(right.Type(), types.Double) {
		return types.Double
	}
	return left.Type()
}

func (g *Generator) genBinaryOp(op string, left, right value.Value) value.Value {
	common := commonType(left, right)
	left = g.implicitCast(left, common)
	right = g.implicitCast(right, common)

	if types.Equal(common, types.Double) {
		switch op {
		case "+":
			return g.block.NewFAdd(left, right)
		case "-":
			return g.block.NewFSub(left, right)
		case "*":
			return g.block.NewFMul(left, right)
		case "/":
			return g.block.NewFDiv(left, right)
		}
		return g.block.NewFCmp(floatPredicates[op], left, right)
	}

	switch op {
	case "+":
		return g.block.NewAdd(left, right)
	case "-":
		return g.block.NewSub(left, right)
	case "*":
		return g.block.NewMul(left, right)
	case "/":
		return g.block.NewSDiv(left, right)
	}
	return g.block.NewICmp(intPredicates[op], left, right)
}

// implicitCast adapts value to target where the language permits it:
// int to double, integer resize, pointer to pointer. Anything else is
// returned unchanged for the caller to reject.
func (g *Generator) implicitCast(v value.Value, target types.Type) value.Value {
	if types.Equal(v.Type(), target) {
		return v
	}

	if isInt(v.Type()) && types.Equal(target, types.Double) {
		if c, ok := v.(*constant.Int); ok {
			return constant.NewFloat(types.Double, float64(c.X.Int64()))
		}
		return g.block.NewSIToFP(v, target)
	}

	if isPointer(v.Type()) && isPointer(target) {
		return g.block.NewBitCast(v, target)
	}

	if isInt(v.Type()) && isInt(target) {
		return g.resizeInt(g.block, v, target.(*types.IntType))
	}

	return v
}

// initCast is the strict variant used for initializers, assignments,
// call arguments and returns: a coercion the language does not permit
// is fatal.
func (g *Generator) initCast(v value.Value, target types.Type, context string) value.Value {
	if types.Equal(v.Type(), target) {
		return v
	}

	if arr, ok := target.(*types.ArrayType); ok {
		if c, ok := v.(*constant.Array); ok {
			return g.coerceConstArray(c, arr, context)
		}
	}

	if isInt(v.Type()) && types.Equal(target, types.Double) {
		if c, ok := v.(*constant.Int); ok {
			return constant.NewFloat(types.Double, float64(c.X.Int64()))
		}
		return g.block.NewSIToFP(v, target)
	}

	if isInt(v.Type()) && isInt(target) {
		return g.resizeInt(g.block, v, target.(*types.IntType))
	}

	if isPointer(v.Type()) && isPointer(target) {
		return g.block.NewBitCast(v, target)
	}

	logger.Criticalf("Type mismatch in %s: cannot convert %s to %s", context, v.Type(), target)
	return nil
}

// coerceConstArray rebuilds a constant array literal at the declared
// element type, so minimally-widthed element literals fit wider slots.
func (g *Generator) coerceConstArray(c *constant.Array, target *types.ArrayType, context string) constant.Constant {
	if uint64(len(c.Elems)) != target.Len {
		logger.Criticalf("Type mismatch in %s: array of %d elements does not fit %s", context, len(c.Elems), target)
	}

	elems := make([]constant.Constant, len(c.Elems))
	for i, elem := range c.Elems {
		elems[i] = g.coerceConstant(elem, target.ElemType, context)
	}
	return constant.NewArray(target, elems...)
}

func (g *Generator) coerceConstant(c constant.Constant, target types.Type, context string) constant.Constant {
	if types.Equal(c.Type(), target) {
		return c
	}

	switch c := c.(type) {
	case *constant.Int:
		if it, ok := target.(*types.IntType); ok {
			return constant.NewInt(it, c.X.Int64())
		}
		if types.Equal(target, types.Double) {
			return constant.NewFloat(types.Double, float64(c.X.Int64()))
		}
	case *constant.Array:
		if at, ok := target.(*types.ArrayType); ok {
			return g.coerceConstArray(c, at, context)
		}
	}

	logger.Criticalf("Type mismatch in %s: cannot convert %s to %s", context, c.Type(), target)
	return nil
}

// resizeInt widens or truncates an integer, emitting into block when a
// real instruction is needed. Integer constants are rebuilt instead.
func (g *Generator) resizeInt(block *ir.Block, v value.Value, target *types.IntType) value.Value {
	from := v.Type().(*types.IntType)
	if from.BitSize == target.BitSize {
		return v
	}

	if c, ok := v.(*constant.Int); ok {
		return constant.NewInt(target, c.X.Int64())
	}

	var inst ir.Instruction
	var result value.Value
	if from.BitSize < target.BitSize {
		zext := ir.NewZExt(v, target)
		inst, result = zext, zext
	} else {
		trunc := ir.NewTrunc(v, target)
		inst, result = trunc, trunc
	}
	block.Insts = append(block.Insts, inst)
	return result
}

// toCondition adapts a lowered value for a conditional branch. Wide
// integers are compared against zero so the emitted module verifies.
func (g *Generator) toCondition(v value.Value) value.Value {
	it, ok := v.Type().(*types.IntType)
	if !ok {
		logger.Criticalf("Condition must be an integer, got %s", v.Type())
	}
	if it.BitSize == 1 {
		return v
	}
	return g.block.NewICmp(enum.IPredNE, v, constant.NewInt(it, 0))
}

func isInt(t types.Type) bool {
	_, ok := t.(*types.IntType)
	return ok
}

func isPointer(t types.Type) bool {
	_, ok := t.(*types.PointerType)
	return ok
}

// minimalIntConst emits an integer literal at the narrowest width that
// holds it; context widens later as needed.
func minimalIntConst(n int64) *constant.Int {
	switch {
	case n >= -128 && n <= 127:
		return constant.NewInt(types.I8, n)
	case n >= -32768 && n <= 32767:
		return constant.NewInt(types.I16, n)
	case n >= -2147483648 && n <= 2147483647:
		return constant.NewInt(types.I32, n)
	}
	return constant.NewInt(types.I64, n)
}
