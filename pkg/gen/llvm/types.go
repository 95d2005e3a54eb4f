package llvmgen

import (
	"strconv"
	"strings"

	"github.com/llir/llvm/ir/types"

	"github.com/morning-lang/morningllvm/pkg/logger"
)

// getType maps a source type tag to the concrete IR type. Unknown tags
// resolve to !int after a warning.
func (g *Generator) getType(tag string) types.Type {
	switch tag {
	case "!int", "!int64":
		return types.I64
	case "!int32":
		return types.I32
	case "!int16":
		return types.I16
	case "!int8":
		return types.I8
	case "!bool":
		return types.I8
	case "!frac":
		return types.Double
	case "!str", "!ptr":
		return types.I8Ptr
	case "!none":
		return types.Void
	}

	if strings.HasPrefix(tag, "!ptr<") {
		return g.pointerType(tag)
	}
	if strings.HasPrefix(tag, "!array<") {
		return g.arrayType(tag)
	}
	if strings.HasPrefix(tag, "!size:") {
		return g.sizedType(tag)
	}

	logger.Warnf("Unknown type tag %q, falling back to !int", tag)
	return types.I64
}

// pointerType handles !ptr<T>. The element type is parsed so malformed
// tags are caught, but pointers stay opaque byte pointers.
func (g *Generator) pointerType(tag string) types.Type {
	inner, ok := stripAngle(tag, "!ptr<")
	if !ok {
		logger.Criticalf("Malformed pointer type tag %q", tag)
	}
	g.getType(inner)
	return types.I8Ptr
}

// arrayType handles !array<T,N>, where T may itself be an array tag.
// The element/length split respects angle-bracket nesting.
func (g *Generator) arrayType(tag string) types.Type {
	inner, ok := stripAngle(tag, "!array<")
	if !ok {
		logger.Criticalf("Malformed array type tag %q", tag)
	}

	depth := 0
	split := -1
	for i := 0; i < len(inner); i++ {
		switch inner[i] {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				split = i
			}
		}
	}
	if split < 0 {
		logger.Criticalf("Array type tag %q needs an element type and a length", tag)
	}

	elemTag := strings.TrimSpace(inner[:split])
	lenText := strings.TrimSpace(inner[split+1:])

	length, err := strconv.ParseInt(lenText, 10, 64)
	if err != nil || length <= 0 {
		logger.Criticalf("Array length %q in %q must be a positive integer", lenText, tag)
	}

	return types.NewArray(uint64(length), g.getType(elemTag))
}

// sizedType handles !size:N!T, a size-asserted alias for T.
func (g *Generator) sizedType(tag string) types.Type {
	rest := strings.TrimPrefix(tag, "!size:")
	bang := strings.IndexByte(rest, '!')
	if bang <= 0 {
		logger.Criticalf("Malformed size type tag %q", tag)
	}

	want, err := strconv.ParseInt(rest[:bang], 10, 64)
	if err != nil || want <= 0 {
		logger.Criticalf("Size constraint %q in %q must be a positive integer", rest[:bang], tag)
	}

	inner := rest[bang:]
	t := g.getType(inner)
	if got := allocSize(t); got != want {
		logger.Criticalf("Size mismatch: %s expects %d bytes, %s occupies %d", tag, want, inner, got)
	}
	return t
}

func stripAngle(tag, prefix string) (string, bool) {
	if !strings.HasPrefix(tag, prefix) || !strings.HasSuffix(tag, ">") {
		return "", false
	}
	return tag[len(prefix) : len(tag)-1], true
}

// allocSize is the platform allocation size in bytes for the default
// x86_64 target.
func allocSize(t types.Type) int64 {
	switch t := t.(type) {
	case *types.IntType:
		size := int64(t.BitSize) / 8
		if size == 0 {
			size = 1
		}
		return size
	case *types.FloatType:
		switch t.Kind {
		case types.FloatKindFloat:
			return 4
		case types.FloatKindDouble:
			return 8
		}
	case *types.PointerType:
		return 8
	case *types.ArrayType:
		return int64(t.Len) * allocSize(t.ElemType)
	}
	return 0
}
