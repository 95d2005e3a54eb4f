package llvmgen

import (
	"fmt"

	"github.com/llir/llvm/ir"

	"github.com/morning-lang/morningllvm/pkg/logger"
)

// loopFrame carries the jump targets of the innermost active loop.
type loopFrame struct {
	breakTarget    *ir.Block
	continueTarget *ir.Block
}

// newBlock creates a detached basic block. Labels are suffixed with a
// module-wide counter so textual IR never has colliding block names.
func (g *Generator) newBlock(label string) *ir.Block {
	g.blockCount++
	return ir.NewBlock(fmt.Sprintf("%s%d", label, g.blockCount))
}

// attach appends a detached block to the active function.
func (g *Generator) attach(block *ir.Block) {
	block.Parent = g.activeFn
	g.activeFn.Blocks = append(g.activeFn.Blocks, block)
}

// attachedBlock creates a block already appended to the active function.
func (g *Generator) attachedBlock(label string) *ir.Block {
	b := g.newBlock(label)
	g.attach(b)
	return b
}

// setInsert moves the insertion point.
func (g *Generator) setInsert(block *ir.Block) {
	g.block = block
}

func (g *Generator) pushLoop(frame loopFrame) {
	g.loopStack = append(g.loopStack, frame)
}

func (g *Generator) popLoop() {
	g.loopStack = g.loopStack[:len(g.loopStack)-1]
}

func (g *Generator) currentLoop(keyword string) loopFrame {
	if len(g.loopStack) == 0 {
		logger.Criticalf("%q outside of loop", keyword)
	}
	return g.loopStack[len(g.loopStack)-1]
}
