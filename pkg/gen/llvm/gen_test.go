package llvmgen

import (
	"bytes"
	"strings"
	"testing"

	"github.com/morning-lang/morningllvm/pkg/logger"
)

func emit(t *testing.T, program string) string {
	t.Helper()

	var errOut bytes.Buffer
	prevErr := logger.Stderr
	logger.Stderr = &errOut
	defer func() { logger.Stderr = prevErr }()

	return New().EmitProgram(program)
}

// expectFatal asserts that lowering program produces a CRITICAL
// diagnostic. The exit hook is replaced so the process survives.
func expectFatal(t *testing.T, program string) {
	t.Helper()

	prevExit := logger.ExitFunc
	prevErr := logger.Stderr
	logger.Stderr = &bytes.Buffer{}
	logger.ExitFunc = func(int) { panic("fatal diagnostic") }
	defer func() {
		logger.ExitFunc = prevExit
		logger.Stderr = prevErr
	}()

	defer func() {
		if recover() == nil {
			t.Fatalf("lowering %q succeeded, want fatal diagnostic", program)
		}
	}()

	New().EmitProgram(program)
}

func assertContains(t *testing.T, out string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(out, want) {
			t.Errorf("emitted IR lacks %q\n%s", want, out)
		}
	}
}

func TestModuleShell(t *testing.T) {
	out := emit(t, "")

	assertContains(t, out,
		`target triple = "x86_64-unknown-linux-gnu"`,
		"define i64 @main()",
		"ret i64 0",
		"@printf",
		"@scanf",
		"@getchar",
		"@_VERSION",
		"i64 300",
	)
}

func TestConditionalWithAssignment(t *testing.T) {
	// End-to-end scenario: prints 0.
	out := emit(t, `[var (a !int) 10] [check (== a 10) [set a 0]] [fprint "%d\n" a]`)

	assertContains(t, out,
		"%a = alloca i64",
		"icmp eq i64",
		"br i1",
		"store i64 0, i64* %a",
		"call i64 (i8*, ...) @printf",
	)
}

func TestFunctionDefinitionAndLiteralBases(t *testing.T) {
	out := emit(t, `[func square (x) (* x x)]
		[fprint "%d\n" (square 10)]
		[fprint "%d\n" (square 0xA)]
		[fprint "%d\n" (square 012)]
		[fprint "%d\n" (square 0b1010)]`)

	assertContains(t, out, "define i64 @square(i64 %x)", "mul i64")

	if calls := strings.Count(out, "call i64 @square(i64 10)"); calls != 4 {
		t.Errorf("found %d calls with argument 10, want 4 (all literal bases)\n%s", calls, out)
	}
}

func TestRecursionThroughPhi(t *testing.T) {
	out := emit(t, `[func factorial (x) [check (== x 0) 1 (* x (factorial (- x 1)))]]
		[fprint "%d\n" (factorial 5)]`)

	assertContains(t, out,
		"define i64 @factorial(i64 %x)",
		"phi i64",
		"call i64 @factorial",
	)
}

func TestWhileLoopUnsignedComparison(t *testing.T) {
	out := emit(t, `[var a 3] [while (> a 0) [scope [set a (- a 1)] [fprint "%d " a]]] [fprint "\n"]`)

	assertContains(t, out, "icmp ugt i64", "br i1", "sub i64")
}

func TestArrayDeclarationIndexingAndStore(t *testing.T) {
	out := emit(t, `[var (arr !array<!int,3>) (array 1 2 3)]
		[set (index arr 0) 10]
		[fprint "%d %d %d\n" (index arr 0) (index arr 1) (index arr 2)]`)

	assertContains(t, out,
		"[3 x i64]",
		"getelementptr [3 x i64]",
		"store i64 10",
	)
}

func TestForLoopWithBreak(t *testing.T) {
	out := emit(t, `[for (var i 0) (< i 6) (set i (+ i 1)) [scope (fprint "%d " i) [check (== i 3) (break)]]]`)

	assertContains(t, out, "for.cond", "for.body", "for.step", "for.break", "after_break", "icmp ult i64")
}

func TestLoopForm(t *testing.T) {
	out := emit(t, `[var a 0] [loop [set a (+ a 1)] [check (> a 2) [break]]]`)

	assertContains(t, out, "loop.body", "loop.exit", "after_break")
}

func TestIfElifElseChain(t *testing.T) {
	out := emit(t, `[fprint "%d\n" [if (== 1 2) 10 elif (== 1 1) 20 else 30]]`)

	assertContains(t, out, "if.then", "elif.then", "if.end", "phi i8")
}

func TestScopeShadowing(t *testing.T) {
	out := emit(t, `[var x 1] [scope [var x 2] [fprint "%d\n" x]] [fprint "%d\n" x]`)

	assertContains(t, out, "%x = alloca i64", "%x1 = alloca i64")
}

func TestCheckBranchWidthPromotion(t *testing.T) {
	out := emit(t, `[fprint "%d\n" (check (== 1 1) 5 600)]`)

	// 5 fits i8, 600 needs i16: the phi settles on i16.
	assertContains(t, out, "phi i16")
}

func TestLiteralWidthsFollowDeclarations(t *testing.T) {
	out := emit(t, `[var (a !int8) 5] [var (b !int16) 300] [var (c !int) 70000]`)

	assertContains(t, out,
		"store i8 5",
		"store i16 300",
		"store i64 70000",
	)
}

func TestBoolLiterals(t *testing.T) {
	out := emit(t, `[var (flag !bool) true] [var (other !bool) false]`)

	assertContains(t, out, "store i8 1", "store i8 0")
}

func TestImplicitIntToFracInitializer(t *testing.T) {
	out := emit(t, `[var (f !frac) 2] [var (x !int) 3] [fprint "%f\n" (+ x 1.5)]`)

	assertContains(t, out, "sitofp i64", "fadd double")
}

func TestStringLiteralEscapes(t *testing.T) {
	out := emit(t, `[fprint "hi\n"]`)

	assertContains(t, out, `c"hi\0A\00"`)
}

func TestEmptyStringLiteral(t *testing.T) {
	out := emit(t, `[fprint ""]`)

	assertContains(t, out, `c"\00"`)
}

func TestSignedIntegerDivision(t *testing.T) {
	out := emit(t, `[var a 7] [fprint "%d\n" (/ a 2)]`)

	assertContains(t, out, "sdiv i64")
}

func TestFinputNumericTargets(t *testing.T) {
	out := emit(t, `[var (x !int) 0] [finput "%d" x]`)

	assertContains(t, out, "call i64 (i8*, ...) @scanf")
	if strings.Contains(out, "call i64 @getchar()") {
		t.Errorf("numeric finput should not drain input\n%s", out)
	}
}

func TestFinputStringTargetReadsLine(t *testing.T) {
	out := emit(t, `[var (s !str) ""] [finput "%s" s]`)

	assertContains(t, out,
		"[256 x i8]",
		"%[^",
		"call i64 @getchar()",
		"icmp eq i64",
	)
}

func TestMemForms(t *testing.T) {
	out := emit(t, `[var (p !ptr) (mem-alloc 8)]
		[mem-write p 42]
		[fprint "%d\n" (mem-read p !int)]
		[mem-free p]`)

	assertContains(t, out,
		"call i8* @malloc(i64 8)",
		"call void @free",
		"bitcast",
	)
}

func TestMemPtrOfLocal(t *testing.T) {
	out := emit(t, `[var a 1] [fprint "%d\n" (mem-read (mem-ptr a) !int)]`)

	assertContains(t, out, "bitcast i64* %a to i8*")
}

func TestByteForms(t *testing.T) {
	out := emit(t, `[var (p !ptr) (mem-alloc 1)] [byte-write p 65] [fprint "%d\n" (byte-read p)]`)

	assertContains(t, out, "store i8 65", "load i8")
}

func TestSizeof(t *testing.T) {
	out := emit(t, `[fprint "%d %d %d\n" (sizeof !int32) (sizeof !frac) (sizeof !array<!int,3>)]`)

	assertContains(t, out, "i64 4", "i64 8", "i64 24")
}

func TestBitwiseForms(t *testing.T) {
	out := emit(t, `[var x 12]
		[fprint "%d\n" (bit-and x 10)]
		[fprint "%d\n" (bit-or x 1)]
		[fprint "%d\n" (bit-xor x 6)]
		[fprint "%d\n" (bit-shl x 2)]
		[fprint "%d\n" (bit-shr x 1)]
		[fprint "%d\n" (bit-not x)]`)

	assertContains(t, out, "and i64", "or i64", "xor i64", "shl i64", "lshr i64", "xor i64 %")
}

func TestAllocationsLandInEntryBlock(t *testing.T) {
	out := emit(t, `[while (< 0 1) [scope [var tmp 1] [break]]]`)

	entry := out[strings.Index(out, "define i64 @main()"):]
	entry = entry[:strings.Index(entry, "br ")]
	if !strings.Contains(entry, "%tmp = alloca i64") {
		t.Errorf("loop-local allocation should sit in the entry block\n%s", out)
	}
}

func TestVerifierCleanOnScenarios(t *testing.T) {
	programs := []string{
		`[var (a !int) 10] [check (== a 10) [set a 0]] [fprint "%d\n" a]`,
		`[func square (x) (* x x)] [fprint "%d\n" (square 10)]`,
		`[func factorial (x) [check (== x 0) 1 (* x (factorial (- x 1)))]] [fprint "%d\n" (factorial 5)]`,
		`[var a 3] [while (> a 0) [scope [set a (- a 1)] [fprint "%d " a]]] [fprint "\n"]`,
		`[var (arr !array<!int,3>) (array 1 2 3)] [set (index arr 0) 10] [fprint "%d %d %d\n" (index arr 0) (index arr 1) (index arr 2)]`,
		`[for (var i 0) (< i 6) (set i (+ i 1)) [scope (fprint "%d " i) [check (== i 3) (break)]]]`,
		`[func typed ((n !int)) -> !frac (+ n 0.5)] [fprint "%f\n" (typed 2)]`,
		`[var (s !str) ""] [finput "%s" s] [fprint "%s\n" s]`,
	}

	for _, program := range programs {
		g := New()

		var errOut bytes.Buffer
		prevErr := logger.Stderr
		logger.Stderr = &errOut
		g.EmitProgram(program)
		logger.Stderr = prevErr

		if problems := VerifyModule(g.Module()); len(problems) != 0 {
			t.Errorf("verification of %q: %v", program, problems)
		}
	}
}

func TestNestedScopesPreserveOuterBindings(t *testing.T) {
	// Nested scopes without shadowing lower the same operations as the
	// flat program.
	nested := emit(t, `[var a 1] [scope [scope [set a 2]]] [fprint "%d\n" a]`)
	flat := emit(t, `[var a 1] [set a 2] [fprint "%d\n" a]`)

	for _, want := range []string{"store i64 2, i64* %a", "call i64 (i8*, ...) @printf"} {
		assertContains(t, nested, want)
		assertContains(t, flat, want)
	}
}

func TestSingleElementArray(t *testing.T) {
	out := emit(t, `[var (one !array<!int,1>) (array 9)]`)

	assertContains(t, out, "[1 x i64]")
}

func TestWriteToConstantFatal(t *testing.T) {
	expectFatal(t, `[const (c !int) 1] [set c 2]`)
}

func TestConstantReadSucceeds(t *testing.T) {
	out := emit(t, `[const (c !int) 4] [fprint "%d\n" c]`)

	assertContains(t, out, "load i64, i64* %c")
}

func TestBreakOutsideLoopFatal(t *testing.T) {
	expectFatal(t, `[break]`)
}

func TestContinueOutsideLoopFatal(t *testing.T) {
	expectFatal(t, `[continue]`)
}

func TestUnboundNameFatal(t *testing.T) {
	expectFatal(t, `[fprint "%d" missing]`)
}

func TestDuplicateDeclarationFatal(t *testing.T) {
	expectFatal(t, `[var a 1] [var a 2]`)
}

func TestInitializerTypeMismatchFatal(t *testing.T) {
	expectFatal(t, `[var (a !int) 1.5]`)
}

func TestBranchKindMismatchFatal(t *testing.T) {
	expectFatal(t, `[fprint "%d" (check (== 1 1) 1 1.5)]`)
}

func TestIndexOnNonArrayFatal(t *testing.T) {
	expectFatal(t, `[var a 1] [fprint "%d" (index a 0)]`)
}

func TestNonIntegerIndexFatal(t *testing.T) {
	expectFatal(t, `[var (arr !array<!int,2>) (array 1 2)] [fprint "%d" (index arr 1.5)]`)
}

func TestBitwiseOnFractionalFatal(t *testing.T) {
	expectFatal(t, `[fprint "%d" (bit-and 1.5 2)]`)
}

func TestEmptyListFatal(t *testing.T) {
	expectFatal(t, `()`)
}

func TestCallingNonFunctionFatal(t *testing.T) {
	expectFatal(t, `[var a 1] [a 2]`)
}

func TestOperatorArityFatal(t *testing.T) {
	expectFatal(t, `[+ 1]`)
}

func TestMissingAnnotationWarns(t *testing.T) {
	var errOut bytes.Buffer
	prevErr := logger.Stderr
	logger.Stderr = &errOut
	defer func() { logger.Stderr = prevErr }()

	out := New().EmitProgram(`[var a 1]`)

	if !strings.Contains(errOut.String(), "Missing type annotation") {
		t.Errorf("stderr = %q, want missing-annotation warning", errOut.String())
	}
	assertContains(t, out, "%a = alloca i64")
}
