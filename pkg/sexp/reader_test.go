package sexp

import "testing"

func parseOne(t *testing.T, src string) Exp {
	t.Helper()
	exp, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %s", src, err)
	}
	return exp
}

func TestParseIntegerFormats(t *testing.T) {
	tests := []struct {
		src  string
		want int64
	}{
		{"10", 10},
		{"0xA", 10},
		{"0b1010", 10},
		{"012", 10},
		{"-5", -5},
		{"+7", 7},
		{"0", 0},
	}

	for _, tt := range tests {
		exp := parseOne(t, tt.src)
		if exp.Kind != Number {
			t.Errorf("Parse(%q): kind = %s, want number", tt.src, exp.Kind)
			continue
		}
		if exp.Number != tt.want {
			t.Errorf("Parse(%q) = %d, want %d", tt.src, exp.Number, tt.want)
		}
	}
}

func TestParseFractionalFormats(t *testing.T) {
	tests := []struct {
		src  string
		want float64
	}{
		{"1.5", 1.5},
		{".5", 0.5},
		{"2.", 2.0},
		{"-0.25", -0.25},
		{"1.5e3", 1500},
		{"2E-1", 0.2},
	}

	for _, tt := range tests {
		exp := parseOne(t, tt.src)
		if exp.Kind != Fractional {
			t.Errorf("Parse(%q): kind = %s, want fractional", tt.src, exp.Kind)
			continue
		}
		if exp.Fractional != tt.want {
			t.Errorf("Parse(%q) = %g, want %g", tt.src, exp.Fractional, tt.want)
		}
	}
}

func TestParseSymbols(t *testing.T) {
	for _, src := range []string{"foo", "+", "-", "->", "!int", "!array<!int,3>", "%d"} {
		exp := parseOne(t, src)
		if exp.Kind != Symbol || exp.Text != src {
			t.Errorf("Parse(%q) = %#v, want symbol %q", src, exp, src)
		}
	}
}

func TestParseList(t *testing.T) {
	exp := parseOne(t, "[var (a !int) 10]")
	if exp.Kind != List || len(exp.List) != 3 {
		t.Fatalf("unexpected shape: %s", exp)
	}
	if !exp.List[0].IsSymbol("var") {
		t.Errorf("head = %s, want var", exp.List[0])
	}
	if exp.List[1].Kind != List || len(exp.List[1].List) != 2 {
		t.Errorf("name declaration = %s, want 2-list", exp.List[1])
	}
	if exp.List[2].Kind != Number || exp.List[2].Number != 10 {
		t.Errorf("initializer = %s, want 10", exp.List[2])
	}
}

func TestDelimiterFamiliesInterchangeable(t *testing.T) {
	square := parseOne(t, "[scope [var a 1]]")
	round := parseOne(t, "(scope (var a 1))")
	mixed := parseOne(t, "[scope (var a 1)]")

	for _, exp := range []Exp{square, round, mixed} {
		if exp.HeadSymbol() != "scope" || len(exp.List) != 2 {
			t.Errorf("unexpected shape: %s", exp)
		}
	}
}

func TestEmptyListIsLegal(t *testing.T) {
	exp := parseOne(t, "[]")
	if exp.Kind != List || len(exp.List) != 0 {
		t.Fatalf("Parse([]) = %#v, want empty list", exp)
	}
}

func TestParseComments(t *testing.T) {
	src := `
// leading comment
[scope
  [var a 1] // trailing
  /* block
     comment */
  [set a 2]
]`
	exp := parseOne(t, src)
	if len(exp.List) != 3 {
		t.Fatalf("comments leaked into the tree: %s", exp)
	}
}

func TestParseStringEscapes(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{`"hello"`, "hello"},
		{`"a\"b"`, `a"b`},
		{`"a\\b"`, `a\b`},
		// \n and \t stay textual for the lowering engine.
		{`"a\nb"`, `a\nb`},
		{`"a\tb"`, `a\tb`},
		{`""`, ""},
	}

	for _, tt := range tests {
		exp := parseOne(t, tt.src)
		if exp.Kind != String || exp.Text != tt.want {
			t.Errorf("Parse(%s) = %#v, want string %q", tt.src, exp, tt.want)
		}
	}
}

func TestParseErrors(t *testing.T) {
	bad := []string{
		"",
		"[scope",
		"]",
		`"unterminated`,
		"[a] trailing",
		"[scope (a])",
		"/* no close",
		"0x",
		"12ab",
	}

	for _, src := range bad {
		if _, err := Parse(src); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", src)
		}
	}
}

func TestSyntaxErrorCarriesLine(t *testing.T) {
	_, err := Parse("[scope\n\n  \"oops]")
	syntaxErr, ok := err.(*SyntaxError)
	if !ok {
		t.Fatalf("error type = %T, want *SyntaxError", err)
	}
	if syntaxErr.Line != 3 {
		t.Errorf("line = %d, want 3", syntaxErr.Line)
	}
}

func TestRenderTrimsLongExpressions(t *testing.T) {
	long := NewList(Sym("scope"))
	for i := 0; i < 100; i++ {
		long.List = append(long.List, Sym("abcdefgh"))
	}

	s := long.String()
	if len(s) != 120 {
		t.Fatalf("len = %d, want 120", len(s))
	}
	if s[len(s)-3:] != "..." {
		t.Errorf("trimmed rendering should end with ellipsis, got %q", s[len(s)-10:])
	}
}
