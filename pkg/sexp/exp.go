package sexp

// Kind discriminates the Exp variants.
type Kind int

const (
	Number Kind = iota
	Fractional
	String
	Symbol
	List
)

func (k Kind) String() string {
	switch k {
	case Number:
		return "number"
	case Fractional:
		return "fractional"
	case String:
		return "string"
	case Symbol:
		return "symbol"
	case List:
		return "list"
	}
	return "value"
}

// Exp is a node of the expression tree consumed by the lowering engine.
// Exactly one payload field is meaningful, selected by Kind. Text holds
// both string and symbol payloads.
type Exp struct {
	Kind       Kind
	Number     int64
	Fractional float64
	Text       string
	List       []Exp
}

func Num(n int64) Exp        { return Exp{Kind: Number, Number: n} }
func Frac(f float64) Exp     { return Exp{Kind: Fractional, Fractional: f} }
func Str(s string) Exp       { return Exp{Kind: String, Text: s} }
func Sym(s string) Exp       { return Exp{Kind: Symbol, Text: s} }
func NewList(items ...Exp) Exp { return Exp{Kind: List, List: items} }

// IsSymbol reports whether e is the symbol named name.
func (e Exp) IsSymbol(name string) bool {
	return e.Kind == Symbol && e.Text == name
}

// HeadSymbol returns the head symbol of a list expression, or "" when e
// is not a list or its head is not a symbol.
func (e Exp) HeadSymbol() string {
	if e.Kind == List && len(e.List) > 0 && e.List[0].Kind == Symbol {
		return e.List[0].Text
	}
	return ""
}

const renderLimit = 120

// String renders the expression for diagnostics. Long renderings are
// trimmed to keep traceback lines readable.
func (e Exp) String() string {
	s := e.render()
	if len(s) > renderLimit {
		return s[:renderLimit-3] + "..."
	}
	return s
}

func (e Exp) render() string {
	switch e.Kind {
	case Number:
		return formatInt(e.Number)
	case Fractional:
		return formatFloat(e.Fractional)
	case String:
		return "\"" + e.Text + "\""
	case Symbol:
		return e.Text
	case List:
		if len(e.List) == 0 {
			return "[]"
		}
		s := "["
		for i, item := range e.List {
			if i > 0 {
				s += " "
			}
			s += item.render()
		}
		return s + "]"
	}
	return "<?>"
}
