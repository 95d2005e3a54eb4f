// Package lint implements the style checker: naming rules over the
// expression tree plus a parse-only syntax check. It runs off the
// codegen path and never mutates the tree.
package lint

import (
	"fmt"
	"strings"

	"github.com/morning-lang/morningllvm/pkg/sexp"
)

// Rule couples an identifier with its checking logic.
type Rule struct {
	Code        string
	Description string
	Example     string
	Check       func(l *Linter, exp sexp.Exp, issues *[]string)
}

var operators = map[string]bool{
	"+": true, "-": true, "*": true, "/": true,
	">": true, "<": true, ">=": true, "<=": true, "==": true, "!=": true,
}

var keywords = map[string]bool{
	"func": true, "scope": true, "fprint": true, "check": true,
	"if": true, "elif": true, "else": true, "finput": true,
	"while": true, "loop": true, "for": true, "set": true,
	"var": true, "const": true, "break": true, "continue": true,
	"array": true, "index": true, "sizeof": true, "true": true, "false": true,
	"mem-alloc": true, "mem-free": true, "mem-write": true, "mem-read": true,
	"mem-deref": true, "mem-ptr": true, "byte-read": true, "byte-write": true,
	"bit-and": true, "bit-or": true, "bit-xor": true,
	"bit-shl": true, "bit-shr": true, "bit-not": true,
	"->": true,
}

// Linter applies the registered rules during one tree traversal.
type Linter struct {
	rules        []Rule
	config       Config
	declarations map[string]int
}

// New builds a linter with the default rule set filtered by config.
func New(config Config) *Linter {
	l := &Linter{config: config}

	l.addRule(Rule{
		Code:        "W001",
		Description: "Identifiers must contain only letters, digits and underscores",
		Example:     "my-var -> my_var",
		Check:       checkIdentifierCharset,
	})
	l.addRule(Rule{
		Code:        "W002",
		Description: "Identifiers must use snake_case formatting",
		Example:     "myVariable -> my_variable",
		Check:       checkSnakeCase,
	})
	l.addRule(Rule{
		Code:        "W003",
		Description: "Identifiers must meet the minimum length",
		Example:     "x -> x_value",
		Check:       checkIdentifierLength,
	})
	l.addRule(Rule{
		Code:        "W004",
		Description: "Duplicate symbol declaration; names are counted across the whole program, scopes are not distinguished",
		Example:     "Unique names for variables/functions",
		Check:       checkDuplicateDeclaration,
	})

	return l
}

func (l *Linter) addRule(rule Rule) {
	if l.config.disabled(rule.Code) {
		return
	}
	l.rules = append(l.rules, rule)
}

// Lint traverses the tree and returns all issues found.
func (l *Linter) Lint(ast sexp.Exp) []string {
	var issues []string
	l.declarations = make(map[string]int)
	l.traverse(ast, &issues)
	return issues
}

func (l *Linter) traverse(node sexp.Exp, issues *[]string) {
	for _, rule := range l.rules {
		rule.Check(l, node, issues)
	}

	if node.Kind == sexp.List {
		for _, child := range node.List {
			l.traverse(child, issues)
		}
	}
}

// CheckSyntax validates that code parses, without lowering anything.
func CheckSyntax(code string) []string {
	if _, err := sexp.Parse("[scope " + code + "]"); err != nil {
		return []string{"E001: Syntax error: " + err.Error()}
	}
	return nil
}

// skippable reports symbols the naming rules ignore: operators,
// keywords and type tags.
func skippable(name string) bool {
	return operators[name] || keywords[name] || strings.HasPrefix(name, "!") ||
		strings.HasPrefix(name, "%") || strings.HasPrefix(name, "__")
}

func isValidIdentifier(name string) bool {
	if name == "" {
		return false
	}
	if !isAlpha(name[0]) && name[0] != '_' {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !isAlphaNumeric(name[i]) && name[i] != '_' {
			return false
		}
	}
	return true
}

func isAlpha(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isAlphaNumeric(c byte) bool {
	return isAlpha(c) || c >= '0' && c <= '9'
}

func checkIdentifierCharset(l *Linter, exp sexp.Exp, issues *[]string) {
	if exp.Kind != sexp.Symbol || skippable(exp.Text) {
		return
	}

	name := exp.Text
	if isValidIdentifier(name) {
		return
	}

	suggestion := suggestValidName(name)
	*issues = append(*issues, fmt.Sprintf(
		"W001: Invalid identifier '%s'\n"+
			"  Contains invalid characters (only letters, digits and _ allowed)\n"+
			"  Suggested fix: use '%s' instead", name, suggestion))
}

func checkSnakeCase(l *Linter, exp sexp.Exp, issues *[]string) {
	if exp.Kind != sexp.Symbol || skippable(exp.Text) || !isValidIdentifier(exp.Text) {
		return
	}

	name := exp.Text
	hasUppercase := false
	for i := 0; i < len(name); i++ {
		if name[i] >= 'A' && name[i] <= 'Z' {
			hasUppercase = true
			break
		}
	}
	if !hasUppercase {
		return
	}

	suggestion := suggestSnakeCase(name)
	*issues = append(*issues, fmt.Sprintf(
		"W002: Not snake_case: '%s'\n"+
			"  Suggested fix: use '%s' instead\n"+
			"  Example: [var %s 10]", name, suggestion, suggestion))
}

func checkIdentifierLength(l *Linter, exp sexp.Exp, issues *[]string) {
	if exp.Kind != sexp.Symbol || skippable(exp.Text) || !isValidIdentifier(exp.Text) {
		return
	}

	name := exp.Text
	if len(name) >= l.config.minLength() {
		return
	}

	*issues = append(*issues, fmt.Sprintf(
		"W003: Identifier too short: '%s' (%d chars)\n"+
			"  Suggested fix: use '%s_value' instead\n"+
			"  Example: [var %s_value 10]", name, len(name), name, name))
}

func checkDuplicateDeclaration(l *Linter, exp sexp.Exp, issues *[]string) {
	head := exp.HeadSymbol()
	if head != "func" && head != "var" && head != "const" {
		return
	}
	if len(exp.List) < 2 {
		return
	}

	var name string
	nameExp := exp.List[1]
	if nameExp.Kind == sexp.Symbol {
		name = nameExp.Text
	} else if nameExp.Kind == sexp.List && len(nameExp.List) > 0 && nameExp.List[0].Kind == sexp.Symbol {
		name = nameExp.List[0].Text
	}

	if name == "" || !isValidIdentifier(name) {
		return
	}

	l.declarations[name]++
	if l.declarations[name] > 1 {
		*issues = append(*issues, fmt.Sprintf(
			"W004: Duplicate declaration: '%s'\n"+
				"  Suggested fix: rename to '%s_2'\n"+
				"  Example: [var %s_2 value]", name, name, name))
	}
}

func suggestValidName(name string) string {
	if strings.Contains(name, "-") {
		return strings.ReplaceAll(name, "-", "_")
	}

	var sb strings.Builder
	for i := 0; i < len(name); i++ {
		if isAlphaNumeric(name[i]) || name[i] == '_' {
			sb.WriteByte(name[i])
		}
	}
	if sb.Len() == 0 {
		return "valid_name"
	}
	return sb.String()
}

func suggestSnakeCase(name string) string {
	var sb strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'A' && c <= 'Z':
			if i > 0 && sb.Len() > 0 && sb.String()[sb.Len()-1] != '_' {
				sb.WriteByte('_')
			}
			sb.WriteByte(c - 'A' + 'a')
		case c == '-':
			sb.WriteByte('_')
		case isAlphaNumeric(c) || c == '_':
			sb.WriteByte(c)
		}
	}

	suggestion := sb.String()
	for strings.Contains(suggestion, "__") {
		suggestion = strings.ReplaceAll(suggestion, "__", "_")
	}
	suggestion = strings.Trim(suggestion, "_")

	if suggestion == "" {
		return "valid_name"
	}
	return suggestion
}
