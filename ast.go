// Syntax tree: items, expressions, fragments, parameters, dependencies.
// Nodes keep the tokens they were parsed from so that later stages can
// report errors with source positions.

package main

import (
	"fmt"
	"strings"
)

// A top-level item in a recipe file.
type item interface {
	itemNode()
}

func (*recipe) itemNode()     {}
func (*assignment) itemNode() {}
func (*alias) itemNode()      {}
func (*setItem) itemNode()    {}
func (*importItem) itemNode() {}
func (*moduleItem) itemNode() {}

type assignment struct {
	name   token
	value  expression
	export bool
	depth  int
}

func (a *assignment) String() string {
	if a.export {
		return fmt.Sprintf("export %s := %s", a.name.lexeme(), a.value)
	}
	return fmt.Sprintf("%s := %s", a.name.lexeme(), a.value)
}

type alias struct {
	name       token
	target     token
	attributes []attribute
}

func (a *alias) String() string {
	return fmt.Sprintf("alias %s := %s", a.name.lexeme(), a.target.lexeme())
}

type importItem struct {
	keyword  token
	path     token // the string literal
	relative string
	optional bool
}

type moduleItem struct {
	keyword    token
	name       token
	path       string // explicit source path, empty to search
	optional   bool
	doc        string
	attributes []attribute
}

// Expressions.

type conditionalOperator int

const (
	opEquals conditionalOperator = iota
	opNotEquals
	opRegexMatch
)

func (op conditionalOperator) String() string {
	switch op {
	case opEquals:
		return "=="
	case opNotEquals:
		return "!="
	case opRegexMatch:
		return "=~"
	}
	return "??"
}

type expression interface {
	fmt.Stringer
	// walk visits the expression and every subexpression, outside in.
	walk(visit func(expression))
}

type stringLiteral struct {
	token  token
	kind   stringKind
	cooked string
}

func (s *stringLiteral) String() string       { return s.token.lexeme() }
func (s *stringLiteral) walk(f func(expression)) { f(s) }

type variableExpr struct {
	name token
}

func (v *variableExpr) String() string       { return v.name.lexeme() }
func (v *variableExpr) walk(f func(expression)) { f(v) }

type backtickExpr struct {
	token    token
	contents string
}

func (b *backtickExpr) String() string       { return b.token.lexeme() }
func (b *backtickExpr) walk(f func(expression)) { f(b) }

type callExpr struct {
	name      token
	arguments []expression
}

func (c *callExpr) String() string {
	args := make([]string, len(c.arguments))
	for i, a := range c.arguments {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", c.name.lexeme(), strings.Join(args, ", "))
}

func (c *callExpr) walk(f func(expression)) {
	f(c)
	for _, a := range c.arguments {
		a.walk(f)
	}
}

type concatExpr struct {
	lhs expression
	rhs expression
}

func (c *concatExpr) String() string {
	return fmt.Sprintf("%s + %s", c.lhs, c.rhs)
}

func (c *concatExpr) walk(f func(expression)) {
	f(c)
	c.lhs.walk(f)
	c.rhs.walk(f)
}

type joinExpr struct {
	lhs expression // nil for a leading '/'
	rhs expression
}

func (j *joinExpr) String() string {
	if j.lhs == nil {
		return fmt.Sprintf("/ %s", j.rhs)
	}
	return fmt.Sprintf("%s / %s", j.lhs, j.rhs)
}

func (j *joinExpr) walk(f func(expression)) {
	f(j)
	if j.lhs != nil {
		j.lhs.walk(f)
	}
	j.rhs.walk(f)
}

type conditionalExpr struct {
	lhs       expression
	operator  conditionalOperator
	rhs       expression
	then      expression
	otherwise expression
}

func (c *conditionalExpr) String() string {
	return fmt.Sprintf(
		"if %s %s %s { %s } else { %s }",
		c.lhs, c.operator, c.rhs, c.then, c.otherwise,
	)
}

func (c *conditionalExpr) walk(f func(expression)) {
	f(c)
	c.lhs.walk(f)
	c.rhs.walk(f)
	c.then.walk(f)
	c.otherwise.walk(f)
}

type groupExpr struct {
	inner expression
}

func (g *groupExpr) String() string       { return fmt.Sprintf("(%s)", g.inner) }
func (g *groupExpr) walk(f func(expression)) { f(g); g.inner.walk(f) }

// variableTokens collects the tokens of every variable referenced by the
// expression, for dependency analysis.
func variableTokens(expr expression) []token {
	var names []token
	expr.walk(func(e expression) {
		if v, ok := e.(*variableExpr); ok {
			names = append(names, v.name)
		}
	})
	return names
}

// callTokens collects the tokens of every function call in the expression.
func callTokens(expr expression) []*callExpr {
	var calls []*callExpr
	expr.walk(func(e expression) {
		if c, ok := e.(*callExpr); ok {
			calls = append(calls, c)
		}
	})
	return calls
}

// Fragments: the pieces of one recipe body line.

type fragment interface {
	fragmentNode()
}

type textFragment struct {
	token token
}

func (textFragment) fragmentNode() {}

// text returns the literal text of the fragment, with the '{{{{' and
// '}}}}' escapes reduced.
func (t textFragment) text() string {
	return strings.NewReplacer("{{{{", "{{", "}}}}", "}}").Replace(t.token.lexeme())
}

type interpolationFragment struct {
	expression expression
}

func (interpolationFragment) fragmentNode() {}

type line struct {
	number    int // 1-based source line
	fragments []fragment
}

func (l line) isEmpty() bool {
	return len(l.fragments) == 0
}

// isComment reports whether the line's first fragment starts with '#'.
// Shebang lines are not comments.
func (l line) isComment() bool {
	if l.isEmpty() {
		return false
	}
	text, ok := l.fragments[0].(textFragment)
	return ok && strings.HasPrefix(text.token.lexeme(), "#") && !l.isShebang()
}

func (l line) isShebang() bool {
	if l.isEmpty() {
		return false
	}
	text, ok := l.fragments[0].(textFragment)
	return ok && strings.HasPrefix(text.token.lexeme(), "#!")
}

func (l line) String() string {
	var b strings.Builder
	for _, f := range l.fragments {
		switch f := f.(type) {
		case textFragment:
			b.WriteString(f.token.lexeme())
		case interpolationFragment:
			fmt.Fprintf(&b, "{{ %s }}", f.expression)
		}
	}
	return b.String()
}

// Parameters.

type parameterKind int

const (
	paramRequired parameterKind = iota
	paramDefault
	paramStar // zero or more
	paramPlus // one or more
)

func (k parameterKind) variadic() bool {
	return k == paramStar || k == paramPlus
}

func (k parameterKind) prefix() string {
	switch k {
	case paramStar:
		return "*"
	case paramPlus:
		return "+"
	}
	return ""
}

type parameter struct {
	name         token
	kind         parameterKind
	export       bool // '$name' exports the bound argument
	defaultValue expression
}

func (p parameter) String() string {
	var b strings.Builder
	b.WriteString(p.kind.prefix())
	if p.export {
		b.WriteByte('$')
	}
	b.WriteString(p.name.lexeme())
	if p.defaultValue != nil {
		fmt.Fprintf(&b, "=%s", p.defaultValue)
	}
	return b.String()
}

// A dependency of a recipe: the target name plus any call arguments.
type dependency struct {
	recipe    token
	arguments []expression
}

func (d dependency) String() string {
	if len(d.arguments) == 0 {
		return d.recipe.lexeme()
	}
	args := make([]string, len(d.arguments))
	for i, a := range d.arguments {
		args[i] = a.String()
	}
	return fmt.Sprintf("(%s %s)", d.recipe.lexeme(), strings.Join(args, " "))
}
