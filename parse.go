// Recipe file parser: single-pass recursive descent with one token of
// lookahead over the lexer's output, producing a list of unresolved items.

package main

import "strings"

type parser struct {
	tokens []token // whitespace tokens stripped
	pos    int
	depth  int // module nesting depth
}

// parseTokens parses one source's token stream into items. depth is the
// module depth stamped onto recipes and assignments.
func parseTokens(tokens []token, depth int) ([]item, error) {
	filtered := make([]token, 0, len(tokens))
	for _, t := range tokens {
		if t.kind != tokenWhitespace {
			filtered = append(filtered, t)
		}
	}
	p := &parser{tokens: filtered, depth: depth}
	return p.file()
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) peekAt(n int) token {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1] // Eof
	}
	return p.tokens[p.pos+n]
}

func (p *parser) advance() token {
	t := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

func (p *parser) accept(kind tokenKind) (token, bool) {
	if p.peek().kind == kind {
		return p.advance(), true
	}
	return token{}, false
}

func (p *parser) accepted(kind tokenKind) bool {
	_, ok := p.accept(kind)
	return ok
}

func (p *parser) expect(kind tokenKind) (token, error) {
	if t, ok := p.accept(kind); ok {
		return t, nil
	}
	return token{}, p.unexpected(kind)
}

func (p *parser) unexpected(expected ...tokenKind) error {
	found := p.peek()
	return compileErrorAt(found, unexpectedToken{expected: expected, found: found.kind})
}

// expectEol consumes an optional trailing comment and the line terminator.
// End of file terminates a line as well.
func (p *parser) expectEol() error {
	p.accepted(tokenComment)
	if p.accepted(tokenEol) || p.peek().kind == tokenEof {
		return nil
	}
	return p.unexpected(tokenEol)
}

// acceptKeyword consumes an identifier with the given lexeme.
func (p *parser) acceptKeyword(keyword string) (token, bool) {
	if p.peek().kind == tokenIdentifier && p.peek().lexeme() == keyword {
		return p.advance(), true
	}
	return token{}, false
}

func (p *parser) file() ([]item, error) {
	var items []item
	var doc string
	var haveDoc bool
	var attributes []attribute

	for {
		t := p.peek()
		switch t.kind {
		case tokenEof:
			if len(attributes) > 0 {
				return nil, p.unexpected(tokenIdentifier, tokenAt)
			}
			return items, nil

		case tokenEol:
			p.advance()
			doc, haveDoc = "", false
			continue

		case tokenComment:
			p.advance()
			doc = strings.TrimSpace(strings.TrimPrefix(t.lexeme(), "#"))
			haveDoc = true
			if err := p.expectEol(); err != nil {
				return nil, err
			}
			continue

		case tokenBracketL:
			parsed, err := p.attributeBlock()
			if err != nil {
				return nil, err
			}
			attributes = append(attributes, parsed...)
			if err := p.expectEol(); err != nil {
				return nil, err
			}
			continue

		case tokenAt:
			p.advance()
			name, err := p.expect(tokenIdentifier)
			if err != nil {
				return nil, err
			}
			r, err := p.recipe(name, doc, haveDoc, true, attributes)
			if err != nil {
				return nil, err
			}
			items = append(items, r)
			doc, haveDoc, attributes = "", false, nil
			continue

		case tokenIdentifier:
			it, err := p.identifierItem(t, doc, haveDoc, attributes)
			if err != nil {
				return nil, err
			}
			items = append(items, it)
			doc, haveDoc, attributes = "", false, nil
			continue

		default:
			return nil, p.unexpected(tokenIdentifier, tokenAt, tokenBracketL, tokenEol)
		}
	}
}

// identifierItem dispatches on the keyword (or lack of one) that begins an
// item. Keywords only count when what follows completes the construct, so
// a recipe may still be named `alias` or `export`.
func (p *parser) identifierItem(t token, doc string, haveDoc bool, attributes []attribute) (item, error) {
	switch t.lexeme() {
	case keywordAlias:
		if p.peekAt(1).kind == tokenIdentifier && p.peekAt(2).kind == tokenColonEquals {
			return p.alias(attributes)
		}

	case keywordExport:
		if p.peekAt(1).kind == tokenIdentifier && p.peekAt(2).kind == tokenColonEquals {
			p.advance() // export
			name := p.advance()
			p.advance() // :=
			return p.assignment(name, true)
		}

	case keywordSet:
		if next := p.peekAt(1); next.kind == tokenIdentifier {
			if _, known := settingTable[next.lexeme()]; known {
				if len(attributes) > 0 {
					return nil, compileErrorAt(attributes[0].name, invalidAttribute{
						item:      "set",
						name:      next.lexeme(),
						attribute: attributes[0].kind.info().name,
					})
				}
				return p.set()
			}
		}

	case keywordImport:
		if next := p.peekAt(1); next.kind == tokenString || next.kind == tokenQuestion {
			if len(attributes) > 0 {
				return nil, compileErrorAt(attributes[0].name, invalidAttribute{
					item:      "import",
					name:      t.lexeme(),
					attribute: attributes[0].kind.info().name,
				})
			}
			return p.importItem()
		}

	case keywordMod:
		if next := p.peekAt(1); next.kind == tokenIdentifier || next.kind == tokenQuestion {
			return p.module(doc, attributes)
		}
	}

	name := p.advance()
	if p.peek().kind == tokenColonEquals {
		if len(attributes) > 0 {
			return nil, compileErrorAt(attributes[0].name, invalidAttribute{
				item:      "assignment",
				name:      name.lexeme(),
				attribute: attributes[0].kind.info().name,
			})
		}
		p.advance()
		return p.assignment(name, false)
	}
	return p.recipe(name, doc, haveDoc, false, attributes)
}

func (p *parser) alias(attributes []attribute) (item, error) {
	p.advance() // alias
	name := p.advance()
	p.advance() // :=
	target, err := p.expect(tokenIdentifier)
	if err != nil {
		return nil, err
	}
	if err := p.expectEol(); err != nil {
		return nil, err
	}
	if err := validateAttributes(attributes, onAlias, "alias", name.lexeme()); err != nil {
		return nil, err
	}
	return &alias{name: name, target: target, attributes: attributes}, nil
}

func (p *parser) assignment(name token, export bool) (item, error) {
	value, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.expectEol(); err != nil {
		return nil, err
	}
	return &assignment{name: name, value: value, export: export, depth: p.depth}, nil
}

func (p *parser) set() (item, error) {
	p.advance() // set
	name := p.advance()
	setting := name.lexeme()
	info := settingTable[setting]

	it := &setItem{name: name, setting: setting}

	if !p.accepted(tokenColonEquals) {
		if info.typ != settingBool {
			return nil, p.unexpected(tokenColonEquals)
		}
		it.boolValue = true
		return it, p.expectEol()
	}

	switch info.typ {
	case settingBool:
		value := p.advance()
		switch {
		case value.kind == tokenIdentifier && value.lexeme() == keywordTrue:
			it.boolValue = true
		case value.kind == tokenIdentifier && value.lexeme() == keywordFalse:
			it.boolValue = false
		default:
			return nil, compileErrorAt(value, unexpectedToken{expected: []tokenKind{tokenIdentifier}, found: value.kind})
		}

	case settingString:
		value, err := p.stringValue()
		if err != nil {
			return nil, err
		}
		it.stringValue = value

	case settingList:
		values, err := p.stringList()
		if err != nil {
			return nil, err
		}
		it.listValue = values
	}

	return it, p.expectEol()
}

// stringValue parses one string literal and returns its cooked value.
func (p *parser) stringValue() (string, error) {
	t, err := p.expect(tokenString)
	if err != nil {
		return "", err
	}
	kind, _ := stringKindAt(t.lexeme())
	return cook(t, kind)
}

// stringList parses a bracketed, comma-separated list of string literals.
func (p *parser) stringList() ([]string, error) {
	if _, err := p.expect(tokenBracketL); err != nil {
		return nil, err
	}
	values := []string{}
	for {
		if p.accepted(tokenBracketR) {
			return values, nil
		}
		value, err := p.stringValue()
		if err != nil {
			return nil, err
		}
		values = append(values, value)
		if !p.accepted(tokenComma) {
			if _, err := p.expect(tokenBracketR); err != nil {
				return nil, err
			}
			return values, nil
		}
	}
}

func (p *parser) importItem() (item, error) {
	keyword := p.advance() // import
	optional := p.accepted(tokenQuestion)
	path, ok := p.accept(tokenString)
	if !ok {
		return nil, p.unexpected(tokenString)
	}
	kind, _ := stringKindAt(path.lexeme())
	relative, err := cook(path, kind)
	if err != nil {
		return nil, err
	}
	if err := p.expectEol(); err != nil {
		return nil, err
	}
	return &importItem{keyword: keyword, path: path, relative: relative, optional: optional}, nil
}

func (p *parser) module(doc string, attributes []attribute) (item, error) {
	keyword := p.advance() // mod
	optional := p.accepted(tokenQuestion)
	name, err := p.expect(tokenIdentifier)
	if err != nil {
		return nil, err
	}
	var path string
	if t, ok := p.accept(tokenString); ok {
		kind, _ := stringKindAt(t.lexeme())
		path, err = cook(t, kind)
		if err != nil {
			return nil, err
		}
	}
	if err := p.expectEol(); err != nil {
		return nil, err
	}
	if err := validateAttributes(attributes, onModule, "module", name.lexeme()); err != nil {
		return nil, err
	}
	return &moduleItem{
		keyword:    keyword,
		name:       name,
		path:       path,
		optional:   optional,
		doc:        doc,
		attributes: attributes,
	}, nil
}

// attributeBlock parses one '[' … ']' group, which may hold several
// comma-separated attributes. Platform attributes invert with a `not-`
// name prefix.
func (p *parser) attributeBlock() ([]attribute, error) {
	p.advance() // '['
	var attributes []attribute
	for {
		name, err := p.expect(tokenIdentifier)
		if err != nil {
			return nil, err
		}

		lexeme := name.lexeme()
		inverted := false
		if rest, ok := strings.CutPrefix(lexeme, "not-"); ok {
			if kind, known := attributeKindFromName(rest); known {
				if !kind.info().invertible {
					return nil, compileErrorAt(name, invalidInvertedAttribute{attribute: rest})
				}
				inverted = true
				lexeme = rest
			}
		}

		kind, known := attributeKindFromName(lexeme)
		if !known {
			return nil, compileErrorAt(name, unknownAttribute{attribute: name.lexeme()})
		}

		var arguments []string
		if p.accepted(tokenParenL) {
			for {
				if p.peek().kind == tokenParenR {
					break
				}
				value, err := p.stringValue()
				if err != nil {
					return nil, err
				}
				arguments = append(arguments, value)
				if !p.accepted(tokenComma) {
					break
				}
			}
			if _, err := p.expect(tokenParenR); err != nil {
				return nil, err
			}
		}

		info := kind.info()
		max := info.maxArgs
		if max == -1 {
			max = int(^uint(0) >> 1)
		}
		if len(arguments) < info.minArgs || len(arguments) > max {
			return nil, compileErrorAt(name, attributeArgumentCount{
				attribute: info.name,
				found:     len(arguments),
				min:       info.minArgs,
				max:       info.maxArgs,
			})
		}

		attributes = append(attributes, attribute{
			kind:      kind,
			name:      name,
			inverted:  inverted,
			arguments: arguments,
		})

		if p.accepted(tokenComma) {
			continue
		}
		if _, err := p.expect(tokenBracketR); err != nil {
			return nil, err
		}
		return attributes, nil
	}
}

func (p *parser) recipe(name token, doc string, haveDoc bool, quiet bool, attributes []attribute) (*recipe, error) {
	r := &recipe{
		name:       name,
		doc:        doc,
		attributes: attributes,
		quiet:      quiet,
		depth:      p.depth,
	}

	if err := validateAttributes(attributes, onRecipe, "recipe", name.lexeme()); err != nil {
		return nil, err
	}

	// An explicit [doc(…)] wins over a comment; a bare [doc] erases it.
	if docAttr, ok := findAttribute(attributes, attrDoc); ok {
		r.doc = ""
		if len(docAttr.arguments) == 1 {
			r.doc = docAttr.arguments[0]
		}
	} else if !haveDoc {
		r.doc = ""
	}

	if quiet && hasAttribute(attributes, attrNoQuiet) {
		return nil, compileErrorAt(name, quietConflict{recipe: name.lexeme()})
	}

	r.private = strings.HasPrefix(name.lexeme(), "_") || hasAttribute(attributes, attrPrivate)

	if err := p.parameters(r); err != nil {
		return nil, err
	}

	if _, err := p.expect(tokenColon); err != nil {
		return nil, err
	}

	priors, err := p.dependencies(r)
	if err != nil {
		return nil, err
	}
	r.priors = priors

	if p.accepted(tokenAmpAmp) {
		subsequents, err := p.dependencies(r)
		if err != nil {
			return nil, err
		}
		if len(subsequents) == 0 {
			return nil, p.unexpected(tokenIdentifier, tokenParenL)
		}
		r.subsequents = subsequents
	}

	if err := p.expectEol(); err != nil {
		return nil, err
	}

	if err := p.body(r); err != nil {
		return nil, err
	}

	for _, l := range r.body {
		if !l.isEmpty() {
			r.shebang = l.isShebang()
			break
		}
	}

	return r, nil
}

func (p *parser) parameters(r *recipe) error {
	seenDefault := false
	seenVariadic := false

	for {
		kind := paramRequired
		if p.accepted(tokenPlus) {
			kind = paramPlus
		} else if p.accepted(tokenAsterisk) {
			kind = paramStar
		}

		export := p.accepted(tokenDollar)

		name, ok := p.accept(tokenIdentifier)
		if !ok {
			if kind != paramRequired || export {
				return p.unexpected(tokenIdentifier)
			}
			return nil
		}

		if seenVariadic {
			return compileErrorAt(name, parameterFollowsVariadic{parameter: name.lexeme()})
		}
		for _, existing := range r.parameters {
			if existing.name.lexeme() == name.lexeme() {
				return compileErrorAt(name, duplicateParameter{
					recipe:    r.name.lexeme(),
					parameter: name.lexeme(),
				})
			}
		}

		var defaultValue expression
		if p.accepted(tokenEquals) {
			value, err := p.expression()
			if err != nil {
				return err
			}
			defaultValue = value
		}

		if defaultValue != nil && kind == paramRequired {
			kind = paramDefault
		}

		if seenDefault && defaultValue == nil && !kind.variadic() {
			return compileErrorAt(name, requiredFollowsDefault{parameter: name.lexeme()})
		}

		seenDefault = seenDefault || defaultValue != nil
		seenVariadic = kind.variadic()

		r.parameters = append(r.parameters, parameter{
			name:         name,
			kind:         kind,
			export:       export,
			defaultValue: defaultValue,
		})
	}
}

func (p *parser) dependencies(r *recipe) ([]dependency, error) {
	var deps []dependency
	for {
		if target, ok := p.accept(tokenIdentifier); ok {
			for _, existing := range deps {
				if len(existing.arguments) == 0 && existing.recipe.lexeme() == target.lexeme() {
					return nil, compileErrorAt(target, duplicateDependency{
						recipe:     r.name.lexeme(),
						dependency: target.lexeme(),
					})
				}
			}
			deps = append(deps, dependency{recipe: target})
			continue
		}

		if p.accepted(tokenParenL) {
			target, err := p.expect(tokenIdentifier)
			if err != nil {
				return nil, err
			}
			var arguments []expression
			for p.peek().kind != tokenParenR {
				argument, err := p.expression()
				if err != nil {
					return nil, err
				}
				arguments = append(arguments, argument)
			}
			p.advance() // ')'
			deps = append(deps, dependency{recipe: target, arguments: arguments})
			continue
		}

		return deps, nil
	}
}

// body parses an indented recipe body into lines of fragments. Comment
// tokens inside the body come from comment-only lines below the body's
// indentation; they are not part of the body.
func (p *parser) body(r *recipe) error {
	if !p.accepted(tokenIndent) {
		return nil
	}

	for !p.accepted(tokenDedent) {
		t := p.peek()
		switch t.kind {
		case tokenEol:
			p.advance()
			r.body = append(r.body, line{number: t.line})

		case tokenComment:
			p.advance()
			if err := p.expectEol(); err != nil {
				return err
			}

		case tokenText, tokenInterpolationStart:
			l := line{number: t.line}
			for {
				if text, ok := p.accept(tokenText); ok {
					l.fragments = append(l.fragments, textFragment{token: text})
					continue
				}
				if _, ok := p.accept(tokenInterpolationStart); ok {
					expr, err := p.expression()
					if err != nil {
						return err
					}
					if _, err := p.expect(tokenInterpolationEnd); err != nil {
						return err
					}
					l.fragments = append(l.fragments, interpolationFragment{expression: expr})
					continue
				}
				break
			}
			if !p.accepted(tokenEol) && p.peek().kind != tokenDedent && p.peek().kind != tokenEof {
				return p.unexpected(tokenEol)
			}
			r.body = append(r.body, l)

		case tokenEof:
			return nil

		default:
			return p.unexpected(tokenText, tokenEol)
		}
	}
	return nil
}

// expression parses Expr = Term { "+" Term | "/" Term }, left-associative.
// A leading '/' is a join with no left-hand side.
func (p *parser) expression() (expression, error) {
	var expr expression
	if p.accepted(tokenSlash) {
		rhs, err := p.term()
		if err != nil {
			return nil, err
		}
		expr = &joinExpr{rhs: rhs}
	} else {
		term, err := p.term()
		if err != nil {
			return nil, err
		}
		expr = term
	}

	for {
		if p.accepted(tokenPlus) {
			rhs, err := p.term()
			if err != nil {
				return nil, err
			}
			expr = &concatExpr{lhs: expr, rhs: rhs}
			continue
		}
		if p.accepted(tokenSlash) {
			rhs, err := p.term()
			if err != nil {
				return nil, err
			}
			expr = &joinExpr{lhs: expr, rhs: rhs}
			continue
		}
		return expr, nil
	}
}

func (p *parser) term() (expression, error) {
	t := p.peek()
	switch t.kind {
	case tokenIdentifier:
		if t.lexeme() == keywordIf {
			return p.conditional()
		}
		p.advance()
		if p.accepted(tokenParenL) {
			var arguments []expression
			for p.peek().kind != tokenParenR {
				argument, err := p.expression()
				if err != nil {
					return nil, err
				}
				arguments = append(arguments, argument)
				if !p.accepted(tokenComma) {
					break
				}
			}
			if _, err := p.expect(tokenParenR); err != nil {
				return nil, err
			}
			return &callExpr{name: t, arguments: arguments}, nil
		}
		return &variableExpr{name: t}, nil

	case tokenString:
		p.advance()
		kind, _ := stringKindAt(t.lexeme())
		cooked, err := cook(t, kind)
		if err != nil {
			return nil, err
		}
		return &stringLiteral{token: t, kind: kind, cooked: cooked}, nil

	case tokenBacktick:
		p.advance()
		kind, _ := stringKindAt(t.lexeme())
		delim := len(kind.delimiter())
		contents := t.lexeme()[delim : len(t.lexeme())-delim]
		return &backtickExpr{token: t, contents: contents}, nil

	case tokenParenL:
		p.advance()
		inner, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokenParenR); err != nil {
			return nil, err
		}
		return &groupExpr{inner: inner}, nil
	}

	return nil, p.unexpected(tokenIdentifier, tokenString, tokenBacktick, tokenParenL)
}

func (p *parser) conditional() (expression, error) {
	p.advance() // if

	lhs, err := p.expression()
	if err != nil {
		return nil, err
	}

	var operator conditionalOperator
	switch {
	case p.accepted(tokenEqualsEquals):
		operator = opEquals
	case p.accepted(tokenBangEquals):
		operator = opNotEquals
	case p.accepted(tokenEqualsTilde):
		operator = opRegexMatch
	default:
		return nil, p.unexpected(tokenEqualsEquals, tokenBangEquals, tokenEqualsTilde)
	}

	rhs, err := p.expression()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(tokenBraceL); err != nil {
		return nil, err
	}
	then, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokenBraceR); err != nil {
		return nil, err
	}

	if _, ok := p.acceptKeyword(keywordElse); !ok {
		return nil, p.unexpected(tokenIdentifier)
	}

	if _, err := p.expect(tokenBraceL); err != nil {
		return nil, err
	}
	otherwise, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokenBraceR); err != nil {
		return nil, err
	}

	return &conditionalExpr{
		lhs:       lhs,
		operator:  operator,
		rhs:       rhs,
		then:      then,
		otherwise: otherwise,
	}, nil
}
