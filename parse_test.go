package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseText(t *testing.T, text string) []item {
	t.Helper()
	tokens, err := tokenize(&source{path: "justfile", text: text})
	require.NoError(t, err)
	items, err := parseTokens(tokens, 0)
	require.NoError(t, err)
	return items
}

func parseErrorKind(t *testing.T, text string) error {
	t.Helper()
	tokens, err := tokenize(&source{path: "justfile", text: text})
	require.NoError(t, err)
	_, err = parseTokens(tokens, 0)
	require.Error(t, err)
	var compile *compileError
	require.True(t, as(err, &compile))
	return compile.kind
}

func TestParseRecipe(t *testing.T) {
	items := parseText(t, "# builds the thing\nfoo bar='baz' *rest: pre (param 'x') && post\n  echo {{bar}}\n")
	require.Len(t, items, 1)

	r, ok := items[0].(*recipe)
	require.True(t, ok)
	assert.Equal(t, "foo", r.name.lexeme())
	assert.Equal(t, "builds the thing", r.doc)
	assert.False(t, r.quiet)
	assert.False(t, r.shebang)

	require.Len(t, r.parameters, 2)
	assert.Equal(t, "bar", r.parameters[0].name.lexeme())
	assert.Equal(t, paramDefault, r.parameters[0].kind)
	assert.Equal(t, "rest", r.parameters[1].name.lexeme())
	assert.Equal(t, paramStar, r.parameters[1].kind)

	require.Len(t, r.priors, 2)
	assert.Equal(t, "pre", r.priors[0].recipe.lexeme())
	assert.Equal(t, "param", r.priors[1].recipe.lexeme())
	assert.Len(t, r.priors[1].arguments, 1)

	require.Len(t, r.subsequents, 1)
	assert.Equal(t, "post", r.subsequents[0].recipe.lexeme())

	require.Len(t, r.body, 1)
	require.Len(t, r.body[0].fragments, 2)
}

func TestParseQuietAndPrivate(t *testing.T) {
	items := parseText(t, "@_hidden:\n  true\n")
	r := items[0].(*recipe)
	assert.True(t, r.quiet)
	assert.True(t, r.private)
}

func TestParseShebangRecipe(t *testing.T) {
	items := parseText(t, "script:\n  #!/usr/bin/env python3\n  print('hi')\n")
	r := items[0].(*recipe)
	assert.True(t, r.shebang)
	assert.True(t, r.body[0].isShebang())
	assert.False(t, r.body[0].isComment())
}

func TestParseAssignment(t *testing.T) {
	items := parseText(t, "export home := env_var('HOME') + '/sub'\nplain := 'x'\n")
	a := items[0].(*assignment)
	assert.True(t, a.export)
	assert.Equal(t, "home", a.name.lexeme())
	_, isConcat := a.value.(*concatExpr)
	assert.True(t, isConcat)

	b := items[1].(*assignment)
	assert.False(t, b.export)
}

func TestParseAlias(t *testing.T) {
	items := parseText(t, "alias b := build\n")
	a := items[0].(*alias)
	assert.Equal(t, "b", a.name.lexeme())
	assert.Equal(t, "build", a.target.lexeme())
}

func TestParseRecipeNamedAlias(t *testing.T) {
	items := parseText(t, "alias:\n  true\n")
	_, ok := items[0].(*recipe)
	assert.True(t, ok)
}

func TestParseSet(t *testing.T) {
	items := parseText(t, "set dotenv-load\nset shell := ['bash', '-c']\nset tempdir := '/tmp'\nset quiet := false\n")

	load := items[0].(*setItem)
	assert.Equal(t, "dotenv-load", load.setting)
	assert.True(t, load.boolValue)

	shell := items[1].(*setItem)
	assert.Equal(t, []string{"bash", "-c"}, shell.listValue)

	tempdir := items[2].(*setItem)
	assert.Equal(t, "/tmp", tempdir.stringValue)

	quiet := items[3].(*setItem)
	assert.False(t, quiet.boolValue)
}

func TestParseImportAndModule(t *testing.T) {
	items := parseText(t, "import 'a.just'\nimport? 'b.just'\nmod sub\nmod? opt 'dir/opt.just'\n")

	first := items[0].(*importItem)
	assert.Equal(t, "a.just", first.relative)
	assert.False(t, first.optional)

	second := items[1].(*importItem)
	assert.True(t, second.optional)

	mod := items[2].(*moduleItem)
	assert.Equal(t, "sub", mod.name.lexeme())
	assert.Empty(t, mod.path)

	opt := items[3].(*moduleItem)
	assert.True(t, opt.optional)
	assert.Equal(t, "dir/opt.just", opt.path)
}

func TestParseAttributes(t *testing.T) {
	items := parseText(t, "[no-cd, group('ci')]\n[confirm('really?')]\n[not-windows]\ncheck:\n  true\n")
	r := items[0].(*recipe)
	require.Len(t, r.attributes, 4)

	assert.Equal(t, attrNoCd, r.attributes[0].kind)
	assert.Equal(t, attrGroup, r.attributes[1].kind)
	assert.Equal(t, []string{"ci"}, r.attributes[1].arguments)
	assert.Equal(t, attrConfirm, r.attributes[2].kind)
	assert.Equal(t, []string{"really?"}, r.attributes[2].arguments)
	assert.Equal(t, attrWindows, r.attributes[3].kind)
	assert.True(t, r.attributes[3].inverted)
}

func TestParseConditionalExpression(t *testing.T) {
	items := parseText(t, "v := if os() =~ 'linux|openbsd' { 'nix' } else { 'other' }\n")
	a := items[0].(*assignment)
	cond, ok := a.value.(*conditionalExpr)
	require.True(t, ok)
	assert.Equal(t, opRegexMatch, cond.operator)
}

func TestParseJoinExpression(t *testing.T) {
	items := parseText(t, "p := 'a' / 'b'\nq := / 'rooted'\n")
	_, ok := items[0].(*assignment).value.(*joinExpr)
	assert.True(t, ok)
	rooted, ok := items[1].(*assignment).value.(*joinExpr)
	require.True(t, ok)
	assert.Nil(t, rooted.lhs)
}

func TestParseStringKinds(t *testing.T) {
	items := parseText(t, "a := \"esc\\naped\"\nb := 'raw\\n'\n")
	first := items[0].(*assignment).value.(*stringLiteral)
	assert.Equal(t, "esc\naped", first.cooked)
	second := items[1].(*assignment).value.(*stringLiteral)
	assert.Equal(t, `raw\n`, second.cooked)
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		text string
		kind error
	}{
		{"foo a a:\n", duplicateParameter{recipe: "foo", parameter: "a"}},
		{"foo a='1' b:\n", requiredFollowsDefault{parameter: "b"}},
		{"foo *a b:\n", parameterFollowsVariadic{parameter: "b"}},
		{"foo *a *b:\n", parameterFollowsVariadic{parameter: "b"}},
		{"foo: a a\n", duplicateDependency{recipe: "foo", dependency: "a"}},
		{"[nonsense]\nfoo:\n", unknownAttribute{attribute: "nonsense"}},
		{"[confirm('a', 'b')]\nfoo:\n", attributeArgumentCount{attribute: "confirm", found: 2, min: 0, max: 1}},
		{"[not-private]\nfoo:\n", invalidInvertedAttribute{attribute: "private"}},
		{"[no-cd, no-cd]\nfoo:\n", duplicateAttribute{attribute: "no-cd"}},
		{"[private]\nx := 'y'\n", invalidAttribute{item: "assignment", name: "x", attribute: "private"}},
		{"[linux]\nalias b := build\n", invalidAttribute{item: "alias", name: "b", attribute: "linux"}},
		{"[no-quiet]\n@foo:\n", quietConflict{recipe: "foo"}},
		{"x := \"bad\\q\"\n", invalidEscapeSequence{character: 'q'}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.kind, parseErrorKind(t, tc.text), "wrong kind for %q", tc.text)
	}
}

func TestParseUnexpectedToken(t *testing.T) {
	kind := parseErrorKind(t, "foo = 'bar'\n")
	_, ok := kind.(unexpectedToken)
	assert.True(t, ok, "got %#v", kind)
}
