package main

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lexText(t *testing.T, text string) []token {
	t.Helper()
	tokens, err := tokenize(&source{path: "justfile", text: text})
	require.NoError(t, err)
	return tokens
}

func kinds(tokens []token) []tokenKind {
	out := make([]tokenKind, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.kind
	}
	return out
}

func TestLexSimpleRecipe(t *testing.T) {
	tokens := lexText(t, "foo:\n  echo hi\n")
	want := []tokenKind{
		tokenIdentifier, tokenColon, tokenEol,
		tokenIndent, tokenText, tokenEol,
		tokenDedent, tokenEof,
	}
	if diff := cmp.Diff(want, kinds(tokens)); diff != "" {
		t.Errorf("token kinds mismatch (-want +got):\n%s", diff)
	}
}

func TestLexInterpolation(t *testing.T) {
	tokens := lexText(t, "foo bar='baz':\n  @echo {{bar}}\n")
	want := []tokenKind{
		tokenIdentifier, tokenWhitespace, tokenIdentifier, tokenEquals, tokenString, tokenColon, tokenEol,
		tokenIndent, tokenText, tokenInterpolationStart, tokenIdentifier, tokenInterpolationEnd, tokenEol,
		tokenDedent, tokenEof,
	}
	if diff := cmp.Diff(want, kinds(tokens)); diff != "" {
		t.Errorf("token kinds mismatch (-want +got):\n%s", diff)
	}
}

func TestLexRoundTrip(t *testing.T) {
	cases := []string{
		"",
		"foo:\n",
		"foo:\n  echo hi\n",
		"# comment\nfoo: bar && baz\n\tbody {{ var }} tail\n\nbar:\nbaz:\n",
		"x := \"cooked\\n\" + 'raw' + `tick`\n",
		"set shell := [\"bash\", \"-c\"]\n",
		"foo a b='2' *rest:\n  echo {{a}} {{b}} {{rest}}\n  # indented comment\n",
		"alias b := build\n\nbuild:\n  cc main.c\n",
		"m := '''\nmulti\nline\n'''\n",
		"weird:\n  echo {{{{literal}}}}\n",
		"a:\n  one\n\n  two\n",
		"import? 'other.just'\nmod sub\n",
		"[no-cd]\n[group('ci')]\ncheck:\n  true\n",
		"v := if os() == \"linux\" { \"l\" } else { \"o\" }\n",
		"crlf:\r\n  echo hi\r\n",
	}
	for _, text := range cases {
		tokens := lexText(t, text)
		var rendered strings.Builder
		for _, tok := range tokens {
			rendered.WriteString(tok.lexeme())
		}
		assert.Equal(t, text, rendered.String(), "round trip failed for %q", text)
	}
}

func TestLexBlankAndCommentLinesKeepIndentation(t *testing.T) {
	text := "foo:\n  one\n\n# comment at column zero\n  two\n"
	tokens := lexText(t, text)

	indents, dedents := 0, 0
	for _, tok := range tokens {
		switch tok.kind {
		case tokenIndent:
			indents++
		case tokenDedent:
			dedents++
		}
	}
	assert.Equal(t, 1, indents)
	assert.Equal(t, 1, dedents)
}

func TestLexCommentAtBodyIndentIsText(t *testing.T) {
	tokens := lexText(t, "foo:\n  # shell comment\n")
	var texts []string
	for _, tok := range tokens {
		if tok.kind == tokenText {
			texts = append(texts, tok.lexeme())
		}
	}
	require.Equal(t, []string{"# shell comment"}, texts)
}

func TestLexTokenPositions(t *testing.T) {
	tokens := lexText(t, "abc := 'xyz'\n")
	first := tokens[0]
	assert.Equal(t, tokenIdentifier, first.kind)
	assert.Equal(t, 0, first.offset)
	assert.Equal(t, 1, first.line)
	assert.Equal(t, 0, first.column)
	assert.Equal(t, "abc", first.lexeme())

	str := tokens[4]
	assert.Equal(t, tokenString, str.kind)
	assert.Equal(t, 7, str.offset)
	assert.Equal(t, 7, str.column)
	assert.Equal(t, "'xyz'", str.lexeme())
}

func TestLexErrors(t *testing.T) {
	cases := []struct {
		text string
		kind error
	}{
		{"x := 'unterminated\n", unterminatedString{kind: stringRaw}},
		{"x := \"unterminated", unterminatedString{kind: stringCooked}},
		{"x := `tick\n", unterminatedString{kind: stringBacktick}},
		{"#!/bin/sh\n", outerShebang{}},
		{"foo:\n \ttab and space\n", mixedLeadingWhitespace{whitespace: " \t"}},
		{"foo:\n    a\n  b\n", inconsistentLeadingWhitespace{expected: "    ", found: "  "}},
		{"x := ^\n", unknownStartOfToken{character: '^'}},
	}
	for _, tc := range cases {
		_, err := tokenize(&source{path: "justfile", text: tc.text})
		require.Error(t, err, "expected error for %q", tc.text)
		var compile *compileError
		require.True(t, as(err, &compile), "expected a compile error for %q", tc.text)
		assert.Equal(t, tc.kind, compile.kind, "wrong kind for %q", tc.text)
	}
}

func TestLexTripleStringSpansLines(t *testing.T) {
	tokens := lexText(t, "x := '''\na\nb\n'''\n")
	var str token
	for _, tok := range tokens {
		if tok.kind == tokenString {
			str = tok
		}
	}
	assert.Equal(t, "'''\na\nb\n'''", str.lexeme())
}
