// Error kinds for every stage of the pipeline. Compile errors carry the
// offending token and render a source excerpt with a caret underline;
// runtime errors carry recipe context and an exit code.

package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

const (
	exitSuccess = 0
	exitFailure = 1
)

// An error annotated with the token it was found at. Rendering includes the
// source line and a caret underline spanning the token.
type compileError struct {
	token token
	kind  error
}

func compileErrorAt(tok token, kind error) error {
	return &compileError{token: tok, kind: kind}
}

func (e *compileError) Unwrap() error { return e.kind }

func (e *compileError) Error() string {
	var b strings.Builder
	b.WriteString(e.kind.Error())
	b.WriteByte('\n')
	writeContext(&b, e.token)
	return b.String()
}

// writeContext appends a source excerpt for the token:
//
//	 --> justfile:3:5
//	  |
//	3 | foo: bar
//	  |      ^^^
func writeContext(b *strings.Builder, tok token) {
	line := tok.sourceLine()
	number := fmt.Sprintf("%d", tok.line)
	gutter := strings.Repeat(" ", len(number))

	fmt.Fprintf(b, " --> %s:%d:%d\n", tok.src.path, tok.line, tok.column+1)
	fmt.Fprintf(b, "%s |\n", gutter)
	fmt.Fprintf(b, "%s | %s\n", number, line)

	width := tok.length
	if width < 1 {
		width = 1
	}
	if tok.column+width > len(line) {
		width = len(line) - tok.column
		if width < 1 {
			width = 1
		}
	}
	fmt.Fprintf(b, "%s | %s%s", gutter, strings.Repeat(" ", tok.column), strings.Repeat("^", width))
}

// exitCoder lets runtime errors pick the process exit code. Anything that
// does not implement it exits with exitFailure.
type exitCoder interface {
	exitCode() int
}

func exitCodeOf(err error) int {
	if coder, ok := err.(exitCoder); ok {
		return coder.exitCode()
	}
	var compile *compileError
	if as(err, &compile) {
		if coder, ok := compile.kind.(exitCoder); ok {
			return coder.exitCode()
		}
	}
	return exitFailure
}

// as is errors.As without the import noise at call sites.
func as[T error](err error, target *T) bool {
	for err != nil {
		if t, ok := err.(T); ok {
			*target = t
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func printError(err error) {
	color.New(color.FgRed, color.Bold).Fprint(stderr, "error")
	fmt.Fprintf(stderr, ": %s\n", err)
}

// Lex errors.

type unknownStartOfToken struct{ character rune }

func (e unknownStartOfToken) Error() string {
	return fmt.Sprintf("unknown start of token: %q", e.character)
}

type unterminatedString struct{ kind stringKind }

func (e unterminatedString) Error() string {
	return fmt.Sprintf("unterminated %s", e.kind.description())
}

type unterminatedInterpolation struct{}

func (e unterminatedInterpolation) Error() string {
	return "unterminated interpolation"
}

type mixedLeadingWhitespace struct{ whitespace string }

func (e mixedLeadingWhitespace) Error() string {
	return fmt.Sprintf(
		"found a mix of tabs and spaces in leading whitespace: %s; leading whitespace may consist of tabs or spaces, but not both",
		showWhitespace(e.whitespace),
	)
}

type inconsistentLeadingWhitespace struct{ expected, found string }

func (e inconsistentLeadingWhitespace) Error() string {
	return fmt.Sprintf(
		"recipe line has inconsistent leading whitespace; recipe started with %s but found line with %s",
		showWhitespace(e.expected), showWhitespace(e.found),
	)
}

type outerShebang struct{}

func (e outerShebang) Error() string {
	return "'#!' is reserved syntax outside of recipes"
}

type invalidEscapeSequence struct{ character rune }

func (e invalidEscapeSequence) Error() string {
	return fmt.Sprintf("'\\%c' is not a valid escape sequence", e.character)
}

func showWhitespace(ws string) string {
	if ws == "" {
		return "no leading whitespace"
	}
	replacer := strings.NewReplacer(" ", "␣", "\t", "␉")
	return "'" + replacer.Replace(ws) + "'"
}

// Parse errors.

type unexpectedToken struct {
	expected []tokenKind
	found    tokenKind
}

func (e unexpectedToken) Error() string {
	names := make([]string, len(e.expected))
	for i, kind := range e.expected {
		names[i] = kind.String()
	}
	return fmt.Sprintf("expected %s, but found %s", strings.Join(names, ", "), e.found)
}

type duplicateParameter struct{ recipe, parameter string }

func (e duplicateParameter) Error() string {
	return fmt.Sprintf("recipe `%s` has duplicate parameter `%s`", e.recipe, e.parameter)
}

type duplicateDependency struct{ recipe, dependency string }

func (e duplicateDependency) Error() string {
	return fmt.Sprintf("recipe `%s` has duplicate dependency `%s`", e.recipe, e.dependency)
}

type duplicateRecipe struct {
	recipe string
	first  int
}

func (e duplicateRecipe) Error() string {
	return fmt.Sprintf("recipe `%s` first defined on line %d is redefined", e.recipe, e.first)
}

type duplicateVariable struct{ variable string }

func (e duplicateVariable) Error() string {
	return fmt.Sprintf("variable `%s` has multiple definitions", e.variable)
}

type duplicateAlias struct {
	alias string
	first int
}

func (e duplicateAlias) Error() string {
	return fmt.Sprintf("alias `%s` first defined on line %d is redefined", e.alias, e.first)
}

type parameterFollowsVariadic struct{ parameter string }

func (e parameterFollowsVariadic) Error() string {
	return fmt.Sprintf("parameter `%s` follows variadic parameter", e.parameter)
}

type requiredFollowsDefault struct{ parameter string }

func (e requiredFollowsDefault) Error() string {
	return fmt.Sprintf("non-default parameter `%s` follows default parameter", e.parameter)
}

type unknownAttribute struct{ attribute string }

func (e unknownAttribute) Error() string {
	return fmt.Sprintf("unknown attribute `%s`", e.attribute)
}

type attributeArgumentCount struct {
	attribute string
	found     int
	min       int
	max       int
}

func (e attributeArgumentCount) Error() string {
	expected := fmt.Sprintf("%d", e.min)
	if e.max != e.min {
		expected = fmt.Sprintf("%d to %d", e.min, e.max)
	}
	return fmt.Sprintf("attribute `%s` got %d arguments but takes %s", e.attribute, e.found, expected)
}

type invalidAttribute struct {
	item      string
	name      string
	attribute string
}

func (e invalidAttribute) Error() string {
	return fmt.Sprintf("%s `%s` has invalid attribute `%s`", e.item, e.name, e.attribute)
}

type invalidInvertedAttribute struct{ attribute string }

func (e invalidInvertedAttribute) Error() string {
	return fmt.Sprintf("attribute `%s` cannot be inverted", e.attribute)
}

type duplicateAttribute struct{ attribute string }

func (e duplicateAttribute) Error() string {
	return fmt.Sprintf("duplicate attribute `%s`", e.attribute)
}

type unknownSetting struct{ setting string }

func (e unknownSetting) Error() string {
	return fmt.Sprintf("unknown setting `%s`", e.setting)
}

type duplicateSet struct {
	setting string
	first   int
}

func (e duplicateSet) Error() string {
	return fmt.Sprintf("setting `%s` first set on line %d is set again", e.setting, e.first)
}

type quietConflict struct{ recipe string }

func (e quietConflict) Error() string {
	return fmt.Sprintf("recipe `%s` has both `@` and the `[no-quiet]` attribute", e.recipe)
}

// Resolve errors.

type unknownDependency struct{ recipe, unknown string }

func (e unknownDependency) Error() string {
	return fmt.Sprintf("recipe `%s` has unknown dependency `%s`", e.recipe, e.unknown)
}

type undefinedVariable struct{ variable string }

func (e undefinedVariable) Error() string {
	return fmt.Sprintf("variable `%s` not defined", e.variable)
}

type circularRecipeDependency struct {
	recipe string
	cycle  []string
}

func (e circularRecipeDependency) Error() string {
	if len(e.cycle) == 2 {
		return fmt.Sprintf("recipe `%s` depends on itself", e.recipe)
	}
	return fmt.Sprintf("recipe `%s` has circular dependency `%s`", e.recipe, strings.Join(e.cycle, " -> "))
}

type circularVariableDependency struct {
	variable string
	cycle    []string
}

func (e circularVariableDependency) Error() string {
	if len(e.cycle) == 2 {
		return fmt.Sprintf("variable `%s` is defined in terms of itself", e.variable)
	}
	return fmt.Sprintf("variable `%s` depends on its own value: `%s`", e.variable, strings.Join(e.cycle, " -> "))
}

type dependencyHasParameters struct {
	recipe     string
	dependency string
	found      int
	min        int
	max        int
}

func (e dependencyHasParameters) Error() string {
	expected := fmt.Sprintf("%d", e.min)
	if e.max != e.min {
		expected = fmt.Sprintf("%d to %d", e.min, e.max)
	}
	return fmt.Sprintf(
		"dependency `%s` of recipe `%s` got %d arguments but takes %s",
		e.dependency, e.recipe, e.found, expected,
	)
}

type parameterShadowsVariable struct{ parameter string }

func (e parameterShadowsVariable) Error() string {
	return fmt.Sprintf("parameter `%s` shadows variable of the same name", e.parameter)
}

type unknownAliasTarget struct{ alias, target string }

func (e unknownAliasTarget) Error() string {
	return fmt.Sprintf("alias `%s` has an unknown target `%s`", e.alias, e.target)
}

type functionArgumentCount struct {
	function string
	found    int
	min      int
	max      int
}

func (e functionArgumentCount) Error() string {
	expected := fmt.Sprintf("%d", e.min)
	if e.max != e.min {
		if e.max == -1 {
			expected = fmt.Sprintf("at least %d", e.min)
		} else {
			expected = fmt.Sprintf("%d to %d", e.min, e.max)
		}
	}
	return fmt.Sprintf("function `%s` called with %d arguments but takes %s", e.function, e.found, expected)
}

type unknownFunction struct{ function string }

func (e unknownFunction) Error() string {
	return fmt.Sprintf("call to unknown function `%s`", e.function)
}

type circularImport struct{ current, imported string }

func (e circularImport) Error() string {
	return fmt.Sprintf("import `%s` in `%s` is circular", e.imported, e.current)
}

type missingImport struct{ path string }

func (e missingImport) Error() string {
	return fmt.Sprintf("could not find source file for import `%s`", e.path)
}

type missingModuleFile struct{ module string }

func (e missingModuleFile) Error() string {
	return fmt.Sprintf("could not find source file for module `%s`", e.module)
}

type unstableFeature struct{ message string }

func (e unstableFeature) Error() string {
	return e.message + " Invoke with `--unstable` or set `JUST_UNSTABLE` to enable unstable features."
}

// Runtime errors.

type unknownRecipes struct {
	recipes    []string
	suggestion string
}

func (e unknownRecipes) Error() string {
	noun := "recipe"
	if len(e.recipes) > 1 {
		noun = "recipes"
	}
	message := fmt.Sprintf("justfile does not contain %s `%s`", noun, strings.Join(e.recipes, "`, `"))
	if e.suggestion != "" {
		message += fmt.Sprintf(". Did you mean `%s`?", e.suggestion)
	}
	return message
}

type unknownOverrides struct{ overrides []string }

func (e unknownOverrides) Error() string {
	noun := "variable"
	if len(e.overrides) > 1 {
		noun = "variables"
	}
	return fmt.Sprintf("%s `%s` overridden on the command line but not present in justfile", noun, strings.Join(e.overrides, "`, `"))
}

type unknownSubmodule struct{ path string }

func (e unknownSubmodule) Error() string {
	return fmt.Sprintf("justfile does not contain submodule `%s`", e.path)
}

type argumentCountMismatch struct {
	recipe string
	found  int
	min    int
	max    int
}

func (e argumentCountMismatch) Error() string {
	noun := "arguments"
	if e.found == 1 {
		noun = "argument"
	}
	if e.min == e.max {
		return fmt.Sprintf("recipe `%s` got %d %s but takes %d", e.recipe, e.found, noun, e.min)
	}
	if e.max == unlimitedArguments {
		return fmt.Sprintf("recipe `%s` got %d %s but takes at least %d", e.recipe, e.found, noun, e.min)
	}
	return fmt.Sprintf("recipe `%s` got %d %s but takes %d to %d", e.recipe, e.found, noun, e.min, e.max)
}

type backtickFailed struct{ status int }

func (e backtickFailed) Error() string {
	return fmt.Sprintf("backtick failed with exit code %d", e.status)
}

func (e backtickFailed) exitCode() int { return e.status }

type functionCallFailed struct {
	function string
	message  string
}

func (e functionCallFailed) Error() string {
	return fmt.Sprintf("call to function `%s` failed: %s", e.function, e.message)
}

type shebangFailed struct {
	recipe string
	err    error
}

func (e shebangFailed) Error() string {
	return fmt.Sprintf("recipe `%s` could not be run as a script: %s", e.recipe, e.err)
}

func (e shebangFailed) Unwrap() error { return e.err }

type codeFailed struct {
	recipe string
	line   int // 0 when the recipe ran as a script
	code   int
}

func (e codeFailed) Error() string {
	if e.line > 0 {
		return fmt.Sprintf("Recipe `%s` failed on line %d with exit code %d", e.recipe, e.line, e.code)
	}
	return fmt.Sprintf("Recipe `%s` failed with exit code %d", e.recipe, e.code)
}

func (e codeFailed) exitCode() int { return e.code }

type signalFailed struct {
	recipe string
	signal int
}

func (e signalFailed) Error() string {
	return fmt.Sprintf("Recipe `%s` was terminated by signal %d", e.recipe, e.signal)
}

func (e signalFailed) exitCode() int { return 128 + e.signal }

type commandNotFound struct {
	recipe  string
	command string
	err     error
}

func (e commandNotFound) Error() string {
	return fmt.Sprintf("recipe `%s` could not be run because just could not find the shell: %s", e.recipe, e.err)
}

func (e commandNotFound) Unwrap() error { return e.err }

func (e commandNotFound) exitCode() int { return 127 }

type cacheFileRead struct {
	path string
	err  error
}

func (e cacheFileRead) Error() string {
	return fmt.Sprintf("failed to read cache file `%s`: %s", e.path, e.err)
}

func (e cacheFileRead) Unwrap() error { return e.err }

type cacheFileWrite struct {
	path string
	err  error
}

func (e cacheFileWrite) Error() string {
	return fmt.Sprintf("failed to write cache file `%s`: %s", e.path, e.err)
}

func (e cacheFileWrite) Unwrap() error { return e.err }

type dotenvLoadError struct{ err error }

func (e dotenvLoadError) Error() string {
	return fmt.Sprintf("failed to load environment file: %s", e.err)
}

func (e dotenvLoadError) Unwrap() error { return e.err }

type confirmDeclined struct{ recipe string }

func (e confirmDeclined) Error() string {
	return fmt.Sprintf("recipe `%s` was not confirmed", e.recipe)
}

type internalError struct{ message string }

func (e internalError) Error() string {
	return fmt.Sprintf(
		"internal error: %s; consider filing an issue: https://github.com/casey/j/issues/new",
		e.message,
	)
}
