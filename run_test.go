//go:build unix

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// quietStderr swaps the package stderr for a buffer for one test.
func quietStderr(t *testing.T) *strings.Builder {
	t.Helper()
	old := stderr
	buffer := &strings.Builder{}
	stderr = buffer
	t.Cleanup(func() { stderr = old })
	return buffer
}

// newTestRunner compiles a justfile written into dir and wires a runner
// around it, with an inert signal relay.
func newTestRunner(t *testing.T, dir, justfileText string) *runner {
	t.Helper()

	path := filepath.Join(dir, "justfile")
	require.NoError(t, os.WriteFile(path, []byte(justfileText), 0o644))

	cfg := &config{
		invocationDirectory: dir,
		overrides:           map[string]string{},
		yes:                 true,
	}
	s := &search{
		justfile:         path,
		workingDirectory: dir,
		cacheFile:        cacheFilePath(dir, path),
	}
	root, err := compile(cfg, s)
	require.NoError(t, err)

	relay := &signalRelay{}
	relay.current.Store("")
	return newRunner(cfg, s, root, relay)
}

func readOut(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "out"))
	if err != nil {
		return ""
	}
	return string(data)
}

func TestRunDependencyOrder(t *testing.T) {
	quietStderr(t)
	dir := t.TempDir()
	rn := newTestRunner(t, dir, "a:\n @printf A >> out\nb: a\n @printf B >> out\n")
	require.NoError(t, rn.run([]string{"b"}))
	assert.Equal(t, "AB", readOut(t, dir))
}

func TestRunSchedulingIdempotence(t *testing.T) {
	quietStderr(t)
	dir := t.TempDir()
	rn := newTestRunner(t, dir, "x:\n @printf X >> out\na: x\nb: x\nall: a b\n")
	require.NoError(t, rn.run([]string{"all"}))
	assert.Equal(t, "X", readOut(t, dir))
}

func TestRunDistinctArgumentsReschedule(t *testing.T) {
	quietStderr(t)
	dir := t.TempDir()
	rn := newTestRunner(t, dir, "t v:\n @printf %s {{v}} >> out\na: (t '1') (t '2') (t '1')\n")
	require.NoError(t, rn.run([]string{"a"}))
	assert.Equal(t, "12", readOut(t, dir))
}

func TestRunSubsequents(t *testing.T) {
	quietStderr(t)
	dir := t.TempDir()
	rn := newTestRunner(t, dir, "main: && post\n @printf M >> out\npost:\n @printf P >> out\n")
	require.NoError(t, rn.run([]string{"main"}))
	assert.Equal(t, "MP", readOut(t, dir))
}

func TestRunDefaultParameter(t *testing.T) {
	quietStderr(t)
	dir := t.TempDir()
	text := "foo bar='baz':\n @printf %s {{bar}} >> out\n"

	rn := newTestRunner(t, dir, text)
	require.NoError(t, rn.run([]string{"foo"}))
	assert.Equal(t, "baz", readOut(t, dir))

	require.NoError(t, os.Remove(filepath.Join(dir, "out")))
	rn = newTestRunner(t, dir, text)
	require.NoError(t, rn.run([]string{"foo", "qux"}))
	assert.Equal(t, "qux", readOut(t, dir))
}

func TestRunArgumentCountMismatch(t *testing.T) {
	quietStderr(t)
	dir := t.TempDir()
	rn := newTestRunner(t, dir, "foo bar='baz':\n @echo {{bar}}\n")
	err := rn.run([]string{"foo", "a", "b"})
	require.Error(t, err)

	var mismatch argumentCountMismatch
	require.True(t, as(err, &mismatch))
	assert.Equal(t, argumentCountMismatch{recipe: "foo", found: 2, min: 0, max: 1}, mismatch)
}

func TestRunUnknownRecipeSuggestion(t *testing.T) {
	quietStderr(t)
	dir := t.TempDir()
	rn := newTestRunner(t, dir, "build:\n @true\n")
	err := rn.run([]string{"biuld"})
	require.Error(t, err)

	var unknown unknownRecipes
	require.True(t, as(err, &unknown))
	assert.Equal(t, []string{"biuld"}, unknown.recipes)
	assert.Equal(t, "build", unknown.suggestion)
}

func TestRunUnknownOverride(t *testing.T) {
	quietStderr(t)
	dir := t.TempDir()
	rn := newTestRunner(t, dir, "v := 'x'\nr:\n @true\n")
	rn.config.overrides["nope"] = "1"
	err := rn.run([]string{"r"})
	require.Error(t, err)

	var unknown unknownOverrides
	require.True(t, as(err, &unknown))
	assert.Equal(t, []string{"nope"}, unknown.overrides)
}

func TestRunAlias(t *testing.T) {
	quietStderr(t)
	dir := t.TempDir()
	rn := newTestRunner(t, dir, "alias b := build\nbuild:\n @printf B >> out\n")
	require.NoError(t, rn.run([]string{"b"}))
	assert.Equal(t, "B", readOut(t, dir))
}

func TestRunDotenv(t *testing.T) {
	quietStderr(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("K=v\n"), 0o644))
	rn := newTestRunner(t, dir, "set dotenv-load\nr:\n @printf %s \"$K\" >> out\n")
	require.NoError(t, rn.run([]string{"r"}))
	assert.Equal(t, "v", readOut(t, dir))
}

func TestRunExportedAssignment(t *testing.T) {
	quietStderr(t)
	dir := t.TempDir()
	rn := newTestRunner(t, dir, "export GREETING := 'hey'\nr:\n @printf %s \"$GREETING\" >> out\n")
	require.NoError(t, rn.run([]string{"r"}))
	assert.Equal(t, "hey", readOut(t, dir))
}

func TestRunExportedParameter(t *testing.T) {
	quietStderr(t)
	dir := t.TempDir()
	rn := newTestRunner(t, dir, "r $arg:\n @printf %s \"$arg\" >> out\n")
	require.NoError(t, rn.run([]string{"r", "bound"}))
	assert.Equal(t, "bound", readOut(t, dir))
}

func TestRunPositionalArguments(t *testing.T) {
	quietStderr(t)
	dir := t.TempDir()
	rn := newTestRunner(t, dir, "set positional-arguments\nr a b:\n @printf '%s-%s' \"$1\" \"$2\" >> out\n")
	require.NoError(t, rn.run([]string{"r", "x", "y"}))
	assert.Equal(t, "x-y", readOut(t, dir))
}

func TestRunIgnoredExitCode(t *testing.T) {
	quietStderr(t)
	dir := t.TempDir()
	rn := newTestRunner(t, dir, "r:\n @-false\n @printf ok >> out\n")
	require.NoError(t, rn.run([]string{"r"}))
	assert.Equal(t, "ok", readOut(t, dir))
}

func TestRunFailurePropagation(t *testing.T) {
	quietStderr(t)
	dir := t.TempDir()
	rn := newTestRunner(t, dir, "r:\n @exit 3\n @printf unreached >> out\nafter: r\n @printf unreached >> out\n")
	err := rn.run([]string{"after"})
	require.Error(t, err)

	var code codeFailed
	require.True(t, as(err, &code))
	assert.Equal(t, "r", code.recipe)
	assert.Equal(t, 2, code.line)
	assert.Equal(t, 3, code.code)
	assert.Equal(t, 3, exitCodeOf(err))
	assert.Empty(t, readOut(t, dir))
}

func TestRunNoExitMessage(t *testing.T) {
	quietStderr(t)
	dir := t.TempDir()
	rn := newTestRunner(t, dir, "[no-exit-message]\nr:\n @exit 9\n")
	err := rn.run([]string{"r"})
	require.Error(t, err)

	var silent silentError
	require.True(t, as(err, &silent))
	assert.Equal(t, 9, exitCodeOf(err))
}

func TestRunShebangRecipe(t *testing.T) {
	quietStderr(t)
	dir := t.TempDir()
	rn := newTestRunner(t, dir, "r:\n #!/bin/sh\n printf S >> out\n")
	require.NoError(t, rn.run([]string{"r"}))
	assert.Equal(t, "S", readOut(t, dir))
}

func TestRunShebangFailureHasNoLine(t *testing.T) {
	quietStderr(t)
	dir := t.TempDir()
	rn := newTestRunner(t, dir, "r:\n #!/bin/sh\n exit 5\n")
	err := rn.run([]string{"r"})
	require.Error(t, err)

	var code codeFailed
	require.True(t, as(err, &code))
	assert.Equal(t, 0, code.line)
	assert.Equal(t, 5, code.code)
}

func TestRunEmptyBodySucceeds(t *testing.T) {
	quietStderr(t)
	dir := t.TempDir()
	rn := newTestRunner(t, dir, "r:\n")
	require.NoError(t, rn.run([]string{"r"}))
}

func TestRunDefaultRecipe(t *testing.T) {
	quietStderr(t)
	dir := t.TempDir()
	rn := newTestRunner(t, dir, "first:\n @printf F >> out\nsecond:\n @printf S >> out\n")
	require.NoError(t, rn.run(nil))
	assert.Equal(t, "F", readOut(t, dir))
}

func TestRunDryRun(t *testing.T) {
	out := quietStderr(t)
	dir := t.TempDir()
	rn := newTestRunner(t, dir, "r:\n printf hi >> out\n")
	rn.config.dryRun = true
	require.NoError(t, rn.run([]string{"r"}))
	assert.Empty(t, readOut(t, dir))
	assert.Contains(t, out.String(), "printf hi >> out")
}

func TestRunEchoPolicy(t *testing.T) {
	out := quietStderr(t)
	dir := t.TempDir()
	rn := newTestRunner(t, dir, "loud:\n true\nsilent:\n @true\n")
	require.NoError(t, rn.run([]string{"loud", "silent"}))
	assert.Contains(t, out.String(), "true")
	lines := strings.Count(out.String(), "true")
	assert.Equal(t, 1, lines, "silent line must not echo")
}

func TestRunCachedRecipe(t *testing.T) {
	out := quietStderr(t)
	dir := t.TempDir()
	text := "[cached]\nr:\n @printf hi >> out\n"

	rn := newTestRunner(t, dir, text)
	require.NoError(t, rn.run([]string{"r"}))
	assert.Equal(t, "hi", readOut(t, dir))
	assert.NotContains(t, out.String(), "Skipping")

	// The cache file is written on success and carries the version tag and
	// a 64-hex-character hash.
	data, err := os.ReadFile(rn.search.cacheFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"version": "unstable-1"`)

	store := openCache(rn.search)
	hash, ok := store.lookup("r")
	require.True(t, ok)
	assert.Len(t, hash, 64)
	assert.Equal(t, strings.ToLower(hash), hash)

	// Second run with an identical body skips execution.
	rn = newTestRunner(t, dir, text)
	require.NoError(t, rn.run([]string{"r"}))
	assert.Equal(t, "hi", readOut(t, dir))
	assert.Contains(t, out.String(), "===> Hash of recipe body of `r` matches last run. Skipping...")

	// Changing the body invalidates the hash.
	rn = newTestRunner(t, dir, "[cached]\nr:\n @printf bye >> out\n")
	require.NoError(t, rn.run([]string{"r"}))
	assert.Equal(t, "hibye", readOut(t, dir))
}

func TestRunCachedRecipeParameterSensitivity(t *testing.T) {
	quietStderr(t)
	dir := t.TempDir()
	text := "[cached]\nr v='a':\n @printf %s {{v}} >> out\n"

	rn := newTestRunner(t, dir, text)
	require.NoError(t, rn.run([]string{"r", "x"}))
	rn = newTestRunner(t, dir, text)
	require.NoError(t, rn.run([]string{"r", "y"}))
	assert.Equal(t, "xy", readOut(t, dir))
}

func TestRunCachedDependencyChain(t *testing.T) {
	quietStderr(t)
	dir := t.TempDir()
	deps := "[cached]\nbase:\n @printf %s B1 >> out\n[cached]\ntop: base\n @printf T >> out\n"

	rn := newTestRunner(t, dir, deps)
	require.NoError(t, rn.run([]string{"top"}))
	assert.Equal(t, "B1T", readOut(t, dir))

	// Upstream body change re-runs the dependent even though its own body
	// is unchanged.
	changed := "[cached]\nbase:\n @printf %s B2 >> out\n[cached]\ntop: base\n @printf T >> out\n"
	rn = newTestRunner(t, dir, changed)
	require.NoError(t, rn.run([]string{"top"}))
	assert.Equal(t, "B1TB2T", readOut(t, dir))
}

func TestRunQuietSetting(t *testing.T) {
	out := quietStderr(t)
	dir := t.TempDir()
	rn := newTestRunner(t, dir, "set quiet\nr:\n true\n")
	require.NoError(t, rn.run([]string{"r"}))
	assert.NotContains(t, out.String(), "true")
}

func TestRunPlatformGate(t *testing.T) {
	quietStderr(t)
	dir := t.TempDir()
	rn := newTestRunner(t, dir, "all: gated\n @printf A >> out\n[windows]\ngated:\n @printf W >> out\n")
	require.NoError(t, rn.run([]string{"all"}))
	assert.Equal(t, "A", readOut(t, dir))
}

func TestRunWorkingDirectoryAttribute(t *testing.T) {
	quietStderr(t)
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	rn := newTestRunner(t, dir, "[working-directory('sub')]\nr:\n @printf here > marker\n")
	require.NoError(t, rn.run([]string{"r"}))
	_, err := os.Stat(filepath.Join(dir, "sub", "marker"))
	assert.NoError(t, err)
}

func TestGroupConsumesArgsGreedily(t *testing.T) {
	quietStderr(t)
	dir := t.TempDir()
	rn := newTestRunner(t, dir, "a v:\n @printf %s {{v}} >> out\nb:\n @printf B >> out\n")
	require.NoError(t, rn.run([]string{"a", "x", "b"}))
	assert.Equal(t, "xB", readOut(t, dir))
}
