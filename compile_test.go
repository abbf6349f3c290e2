package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileDir(t *testing.T, files map[string]string) (*justfile, error) {
	t.Helper()
	dir := t.TempDir()
	for name, text := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	}
	cfg := &config{invocationDirectory: dir, overrides: map[string]string{}}
	s := &search{
		justfile:         filepath.Join(dir, "justfile"),
		workingDirectory: dir,
	}
	return compile(cfg, s)
}

func TestCompileImportMerges(t *testing.T) {
	j, err := compileDir(t, map[string]string{
		"justfile": "import 'lib.just'\nmain: helper\n @true\n",
		"lib.just": "helper:\n @true\nshared := 'x'\n",
	})
	require.NoError(t, err)
	assert.Contains(t, j.recipes, "main")
	assert.Contains(t, j.recipes, "helper")
	assert.Contains(t, j.assignments, "shared")
}

func TestCompileOptionalImportMissing(t *testing.T) {
	j, err := compileDir(t, map[string]string{
		"justfile": "import? 'absent.just'\nmain:\n @true\n",
	})
	require.NoError(t, err)
	assert.Len(t, j.recipes, 1)
}

func TestCompileRequiredImportMissing(t *testing.T) {
	_, err := compileDir(t, map[string]string{
		"justfile": "import 'absent.just'\nmain:\n @true\n",
	})
	require.Error(t, err)
	var compile *compileError
	require.True(t, as(err, &compile))
	assert.Equal(t, missingImport{path: "absent.just"}, compile.kind)
}

func TestCompileCircularImport(t *testing.T) {
	_, err := compileDir(t, map[string]string{
		"justfile": "import 'a.just'\n",
		"a.just":   "import 'b.just'\n",
		"b.just":   "import 'a.just'\n",
	})
	require.Error(t, err)
	var compile *compileError
	require.True(t, as(err, &compile))
	_, ok := compile.kind.(circularImport)
	assert.True(t, ok, "got %#v", compile.kind)
}

func TestCompileImportDuplicateRecipe(t *testing.T) {
	_, err := compileDir(t, map[string]string{
		"justfile": "import 'lib.just'\na:\n @true\n",
		"lib.just": "a:\n @true\n",
	})
	require.Error(t, err)

	j, err := compileDir(t, map[string]string{
		"justfile": "set allow-duplicate-recipes\nimport 'lib.just'\na:\n @printf main\n",
		"lib.just": "a:\n @printf lib\n",
	})
	require.NoError(t, err)
	require.Len(t, j.recipeOrder, 1)
}

func TestCompileModule(t *testing.T) {
	j, err := compileDir(t, map[string]string{
		"justfile": "mod sub\nmain:\n @true\n",
		"sub.just": "inner:\n @true\n",
	})
	require.NoError(t, err)
	require.Contains(t, j.modules, "sub")

	r, err := j.lookupRecipe([]string{"sub", "inner"})
	require.NoError(t, err)
	assert.Equal(t, "sub::inner", r.namepath)
	assert.Equal(t, 1, r.depth)

	// Submodule recipes default to the parent's working directory.
	assert.Equal(t, j.workingDirectory, r.workingDirectory)
}

func TestCompileModuleDirectoryConventions(t *testing.T) {
	j, err := compileDir(t, map[string]string{
		"justfile":     "mod sub\n",
		"sub/mod.just": "inner:\n @true\n",
	})
	require.NoError(t, err)
	_, err = j.lookupRecipe([]string{"sub", "inner"})
	assert.NoError(t, err)
}

func TestCompileOptionalModuleMissing(t *testing.T) {
	j, err := compileDir(t, map[string]string{
		"justfile": "mod? absent\nmain:\n @true\n",
	})
	require.NoError(t, err)
	assert.Empty(t, j.modules)
}

func TestCompileMissingModule(t *testing.T) {
	_, err := compileDir(t, map[string]string{
		"justfile": "mod absent\n",
	})
	require.Error(t, err)
	var compile *compileError
	require.True(t, as(err, &compile))
	assert.Equal(t, missingModuleFile{module: "absent"}, compile.kind)
}

func TestCompileUnknownSubmodulePath(t *testing.T) {
	j, err := compileDir(t, map[string]string{
		"justfile": "main:\n @true\n",
	})
	require.NoError(t, err)
	_, err = j.lookupRecipe([]string{"nope", "inner"})
	var unknown unknownSubmodule
	require.True(t, as(err, &unknown))
}

func TestCompileGlobImportsAreUnstable(t *testing.T) {
	_, err := compileDir(t, map[string]string{
		"justfile": "import 'imports/*.just'\n",
	})
	require.Error(t, err)
	var compile *compileError
	require.True(t, as(err, &compile))
	_, ok := compile.kind.(unstableFeature)
	assert.True(t, ok)
}

func TestCompileGlobImports(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"justfile":       "import 'imports/*.just'\nmain: one two\n @true\n",
		"imports/a.just": "one:\n @true\n",
		"imports/b.just": "two:\n @true\n",
	}
	for name, text := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	}
	cfg := &config{invocationDirectory: dir, overrides: map[string]string{}, unstable: true}
	s := &search{justfile: filepath.Join(dir, "justfile"), workingDirectory: dir}
	j, err := compile(cfg, s)
	require.NoError(t, err)
	assert.Contains(t, j.recipes, "one")
	assert.Contains(t, j.recipes, "two")
}
