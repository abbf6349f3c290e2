// Loading and compilation: a per-invocation arena of sources, import
// merging (with optional and glob imports), and recursive submodule
// compilation.

package main

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type loader struct {
	sources map[string]*source
}

func newLoader() *loader {
	return &loader{sources: map[string]*source{}}
}

// load reads a file once and keeps it alive for the whole invocation.
// Tokens and AST nodes borrow from the returned source.
func (l *loader) load(path string) (*source, error) {
	canonical := canonicalPath(path)
	if src, ok := l.sources[canonical]; ok {
		return src, nil
	}
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	src := &source{path: path, text: string(text)}
	l.sources[canonical] = src
	return src, nil
}

func canonicalPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// compile loads, parses, and resolves the root justfile.
func compile(cfg *config, s *search) (*justfile, error) {
	l := newLoader()
	ctx := moduleContext{
		path:             s.justfile,
		workingDirectory: s.workingDirectory,
		unstable:         cfg.unstable,
	}
	return compileModule(l, cfg, s.justfile, ctx, nil)
}

func compileModule(l *loader, cfg *config, path string, ctx moduleContext, chain []string) (*justfile, error) {
	src, err := l.load(path)
	if err != nil {
		return nil, err
	}

	chain = append(chain, canonicalPath(path))

	tokens, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	items, err := parseTokens(tokens, ctx.depth)
	if err != nil {
		return nil, err
	}

	items, err = mergeImports(l, cfg, items, filepath.Dir(path), ctx.depth, chain)
	if err != nil {
		return nil, err
	}

	submodules := map[string]*justfile{}
	var submoduleOrder []*justfile
	var kept []item
	for _, it := range items {
		mod, ok := it.(*moduleItem)
		if !ok {
			kept = append(kept, it)
			continue
		}

		modulePath, err := findModuleSource(filepath.Dir(path), mod)
		if err != nil {
			if mod.optional {
				continue
			}
			return nil, compileErrorAt(mod.name, err)
		}

		subCtx := moduleContext{
			name:             mod.name.lexeme(),
			namePrefix:       ctx.namePrefix + mod.name.lexeme() + "::",
			path:             modulePath,
			doc:              mod.doc,
			workingDirectory: ctx.workingDirectory,
			depth:            ctx.depth + 1,
			unstable:         ctx.unstable,
		}
		sub, err := compileModule(l, cfg, modulePath, subCtx, chain)
		if err != nil {
			return nil, err
		}
		submodules[sub.name] = sub
		submoduleOrder = append(submoduleOrder, sub)
	}

	ctx.submodules = submodules
	ctx.submoduleOrder = submoduleOrder
	return analyze(kept, ctx)
}

// mergeImports splices each import's items into the list, as if the files
// had been concatenated. Globs expand in lexicographic order; `import?`
// tolerates missing files; the chain of canonical paths on the current
// branch detects circular imports.
func mergeImports(l *loader, cfg *config, items []item, dir string, depth int, chain []string) ([]item, error) {
	var merged []item
	for _, it := range items {
		imp, ok := it.(*importItem)
		if !ok {
			merged = append(merged, it)
			continue
		}

		pattern := imp.relative
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(dir, pattern)
		}

		var paths []string
		if strings.ContainsAny(imp.relative, "*?[") {
			if !cfg.unstable {
				return nil, compileErrorAt(imp.path, unstableFeature{
					message: "Globs in import paths are currently unstable.",
				})
			}
			matches, err := filepath.Glob(pattern)
			if err != nil {
				return nil, compileErrorAt(imp.path, err)
			}
			sort.Strings(matches)
			paths = matches
		} else {
			if _, err := os.Stat(pattern); err != nil {
				if imp.optional {
					continue
				}
				return nil, compileErrorAt(imp.path, missingImport{path: imp.relative})
			}
			paths = []string{pattern}
		}

		for _, importPath := range paths {
			canonical := canonicalPath(importPath)
			for _, ancestor := range chain {
				if ancestor == canonical {
					return nil, compileErrorAt(imp.path, circularImport{
						current:  chain[len(chain)-1],
						imported: importPath,
					})
				}
			}

			src, err := l.load(importPath)
			if err != nil {
				return nil, compileErrorAt(imp.path, err)
			}
			tokens, err := tokenize(src)
			if err != nil {
				return nil, err
			}
			imported, err := parseTokens(tokens, depth)
			if err != nil {
				return nil, err
			}
			imported, err = mergeImports(l, cfg, imported, filepath.Dir(importPath), depth, append(chain, canonical))
			if err != nil {
				return nil, err
			}
			merged = append(merged, imported...)
		}
	}
	return merged, nil
}

// findModuleSource locates the source file for `mod name`: an explicit
// path if given, else the conventional candidates next to the parent.
func findModuleSource(dir string, mod *moduleItem) (string, error) {
	if mod.path != "" {
		path := mod.path
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		if _, err := os.Stat(path); err != nil {
			return "", missingModuleFile{module: mod.name.lexeme()}
		}
		return path, nil
	}

	name := mod.name.lexeme()
	candidates := []string{
		name + ".just",
		filepath.Join(name, "mod.just"),
		filepath.Join(name, "justfile"),
		filepath.Join(name, ".justfile"),
	}
	for _, candidate := range candidates {
		path := filepath.Join(dir, candidate)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", missingModuleFile{module: mod.name.lexeme()}
}
