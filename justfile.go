// The resolved module: recipes, assignments, aliases, settings, and
// submodules, with lookup by module path.

package main

import (
	"fmt"
	"sort"
	"strings"
)

type justfile struct {
	name string // module name, empty at the root
	path string // source path
	doc  string

	recipes         map[string]*recipe
	recipeOrder     []*recipe
	assignments     map[string]*assignment
	assignmentOrder []*assignment
	aliases         map[string]*alias
	settings        *settings
	modules         map[string]*justfile
	moduleOrder     []*justfile

	workingDirectory string
	depth            int
}

// lookupRecipe resolves a possibly module-qualified invocation like
// `a::b::c`, following aliases in the final segment's module.
func (j *justfile) lookupRecipe(path []string) (*recipe, error) {
	module := j
	for _, segment := range path[:len(path)-1] {
		sub, ok := module.modules[segment]
		if !ok {
			return nil, unknownSubmodule{path: strings.Join(path, "::")}
		}
		module = sub
	}

	name := path[len(path)-1]
	if r, ok := module.recipes[name]; ok {
		return r, nil
	}
	if a, ok := module.aliases[name]; ok {
		if r, ok := module.recipes[a.target.lexeme()]; ok {
			return r, nil
		}
	}
	return nil, unknownRecipes{recipes: []string{strings.Join(path, "::")}, suggestion: module.suggest(name)}
}

// moduleOf returns the module that owns the recipe at the given path.
func (j *justfile) moduleOf(path []string) *justfile {
	module := j
	for _, segment := range path[:len(path)-1] {
		sub, ok := module.modules[segment]
		if !ok {
			return j
		}
		module = sub
	}
	return module
}

// defaultRecipe is the first recipe in source order, run when no recipe is
// named on the command line.
func (j *justfile) defaultRecipe() *recipe {
	if len(j.recipeOrder) == 0 {
		return nil
	}
	return j.recipeOrder[0]
}

// suggest finds the closest recipe or alias name within edit distance 2.
func (j *justfile) suggest(name string) string {
	var candidates []string
	for candidate := range j.recipes {
		candidates = append(candidates, candidate)
	}
	for candidate := range j.aliases {
		candidates = append(candidates, candidate)
	}
	return closestMatch(name, candidates)
}

// publicRecipes returns the listable recipes, grouped: the keys of the
// returned map are group names, "" holding the ungrouped recipes.
func (j *justfile) publicRecipes() map[string][]*recipe {
	groups := map[string][]*recipe{}
	for _, r := range j.recipeOrder {
		if r.private || !r.enabled() {
			continue
		}
		names := r.groups()
		if len(names) == 0 {
			names = []string{""}
		}
		for _, g := range names {
			groups[g] = append(groups[g], r)
		}
	}
	return groups
}

func (j *justfile) groupNames() []string {
	groups := j.publicRecipes()
	names := make([]string, 0, len(groups))
	for name := range groups {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// aliasesFor lists the alias names pointing at a recipe, sorted.
func (j *justfile) aliasesFor(r *recipe) []string {
	var names []string
	for name, a := range j.aliases {
		if a.target.lexeme() == r.name.lexeme() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// String renders the module in recipe-file syntax, for --dump.
func (j *justfile) String() string {
	var sections []string

	for _, a := range j.assignmentOrder {
		sections = append(sections, a.String())
	}
	names := make([]string, 0, len(j.aliases))
	for name := range j.aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sections = append(sections, j.aliases[name].String())
	}
	for _, r := range j.recipeOrder {
		sections = append(sections, r.String())
	}

	return strings.Join(sections, "\n\n") + "\n"
}

// variableLine formats one assignment for --evaluate output.
func variableLine(name, value string, width int) string {
	return fmt.Sprintf("%-*s := \"%s\"", width, name, value)
}
