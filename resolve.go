// The analyzer: turns a parsed item list (with imports already merged and
// submodules already compiled) into a resolved justfile. Name uniqueness,
// dependency and variable reference resolution with three-colour DFS,
// attribute and function validation.

package main

import "slices"

type moduleContext struct {
	name             string
	namePrefix       string // "a::b::" for nested modules
	path             string
	doc              string
	workingDirectory string
	depth            int
	unstable         bool
	submodules       map[string]*justfile
	submoduleOrder   []*justfile
}

type analyzer struct {
	justfile *justfile
	unstable bool

	recipeColor map[string]int
	varColor    map[string]int
}

const (
	colorWhite = iota
	colorGray
	colorBlack
)

func analyze(items []item, ctx moduleContext) (*justfile, error) {
	j := &justfile{
		name:             ctx.name,
		path:             ctx.path,
		doc:              ctx.doc,
		recipes:          map[string]*recipe{},
		assignments:      map[string]*assignment{},
		aliases:          map[string]*alias{},
		settings:         &settings{},
		modules:          ctx.submodules,
		moduleOrder:      ctx.submoduleOrder,
		workingDirectory: ctx.workingDirectory,
		depth:            ctx.depth,
	}
	if j.modules == nil {
		j.modules = map[string]*justfile{}
	}

	a := &analyzer{
		justfile:    j,
		unstable:    ctx.unstable,
		recipeColor: map[string]int{},
		varColor:    map[string]int{},
	}

	// Settings first: duplicate handling below depends on them.
	setLines := map[string]int{}
	for _, it := range items {
		set, ok := it.(*setItem)
		if !ok {
			continue
		}
		if first, seen := setLines[set.setting]; seen {
			return nil, compileErrorAt(set.name, duplicateSet{setting: set.setting, first: first})
		}
		setLines[set.setting] = set.name.line
		if settingTable[set.setting].unstable && !ctx.unstable {
			return nil, compileErrorAt(set.name, unstableFeature{
				message: "The `" + set.setting + "` setting is currently unstable.",
			})
		}
		j.settings.apply(set)
	}

	for _, it := range items {
		switch it := it.(type) {
		case *recipe:
			if existing, ok := j.recipes[it.name.lexeme()]; ok {
				if !j.settings.allowDuplicateRecipes {
					return nil, compileErrorAt(it.name, duplicateRecipe{
						recipe: it.name.lexeme(),
						first:  existing.name.line,
					})
				}
				j.recipeOrder = slices.DeleteFunc(j.recipeOrder, func(r *recipe) bool {
					return r == existing
				})
			}
			it.namepath = ctx.namePrefix + it.name.lexeme()
			it.settings = j.settings
			it.workingDirectory = ctx.workingDirectory
			j.recipes[it.name.lexeme()] = it
			j.recipeOrder = append(j.recipeOrder, it)

		case *assignment:
			if _, ok := j.assignments[it.name.lexeme()]; ok && !j.settings.allowDuplicateVariables {
				return nil, compileErrorAt(it.name, duplicateVariable{variable: it.name.lexeme()})
			}
			if existing, ok := j.assignments[it.name.lexeme()]; ok {
				j.assignmentOrder = slices.DeleteFunc(j.assignmentOrder, func(a *assignment) bool {
					return a == existing
				})
			}
			j.assignments[it.name.lexeme()] = it
			j.assignmentOrder = append(j.assignmentOrder, it)

		case *alias:
			if existing, ok := j.aliases[it.name.lexeme()]; ok {
				return nil, compileErrorAt(it.name, duplicateAlias{
					alias: it.name.lexeme(),
					first: existing.name.line,
				})
			}
			j.aliases[it.name.lexeme()] = it
		}
	}

	if err := a.validateRecipes(); err != nil {
		return nil, err
	}
	if err := a.validateAssignments(); err != nil {
		return nil, err
	}
	if err := a.validateAliases(); err != nil {
		return nil, err
	}

	return j, nil
}

func (a *analyzer) validateRecipes() error {
	for _, r := range a.justfile.recipeOrder {
		if err := a.resolveRecipe(r, nil); err != nil {
			return err
		}
		if err := a.checkRecipeExpressions(r); err != nil {
			return err
		}
		if _, ok := findAttribute(r.attributes, attrScript); ok && !a.unstable {
			return compileErrorAt(r.name, unstableFeature{
				message: "The `[script]` attribute is currently unstable.",
			})
		}
	}
	return nil
}

// resolveRecipe walks the dependency graph depth-first with three colours,
// reporting the exact cycle path when a gray node is reached again.
func (a *analyzer) resolveRecipe(r *recipe, stack []string) error {
	name := r.name.lexeme()
	switch a.recipeColor[name] {
	case colorBlack:
		return nil
	case colorGray:
		return internalError{message: "resolveRecipe entered a gray recipe"}
	}

	a.recipeColor[name] = colorGray
	stack = append(stack, name)

	deps := append(append([]dependency{}, r.priors...), r.subsequents...)
	for _, d := range deps {
		target, ok := a.justfile.recipes[d.recipe.lexeme()]
		if !ok {
			return compileErrorAt(d.recipe, unknownDependency{
				recipe:  name,
				unknown: d.recipe.lexeme(),
			})
		}

		if len(d.arguments) < target.minArguments() || len(d.arguments) > target.maxArguments() {
			return compileErrorAt(d.recipe, dependencyHasParameters{
				recipe:     name,
				dependency: target.name.lexeme(),
				found:      len(d.arguments),
				min:        target.minArguments(),
				max:        target.maxArguments(),
			})
		}

		switch a.recipeColor[target.name.lexeme()] {
		case colorGray:
			first := slices.Index(stack, target.name.lexeme())
			cycle := append(slices.Clone(stack[first:]), target.name.lexeme())
			return compileErrorAt(d.recipe, circularRecipeDependency{
				recipe: target.name.lexeme(),
				cycle:  cycle,
			})
		case colorWhite:
			if err := a.resolveRecipe(target, stack); err != nil {
				return err
			}
		}
	}

	a.recipeColor[name] = colorBlack
	return nil
}

// checkRecipeExpressions validates every expression reachable from the
// recipe: parameter defaults, dependency arguments, and interpolations.
// Variables must name a parameter or an assignment; calls must name a
// known function with an acceptable argument count.
func (a *analyzer) checkRecipeExpressions(r *recipe) error {
	parameters := map[string]bool{}
	for _, p := range r.parameters {
		if _, ok := a.justfile.assignments[p.name.lexeme()]; ok {
			return compileErrorAt(p.name, parameterShadowsVariable{parameter: p.name.lexeme()})
		}
		parameters[p.name.lexeme()] = true
	}

	check := func(expr expression) error {
		for _, v := range variableTokens(expr) {
			name := v.lexeme()
			if parameters[name] {
				continue
			}
			if _, ok := a.justfile.assignments[name]; !ok {
				return compileErrorAt(v, undefinedVariable{variable: name})
			}
		}
		return checkCalls(expr)
	}

	for _, p := range r.parameters {
		if p.defaultValue == nil {
			continue
		}
		if err := check(p.defaultValue); err != nil {
			return err
		}
	}
	for _, d := range append(append([]dependency{}, r.priors...), r.subsequents...) {
		for _, argument := range d.arguments {
			if err := check(argument); err != nil {
				return err
			}
		}
	}
	for _, l := range r.body {
		for _, f := range l.fragments {
			if interp, ok := f.(interpolationFragment); ok {
				if err := check(interp.expression); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func checkCalls(expr expression) error {
	for _, call := range callTokens(expr) {
		f, ok := functions[call.name.lexeme()]
		if !ok {
			return compileErrorAt(call.name, unknownFunction{function: call.name.lexeme()})
		}
		max := f.maxArgs
		if max == -1 {
			max = unlimitedArguments
		}
		if len(call.arguments) < f.minArgs || len(call.arguments) > max {
			return compileErrorAt(call.name, functionArgumentCount{
				function: call.name.lexeme(),
				found:    len(call.arguments),
				min:      f.minArgs,
				max:      f.maxArgs,
			})
		}
	}
	return nil
}

func (a *analyzer) validateAssignments() error {
	for _, assignment := range a.justfile.assignmentOrder {
		if err := a.resolveAssignment(assignment, nil); err != nil {
			return err
		}
		if err := checkCalls(assignment.value); err != nil {
			return err
		}
	}
	return nil
}

func (a *analyzer) resolveAssignment(as *assignment, stack []string) error {
	name := as.name.lexeme()
	switch a.varColor[name] {
	case colorBlack:
		return nil
	case colorGray:
		return nil
	}

	a.varColor[name] = colorGray
	stack = append(stack, name)

	for _, v := range variableTokens(as.value) {
		referenced := v.lexeme()
		target, ok := a.justfile.assignments[referenced]
		if !ok {
			return compileErrorAt(v, undefinedVariable{variable: referenced})
		}
		switch a.varColor[referenced] {
		case colorGray:
			first := slices.Index(stack, referenced)
			cycle := append(slices.Clone(stack[first:]), referenced)
			return compileErrorAt(v, circularVariableDependency{
				variable: referenced,
				cycle:    cycle,
			})
		case colorWhite:
			if err := a.resolveAssignment(target, stack); err != nil {
				return err
			}
		}
	}

	a.varColor[name] = colorBlack
	return nil
}

func (a *analyzer) validateAliases() error {
	for _, al := range a.justfile.aliases {
		if _, ok := a.justfile.recipes[al.target.lexeme()]; !ok {
			return compileErrorAt(al.target, unknownAliasTarget{
				alias:  al.name.lexeme(),
				target: al.target.lexeme(),
			})
		}
	}
	return nil
}
