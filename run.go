// The runner: selects recipes from command-line arguments, schedules them
// with their priors and subsequents, binds arguments, consults the recipe
// cache, and spawns child processes under the signal relay.

package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// config carries everything the command line decided.
type config struct {
	invocationDirectory string
	justfile            string
	workingDirectory    string
	unstable            bool
	dryRun              bool
	quiet               bool
	yes                 bool
	color               string
	shell               []string // --shell plus --shell-arg
	overrides           map[string]string
}

type invocation struct {
	path []string // module path segments, last is the recipe name
	args []string
}

type runner struct {
	config *config
	search *search
	root   *justfile
	relay  *signalRelay
	cache  *cacheStore

	evaluators map[*justfile]*evaluator
	ran        map[string]map[string]bool
	cacheUsed  bool

	currentRecipe string
}

func newRunner(cfg *config, s *search, root *justfile, relay *signalRelay) *runner {
	return &runner{
		config:     cfg,
		search:     s,
		root:       root,
		relay:      relay,
		cache:      openCache(s),
		evaluators: map[*justfile]*evaluator{},
		ran:        map[string]map[string]bool{},
	}
}

// silentError suppresses the trailing error message while preserving the
// exit code, for [no-exit-message] recipes.
type silentError struct{ err error }

func (e silentError) Error() string { return e.err.Error() }
func (e silentError) Unwrap() error { return e.err }
func (e silentError) exitCode() int { return exitCodeOf(e.err) }

// run executes the argument list: recipe invocations with their positional
// arguments, overrides having already been split off by the CLI.
func (rn *runner) run(args []string) error {
	if err := rn.checkOverrides(); err != nil {
		return err
	}

	invocations, err := rn.group(args)
	if err != nil {
		return err
	}

	for _, inv := range invocations {
		module := rn.root.moduleOf(inv.path)
		r, err := rn.root.lookupRecipe(inv.path)
		if err != nil {
			return err
		}
		if err := r.checkArgumentCount(len(inv.args)); err != nil {
			return err
		}
		if err := rn.runRecipe(module, r, inv.args); err != nil {
			return err
		}
	}

	if rn.cacheUsed && !rn.config.dryRun {
		return rn.cache.save()
	}
	return nil
}

func (rn *runner) checkOverrides() error {
	var unknown []string
	for name := range rn.config.overrides {
		if _, ok := rn.root.assignments[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return unknownOverrides{overrides: unknown}
	}
	return nil
}

// group partitions the invocation stream into (recipe, arguments) pairs,
// consuming as many positional arguments as each recipe accepts.
func (rn *runner) group(args []string) ([]invocation, error) {
	if len(args) == 0 {
		r := rn.root.defaultRecipe()
		if r == nil {
			return nil, fmt.Errorf("justfile contains no recipes")
		}
		if r.minArguments() > 0 {
			return nil, argumentCountMismatch{
				recipe: r.name.lexeme(),
				found:  0,
				min:    r.minArguments(),
				max:    r.maxArguments(),
			}
		}
		return []invocation{{path: []string{r.name.lexeme()}}}, nil
	}

	var invocations []invocation
	var missing []string

	isRecipe := func(name string) bool {
		_, err := rn.root.lookupRecipe(strings.Split(name, "::"))
		return err == nil
	}

	rest := args
	for len(rest) > 0 {
		name := rest[0]
		rest = rest[1:]
		path := strings.Split(name, "::")

		r, err := rn.root.lookupRecipe(path)
		if err != nil {
			missing = append(missing, name)
			continue
		}

		// Everything up to the next recipe token belongs to this recipe;
		// the arity check catches any excess.
		count := 0
		for count < len(rest) && !isRecipe(rest[count]) {
			count++
		}
		if err := r.checkArgumentCount(count); err != nil {
			return nil, err
		}
		invocations = append(invocations, invocation{path: path, args: rest[:count]})
		rest = rest[count:]
	}

	if len(missing) > 0 {
		suggestion := ""
		if len(missing) == 1 && !strings.Contains(missing[0], "::") {
			suggestion = rn.root.suggest(missing[0])
		}
		return nil, unknownRecipes{recipes: missing, suggestion: suggestion}
	}

	return invocations, nil
}

// evaluatorFor lazily builds the module's evaluator, loading its dotenv.
func (rn *runner) evaluatorFor(module *justfile) (*evaluator, error) {
	if ev, ok := rn.evaluators[module]; ok {
		return ev, nil
	}
	dotenv, err := loadDotenv(rn.search, module.settings)
	if err != nil {
		return nil, err
	}
	ev := newEvaluator(module, rn.config, rn.search, dotenv)
	if module == rn.root {
		for name, value := range rn.config.overrides {
			if a, ok := module.assignments[name]; ok {
				ev.scope.bind(name, value, a.export)
			}
		}
	}
	// Assignments evaluate eagerly so exports are in place before any
	// recipe or backtick spawns.
	if _, err := ev.evaluateAssignments(); err != nil {
		return nil, err
	}
	rn.evaluators[module] = ev
	return ev, nil
}

// runRecipe schedules one recipe: priors first (with their call-site
// arguments evaluated in this recipe's scope), then the recipe itself,
// then its subsequents. A recipe already run with identical evaluated
// arguments is not run again.
func (rn *runner) runRecipe(module *justfile, r *recipe, args []string) error {
	if !r.enabled() {
		return nil
	}

	if rn.relay.interrupted() {
		return signalFailed{recipe: r.name.lexeme(), signal: 2}
	}

	argKey := strings.Join(args, "\x00")
	if rn.ran[r.namepath][argKey] {
		return nil
	}

	ev, err := rn.evaluatorFor(module)
	if err != nil {
		return err
	}

	child, positional, err := ev.evaluateParameters(r, args)
	if err != nil {
		return err
	}

	evaluateDependency := func(d dependency) (*recipe, []string, error) {
		target, ok := module.recipes[d.recipe.lexeme()]
		if !ok {
			return nil, nil, compileErrorAt(d.recipe, unknownDependency{
				recipe:  r.name.lexeme(),
				unknown: d.recipe.lexeme(),
			})
		}
		outer := ev.scope
		ev.scope = child
		defer func() { ev.scope = outer }()

		var depArgs []string
		for _, argument := range d.arguments {
			value, err := ev.evaluateExpression(argument)
			if err != nil {
				return nil, nil, err
			}
			depArgs = append(depArgs, value)
		}
		return target, depArgs, nil
	}

	for _, d := range r.priors {
		target, depArgs, err := evaluateDependency(d)
		if err != nil {
			return err
		}
		if err := rn.runRecipe(module, target, depArgs); err != nil {
			return err
		}
	}

	if err := rn.executeRecipe(module, r, ev, child, positional); err != nil {
		if !r.exitMessage() {
			return silentError{err: err}
		}
		return err
	}

	if rn.ran[r.namepath] == nil {
		rn.ran[r.namepath] = map[string]bool{}
	}
	rn.ran[r.namepath][argKey] = true

	for _, d := range r.subsequents {
		target, depArgs, err := evaluateDependency(d)
		if err != nil {
			return err
		}
		if err := rn.runRecipe(module, target, depArgs); err != nil {
			return err
		}
	}

	return nil
}

// executeRecipe runs the recipe body, short-circuiting through the cache
// for [cached] recipes.
func (rn *runner) executeRecipe(module *justfile, r *recipe, ev *evaluator, child *scope, positional []string) error {
	outer := ev.scope
	ev.scope = child
	defer func() { ev.scope = outer }()

	var hash string
	if r.cached() && !rn.config.dryRun {
		rn.cacheUsed = true
		computed, err := rn.recipeHash(module, r, ev, positional)
		if err != nil {
			return err
		}
		hash = computed

		if stored, ok := rn.cache.lookup(r.namepath); ok && stored == hash {
			notice("===> Hash of recipe body of `%s` matches last run. Skipping...", r.name.lexeme())
			return nil
		}
	}

	if prompt, ok := r.confirmPrompt(); ok && !rn.config.yes && !rn.config.dryRun {
		confirmed, err := confirm(prompt)
		if err != nil {
			return err
		}
		if !confirmed {
			return confirmDeclined{recipe: r.name.lexeme()}
		}
	}

	rn.currentRecipe = r.name.lexeme()
	var err error
	if r.shebang || r.scriptCommand() != nil {
		err = r.runScript(rn, ev, positional)
	} else {
		err = r.runLinewise(rn, ev, positional)
	}
	if err != nil {
		return err
	}

	if hash != "" {
		rn.cache.insert(r.namepath, hash)
	}
	return nil
}

// recipeHash fingerprints a cached recipe: its evaluated parameter values,
// its evaluated body, and the hashes of every cached recipe in its
// dependency closure.
func (rn *runner) recipeHash(module *justfile, r *recipe, ev *evaluator, positional []string) (string, error) {
	var lines []string
	for _, l := range r.body {
		text, err := ev.evaluateLine(l)
		if err != nil {
			return "", err
		}
		lines = append(lines, text)
	}

	var dependencyHashes []string
	seen := map[string]bool{}
	var walk func(r *recipe)
	walk = func(r *recipe) {
		for _, d := range append(append([]dependency{}, r.priors...), r.subsequents...) {
			target, ok := module.recipes[d.recipe.lexeme()]
			if !ok || seen[target.namepath] {
				continue
			}
			seen[target.namepath] = true
			if target.cached() {
				if stored, ok := rn.cache.lookup(target.namepath); ok {
					dependencyHashes = append(dependencyHashes, target.namepath+"="+stored)
				}
			}
			walk(target)
		}
	}
	walk(r)
	sort.Strings(dependencyHashes)

	return bodyHash(positional, lines, dependencyHashes), nil
}

// spawn starts a child in its own process group, registers it with the
// signal relay, and waits. Returns the exit code, or the terminating
// signal number when the child died from a signal.
func (rn *runner) spawn(cmd *exec.Cmd) (code int, sig int, err error) {
	cmd.SysProcAttr = sysProcAttr()
	if err := cmd.Start(); err != nil {
		return 0, 0, err
	}

	rn.relay.enter(cmd.Process.Pid, rn.currentRecipe)
	waitErr := cmd.Wait()
	rn.relay.leave()

	state := cmd.ProcessState
	if state == nil {
		return 0, 0, waitErr
	}
	code, sig = exitStatus(state)
	return code, sig, nil
}

// childExtraEnv is the JUST_* helper environment exported to children.
func (rn *runner) childExtraEnv() map[string]string {
	native := rn.config.invocationDirectory
	converted, err := convertNativePath(rn.search.workingDirectory, native)
	if err != nil {
		converted = native
	}
	return map[string]string{
		"JUST_PID":                         strconv.Itoa(os.Getpid()),
		"JUSTFILE":                         rn.search.justfile,
		"JUSTFILE_DIRECTORY":               filepath.Dir(rn.search.justfile),
		"JUST_INVOCATION_DIRECTORY":        converted,
		"JUST_INVOCATION_DIRECTORY_NATIVE": native,
	}
}
