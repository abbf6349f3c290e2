// The recipe type: argument arity, attribute queries, rendering, and
// execution in both line-by-line and shebang/script modes.

package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const unlimitedArguments = int(^uint(0) >> 1)

type recipe struct {
	name       token
	doc        string
	attributes []attribute
	parameters []parameter
	priors      []dependency
	subsequents []dependency
	body       []line
	quiet      bool // '@' before the name
	private    bool
	shebang    bool
	depth      int

	// Filled in during resolution.
	namepath         string // module-qualified name, a::b::c
	settings         *settings
	workingDirectory string // directory of the owning module
}

func (r *recipe) minArguments() int {
	min := 0
	for _, p := range r.parameters {
		switch p.kind {
		case paramRequired:
			min++
		case paramPlus:
			if p.defaultValue == nil {
				min++
			}
		}
	}
	return min
}

func (r *recipe) maxArguments() int {
	for _, p := range r.parameters {
		if p.kind.variadic() {
			return unlimitedArguments
		}
	}
	return len(r.parameters)
}

func (r *recipe) checkArgumentCount(found int) error {
	if found < r.minArguments() || found > r.maxArguments() {
		return argumentCountMismatch{
			recipe: r.name.lexeme(),
			found:  found,
			min:    r.minArguments(),
			max:    r.maxArguments(),
		}
	}
	return nil
}

// enabled applies the platform attributes against the host. A recipe with
// no platform attributes always runs; otherwise any matching attribute
// enables it.
func (r *recipe) enabled() bool {
	any := false
	for _, a := range r.attributes {
		if !a.kind.isPlatform() {
			continue
		}
		any = true
		if platformMatches(a.kind) != a.inverted {
			return true
		}
	}
	return !any
}

func (r *recipe) cached() bool {
	return hasAttribute(r.attributes, attrCached)
}

func (r *recipe) changesDirectory() bool {
	return !hasAttribute(r.attributes, attrNoCd)
}

func (r *recipe) exitMessage() bool {
	return !hasAttribute(r.attributes, attrNoExitMessage)
}

func (r *recipe) positionalArguments() bool {
	return r.settings.positionalArguments || hasAttribute(r.attributes, attrPositionalArguments)
}

func (r *recipe) confirmPrompt() (string, bool) {
	a, ok := findAttribute(r.attributes, attrConfirm)
	if !ok {
		return "", false
	}
	if len(a.arguments) == 1 {
		return a.arguments[0], true
	}
	return fmt.Sprintf("Run recipe `%s`?", r.name.lexeme()), true
}

func (r *recipe) groups() []string {
	var groups []string
	for _, a := range r.attributes {
		if a.kind == attrGroup {
			groups = append(groups, a.arguments[0])
		}
	}
	return groups
}

// scriptCommand returns the interpreter argv for a [script] recipe, or nil
// when the recipe is not a script recipe.
func (r *recipe) scriptCommand() []string {
	a, ok := findAttribute(r.attributes, attrScript)
	if !ok {
		return nil
	}
	if len(a.arguments) > 0 {
		return a.arguments
	}
	if len(r.settings.scriptInterpreter) > 0 {
		return r.settings.scriptInterpreter
	}
	return []string{"sh", "-eu"}
}

// workingDir resolves the directory recipe processes run in: the module
// directory, overridden by [working-directory], disabled by [no-cd].
func (r *recipe) workingDir(invocationDirectory string) string {
	if !r.changesDirectory() {
		return invocationDirectory
	}
	if a, ok := findAttribute(r.attributes, attrWorkingDirectory); ok {
		return joinPath(r.workingDirectory, a.arguments[0])
	}
	return r.workingDirectory
}

func (r *recipe) String() string {
	var b strings.Builder
	for _, a := range r.attributes {
		fmt.Fprintf(&b, "[%s]\n", a)
	}
	if r.quiet {
		b.WriteByte('@')
	}
	b.WriteString(r.name.lexeme())
	for _, p := range r.parameters {
		fmt.Fprintf(&b, " %s", p)
	}
	b.WriteByte(':')
	for _, d := range r.priors {
		fmt.Fprintf(&b, " %s", d)
	}
	if len(r.subsequents) > 0 {
		b.WriteString(" &&")
		for _, d := range r.subsequents {
			fmt.Fprintf(&b, " %s", d)
		}
	}
	for _, l := range r.body {
		b.WriteByte('\n')
		if !l.isEmpty() {
			b.WriteString("    ")
			b.WriteString(l.String())
		}
	}
	return b.String()
}

func (r *recipe) runLinewise(rn *runner, ev *evaluator, positional []string) error {
	for _, l := range r.body {
		if l.isEmpty() {
			continue
		}
		if l.isComment() && r.settings.ignoreComments {
			continue
		}

		text, err := ev.evaluateLine(l)
		if err != nil {
			return err
		}

		// Strip the echo and exit-status prefixes, in any order.
		quiet := r.quiet || r.settings.quiet || rn.config.quiet
		infallible := false
		for {
			if rest, ok := strings.CutPrefix(text, "@"); ok {
				quiet = true
				text = rest
				continue
			}
			if rest, ok := strings.CutPrefix(text, "-"); ok {
				infallible = true
				text = rest
				continue
			}
			break
		}

		if strings.TrimSpace(text) == "" {
			continue
		}

		if !quiet {
			echoLine(text)
		}

		if rn.config.dryRun {
			if quiet {
				echoLine(text)
			}
			continue
		}

		shell, shellArgs := r.settings.shellCommand(rn.config.shell)
		argv := append(append([]string{}, shellArgs...), text)
		if r.positionalArguments() {
			argv = append(argv, r.name.lexeme())
			argv = append(argv, positional...)
		}

		cmd := exec.Command(shell, argv...)
		cmd.Dir = r.workingDir(rn.config.invocationDirectory)
		cmd.Env = ev.childEnvironment(rn.childExtraEnv())
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		code, sig, err := rn.spawn(cmd)
		switch {
		case err != nil:
			return commandNotFound{recipe: r.name.lexeme(), command: shell, err: err}
		case sig != 0:
			return signalFailed{recipe: r.name.lexeme(), signal: sig}
		case code != 0 && !infallible:
			return codeFailed{recipe: r.name.lexeme(), line: l.number, code: code}
		}
	}
	return nil
}

// runScript writes the evaluated body to an executable temporary file and
// runs it: directly on unix for shebang recipes, or via the [script]
// interpreter.
func (r *recipe) runScript(rn *runner, ev *evaluator, positional []string) error {
	var b strings.Builder
	for _, l := range r.body {
		text, err := ev.evaluateLine(l)
		if err != nil {
			return err
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}

	if rn.config.dryRun {
		for _, l := range strings.Split(strings.TrimSuffix(b.String(), "\n"), "\n") {
			echoLine(l)
		}
		return nil
	}

	tempdir, err := os.MkdirTemp(r.settings.tempdir, "just-")
	if err != nil {
		return shebangFailed{recipe: r.name.lexeme(), err: err}
	}
	defer os.RemoveAll(tempdir)

	name := strings.ReplaceAll(r.name.lexeme(), string(filepath.Separator), "_")
	if ext, ok := findAttribute(r.attributes, attrExtension); ok {
		name += ext.arguments[0]
	}
	path := filepath.Join(tempdir, name)

	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		return shebangFailed{recipe: r.name.lexeme(), err: err}
	}
	if err := setExecutable(path); err != nil {
		return shebangFailed{recipe: r.name.lexeme(), err: err}
	}

	var cmd *exec.Cmd
	if script := r.scriptCommand(); script != nil && !r.shebang {
		cmd = exec.Command(script[0], append(script[1:], path)...)
	} else {
		shebangLine, err := ev.evaluateLine(r.body[0])
		if err != nil {
			return err
		}
		cmd, err = makeShebangCommand(path, shebangLine)
		if err != nil {
			return shebangFailed{recipe: r.name.lexeme(), err: err}
		}
	}

	if r.positionalArguments() {
		cmd.Args = append(cmd.Args, positional...)
	}
	cmd.Dir = r.workingDir(rn.config.invocationDirectory)
	cmd.Env = ev.childEnvironment(rn.childExtraEnv())
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	code, sig, err := rn.spawn(cmd)
	switch {
	case err != nil:
		return shebangFailed{recipe: r.name.lexeme(), err: err}
	case sig != 0:
		return signalFailed{recipe: r.name.lexeme(), signal: sig}
	case code != 0:
		return codeFailed{recipe: r.name.lexeme(), code: code}
	}
	return nil
}

// confirm prompts on stderr and reads a y/N answer from stdin.
func confirm(prompt string) (bool, error) {
	fmt.Fprintf(stderr, "%s [y/N] ", prompt)
	var answer string
	if _, err := fmt.Fscanln(os.Stdin, &answer); err != nil {
		return false, nil
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}
