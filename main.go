// Command-line surface and entry point.

package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/sanity-io/litter"
	"github.com/spf13/pflag"
)

var (
	flagChooser          string
	flagChoose           bool
	flagColor            string
	flagDryRun           bool
	flagDump             bool
	flagDumpAst          bool
	flagDumpFormat       string
	flagEvaluate         bool
	flagInit             bool
	flagJustfile         string
	flagList             bool
	flagListSubmodules   bool
	flagQuiet            bool
	flagShell            string
	flagShellArgs        []string
	flagShow             string
	flagSummary          bool
	flagUnstable         bool
	flagVariables        bool
	flagWorkingDirectory string
	flagYes              bool
)

func init() {
	pflag.StringVar(&flagChooser, "chooser", "", "override the binary invoked by --choose")
	pflag.BoolVar(&flagChoose, "choose", false, "select a recipe to run with a chooser")
	pflag.StringVar(&flagColor, "color", "auto", "print colorful output (auto, always, never)")
	pflag.BoolVarP(&flagDryRun, "dry-run", "n", false, "print what just would do without doing it")
	pflag.BoolVar(&flagDump, "dump", false, "print the justfile")
	pflag.BoolVar(&flagDumpAst, "dump-ast", false, "print the parsed justfile as a Go value, for debugging")
	pflag.StringVar(&flagDumpFormat, "dump-format", "just", "dump format (just)")
	pflag.BoolVar(&flagEvaluate, "evaluate", false, "evaluate and print all variables, or one if a name is given")
	pflag.BoolVar(&flagInit, "init", false, "initialize a new justfile in the current directory")
	pflag.StringVarP(&flagJustfile, "justfile", "f", "", "use the given file as the justfile")
	pflag.BoolVarP(&flagList, "list", "l", false, "list available recipes and their arguments")
	pflag.BoolVar(&flagListSubmodules, "list-submodules", false, "list recipes in submodules as well")
	pflag.BoolVarP(&flagQuiet, "quiet", "q", false, "suppress all output")
	pflag.StringVar(&flagShell, "shell", "", "invoke the given shell to run recipe lines and backticks")
	pflag.StringArrayVar(&flagShellArgs, "shell-arg", nil, "invoke the shell with the given argument")
	pflag.StringVarP(&flagShow, "show", "s", "", "show information about the given recipe")
	pflag.BoolVar(&flagSummary, "summary", false, "list recipe names on one line")
	pflag.BoolVar(&flagUnstable, "unstable", false, "enable unstable features")
	pflag.BoolVar(&flagVariables, "variables", false, "list variable names on one line")
	pflag.StringVarP(&flagWorkingDirectory, "working-directory", "d", "", "use the given directory as the working directory")
	pflag.BoolVar(&flagYes, "yes", false, "automatically confirm all recipes")
}

func main() {
	os.Exit(run())
}

func run() int {
	// pflag flags take one value each, so the two-value --set and the
	// tail-consuming --command are split off before parsing.
	args, overrides, command, err := prescan(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	pflag.CommandLine.Init("j", pflag.ExitOnError)
	pflag.CommandLine.Parse(args)

	initColor(flagColor)

	invocationDirectory, err := os.Getwd()
	if err != nil {
		printError(err)
		return exitFailure
	}

	cfg := &config{
		invocationDirectory: invocationDirectory,
		justfile:            flagJustfile,
		workingDirectory:    flagWorkingDirectory,
		unstable:            flagUnstable || os.Getenv("JUST_UNSTABLE") != "",
		dryRun:              flagDryRun,
		quiet:               flagQuiet,
		yes:                 flagYes,
		color:               flagColor,
		overrides:           overrides,
	}
	if cfg.justfile == "" {
		cfg.justfile = os.Getenv("JUST_JUSTFILE")
	}
	if flagShell != "" {
		cfg.shell = append([]string{flagShell}, flagShellArgs...)
	}

	if flagInit {
		if err := initJustfile(invocationDirectory); err != nil {
			printError(err)
			return exitFailure
		}
		return exitSuccess
	}

	// Remaining VAR=value positionals are also overrides, up to the first
	// recipe token.
	positional := pflag.Args()
	for len(positional) > 0 {
		name, value, ok := strings.Cut(positional[0], "=")
		if !ok {
			break
		}
		overrides[name] = value
		positional = positional[1:]
	}

	if err := dispatch(cfg, positional, command); err != nil {
		var silent silentError
		if !as(err, &silent) {
			printError(err)
		}
		return exitCodeOf(err)
	}
	return exitSuccess
}

// prescan extracts `--set VAR VALUE` pairs and the `--command CMD ARGS…`
// tail, returning the remaining arguments.
func prescan(args []string) (kept []string, overrides map[string]string, command []string, err error) {
	overrides = map[string]string{}
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--set":
			if i+2 >= len(args) {
				return nil, nil, nil, fmt.Errorf("--set requires a variable name and a value")
			}
			overrides[args[i+1]] = args[i+2]
			i += 2
		case "--command", "-c":
			if i+1 >= len(args) {
				return nil, nil, nil, fmt.Errorf("--command requires a command to run")
			}
			return kept, overrides, args[i+1:], nil
		default:
			kept = append(kept, args[i])
		}
	}
	return kept, overrides, nil, nil
}

func dispatch(cfg *config, positional []string, command []string) error {
	s, err := newSearch(cfg)
	if err != nil {
		return err
	}

	root, err := compile(cfg, s)
	if err != nil {
		return err
	}

	switch {
	case flagDumpAst:
		fmt.Println(litter.Sdump(root))
		return nil

	case flagDump:
		if flagDumpFormat != "just" {
			return fmt.Errorf("unknown dump format `%s`", flagDumpFormat)
		}
		fmt.Print(root)
		return nil

	case flagSummary:
		fmt.Println(strings.Join(summaryNames(root, ""), " "))
		return nil

	case flagList || flagListSubmodules:
		listRecipes(root, "", flagListSubmodules)
		return nil

	case flagShow != "":
		r, err := root.lookupRecipe(strings.Split(flagShow, "::"))
		if err != nil {
			return err
		}
		if r.doc != "" {
			fmt.Printf("# %s\n", r.doc)
		}
		fmt.Println(r)
		return nil

	case flagVariables:
		names := make([]string, 0, len(root.assignmentOrder))
		for _, a := range root.assignmentOrder {
			names = append(names, a.name.lexeme())
		}
		fmt.Println(strings.Join(names, " "))
		return nil
	}

	relay, err := startSignalRelay()
	if err != nil {
		return err
	}
	rn := newRunner(cfg, s, root, relay)

	switch {
	case flagEvaluate:
		return evaluateVariables(rn, positional)

	case command != nil:
		return runCommand(rn, command)

	case flagChoose:
		return chooseRecipe(rn, positional)
	}

	err = rn.run(positional)

	// With `set fallback`, unknown recipes retry against the justfile in
	// the parent directory chain.
	var unknown unknownRecipes
	for as(err, &unknown) && root.settings.fallback {
		parent, ok := s.parentSearch()
		if !ok {
			break
		}
		parentRoot, compileErr := compile(cfg, parent)
		if compileErr != nil {
			return compileErr
		}
		s, root = parent, parentRoot
		rn = newRunner(cfg, s, root, relay)
		err = rn.run(positional)
	}

	return err
}

// evaluateVariables forces all assignments and prints them, or a single
// named variable's value.
func evaluateVariables(rn *runner, positional []string) error {
	ev, err := rn.evaluatorFor(rn.root)
	if err != nil {
		return err
	}
	scope, err := ev.evaluateAssignments()
	if err != nil {
		return err
	}

	if len(positional) > 0 {
		name := positional[0]
		value, ok := scope.value(name)
		if !ok {
			return undefinedVariable{variable: name}
		}
		fmt.Println(value)
		return nil
	}

	width := 0
	for _, a := range rn.root.assignmentOrder {
		width = max(width, len(a.name.lexeme()))
	}
	names := make([]string, 0, len(rn.root.assignmentOrder))
	for _, a := range rn.root.assignmentOrder {
		names = append(names, a.name.lexeme())
	}
	sort.Strings(names)
	for _, name := range names {
		value, _ := scope.value(name)
		fmt.Println(variableLine(name, value, width))
	}
	return nil
}

// runCommand runs an ad-hoc command with the justfile's exported
// environment, in the working directory.
func runCommand(rn *runner, command []string) error {
	ev, err := rn.evaluatorFor(rn.root)
	if err != nil {
		return err
	}
	if _, err := ev.evaluateAssignments(); err != nil {
		return err
	}

	cmd := exec.Command(command[0], command[1:]...)
	cmd.Dir = rn.search.workingDirectory
	cmd.Env = ev.childEnvironment(rn.childExtraEnv())
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	code, sig, err := rn.spawn(cmd)
	switch {
	case err != nil:
		return commandNotFound{recipe: command[0], command: command[0], err: err}
	case sig != 0:
		return signalFailed{recipe: command[0], signal: sig}
	case code != 0:
		return codeFailed{recipe: command[0], code: code}
	}
	return nil
}

// chooseRecipe pipes recipe names to a chooser and runs the selection.
func chooseRecipe(rn *runner, positional []string) error {
	chooser := flagChooser
	if chooser == "" {
		chooser = os.Getenv("JUST_CHOOSER")
	}
	if chooser == "" {
		chooser = "fzf"
	}

	var names []string
	for _, r := range rn.root.recipeOrder {
		if !r.private && r.enabled() {
			names = append(names, r.name.lexeme())
		}
	}

	shell, shellArgs := rn.root.settings.shellCommand(rn.config.shell)
	cmd := exec.Command(shell, append(shellArgs, chooser)...)
	cmd.Dir = rn.search.workingDirectory
	cmd.Stdin = strings.NewReader(strings.Join(names, "\n") + "\n")
	cmd.Stderr = os.Stderr

	output, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("chooser `%s` failed: %w", chooser, err)
	}

	selected := strings.Fields(string(output))
	if len(selected) == 0 {
		return nil
	}
	return rn.run(append(selected, positional...))
}

// summaryNames collects every recipe name, submodule recipes qualified.
func summaryNames(j *justfile, prefix string) []string {
	var names []string
	for _, r := range j.recipeOrder {
		if !r.private {
			names = append(names, prefix+r.name.lexeme())
		}
	}
	for _, sub := range j.moduleOrder {
		names = append(names, summaryNames(sub, prefix+sub.name+"::")...)
	}
	return names
}

// listRecipes prints the --list view: recipes with their parameters and
// doc comments, grouped when [group] attributes are present.
func listRecipes(j *justfile, indent string, submodules bool) {
	if indent == "" {
		fmt.Println("Available recipes:")
	}

	doc := color.New(color.Faint)

	printRecipe := func(r *recipe) {
		line := indent + "    " + r.name.lexeme()
		for _, p := range r.parameters {
			line += " " + p.String()
		}
		fmt.Print(line)
		if aliases := j.aliasesFor(r); len(aliases) > 0 {
			doc.Printf(" # aliases: %s", strings.Join(aliases, ", "))
		}
		if r.doc != "" {
			doc.Printf(" # %s", r.doc)
		}
		fmt.Println()
	}

	groups := j.publicRecipes()
	for _, r := range groups[""] {
		printRecipe(r)
	}
	for _, name := range j.groupNames() {
		fmt.Printf("%s    [%s]\n", indent, name)
		for _, r := range groups[name] {
			printRecipe(r)
		}
	}

	for _, sub := range j.moduleOrder {
		fmt.Printf("%s    %s:\n", indent, sub.name)
		if submodules {
			listRecipes(sub, indent+"    ", submodules)
		}
	}
}

// initJustfile writes a starter justfile, refusing to overwrite one.
func initJustfile(directory string) error {
	path := filepath.Join(directory, "justfile")
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("justfile `%s` already exists", path)
	}
	if err := os.WriteFile(path, []byte("default:\n    echo 'Hello, world!'\n"), 0o644); err != nil {
		return err
	}
	fmt.Fprintf(stderr, "Wrote justfile to `%s`\n", path)
	return nil
}
