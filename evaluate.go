// Expression and line evaluation. The evaluator walks expressions to
// strings using a scope chain, evaluating assignments lazily on first
// reference and shelling out for backticks.

package main

import (
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
)

type evaluator struct {
	justfile *justfile
	scope    *scope
	config   *config
	search   *search
	dotenv   map[string]string
}

func newEvaluator(j *justfile, cfg *config, s *search, dotenv map[string]string) *evaluator {
	return &evaluator{
		justfile: j,
		scope:    newScope(nil),
		config:   cfg,
		search:   s,
		dotenv:   dotenv,
	}
}

// evaluateAssignments forces every module-level assignment, applying
// command-line overrides, and returns the module scope.
func (ev *evaluator) evaluateAssignments() (*scope, error) {
	for name, value := range ev.config.overrides {
		if a, ok := ev.justfile.assignments[name]; ok {
			ev.scope.bind(name, value, a.export)
		}
	}
	for _, a := range ev.justfile.assignmentOrder {
		if _, err := ev.lookupAssignment(a); err != nil {
			return nil, err
		}
	}
	return ev.scope, nil
}

// lookupAssignment returns the assignment's value, evaluating and binding
// it on first use. Overrides bound into the scope short-circuit.
func (ev *evaluator) lookupAssignment(a *assignment) (string, error) {
	if value, ok := ev.scope.value(a.name.lexeme()); ok {
		return value, nil
	}
	value, err := ev.evaluateExpression(a.value)
	if err != nil {
		return "", err
	}
	ev.scope.bind(a.name.lexeme(), value, a.export)
	return value, nil
}

func (ev *evaluator) evaluateExpression(expr expression) (string, error) {
	switch expr := expr.(type) {
	case *stringLiteral:
		return expr.cooked, nil

	case *variableExpr:
		name := expr.name.lexeme()
		if value, ok := ev.scope.value(name); ok {
			return value, nil
		}
		if a, ok := ev.justfile.assignments[name]; ok {
			return ev.lookupAssignment(a)
		}
		return "", compileErrorAt(expr.name, undefinedVariable{variable: name})

	case *backtickExpr:
		return ev.runBacktick(expr)

	case *callExpr:
		return ev.evaluateCall(expr)

	case *concatExpr:
		lhs, err := ev.evaluateExpression(expr.lhs)
		if err != nil {
			return "", err
		}
		rhs, err := ev.evaluateExpression(expr.rhs)
		if err != nil {
			return "", err
		}
		return lhs + rhs, nil

	case *joinExpr:
		rhs, err := ev.evaluateExpression(expr.rhs)
		if err != nil {
			return "", err
		}
		if expr.lhs == nil {
			return "/" + rhs, nil
		}
		lhs, err := ev.evaluateExpression(expr.lhs)
		if err != nil {
			return "", err
		}
		return lhs + "/" + rhs, nil

	case *conditionalExpr:
		return ev.evaluateConditional(expr)

	case *groupExpr:
		return ev.evaluateExpression(expr.inner)
	}
	return "", internalError{message: fmt.Sprintf("unexpected expression %T", expr)}
}

func (ev *evaluator) evaluateConditional(expr *conditionalExpr) (string, error) {
	lhs, err := ev.evaluateExpression(expr.lhs)
	if err != nil {
		return "", err
	}
	rhs, err := ev.evaluateExpression(expr.rhs)
	if err != nil {
		return "", err
	}

	var taken bool
	switch expr.operator {
	case opEquals:
		taken = lhs == rhs
	case opNotEquals:
		taken = lhs != rhs
	case opRegexMatch:
		re, err := regexp.Compile(rhs)
		if err != nil {
			return "", fmt.Errorf("invalid regex in conditional: %w", err)
		}
		taken = re.MatchString(lhs)
	}

	if taken {
		return ev.evaluateExpression(expr.then)
	}
	return ev.evaluateExpression(expr.otherwise)
}

func (ev *evaluator) evaluateCall(call *callExpr) (string, error) {
	f, ok := functions[call.name.lexeme()]
	if !ok {
		return "", compileErrorAt(call.name, unknownFunction{function: call.name.lexeme()})
	}

	args := make([]string, 0, len(call.arguments))
	for _, argument := range call.arguments {
		value, err := ev.evaluateExpression(argument)
		if err != nil {
			return "", err
		}
		args = append(args, value)
	}

	value, err := f.call(ev, args)
	if err != nil {
		return "", compileErrorAt(call.name, functionCallFailed{
			function: call.name.lexeme(),
			message:  err.Error(),
		})
	}
	return value, nil
}

// runBacktick spawns the configured shell with the backtick's source and
// captures stdout, stripping a single trailing newline.
func (ev *evaluator) runBacktick(expr *backtickExpr) (string, error) {
	shell, args := ev.justfile.settings.shellCommand(ev.config.shell)
	cmd := exec.Command(shell, append(args, expr.contents)...)
	cmd.Dir = ev.search.workingDirectory
	cmd.Env = ev.childEnvironment(nil)
	cmd.Stderr = os.Stderr

	output, err := cmd.Output()
	if err != nil {
		if exit, ok := err.(*exec.ExitError); ok {
			return "", compileErrorAt(expr.token, backtickFailed{status: exit.ExitCode()})
		}
		return "", compileErrorAt(expr.token, fmt.Errorf("backtick failed: %w", err))
	}

	out := string(output)
	out = strings.TrimSuffix(out, "\n")
	out = strings.TrimSuffix(out, "\r")
	return out, nil
}

// evaluateLine concatenates a body line's fragments.
func (ev *evaluator) evaluateLine(l line) (string, error) {
	var b strings.Builder
	for _, f := range l.fragments {
		switch f := f.(type) {
		case textFragment:
			b.WriteString(f.text())
		case interpolationFragment:
			value, err := ev.evaluateExpression(f.expression)
			if err != nil {
				return "", err
			}
			b.WriteString(value)
		}
	}
	return b.String(), nil
}

// evaluateParameters binds a recipe's parameters to positional arguments in
// a child scope, evaluating default expressions for missing trailing
// arguments. Each default sees the bindings made before it. The returned
// slice holds the bound values in parameter order, variadics flattened
// last, for `positional-arguments` support.
func (ev *evaluator) evaluateParameters(r *recipe, args []string) (*scope, []string, error) {
	parent := ev.scope
	child := newScope(parent)
	ev.scope = child
	defer func() { ev.scope = parent }()

	var positional []string
	rest := args
	for _, p := range r.parameters {
		var value string
		switch {
		case p.kind.variadic():
			if len(rest) == 0 && p.defaultValue != nil {
				v, err := ev.evaluateExpression(p.defaultValue)
				if err != nil {
					return nil, nil, err
				}
				value = v
				positional = append(positional, v)
			} else {
				value = strings.Join(rest, " ")
				positional = append(positional, rest...)
				rest = nil
			}
		case len(rest) > 0:
			value = rest[0]
			positional = append(positional, value)
			rest = rest[1:]
		default:
			if p.defaultValue == nil {
				return nil, nil, internalError{message: fmt.Sprintf("missing argument for parameter `%s`", p.name.lexeme())}
			}
			v, err := ev.evaluateExpression(p.defaultValue)
			if err != nil {
				return nil, nil, err
			}
			value = v
			positional = append(positional, v)
		}
		child.bind(p.name.lexeme(), value, p.export)
	}

	return child, positional, nil
}

// childEnvironment builds the environment for a spawned process: the parent
// environment, the dotenv map, then every exported binding.
func (ev *evaluator) childEnvironment(extra map[string]string) []string {
	env := os.Environ()
	for key, value := range ev.dotenv {
		env = append(env, key+"="+value)
	}
	for name, value := range ev.scope.exported() {
		env = append(env, name+"="+value)
	}
	for name, value := range extra {
		env = append(env, name+"="+value)
	}
	return env
}
