// The `set` items and their fixed enumeration, plus shell selection.

package main

import "runtime"

type settingType int

const (
	settingBool settingType = iota
	settingString
	settingList
)

type settingInfo struct {
	typ      settingType
	unstable bool
}

var settingTable = map[string]settingInfo{
	"allow-duplicate-recipes":   {typ: settingBool},
	"allow-duplicate-variables": {typ: settingBool},
	"dotenv-filename":           {typ: settingString},
	"dotenv-load":               {typ: settingBool},
	"dotenv-path":               {typ: settingString},
	"fallback":                  {typ: settingBool},
	"ignore-comments":           {typ: settingBool},
	"positional-arguments":      {typ: settingBool},
	"quiet":                     {typ: settingBool},
	"shell":                     {typ: settingList},
	"script-interpreter":        {typ: settingList, unstable: true},
	"tempdir":                   {typ: settingString},
	"windows-powershell":        {typ: settingBool}, // deprecated
	"windows-shell":             {typ: settingList},
}

// A parsed `set` item. Only literal strings are allowed in setting values,
// so they are cooked at parse time.
type setItem struct {
	name        token
	setting     string
	boolValue   bool
	stringValue string
	listValue   []string
}

type settings struct {
	allowDuplicateRecipes   bool
	allowDuplicateVariables bool
	dotenvFilename          string
	dotenvLoad              bool
	dotenvPath              string
	fallback                bool
	ignoreComments          bool
	positionalArguments     bool
	quiet                   bool
	shell                   []string
	scriptInterpreter       []string
	tempdir                 string
	windowsPowershell       bool
	windowsShell            []string
}

func (s *settings) apply(set *setItem) {
	switch set.setting {
	case "allow-duplicate-recipes":
		s.allowDuplicateRecipes = set.boolValue
	case "allow-duplicate-variables":
		s.allowDuplicateVariables = set.boolValue
	case "dotenv-filename":
		s.dotenvFilename = set.stringValue
	case "dotenv-load":
		s.dotenvLoad = set.boolValue
	case "dotenv-path":
		s.dotenvPath = set.stringValue
	case "fallback":
		s.fallback = set.boolValue
	case "ignore-comments":
		s.ignoreComments = set.boolValue
	case "positional-arguments":
		s.positionalArguments = set.boolValue
	case "quiet":
		s.quiet = set.boolValue
	case "shell":
		s.shell = set.listValue
	case "script-interpreter":
		s.scriptInterpreter = set.listValue
	case "tempdir":
		s.tempdir = set.stringValue
	case "windows-powershell":
		s.windowsPowershell = set.boolValue
	case "windows-shell":
		s.windowsShell = set.listValue
	}
}

var defaultShell = []string{"sh", "-cu"}
var powershell = []string{"powershell.exe", "-NoLogo", "-Command"}

// shellCommand picks the argv prefix used to run recipe lines and
// backticks. An explicit --shell wins, then the platform settings, then
// the default.
func (s *settings) shellCommand(override []string) (string, []string) {
	argv := defaultShell
	switch {
	case len(override) > 0:
		argv = override
	case runtime.GOOS == "windows" && len(s.windowsShell) > 0:
		argv = s.windowsShell
	case runtime.GOOS == "windows" && s.windowsPowershell:
		argv = powershell
	case len(s.shell) > 0:
		argv = s.shell
	}
	return argv[0], argv[1:]
}
