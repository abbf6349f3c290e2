// Built-in functions callable from expressions. The table is fixed; each
// entry couples an arity range with a handler. Handlers see the evaluator
// for access to the search paths, the configuration, and the dotenv map.

package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"unicode"

	"github.com/Masterminds/semver/v3"
	"github.com/adrg/xdg"
	"github.com/google/uuid"
	"github.com/iancoleman/strcase"
	"lukechampine.com/blake3"
)

type function struct {
	minArgs int
	maxArgs int // -1 for unbounded
	call    func(ev *evaluator, args []string) (string, error)
}

func nullary(f func(ev *evaluator) (string, error)) function {
	return function{0, 0, func(ev *evaluator, _ []string) (string, error) {
		return f(ev)
	}}
}

func unary(f func(ev *evaluator, a string) (string, error)) function {
	return function{1, 1, func(ev *evaluator, args []string) (string, error) {
		return f(ev, args[0])
	}}
}

func unaryOpt(f func(ev *evaluator, a string, b *string) (string, error)) function {
	return function{1, 2, func(ev *evaluator, args []string) (string, error) {
		var b *string
		if len(args) == 2 {
			b = &args[1]
		}
		return f(ev, args[0], b)
	}}
}

func binary(f func(ev *evaluator, a, b string) (string, error)) function {
	return function{2, 2, func(ev *evaluator, args []string) (string, error) {
		return f(ev, args[0], args[1])
	}}
}

func binaryPlus(f func(ev *evaluator, a, b string, rest []string) (string, error)) function {
	return function{2, -1, func(ev *evaluator, args []string) (string, error) {
		return f(ev, args[0], args[1], args[2:])
	}}
}

func ternary(f func(ev *evaluator, a, b, c string) (string, error)) function {
	return function{3, 3, func(ev *evaluator, args []string) (string, error) {
		return f(ev, args[0], args[1], args[2])
	}}
}

var functions = map[string]function{
	"absolute_path":               unary(absolutePath),
	"append":                      binary(appendFn),
	"arch":                        nullary(arch),
	"blake3":                      unary(blake3Fn),
	"blake3_file":                 unary(blake3File),
	"cache_directory":             nullary(func(*evaluator) (string, error) { return dir("cache", xdg.CacheHome) }),
	"canonicalize":                unary(canonicalize),
	"capitalize":                  unary(capitalize),
	"choose":                      binary(choose),
	"clean":                       unary(clean),
	"config_directory":            nullary(func(*evaluator) (string, error) { return dir("config", xdg.ConfigHome) }),
	"config_local_directory":      nullary(func(*evaluator) (string, error) { return dir("local config", xdg.ConfigHome) }),
	"data_directory":              nullary(func(*evaluator) (string, error) { return dir("data", xdg.DataHome) }),
	"data_local_directory":        nullary(func(*evaluator) (string, error) { return dir("local data", xdg.DataHome) }),
	"env":                         unaryOpt(env),
	"env_var":                     unary(envVar),
	"env_var_or_default":          binary(envVarOrDefault),
	"error":                      unary(errorFn),
	"executable_directory":        nullary(func(*evaluator) (string, error) { return dir("executable", xdg.BinHome) }),
	"extension":                   unary(extension),
	"file_name":                   unary(fileName),
	"file_stem":                   unary(fileStem),
	"home_directory":              nullary(homeDirectory),
	"invocation_directory":        nullary(invocationDirectory),
	"invocation_directory_native": nullary(invocationDirectoryNative),
	"join":                        binaryPlus(join),
	"just_executable":             nullary(justExecutable),
	"just_pid":                    nullary(justPid),
	"justfile":                    nullary(justfileFn),
	"justfile_directory":          nullary(justfileDirectory),
	"kebabcase":                   unary(caseFn(strcase.ToKebab)),
	"lowercamelcase":              unary(caseFn(strcase.ToLowerCamel)),
	"lowercase":                   unary(caseFn(strings.ToLower)),
	"num_cpus":                    nullary(numCpus),
	"os":                          nullary(osFn),
	"os_family":                   nullary(osFamily),
	"parent_directory":            unary(parentDirectory),
	"path_exists":                 unary(pathExists),
	"prepend":                     binary(prepend),
	"quote":                       unary(quote),
	"replace":                     ternary(replace),
	"replace_regex":               ternary(replaceRegex),
	"semver_matches":              binary(semverMatches),
	"sha256":                      unary(sha256Fn),
	"sha256_file":                 unary(sha256File),
	"shoutykebabcase":             unary(caseFn(strcase.ToScreamingKebab)),
	"shoutysnakecase":             unary(caseFn(strcase.ToScreamingSnake)),
	"snakecase":                   unary(caseFn(strcase.ToSnake)),
	"titlecase":                   unary(titlecase),
	"trim":                        unary(trim(strings.TrimSpace)),
	"trim_end":                    unary(trim(func(s string) string { return strings.TrimRightFunc(s, unicode.IsSpace) })),
	"trim_end_match":              binary(trimEndMatch),
	"trim_end_matches":            binary(trimEndMatches),
	"trim_start":                  unary(trim(func(s string) string { return strings.TrimLeftFunc(s, unicode.IsSpace) })),
	"trim_start_match":            binary(trimStartMatch),
	"trim_start_matches":          binary(trimStartMatches),
	"uppercamelcase":              unary(caseFn(strcase.ToCamel)),
	"uppercase":                   unary(caseFn(strings.ToUpper)),
	"uuid":                        nullary(uuidFn),
	"without_extension":           unary(withoutExtension),
}

func absolutePath(ev *evaluator, path string) (string, error) {
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	return filepath.Clean(filepath.Join(ev.search.workingDirectory, path)), nil
}

func appendFn(_ *evaluator, suffix, s string) (string, error) {
	fields := strings.Fields(s)
	for i := range fields {
		fields[i] += suffix
	}
	return strings.Join(fields, " "), nil
}

func arch(*evaluator) (string, error) {
	switch runtime.GOARCH {
	case "amd64":
		return "x86_64", nil
	case "arm64":
		return "aarch64", nil
	case "386":
		return "x86", nil
	}
	return runtime.GOARCH, nil
}

func blake3Fn(_ *evaluator, s string) (string, error) {
	sum := blake3.Sum256([]byte(s))
	return hex.EncodeToString(sum[:]), nil
}

func blake3File(ev *evaluator, path string) (string, error) {
	data, err := os.ReadFile(filepath.Join(ev.search.workingDirectory, path))
	if err != nil {
		return "", fmt.Errorf("failed to hash `%s`: %w", path, err)
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func canonicalize(_ *evaluator, path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", fmt.Errorf("I/O error canonicalizing path: %w", err)
	}
	return filepath.Abs(resolved)
}

func capitalize(_ *evaluator, s string) (string, error) {
	var b strings.Builder
	for i, c := range s {
		if i == 0 {
			b.WriteRune(unicode.ToUpper(c))
		} else {
			b.WriteRune(unicode.ToLower(c))
		}
	}
	return b.String(), nil
}

func choose(_ *evaluator, n, alphabet string) (string, error) {
	if alphabet == "" {
		return "", fmt.Errorf("empty alphabet")
	}
	seen := map[rune]bool{}
	runes := []rune(alphabet)
	for _, c := range runes {
		if seen[c] {
			return "", fmt.Errorf("alphabet contains repeated character `%c`", c)
		}
		seen[c] = true
	}
	count, err := strconv.Atoi(n)
	if err != nil || count < 0 {
		return "", fmt.Errorf("failed to parse `%s` as a positive integer", n)
	}
	var b strings.Builder
	for i := 0; i < count; i++ {
		b.WriteRune(runes[rand.Intn(len(runes))])
	}
	return b.String(), nil
}

func clean(_ *evaluator, path string) (string, error) {
	return filepath.Clean(path), nil
}

func dir(name, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%s directory not found", name)
	}
	return path, nil
}

func env(ev *evaluator, key string, fallback *string) (string, error) {
	if fallback != nil {
		return envVarOrDefault(ev, key, *fallback)
	}
	return envVar(ev, key)
}

func envVar(ev *evaluator, key string) (string, error) {
	if value, ok := ev.dotenv[key]; ok {
		return value, nil
	}
	if value, ok := os.LookupEnv(key); ok {
		return value, nil
	}
	return "", fmt.Errorf("environment variable `%s` not present", key)
}

func envVarOrDefault(ev *evaluator, key, fallback string) (string, error) {
	if value, ok := ev.dotenv[key]; ok {
		return value, nil
	}
	if value, ok := os.LookupEnv(key); ok {
		return value, nil
	}
	return fallback, nil
}

func errorFn(_ *evaluator, message string) (string, error) {
	return "", fmt.Errorf("%s", message)
}

func extension(_ *evaluator, path string) (string, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return "", fmt.Errorf("could not extract extension from `%s`", path)
	}
	return ext[1:], nil
}

func fileName(_ *evaluator, path string) (string, error) {
	name := filepath.Base(path)
	if name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("could not extract file name from `%s`", path)
	}
	return name, nil
}

func fileStem(_ *evaluator, path string) (string, error) {
	name, err := fileName(nil, path)
	if err != nil {
		return "", fmt.Errorf("could not extract file stem from `%s`", path)
	}
	return strings.TrimSuffix(name, filepath.Ext(name)), nil
}

func homeDirectory(*evaluator) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home directory not found")
	}
	return home, nil
}

func invocationDirectory(ev *evaluator) (string, error) {
	return convertNativePath(ev.search.workingDirectory, ev.config.invocationDirectory)
}

func invocationDirectoryNative(ev *evaluator) (string, error) {
	return ev.config.invocationDirectory, nil
}

func join(_ *evaluator, base, with string, rest []string) (string, error) {
	result := joinPath(base, with)
	for _, part := range rest {
		result = joinPath(result, part)
	}
	return result, nil
}

// joinPath appends b to a, except that an absolute b replaces a outright.
func joinPath(a, b string) string {
	if filepath.IsAbs(b) {
		return b
	}
	return filepath.Join(a, b)
}

func justExecutable(*evaluator) (string, error) {
	path, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("error getting current executable: %w", err)
	}
	return path, nil
}

func justPid(*evaluator) (string, error) {
	return strconv.Itoa(os.Getpid()), nil
}

func justfileFn(ev *evaluator) (string, error) {
	return ev.search.justfile, nil
}

func justfileDirectory(ev *evaluator) (string, error) {
	return filepath.Dir(ev.search.justfile), nil
}

func caseFn(f func(string) string) func(*evaluator, string) (string, error) {
	return func(_ *evaluator, s string) (string, error) {
		return f(s), nil
	}
}

func numCpus(*evaluator) (string, error) {
	return strconv.Itoa(runtime.NumCPU()), nil
}

func osFn(*evaluator) (string, error) {
	if runtime.GOOS == "darwin" {
		return "macos", nil
	}
	return runtime.GOOS, nil
}

func osFamily(*evaluator) (string, error) {
	if runtime.GOOS == "windows" {
		return "windows", nil
	}
	return "unix", nil
}

func parentDirectory(_ *evaluator, path string) (string, error) {
	parent := filepath.Dir(path)
	if parent == path {
		return "", fmt.Errorf("could not extract parent directory from `%s`", path)
	}
	return parent, nil
}

func pathExists(ev *evaluator, path string) (string, error) {
	_, err := os.Stat(filepath.Join(ev.search.workingDirectory, path))
	return strconv.FormatBool(err == nil), nil
}

func prepend(_ *evaluator, prefix, s string) (string, error) {
	fields := strings.Fields(s)
	for i := range fields {
		fields[i] = prefix + fields[i]
	}
	return strings.Join(fields, " "), nil
}

func quote(_ *evaluator, s string) (string, error) {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'", nil
}

func replace(_ *evaluator, s, from, to string) (string, error) {
	return strings.ReplaceAll(s, from, to), nil
}

func replaceRegex(_ *evaluator, s, pattern, replacement string) (string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", err
	}
	return re.ReplaceAllString(s, replacement), nil
}

func semverMatches(_ *evaluator, version, requirement string) (string, error) {
	constraint, err := semver.NewConstraint(requirement)
	if err != nil {
		return "", fmt.Errorf("invalid semver requirement: %w", err)
	}
	parsed, err := semver.NewVersion(version)
	if err != nil {
		return "", fmt.Errorf("invalid semver version: %w", err)
	}
	return strconv.FormatBool(constraint.Check(parsed)), nil
}

func sha256Fn(_ *evaluator, s string) (string, error) {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:]), nil
}

func sha256File(ev *evaluator, path string) (string, error) {
	data, err := os.ReadFile(filepath.Join(ev.search.workingDirectory, path))
	if err != nil {
		return "", fmt.Errorf("failed to read `%s`: %w", path, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func titlecase(_ *evaluator, s string) (string, error) {
	words := strings.Fields(strcase.ToDelimited(s, ' '))
	for i, word := range words {
		words[i], _ = capitalize(nil, word)
	}
	return strings.Join(words, " "), nil
}

func trim(f func(string) string) func(*evaluator, string) (string, error) {
	return func(_ *evaluator, s string) (string, error) {
		return f(s), nil
	}
}

func trimEndMatch(_ *evaluator, s, pat string) (string, error) {
	return strings.TrimSuffix(s, pat), nil
}

func trimEndMatches(_ *evaluator, s, pat string) (string, error) {
	if pat == "" {
		return s, nil
	}
	for strings.HasSuffix(s, pat) {
		s = strings.TrimSuffix(s, pat)
	}
	return s, nil
}

func trimStartMatch(_ *evaluator, s, pat string) (string, error) {
	return strings.TrimPrefix(s, pat), nil
}

func trimStartMatches(_ *evaluator, s, pat string) (string, error) {
	if pat == "" {
		return s, nil
	}
	for strings.HasPrefix(s, pat) {
		s = strings.TrimPrefix(s, pat)
	}
	return s, nil
}

func uuidFn(*evaluator) (string, error) {
	return uuid.New().String(), nil
}

func withoutExtension(_ *evaluator, path string) (string, error) {
	stem, err := fileStem(nil, path)
	if err != nil {
		return "", fmt.Errorf("could not extract file stem from `%s`", path)
	}
	return filepath.Join(filepath.Dir(path), stem), nil
}
