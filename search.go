// Locating the justfile, the working directory, and the cache file.

package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"lukechampine.com/blake3"
)

var justfileNames = []string{"justfile", ".justfile"}

type search struct {
	justfile         string
	workingDirectory string
	cacheFile        string
}

type multipleCandidates struct {
	candidates []string
}

func (e multipleCandidates) Error() string {
	return fmt.Sprintf(
		"multiple candidate justfiles found in `%s`: %s",
		filepath.Dir(e.candidates[0]),
		strings.Join(e.candidates, ", "),
	)
}

type justfileNotFound struct {
	directory string
}

func (e justfileNotFound) Error() string {
	return fmt.Sprintf("no justfile found in `%s` or any parent directory", e.directory)
}

// newSearch derives the working directory and cache file from a resolved
// justfile path, or searches upward from the invocation directory when no
// explicit path was given.
func newSearch(cfg *config) (*search, error) {
	var justfilePath string
	switch {
	case cfg.justfile != "":
		abs, err := filepath.Abs(cfg.justfile)
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(abs); err != nil {
			return nil, err
		}
		justfilePath = abs
	default:
		found, err := findJustfile(cfg.invocationDirectory)
		if err != nil {
			return nil, err
		}
		justfilePath = found
	}

	workingDirectory := cfg.workingDirectory
	if workingDirectory == "" {
		workingDirectory = filepath.Dir(justfilePath)
	} else if !filepath.IsAbs(workingDirectory) {
		workingDirectory = filepath.Join(cfg.invocationDirectory, workingDirectory)
	}

	return &search{
		justfile:         justfilePath,
		workingDirectory: workingDirectory,
		cacheFile:        cacheFilePath(workingDirectory, justfilePath),
	}, nil
}

// findJustfile walks up from the starting directory looking for a file
// named `justfile` or `.justfile`, case-insensitively. A directory with
// more than one candidate is an error.
func findJustfile(start string) (string, error) {
	dir := start
	for {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return "", err
		}

		var candidates []string
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			for _, name := range justfileNames {
				if strings.EqualFold(entry.Name(), name) {
					candidates = append(candidates, filepath.Join(dir, entry.Name()))
				}
			}
		}

		sort.Strings(candidates)
		switch len(candidates) {
		case 0:
		case 1:
			return candidates[0], nil
		default:
			return "", multipleCandidates{candidates: candidates}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", justfileNotFound{directory: start}
		}
		dir = parent
	}
}

// cacheFilePath is `.justcache/<project>-<hex16>.json` under the working
// directory, where hex16 fingerprints the (working directory, justfile)
// pair.
func cacheFilePath(workingDirectory, justfilePath string) string {
	project := filepath.Base(workingDirectory)
	if project == "." || project == string(filepath.Separator) {
		project = "UNKNOWN_PROJECT"
	}

	hasher := blake3.New(32, nil)
	hasher.Write([]byte(workingDirectory))
	hasher.Write([]byte(justfilePath))
	digest := hex.EncodeToString(hasher.Sum(nil))[:16]

	return filepath.Join(workingDirectory, ".justcache", fmt.Sprintf("%s-%s.json", project, digest))
}

// parentSearch finds the nearest justfile strictly above the current one,
// for the `fallback` setting.
func (s *search) parentSearch() (*search, bool) {
	parent := filepath.Dir(filepath.Dir(s.justfile))
	found, err := findJustfile(parent)
	if err != nil {
		return nil, false
	}
	return &search{
		justfile:         found,
		workingDirectory: filepath.Dir(found),
		cacheFile:        cacheFilePath(filepath.Dir(found), found),
	}, true
}
