// Dotenv discovery and loading.

package main

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// loadDotenv builds the dotenv map for a module per its settings: an
// explicit `dotenv-path` is loaded unconditionally; otherwise, with
// `dotenv-load` or a `dotenv-filename`, the file is searched for upward
// from the working directory. A missing searched file is not an error.
func loadDotenv(s *search, st *settings) (map[string]string, error) {
	if st.dotenvPath != "" {
		path := st.dotenvPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(s.workingDirectory, path)
		}
		env, err := godotenv.Read(path)
		if err != nil {
			return nil, dotenvLoadError{err: err}
		}
		return env, nil
	}

	if !st.dotenvLoad && st.dotenvFilename == "" {
		return map[string]string{}, nil
	}

	filename := st.dotenvFilename
	if filename == "" {
		filename = ".env"
	}

	for dir := s.workingDirectory; ; dir = filepath.Dir(dir) {
		candidate := filepath.Join(dir, filename)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			env, err := godotenv.Read(candidate)
			if err != nil {
				return nil, dotenvLoadError{err: err}
			}
			return env, nil
		}
		if filepath.Dir(dir) == dir {
			return map[string]string{}, nil
		}
	}
}
