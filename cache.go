// The on-disk recipe cache: a JSON map from fully-qualified recipe name to
// the hash of its last successful run. Reads are best-effort — unknown
// versions, parse errors, and I/O errors all count as an absent cache.
// Writes are atomic via a temporary file and rename.

package main

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"

	"lukechampine.com/blake3"
)

const cacheVersion = "unstable-1"

type recipeCache struct {
	BodyHash string `json:"body_hash"`
}

type justfileCache struct {
	Version          string                 `json:"version"`
	JustfilePath     string                 `json:"justfile_path"`
	WorkingDirectory string                 `json:"working_directory"`
	Recipes          map[string]recipeCache `json:"recipes"`
}

type cacheStore struct {
	path  string
	cache justfileCache
}

// openCache loads the cache for a search, treating anything unreadable or
// unrecognized as empty.
func openCache(s *search) *cacheStore {
	store := &cacheStore{
		path: s.cacheFile,
		cache: justfileCache{
			Version:          cacheVersion,
			JustfilePath:     s.justfile,
			WorkingDirectory: s.workingDirectory,
			Recipes:          map[string]recipeCache{},
		},
	}

	data, err := os.ReadFile(s.cacheFile)
	if err != nil {
		return store
	}
	var loaded justfileCache
	if err := json.Unmarshal(data, &loaded); err != nil {
		return store
	}
	if loaded.Version != cacheVersion || loaded.Recipes == nil {
		return store
	}
	store.cache.Recipes = loaded.Recipes
	return store
}

// lookup returns the stored hash for a recipe, if any.
func (c *cacheStore) lookup(namepath string) (string, bool) {
	entry, ok := c.cache.Recipes[namepath]
	return entry.BodyHash, ok
}

// insert records a fresh hash for a recipe in memory.
func (c *cacheStore) insert(namepath, bodyHash string) {
	c.cache.Recipes[namepath] = recipeCache{BodyHash: bodyHash}
}

// save persists the cache, creating the parent directory as needed and
// writing atomically.
func (c *cacheStore) save() error {
	data, err := json.MarshalIndent(&c.cache, "", "  ")
	if err != nil {
		return internalError{message: "failed to serialize cache: " + err.Error()}
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return cacheFileWrite{path: c.path, err: err}
	}

	temp, err := os.CreateTemp(dir, ".cache-*")
	if err != nil {
		return cacheFileWrite{path: c.path, err: err}
	}
	defer os.Remove(temp.Name())

	if _, err := temp.Write(data); err != nil {
		temp.Close()
		return cacheFileWrite{path: c.path, err: err}
	}
	if err := temp.Close(); err != nil {
		return cacheFileWrite{path: c.path, err: err}
	}
	if err := os.Rename(temp.Name(), c.path); err != nil {
		return cacheFileWrite{path: c.path, err: err}
	}
	return nil
}

// bodyHash fingerprints a cached recipe run: the evaluated parameter
// values, the evaluated body lines, and the hashes of transitive cached
// dependencies, so an upstream change re-runs dependents.
func bodyHash(parameters []string, lines []string, dependencyHashes []string) string {
	hasher := blake3.New(32, nil)
	for _, p := range parameters {
		hasher.Write([]byte(p))
		hasher.Write([]byte{0})
	}
	hasher.Write([]byte{1})
	for _, l := range lines {
		hasher.Write([]byte(l))
		hasher.Write([]byte{0})
	}
	hasher.Write([]byte{1})
	for _, d := range dependencyHashes {
		hasher.Write([]byte(d))
		hasher.Write([]byte{0})
	}
	return hex.EncodeToString(hasher.Sum(nil))
}
