// Host platform classification for platform attributes.

package main

import "runtime"

// convertNativePath translates a native path for the shell in use. Shells
// on unix take native paths as-is; a cygwin-style shell on windows would
// need a translation here.
func convertNativePath(workingDirectory, path string) (string, error) {
	return path, nil
}

// platformMatches reports whether the host falls in the platform class a
// platform attribute names.
func platformMatches(kind attributeKind) bool {
	switch kind {
	case attrLinux:
		return runtime.GOOS == "linux"
	case attrMacos:
		return runtime.GOOS == "darwin"
	case attrOpenbsd:
		return runtime.GOOS == "openbsd"
	case attrWindows:
		return runtime.GOOS == "windows"
	case attrUnix:
		return runtime.GOOS != "windows"
	}
	return false
}
