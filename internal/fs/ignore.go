package fs

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// IgnoreFileName is read from the root of every discovered tree.
const IgnoreFileName = ".archiverignore"

// builtinIgnores never belong on a disc: the ignore file itself, the
// discovery cache written next to the photos, and the directory probe.
var builtinIgnores = []string{IgnoreFileName, ".archiverFileData.json", ".archiver-probe"}

type ignoreRule struct {
	glob     string
	anchored bool // glob contains '/' and matches the whole relative path
}

// IgnoreMatcher decides which files discovery leaves out.
// A pattern without '/' is matched against the base name; one with '/' is
// matched against the slash-separated path relative to the discovery root.
type IgnoreMatcher struct {
	rules []ignoreRule
}

// NewIgnoreMatcher compiles patterns plus the built-in ones.
// Blank lines and '#' comments are skipped.
func NewIgnoreMatcher(patterns []string) *IgnoreMatcher {
	m := &IgnoreMatcher{}
	for _, raw := range append(append([]string(nil), builtinIgnores...), patterns...) {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		m.rules = append(m.rules, ignoreRule{glob: raw, anchored: strings.Contains(raw, "/")})
	}
	return m
}

// Match reports whether relativePath should be skipped.
func (m *IgnoreMatcher) Match(relativePath string) bool {
	slashed := filepath.ToSlash(relativePath)
	base := path.Base(slashed)
	for _, r := range m.rules {
		subject := base
		if r.anchored {
			subject = slashed
		}
		// Malformed globs never match.
		if ok, err := path.Match(r.glob, subject); err == nil && ok {
			return true
		}
	}
	return false
}

// LoadIgnoreMatcher combines configured patterns with those in
// root/.archiverignore, if that file exists.
func LoadIgnoreMatcher(root string, configured []string) (*IgnoreMatcher, error) {
	fromFile, err := readIgnoreFile(filepath.Join(root, IgnoreFileName))
	if err != nil {
		return nil, err
	}
	return NewIgnoreMatcher(append(append([]string(nil), configured...), fromFile...)), nil
}

func readIgnoreFile(name string) ([]string, error) {
	f, err := os.Open(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return lines, nil
}
