package util

import (
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var ErrEscapesRoot = errors.New("path escapes book root")

// indexNames are tried in order when a directory is opened as a page.
var indexNames = []string{"index.md", "README.md"}

func IsMarkdownFileName(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".md") || strings.HasSuffix(lower, ".markdown")
}

// LooksLikeMarkdownPath guesses whether a link target is a chapter when the
// file system cannot tell.
func LooksLikeMarkdownPath(rel string) bool {
	if rel == "" {
		return true
	}
	lower := strings.ToLower(rel)
	if strings.HasSuffix(lower, "/") || IsMarkdownFileName(lower) {
		return true
	}
	// Links to folders usually come without a trailing slash.
	return !strings.Contains(path.Base(rel), ".")
}

type Resolved struct {
	Abs string
	Rel string // forward slashes
}

// ResolveBookPath maps a slash-separated path onto rootAbs. Paths that would
// leave rootAbs are rejected rather than clamped.
func ResolveBookPath(rootAbs, relURL string) (abs string, rel string, err error) {
	relURL = strings.TrimPrefix(filepath.ToSlash(relURL), "/")
	for _, seg := range strings.Split(relURL, "/") {
		if seg == ".." {
			return "", "", ErrEscapesRoot
		}
	}
	relURL = path.Clean("/" + relURL)
	relURL = strings.TrimPrefix(relURL, "/")

	rootAbs, err = filepath.Abs(rootAbs)
	if err != nil {
		return "", "", err
	}
	abs = filepath.Join(rootAbs, filepath.FromSlash(relURL))

	relCheck, err := filepath.Rel(rootAbs, abs)
	if err != nil {
		return "", "", err
	}
	if relCheck == ".." || strings.HasPrefix(relCheck, ".."+string(filepath.Separator)) {
		return "", "", ErrEscapesRoot
	}
	if relCheck == "." {
		relCheck = ""
	}
	return abs, filepath.ToSlash(relCheck), nil
}

// ResolveIndexRel finds the landing page of a directory, matching
// index.md or README.md case-insensitively.
func ResolveIndexRel(dirAbs string) (string, error) {
	entries, err := os.ReadDir(dirAbs)
	if err != nil {
		return "", err
	}
	for _, want := range indexNames {
		for _, e := range entries {
			if !e.IsDir() && strings.EqualFold(e.Name(), want) {
				return e.Name(), nil
			}
		}
	}
	return "", os.ErrNotExist
}

func ResolveMarkdownRel(rootAbs, rel string) (Resolved, error) {
	abs, cleanRel, err := ResolveBookPath(rootAbs, rel)
	if err != nil {
		return Resolved{}, err
	}

	st, err := os.Stat(abs)
	if err != nil {
		return Resolved{}, err
	}
	if st.IsDir() {
		name, err := ResolveIndexRel(abs)
		if err != nil {
			return Resolved{}, err
		}
		return Resolved{Abs: filepath.Join(abs, name), Rel: path.Join(cleanRel, name)}, nil
	}

	if !IsMarkdownFileName(path.Base(cleanRel)) {
		return Resolved{}, errors.New("not a markdown file")
	}
	return Resolved{Abs: abs, Rel: cleanRel}, nil
}

func Stat(abs string) (os.FileInfo, error) {
	return os.Stat(abs)
}
