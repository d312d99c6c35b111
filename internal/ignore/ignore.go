// Package ignore hides book files from the chapter tree and the preview.
package ignore

import (
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// Files are read from the book root in this order; later rules win.
var Files = []string{".gitignore", ".svgbookignore"}

// Matcher applies gitignore-style rules. A nil Matcher ignores nothing.
type Matcher struct {
	gi *gitignore.GitIgnore
}

func Load(rootAbs string) (*Matcher, error) {
	var lines []string
	for _, name := range Files {
		data, err := os.ReadFile(filepath.Join(rootAbs, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		lines = append(lines, strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")...)
	}
	if len(lines) == 0 {
		return &Matcher{}, nil
	}
	return &Matcher{gi: gitignore.CompileIgnoreLines(lines...)}, nil
}

func (m *Matcher) IsIgnored(relSlash string, isDir bool) bool {
	if m == nil || m.gi == nil || relSlash == "" {
		return false
	}
	p := relSlash
	if isDir && !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return m.gi.MatchesPath(p)
}
