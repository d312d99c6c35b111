// Package scan lists the chapters of a book.
package scan

import (
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"svgbook/internal/ignore"
	"svgbook/internal/util"
)

type Options struct {
	RootAbs string
	Ignore  *ignore.Matcher
}

type Node struct {
	Name     string `json:"name"`
	Path     string `json:"path"` // book-relative, forward slashes
	Type     string `json:"type"` // "dir" or "page"
	Children []Node `json:"children,omitempty"`
}

var skipDirs = map[string]struct{}{
	".git":         {},
	"node_modules": {},
	"book":         {}, // rendered output of mdBook-style builds
}

// BuildTree returns the chapter tree under RootAbs: markdown pages and the
// directories that contain them, index pages first.
func BuildTree(opts Options) (Node, error) {
	rootAbs, err := filepath.Abs(opts.RootAbs)
	if err != nil {
		return Node{}, err
	}

	pagesByDir := map[string][]string{}
	dirSet := map[string]struct{}{"": {}}

	err = filepath.WalkDir(rootAbs, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		relOS, err := filepath.Rel(rootAbs, p)
		if err != nil {
			return nil
		}
		rel := filepath.ToSlash(relOS)
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if _, ok := skipDirs[d.Name()]; ok {
				return fs.SkipDir
			}
			if opts.Ignore.IsIgnored(rel, true) {
				return fs.SkipDir
			}
			return nil
		}
		if !util.IsMarkdownFileName(d.Name()) || opts.Ignore.IsIgnored(rel, false) {
			return nil
		}

		dirRel := path.Dir(rel)
		if dirRel == "." {
			dirRel = ""
		}
		pagesByDir[dirRel] = append(pagesByDir[dirRel], rel)
		for cur := dirRel; cur != ""; {
			dirSet[cur] = struct{}{}
			cur = path.Dir(cur)
			if cur == "." {
				cur = ""
			}
		}
		return nil
	})
	if err != nil {
		return Node{}, err
	}

	root := Node{Name: path.Base(filepath.ToSlash(rootAbs)), Path: "", Type: "dir"}
	root.Children = buildDir("", pagesByDir, dirSet)
	return root, nil
}

// Pages flattens a tree into page paths in display order.
func Pages(n Node) []string {
	var out []string
	if n.Type == "page" {
		out = append(out, n.Path)
	}
	for _, c := range n.Children {
		out = append(out, Pages(c)...)
	}
	return out
}

func buildDir(dirRel string, pagesByDir map[string][]string, dirSet map[string]struct{}) []Node {
	prefix := dirRel
	if prefix != "" {
		prefix += "/"
	}
	var nodes []Node
	for d := range dirSet {
		if d == "" || d == dirRel || !strings.HasPrefix(d, prefix) {
			continue
		}
		if rest := strings.TrimPrefix(d, prefix); strings.Contains(rest, "/") {
			continue
		}
		nodes = append(nodes, Node{Name: path.Base(d), Path: d, Type: "dir", Children: buildDir(d, pagesByDir, dirSet)})
	}
	for _, f := range pagesByDir[dirRel] {
		nodes = append(nodes, Node{Name: path.Base(f), Path: f, Type: "page"})
	}

	sort.SliceStable(nodes, func(i, j int) bool {
		ri, rj := rank(nodes[i]), rank(nodes[j])
		if ri != rj {
			return ri < rj
		}
		return strings.ToLower(nodes[i].Name) < strings.ToLower(nodes[j].Name)
	})
	return nodes
}

// rank orders a directory listing: index page, subdirectories, other pages.
func rank(n Node) int {
	switch {
	case n.Type == "page" && isIndex(n.Name):
		return 0
	case n.Type == "dir":
		return 1
	default:
		return 2
	}
}

func isIndex(name string) bool {
	return strings.EqualFold(name, "index.md") || strings.EqualFold(name, "README.md")
}
