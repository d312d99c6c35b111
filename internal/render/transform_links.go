package render

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"svgbook/internal/util"
)

var linkCtxKeyCurrentRel = parser.NewContextKey()

// linkRewriter points relative links at the preview server: chapters under
// pagePrefix, everything else under assetPrefix.
type linkRewriter struct {
	rootAbs     string
	pagePrefix  string
	assetPrefix string
}

func (t *linkRewriter) Transform(node *ast.Document, reader text.Reader, pc parser.Context) {
	curRel, _ := pc.Get(linkCtxKeyCurrentRel).(string)
	curDir := path.Dir(filepath.ToSlash(curRel))
	if curDir == "." {
		curDir = ""
	}

	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch v := n.(type) {
		case *ast.Link:
			dest, asset := t.rewrite(curDir, v.Destination)
			v.Destination = dest
			if asset {
				v.SetAttributeString("target", []byte("_blank"))
				v.SetAttributeString("rel", []byte("noopener"))
			}
		case *ast.Image:
			dest, _ := t.rewrite(curDir, v.Destination)
			v.Destination = dest
		}
		return ast.WalkContinue, nil
	})
}

func (t *linkRewriter) rewrite(curDir string, dest []byte) ([]byte, bool) {
	raw := strings.TrimSpace(string(dest))
	if raw == "" || strings.HasPrefix(raw, "#") {
		return dest, false
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" || u.Path == "" {
		return dest, false
	}

	resolved := path.Clean(path.Join("/", curDir, u.Path))
	resolved = strings.TrimPrefix(resolved, "/")

	if t.isPage(resolved) {
		u.Path = t.pagePrefix + resolved
		return []byte(u.String()), false
	}
	u.Path = t.assetPrefix + resolved
	return []byte(u.String()), true
}

func (t *linkRewriter) isPage(rel string) bool {
	if util.IsMarkdownFileName(path.Base(rel)) {
		return true
	}
	st, err := util.Stat(filepath.Join(t.rootAbs, filepath.FromSlash(rel)))
	if err != nil {
		return util.LooksLikeMarkdownPath(rel)
	}
	return st.IsDir()
}
