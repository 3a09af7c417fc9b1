package server

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

//go:embed docs/*.md
var docsFS embed.FS

type DocPage struct {
	Slug  string
	Title string
	HTML  template.HTML
}

// DocSite is the protocol documentation, rendered once at startup. Pages
// are ordered by their file name prefix ("01-overview.md").
type DocSite struct {
	Pages  []DocPage
	BySlug map[string]int
}

func newDocSite() *DocSite {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)

	site := &DocSite{BySlug: map[string]int{}}
	entries, err := docsFS.ReadDir("docs")
	if err != nil {
		return site
	}

	// ReadDir returns entries sorted by name.
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		data, err := docsFS.ReadFile(path.Join("docs", e.Name()))
		if err != nil {
			continue
		}

		name := strings.TrimSuffix(e.Name(), ".md")
		slug := name
		if _, rest, ok := strings.Cut(name, "-"); ok {
			slug = rest
		}

		title := slug
		for _, line := range strings.Split(string(data), "\n") {
			if t, ok := strings.CutPrefix(strings.TrimSpace(line), "# "); ok {
				title = t
				break
			}
		}

		var buf bytes.Buffer
		if err := md.Convert(data, &buf); err != nil {
			log.Warnf("docs: render %s: %v", e.Name(), err)
			continue
		}
		site.BySlug[slug] = len(site.Pages)
		site.Pages = append(site.Pages, DocPage{Slug: slug, Title: title, HTML: template.HTML(buf.String())})
	}
	return site
}

var docTmpl = template.Must(template.New("doc").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>{{.Page.Title}} · rtcore</title>
<style>body{font-family:system-ui,sans-serif;max-width:52rem;margin:2rem auto;padding:0 1rem;line-height:1.5}
nav a{margin-right:1rem}pre{background:#f4f4f4;padding:.75rem;overflow:auto}
table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:.25rem .5rem}</style></head>
<body><nav>{{range .Pages}}<a href="/docs/{{.Slug}}">{{.Title}}</a>{{end}}</nav>
<main>{{.Page.HTML}}</main></body></html>`))

func (s *Server) handleDocsIndex(w http.ResponseWriter, r *http.Request) {
	if len(s.docs.Pages) == 0 {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, "/docs/"+s.docs.Pages[0].Slug, http.StatusFound)
}

func (s *Server) handleDocPage(w http.ResponseWriter, r *http.Request) {
	i, ok := s.docs.BySlug[chi.URLParam(r, "slug")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = docTmpl.Execute(w, map[string]any{"Pages": s.docs.Pages, "Page": s.docs.Pages[i]})
}
