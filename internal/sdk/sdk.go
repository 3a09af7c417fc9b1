// Package sdk serves the browser client helper at /sdk/rtcore.js.
package sdk

import (
	"embed"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"

	logging "github.com/ipfs/go-log/v2"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/js"
)

var log = logging.Logger("sdk")

//go:embed *.js
var rawFS embed.FS

var minified = map[string][]byte{}

func init() {
	m := minify.New()
	m.AddFunc("application/javascript", js.Minify)

	_ = fs.WalkDir(rawFS, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || strings.ToLower(filepath.Ext(path)) != ".js" {
			return err
		}
		raw, err := rawFS.ReadFile(path)
		if err != nil {
			return nil
		}
		out, err := m.Bytes("application/javascript", raw)
		if err != nil {
			log.Warnf("minify %s: %v (serving original)", path, err)
			out = raw
		}
		minified[path] = out
		return nil
	})
}

// Handler serves the minified files. Mount it with StripPrefix("/sdk/").
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := minified[strings.TrimPrefix(r.URL.Path, "/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=300")
		_, _ = w.Write(data)
	})
}
