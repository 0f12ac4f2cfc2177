package edge

import (
	"errors"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

// StaticSite serves the front-end bundle from dir. Paths without a matching
// file fall back to index.html so client-side routes survive a reload.
type StaticSite struct {
	root  http.FileSystem
	files http.Handler
}

// NewStaticSite creates a StaticSite rooted at dir.
func NewStaticSite(dir string) *StaticSite {
	root := http.Dir(dir)
	return &StaticSite{root: root, files: http.FileServer(root)}
}

// ServeHTTP implements http.Handler.
func (s *StaticSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := path.Clean("/" + r.URL.Path)
	if name != "/" && !s.exists(name) {
		if path.Ext(name) != "" {
			http.NotFound(w, r)
			return
		}
		r2 := r.Clone(r.Context())
		r2.URL.Path = "/"
		s.files.ServeHTTP(w, r2)
		return
	}
	s.files.ServeHTTP(w, r)
}

func (s *StaticSite) exists(name string) bool {
	f, err := s.root.Open(strings.TrimSuffix(name, "/"))
	if err != nil {
		return !errors.Is(err, fs.ErrNotExist)
	}
	_ = f.Close()
	return true
}
