package handler

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// SPAHandler serves files from a built single page app and falls back to
// index.html so client side routes resolve.
type SPAHandler struct {
	staticDir string
	indexFile string
	prefix    string
}

func NewSPAHandler(staticDir, prefix string) *SPAHandler {
	return &SPAHandler{
		staticDir: staticDir,
		indexFile: "index.html",
		prefix:    prefix,
	}
}

func (h *SPAHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.NotFound(w, r)
		return
	}

	urlPath := strings.TrimPrefix(r.URL.Path, h.prefix)
	// path.Clean on a rooted path drops any ".." that would escape staticDir.
	cleaned := path.Clean("/" + urlPath)
	filePath := filepath.Join(h.staticDir, filepath.FromSlash(cleaned))

	info, err := os.Stat(filePath)
	if err == nil && !info.IsDir() {
		http.ServeFile(w, r, filePath)
		return
	}

	// Missing assets are real 404s rather than the app shell.
	if path.Ext(cleaned) != "" {
		http.NotFound(w, r)
		return
	}

	indexPath := filepath.Join(h.staticDir, h.indexFile)
	if _, err := os.Stat(indexPath); err != nil {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, indexPath)
}

func StaticFileServer(staticDir, prefix string) http.Handler {
	return NewSPAHandler(staticDir, prefix)
}
