package ui

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"metaboqc/adapters/report/html"
)

// servedExtensions are the files a report output directory may expose.
var servedExtensions = map[string]string{
	".html": "text/html; charset=utf-8",
	".json": "application/json",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// Browser serves rendered reports and their graphics directory straight from
// the output directory
type Browser struct {
	router *chi.Mux
	dir    string
}

// NewBrowser creates a browser rooted at outputDir.
func NewBrowser(outputDir string) *Browser {
	b := &Browser{
		router: chi.NewRouter(),
		dir:    outputDir,
	}
	b.router.Use(middleware.Recoverer)
	b.router.Use(middleware.Compress(5))

	b.router.Get("/{file}", b.handleReportFile)
	b.router.Get("/"+html.GraphicsDir+"/{base}/{file}", b.handleGraphic)
	return b
}

// ServeHTTP implements http.Handler
func (b *Browser) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.router.ServeHTTP(w, r)
}

func (b *Browser) handleReportFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file")
	ct, ok := servedExtensions[strings.ToLower(filepath.Ext(name))]
	if !ok || !plainName(name) || !strings.Contains(name, "_report_") {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", ct)
	http.ServeFile(w, r, filepath.Join(b.dir, name))
}

func (b *Browser) handleGraphic(w http.ResponseWriter, r *http.Request) {
	base, name := chi.URLParam(r, "base"), chi.URLParam(r, "file")
	if !plainName(base) || !plainName(name) || filepath.Ext(name) != ".json" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	http.ServeFile(w, r, filepath.Join(b.dir, html.GraphicsDir, base, name))
}

// plainName rejects anything that could leave the output directory.
func plainName(name string) bool {
	return name != "" && name != "." && name != ".." && filepath.Base(name) == name && !strings.ContainsAny(name, `/\`)
}
