// Package site serves the embedded standings page.
package site

import (
	"context"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Register attaches the standings page and its assets to r.
func Register(_ context.Context, r chi.Router, title string) {
	if r == nil {
		panic("router is nil")
	}

	root := NewRootHandler(title)
	r.Get("/", root.HandleRoot)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(FS())))
}

// RootHandler renders the landing page.
type RootHandler struct {
	title string
	page  *template.Template
}

// NewRootHandler creates a new root handler.
func NewRootHandler(title string) *RootHandler {
	if title == "" {
		title = "Predictor"
	}
	return &RootHandler{title: title, page: indexTemplate}
}

// HandleRoot handles GET / requests.
func (h *RootHandler) HandleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = h.page.Execute(w, struct{ Title string }{h.title})
}
