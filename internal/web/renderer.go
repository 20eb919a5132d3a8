// Package web renders the HTML pages and serves static assets.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"
	"sync"
	"time"
)

//go:embed templates/*.html
var embeddedTemplates embed.FS

const (
	layoutFile      = "layout.html"
	layoutTemplate  = "layout"
	defaultDebounce = 500 * time.Millisecond
)

// Renderer executes page templates. Pages share layout.html and are looked
// up by file name without extension.
type Renderer struct {
	source   fs.FS
	logger   *slog.Logger
	debounce time.Duration

	mu    sync.RWMutex
	pages map[string]*template.Template
}

// NewRenderer parses templates from dir, or from the embedded set when dir is empty.
func NewRenderer(dir string, logger *slog.Logger) (*Renderer, error) {
	var source fs.FS
	if dir == "" {
		sub, err := fs.Sub(embeddedTemplates, "templates")
		if err != nil {
			return nil, fmt.Errorf("open embedded templates: %w", err)
		}
		source = sub
	} else {
		source = os.DirFS(dir)
	}
	return newRenderer(source, logger)
}

func newRenderer(source fs.FS, logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Renderer{source: source, logger: logger, debounce: defaultDebounce}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload parses every page again. The previous set stays active when parsing fails.
func (r *Renderer) Reload() error {
	files, err := fs.Glob(r.source, "*.html")
	if err != nil {
		return fmt.Errorf("list templates: %w", err)
	}

	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		if file == layoutFile {
			continue
		}

		name := strings.TrimSuffix(path.Base(file), path.Ext(file))
		tmpl, err := template.New(name).ParseFS(r.source, layoutFile, file)
		if err != nil {
			return fmt.Errorf("parse template %s: %w", file, err)
		}
		pages[name] = tmpl
	}
	if len(pages) == 0 {
		return fmt.Errorf("no page templates found")
	}

	r.mu.Lock()
	r.pages = pages
	r.mu.Unlock()
	return nil
}

// Render writes the named page with the given status. Nothing is written when execution fails.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, data any) error {
	r.mu.RLock()
	tmpl, ok := r.pages[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, layoutTemplate, data); err != nil {
		return fmt.Errorf("execute template %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
