package render

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"path/filepath"

	"github.com/wrongjunior/eventfeed/internal/domain"
)

// Layout selects which template slots records are rendered with.
type Layout string

const (
	// Split renders bodiless records small and records with a body large.
	Split Layout = "split"
	// Single renders every record with the entry template.
	Single Layout = "single"
)

// Renderer owns the compiled template set.
type Renderer struct {
	tmpl   *template.Template
	layout Layout
}

// NewRenderer compiles the built-in templates, then any *.tmpl files in dir,
// which may redefine the built-in slots. dir may be empty.
func NewRenderer(layout Layout, dir string) (*Renderer, error) {
	switch layout {
	case Split, Single:
	case "":
		layout = Split
	default:
		return nil, fmt.Errorf("unknown layout %q", layout)
	}

	tmpl, err := template.New("eventfeed").Funcs(template.FuncMap{
		"markdown": renderMarkdown,
	}).Parse(defaultTemplates)
	if err != nil {
		return nil, fmt.Errorf("parse built-in templates: %w", err)
	}
	if dir != "" {
		matches, err := filepath.Glob(filepath.Join(dir, "*.tmpl"))
		if err != nil {
			return nil, err
		}
		if len(matches) > 0 {
			if tmpl, err = tmpl.ParseFiles(matches...); err != nil {
				return nil, fmt.Errorf("parse templates in %s: %w", dir, err)
			}
		}
	}
	return &Renderer{tmpl: tmpl, layout: layout}, nil
}

// TemplateFor names the slot ev is rendered with.
func (r *Renderer) TemplateFor(ev domain.DisplayEvent) string {
	if r.layout == Single {
		return EntryTemplate
	}
	switch ev.(type) {
	case domain.LargeEvent:
		return LargeTemplate
	default:
		return SmallTemplate
	}
}

// Render executes the slot selected for ev and returns the fragment.
func (r *Renderer) Render(ev domain.DisplayEvent) (template.HTML, error) {
	name := r.TemplateFor(ev)
	var b bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&b, name, ev); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return template.HTML(b.String()), nil
}

type pageData struct {
	Title   string
	Loading bool
	Items   []template.HTML
}

// WritePage renders the whole list as an HTML page.
func (r *Renderer) WritePage(w io.Writer, l *List) error {
	items, loading := l.Snapshot()
	return r.tmpl.ExecuteTemplate(w, PageTemplate, pageData{
		Title:   l.Title(),
		Loading: loading,
		Items:   items,
	})
}
