package render

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
)

// Sink is told about every fragment appended to a List.
type Sink interface {
	Appended(fragment template.HTML) error
}

// LoadingSink is a Sink that also shows the loading indicator. It is told
// when the indicator is hidden, even if no fragment follows.
type LoadingSink interface {
	Sink
	LoadingHidden() error
}

// FragmentWriter writes each fragment on its own line.
type FragmentWriter struct {
	W io.Writer
}

func (f FragmentWriter) Appended(fragment template.HTML) error {
	_, err := fmt.Fprintln(f.W, fragment)
	return err
}

// PageFile rewrites the whole page at Path after every append. The file is
// replaced atomically so readers never see a partial page.
type PageFile struct {
	Path     string
	Renderer *Renderer
	List     *List
}

func (p PageFile) Appended(template.HTML) error {
	return p.Write()
}

func (p PageFile) LoadingHidden() error {
	return p.Write()
}

// Write renders the current page to Path.
func (p PageFile) Write() error {
	tmp, err := os.CreateTemp(filepath.Dir(p.Path), ".eventfeed-*.html")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := p.Renderer.WritePage(tmp, p.List); err != nil {
		tmp.Close()
		return fmt.Errorf("write page: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p.Path)
}
