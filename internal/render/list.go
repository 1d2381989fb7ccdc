package render

import (
	"html/template"
	"sync"
)

// List is the append-only display container. Fragments keep arrival order
// and are never replaced. The loading indicator is shown until the first
// record arrives.
type List struct {
	mu      sync.RWMutex
	title   string
	loading bool
	items   []template.HTML
}

// NewList returns an empty list with the loading indicator shown.
func NewList(title string) *List {
	return &List{title: title, loading: true}
}

// HideLoading hides the loading indicator. It reports whether this call
// changed anything.
func (l *List) HideLoading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.loading {
		return false
	}
	l.loading = false
	return true
}

// Append adds a fragment to the end of the list.
func (l *List) Append(fragment template.HTML) {
	l.mu.Lock()
	l.items = append(l.items, fragment)
	l.mu.Unlock()
}

// Snapshot copies the fragments and the loading state.
func (l *List) Snapshot() ([]template.HTML, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	items := make([]template.HTML, len(l.items))
	copy(items, l.items)
	return items, l.loading
}

func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

func (l *List) Title() string {
	return l.title
}
