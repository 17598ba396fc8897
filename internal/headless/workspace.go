package headless

import (
	"sync"

	"github.com/phobologic/autofold/internal/host"
	"github.com/phobologic/autofold/internal/model"
)

// Workspace tracks open editors and which one has focus. It implements
// host.Host.
type Workspace struct {
	mu        sync.Mutex
	editors   map[model.DocumentID]*Editor
	active    *Editor
	listeners []func(*Editor)
}

var _ host.Host = (*Workspace)(nil)

// NewWorkspace returns a workspace with no open editors.
func NewWorkspace() *Workspace {
	return &Workspace{editors: make(map[model.DocumentID]*Editor)}
}

// Open returns the editor for doc, creating it if needed. Opening does not
// change focus.
func (w *Workspace) Open(doc *Document) *Editor {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := doc.URI().ID()
	if e, ok := w.editors[id]; ok {
		return e
	}
	e := NewEditor(doc)
	for _, fn := range w.listeners {
		e.OnVisibleRangesChanged(fn)
	}
	w.editors[id] = e
	return e
}

// Activate focuses the editor of id.
func (w *Workspace) Activate(id model.DocumentID) (*Editor, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.editors[id]
	if ok {
		w.active = e
	}
	return e, ok
}

// Editor returns the open editor of id.
func (w *Workspace) Editor(id model.DocumentID) (*Editor, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.editors[id]
	return e, ok
}

// Close drops the editor of id, clearing focus if it had it.
func (w *Workspace) Close(id model.DocumentID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if e, ok := w.editors[id]; ok && w.active == e {
		w.active = nil
	}
	delete(w.editors, id)
}

// Active returns the focused editor, or nil.
func (w *Workspace) Active() *Editor {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// ActiveView implements host.Host.
func (w *Workspace) ActiveView() (host.View, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.active == nil {
		return nil, false
	}
	return w.active, true
}

// OnVisibleRangesChanged registers fn on every current and future editor.
func (w *Workspace) OnVisibleRangesChanged(fn func(*Editor)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
	for _, e := range w.editors {
		e.OnVisibleRangesChanged(fn)
	}
}
