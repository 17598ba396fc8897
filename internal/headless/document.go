// Package headless implements the host editor interfaces in memory, deriving
// fold regions from the tree-sitter syntax tree.
package headless

import (
	"strings"
	"sync"

	"github.com/phobologic/autofold/internal/model"
)

// Document is an in-memory text buffer.
type Document struct {
	mu         sync.RWMutex
	uri        model.URI
	languageID string
	text       string
	version    int
}

// NewDocument returns a document holding text.
func NewDocument(uri model.URI, languageID, text string) *Document {
	return &Document{uri: uri, languageID: languageID, text: text, version: 1}
}

func (d *Document) URI() model.URI { return d.uri }

func (d *Document) LanguageID() string { return d.languageID }

func (d *Document) Text() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.text
}

func (d *Document) LineCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return strings.Count(d.text, "\n") + 1
}

// Version increases with every SetText.
func (d *Document) Version() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

// SetText replaces the buffer contents.
func (d *Document) SetText(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.text = text
	d.version++
}
