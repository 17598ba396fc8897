// Package lang provides a language registry mapping editor language IDs and
// file extensions to tree-sitter grammars.
package lang

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// ErrSyntax is returned by Parse when the tree contains syntax errors.
var ErrSyntax = errors.New("source contains syntax errors")

// Language holds tree-sitter configuration for a supported dialect.
type Language struct {
	// Name is the editor language ID, e.g. "typescriptreact".
	Name       string
	Extensions []string
	lang       *sitter.Language
}

// GetLanguage returns the tree-sitter Language pointer.
func (l *Language) GetLanguage() *sitter.Language {
	return l.lang
}

// NewParser creates a fresh tree-sitter parser for this language.
// Each goroutine must use its own parser (not thread-safe).
func (l *Language) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(l.lang)
	return p
}

// Parse parses source with a fresh parser. When strict is set, a tree that
// contains ERROR or MISSING nodes is closed and ErrSyntax returned.
// The caller owns the returned tree and must Close it.
func (l *Language) Parse(ctx context.Context, source []byte, strict bool) (*sitter.Tree, error) {
	p := l.NewParser()
	defer p.Close()

	tree, err := p.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", l.Name, err)
	}
	if tree == nil || tree.RootNode() == nil {
		return nil, fmt.Errorf("parsing %s: empty tree", l.Name)
	}
	if strict && tree.RootNode().HasError() {
		tree.Close()
		return nil, ErrSyntax
	}
	return tree, nil
}

// Languages maps language IDs to their configuration.
// Populated by init() functions in per-language files.
var Languages = map[string]*Language{}

// extensionMap is built lazily after all init() functions have run.
var extensionMap map[string]string
var extensionOnce sync.Once

func getExtensionMap() map[string]string {
	extensionOnce.Do(func() {
		extensionMap = make(map[string]string)
		for _, l := range Languages {
			for _, ext := range l.Extensions {
				extensionMap[ext] = l.Name
			}
		}
	})
	return extensionMap
}

// ForExtension returns the language ID for a file extension, or "" if unsupported.
func ForExtension(ext string) string {
	return getExtensionMap()[ext]
}

// ForID returns the language registered under a language ID, or nil.
func ForID(id string) *Language {
	return Languages[id]
}

// Supported reports whether id is one of the registered dialects.
func Supported(id string) bool {
	_, ok := Languages[id]
	return ok
}

// Names returns the registered language IDs in sorted order.
func Names() []string {
	names := make([]string, 0, len(Languages))
	for name := range Languages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NodeText returns the source text of a tree-sitter node.
func NodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}
