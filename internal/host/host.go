// Package host declares the editor collaborators the reconciler drives.
package host

import (
	"context"

	"github.com/phobologic/autofold/internal/model"
)

// Command is a fold operation executed against the active view. Fold and
// Unfold act at every cursor; the host moves a cursor that a fold hides to
// the fold anchor.
type Command string

const (
	CommandFold              Command = "editor.fold"
	CommandUnfold            Command = "editor.unfold"
	CommandFoldAll           Command = "editor.foldAll"
	CommandUnfoldAll         Command = "editor.unfoldAll"
	CommandUnfoldRecursively Command = "editor.unfoldRecursively"
)

// Document is a text buffer owned by the host.
type Document interface {
	URI() model.URI
	LanguageID() string
	Text() string
	LineCount() int
}

// View is an editor showing one document.
type View interface {
	Document() Document
	Selections() []model.Selection
	SetSelections(sel []model.Selection)
	// VisibleRanges is recomputed on every call and goes stale as soon as
	// a command runs.
	VisibleRanges() model.VisibilitySnapshot
	Execute(ctx context.Context, cmd Command) error
}

// Host exposes the editor the user is looking at.
type Host interface {
	// ActiveView returns the focused view, or false when there is none.
	ActiveView() (View, bool)
}

// Quiescer is implemented by views that can report when rendering has
// settled after a command.
type Quiescer interface {
	WaitQuiescent(ctx context.Context) error
}
