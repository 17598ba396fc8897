package headless

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/phobologic/autofold/internal/host"
	"github.com/phobologic/autofold/internal/lang"
	"github.com/phobologic/autofold/internal/model"
	"github.com/phobologic/autofold/internal/pragma"
)

// ErrInvalidLine is returned when a command targets a line outside the document.
var ErrInvalidLine = errors.New("line out of range")

// FoldMarker is appended to folded anchor lines by Render.
const FoldMarker = " ⋯"

// Editor is a view over a Document with a fold model. It implements
// host.View and host.Quiescer; commands take effect synchronously.
type Editor struct {
	doc *Document

	mu         sync.Mutex
	version    int
	regions    []Region
	folded     map[int]bool
	selections []model.Selection
	failures   map[int]error
	commands   []host.Command
	listeners  []func(*Editor)
}

var (
	_ host.View     = (*Editor)(nil)
	_ host.Quiescer = (*Editor)(nil)
)

// NewEditor opens doc with everything unfolded and the cursor at the top.
func NewEditor(doc *Document) *Editor {
	e := &Editor{
		doc:        doc,
		folded:     make(map[int]bool),
		selections: []model.Selection{model.Cursor(0)},
		failures:   make(map[int]error),
	}
	e.mu.Lock()
	e.syncLocked()
	e.mu.Unlock()
	return e
}

// Document returns the buffer shown by the editor.
func (e *Editor) Document() host.Document {
	return e.doc
}

// Buffer returns the concrete document.
func (e *Editor) Buffer() *Document {
	return e.doc
}

func (e *Editor) Selections() []model.Selection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]model.Selection(nil), e.selections...)
}

func (e *Editor) SetSelections(sel []model.Selection) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selections = append([]model.Selection(nil), sel...)
}

// VisibleRanges returns the line ranges not hidden by a fold.
func (e *Editor) VisibleRanges() model.VisibilitySnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.syncLocked()
	return e.visibleLocked()
}

// WaitQuiescent returns immediately; the fold model never lags.
func (e *Editor) WaitQuiescent(ctx context.Context) error {
	return ctx.Err()
}

// Execute applies cmd at the current selections and notifies listeners
// when the fold state changed.
func (e *Editor) Execute(ctx context.Context, cmd host.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	e.syncLocked()
	e.commands = append(e.commands, cmd)
	changed, err := e.applyLocked(cmd)
	listeners := slices.Clone(e.listeners)
	e.mu.Unlock()

	if changed {
		for _, fn := range listeners {
			fn(e)
		}
	}
	return err
}

func (e *Editor) applyLocked(cmd host.Command) (bool, error) {
	lineCount := e.doc.LineCount()
	changed := false

	switch cmd {
	case host.CommandFold:
		for _, sel := range e.selections {
			line := sel.Active.Line
			if line < 0 || line >= lineCount {
				return changed, fmt.Errorf("fold at line %d: %w", line+1, ErrInvalidLine)
			}
			if err := e.failures[line]; err != nil {
				return changed, fmt.Errorf("fold at line %d: %w", line+1, err)
			}
			if i, ok := e.innermost(line, false); ok {
				e.folded[e.regions[i].Start] = true
				changed = true
			}
		}
		if changed {
			e.revealSelectionsLocked()
		}

	case host.CommandUnfold:
		for _, sel := range e.selections {
			line := sel.Active.Line
			if line < 0 || line >= lineCount {
				return changed, fmt.Errorf("unfold at line %d: %w", line+1, ErrInvalidLine)
			}
			if i, ok := e.innermost(line, true); ok {
				delete(e.folded, e.regions[i].Start)
				changed = true
			}
		}

	case host.CommandFoldAll:
		for _, r := range e.regions {
			if !e.folded[r.Start] {
				e.folded[r.Start] = true
				changed = true
			}
		}
		if changed {
			e.revealSelectionsLocked()
		}

	case host.CommandUnfoldAll:
		changed = len(e.folded) > 0
		e.folded = make(map[int]bool)

	case host.CommandUnfoldRecursively:
		// Peel the outermost folded layer.
		var outer []int
		for _, r := range e.regions {
			if !e.folded[r.Start] {
				continue
			}
			covered := false
			for _, q := range e.regions {
				if e.folded[q.Start] && q.encloses(r) {
					covered = true
					break
				}
			}
			if !covered {
				outer = append(outer, r.Start)
			}
		}
		for _, start := range outer {
			delete(e.folded, start)
		}
		changed = len(outer) > 0

	default:
		return false, fmt.Errorf("unknown command %q", cmd)
	}
	return changed, nil
}

// innermost returns the index of the region with the greatest start that
// contains line and whose folded state equals folded.
func (e *Editor) innermost(line int, folded bool) (int, bool) {
	best := -1
	for i, r := range e.regions {
		if !r.Contains(line) || e.folded[r.Start] != folded {
			continue
		}
		if best < 0 || r.Start > e.regions[best].Start {
			best = i
		}
	}
	return best, best >= 0
}

// revealSelectionsLocked moves cursors hidden by a fold to the visible
// anchor of the fold that hides them.
func (e *Editor) revealSelectionsLocked() {
	visible := e.visibleLocked()
	for i, sel := range e.selections {
		line := sel.Active.Line
		if visible.IsVisible(line) {
			continue
		}
		anchor := line
		for !visible.IsVisible(anchor) && anchor > 0 {
			anchor--
		}
		p := model.Position{Line: anchor}
		e.selections[i] = model.Selection{Anchor: p, Active: p}
	}
}

func (e *Editor) visibleLocked() model.VisibilitySnapshot {
	lineCount := e.doc.LineCount()
	hidden := make([]bool, lineCount)
	for _, r := range e.regions {
		if !e.folded[r.Start] {
			continue
		}
		for l := r.Start + 1; l <= r.End && l < lineCount; l++ {
			hidden[l] = true
		}
	}

	var snap model.VisibilitySnapshot
	start := -1
	for l := 0; l < lineCount; l++ {
		switch {
		case !hidden[l] && start < 0:
			start = l
		case hidden[l] && start >= 0:
			snap = append(snap, model.LineRange{Start: start, End: l - 1})
			start = -1
		}
	}
	if start >= 0 {
		snap = append(snap, model.LineRange{Start: start, End: lineCount - 1})
	}
	return snap
}

// syncLocked recomputes regions after the document changed, keeping folds
// whose anchors still start a region.
func (e *Editor) syncLocked() {
	v := e.doc.Version()
	if v == e.version {
		return
	}
	e.version = v
	e.regions = Regions(context.Background(), lang.ForID(e.doc.LanguageID()), e.doc.Text())

	kept := make(map[int]bool, len(e.folded))
	for _, r := range e.regions {
		if e.folded[r.Start] {
			kept[r.Start] = true
		}
	}
	e.folded = kept
}

// OnVisibleRangesChanged registers fn to run after every fold state change.
// fn runs outside the editor lock.
func (e *Editor) OnVisibleRangesChanged(fn func(*Editor)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// FailFoldAt makes every fold issued with a cursor on line fail with err.
// A nil err clears the failure.
func (e *Editor) FailFoldAt(line int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err == nil {
		delete(e.failures, line)
		return
	}
	e.failures[line] = err
}

// Commands returns every command executed so far.
func (e *Editor) Commands() []host.Command {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]host.Command(nil), e.commands...)
}

// ResetCommands clears the command log.
func (e *Editor) ResetCommands() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commands = nil
}

// Regions returns the fold regions of the current text.
func (e *Editor) Regions() []Region {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.syncLocked()
	return append([]Region(nil), e.regions...)
}

// FoldedLines returns the anchors of folded regions in ascending order.
func (e *Editor) FoldedLines() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.syncLocked()
	lines := make([]int, 0, len(e.folded))
	for start := range e.folded {
		lines = append(lines, start)
	}
	sort.Ints(lines)
	return lines
}

// UserFold folds at line as if the user did it; the cursor moves there.
func (e *Editor) UserFold(ctx context.Context, line int) error {
	e.SetSelections([]model.Selection{model.Cursor(line)})
	return e.Execute(ctx, host.CommandFold)
}

// UserUnfold unfolds at line as if the user did it; the cursor moves there.
func (e *Editor) UserUnfold(ctx context.Context, line int) error {
	e.SetSelections([]model.Selection{model.Cursor(line)})
	return e.Execute(ctx, host.CommandUnfold)
}

// Render returns the visible lines, numbered, with FoldMarker on the
// anchor of every fold that hides the lines below it.
func (e *Editor) Render() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.syncLocked()

	lines := pragma.Lines(e.doc.Text())
	visible := e.visibleLocked()
	width := len(fmt.Sprint(len(lines)))

	var b strings.Builder
	for i, line := range lines {
		if !visible.IsVisible(i) {
			continue
		}
		marker := ""
		if e.folded[i] && i+1 < len(lines) && !visible.IsVisible(i+1) {
			marker = FoldMarker
		}
		fmt.Fprintf(&b, "%*d  %s%s\n", width, i+1, line, marker)
	}
	return b.String()
}
