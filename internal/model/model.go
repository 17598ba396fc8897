// Package model defines core data structures for autofold.
package model

import (
	"strings"
	"time"
)

// Pattern is a dotted receiver.method name such as "logger.info".
type Pattern string

// Split returns the receiver and method halves of the pattern, split on the
// first dot. ok is false when the pattern cannot match a member call.
func (p Pattern) Split() (object, method string, ok bool) {
	object, method, found := strings.Cut(string(p), ".")
	if !found || object == "" || method == "" {
		return "", "", false
	}
	return object, method, true
}

// CallSiteMatch is a located call whose receiver and method match a Pattern.
// Lines are 0-based.
type CallSiteMatch struct {
	Pattern   Pattern
	StartLine int
	EndLine   int
}

// MultiLine reports whether the call spans more than one source line.
func (m CallSiteMatch) MultiLine() bool {
	return m.EndLine > m.StartLine
}

// LocateResult is the outcome of one locator run.
type LocateResult struct {
	MultiLine       []CallSiteMatch
	SingleLineCount int
}

// FileCallSites pairs a located file with its results.
type FileCallSites struct {
	Path     string
	Language string
	Result   LocateResult
}

// Rules is the folding configuration snapshot for a single pass.
type Rules struct {
	AlwaysFold    []Pattern
	NeverFold     []string
	CollapseLevel int
	PragmaEnabled bool
}

// DefaultRules returns the rules used when nothing is configured.
func DefaultRules() Rules {
	return Rules{
		NeverFold:     []string{"main"},
		CollapseLevel: 1,
		PragmaEnabled: true,
	}
}

// Inactive reports whether the rules can never produce a fold.
func (r Rules) Inactive() bool {
	return !r.PragmaEnabled && len(r.AlwaysFold) == 0
}

// Position is a 0-based line and column.
type Position struct {
	Line   int
	Column int
}

// Selection is a cursor or selected span.
type Selection struct {
	Anchor Position
	Active Position
}

// Cursor returns an empty selection at the start of line.
func Cursor(line int) Selection {
	p := Position{Line: line}
	return Selection{Anchor: p, Active: p}
}

// LineRange is an inclusive range of 0-based lines.
type LineRange struct {
	Start int
	End   int
}

// Contains reports whether line lies within the range.
func (r LineRange) Contains(line int) bool {
	return line >= r.Start && line <= r.End
}

// VisibilitySnapshot is the set of line ranges rendered at one instant.
type VisibilitySnapshot []LineRange

// IsVisible reports whether line is rendered.
func (s VisibilitySnapshot) IsVisible(line int) bool {
	for _, r := range s {
		if r.Contains(line) {
			return true
		}
	}
	return false
}

// IsFolded reports whether the construct anchored at line is collapsed,
// i.e. the line right after its anchor is hidden.
func (s VisibilitySnapshot) IsFolded(anchor int) bool {
	return !s.IsVisible(anchor + 1)
}

// URI addresses a document.
type URI struct {
	Scheme string
	Path   string
}

// FileURI returns the URI of a file on disk.
func FileURI(path string) URI {
	return URI{Scheme: "file", Path: path}
}

func (u URI) String() string {
	return u.Scheme + "://" + u.Path
}

// ID returns the document identity for u.
func (u URI) ID() DocumentID {
	return DocumentID(u.String())
}

// DocumentID identifies a document. It is stable across edits to the same
// document and distinct across documents.
type DocumentID string

// Branch names the reconciliation path a pass took.
type Branch string

const (
	BranchSkipped     Branch = "skipped"
	BranchPragma      Branch = "pragma"
	BranchPatterns    Branch = "patterns"
	BranchNone        Branch = "none"
	BranchCollapseAll Branch = "collapse-all"
)

// PassReport summarizes one reconciliation pass.
type PassReport struct {
	PassID          string
	Document        URI
	Branch          Branch
	SkipReason      string
	Manual          bool
	Matches         int
	SingleLine      int
	Folded          int
	SkippedOverride int
	SkippedFolded   int
	Failed          int
	Anchors         int
	RefoldedImports int
	Duration        time.Duration
}
