// Package reconcile converges an editor's fold state to the configured
// folding rules while respecting folds the user undid by hand.
package reconcile

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/phobologic/autofold/internal/host"
	"github.com/phobologic/autofold/internal/imports"
	"github.com/phobologic/autofold/internal/lang"
	"github.com/phobologic/autofold/internal/locate"
	"github.com/phobologic/autofold/internal/metrics"
	"github.com/phobologic/autofold/internal/model"
	"github.com/phobologic/autofold/internal/override"
	"github.com/phobologic/autofold/internal/pragma"
)

var (
	// ErrBusy is returned when a pass is requested while another runs.
	ErrBusy = errors.New("reconciliation already in progress")
	// ErrNoActiveView is returned by commands that need a focused editor.
	ErrNoActiveView = errors.New("no active editor found")
)

const (
	defaultSettleDelay = 50 * time.Millisecond
	defaultFoldDelay   = 10 * time.Millisecond
)

// RulesSource supplies a fresh rules snapshot for every pass.
type RulesSource interface {
	Rules() model.Rules
}

// StaticRules is a RulesSource that never changes.
type StaticRules model.Rules

// Rules returns r.
func (r StaticRules) Rules() model.Rules { return model.Rules(r) }

// Mode selects the override semantics of a pass.
type Mode int

const (
	// ModeAuto respects user overrides and existing folds.
	ModeAuto Mode = iota
	// ModeManual starts over: overrides are cleared and every match refolded.
	ModeManual
)

func (m Mode) String() string {
	if m == ModeManual {
		return "manual"
	}
	return "auto"
}

// Reconciler plans and applies fold commands for the active view.
type Reconciler struct {
	host    host.Host
	rules   RulesSource
	tracker *override.Tracker
	gate    *Gate
	locator *locate.Locator
	scanner *pragma.Scanner
	logger  *zap.Logger
	metrics *metrics.Metrics

	settleDelay time.Duration
	foldDelay   time.Duration
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithGate shares gate with an Observer and a scheduler.
func WithGate(gate *Gate) Option {
	return func(r *Reconciler) { r.gate = gate }
}

// WithLocator replaces the default call-site locator.
func WithLocator(l *locate.Locator) Option {
	return func(r *Reconciler) { r.locator = l }
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Reconciler) { r.logger = logger }
}

// WithMetrics records every pass on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reconciler) { r.metrics = m }
}

// WithSettleDelays sets the pauses after structural commands and after each
// individual fold. They only apply to views that do not implement
// host.Quiescer; hosts that re-render asynchronously otherwise report stale
// visible ranges right after a command.
func WithSettleDelays(structural, fold time.Duration) Option {
	return func(r *Reconciler) {
		r.settleDelay = structural
		r.foldDelay = fold
	}
}

// New returns a Reconciler driving h.
func New(h host.Host, rules RulesSource, tracker *override.Tracker, opts ...Option) *Reconciler {
	r := &Reconciler{
		host:        h,
		rules:       rules,
		tracker:     tracker,
		settleDelay: defaultSettleDelay,
		foldDelay:   defaultFoldDelay,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.gate == nil {
		r.gate = &Gate{}
	}
	if r.locator == nil {
		r.locator = locate.New(r.logger)
	}
	r.scanner = pragma.NewScanner(r.logger)
	return r
}

// Gate returns the in-flight gate of r.
func (r *Reconciler) Gate() *Gate {
	return r.gate
}

// Reconcile runs one pass over doc. Out-of-scope documents and inactive
// rules produce a skipped report; host command failures are logged and
// counted in the report, never returned.
func (r *Reconciler) Reconcile(ctx context.Context, doc host.Document, mode Mode) (report model.PassReport, err error) {
	report = model.PassReport{
		PassID:   uuid.NewString(),
		Document: doc.URI(),
		Manual:   mode == ModeManual,
	}
	if !r.gate.Start() {
		report.Branch = model.BranchSkipped
		report.SkipReason = "busy"
		return report, ErrBusy
	}
	defer r.gate.Finish()

	start := time.Now()
	defer func() {
		report.Duration = time.Since(start)
		r.metrics.ObservePass(report)
	}()

	log := r.logger.With(
		zap.String("pass_id", report.PassID),
		zap.String("document", doc.URI().String()),
		zap.Stringer("mode", mode),
	)

	if reason := outOfScope(doc.URI(), doc.LanguageID()); reason != "" {
		skip(&report, reason)
		log.Debug("document out of scope", zap.String("reason", reason))
		return report, nil
	}

	view, ok := r.host.ActiveView()
	if !ok || view.Document().URI().ID() != doc.URI().ID() {
		skip(&report, "no active view")
		log.Info("no active editor for this document, skipping")
		return report, nil
	}

	id := doc.URI().ID()
	if mode == ModeManual {
		r.tracker.Clear(id)
		log.Info("manual command: cleared override set")
	}

	rules := r.rules.Rules()
	log.Debug("rules",
		zap.Strings("always_fold", patternStrings(rules.AlwaysFold)),
		zap.Strings("never_fold", rules.NeverFold),
		zap.Int("collapse_level", rules.CollapseLevel),
		zap.Bool("pragma_enabled", rules.PragmaEnabled),
	)
	if rules.Inactive() {
		skip(&report, "no active folding rules")
		log.Info("skipping: alwaysFold is empty and the pragma is disabled")
		return report, nil
	}

	saved := view.Selections()
	defer view.SetSelections(saved)

	text := view.Document().Text()
	lines := pragma.Lines(text)

	switch {
	case pragma.HasPragma(lines, rules.PragmaEnabled):
		report.Branch = model.BranchPragma
		log.Info("collapse pragma found, folding all", zap.Int("lines", len(lines)))
		r.collapse(ctx, view, lines, rules, &report, log)
	case len(rules.AlwaysFold) > 0:
		report.Branch = model.BranchPatterns
		r.foldPatterns(ctx, view, text, lines, rules, mode, &report, log)
	default:
		report.Branch = model.BranchNone
		log.Info("no folding rules to apply")
	}

	log.Info("pass finished",
		zap.String("branch", string(report.Branch)),
		zap.Int("folded", report.Folded),
		zap.Int("skipped_override", report.SkippedOverride),
		zap.Int("skipped_folded", report.SkippedFolded),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// CollapseAll folds everything in the active view, reopens CollapseLevel
// levels and every never-fold line. Always-fold rules and overrides are
// ignored.
func (r *Reconciler) CollapseAll(ctx context.Context) (report model.PassReport, err error) {
	report = model.PassReport{PassID: uuid.NewString(), Branch: model.BranchCollapseAll, Manual: true}

	view, ok := r.host.ActiveView()
	if !ok {
		skip(&report, "no active view")
		return report, ErrNoActiveView
	}
	report.Document = view.Document().URI()

	if !r.gate.Start() {
		skip(&report, "busy")
		return report, ErrBusy
	}
	defer r.gate.Finish()

	start := time.Now()
	defer func() {
		report.Duration = time.Since(start)
		r.metrics.ObservePass(report)
	}()

	log := r.logger.With(
		zap.String("pass_id", report.PassID),
		zap.String("document", report.Document.String()),
	)
	log.Info("manual collapse all")

	saved := view.Selections()
	defer view.SetSelections(saved)

	r.collapse(ctx, view, pragma.Lines(view.Document().Text()), r.rules.Rules(), &report, log)
	log.Info("manual collapse all completed", zap.Int("anchors", report.Anchors))
	return report, nil
}

// collapse folds all, unfolds rules.CollapseLevel levels, then unfolds the
// never-fold anchors.
func (r *Reconciler) collapse(ctx context.Context, view host.View, lines []string, rules model.Rules, report *model.PassReport, log *zap.Logger) {
	r.exec(ctx, view, host.CommandFoldAll, report, log)
	r.settle(ctx, view, r.settleDelay)

	for range rules.CollapseLevel {
		r.exec(ctx, view, host.CommandUnfoldRecursively, report, log)
		r.settle(ctx, view, r.settleDelay)
	}

	anchors := r.scanner.NeverFoldAnchors(lines, rules.NeverFold)
	if len(anchors) == 0 {
		return
	}
	sel := make([]model.Selection, len(anchors))
	for i, a := range anchors {
		sel[i] = model.Selection{Anchor: a, Active: a}
	}
	view.SetSelections(sel)
	report.Anchors = len(anchors)
	log.Info("unfolding neverFold lines", zap.Int("anchors", len(anchors)))
	r.exec(ctx, view, host.CommandUnfold, report, log)
	r.settle(ctx, view, r.settleDelay)
}

// foldPatterns folds every multi-line always-fold call site.
func (r *Reconciler) foldPatterns(ctx context.Context, view host.View, text string, lines []string, rules model.Rules, mode Mode, report *model.PassReport, log *zap.Logger) {
	doc := view.Document()
	res := r.locator.Locate(ctx, lang.ForID(doc.LanguageID()), text, rules.AlwaysFold)
	report.Matches = len(res.MultiLine)
	report.SingleLine = res.SingleLineCount

	log.Info("located call sites",
		zap.Int("multi_line", len(res.MultiLine)),
		zap.Int("single_line", res.SingleLineCount),
	)
	if len(res.MultiLine) == 0 {
		return
	}
	for _, call := range res.MultiLine {
		log.Debug("call site",
			zap.String("pattern", string(call.Pattern)),
			zap.Int("start", call.StartLine+1),
			zap.Int("end", call.EndLine+1),
			zap.String("text", snippet(lines, call.StartLine)),
		)
	}

	if mode == ModeManual {
		report.RefoldedImports = r.resetBaseline(ctx, view, lines, report, log)
	}

	id := doc.URI().ID()
	for _, call := range res.MultiLine {
		fields := []zap.Field{
			zap.String("pattern", string(call.Pattern)),
			zap.Int("line", call.StartLine+1),
		}
		if mode != ModeManual && r.tracker.IsOverridden(id, call.StartLine) {
			report.SkippedOverride++
			log.Debug("skipped: manually unfolded by user", fields...)
			continue
		}
		if mode != ModeManual && view.VisibleRanges().IsFolded(call.StartLine) {
			report.SkippedFolded++
			log.Debug("skipped: already folded", fields...)
			continue
		}

		view.SetSelections([]model.Selection{model.Cursor(call.StartLine)})
		if err := view.Execute(ctx, host.CommandFold); err != nil {
			report.Failed++
			log.Warn("fold failed", append(fields, zap.Error(err))...)
			continue
		}
		report.Folded++
		r.tracker.Remove(id, call.StartLine)
		r.settle(ctx, view, r.foldDelay)
	}
}

// resetBaseline unfolds everything while keeping folded leading imports
// folded. It returns the number of imports folded again.
func (r *Reconciler) resetBaseline(ctx context.Context, view host.View, lines []string, report *model.PassReport, log *zap.Logger) int {
	snapshot := view.VisibleRanges()
	var folded []int
	for _, b := range imports.LeadingBlocks(lines) {
		if snapshot.IsFolded(b.Start) {
			folded = append(folded, b.Start)
			log.Debug("saving folded import", zap.Int("line", b.Start+1))
		}
	}

	r.exec(ctx, view, host.CommandUnfoldAll, report, log)
	r.settle(ctx, view, r.settleDelay)

	for _, line := range folded {
		view.SetSelections([]model.Selection{model.Cursor(line)})
		if err := view.Execute(ctx, host.CommandFold); err != nil {
			log.Warn("import refold failed", zap.Int("line", line+1), zap.Error(err))
			continue
		}
		r.settle(ctx, view, r.foldDelay)
	}
	if len(folded) > 0 {
		log.Info("refolded imports", zap.Int("count", len(folded)))
	}
	return len(folded)
}

func (r *Reconciler) exec(ctx context.Context, view host.View, cmd host.Command, report *model.PassReport, log *zap.Logger) {
	log.Debug("executing", zap.String("command", string(cmd)))
	if err := view.Execute(ctx, cmd); err != nil {
		report.Failed++
		log.Warn("command failed", zap.String("command", string(cmd)), zap.Error(err))
	}
}

// settle waits for the host to finish rendering the previous command.
func (r *Reconciler) settle(ctx context.Context, view host.View, d time.Duration) {
	if q, ok := view.(host.Quiescer); ok {
		if err := q.WaitQuiescent(ctx); err != nil {
			r.logger.Debug("wait for quiescence interrupted", zap.Error(err))
		}
		return
	}
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func skip(report *model.PassReport, reason string) {
	report.Branch = model.BranchSkipped
	report.SkipReason = reason
}

func patternStrings(patterns []model.Pattern) []string {
	out := make([]string, len(patterns))
	for i, p := range patterns {
		out[i] = string(p)
	}
	return out
}

func snippet(lines []string, line int) string {
	if line < 0 || line >= len(lines) {
		return ""
	}
	s := strings.TrimSpace(lines[line])
	if len(s) > 50 {
		s = s[:50] + "..."
	}
	return s
}
