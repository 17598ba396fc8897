package reconcile

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/phobologic/autofold/internal/host"
	"github.com/phobologic/autofold/internal/lang"
	"github.com/phobologic/autofold/internal/locate"
	"github.com/phobologic/autofold/internal/model"
	"github.com/phobologic/autofold/internal/override"
)

// Observer turns visible-range changes made by the user into override
// transitions. It remembers which call-site anchors were folded at the
// previous observation so that only a folded-to-visible change counts as
// a manual unfold.
type Observer struct {
	gate    *Gate
	tracker *override.Tracker
	locator *locate.Locator
	rules   RulesSource
	logger  *zap.Logger

	mu     sync.Mutex
	folded map[model.DocumentID]map[int]struct{}
	sites  map[model.DocumentID]located
}

// located is the locator result for one text and pattern list.
type located struct {
	text     string
	patterns []model.Pattern
	result   model.LocateResult
}

// NewObserver returns an Observer sharing gate with the reconciler.
func NewObserver(gate *Gate, tracker *override.Tracker, locator *locate.Locator, rules RulesSource, logger *zap.Logger) *Observer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locator == nil {
		locator = locate.New(logger)
	}
	return &Observer{
		gate:    gate,
		tracker: tracker,
		locator: locator,
		rules:   rules,
		logger:  logger,
		folded:  make(map[model.DocumentID]map[int]struct{}),
		sites:   make(map[model.DocumentID]located),
	}
}

// VisibleRangesChanged handles a visibility change in view and returns the
// number of override transitions recorded. While a pass runs it only
// refreshes its folded baseline.
func (o *Observer) VisibleRangesChanged(ctx context.Context, view host.View) int {
	doc := view.Document()
	if outOfScope(doc.URI(), doc.LanguageID()) != "" {
		return 0
	}
	rules := o.rules.Rules()
	if len(rules.AlwaysFold) == 0 {
		return 0
	}

	id := doc.URI().ID()
	res := o.callSites(ctx, id, doc, rules.AlwaysFold)
	snapshot := view.VisibleRanges()

	now := make(map[int]struct{}, len(res.MultiLine))
	for _, call := range res.MultiLine {
		if snapshot.IsFolded(call.StartLine) {
			now[call.StartLine] = struct{}{}
		}
	}

	o.mu.Lock()
	before := o.folded[id]
	o.folded[id] = now
	o.mu.Unlock()

	if o.gate.Active() {
		return 0
	}

	changed := 0
	for _, call := range res.MultiLine {
		_, isFolded := now[call.StartLine]
		_, wasFolded := before[call.StartLine]
		if !isFolded && !wasFolded {
			continue
		}
		if !o.tracker.RecordTransition(id, call.StartLine, !isFolded) {
			continue
		}
		changed++
		msg := "user manually unfolded call site"
		if isFolded {
			msg = "user manually folded call site back"
		}
		o.logger.Info(msg,
			zap.String("document", doc.URI().String()),
			zap.String("pattern", string(call.Pattern)),
			zap.Int("line", call.StartLine+1),
		)
	}
	if changed > 0 {
		o.logger.Info("override set changed",
			zap.String("document", doc.URI().String()),
			zap.Int("total", o.tracker.Len(id)),
		)
	}
	return changed
}

// callSites returns the call sites of doc, parsing only when its text or
// the patterns changed since the previous observation.
func (o *Observer) callSites(ctx context.Context, id model.DocumentID, doc host.Document, patterns []model.Pattern) model.LocateResult {
	text := doc.Text()

	o.mu.Lock()
	cached, ok := o.sites[id]
	o.mu.Unlock()
	if ok && cached.text == text && slices.Equal(cached.patterns, patterns) {
		return cached.result
	}

	res := o.locator.Locate(ctx, lang.ForID(doc.LanguageID()), text, patterns)
	o.logger.Debug("observer refreshed call sites",
		zap.String("document", doc.URI().String()),
		zap.Int("multi_line", len(res.MultiLine)),
	)

	o.mu.Lock()
	o.sites[id] = located{text: text, patterns: slices.Clone(patterns), result: res}
	o.mu.Unlock()
	return res
}

// Forget drops the folded baseline and cached call sites of doc.
func (o *Observer) Forget(doc model.DocumentID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.folded, doc)
	delete(o.sites, doc)
}
