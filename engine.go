package main

import (
	"context"

	"github.com/phobologic/autofold/internal/headless"
	"github.com/phobologic/autofold/internal/locate"
	"github.com/phobologic/autofold/internal/metrics"
	"github.com/phobologic/autofold/internal/override"
	"github.com/phobologic/autofold/internal/reconcile"
)

// engine is a reconciler and its observer sharing one gate and override
// tracker over a headless workspace.
type engine struct {
	rec     *reconcile.Reconciler
	obs     *reconcile.Observer
	tracker *override.Tracker
}

func (a *app) newEngine(ctx context.Context, ws *headless.Workspace, rules reconcile.RulesSource, m *metrics.Metrics) *engine {
	gate := &reconcile.Gate{}
	tracker := override.NewTracker()
	locator := locate.New(a.logger, locate.WithTolerance(a.cfg.TolerateSyntaxErrors))

	rec := reconcile.New(ws, rules, tracker,
		reconcile.WithGate(gate),
		reconcile.WithLocator(locator),
		reconcile.WithLogger(a.logger),
		reconcile.WithMetrics(m),
		reconcile.WithSettleDelays(a.cfg.SettleDelay, a.cfg.FoldDelay),
	)
	obs := reconcile.NewObserver(gate, tracker, locator, rules, a.logger)
	ws.OnVisibleRangesChanged(func(e *headless.Editor) {
		obs.VisibleRangesChanged(ctx, e)
	})
	return &engine{rec: rec, obs: obs, tracker: tracker}
}
