// Package schedule turns editor events into reconciliation passes: edits are
// debounced, open and focus events run at once, and at most one pass is in
// flight.
package schedule

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/phobologic/autofold/internal/host"
	"github.com/phobologic/autofold/internal/model"
	"github.com/phobologic/autofold/internal/reconcile"
)

// DefaultDebounce is the quiet period after the last edit before a pass.
const DefaultDebounce = 500 * time.Millisecond

// ErrStopped is returned by requests made after Run returned.
var ErrStopped = errors.New("scheduler stopped")

// Runner executes passes. *reconcile.Reconciler implements it.
type Runner interface {
	Reconcile(ctx context.Context, doc host.Document, mode reconcile.Mode) (model.PassReport, error)
	CollapseAll(ctx context.Context) (model.PassReport, error)
}

type eventKind int

const (
	eventChanged eventKind = iota
	eventOpened
	eventActivated
	eventFoldNow
	eventRefold
	eventCollapseAll
)

func (k eventKind) String() string {
	switch k {
	case eventChanged:
		return "changed"
	case eventOpened:
		return "opened"
	case eventActivated:
		return "activated"
	case eventFoldNow:
		return "fold-now"
	case eventRefold:
		return "refold"
	case eventCollapseAll:
		return "collapse-all"
	}
	return "unknown"
}

type outcome struct {
	report model.PassReport
	err    error
}

type event struct {
	kind  eventKind
	doc   host.Document
	reply chan outcome
}

type finished struct {
	outcome
	reply chan outcome
}

// Scheduler serializes passes. Create one with New and drive it with Run.
type Scheduler struct {
	runner   Runner
	debounce time.Duration
	logger   *zap.Logger
	onReport func(model.PassReport, error)

	events chan event
	quit   chan struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithDebounce sets the quiet period after the last edit.
func WithDebounce(d time.Duration) Option {
	return func(s *Scheduler) { s.debounce = d }
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// OnReport registers fn to receive the outcome of every pass.
func OnReport(fn func(model.PassReport, error)) Option {
	return func(s *Scheduler) { s.onReport = fn }
}

// New returns a Scheduler that runs passes on runner.
func New(runner Runner, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner:   runner,
		debounce: DefaultDebounce,
		events:   make(chan event, 16),
		quit:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// DocumentChanged restarts the debounce timer for doc. Only the last edited
// document is reconciled when the timer fires.
func (s *Scheduler) DocumentChanged(doc host.Document) {
	s.send(event{kind: eventChanged, doc: doc})
}

// DocumentOpened requests an immediate pass. It is dropped while a pass runs.
func (s *Scheduler) DocumentOpened(doc host.Document) {
	s.send(event{kind: eventOpened, doc: doc})
}

// EditorActivated requests an immediate pass for the newly focused
// document. It is dropped while a pass runs.
func (s *Scheduler) EditorActivated(doc host.Document) {
	s.send(event{kind: eventActivated, doc: doc})
}

// FoldNow runs an auto pass over doc and waits for its report.
func (s *Scheduler) FoldNow(ctx context.Context, doc host.Document) (model.PassReport, error) {
	return s.request(ctx, event{kind: eventFoldNow, doc: doc})
}

// Refold runs a manual pass over doc: overrides are cleared and every
// match is folded again.
func (s *Scheduler) Refold(ctx context.Context, doc host.Document) (model.PassReport, error) {
	return s.request(ctx, event{kind: eventRefold, doc: doc})
}

// CollapseAll collapses the active view and waits for the report.
func (s *Scheduler) CollapseAll(ctx context.Context) (model.PassReport, error) {
	return s.request(ctx, event{kind: eventCollapseAll})
}

func (s *Scheduler) send(ev event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.quit:
		return false
	}
}

func (s *Scheduler) request(ctx context.Context, ev event) (model.PassReport, error) {
	ev.reply = make(chan outcome, 1)
	select {
	case s.events <- ev:
	case <-s.quit:
		return model.PassReport{}, ErrStopped
	case <-ctx.Done():
		return model.PassReport{}, ctx.Err()
	}
	select {
	case out := <-ev.reply:
		return out.report, out.err
	case <-s.quit:
		select {
		case out := <-ev.reply:
			return out.report, out.err
		default:
			return model.PassReport{}, ErrStopped
		}
	case <-ctx.Done():
		return model.PassReport{}, ctx.Err()
	}
}

// Run processes events until ctx is done, then waits for the pass in
// flight to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	defer close(s.quit)

	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		pending host.Document
		running bool
		done    = make(chan finished, 1)
	)
	arm := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.NewTimer(s.debounce)
		timerC = timer.C
	}
	disarm := func() {
		if timer != nil {
			timer.Stop()
		}
		timer, timerC = nil, nil
	}
	start := func(kind eventKind, doc host.Document, reply chan outcome) {
		running = true
		go func() {
			var out outcome
			switch kind {
			case eventCollapseAll:
				out.report, out.err = s.runner.CollapseAll(ctx)
			case eventRefold:
				out.report, out.err = s.runner.Reconcile(ctx, doc, reconcile.ModeManual)
			default:
				out.report, out.err = s.runner.Reconcile(ctx, doc, reconcile.ModeAuto)
			}
			done <- finished{outcome: out, reply: reply}
		}()
	}
	finish := func(f finished) {
		running = false
		if f.err != nil && !errors.Is(f.err, reconcile.ErrBusy) {
			s.logger.Warn("pass failed", zap.Error(f.err))
		}
		if s.onReport != nil {
			s.onReport(f.report, f.err)
		}
		if f.reply != nil {
			f.reply <- f.outcome
		}
	}

	for {
		select {
		case <-ctx.Done():
			disarm()
			if running {
				finish(<-done)
			}
			return nil

		case f := <-done:
			finish(f)

		case <-timerC:
			timer, timerC = nil, nil
			if running {
				s.logger.Debug("pass in progress, debounce rescheduled")
				arm()
				continue
			}
			doc := pending
			pending = nil
			if doc != nil {
				s.logger.Debug("debounce elapsed", zap.String("document", doc.URI().String()))
				start(eventChanged, doc, nil)
			}

		case ev := <-s.events:
			switch ev.kind {
			case eventChanged:
				pending = ev.doc
				arm()
			case eventOpened, eventActivated:
				if running {
					s.logger.Debug("pass in progress, event dropped",
						zap.Stringer("event", ev.kind),
						zap.String("document", ev.doc.URI().String()),
					)
					continue
				}
				start(ev.kind, ev.doc, nil)
			default:
				if running {
					ev.reply <- outcome{err: reconcile.ErrBusy}
					continue
				}
				disarm()
				pending = nil
				s.logger.Debug("command", zap.Stringer("event", ev.kind))
				start(ev.kind, ev.doc, ev.reply)
			}
		}
	}
}
