package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/phobologic/autofold/internal/config"
	"github.com/phobologic/autofold/internal/discover"
	"github.com/phobologic/autofold/internal/headless"
	"github.com/phobologic/autofold/internal/metrics"
	"github.com/phobologic/autofold/internal/model"
	"github.com/phobologic/autofold/internal/schedule"
	"github.com/phobologic/autofold/internal/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Keep files folded while they are edited",
		Long: `Watch opens every source file under path (default: the current directory)
in an in-memory editor, folds it, and folds it again after each edit once
the debounce period passes. One report line is printed per pass. Config
file changes apply to the next pass.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			root, err := filepath.Abs(root)
			if err != nil {
				return fmt.Errorf("resolving root: %w", err)
			}
			info, err := os.Stat(root)
			if err != nil {
				return fmt.Errorf("root path: %w", err)
			}
			if !info.IsDir() {
				return fmt.Errorf("%s: not a directory", root)
			}
			return a.watch(cmd.Context(), root, metricsAddr)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address (e.g. :9464)")
	return cmd
}

func (a *app) watch(ctx context.Context, root, metricsAddr string) error {
	source, err := config.NewSource(a.v, a.logger)
	if err != nil {
		return err
	}
	if a.v.ConfigFileUsed() != "" {
		source.Watch()
	}

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}
	if metricsAddr != "" {
		stop := serveMetrics(ctx, metricsAddr, reg, a.logger)
		defer stop()
	}

	ws := headless.NewWorkspace()
	eng := a.newEngine(ctx, ws, source, m)

	out := &lockedWriter{w: a.stdout}
	sched := schedule.New(eng.rec,
		schedule.WithDebounce(a.cfg.Debounce),
		schedule.WithLogger(a.logger),
		schedule.OnReport(func(r model.PassReport, err error) {
			if err != nil {
				return
			}
			out.printf("%s\n", formatReport(root, r))
		}),
	)

	w, err := watch.New(root, a.logger)
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := w.Start(); err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer w.Stop()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- sched.Run(runCtx) }()

	files, err := discover.Files(root, nil)
	if err != nil {
		cancel()
		<-runErr
		return fmt.Errorf("discovering files: %w", err)
	}
	for _, f := range files {
		ed, err := openFile(ws, filepath.Join(root, f.Path), f.Language)
		if err != nil {
			a.logger.Warn("failed to open file", zap.String("file", f.Path), zap.Error(err))
			continue
		}
		ws.Activate(ed.Document().URI().ID())
		if _, err := sched.FoldNow(runCtx, ed.Document()); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Warn("initial pass failed", zap.String("file", f.Path), zap.Error(err))
		}
	}
	a.logger.Info("watching", zap.String("root", root), zap.Int("files", len(files)))

	for {
		select {
		case <-ctx.Done():
			cancel()
			return <-runErr
		case change, ok := <-w.Changes:
			if !ok {
				cancel()
				return <-runErr
			}
			a.apply(ws, eng, sched, change)
		}
	}
}

// apply mirrors a file system change into the workspace and notifies the
// scheduler.
func (a *app) apply(ws *headless.Workspace, eng *engine, sched *schedule.Scheduler, change watch.Change) {
	id := model.FileURI(change.Path).ID()
	log := a.logger.With(zap.String("file", change.Path), zap.Stringer("change", change.Kind))

	if change.Kind == watch.ChangeRemoved {
		ws.Close(id)
		eng.obs.Forget(id)
		eng.tracker.Clear(id)
		log.Debug("document closed")
		return
	}

	text, err := os.ReadFile(change.Path)
	if err != nil {
		log.Debug("file vanished before it could be read", zap.Error(err))
		return
	}
	if ed, ok := ws.Editor(id); ok {
		if ed.Buffer().Text() == string(text) {
			return
		}
		ed.Buffer().SetText(string(text))
		ws.Activate(id)
		sched.DocumentChanged(ed.Document())
		return
	}

	ed, err := openFile(ws, change.Path, change.Language)
	if err != nil {
		log.Warn("failed to open file", zap.Error(err))
		return
	}
	ws.Activate(id)
	sched.DocumentOpened(ed.Document())
}

func openFile(ws *headless.Workspace, path, language string) (*headless.Editor, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ws.Open(headless.NewDocument(model.FileURI(path), language, string(text))), nil
}

func formatReport(root string, r model.PassReport) string {
	path := r.Document.Path
	if rel, err := filepath.Rel(root, path); err == nil {
		path = rel
	}
	if r.Branch == model.BranchSkipped {
		return fmt.Sprintf("%s: skipped (%s)", path, r.SkipReason)
	}
	return fmt.Sprintf("%s: %s folded=%d skipped_override=%d skipped_folded=%d failed=%d in %s",
		path, r.Branch, r.Folded, r.SkippedOverride, r.SkippedFolded, r.Failed, r.Duration.Round(time.Microsecond))
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}

// lockedWriter serializes report lines written from the scheduler goroutine.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprintf(l.w, format, args...)
}
