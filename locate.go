package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/phobologic/autofold/internal/discover"
	"github.com/phobologic/autofold/internal/lang"
	"github.com/phobologic/autofold/internal/locate"
	"github.com/phobologic/autofold/internal/model"
	"github.com/phobologic/autofold/internal/toon"
)

const defaultMaxFileSize = 1_000_000 // 1 MB

var errNoPatterns = errors.New("no patterns: set alwaysFold in the config or pass --pattern")

func newLocateCmd(a *app) *cobra.Command {
	var (
		patterns    []string
		langs       []string
		maxFileSize int
		skipTests   bool
	)

	cmd := &cobra.Command{
		Use:   "locate [paths...]",
		Short: "List multi-line call sites in TOON format",
		Long: `Locate parses every JavaScript and TypeScript file under the given paths
(default: the current directory) and reports each multi-line call to one of
the configured patterns, plus a per-file count of single-line calls.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"."}
			}
			for _, name := range langs {
				if !lang.Supported(name) {
					return fmt.Errorf("unsupported language %q (supported: %s)", name, strings.Join(lang.Names(), ", "))
				}
			}
			rules := a.rules(patterns)
			if len(rules.AlwaysFold) == 0 {
				return errNoPatterns
			}

			files, err := discover.Paths(args, langs)
			if err != nil {
				return fmt.Errorf("discovering files: %w", err)
			}
			if skipTests {
				files = filterTests(files)
			}
			files = filterBySize(files, maxFileSize, a.stderr)
			if len(files) == 0 {
				return fmt.Errorf("no source files found")
			}

			locator := locate.New(a.logger, locate.WithTolerance(a.cfg.TolerateSyntaxErrors))
			results := locateConcurrent(cmd.Context(), locator, files, rules.AlwaysFold, a.logger)

			root := strings.Join(args, " ")
			_, _ = fmt.Fprintln(a.stdout, toon.EncodeLocate(root, results))
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&patterns, "pattern", "p", nil, "object.method pattern to locate (repeatable; overrides alwaysFold)")
	cmd.Flags().StringSliceVarP(&langs, "langs", "l", nil, "comma-separated language IDs to include")
	cmd.Flags().IntVar(&maxFileSize, "max-file-size", defaultMaxFileSize, "skip files larger than this many bytes")
	cmd.Flags().BoolVar(&skipTests, "skip-tests", false, "skip test files (*.test.*, *.spec.*, __tests__/)")
	return cmd
}

func filterTests(files []discover.FileEntry) []discover.FileEntry {
	var kept []discover.FileEntry
	for _, f := range files {
		if !discover.IsTestFile(f.Path) {
			kept = append(kept, f)
		}
	}
	return kept
}

func filterBySize(files []discover.FileEntry, maxSize int, stderr io.Writer) []discover.FileEntry {
	var kept []discover.FileEntry
	for _, f := range files {
		fi, err := os.Stat(f.Path)
		if err != nil {
			kept = append(kept, f) // keep if can't stat
			continue
		}
		if maxSize > 0 && fi.Size() > int64(maxSize) {
			_, _ = fmt.Fprintf(stderr, "Warning: %s: skipped (>%d bytes)\n", f.Path, maxSize)
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

// locateConcurrent locates call sites in files with a pool of workers and
// returns the results in input order. Unreadable files are logged and left
// out.
func locateConcurrent(ctx context.Context, locator *locate.Locator, files []discover.FileEntry, patterns []model.Pattern, logger *zap.Logger) []model.FileCallSites {
	type result struct {
		index int
		sites model.FileCallSites
	}

	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > len(files) {
		numWorkers = len(files)
	}

	work := make(chan int, len(files))
	results := make(chan result, len(files))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range work {
				f := files[idx]
				source, err := os.ReadFile(f.Path)
				if err != nil {
					logger.Warn("failed to read file", zap.String("file", f.Path), zap.Error(err))
					continue
				}
				res := locator.Locate(ctx, lang.ForID(f.Language), string(source), patterns)
				results <- result{
					index: idx,
					sites: model.FileCallSites{Path: f.Path, Language: f.Language, Result: res},
				}
			}
		}()
	}

	for i := range files {
		work <- i
	}
	close(work)

	go func() {
		wg.Wait()
		close(results)
	}()

	// Collect results in original order
	indexed := make([]model.FileCallSites, len(files))
	valid := make([]bool, len(files))
	for r := range results {
		indexed[r.index] = r.sites
		valid[r.index] = true
	}

	var out []model.FileCallSites
	for i, ok := range valid {
		if ok {
			out = append(out, indexed[i])
		}
	}
	return out
}
