package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/phobologic/autofold/internal/headless"
	"github.com/phobologic/autofold/internal/lang"
	"github.com/phobologic/autofold/internal/model"
	"github.com/phobologic/autofold/internal/reconcile"
	"github.com/phobologic/autofold/internal/toon"
)

func newFoldCmd(a *app) *cobra.Command {
	var (
		patterns    []string
		manual      bool
		collapseAll bool
		format      string
	)

	cmd := &cobra.Command{
		Use:   "fold <file>",
		Short: "Run one fold pass over a file and print the result",
		Long: `Fold opens the file in an in-memory editor, runs one reconciliation pass
and prints the folded rendering (--format text) or the pass report
(--format toon).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "toon" {
				return fmt.Errorf("unknown format %q (want text or toon)", format)
			}
			path, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			language := lang.ForExtension(filepath.Ext(path))
			if language == "" {
				return fmt.Errorf("%s: unsupported file type", args[0])
			}
			source, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			doc := headless.NewDocument(model.FileURI(path), language, string(source))
			ws := headless.NewWorkspace()
			ed := ws.Open(doc)
			ws.Activate(doc.URI().ID())

			ctx := cmd.Context()
			eng := a.newEngine(ctx, ws, reconcile.StaticRules(a.rules(patterns)), nil)

			var report model.PassReport
			switch {
			case collapseAll:
				report, err = eng.rec.CollapseAll(ctx)
			case manual:
				report, err = eng.rec.Reconcile(ctx, doc, reconcile.ModeManual)
			default:
				report, err = eng.rec.Reconcile(ctx, doc, reconcile.ModeAuto)
			}
			if err != nil {
				return err
			}

			if format == "toon" {
				_, _ = fmt.Fprintln(a.stdout, toon.EncodePasses([]model.PassReport{report}))
				return nil
			}
			_, _ = fmt.Fprint(a.stdout, ed.Render())
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&patterns, "pattern", "p", nil, "object.method pattern to fold (repeatable; overrides alwaysFold)")
	cmd.Flags().BoolVar(&manual, "manual", false, "run a manual pass: unfold all, keep folded imports, refold every match")
	cmd.Flags().BoolVar(&collapseAll, "collapse-all", false, "collapse everything except neverFold lines")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or toon")
	return cmd
}
