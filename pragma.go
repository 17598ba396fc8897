package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/phobologic/autofold/internal/lang"
	"github.com/phobologic/autofold/internal/pragma"
)

// directive matches a directive prologue line such as 'use strict'.
var directive = regexp.MustCompile(`^\s*(['"])use [a-z ]+(['"]);?\s*$`)

func newPragmaCmd(a *app) *cobra.Command {
	var remove bool

	cmd := &cobra.Command{
		Use:   "pragma <file>...",
		Short: "Add or remove the // @collapse pragma",
		Long: `Pragma inserts the // @collapse line near the top of each file, after any
shebang and directive prologue, so the file is collapsed whenever it is
folded. With --remove it deletes the pragma lines instead.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			for _, path := range args {
				if lang.ForExtension(filepath.Ext(path)) == "" {
					return fmt.Errorf("%s: unsupported file type", path)
				}
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("reading %s: %w", path, err)
				}
				updated, changed := applyPragma(string(data), remove)
				if remove && pragma.HasPragma(pragma.Lines(updated), true) {
					// Only whole pragma lines are removed; a trailing one still collapses the file.
					a.logger.Warn("pragma still present inline", zap.String("file", path))
				}
				if !changed {
					a.logger.Debug("pragma unchanged", zap.String("file", path))
					continue
				}
				if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
					return fmt.Errorf("writing %s: %w", path, err)
				}
				verb := "added pragma to"
				if remove {
					verb = "removed pragma from"
				}
				_, _ = fmt.Fprintf(a.stderr, "%s %s\n", verb, path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&remove, "remove", false, "remove the pragma instead of adding it")
	return cmd
}

// applyPragma returns text with the pragma added or removed, and whether
// anything changed. Adding is a no-op when text already carries the pragma.
func applyPragma(text string, remove bool) (string, bool) {
	lines := strings.Split(text, "\n")

	if remove {
		kept := lines[:0:0]
		for _, line := range lines {
			if strings.TrimSpace(strings.TrimSuffix(line, "\r")) == pragma.Token {
				continue
			}
			kept = append(kept, line)
		}
		if len(kept) == len(lines) {
			return text, false
		}
		return strings.Join(kept, "\n"), true
	}

	if pragma.HasPragma(pragma.Lines(text), true) {
		return text, false
	}

	at := 0
	if at < len(lines) && strings.HasPrefix(lines[at], "#!") {
		at++
	}
	for at < len(lines) && directive.MatchString(lines[at]) {
		at++
	}

	eol := ""
	if strings.Contains(text, "\r\n") {
		eol = "\r"
	}
	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:at]...)
	out = append(out, pragma.Token+eol)
	out = append(out, lines[at:]...)
	return strings.Join(out, "\n"), true
}
