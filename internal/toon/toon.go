// Package toon implements TOON (Token-Oriented Object Notation) encoding.
package toon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/phobologic/autofold/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// EncodeLocate renders located call sites: one row per file with its
// counts, then one row per multi-line call site. Lines are 1-based.
func EncodeLocate(root string, files []model.FileCallSites) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("root: %s", encodeValue(root)))

	var fileRows [][]string
	for i := range files {
		f := &files[i]
		fileRows = append(fileRows, []string{
			f.Path,
			f.Language,
			strconv.Itoa(len(f.Result.MultiLine)),
			strconv.Itoa(f.Result.SingleLineCount),
		})
	}
	parts = append(parts, formatTabular("files", []string{"path", "language", "multiline", "singleline"}, fileRows))

	var siteRows [][]string
	for i := range files {
		f := &files[i]
		for _, m := range f.Result.MultiLine {
			siteRows = append(siteRows, []string{
				f.Path,
				string(m.Pattern),
				strconv.Itoa(m.StartLine + 1),
				strconv.Itoa(m.EndLine + 1),
			})
		}
	}
	parts = append(parts, formatTabular("callsites", []string{"file", "pattern", "start", "end"}, siteRows))

	return strings.Join(parts, "\n")
}

// EncodePasses renders pass reports as one table.
func EncodePasses(reports []model.PassReport) string {
	var rows [][]string
	for i := range reports {
		r := &reports[i]
		mode := "auto"
		if r.Manual {
			mode = "manual"
		}
		rows = append(rows, []string{
			r.Document.Path,
			string(r.Branch),
			mode,
			strconv.Itoa(r.Matches),
			strconv.Itoa(r.SingleLine),
			strconv.Itoa(r.Folded),
			strconv.Itoa(r.SkippedOverride),
			strconv.Itoa(r.SkippedFolded),
			strconv.Itoa(r.Failed),
			strconv.Itoa(r.Anchors),
			r.SkipReason,
			r.Duration.Round(time.Microsecond).String(),
		})
	}
	columns := []string{
		"document", "branch", "mode", "matches", "singleline", "folded",
		"skipped_override", "skipped_folded", "failed", "anchors", "reason", "duration",
	}
	return formatTabular("passes", columns, rows)
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
