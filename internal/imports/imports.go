// Package imports finds the contiguous import/require statements at the top
// of a JavaScript or TypeScript file.
package imports

import "strings"

// Block is one import statement spanning lines Start..End inclusive.
type Block struct {
	Start int
	End   int
}

// LeadingBlocks scans lines from the top and returns every import,
// require or re-export statement before the first line of other code.
// It is a line heuristic; it never parses.
func LeadingBlocks(lines []string) []Block {
	var blocks []Block
	inBlock := false
	start := -1

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		if inBlock {
			if closesImport(trimmed) {
				inBlock = false
				blocks = append(blocks, Block{Start: start, End: i})
			}
			continue
		}
		if startsImport(trimmed) {
			if endsStatement(trimmed) {
				blocks = append(blocks, Block{Start: i, End: i})
			} else {
				inBlock = true
				start = i
			}
			continue
		}
		if isCode(trimmed) {
			break
		}
	}
	return blocks
}

func startsImport(trimmed string) bool {
	switch {
	case strings.HasPrefix(trimmed, "import "), strings.HasPrefix(trimmed, "import{"):
		return true
	case strings.HasPrefix(trimmed, "const ") && strings.Contains(trimmed, "= require("):
		return true
	case strings.HasPrefix(trimmed, "require("):
		return true
	case strings.HasPrefix(trimmed, "export ") && strings.Contains(trimmed, " from "):
		return true
	}
	return false
}

func endsStatement(trimmed string) bool {
	return strings.Contains(trimmed, ";") || strings.HasSuffix(trimmed, ")") ||
		(strings.Contains(trimmed, " from ") && !strings.HasSuffix(trimmed, "{"))
}

// closesImport matches the last line of a multi-line import, with or
// without a trailing semicolon.
func closesImport(trimmed string) bool {
	return strings.Contains(trimmed, ";") || strings.HasSuffix(trimmed, "}") ||
		(strings.HasPrefix(trimmed, "}") && strings.Contains(trimmed, "from"))
}

// isCode reports whether a line outside an import ends the leading block.
func isCode(trimmed string) bool {
	if trimmed == "" {
		return false
	}
	for _, prefix := range []string{"import", "const", "export", "//", "/*", "*", "#!", "'use ", `"use `} {
		if strings.HasPrefix(trimmed, prefix) {
			return false
		}
	}
	return true
}
