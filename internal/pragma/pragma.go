// Package pragma detects the collapse pragma and never-fold lines.
package pragma

import (
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"go.uber.org/zap"

	"github.com/phobologic/autofold/internal/model"
)

// Token switches a document into fold-all mode when it appears on any line.
const Token = "// @collapse"

// matchTimeout bounds a single never-fold match; patterns come from user
// configuration and regexp2 backtracks.
const matchTimeout = 100 * time.Millisecond

// Lines splits text into lines, dropping the "\r" of CRLF endings.
func Lines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// HasPragma reports whether the pragma is enabled and present.
func HasPragma(lines []string, enabled bool) bool {
	if !enabled {
		return false
	}
	for _, line := range lines {
		if strings.Contains(line, Token) {
			return true
		}
	}
	return false
}

// Scanner finds never-fold anchors. Patterns use ECMAScript regular
// expression syntax, the dialect editor users write them in.
type Scanner struct {
	logger *zap.Logger
}

// NewScanner returns a Scanner that reports invalid patterns to logger.
func NewScanner(logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{logger: logger}
}

// NeverFoldAnchors returns the column-0 position of every line matched by
// one of patterns. The first matching pattern wins for a line; patterns that
// fail to compile or time out are logged and skipped.
func (s *Scanner) NeverFoldAnchors(lines []string, patterns []string) []model.Position {
	if len(patterns) == 0 {
		return nil
	}

	compiled := make([]*regexp2.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp2.Compile(p, regexp2.ECMAScript)
		if err != nil {
			s.logger.Error("invalid neverFold pattern", zap.String("pattern", p), zap.Error(err))
			continue
		}
		re.MatchTimeout = matchTimeout
		compiled = append(compiled, re)
	}

	var anchors []model.Position
	for i, line := range lines {
		for _, re := range compiled {
			ok, err := re.MatchString(line)
			if err != nil {
				s.logger.Error("neverFold match failed",
					zap.String("pattern", re.String()),
					zap.Int("line", i+1),
					zap.Error(err),
				)
				continue
			}
			if ok {
				s.logger.Debug("line matches neverFold pattern",
					zap.Int("line", i+1),
					zap.String("pattern", re.String()),
				)
				anchors = append(anchors, model.Position{Line: i})
				break
			}
		}
	}
	return anchors
}
