package pragma

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/phobologic/autofold/internal/model"
)

func TestLines(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"a", "b", ""}, Lines("a\r\nb\n"))
	assert.Equal(t, []string{""}, Lines(""))
}

func TestHasPragma(t *testing.T) {
	t.Parallel()

	lines := Lines("const a = 1; // @collapse\nconst b = 2;\n")
	assert.True(t, HasPragma(lines, true))
	assert.False(t, HasPragma(lines, false), "disabled flag always wins")
	assert.False(t, HasPragma(Lines("// @collaps\n/* @collapse */\n"), true))
}

func TestNeverFoldAnchors(t *testing.T) {
	t.Parallel()

	s := NewScanner(zap.NewNop())
	lines := Lines("function main() {}\nfunction helper() {}")

	got := s.NeverFoldAnchors(lines, []string{"^function main"})
	assert.Equal(t, []model.Position{{Line: 0}}, got)
}

func TestNeverFoldFirstMatchWins(t *testing.T) {
	t.Parallel()

	s := NewScanner(zap.NewNop())
	lines := Lines("main helper\nnothing\nhelper\n")

	got := s.NeverFoldAnchors(lines, []string{"main", "helper"})
	assert.Equal(t, []model.Position{{Line: 0}, {Line: 2}}, got)
}

func TestNeverFoldInvalidPatternSkipped(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	s := NewScanner(zap.New(core))
	lines := Lines("function main() {}\nconst x = (1;\n")

	got := s.NeverFoldAnchors(lines, []string{"(unclosed", "main"})
	assert.Equal(t, []model.Position{{Line: 0}}, got)
	assert.Equal(t, 1, logs.FilterMessage("invalid neverFold pattern").Len())
}

func TestNeverFoldECMAScriptSyntax(t *testing.T) {
	t.Parallel()

	s := NewScanner(nil)
	lines := Lines("export default function App() {}\n  \\d not a digit\n")

	got := s.NeverFoldAnchors(lines, []string{`^export\s+default`, `^\s+\\d`})
	assert.Equal(t, []model.Position{{Line: 0}, {Line: 1}}, got)
}

func TestNeverFoldNoPatterns(t *testing.T) {
	t.Parallel()

	assert.Nil(t, NewScanner(nil).NeverFoldAnchors(Lines("main\n"), nil))
}
