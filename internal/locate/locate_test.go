package locate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/phobologic/autofold/internal/lang"
	"github.com/phobologic/autofold/internal/model"
)

var loggerInfo = []model.Pattern{"logger.info"}

func locate(t *testing.T, languageID, text string, patterns []model.Pattern, opts ...Option) model.LocateResult {
	t.Helper()
	l := lang.ForID(languageID)
	require.NotNil(t, l, "language %q not registered", languageID)
	return New(zap.NewNop(), opts...).Locate(context.Background(), l, text, patterns)
}

func TestLocateSingleLine(t *testing.T) {
	t.Parallel()

	res := locate(t, "javascript", "logger.info('a');\n", loggerInfo)
	assert.Equal(t, 1, res.SingleLineCount)
	assert.Empty(t, res.MultiLine)
}

func TestLocateMultiLine(t *testing.T) {
	t.Parallel()

	res := locate(t, "javascript", "logger.info(\n 'a'\n);\n", loggerInfo)
	assert.Equal(t, 0, res.SingleLineCount)
	assert.Equal(t, []model.CallSiteMatch{{Pattern: "logger.info", StartLine: 0, EndLine: 2}}, res.MultiLine)
}

func TestLocateIgnoresLiteralsAndComments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
	}{
		{"template literal", "const s = `logger.info(\n  'a'\n)`;\n"},
		{"block comment", "/* logger.info(\n  'a'\n) */\nconst x = 1;\n"},
		{"line comments", "// logger.info(\n// 'a'\n// );\n"},
		{"string", "const s = 'logger.info(\\n a \\n)';\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := locate(t, "typescript", tt.text, loggerInfo)
			assert.Empty(t, res.MultiLine)
			assert.Equal(t, 0, res.SingleLineCount)
		})
	}
}

func TestLocateTemplateSubstitutionIsRealCall(t *testing.T) {
	t.Parallel()

	res := locate(t, "javascript", "const s = `${logger.info(\n  'a'\n)}`;\n", loggerInfo)
	assert.Equal(t, []model.CallSiteMatch{{Pattern: "logger.info", StartLine: 0, EndLine: 2}}, res.MultiLine)
}

func TestLocateDocumentOrder(t *testing.T) {
	t.Parallel()

	text := `function run() {
  console.log(
    logger.info(
      'inner'
    )
  );
  logger.info(
    'later'
  );
}
`
	res := locate(t, "javascript", text, []model.Pattern{"logger.info", "console.log"})
	require.Len(t, res.MultiLine, 3)
	assert.Equal(t, model.CallSiteMatch{Pattern: "console.log", StartLine: 1, EndLine: 5}, res.MultiLine[0])
	assert.Equal(t, model.CallSiteMatch{Pattern: "logger.info", StartLine: 2, EndLine: 4}, res.MultiLine[1])
	assert.Equal(t, model.CallSiteMatch{Pattern: "logger.info", StartLine: 6, EndLine: 8}, res.MultiLine[2])
}

func TestLocateCalleeShapes(t *testing.T) {
	t.Parallel()

	text := `this.logger.info(
  'member object'
);
logger['info'](
  'computed'
);
info(
  'bare'
);
logger.warn(
  'other method'
);
`
	res := locate(t, "javascript", text, []model.Pattern{"logger.info", "info", "a.b.c"})
	assert.Empty(t, res.MultiLine)
	assert.Equal(t, 0, res.SingleLineCount)
}

func TestLocateTypeScriptAndTSX(t *testing.T) {
	t.Parallel()

	ts := `import { Logger } from './log';

export class Service {
  constructor(private readonly name: string) {}

  run<T>(value: T): T {
    logger.info<string>(
      'running',
      this.name,
    );
    return value;
  }
}
`
	res := locate(t, "typescript", ts, loggerInfo)
	assert.Equal(t, []model.CallSiteMatch{{Pattern: "logger.info", StartLine: 6, EndLine: 9}}, res.MultiLine)

	tsx := `export const App = (): JSX.Element => {
  logger.info(
    'render'
  );
  return <div className="app">{items.map((i) => <span key={i}>{i}</span>)}</div>;
};
`
	res = locate(t, "typescriptreact", tsx, loggerInfo)
	assert.Equal(t, []model.CallSiteMatch{{Pattern: "logger.info", StartLine: 1, EndLine: 3}}, res.MultiLine)
}

func TestLocateParseFailureLogged(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	l := New(zap.New(core))

	res := l.Locate(context.Background(), lang.ForID("javascript"), "logger.info(\n  'a'\n", loggerInfo)
	assert.Empty(t, res.MultiLine)
	assert.Equal(t, 0, res.SingleLineCount)
	assert.Equal(t, 1, logs.FilterMessage("parse failed, no call sites located").Len())
}

func TestLocateTolerantKeepsValidRegions(t *testing.T) {
	t.Parallel()

	text := "logger.info(\n  'a'\n);\n}\n"

	strict := locate(t, "javascript", text, loggerInfo)
	assert.Empty(t, strict.MultiLine)

	tolerant := locate(t, "javascript", text, loggerInfo, WithTolerance(true))
	assert.Equal(t, []model.CallSiteMatch{{Pattern: "logger.info", StartLine: 0, EndLine: 2}}, tolerant.MultiLine)
}

func TestLocateDeterministic(t *testing.T) {
	t.Parallel()

	text := "logger.info(\n1\n);\nlogger.error(\n2\n);\nlogger.info(3);\n"
	patterns := []model.Pattern{"logger.info", "logger.error"}

	first := locate(t, "javascript", text, patterns)
	for range 5 {
		assert.Equal(t, first, locate(t, "javascript", text, patterns))
	}
	assert.Equal(t, 1, first.SingleLineCount)
	for _, m := range first.MultiLine {
		assert.Greater(t, m.EndLine, m.StartLine)
	}
}

func TestLocateEmptyInputs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, model.LocateResult{}, locate(t, "javascript", "", loggerInfo))
	assert.Equal(t, model.LocateResult{}, locate(t, "javascript", "logger.info(\n1\n);", nil))
	assert.Equal(t, model.LocateResult{}, New(nil).Locate(context.Background(), nil, "x", loggerInfo))
}
