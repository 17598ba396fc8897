package lang

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ext  string
		want string
	}{
		{".js", "javascript"},
		{".mjs", "javascript"},
		{".jsx", "javascriptreact"},
		{".ts", "typescript"},
		{".tsx", "typescriptreact"},
		{".py", ""},
		{".go", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ForExtension(tt.ext))
		})
	}
}

func TestLanguagesRegistered(t *testing.T) {
	t.Parallel()

	want := []string{"javascript", "javascriptreact", "typescript", "typescriptreact"}
	require.Equal(t, want, Names())
	for _, name := range want {
		assert.NotNil(t, ForID(name).GetLanguage(), "%s grammar", name)
	}
	assert.False(t, Supported("python"))
}

func TestParse(t *testing.T) {
	t.Parallel()

	tree, err := ForID("typescript").Parse(context.Background(), []byte("const x: number = 1;\n"), true)
	require.NoError(t, err)
	defer tree.Close()
	assert.Equal(t, "program", tree.RootNode().Type())
}

func TestParseStrictRejectsErrors(t *testing.T) {
	t.Parallel()

	js := ForID("javascript")
	_, err := js.Parse(context.Background(), []byte("logger.info(\n"), true)
	require.ErrorIs(t, err, ErrSyntax)

	tree, err := js.Parse(context.Background(), []byte("logger.info(\n"), false)
	require.NoError(t, err, "tolerant parse keeps error trees")
	tree.Close()
}

func TestParseJSX(t *testing.T) {
	t.Parallel()

	tree, err := ForID("javascriptreact").Parse(context.Background(), []byte("const el = <div className=\"a\">{x}</div>;\n"), true)
	require.NoError(t, err)
	tree.Close()
}
