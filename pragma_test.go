package main

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPragma(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		text    string
		remove  bool
		want    string
		changed bool
	}{
		{
			name:    "top of file",
			text:    "import a from 'a';\n",
			want:    "// @collapse\nimport a from 'a';\n",
			changed: true,
		},
		{
			name:    "empty file",
			text:    "",
			want:    "// @collapse\n",
			changed: true,
		},
		{
			name:    "after shebang and directives",
			text:    "#!/usr/bin/env node\n'use strict';\n\"use client\"\nrun();\n",
			want:    "#!/usr/bin/env node\n'use strict';\n\"use client\"\n// @collapse\nrun();\n",
			changed: true,
		},
		{
			name:    "crlf",
			text:    "run();\r\n",
			want:    "// @collapse\r\nrun();\r\n",
			changed: true,
		},
		{
			name: "already present",
			text: "run();\n// @collapse\n",
			want: "run();\n// @collapse\n",
		},
		{
			name:    "remove",
			text:    "// @collapse\nrun();\n  // @collapse\n",
			remove:  true,
			want:    "run();\n",
			changed: true,
		},
		{
			name:   "remove keeps trailing comments",
			text:   "run(); // @collapse\n",
			remove: true,
			want:   "run(); // @collapse\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, changed := applyPragma(tt.text, tt.remove)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.changed, changed)
		})
	}
}

func TestPragmaCommand(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeTestFile(t, dir, "app.ts", "run();\n")
	cfg := writeConfig(t, dir, "")

	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"--config", cfg, "pragma", path}, &stdout, &stderr))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "// @collapse\nrun();\n", string(data))
	assert.Contains(t, stderr.String(), "added pragma to "+path)

	require.NoError(t, run(context.Background(), []string{"--config", cfg, "pragma", "--remove", path}, &stdout, &stderr))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "run();\n", string(data))
}

func TestPragmaRemoveWarnsAboutInlinePragma(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeTestFile(t, dir, "app.ts", "// @collapse\nrun(); // @collapse\n")
	cfg := writeConfig(t, dir, "")

	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"--config", cfg, "pragma", "--remove", path}, &stdout, &stderr))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "run(); // @collapse\n", string(data), "only whole pragma lines are removed")
	assert.Contains(t, stderr.String(), "pragma still present inline")
}

func TestPragmaUnsupportedFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeTestFile(t, dir, "notes.txt", "hi\n")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"--config", writeConfig(t, dir, ""), "pragma", path}, &stdout, &stderr)
	assert.ErrorContains(t, err, "unsupported file type")
}
