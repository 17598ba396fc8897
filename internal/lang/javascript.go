package lang

import "github.com/smacker/go-tree-sitter/javascript"

// The javascript grammar parses JSX natively, so both dialects share it.
func init() {
	Languages["javascript"] = &Language{
		Name:       "javascript",
		Extensions: []string{".js", ".mjs", ".cjs"},
		lang:       javascript.GetLanguage(),
	}
	Languages["javascriptreact"] = &Language{
		Name:       "javascriptreact",
		Extensions: []string{".jsx"},
		lang:       javascript.GetLanguage(),
	}
}
