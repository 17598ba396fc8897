package config

// DefaultYAML is the starter configuration written by `autofold init`. It
// decodes to the built-in defaults.
const DefaultYAML = `# Multi-line calls to fold, written object.method.
alwaysFold: []
# ECMAScript regular expressions. Matching lines stay open when a file
# carries the // @collapse pragma.
neverFold:
  - main
# Levels reopened after a pragma collapse.
collapseLevel: 1
enableCollapsePragma: true
# Quiet period after the last edit before folding.
debounce: 500ms
settleDelay: 50ms
foldDelay: 10ms
tolerateSyntaxErrors: false
log:
  level: info
  format: console
`
