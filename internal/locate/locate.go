// Package locate finds configured receiver.method call sites using tree-sitter.
package locate

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"go.uber.org/zap"

	"github.com/phobologic/autofold/internal/lang"
	"github.com/phobologic/autofold/internal/model"
)

const (
	nodeCallExpression   = "call_expression"
	nodeMemberExpression = "member_expression"
	nodeIdentifier       = "identifier"
	nodePropertyIdent    = "property_identifier"
)

// Locator runs call-site searches. It is safe for concurrent use; every
// Locate call parses with its own parser.
type Locator struct {
	logger   *zap.Logger
	tolerant bool
}

// Option configures a Locator.
type Option func(*Locator)

// WithTolerance keeps the matches found in a tree that contains syntax
// errors instead of treating the whole parse as failed.
func WithTolerance(tolerant bool) Option {
	return func(l *Locator) { l.tolerant = tolerant }
}

// New returns a Locator that reports parse failures to logger.
func New(logger *zap.Logger, opts ...Option) *Locator {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Locator{logger: logger}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Locate parses text and returns the calls matching patterns. A parse
// failure is logged and yields an empty result.
func (l *Locator) Locate(ctx context.Context, language *lang.Language, text string, patterns []model.Pattern) model.LocateResult {
	if language == nil || text == "" || len(patterns) == 0 {
		return model.LocateResult{}
	}

	source := []byte(text)
	tree, err := language.Parse(ctx, source, !l.tolerant)
	if err != nil {
		l.logger.Warn("parse failed, no call sites located",
			zap.String("language", language.Name),
			zap.Error(err),
		)
		return model.LocateResult{}
	}
	defer tree.Close()

	return Calls(tree.RootNode(), source, patterns)
}

// Calls walks the tree under root and collects matching calls in document order.
func Calls(root *sitter.Node, source []byte, patterns []model.Pattern) model.LocateResult {
	var result model.LocateResult

	type target struct {
		pattern        model.Pattern
		object, method string
	}
	targets := make([]target, 0, len(patterns))
	for _, p := range patterns {
		object, method, ok := p.Split()
		if !ok {
			continue
		}
		targets = append(targets, target{pattern: p, object: object, method: method})
	}
	if root == nil || len(targets) == 0 {
		return result
	}

	// Explicit pre-order walk over child links; Parent() is never followed.
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if node.Type() == nodeCallExpression {
			if object, method, ok := memberCallee(node, source); ok {
				for _, t := range targets {
					if t.object != object || t.method != method {
						continue
					}
					m := model.CallSiteMatch{
						Pattern:   t.pattern,
						StartLine: int(node.StartPoint().Row),
						EndLine:   int(node.EndPoint().Row),
					}
					if m.MultiLine() {
						result.MultiLine = append(result.MultiLine, m)
					} else {
						result.SingleLineCount++
					}
				}
			}
		}

		for i := int(node.ChildCount()) - 1; i >= 0; i-- {
			if child := node.Child(i); child != nil {
				stack = append(stack, child)
			}
		}
	}

	return result
}

// memberCallee returns the object and property names of an `a.b(...)` call.
// Only simple identifiers qualify; `this.x()`, `a.b.c()` and `a[b]()` do not.
func memberCallee(call *sitter.Node, source []byte) (object, method string, ok bool) {
	fn := call.ChildByFieldName("function")
	if fn == nil || fn.Type() != nodeMemberExpression {
		return "", "", false
	}
	obj := fn.ChildByFieldName("object")
	prop := fn.ChildByFieldName("property")
	if obj == nil || prop == nil {
		return "", "", false
	}
	if obj.Type() != nodeIdentifier || prop.Type() != nodePropertyIdent {
		return "", "", false
	}
	return lang.NodeText(obj, source), lang.NodeText(prop, source), true
}
