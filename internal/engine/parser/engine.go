package parser

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// NodeHandler processes a node of one kind.
// Returns true if the handler has visited the node's children itself and the
// walker should not descend again.
type NodeHandler func(ctx *ExtractionContext, node *sitter.Node) bool

// ExtractionContext carries the per-traversal state shared by all handlers.
type ExtractionContext struct {
	Index    *SourceIndex
	Document *Document
	Scope    *ScopeStack
	Options  Options

	engine *ExtractorEngine
}

// ExtractorEngine walks the syntax tree pre-order and dispatches node
// handlers by kind. Kinds without a handler are descended into unchanged.
type ExtractorEngine struct {
	handlers map[string]NodeHandler
}

func NewExtractorEngine(handlers map[string]NodeHandler) *ExtractorEngine {
	return &ExtractorEngine{handlers: handlers}
}

func (e *ExtractorEngine) Walk(ctx *ExtractionContext, node *sitter.Node) {
	if node == nil {
		return
	}
	ctx.engine = e

	if handler, ok := e.handlers[node.Kind()]; ok {
		if handler(ctx, node) {
			return
		}
	}
	e.walkChildren(ctx, node)
}

func (e *ExtractorEngine) walkChildren(ctx *ExtractionContext, node *sitter.Node) {
	for i := uint(0); i < node.ChildCount(); i++ {
		e.Walk(ctx, node.Child(i))
	}
}

// WalkChildren lets a handler continue the traversal below node, typically
// between entering and leaving a scope.
func (c *ExtractionContext) WalkChildren(node *sitter.Node) {
	if c.engine == nil || node == nil {
		return
	}
	c.engine.walkChildren(c, node)
}

func (c *ExtractionContext) Text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return c.Index.Span(node.StartByte(), node.EndByte())
}

// Walk visits node and its subtree with the engine's handlers.
func (c *ExtractionContext) Walk(node *sitter.Node) {
	if c.engine == nil || node == nil {
		return
	}
	c.engine.Walk(c, node)
}

// Lines returns the 1-based inclusive line range of node. The range ends at
// the last token that is not a comment, so comments trailing a body are not
// part of it. A node that ends at column 0 of a later row (trailing newline
// absorbed) ends on the row before.
func (c *ExtractionContext) Lines(node *sitter.Node) (int, int) {
	start := node.StartPosition()
	end := lastTokenEnd(node)
	startLine := int(start.Row) + 1
	endLine := int(end.Row) + 1
	if end.Column == 0 && end.Row > start.Row {
		endLine--
	}
	if endLine < startLine {
		endLine = startLine
	}
	return startLine, endLine
}

func lastTokenEnd(node *sitter.Node) sitter.Point {
	for n := node; ; {
		var next *sitter.Node
		for i := int(n.ChildCount()) - 1; i >= 0; i-- {
			child := n.Child(uint(i))
			if child.Kind() == "comment" || child.StartByte() == child.EndByte() {
				continue
			}
			next = child
			break
		}
		if next == nil {
			return n.EndPosition()
		}
		n = next
	}
}

func (c *ExtractionContext) ChildText(node *sitter.Node, kind string) string {
	if node == nil {
		return ""
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() == kind {
			return c.Text(child)
		}
	}
	return ""
}

// Caller is the current qualified scope, or the module sentinel.
func (c *ExtractionContext) Caller() string {
	if c.Scope.Depth() == 0 {
		return c.Options.ModuleSentinel
	}
	return c.Scope.Current()
}
