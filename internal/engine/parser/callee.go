package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// ResolveCallee reconstructs the dotted name of a call target. Only bare
// identifiers and attribute chains rooted at an identifier are representable;
// for every other shape it returns ok == false. It never fails.
func ResolveCallee(fn *sitter.Node, source []byte) (string, bool) {
	node := unwrapParens(fn)
	if node == nil {
		return "", false
	}

	switch node.Kind() {
	case "identifier":
		return nodeText(node, source), true
	case "attribute":
		var attrs []string
		for node != nil && node.Kind() == "attribute" {
			attr := node.ChildByFieldName("attribute")
			if attr == nil {
				return "", false
			}
			attrs = append(attrs, nodeText(attr, source))
			node = unwrapParens(node.ChildByFieldName("object"))
		}
		if node == nil || node.Kind() != "identifier" {
			return "", false
		}
		parts := make([]string, 0, len(attrs)+1)
		parts = append(parts, nodeText(node, source))
		for i := len(attrs) - 1; i >= 0; i-- {
			parts = append(parts, attrs[i])
		}
		return strings.Join(parts, "."), true
	}
	return "", false
}

// unwrapParens strips grouping parentheses around a single expression. A
// parenthesized expression with more than one named child (an embedded
// comment) is returned unchanged.
func unwrapParens(node *sitter.Node) *sitter.Node {
	for node != nil && node.Kind() == "parenthesized_expression" {
		if node.NamedChildCount() != 1 {
			return node
		}
		node = node.NamedChild(0)
	}
	return node
}

func nodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	start, end := node.StartByte(), node.EndByte()
	if start > end || end > uint(len(source)) {
		return ""
	}
	return string(source[start:end])
}
