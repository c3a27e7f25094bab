package parser

import (
	"errors"
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// SyntaxError reports the first grammar failure in a tree. Line and Offset
// are 1-based.
type SyntaxError struct {
	Filename string
	Line     int
	Offset   int
	Message  string
}

func (e *SyntaxError) Error() string {
	name := e.Filename
	if name == "" {
		name = "<unknown>"
	}
	return fmt.Sprintf("%s (%s, line %d)", e.Message, name, e.Line)
}

// AsSyntaxError finds a *SyntaxError anywhere in err's chain.
func AsSyntaxError(err error) (*SyntaxError, bool) {
	var se *SyntaxError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

func newSyntaxError(pos sitter.Point, msg string) *SyntaxError {
	return &SyntaxError{
		Line:    int(pos.Row) + 1,
		Offset:  int(pos.Column) + 1,
		Message: msg,
	}
}

// findSyntaxError returns nil for a valid tree. Trees with ERROR or MISSING
// nodes are reported from the recovery nodes; error-free trees still go
// through checkStructure, since the grammar accepts some inputs the language
// rejects (bad indentation, Python 2 statements, argument ordering).
func findSyntaxError(root *sitter.Node, source []byte, filename string) *SyntaxError {
	if root == nil {
		return nil
	}
	var se *SyntaxError
	if root.HasError() {
		se = recoverySyntaxError(root, source)
	} else {
		se = checkStructure(root, source)
	}
	if se != nil {
		se.Filename = filename
	}
	return se
}

func recoverySyntaxError(root *sitter.Node, source []byte) *SyntaxError {
	tokens := leaves(root)
	if open := unclosedBracket(tokens); open != nil {
		return newSyntaxError(open.StartPosition(), fmt.Sprintf("'%s' was never closed", open.Kind()))
	}

	bad := firstErrorNode(root)
	if bad == nil {
		bad = root
	}

	if bad.IsMissing() {
		pos := bad.StartPosition()
		if prev := precedingToken(tokens, bad.StartByte()); prev != nil {
			pos = prev.EndPosition()
		}
		return newSyntaxError(pos, fmt.Sprintf("expected '%s'", bad.Kind()))
	}

	pos := bad.StartPosition()
	if bad.StartByte() == bad.EndByte() {
		if prev := precedingToken(tokens, bad.StartByte()); prev != nil {
			pos = prev.EndPosition()
		}
	} else if atLineStart(bad, source) {
		// A whole logical line wrapped in ERROR: the parser gave up after
		// the last token on that line.
		if last := lastTokenOnRow(leaves(bad), pos.Row); last != nil {
			pos = last.EndPosition()
		}
	}
	return newSyntaxError(pos, "invalid syntax")
}

func firstErrorNode(node *sitter.Node) *sitter.Node {
	if node.IsError() || node.IsMissing() {
		return node
	}
	if !node.HasError() {
		return nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if found := firstErrorNode(node.Child(i)); found != nil {
			return found
		}
	}
	return nil
}

// leaves lists the tokens below node in source order.
func leaves(node *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.ChildCount() == 0 {
			out = append(out, n)
			return
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			walk(n.Child(i))
		}
	}
	walk(node)
	return out
}

var closingBracket = map[string]string{"(": ")", "[": "]", "{": "}"}

// unclosedBracket returns the innermost opening bracket still open at the
// end of input. Brackets inserted by error recovery do not count.
func unclosedBracket(tokens []*sitter.Node) *sitter.Node {
	var stack []*sitter.Node
	for _, tok := range tokens {
		if tok.IsMissing() {
			continue
		}
		kind := tok.Kind()
		if _, ok := closingBracket[kind]; ok {
			stack = append(stack, tok)
			continue
		}
		if len(stack) > 0 && closingBracket[stack[len(stack)-1].Kind()] == kind {
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) == 0 {
		return nil
	}
	return stack[len(stack)-1]
}

// precedingToken is the last real token ending at or before offset.
func precedingToken(tokens []*sitter.Node, offset uint) *sitter.Node {
	var prev *sitter.Node
	for _, tok := range tokens {
		if tok.EndByte() > offset {
			break
		}
		if tok.IsMissing() || tok.StartByte() == tok.EndByte() || tok.Kind() == "comment" {
			continue
		}
		prev = tok
	}
	return prev
}

func lastTokenOnRow(tokens []*sitter.Node, row uint) *sitter.Node {
	var last *sitter.Node
	for _, tok := range tokens {
		if tok.IsMissing() || tok.Kind() == "comment" || tok.StartByte() == tok.EndByte() {
			continue
		}
		if tok.StartPosition().Row == row && tok.EndPosition().Row == row {
			last = tok
		}
	}
	return last
}

// atLineStart reports whether only indentation precedes node on its line.
func atLineStart(node *sitter.Node, source []byte) bool {
	_, _, ok := indentation(node, source)
	return ok
}
