package parser

import (
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

const tabSize = 8

// indentLevel is one entry of the indentation stack. col counts tabs to the
// next multiple of eight, alt counts them as one column; the two must agree
// on ordering or the indentation mixes tabs and spaces ambiguously.
type indentLevel struct {
	col int
	alt int
}

// clauseKinds continue a compound statement on a line of their own and must
// line up with the statement's header.
var clauseKinds = map[string]bool{
	"elif_clause":         true,
	"else_clause":         true,
	"except_clause":       true,
	"except_group_clause": true,
	"finally_clause":      true,
}

var headerNames = map[string]string{
	"if_statement":        "'if' statement",
	"elif_clause":         "'elif' statement",
	"else_clause":         "'else' statement",
	"for_statement":       "'for' statement",
	"while_statement":     "'while' statement",
	"with_statement":      "'with' statement",
	"try_statement":       "'try' statement",
	"except_clause":       "'except' statement",
	"except_group_clause": "'except*' statement",
	"finally_clause":      "'finally' statement",
	"function_definition": "function definition",
	"class_definition":    "class definition",
	"match_statement":     "'match' statement",
	"case_clause":         "'case' statement",
}

// structureChecker replays the indentation rules of the tokenizer over the
// logical lines of an error-free tree and rejects statement forms the
// grammar only keeps for error tolerance.
type structureChecker struct {
	source []byte
	levels []indentLevel
	err    *SyntaxError
}

func checkStructure(root *sitter.Node, source []byte) *SyntaxError {
	c := &structureChecker{source: source, levels: []indentLevel{{}}}
	c.walk(root, nil, false)
	return c.err
}

func (c *structureChecker) fail(pos sitter.Point, msg string) {
	if c.err == nil {
		c.err = newSyntaxError(pos, msg)
	}
}

func (c *structureChecker) walk(node, parent *sitter.Node, first bool) {
	if c.err != nil {
		return
	}
	kind := node.Kind()
	if kind == "comment" {
		return
	}

	if parent != nil {
		c.checkIndentation(node, parent, first)
		if c.err != nil {
			return
		}
	}

	switch kind {
	case "print_statement":
		c.fail(node.StartPosition(), "Missing parentheses in call to 'print'. Did you mean print(...)?")
	case "exec_statement":
		c.fail(node.StartPosition(), "Missing parentheses in call to 'exec'. Did you mean exec(...)?")
	case "block":
		if !hasStatements(node) {
			c.fail(sitter.Point{Row: node.StartPosition().Row + 1},
				fmt.Sprintf("expected an indented block after %s on line %d",
					headerName(parent), parent.StartPosition().Row+1))
		}
	case "argument_list":
		c.checkArguments(node)
	}
	if c.err != nil {
		return
	}

	seenStatement := false
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		isFirst := false
		if kind == "block" && child.IsNamed() && child.Kind() != "comment" && !seenStatement {
			isFirst = true
			seenStatement = true
		}
		c.walk(child, node, isFirst)
	}
}

func hasStatements(block *sitter.Node) bool {
	for i := uint(0); i < block.NamedChildCount(); i++ {
		if block.NamedChild(i).Kind() != "comment" {
			return true
		}
	}
	return false
}

func headerName(node *sitter.Node) string {
	if node != nil {
		if name, ok := headerNames[node.Kind()]; ok {
			return name
		}
	}
	return "statement"
}

// checkIndentation applies the INDENT/DEDENT rules to node when it starts a
// logical line.
func (c *structureChecker) checkIndentation(node, parent *sitter.Node, first bool) {
	kind := node.Kind()
	parentKind := parent.Kind()
	logical := parentKind == "module" || parentKind == "block" ||
		parentKind == "decorated_definition" || clauseKinds[kind]
	if !logical {
		return
	}
	col, alt, ok := indentation(node, c.source)
	if !ok {
		return
	}

	pos := node.StartPosition()
	top := c.levels[len(c.levels)-1]
	switch {
	case parentKind == "block" && first:
		if col <= top.col {
			header := parent.Parent()
			headerLine := pos.Row
			if header != nil {
				headerLine = header.StartPosition().Row + 1
			}
			c.fail(pos, fmt.Sprintf("expected an indented block after %s on line %d", headerName(header), headerLine))
			return
		}
		if alt <= top.alt {
			c.fail(pos, "inconsistent use of tabs and spaces in indentation")
			return
		}
		c.levels = append(c.levels, indentLevel{col: col, alt: alt})
	case col > top.col:
		c.fail(pos, "unexpected indent")
		return
	default:
		for col < top.col {
			c.levels = c.levels[:len(c.levels)-1]
			top = c.levels[len(c.levels)-1]
		}
		if col != top.col {
			c.fail(pos, "unindent does not match any outer indentation level")
			return
		}
		if alt != top.alt {
			c.fail(pos, "inconsistent use of tabs and spaces in indentation")
			return
		}
	}

	if clauseKinds[kind] || parentKind == "decorated_definition" {
		if headerCol, _, ok := indentation(parent, c.source); ok && headerCol != col {
			c.fail(pos, "invalid syntax")
		}
	}
}

// checkArguments rejects positional arguments after keyword arguments and
// iterable unpacking after keyword unpacking.
func (c *structureChecker) checkArguments(args *sitter.Node) {
	seenKeyword, seenKeywordUnpack := false, false
	for i := uint(0); i < args.NamedChildCount(); i++ {
		arg := args.NamedChild(i)
		switch arg.Kind() {
		case "comment":
		case "keyword_argument":
			seenKeyword = true
		case "dictionary_splat":
			seenKeywordUnpack = true
		case "list_splat":
			if seenKeywordUnpack {
				c.fail(arg.StartPosition(), "iterable argument unpacking follows keyword argument unpacking")
				return
			}
		default:
			switch {
			case seenKeywordUnpack:
				c.fail(arg.StartPosition(), "positional argument follows keyword argument unpacking")
				return
			case seenKeyword:
				c.fail(arg.StartPosition(), "positional argument follows keyword argument")
				return
			}
		}
	}
}

// indentation measures the whitespace between the start of node's line and
// node. ok is false when anything else precedes node on the line.
func indentation(node *sitter.Node, source []byte) (col, alt int, ok bool) {
	start := int(node.StartByte())
	lineStart := start - int(node.StartPosition().Column)
	if lineStart < 0 || start > len(source) {
		return 0, 0, false
	}
	for _, ch := range source[lineStart:start] {
		switch ch {
		case ' ':
			col++
			alt++
		case '\t':
			col = (col/tabSize + 1) * tabSize
			alt++
		case '\f':
			col, alt = 0, 0
		default:
			return 0, 0, false
		}
	}
	return col, alt, true
}
