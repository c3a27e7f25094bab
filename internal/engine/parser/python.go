package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// PythonExtractor turns a tree-sitter-python tree into a Document in a
// single pre-order pass.
type PythonExtractor struct {
	Options Options
}

func NewPythonExtractor(opts Options) *PythonExtractor {
	return &PythonExtractor{Options: opts.normalized()}
}

func (e *PythonExtractor) Extract(root *sitter.Node, source []byte) (*Document, error) {
	ctx := &ExtractionContext{
		Index:    NewSourceIndex(source),
		Document: newDocument(),
		Scope:    &ScopeStack{},
		Options:  e.Options.normalized(),
	}
	engine := NewExtractorEngine(map[string]NodeHandler{
		"function_definition":     e.extractFunction,
		"class_definition":        e.extractClass,
		"decorated_definition":    e.extractDecorated,
		"import_statement":        e.extractImport,
		"import_from_statement":   e.extractFromImport,
		"future_import_statement": e.extractFromImport,
		"call":                    e.extractCall,
	})
	engine.Walk(ctx, root)

	if ctx.Scope.Depth() != 0 {
		panic("parser: scope stack not empty after traversal")
	}
	return ctx.Document, nil
}

func (e *PythonExtractor) extractFunction(ctx *ExtractionContext, node *sitter.Node) bool {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return false
	}
	name := ctx.Text(nameNode)
	start, end := ctx.Lines(node)

	ctx.Document.Functions = append(ctx.Document.Functions, FunctionRecord{
		QualifiedName: ctx.Scope.Qualify(name),
		Parameters:    e.positionalParameters(ctx, node.ChildByFieldName("parameters")),
		StartLine:     start,
		EndLine:       end,
		DocComment:    ctx.docComment(node.ChildByFieldName("body")),
		Decorators:    e.decorators(ctx, node),
		Snippet:       ctx.Index.Snippet(start, end),
		IsAsync:       isAsyncDefinition(node),
	})

	leave := ctx.Scope.Enter(name)
	defer leave()
	e.walkDecorators(ctx, node)
	ctx.WalkChildren(node)
	return true
}

func (e *PythonExtractor) extractClass(ctx *ExtractionContext, node *sitter.Node) bool {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return false
	}
	name := ctx.Text(nameNode)
	start, end := ctx.Lines(node)

	ctx.Document.Classes = append(ctx.Document.Classes, ClassRecord{
		QualifiedName: ctx.Scope.Qualify(name),
		BaseTypes:     e.baseTypes(ctx, node.ChildByFieldName("superclasses")),
		StartLine:     start,
		EndLine:       end,
		DocComment:    ctx.docComment(node.ChildByFieldName("body")),
		Decorators:    e.decorators(ctx, node),
		Snippet:       ctx.Index.Snippet(start, end),
	})

	leave := ctx.Scope.Enter(name)
	defer leave()
	e.walkDecorators(ctx, node)
	ctx.WalkChildren(node)
	return true
}

// extractDecorated walks only the definition; its decorators are visited by
// the definition's handler inside the definition's scope.
func (e *PythonExtractor) extractDecorated(ctx *ExtractionContext, node *sitter.Node) bool {
	def := node.ChildByFieldName("definition")
	if def == nil {
		return false
	}
	ctx.Walk(def)
	return true
}

func (e *PythonExtractor) walkDecorators(ctx *ExtractionContext, node *sitter.Node) {
	parent := node.Parent()
	if parent == nil || parent.Kind() != "decorated_definition" {
		return
	}
	for i := uint(0); i < parent.NamedChildCount(); i++ {
		if child := parent.NamedChild(i); child.Kind() == "decorator" {
			ctx.Walk(child)
		}
	}
}

func isAsyncDefinition(node *sitter.Node) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "async":
			return true
		case "def":
			return false
		}
	}
	return false
}

// positionalParameters lists the positional-or-keyword parameter names.
// Names before a bare "/" are positional-only and dropped; collection stops
// at the first "*", "*args" or "**kwargs".
func (e *PythonExtractor) positionalParameters(ctx *ExtractionContext, params *sitter.Node) []string {
	names := []string{}
	if params == nil {
		return names
	}
	for i := uint(0); i < params.NamedChildCount(); i++ {
		param := params.NamedChild(i)
		switch param.Kind() {
		case "identifier":
			names = append(names, ctx.Text(param))
		case "default_parameter", "typed_default_parameter":
			if name := param.ChildByFieldName("name"); name != nil && name.Kind() == "identifier" {
				names = append(names, ctx.Text(name))
			}
		case "typed_parameter":
			inner := param.NamedChild(0)
			if inner == nil || inner.Kind() != "identifier" {
				return names
			}
			names = append(names, ctx.Text(inner))
		case "positional_separator":
			names = names[:0]
		case "keyword_separator", "list_splat_pattern", "dictionary_splat_pattern":
			return names
		}
	}
	return names
}

func (e *PythonExtractor) decorators(ctx *ExtractionContext, node *sitter.Node) []string {
	out := []string{}
	parent := node.Parent()
	if parent == nil || parent.Kind() != "decorated_definition" {
		return out
	}
	for i := uint(0); i < parent.NamedChildCount(); i++ {
		child := parent.NamedChild(i)
		if child.Kind() != "decorator" {
			continue
		}
		if label, ok := e.expressionLabel(ctx, decoratorExpression(child)); ok {
			out = append(out, label)
		}
	}
	return out
}

func decoratorExpression(decorator *sitter.Node) *sitter.Node {
	for i := uint(0); i < decorator.NamedChildCount(); i++ {
		child := decorator.NamedChild(i)
		if child.Kind() != "comment" {
			return child
		}
	}
	return nil
}

// baseTypes lists the positional entries of a class header. Keyword
// arguments such as metaclass=... are not base types.
func (e *PythonExtractor) baseTypes(ctx *ExtractionContext, args *sitter.Node) []string {
	out := []string{}
	if args == nil {
		return out
	}
	for i := uint(0); i < args.NamedChildCount(); i++ {
		arg := args.NamedChild(i)
		switch arg.Kind() {
		case "comment", "keyword_argument", "dictionary_splat":
			continue
		}
		if label, ok := e.expressionLabel(ctx, arg); ok {
			out = append(out, label)
		}
	}
	return out
}

// expressionLabel reduces a decorator or base-type expression to its bare
// name, or to its verbatim source span under the structural fallback.
func (e *PythonExtractor) expressionLabel(ctx *ExtractionContext, expr *sitter.Node) (string, bool) {
	if expr == nil {
		return "", false
	}
	if inner := unwrapParens(expr); inner != nil && inner.Kind() == "identifier" {
		return ctx.Text(inner), true
	}
	if ctx.Options.DecoratorStrategy == StrategyBareNameOnly {
		return "", false
	}
	return ctx.Text(expr), true
}

func (e *PythonExtractor) extractImport(ctx *ExtractionContext, node *sitter.Node) bool {
	start, end := ctx.Lines(node)
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		var name, alias string
		switch child.Kind() {
		case "dotted_name":
			name = dottedName(ctx, child)
		case "aliased_import":
			name = dottedName(ctx, child.ChildByFieldName("name"))
			alias = ctx.Text(child.ChildByFieldName("alias"))
		default:
			continue
		}
		ctx.Document.Imports = append(ctx.Document.Imports, ImportRecord{
			Kind:         ImportDirect,
			ImportedName: name,
			Alias:        optional(alias),
			StartLine:    start,
			EndLine:      end,
		})
	}
	return true
}

// extractFromImport handles "from m import a as b, c", relative forms
// ("from ..m import x", "from . import x"), wildcards and __future__ imports.
func (e *PythonExtractor) extractFromImport(ctx *ExtractionContext, node *sitter.Node) bool {
	start, end := ctx.Lines(node)

	var module *string
	depth := 0
	if node.Kind() == "future_import_statement" {
		module = optional("__future__")
	} else if moduleNode := node.ChildByFieldName("module_name"); moduleNode != nil {
		switch moduleNode.Kind() {
		case "dotted_name":
			module = optional(dottedName(ctx, moduleNode))
		case "relative_import":
			for j := uint(0); j < moduleNode.NamedChildCount(); j++ {
				part := moduleNode.NamedChild(j)
				switch part.Kind() {
				case "import_prefix":
					depth = strings.Count(ctx.Text(part), ".")
				case "dotted_name":
					module = optional(dottedName(ctx, part))
				}
			}
		}
	}

	afterImport := false
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() == "import" {
			afterImport = true
			continue
		}
		if !afterImport {
			continue
		}
		var name, alias string
		switch child.Kind() {
		case "dotted_name":
			name = dottedName(ctx, child)
		case "aliased_import":
			name = dottedName(ctx, child.ChildByFieldName("name"))
			alias = ctx.Text(child.ChildByFieldName("alias"))
		case "wildcard_import":
			name = "*"
		default:
			continue
		}
		ctx.Document.Imports = append(ctx.Document.Imports, ImportRecord{
			Kind:          ImportFrom,
			SourceModule:  module,
			ImportedName:  name,
			Alias:         optional(alias),
			RelativeDepth: depth,
			StartLine:     start,
			EndLine:       end,
		})
	}
	return true
}

func (e *PythonExtractor) extractCall(ctx *ExtractionContext, node *sitter.Node) bool {
	if callee, ok := ResolveCallee(node.ChildByFieldName("function"), ctx.Index.source); ok {
		start, end := ctx.Lines(node)
		ctx.Document.Calls = append(ctx.Document.Calls, CallRecord{
			Caller:    ctx.Caller(),
			Callee:    callee,
			StartLine: start,
			EndLine:   end,
		})
	}
	return false
}

// dottedName normalizes "a . b" to "a.b".
func dottedName(ctx *ExtractionContext, node *sitter.Node) string {
	if node == nil {
		return ""
	}
	if node.Kind() != "dotted_name" {
		return ctx.Text(node)
	}
	parts := make([]string, 0, node.NamedChildCount())
	for i := uint(0); i < node.NamedChildCount(); i++ {
		part := node.NamedChild(i)
		if part.Kind() == "identifier" {
			parts = append(parts, ctx.Text(part))
		}
	}
	return strings.Join(parts, ".")
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
