// # internal/engine/parser/parser.go
package parser

import (
	"context"
	"fmt"
	"time"

	"pymeta/internal/core/errors"
	"pymeta/internal/shared/observability"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PythonLanguage returns the tree-sitter grammar every Parser uses.
func PythonLanguage() *sitter.Language {
	return sitter.NewLanguage(tree_sitter_python.Language())
}

// Parser runs the grammar and the extractor over source texts. It is safe
// for concurrent use; each Parse owns its tree and traversal state.
type Parser struct {
	pool           *ParserPool
	extractor      *PythonExtractor
	maxSourceBytes int
}

func NewParser(opts Options) *Parser {
	return &Parser{
		pool:      NewParserPool(PythonLanguage()),
		extractor: NewPythonExtractor(opts),
	}
}

// SetMaxSourceBytes rejects larger inputs; zero means unlimited.
func (p *Parser) SetMaxSourceBytes(n int) {
	p.maxSourceBytes = n
}

func (p *Parser) Options() Options {
	return p.extractor.Options
}

// Parse extracts a Document from source. Grammar failures return an error
// with code SYNTAX_ERROR wrapping a *SyntaxError; no partial document is
// produced. filename only labels errors.
func (p *Parser) Parse(ctx context.Context, filename string, source []byte) (doc *Document, err error) {
	ctx, span := observability.Tracer.Start(ctx, "parser.Parse", trace.WithAttributes(
		attribute.String("file", filename),
		attribute.Int("bytes", len(source)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.maxSourceBytes > 0 && len(source) > p.maxSourceBytes {
		return nil, errors.New(errors.CodeValidationError,
			fmt.Sprintf("source is %d bytes, limit is %d", len(source), p.maxSourceBytes))
	}

	started := time.Now()
	defer func() {
		observability.ParsingDuration.Observe(time.Since(started).Seconds())
	}()

	sp := p.pool.Get()
	defer p.pool.Put(sp)

	tree := sp.Parse(source, nil)
	if tree == nil {
		return nil, errors.New(errors.CodeInternal, "parse failed")
	}
	defer tree.Close()

	root := tree.RootNode()
	if syntaxErr := findSyntaxError(root, source, filename); syntaxErr != nil {
		observability.SyntaxErrorsTotal.Inc()
		de := &errors.DomainError{Code: errors.CodeSyntax, Message: "syntax error", Err: syntaxErr}
		de.WithContext(errors.CtxLine, syntaxErr.Line).WithContext(errors.CtxOffset, syntaxErr.Offset)
		return nil, de
	}

	doc, err = p.extract(root, source)
	if err != nil {
		return nil, err
	}

	observability.RecordsExtracted.WithLabelValues("function").Add(float64(len(doc.Functions)))
	observability.RecordsExtracted.WithLabelValues("class").Add(float64(len(doc.Classes)))
	observability.RecordsExtracted.WithLabelValues("import").Add(float64(len(doc.Imports)))
	observability.RecordsExtracted.WithLabelValues("call").Add(float64(len(doc.Calls)))
	span.SetAttributes(
		attribute.Int("functions", len(doc.Functions)),
		attribute.Int("calls", len(doc.Calls)),
	)
	return doc, nil
}

// extract converts a walker panic (an unbalanced scope, a grammar shape the
// handlers did not expect) into an internal error instead of a crash.
func (p *Parser) extract(root *sitter.Node, source []byte) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = errors.New(errors.CodeInternal, fmt.Sprintf("extraction failed: %v", r))
		}
	}()

	doc, err = p.extractor.Extract(root, source)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "extraction failed")
	}
	return doc, nil
}
