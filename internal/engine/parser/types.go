// # internal/engine/parser/types.go
package parser

import "strings"

// Document is the extraction result for one unit of source text. The four
// sequences are independent and ordered by traversal (source) order.
type Document struct {
	Functions []FunctionRecord `json:"functions" yaml:"functions"`
	Classes   []ClassRecord    `json:"classes" yaml:"classes"`
	Imports   []ImportRecord   `json:"imports" yaml:"imports"`
	Calls     []CallRecord     `json:"calls" yaml:"calls"`
}

type FunctionRecord struct {
	QualifiedName string   `json:"qualified_name" yaml:"qualified_name"`
	Parameters    []string `json:"parameters" yaml:"parameters"`
	StartLine     int      `json:"start_line" yaml:"start_line"`
	EndLine       int      `json:"end_line" yaml:"end_line"`
	DocComment    *string  `json:"doc_comment" yaml:"doc_comment"`
	Decorators    []string `json:"decorators" yaml:"decorators"`
	Snippet       string   `json:"snippet" yaml:"snippet"`
	IsAsync       bool     `json:"is_async,omitempty" yaml:"is_async,omitempty"`
}

type ClassRecord struct {
	QualifiedName string   `json:"qualified_name" yaml:"qualified_name"`
	BaseTypes     []string `json:"base_types" yaml:"base_types"`
	StartLine     int      `json:"start_line" yaml:"start_line"`
	EndLine       int      `json:"end_line" yaml:"end_line"`
	DocComment    *string  `json:"doc_comment" yaml:"doc_comment"`
	Decorators    []string `json:"decorators" yaml:"decorators"`
	Snippet       string   `json:"snippet" yaml:"snippet"`
}

type ImportKind string

const (
	ImportDirect ImportKind = "direct"
	ImportFrom   ImportKind = "from"
)

type ImportRecord struct {
	Kind          ImportKind `json:"kind" yaml:"kind"`
	SourceModule  *string    `json:"source_module" yaml:"source_module"`
	ImportedName  string     `json:"imported_name" yaml:"imported_name"`
	Alias         *string    `json:"alias" yaml:"alias"`
	RelativeDepth int        `json:"relative_depth" yaml:"relative_depth"`
	StartLine     int        `json:"start_line" yaml:"start_line"`
	EndLine       int        `json:"end_line" yaml:"end_line"`
}

type CallRecord struct {
	Caller    string `json:"caller" yaml:"caller"`
	Callee    string `json:"callee" yaml:"callee"`
	StartLine int    `json:"start_line" yaml:"start_line"`
	EndLine   int    `json:"end_line" yaml:"end_line"`
}

// DecoratorStrategy controls how non-identifier decorator and base-type
// expressions are reported.
type DecoratorStrategy string

const (
	// StrategyStructuralFallback reports the verbatim source span of the expression.
	StrategyStructuralFallback DecoratorStrategy = "structural-fallback"
	// StrategyBareNameOnly drops anything that is not a plain identifier.
	StrategyBareNameOnly DecoratorStrategy = "bare-name-only"
)

// DefaultModuleSentinel is the caller reported for calls outside any declaration.
const DefaultModuleSentinel = "__main__"

// Options tunes a single extraction.
type Options struct {
	DecoratorStrategy DecoratorStrategy
	ModuleSentinel    string
}

func DefaultOptions() Options {
	return Options{
		DecoratorStrategy: StrategyStructuralFallback,
		ModuleSentinel:    DefaultModuleSentinel,
	}
}

func (o Options) normalized() Options {
	if o.DecoratorStrategy == "" {
		o.DecoratorStrategy = StrategyStructuralFallback
	}
	if o.ModuleSentinel == "" {
		o.ModuleSentinel = DefaultModuleSentinel
	}
	return o
}

func newDocument() *Document {
	return &Document{
		Functions: []FunctionRecord{},
		Classes:   []ClassRecord{},
		Imports:   []ImportRecord{},
		Calls:     []CallRecord{},
	}
}

// TopLevelFunctions counts functions declared directly at module scope.
func (d *Document) TopLevelFunctions() int {
	n := 0
	for _, fn := range d.Functions {
		if !containsSeparator(fn.QualifiedName) {
			n++
		}
	}
	return n
}

// LocalCalls counts calls whose target is a function declared in the same
// document: an exact qualified-name match, or self.x / cls.x resolved
// against the caller's enclosing class.
func (d *Document) LocalCalls() int {
	defined := make(map[string]bool, len(d.Functions))
	for _, fn := range d.Functions {
		defined[fn.QualifiedName] = true
	}
	classes := make(map[string]bool, len(d.Classes))
	for _, cls := range d.Classes {
		classes[cls.QualifiedName] = true
	}

	n := 0
	for _, call := range d.Calls {
		if defined[call.Callee] {
			n++
			continue
		}
		if method, ok := receiverMethod(call.Callee); ok {
			if owner := enclosingClass(call.Caller, classes); owner != "" && defined[owner+ScopeSeparator+method] {
				n++
			}
		}
	}
	return n
}

func receiverMethod(callee string) (string, bool) {
	for _, receiver := range []string{"self", "cls"} {
		prefix := receiver + ScopeSeparator
		if rest, ok := strings.CutPrefix(callee, prefix); ok && !containsSeparator(rest) {
			return rest, true
		}
	}
	return "", false
}

// enclosingClass walks outward from a qualified caller to the nearest
// enclosing class name.
func enclosingClass(caller string, classes map[string]bool) string {
	for scope := caller; scope != ""; {
		idx := strings.LastIndex(scope, ScopeSeparator)
		if idx < 0 {
			return ""
		}
		scope = scope[:idx]
		if classes[scope] {
			return scope
		}
	}
	return ""
}
