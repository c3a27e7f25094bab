package report

import (
	"encoding/json"
	"io"

	"pymeta/internal/core/errors"
	"pymeta/internal/engine/parser"
)

// ErrorObject is the failure document written to stderr, and the per-file
// error entry of a scan.
type ErrorObject struct {
	Error   string `json:"error" yaml:"error"`
	Message string `json:"message" yaml:"message"`
	Line    *int   `json:"lineno,omitempty" yaml:"lineno,omitempty"`
	Offset  *int   `json:"offset,omitempty" yaml:"offset,omitempty"`
}

func ErrorFor(err error) ErrorObject {
	if se, ok := parser.AsSyntaxError(err); ok {
		line, offset := se.Line, se.Offset
		return ErrorObject{
			Error:   errors.CategorySyntax,
			Message: se.Error(),
			Line:    &line,
			Offset:  &offset,
		}
	}
	return ErrorObject{Error: errors.Category(err), Message: err.Error()}
}

// WriteError writes err as a single-line JSON object regardless of the
// configured output format.
func WriteError(w io.Writer, err error) error {
	return json.NewEncoder(w).Encode(ErrorFor(err))
}
