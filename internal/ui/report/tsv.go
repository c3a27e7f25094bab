package report

import (
	"bufio"
	"fmt"
	"io"
)

const callsHeader = "File\tCaller\tCallee\tStartLine\tEndLine\n"

// writeCallsTSV emits one row per call edge, preceded by the header row when
// header is set. Files that failed or were removed contribute no rows.
func writeCallsTSV(w io.Writer, entries []FileEntry, header bool) error {
	buf := bufio.NewWriter(w)
	if header {
		buf.WriteString(callsHeader)
	}
	for _, entry := range entries {
		if entry.Document == nil {
			continue
		}
		for _, call := range entry.Document.Calls {
			fmt.Fprintf(buf, "%s\t%s\t%s\t%d\t%d\n",
				entry.Path, call.Caller, call.Callee, call.StartLine, call.EndLine)
		}
	}
	return buf.Flush()
}
