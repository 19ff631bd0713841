package shader

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Diagnostic locates a compile error in program text.
type Diagnostic struct {
	Line       int
	Column     int
	SourceLine string
	Message    string
}

// Driver logs of the form "0:12(5): error: ...".
var locatedRE = regexp.MustCompile(`^\s*\d+:(\d+)\((\d+)\):\s*(.*)$`)

// ParseDiagnostic extracts the first located error from a driver log. Logs
// in any other shape produce a Diagnostic with Line 0 and the whole log as
// Message.
func ParseDiagnostic(log, source string) Diagnostic {
	for _, l := range strings.Split(log, "\n") {
		m := locatedRE.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		line, _ := strconv.Atoi(m[1])
		col, _ := strconv.Atoi(m[2])
		d := Diagnostic{Line: line, Column: col, Message: strings.TrimSpace(m[3])}
		lines := strings.Split(source, "\n")
		if line >= 1 && line <= len(lines) {
			d.SourceLine = lines[line-1]
		}
		return d
	}
	msg := strings.TrimSpace(log)
	if msg == "" {
		msg = "shader compilation failed"
	}
	return Diagnostic{Message: msg}
}

// String renders the offending line, a caret under the column and the
// message.
func (d Diagnostic) String() string {
	if d.Line == 0 {
		return d.Message
	}
	caret := strings.Repeat(" ", max(d.Column-1, 0)) + "^"
	return fmt.Sprintf("line %d:\n%s\n%s\n%s", d.Line, d.SourceLine, caret, d.Message)
}
