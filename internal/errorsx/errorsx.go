// Package errorsx defines the error taxonomy the engine surfaces to users
// (ParseError/CompileError vs RuntimeError/HostError) and renders
// diagnostics with a source caret, colorized when the output is a
// terminal.
package errorsx

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Kind classifies a diagnostic per the engine's error taxonomy.
type Kind int

const (
	KindParse Kind = iota
	KindTypeCheck
	KindCompile
	KindRuntime
	KindHost
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "ParseError"
	case KindTypeCheck:
		return "TypeCheckError"
	case KindCompile:
		return "CompileError"
	case KindHost:
		return "HostError"
	default:
		return "RuntimeError"
	}
}

// Diagnostic is one user-facing error: kind, message, optional source
// position and host error code (ENOENT-style, for HostError).
type Diagnostic struct {
	Kind    Kind
	Message string
	File    string
	Line    int
	Column  int
	Code    string // host error code, "" otherwise
}

func (d *Diagnostic) Error() string {
	var sb strings.Builder
	sb.WriteString(d.Kind.String())
	if d.Code != "" {
		sb.WriteString(" [" + d.Code + "]")
	}
	sb.WriteString(": ")
	sb.WriteString(d.Message)
	if d.Line > 0 {
		sb.WriteString(fmt.Sprintf(" (%s:%d:%d)", d.File, d.Line, d.Column))
	}
	return sb.String()
}

// New builds a diagnostic of the given kind.
func New(kind Kind, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithPos attaches a source position.
func (d *Diagnostic) WithPos(file string, line, column int) *Diagnostic {
	d.File, d.Line, d.Column = file, line, column
	return d
}

// WithCode attaches a host error code.
func (d *Diagnostic) WithCode(code string) *Diagnostic {
	d.Code = code
	return d
}

// Render writes the diagnostic to w with an optional source-line caret.
// Color is applied only when w is a real terminal (or forced).
func Render(w io.Writer, d *Diagnostic, source string, forceColor bool) {
	useColor := forceColor
	if f, ok := w.(*os.File); ok && !forceColor {
		useColor = isatty.IsTerminal(f.Fd())
	}
	headline := color.New(color.FgRed, color.Bold)
	dim := color.New(color.Faint)
	if !useColor {
		headline.DisableColor()
		dim.DisableColor()
	}

	headline.Fprintf(w, "%s", d.Kind.String())
	if d.Code != "" {
		fmt.Fprintf(w, " [%s]", d.Code)
	}
	fmt.Fprintf(w, ": %s\n", d.Message)

	if d.Line <= 0 || source == "" {
		return
	}
	lines := strings.Split(source, "\n")
	if d.Line > len(lines) {
		return
	}
	dim.Fprintf(w, "  --> %s:%d:%d\n", d.File, d.Line, d.Column)
	src := lines[d.Line-1]
	fmt.Fprintf(w, "%5d | %s\n", d.Line, src)
	caretCol := d.Column
	if caretCol < 1 {
		caretCol = 1
	}
	fmt.Fprintf(w, "      | %s^\n", strings.Repeat(" ", caretCol-1))
}
