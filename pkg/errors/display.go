// Package errors provides error formatting and display functions.
// Renders DeviceErrors with color coding for TTY output.
package errors

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Styles for the formatted error parts. lipgloss degrades these to plain
// text when the output is not a color terminal.
var (
	styleHeader     = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	styleCode       = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	styleContextKey = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	styleCause      = lipgloss.NewStyle().Faint(true)
	styleSuggestion = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

// Formatter handles error display with optional color support.
type Formatter struct {
	// UseColor enables styled output.
	// When false, output is plain text suitable for logs.
	UseColor bool

	// Writer is the output destination. Defaults to os.Stderr.
	Writer io.Writer

	// Indent is the prefix for context and suggestion lines.
	Indent string
}

// DefaultFormatter returns a Formatter configured for standard error output.
// Color is enabled if stderr is a TTY.
func DefaultFormatter() *Formatter {
	return &Formatter{
		UseColor: IsTTY(os.Stderr),
		Writer:   os.Stderr,
		Indent:   "  ",
	}
}

// IsTTY returns true if the given file is a terminal.
func IsTTY(f *os.File) bool {
	if f == nil {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Format renders a DeviceError with color coding and structured display.
// Returns a formatted string suitable for display to operators.
func Format(err error) string {
	return DefaultFormatter().Format(err)
}

// Format renders an error with color coding based on formatter settings.
// For DeviceError, displays code, message, context, cause, and suggestions.
// For standard errors, displays a simple error message.
func (f *Formatter) Format(err error) string {
	if err == nil {
		return ""
	}

	de, ok := AsDeviceError(err)
	if !ok {
		return f.formatStandardError(err)
	}

	return f.formatDeviceError(de)
}

func (f *Formatter) formatStandardError(err error) string {
	prefix := "Error: "
	if f.UseColor {
		prefix = styleHeader.Render("Error:") + " "
	}
	return prefix + err.Error()
}

func (f *Formatter) formatDeviceError(de *DeviceError) string {
	var sb strings.Builder

	f.writeErrorHeader(&sb, de)

	if de.HasContext() {
		f.writeContext(&sb, de)
	}

	if de.Cause != nil {
		f.writeCause(&sb, de)
	}

	if de.HasSuggestions() {
		f.writeSuggestions(&sb, de)
	}

	return sb.String()
}

// writeErrorHeader writes the error code and message.
func (f *Formatter) writeErrorHeader(sb *strings.Builder, de *DeviceError) {
	if f.UseColor {
		sb.WriteString(styleHeader.Render("ERROR"))
		sb.WriteString(styleCode.Render(" [" + de.Code + "]: "))
	} else {
		sb.WriteString("ERROR [")
		sb.WriteString(de.Code)
		sb.WriteString("]: ")
	}
	sb.WriteString(de.Message)
	sb.WriteString("\n")
}

// writeContext writes the context key-value pairs, sorted for stable output.
func (f *Formatter) writeContext(sb *strings.Builder, de *DeviceError) {
	keys := make([]string, 0, len(de.Context))
	for k := range de.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := de.Context[key]
		sb.WriteString(f.Indent)
		if f.UseColor {
			sb.WriteString(styleContextKey.Render(key + ": "))
		} else {
			sb.WriteString(key)
			sb.WriteString(": ")
		}
		sb.WriteString(value)
		sb.WriteString("\n")
	}
}

// writeCause writes the underlying cause of the error.
func (f *Formatter) writeCause(sb *strings.Builder, de *DeviceError) {
	sb.WriteString(f.Indent)
	line := "cause: " + de.Cause.Error()
	if f.UseColor {
		line = styleCause.Render(line)
	}
	sb.WriteString(line)
	sb.WriteString("\n")
}

// writeSuggestions writes actionable remediation suggestions.
func (f *Formatter) writeSuggestions(sb *strings.Builder, de *DeviceError) {
	// Blank line before suggestions for visual separation
	if de.HasContext() || de.Cause != nil {
		sb.WriteString("\n")
	}

	for i, suggestion := range de.Suggestions {
		sb.WriteString(f.Indent)
		line := "→ " + suggestion
		if f.UseColor {
			line = styleSuggestion.Render(line)
		}
		sb.WriteString(line)
		if i < len(de.Suggestions)-1 {
			sb.WriteString("\n")
		}
	}
}

// Display writes a formatted error to the formatter's writer.
func (f *Formatter) Display(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(f.Writer, f.Format(err))
}

// Display writes a formatted error to stderr with default settings.
// This is the primary function for displaying errors to operators.
func Display(err error) {
	DefaultFormatter().Display(err)
}

// Sprint returns a formatted error string without colors.
// Useful for logging or non-TTY environments.
func Sprint(err error) string {
	f := &Formatter{
		UseColor: false,
		Writer:   io.Discard,
		Indent:   "  ",
	}
	return f.Format(err)
}

// FormatMultiple formats multiple errors for display.
func FormatMultiple(errs []error) string {
	if len(errs) == 0 {
		return ""
	}

	f := DefaultFormatter()
	var sb strings.Builder

	for i, err := range errs {
		if err == nil {
			continue
		}
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(f.Format(err))
	}

	return sb.String()
}

// CategoryLabel returns a human-readable label for an error category.
func CategoryLabel(cat Category) string {
	switch cat {
	case CategoryValidation:
		return "Validation Error"
	case CategoryTrial:
		return "Trial Error"
	case CategoryHardware:
		return "Hardware Error"
	case CategoryPersistence:
		return "Persistence Error"
	case CategoryTransport:
		return "Transport Error"
	case CategoryConfig:
		return "Configuration Error"
	case CategoryInternal:
		return "Internal Error"
	default:
		return "Error"
	}
}
