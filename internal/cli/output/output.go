// Package output renders command results for terminals, scripts and agents.
//
// In auto mode a terminal gets styled text and anything else gets Markdown.
// JSON and YAML are available for structured consumers.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/muesli/termenv"
	"golang.org/x/term"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// Mode selects the output format.
type Mode string

// OutputMode is an alias kept for callers that spell the type out.
type OutputMode = Mode

// Output modes.
const (
	ModeAuto     Mode = "auto"
	ModeText     Mode = "text"
	ModeMarkdown Mode = "markdown"
	ModeJSON     Mode = "json"
	ModeYAML     Mode = "yaml"
)

// Modes lists every accepted mode, for flag completion.
var Modes = []string{string(ModeAuto), string(ModeText), string(ModeMarkdown), string(ModeJSON), string(ModeYAML)}

// ParseMode validates s. The empty string means auto.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeText, ModeMarkdown, ModeJSON, ModeYAML:
		return m, nil
	case "md":
		return ModeMarkdown, nil
	case "yml":
		return ModeYAML, nil
	default:
		return "", fmt.Errorf("invalid output mode %q (expected one of %s)", s, strings.Join(Modes, ", "))
	}
}

// Renderer writes formatted output.
type Renderer struct {
	out     io.Writer
	errOut  io.Writer
	mode    Mode
	isTTY   bool
	styles  *Styles
	printer *message.Printer
}

// NewRenderer creates a renderer, detecting whether out is a terminal.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	return NewRendererWithTTY(out, errOut, isTerminal(out), mode)
}

// NewRendererWithTTY creates a renderer with an explicit terminal flag.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode Mode) *Renderer {
	if m, err := ParseMode(string(mode)); err == nil {
		mode = m
	} else {
		mode = ModeAuto
	}

	profile := termenv.Ascii
	if isTTY && os.Getenv("NO_COLOR") == "" {
		profile = termenv.EnvColorProfile()
	}
	lr := lipgloss.NewRenderer(out)
	lr.SetColorProfile(profile)

	return &Renderer{
		out:     out,
		errOut:  errOut,
		mode:    mode,
		isTTY:   isTTY,
		styles:  NewStyles(lr),
		printer: message.NewPrinter(language.English),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Mode returns the configured mode.
func (r *Renderer) Mode() Mode { return r.mode }

// IsTTY reports whether output goes to a terminal.
func (r *Renderer) IsTTY() bool { return r.isTTY }

// EffectiveMode resolves auto to text (terminal) or markdown.
func (r *Renderer) EffectiveMode() Mode {
	if r.mode != ModeAuto {
		return r.mode
	}
	if r.isTTY {
		return ModeText
	}
	return ModeMarkdown
}

// Structured reports whether the effective mode is JSON or YAML.
func (r *Renderer) Structured() bool {
	m := r.EffectiveMode()
	return m == ModeJSON || m == ModeYAML
}

// Styles returns the style set bound to this renderer's colour profile.
func (r *Renderer) Styles() *Styles { return r.styles }

// Writer returns the standard output writer.
func (r *Renderer) Writer() io.Writer { return r.out }

// ErrWriter returns the error output writer.
func (r *Renderer) ErrWriter() io.Writer { return r.errOut }

// Println writes a line to standard output.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.out, a...)
}

// Printf writes formatted text to standard output.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}

// Header prints a section header.
func (r *Renderer) Header(level int, title string) {
	if r.EffectiveMode() == ModeMarkdown {
		r.Println(FormatHeader(level, title))
		r.Println()
		return
	}
	style := r.styles.Header
	if level > 1 {
		style = r.styles.Bold
	}
	r.Println(style.Render(title))
}

// KeyValue prints one labeled value.
func (r *Renderer) KeyValue(key, value string) {
	if r.EffectiveMode() == ModeMarkdown {
		r.Println(FormatKeyValue(key, value))
		return
	}
	r.Printf("%s %s\n", r.styles.Muted.Render(key+":"), value)
}

// Success prints a success message.
func (r *Renderer) Success(msg string) {
	r.Println(r.styles.Success.Render("✓ " + msg))
}

// Info prints an informational message.
func (r *Renderer) Info(msg string) {
	r.Println(r.styles.Info.Render(msg))
}

// Muted prints de-emphasized text.
func (r *Renderer) Muted(msg string) {
	r.Println(r.styles.Muted.Render(msg))
}

// Warning prints a warning to the error writer.
func (r *Renderer) Warning(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Warning.Render("! "+msg))
}

// Error prints an error to the error writer.
func (r *Renderer) Error(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Error.Render("✗ "+msg))
}

// StatusLine prints a label with a status marker ("success", "error",
// "warning", anything else is neutral) and optional detail.
func (r *Renderer) StatusLine(label, status, detail string) {
	var mark string
	switch status {
	case "success":
		mark = r.styles.Success.Render("✓")
	case "error":
		mark = r.styles.Error.Render("✗")
	case "warning":
		mark = r.styles.Warning.Render("!")
	default:
		mark = r.styles.Muted.Render("·")
	}
	if detail != "" {
		r.Printf("%s %s %s\n", mark, label, r.styles.Muted.Render(detail))
		return
	}
	r.Printf("%s %s\n", mark, label)
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// YAML writes v as YAML.
func (r *Renderer) YAML(v any) error {
	enc := yaml.NewEncoder(r.out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// Data writes v in the structured format of the effective mode. It returns
// false without writing when the mode is text or markdown.
func (r *Renderer) Data(v any) (bool, error) {
	switch r.EffectiveMode() {
	case ModeJSON:
		return true, r.JSON(v)
	case ModeYAML:
		return true, r.YAML(v)
	default:
		return false, nil
	}
}

// Table renders rows under headers, as a box table in text mode and a
// Markdown table otherwise.
func (r *Renderer) Table(headers []string, rows [][]any) {
	if len(rows) == 0 {
		r.Muted("(0 rows)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	t.AppendHeader(header)
	for _, row := range rows {
		t.AppendRow(table.Row(row))
	}

	if r.EffectiveMode() == ModeMarkdown {
		t.RenderMarkdown()
		r.Println()
		return
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}

// Number formats v with thousands separators and the given decimals.
func (r *Renderer) Number(v float64, decimals int) string {
	if decimals < 0 {
		decimals = 0
	}
	return r.printer.Sprintf(fmt.Sprintf("%%.%df", decimals), v)
}

// Count formats an integer with thousands separators.
func (r *Renderer) Count(n int) string {
	return r.printer.Sprintf("%d", n)
}

// FormatHeader returns a Markdown header.
func FormatHeader(level int, title string) string {
	if level < 1 {
		level = 1
	}
	return strings.Repeat("#", level) + " " + title
}

// FormatKeyValue returns a Markdown list item with a bold key.
func FormatKeyValue(key, value string) string {
	return fmt.Sprintf("- **%s**: %s", key, value)
}
