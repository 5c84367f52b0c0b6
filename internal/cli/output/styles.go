package output

import "github.com/charmbracelet/lipgloss"

// Styles is the palette used for text output.
type Styles struct {
	Header  lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Accent  lipgloss.Style
	Success lipgloss.Style
	Info    lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Bar     lipgloss.Style
}

// NewStyles builds the palette for a lipgloss renderer. With an ASCII colour
// profile every style renders as plain text.
func NewStyles(r *lipgloss.Renderer) *Styles {
	return &Styles{
		Header:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Underline(true),
		Bold:    r.NewStyle().Bold(true),
		Muted:   r.NewStyle().Foreground(lipgloss.Color("8")),
		Accent:  r.NewStyle().Foreground(lipgloss.Color("14")),
		Success: r.NewStyle().Foreground(lipgloss.Color("10")),
		Info:    r.NewStyle().Foreground(lipgloss.Color("12")),
		Warning: r.NewStyle().Foreground(lipgloss.Color("11")),
		Error:   r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Bar:     r.NewStyle().Foreground(lipgloss.Color("13")),
	}
}
