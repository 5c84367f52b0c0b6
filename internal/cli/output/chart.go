package output

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// BarWidth is the width of the longest bar in BarChart.
const BarWidth = 40

// BarChart renders labeled values as horizontal bars scaled to the largest
// value. In Markdown mode the chart is wrapped in a code fence.
func (r *Renderer) BarChart(title string, labels []string, values []float64, decimals int) {
	markdown := r.EffectiveMode() == ModeMarkdown
	r.Header(2, title)
	if len(labels) == 0 {
		r.Muted("(no data)")
		return
	}

	var maxVal float64
	labelWidth := 0
	for i, l := range labels {
		if values[i] > maxVal {
			maxVal = values[i]
		}
		labelWidth = max(labelWidth, lipgloss.Width(l))
	}

	if markdown {
		r.Println("```")
	}
	for i, l := range labels {
		bar := Bar(values[i], maxVal, BarWidth)
		if !markdown {
			bar = r.styles.Bar.Render(bar)
		}
		r.Printf("%-*s %s %s\n", labelWidth, l, bar, r.Number(values[i], decimals))
	}
	if markdown {
		r.Println("```")
		r.Println()
	}
}

// Bar returns a bar of up to width cells proportional to v/maxVal. Positive
// values always get at least one cell.
func Bar(v, maxVal float64, width int) string {
	if v <= 0 || maxVal <= 0 || width <= 0 {
		return ""
	}
	n := int(v / maxVal * float64(width))
	if n < 1 {
		n = 1
	}
	if n > width {
		n = width
	}
	return strings.Repeat("█", n)
}

// Percent formats part/total as a percentage with one decimal.
func Percent(part, total float64) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", part/total*100)
}
