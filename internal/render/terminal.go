package render

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"stratagem-ai/internal/interpret"
	"stratagem-ai/internal/model"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	labelStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	columnStyle  = lipgloss.NewStyle().Padding(0, 1).BorderStyle(lipgloss.RoundedBorder())

	tierStyles = map[interpret.Tier]lipgloss.Style{
		interpret.TierHigh:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		interpret.TierMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		interpret.TierLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("70")),
	}
	tierMarkers = map[interpret.Tier]string{
		interpret.TierHigh:   "▲",
		interpret.TierMedium: "■",
		interpret.TierLow:    "●",
	}
)

// Terminal renders replies for stratagemctl.
type Terminal struct {
	width int
	md    *glamour.TermRenderer
}

// NewTerminal falls back to unstyled markdown when glamour cannot start.
func NewTerminal(width int) *Terminal {
	if width <= 0 {
		width = 80
	}
	md, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		md = nil
	}
	return &Terminal{width: width, md: md}
}

// Reply renders a raw model reply, structured or not.
func (t *Terminal) Reply(raw string) string {
	reply := interpret.Interpret(raw)
	if reply.Kind == interpret.Structured {
		return t.Structured(reply.Structured)
	}
	return t.Markdown(reply.Text)
}

func (t *Terminal) Markdown(src string) string {
	if t.md == nil {
		return src
	}
	out, err := t.md.Render(src)
	if err != nil {
		return src
	}
	return out
}

func (t *Terminal) Structured(resp model.StructuredResponse) string {
	var b strings.Builder
	section := func(title, body string) {
		b.WriteString(headingStyle.Render(title))
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Width(t.width).Render(body))
		b.WriteString("\n\n")
	}
	section("Summary", resp.Summary)
	section("Analysis", resp.Analysis)
	section("Recommendation", resp.Recommendation)

	colWidth := t.width/2 - 4
	if colWidth < 10 {
		colWidth = 10
	}
	immediate := columnStyle.Width(colWidth).Render(labelStyle.Render("Immediate") + "\n" + resp.Execution.Immediate)
	shortTerm := columnStyle.Width(colWidth).Render(labelStyle.Render("Short term") + "\n" + resp.Execution.ShortTerm)
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, immediate, shortTerm))
	b.WriteString("\n\n")

	if len(resp.Risks) > 0 {
		b.WriteString(headingStyle.Render("Risks"))
		b.WriteString("\n")
		for _, r := range resp.Risks {
			b.WriteString(RiskLine(r))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	b.WriteString(mutedStyle.Render(resp.NextStep))
	b.WriteString("\n")
	return b.String()
}

// RiskLine shows the tier marker and upper-cased tier, then the label the
// model actually sent when it differs.
func RiskLine(r model.Risk) string {
	tier := interpret.TierOf(r.Severity)
	tag := tierMarkers[tier] + " " + strings.ToUpper(tier.String())
	if label := strings.TrimSpace(string(r.Severity)); label != "" && !strings.EqualFold(label, tier.String()) {
		tag += " (" + label + ")"
	}
	return tierStyles[tier].Render(tag) + "  " + r.Risk
}
