package ui

import (
	"fmt"
	"strings"

	"github.com/76creates/stickers/flexbox"
	"github.com/aeolun/marain/pkg/client/app"
	"github.com/aeolun/marain/pkg/client/chatlog"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const (
	minWidth  = 30
	minHeight = 10

	maxComposeLines = 6
	minSidebarWidth = 16
	maxSidebarWidth = 30
)

func (m Model) View() string {
	if m.width < minWidth || m.height < minHeight {
		return fmt.Sprintf("Terminal too small (%dx%d), need at least %dx%d", m.width, m.height, minWidth, minHeight)
	}
	if !m.ready {
		return "Connecting..."
	}

	composeH := m.composeHeight()
	bodyH := m.height - 2 - composeH

	layout := flexbox.New(m.width, m.height)

	headerRow := layout.NewRow().AddCells(
		flexbox.NewCell(1, 1).SetContent(m.renderHeader()),
	)
	bodyRow := layout.NewRow().AddCells(
		flexbox.NewCell(1, bodyH).SetContent(m.renderBody(bodyH)),
	)
	composeRow := layout.NewRow().AddCells(
		flexbox.NewCell(1, composeH).SetContent(m.renderCompose()),
	)
	footerRow := layout.NewRow().AddCells(
		flexbox.NewCell(1, 1).SetContent(m.renderFooter()),
	)

	layout.AddRows([]*flexbox.Row{headerRow, bodyRow, composeRow, footerRow})
	return layout.Render()
}

func (m Model) composeHeight() int {
	lines := len(m.view.Lines)
	if lines < 1 {
		lines = 1
	}
	if lines > maxComposeLines {
		lines = maxComposeLines
	}
	return lines + 2
}

func (m Model) sidebarWidth() int {
	if m.view.Occupants == "" {
		return 0
	}
	return min(max(m.width/5, minSidebarWidth), maxSidebarWidth)
}

// logPaneSize is the inner size of the log viewport
func (m Model) logPaneSize() (int, int) {
	w := m.width - m.sidebarWidth() - 4
	h := m.height - 2 - m.composeHeight() - 2
	return max(w, 1), max(h, 1)
}

func (m Model) renderHeader() string {
	mode := ModeStyle
	if m.view.Mode == "Disconnected" {
		mode = DisconnectedModeStyle
	}
	left := HeaderStyle.Render("marain") + " " + mode.Render(m.view.Mode)
	if m.view.Room != "" {
		left += " " + SenderStyle.Render("#"+m.view.Room)
	}

	status := m.view.Username
	if !m.view.LoggedIn {
		status += " (not logged in)"
	}
	if m.view.ShowDebug {
		status += "  debug"
	}
	if !m.view.Clock.IsZero() {
		status += "  " + m.view.Clock.Format(chatlog.TimeFormat)
	}
	right := StatusStyle.Render(status)

	spacer := strings.Repeat(" ", max(0, m.width-lipgloss.Width(left)-lipgloss.Width(right)))
	return left + spacer + right
}

func (m Model) renderBody(height int) string {
	logW, _ := m.logPaneSize()
	logs := LogPaneStyle.
		Width(logW + 2).
		Height(height - 2).
		Render(m.logs.View())

	sidebarW := m.sidebarWidth()
	if sidebarW == 0 {
		return logs
	}

	inner := sidebarW - 4
	var names []string
	for _, name := range strings.Split(m.view.Occupants, ", ") {
		names = append(names, runewidth.Truncate(name, inner, "…"))
	}
	sidebar := SidebarStyle.
		Width(sidebarW - 2).
		Height(height - 2).
		Render(MutedStyle.Render("Here") + "\n" + strings.Join(names, "\n"))

	body := flexbox.NewHorizontal(m.width, height)
	logCol := body.NewColumn().AddCells(flexbox.NewCell(m.width-sidebarW, 1).SetContent(logs))
	sideCol := body.NewColumn().AddCells(flexbox.NewCell(sidebarW, 1).SetContent(sidebar))
	body.AddColumns([]*flexbox.Column{logCol, sideCol})
	return body.Render()
}

func (m Model) renderCompose() string {
	inner := m.width - 4
	composing := m.view.Composing()

	lines := m.view.Lines
	if len(lines) == 0 {
		lines = []string{""}
	}
	// keep the caret row in view when the buffer is taller than the box
	first := 0
	if caretRow := m.view.Caret.Row - 1; caretRow >= maxComposeLines {
		first = caretRow - maxComposeLines + 1
	}
	last := min(len(lines), first+maxComposeLines)

	var out []string
	for i := first; i < last; i++ {
		prefix := ""
		if i == 0 && m.view.Staged != "" {
			prefix = MutedStyle.Render(m.view.Staged + ": ")
		}
		width := inner - lipgloss.Width(prefix)
		showCaret := composing && i == m.view.Caret.Row-1
		out = append(out, prefix+renderLine(lines[i], m.view.Caret.Col, showCaret, width))
	}

	style := ComposeStyle
	if composing {
		style = ComposeFocusedStyle
	}
	return style.Width(m.width - 2).MaxWidth(m.width).Render(strings.Join(out, "\n"))
}

// renderLine draws one buffer line, scrolling horizontally so the caret
// cell stays visible
func renderLine(line string, caretCol int, showCaret bool, width int) string {
	runes := []rune(line)
	if !showCaret {
		return runewidth.Truncate(line, width, "…")
	}

	at := min(max(caretCol-1, 0), len(runes))
	start := 0
	for start < at && runewidth.StringWidth(string(runes[start:at]))+1 > width {
		start++
	}
	visible := runes[start:]
	at -= start

	under, rest := " ", ""
	if at < len(visible) {
		under = string(visible[at])
		rest = string(visible[at+1:])
	}
	return string(visible[:at]) + CaretStyle.Render(under) + rest
}

func (m Model) renderFooter() string {
	parts := make([]string, 0, len(m.view.Legend))
	for _, label := range m.view.Legend {
		key, desc, ok := strings.Cut(label, "\t -> ")
		if !ok {
			parts = append(parts, label)
			continue
		}
		parts = append(parts, LegendKeyStyle.Render(key)+" "+MutedStyle.Render(desc))
	}
	return lipgloss.NewStyle().MaxWidth(m.width).Render(strings.Join(parts, "  "))
}

// renderLogs renders entries oldest first so the newest sits at the bottom
func renderLogs(v app.View, width int) string {
	wrap := lipgloss.NewStyle().Width(max(width, 1))
	lines := make([]string, 0, len(v.Logs))
	for i := len(v.Logs) - 1; i >= 0; i-- {
		lines = append(lines, wrap.Render(formatEntry(v.Logs[i], v.Username)))
	}
	return strings.Join(lines, "\n")
}

func formatEntry(e chatlog.Entry, self string) string {
	sender := senderStyle(e.Sender, self).Render(e.Sender)
	stamp := TimeStyle.Render("[ " + e.Time.Local().Format(chatlog.TimeFormat) + " | ")
	body := e.Body
	if e.Debug {
		body = DebugStyle.Render(body)
	}
	return stamp + sender + TimeStyle.Render(" ]: ") + body
}

func senderStyle(sender, self string) lipgloss.Style {
	switch sender {
	case chatlog.SenderServer:
		return ServerStyle
	case chatlog.SenderClient:
		return ClientStyle
	case chatlog.SenderDebug:
		return DebugStyle
	case self:
		return OwnStyle
	default:
		return SenderStyle
	}
}
