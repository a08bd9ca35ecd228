package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/passkeep/passkeep/pkg/vault"
)

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("passkeep"))
	b.WriteString("\n\n")

	if m.detail != nil {
		b.WriteString(m.viewDetail())
	} else {
		b.WriteString(m.viewList())
	}

	if m.status != "" {
		style := statusStyle
		if !m.statusOK {
			style = errorStyle
		}
		b.WriteString("\n" + style.Render(m.status))
	}
	b.WriteString("\n" + helpStyle.Render(m.helpLine()))
	return b.String()
}

func (m Model) viewList() string {
	var b strings.Builder
	if m.filtering || m.filter.Value() != "" {
		b.WriteString(m.filter.View() + "\n")
	}

	if len(m.records) == 0 {
		b.WriteString(subtleStyle.Render("no records"))
		return listStyle.Render(b.String())
	}

	top, bottom := m.visibleRange()
	for i := top; i < bottom; i++ {
		rec := m.records[i]
		line := m.renderItem(rec, i == m.cursor)
		b.WriteString(line + "\n")
	}
	b.WriteString(subtleStyle.Render(fmt.Sprintf("%d records", len(m.records))))
	return listStyle.Render(b.String())
}

// visibleRange keeps the cursor inside the window as it moves.
func (m Model) visibleRange() (int, int) {
	visible := m.height - 8
	if visible < 5 {
		visible = 5
	}
	top := 0
	if m.cursor >= visible {
		top = m.cursor - visible + 1
	}
	bottom := top + visible
	if bottom > len(m.records) {
		bottom = len(m.records)
	}
	return top, bottom
}

func (m Model) renderItem(rec *vault.Record, active bool) string {
	marker := "  "
	if active {
		marker = cursorStyle.Render("> ")
	}
	title := rec.Title
	if active {
		title = cursorStyle.Render(title)
	}
	var extras []string
	if rec.Favorite {
		extras = append(extras, favoriteStyle.Render("*"))
	}
	extras = append(extras, categoryStyle.Render(rec.Category))
	if rec.Username != "" {
		extras = append(extras, subtleStyle.Render(rec.Username))
	}
	return marker + title + "  " + strings.Join(extras, " ")
}

func (m Model) viewDetail() string {
	rec := m.detail
	password := strings.Repeat("•", 12)
	if m.revealed {
		password = rec.Password
	}

	rows := []struct{ label, value string }{
		{"Title", rec.Title},
		{"Username", rec.Username},
		{"Password", password},
		{"URL", rec.URL},
		{"Category", rec.Category},
		{"Tags", strings.Join(rec.Tags, ", ")},
		{"Notes", rec.Notes},
		{"Updated", rec.UpdatedAt.Local().Format("2006-01-02 15:04")},
	}

	var b strings.Builder
	for _, row := range rows {
		if row.value == "" {
			continue
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			fieldStyle.Render(row.label), row.value) + "\n")
	}
	for key, value := range rec.Custom {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			fieldStyle.Render(key), value) + "\n")
	}
	return detailStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) helpLine() string {
	switch {
	case m.filtering:
		return "enter apply  esc clear"
	case m.detail != nil:
		return "r reveal  c copy  esc back"
	default:
		return "j/k move  enter open  c copy  / filter  q quit"
	}
}
