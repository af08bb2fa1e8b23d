package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/harunnryd/todoagent/pkg/store"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	idStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Align(lipgloss.Right)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// renderTodos lays records out as id, text and creation date columns.
func renderTodos(records []store.Record) string {
	if len(records) == 0 {
		return mutedStyle.Render("No todos yet.") + "\n"
	}
	idWidth := len("ID")
	textWidth := len("TODO")
	for _, r := range records {
		idWidth = max(idWidth, len(strconv.FormatInt(r.ID, 10)))
		textWidth = max(textWidth, lipgloss.Width(r.Text))
	}

	var b strings.Builder
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		headerStyle.Width(idWidth).Align(lipgloss.Right).Render("ID"), "  ",
		headerStyle.Width(textWidth).Render("TODO"), "  ",
		headerStyle.Render("CREATED"),
	))
	b.WriteString("\n")
	for _, r := range records {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			idStyle.Width(idWidth).Render(strconv.FormatInt(r.ID, 10)), "  ",
			lipgloss.NewStyle().Width(textWidth).Render(r.Text), "  ",
			mutedStyle.Render(r.CreatedAt.Local().Format("2006-01-02 15:04")),
		))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "%s\n", mutedStyle.Render(fmt.Sprintf("%d todo(s)", len(records))))
	return b.String()
}
