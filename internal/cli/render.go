package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/mmynk/paladium/internal/models"
	"github.com/mmynk/paladium/internal/notify"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	conflictTag  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

func renderNotification(n notify.Notification) string {
	if n.Kind == notify.KindError {
		return errorStyle.Render("✗ " + n.Message)
	}
	return successStyle.Render("✓ " + n.Message)
}

// writeTable prints rows under headers. An empty table prints empty instead.
func writeTable(w io.Writer, headers []string, rows [][]string, empty string) {
	if len(rows) == 0 {
		fmt.Fprintln(w, dimStyle.Render(empty))
		return
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	fmt.Fprintln(w, t.Render())
}

func personRows(people []models.Person) [][]string {
	rows := make([][]string, len(people))
	for i, p := range people {
		rows[i] = []string{p.ID, p.Name, p.Email}
	}
	return rows
}

func memberNames(members []models.Person) string {
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Name
	}
	return strings.Join(names, ", ")
}

// tagSummary renders tags as "name 75%", marking disputed tags.
func tagSummary(image models.ImageItem, threshold float64) string {
	parts := make([]string, len(image.Tags))
	for i, t := range image.Tags {
		s := fmt.Sprintf("%s %.0f%%", t.Name, t.Percentage)
		if image.HasConflict && t.Percentage < threshold {
			s = conflictTag.Render(s)
		}
		parts[i] = s
	}
	return strings.Join(parts, ", ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
