package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
)

// EntityItem represents one watched entity in the dashboard list.
type EntityItem struct {
	Name      string
	WatchDir  string
	Processed int
	Skipped   int
	Failed    int
	LastFile  string
}

func (i EntityItem) FilterValue() string { return i.Name }

func (i EntityItem) Title() string {
	return fmt.Sprintf("%s  %s %s %s",
		i.Name,
		successStyle.Render(fmt.Sprintf("%d processed", i.Processed)),
		mutedStyle.Render(fmt.Sprintf("%d skipped", i.Skipped)),
		dangerStyle.Render(fmt.Sprintf("%d failed", i.Failed)),
	)
}

func (i EntityItem) Description() string {
	if i.LastFile != "" {
		return mutedStyle.Render("last: " + i.LastFile)
	}
	return mutedStyle.Render("watching " + i.WatchDir)
}

// EntityItemDelegate renders entity list items.
type EntityItemDelegate struct{}

func (d EntityItemDelegate) Height() int                             { return 2 }
func (d EntityItemDelegate) Spacing() int                            { return 1 }
func (d EntityItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }
func (d EntityItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	i, ok := item.(EntityItem)
	if !ok {
		return
	}

	var s string
	if index == m.Index() {
		s = selectedItemStyle.Render("▸ " + i.Title() + "\n  " + i.Description())
	} else {
		s = unselectedItemStyle.Render("  " + i.Title() + "\n  " + i.Description())
	}

	_, _ = fmt.Fprint(w, s)
}

// LogView displays a rolling window of recent file events.
type LogView struct {
	Logs   []string
	MaxLen int
}

// NewLogView creates a new log view
func NewLogView(maxLen int) LogView {
	return LogView{
		Logs:   make([]string, 0),
		MaxLen: maxLen,
	}
}

// AddLog adds a log entry
func (l *LogView) AddLog(entry string) {
	l.Logs = append(l.Logs, entry)
	if len(l.Logs) > l.MaxLen {
		l.Logs = l.Logs[1:]
	}
}

// View renders the log view
func (l LogView) View() string {
	if len(l.Logs) == 0 {
		return mutedStyle.Render("Waiting for files...")
	}

	var b strings.Builder
	for _, entry := range l.Logs {
		b.WriteString(mutedStyle.Render("• "))
		b.WriteString(entry)
		b.WriteString("\n")
	}

	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}
