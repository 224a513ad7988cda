// Package tui implements the interactive ingestion dashboard.
package tui

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/marshallshelly/gravel/internal/config"
	"github.com/marshallshelly/gravel/internal/database"
	"github.com/marshallshelly/gravel/internal/ingest"
)

// DashboardModel is the Bubbletea model for the live ingest dashboard.
type DashboardModel struct {
	list    list.Model
	logs    LogView
	entries map[string]*EntityItem
	order   []string
	events  <-chan ingest.Event
	cancel  context.CancelFunc
	err     error
	width   int
	height  int
	done    bool
}

// NewDashboardModel creates the dashboard model for the configured
// entities.
func NewDashboardModel(cfg *config.Config, events <-chan ingest.Event, cancel context.CancelFunc) DashboardModel {
	entries := make(map[string]*EntityItem)
	var order []string
	items := make([]list.Item, 0, len(cfg.Entities))

	for _, ec := range cfg.Entities {
		item := &EntityItem{Name: ec.Name, WatchDir: ec.WatchDir}
		entries[ec.Name] = item
		order = append(order, ec.Name)
		items = append(items, *item)
	}

	l := list.New(items, EntityItemDelegate{}, 0, 0)
	l.Title = "Gravel Ingestion"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = titleStyle

	return DashboardModel{
		list:    l,
		logs:    NewLogView(12),
		entries: entries,
		order:   order,
		events:  events,
		cancel:  cancel,
	}
}

// Messages
type ingestEventMsg ingest.Event

type serviceStoppedMsg struct {
	err error
}

func waitForEvent(events <-chan ingest.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return serviceStoppedMsg{}
		}
		return ingestEventMsg(ev)
	}
}

// Init initializes the model
func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(
		waitForEvent(m.events),
		tea.EnterAltScreen,
	)
}

// Update handles messages
func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width-4, msg.Height/2)
		return m, nil

	case ingestEventMsg:
		m.applyEvent(ingest.Event(msg))
		return m, waitForEvent(m.events)

	case serviceStoppedMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.cancel()
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *DashboardModel) applyEvent(ev ingest.Event) {
	entry, ok := m.entries[ev.Entity]
	if !ok {
		return
	}

	file := filepath.Base(ev.File)
	entry.LastFile = file

	switch {
	case ev.Err != nil:
		entry.Failed++
		m.logs.AddLog(dangerStyle.Render("✗ ") + fmt.Sprintf("%s/%s: %v", ev.Entity, file, ev.Err))
	case ev.Result != nil && ev.Result.Skipped:
		entry.Skipped++
		m.logs.AddLog(mutedStyle.Render("• ") + fmt.Sprintf("%s/%s already processed", ev.Entity, file))
	case ev.Result != nil:
		entry.Processed++
		m.logs.AddLog(successStyle.Render("✓ ") + fmt.Sprintf("%s/%s: %d row(s) merged", ev.Entity, file, ev.Result.RowsMerged))
	}

	// Rebuild list items in stable order
	items := make([]list.Item, len(m.order))
	for i, name := range m.order {
		items[i] = *m.entries[name]
	}
	m.list.SetItems(items)
}

// View renders the dashboard
func (m DashboardModel) View() string {
	help := helpStyle.Render(
		FormatKey("↑/↓", "navigate") + " • " + FormatKey("q", "quit"),
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.list.View(),
		m.logs.View(),
		help,
	)
}

// RunDashboard starts the ingestion service with the dashboard attached
// and blocks until the user quits or the service stops.
func RunDashboard(ctx context.Context, db *database.DB, cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan ingest.Event, 64)
	service := ingest.NewService(db, cfg, logger, ingest.WithEvents(events))

	errCh := make(chan error, 1)
	go func() {
		errCh <- service.Run(ctx)
		close(events)
	}()

	p := tea.NewProgram(NewDashboardModel(cfg, events, cancel))
	_, uiErr := p.Run()

	cancel()
	runErr := <-errCh

	if uiErr != nil {
		return uiErr
	}
	return runErr
}
