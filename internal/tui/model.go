// Package tui renders an interactive view of the playback ledger.
package tui

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/mmcdole/playtally/internal/dispatch"
	"github.com/mmcdole/playtally/internal/domain"
	"github.com/mmcdole/playtally/internal/tui/styles"
)

// EntrySource supplies ledger entries to the view (consumer-defined interface)
type EntrySource interface {
	Entries() []domain.PlaybackEntry
}

// Flusher runs a flush pass (consumer-defined interface)
type Flusher interface {
	Flush(ctx context.Context) dispatch.Report
}

const (
	colItemWidth   = 32
	colCountWidth  = 7
	colPlayedWidth = 20
	colStateWidth  = 8
	chromeHeight   = 7
)

// Model is the bubbletea model for the status view
type Model struct {
	source  EntrySource
	flusher Flusher
	keys    KeyMap

	table   table.Model
	spinner spinner.Model
	filter  textinput.Model

	entries   []domain.PlaybackEntry
	visible   []domain.PlaybackEntry
	filtering bool
	flushing  bool

	lastReport *dispatch.Report
	err        error

	width  int
	height int
}

// NewModel creates the status view. flusher may be nil to disable flushing.
func NewModel(source EntrySource, flusher Flusher) Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Item", Width: colItemWidth},
			{Title: "Plays", Width: colCountWidth},
			{Title: "Last played", Width: colPlayedWidth},
			{Title: "State", Width: colStateWidth},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	ts := table.DefaultStyles()
	ts.Header = styles.HeaderStyle
	ts.Selected = styles.SelectedRowStyle
	t.SetStyles(ts)

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{Frames: styles.SpinnerFrames, FPS: time.Second / 10}
	sp.Style = styles.AccentStyle

	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "filter items"
	ti.CharLimit = 128

	return Model{
		source:  source,
		flusher: flusher,
		keys:    DefaultKeyMap(),
		table:   t,
		spinner: sp,
		filter:  ti,
	}
}

// Init loads the ledger and starts the refresh ticker
func (m Model) Init() tea.Cmd {
	return tea.Batch(LoadEntriesCmd(m.source), RefreshTickCmd())
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.table.SetHeight(max(msg.Height-chromeHeight, 3))
		return m, nil

	case EntriesLoadedMsg:
		m.entries = msg.Entries
		m.applyFilter()
		return m, nil

	case RefreshTickMsg:
		return m, tea.Batch(LoadEntriesCmd(m.source), RefreshTickCmd())

	case FlushDoneMsg:
		m.flushing = false
		report := msg.Report
		m.lastReport = &report
		m.err = nil
		return m, LoadEntriesCmd(m.source)

	case ErrMsg:
		m.flushing = false
		m.err = msg
		return m, LoadEntriesCmd(m.source)

	case spinner.TickMsg:
		if !m.flushing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.filtering {
			return m.handleFilterKey(msg)
		}
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Flush):
		if m.flushing || m.flusher == nil {
			return m, nil
		}
		m.flushing = true
		return m, tea.Batch(m.spinner.Tick, FlushCmd(m.flusher))

	case key.Matches(msg, m.keys.Refresh):
		return m, LoadEntriesCmd(m.source)

	case key.Matches(msg, m.keys.Filter):
		m.filtering = true
		return m, m.filter.Focus()

	case key.Matches(msg, m.keys.Escape):
		if m.filter.Value() != "" {
			m.filter.SetValue("")
			m.applyFilter()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.applyFilter()
		return m, nil

	case key.Matches(msg, m.keys.Accept):
		m.filtering = false
		m.filter.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.applyFilter()
	return m, cmd
}

// applyFilter ranks entries against the filter text and rebuilds the table
func (m *Model) applyFilter() {
	query := strings.TrimSpace(m.filter.Value())
	if query == "" {
		m.visible = m.entries
	} else {
		byID := make(map[string]domain.PlaybackEntry, len(m.entries))
		ids := make([]string, 0, len(m.entries))
		for _, e := range m.entries {
			byID[e.ItemID] = e
			ids = append(ids, e.ItemID)
		}
		ranks := fuzzy.RankFindFold(query, ids)
		sort.Stable(ranks)
		m.visible = make([]domain.PlaybackEntry, 0, len(ranks))
		for _, r := range ranks {
			m.visible = append(m.visible, byID[r.Target])
		}
	}

	rows := make([]table.Row, 0, len(m.visible))
	for _, e := range m.visible {
		rows = append(rows, entryRow(e))
	}
	m.table.SetRows(rows)
	if m.table.Cursor() >= len(rows) {
		m.table.SetCursor(max(len(rows)-1, 0))
	}
}

func entryRow(e domain.PlaybackEntry) table.Row {
	played := "never"
	if e.LastEventTime > 0 {
		played = e.LastPlayed().Local().Format("2006-01-02 15:04:05")
	}
	state := styles.CleanChar + " clean"
	if e.IsDirty() {
		state = styles.DirtyChar + " dirty"
	}
	return table.Row{e.ItemID, strconv.Itoa(e.Count), played, state}
}

// Visible returns the entries currently shown in the table
func (m Model) Visible() []domain.PlaybackEntry {
	return m.visible
}

// View renders the model
func (m Model) View() string {
	var b strings.Builder

	dirty := 0
	for _, e := range m.entries {
		if e.IsDirty() {
			dirty++
		}
	}
	b.WriteString(styles.TitleStyle.Render("playtally"))
	b.WriteString(styles.DimStyle.Render(fmt.Sprintf("  %d items · %d pending", len(m.entries), dirty)))
	b.WriteString("\n")

	b.WriteString(styles.FrameStyle.Render(m.table.View()))
	b.WriteString("\n")

	if m.filtering || m.filter.Value() != "" {
		b.WriteString(m.filter.View())
		b.WriteString("\n")
	}

	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(styles.FooterStyle.Render(m.helpLine()))
	return b.String()
}

func (m Model) statusLine() string {
	switch {
	case m.flushing:
		return m.spinner.View() + " " + styles.DimStyle.Render("flushing...")
	case m.err != nil:
		return styles.ErrorStyle.Render(m.err.Error())
	case m.lastReport != nil:
		r := m.lastReport
		if r.OK() {
			line := fmt.Sprintf("%s synced %d of %d in %s",
				styles.CleanChar, len(r.Synced), r.Attempted, r.Duration.Round(time.Millisecond))
			if n := len(r.Superseded); n > 0 {
				line += fmt.Sprintf(", %d played again", n)
			}
			return styles.SuccessStyle.Render(line)
		}
		return styles.ErrorStyle.Render(fmt.Sprintf("%d of %d failed", len(r.Failed), r.Attempted))
	}
	return ""
}

func (m Model) helpLine() string {
	bindings := []key.Binding{m.keys.Up, m.keys.Down, m.keys.Flush, m.keys.Filter, m.keys.Refresh, m.keys.Quit}
	parts := make([]string, 0, len(bindings))
	for _, kb := range bindings {
		h := kb.Help()
		parts = append(parts, lipgloss.JoinHorizontal(lipgloss.Top,
			styles.AccentStyle.Render(h.Key), " ", h.Desc))
	}
	return strings.Join(parts, "  ")
}
