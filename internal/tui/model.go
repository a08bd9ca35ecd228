// Package tui is the interactive vault browser.
package tui

import (
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/passkeep/passkeep/pkg/vault"
)

// Store is the slice of the vault the browser needs.
type Store interface {
	List(opts vault.ListOptions) ([]*vault.Record, error)
	Get(id string) (*vault.Record, error)
	TouchLastUsed(id string) error
}

// statusTTL is how long transient status messages stay visible.
const statusTTL = 3 * time.Second

// Overridable for tests; the real clipboard is unavailable headless.
var (
	clipboardWrite = clipboard.WriteAll
	clipboardRead  = clipboard.ReadAll
)

type recordsLoadedMsg []*vault.Record

type secretLoadedMsg struct {
	record *vault.Record
	copied bool
}

type errMsg struct{ err error }

type clearStatusMsg struct{}

// clearClipboardMsg fires when a copied secret's clear window elapses.
type clearClipboardMsg struct{ value string }

// Model is the Bubble Tea model for the vault browser.
type Model struct {
	store Store

	records []*vault.Record
	cursor  int

	filter    textinput.Model
	filtering bool

	// detail holds the record with secrets when the detail pane is open.
	detail   *vault.Record
	revealed bool

	status   string
	statusOK bool

	// clipboardClear is how long copied secrets stay on the clipboard.
	// Zero disables clearing.
	clipboardClear time.Duration

	width  int
	height int
}

// New returns a browser over the given store.
func New(store Store) Model {
	filter := textinput.New()
	filter.Placeholder = "filter records"
	filter.Prompt = "/ "
	filter.CharLimit = 64

	return Model{store: store, filter: filter}
}

// WithClipboardClear sets the clipboard clear window.
func (m Model) WithClipboardClear(d time.Duration) Model {
	m.clipboardClear = d
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.loadRecords()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case recordsLoadedMsg:
		m.records = msg
		if m.cursor >= len(m.records) {
			m.cursor = max(0, len(m.records)-1)
		}
		return m, nil

	case secretLoadedMsg:
		if msg.copied {
			return m.copySecret(msg.record)
		}
		m.detail = msg.record
		m.revealed = false
		return m, nil

	case errMsg:
		m.status = msg.err.Error()
		m.statusOK = false
		return m, m.scheduleStatusClear()

	case clearStatusMsg:
		m.status = ""
		return m, nil

	case clearClipboardMsg:
		// Only wipe the copied value; a newer user copy survives.
		if current, err := clipboardRead(); err == nil && current == msg.value {
			_ = clipboardWrite("")
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.filtering {
		switch msg.String() {
		case "enter", "esc":
			m.filtering = false
			if msg.String() == "esc" {
				m.filter.SetValue("")
			}
			m.filter.Blur()
			return m, m.loadRecords()
		default:
			var cmd tea.Cmd
			m.filter, cmd = m.filter.Update(msg)
			return m, tea.Batch(cmd, m.loadRecords())
		}
	}

	if m.detail != nil {
		switch msg.String() {
		case "esc", "q":
			m.detail = nil
			m.revealed = false
		case "r":
			m.revealed = !m.revealed
		case "c":
			return m.copySecret(m.detail)
		}
		return m, nil
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.records)-1 {
			m.cursor++
		}
	case "g":
		m.cursor = 0
	case "G":
		m.cursor = max(0, len(m.records)-1)
	case "/":
		m.filtering = true
		m.filter.Focus()
		return m, textinput.Blink
	case "enter":
		if rec := m.selected(); rec != nil {
			return m, m.loadSecret(rec.ID, false)
		}
	case "c":
		if rec := m.selected(); rec != nil {
			return m, m.loadSecret(rec.ID, true)
		}
	}
	return m, nil
}

func (m Model) selected() *vault.Record {
	if m.cursor < 0 || m.cursor >= len(m.records) {
		return nil
	}
	return m.records[m.cursor]
}

func (m Model) loadRecords() tea.Cmd {
	query := m.filter.Value()
	return func() tea.Msg {
		records, err := m.store.List(vault.ListOptions{Query: query})
		if err != nil {
			return errMsg{err}
		}
		return recordsLoadedMsg(records)
	}
}

func (m Model) loadSecret(id string, copied bool) tea.Cmd {
	return func() tea.Msg {
		rec, err := m.store.Get(id)
		if err != nil {
			return errMsg{err}
		}
		return secretLoadedMsg{record: rec, copied: copied}
	}
}

func (m Model) copySecret(rec *vault.Record) (tea.Model, tea.Cmd) {
	if err := clipboardWrite(rec.Password); err != nil {
		m.status = "clipboard unavailable: " + err.Error()
		m.statusOK = false
		return m, m.scheduleStatusClear()
	}
	_ = m.store.TouchLastUsed(rec.ID)
	m.status = "password copied to clipboard"
	m.statusOK = true
	return m, tea.Batch(m.scheduleStatusClear(), m.scheduleClipboardClear(rec.Password))
}

func (m Model) scheduleClipboardClear(value string) tea.Cmd {
	if m.clipboardClear <= 0 {
		return nil
	}
	return tea.Tick(m.clipboardClear, func(time.Time) tea.Msg {
		return clearClipboardMsg{value: value}
	})
}

func (m Model) scheduleStatusClear() tea.Cmd {
	return tea.Tick(statusTTL, func(time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}
