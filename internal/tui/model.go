// Package tui is the terminal front end: an intake screen for staging,
// uploading and classifying files, and a query screen reachable once an index
// exists.
package tui

import (
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"localrag/internal/intake"
	"localrag/internal/logging"
	"localrag/internal/nav"
	"localrag/internal/query"
	"localrag/internal/workflow"
)

// commitMsg carries a finished backend call back onto the event loop.
type commitMsg struct{ commit workflow.Commit }

// lift runs cmd off the event loop and delivers its commit as a message.
func lift(cmd workflow.Cmd) tea.Cmd {
	if cmd == nil {
		return nil
	}
	return func() tea.Msg { return commitMsg{commit: cmd()} }
}

// Deps are the shared workflow objects the TUI drives.
type Deps struct {
	Store  *workflow.Store
	Gate   *nav.Gate
	Intake *intake.Controller
	Query  *query.Controller
	Logger *slog.Logger
}

// Model is the Bubble Tea model for both screens.
type Model struct {
	store  *workflow.Store
	gate   *nav.Gate
	intake *intake.Controller
	query  *query.Controller
	log    *slog.Logger

	keys       KeyMap
	help       help.Model
	spinner    spinner.Model
	pathInput  textinput.Model
	queryInput textinput.Model
	viewport   viewport.Model

	screen     nav.Screen
	slotCursor int
	colCursor  int
	editing    bool
	notice     string
	lastQuery  string
	width      int
	ready      bool
}

// New creates a new TUI model instance.
func New(d Deps) Model {
	pi := textinput.New()
	pi.Prompt = "path> "
	pi.Placeholder = "/path/to/file.pdf"
	pi.CharLimit = 0

	qi := textinput.New()
	qi.Prompt = "> "
	qi.Placeholder = "Ask a question about your documents"
	qi.CharLimit = 0

	m := Model{
		store:      d.Store,
		gate:       d.Gate,
		intake:     d.Intake,
		query:      d.Query,
		log:        logging.OrDiscard(d.Logger),
		keys:       DefaultKeyMap(d.Query.SubmitKey()),
		help:       help.New(),
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot)),
		pathInput:  pi,
		queryInput: qi,
		viewport:   viewport.New(60, 8),
		screen:     d.Gate.Current(),
	}
	m.enterScreen()
	m.sync()
	return m
}

// Init starts the cursor blink and the busy spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Update routes messages to the active screen.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.sync()
		return m, nil
	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case commitMsg:
		var next workflow.Cmd
		if msg.commit != nil {
			next = msg.commit()
		}
		m.sync()
		return m, lift(next)
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.ForceQuit) {
			return m, tea.Quit
		}
		m.notice = ""
		if m.gate.Current() == nav.ScreenQuery {
			m, cmd = m.updateQuery(msg)
		} else {
			m, cmd = m.updateIntake(msg)
		}
		m.sync()
		return m, cmd
	}

	if m.screen == nav.ScreenQuery {
		m.queryInput, cmd = m.queryInput.Update(msg)
	} else if m.editing {
		m.pathInput, cmd = m.pathInput.Update(msg)
	}
	return m, cmd
}

// sync picks up screen changes made by the gate and refreshes derived view
// state after every action.
func (m *Model) sync() {
	if cur := m.gate.Current(); cur != m.screen {
		m.log.Debug("screen changed", "from", m.screen, "to", cur)
		m.screen = cur
		m.enterScreen()
	}
	if n := len(m.intake.Slots()); m.slotCursor >= n {
		m.slotCursor = n - 1
	}
	if n := len(columnItems(m.intake)); m.colCursor >= n {
		m.colCursor = max(0, n-1)
	}
	if m.screen == nav.ScreenQuery && m.queryInput.Value() != m.store.Query() {
		m.queryInput.SetValue(m.store.Query())
		m.queryInput.CursorEnd()
	}
	m.viewport.SetContent(m.renderResult())
	m.updateKeys()
}

func (m *Model) enterScreen() {
	m.editing = false
	m.pathInput.Blur()
	if m.screen == nav.ScreenQuery {
		m.queryInput.Focus()
		m.queryInput.SetValue(m.store.Query())
		m.lastQuery = ""
		m.viewport.GotoTop()
		return
	}
	m.queryInput.Blur()
	m.slotCursor, m.colCursor = 0, 0
}

func (m *Model) resize(width, height int) {
	m.ready = true
	m.width = width
	fw, fh := boxStyle.GetFrameSize()
	// header, input box, status and help lines
	reserved := 1 + (1 + fh) + 2 + 1
	m.viewport.Width = max(20, width-fw)
	m.viewport.Height = max(3, height-reserved-fh)
	m.pathInput.Width = max(10, width-10)
	m.queryInput.Width = max(10, width-fw-4)
	m.help.Width = width
}

func (m *Model) updateKeys() {
	k := &m.keys
	onIntake := m.screen == nav.ScreenIntake
	busy := m.store.Busy()
	selecting := onIntake && !m.editing && m.intake.Phase() == intake.PhaseColumnSelection

	idle := onIntake && !m.editing && !busy && !selecting
	k.Up.SetEnabled(!m.editing && onIntake)
	k.Down.SetEnabled(!m.editing && onIntake)
	k.Edit.SetEnabled(idle)
	k.Accept.SetEnabled(onIntake && m.editing)
	k.Cancel.SetEnabled(onIntake && m.editing)
	k.AddSlot.SetEnabled(idle)
	k.Remove.SetEnabled(idle)
	k.Upload.SetEnabled(idle)
	k.Toggle.SetEnabled(selecting && !busy)
	k.Create.SetEnabled(onIntake && !m.editing && m.intake.CanCreateIndex())
	k.Submit.SetEnabled(!onIntake && !busy)
	k.Back.SetEnabled(!onIntake)
	k.Quit.SetEnabled(onIntake && !m.editing)
}

// View renders the active screen, the status line and the help line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("localrag") + "  " + pathStyle.Render(m.gate.Path())
	var body string
	if m.screen == nav.ScreenQuery {
		body = m.queryView()
	} else {
		body = m.intakeView()
	}
	return strings.Join([]string{header, body, m.statusLine(), m.help.View(m.keys)}, "\n")
}

func (m Model) statusLine() string {
	if kind, ok := m.store.InFlight(); ok {
		return m.spinner.View() + busyStyle.Render(busyLabel(kind))
	}
	if err := m.store.Err(); err != "" {
		return errorStyle.Render(err)
	}
	if m.notice != "" {
		return mutedStyle.Render(m.notice)
	}
	return ""
}

func busyLabel(kind string) string {
	switch kind {
	case "upload":
		return "Uploading..."
	case "index":
		return "Creating the vector database..."
	case "query":
		return "Thinking..."
	}
	return "Working..."
}

func wrap(width int, s string) string {
	if width <= 0 {
		return s
	}
	return lipgloss.NewStyle().Width(width).Render(s)
}
