// Package quiz is the interactive questionnaire: one question, its cover
// art and a row of answer buttons, rebuilt each time the rules move on.
package quiz

import (
	"context"
	"errors"
	"image"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"musicnerd/cmd/musicnerd/ui"
	"musicnerd/internal/advisor"
	"musicnerd/internal/logging"
)

// CloseLabel is the only button on a finished state.
const CloseLabel = "Close Application"

const noOptionsNotice = "The rules offer no answers for this question. Press u to undo or r to restart."

// Advisor is what the model needs from the rule session.
type Advisor interface {
	Submit(ctx context.Context, shown advisor.GuiState, option string) (advisor.GuiState, error)
	Undo(ctx context.Context) (advisor.GuiState, error)
	Restart(ctx context.Context) (advisor.GuiState, error)
	Reload(ctx context.Context, source string) (advisor.GuiState, error)
}

// CoverSource resolves an image key to cover art. A nil image with a nil
// error means no cover.
type CoverSource interface {
	Cover(key string) (image.Image, error)
}

// RulesChangedMsg is sent by the rules watcher.
type RulesChangedMsg struct {
	Source string
	Err    error
}

// Config configures a Model.
type Config struct {
	Title        string
	Width        int
	CoverColumns int
	Styles       ui.Styles
}

type button struct {
	label string
	close bool
}

// Model is the bubbletea model for the questionnaire.
type Model struct {
	ctx     context.Context
	advisor Advisor
	covers  CoverSource
	styles  ui.Styles
	keys    KeyMap
	help    help.Model

	title        string
	width        int
	coverColumns int

	state   advisor.GuiState
	buttons []button
	focus   int
	cover   string
	notice  string
	dialog  error
	closed  bool
}

// New creates a model showing the initial state.
func New(ctx context.Context, adv Advisor, covers CoverSource, initial advisor.GuiState, cfg Config) Model {
	if cfg.Title == "" {
		cfg.Title = "Electronic Music Recommender"
	}
	if cfg.Width <= 0 {
		cfg.Width = 75
	}
	if cfg.CoverColumns <= 0 {
		cfg.CoverColumns = 32
	}
	m := Model{
		ctx:          ctx,
		advisor:      adv,
		covers:       covers,
		styles:       cfg.Styles,
		keys:         DefaultKeyMap(),
		help:         help.New(),
		title:        cfg.Title,
		width:        cfg.Width,
		coverColumns: cfg.CoverColumns,
	}
	m.render(initial)
	return m
}

// State returns the displayed state.
func (m Model) State() advisor.GuiState {
	return m.state
}

// Closed reports whether the user closed the application.
func (m Model) Closed() bool {
	return m.closed
}

// Labels returns the button labels in display order.
func (m Model) Labels() []string {
	out := make([]string, len(m.buttons))
	for i, b := range m.buttons {
		out[i] = b.label
	}
	return out
}

// Init sets the window title.
func (m Model) Init() tea.Cmd {
	return tea.SetWindowTitle(m.title)
}

// Update handles keys, window size and rules changes.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.help.Width = msg.Width
		}
		return m, nil

	case RulesChangedMsg:
		if msg.Err != nil {
			m.dialog = msg.Err
			return m, nil
		}
		next, err := m.advisor.Reload(m.ctx, msg.Source)
		if err != nil {
			m.dialog = err
			return m, nil
		}
		logging.UI("rules reloaded, now at %s", next.Stage)
		m.render(next)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.dialog != nil {
		switch {
		case key.Matches(msg, m.keys.Dismiss):
			m.dialog = nil
		case msg.String() == "ctrl+c":
			m.closed = true
			return m, tea.Quit
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.closed = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Prev):
		if len(m.buttons) > 0 {
			m.focus = (m.focus - 1 + len(m.buttons)) % len(m.buttons)
		}
	case key.Matches(msg, m.keys.Next):
		if len(m.buttons) > 0 {
			m.focus = (m.focus + 1) % len(m.buttons)
		}
	case key.Matches(msg, m.keys.Activate):
		return m.activate(m.focus)
	case key.Matches(msg, m.keys.Pick):
		return m.activate(int(msg.String()[0] - '1'))
	case key.Matches(msg, m.keys.Undo):
		next, err := m.advisor.Undo(m.ctx)
		if errors.Is(err, advisor.ErrNothingToUndo) {
			return m, nil
		}
		return m.apply(next, err)
	case key.Matches(msg, m.keys.Restart):
		return m.apply(m.advisor.Restart(m.ctx))
	}
	return m, nil
}

// activate presses button i.
func (m Model) activate(i int) (tea.Model, tea.Cmd) {
	if i < 0 || i >= len(m.buttons) {
		return m, nil
	}
	b := m.buttons[i]
	if b.close {
		logging.UI("close requested")
		m.closed = true
		return m, tea.Quit
	}
	logging.UIDebug("button %q pressed at %s", b.label, m.state.Stage)
	return m.apply(m.advisor.Submit(m.ctx, m.state, b.label))
}

// apply shows next, or a dialog over the unchanged state when err is set.
func (m Model) apply(next advisor.GuiState, err error) (tea.Model, tea.Cmd) {
	if err != nil {
		logging.Get(logging.CategoryUI).Warn("interaction failed: %v", err)
		m.dialog = err
		return m, nil
	}
	m.render(next)
	return m, nil
}

// render rebuilds buttons, cover and notice for state.
func (m *Model) render(state advisor.GuiState) {
	m.state = state
	m.focus = 0
	m.notice = ""
	m.buttons = m.buttons[:0:0]

	switch {
	case state.Finished:
		if len(state.Options) > 0 {
			logging.Get(logging.CategoryUI).Warn("finished state %s still offers %d options, showing close only", state.Stage, len(state.Options))
		}
		m.buttons = append(m.buttons, button{label: CloseLabel, close: true})
	case len(state.Options) == 0:
		m.notice = noOptionsNotice
	default:
		for _, o := range state.Options {
			m.buttons = append(m.buttons, button{label: o})
		}
	}

	m.cover = ui.BlankCover(m.coverColumns)
	if m.covers != nil && state.ImageKey != "" {
		img, err := m.covers.Cover(state.ImageKey)
		if err == nil && img != nil {
			m.cover = ui.CoverCells(img, m.coverColumns)
		}
	}
}

// View renders the window.
func (m Model) View() string {
	s := m.styles
	width := m.width - 2
	if width < 20 {
		width = 20
	}

	var sections []string
	sections = append(sections, s.Title.Render(m.title))

	header := []string{s.Question.Width(width).Render(m.state.Message)}
	if m.state.Recommendation != "" {
		header = append(header, s.Recommendation.Width(width).Render("Recommendation: "+m.state.Recommendation))
	} else {
		header = append(header, "")
	}
	sections = append(sections, s.Header.Render(lipgloss.JoinVertical(lipgloss.Center, header...)))

	sections = append(sections, lipgloss.PlaceHorizontal(width, lipgloss.Center, m.cover))
	sections = append(sections, s.RenderDivider(width))

	if len(m.buttons) > 0 {
		rendered := make([]string, len(m.buttons))
		for i, b := range m.buttons {
			label := b.label
			if !b.close && len(m.buttons) <= 9 {
				label = string(rune('1'+i)) + " " + label
			}
			if i == m.focus {
				rendered[i] = s.ButtonFocused.Render(label)
			} else {
				rendered[i] = s.Button.Render(label)
			}
		}
		row := lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
		sections = append(sections, "", lipgloss.PlaceHorizontal(width, lipgloss.Center, row))
	}
	if m.notice != "" {
		sections = append(sections, "", s.Notice.Width(width).Render(m.notice))
	}
	if m.dialog != nil {
		body := s.DialogTitle.Render("Error") + "\n" + m.dialog.Error() + "\n\n" + s.Muted.Render("esc to dismiss")
		sections = append(sections, "", s.Dialog.Width(width-4).Render(body))
	}

	sections = append(sections, s.Footer.Render(m.help.View(m.keys)))
	return s.Frame.Render(strings.Join(sections, "\n"))
}
