package quiz

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"musicnerd/cmd/musicnerd/ui"
)

// FatalModel is the blocking error screen shown when the questionnaire
// cannot start. Any dismiss or quit key ends the program.
type FatalModel struct {
	title  string
	err    error
	styles ui.Styles
	keys   KeyMap
	width  int
}

// NewFatal creates the error screen for err.
func NewFatal(title string, err error, styles ui.Styles) FatalModel {
	if title == "" {
		title = "Electronic Music Recommender"
	}
	return FatalModel{title: title, err: err, styles: styles, keys: DefaultKeyMap(), width: 75}
}

// Init sets the window title.
func (m FatalModel) Init() tea.Cmd {
	return tea.SetWindowTitle(m.title)
}

// Update quits on dismiss or quit.
func (m FatalModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
		}
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Dismiss) || key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
	}
	return m, nil
}

// View renders the error.
func (m FatalModel) View() string {
	s := m.styles
	width := m.width - 6
	if width < 20 {
		width = 20
	}
	body := s.DialogTitle.Render("Error") + "\n" +
		m.err.Error() + "\n\n" +
		s.Muted.Render("The application will exit. Press enter to close.")
	return s.Frame.Render(s.Title.Render(m.title) + "\n\n" + s.Dialog.Width(width).Render(body))
}
