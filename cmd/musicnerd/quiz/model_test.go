package quiz

import (
	"context"
	"errors"
	"image"
	"image/color"
	"reflect"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"musicnerd/cmd/musicnerd/ui"
	"musicnerd/internal/advisor"
	"musicnerd/internal/mangle"
	"musicnerd/internal/rules"
)

type submission struct {
	stage  string
	option string
}

// recordingAdvisor records every call and answers from a script.
type recordingAdvisor struct {
	submissions []submission
	undos       int
	restarts    int
	reloads     []string

	next advisor.GuiState
	err  error
}

func (r *recordingAdvisor) Submit(_ context.Context, shown advisor.GuiState, option string) (advisor.GuiState, error) {
	r.submissions = append(r.submissions, submission{stage: shown.Stage, option: option})
	return r.next, r.err
}

func (r *recordingAdvisor) Undo(context.Context) (advisor.GuiState, error) {
	r.undos++
	return r.next, r.err
}

func (r *recordingAdvisor) Restart(context.Context) (advisor.GuiState, error) {
	r.restarts++
	return r.next, r.err
}

func (r *recordingAdvisor) Reload(_ context.Context, source string) (advisor.GuiState, error) {
	r.reloads = append(r.reloads, source)
	return r.next, r.err
}

type coverStub map[string]image.Image

func (c coverStub) Cover(key string) (image.Image, error) {
	img, ok := c[key]
	if !ok {
		return nil, errors.New("missing")
	}
	return img, nil
}

var genreState = advisor.GuiState{
	Stage:    "/root",
	Message:  "What type of electronic music do you like?",
	Options:  []string{"Techno", "House"},
	ImageKey: "electronic_cover",
}

var finishedState = advisor.GuiState{
	Stage:          "/techno_dark",
	Message:        "Here is something dark and driving.",
	Recommendation: "Surgeon - Force + Form",
	Finished:       true,
}

func newTestModel(adv Advisor, state advisor.GuiState) Model {
	return New(context.Background(), adv, nil, state, Config{Styles: ui.NewStyles(ui.LightTheme())})
}

func press(t *testing.T, m Model, keys ...tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(k)
		m = next.(Model)
	}
	return m, cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var enter = tea.KeyMsg{Type: tea.KeyEnter}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestRender_TwoOptionsTwoButtons(t *testing.T) {
	rec := &recordingAdvisor{next: finishedState}
	m := newTestModel(rec, genreState)

	if got := m.Labels(); !reflect.DeepEqual(got, []string{"Techno", "House"}) {
		t.Fatalf("labels = %v, want [Techno House]", got)
	}
	view := m.View()
	if !strings.Contains(view, "Techno") || !strings.Contains(view, "House") {
		t.Errorf("view is missing a button:\n%s", view)
	}
	if strings.Contains(view, "Recommendation:") {
		t.Errorf("unfinished state shows a recommendation:\n%s", view)
	}

	m, _ = press(t, m, enter)

	want := []submission{{stage: "/root", option: "Techno"}}
	if !reflect.DeepEqual(rec.submissions, want) {
		t.Errorf("submissions = %v, want %v", rec.submissions, want)
	}
	if m.State().Stage != finishedState.Stage {
		t.Errorf("state = %s, want %s", m.State().Stage, finishedState.Stage)
	}
}

func TestRender_FinishedShowsCloseOnly(t *testing.T) {
	rec := &recordingAdvisor{}
	m := newTestModel(rec, finishedState)

	if got := m.Labels(); !reflect.DeepEqual(got, []string{CloseLabel}) {
		t.Fatalf("labels = %v, want [%s]", got, CloseLabel)
	}
	view := m.View()
	if !strings.Contains(view, "Recommendation: Surgeon - Force + Form") {
		t.Errorf("recommendation line missing:\n%s", view)
	}

	m, cmd := press(t, m, enter)
	if !isQuit(cmd) {
		t.Errorf("Close Application did not quit")
	}
	if !m.Closed() {
		t.Errorf("model not marked closed")
	}
	if len(rec.submissions) != 0 {
		t.Errorf("close button submitted an answer: %v", rec.submissions)
	}
}

func TestRender_FinishedWithOptionsShowsCloseOnly(t *testing.T) {
	state := finishedState
	state.Options = []string{"More"}
	m := newTestModel(&recordingAdvisor{}, state)

	if got := m.Labels(); !reflect.DeepEqual(got, []string{CloseLabel}) {
		t.Errorf("labels = %v, want [%s]", got, CloseLabel)
	}
}

func TestRender_UnfinishedWithoutOptionsShowsNotice(t *testing.T) {
	state := advisor.GuiState{Stage: "/x", Message: "Nothing to pick"}
	m := newTestModel(&recordingAdvisor{}, state)

	if len(m.Labels()) != 0 {
		t.Errorf("labels = %v, want none", m.Labels())
	}
	if !strings.Contains(m.View(), "no answers") {
		t.Errorf("notice missing:\n%s", m.View())
	}

	m, cmd := press(t, m, enter)
	if cmd != nil {
		t.Errorf("enter with no buttons returned a command")
	}
	_ = m
}

func TestSubmitError_ShowsDialogAndKeepsState(t *testing.T) {
	rec := &recordingAdvisor{err: advisor.ErrNoState}
	m := newTestModel(rec, genreState)

	m, _ = press(t, m, runes("2"))
	if len(rec.submissions) != 1 || rec.submissions[0].option != "House" {
		t.Fatalf("submissions = %v, want one for House", rec.submissions)
	}
	if !reflect.DeepEqual(m.State(), genreState) {
		t.Errorf("state changed after a failed submit: %+v", m.State())
	}
	if !strings.Contains(m.View(), advisor.ErrNoState.Error()) {
		t.Errorf("dialog missing:\n%s", m.View())
	}

	// Keys other than dismiss are swallowed while the dialog is open.
	m, _ = press(t, m, runes("1"))
	if len(rec.submissions) != 1 {
		t.Errorf("submit went through an open dialog")
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if strings.Contains(m.View(), advisor.ErrNoState.Error()) {
		t.Errorf("dialog still shown after esc")
	}
}

func TestFocusMovesAndWraps(t *testing.T) {
	rec := &recordingAdvisor{next: finishedState}
	m := newTestModel(rec, genreState)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRight}, tea.KeyMsg{Type: tea.KeyRight})
	if m.focus != 0 {
		t.Errorf("focus = %d after wrapping right, want 0", m.focus)
	}
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyLeft}, enter)
	want := []submission{{stage: "/root", option: "House"}}
	if !reflect.DeepEqual(rec.submissions, want) {
		t.Errorf("submissions = %v, want %v", rec.submissions, want)
	}
}

func TestPickOutOfRangeIgnored(t *testing.T) {
	rec := &recordingAdvisor{}
	m := newTestModel(rec, genreState)
	press(t, m, runes("9"))
	if len(rec.submissions) != 0 {
		t.Errorf("out of range pick submitted %v", rec.submissions)
	}
}

func TestUndoRestartAndQuit(t *testing.T) {
	rec := &recordingAdvisor{next: genreState}
	m := newTestModel(rec, finishedState)

	m, _ = press(t, m, runes("u"))
	if rec.undos != 1 || m.State().Stage != "/root" {
		t.Errorf("undo: calls=%d stage=%s", rec.undos, m.State().Stage)
	}
	m, _ = press(t, m, runes("r"))
	if rec.restarts != 1 {
		t.Errorf("restart calls = %d", rec.restarts)
	}

	rec.err = advisor.ErrNothingToUndo
	m, _ = press(t, m, runes("u"))
	if m.dialog != nil {
		t.Errorf("nothing to undo opened a dialog")
	}

	_, cmd := press(t, m, runes("q"))
	if !isQuit(cmd) {
		t.Errorf("q did not quit")
	}
}

func TestRulesChanged(t *testing.T) {
	next := genreState
	next.Message = "Reloaded"
	rec := &recordingAdvisor{next: next}
	m := newTestModel(rec, genreState)

	updated, _ := m.Update(RulesChangedMsg{Source: "new rules"})
	m = updated.(Model)
	if !reflect.DeepEqual(rec.reloads, []string{"new rules"}) {
		t.Errorf("reloads = %v", rec.reloads)
	}
	if m.State().Message != "Reloaded" {
		t.Errorf("state not replaced after reload")
	}

	updated, _ = m.Update(RulesChangedMsg{Err: errors.New("bad rules")})
	m = updated.(Model)
	if len(rec.reloads) != 1 {
		t.Errorf("rejected change was reloaded")
	}
	if !strings.Contains(m.View(), "bad rules") {
		t.Errorf("rejected change not shown")
	}
}

func TestCoverRenderedWhenAvailable(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	img.Set(0, 0, color.Black)

	covers := coverStub{"electronic_cover": img}
	m := New(context.Background(), &recordingAdvisor{}, covers, genreState, Config{CoverColumns: 8, Styles: ui.NewStyles(ui.LightTheme())})
	if !strings.Contains(m.cover, "▀") {
		t.Errorf("cover cells not rendered")
	}

	m = New(context.Background(), &recordingAdvisor{}, covers, finishedState, Config{CoverColumns: 8, Styles: ui.NewStyles(ui.LightTheme())})
	if m.cover != ui.BlankCover(8) {
		t.Errorf("missing cover should render blank")
	}
}

func TestWindowSizeIgnoresNonPositive(t *testing.T) {
	m := newTestModel(&recordingAdvisor{}, genreState)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = updated.(Model)
	if m.width != 120 {
		t.Errorf("width = %d, want 120", m.width)
	}
	updated, _ = m.Update(tea.WindowSizeMsg{Width: 0, Height: 0})
	if updated.(Model).width != 120 {
		t.Errorf("zero width replaced the previous width")
	}
	_ = updated.(Model).View()
}

func TestWithRealAdvisor(t *testing.T) {
	ctx := context.Background()
	adv := advisor.New(mangle.NewEngine(mangle.DefaultConfig()))
	initial, err := adv.Initialize(ctx, rules.Default())
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	m := New(ctx, adv, nil, initial, Config{Styles: ui.NewStyles(ui.LightTheme())})

	m, _ = press(t, m, runes("1"))
	if m.State().Stage != "/techno" {
		t.Fatalf("stage = %s, want /techno", m.State().Stage)
	}
	m, _ = press(t, m, runes("2"))
	if !m.State().Finished || m.State().Recommendation != "Ricardo Villalobos - Alcachofa" {
		t.Fatalf("unexpected final state %+v", m.State())
	}
	m, _ = press(t, m, runes("u"))
	if m.State().Stage != "/techno" {
		t.Errorf("undo went to %s", m.State().Stage)
	}
}

func TestFatalModel(t *testing.T) {
	m := NewFatal("", errors.New("rules failed to parse"), ui.NewStyles(ui.LightTheme()))
	if !strings.Contains(m.View(), "rules failed to parse") {
		t.Errorf("fatal view missing error:\n%s", m.View())
	}
	_, cmd := m.Update(enter)
	if !isQuit(cmd) {
		t.Errorf("enter did not close the error screen")
	}
	_, cmd = m.Update(runes("x"))
	if cmd != nil {
		t.Errorf("unrelated key closed the error screen")
	}
}

func TestViewSeparatesCoverFromButtons(t *testing.T) {
	m := newTestModel(&recordingAdvisor{}, genreState)
	view := m.View()
	divider := strings.Index(view, "───")
	buttons := strings.Index(view, "1 Techno")
	if divider < 0 || buttons < 0 || divider > buttons {
		t.Errorf("divider should sit above the buttons:\n%s", view)
	}
}
