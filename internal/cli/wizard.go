package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/apresai/newsroom/internal/app"
	"github.com/apresai/newsroom/internal/audio"
	"github.com/apresai/newsroom/internal/audio/wav"
	"github.com/apresai/newsroom/internal/pipeline"
	"github.com/apresai/newsroom/internal/production"
	"github.com/apresai/newsroom/internal/progress"
)

// screen tracks which phase the wizard is in.
type screen int

const (
	screenBrief screen = iota
	screenWorking
	screenReview
	screenNotes
)

// brief form focus order
const (
	focusTheme = iota
	focusCategory
	focusLine
	focusSubmit
	focusCount
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			MarginBottom(1)

	headerBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("#7D56F4")).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Width(18).
			Align(lipgloss.Right).
			MarginRight(2)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#555555")).
			Italic(true)

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Bold(true)

	buttonStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 3)

	buttonDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#555555")).
			Padding(0, 3)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			MarginTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555")).
			Bold(true)
)

var stageTitles = map[production.Stage]string{
	production.StageInput:         "Brief",
	production.StageOutlineReview: "Step 1 of 5 · Outline",
	production.StageScriptReview:  "Step 2 of 5 · Script and audio",
	production.StageImageReview:   "Step 3 of 5 · Cover image",
	production.StageTitleReview:   "Step 4 of 5 · Title",
	production.StageCaptionReview: "Step 5 of 5 · Caption",
	production.StageDone:          "Done",
}

// commandDoneMsg reports the end of a machine command.
type commandDoneMsg struct{ err error }

// progressMsg forwards a machine progress event.
type progressMsg progress.Event

type wizardModel struct {
	ctx     context.Context
	machine *pipeline.Machine
	events  <-chan progress.Event

	screen   screen
	focus    int
	theme    textinput.Model
	line     textinput.Model
	category int // index into production.Categories()

	notes   textarea.Model
	spinner spinner.Model
	view    viewport.Model

	state    production.State
	cursor   int // candidate cursor at the image and title gates
	activity string
	err      string
	width    int
}

func newWizardModel(ctx context.Context, m *pipeline.Machine, events <-chan progress.Event) wizardModel {
	theme := textinput.New()
	theme.Placeholder = "topic, URL, PDF or text file"
	theme.CharLimit = 2000
	theme.Width = 60
	theme.Focus()

	line := textinput.New()
	line.Placeholder = "the angle to analyse it from"
	line.CharLimit = 1000
	line.Width = 60

	notes := textarea.New()
	notes.Placeholder = "What should change?"
	notes.ShowLineNumbers = false
	notes.SetWidth(70)
	notes.SetHeight(6)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = cursorStyle

	return wizardModel{
		ctx:      ctx,
		machine:  m,
		events:   events,
		screen:   screenBrief,
		theme:    theme,
		line:     line,
		category: 1, // medium
		notes:    notes,
		spinner:  sp,
		view:     viewport.New(80, 20),
		state:    m.Snapshot(),
		width:    80,
	}
}

func waitForEvent(ch <-chan progress.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		evt, ok := <-ch
		if !ok {
			return nil
		}
		return progressMsg(evt)
	}
}

func (m wizardModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForEvent(m.events))
}

// run starts a machine command and shows the spinner until it returns.
func (m wizardModel) run(fn func(context.Context) error) (wizardModel, tea.Cmd) {
	m.screen = screenWorking
	m.err = ""
	m.activity = "Working..."
	ctx := m.ctx
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		return commandDoneMsg{err: fn(ctx)}
	})
}

func (m wizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.view.Width = msg.Width
		m.view.Height = max(msg.Height-10, 5)
		m.notes.SetWidth(min(msg.Width-4, 100))
		return m, nil

	case progressMsg:
		if msg.Phase == progress.PhaseStarted {
			m.activity = msg.Message
		}
		return m, waitForEvent(m.events)

	case spinner.TickMsg:
		if m.screen != screenWorking {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case commandDoneMsg:
		return m.afterCommand(msg.err), nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.screen {
		case screenBrief:
			return m.updateBrief(msg)
		case screenReview:
			return m.updateReview(msg)
		case screenNotes:
			return m.updateNotes(msg)
		}
	}
	return m, nil
}

// afterCommand refreshes the view from the machine once a command returns.
func (m wizardModel) afterCommand(err error) wizardModel {
	m.state = m.machine.Snapshot()
	m.err = userError(err)
	m.cursor = 0
	if m.state.Stage == production.StageInput {
		m.screen = screenBrief
		m.focusBrief(m.focus)
		return m
	}
	m.screen = screenReview
	m.view.SetContent(reviewContent(m.state))
	m.view.GotoTop()
	return m
}

// userError is the message shown for a failed command. Stage failures show
// their generic text, never the cause.
func userError(err error) string {
	if err == nil {
		return ""
	}
	var se *pipeline.StageError
	if errors.As(err, &se) {
		return se.Message
	}
	return err.Error()
}

func (m *wizardModel) focusBrief(f int) {
	m.focus = (f + focusCount) % focusCount
	m.theme.Blur()
	m.line.Blur()
	switch m.focus {
	case focusTheme:
		m.theme.Focus()
	case focusLine:
		m.line.Focus()
	}
}

func (m wizardModel) updateBrief(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m, tea.Quit
	case "tab", "down":
		m.focusBrief(m.focus + 1)
		return m, nil
	case "shift+tab", "up":
		m.focusBrief(m.focus - 1)
		return m, nil
	case "left", "right":
		if m.focus == focusCategory {
			n := len(production.Categories())
			if msg.String() == "left" {
				m.category = (m.category + n - 1) % n
			} else {
				m.category = (m.category + 1) % n
			}
			return m, nil
		}
	case "enter":
		if m.focus != focusSubmit {
			m.focusBrief(m.focus + 1)
			return m, nil
		}
		brief := production.Brief{
			Theme:          m.theme.Value(),
			Category:       production.Categories()[m.category],
			AnalyticalLine: m.line.Value(),
		}
		if strings.TrimSpace(brief.Theme) == "" || strings.TrimSpace(brief.AnalyticalLine) == "" {
			m.err = "Theme and analytical line are required"
			return m, nil
		}
		return m.run(func(ctx context.Context) error { return m.machine.Submit(ctx, brief) })
	}

	var cmd tea.Cmd
	switch m.focus {
	case focusTheme:
		m.theme, cmd = m.theme.Update(msg)
	case focusLine:
		m.line, cmd = m.line.Update(msg)
	}
	return m, cmd
}

func (m wizardModel) candidateCount() int {
	switch m.state.Stage {
	case production.StageImageReview:
		return len(m.state.Images)
	case production.StageTitleReview:
		return len(m.state.Titles)
	}
	return 0
}

func revisable(stage production.Stage) bool {
	switch stage {
	case production.StageOutlineReview, production.StageImageReview,
		production.StageTitleReview, production.StageCaptionReview:
		return true
	}
	return false
}

func (m wizardModel) updateReview(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	stage := m.state.Stage
	switch msg.String() {
	case "q":
		return m, tea.Quit

	case "a":
		if stage == production.StageDone {
			return m, nil
		}
		return m.run(m.machine.Approve)

	case "r":
		if !revisable(stage) {
			return m, nil
		}
		m.screen = screenNotes
		m.err = ""
		m.notes.Reset()
		return m, m.notes.Focus()

	case "x", "n":
		if msg.String() == "n" && stage != production.StageDone {
			return m, nil
		}
		if err := m.machine.Reset(); err != nil {
			m.err = userError(err)
			return m, nil
		}
		return m.afterCommand(nil), textinput.Blink

	case " ", "enter":
		if m.candidateCount() == 0 {
			return m, nil
		}
		var err error
		if stage == production.StageImageReview {
			err = m.machine.SelectImage(m.state.Images[m.cursor].ID)
		} else {
			err = m.machine.SelectTitle(m.state.Titles[m.cursor])
		}
		m.state = m.machine.Snapshot()
		m.err = userError(err)
		m.view.SetContent(reviewContent(m.state))
		return m, nil

	case "up", "k":
		if n := m.candidateCount(); n > 0 {
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		}
	case "down", "j":
		if n := m.candidateCount(); n > 0 {
			if m.cursor < n-1 {
				m.cursor++
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.view, cmd = m.view.Update(msg)
	return m, cmd
}

func (m wizardModel) updateNotes(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.notes.Blur()
		m.screen = screenReview
		return m, nil
	case "ctrl+s":
		notes := m.notes.Value()
		if strings.TrimSpace(notes) == "" {
			m.err = "Revision notes are empty"
			return m, nil
		}
		m.notes.Blur()
		return m.run(func(ctx context.Context) error { return m.machine.RequestRevision(ctx, notes) })
	}
	var cmd tea.Cmd
	m.notes, cmd = m.notes.Update(msg)
	return m, cmd
}

func (m wizardModel) View() string {
	var b strings.Builder

	b.WriteString(headerBorder.Render(titleStyle.Render("Newsroom · " + stageTitles[m.state.Stage])))
	b.WriteString("\n")

	switch m.screen {
	case screenBrief:
		b.WriteString(m.briefView())
	case screenWorking:
		b.WriteString("\n  " + m.spinner.View() + " " + m.activity + "\n")
	case screenReview:
		b.WriteString(m.reviewView())
	case screenNotes:
		b.WriteString("  Revision notes for the " + stageTitles[m.state.Stage] + "\n\n")
		b.WriteString(m.notes.View() + "\n")
	}

	if m.err != "" {
		b.WriteString("\n" + errorStyle.Render("  Error: "+m.err) + "\n")
	} else if m.state.Status.Kind == production.StatusFailed && m.screen != screenWorking {
		b.WriteString("\n" + errorStyle.Render("  "+m.state.Status.Message) + "\n")
	}

	b.WriteString(helpStyle.Render(m.help()))
	b.WriteString("\n")
	return b.String()
}

func (m wizardModel) briefView() string {
	var b strings.Builder
	row := func(focus int, label, value string) {
		cursor := "  "
		if m.focus == focus {
			cursor = cursorStyle.Render("> ")
		}
		b.WriteString(cursor + labelStyle.Render(label) + " " + value + "\n")
	}

	row(focusTheme, "Theme", m.theme.View())

	var cats []string
	for i, c := range production.Categories() {
		label := fmt.Sprintf("%s (%d words)", c, c.Profile().Words)
		if i == m.category {
			cats = append(cats, selectedStyle.Render("["+label+"]"))
		} else {
			cats = append(cats, dimStyle.Render(" "+label+" "))
		}
	}
	row(focusCategory, "Category", strings.Join(cats, " "))
	b.WriteString(strings.Repeat(" ", 22) + dimStyle.Render(production.Categories()[m.category].Profile().DistributionText()) + "\n")

	row(focusLine, "Analytical line", m.line.View())

	b.WriteString("\n")
	if m.focus == focusSubmit {
		b.WriteString("  " + buttonStyle.Render(" Generate outline "))
	} else {
		b.WriteString("  " + buttonDimStyle.Render(" Generate outline "))
	}
	b.WriteString("\n")
	return b.String()
}

func (m wizardModel) reviewView() string {
	if m.candidateCount() == 0 {
		return m.view.View() + "\n"
	}

	var b strings.Builder
	switch m.state.Stage {
	case production.StageImageReview:
		for i, img := range m.state.Images {
			b.WriteString(m.candidateLine(i, m.state.SelectedImageID != nil && *m.state.SelectedImageID == img.ID,
				fmt.Sprintf("#%d %s", img.ID, img.Prompt)))
			b.WriteString(dimStyle.Render(fmt.Sprintf("       16:9 %d KB · 9:16 %d KB", len(img.Wide)/1024, len(img.Tall)/1024)) + "\n")
		}
		for _, o := range m.state.ImageOutcomes {
			if o.Status == production.OutcomeSkipped {
				b.WriteString(dimStyle.Render(fmt.Sprintf("  skipped: %s (%s)", o.Prompt, o.Reason)) + "\n")
			}
		}
	case production.StageTitleReview:
		for i, t := range m.state.Titles {
			b.WriteString(m.candidateLine(i, m.state.SelectedTitle != nil && *m.state.SelectedTitle == t, t))
		}
	}
	return b.String()
}

func (m wizardModel) candidateLine(i int, selected bool, text string) string {
	cursor := "  "
	if i == m.cursor {
		cursor = cursorStyle.Render("> ")
	}
	mark := "( )"
	if selected {
		mark = selectedStyle.Render("(x)")
	}
	return fmt.Sprintf("%s%s %s\n", cursor, mark, text)
}

func (m wizardModel) help() string {
	switch m.screen {
	case screenBrief:
		return "  tab/arrows to move | left/right to pick category | enter to continue | esc to quit"
	case screenWorking:
		return "  generating, please wait | ctrl+c to quit"
	case screenNotes:
		return "  type notes | ctrl+s to regenerate | esc to cancel"
	}

	switch m.state.Stage {
	case production.StageDone:
		return "  n for a new production | q to quit"
	case production.StageImageReview, production.StageTitleReview:
		return "  j/k to move | space to select | a to approve | r to revise | x to start over | q to quit"
	case production.StageScriptReview:
		return "  arrows to scroll | a to approve | x to start over | q to quit"
	default:
		return "  arrows to scroll | a to approve | r to revise | x to start over | q to quit"
	}
}

// reviewContent renders the artifact awaiting review at the current gate.
func reviewContent(s production.State) string {
	var b strings.Builder
	switch s.Stage {
	case production.StageOutlineReview:
		b.WriteString(s.Outline)

	case production.StageScriptReview:
		fmt.Fprintf(&b, "%d words · %d audio segment(s)\n", audio.WordCount(s.Script), len(s.AudioSegments))
		for _, seg := range s.AudioSegments {
			fmt.Fprintf(&b, "  segment %d: %d words, %s\n", seg.Index+1, audio.WordCount(seg.Text),
				wav.DefaultFormat.Duration(len(seg.PCM)).Round(time.Second))
		}
		b.WriteString("\n" + s.Script)

	case production.StageImageReview:
		b.WriteString("No cover image could be rendered. Press r to ask for new concepts.")
		for _, o := range s.ImageOutcomes {
			fmt.Fprintf(&b, "\n  skipped: %s (%s)", o.Prompt, o.Reason)
		}

	case production.StageTitleReview:
		b.WriteString("No usable titles came back. Press r to ask for new ones.")

	case production.StageCaptionReview:
		b.WriteString(s.Caption)

	case production.StageDone:
		if s.SelectedTitle != nil {
			b.WriteString(*s.SelectedTitle + "\n\n")
		}
		fmt.Fprintf(&b, "Script: %d words in %d audio segment(s)\n", audio.WordCount(s.Script), len(s.AudioSegments))
		if s.SelectedImageID != nil {
			fmt.Fprintf(&b, "Cover image: #%d\n", *s.SelectedImageID)
		}
		b.WriteString("\n" + s.Caption)
	}
	return b.String()
}

func runWizard(cmd *cobra.Command, args []string) error {
	// The TUI owns the terminal; logs only go to --log-file.
	sess, err := openSession(cmd.Context(), io.Discard)
	if err != nil {
		return err
	}
	defer sess.Close()

	runID, err := app.NewRunID()
	if err != nil {
		return err
	}

	events := make(chan progress.Event, 16)
	machine := sess.app.NewMachine(runID, func(evt progress.Event) {
		select {
		case events <- evt:
		default:
		}
	})

	p := tea.NewProgram(newWizardModel(cmd.Context(), machine, events), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
