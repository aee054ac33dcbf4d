package ui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"quran-tui/internal/api"
	"quran-tui/internal/sequencer"
	"quran-tui/internal/theme"
)

type viewMode int

const (
	modeList viewMode = iota
	modeReader
	modeJump
)

// Catalog provides the chapter index. Chapter reports an entry only once
// the index has been fetched.
type Catalog interface {
	ListChapters(ctx context.Context) ([]api.Chapter, error)
	Chapter(n int) (api.Chapter, bool)
	Loading() bool
}

type Model struct {
	ctx       context.Context
	catalog   Catalog
	seq       *sequencer.Sequencer
	log       *zap.Logger
	theme     theme.Theme
	styles    theme.Styles
	list      list.Model
	viewport  viewport.Model
	spinner   spinner.Model
	textInput textinput.Model

	mode     viewMode
	prevMode viewMode
	chapter  *api.LoadedChapter
	focus    int
	offsets  []int
	width    int
	height   int
	ready    bool
	err      error
	status   string
}

type errMsg struct{ err error }
type chaptersLoadedMsg struct{ chapters []api.Chapter }

// chapterLoadedMsg carries a newly selected chapter. atEnd puts the focus on
// its last verse, for chapters reached by moving up; verse, when set, puts it
// on that verse.
type chapterLoadedMsg struct {
	chapter *api.LoadedChapter
	atEnd   bool
	verse   int
}
type playbackMsg struct{}
type seqEventMsg struct{ ev sequencer.Event }

func (e errMsg) Error() string { return e.err.Error() }

func NewModel(ctx context.Context, catalog Catalog, seq *sequencer.Sequencer, th theme.Theme, log *zap.Logger) Model {
	if log == nil {
		log = zap.NewNop()
	}

	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Chapters"
	l.DisableQuitKeybindings()
	l.Styles.Title = lipgloss.NewStyle().Bold(true).Foreground(th.Accent)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(th.Accent)

	ti := textinput.New()
	ti.Placeholder = "chapter or chapter:verse (e.g. 36 or 2:255)"
	ti.CharLimit = 10
	ti.Width = 50

	return Model{
		ctx:       ctx,
		catalog:   catalog,
		seq:       seq,
		log:       log.Named("ui"),
		theme:     th,
		styles:    theme.NewStyles(th, 80),
		list:      l,
		spinner:   s,
		textInput: ti,
		mode:      modeList,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		loadChapters(m.ctx, m.catalog),
		waitForEvent(m.seq),
		m.spinner.Tick,
	)
}

func loadChapters(ctx context.Context, catalog Catalog) tea.Cmd {
	return func() tea.Msg {
		chapters, err := catalog.ListChapters(ctx)
		if err != nil {
			return errMsg{err}
		}
		return chaptersLoadedMsg{chapters}
	}
}

// selectChapter loads chapter n and focuses verse (0 for the first).
func selectChapter(ctx context.Context, seq *sequencer.Sequencer, n, verse int) tea.Cmd {
	return func() tea.Msg {
		if err := seq.SelectChapter(ctx, n); err != nil {
			return failure(err)
		}
		return chapterLoadedMsg{chapter: seq.Snapshot().Chapter, verse: verse}
	}
}

// navigate runs a chapter step and reports a message only if the loaded
// chapter actually changed.
func navigate(ctx context.Context, seq *sequencer.Sequencer, prev bool) tea.Cmd {
	return func() tea.Msg {
		before := seq.Snapshot().Chapter

		var err error
		if prev {
			err = seq.PreviousChapter(ctx)
		} else {
			err = seq.NextChapter(ctx)
		}
		if err != nil {
			return failure(err)
		}

		after := seq.Snapshot().Chapter
		if after == nil || after == before {
			return nil
		}
		return chapterLoadedMsg{chapter: after, atEnd: prev}
	}
}

func playVerse(ctx context.Context, seq *sequencer.Sequencer, v api.Verse) tea.Cmd {
	return func() tea.Msg {
		if err := seq.Play(ctx, v); err != nil {
			return failure(err)
		}
		return playbackMsg{}
	}
}

func handleEvent(ctx context.Context, seq *sequencer.Sequencer, ev sequencer.Event) tea.Cmd {
	return func() tea.Msg {
		if err := seq.Handle(ctx, ev); err != nil {
			return failure(err)
		}
		return playbackMsg{}
	}
}

// waitForEvent blocks until the sequencer reports the end of a recitation.
func waitForEvent(seq *sequencer.Sequencer) tea.Cmd {
	return func() tea.Msg {
		return seqEventMsg{<-seq.Events()}
	}
}

// failure turns an error into a message. Results superseded by a newer
// request are dropped.
func failure(err error) tea.Msg {
	if errors.Is(err, sequencer.ErrStaleLoad) || errors.Is(err, sequencer.ErrSuperseded) {
		return nil
	}
	return errMsg{err}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.seq.Exit()
			return m, tea.Quit
		}
		if m.mode == modeJump {
			switch msg.String() {
			case "enter":
				n, verse, err := parseReference(m.textInput.Value())
				m.textInput.SetValue("")
				m.textInput.Blur()
				m.mode = m.prevMode
				if err == nil {
					err = m.checkVerse(n, verse)
				}
				if err != nil {
					m.err = err
					return m, nil
				}
				m.err = nil
				return m, selectChapter(m.ctx, m.seq, n, verse)
			case "esc":
				m.textInput.SetValue("")
				m.textInput.Blur()
				m.mode = m.prevMode
				return m, nil
			}
			break
		}
		if m.mode == modeList {
			if m.list.FilterState() != list.Filtering {
				switch msg.String() {
				case "q":
					m.seq.Exit()
					return m, tea.Quit
				case ":":
					return m, m.startJump()
				case "enter":
					if item, ok := m.list.SelectedItem().(chapterItem); ok {
						m.err = nil
						return m, selectChapter(m.ctx, m.seq, item.Number, 0)
					}
					return m, nil
				}
			}
			break
		}
		if next, cmd, handled := m.readerKey(msg); handled {
			return next, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.styles = theme.NewStyles(m.theme, min(msg.Width-6, 100))
		m.list.SetSize(msg.Width, msg.Height-2)

		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-6)
			m.viewport.YPosition = 4
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 6
		}
		m.render()

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case chaptersLoadedMsg:
		items := make([]list.Item, len(msg.chapters))
		for i, c := range msg.chapters {
			items[i] = chapterItem{c}
		}
		cmds = append(cmds, m.list.SetItems(items))
		return m, tea.Batch(cmds...)

	case chapterLoadedMsg:
		m.chapter = msg.chapter
		m.mode = modeReader
		m.err = nil
		m.status = ""
		m.focus = 0
		if msg.atEnd && len(m.chapter.Ayahs) > 0 {
			m.focus = len(m.chapter.Ayahs) - 1
		}
		if idx, ok := m.chapter.Index(msg.verse); ok {
			m.focus = idx
		}
		m.selectInList(m.chapter.Number)
		m.render()
		switch {
		case msg.atEnd:
			m.viewport.GotoBottom()
		case m.focus > 0:
			m.viewport.GotoTop()
			m.ensureVisible(m.focus)
		default:
			m.viewport.GotoTop()
		}
		return m, nil

	case playbackMsg:
		m.render()
		m.followCursor()
		return m, nil

	case seqEventMsg:
		return m, tea.Batch(
			handleEvent(m.ctx, m.seq, msg.ev),
			waitForEvent(m.seq),
		)

	case errMsg:
		m.log.Debug("showing error", zap.Error(msg.err))
		m.err = msg.err
		return m, nil
	}

	switch m.mode {
	case modeJump:
		m.textInput, cmd = m.textInput.Update(msg)
	case modeList:
		m.list, cmd = m.list.Update(msg)
	default:
		m.viewport, cmd = m.viewport.Update(msg)
	}
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// readerKey handles keys in the reader. Keys it does not claim fall through
// to the viewport.
func (m Model) readerKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	busy := m.seq.State() == sequencer.StateTransitioning

	switch msg.String() {
	case "q":
		m.seq.Exit()
		return m, tea.Quit, true
	case ":":
		return m, m.startJump(), true
	case "esc":
		m.seq.Exit()
		m.chapter = nil
		m.mode = modeList
		m.err = nil
		m.status = ""
		return m, nil, true
	case "down", "j":
		if m.chapter != nil && m.focus < len(m.chapter.Ayahs)-1 {
			m.focus++
			m.render()
			m.ensureVisible(m.focus)
			return m, nil, true
		}
		if busy {
			return m, nil, true
		}
		return m, navigate(m.ctx, m.seq, false), true
	case "up", "k":
		if m.focus > 0 {
			m.focus--
			m.render()
			m.ensureVisible(m.focus)
			return m, nil, true
		}
		if busy {
			return m, nil, true
		}
		return m, navigate(m.ctx, m.seq, true), true
	case "n":
		if busy {
			return m, nil, true
		}
		return m, navigate(m.ctx, m.seq, false), true
	case "N":
		if busy {
			return m, nil, true
		}
		return m, navigate(m.ctx, m.seq, true), true
	case "enter", " ", "space":
		if m.chapter == nil || m.focus >= len(m.chapter.Ayahs) {
			return m, nil, true
		}
		m.err = nil
		return m, playVerse(m.ctx, m.seq, m.chapter.Ayahs[m.focus]), true
	case "p":
		if err := m.seq.TogglePause(); err != nil {
			m.status = err.Error()
		} else {
			m.status = ""
		}
		m.render()
		return m, nil, true
	}
	return m, nil, false
}

func (m *Model) startJump() tea.Cmd {
	m.prevMode = m.mode
	m.mode = modeJump
	return m.textInput.Focus()
}

// parseReference reads "36", "36:5" or "36 5".
func parseReference(ref string) (chapter, verse int, err error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return 0, 0, fmt.Errorf("empty reference")
	}

	parts := strings.FieldsFunc(ref, func(r rune) bool { return r == ':' || r == ' ' })
	if len(parts) > 2 {
		return 0, 0, fmt.Errorf("invalid reference %q", ref)
	}
	chapter, err = strconv.Atoi(parts[0])
	if err != nil || !api.ValidChapter(chapter) {
		return 0, 0, fmt.Errorf("%w: %q", api.ErrInvalidChapter, parts[0])
	}
	if len(parts) == 2 {
		verse, err = strconv.Atoi(parts[1])
		if err != nil || verse < 1 {
			return 0, 0, fmt.Errorf("invalid verse %q", parts[1])
		}
	}
	return chapter, verse, nil
}

// checkVerse rejects a verse past the end of chapter n when the index knows
// its length.
func (m Model) checkVerse(n, verse int) error {
	if verse == 0 {
		return nil
	}
	c, ok := m.catalog.Chapter(n)
	if ok && verse > c.NumberOfAyahs {
		return fmt.Errorf("invalid verse %d: chapter %d has %d verses", verse, n, c.NumberOfAyahs)
	}
	return nil
}

func (m *Model) selectInList(n int) {
	for i, item := range m.list.Items() {
		if c, ok := item.(chapterItem); ok && c.Number == n {
			m.list.Select(i)
			return
		}
	}
}

func (m *Model) render() {
	if !m.ready || m.chapter == nil {
		return
	}
	snap := m.seq.Snapshot()
	cursor := -1
	if snap.Chapter == m.chapter {
		cursor = snap.Cursor
	}
	var content string
	content, m.offsets = formatChapter(m.chapter, m.focus, cursor, m.styles)
	m.viewport.SetContent(content)
}

// followCursor moves the focus along with auto-advance.
func (m *Model) followCursor() {
	snap := m.seq.Snapshot()
	if snap.Chapter != m.chapter || snap.Cursor < 0 {
		return
	}
	m.focus = snap.Cursor
	m.render()
	m.ensureVisible(m.focus)
}

func (m *Model) ensureVisible(i int) {
	if i < 0 || i >= len(m.offsets) {
		return
	}
	top := m.offsets[i]
	bottom := m.viewport.TotalLineCount()
	if i+1 < len(m.offsets) {
		bottom = m.offsets[i+1]
	}
	switch {
	case top < m.viewport.YOffset:
		m.viewport.SetYOffset(top)
	case bottom > m.viewport.YOffset+m.viewport.Height:
		m.viewport.SetYOffset(bottom - m.viewport.Height)
	}
}

func (m Model) loading() bool {
	return m.catalog.Loading() || m.seq.State() == sequencer.StateTransitioning
}

func (m Model) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	var errorMsg string
	if m.err != nil {
		errorMsg = "\n" + m.styles.Error.Render(fmt.Sprintf("Error: %v", m.err))
	}

	if m.mode == modeJump {
		header := m.styles.Header.Render("Go to chapter[:verse]") + "\n" + m.textInput.View()
		return header + "\n" + m.styles.Help.Render("enter: go | esc: cancel") + errorMsg
	}
	if m.mode == modeList {
		return m.list.View() + errorMsg
	}

	var header string
	if m.chapter != nil {
		title := m.styles.Title.Render(fmt.Sprintf("%d. %s (%s)  %s",
			m.chapter.Number, m.chapter.EnglishName, m.chapter.EnglishNameTranslation, m.chapter.Name))
		header = m.styles.Header.Render(title)
	}

	var help string
	switch {
	case m.loading():
		help = m.spinner.View() + " " + m.styles.Help.Render("Loading...")
	case m.status != "":
		help = m.styles.Help.Render(m.status)
	default:
		state := ""
		snap := m.seq.Snapshot()
		if snap.Paused {
			state = "paused | "
		} else if snap.Playing {
			state = "playing | "
		}
		help = m.styles.Help.Render(state + "enter: play | p: pause | n/N: next/prev chapter | :: go to | esc: chapters | q: quit")
	}

	return fmt.Sprintf("%s\n%s\n%s%s", header, m.viewport.View(), help, errorMsg)
}

// formatChapter renders every verse and returns the line each one starts on.
func formatChapter(ch *api.LoadedChapter, focus, cursor int, styles theme.Styles) (string, []int) {
	var sb strings.Builder
	offsets := make([]int, len(ch.Ayahs))
	line := 0

	for i, v := range ch.Ayahs {
		offsets[i] = line

		marker := "  "
		if i == focus {
			marker = "> "
		}
		verseNum := styles.VerseNumber.Render(fmt.Sprintf("%s%3d", marker, v.NumberInSurah))

		textStyle := styles.VerseText
		if i == cursor {
			textStyle = styles.Playing
		}
		block := lipgloss.JoinHorizontal(lipgloss.Top, verseNum, "  ", textStyle.Render(v.Text))
		if i == focus {
			block = styles.Focused.Render(block)
		}

		sb.WriteString(block)
		sb.WriteString("\n\n")
		line += lipgloss.Height(block) + 1
	}

	return sb.String(), offsets
}

// chapterItem adapts a chapter to the list.
type chapterItem struct{ api.Chapter }

func (c chapterItem) Title() string {
	return fmt.Sprintf("%3d. %s  %s", c.Number, c.EnglishName, c.Name)
}

func (c chapterItem) Description() string {
	return fmt.Sprintf("%s · %d verses · %s", c.EnglishNameTranslation, c.NumberOfAyahs, c.RevelationType)
}

func (c chapterItem) FilterValue() string {
	return fmt.Sprintf("%d %s %s", c.Number, c.EnglishName, c.EnglishNameTranslation)
}
