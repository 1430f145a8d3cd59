package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/dgallion1/novelsplit/internal/pipeline"
	"github.com/dgallion1/novelsplit/internal/segment"
)

// PreviewCmd shows the detected chapters, in a terminal UI when stdout is a
// terminal.
type PreviewCmd struct {
	File  string `arg:"" help:"Novel to preview."`
	Plain bool   `help:"Print a plain chapter list instead of the interactive view."`

	SegmentFlags `embed:""`
}

func (c *PreviewCmd) Run(g *globals) error {
	plan, encoding, err := c.plan(g, c.File)
	if err != nil {
		return err
	}
	if c.Plain || !isTerminal(g.out) {
		printPlan(g.out, plan, encoding)
		return nil
	}
	_, err = tea.NewProgram(newPreviewModel(plan, encoding), tea.WithAltScreen(), tea.WithContext(g.ctx)).Run()
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

func printPlan(w io.Writer, plan *pipeline.Plan, encoding string) {
	fmt.Fprintf(w, "%s: %d chapters, pattern %s, %s\n", plan.Title, len(plan.Chapters), plan.PatternID, encoding)
	if plan.Prelude != nil {
		fmt.Fprintf(w, "  %-16s (%d chars)\n", pipeline.PreludeName, utf8.RuneCountInString(plan.Prelude.Text))
	}
	for i, ch := range plan.Chapters {
		fmt.Fprintf(w, "  %-16s %s (%d chars)\n", plan.Files[i].Name, ch.Title, utf8.RuneCountInString(ch.Body))
		for _, warn := range ch.Warnings {
			fmt.Fprintf(w, "  %-16s ! %s\n", "", warn.Message)
		}
	}
	if len(plan.Rejected) > 0 {
		fmt.Fprintf(w, "%d matched line(s) rejected as headings\n", len(plan.Rejected))
	}
}

var (
	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444"))

	focusedPaneStyle = paneStyle.
				BorderForeground(lipgloss.Color("#FFAA00"))

	chapterTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#FFFFFF"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFAA00"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Padding(0, 1)
)

// chapterItem is one row of the chapter list.
type chapterItem struct {
	ch   segment.Chapter
	file string
}

func (i chapterItem) Title() string { return i.file + "  " + i.ch.Title }

func (i chapterItem) Description() string {
	d := fmt.Sprintf("%d chars", utf8.RuneCountInString(i.ch.Body))
	if n := len(i.ch.Warnings); n > 0 {
		d += fmt.Sprintf(", %d warning(s)", n)
	}
	return d
}

func (i chapterItem) FilterValue() string { return i.ch.Title }

type pane int

const (
	listPane pane = iota
	bodyPane
)

type previewModel struct {
	plan     *pipeline.Plan
	encoding string
	list     list.Model
	body     viewport.Model
	focus    pane
	shown    int // chapter index rendered in body, -1 before first layout
	width    int
	height   int
}

func newPreviewModel(plan *pipeline.Plan, encoding string) previewModel {
	items := make([]list.Item, len(plan.Chapters))
	for i, ch := range plan.Chapters {
		items[i] = chapterItem{ch: ch, file: plan.Files[i].Name}
	}
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = plan.Title
	l.SetShowHelp(false)

	return previewModel{
		plan:     plan,
		encoding: encoding,
		list:     l,
		body:     viewport.New(0, 0),
		shown:    -1,
	}
}

func (m previewModel) Init() tea.Cmd {
	return nil
}

func (m previewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab":
			if m.focus == listPane {
				m.focus = bodyPane
			} else {
				m.focus = listPane
			}
			return m, nil
		case "enter":
			m.focus = bodyPane
			return m, nil
		case "esc":
			if m.focus == bodyPane {
				m.focus = listPane
				return m, nil
			}
		}
	}

	var cmd tea.Cmd
	if m.focus == bodyPane {
		m.body, cmd = m.body.Update(msg)
		return m, cmd
	}
	m.list, cmd = m.list.Update(msg)
	m.showSelected()
	return m, cmd
}

// layout splits the screen into the chapter list and the body pane.
func (m *previewModel) layout() {
	inner := m.height - 3 // borders plus status line
	if inner < 1 {
		inner = 1
	}
	listWidth := m.width * 2 / 5
	bodyWidth := m.width - listWidth - 4
	if bodyWidth < 10 {
		bodyWidth = 10
	}
	m.list.SetSize(listWidth, inner)
	m.body.Width = bodyWidth
	m.body.Height = inner
	m.shown = -1
	m.showSelected()
}

func (m *previewModel) showSelected() {
	item, ok := m.list.SelectedItem().(chapterItem)
	if !ok || item.ch.Index == m.shown {
		return
	}
	m.shown = item.ch.Index

	var sb strings.Builder
	sb.WriteString(chapterTitleStyle.Render(item.ch.Title))
	sb.WriteString("\n")
	for _, w := range item.ch.Warnings {
		sb.WriteString(warningStyle.Render("! " + w.Message))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(lipgloss.NewStyle().Width(m.body.Width).Render(item.ch.Body))
	m.body.SetContent(sb.String())
	m.body.GotoTop()
}

func (m previewModel) View() string {
	if m.width == 0 {
		return "loading..."
	}
	listStyle, bodyStyle := focusedPaneStyle, paneStyle
	if m.focus == bodyPane {
		listStyle, bodyStyle = paneStyle, focusedPaneStyle
	}
	panes := lipgloss.JoinHorizontal(lipgloss.Top,
		listStyle.Render(m.list.View()),
		bodyStyle.Render(m.body.View()),
	)
	status := statusStyle.Render(fmt.Sprintf("%d chapters | pattern %s | %s | %d warning(s) | TAB: switch pane  /: filter  Q: quit",
		len(m.plan.Chapters), m.plan.PatternID, m.encoding, len(m.plan.Warnings)))
	return panes + "\n" + status
}
