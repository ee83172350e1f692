package dashboard

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"bullscan/internal/domain"
)

// Sort modes for the browser, cycled with "s".
const (
	SortRunOrder = iota
	SortReturn
	SortSymbol
	SortModeCount
)

var sortModeNames = [SortModeCount]string{"run order", "return", "symbol"}

// Browser is an interactive pager over a run's result table.
type Browser struct {
	title       string
	all         []domain.Result
	winners     []domain.Result
	winnersOnly bool
	sortMode    int

	viewport      viewport.Model
	ready         bool
	width, height int
}

// NewBrowser returns a browser over all results. winners is the screened
// subset shown when the "w" toggle is on.
func NewBrowser(title string, all, winners []domain.Result) Browser {
	return Browser{title: title, all: all, winners: winners}
}

func (m Browser) Init() tea.Cmd { return nil }

func (m Browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "w":
			m.winnersOnly = !m.winnersOnly
			m.refresh()
			return m, nil
		case "s":
			m.sortMode = (m.sortMode + 1) % SortModeCount
			m.refresh()
			return m, nil
		case "g", "home":
			m.viewport.GotoTop()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := max(m.height-2, 1) // header and footer lines
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.MouseWheelEnabled = true
			m.ready = true
			m.refresh()
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		return m, nil
	}

	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

func (m Browser) View() string {
	if !m.ready {
		return "loading..."
	}
	return m.header() + "\n" + m.viewport.View() + "\n" +
		summaryStyle.Render("w winners  s sort  g top  q quit")
}

func (m Browser) header() string {
	scope := "all"
	if m.winnersOnly {
		scope = "winners"
	}
	return titleStyle.Render(m.title) + summaryStyle.Render(fmt.Sprintf(
		" %s %s, sorted by %s", FormatInt(len(m.visible())), scope, sortModeNames[m.sortMode]))
}

// visible returns the rows for the current toggle and sort mode.
func (m Browser) visible() []domain.Result {
	src := m.all
	if m.winnersOnly {
		src = m.winners
	}
	rows := slices.Clone(src)
	switch m.sortMode {
	case SortReturn:
		slices.SortStableFunc(rows, func(a, b domain.Result) int {
			switch {
			case a.Metrics == nil && b.Metrics == nil:
				return 0
			case a.Metrics == nil:
				return 1
			case b.Metrics == nil:
				return -1
			}
			return cmp.Compare(b.Metrics.TotalReturnPct, a.Metrics.TotalReturnPct)
		})
	case SortSymbol:
		slices.SortStableFunc(rows, func(a, b domain.Result) int {
			return cmp.Compare(a.Symbol, b.Symbol)
		})
	}
	return rows
}

func (m *Browser) refresh() {
	if !m.ready {
		return
	}
	rows := m.visible()
	if len(rows) == 0 {
		m.viewport.SetContent(dimStyle.Render("no rows"))
	} else {
		m.viewport.SetContent(renderResultTable(rows))
	}
	m.viewport.GotoTop()
}
