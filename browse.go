package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Terminal cells are mapped to pixels so the browser lays out with the same
// breakpoints as a web page.
const (
	cellWidth  = 8
	cellHeight = 16
	// rows left below the viewport before the next page is requested
	scrollThreshold = 6
)

// snapshotMsg announces a gallery change. The model reads the latest
// snapshot itself since messages from fetch goroutines may arrive out of
// order.
type snapshotMsg struct{}

type scrollTopMsg struct{}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#6B21A8"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#DC2626"))
)

type browseModel struct {
	gallery  *Gallery
	viewport *ViewportTracker
	input    textinput.Model

	snap    Snapshot
	columns []MasonryColumn
	lines   []string
	width   int
	height  int
	offset  int
}

func newBrowseModel(g *Gallery, vt *ViewportTracker, keyword string) *browseModel {
	ti := textinput.New()
	ti.Placeholder = "Search images"
	ti.Prompt = "/ "
	ti.SetValue(keyword)
	return &browseModel{
		gallery:  g,
		viewport: vt,
		input:    ti,
		snap:     g.Snapshot(),
	}
}

// relayout is the viewport subscriber.
func (m *browseModel) relayout(vm ViewportMetrics) {
	m.columns = Masonry(m.snap.Collection.Items, vm)
	m.lines = m.renderGrid(vm)
	m.clampOffset()
}

func (m *browseModel) Init() tea.Cmd {
	keyword := m.input.Value()
	return m.galleryCmd(func(g *Gallery) { g.SetKeyword(keyword) })
}

// galleryCmd runs a gallery action off the event loop; gallery subscribers
// send messages back into the program.
func (m *browseModel) galleryCmd(fn func(g *Gallery)) tea.Cmd {
	g := m.gallery
	return func() tea.Msg {
		fn(g)
		return nil
	}
}

func (m *browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = msg.Width - 4
		m.viewport.Resize(ViewportMetrics{
			ViewportWidth:        msg.Width * cellWidth,
			ColumnContainerWidth: max(0, msg.Width-2) * cellWidth,
		})
		return m, nil

	case snapshotMsg:
		shown := len(m.snap.Collection.Items)
		m.snap = m.gallery.Snapshot()
		m.relayout(m.viewport.Metrics())
		// Only a page that grew the grid may pull the next one without a
		// key press. Failed fetches wait for r or a scroll key.
		if m.snap.State != StateLoaded || len(m.snap.Collection.Items) <= shown {
			return m, nil
		}
		return m, m.maybeLoadMore()

	case scrollTopMsg:
		m.offset = 0
		return m, nil

	case tea.KeyMsg:
		if m.input.Focused() {
			switch msg.String() {
			case "enter":
				m.input.Blur()
				keyword := m.input.Value()
				return m, m.galleryCmd(func(g *Gallery) { g.SetKeyword(keyword) })
			case "esc":
				m.input.Blur()
				return m, nil
			}
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "/":
			return m, m.input.Focus()
		case "x":
			m.input.SetValue("")
			return m, m.galleryCmd(func(g *Gallery) { g.SetKeyword("") })
		case "r":
			return m, m.galleryCmd(func(g *Gallery) { g.Retry() })
		case "j", "down":
			m.offset++
		case "k", "up":
			m.offset--
		case "pgdown", " ":
			m.offset += m.gridHeight()
		case "pgup":
			m.offset -= m.gridHeight()
		case "g", "home":
			m.offset = 0
		}
		m.clampOffset()
		return m, m.maybeLoadMore()
	}
	return m, nil
}

func (m *browseModel) maybeLoadMore() tea.Cmd {
	if m.height == 0 {
		return nil
	}
	if m.offset+m.gridHeight()+scrollThreshold >= len(m.lines) {
		return m.galleryCmd(func(g *Gallery) { g.ReachedScrollThreshold() })
	}
	return nil
}

func (m *browseModel) gridHeight() int {
	// title, search box, status
	return max(1, m.height-3)
}

func (m *browseModel) clampOffset() {
	m.offset = min(m.offset, len(m.lines)-m.gridHeight())
	m.offset = max(m.offset, 0)
}

func (m *browseModel) renderGrid(vm ViewportMetrics) []string {
	if len(m.columns) == 0 || vm.ColumnContainerWidth == 0 {
		return nil
	}
	items := m.snap.Collection.Items
	colCells := vm.ColumnContainerWidth / cellWidth / len(m.columns)
	rendered := make([]string, len(m.columns))
	for c, col := range m.columns {
		blocks := make([]string, 0, len(col.Items))
		for _, idx := range col.Items {
			img := items[idx]
			h := ComputeImageHeight(vm.ViewportWidth, vm.ColumnContainerWidth, img.OriginalWidth, img.OriginalHeight)
			rows := max(2, int(h/cellHeight))
			style := lipgloss.NewStyle().
				Width(max(1, colCells-1)).
				Height(rows).
				MaxHeight(rows).
				MarginRight(1).
				Background(lipgloss.Color(img.BackgroundColor)).
				Foreground(lipgloss.Color(contrastColor(img.BackgroundColor)))
			blocks = append(blocks, style.Render(img.AltText+"\nby "+img.AuthorName))
		}
		rendered[c] = lipgloss.JoinVertical(lipgloss.Left, blocks...)
	}
	grid := lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
	return strings.Split(grid, "\n")
}

func (m *browseModel) status() string {
	s := m.snap
	label := "random photos"
	if s.Search.Keyword != "" {
		label = fmt.Sprintf("%q", s.Search.Keyword)
	}
	switch {
	case s.State == StateError:
		return errorStyle.Render(fmt.Sprintf("Failed to load %s page %d: %v (r to retry)", label, s.Search.Page, s.Err))
	case s.Loading():
		return statusStyle.Render(fmt.Sprintf("Loading %s page %d…", label, s.Search.Page))
	case s.State == StateLoaded && len(s.Collection.Items) == 0:
		return statusStyle.Render("No images found for " + label)
	case s.EndOfResults():
		return statusStyle.Render(fmt.Sprintf("%s: %d images, no more results", label, len(s.Collection.Items)))
	}
	return statusStyle.Render(fmt.Sprintf("%s: %d images, page %d", label, len(s.Collection.Items), s.Search.Page))
}

func (m *browseModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Unswash") + statusStyle.Render("  Discover breathtaking images"))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	end := min(len(m.lines), m.offset+m.gridHeight())
	if m.offset < end {
		b.WriteString(strings.Join(m.lines[m.offset:end], "\n"))
	}
	for i := max(0, end-m.offset); i < m.gridHeight(); i++ {
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.status())
	return b.String()
}

// contrastColor picks black or white text for a #rrggbb background.
func contrastColor(hex string) string {
	var r, g, b int
	if _, err := fmt.Sscanf(strings.TrimPrefix(hex, "#"), "%02x%02x%02x", &r, &g, &b); err != nil {
		return "#000000"
	}
	if r*299+g*587+b*114 > 128000 {
		return "#000000"
	}
	return "#FFFFFF"
}
