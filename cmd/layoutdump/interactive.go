package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/layout-runtime/inspect"
	"github.com/wippyai/layout-runtime/witness"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	operandStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// row is one record flattened out of the listing, with its nesting depth.
type row struct {
	record inspect.Record
	depth  int
	label  string // "case 2" marker for the first record of a sub-program
}

type browserModel struct {
	err      error
	filename string
	listing  *inspect.Listing
	rows     []row
	visible  []int // indexes into rows matching the filter
	selected int
	filter   textinput.Model
	state    browserState
}

type browserState int

const (
	stateBrowse browserState = iota
	stateFilter
	stateDetail
)

func newBrowserModel(filename string, listing *inspect.Listing) *browserModel {
	ti := textinput.New()
	ti.Placeholder = "kind substring"
	ti.Prompt = "filter: "
	ti.Width = 32

	m := &browserModel{
		filename: filename,
		listing:  listing,
		filter:   ti,
	}
	m.rows = flatten(listing.Records, 0, "")
	m.applyFilter("")
	return m
}

func flatten(records []inspect.Record, depth int, label string) []row {
	var rows []row
	for _, rec := range records {
		rows = append(rows, row{record: rec, depth: depth, label: label})
		label = ""
		for i, nested := range rec.Cases {
			rows = append(rows, flatten(nested, depth+1, fmt.Sprintf("case %d", i))...)
		}
	}
	return rows
}

func (m *browserModel) applyFilter(query string) {
	m.visible = m.visible[:0]
	for i, r := range m.rows {
		if query == "" || strings.Contains(r.record.Kind.String(), query) {
			m.visible = append(m.visible, i)
		}
	}
	if m.selected >= len(m.visible) {
		m.selected = 0
	}
}

func (m *browserModel) Init() tea.Cmd {
	return nil
}

func (m *browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if m.state == stateFilter {
		switch keyMsg.String() {
		case "enter", "esc":
			m.state = stateBrowse
			m.filter.Blur()
		case "ctrl+c":
			return m, tea.Quit
		default:
			var cmd tea.Cmd
			m.filter, cmd = m.filter.Update(msg)
			m.applyFilter(m.filter.Value())
			return m, cmd
		}
		return m, nil
	}

	switch keyMsg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "up", "k":
		if m.state == stateBrowse && m.selected > 0 {
			m.selected--
		}

	case "down", "j":
		if m.state == stateBrowse && m.selected < len(m.visible)-1 {
			m.selected++
		}

	case "/":
		if m.state == stateBrowse {
			m.state = stateFilter
			m.filter.Focus()
		}

	case "enter":
		switch m.state {
		case stateBrowse:
			if len(m.visible) > 0 {
				m.state = stateDetail
			}
		case stateDetail:
			m.state = stateBrowse
		}

	case "esc":
		switch m.state {
		case stateDetail:
			m.state = stateBrowse
		case stateBrowse:
			if m.filter.Value() != "" {
				m.filter.SetValue("")
				m.applyFilter("")
			}
		}
	}

	return m, nil
}

func (m *browserModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Layout Browser"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	fmt.Fprintf(&b, "  (%d bytes, %d records)\n\n",
		m.listing.SectionSize, len(m.rows))

	switch m.state {
	case stateBrowse, stateFilter:
		for i, idx := range m.visible {
			r := m.rows[idx]
			line := m.formatRow(r)
			if i == m.selected && m.state == stateBrowse {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		if m.state == stateFilter {
			b.WriteString(m.filter.View())
			b.WriteString("\n")
			b.WriteString(helpStyle.Render("enter apply • esc cancel"))
		} else {
			if m.filter.Value() != "" {
				fmt.Fprintf(&b, "filter: %s\n", m.filter.Value())
			}
			b.WriteString(helpStyle.Render("↑/↓ select • enter detail • / filter • q quit"))
		}

	case stateDetail:
		r := m.rows[m.visible[m.selected]]
		fmt.Fprintf(&b, "Record at %#06x\n\n", r.record.Offset)
		fmt.Fprintf(&b, "  kind  %s\n", kindStyle.Render(r.record.Kind.String()))
		fmt.Fprintf(&b, "  skip  %d\n", r.record.Skip)
		for _, op := range r.record.Operands {
			fmt.Fprintf(&b, "  %s  %s\n",
				operandStyle.Render(fmt.Sprintf("%-24s", op.Name)),
				fmt.Sprintf("%d (%#x)", op.Value, op.Value))
		}
		if len(r.record.Cases) > 0 {
			fmt.Fprintf(&b, "  cases %d\n", len(r.record.Cases))
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter/esc back • q quit"))
	}

	return b.String()
}

func (m *browserModel) formatRow(r row) string {
	indent := strings.Repeat("  ", r.depth)
	prefix := ""
	if r.label != "" {
		prefix = r.label + ": "
	}
	line := fmt.Sprintf("%s%s%06x  %s  skip=%d",
		indent, prefix, r.record.Offset, kindStyle.Render(r.record.Kind.String()), r.record.Skip)
	if r.record.Kind == witness.KindEnd {
		return indent + prefix + fmt.Sprintf("%06x  ", r.record.Offset) + helpStyle.Render("end")
	}
	if n := len(r.record.Operands); n > 0 {
		line += operandStyle.Render(fmt.Sprintf("  [%d operands]", n))
	}
	return line
}

func runInteractive(filename string, hexInput bool) error {
	listing, err := load(filename, hexInput)
	if err != nil {
		return err
	}
	p := tea.NewProgram(newBrowserModel(filename, listing), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
