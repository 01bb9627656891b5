package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mossforge/sftpvfs/pkg/sftpvfs"
	"github.com/mossforge/sftpvfs/pkg/vfspath"
)

// Styles reuse the teacher's palette (internal/tui/shared/styles.go):
// a pink title, a red error style, and a dim gray for secondary text.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// entryItem adapts a sftpvfs.DirEntry to bubbles/list's list.Item.
type entryItem struct {
	name    string
	isDir   bool
	size    int64
}

func (e entryItem) Title() string {
	if e.isDir {
		return e.name + "/"
	}
	return e.name
}

func (e entryItem) Description() string {
	if e.isDir {
		return "directory"
	}
	return fmt.Sprintf("%d bytes", e.size)
}

func (e entryItem) FilterValue() string { return e.name }

// browseModel is a read-only directory browser, the same
// single-tea.Model shape as the teacher's AppModel but with no sync
// phases: a stack of visited paths plus the bubbles/list showing the
// current directory's entries.
type browseModel struct {
	fs      *sftpvfs.Filesystem
	stack   []vfspath.Path
	list    list.Model
	err     error
	width   int
	height  int
}

type direntriesMsg struct {
	path    vfspath.Path
	entries []sftpvfs.DirEntry
}

type errMsg struct{ err error }

func newBrowseModel(fs *sftpvfs.Filesystem, root vfspath.Path) *browseModel {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.SetShowHelp(true)
	l.SetFilteringEnabled(true)

	return &browseModel{
		fs:    fs,
		stack: []vfspath.Path{root},
		list:  l,
	}
}

func (m *browseModel) current() vfspath.Path {
	return m.stack[len(m.stack)-1]
}

func (m *browseModel) Init() tea.Cmd {
	return m.loadDir(m.current())
}

func (m *browseModel) loadDir(path vfspath.Path) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		stream, err := m.fs.NewDirectoryStream(ctx, path.String(), nil)
		if err != nil {
			return errMsg{err}
		}
		defer stream.Close() //nolint:errcheck

		var entries []sftpvfs.DirEntry
		for {
			entry, ok := stream.Next()
			if !ok {
				break
			}
			entries = append(entries, entry)
		}
		return direntriesMsg{path: path, entries: entries}
	}
}

func (m *browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.SetSize(msg.Width, msg.Height-4)
		return m, nil

	case direntriesMsg:
		m.err = nil
		items := make([]list.Item, 0, len(msg.entries))
		for _, entry := range msg.entries {
			items = append(items, entryItem{
				name:  entry.Name,
				isDir: entry.Attributes.IsDirectory(),
				size:  entry.Attributes.Size,
			})
		}
		m.list.Title = msg.path.String()
		m.list.SetItems(items)
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "enter":
			selected, ok := m.list.SelectedItem().(entryItem)
			if ok && selected.isDir {
				next := m.current().Resolve(vfspath.Parse(selected.name))
				m.stack = append(m.stack, next)
				return m, m.loadDir(next)
			}
			return m, nil
		case "backspace", "esc":
			if len(m.stack) > 1 {
				m.stack = m.stack[:len(m.stack)-1]
				return m, m.loadDir(m.current())
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *browseModel) View() string {
	if m.err != nil {
		return titleStyle.Render("sftpvfs-browse") + "\n" +
			errorStyle.Render(m.err.Error()) + "\n" +
			dimStyle.Render("press q to quit")
	}
	return m.list.View()
}
