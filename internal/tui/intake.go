package tui

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"localrag/internal/intake"
)

type columnItem struct {
	file   string
	column string
}

func columnItems(c *intake.Controller) []columnItem {
	var items []columnItem
	for _, spec := range c.Specs() {
		for _, col := range spec.Columns() {
			items = append(items, columnItem{file: spec.Filename, column: col})
		}
	}
	return items
}

func (m Model) updateIntake(msg tea.KeyMsg) (Model, tea.Cmd) {
	if m.editing {
		return m.updatePathInput(msg)
	}
	if m.store.Busy() {
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Create):
		return m, lift(m.intake.CreateIndex())
	}

	if m.intake.Phase() == intake.PhaseColumnSelection {
		items := columnItems(m.intake)
		switch {
		case key.Matches(msg, m.keys.Up):
			if m.colCursor > 0 {
				m.colCursor--
			}
		case key.Matches(msg, m.keys.Down):
			if m.colCursor < len(items)-1 {
				m.colCursor++
			}
		case key.Matches(msg, m.keys.Toggle):
			if m.colCursor < len(items) {
				it := items[m.colCursor]
				if err := m.intake.ToggleColumn(it.file, it.column); err != nil {
					m.log.Warn("toggle failed", "file", it.file, "column", it.column, "error", err)
				}
			}
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.slotCursor > 0 {
			m.slotCursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.slotCursor < len(m.intake.Slots())-1 {
			m.slotCursor++
		}
	case key.Matches(msg, m.keys.Edit):
		m.editing = true
		m.pathInput.SetValue(m.intake.Slots()[m.slotCursor].Path)
		m.pathInput.CursorEnd()
		cmd := m.pathInput.Focus()
		return m, cmd
	case key.Matches(msg, m.keys.AddSlot):
		if err := m.intake.AddSlot(); err != nil {
			m.notice = "Choose a file for every slot first"
			break
		}
		m.slotCursor = len(m.intake.Slots()) - 1
	case key.Matches(msg, m.keys.Remove):
		if err := m.intake.RemoveSlot(m.slotCursor); err != nil {
			m.notice = "At least one file slot is required"
		}
	case key.Matches(msg, m.keys.Upload):
		return m, lift(m.intake.Upload())
	}
	return m, nil
}

func (m Model) updatePathInput(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.editing = false
		m.pathInput.Blur()
		return m, nil
	case key.Matches(msg, m.keys.Accept):
		path := expandHome(strings.TrimSpace(m.pathInput.Value()))
		if path == "" {
			m.editing = false
			m.pathInput.Blur()
			return m, nil
		}
		if fi, err := os.Stat(path); err != nil || fi.IsDir() {
			m.notice = "Not a readable file: " + path
			return m, nil
		}
		err := m.intake.SelectFile(m.slotCursor, path)
		if errors.Is(err, intake.ErrUnsupportedFile) {
			return m, nil
		}
		if err != nil {
			m.log.Warn("select file failed", "slot", m.slotCursor, "error", err)
			m.notice = err.Error()
			return m, nil
		}
		m.editing = false
		m.pathInput.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.pathInput, cmd = m.pathInput.Update(msg)
	return m, cmd
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func (m Model) intakeView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(intake.MsgChooseFile))
	b.WriteString("\n")
	for i, slot := range m.intake.Slots() {
		name := mutedStyle.Render("(no file)")
		if slot.Filled() {
			name = slot.Path
		}
		line := fmt.Sprintf("  %d. %s", i+1, name)
		if i == m.slotCursor && m.intake.Phase() != intake.PhaseColumnSelection {
			line = cursorStyle.Render(fmt.Sprintf("> %d. ", i+1)) + name
		}
		b.WriteString(line + "\n")
	}
	if m.editing {
		b.WriteString(m.pathInput.View() + "\n")
	}

	if specs := m.intake.Specs(); len(specs) > 0 {
		b.WriteString("\n" + titleStyle.Render("Choose the content columns") + "\n")
		n := 0
		selecting := m.intake.Phase() == intake.PhaseColumnSelection
		for _, spec := range specs {
			b.WriteString(pathStyle.Render(spec.Filename) + "\n")
			for _, col := range spec.Columns() {
				tag := metadataStyle.Render("[metadata]")
				if spec.IsContent(col) {
					tag = contentStyle.Render("[content] ")
				}
				prefix := "  "
				if selecting && n == m.colCursor {
					prefix = cursorStyle.Render("> ")
				}
				b.WriteString(prefix + tag + " " + col + "\n")
				n++
			}
		}
	}
	b.WriteString(mutedStyle.Render("phase: " + m.intake.Phase().String()))
	return boxStyle.Render(b.String())
}
