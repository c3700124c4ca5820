package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds every binding of both screens. Bindings that do not apply to
// the current state are disabled so the help line only lists live keys.
type KeyMap struct {
	Up        key.Binding
	Down      key.Binding
	Edit      key.Binding
	Accept    key.Binding
	Cancel    key.Binding
	AddSlot   key.Binding
	Remove    key.Binding
	Upload    key.Binding
	Toggle    key.Binding
	Create    key.Binding
	Submit    key.Binding
	Back      key.Binding
	Quit      key.Binding
	ForceQuit key.Binding
}

// DefaultKeyMap binds submit to submitKey.
func DefaultKeyMap(submitKey string) KeyMap {
	return KeyMap{
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Edit:      key.NewBinding(key.WithKeys("enter", "e"), key.WithHelp("enter", "choose file")),
		Accept:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "set path")),
		Cancel:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		AddSlot:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add file")),
		Remove:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "remove")),
		Upload:    key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "upload")),
		Toggle:    key.NewBinding(key.WithKeys(" ", "space", "x"), key.WithHelp("space", "content/metadata")),
		Create:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "create index")),
		Submit:    key.NewBinding(key.WithKeys(submitKey), key.WithHelp(submitKey, "ask")),
		Back:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Quit:      key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		ForceQuit: key.NewBinding(key.WithKeys("ctrl+c", "ctrl+d")),
	}
}

// ShortHelp lists the enabled bindings.
func (k KeyMap) ShortHelp() []key.Binding {
	all := []key.Binding{k.Up, k.Down, k.Edit, k.Accept, k.Cancel, k.AddSlot, k.Remove, k.Upload, k.Toggle, k.Create, k.Submit, k.Back, k.Quit}
	out := make([]key.Binding, 0, len(all))
	for _, b := range all {
		if b.Enabled() {
			out = append(out, b)
		}
	}
	return out
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
