package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up             key.Binding
	Down           key.Binding
	Select         key.Binding
	SwitchFocus    key.Binding
	CopyLast       key.Binding
	CopyTranscript key.Binding
	Quit           key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:             key.NewBinding(key.WithKeys("up", "ctrl+p"), key.WithHelp("↑", "previous option")),
		Down:           key.NewBinding(key.WithKeys("down", "ctrl+n"), key.WithHelp("↓", "next option")),
		Select:         key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "choose / send")),
		SwitchFocus:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "options/input")),
		CopyLast:       key.NewBinding(key.WithKeys("ctrl+y"), key.WithHelp("ctrl+y", "copy reply")),
		CopyTranscript: key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("ctrl+t", "copy chat")),
		Quit:           key.NewBinding(key.WithKeys("ctrl+c", "esc"), key.WithHelp("esc", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Select, k.SwitchFocus, k.CopyLast, k.CopyTranscript, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down, k.Select, k.SwitchFocus}, {k.CopyLast, k.CopyTranscript, k.Quit}}
}
