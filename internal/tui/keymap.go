package tui

import "github.com/charmbracelet/bubbles/key"

// maxExamples is how many examples get a key binding.
const maxExamples = 9

// KeyMap defines the key bindings for the TUI.
type KeyMap struct {
	// Navigation
	Up       key.Binding
	Down     key.Binding
	Left     key.Binding
	Right    key.Binding
	NextPane key.Binding
	Back     key.Binding

	// Actions
	Run      key.Binding
	Copy     key.Binding
	Download key.Binding
	Example  key.Binding

	// General
	Help key.Binding
	Quit key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	examples := make([]string, maxExamples)
	for i := range examples {
		examples[i] = "alt+" + string(rune('1'+i))
	}

	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "previous row"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "next row"),
		),
		Left: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "scroll columns left"),
		),
		Right: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "scroll columns right"),
		),
		NextPane: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "editor/results"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Run: key.NewBinding(
			key.WithKeys("ctrl+r", "f5"),
			key.WithHelp("^R/F5", "run query"),
		),
		Copy: key.NewBinding(
			key.WithKeys("ctrl+y"),
			key.WithHelp("^Y", "copy results as JSON"),
		),
		Download: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("^S", "save results as JSON"),
		),
		Example: key.NewBinding(
			key.WithKeys(examples...),
			key.WithHelp("alt+1..9", "load example"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("F1", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+q"),
			key.WithHelp("^C", "quit"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Run, k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Run, k.Copy, k.Download, k.Example},
		{k.NextPane, k.Up, k.Down, k.Left, k.Right},
		{k.Help, k.Back, k.Quit},
	}
}

// exampleIndex returns the zero-based example slot of an alt+N key.
func exampleIndex(keyName string) (int, bool) {
	if len(keyName) != len("alt+1") || keyName[:4] != "alt+" {
		return 0, false
	}
	d := keyName[4]
	if d < '1' || d > '9' {
		return 0, false
	}
	return int(d - '1'), true
}
