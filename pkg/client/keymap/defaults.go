package keymap

import "github.com/aeolun/marain/pkg/client/command"

// Default returns the stock bindings
func Default() *Keymaps {
	return New(map[command.Mode][]Binding{
		command.ModeDisconnected:  disconnected(),
		command.ModeNavigate:      navigate(),
		command.ModeInsert:        insert(),
		command.ModeInsertCommand: insertCommand(),
	})
}

func disconnected() []Binding {
	return []Binding{
		Exact(Char('q'), command.Quit()),
	}
}

func navigate() []Binding {
	return []Binding{
		Exact(Char('i'), command.Enter(command.ModeInsert)),
		Exact(Char('q'), command.Quit()),
		Exact(Char('r'), command.Reset()),
		Exact(Char('t'), command.GetServerTime()),
		Exact(Char('m'), command.MoveRooms()),
		Exact(Char('d'), command.ToggleDebug()),
	}
}

// editing is shared by both composing modes. The catch-all comes last.
func editing() []Binding {
	return []Binding{
		Exact(Special(CodeLeft), command.MoveCaret(command.AxisCharacter, -1)),
		Exact(Special(CodeRight), command.MoveCaret(command.AxisCharacter, 1)),
		Exact(Special(CodeUp), command.MoveCaret(command.AxisLine, -1)),
		Exact(Special(CodeDown), command.MoveCaret(command.AxisLine, 1)),
		Exact(Special(CodeBackspace), command.Del(-1)),
		Exact(Special(CodeDelete), command.Del(0)),
		CaptureAll(),
	}
}

func insert() []Binding {
	binds := []Binding{
		Exact(Special(CodeEsc), command.Enter(command.ModeNavigate)),
		Exact(Special(CodeEnter), command.SendBuffer()),
		Exact(Special(CodeCtrlJ), command.Capture('\n')),
	}
	return append(binds, editing()...)
}

func insertCommand() []Binding {
	binds := []Binding{
		Exact(Special(CodeEsc), command.AbortStagedCommand()),
		Exact(Special(CodeEnter), command.SendStagedCommand()),
	}
	return append(binds, editing()...)
}
