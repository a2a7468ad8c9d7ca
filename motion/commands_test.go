package motion

import "testing"

func TestCommandRegistryDispatchesRegisteredHandler(t *testing.T) {
	r := NewCommandRegistry()
	called := false
	r.Register(CmdStop, func(p any) error {
		called = true
		return nil
	})
	if err := r.Dispatch(CmdStop, nil); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !called {
		t.Errorf("expected the registered handler to run")
	}
}

func TestCommandRegistryUnknownTag(t *testing.T) {
	r := NewCommandRegistry()
	if err := r.Dispatch(CommandTag("BOGUS"), nil); err != ErrUnknownCommand {
		t.Errorf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestCommandRegistryReRegisterReplacesHandler(t *testing.T) {
	r := NewCommandRegistry()
	var which int
	r.Register(CmdCalibrate, func(any) error { which = 1; return nil })
	r.Register(CmdCalibrate, func(any) error { which = 2; return nil })
	if err := r.Dispatch(CmdCalibrate, nil); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if which != 2 {
		t.Errorf("expected the later registration to win, got %d", which)
	}
}
