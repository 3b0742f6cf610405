package coordinator

import (
	"context"

	"github.com/garypippi/jacin/internal/enginerpc"
	"github.com/garypippi/jacin/internal/wlproto"
)

// InputMethod is the subset of *wlproto.InputMethod the coordinator
// depends on, mirroring the PopupUpdater seam (C11) so C5/C6/C7 can be
// exercised against a fake rather than the real zwp_input_method_v2
// wire proxy.
type InputMethod interface {
	OnActivate(fn func())
	OnDeactivate(fn func())
	OnDone(fn func())
	OnUnavailable(fn func())
	GrabKeyboard() (KeyboardGrab, error)
	SetPreeditString(text string, cursorBegin, cursorEnd int32) error
	CommitString(text string) error
	DeleteSurroundingText(before, after uint32) error
	Commit(serial uint32) error
}

// KeyboardGrab is the subset of *wlproto.InputMethodKeyboardGrab the
// coordinator depends on.
type KeyboardGrab interface {
	OnKeymap(fn func(format uint32, fd int, size uint32))
	OnModifiers(fn func(serial, depressed, latched, locked, group uint32))
	OnRepeatInfo(fn func(rate, delay int32))
	OnKey(fn func(serial, time, key, state uint32))
	Release() error
}

// VirtualKeyboardDevice is the subset of *wlproto.VirtualKeyboard the
// coordinator depends on. *wlproto.VirtualKeyboard already satisfies
// this directly; no adapter is needed.
type VirtualKeyboardDevice interface {
	KeymapSent() bool
	Keymap(format uint32, fd int, size uint32) error
	Modifiers(depressed, latched, locked, group uint32) error
}

// EngineClient is the subset of *enginerpc.Client the coordinator
// depends on. *enginerpc.Client already satisfies this directly; no
// adapter is needed.
type EngineClient interface {
	SendKey(notation string) error
	Call(ctx context.Context, function string, args ...any) (any, error)
	Snapshot(ctx context.Context) (enginerpc.Snapshot, error)
	Ready() bool
}

// wireInputMethod adapts *wlproto.InputMethod to InputMethod. The only
// method that needs adapting is GrabKeyboard: wlproto.InputMethod
// returns a concrete *wlproto.InputMethodKeyboardGrab, which Go does
// not treat as satisfying a method that returns KeyboardGrab, even
// though the concrete type implements it.
type wireInputMethod struct{ *wlproto.InputMethod }

// NewWireInputMethod wraps a real zwp_input_method_v2 proxy so it can
// be handed to New as an InputMethod.
func NewWireInputMethod(im *wlproto.InputMethod) InputMethod {
	return wireInputMethod{im}
}

func (w wireInputMethod) GrabKeyboard() (KeyboardGrab, error) {
	grab, err := w.InputMethod.GrabKeyboard()
	if err != nil {
		return nil, err
	}
	return grab, nil
}
