// Package wlproto hand-writes the wire-level bindings for the Wayland
// protocols this repository's Out of scope section (spec.md §1) treats
// as an external collaborator but that the binary itself must still
// speak: the zwp_input_method_v2 family and zwp_virtual_keyboard_v1.
// Neither go-wayland nor wlturbo ship generated code for these unstable
// extensions, so C10 follows the same wl.BaseProxy/opcode-constant/
// Dispatch pattern the teacher used for zwp_virtual_keyboard_v1 and the
// pack's libwldevices-go used for zwp_pointer_constraints_v1 and
// zwlr_output_management_v1.
package wlproto

import "github.com/bnema/wlturbo/wl"

// Protocol interface names.
const (
	InputMethodManagerInterface      = "zwp_input_method_manager_v2"
	InputMethodInterface             = "zwp_input_method_v2"
	InputMethodKeyboardGrabInterface = "zwp_input_method_keyboard_grab_v2"
	InputPopupSurfaceInterface       = "zwp_input_popup_surface_v2"
)

// TextChangeCause mirrors the protocol's text_change_cause enum.
type TextChangeCause uint32

const (
	ChangeCauseInputMethod TextChangeCause = 0
	ChangeCauseOther       TextChangeCause = 1
)

// InputMethodManager is the global used to bind one input method per
// seat.
type InputMethodManager struct {
	wl.BaseProxy
}

// NewInputMethodManager wraps the proxy the registry bind produces.
func NewInputMethodManager(ctx *wl.Context) *InputMethodManager {
	m := &InputMethodManager{}
	m.SetContext(ctx)
	return m
}

// GetInputMethod requests the input method for seat; the compositor
// fails the binding with zwp_input_method_v2.unavailable if one is
// already bound to another client.
func (m *InputMethodManager) GetInputMethod(seat *wl.Seat) (*InputMethod, error) {
	im := &InputMethod{}
	im.SetContext(m.Context())
	id := m.Context().AllocateID()
	im.SetID(id)
	m.Context().Register(im)

	// Opcode 0: get_input_method
	const opcode = 0
	if err := m.Context().SendRequest(m, opcode, seat, im); err != nil {
		m.Context().Unregister(im)
		return nil, err
	}
	return im, nil
}

// Destroy releases the manager binding.
func (m *InputMethodManager) Destroy() error {
	// Opcode 1: destroy
	const opcode = 1
	err := m.Context().SendRequest(m, opcode)
	m.Context().Unregister(m)
	return err
}

func (m *InputMethodManager) Dispatch(_ *wl.Event) {
	// zwp_input_method_manager_v2 has no events.
}

// InputMethod is the client's input-method object for one seat: the
// center of C9/C10's wire surface, delivering activation lifecycle
// events and accepting the preedit/commit/delete requests C7 issues.
type InputMethod struct {
	wl.BaseProxy

	onActivate         func()
	onDeactivate       func()
	onSurroundingText  func(text string, cursor, anchor uint32)
	onTextChangeCause  func(cause TextChangeCause)
	onContentType      func(hint, purpose uint32)
	onDone             func()
	onUnavailable      func()
}

// OnActivate registers the activate event handler (spec.md §4.6).
func (im *InputMethod) OnActivate(fn func())     { im.onActivate = fn }
func (im *InputMethod) OnDeactivate(fn func())   { im.onDeactivate = fn }
func (im *InputMethod) OnSurroundingText(fn func(text string, cursor, anchor uint32)) {
	im.onSurroundingText = fn
}
func (im *InputMethod) OnTextChangeCause(fn func(cause TextChangeCause)) {
	im.onTextChangeCause = fn
}
func (im *InputMethod) OnContentType(fn func(hint, purpose uint32)) { im.onContentType = fn }

// OnDone registers the done handler; the serial the snapshot reconciler
// stamps every outbound request with is derived from invocation count on
// the IME side, matching the teacher's "no args, caller tracks its own
// monotonic serial" convention for this protocol revision.
func (im *InputMethod) OnDone(fn func())             { im.onDone = fn }
func (im *InputMethod) OnUnavailable(fn func())      { im.onUnavailable = fn }

// CommitString queues text for the next Commit call (opcode 0).
func (im *InputMethod) CommitString(text string) error {
	const opcode = 0
	return im.Context().SendRequest(im, opcode, text)
}

// SetPreeditString queues a preedit update for the next Commit call
// (opcode 1).
func (im *InputMethod) SetPreeditString(text string, cursorBegin, cursorEnd int32) error {
	const opcode = 1
	return im.Context().SendRequest(im, opcode, text, cursorBegin, cursorEnd)
}

// DeleteSurroundingText queues a delete-surrounding-text request for the
// next Commit call (opcode 2).
func (im *InputMethod) DeleteSurroundingText(before, after uint32) error {
	const opcode = 2
	return im.Context().SendRequest(im, opcode, before, after)
}

// Commit applies all queued commit_string/set_preedit_string/
// delete_surrounding_text requests atomically, stamped with serial (the
// value observed at the most recent Done event, per spec.md's invariant
// 3).
func (im *InputMethod) Commit(serial uint32) error {
	const opcode = 3
	return im.Context().SendRequest(im, opcode, serial)
}

// GetInputPopupSurface wraps surface as this input method's popup (C11).
func (im *InputMethod) GetInputPopupSurface(surface *wl.Surface) (*InputPopupSurface, error) {
	popup := &InputPopupSurface{}
	popup.SetContext(im.Context())
	id := im.Context().AllocateID()
	popup.SetID(id)
	im.Context().Register(popup)

	const opcode = 4
	if err := im.Context().SendRequest(im, opcode, popup, surface); err != nil {
		im.Context().Unregister(popup)
		return nil, err
	}
	return popup, nil
}

// GrabKeyboard requests exclusive keyboard delivery while active
// (spec.md §4.6's grab protocol).
func (im *InputMethod) GrabKeyboard() (*InputMethodKeyboardGrab, error) {
	grab := &InputMethodKeyboardGrab{}
	grab.SetContext(im.Context())
	id := im.Context().AllocateID()
	grab.SetID(id)
	im.Context().Register(grab)

	const opcode = 5
	if err := im.Context().SendRequest(im, opcode, grab); err != nil {
		im.Context().Unregister(grab)
		return nil, err
	}
	return grab, nil
}

// Destroy releases the input method binding.
func (im *InputMethod) Destroy() error {
	const opcode = 6
	err := im.Context().SendRequest(im, opcode)
	im.Context().Unregister(im)
	return err
}

func (im *InputMethod) Dispatch(event *wl.Event) {
	switch event.Opcode {
	case 0: // activate
		if im.onActivate != nil {
			im.onActivate()
		}
	case 1: // deactivate
		if im.onDeactivate != nil {
			im.onDeactivate()
		}
	case 2: // surrounding_text
		text := event.String()
		cursor := event.Uint32()
		anchor := event.Uint32()
		if im.onSurroundingText != nil {
			im.onSurroundingText(text, cursor, anchor)
		}
	case 3: // text_change_cause
		cause := TextChangeCause(event.Uint32())
		if im.onTextChangeCause != nil {
			im.onTextChangeCause(cause)
		}
	case 4: // content_type
		hint := event.Uint32()
		purpose := event.Uint32()
		if im.onContentType != nil {
			im.onContentType(hint, purpose)
		}
	case 5: // done
		if im.onDone != nil {
			im.onDone()
		}
	case 6: // unavailable
		if im.onUnavailable != nil {
			im.onUnavailable()
		}
	}
}

// InputMethodKeyboardGrab delivers keymap/key/modifiers/repeat_info
// while grabbed.
type InputMethodKeyboardGrab struct {
	wl.BaseProxy

	onKeymap     func(format uint32, fd int, size uint32)
	onKey        func(serial, time, key, state uint32)
	onModifiers  func(serial, depressed, latched, locked, group uint32)
	onRepeatInfo func(rate, delay int32)
}

func (g *InputMethodKeyboardGrab) OnKeymap(fn func(format uint32, fd int, size uint32)) {
	g.onKeymap = fn
}
func (g *InputMethodKeyboardGrab) OnKey(fn func(serial, time, key, state uint32)) { g.onKey = fn }
func (g *InputMethodKeyboardGrab) OnModifiers(fn func(serial, depressed, latched, locked, group uint32)) {
	g.onModifiers = fn
}
func (g *InputMethodKeyboardGrab) OnRepeatInfo(fn func(rate, delay int32)) { g.onRepeatInfo = fn }

// Release gives up the grab (spec.md §4.6's release_keyboard).
func (g *InputMethodKeyboardGrab) Release() error {
	const opcode = 0
	err := g.Context().SendRequest(g, opcode)
	g.Context().Unregister(g)
	return err
}

func (g *InputMethodKeyboardGrab) Dispatch(event *wl.Event) {
	switch event.Opcode {
	case 0: // keymap
		format := event.Uint32()
		fd := event.FD()
		size := event.Uint32()
		if g.onKeymap != nil {
			g.onKeymap(format, fd, size)
		}
	case 1: // key
		serial := event.Uint32()
		time := event.Uint32()
		key := event.Uint32()
		state := event.Uint32()
		if g.onKey != nil {
			g.onKey(serial, time, key, state)
		}
	case 2: // modifiers
		serial := event.Uint32()
		depressed := event.Uint32()
		latched := event.Uint32()
		locked := event.Uint32()
		group := event.Uint32()
		if g.onModifiers != nil {
			g.onModifiers(serial, depressed, latched, locked, group)
		}
	case 3: // repeat_info
		rate := event.Int32()
		delay := event.Int32()
		if g.onRepeatInfo != nil {
			g.onRepeatInfo(rate, delay)
		}
	}
}

// InputPopupSurface is the popup surface role object (C11's transport).
type InputPopupSurface struct {
	wl.BaseProxy

	onTextInputRectangle func(x, y, width, height int32)
}

func (p *InputPopupSurface) OnTextInputRectangle(fn func(x, y, width, height int32)) {
	p.onTextInputRectangle = fn
}

// Destroy releases the popup role.
func (p *InputPopupSurface) Destroy() error {
	const opcode = 0
	err := p.Context().SendRequest(p, opcode)
	p.Context().Unregister(p)
	return err
}

func (p *InputPopupSurface) Dispatch(event *wl.Event) {
	switch event.Opcode {
	case 0: // text_input_rectangle
		x := event.Int32()
		y := event.Int32()
		width := event.Int32()
		height := event.Int32()
		if p.onTextInputRectangle != nil {
			p.onTextInputRectangle(x, y, width, height)
		}
	}
}
