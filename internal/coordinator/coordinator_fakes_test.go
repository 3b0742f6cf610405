package coordinator

import (
	"context"

	"github.com/garypippi/jacin/internal/enginerpc"
)

// fakeInputMethod, fakeGrab, fakeVirtualKeyboard, and fakeEngineClient
// satisfy the InputMethod/KeyboardGrab/VirtualKeyboardDevice/EngineClient
// seams (wire.go) with no Wayland or msgpack-RPC wire traffic, so C5/C6/C7
// can be exercised directly.

type preeditCall struct {
	text        string
	begin, end  int32
}

type fakeInputMethod struct {
	onActivate, onDeactivate, onDone, onUnavailable func()

	grabErr   error
	grabCount int
	grab      *fakeGrab

	preeditCalls           []preeditCall
	commitStringCalls      []string
	deleteSurroundingCalls [][2]uint32
	commitCalls            []uint32
}

func (f *fakeInputMethod) OnActivate(fn func())    { f.onActivate = fn }
func (f *fakeInputMethod) OnDeactivate(fn func())  { f.onDeactivate = fn }
func (f *fakeInputMethod) OnDone(fn func())        { f.onDone = fn }
func (f *fakeInputMethod) OnUnavailable(fn func()) { f.onUnavailable = fn }

func (f *fakeInputMethod) GrabKeyboard() (KeyboardGrab, error) {
	f.grabCount++
	if f.grabErr != nil {
		return nil, f.grabErr
	}
	if f.grab == nil {
		f.grab = &fakeGrab{}
	}
	return f.grab, nil
}

func (f *fakeInputMethod) SetPreeditString(text string, begin, end int32) error {
	f.preeditCalls = append(f.preeditCalls, preeditCall{text: text, begin: begin, end: end})
	return nil
}

func (f *fakeInputMethod) CommitString(text string) error {
	f.commitStringCalls = append(f.commitStringCalls, text)
	return nil
}

func (f *fakeInputMethod) DeleteSurroundingText(before, after uint32) error {
	f.deleteSurroundingCalls = append(f.deleteSurroundingCalls, [2]uint32{before, after})
	return nil
}

func (f *fakeInputMethod) Commit(serial uint32) error {
	f.commitCalls = append(f.commitCalls, serial)
	return nil
}

type fakeGrab struct {
	onKeymap     func(format uint32, fd int, size uint32)
	onModifiers  func(serial, depressed, latched, locked, group uint32)
	onRepeatInfo func(rate, delay int32)
	onKey        func(serial, time, key, state uint32)
	released     bool
}

func (g *fakeGrab) OnKeymap(fn func(format uint32, fd int, size uint32)) { g.onKeymap = fn }
func (g *fakeGrab) OnModifiers(fn func(serial, depressed, latched, locked, group uint32)) {
	g.onModifiers = fn
}
func (g *fakeGrab) OnRepeatInfo(fn func(rate, delay int32))               { g.onRepeatInfo = fn }
func (g *fakeGrab) OnKey(fn func(serial, time, key, state uint32))        { g.onKey = fn }
func (g *fakeGrab) Release() error                                       { g.released = true; return nil }

type fakeVirtualKeyboard struct {
	keymapSent     bool
	modifiersCalls int
}

func (v *fakeVirtualKeyboard) KeymapSent() bool { return v.keymapSent }
func (v *fakeVirtualKeyboard) Keymap(format uint32, fd int, size uint32) error {
	v.keymapSent = true
	return nil
}
func (v *fakeVirtualKeyboard) Modifiers(depressed, latched, locked, group uint32) error {
	v.modifiersCalls++
	return nil
}

type fakeEngineClient struct {
	sentKeys   []string
	sendKeyErr error

	calls  []string
	callFn func(ctx context.Context, function string, args ...any) (any, error)

	snapshotFn func(ctx context.Context) (enginerpc.Snapshot, error)

	ready bool
}

func (f *fakeEngineClient) SendKey(notation string) error {
	f.sentKeys = append(f.sentKeys, notation)
	return f.sendKeyErr
}

func (f *fakeEngineClient) Call(ctx context.Context, function string, args ...any) (any, error) {
	f.calls = append(f.calls, function)
	if f.callFn != nil {
		return f.callFn(ctx, function, args...)
	}
	return nil, nil
}

func (f *fakeEngineClient) Snapshot(ctx context.Context) (enginerpc.Snapshot, error) {
	if f.snapshotFn != nil {
		return f.snapshotFn(ctx)
	}
	return enginerpc.Snapshot{}, nil
}

func (f *fakeEngineClient) Ready() bool { return f.ready }
