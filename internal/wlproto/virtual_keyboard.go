package wlproto

import (
	"fmt"
	"syscall"

	"github.com/bnema/wlturbo/wl"
)

// Protocol interface names for the virtual keyboard half of C10: jacin
// is both an input method (receiving key events from the grab) and a
// virtual keyboard (which the lifecycle coordinator uploads a keymap to
// and clears stuck modifiers through), so both halves live in this
// package.
const (
	VirtualKeyboardManagerInterface = "zwp_virtual_keyboard_manager_v1"
	VirtualKeyboardInterface        = "zwp_virtual_keyboard_v1"
)

// VirtualKeyboardManager manages virtual keyboard objects.
type VirtualKeyboardManager struct {
	wl.BaseProxy
}

// NewVirtualKeyboardManager wraps the proxy the registry bind produces.
func NewVirtualKeyboardManager(ctx *wl.Context) *VirtualKeyboardManager {
	manager := &VirtualKeyboardManager{}
	manager.SetContext(ctx)
	return manager
}

// CreateVirtualKeyboard creates the virtual keyboard jacin uploads its
// keymap to and clears stuck modifiers through.
func (m *VirtualKeyboardManager) CreateVirtualKeyboard(seat *wl.Seat) (*VirtualKeyboard, error) {
	keyboard := NewVirtualKeyboard(m.Context())

	const opcode = 0
	if err := m.Context().SendRequest(m, opcode, seat, keyboard); err != nil {
		m.Context().Unregister(keyboard)
		return nil, err
	}
	return keyboard, nil
}

// Destroy releases the manager binding. The protocol has no destructor
// request, so this only unregisters the local proxy.
func (m *VirtualKeyboardManager) Destroy() error {
	m.Context().Unregister(m)
	return nil
}

func (m *VirtualKeyboardManager) Dispatch(_ *wl.Event) {
	// zwp_virtual_keyboard_manager_v1 has no events.
}

// VirtualKeyboard is the virtual device the lifecycle coordinator (C6)
// sends the keymap and modifier resets to; the coordinator sends it no
// key events.
type VirtualKeyboard struct {
	wl.BaseProxy

	keymapSent bool
}

// NewVirtualKeyboard wraps the proxy; callers normally reach this via
// VirtualKeyboardManager.CreateVirtualKeyboard rather than directly.
func NewVirtualKeyboard(ctx *wl.Context) *VirtualKeyboard {
	keyboard := &VirtualKeyboard{}
	keyboard.SetContext(ctx)
	id := ctx.AllocateID()
	keyboard.SetID(id)
	ctx.Register(keyboard)
	return keyboard
}

// Keymap uploads the keymap. format/fd/size come from BuildKeymapFD;
// the coordinator uploads the default evdev+us map once, on the first
// keymap event of a keyboard grab, and never replaces it afterwards.
func (k *VirtualKeyboard) Keymap(format uint32, fd int, size uint32) error {
	const opcode = 0
	if fd < 0 {
		return fmt.Errorf("invalid file descriptor: %d", fd)
	}
	err := k.Context().SendRequestWithFDs(k, opcode, []int{fd}, format, uintptr(fd), size)
	if err == nil {
		k.keymapSent = true
	}
	return err
}

// KeymapSent reports whether Keymap has succeeded at least once; the
// coordinator must not emit Key events before this is true.
func (k *VirtualKeyboard) KeymapSent() bool { return k.keymapSent }

// Key sends a key press/release using raw evdev keycodes — no +8
// offset, that only applies to XKB keycodes.
func (k *VirtualKeyboard) Key(time, key, state uint32) error {
	const opcode = 1
	return k.Context().SendRequest(k, opcode, time, key, state)
}

// Modifiers updates modifier state (used when the IME's modifiers
// event, relayed from the keyboard grab, needs re-broadcasting to the
// virtual device).
func (k *VirtualKeyboard) Modifiers(modsDepressed, modsLatched, modsLocked, group uint32) error {
	const opcode = 2
	return k.Context().SendRequest(k, opcode, modsDepressed, modsLatched, modsLocked, group)
}

// Destroy destroys the virtual keyboard.
func (k *VirtualKeyboard) Destroy() error {
	const opcode = 3
	err := k.Context().SendRequest(k, opcode)
	k.Context().Unregister(k)
	return err
}

func (k *VirtualKeyboard) Dispatch(_ *wl.Event) {
	// zwp_virtual_keyboard_v1 has no events.
}

// DefaultKeymap is the minimal evdev+us XKB keymap BuildKeymapFD uses
// when it is given an empty keymap string.
const DefaultKeymap = `xkb_keymap {
	xkb_keycodes  { include "evdev+aliases(qwerty)"	};
	xkb_types     { include "complete"	};
	xkb_compat    { include "complete"	};
	xkb_symbols   { include "pc+us+inet(evdev)"	};
	xkb_geometry  { include "pc(pc105)"	};
};`

// BuildKeymapFD writes keymap into an anonymous shared-memory file and
// returns the fd and size ready for VirtualKeyboard.Keymap. Unlike the
// teacher's CreateDefaultKeymap, the keymap source is a parameter,
// with DefaultKeymap used for "". The coordinator passes "", and
// neither the engine snapshot nor the config carries a keymap.
func BuildKeymapFD(keymap string) (fd int, size uint32, err error) {
	if keymap == "" {
		keymap = DefaultKeymap
	}

	byteLen := len(keymap) + 1 // null terminator, as the compositor expects
	anonFd, err := wl.CreateAnonymousFile(int64(byteLen))
	if err != nil {
		return -1, 0, err
	}

	data, err := wl.MapMemory(anonFd, byteLen)
	if err != nil {
		_ = syscall.Close(anonFd)
		return -1, 0, err
	}
	defer func() { _ = wl.UnmapMemory(data) }()

	copy(data, keymap)
	data[len(keymap)] = 0

	if _, err := syscall.Seek(anonFd, 0, 0); err != nil {
		_ = syscall.Close(anonFd)
		return -1, 0, err
	}

	var stat syscall.Stat_t
	if err := syscall.Fstat(anonFd, &stat); err != nil {
		_ = syscall.Close(anonFd)
		return -1, 0, fmt.Errorf("fstat failed: %w", err)
	}

	if byteLen < 0 || byteLen > 0x7FFFFFFF {
		_ = syscall.Close(anonFd)
		return -1, 0, fmt.Errorf("invalid keymap size: %d", byteLen)
	}
	return anonFd, uint32(byteLen), nil
}
