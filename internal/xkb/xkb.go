// Package xkb bridges the raw evdev keycodes
// zwp_input_method_keyboard_grab_v2 delivers into XKB keysyms and UTF-8
// text, via cgo against libxkbcommon. Keymap parsing itself is
// explicitly out of scope for the core (spec.md §1 lists "XKB keymap
// parsing" among the external collaborators the core only consumes an
// interface from); this package is that collaborator, grounded on the
// libxkbcommon usage in the retrieval pack's gio Wayland backend
// (other_examples/gioui-gio wayland.go), the only pack reference
// touching XKB at all.
package xkb

// #cgo LDFLAGS: -lxkbcommon
// #include <stdlib.h>
// #include <xkbcommon/xkbcommon.h>
import "C"

import (
	"fmt"
	"syscall"
	"unsafe"
)

// State owns one compiled keymap and its associated modifier state, one
// per activation (rebuilt whenever the compositor re-sends a keymap
// event, per spec.md §4.6's re-grab case).
type State struct {
	ctx   *C.struct_xkb_context
	keymap *C.struct_xkb_keymap
	state *C.struct_xkb_state
}

// NewState compiles the keymap found in the shared-memory region backed
// by fd/size (as delivered by zwp_input_method_keyboard_grab_v2's
// keymap event) and returns a State ready to translate key events. The
// caller retains ownership of fd; NewState only mmaps it for the
// duration of compilation.
func NewState(fd int, size uint32) (*State, error) {
	data, err := syscall.Mmap(fd, 0, int(size), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap keymap: %w", err)
	}
	defer syscall.Munmap(data)

	ctx := C.xkb_context_new(C.XKB_CONTEXT_NO_FLAGS)
	if ctx == nil {
		return nil, fmt.Errorf("xkb_context_new failed")
	}

	// size includes the trailing NUL the compositor null-terminates the
	// buffer with; xkbcommon wants the length excluding it.
	length := C.size_t(size)
	if length > 0 {
		length--
	}
	keymap := C.xkb_keymap_new_from_buffer(ctx, (*C.char)(unsafe.Pointer(&data[0])), length,
		C.XKB_KEYMAP_FORMAT_TEXT_V1, C.XKB_KEYMAP_COMPILE_NO_FLAGS)
	if keymap == nil {
		C.xkb_context_unref(ctx)
		return nil, fmt.Errorf("xkb_keymap_new_from_buffer failed")
	}

	state := C.xkb_state_new(keymap)
	if state == nil {
		C.xkb_keymap_unref(keymap)
		C.xkb_context_unref(ctx)
		return nil, fmt.Errorf("xkb_state_new failed")
	}

	return &State{ctx: ctx, keymap: keymap, state: state}, nil
}

// Close releases the underlying xkbcommon objects.
func (s *State) Close() {
	if s.state != nil {
		C.xkb_state_unref(s.state)
		s.state = nil
	}
	if s.keymap != nil {
		C.xkb_keymap_unref(s.keymap)
		s.keymap = nil
	}
	if s.ctx != nil {
		C.xkb_context_unref(s.ctx)
		s.ctx = nil
	}
}

// UpdateMask applies a zwp_input_method_keyboard_grab_v2 modifiers
// event to the XKB state.
func (s *State) UpdateMask(depressed, latched, locked, group uint32) {
	C.xkb_state_update_mask(s.state,
		C.xkb_mod_mask_t(depressed), C.xkb_mod_mask_t(latched), C.xkb_mod_mask_t(locked),
		0, 0, C.xkb_layout_index_t(group))
}

// Translate converts a raw evdev keycode (as delivered on the wire,
// before the XKB "+8" adjustment) into a keysym and its UTF-8
// representation under the current modifier state.
func (s *State) Translate(evdevKeycode uint32) (keysym uint32, text string) {
	// "to determine the xkb keycode, clients must add 8 to the key event
	// keycode" — the same adjustment gio's Wayland backend applies.
	code := C.xkb_keycode_t(evdevKeycode + 8)
	sym := C.xkb_state_key_get_one_sym(s.state, code)

	var buf [8]C.char
	n := C.xkb_state_key_get_utf8(s.state, code, &buf[0], C.size_t(len(buf)))
	if n <= 0 {
		return uint32(sym), ""
	}
	return uint32(sym), C.GoStringN(&buf[0], n)
}

// KeyRepeats reports whether the compositor's keymap marks this key as
// auto-repeating (modifier keys never do).
func (s *State) KeyRepeats(evdevKeycode uint32) bool {
	code := C.xkb_keycode_t(evdevKeycode + 8)
	return C.xkb_keymap_key_repeats(s.keymap, code) == 1
}

// ModActive reports whether the named modifier (e.g. "Control",
// "Mod1" for Alt, "Mod4" for Super, "Shift") is currently effective.
func (s *State) ModActive(name string) bool {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return C.xkb_state_mod_name_is_active(s.state, cname, C.XKB_STATE_MODS_EFFECTIVE) == 1
}
