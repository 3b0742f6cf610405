// Package keynotation implements the key translator (C1): it turns an
// XKB keysym plus the active modifier set into the editor-style notation
// string the engine RPC client sends over the wire (e.g. "<C-a>", "a",
// "<CR>").
package keynotation

import "fmt"

// Keysym is an XKB/X11 keysym value, as delivered by the compositor's
// keyboard grab (zwp_input_method_keyboard_grab_v2's "key" event, after
// the XKB keymap lookup the core treats as an external concern per the
// specification's scope).
type Keysym uint32

// A subset of the XKB keysym table covering the named keys this
// translator recognizes. Values match the standard X11 keysymdef.h
// constants.
const (
	KeyBackSpace Keysym = 0xff08
	KeyTab       Keysym = 0xff09
	KeyReturn    Keysym = 0xff0d
	KeyEscape    Keysym = 0xff1b
	KeySpace     Keysym = 0x0020
	KeyDelete    Keysym = 0xffff
	KeyHome      Keysym = 0xff50
	KeyLeft      Keysym = 0xff51
	KeyUp        Keysym = 0xff52
	KeyRight     Keysym = 0xff53
	KeyDown      Keysym = 0xff54
	KeyEnd       Keysym = 0xff57

	KeyF1  Keysym = 0xffbe
	KeyF2  Keysym = 0xffbf
	KeyF3  Keysym = 0xffc0
	KeyF4  Keysym = 0xffc1
	KeyF5  Keysym = 0xffc2
	KeyF6  Keysym = 0xffc3
	KeyF7  Keysym = 0xffc4
	KeyF8  Keysym = 0xffc5
	KeyF9  Keysym = 0xffc6
	KeyF10 Keysym = 0xffc7
	KeyF11 Keysym = 0xffc8
	KeyF12 Keysym = 0xffc9

	// Bare modifier keysyms: pressed alone, these are no-ops.
	KeyShiftL   Keysym = 0xffe1
	KeyShiftR   Keysym = 0xffe2
	KeyControlL Keysym = 0xffe3
	KeyControlR Keysym = 0xffe4
	KeyAltL     Keysym = 0xffe9
	KeyAltR     Keysym = 0xffea
	KeySuperL   Keysym = 0xffeb
	KeySuperR   Keysym = 0xffec
)

var namedKeysyms = map[Keysym]string{
	KeyBackSpace: "BS",
	KeyTab:       "Tab",
	KeyReturn:    "CR",
	KeyEscape:    "Esc",
	KeyLeft:      "Left",
	KeyRight:     "Right",
	KeyUp:        "Up",
	KeyDown:      "Down",
	KeyHome:      "Home",
	KeyEnd:       "End",
	KeyDelete:    "Del",
	KeyF1:        "F1",
	KeyF2:        "F2",
	KeyF3:        "F3",
	KeyF4:        "F4",
	KeyF5:        "F5",
	KeyF6:        "F6",
	KeyF7:        "F7",
	KeyF8:        "F8",
	KeyF9:        "F9",
	KeyF10:       "F10",
	KeyF11:       "F11",
	KeyF12:       "F12",
}

var bareModifiers = map[Keysym]bool{
	KeyShiftL: true, KeyShiftR: true,
	KeyControlL: true, KeyControlR: true,
	KeyAltL: true, KeyAltR: true,
	KeySuperL: true, KeySuperR: true,
}

// Modifiers is the active modifier set at the time a key was pressed.
type Modifiers struct {
	Ctrl  bool
	Alt   bool
	Shift bool
	Super bool
}

// Class tags the outcome of translation so the input coordinator (C5)
// can tell a real notation from a discarded bare-modifier press.
type Class int

const (
	// ClassKey is a usable notation string.
	ClassKey Class = iota
	// ClassNoOp is a bare modifier press; C5 discards it.
	ClassNoOp
)

// Translate converts (keysym, modifiers, the UTF-8 text the compositor
// resolved for this key) into editor notation. utf8 is used only for
// printable keys with no modifiers, or Ctrl/Alt combinations over a
// printable character; named keys ignore it.
func Translate(sym Keysym, mods Modifiers, utf8 string) (notation string, class Class) {
	if bareModifiers[sym] {
		return "", ClassNoOp
	}

	if name, ok := namedKeysyms[sym]; ok {
		return wrapNamed(name, mods), ClassKey
	}
	if sym == KeySpace {
		if !mods.Ctrl && !mods.Alt {
			return " ", ClassKey
		}
		return wrapNamed("Space", mods), ClassKey
	}

	// Printable key: Shift has already been folded into utf8/keysym by
	// the compositor's XKB lookup (e.g. Shift+a delivers "A"), so Shift
	// is never emitted standalone here except via the capital letter
	// itself.
	ch := utf8
	if ch == "" {
		return "", ClassNoOp
	}
	if ch == "<" {
		ch = "lt"
		return wrapPrintable(ch, mods, true), ClassKey
	}

	if !mods.Ctrl && !mods.Alt {
		return ch, ClassKey
	}
	return wrapPrintable(ch, mods, false), ClassKey
}

// wrapNamed renders a named key (BS, CR, Esc, arrows, function keys...)
// with any held modifiers, in C-, A-, S- tie-break order.
func wrapNamed(name string, mods Modifiers) string {
	prefix := modifierPrefix(mods, false)
	if prefix == "" {
		return fmt.Sprintf("<%s>", name)
	}
	return fmt.Sprintf("<%s%s>", prefix, name)
}

// wrapPrintable renders a printable character under Ctrl/Alt, or an
// already-escaped literal (angle bracket) under "<lt>" form.
func wrapPrintable(ch string, mods Modifiers, forceAngle bool) string {
	prefix := modifierPrefix(mods, true)
	if prefix == "" && !forceAngle {
		return ch
	}
	return fmt.Sprintf("<%s%s>", prefix, ch)
}

// modifierPrefix builds the "C-A-" style prefix in the mandated
// tie-break order: Ctrl, then Alt, then Shift. Shift is only emitted for
// named keys (printables fold shift into the keysym/utf8 already).
func modifierPrefix(mods Modifiers, printable bool) string {
	var prefix string
	if mods.Ctrl {
		prefix += "C-"
	}
	if mods.Alt {
		prefix += "A-"
	}
	if !printable && mods.Shift {
		prefix += "S-"
	}
	return prefix
}
