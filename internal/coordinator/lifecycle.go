package coordinator

import (
	"context"
	"time"

	"github.com/garypippi/jacin/internal/imestate"
	"github.com/garypippi/jacin/internal/keynotation"
	"github.com/garypippi/jacin/internal/logger"
	"github.com/garypippi/jacin/internal/wlproto"
	"github.com/garypippi/jacin/internal/xkb"
)

var lifecycleLog = logger.For("coordinator.lifecycle")

// wireInputMethodHandlers registers the input method proxy's four
// callbacks (activate, deactivate, done, unavailable); the keymap,
// modifiers, key and repeat_info handlers are installed per grab by
// wireGrabHandlers. Called once from New; the input method proxy itself
// is bound once at startup and reused across activation cycles.
func (c *Coordinator) wireInputMethodHandlers() {
	c.im.OnActivate(func() { c.HandleActivate() })
	c.im.OnDeactivate(func() { c.HandleDeactivate() })
	c.im.OnDone(func() { c.HandleDone() })
	c.im.OnUnavailable(func() {
		// Another input method already bound this seat; spec.md §4.6
		// calls this a fatal condition. Fatal logs and exits the
		// process with status 1, the same exit status main.go uses for
		// startup failures.
		lifecycleLog.Fatal("zwp_input_method_v2 unavailable: another input method is already bound to this seat")
	})
}

// HandleActivate implements spec.md §4.6's activate handler.
func (c *Coordinator) HandleActivate() {
	switch c.state.Lifecycle() {
	case imestate.Disabled:
		if err := c.state.BeginEnable(false); err != nil {
			lifecycleLog.Warn("BeginEnable failed", "error", err)
			return
		}
		grab, err := c.im.GrabKeyboard()
		if err != nil {
			lifecycleLog.Error("grab_keyboard failed", "error", err)
			c.state.ForceDisable()
			return
		}
		c.grab = grab
		c.grabbed = true
		c.wireGrabHandlers()

	case imestate.Enabled:
		count, capExceeded := c.state.IncrementReactivation()
		lifecycleLog.Debug("reactivation", "count", count)
		if capExceeded {
			c.forceDisable()
		}

	default:
		lifecycleLog.Warn("activate received in unexpected lifecycle state", "state", c.state.Lifecycle())
	}
}

// HandleDeactivate implements spec.md §4.6's deactivate handler.
func (c *Coordinator) HandleDeactivate() {
	if c.state.Lifecycle() != imestate.Enabled {
		return
	}

	if c.state.CommitPending() {
		if err := c.flushCommit(context.Background()); err != nil {
			lifecycleLog.Warn("pending commit on deactivate failed", "error", err)
		}
	}

	if err := c.state.BeginDisable(); err != nil {
		lifecycleLog.Warn("BeginDisable failed", "error", err)
		return
	}
	c.releaseGrab()
	c.resetKeyRepeat()

	if err := c.state.Finish(); err != nil {
		lifecycleLog.Warn("Finish failed", "error", err)
	}
}

// HandleKeymap implements spec.md §4.6's keymap handler: build or
// rebuild the XKB translation state, complete an in-flight Enabling
// transition, or refresh it in place for a re-grab while already
// Enabled.
func (c *Coordinator) HandleKeymap(format uint32, fd int, size uint32) {
	defer syscallCloseLogged(fd)

	newState, err := xkb.NewState(fd, size)
	if err != nil {
		lifecycleLog.Error("xkb keymap compile failed", "error", err)
		c.forceDisable()
		return
	}
	if c.xkb != nil {
		c.xkb.Close()
	}
	c.xkb = newState

	if !c.vk.KeymapSent() {
		if vkFD, vkSize, err := wlproto.BuildKeymapFD(""); err != nil {
			lifecycleLog.Warn("build virtual keyboard keymap failed", "error", err)
		} else {
			err := c.vk.Keymap(format, vkFD, vkSize)
			syscallCloseLogged(vkFD)
			if err != nil {
				lifecycleLog.Warn("virtual keyboard keymap upload failed", "error", err)
			}
		}
	}

	switch c.state.Lifecycle() {
	case imestate.Enabling:
		defaultMode := ModeNormal
		if c.cfg.Behavior.StartInsert {
			defaultMode = ModeInsert
		}
		if err := c.state.CompleteEnable(defaultMode); err != nil {
			lifecycleLog.Warn("CompleteEnable failed", "error", err)
		}
	case imestate.Enabled:
		// Re-grab case: state already transitioned; nothing else to do.
	}
}

// HandleDone implements spec.md §4.6's done handler. zwp_input_method_v2's
// done event carries no payload; the serial is the number of done
// events received so far, the same "caller tracks its own monotonic
// counter" convention the teacher's protocol code uses elsewhere.
func (c *Coordinator) HandleDone() {
	c.serial = c.doneCount
	c.doneCount++
}

// HandleModifiers implements spec.md §4.6's modifiers handler: update
// the cached modifier state and the XKB state in lockstep; no other
// effect.
func (c *Coordinator) HandleModifiers(depressed, latched, locked, group uint32) {
	c.modsDepressed, c.modsLatched, c.modsLocked, c.modsGroup = depressed, latched, locked, group
	if c.xkb != nil {
		c.xkb.UpdateMask(depressed, latched, locked, group)
	}
}

// HandleToggleSignal implements spec.md §4.6's out-of-band toggle (e.g.
// SIGUSR1).
func (c *Coordinator) HandleToggleSignal() {
	switch c.state.Lifecycle() {
	case imestate.Disabled:
		if err := c.state.BeginEnable(true); err != nil {
			lifecycleLog.Warn("toggle BeginEnable failed", "error", err)
			return
		}
		grab, err := c.im.GrabKeyboard()
		if err != nil {
			lifecycleLog.Error("toggle grab_keyboard failed", "error", err)
			c.state.ForceDisable()
			return
		}
		c.grab = grab
		c.grabbed = true
		c.wireGrabHandlers()

	case imestate.Enabled:
		if err := c.flushCommit(context.Background()); err != nil {
			lifecycleLog.Warn("toggle final commit failed", "error", err)
		}
		if err := c.state.BeginDisable(); err != nil {
			lifecycleLog.Warn("toggle BeginDisable failed", "error", err)
			return
		}
		c.releaseGrab()
		c.resetKeyRepeat()
		c.clearStuckModifiers()
		if err := c.state.Finish(); err != nil {
			lifecycleLog.Warn("toggle Finish failed", "error", err)
		}
	}
}

// forceDisable tears down the grab (if any) and resets the machine,
// used when the reactivation cap is exceeded (spec.md §4.6).
func (c *Coordinator) forceDisable() {
	c.releaseGrab()
	c.resetKeyRepeat()
	c.state.ForceDisable()
}

// releaseGrab issues release_keyboard() at most once per deactivation
// (spec.md §4.6's grab protocol).
func (c *Coordinator) releaseGrab() {
	if !c.grabbed || c.grab == nil {
		return
	}
	if err := c.grab.Release(); err != nil {
		lifecycleLog.Warn("release_keyboard failed", "error", err)
	}
	c.grab = nil
	c.grabbed = false
	if c.xkb != nil {
		c.xkb.Close()
		c.xkb = nil
	}
}

func (c *Coordinator) resetKeyRepeat() {
	c.keyRepeatRate = 0
	c.keyRepeatDelay = 0
	c.disarmRepeat()
}

// RepeatC exposes the key-repeat timer's fire channel for the main
// reactor's select loop (spec.md §3's repeating_keysym/next_fire_deadline
// data model, spec.md §5's list of permitted reactor suspension points).
func (c *Coordinator) RepeatC() <-chan time.Time {
	return c.repeatTimer.C
}

// armRepeat schedules the next auto-repeat fire for the key just
// pressed, delay out from now. Only called for keys the compositor's
// keymap marks as repeating (xkb.State.KeyRepeats).
func (c *Coordinator) armRepeat(sym keynotation.Keysym, mods keynotation.Modifiers, utf8 string, delay time.Duration) {
	c.stopRepeatTimer()
	c.repeatSym, c.repeatMods, c.repeatUTF8 = sym, mods, utf8
	c.repeating = true
	c.repeatTimer.Reset(delay)
}

// disarmRepeat cancels any pending auto-repeat fire, called on key
// release, deactivation, or the reactivation cap being exceeded.
func (c *Coordinator) disarmRepeat() {
	c.repeating = false
	c.stopRepeatTimer()
}

func (c *Coordinator) stopRepeatTimer() {
	if !c.repeatTimer.Stop() {
		select {
		case <-c.repeatTimer.C:
		default:
		}
	}
}

// FireRepeat re-dispatches the currently held key as the main reactor's
// repeat timer expires, then reschedules at the configured repeat rate
// (keys/second, per zwp_input_method_keyboard_grab_v2's repeat_info).
// A rate of zero (no repeat_info received yet, or an explicit disable)
// leaves the repeat disarmed.
func (c *Coordinator) FireRepeat(ctx context.Context) {
	if !c.repeating || c.keyRepeatRate <= 0 {
		c.repeating = false
		return
	}
	sym, mods, utf8 := c.repeatSym, c.repeatMods, c.repeatUTF8
	interval := time.Second / time.Duration(c.keyRepeatRate)
	c.repeatTimer.Reset(interval)
	c.HandleKey(ctx, sym, mods, utf8)
}

// clearStuckModifiers implements the toggle signal's modifier-clear
// requirement from spec.md §6: the virtual keyboard re-broadcasts an
// all-zero modifier mask so the application sees the toggle binding's
// own modifier (e.g. the Ctrl in Ctrl+Space) as released, even though
// the physical key may still be held during the grab transition.
func (c *Coordinator) clearStuckModifiers() {
	if err := c.vk.Modifiers(0, 0, 0, 0); err != nil {
		lifecycleLog.Warn("clear stuck modifiers failed", "error", err)
	}
}

// wireGrabHandlers installs the keymap/key/modifiers/repeat_info
// handlers on a freshly granted keyboard grab (spec.md §4.6's grab
// protocol, C1's key translation, C5's input coordinator).
func (c *Coordinator) wireGrabHandlers() {
	c.grab.OnKeymap(func(format uint32, fd int, size uint32) {
		c.HandleKeymap(format, fd, size)
	})
	c.grab.OnModifiers(func(serial, depressed, latched, locked, group uint32) {
		c.HandleModifiers(depressed, latched, locked, group)
	})
	c.grab.OnRepeatInfo(func(rate, delay int32) {
		c.keyRepeatRate, c.keyRepeatDelay = rate, delay
	})
	c.grab.OnKey(func(serial, evTime, key, state uint32) {
		if c.xkb == nil {
			return
		}
		const wlKeyboardKeyStatePressed = 1
		if state != wlKeyboardKeyStatePressed {
			c.disarmRepeat()
			return
		}
		sym, text := c.xkb.Translate(key)
		mods := c.currentModifiers()
		c.HandleKey(context.Background(), keynotation.Keysym(sym), mods, text)

		if c.keyRepeatRate > 0 && c.xkb.KeyRepeats(key) {
			c.armRepeat(keynotation.Keysym(sym), mods, text, time.Duration(c.keyRepeatDelay)*time.Millisecond)
		} else {
			c.disarmRepeat()
		}
	})
}

func (c *Coordinator) currentModifiers() keynotation.Modifiers {
	return keynotation.Modifiers{
		Ctrl:  c.xkb.ModActive("Control"),
		Alt:   c.xkb.ModActive("Mod1"),
		Shift: c.xkb.ModActive("Shift"),
		Super: c.xkb.ModActive("Mod4"),
	}
}
