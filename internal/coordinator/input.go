package coordinator

import (
	"context"
	"strings"

	"github.com/garypippi/jacin/internal/imestate"
	"github.com/garypippi/jacin/internal/keynotation"
	"github.com/garypippi/jacin/internal/logger"
	"github.com/garypippi/jacin/internal/pending"
)

var inputLog = logger.For("coordinator.input")

// HandleKey implements the input coordinator (C5): the per-keystroke
// algorithm spec.md §4.5 spells out step by step. sym/mods/utf8 are
// already XKB-resolved by the caller (the lifecycle coordinator's grab
// key handler, via internal/xkb).
func (c *Coordinator) HandleKey(ctx context.Context, sym keynotation.Keysym, mods keynotation.Modifiers, utf8 string) {
	if c.state.Lifecycle() != imestate.Enabled {
		return
	}

	notation, class := keynotation.Translate(sym, mods, utf8)
	if class == keynotation.ClassNoOp {
		return
	}

	c.state.ResetReactivation()

	if c.pend.Load() == pending.Getchar {
		c.sendKey(notation)
		return
	}

	if notation == c.cfg.Keybinds.Commit {
		if err := c.flushCommit(ctx); err != nil {
			inputLog.Warn("commit keybind failed", "error", err)
		}
		return
	}

	if notation == "<BS>" && c.state.Preedit().Empty() {
		c.handleBackspaceKey(ctx)
		return
	}

	justSetPrefix := c.recognizePrefix(notation)
	c.dispatchByMode(ctx, notation, justSetPrefix)
}

func (c *Coordinator) sendKey(notation string) {
	if err := c.engine.SendKey(notation); err != nil {
		inputLog.Warn("send_key failed", "error", err)
	}
}

// handleBackspaceKey implements step 4 of spec.md §4.5: backspace with
// an empty preedit asks the engine whether its own buffer is empty too;
// if so the delete must fall through to the surrounding text instead of
// being swallowed by the engine.
func (c *Coordinator) handleBackspaceKey(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, SnapshotTimeout)
	defer cancel()

	res, err := c.engine.Call(cctx, "handle_bs")
	if err != nil {
		inputLog.Warn("handle_bs failed", "error", err)
		return
	}
	m, _ := res.(map[string]any)
	if _, deleteSurrounding := m["delete_surrounding"]; deleteSurrounding {
		if err := c.im.DeleteSurroundingText(1, 0); err != nil {
			inputLog.Warn("delete_surrounding_text failed", "error", err)
			return
		}
		if err := c.im.Commit(c.serial); err != nil {
			inputLog.Warn("commit after delete_surrounding_text failed", "error", err)
		}
		return
	}
	// {processing}: the engine already applied <BS> internally; the
	// arriving Snapshot event updates the preedit cache as usual.
}

// recognizePrefix implements spec.md §4.5's pending-state prefix
// recognition table, run before the key is dispatched to the engine.
// It reports whether it just stored a new non-None state, so the
// snapshot reconciler (C7) knows not to clear it out from under the
// keystroke that produced it (spec.md §4.7).
func (c *Coordinator) recognizePrefix(notation string) bool {
	mode := c.state.Mode()
	current := c.pend.Load()

	switch {
	case mode == ModeNormal && notation == `"` && current == pending.None:
		c.pend.Store(pending.NormalRegister)
		return true

	case mode == ModeInsert && notation == "<C-r>" && current == pending.None:
		c.pend.Store(pending.InsertRegister)
		return true

	case mode == ModeNormal && isOperatorKey(notation) && current == pending.None:
		c.lastOperator = notation
		c.pend.Store(pending.Motion)
		return true

	case current == pending.Motion && (notation == "i" || notation == "a"):
		c.pend.Store(pending.TextObject)
		return true
	}

	return false
}

func isOperatorKey(notation string) bool {
	switch notation {
	case "d", "c", "y", ">", "<":
		return true
	default:
		return false
	}
}

// dispatchByMode implements the mode/pending classification table of
// spec.md §4.5 step 5.
func (c *Coordinator) dispatchByMode(ctx context.Context, notation string, justSetPrefix bool) {
	mode := c.state.Mode()
	current := c.pend.Load()

	switch {
	case mode == ModeInsert && current == pending.None:
		c.sendKey(notation)

	case mode == ModeInsert && current == pending.InsertRegister:
		c.maybeClipboardInsertRegister(notation)

	case mode == ModeCommand || current == pending.CommandLine:
		c.sendKey(notation)

	case mode == ModeNormal:
		c.sendKey(notation)
		c.pullSnapshot(ctx, justSetPrefix)

	default:
		c.sendKey(notation)
	}
}

// maybeClipboardInsertRegister intercepts `<C-r>+`/`<C-r>*` to read from
// the desktop clipboard (C15) rather than forwarding the register key
// to the engine, which has no notion of the system clipboard.
func (c *Coordinator) maybeClipboardInsertRegister(registerKey string) {
	defer c.pend.Store(pending.None)

	if clipboardRegister(registerKey) && c.clip.Enabled() {
		text, err := c.clip.Read()
		if err != nil {
			inputLog.Warn("clipboard read failed, falling back to engine register", "error", err)
			c.sendKey(registerKey)
			return
		}
		for _, r := range text {
			c.sendKey(escapeAngleBrackets(string(r)))
		}
		return
	}
	c.sendKey(registerKey)
}

func clipboardRegister(key string) bool {
	return key == "+" || key == "*"
}

// escapeAngleBrackets guards a literal "<" from being misread as the
// start of editor notation when pasted text is replayed key by key.
func escapeAngleBrackets(s string) string {
	if s == "<" {
		return "<lt>"
	}
	return strings.ReplaceAll(s, "<", "<lt>")
}

// pullSnapshot implements the Normal-mode 2-RPC pull of spec.md §4.5/§5:
// send_key followed by a synchronous snapshot() bounded at
// SnapshotTimeout, dispatched to the snapshot reconciler (C7) on
// arrival. A timeout is not an error: the next asynchronous snapshot
// eventually reconciles state, per spec.md §5's cancellation rule.
func (c *Coordinator) pullSnapshot(ctx context.Context, justSetPrefix bool) {
	cctx, cancel := context.WithTimeout(ctx, SnapshotTimeout)
	defer cancel()

	snap, err := c.engine.Snapshot(cctx)
	if err != nil {
		inputLog.Warn("snapshot pull timed out or failed", "error", err)
		return
	}
	c.applySnapshot(snap, justSetPrefix)
}
