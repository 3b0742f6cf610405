package coordinator

import (
	"context"

	"github.com/garypippi/jacin/internal/clipboard"
	"github.com/garypippi/jacin/internal/enginerpc"
	"github.com/garypippi/jacin/internal/imestate"
	"github.com/garypippi/jacin/internal/logger"
	"github.com/garypippi/jacin/internal/pending"
)

var snapshotLog = logger.For("coordinator.snapshot")

// DispatchEvent implements the snapshot reconciler's (C7) event switch,
// called by the main reactor for every value read off
// enginerpc.Client.Events().
func (c *Coordinator) DispatchEvent(ctx context.Context, ev enginerpc.Event) {
	switch e := ev.(type) {
	case enginerpc.EventSnapshot:
		c.applySnapshot(e.Snapshot, false)
	case enginerpc.EventCommit:
		c.handleCommitEvent(e.Text)
	case enginerpc.EventDeleteSurrounding:
		c.handleDeleteSurroundingEvent(e.Before, e.After)
	case enginerpc.EventCandidates:
		c.handleCandidatesEvent(e.Entries, e.Selected)
	case enginerpc.EventCommandLine:
		c.handleCommandLineEvent(e.Op, e.Text)
	case enginerpc.EventModeChanged:
		c.state.ObserveMode(e.Tag)
	case enginerpc.EventYank:
		c.handleYankEvent(e.Register, e.Text)
	case enginerpc.EventReady:
		snapshotLog.Info("engine ready")
	case enginerpc.EventFatal:
		snapshotLog.Fatal("engine reported a fatal error", "error", e.Err)
	}
}

// applySnapshot implements spec.md §4.7's Snapshot(s) handler.
// justSetPrefix is true when this snapshot arrives as the direct result
// of a keystroke the input classifier just used to set a new pending
// prefix (spec.md §4.5's recognizePrefix); in that case the
// already-correct pending state must not be cleared out from under it.
func (c *Coordinator) applySnapshot(s enginerpc.Snapshot, justSetPrefix bool) {
	begin, end := preeditSpan(s.CursorByte, s.CharWidthUnderCursor, s.VisualRange)

	c.state.SetPreedit(imestate.Preedit{Text: s.PreeditText, CursorBegin: begin, CursorEnd: end})
	c.state.ObserveMode(s.ModeTag)

	if err := c.im.SetPreeditString(s.PreeditText, int32(begin), int32(end)); err != nil {
		snapshotLog.Warn("set_preedit_string failed", "error", err)
	} else if err := c.im.Commit(c.serial); err != nil {
		snapshotLog.Warn("commit after set_preedit_string failed", "error", err)
	}

	if s.BlockingFlag {
		c.pend.Store(pending.Getchar)
	} else if !justSetPrefix {
		c.pend.Clear()
	}

	c.updatePopup(s.RecordingRegister)
}

// preeditSpan implements spec.md §4.7's cursor span derivation: the
// preedit begin/end the compositor is told about is normally the
// engine's cursor byte minus one (clamped at zero) spanning one
// character's display width, but visual mode overrides it wholesale
// with the engine's own selection range.
func preeditSpan(cursorByte, charWidth int, visual *enginerpc.VisualRange) (begin, end int) {
	begin = cursorByte - 1
	if begin < 0 {
		begin = 0
	}
	end = begin + charWidth

	if visual != nil {
		return visual.Begin, visual.End
	}
	return begin, end
}

// handleYankEvent implements SPEC_FULL.md §4.15's yank-to-clipboard
// heuristic against the register the engine-side TextYankPost autocmd
// actually reported, rather than conflating it with macro-recording
// state: a yank is only forwarded to the desktop clipboard when it
// landed in the "+" or "*" register.
func (c *Coordinator) handleYankEvent(register, text string) {
	if !clipboard.IsClipboardRegister(register) || !c.clip.Enabled() || text == "" {
		return
	}
	if err := c.clip.Write(context.Background(), text); err != nil {
		snapshotLog.Warn("clipboard write after yank failed", "error", err)
	}
}

// handleCommitEvent implements spec.md §4.7's Commit(text) handler.
func (c *Coordinator) handleCommitEvent(text string) {
	if err := c.im.CommitString(text); err != nil {
		snapshotLog.Warn("commit_string failed", "error", err)
		return
	}
	if err := c.im.Commit(c.serial); err != nil {
		snapshotLog.Warn("commit after commit_string failed", "error", err)
		return
	}
	c.state.ClearPreedit()
	if err := c.im.SetPreeditString("", 0, 0); err != nil {
		snapshotLog.Warn("clearing preedit after commit failed", "error", err)
		return
	}
	if err := c.im.Commit(c.serial); err != nil {
		snapshotLog.Warn("commit after clearing preedit failed", "error", err)
	}
	c.updatePopup(c.lastRecording)
}

// handleDeleteSurroundingEvent implements spec.md §4.7's
// DeleteSurrounding handler.
func (c *Coordinator) handleDeleteSurroundingEvent(before, after int) {
	if err := c.im.DeleteSurroundingText(uint32(before), uint32(after)); err != nil {
		snapshotLog.Warn("delete_surrounding_text failed", "error", err)
		return
	}
	if err := c.im.Commit(c.serial); err != nil {
		snapshotLog.Warn("commit after delete_surrounding_text failed", "error", err)
	}
}

// handleCandidatesEvent implements spec.md §4.7's Candidates handler.
func (c *Coordinator) handleCandidatesEvent(entries []string, selected int) {
	c.state.SetCandidates(imestate.Candidates{Entries: entries, SelectedIndex: selected})
	c.updatePopup(c.lastRecording)
}

// handleCommandLineEvent implements spec.md §4.7's CommandLine handler.
func (c *Coordinator) handleCommandLineEvent(op enginerpc.CommandLineOp, text string) {
	switch op {
	case enginerpc.CommandLineEnter, enginerpc.CommandLineUpdate:
		c.pend.Store(pending.CommandLine)
		c.commandBuffer = text
	case enginerpc.CommandLineExecute, enginerpc.CommandLineCancel:
		c.pend.Clear()
		c.commandBuffer = ""
	case enginerpc.CommandLineMessage:
		c.commandBuffer = text
	}

	content := c.content()
	content.Message = c.commandBuffer
	c.popup.Update(content)
}
