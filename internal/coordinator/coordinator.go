// Package coordinator implements C5 (input coordinator), C6 (lifecycle
// coordinator), and C7 (snapshot reconciler): the three handler sets
// that own the compositor/engine interaction on the main reactor
// thread (spec.md §4.5–§4.7). All three share state (the IME state
// machine, the pending register, the engine RPC client, the Wayland
// protocol proxies) tightly enough that splitting them into separate
// packages would just move shared fields behind interfaces without
// removing the coupling, so they live together as methods on one
// Coordinator, one file per component.
package coordinator

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/garypippi/jacin/internal/clipboard"
	"github.com/garypippi/jacin/internal/config"
	"github.com/garypippi/jacin/internal/enginerpc"
	"github.com/garypippi/jacin/internal/imestate"
	"github.com/garypippi/jacin/internal/keynotation"
	"github.com/garypippi/jacin/internal/logger"
	"github.com/garypippi/jacin/internal/pending"
	"github.com/garypippi/jacin/internal/xkb"
)

// SnapshotTimeout bounds every 2-RPC pull (spec.md §5).
const SnapshotTimeout = 200 * time.Millisecond

// Engine mode tags, as pushed by the engine-side glue's ModeChanged/
// Snapshot events (spec.md §4.8).
const (
	ModeInsert  = "insert"
	ModeNormal  = "normal"
	ModeCommand = "cmdline"
)

// PopupUpdater is the seam C11 implements; the coordinator never
// touches wl_shm/compositor rendering details directly.
type PopupUpdater interface {
	Update(content PopupContent)
	Hide()
}

// PopupContent is the read-model C7 hands to C11 on every update
// (SPEC_FULL.md §3).
type PopupContent struct {
	Preedit    imestate.Preedit
	Candidates imestate.Candidates
	Message    string
	Recording  string
}

// Coordinator ties C4/C5/C6/C7 together.
type Coordinator struct {
	state  *imestate.Machine
	pend   *pending.Register
	engine EngineClient
	popup  PopupUpdater
	clip   *clipboard.Bridge
	cfg    *config.Config

	im   InputMethod
	grab KeyboardGrab
	vk   VirtualKeyboardDevice
	xkb  *xkb.State

	serial    uint32
	doneCount uint32
	grabbed   bool

	lastOperator  string
	lastRecording string
	commandBuffer string

	modsDepressed, modsLatched, modsLocked, modsGroup uint32
	keyRepeatRate, keyRepeatDelay                     int32

	repeatTimer *time.Timer
	repeatSym   keynotation.Keysym
	repeatMods  keynotation.Modifiers
	repeatUTF8  string
	repeating   bool
}

// New builds a Coordinator wired to its collaborators. im is the
// zwp_input_method_v2 proxy (bound once at startup, reused across
// activations); vk is the virtual keyboard device the keymap is uploaded
// to and stuck modifiers are cleared through.
func New(engine EngineClient, im InputMethod, vk VirtualKeyboardDevice, popup PopupUpdater, clip *clipboard.Bridge, cfg *config.Config) *Coordinator {
	repeatTimer := time.NewTimer(time.Hour)
	if !repeatTimer.Stop() {
		<-repeatTimer.C
	}

	c := &Coordinator{
		state:       imestate.New(),
		pend:        pending.New(),
		engine:      engine,
		im:          im,
		vk:          vk,
		popup:       popup,
		clip:        clip,
		cfg:         cfg,
		repeatTimer: repeatTimer,
	}
	c.wireInputMethodHandlers()
	return c
}

// State exposes the underlying machine for read-only inspection (the
// doctor socket's status snapshot, C13).
func (c *Coordinator) State() *imestate.Machine { return c.state }

// Pending exposes the pending-state register for read-only inspection.
func (c *Coordinator) Pending() *pending.Register { return c.pend }

// Serial returns the done-serial last stamped on outbound commit
// requests (C13's status snapshot).
func (c *Coordinator) Serial() uint32 { return c.serial }

// Recording returns the last-observed recording register, or "" if
// none is active.
func (c *Coordinator) Recording() string { return c.lastRecording }

// CommandBuffer returns the current command-line buffer contents, or
// the text of the last CommandLine message event; it is "" after the
// command line is executed or cancelled.
func (c *Coordinator) CommandBuffer() string { return c.commandBuffer }

// EngineReady reports whether the engine RPC client has completed its
// handshake.
func (c *Coordinator) EngineReady() bool { return c.engine.Ready() }

func (c *Coordinator) content() PopupContent {
	return PopupContent{
		Preedit:    c.state.Preedit(),
		Candidates: c.state.Candidates(),
		Recording:  c.lastRecording,
	}
}

func (c *Coordinator) updatePopup(recordingRegister string) {
	c.lastRecording = recordingRegister
	content := c.content()
	content.Recording = recordingRegister
	if content.Preedit.Empty() && content.Candidates.Empty() && content.Message == "" {
		c.popup.Hide()
		return
	}
	c.popup.Update(content)
}

// flushCommit issues handle_commit and, if the engine reports non-empty
// buffer content, submits it to the compositor. Shared by the commit
// keybind (C5), deactivate, and the toggle signal (C6).
func (c *Coordinator) flushCommit(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, SnapshotTimeout)
	defer cancel()

	res, err := c.engine.Call(cctx, "handle_commit")
	if err != nil {
		return fmt.Errorf("handle_commit: %w", err)
	}
	m, _ := res.(map[string]any)
	text, hasText := m["text"].(string)
	if _, isEmpty := m["empty"]; isEmpty || !hasText {
		return nil
	}

	if err := c.im.CommitString(text); err != nil {
		return err
	}
	if err := c.im.Commit(c.serial); err != nil {
		return err
	}
	c.state.ClearPreedit()
	c.updatePopup(c.lastRecording)
	return nil
}

func syscallCloseLogged(fd int) {
	if err := syscall.Close(fd); err != nil {
		logger.For("xkb").Warn("close keymap fd", "error", err)
	}
}
