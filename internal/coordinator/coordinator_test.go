package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/garypippi/jacin/internal/clipboard"
	"github.com/garypippi/jacin/internal/config"
	"github.com/garypippi/jacin/internal/enginerpc"
	"github.com/garypippi/jacin/internal/imestate"
	"github.com/garypippi/jacin/internal/keynotation"
	"github.com/garypippi/jacin/internal/pending"
)

// newTestCoordinator builds a Coordinator with the IO-free collaborators
// wired directly (imestate.Machine, pending.Register, an uninitialized
// clipboard.Bridge) and fakes standing in for the compositor/engine
// collaborators (wire.go's InputMethod/KeyboardGrab/VirtualKeyboardDevice/
// EngineClient seams), so C5/C6/C7 can be driven end to end without any
// Wayland or msgpack-RPC wire traffic. Tests that need to inspect or
// script a fake retrieve it with a type assertion, e.g.
// c.im.(*fakeInputMethod).
func newTestCoordinator() *Coordinator {
	repeatTimer := time.NewTimer(time.Hour)
	if !repeatTimer.Stop() {
		<-repeatTimer.C
	}
	return &Coordinator{
		state:       imestate.New(),
		pend:        pending.New(),
		clip:        clipboard.New(),
		cfg:         &config.DefaultConfig,
		engine:      &fakeEngineClient{},
		im:          &fakeInputMethod{},
		vk:          &fakeVirtualKeyboard{},
		popup:       noopPopup{},
		repeatTimer: repeatTimer,
	}
}

func enterMode(c *Coordinator, mode string) {
	c.state.ObserveMode(mode)
}

// mustEnable drives the state machine straight to Enabled in the given
// mode, bypassing the grab_keyboard/keymap round trip HandleActivate and
// HandleKeymap normally require; HandleKey never touches xkb directly,
// so this is sufficient to exercise C5's per-keystroke algorithm.
func mustEnable(t *testing.T, c *Coordinator, mode string) {
	t.Helper()
	if err := c.state.BeginEnable(false); err != nil {
		t.Fatalf("BeginEnable: %v", err)
	}
	if err := c.state.CompleteEnable(mode); err != nil {
		t.Fatalf("CompleteEnable: %v", err)
	}
}

func TestRecognizePrefixNormalRegister(t *testing.T) {
	c := newTestCoordinator()
	enterMode(c, ModeNormal)

	justSet := c.recognizePrefix(`"`)
	if !justSet {
		t.Fatal("expected recognizePrefix to report a freshly set prefix")
	}
	if got := c.pend.Load(); got != pending.NormalRegister {
		t.Fatalf("pending = %v, want NormalRegister", got)
	}
}

func TestRecognizePrefixInsertRegister(t *testing.T) {
	c := newTestCoordinator()
	enterMode(c, ModeInsert)

	if !c.recognizePrefix("<C-r>") {
		t.Fatal("expected recognizePrefix to report a freshly set prefix")
	}
	if got := c.pend.Load(); got != pending.InsertRegister {
		t.Fatalf("pending = %v, want InsertRegister", got)
	}
}

func TestRecognizePrefixOperatorThenTextObject(t *testing.T) {
	c := newTestCoordinator()
	enterMode(c, ModeNormal)

	if !c.recognizePrefix("d") {
		t.Fatal("expected operator key to set Motion pending")
	}
	if got := c.pend.Load(); got != pending.Motion {
		t.Fatalf("pending = %v, want Motion", got)
	}
	if c.lastOperator != "d" {
		t.Fatalf("lastOperator = %q, want %q", c.lastOperator, "d")
	}

	if !c.recognizePrefix("i") {
		t.Fatal("expected 'i' after Motion to promote to TextObject")
	}
	if got := c.pend.Load(); got != pending.TextObject {
		t.Fatalf("pending = %v, want TextObject", got)
	}
}

func TestRecognizePrefixIgnoresNonPrefixKeys(t *testing.T) {
	c := newTestCoordinator()
	enterMode(c, ModeNormal)

	if c.recognizePrefix("x") {
		t.Fatal("ordinary key should not be recognized as a prefix")
	}
	if got := c.pend.Load(); got != pending.None {
		t.Fatalf("pending = %v, want None", got)
	}
}

func TestRecognizePrefixDoesNotReenterWhileAlreadyPending(t *testing.T) {
	c := newTestCoordinator()
	enterMode(c, ModeNormal)
	c.pend.Store(pending.NormalRegister)

	if c.recognizePrefix(`"`) {
		t.Fatal("should not re-trigger prefix recognition while already pending")
	}
}

func TestEscapeAngleBrackets(t *testing.T) {
	cases := map[string]string{
		"a":   "a",
		"<":   "<lt>",
		"<<":  "<lt><lt>",
		"a<b": "a<lt>b",
	}
	for in, want := range cases {
		if got := escapeAngleBrackets(in); got != want {
			t.Errorf("escapeAngleBrackets(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestClipboardRegister(t *testing.T) {
	if !clipboardRegister("+") || !clipboardRegister("*") {
		t.Fatal("+ and * must be recognized as clipboard registers")
	}
	if clipboardRegister("a") {
		t.Fatal("named registers must not be treated as clipboard registers")
	}
}

func TestIsOperatorKey(t *testing.T) {
	for _, op := range []string{"d", "c", "y", ">", "<"} {
		if !isOperatorKey(op) {
			t.Errorf("isOperatorKey(%q) = false, want true", op)
		}
	}
	if isOperatorKey("x") {
		t.Fatal("isOperatorKey(\"x\") = true, want false")
	}
}

func TestPreeditSpanNormalMode(t *testing.T) {
	begin, end := preeditSpan(5, 1, nil)
	if begin != 4 || end != 5 {
		t.Fatalf("preeditSpan(5,1,nil) = (%d,%d), want (4,5)", begin, end)
	}
}

func TestPreeditSpanClampsAtZero(t *testing.T) {
	begin, end := preeditSpan(0, 1, nil)
	if begin != 0 || end != 1 {
		t.Fatalf("preeditSpan(0,1,nil) = (%d,%d), want (0,1)", begin, end)
	}
}

func TestPreeditSpanVisualRangeOverrides(t *testing.T) {
	begin, end := preeditSpan(5, 1, &enginerpc.VisualRange{Begin: 2, End: 9})
	if begin != 2 || end != 9 {
		t.Fatalf("preeditSpan with visual range = (%d,%d), want (2,9)", begin, end)
	}
}

func TestHandleDoneIncrementsSerialFromZero(t *testing.T) {
	c := newTestCoordinator()

	c.HandleDone()
	if c.serial != 0 {
		t.Fatalf("first Done should yield serial 0, got %d", c.serial)
	}
	c.HandleDone()
	if c.serial != 1 {
		t.Fatalf("second Done should yield serial 1, got %d", c.serial)
	}
}

func TestHandleModifiersUpdatesCache(t *testing.T) {
	c := newTestCoordinator()
	c.HandleModifiers(1, 2, 3, 4)
	if c.modsDepressed != 1 || c.modsLatched != 2 || c.modsLocked != 3 || c.modsGroup != 4 {
		t.Fatalf("modifier cache not updated: %+v", c)
	}
}

func TestHandleCommandLineEventTracksBuffer(t *testing.T) {
	c := newTestCoordinator()
	c.popup = noopPopup{}

	c.handleCommandLineEvent(enginerpc.CommandLineEnter, ":")
	if got := c.pend.Load(); got != pending.CommandLine {
		t.Fatalf("pending = %v, want CommandLine", got)
	}
	if c.commandBuffer != ":" {
		t.Fatalf("commandBuffer = %q, want %q", c.commandBuffer, ":")
	}

	c.handleCommandLineEvent(enginerpc.CommandLineExecute, ":w")
	if got := c.pend.Load(); got != pending.None {
		t.Fatalf("pending = %v, want None after execute", got)
	}
	if c.commandBuffer != "" {
		t.Fatalf("commandBuffer should be cleared after execute, got %q", c.commandBuffer)
	}
}

type noopPopup struct{}

func (noopPopup) Update(PopupContent) {}
func (noopPopup) Hide()               {}

// TestHandleActivateGrabsKeyboardExactlyOnce covers spec.md §8's
// "grab_keyboard exactly once per activation before release" invariant.
func TestHandleActivateGrabsKeyboardExactlyOnce(t *testing.T) {
	c := newTestCoordinator()
	im := c.im.(*fakeInputMethod)

	c.HandleActivate()

	if im.grabCount != 1 {
		t.Fatalf("grabCount = %d, want 1", im.grabCount)
	}
	if c.state.Lifecycle() != imestate.Enabling {
		t.Fatalf("lifecycle = %v, want Enabling", c.state.Lifecycle())
	}
	if !c.grabbed {
		t.Fatal("expected grabbed = true after a successful grab")
	}
}

// TestReactivationCapForcesDisable covers spec.md §8 scenario 5: a third
// consecutive activate while already Enabled forces Disabled without
// ever issuing a second grab_keyboard call.
func TestReactivationCapForcesDisable(t *testing.T) {
	c := newTestCoordinator()
	im := c.im.(*fakeInputMethod)

	c.HandleActivate()
	if err := c.state.CompleteEnable(ModeNormal); err != nil {
		t.Fatalf("CompleteEnable: %v", err)
	}

	c.HandleActivate()
	if c.state.Lifecycle() != imestate.Enabled {
		t.Fatalf("lifecycle = %v, want Enabled after one reactivation", c.state.Lifecycle())
	}
	c.HandleActivate()
	if c.state.Lifecycle() != imestate.Enabled {
		t.Fatalf("lifecycle = %v, want Enabled after two reactivations", c.state.Lifecycle())
	}
	c.HandleActivate()

	if c.state.Lifecycle() != imestate.Disabled {
		t.Fatalf("lifecycle = %v, want Disabled once the reactivation cap is exceeded", c.state.Lifecycle())
	}
	if im.grabCount != 1 {
		t.Fatalf("grabCount = %d, want 1 (no second grab should ever be issued)", im.grabCount)
	}
}

// TestHandleToggleSignalActivatesAndDeactivates covers spec.md §8's
// out-of-band toggle path in both directions.
func TestHandleToggleSignalActivatesAndDeactivates(t *testing.T) {
	c := newTestCoordinator()
	im := c.im.(*fakeInputMethod)
	vk := c.vk.(*fakeVirtualKeyboard)

	c.HandleToggleSignal()
	if c.state.Lifecycle() != imestate.Enabling {
		t.Fatalf("lifecycle = %v, want Enabling", c.state.Lifecycle())
	}
	if im.grabCount != 1 {
		t.Fatalf("grabCount = %d, want 1", im.grabCount)
	}
	if err := c.state.CompleteEnable(ModeNormal); err != nil {
		t.Fatalf("CompleteEnable: %v", err)
	}

	c.HandleToggleSignal()
	if c.state.Lifecycle() != imestate.Disabled {
		t.Fatalf("lifecycle = %v, want Disabled", c.state.Lifecycle())
	}
	if !im.grab.released {
		t.Fatal("expected release_keyboard to have been issued")
	}
	if vk.modifiersCalls != 1 {
		t.Fatalf("modifiersCalls = %d, want 1 (clearStuckModifiers)", vk.modifiersCalls)
	}
}

// TestHandleKeyEnableThenASCII covers spec.md §8 scenario 1: once
// Enabled in insert mode, an ordinary ASCII key is forwarded verbatim
// via send_key with no snapshot pull.
func TestHandleKeyEnableThenASCII(t *testing.T) {
	c := newTestCoordinator()
	engine := c.engine.(*fakeEngineClient)
	mustEnable(t, c, ModeInsert)

	c.HandleKey(context.Background(), keynotation.Keysym('a'), keynotation.Modifiers{}, "a")

	if len(engine.sentKeys) != 1 || engine.sentKeys[0] != "a" {
		t.Fatalf("sentKeys = %v, want [\"a\"]", engine.sentKeys)
	}
}

// TestHandleKeyCommitKeybindFlushesBuffer covers spec.md §8 scenario 2:
// the configured commit keybind (<C-CR>) triggers handle_commit and, for
// non-empty buffer content, commit_string followed by commit(serial).
func TestHandleKeyCommitKeybindFlushesBuffer(t *testing.T) {
	c := newTestCoordinator()
	im := c.im.(*fakeInputMethod)
	engine := c.engine.(*fakeEngineClient)
	mustEnable(t, c, ModeInsert)

	engine.callFn = func(ctx context.Context, function string, args ...any) (any, error) {
		if function == "handle_commit" {
			return map[string]any{"text": "今日は"}, nil
		}
		return nil, nil
	}

	c.HandleKey(context.Background(), keynotation.KeyReturn, keynotation.Modifiers{Ctrl: true}, "")

	if len(im.commitStringCalls) != 1 || im.commitStringCalls[0] != "今日は" {
		t.Fatalf("commitStringCalls = %v, want [\"今日は\"]", im.commitStringCalls)
	}
	if len(im.commitCalls) != 1 {
		t.Fatalf("commitCalls = %v, want exactly one commit", im.commitCalls)
	}
	if !c.state.Preedit().Empty() {
		t.Fatal("expected preedit cache cleared after commit")
	}
}

// TestHandleCommitEventClearsPreeditDisplay covers the async half of
// spec.md §8 scenario 2: an EventCommit notification commits the text
// and then separately clears the compositor's preedit display.
func TestHandleCommitEventClearsPreeditDisplay(t *testing.T) {
	c := newTestCoordinator()
	im := c.im.(*fakeInputMethod)

	c.DispatchEvent(context.Background(), enginerpc.EventCommit{Text: "今日は"})

	if len(im.commitStringCalls) != 1 || im.commitStringCalls[0] != "今日は" {
		t.Fatalf("commitStringCalls = %v, want [\"今日は\"]", im.commitStringCalls)
	}
	if len(im.commitCalls) != 2 {
		t.Fatalf("commitCalls = %v, want 2 (one after commit_string, one after clearing preedit)", im.commitCalls)
	}
	last := im.preeditCalls[len(im.preeditCalls)-1]
	if last.text != "" || last.begin != 0 || last.end != 0 {
		t.Fatalf("final preedit call = %+v, want empty clear", last)
	}
}

// TestHandleKeyBackspaceOnEmptyPreeditDeletesSurrounding covers spec.md
// §8 scenario 3: backspace with nothing cached in the preedit asks the
// engine whether its own buffer is empty; "delete_surrounding" in the
// reply falls through to delete_surrounding_text instead of forwarding
// the key, and no send_key is ever issued.
func TestHandleKeyBackspaceOnEmptyPreeditDeletesSurrounding(t *testing.T) {
	c := newTestCoordinator()
	im := c.im.(*fakeInputMethod)
	engine := c.engine.(*fakeEngineClient)
	mustEnable(t, c, ModeInsert)

	engine.callFn = func(ctx context.Context, function string, args ...any) (any, error) {
		if function == "handle_bs" {
			return map[string]any{"delete_surrounding": true}, nil
		}
		return nil, nil
	}

	c.HandleKey(context.Background(), keynotation.KeyBackSpace, keynotation.Modifiers{}, "")

	if len(im.deleteSurroundingCalls) != 1 || im.deleteSurroundingCalls[0] != [2]uint32{1, 0} {
		t.Fatalf("deleteSurroundingCalls = %v, want [[1 0]]", im.deleteSurroundingCalls)
	}
	if len(engine.sentKeys) != 0 {
		t.Fatalf("sentKeys = %v, want none (backspace must not be forwarded)", engine.sentKeys)
	}
}

// TestHandleKeyNormalModeMotion covers spec.md §8 scenario 4: an
// operator-motion pair in Normal mode issues send_key plus a synchronous
// snapshot pull after each key, and the pending state returns to None
// once the motion completes (i.e. once the follow-up key no longer just
// set a fresh prefix).
func TestHandleKeyNormalModeMotion(t *testing.T) {
	c := newTestCoordinator()
	im := c.im.(*fakeInputMethod)
	engine := c.engine.(*fakeEngineClient)
	mustEnable(t, c, ModeNormal)

	engine.snapshotFn = func(ctx context.Context) (enginerpc.Snapshot, error) {
		return enginerpc.Snapshot{PreeditText: "world", CursorByte: 1, CharWidthUnderCursor: 1, ModeTag: ModeNormal}, nil
	}

	c.HandleKey(context.Background(), keynotation.Keysym('d'), keynotation.Modifiers{}, "d")
	if got := c.pend.Load(); got != pending.Motion {
		t.Fatalf("pending = %v, want Motion", got)
	}

	c.HandleKey(context.Background(), keynotation.Keysym('w'), keynotation.Modifiers{}, "w")
	if got := c.pend.Load(); got != pending.None {
		t.Fatalf("pending = %v, want None once the motion completes", got)
	}

	if len(engine.sentKeys) != 2 || engine.sentKeys[0] != "d" || engine.sentKeys[1] != "w" {
		t.Fatalf("sentKeys = %v, want [\"d\" \"w\"]", engine.sentKeys)
	}
	last := im.preeditCalls[len(im.preeditCalls)-1]
	if last.text != "world" || last.begin != 0 || last.end != 1 {
		t.Fatalf("final preedit span = %+v, want {world 0 1}", last)
	}
}

// TestHandleKeyBlockingGetcharPending covers spec.md §8 scenario 6: once
// a snapshot reports blocking_flag, the very next key is forwarded with
// no mode classification at all, and pending state clears only once a
// later snapshot reports blocking_flag=false.
func TestHandleKeyBlockingGetcharPending(t *testing.T) {
	c := newTestCoordinator()
	engine := c.engine.(*fakeEngineClient)
	mustEnable(t, c, ModeNormal)

	engine.snapshotFn = func(ctx context.Context) (enginerpc.Snapshot, error) {
		return enginerpc.Snapshot{PreeditText: "abc", ModeTag: ModeNormal, BlockingFlag: true}, nil
	}
	c.HandleKey(context.Background(), keynotation.Keysym('f'), keynotation.Modifiers{}, "f")
	if got := c.pend.Load(); got != pending.Getchar {
		t.Fatalf("pending = %v, want Getchar", got)
	}

	c.HandleKey(context.Background(), keynotation.Keysym('x'), keynotation.Modifiers{}, "x")
	if got := c.pend.Load(); got != pending.Getchar {
		t.Fatalf("pending = %v, want still Getchar (no snapshot has resolved it yet)", got)
	}

	c.DispatchEvent(context.Background(), enginerpc.EventSnapshot{
		Snapshot: enginerpc.Snapshot{PreeditText: "abc", ModeTag: ModeNormal, BlockingFlag: false},
	})
	if got := c.pend.Load(); got != pending.None {
		t.Fatalf("pending = %v, want None once blocking_flag clears", got)
	}

	if len(engine.sentKeys) != 2 || engine.sentKeys[0] != "f" || engine.sentKeys[1] != "x" {
		t.Fatalf("sentKeys = %v, want [\"f\" \"x\"] (both keys forwarded verbatim)", engine.sentKeys)
	}
}

// TestRepeatArmsAndFiresAtConfiguredRate grounds spec.md §3's
// (repeating_keysym, next_fire_deadline, rate, delay) data model against
// the coordinator's timer plumbing: a repeating key arms the timer, and
// firing it re-dispatches the same key and reschedules at 1/rate.
func TestRepeatArmsAndFiresAtConfiguredRate(t *testing.T) {
	c := newTestCoordinator()
	engine := c.engine.(*fakeEngineClient)
	mustEnable(t, c, ModeInsert)
	c.keyRepeatRate = 25

	c.armRepeat(keynotation.Keysym('a'), keynotation.Modifiers{}, "a", time.Millisecond)
	select {
	case <-c.RepeatC():
	case <-time.After(time.Second):
		t.Fatal("repeat timer never fired")
	}

	c.FireRepeat(context.Background())

	if len(engine.sentKeys) != 1 || engine.sentKeys[0] != "a" {
		t.Fatalf("sentKeys = %v, want [\"a\"] redispatched from the repeat fire", engine.sentKeys)
	}
	if !c.repeating {
		t.Fatal("expected repeat to remain armed after firing at a positive rate")
	}
	c.disarmRepeat()
}

// TestDisarmRepeatStopsFiring covers the release/deactivation half of
// spec.md §5's reactor suspension points: once disarmed, FireRepeat is a
// no-op even if called directly.
func TestDisarmRepeatStopsFiring(t *testing.T) {
	c := newTestCoordinator()
	engine := c.engine.(*fakeEngineClient)
	mustEnable(t, c, ModeInsert)
	c.keyRepeatRate = 25

	c.armRepeat(keynotation.Keysym('a'), keynotation.Modifiers{}, "a", time.Hour)
	c.disarmRepeat()
	c.FireRepeat(context.Background())

	if len(engine.sentKeys) != 0 {
		t.Fatalf("sentKeys = %v, want none once disarmed", engine.sentKeys)
	}
}
