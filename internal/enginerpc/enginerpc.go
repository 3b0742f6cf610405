// Package enginerpc implements the engine RPC client (C2): it owns the
// headless engine child process, speaks msgpack-RPC over its stdio, and
// exposes typed request/response operations plus an asynchronous event
// stream to the main reactor. Events travel on a bounded channel;
// requests are encoded straight onto the child's stdin by the calling
// goroutine, with no request channel in between.
package enginerpc

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/garypippi/jacin/internal/logger"
)

// ChannelCapacity bounds the event channel: a reconciler that falls
// behind blocks the reader goroutine rather than growing memory without
// bound. Outbound requests are not queued, so this bound does not apply
// to them.
const ChannelCapacity = 64

// msgpack-RPC message type tags (Neovim convention).
const (
	msgTypeRequest      = 0
	msgTypeResponse     = 1
	msgTypeNotification = 2
)

// Snapshot is a single structured readout of engine state (spec.md
// §4.2).
type Snapshot struct {
	PreeditText          string `msgpack:"preedit_text"`
	CursorByte           int    `msgpack:"cursor_byte"`
	ModeTag              string `msgpack:"mode_tag"`
	BlockingFlag         bool   `msgpack:"blocking_flag"`
	CharWidthUnderCursor int    `msgpack:"char_width_under_cursor"`
	RecordingRegister    string `msgpack:"recording_register"`
	VisualRange          *VisualRange `msgpack:"visual_range"`
}

// VisualRange overrides the preedit cursor span when the engine is in
// visual mode.
type VisualRange struct {
	Begin int `msgpack:"begin"`
	End   int `msgpack:"end"`
}

// CommandLineOp tags the kind of command-line event (spec.md §4.2).
type CommandLineOp int

const (
	CommandLineEnter CommandLineOp = iota
	CommandLineUpdate
	CommandLineExecute
	CommandLineCancel
	CommandLineMessage
)

// Event is the tagged union of asynchronous notifications the worker
// delivers to the main thread (spec.md §4.2). Concrete types below
// implement it.
type Event interface{ isEvent() }

type EventReady struct{}

type EventSnapshot struct{ Snapshot Snapshot }

type EventCommit struct{ Text string }

type EventDeleteSurrounding struct{ Before, After int }

type EventCandidates struct {
	Entries  []string
	Selected int
}

type EventCommandLine struct {
	Op   CommandLineOp
	Text string
}

type EventModeChanged struct{ Tag string }

// EventYank reports the register and text a TextYankPost autocmd
// observed after a y operation (SPEC_FULL.md §4.15). Register is ""
// for the unnamed register.
type EventYank struct{ Register, Text string }

// EventFatal signals a worker-thread error (crash, broken pipe, decode
// failure beyond recovery) that the main thread must treat as fatal
// (spec.md §7).
type EventFatal struct{ Err error }

func (EventReady) isEvent()              {}
func (EventSnapshot) isEvent()           {}
func (EventCommit) isEvent()             {}
func (EventDeleteSurrounding) isEvent()  {}
func (EventCandidates) isEvent()         {}
func (EventCommandLine) isEvent()        {}
func (EventModeChanged) isEvent()        {}
func (EventYank) isEvent()               {}
func (EventFatal) isEvent()              {}

// pendingCall tracks an outstanding call() awaiting its response.
type pendingCall struct {
	reply chan callResult
}

type callResult struct {
	value any
	err   error
}

// Client owns the engine child process and its bounded event channel.
// Safe for concurrent use from the main thread (SendKey/Call/Snapshot)
// and reads only from Events() on that same thread, per spec.md §5.
type Client struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	encMu sync.Mutex
	enc   *msgpack.Encoder

	events chan Event

	mu      sync.Mutex
	pending map[uint64]*pendingCall
	nextID  uint64

	closed atomic.Bool
	ready  atomic.Bool
}

// Start spawns the engine at path with args, wires its stdio to a
// msgpack-RPC framing, and starts the worker reactor goroutine that owns
// all I/O with the child.
func Start(ctx context.Context, path string, args ...string) (*Client, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("engine stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("engine stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start engine process: %w", err)
	}

	c := newClient(stdin, stdout)
	c.cmd = cmd
	go c.readLoop()
	return c, nil
}

// newClient builds a Client over an already-connected duplex stream.
// Start uses it for the child's stdio; tests use it directly with an
// in-memory pipe in place of the real child process.
func newClient(w io.WriteCloser, r io.ReadCloser) *Client {
	return &Client{
		stdin:   w,
		stdout:  r,
		enc:     msgpack.NewEncoder(w),
		events:  make(chan Event, ChannelCapacity),
		pending: make(map[uint64]*pendingCall),
	}
}

// Events returns the channel of asynchronous notifications. Must be
// drained by the main reactor; it is bounded at ChannelCapacity.
func (c *Client) Events() <-chan Event { return c.events }

// SendKey fire-and-forget injects a key notation string (spec.md
// §4.2's send_key) via Neovim's nvim_input, the standard low-level key
// feed entry point any Neovim RPC client uses. It is sent as a
// msgpack-RPC notification: no response is expected.
func (c *Client) SendKey(notation string) error {
	return c.notify("nvim_input", []any{notation})
}

// Call performs a synchronous engine-side function call, blocking until
// the response arrives or ctx is done. Used both for special-key
// check-and-act functions (handle_bs, handle_commit) and, via Snapshot,
// for the 2-RPC pull in normal mode.
//
// function names one of the Lua functions the engineglue bootstrap
// registers under _G.jacin (collect_snapshot, handle_bs, handle_commit,
// shutdown). Neovim's RPC server only dispatches its fixed nvim_*
// API over msgpack-RPC, so every call is routed through
// nvim_exec_lua, the standard bridge any external Neovim RPC client
// uses to invoke arbitrary Lua.
func (c *Client) Call(ctx context.Context, function string, args ...any) (any, error) {
	id, reply := c.registerPending()
	defer c.unregisterPending(id)

	code := fmt.Sprintf("return _G.jacin.%s(...)", function)
	if err := c.request(id, "nvim_exec_lua", []any{code, args}); err != nil {
		return nil, err
	}

	select {
	case res := <-reply:
		return res.value, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("engine call %q: %w", function, ctx.Err())
	}
}

// Snapshot invokes the engine-side snapshot collector (collect_snapshot)
// and decodes the result into a Snapshot. Callers performing the 2-RPC
// pull should pass a context bounded to 200ms per spec.md §5.
func (c *Client) Snapshot(ctx context.Context) (Snapshot, error) {
	raw, err := c.Call(ctx, "collect_snapshot")
	if err != nil {
		return Snapshot{}, err
	}
	return decodeSnapshot(raw)
}

// Shutdown sends an orderly shutdown call and waits up to 1s for the
// child process to exit (spec.md §5's cancellation rule).
func (c *Client) Shutdown(ctx context.Context) error {
	if c.closed.Swap(true) {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_, _ = c.Call(shutdownCtx, "shutdown")

	_ = c.stdin.Close()

	done := make(chan error, 1)
	go func() {
		if c.cmd != nil {
			done <- c.cmd.Wait()
			return
		}
		done <- c.stdout.Close()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(time.Second):
		if c.cmd != nil && c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
		return fmt.Errorf("engine did not exit within 1s of shutdown")
	}
}

func (c *Client) registerPending() (uint64, chan callResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	reply := make(chan callResult, 1)
	c.pending[id] = &pendingCall{reply: reply}
	return id, reply
}

func (c *Client) unregisterPending(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

// frame is a raw msgpack-RPC message: [type, ...]. Encoding a []any as
// the top-level value produces the required fixarray framing.
type frame []any

func (c *Client) request(id uint64, method string, args []any) error {
	c.encMu.Lock()
	defer c.encMu.Unlock()
	if args == nil {
		args = []any{}
	}
	return c.enc.Encode(frame{msgTypeRequest, id, method, args})
}

func (c *Client) notify(method string, args []any) error {
	c.encMu.Lock()
	defer c.encMu.Unlock()
	if args == nil {
		args = []any{}
	}
	return c.enc.Encode(frame{msgTypeNotification, method, args})
}

// readLoop is the worker reactor's read side: it decodes frames from the
// engine's stdout and either completes a pending call or converts a
// notification into an Event, forever, until the stream breaks.
func (c *Client) readLoop() {
	dec := msgpack.NewDecoder(bufio.NewReader(c.stdout))
	for {
		raw, err := dec.DecodeInterface()
		if err != nil {
			if !c.closed.Load() {
				c.emitFatal(fmt.Errorf("engine stream closed: %w", err))
			}
			return
		}

		msg, ok := raw.([]any)
		if !ok || len(msg) == 0 {
			logger.Warn("enginerpc: malformed frame, ignoring")
			continue
		}

		kind, ok := asInt(msg[0])
		if !ok {
			logger.Warn("enginerpc: frame missing type tag, ignoring")
			continue
		}

		switch kind {
		case msgTypeResponse:
			c.handleResponse(msg)
		case msgTypeNotification:
			c.handleNotification(msg)
		default:
			logger.Warnf("enginerpc: unexpected frame type %d, ignoring", kind)
		}
	}
}

func (c *Client) handleResponse(msg []any) {
	if len(msg) != 4 {
		logger.Warn("enginerpc: malformed response frame, ignoring")
		return
	}
	id, ok := asInt(msg[1])
	if !ok {
		return
	}

	c.mu.Lock()
	pc, ok := c.pending[uint64(id)]
	c.mu.Unlock()
	if !ok {
		return
	}

	var err error
	if msg[2] != nil {
		err = fmt.Errorf("engine error: %v", msg[2])
	}
	pc.reply <- callResult{value: msg[3], err: err}
}

func (c *Client) handleNotification(msg []any) {
	if len(msg) != 3 {
		logger.Warn("enginerpc: malformed notification frame, ignoring")
		return
	}
	method, _ := msg[1].(string)
	params, _ := msg[2].([]any)

	ev, err := decodeEvent(method, params)
	if err != nil {
		logger.Warnf("enginerpc: snapshot/event decode error for %q: %v", method, err)
		return
	}
	if ev == nil {
		return
	}
	if method == "ready" {
		c.ready.Store(true)
	}
	c.deliver(ev)
}

func (c *Client) deliver(ev Event) {
	select {
	case c.events <- ev:
	default:
		// Bounded channel is full: the reconciler is behind. Dropping
		// the oldest event would require peeking; instead the send
		// blocks, with no time limit, until the reconciler frees a
		// slot, since an unbounded event queue is exactly the memory
		// growth §5 rejects.
		c.events <- ev
	}
}

func (c *Client) emitFatal(err error) {
	select {
	case c.events <- EventFatal{Err: err}:
	default:
	}
}

// Ready reports whether the engine has completed initialization.
func (c *Client) Ready() bool { return c.ready.Load() }

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int8:
		return int64(n), true
	case int:
		return int64(n), true
	case uint64:
		return int64(n), true
	default:
		return 0, false
	}
}
