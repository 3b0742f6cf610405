package enginerpc

import (
	"bufio"
	"context"
	"io"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// fakeEngine wires a Client to an in-process goroutine standing in for
// the real child process, so these tests never exec anything.
type fakeEngine struct {
	enc *msgpack.Encoder
	dec *msgpack.Decoder
}

func newFakeEngine(t *testing.T) (*Client, *fakeEngine) {
	t.Helper()

	clientReadEnd, engineWriteEnd := io.Pipe()
	engineReadEnd, clientWriteEnd := io.Pipe()

	c := newClient(clientWriteEnd, clientReadEnd)
	go c.readLoop()

	fe := &fakeEngine{
		enc: msgpack.NewEncoder(engineWriteEnd),
		dec: msgpack.NewDecoder(bufio.NewReader(engineReadEnd)),
	}
	t.Cleanup(func() {
		_ = clientWriteEnd.Close()
		_ = engineWriteEnd.Close()
	})
	return c, fe
}

func (fe *fakeEngine) recvFrame(t *testing.T) []any {
	t.Helper()
	raw, err := fe.dec.DecodeInterface()
	if err != nil {
		t.Fatalf("fake engine: decode request: %v", err)
	}
	msg, ok := raw.([]any)
	if !ok {
		t.Fatalf("fake engine: expected array frame, got %T", raw)
	}
	return msg
}

func (fe *fakeEngine) respond(t *testing.T, id any, errVal, result any) {
	t.Helper()
	if err := fe.enc.Encode(frame{msgTypeResponse, id, errVal, result}); err != nil {
		t.Fatalf("fake engine: encode response: %v", err)
	}
}

func (fe *fakeEngine) notify(t *testing.T, method string, params []any) {
	t.Helper()
	if err := fe.enc.Encode(frame{msgTypeNotification, method, params}); err != nil {
		t.Fatalf("fake engine: encode notification: %v", err)
	}
}

func TestSendKeyIsFireAndForget(t *testing.T) {
	c, fe := newFakeEngine(t)

	done := make(chan error, 1)
	go func() { done <- c.SendKey("<C-a>") }()

	msg := fe.recvFrame(t)
	if len(msg) != 3 {
		t.Fatalf("expected notification frame of length 3, got %d", len(msg))
	}
	kind, _ := asInt(msg[0])
	if kind != msgTypeNotification {
		t.Fatalf("expected notification type, got %d", kind)
	}
	if method, _ := msg[1].(string); method != "nvim_input" {
		t.Fatalf("expected method nvim_input, got %v", msg[1])
	}

	if err := <-done; err != nil {
		t.Fatalf("SendKey returned error: %v", err)
	}
}

func TestCallRoundTrip(t *testing.T) {
	c, fe := newFakeEngine(t)

	type result struct {
		val any
		err error
	}
	resCh := make(chan result, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		v, err := c.Call(ctx, "handle_commit")
		resCh <- result{v, err}
	}()

	msg := fe.recvFrame(t)
	id := msg[1]
	if method, _ := msg[2].(string); method != "nvim_exec_lua" {
		t.Fatalf("expected method nvim_exec_lua, got %v", msg[2])
	}
	execArgs, _ := msg[3].([]any)
	if len(execArgs) != 2 {
		t.Fatalf("expected 2 nvim_exec_lua args, got %d", len(execArgs))
	}
	if code, _ := execArgs[0].(string); code != "return _G.jacin.handle_commit(...)" {
		t.Fatalf("unexpected lua snippet: %v", execArgs[0])
	}
	fe.respond(t, id, nil, map[string]any{"status": "commit", "text": "hello"})

	r := <-resCh
	if r.err != nil {
		t.Fatalf("Call returned error: %v", r.err)
	}
	m, ok := r.val.(map[string]any)
	if !ok || m["text"] != "hello" {
		t.Fatalf("unexpected call result: %#v", r.val)
	}
}

func TestCallTimeout(t *testing.T) {
	c, _ := newFakeEngine(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Call(ctx, "snapshot")
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
}

func TestSnapshotNotificationDeliversEvent(t *testing.T) {
	c, fe := newFakeEngine(t)

	fe.notify(t, "snapshot", []any{map[string]any{
		"preedit_text":             "a",
		"cursor_byte":              int64(2),
		"mode_tag":                 "i",
		"blocking_flag":            false,
		"char_width_under_cursor":  int64(0),
		"recording_register":      "",
	}})

	select {
	case ev := <-c.Events():
		se, ok := ev.(EventSnapshot)
		if !ok {
			t.Fatalf("expected EventSnapshot, got %T", ev)
		}
		if se.Snapshot.PreeditText != "a" || se.Snapshot.CursorByte != 2 {
			t.Fatalf("unexpected snapshot contents: %#v", se.Snapshot)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot event")
	}
}

func TestReadyNotificationSetsReady(t *testing.T) {
	c, fe := newFakeEngine(t)

	fe.notify(t, "ready", []any{})

	select {
	case ev := <-c.Events():
		if _, ok := ev.(EventReady); !ok {
			t.Fatalf("expected EventReady, got %T", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ready event")
	}
	if !c.Ready() {
		t.Fatal("Ready() false after ready notification")
	}
}
