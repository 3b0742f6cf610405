package ipc

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func withTestSocketDir(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
}

func TestSocketServerCreatesAndCleansUpSocketFile(t *testing.T) {
	withTestSocketDir(t)

	server, err := NewSocketServer()
	if err != nil {
		t.Fatalf("NewSocketServer() error = %v", err)
	}

	path, _ := GetSocketPath()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected socket file to exist: %v", err)
	}

	server.Stop()

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("socket file was not cleaned up")
	}
}

func TestSocketServerCleansUpStaleSocketFile(t *testing.T) {
	withTestSocketDir(t)

	path, _ := GetSocketPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if f, err := os.Create(path); err != nil {
		t.Fatalf("create stale socket file: %v", err)
	} else {
		f.Close()
	}

	server, err := NewSocketServer()
	if err != nil {
		t.Fatalf("NewSocketServer() should clean up a stale file, got error = %v", err)
	}
	server.Stop()
}

func TestPublishStreamsToConnectedClient(t *testing.T) {
	withTestSocketDir(t)

	server, err := NewSocketServer()
	if err != nil {
		t.Fatalf("NewSocketServer() error = %v", err)
	}
	defer server.Stop()

	client, err := NewClient()
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	stream, closeFn, err := client.Stream()
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer closeFn()

	// Give the server's accept loop a moment to register the
	// connection before publishing.
	time.Sleep(20 * time.Millisecond)

	want := Status{Lifecycle: "enabled", Mode: "normal"}
	server.Publish(want)

	select {
	case got := <-stream:
		if got.Lifecycle != want.Lifecycle || got.Mode != want.Mode {
			t.Errorf("got %+v, want %+v", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published status")
	}
}

func TestStopSendsGracefulCloseFrame(t *testing.T) {
	withTestSocketDir(t)

	server, err := NewSocketServer()
	if err != nil {
		t.Fatalf("NewSocketServer() error = %v", err)
	}

	client, err := NewClient()
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	stream, closeFn, err := client.Stream()
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer closeFn()

	time.Sleep(20 * time.Millisecond)
	server.Stop()

	select {
	case _, ok := <-stream:
		if ok {
			t.Fatal("expected channel to close with no pending status")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stream to close")
	}
}

func TestIsRunningFalseWithoutServer(t *testing.T) {
	withTestSocketDir(t)
	if IsRunning() {
		t.Fatal("IsRunning() should be false with no server listening")
	}
}

func TestIsRunningTrueWithServer(t *testing.T) {
	withTestSocketDir(t)
	server, err := NewSocketServer()
	if err != nil {
		t.Fatalf("NewSocketServer() error = %v", err)
	}
	defer server.Stop()

	if !IsRunning() {
		t.Fatal("IsRunning() should be true with a server listening")
	}
}
