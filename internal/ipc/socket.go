package ipc

import (
	"encoding/binary"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/garypippi/jacin/internal/logger"
)

var ipcLog = logger.For("ipc")

// SocketServer broadcasts Status pushes to every connected `jacin
// doctor` client. Unlike the teacher's request/response socket server,
// there is no inbound message handling at all: the doctor socket is
// read-only from the client's perspective, matching spec.md's "status
// inspector" framing for C13's doctor subcommand.
type SocketServer struct {
	mu         sync.Mutex
	listener   net.Listener
	socketPath string
	conns      map[net.Conn]struct{}
	closed     bool
}

// NewSocketServer creates a doctor socket server bound to
// $XDG_RUNTIME_DIR/jacin-doctor.sock (or its fallback, see
// getSocketPath).
func NewSocketServer() (*SocketServer, error) {
	socketPath, err := getSocketPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get socket path: %w", err)
	}

	if err := os.RemoveAll(socketPath); err != nil {
		return nil, fmt.Errorf("failed to remove existing socket: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create socket listener: %w", err)
	}
	if err := os.Chmod(socketPath, 0600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s := &SocketServer{
		listener:   listener,
		socketPath: socketPath,
		conns:      make(map[net.Conn]struct{}),
	}
	go s.acceptConnections()

	ipcLog.Info("doctor socket listening", "path", socketPath)
	return s, nil
}

func (s *SocketServer) acceptConnections() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return
			}
			ipcLog.Warn("doctor socket accept failed", "error", err)
			return
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		ipcLog.Debug("doctor client connected")
	}
}

// Publish pushes status to every currently connected doctor client.
// Connections that fail to accept the write are dropped and closed;
// publish never blocks on a slow or dead client beyond one write call.
func (s *SocketServer) Publish(status Status) {
	data, err := msgpack.Marshal(status)
	if err != nil {
		ipcLog.Warn("doctor status marshal failed", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		if err := writeFrame(conn, frameStatus, data); err != nil {
			ipcLog.Debug("doctor client write failed, dropping", "error", err)
			conn.Close()
			delete(s.conns, conn)
		}
	}
}

// Stop closes the listener and every connected client.
func (s *SocketServer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true

	for conn := range s.conns {
		_ = writeFrame(conn, frameClosed, nil)
		conn.Close()
	}
	s.conns = nil

	s.listener.Close()
	os.RemoveAll(s.socketPath)
	ipcLog.Info("doctor socket stopped")
}

func writeFrame(conn net.Conn, kind frameType, payload []byte) error {
	if _, err := conn.Write([]byte{byte(kind)}); err != nil {
		return err
	}
	if kind == frameClosed {
		return nil
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := conn.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := conn.Write(payload)
	return err
}

// getSocketPath returns $XDG_RUNTIME_DIR/jacin-doctor.sock, falling
// back to /tmp when XDG_RUNTIME_DIR is unset (e.g. under a minimal
// test harness).
func getSocketPath() (string, error) {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, "jacin-doctor.sock"), nil
	}
	return filepath.Join(os.TempDir(), "jacin-doctor.sock"), nil
}

// GetSocketPath returns the socket path (for use by clients).
func GetSocketPath() (string, error) {
	return getSocketPath()
}
