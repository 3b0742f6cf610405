package ipc

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Client connects to a running jacin instance's doctor socket and
// streams Status pushes.
type Client struct {
	socketPath string
	dialTimeout time.Duration
}

// NewClient creates a doctor-socket client for the standard socket
// path.
func NewClient() (*Client, error) {
	socketPath, err := GetSocketPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get socket path: %w", err)
	}
	return &Client{socketPath: socketPath, dialTimeout: 2 * time.Second}, nil
}

// Stream connects and returns a channel of Status pushes. The channel
// closes when the server disconnects, the connection errors, or the
// returned close function is called.
func (c *Client) Stream() (<-chan Status, func() error, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.dialTimeout)
	if err != nil {
		return nil, nil, fmt.Errorf("jacin is not running: %w", err)
	}

	out := make(chan Status, 16)
	go func() {
		defer close(out)
		for {
			status, ok, err := readStatus(conn)
			if err != nil || !ok {
				return
			}
			out <- status
		}
	}()

	return out, conn.Close, nil
}

// IsRunning reports whether a jacin instance currently has the doctor
// socket open.
func IsRunning() bool {
	socketPath, err := GetSocketPath()
	if err != nil {
		return false
	}
	conn, err := net.DialTimeout("unix", socketPath, 200*time.Millisecond)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// readStatus reads one frame; ok is false (with a nil error) on a
// graceful frameClosed shutdown frame.
func readStatus(conn net.Conn) (status Status, ok bool, err error) {
	var kindBuf [1]byte
	if _, err := io.ReadFull(conn, kindBuf[:]); err != nil {
		return Status{}, false, err
	}
	if frameType(kindBuf[0]) == frameClosed {
		return Status{}, false, nil
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
		return Status{}, false, err
	}
	length := binary.BigEndian.Uint32(lenBuf[:])

	data := make([]byte, length)
	if _, err := io.ReadFull(conn, data); err != nil {
		return Status{}, false, err
	}

	if err := msgpack.Unmarshal(data, &status); err != nil {
		return Status{}, false, fmt.Errorf("decode status: %w", err)
	}
	return status, true, nil
}
