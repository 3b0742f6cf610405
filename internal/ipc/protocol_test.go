package ipc

import (
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

func TestStatusRoundTripsThroughMsgpack(t *testing.T) {
	want := Status{
		Lifecycle:         "enabled",
		Mode:              "insert",
		Pending:           "none",
		ReactivationCount: 1,
		Serial:            42,
		Recording:         "+",
		CommandBuffer:     ":w",
		EngineReady:       true,
		Timestamp:         time.Unix(1700000000, 0).UTC(),
	}

	data, err := msgpack.Marshal(want)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var got Status
	if err := msgpack.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if got != want {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, want)
	}
}

func TestStatusZeroValueRoundTrips(t *testing.T) {
	data, err := msgpack.Marshal(Status{})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var got Status
	if err := msgpack.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.Lifecycle != "" || got.EngineReady {
		t.Errorf("zero-value Status did not round-trip cleanly: %+v", got)
	}
}
