// Package ipc implements the "doctor socket" (SPEC_FULL.md §6): a local,
// read-only Unix-domain socket streaming activation/mode/pending-state
// changes to `jacin doctor`, framed the same 4-byte-big-endian-length-
// prefix + payload way the teacher's internal/ipc used for its
// client/server protocol, but carrying msgpack-encoded Status values
// instead of protobuf — there is no second machine in this system, so
// pulling in a generated protobuf schema for one status struct would be
// dead weight when msgpack is already wired for the engine RPC (C2).
package ipc

import "time"

// Status is the single streamed record: a point-in-time reflection of
// the coordination layer's state, pushed by the running `jacin` process
// on a fixed interval, whether or not any field has changed.
type Status struct {
	Lifecycle         string    `msgpack:"lifecycle"`
	Mode              string    `msgpack:"mode"`
	Pending           string    `msgpack:"pending"`
	ReactivationCount uint8     `msgpack:"reactivation_count"`
	Serial            uint32    `msgpack:"serial"`
	Recording         string    `msgpack:"recording"`
	CommandBuffer     string    `msgpack:"command_buffer"`
	EngineReady       bool      `msgpack:"engine_ready"`
	Timestamp         time.Time `msgpack:"timestamp"`
}

// frameType tags the one-byte prefix distinguishing a streamed Status
// push from a server-initiated close, so the client can tell "nothing
// has changed yet" apart from "the connection is going away".
type frameType byte

const (
	frameStatus frameType = 1
	frameClosed frameType = 2
)
