// Package imestate implements the IME state machine (C4): the
// activation lifecycle plus the preedit, candidate, and mode caches that
// ride alongside it. Owned exclusively by the main reactor thread
// (spec.md §5) — no internal locking.
package imestate

import "fmt"

// Lifecycle is the activation lifecycle's exclusive variant.
type Lifecycle int

const (
	Disabled Lifecycle = iota
	Enabling
	Enabled
	Disabling
)

func (l Lifecycle) String() string {
	switch l {
	case Disabled:
		return "disabled"
	case Enabling:
		return "enabling"
	case Enabled:
		return "enabled"
	case Disabling:
		return "disabling"
	default:
		return "unknown"
	}
}

// ReactivationCap bounds consecutive activate-while-enabled cycles
// before the lifecycle coordinator (C6) forces Disabled to break a
// compositor-side loop.
const ReactivationCap = 2

// Preedit is the preedit cache: a cached reflection of the engine's
// buffer, never mutated locally except by assignment from a snapshot or
// by clearing on commit.
type Preedit struct {
	Text        string
	CursorBegin int
	CursorEnd   int
}

// Empty reports whether there is nothing to show.
func (p Preedit) Empty() bool {
	return p.Text == ""
}

// Candidates is the completion candidate cache.
type Candidates struct {
	Entries       []string
	SelectedIndex int // -1 = no selection
}

// Empty reports whether there are no candidates to show.
func (c Candidates) Empty() bool {
	return len(c.Entries) == 0
}

// ErrForbiddenTransition is returned when a caller attempts a lifecycle
// transition spec.md §4.4 declares unreachable.
type ErrForbiddenTransition struct {
	From, Attempted Lifecycle
}

func (e *ErrForbiddenTransition) Error() string {
	return fmt.Sprintf("forbidden transition: %s -> %s", e.From, e.Attempted)
}

// Machine holds the activation enum and the caches that live alongside
// it (spec.md §4.4).
type Machine struct {
	lifecycle         Lifecycle
	commitPending     bool
	modeTag           string
	engineActive      bool
	reactivationCount uint8

	preedit    Preedit
	candidates Candidates
}

// New returns a Machine in the Disabled state with empty caches.
func New() *Machine {
	return &Machine{
		lifecycle:  Disabled,
		candidates: Candidates{SelectedIndex: -1},
	}
}

// Lifecycle returns the current activation state.
func (m *Machine) Lifecycle() Lifecycle { return m.lifecycle }

// CommitPending reports whether a commit should follow once the pending
// Enabling transition completes.
func (m *Machine) CommitPending() bool { return m.commitPending }

// Mode returns the last observed in-engine mode tag.
func (m *Machine) Mode() string { return m.modeTag }

// ReactivationCount returns the current reactivation counter.
func (m *Machine) ReactivationCount() uint8 { return m.reactivationCount }

// Preedit returns a copy of the preedit cache.
func (m *Machine) Preedit() Preedit { return m.preedit }

// Candidates returns a copy of the candidate cache.
func (m *Machine) Candidates() Candidates { return m.candidates }

// BeginEnable transitions Disabled -> Enabling. commitPending records
// whether a commit should follow once the engine reports ready (used by
// the toggle-signal path, which wants to flush before disabling).
func (m *Machine) BeginEnable(commitPending bool) error {
	if m.lifecycle != Disabled {
		return &ErrForbiddenTransition{From: m.lifecycle, Attempted: Enabling}
	}
	m.lifecycle = Enabling
	m.commitPending = commitPending
	return nil
}

// CompleteEnable transitions Enabling -> Enabled. Called when the
// compositor delivers the keymap event completing activation.
func (m *Machine) CompleteEnable(modeTag string) error {
	if m.lifecycle != Enabling {
		return &ErrForbiddenTransition{From: m.lifecycle, Attempted: Enabled}
	}
	m.lifecycle = Enabled
	m.modeTag = modeTag
	m.engineActive = true
	return nil
}

// BeginDisable transitions Enabled -> Disabling.
func (m *Machine) BeginDisable() error {
	if m.lifecycle != Enabled {
		return &ErrForbiddenTransition{From: m.lifecycle, Attempted: Disabling}
	}
	m.lifecycle = Disabling
	return nil
}

// ForceDisable transitions any state -> Disabled, clearing caches and
// zeroing the reactivation counter. This is the only path out of
// Enabling other than completing it, matching spec.md's forbidden
// Enabling -> Disabled transition.
func (m *Machine) ForceDisable() {
	m.lifecycle = Disabled
	m.commitPending = false
	m.engineActive = false
	m.reactivationCount = 0
	m.preedit = Preedit{}
	m.candidates = Candidates{SelectedIndex: -1}
}

// Finish completes a Disabling -> Disabled transition once the grab has
// actually been released.
func (m *Machine) Finish() error {
	if m.lifecycle != Disabling {
		return &ErrForbiddenTransition{From: m.lifecycle, Attempted: Disabled}
	}
	m.ForceDisable()
	return nil
}

// ObserveMode updates the cached in-engine mode with no lifecycle
// change.
func (m *Machine) ObserveMode(tag string) {
	m.modeTag = tag
}

// SetPreedit assigns the preedit cache wholesale, the only mutation path
// spec.md's invariant 2 allows besides clearing.
func (m *Machine) SetPreedit(p Preedit) {
	m.preedit = p
}

// ClearPreedit resets the preedit cache on commit.
func (m *Machine) ClearPreedit() {
	m.preedit = Preedit{}
}

// SetCandidates assigns the candidate cache wholesale.
func (m *Machine) SetCandidates(c Candidates) {
	m.candidates = c
}

// IncrementReactivation bumps the reactivation counter (an activate
// event arriving while already Enabled) and reports whether the cap has
// now been exceeded.
func (m *Machine) IncrementReactivation() (count uint8, capExceeded bool) {
	m.reactivationCount++
	return m.reactivationCount, m.reactivationCount > ReactivationCap
}

// ResetReactivation zeroes the reactivation counter on keystroke
// activity.
func (m *Machine) ResetReactivation() {
	m.reactivationCount = 0
}
