// Package clipboard implements the clipboard bridge (C15): routing the
// "+"/"*" registers through the desktop clipboard instead of only the
// engine's internal registers, using golang.design/x/clipboard the way
// the reference Ebiten backend's paste/copy handlers do.
package clipboard

import (
	"context"
	"fmt"
	"sync"

	"golang.design/x/clipboard"

	"github.com/garypippi/jacin/internal/logger"
)

// Bridge wraps clipboard.Init so its failure (no compositor clipboard
// support) degrades silently, per spec.md's expansion §4.15: best-effort,
// logged once at Warn, never fatal.
type Bridge struct {
	mu          sync.Mutex
	initialized bool
	warnedOnce  bool
}

// New returns a Bridge that is not yet initialized. Call Init before
// first use; a Bridge that failed to initialize reports Enabled() ==
// false forever after.
func New() *Bridge {
	return &Bridge{}
}

// Init attempts to initialize the system clipboard. Safe to call
// multiple times; only the first failure logs.
func (b *Bridge) Init() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.initialized {
		return
	}
	if err := clipboard.Init(); err != nil {
		if !b.warnedOnce {
			logger.For("clipboard").Warn("clipboard unavailable, falling back to engine-internal registers", "error", err)
			b.warnedOnce = true
		}
		return
	}
	b.initialized = true
}

// Enabled reports whether the clipboard bridge is usable.
func (b *Bridge) Enabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initialized
}

// Read returns the current clipboard text, for InsertRegister landing on
// "+"/"*": the caller sends the result to the engine as literal text
// instead of a register-read key sequence.
func (b *Bridge) Read() (string, error) {
	if !b.Enabled() {
		return "", fmt.Errorf("clipboard bridge not initialized")
	}
	data := clipboard.Read(clipboard.FmtText)
	if data == nil {
		return "", nil
	}
	return string(data), nil
}

// Write pushes text to the clipboard, for a yank landing in "+"/"*": the
// yanked text the engine reported is written back so external
// applications see it. The returned channel (unused here) closes only
// when some other process later overwrites the clipboard; jacin has no
// watcher on it, so it's discarded.
func (b *Bridge) Write(ctx context.Context, text string) error {
	if !b.Enabled() {
		return fmt.Errorf("clipboard bridge not initialized")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_ = clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

// IsClipboardRegister reports whether a register name key routes
// through the clipboard bridge rather than the engine's own registers.
func IsClipboardRegister(registerKey string) bool {
	return registerKey == "+" || registerKey == "*"
}
