// Package engineglue owns C8: the bundle of engine-side scripts loaded
// into the headless editor at startup (spec.md §4.8). It is kept
// separate from internal/enginerpc so the RPC transport stays engine-
// agnostic while this package carries the one piece of the system that
// is unavoidably tied to a specific engine's scripting language.
package engineglue

import (
	_ "embed"
	"fmt"
	"os"
)

//go:embed bootstrap.lua
var bootstrapLua []byte

// Install writes the embedded bootstrap script to a temp file and
// returns the extra CLI arguments that make a Neovim invocation load
// it before entering its event loop. The file is left in place for the
// lifetime of the process; the OS reclaims temp directories on reboot
// and a single small script file is not worth tracking for cleanup.
func Install() (args []string, err error) {
	f, err := os.CreateTemp("", "jacin-bootstrap-*.lua")
	if err != nil {
		return nil, fmt.Errorf("create bootstrap script: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(bootstrapLua); err != nil {
		return nil, fmt.Errorf("write bootstrap script: %w", err)
	}

	return []string{"-c", "luafile " + f.Name()}, nil
}
