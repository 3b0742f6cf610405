package clipboard

import (
	"context"
	"testing"
)

func TestIsClipboardRegister(t *testing.T) {
	cases := map[string]bool{
		"+": true,
		"*": true,
		"a": false,
		"":  false,
	}
	for reg, want := range cases {
		if got := IsClipboardRegister(reg); got != want {
			t.Errorf("IsClipboardRegister(%q) = %v, want %v", reg, got, want)
		}
	}
}

func TestUninitializedBridgeFailsClosed(t *testing.T) {
	b := New()
	if b.Enabled() {
		t.Fatal("fresh bridge should not report Enabled()")
	}
	if _, err := b.Read(); err == nil {
		t.Fatal("Read() on uninitialized bridge should error")
	}
	if err := b.Write(context.Background(), "x"); err == nil {
		t.Fatal("Write() on uninitialized bridge should error")
	}
}
