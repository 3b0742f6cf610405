package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestInitWithNoConfigFileUsesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(oldWd)

	viper.Reset()
	if err := Init(); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	c := Get()
	if c.Keybinds.Commit != "<C-CR>" {
		t.Errorf("Keybinds.Commit = %q, want <C-CR>", c.Keybinds.Commit)
	}
	if c.Completion.Adapter != "native" {
		t.Errorf("Completion.Adapter = %q, want native", c.Completion.Adapter)
	}
}

func TestInitReadsTOMLOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(oldWd)

	toml := "[keybinds]\ncommit = \"<C-Enter>\"\n\n[completion]\nadapter = \"external\"\n"
	if err := os.WriteFile(filepath.Join(tmpDir, "jacin.toml"), []byte(toml), 0644); err != nil {
		t.Fatal(err)
	}

	viper.Reset()
	if err := Init(); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	c := Get()
	if c.Keybinds.Commit != "<C-Enter>" {
		t.Errorf("Keybinds.Commit = %q, want <C-Enter>", c.Keybinds.Commit)
	}
	if c.Completion.Adapter != "external" {
		t.Errorf("Completion.Adapter = %q, want external", c.Completion.Adapter)
	}
}

func TestInitCleanIgnoresConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(oldWd)

	toml := "[keybinds]\ncommit = \"<C-Enter>\"\n"
	if err := os.WriteFile(filepath.Join(tmpDir, "jacin.toml"), []byte(toml), 0644); err != nil {
		t.Fatal(err)
	}

	InitClean()
	c := Get()
	if c.Keybinds.Commit != "<C-CR>" {
		t.Errorf("InitClean: Keybinds.Commit = %q, want <C-CR> (defaults, ignoring file)", c.Keybinds.Commit)
	}
}

func TestSaveWritesAndIsReadableByInit(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(oldWd)
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	viper.Reset()
	want := DefaultConfig
	want.Keybinds.Commit = "<C-space>"
	want.Engine.Binary = "nvim-headless"

	if err := Save(&want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	viper.Reset()
	if err := Init(); err != nil {
		t.Fatalf("Init() after Save() failed: %v", err)
	}

	c := Get()
	if c.Keybinds.Commit != "<C-space>" {
		t.Errorf("Keybinds.Commit = %q, want <C-space>", c.Keybinds.Commit)
	}
	if c.Engine.Binary != "nvim-headless" {
		t.Errorf("Engine.Binary = %q, want nvim-headless", c.Engine.Binary)
	}
}
