//go:build !darwin

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seedlink", "config.json")

	b := newFileBackend(path)
	if err := b.SetInt("server.port", 4300); err != nil {
		t.Fatalf("SetInt: %v", err)
	}
	if err := b.SetString("log.level", "debug"); err != nil {
		t.Fatalf("SetString: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	reloaded := newFileBackend(path)
	if port, ok, err := reloaded.GetInt("server.port"); err != nil || !ok || port != 4300 {
		t.Errorf("GetInt = %d, %v, %v", port, ok, err)
	}
	if lvl, ok, _ := reloaded.GetString("log.level"); !ok || lvl != "debug" {
		t.Errorf("GetString = %q, %v", lvl, ok)
	}
}
