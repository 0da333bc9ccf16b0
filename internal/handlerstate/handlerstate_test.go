package handlerstate

import (
	"path/filepath"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "HandlerState")
	for _, s := range []State{Uninstalled, Installed, Disabled, Enabled} {
		if err := Write(path, s); err != nil {
			t.Fatalf("Write(%s): %v", s, err)
		}
		got, err := Read(path)
		if err != nil {
			t.Fatalf("Read after Write(%s): %v", s, err)
		}
		if got != s {
			t.Errorf("Read = %q, want %q", got, s)
		}
	}
}

func TestReadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist")
	if _, err := Read(path); err == nil {
		t.Fatal("expected error reading missing state file")
	}
}
