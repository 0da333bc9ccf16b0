package eventsink

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/azure/walinuxagent-go/internal/extension"
)

func TestAddExtensionEventAppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "events.jsonl")
	sink := New(path, nil)

	sink.AddExtensionEvent("Foo", true, extension.OpInstall, "")
	sink.AddExtensionEvent("Foo", false, extension.OpEnable, "boom")

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening event log: %v", err)
	}
	defer f.Close()

	var lines []event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("unmarshaling line %q: %v", scanner.Text(), err)
		}
		lines = append(lines, e)
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0].Operation != extension.OpInstall || !lines[0].Success {
		t.Errorf("line 0 = %+v", lines[0])
	}
	if lines[1].Operation != extension.OpEnable || lines[1].Success || lines[1].Message != "boom" {
		t.Errorf("line 1 = %+v", lines[1])
	}
}
