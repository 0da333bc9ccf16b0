package goalstate

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/azure/walinuxagent-go/internal/extension"
)

func TestFetchExtensionsConcatenatesInFilenameOrder(t *testing.T) {
	dir := t.TempDir()

	writeBatch(t, dir, "10-later.settings.json", []extension.Setting{{Name: "Bar", SeqNo: 2}})
	writeBatch(t, dir, "01-first.settings.json", []extension.Setting{{Name: "Foo", SeqNo: 1}})
	os.WriteFile(filepath.Join(dir, "ignored.json"), []byte("not a settings file"), 0600)

	src := New(dir, t.TempDir())
	settings, err := src.FetchExtensions(context.Background())
	if err != nil {
		t.Fatalf("FetchExtensions: %v", err)
	}
	if len(settings) != 2 {
		t.Fatalf("got %d settings, want 2", len(settings))
	}
	if settings[0].Name != "Foo" || settings[1].Name != "Bar" {
		t.Errorf("settings not in filename order: %+v", settings)
	}
}

func TestFetchExtensionsMissingDirIsEmpty(t *testing.T) {
	src := New(filepath.Join(t.TempDir(), "does-not-exist"), t.TempDir())
	settings, err := src.FetchExtensions(context.Background())
	if err != nil {
		t.Fatalf("FetchExtensions: %v", err)
	}
	if settings != nil {
		t.Errorf("expected nil settings, got %+v", settings)
	}
}

func TestReportStatusWritesNamedFile(t *testing.T) {
	statusDir := t.TempDir()
	src := New(t.TempDir(), statusDir)

	agg := extension.AggregateStatus{HandlerName: "Foo", Status: extension.AggReady}
	if err := src.ReportStatus(context.Background(), "Foo", "1.0.0", agg); err != nil {
		t.Fatalf("ReportStatus: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(statusDir, "Foo-1.0.0.status.json"))
	if err != nil {
		t.Fatalf("reading status file: %v", err)
	}
	var got extension.AggregateStatus
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshaling status file: %v", err)
	}
	if got.Status != extension.AggReady {
		t.Errorf("Status = %q, want Ready", got.Status)
	}
}

func writeBatch(t *testing.T, dir, name string, settings []extension.Setting) {
	t.Helper()
	data, err := json.Marshal(settings)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}
