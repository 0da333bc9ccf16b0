package reconciler

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/azure/walinuxagent-go/internal/extension"
	"github.com/azure/walinuxagent-go/internal/lifecycle"
	"github.com/azure/walinuxagent-go/internal/paths"
	"github.com/azure/walinuxagent-go/internal/version"
)

type fakeClient struct {
	packages map[string][]byte
}

func (c *fakeClient) Get(ctx context.Context, uri string) (int, []byte, error) {
	body, ok := c.packages[uri]
	if !ok {
		return 404, nil, nil
	}
	return 200, body, nil
}

const statusJSON = `[{"status":{"status":"success","operation":"Enable","code":0,"name":"Foo","formattedMessage":{"lang":"en-US","message":"ok"}}}]`

func buildPackage(installBody string) []byte {
	manifest := `[{"handlerManifest":{
		"installCommand":"install.sh","uninstallCommand":"uninstall.sh","updateCommand":"update.sh",
		"enableCommand":"enable.sh","disableCommand":"disable.sh"
	}}]`
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	mw, _ := zw.Create("HandlerManifest.json")
	mw.Write([]byte(manifest))
	for _, op := range []string{"install", "uninstall", "update", "enable", "disable"} {
		body := "exit 0\n"
		if op == "install" && installBody != "" {
			body = installBody
		}
		if op == "enable" {
			body = "mkdir -p status\ncat > status/1.status <<'EOF'\n" + statusJSON + "\nEOF\nexit 0\n"
		}
		sw, _ := zw.CreateHeader(&zip.FileHeader{Name: op + ".sh", Method: zip.Deflate})
		sw.Write([]byte("#!/bin/sh\n" + body))
	}
	zw.Close()
	return buf.Bytes()
}

type fakeSource struct {
	mu       sync.Mutex
	settings []extension.Setting
	reports  []string
}

func (s *fakeSource) FetchExtensions(ctx context.Context) ([]extension.Setting, error) {
	return s.settings, nil
}

func (s *fakeSource) ReportStatus(ctx context.Context, name, version string, agg extension.AggregateStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, fmt.Sprintf("%s@%s=%s", name, version, agg.Status))
	return nil
}

type fakeSink struct {
	mu     sync.Mutex
	events []string
}

func (s *fakeSink) AddExtensionEvent(name string, success bool, op extension.OperationTag, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, fmt.Sprintf("%s/%v/%s", name, success, op))
}

func TestRunReportsReadyForSuccessfulInstall(t *testing.T) {
	dir := t.TempDir()
	p := paths.Paths{LibDir: filepath.Join(dir, "lib"), ExtLogDir: filepath.Join(dir, "log")}
	client := &fakeClient{packages: map[string][]byte{"https://a/pkg.zip": buildPackage("")}}
	sink := &fakeSink{}
	log := logrus.NewEntry(logrus.New())
	orch := lifecycle.New(p, version.Lexical{}, client, sink, log)
	orch.StatusRetryAttempts = 1
	orch.StatusRetryDelay = time.Millisecond

	source := &fakeSource{settings: []extension.Setting{{
		Name: "Foo", Version: "1.0.0", SeqNo: 1, State: extension.GoalEnabled,
		VersionUris: []extension.VersionURIs{{Version: "1.0.0", URIs: []string{"https://a/pkg.zip"}}},
	}}}

	r := New(p, version.Lexical{}, orch, source, sink, log)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(source.reports) != 1 || source.reports[0] != "Foo@1.0.0=Ready" {
		t.Fatalf("got %v, want single Ready report", source.reports)
	}
}

func TestRunReportsNotReadyOnDownloadFailure(t *testing.T) {
	dir := t.TempDir()
	p := paths.Paths{LibDir: filepath.Join(dir, "lib"), ExtLogDir: filepath.Join(dir, "log")}
	client := &fakeClient{packages: map[string][]byte{}} // no package available -> 404 for every uri
	sink := &fakeSink{}
	log := logrus.NewEntry(logrus.New())
	orch := lifecycle.New(p, version.Lexical{}, client, sink, log)
	orch.StatusRetryAttempts = 1
	orch.StatusRetryDelay = time.Millisecond

	source := &fakeSource{settings: []extension.Setting{{
		Name: "Foo", Version: "1.0.0", SeqNo: 1, State: extension.GoalEnabled,
		VersionUris: []extension.VersionURIs{{Version: "1.0.0", URIs: []string{"https://a/pkg.zip"}}},
	}}}

	r := New(p, version.Lexical{}, orch, source, sink, log)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(source.reports) != 1 || source.reports[0] != "Foo@1.0.0=NotReady" {
		t.Fatalf("got %v, want single NotReady report", source.reports)
	}
	foundFailureEvent := false
	for _, e := range sink.events {
		if e == "Foo/false/Download" {
			foundFailureEvent = true
		}
	}
	if !foundFailureEvent {
		t.Errorf("expected a Download failure event, got %v", sink.events)
	}
}

func TestRunProcessesInDependencyLevelOrder(t *testing.T) {
	dir := t.TempDir()
	p := paths.Paths{LibDir: filepath.Join(dir, "lib"), ExtLogDir: filepath.Join(dir, "log")}
	client := &fakeClient{packages: map[string][]byte{
		"https://a/first.zip":  buildPackage(""),
		"https://a/second.zip": buildPackage(""),
	}}
	sink := &fakeSink{}
	log := logrus.NewEntry(logrus.New())
	orch := lifecycle.New(p, version.Lexical{}, client, sink, log)
	orch.StatusRetryAttempts = 1
	orch.StatusRetryDelay = time.Millisecond

	source := &fakeSource{settings: []extension.Setting{
		{Name: "Second", Version: "1.0.0", SeqNo: 1, State: extension.GoalEnabled, DependencyLevel: 2,
			VersionUris: []extension.VersionURIs{{Version: "1.0.0", URIs: []string{"https://a/second.zip"}}}},
		{Name: "First", Version: "1.0.0", SeqNo: 1, State: extension.GoalEnabled, DependencyLevel: 1,
			VersionUris: []extension.VersionURIs{{Version: "1.0.0", URIs: []string{"https://a/first.zip"}}}},
	}}

	r := New(p, version.Lexical{}, orch, source, sink, log)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(source.reports) != 2 || source.reports[0] != "First@1.0.0=Ready" || source.reports[1] != "Second@1.0.0=Ready" {
		t.Fatalf("got %v, want First then Second", source.reports)
	}
}
