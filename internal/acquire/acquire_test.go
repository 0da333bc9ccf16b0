package acquire

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/azure/walinuxagent-go/internal/extension"
	"github.com/azure/walinuxagent-go/internal/extensionerror"
	"github.com/azure/walinuxagent-go/internal/version"
)

func setting(upgradePolicy, ver string, vus ...extension.VersionURIs) extension.Setting {
	return extension.Setting{Name: "Foo", Version: ver, UpgradePolicy: upgradePolicy, VersionUris: vus}
}

func TestResolveTargetVersionNoAutoUpgrade(t *testing.T) {
	s := setting("", "1.4.0")
	got, err := ResolveTargetVersion(s, version.Lexical{})
	if err != nil {
		t.Fatalf("ResolveTargetVersion: %v", err)
	}
	if got != "1.4.0" {
		t.Errorf("got %q, want 1.4.0", got)
	}
}

func TestResolveTargetVersionAutoPicksHighestInMajor(t *testing.T) {
	s := setting("auto", "2.0.0",
		extension.VersionURIs{Version: "1.9.9"},
		extension.VersionURIs{Version: "2.0.0"},
		extension.VersionURIs{Version: "2.3.1"},
		extension.VersionURIs{Version: "2.3.0"},
		extension.VersionURIs{Version: "3.0.0"},
	)
	got, err := ResolveTargetVersion(s, version.Lexical{})
	if err != nil {
		t.Fatalf("ResolveTargetVersion: %v", err)
	}
	if got != "2.3.1" {
		t.Errorf("got %q, want 2.3.1", got)
	}
}

func TestResolveTargetVersionNoMatch(t *testing.T) {
	s := setting("auto", "5.0.0", extension.VersionURIs{Version: "1.0.0"})
	_, err := ResolveTargetVersion(s, version.Lexical{})
	extErr, ok := err.(*extensionerror.Error)
	if !ok || extErr.Kind != extensionerror.NoMatchingVersion {
		t.Fatalf("got %v, want NoMatchingVersion", err)
	}
}

func TestResolveURIs(t *testing.T) {
	s := setting("", "1.0.0", extension.VersionURIs{Version: "1.0.0", URIs: []string{"https://a/pkg.zip", "https://b/pkg.zip"}})
	uris, err := ResolveURIs(s, "1.0.0")
	if err != nil {
		t.Fatalf("ResolveURIs: %v", err)
	}
	if len(uris) != 2 {
		t.Errorf("got %d uris, want 2", len(uris))
	}
}

func TestResolveURIsNotFound(t *testing.T) {
	s := setting("", "1.0.0")
	_, err := ResolveURIs(s, "1.0.0")
	extErr, ok := err.(*extensionerror.Error)
	if !ok || extErr.Kind != extensionerror.NoPackageUris {
		t.Fatalf("got %v, want NoPackageUris", err)
	}
}

type fakeHTTPClient struct {
	responses map[string]struct {
		status int
		body   []byte
		err    error
	}
}

func (f *fakeHTTPClient) Get(ctx context.Context, uri string) (int, []byte, error) {
	r, ok := f.responses[uri]
	if !ok {
		return 0, nil, os.ErrNotExist
	}
	return r.status, r.body, r.err
}

func TestDownloadTriesInOrderStopsAtFirstSuccess(t *testing.T) {
	client := &fakeHTTPClient{responses: map[string]struct {
		status int
		body   []byte
		err    error
	}{
		"https://a/pkg.zip": {status: 500},
		"https://b/pkg.zip": {status: 200, body: []byte("payload")},
	}}
	result, err := Download(context.Background(), client, []string{"https://a/pkg.zip", "https://b/pkg.zip"})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if result.URI != "https://b/pkg.zip" || string(result.Body) != "payload" {
		t.Errorf("got %+v", result)
	}
}

func TestDownloadExhaustion(t *testing.T) {
	client := &fakeHTTPClient{responses: map[string]struct {
		status int
		body   []byte
		err    error
	}{
		"https://a/pkg.zip": {status: 500},
	}}
	_, err := Download(context.Background(), client, []string{"https://a/pkg.zip"})
	extErr, ok := err.(*extensionerror.Error)
	if !ok || extErr.Kind != extensionerror.DownloadFailed {
		t.Fatalf("got %v, want DownloadFailed", err)
	}
}

func TestUnpackSetsExecutableBit(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "pkg.zip")

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("HandlerManifest.json")
	w.Write([]byte(`[{}]`))
	w2, _ := zw.Create("bin/run.sh")
	w2.Write([]byte("#!/bin/sh\necho hi\n"))
	zw.Close()

	if err := os.WriteFile(archivePath, buf.Bytes(), 0600); err != nil {
		t.Fatal(err)
	}

	destDir := filepath.Join(dir, "Foo-1.0.0")
	if err := Unpack(archivePath, destDir); err != nil {
		t.Fatalf("Unpack: %v", err)
	}

	info, err := os.Stat(filepath.Join(destDir, "bin", "run.sh"))
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode()&0100 == 0 {
		t.Error("expected u+x on extracted file")
	}
}

func TestWriteDownloadDigest(t *testing.T) {
	dir := t.TempDir()
	if err := WriteDownloadDigest(dir, []byte("payload")); err != nil {
		t.Fatalf("WriteDownloadDigest: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, ".download-digest"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty digest file")
	}
}
