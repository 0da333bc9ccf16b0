package acquire

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/azure/walinuxagent-go/internal/extensionerror"
	"golang.org/x/crypto/blake2b"
)

// HTTPClient is the outbound transport the acquirer consumes; the engine
// trusts TLS validation to the implementation and never inspects certs
// itself.
type HTTPClient interface {
	Get(ctx context.Context, uri string) (status int, body []byte, err error)
}

// defaultHTTPClient honours the ambient proxy configuration via
// http.ProxyFromEnvironment, matching §6's get(uri, proxy=true) contract.
type defaultHTTPClient struct {
	client *http.Client
}

// NewDefaultHTTPClient returns an HTTPClient backed by net/http with ambient
// proxy support and a per-request timeout.
func NewDefaultHTTPClient(timeout time.Duration) HTTPClient {
	return &defaultHTTPClient{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
			},
		},
	}
}

func (c *defaultHTTPClient) Get(ctx context.Context, uri string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return 0, nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

// DownloadResult carries the successful body alongside the mirror it came
// from, so callers can name the destination archive after it.
type DownloadResult struct {
	URI  string
	Body []byte
}

// Download tries each URI in order, accepting the first response with a 2xx
// status. It fails with DownloadFailed only after exhausting the list.
func Download(ctx context.Context, client HTTPClient, uris []string) (DownloadResult, error) {
	var lastErr error
	for _, uri := range uris {
		status, body, err := client.Get(ctx, uri)
		if err != nil {
			lastErr = err
			continue
		}
		if status < 200 || status >= 300 {
			lastErr = fmt.Errorf("%s: unexpected status %d", uri, status)
			continue
		}
		return DownloadResult{URI: uri, Body: body}, nil
	}
	return DownloadResult{}, extensionerror.New(extensionerror.DownloadFailed, fmt.Sprintf("exhausted %d uris", len(uris)), lastErr)
}

// WriteArchive writes body to <libDir>/<basename(uri)>, appending ".zip" when
// the basename does not already end in it, overwriting any existing file, and
// returns the archive path.
func WriteArchive(libDir string, result DownloadResult) (string, error) {
	base := filepath.Base(result.URI)
	if filepath.Ext(base) != ".zip" {
		base += ".zip"
	}
	archivePath := filepath.Join(libDir, base)
	if err := os.WriteFile(archivePath, result.Body, 0600); err != nil {
		return "", extensionerror.New(extensionerror.IoError, "write archive "+archivePath, err)
	}
	return archivePath, nil
}

// WriteDownloadDigest records a blake2b-256 digest of the downloaded archive
// at <destDir>/.download-digest, giving the acquirer a provenance trail
// without attempting signature verification (out of scope per the engine's
// trust model).
func WriteDownloadDigest(destDir string, body []byte) error {
	sum := blake2b.Sum256(body)
	digestPath := filepath.Join(destDir, ".download-digest")
	line := fmt.Sprintf("blake2b-256:%x\n", sum)
	if err := os.WriteFile(digestPath, []byte(line), 0600); err != nil {
		return extensionerror.New(extensionerror.IoError, "write digest "+digestPath, err)
	}
	return nil
}
