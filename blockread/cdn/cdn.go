// Package cdn implements the casc.BlockReader contract by issuing HTTP
// range GETs against a CDN endpoint, adapted in structure (not content)
// from the teacher's range-request Source, generalized from a single
// fixed URL to the CDN's path-templated archive layout:
//
//	<cdn_url>/<code_name>/data/<prefix2>/<prefix2b>/<hexekey>
package cdn

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	nethttp "net/http"
	"sync"
)

// sharedClient is the process-wide "global sockets cache": the first
// online open installs this client's idle-connection pool, and releasing
// the last online handle does not force eager teardown — Go's transport
// idle-timeout reclaims it, the documented simplification of the design
// note's global sockets cache (SPEC_FULL.md §4.13).
var (
	sharedClientMu sync.Mutex
	sharedClient   *nethttp.Client
	sharedRefs     int
)

// Acquire increments the shared client's reference count, creating it on
// the first call, and returns the client to use.
func Acquire() *nethttp.Client {
	sharedClientMu.Lock()
	defer sharedClientMu.Unlock()
	if sharedClient == nil {
		sharedClient = &nethttp.Client{}
	}
	sharedRefs++
	return sharedClient
}

// Release decrements the shared client's reference count.
func Release() {
	sharedClientMu.Lock()
	defer sharedClientMu.Unlock()
	if sharedRefs > 0 {
		sharedRefs--
	}
}

// Reader serves range reads against a CDN's archive data path for a
// single code name.
type Reader struct {
	baseURL string // e.g. "https://level3.blizzard.com/tpr/wow"
	client  *nethttp.Client
}

// New returns a Reader issuing range GETs against baseURL, using the
// shared process-wide client.
func New(baseURL string) *Reader {
	return &Reader{baseURL: baseURL, client: Acquire()}
}

// blobPath builds the CDN's two-level hex-prefix sharded path for an EKey.
func blobPath(baseURL string, ekey [9]byte) string {
	hexKey := hex.EncodeToString(ekey[:])
	return fmt.Sprintf("%s/data/%s/%s/%s", baseURL, hexKey[0:2], hexKey[2:4], hexKey)
}

// ReadOnline issues a range GET for [0, encodedSize) of the archive named
// by ekey, implementing the casc.BlockReader online path.
func (r *Reader) ReadOnline(ctx context.Context, ekey [9]byte, encodedSize int64) ([]byte, error) {
	url := blobPath(r.baseURL, ekey)
	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("blockread/cdn: build request: %w", err)
	}
	if encodedSize > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", encodedSize-1))
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("blockread/cdn: %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case nethttp.StatusOK, nethttp.StatusPartialContent:
	default:
		return nil, fmt.Errorf("blockread/cdn: %s: unexpected status %s", url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("blockread/cdn: %s: read body: %w", url, err)
	}
	return body, nil
}

// ReadLocal implements the casc.BlockReader interface's local path; a CDN
// Reader has no local archive files to read.
func (r *Reader) ReadLocal(_ int, _ int64, _ int64) ([]byte, error) {
	return nil, errNotSupported
}

// Close releases this Reader's claim on the shared client.
func (r *Reader) Close() error {
	Release()
	return nil
}

var errNotSupported = fmt.Errorf("blockread/cdn: local reads not supported")
