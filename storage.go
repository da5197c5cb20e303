package casc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/cascfs/casc/internal/catalog"
	"github.com/cascfs/casc/internal/cdnconfig"
	"github.com/cascfs/casc/internal/descriptor"
	"github.com/cascfs/casc/internal/download"
	"github.com/cascfs/casc/internal/keystore"
	"github.com/cascfs/casc/internal/rootdispatch"

	blockreadcdn "github.com/cascfs/casc/blockread/cdn"
	blockreadlocal "github.com/cascfs/casc/blockread/local"
)

// Product identifies the opened build: the code name supplied by the
// caller (or parsed from Params) and the build number the descriptor's
// selected row carried.
type Product struct {
	CodeName    string
	BuildNumber uint32
}

// Storage is an opened, assembled CASC storage handle. It is safe for
// concurrent use by multiple goroutines; CloseStorage must be called
// exactly once per successful OpenStorage (or per AddRef) to release the
// underlying block reader and local file handles.
type Storage struct {
	refCount atomic.Int32

	store       *catalog.Store
	root        rootdispatch.Handler
	keys        keystore.Store
	blockReader BlockReader
	logger      *slog.Logger
	features    descriptor.Features
	product     Product

	localPath  string
	region     string
	localeMask uint32
	cdnConfig  cdnconfig.Config
	tags       []download.Tag
}

// AddRef increments the handle's reference count, following the teacher's
// refcounted-handle idiom (client.go's Client.addRef). Each AddRef must be
// matched by a CloseStorage.
func (s *Storage) AddRef() {
	s.refCount.Add(1)
}

// CloseStorage releases one reference to s, tearing down its block reader
// once the count reaches zero.
func CloseStorage(s *Storage) error {
	if s == nil {
		return wrapErr("CloseStorage", CodeInvalidHandle, ErrInvalidHandle)
	}
	if s.refCount.Add(-1) > 0 {
		return nil
	}
	if closer, ok := s.blockReader.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Tag is a DOWNLOAD tag descriptor exposed by StorageInfo: a name and the
// caller-meaningful value declared alongside it in the manifest (§3 "Tag
// descriptor"), without the per-entry bitmap that produced each entry's
// TagBitmask.
type Tag struct {
	Name  string
	Value uint16
}

// StorageInfo reports the summary counters CascGetStorageInfo exposes
// (§6.5): file counts, capability bitset, locale coverage, and product
// identity.
type StorageInfo struct {
	LocalFileCount   int
	TotalFileCount   int
	Features         descriptor.Features
	InstalledLocales uint32
	Product          Product
	Tags             []Tag
	PathProduct      string
}

// Info snapshots StorageInfo from the current state of s's catalog.
// LocalFileCount and TotalFileCount sum max(ref_count, 1) across entries
// rather than counting rows, so an entry reachable under several logical
// names (ref_count > 1) is counted once per name (§6.2).
func (s *Storage) Info() StorageInfo {
	entries := s.store.All()
	var local, total int
	for _, e := range entries {
		weight := e.RefCount
		if weight < 1 {
			weight = 1
		}
		total += weight
		if e.StorageOffset.Resolved() {
			local += weight
		}
	}
	tags := make([]Tag, len(s.tags))
	for i, t := range s.tags {
		tags[i] = Tag{Name: t.Name, Value: t.Value}
	}
	return StorageInfo{
		LocalFileCount:   local,
		TotalFileCount:   total,
		Features:         s.features,
		InstalledLocales: s.localeMask,
		Product:          s.product,
		Tags:             tags,
		PathProduct:      fmt.Sprintf("%s%c%s%c%s", s.localPath, DefaultSeparator, s.product.CodeName, DefaultSeparator, s.region),
	}
}

// ReadFile resolves name through the root handler and reads its encoded
// bytes through the block reader, preferring a resolved local storage
// offset and falling back to an online EKey fetch (§4.13, §6.1).
func (s *Storage) ReadFile(ctx context.Context, name string) ([]byte, error) {
	entry, ok := s.root.Lookup(name)
	if !ok {
		return nil, wrapErr("ReadFile", CodeFileNotFound, ErrFileNotFound)
	}
	if entry.StorageOffset.Resolved() {
		data, err := s.blockReader.ReadLocal(entry.StorageOffset.ArchiveIndex, entry.StorageOffset.Offset, entry.EncodedSize)
		if err == nil {
			return data, nil
		}
	}
	if entry.EKey.IsZero() {
		return nil, wrapErr("ReadFile", CodeFileNotFound, ErrFileNotFound)
	}
	data, err := s.blockReader.ReadOnline(ctx, entry.EKey.Prefix(), entry.EncodedSize)
	if err != nil {
		return nil, wrapErr("ReadFile", CodeFileNotFound, err)
	}
	return data, nil
}

// diskFetcher implements the assembly stage's fetcher contract by reading
// files under a local storage root and, when online, issuing HTTP GETs
// against a CDN endpoint templated the way blockread/cdn shards archive
// paths, generalized to the config/versions document tree (§6.2).
type diskFetcher struct {
	localRoot string
	cdnURL    string
	codeName  string
	client    *http.Client
	group     singleflight.Group
}

func newDiskFetcher(p Params) *diskFetcher {
	return &diskFetcher{
		localRoot: p.LocalPath,
		cdnURL:    p.CDNURL,
		codeName:  p.CodeName,
		client:    http.DefaultClient,
	}
}

func (d *diskFetcher) ReadLocalFile(ctx context.Context, relPath string) ([]byte, error) {
	if d.localRoot == "" {
		return nil, ErrFileNotFound
	}
	data, err := os.ReadFile(filepath.Join(d.localRoot, relPath))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileNotFound, err)
	}
	return data, nil
}

// FetchCDNDocument deduplicates concurrent fetches of the same document
// digest through a singleflight.Group, mirroring the teacher's use of
// singleflight to collapse concurrent readers of the same archive region
// (_examples/meigma-blob/core/blob.go's ReadFile) onto one in-flight
// request (§5).
func (d *diskFetcher) FetchCDNDocument(ctx context.Context, name string) ([]byte, error) {
	data, err, _ := d.group.Do(name, func() (any, error) {
		return d.fetchCDNDocument(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	return data.([]byte), nil
}

func (d *diskFetcher) fetchCDNDocument(ctx context.Context, name string) ([]byte, error) {
	if d.cdnURL == "" {
		return nil, ErrFileNotFound
	}
	var url string
	if name == "versions" {
		url = fmt.Sprintf("%s/%s/versions", d.cdnURL, d.codeName)
	} else if len(name) >= 4 {
		url = fmt.Sprintf("%s/%s/config/%s/%s/%s", d.cdnURL, d.codeName, name[0:2], name[2:4], name)
	} else {
		return nil, wrapErr("FetchCDNDocument", CodeInvalidParameter, ErrInvalidParameter)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: cdn document %q: status %d", ErrFileNotFound, name, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// defaultBlockReader picks blockread/local when a local storage directory
// was supplied and blockread/cdn otherwise, matching OpenStorage's own
// local-first precedence (§6.1).
func defaultBlockReader(p Params) BlockReader {
	if p.LocalPath != "" {
		return blockreadlocal.New(filepath.Join(p.LocalPath, "Data", "data"))
	}
	return blockreadcdn.New(p.CDNURL + "/" + p.CodeName)
}

// OpenStorage parses params (splitting on sep if it is a single combined
// string elsewhere, though this entry point takes an already-structured
// Params), merges args on top, applies opts, and runs the full assembly
// pipeline (§4.9, §6).
func OpenStorage(ctx context.Context, params Params, args Params, opts ...Option) (*Storage, error) {
	p, err := mergeArgs(params, args)
	if err != nil {
		return nil, err
	}
	if p.LocalPath == "" && p.CDNURL == "" {
		return nil, wrapErr("OpenStorage", CodeInvalidParameter, ErrInvalidParameter)
	}

	cfg := &openConfig{
		region:   p.Region,
		buildKey: p.BuildKey,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if p.Region == "" {
		p.Region = cfg.region
	}
	if p.BuildKey == "" {
		p.BuildKey = cfg.buildKey
	}
	if cfg.blockReader == nil {
		cfg.blockReader = defaultBlockReader(p)
	}

	f := newDiskFetcher(p)
	s, err := runAssembly(ctx, f, p, cfg)
	if err != nil {
		return nil, err
	}
	s.localPath = p.LocalPath
	return s, nil
}
