package casc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/cascfs/casc/internal/catalog"
	"github.com/cascfs/casc/internal/cdnconfig"
	"github.com/cascfs/casc/internal/descriptor"
	"github.com/cascfs/casc/internal/download"
	"github.com/cascfs/casc/internal/encoding"
	"github.com/cascfs/casc/internal/indexfile"
	"github.com/cascfs/casc/internal/keystore"
	"github.com/cascfs/casc/internal/rootdispatch"
	"github.com/cascfs/casc/internal/rootdispatch/legacyroot"
	"github.com/cascfs/casc/internal/rootdispatch/tvfsroot"
	"github.com/cascfs/casc/internal/wellknown"
)

// rootRegistry is the re-export of rootdispatch.Registry, kept as its own
// named type so WithRootHandlers's signature does not leak the internal
// package.
type rootRegistry = rootdispatch.Registry

// defaultRootRegistry constructs the dispatch order the design note
// requires: tvfsroot's magic-specific matcher before legacyroot's
// magic-less catch-all, so a sibling package's unspecified init order can
// never let the catch-all shadow TVFS detection (§4.10, §9).
func defaultRootRegistry() *rootRegistry {
	reg := rootdispatch.NewRegistry()
	reg.Register("tvfs", tvfsroot.Matches, tvfsroot.TryCreate)
	reg.Register("legacy", func([]byte) bool { return true }, legacyroot.TryCreateOrEmpty)
	return reg
}

// fetcher abstracts the document sources an assembly run needs (local
// filesystem reads, online descriptor/CDN document reads) behind one
// narrow interface, so the orchestrator itself holds no I/O policy.
type fetcher interface {
	// ReadLocalFile reads a file from the local storage directory by its
	// conventional relative path (".build.info", "Data/config/...", a
	// local .idx file name). Returns ErrFileNotFound if absent.
	ReadLocalFile(ctx context.Context, relPath string) ([]byte, error)
	// FetchCDNDocument reads a CDN config/build/versions document by its
	// content digest or by name ("versions").
	FetchCDNDocument(ctx context.Context, name string) ([]byte, error)
}

// runAssembly executes the full state-machine pipeline described in
// §4.9: Descriptor → CdnConfig → CdnBuild → CatalogReserved → IndexLoaded
// → EncodingLoaded → DownloadLoaded → RootLoaded → WellKnownInserted →
// KeysLoaded → Ready. It returns a fully assembled, sealed Storage or a
// wrapped error; on error no partial Storage escapes (§7's "leaves no
// side effects").
func runAssembly(ctx context.Context, f fetcher, params Params, cfg *openConfig) (*Storage, error) {
	progress := cfg.progress
	poll := func(stage ProgressStage) error {
		if progress == nil {
			return nil
		}
		if err := progress(stage); err != nil {
			return wrapErr("assembly", CodeCancelled, ErrCancelled)
		}
		return nil
	}

	log := cfg.logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	// --- Descriptor ---
	if err := poll(StageDescriptor); err != nil {
		return nil, err
	}
	desc, features, err := loadDescriptor(ctx, f, params)
	if err != nil {
		return nil, err
	}
	log.Debug("descriptor loaded", "build", desc.BuildNumber)

	// --- CdnConfig / CdnBuild ---
	if err := poll(StageCdnConfig); err != nil {
		return nil, err
	}
	cdnCfg, err := loadCDNConfig(ctx, f, desc, params.Online)
	if err != nil {
		return nil, err
	}
	build, err := loadCDNBuild(ctx, f, desc, params.Online)
	if err != nil {
		return nil, err
	}

	// --- CatalogReserved ---
	store := catalog.New()
	encSize, dlSize := int64(0), int64(0)
	if build.Encoding.ContentSize > 0 {
		encSize = build.Encoding.ContentSize
	}
	if build.Download.ContentSize > 0 {
		dlSize = build.Download.ContentSize
	}
	if err := store.Reserve(catalog.EstimateCapacity(encSize, dlSize)); err != nil {
		return nil, wrapErr("assembly", CodeNotEnoughMemory, err)
	}

	// --- IndexLoaded (non-fatal: a missing local index set is tolerated
	// for an online-only open) ---
	if err := poll(StageIndex); err != nil {
		return nil, err
	}
	if table := loadLocalIndex(ctx, f); table != nil {
		table.Apply(store)
	}

	// --- EncodingLoaded ---
	if err := poll(StageEncoding); err != nil {
		return nil, err
	}
	encodingData, err := fetchWellKnown(ctx, f, build.Encoding, params.Online)
	if err != nil {
		return nil, wrapErr("assembly: ENCODING", CodeFileNotFound, err)
	}
	if _, err := encoding.Load(encodingData, store, func(page, total int) error {
		return poll(StageEncoding)
	}); err != nil {
		var cascErr *Error
		if errors.As(err, &cascErr) {
			return nil, err // progress callback cancellation, already wrapped by poll
		}
		return nil, wrapErr("assembly: ENCODING", CodeFileCorrupt, err)
	}

	// --- DownloadLoaded (non-fatal) ---
	if err := poll(StageDownload); err != nil {
		return nil, err
	}
	var downloadResult download.Result
	if downloadData, err := fetchWellKnown(ctx, f, build.Download, params.Online); err == nil {
		downloadResult, err = download.Load(downloadData, store)
		if err != nil {
			return nil, wrapErr("assembly: DOWNLOAD", CodeFileCorrupt, err)
		}
		if len(downloadResult.Tags) > 0 {
			features |= descriptor.FeatureTags
		}
		log.Debug("download manifest loaded")
	} else {
		log.Info("download manifest missing, continuing", "err", err)
	}

	// --- RootLoaded (with reparse) ---
	if err := poll(StageRoot); err != nil {
		return nil, err
	}
	registry := defaultRootRegistry()
	if cfg.rootHandlers != nil {
		registry = cfg.rootHandlers()
	}
	handler, err := loadRoot(ctx, f, build, registry, store, params.Online, desc.DefaultLocale, log)
	if err != nil {
		return nil, err
	}
	if handler == nil {
		// ROOT failed outright: INSTALL fallback.
		handler, err = installFallback(ctx, f, build, store)
		if err != nil {
			return nil, err
		}
	}

	// --- WellKnownInserted ---
	if err := poll(StageWellKnown); err != nil {
		return nil, err
	}
	set := wellknown.Set{
		Encoding: wellknown.Triple{CKey: build.Encoding.CKey, EKey: build.Encoding.EKey},
		Download: wellknown.Triple{CKey: build.Download.CKey, EKey: build.Download.EKey},
		Install:  wellknown.Triple{CKey: build.Install.CKey, EKey: build.Install.EKey},
		Root:     wellknown.Triple{CKey: build.Root.CKey, EKey: build.Root.EKey},
		Patch:    wellknown.Triple{CKey: build.Patch.CKey, EKey: build.Patch.EKey},
		Size:     wellknown.Triple{CKey: build.Size.CKey, EKey: build.Size.EKey},
	}
	if err := wellknown.Insert(store, handler, set, params.Online); err != nil {
		return nil, wrapErr("assembly: well-known", CodeNotEnoughMemory, err)
	}

	// --- KeysLoaded ---
	if err := poll(StageKeys); err != nil {
		return nil, err
	}
	ks := cfg.keyStore
	if ks == nil {
		ks = loadDefaultKeyStore(ctx, f, log)
	}

	store.Seal()

	s := &Storage{
		store:       store,
		root:        handler,
		keys:        ks,
		blockReader: cfg.blockReader,
		logger:      log,
		features:    features,
		product:     Product{CodeName: params.CodeName, BuildNumber: desc.BuildNumber},
		region:      params.Region,
		localeMask:  desc.DefaultLocale,
		cdnConfig:   cdnCfg,
		tags:        downloadResult.Tags,
	}
	s.refCount.Store(1)
	return s, nil
}

// loadDescriptor runs the Descriptor stage: local recognition precedence
// (.build.info → .build.db → versions), falling back to an online
// versions fetch when no local file exists and online mode was requested.
func loadDescriptor(ctx context.Context, f fetcher, params Params) (descriptor.Descriptor, descriptor.Features, error) {
	for _, name := range []string{".build.info", ".build.db"} {
		data, err := f.ReadLocalFile(ctx, name)
		if err == nil {
			var d descriptor.Descriptor
			var parseErr error
			if name == ".build.info" {
				d, parseErr = descriptor.ParseBuildInfo(data, params.Region, params.BuildKey)
			} else {
				d, parseErr = descriptor.ParseBuildDb(data, params.Region, params.BuildKey)
			}
			if parseErr != nil {
				return descriptor.Descriptor{}, 0, wrapErr("assembly: descriptor", CodeFileNotFound, parseErr)
			}
			return d, d.Features, nil
		}
	}
	if !params.Online {
		return descriptor.Descriptor{}, 0, wrapErr("assembly: descriptor", CodeFileNotFound, ErrFileNotFound)
	}
	if params.CodeName == "" {
		return descriptor.Descriptor{}, 0, wrapErr("assembly: descriptor", CodeInvalidParameter, ErrInvalidParameter)
	}
	versions, err := f.FetchCDNDocument(ctx, "versions")
	if err != nil {
		return descriptor.Descriptor{}, 0, wrapErr("assembly: descriptor", CodeFileNotFound, err)
	}
	d, err := descriptor.ParseVersions(versions, params.Region, params.BuildKey)
	if err != nil {
		return descriptor.Descriptor{}, 0, wrapErr("assembly: descriptor", CodeFileNotFound, err)
	}
	return d, descriptor.FeatureOnline, nil
}

// loadCDNConfig runs the CDN-config half of the CdnConfig stage (§4.3):
// the archive-group/archives/patch-archive key arrays are only ever
// carried by this document, never by the CDN-build document loadCDNBuild
// fetches.
func loadCDNConfig(ctx context.Context, f fetcher, desc descriptor.Descriptor, online bool) (cdnconfig.Config, error) {
	if desc.CDNConfigCKey.IsZero() {
		return cdnconfig.Config{}, nil // non-fatal: no CDN-config document referenced
	}
	data, err := f.FetchCDNDocument(ctx, desc.CDNConfigCKey.String())
	if err != nil {
		if !online {
			return cdnconfig.Config{}, nil
		}
		return cdnconfig.Config{}, wrapErr("assembly: cdn config", CodeFileNotFound, err)
	}
	return cdnconfig.ParseConfig(data), nil
}

func loadCDNBuild(ctx context.Context, f fetcher, desc descriptor.Descriptor, online bool) (cdnconfig.Build, error) {
	if desc.CDNBuildCKey.IsZero() {
		if !online {
			return cdnconfig.Build{}, nil // non-fatal: offline open with no CDN build document
		}
		return cdnconfig.Build{}, wrapErr("assembly: cdn build", CodeFileNotFound, ErrFileNotFound)
	}
	data, err := f.FetchCDNDocument(ctx, desc.CDNBuildCKey.String())
	if err != nil {
		if !online {
			return cdnconfig.Build{}, nil
		}
		return cdnconfig.Build{}, wrapErr("assembly: cdn build", CodeFileNotFound, err)
	}
	return cdnconfig.ParseBuild(data), nil
}

// loadDefaultKeyStore looks for the conventional local key file (§4.12)
// when the caller supplied no WithKeyStore option, so OpenStorage still has
// a usable key store without requiring every caller to build one by hand.
// A missing or unparseable file is tolerated: encrypted-file support is
// best-effort, never a reason to fail the whole open.
func loadDefaultKeyStore(ctx context.Context, f fetcher, log *slog.Logger) keystore.Store {
	data, err := f.ReadLocalFile(ctx, "Data/config/blizzard.key")
	if err != nil {
		return keystore.NewStatic()
	}
	ks, err := keystore.ParseStatic(data)
	if err != nil {
		log.Info("key file present but unparseable, continuing with no keys", "err", err)
		return keystore.NewStatic()
	}
	return ks
}

func loadLocalIndex(ctx context.Context, f fetcher) *indexfile.Table {
	var all [][]indexfile.Record
	for i := 0; i < 16; i++ {
		name := fmt.Sprintf("data.%03d.idx", i)
		data, err := f.ReadLocalFile(ctx, name)
		if err != nil {
			continue
		}
		records, err := indexfile.Parse(data, 0)
		if err != nil {
			continue // a corrupt local index file is tolerated; the index-file reader is an optional integrity accelerant, not a manifest of record
		}
		all = append(all, records)
	}
	if len(all) == 0 {
		return nil
	}
	return indexfile.NewTable(all...)
}

// fetchWellKnown resolves a well-known triple's bytes through
// f.FetchCDNDocument, by EKey first and then by CKey. It does not read the
// local index or data archives, and it does not look at online.
func fetchWellKnown(ctx context.Context, f fetcher, t cdnconfig.Triple, online bool) ([]byte, error) {
	if t.CKey.IsZero() && t.EKey.IsZero() {
		return nil, ErrFileNotFound
	}
	if !t.EKey.IsZero() {
		if data, err := f.FetchCDNDocument(ctx, t.EKey.String()); err == nil {
			return data, nil
		}
	}
	if !t.CKey.IsZero() {
		if data, err := f.FetchCDNDocument(ctx, t.CKey.String()); err == nil {
			return data, nil
		}
	}
	return nil, ErrFileNotFound
}

// loadRoot decodes the ROOT document, handling the reparse transition:
// a first decoder may return rootdispatch.ErrReparseRoot pointing at a
// legacy root digest, in which case the orchestrator fetches that digest
// and retries exactly once, merging the first pass's names into the
// second via CopyFrom before discarding the first handler.
func loadRoot(ctx context.Context, f fetcher, build cdnconfig.Build, registry *rootRegistry, store *catalog.Store, online bool, localeMask uint32, log *slog.Logger) (rootdispatch.Handler, error) {
	if build.Root.CKey.IsZero() && build.Root.EKey.IsZero() {
		return nil, nil // caller falls back to INSTALL
	}
	rootData, err := fetchWellKnown(ctx, f, build.Root, online)
	if err != nil {
		return nil, nil
	}

	handler, legacyCKeyBytes, err := registry.Dispatch(rootData, localeMask)
	if err == rootdispatch.ErrReparseRoot {
		log.Info("root reparse requested")
		// Resolve the transient first pass's own names (if it parsed any)
		// before it is discarded, so CopyFrom below has something to copy:
		// its byName map is empty until Resolve populates it from pending.
		if resolver, ok := handler.(resolvable); ok {
			_ = resolver.Resolve(store)
		}
		legacyData, ferr := f.FetchCDNDocument(ctx, fmt.Sprintf("%x", legacyCKeyBytes))
		if ferr != nil {
			return nil, wrapErr("assembly: root reparse", CodeFileNotFound, ferr)
		}
		newHandler, _, rerr := registry.Dispatch(legacyData, localeMask)
		if rerr == rootdispatch.ErrReparseRoot {
			return nil, wrapErr("assembly: root reparse", CodeFileCorrupt, fmt.Errorf("second reparse request"))
		}
		if rerr != nil {
			return nil, wrapErr("assembly: root reparse", CodeBadFormat, rerr)
		}
		if resolver, ok := newHandler.(resolvable); ok {
			_ = resolver.Resolve(store)
		}
		if handler != nil {
			newHandler.CopyFrom(handler)
		}
		return newHandler, nil
	}
	if err != nil {
		return nil, nil // ROOT unparseable: caller falls back to INSTALL
	}
	if resolver, ok := handler.(resolvable); ok {
		_ = resolver.Resolve(store)
	}
	return handler, nil
}

// resolvable is implemented by root handlers (legacyroot.Handler) that
// parse their name table eagerly but must resolve it against the catalog
// lazily, after ENCODING/DOWNLOAD have populated it.
type resolvable interface {
	Resolve(store *catalog.Store) error
}

func installFallback(ctx context.Context, f fetcher, build cdnconfig.Build, store *catalog.Store) (rootdispatch.Handler, error) {
	h := legacyroot.New()
	if build.Install.CKey.IsZero() && build.Install.EKey.IsZero() {
		return h, nil
	}
	data, err := fetchWellKnown(ctx, f, build.Install, true)
	if err != nil {
		return h, nil // INSTALL itself missing is tolerated; only ErrNotEnoughMemory from INSTALL is fatal per §4.9
	}
	entries, err := rootdispatch.ParseInstall(data)
	if err != nil {
		return h, nil
	}
	for _, e := range entries {
		entry, ok := store.FindByCKey(e.CKey)
		if !ok {
			entry, err = store.InsertOrMerge(catalog.Seed{CKey: e.CKey, ContentSize: e.Size, Flags: catalog.HasCKey | catalog.InBuild})
			if err != nil {
				return nil, wrapErr("assembly: install", CodeNotEnoughMemory, err)
			}
		}
		store.IncRef(entry)
		h.Insert(e.Name, entry)
	}
	return h, nil
}
