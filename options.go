package casc

import "log/slog"

// Option configures a Storage at open time, following the teacher's
// Option func(*T) pattern (blob_opts.go, client_opts.go, disk
// cache.Option).
type Option func(*openConfig)

type openConfig struct {
	region       string
	buildKey     string
	progress     ProgressFunc
	logger       *slog.Logger
	blockReader  BlockReader
	rootHandlers func() *rootRegistry
	keyStore     KeyStore
}

// WithRegion selects the build-descriptor row by region.
func WithRegion(region string) Option {
	return func(c *openConfig) { c.region = region }
}

// WithBuildKey selects the build-descriptor row by build key instead of
// region.
func WithBuildKey(buildKey string) Option {
	return func(c *openConfig) { c.buildKey = buildKey }
}

// WithProgress installs a progress callback polled before each major
// assembly stage and at the start of each ENCODING page (§5).
func WithProgress(fn ProgressFunc) Option {
	return func(c *openConfig) { c.progress = fn }
}

// WithLogger installs a structured logger for stage transitions and
// non-fatal skips. The default is a discard handler (§8).
func WithLogger(logger *slog.Logger) Option {
	return func(c *openConfig) { c.logger = logger }
}

// WithBlockReader installs the collaborator used to fetch resolved
// archive blocks. OpenStorage picks a default (blockread/local or
// blockread/cdn) from Params when this option is omitted.
func WithBlockReader(r BlockReader) Option {
	return func(c *openConfig) { c.blockReader = r }
}

// WithKeyStore installs the encryption-key store consulted after
// well-known insertion. When omitted, the KeysLoaded stage looks for the
// conventional local key file ("Data/config/blizzard.key") and falls back
// to an empty keystore.Static if it is absent or unparseable.
func WithKeyStore(ks KeyStore) Option {
	return func(c *openConfig) { c.keyStore = ks }
}

// WithRootHandlers overrides the registry of root-format handlers
// dispatch tries, in order. The default registry tries tvfsroot before
// legacyroot's magic-less catch-all (§4.10).
func WithRootHandlers(build func() *rootRegistry) Option {
	return func(c *openConfig) { c.rootHandlers = build }
}
