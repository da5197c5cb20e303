package casc

import (
	"context"

	"github.com/cascfs/casc/internal/catalog"
	"github.com/cascfs/casc/internal/keystore"
	"github.com/cascfs/casc/internal/rootdispatch"
)

// BlockReader is the external collaborator that turns a resolved local
// locator or an online EKey into raw encoded bytes (§6.1). Local and CDN
// implementations each support only one of the two paths and return
// ErrNotSupported (via their own sentinel) for the other.
type BlockReader interface {
	ReadLocal(archiveIndex int, offset int64, encodedSize int64) ([]byte, error)
	ReadOnline(ctx context.Context, ekey [9]byte, encodedSize int64) ([]byte, error)
}

// RootHandler is the capability set every root format implements (§6.1,
// §9 "polymorphic root handlers"), re-exported from internal/rootdispatch
// following the teacher's re-export idiom (blob.go's type aliasing of
// internal/blobtype).
type RootHandler = rootdispatch.Handler

// FeatureSet is the capability bitset a RootHandler advertises.
type FeatureSet = rootdispatch.FeatureSet

// KeyStore resolves encryption key names to their 16-byte values (§6.1),
// consulted after well-known insertion.
type KeyStore = keystore.Store

// Entry is the catalog row type, re-exported from internal/catalog
// (StorageInfo's TotalFileCount is summed over these rows).
type Entry = catalog.Entry

// ProgressStage identifies which major assembly stage a ProgressFunc is
// being polled at, grounded on the teacher's ProgressStage shape
// (_examples/meigma-blob/core/internal/blobtype/progress.go), generalized
// from archive-copy stages to assembly stages (§5).
type ProgressStage uint8

const (
	StageDescriptor ProgressStage = iota
	StageCdnConfig
	StageIndex
	StageEncoding
	StageDownload
	StageRoot
	StageWellKnown
	StageKeys
)

func (s ProgressStage) String() string {
	switch s {
	case StageDescriptor:
		return "descriptor"
	case StageCdnConfig:
		return "cdn config"
	case StageIndex:
		return "index"
	case StageEncoding:
		return "encoding"
	case StageDownload:
		return "download"
	case StageRoot:
		return "root"
	case StageWellKnown:
		return "well-known"
	case StageKeys:
		return "keys"
	default:
		return "unknown"
	}
}

// ProgressFunc is polled before each major stage (and at the start of each
// ENCODING page); returning ErrCancelled aborts the open attempt.
type ProgressFunc func(stage ProgressStage) error
