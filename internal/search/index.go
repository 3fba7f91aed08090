// Package search defines the consumed search-index contract: an external
// system (Elasticsearch in the original) that keeps a queryable mirror of
// claim state, fed by whatever the claim index touches or removes each
// block. The indexer never queries the search index itself — it only
// produces updates for it.
package search

import (
	"context"

	"github.com/Klingon-tech/klingnet-index/pkg/types"
)

// ActivationInfo is one claim's trending-score input: its identity and the
// height its activation took effect at.
type ActivationInfo struct {
	ClaimHash types.ClaimHash
	Height    types.Height
}

// FilterSet is a flat set of claim hashes blocked or filtered from search
// results, keyed by the original's blocked/filtered streams-vs-channels
// split.
type FilterSet struct {
	BlockedStreams   map[types.ClaimHash]struct{}
	BlockedChannels  map[types.ClaimHash]struct{}
	FilteredStreams  map[types.ClaimHash]struct{}
	FilteredChannels map[types.ClaimHash]struct{}
}

// Index is the external search-index collaborator. Implementations mirror
// claim state into a separate query engine; the claim index only needs to
// tell it what changed.
type Index interface {
	// Start performs whatever one-time setup the index needs (opening a
	// connection, verifying its schema) before the first ClaimConsumer call.
	Start(ctx context.Context) error

	// ClaimConsumer upserts or removes every claim named in claims,
	// resolving each one's current state from the claim index to decide
	// which.
	ClaimConsumer(ctx context.Context, claims []types.ClaimHash) error

	// ApplyFilters marks claims in filters as blocked or filtered from
	// search results without removing them from the index outright.
	ApplyFilters(ctx context.Context, filters FilterSet) error

	// UpdateTrendingScore recomputes the trending signal for the claims in
	// infos, called once per batch after activation resolves.
	UpdateTrendingScore(ctx context.Context, infos []ActivationInfo) error

	// ClearCaches drops any batch-scoped state the index held onto between
	// ClaimConsumer calls.
	ClearCaches()
}

// NoopIndex discards every update. Installed by default so the block
// processor always has a search sink to report to.
type NoopIndex struct{}

func (NoopIndex) Start(context.Context) error                                 { return nil }
func (NoopIndex) ClaimConsumer(context.Context, []types.ClaimHash) error      { return nil }
func (NoopIndex) ApplyFilters(context.Context, FilterSet) error               { return nil }
func (NoopIndex) UpdateTrendingScore(context.Context, []ActivationInfo) error { return nil }
func (NoopIndex) ClearCaches()                                                {}
