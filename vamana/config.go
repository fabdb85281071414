// Package vamana implements the Vamana proximity-graph index: RobustPrune-
// based graph construction, the best-first greedy search, and k-NN / range
// queries, plus the dynamic variant layered in dynamic.go.
package vamana

import "github.com/svs-go/svs/svserr"

// Config bundles the Vamana build/search parameters.
type Config struct {
	Alpha                   float32
	GraphMaxDegree          int
	ConstructionWindowSize  int
	MaxCandidatePool        int
	PruneTo                 int
	UseFullSearchHistory    bool
	DefaultSearchWindowSize int
	// TwoPass runs the construction with alpha=1.0 first, then alpha
	// (typically two passes; the second with alpha=params.alpha, the
	// first with alpha=1.0 if enabled).
	TwoPass bool
	// AutoConsolidateFraction is the fraction of tombstoned vertices (of
	// total graph size) at which DeletePoints triggers Consolidate
	// automatically. Resolves the open question left unspecified by the
	// source on when consolidation should run unattended; 0 disables
	// auto-consolidation.
	AutoConsolidateFraction float32
}

// DefaultConfig picks a single default of 750 for max_candidate_pool_size
// and the L2-suggested alpha of 1.2.
func DefaultConfig() Config {
	return Config{
		Alpha:                   1.2,
		GraphMaxDegree:          64,
		ConstructionWindowSize:  100,
		MaxCandidatePool:        750,
		PruneTo:                 64,
		UseFullSearchHistory:    false,
		DefaultSearchWindowSize: 100,
		TwoPass:                 true,
		AutoConsolidateFraction: 0.5,
	}
}

// Validate checks the configuration is internally consistent.
func (c Config) Validate() error {
	if c.GraphMaxDegree <= 0 {
		return svserr.Newf(svserr.InvalidArgument, "vamana.Config.Validate", "graph_max_degree must be positive")
	}
	if c.PruneTo <= 0 || c.PruneTo > c.GraphMaxDegree {
		return svserr.Newf(svserr.InvalidArgument, "vamana.Config.Validate", "prune_to must be in (0, graph_max_degree]")
	}
	if c.ConstructionWindowSize <= 0 {
		return svserr.Newf(svserr.InvalidArgument, "vamana.Config.Validate", "construction_window_size must be positive")
	}
	if c.MaxCandidatePool <= 0 {
		return svserr.Newf(svserr.InvalidArgument, "vamana.Config.Validate", "max_candidate_pool must be positive")
	}
	if c.DefaultSearchWindowSize <= 0 {
		return svserr.Newf(svserr.InvalidArgument, "vamana.Config.Validate", "default_search_window_size must be positive")
	}
	return nil
}

// SearchParams tunes one query: window_size and extra_capacity
// configurable per query.
type SearchParams struct {
	WindowSize    int
	ExtraCapacity int
}

// DefaultSearchParams derives search parameters from the index's build
// config.
func (c Config) DefaultSearchParams() SearchParams {
	return SearchParams{WindowSize: c.DefaultSearchWindowSize, ExtraCapacity: 0}
}
