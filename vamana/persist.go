package vamana

import (
	"github.com/svs-go/svs/distance"
	"github.com/svs-go/svs/graph"
	"github.com/svs-go/svs/persist"
	"github.com/svs-go/svs/store"
	"github.com/svs-go/svs/svserr"
	"github.com/svs-go/svs/svslog"
	"github.com/svs-go/svs/threadpool"
)

const vamanaConfigVersion = "1.0.0"

// persistedConfig is the config.toml shape for a saved Vamana index.
type persistedConfig struct {
	persist.Header
	Metric                  string  `toml:"metric"`
	Dimensions              int     `toml:"dimensions"`
	EntryPoint              uint32  `toml:"entry_point"`
	Alpha                   float32 `toml:"alpha"`
	GraphMaxDegree          int     `toml:"graph_max_degree"`
	ConstructionWindowSize  int     `toml:"construction_window_size"`
	MaxCandidatePool        int     `toml:"max_candidate_pool"`
	PruneTo                 int     `toml:"prune_to"`
	UseFullSearchHistory    bool    `toml:"use_full_search_history"`
	DefaultSearchWindowSize int     `toml:"default_search_window_size"`
	TwoPass                 bool    `toml:"two_pass"`
	AutoConsolidateFraction float32 `toml:"auto_consolidate_fraction"`
}

// Save writes the index as a directory containing config.toml, graph.gob,
// and data.gob. Only RawStore-backed indexes are currently supported;
// compressed stores are NotImplemented until their own schema/codec is
// wired in.
func (idx *Index) Save(dir string) error {
	if err := persist.EnsureDir(dir); err != nil {
		return err
	}
	rawStore, ok := idx.st.(*store.RawStore)
	if !ok {
		return svserr.Newf(svserr.NotImplemented, "vamana.Index.Save", "persistence currently supports only RawStore-backed indexes")
	}

	cfg := persistedConfig{
		Header:                  persist.NewHeader(persist.SchemaVamanaConfig, vamanaConfigVersion, "vamana"),
		Metric:                  idx.metric.String(),
		Dimensions:              idx.st.Dimensions(),
		EntryPoint:              idx.entryPoint,
		Alpha:                   idx.cfg.Alpha,
		GraphMaxDegree:          idx.cfg.GraphMaxDegree,
		ConstructionWindowSize:  idx.cfg.ConstructionWindowSize,
		MaxCandidatePool:        idx.cfg.MaxCandidatePool,
		PruneTo:                 idx.cfg.PruneTo,
		UseFullSearchHistory:    idx.cfg.UseFullSearchHistory,
		DefaultSearchWindowSize: idx.cfg.DefaultSearchWindowSize,
		TwoPass:                 idx.cfg.TwoPass,
		AutoConsolidateFraction: idx.cfg.AutoConsolidateFraction,
	}
	if err := persist.SaveTOML(dir, cfg); err != nil {
		return err
	}
	if err := persist.SaveGob(dir, persist.GraphFileName, idx.g); err != nil {
		return err
	}
	if err := persist.SaveGob(dir, persist.DataFileName, rawStore); err != nil {
		return err
	}
	svslog.Component("vamana.persist").Info().Str("dir", dir).Msg("Vamana index saved")
	return nil
}

// Assemble loads an index previously written by Save. pool may be nil.
func Assemble(dir string, pool *threadpool.Pool) (*Index, error) {
	var cfg persistedConfig
	if err := persist.LoadTOML(dir, &cfg); err != nil {
		return nil, err
	}
	if err := persist.CheckHeader(cfg.Header, persist.SchemaVamanaConfig, persist.Version{Major: 1}); err != nil {
		return nil, err
	}
	metric, err := distance.ParseMetric(cfg.Metric)
	if err != nil {
		return nil, svserr.New(svserr.IoError, "vamana.Assemble", err)
	}
	if pool == nil {
		pool = threadpool.Sequential()
	}

	var g graph.Graph
	if err := persist.LoadGob(dir, persist.GraphFileName, &g); err != nil {
		return nil, err
	}
	var rawStore store.RawStore
	if err := persist.LoadGob(dir, persist.DataFileName, &rawStore); err != nil {
		return nil, err
	}

	idx := &Index{
		cfg: Config{
			Alpha:                   cfg.Alpha,
			GraphMaxDegree:          cfg.GraphMaxDegree,
			ConstructionWindowSize:  cfg.ConstructionWindowSize,
			MaxCandidatePool:        cfg.MaxCandidatePool,
			PruneTo:                 cfg.PruneTo,
			UseFullSearchHistory:    cfg.UseFullSearchHistory,
			DefaultSearchWindowSize: cfg.DefaultSearchWindowSize,
			TwoPass:                 cfg.TwoPass,
			AutoConsolidateFraction: cfg.AutoConsolidateFraction,
		},
		metric:     metric,
		st:         &rawStore,
		g:          &g,
		entryPoint: cfg.EntryPoint,
		pool:       pool,
	}
	svslog.Component("vamana.persist").Info().Str("dir", dir).Msg("Vamana index assembled")
	return idx, nil
}
