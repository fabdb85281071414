package flat

import (
	"github.com/svs-go/svs/distance"
	"github.com/svs-go/svs/persist"
	"github.com/svs-go/svs/store"
	"github.com/svs-go/svs/svserr"
	"github.com/svs-go/svs/svslog"
	"github.com/svs-go/svs/threadpool"
)

const flatConfigVersion = "1.0.0"

// persistedConfig is the config.toml shape for a saved flat index.
type persistedConfig struct {
	persist.Header
	Metric     string `toml:"metric"`
	Dimensions int    `toml:"dimensions"`
}

// Save writes the index as a directory containing config.toml and
// data.gob. Only RawStore-backed indexes are currently supported.
func (idx *Index) Save(dir string) error {
	if err := persist.EnsureDir(dir); err != nil {
		return err
	}
	rawStore, ok := idx.st.(*store.RawStore)
	if !ok {
		return svserr.Newf(svserr.NotImplemented, "flat.Index.Save", "persistence currently supports only RawStore-backed indexes")
	}
	cfg := persistedConfig{
		Header:     persist.NewHeader(persist.SchemaFlatConfig, flatConfigVersion, "flat"),
		Metric:     idx.metric.String(),
		Dimensions: idx.st.Dimensions(),
	}
	if err := persist.SaveTOML(dir, cfg); err != nil {
		return err
	}
	if err := persist.SaveGob(dir, persist.DataFileName, rawStore); err != nil {
		return err
	}
	svslog.Component("flat.persist").Info().Str("dir", dir).Msg("flat index saved")
	return nil
}

// Assemble loads an index previously written by Save. pool may be nil.
func Assemble(dir string, pool *threadpool.Pool) (*Index, error) {
	var cfg persistedConfig
	if err := persist.LoadTOML(dir, &cfg); err != nil {
		return nil, err
	}
	if err := persist.CheckHeader(cfg.Header, persist.SchemaFlatConfig, persist.Version{Major: 1}); err != nil {
		return nil, err
	}
	metric, err := distance.ParseMetric(cfg.Metric)
	if err != nil {
		return nil, svserr.New(svserr.IoError, "flat.Assemble", err)
	}

	var rawStore store.RawStore
	if err := persist.LoadGob(dir, persist.DataFileName, &rawStore); err != nil {
		return nil, err
	}

	idx := New(&rawStore, metric, pool)
	svslog.Component("flat.persist").Info().Str("dir", dir).Msg("flat index assembled")
	return idx, nil
}
