package ivf

import (
	"bytes"

	"github.com/RoaringBitmap/roaring"

	"github.com/svs-go/svs/distance"
	"github.com/svs-go/svs/persist"
	"github.com/svs-go/svs/store"
	"github.com/svs-go/svs/svserr"
	"github.com/svs-go/svs/svslog"
	"github.com/svs-go/svs/threadpool"
)

const ivfConfigVersion = "1.0.0"

// persistedConfig is the config.toml shape shared by the static and
// dynamic IVF index.
type persistedConfig struct {
	persist.Header
	Metric           string  `toml:"metric"`
	Dimensions       int     `toml:"dimensions"`
	NumCentroids     int     `toml:"num_centroids"`
	NumIterations    int     `toml:"num_iterations"`
	TrainingFraction float64 `toml:"training_fraction"`
	Seed             int64   `toml:"seed"`
	MinibatchSize    int     `toml:"minibatch_size"`
}

func clusterConfigToPersisted(h persist.Header, cfg ClusterConfig, metric distance.Metric, dim int) persistedConfig {
	return persistedConfig{
		Header: h, Metric: metric.String(), Dimensions: dim,
		NumCentroids: cfg.NumCentroids, NumIterations: cfg.NumIterations,
		TrainingFraction: cfg.TrainingFraction, Seed: cfg.Seed, MinibatchSize: cfg.MinibatchSize,
	}
}

func persistedToClusterConfig(cfg persistedConfig) ClusterConfig {
	return ClusterConfig{
		NumCentroids: cfg.NumCentroids, NumIterations: cfg.NumIterations,
		TrainingFraction: cfg.TrainingFraction, Seed: cfg.Seed, MinibatchSize: cfg.MinibatchSize,
	}
}

// staticAux is the gob payload holding the trained clustering and posting
// lists for a static index.
type staticAux struct {
	Centroids [][]float32
	Postings  [][]uint32
}

// Save writes the index as a directory containing config.toml, aux.gob
// (centroids + posting lists), and data.gob. Only RawStore-backed indexes
// are currently supported.
func (idx *Index) Save(dir string) error {
	if err := persist.EnsureDir(dir); err != nil {
		return err
	}
	rawStore, ok := idx.st.(*store.RawStore)
	if !ok {
		return svserr.Newf(svserr.NotImplemented, "ivf.Index.Save", "persistence currently supports only RawStore-backed indexes")
	}
	cfg := clusterConfigToPersisted(persist.NewHeader(persist.SchemaIVFConfig, ivfConfigVersion, "ivf"), idx.cfg, idx.clust.metric, idx.st.Dimensions())
	if err := persist.SaveTOML(dir, cfg); err != nil {
		return err
	}
	aux := staticAux{Centroids: idx.clust.centroids, Postings: idx.postings}
	if err := persist.SaveGob(dir, persist.AuxFileName, aux); err != nil {
		return err
	}
	if err := persist.SaveGob(dir, persist.DataFileName, rawStore); err != nil {
		return err
	}
	svslog.Component("ivf.persist").Info().Str("dir", dir).Msg("IVF index saved")
	return nil
}

// Assemble loads a static IVF index previously written by Save. pool may
// be nil.
func Assemble(dir string, pool *threadpool.Pool) (*Index, error) {
	var cfg persistedConfig
	if err := persist.LoadTOML(dir, &cfg); err != nil {
		return nil, err
	}
	if err := persist.CheckHeader(cfg.Header, persist.SchemaIVFConfig, persist.Version{Major: 1}); err != nil {
		return nil, err
	}
	metric, err := distance.ParseMetric(cfg.Metric)
	if err != nil {
		return nil, svserr.New(svserr.IoError, "ivf.Assemble", err)
	}
	if pool == nil {
		pool = threadpool.Sequential()
	}

	var aux staticAux
	if err := persist.LoadGob(dir, persist.AuxFileName, &aux); err != nil {
		return nil, err
	}
	var rawStore store.RawStore
	if err := persist.LoadGob(dir, persist.DataFileName, &rawStore); err != nil {
		return nil, err
	}

	idx := &Index{
		cfg:      persistedToClusterConfig(cfg),
		clust:    &clustering{dim: cfg.Dimensions, metric: metric, centroids: aux.Centroids},
		st:       &rawStore,
		postings: aux.Postings,
	}
	svslog.Component("ivf.persist").Info().Str("dir", dir).Msg("IVF index assembled")
	return idx, nil
}

// dynamicAux is the gob payload holding the trained clustering, posting
// lists, id mapping, and tombstone set for a dynamic index.
type dynamicAux struct {
	Centroids  [][]float32
	Postings   [][]uint32
	ExtToInt   map[uint64]uint32
	IntToExt   []uint64
	Tombstones []byte
}

// Save writes the dynamic index as a directory containing config.toml,
// aux.gob, and data.gob. Only Growable RawStore-backed indexes are
// currently supported.
func (d *DynamicIndex) Save(dir string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if err := persist.EnsureDir(dir); err != nil {
		return err
	}
	rawStore, ok := d.st.(*store.RawStore)
	if !ok {
		return svserr.Newf(svserr.NotImplemented, "ivf.DynamicIndex.Save", "persistence currently supports only RawStore-backed indexes")
	}
	var tombstoneBuf bytes.Buffer
	if _, err := d.tombstones.WriteTo(&tombstoneBuf); err != nil {
		return svserr.New(svserr.IoError, "ivf.DynamicIndex.Save", err)
	}

	cfg := persistedConfig{
		Header:     persist.NewHeader(persist.SchemaIVFConfig, ivfConfigVersion, "ivf-dynamic"),
		Metric:     d.clust.metric.String(),
		Dimensions: d.clust.dim,
	}
	if err := persist.SaveTOML(dir, cfg); err != nil {
		return err
	}
	aux := dynamicAux{
		Centroids: d.clust.centroids, Postings: d.postings,
		ExtToInt: d.extToInt, IntToExt: d.intToExt, Tombstones: tombstoneBuf.Bytes(),
	}
	if err := persist.SaveGob(dir, persist.AuxFileName, aux); err != nil {
		return err
	}
	if err := persist.SaveGob(dir, persist.DataFileName, rawStore); err != nil {
		return err
	}
	return nil
}

// AssembleDynamic loads a dynamic IVF index previously written by Save.
func AssembleDynamic(dir string) (*DynamicIndex, error) {
	var cfg persistedConfig
	if err := persist.LoadTOML(dir, &cfg); err != nil {
		return nil, err
	}
	if err := persist.CheckHeader(cfg.Header, persist.SchemaIVFConfig, persist.Version{Major: 1}); err != nil {
		return nil, err
	}
	metric, err := distance.ParseMetric(cfg.Metric)
	if err != nil {
		return nil, svserr.New(svserr.IoError, "ivf.AssembleDynamic", err)
	}

	var aux dynamicAux
	if err := persist.LoadGob(dir, persist.AuxFileName, &aux); err != nil {
		return nil, err
	}
	var rawStore store.RawStore
	if err := persist.LoadGob(dir, persist.DataFileName, &rawStore); err != nil {
		return nil, err
	}
	tombstones := roaring.New()
	if len(aux.Tombstones) > 0 {
		if _, err := tombstones.ReadFrom(bytes.NewReader(aux.Tombstones)); err != nil {
			return nil, svserr.New(svserr.IoError, "ivf.AssembleDynamic", err)
		}
	}

	return &DynamicIndex{
		clust:      &clustering{dim: cfg.Dimensions, metric: metric, centroids: aux.Centroids},
		st:         &rawStore,
		postings:   aux.Postings,
		extToInt:   aux.ExtToInt,
		intToExt:   aux.IntToExt,
		tombstones: tombstones,
	}, nil
}
