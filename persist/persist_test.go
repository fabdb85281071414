package persist

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionParseAndString(t *testing.T) {
	v, err := ParseVersion("1.2.3")
	require.NoError(t, err)
	assert.Equal(t, Version{Major: 1, Minor: 2, Patch: 3}, v)
	assert.Equal(t, "1.2.3", v.String())
}

func TestVersionParseRejectsMalformed(t *testing.T) {
	_, err := ParseVersion("1.2")
	assert.Error(t, err)
}

func TestNewHeaderStampsDistinctBuildIDs(t *testing.T) {
	a := NewHeader(SchemaVamanaConfig, "1.0.0", "idx")
	b := NewHeader(SchemaVamanaConfig, "1.0.0", "idx")
	assert.NotEmpty(t, a.BuildID)
	assert.NotEmpty(t, b.BuildID)
	assert.NotEqual(t, a.BuildID, b.BuildID)
}

func TestVersionCompatibleWithIgnoresMinorPatch(t *testing.T) {
	v := Version{Major: 1, Minor: 5, Patch: 0}
	assert.True(t, v.CompatibleWith(Version{Major: 1, Minor: 0, Patch: 0}))
	assert.False(t, v.CompatibleWith(Version{Major: 2, Minor: 0, Patch: 0}))
}

func TestCheckHeaderRejectsSchemaMismatch(t *testing.T) {
	h := Header{Schema: SchemaVamanaConfig, Version: "1.0.0", Name: "idx"}
	err := CheckHeader(h, SchemaIVFConfig, Version{Major: 1})
	assert.Error(t, err)
}

func TestCheckHeaderRejectsIncompatibleMajor(t *testing.T) {
	h := Header{Schema: SchemaVamanaConfig, Version: "2.0.0", Name: "idx"}
	err := CheckHeader(h, SchemaVamanaConfig, Version{Major: 1})
	assert.Error(t, err)
}

func TestCheckHeaderAcceptsNewerMinor(t *testing.T) {
	h := Header{Schema: SchemaVamanaConfig, Version: "1.9.0", Name: "idx"}
	assert.NoError(t, CheckHeader(h, SchemaVamanaConfig, Version{Major: 1}))
}

type sampleConfig struct {
	Header
	GraphMaxDegree int `toml:"graph_max_degree"`
	Alpha          float32 `toml:"alpha"`
}

func TestSaveAndLoadTOMLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := sampleConfig{
		Header:         Header{Schema: SchemaVamanaConfig, Version: "1.0.0", Name: "my-index"},
		GraphMaxDegree: 32,
		Alpha:          1.2,
	}
	require.NoError(t, SaveTOML(dir, cfg))

	var loaded sampleConfig
	require.NoError(t, LoadTOML(dir, &loaded))
	assert.Equal(t, cfg, loaded)
}

func TestLoadTOMLMissingFileReturnsIoError(t *testing.T) {
	dir := t.TempDir()
	var loaded sampleConfig
	assert.Error(t, LoadTOML(dir, &loaded))
}

type sampleData struct {
	Vectors [][]float32
}

func TestSaveAndLoadGobRoundTrip(t *testing.T) {
	dir := t.TempDir()
	data := sampleData{Vectors: [][]float32{{1, 2}, {3, 4}}}
	require.NoError(t, SaveGob(dir, DataFileName, data))

	var loaded sampleData
	require.NoError(t, LoadGob(dir, DataFileName, &loaded))
	assert.Equal(t, data, loaded)
}

func TestEnsureDirCreatesNestedPath(t *testing.T) {
	dir := t.TempDir() + "/nested/deeper"
	require.NoError(t, EnsureDir(dir))
	require.NoError(t, SaveGob(dir, GraphFileName, sampleData{Vectors: [][]float32{{1}}}))
}

func TestStreamWriterReaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewStreamWriter(&buf)
	require.NoError(t, w.WriteRecord(SchemaUncompressedData, []byte("payload-one")))
	require.NoError(t, w.WriteRecord(SchemaVamanaConfig, []byte("payload-two")))

	r := NewStreamReader(&buf)
	rec1, err := r.ReadRecord()
	require.NoError(t, err)
	assert.Equal(t, SchemaUncompressedData, rec1.Schema)
	assert.Equal(t, []byte("payload-one"), rec1.Payload)

	rec2, err := r.ReadRecord()
	require.NoError(t, err)
	assert.Equal(t, SchemaVamanaConfig, rec2.Schema)
	assert.Equal(t, []byte("payload-two"), rec2.Payload)

	_, err = r.ReadRecord()
	assert.Equal(t, io.EOF, err)
}

func TestStreamWriterHandlesEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	w := NewStreamWriter(&buf)
	require.NoError(t, w.WriteRecord("empty", nil))

	r := NewStreamReader(&buf)
	rec, err := r.ReadRecord()
	require.NoError(t, err)
	assert.Equal(t, "empty", rec.Schema)
	assert.Empty(t, rec.Payload)
}
