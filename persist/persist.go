// Package persist implements the directory-form save/load scheme shared by
// every index kind: a versioned, schema-tagged config.toml plus binary gob
// payloads for the graph, the vector store, and auxiliary matrices (LVQ
// centroids, LeanVec projections), and a length-prefixed TLV stream
// container for binding interop over an io.Writer/io.Reader pair.
//
// Each saved directory writes one gob stream per file under fixed names,
// fronted by a schema/version header, using github.com/pelletier/go-toml/v2
// for config.toml.
package persist

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/svs-go/svs/svserr"
)

// Filenames used inside a saved index directory.
const (
	ConfigFileName = "config.toml"
	GraphFileName  = "graph.gob"
	DataFileName   = "data.gob"
	AuxFileName    = "aux.gob"
)

// Schema identifiers for the persisted layout.
const (
	SchemaVamanaConfig       = "vamana config parameters"
	SchemaIVFConfig          = "ivf config parameters"
	SchemaFlatConfig         = "flat config parameters"
	SchemaUncompressedData   = "uncompressed_data"
	SchemaOneLevelLVQData    = "one_level_lvq_dataset"
	SchemaTwoLevelLVQData    = "two_level_lvq_dataset"
	SchemaLVQCompressedData  = "lvq_compressed_dataset"
	SchemaLVQScalingConstant = "lvq_with_scaling_constants"
	SchemaLeanVecData        = "leanvec_dataset"
)

// Version is a major.minor.patch schema version. Loaders reject an
// incompatible major; a newer minor on disk than the loader knows about is
// accepted with defaults filled for the fields the loader recognizes.
type Version struct {
	Major, Minor, Patch int
}

func (v Version) String() string { return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch) }

// ParseVersion parses a "major.minor.patch" string.
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, svserr.Newf(svserr.IoError, "persist.ParseVersion", "malformed version %q", s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Version{}, svserr.New(svserr.IoError, "persist.ParseVersion", err)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// CompatibleWith reports whether a record at version v can be loaded by code
// that understands `want`: majors must match exactly; any minor/patch is
// accepted, since a lower minor than `want` just means newer fields take
// their defaults and a higher minor means the loader ignores fields it
// doesn't know about.
func (v Version) CompatibleWith(want Version) bool { return v.Major == want.Major }

// Header is the `{schema, version, name}` triple every config.toml node
// carries, plus an opaque build id stamped at save time so two directories
// written from the same config can still be told apart (e.g. by a binding
// layer caching assembled indexes by directory content).
type Header struct {
	Schema  string `toml:"schema"`
	Version string `toml:"version"`
	Name    string `toml:"name"`
	BuildID string `toml:"build_id"`
}

// NewHeader builds a Header stamped with a fresh build id.
func NewHeader(schema, version, name string) Header {
	return Header{Schema: schema, Version: version, Name: name, BuildID: uuid.NewString()}
}

// CheckHeader validates that a loaded header matches the expected schema
// and is major-version compatible.
func CheckHeader(got Header, wantSchema string, want Version) error {
	if got.Schema != wantSchema {
		return svserr.Newf(svserr.IoError, "persist.CheckHeader", "schema mismatch: got %q, want %q", got.Schema, wantSchema)
	}
	gotVer, err := ParseVersion(got.Version)
	if err != nil {
		return err
	}
	if !gotVer.CompatibleWith(want) {
		return svserr.Newf(svserr.IoError, "persist.CheckHeader", "incompatible version: got %s, want major %d", got.Version, want.Major)
	}
	return nil
}

// SaveTOML marshals v (which must embed or contain Header-shaped fields)
// into dir/config.toml.
func SaveTOML(dir string, v any) error {
	b, err := toml.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "persist.SaveTOML")
	}
	return os.WriteFile(filepath.Join(dir, ConfigFileName), b, 0o644)
}

// LoadTOML unmarshals dir/config.toml into v.
func LoadTOML(dir string, v any) error {
	b, err := os.ReadFile(filepath.Join(dir, ConfigFileName))
	if err != nil {
		return svserr.New(svserr.IoError, "persist.LoadTOML", err)
	}
	if err := toml.Unmarshal(b, v); err != nil {
		return svserr.New(svserr.IoError, "persist.LoadTOML", err)
	}
	return nil
}

// SaveGob encodes v via encoding/gob into dir/name, following the
// one-gob-stream-per-file convention every saved index directory uses.
func SaveGob(dir, name string, v any) error {
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return svserr.New(svserr.IoError, "persist.SaveGob", err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(v); err != nil {
		return svserr.New(svserr.IoError, "persist.SaveGob", err)
	}
	return nil
}

// LoadGob decodes dir/name via encoding/gob into v.
func LoadGob(dir, name string, v any) error {
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return svserr.New(svserr.IoError, "persist.LoadGob", err)
	}
	defer f.Close()
	if err := gob.NewDecoder(f).Decode(v); err != nil {
		return svserr.New(svserr.IoError, "persist.LoadGob", err)
	}
	return nil
}

// EnsureDir creates dir (and parents) if it does not already exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return svserr.New(svserr.IoError, "persist.EnsureDir", err)
	}
	return nil
}

// StreamWriter writes length-prefixed, schema-tagged records to an
// io.Writer, for binding interop where a directory isn't appropriate.
type StreamWriter struct {
	w io.Writer
}

// NewStreamWriter wraps w.
func NewStreamWriter(w io.Writer) *StreamWriter { return &StreamWriter{w: w} }

// WriteRecord writes one TLV record: a uint32 schema-string length, the
// schema string, a uint64 payload length, then the payload.
func (sw *StreamWriter) WriteRecord(schema string, payload []byte) error {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(schema))); err != nil {
		return errors.Wrap(err, "persist.StreamWriter.WriteRecord")
	}
	buf.WriteString(schema)
	if err := binary.Write(&buf, binary.LittleEndian, uint64(len(payload))); err != nil {
		return errors.Wrap(err, "persist.StreamWriter.WriteRecord")
	}
	buf.Write(payload)
	_, err := sw.w.Write(buf.Bytes())
	if err != nil {
		return svserr.New(svserr.IoError, "persist.StreamWriter.WriteRecord", err)
	}
	return nil
}

// StreamReader reads records written by StreamWriter.
type StreamReader struct {
	r io.Reader
}

// NewStreamReader wraps r.
func NewStreamReader(r io.Reader) *StreamReader { return &StreamReader{r: r} }

// Record is one decoded TLV entry.
type Record struct {
	Schema  string
	Payload []byte
}

// ReadRecord reads the next record, or io.EOF when the stream is exhausted.
func (sr *StreamReader) ReadRecord() (Record, error) {
	var schemaLen uint32
	if err := binary.Read(sr.r, binary.LittleEndian, &schemaLen); err != nil {
		if err == io.EOF {
			return Record{}, io.EOF
		}
		return Record{}, svserr.New(svserr.IoError, "persist.StreamReader.ReadRecord", err)
	}
	schemaBuf := make([]byte, schemaLen)
	if _, err := io.ReadFull(sr.r, schemaBuf); err != nil {
		return Record{}, svserr.New(svserr.IoError, "persist.StreamReader.ReadRecord", err)
	}
	var payloadLen uint64
	if err := binary.Read(sr.r, binary.LittleEndian, &payloadLen); err != nil {
		return Record{}, svserr.New(svserr.IoError, "persist.StreamReader.ReadRecord", err)
	}
	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(sr.r, payload); err != nil {
		return Record{}, svserr.New(svserr.IoError, "persist.StreamReader.ReadRecord", err)
	}
	return Record{Schema: string(schemaBuf), Payload: payload}, nil
}
