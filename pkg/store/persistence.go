package store

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/klauspost/compress/gzip"

	"github.com/agentstation/goldrec/pkg/errors"
	"github.com/agentstation/goldrec/pkg/record"
)

// Metadata describes a persisted store: the schema identity the data
// file was written under, the strategy in effect, and the entry count
// at save time. It is written as a separate YAML artifact so a data
// file can be inspected without decoding it.
type Metadata struct {
	Schema   string      `yaml:"schema"`
	Fields   []FieldMeta `yaml:"fields"`
	Strategy string      `yaml:"strategy"`
	Size     int         `yaml:"size"`
	SavedAt  time.Time   `yaml:"saved_at"`
}

// FieldMeta is one schema field in a metadata artifact.
type FieldMeta struct {
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"`
	Required bool   `yaml:"required,omitempty"`
}

// DumpData writes every entry to path as a JSON object keyed by
// primary key. A path ending in ".gz" is gzip-compressed.
func (s *Store) DumpData(path string) error {
	s.mu.RLock()
	snapshot := make(map[string]*record.Record, len(s.entries))
	for k, rec := range s.entries {
		snapshot[string(k)] = rec
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return errors.WrapParse("json", path, err)
	}
	return writeArtifact(path, data)
}

// LoadData reads a data file previously written by DumpData and feeds
// every record through the normal add path, so loading into a
// non-empty store reconciles with existing entries under the
// configured strategy rather than overwriting them. Loading into an
// empty store restores the file verbatim.
func (s *Store) LoadData(ctx context.Context, path string) (*BatchResult, error) {
	data, err := readArtifact(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.WrapParse("json", path, err)
	}

	// Sorted key order keeps replay deterministic.
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	recs := make([]*record.Record, 0, len(keys))
	for _, k := range keys {
		rec, err := record.FromJSON(s.schema, raw[k])
		if err != nil {
			return nil, errors.WrapParse("json", path, err)
		}
		recs = append(recs, rec)
	}

	return s.AddBatch(ctx, recs), nil
}

// DumpMetadata writes the store's metadata artifact as YAML.
func (s *Store) DumpMetadata(path string) error {
	md := s.metadata()
	data, err := yaml.Marshal(md)
	if err != nil {
		return errors.WrapParse("yaml", path, err)
	}
	return writeArtifact(path, data)
}

// LoadMetadata reads a metadata artifact and verifies that it matches
// the store's schema. A schema mismatch is a ValidationError; the
// caller decides whether to proceed with the data file.
func (s *Store) LoadMetadata(path string) (*Metadata, error) {
	data, err := readArtifact(path)
	if err != nil {
		return nil, err
	}

	var md Metadata
	if err := yaml.Unmarshal(data, &md); err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}

	if err := s.verifySchema(&md); err != nil {
		return nil, err
	}
	return &md, nil
}

func (s *Store) metadata() *Metadata {
	fields := s.schema.Fields()
	metas := make([]FieldMeta, 0, len(fields))
	for _, f := range fields {
		metas = append(metas, FieldMeta{
			Name:     f.Name,
			Kind:     f.Kind.String(),
			Required: f.Required,
		})
	}
	return &Metadata{
		Schema:   s.schema.Name(),
		Fields:   metas,
		Strategy: s.merger.Name(),
		Size:     s.Size(),
		SavedAt:  time.Now().UTC(),
	}
}

func (s *Store) verifySchema(md *Metadata) error {
	if md.Schema != s.schema.Name() {
		return errors.NewValidationError("schema", md.Schema,
			"metadata was written for schema "+md.Schema+", store uses "+s.schema.Name())
	}
	for _, fm := range md.Fields {
		f, ok := s.schema.Field(fm.Name)
		if !ok {
			return errors.NewValidationError("schema", fm.Name,
				"metadata field "+fm.Name+" is not in the store schema")
		}
		if f.Kind.String() != fm.Kind {
			return errors.NewValidationError("schema", fm.Name,
				"metadata field "+fm.Name+" has kind "+fm.Kind+", store schema has "+f.Kind.String())
		}
	}
	return nil
}

// writeArtifact writes data to path, creating parent directories and
// gzip-compressing when the path ends in ".gz".
func writeArtifact(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.WrapIO("create", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.WrapIO("create", path, err)
	}

	var w io.Writer = f
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(f)
		w = gz
	}

	if _, err := w.Write(data); err != nil {
		f.Close()
		return errors.WrapIO("write", path, err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			f.Close()
			return errors.WrapIO("write", path, err)
		}
	}
	if err := f.Close(); err != nil {
		return errors.WrapIO("write", path, err)
	}
	return nil
}

// readArtifact reads path, transparently decompressing ".gz" files.
func readArtifact(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, errors.WrapIO("read", path, err)
		}
		defer gz.Close()
		r = gz
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	return data, nil
}
