// Package save defines the on-disk artifact layout used when
// persisting an engine: a JSON data file, a YAML metadata file, and an
// opaque vector-index file, all independent so each can be loaded or
// skipped on its own.
package save

import (
	"path/filepath"
	"strings"
)

// Default artifact names inside a save directory.
const (
	DefaultDataFile     = "data.json"
	DefaultMetadataFile = "metadata.yaml"
	DefaultIndexFile    = "index.vec"
)

// Options selects artifact names and which artifacts to write.
type Options struct {
	DataFile     string
	MetadataFile string
	IndexFile    string

	// Compress gzips the data file. The metadata file stays plain so
	// it remains greppable; the index format is owned by the index.
	Compress bool

	// SkipIndex leaves the vector index artifact untouched.
	SkipIndex bool
}

// Option mutates Options.
type Option func(*Options)

// WithDataFile overrides the data artifact name.
func WithDataFile(name string) Option {
	return func(o *Options) { o.DataFile = name }
}

// WithMetadataFile overrides the metadata artifact name.
func WithMetadataFile(name string) Option {
	return func(o *Options) { o.MetadataFile = name }
}

// WithIndexFile overrides the index artifact name.
func WithIndexFile(name string) Option {
	return func(o *Options) { o.IndexFile = name }
}

// WithCompression gzips the data artifact.
func WithCompression() Option {
	return func(o *Options) { o.Compress = true }
}

// WithoutIndex skips the vector index artifact.
func WithoutIndex() Option {
	return func(o *Options) { o.SkipIndex = true }
}

// Apply resolves defaults and applies opts.
func Apply(opts ...Option) Options {
	o := Options{
		DataFile:     DefaultDataFile,
		MetadataFile: DefaultMetadataFile,
		IndexFile:    DefaultIndexFile,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Compress && !strings.HasSuffix(o.DataFile, ".gz") {
		o.DataFile += ".gz"
	}
	return o
}

// DataPath returns the data artifact path under dir.
func (o Options) DataPath(dir string) string {
	return filepath.Join(dir, o.DataFile)
}

// MetadataPath returns the metadata artifact path under dir.
func (o Options) MetadataPath(dir string) string {
	return filepath.Join(dir, o.MetadataFile)
}

// IndexPath returns the index artifact path under dir.
func (o Options) IndexPath(dir string) string {
	return filepath.Join(dir, o.IndexFile)
}
