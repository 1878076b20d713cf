package goldrec

import (
	"context"
	"os"

	"github.com/agentstation/goldrec/pkg/errors"
	"github.com/agentstation/goldrec/pkg/logging"
	"github.com/agentstation/goldrec/pkg/save"
	"github.com/agentstation/goldrec/pkg/store"
)

// Save writes the engine's artifacts under dir: the record data as
// JSON, the metadata as YAML, and the vector index in its own format.
// The three artifacts are independent files. The vector index is
// synced before it is persisted, so pending changes are not lost.
func (e *engine) Save(ctx context.Context, dir string, opts ...save.Option) error {
	o := save.Apply(opts...)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WrapIO("create", dir, err)
	}

	if err := e.store.DumpData(o.DataPath(dir)); err != nil {
		return err
	}
	if err := e.store.DumpMetadata(o.MetadataPath(dir)); err != nil {
		return err
	}

	if e.adapter != nil && !o.SkipIndex {
		if err := e.adapter.Sync(ctx); err != nil {
			return err
		}
		if err := e.adapter.Persist(o.IndexPath(dir)); err != nil {
			return err
		}
	}

	logging.Ctx(ctx).Info().
		Str("dir", dir).
		Int("records", e.store.Size()).
		Msg("engine saved")
	return nil
}

// Load restores artifacts from dir. The metadata is read first and its
// schema identity checked against the engine's schema; a mismatch
// aborts the load before any data is touched. Records then flow
// through the normal add path, so loading into a non-empty engine
// reconciles rather than overwrites. The vector index artifact is
// loaded if present; if the engine has an embedder but the artifact is
// missing, the index is rebuilt from the loaded records.
func (e *engine) Load(ctx context.Context, dir string, opts ...save.Option) (*store.BatchResult, error) {
	o := save.Apply(opts...)

	if _, err := e.store.LoadMetadata(o.MetadataPath(dir)); err != nil {
		return nil, err
	}

	res, err := e.store.LoadData(ctx, o.DataPath(dir))
	if err != nil {
		return nil, err
	}

	if e.adapter != nil && !o.SkipIndex {
		indexPath := o.IndexPath(dir)
		if _, statErr := os.Stat(indexPath); statErr == nil {
			if err := e.adapter.Load(indexPath); err != nil {
				return nil, err
			}
			// A pure restore into an empty engine reproduces exactly
			// what the artifact indexed. Any other load leaves the
			// affected keys dirty for the next sync.
			if res.OK() && res.Merged == 0 && e.store.Size() == res.Inserted {
				e.adapter.MarkClean()
			}
		} else if err := e.adapter.BuildIndex(ctx, true); err != nil {
			return nil, err
		}
	}

	logging.Ctx(ctx).Info().
		Str("dir", dir).
		Int("inserted", res.Inserted).
		Int("merged", res.Merged).
		Msg("engine loaded")
	return res, nil
}
