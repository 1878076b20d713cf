package merge

import (
	"context"

	"github.com/agentstation/goldrec/pkg/record"
)

// fieldMerger overlays incoming non-null scalars on the existing record
// and unions list fields with first-occurrence order. Fields unset on
// the incoming side retain the existing value, so merge(r, r) == r up
// to list de-duplication.
type fieldMerger struct{}

// Name returns the merger name.
func (m *fieldMerger) Name() string { return string(FieldMerge) }

// External reports that field merges run locally.
func (m *fieldMerger) External() bool { return false }

// Merge combines the two records field by field.
func (m *fieldMerger) Merge(_ context.Context, existing, incoming *record.Record) (*Outcome, error) {
	if existing == nil {
		return &Outcome{Record: incoming.Clone()}, nil
	}

	merged := existing.Clone()
	for _, f := range incoming.Schema().Fields() {
		v, ok := incoming.Get(f.Name)
		if !ok {
			continue
		}

		if f.Kind == record.KindStringList {
			union := dedupe(append(merged.Strings(f.Name), incoming.Strings(f.Name)...))
			if err := merged.Set(f.Name, union); err != nil {
				return nil, err
			}
			continue
		}

		if err := merged.Set(f.Name, v); err != nil {
			return nil, err
		}
	}
	return &Outcome{Record: merged}, nil
}

// dedupe removes exact duplicates, preserving first-occurrence order.
func dedupe(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, s := range list {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// keepIncomingMerger replaces the golden record with the incoming
// observation verbatim.
type keepIncomingMerger struct{}

// Name returns the merger name.
func (m *keepIncomingMerger) Name() string { return string(KeepIncoming) }

// External reports that the merge runs locally.
func (m *keepIncomingMerger) External() bool { return false }

// Merge returns the incoming record.
func (m *keepIncomingMerger) Merge(_ context.Context, _, incoming *record.Record) (*Outcome, error) {
	return &Outcome{Record: incoming.Clone()}, nil
}

// keepExistingMerger preserves the first observation for a key.
type keepExistingMerger struct{}

// Name returns the merger name.
func (m *keepExistingMerger) Name() string { return string(KeepExisting) }

// External reports that the merge runs locally.
func (m *keepExistingMerger) External() bool { return false }

// Merge returns the existing record, or the incoming one on first
// observation.
func (m *keepExistingMerger) Merge(_ context.Context, existing, incoming *record.Record) (*Outcome, error) {
	if existing == nil {
		return &Outcome{Record: incoming.Clone()}, nil
	}
	return &Outcome{Record: existing.Clone()}, nil
}
