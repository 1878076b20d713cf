package merge

import (
	"context"
	"time"

	"github.com/agentstation/goldrec/pkg/errors"
	"github.com/agentstation/goldrec/pkg/llm"
	"github.com/agentstation/goldrec/pkg/logging"
	"github.com/agentstation/goldrec/pkg/record"
)

// llmMerger delegates synthesis to an external client. The synthesized
// document must validate against the record schema; otherwise the
// merge degrades to FieldMerge rather than failing.
type llmMerger struct {
	strategy    Strategy
	completer   llm.Completer
	schema      *record.Schema
	callTimeout time.Duration
	rule        string
	ruleContext func() string
	fallback    Merger
}

// Name returns the strategy name.
func (m *llmMerger) Name() string { return string(m.strategy) }

// External reports that merges call the synthesis client.
func (m *llmMerger) External() bool { return true }

// Merge sends both records to the client and validates the synthesis.
// A client failure or timeout is an error scoped to this record; a
// schema-validation failure of the output falls back to FieldMerge and
// marks the outcome degraded.
func (m *llmMerger) Merge(ctx context.Context, existing, incoming *record.Record) (*Outcome, error) {
	if existing == nil {
		// Nothing to reconcile on first observation.
		return &Outcome{Record: incoming.Clone()}, nil
	}

	existingJSON, err := existing.JSON()
	if err != nil {
		return nil, err
	}
	incomingJSON, err := incoming.JSON()
	if err != nil {
		return nil, err
	}

	callCtx := ctx
	if m.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, m.callTimeout)
		defer cancel()
	}

	raw, err := m.completer.Complete(callCtx, m.buildPrompt(existingJSON, incomingJSON), m.schema)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, errors.ErrTimeout
		}
		return nil, err
	}

	synthesized, err := record.FromJSON(m.schema, raw)
	if err != nil {
		// The client answered, but with a document that does not fit
		// the schema. Degrade to a deterministic field merge.
		logging.FromContext(ctx).Warn().
			Err(err).
			Str("strategy", string(m.strategy)).
			Msg("Synthesized output failed schema validation, falling back to field merge")

		outcome, ferr := m.fallback.Merge(ctx, existing, incoming)
		if ferr != nil {
			return nil, ferr
		}
		outcome.Degraded = true
		return outcome, nil
	}

	return &Outcome{Record: synthesized}, nil
}
