// Package merge implements the pluggable reconciliation policies that
// fold an incoming observation into an entity's golden record. Classic
// strategies are pure and local; LLM strategies delegate synthesis to
// an external client and validate the result against the record schema
// before accepting it.
package merge

import (
	"context"
	"time"

	"github.com/agentstation/goldrec/pkg/errors"
	"github.com/agentstation/goldrec/pkg/llm"
	"github.com/agentstation/goldrec/pkg/record"
)

// Strategy names a merge policy.
type Strategy string

// Classic strategies run locally and never block on I/O.
const (
	// FieldMerge overlays incoming non-null scalars on the existing
	// record and unions list fields. This is the default strategy.
	FieldMerge Strategy = "field_merge"

	// KeepIncoming replaces the existing record with the incoming one.
	KeepIncoming Strategy = "keep_incoming"

	// KeepExisting keeps the existing record and discards the incoming one.
	KeepExisting Strategy = "keep_existing"
)

// LLM strategies send both records to an external client for a
// schema-conforming synthesis.
const (
	// LLMBalanced reconciles contradictions with equal weight to both sides.
	LLMBalanced Strategy = "llm_balanced"

	// LLMPreferIncoming biases contradiction resolution toward the
	// incoming record; non-conflicting fields are still fully synthesized.
	LLMPreferIncoming Strategy = "llm_prefer_incoming"

	// LLMPreferExisting biases contradiction resolution toward the
	// existing record.
	LLMPreferExisting Strategy = "llm_prefer_existing"

	// LLMCustomRule splices a caller-supplied static rule and a
	// per-call dynamic context string into the synthesis prompt.
	LLMCustomRule Strategy = "llm_custom_rule"
)

// IsLLM reports whether the strategy requires an external synthesis client.
func (s Strategy) IsLLM() bool {
	switch s {
	case LLMBalanced, LLMPreferIncoming, LLMPreferExisting, LLMCustomRule:
		return true
	}
	return false
}

// Valid reports whether the strategy is one of the declared constants.
func (s Strategy) Valid() bool {
	switch s {
	case FieldMerge, KeepIncoming, KeepExisting,
		LLMBalanced, LLMPreferIncoming, LLMPreferExisting, LLMCustomRule:
		return true
	}
	return false
}

// Outcome is the result of one merge. Degraded marks an LLM merge
// whose synthesized output failed schema validation and fell back to
// FieldMerge; it is an annotation, not an error.
type Outcome struct {
	Record   *record.Record
	Degraded bool
}

// Merger produces a golden record from an existing record (nil on
// first observation) and an incoming one. Implementations must not
// mutate either input.
type Merger interface {
	// Name returns the merger name for logs and error context.
	Name() string

	// External reports whether merges call an external synthesis
	// client. The store runs external merges on its bounded worker
	// pool; local merges run synchronously in the calling goroutine.
	External() bool

	// Merge folds incoming into existing.
	Merge(ctx context.Context, existing, incoming *record.Record) (*Outcome, error)
}

// Config carries the dependencies of LLM strategies. Classic
// strategies ignore it entirely.
type Config struct {
	// Completer is the synthesis client. Required for LLM strategies.
	Completer llm.Completer

	// Schema validates synthesized output. Required for LLM strategies.
	Schema *record.Schema

	// CallTimeout bounds each synthesis call. Zero means no per-call
	// timeout beyond the caller's context.
	CallTimeout time.Duration

	// Rule is the static merge rule for LLMCustomRule.
	Rule string

	// RuleContext, if set, is re-evaluated on every LLMCustomRule call
	// and appended to the prompt, enabling time- or environment-
	// dependent rules.
	RuleContext func() string
}

// New creates the merger for a strategy.
func New(strategy Strategy, cfg *Config) (Merger, error) {
	switch strategy {
	case FieldMerge:
		return &fieldMerger{}, nil
	case KeepIncoming:
		return &keepIncomingMerger{}, nil
	case KeepExisting:
		return &keepExistingMerger{}, nil
	}

	if !strategy.Valid() {
		return nil, errors.NewValidationError("strategy", string(strategy), "unknown merge strategy")
	}

	// LLM strategies from here on.
	if cfg == nil || cfg.Completer == nil {
		return nil, &errors.ConfigError{
			Component: "merge",
			Message:   "strategy " + string(strategy) + " requires a synthesis client",
		}
	}
	if cfg.Schema == nil {
		return nil, &errors.ConfigError{
			Component: "merge",
			Message:   "strategy " + string(strategy) + " requires a record schema",
		}
	}
	if strategy == LLMCustomRule && cfg.Rule == "" {
		return nil, &errors.ConfigError{
			Component: "merge",
			Message:   "strategy llm_custom_rule requires a non-empty rule",
		}
	}

	return &llmMerger{
		strategy:    strategy,
		completer:   cfg.Completer,
		schema:      cfg.Schema,
		callTimeout: cfg.CallTimeout,
		rule:        cfg.Rule,
		ruleContext: cfg.RuleContext,
		fallback:    &fieldMerger{},
	}, nil
}
