package goldrec

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/agentstation/goldrec/pkg/errors"
	"github.com/agentstation/goldrec/pkg/llm"
	"github.com/agentstation/goldrec/pkg/merge"
	"github.com/agentstation/goldrec/pkg/vector"
)

// config collects the engine's construction parameters.
type config struct {
	strategy    merge.Strategy
	merger      merge.Merger
	completer   llm.Completer
	callTimeout time.Duration
	rule        string
	ruleContext func() string
	maxWorkers  int
	limiter     *rate.Limiter

	embedder       vector.Embedder
	index          vector.Index
	indexFields    []string
	embedBatchSize int
}

func defaultConfig() *config {
	return &config{strategy: merge.FieldMerge}
}

// Option configures the engine at construction time.
type Option func(*config) error

// WithStrategy selects the merge strategy. LLM strategies additionally
// require WithCompleter; llm_custom_rule requires WithCustomRule.
func WithStrategy(s merge.Strategy) Option {
	return func(c *config) error {
		if !s.Valid() {
			return errors.NewValidationError("strategy", string(s), "unknown merge strategy")
		}
		c.strategy = s
		return nil
	}
}

// WithMerger installs a caller-built merger, bypassing the strategy
// factory entirely.
func WithMerger(m merge.Merger) Option {
	return func(c *config) error {
		if m == nil {
			return &errors.ConfigError{Component: "engine", Message: "merger must not be nil"}
		}
		c.merger = m
		return nil
	}
}

// WithCompleter injects the synthesis client used by LLM strategies.
// The engine never constructs a client on its own.
func WithCompleter(completer llm.Completer) Option {
	return func(c *config) error {
		if completer == nil {
			return &errors.ConfigError{Component: "engine", Message: "completer must not be nil"}
		}
		c.completer = completer
		return nil
	}
}

// WithCallTimeout bounds each individual synthesis call.
func WithCallTimeout(d time.Duration) Option {
	return func(c *config) error {
		if d < 0 {
			return &errors.ConfigError{Component: "engine", Message: "call timeout must not be negative"}
		}
		c.callTimeout = d
		return nil
	}
}

// WithCustomRule sets the static rule for the llm_custom_rule
// strategy. ruleContext may be nil; when set it is re-evaluated on
// every merge call and appended to the prompt.
func WithCustomRule(rule string, ruleContext func() string) Option {
	return func(c *config) error {
		if rule == "" {
			return &errors.ConfigError{Component: "engine", Message: "custom rule must not be empty"}
		}
		c.rule = rule
		c.ruleContext = ruleContext
		return nil
	}
}

// WithMaxWorkers bounds how many synthesis calls a batch may have in
// flight at once. Ignored by local strategies; defaults to
// store.DefaultMaxWorkers for LLM strategies.
func WithMaxWorkers(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return &errors.ConfigError{Component: "engine", Message: "max workers must be positive"}
		}
		c.maxWorkers = n
		return nil
	}
}

// WithRateLimit paces synthesis calls to at most rps per second with
// the given burst, ahead of the worker pool.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *config) error {
		if rps <= 0 || burst <= 0 {
			return &errors.ConfigError{Component: "engine", Message: "rate limit must be positive"}
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		return nil
	}
}

// WithEmbedder enables vector search, using the given embedding
// client. Without WithVectorIndex an in-memory exhaustive index backs
// the search.
func WithEmbedder(e vector.Embedder) Option {
	return func(c *config) error {
		if e == nil {
			return &errors.ConfigError{Component: "engine", Message: "embedder must not be nil"}
		}
		c.embedder = e
		return nil
	}
}

// WithVectorIndex supplies the similarity index behind Search.
func WithVectorIndex(idx vector.Index) Option {
	return func(c *config) error {
		if idx == nil {
			return &errors.ConfigError{Component: "engine", Message: "vector index must not be nil"}
		}
		c.index = idx
		return nil
	}
}

// WithIndexFields restricts embedding text to the named schema fields.
func WithIndexFields(fields ...string) Option {
	return func(c *config) error {
		if len(fields) == 0 {
			return &errors.ConfigError{Component: "engine", Message: "index fields must not be empty"}
		}
		c.indexFields = append([]string(nil), fields...)
		return nil
	}
}

// WithEmbedBatchSize sets how many records are embedded per client call.
func WithEmbedBatchSize(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return &errors.ConfigError{Component: "engine", Message: "embed batch size must be positive"}
		}
		c.embedBatchSize = n
		return nil
	}
}
