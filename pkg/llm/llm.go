// Package llm defines the contract between the consolidation engine and
// an external language-model client. The engine treats every call as
// synchronous: one prompt in, one schema-conforming JSON document out.
// Clients are injected explicitly at construction time; the engine never
// reads ambient configuration or API keys.
package llm

import (
	"context"
	"encoding/json"

	"github.com/agentstation/goldrec/pkg/record"
)

// Completer is the synthesis client contract. Complete sends a prompt
// and returns a raw JSON object expected to conform to the given record
// schema. Implementations own transport, retries and authentication;
// the engine owns concurrency bounds, per-call timeouts and validation
// of the returned document.
type Completer interface {
	Complete(ctx context.Context, prompt string, schema *record.Schema) (json.RawMessage, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, prompt string, schema *record.Schema) (json.RawMessage, error)

// Complete implements Completer.
func (f CompleterFunc) Complete(ctx context.Context, prompt string, schema *record.Schema) (json.RawMessage, error) {
	return f(ctx, prompt, schema)
}
