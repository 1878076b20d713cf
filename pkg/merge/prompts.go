package merge

import (
	"fmt"
	"strings"
)

// basePrompt states the reconciliation task shared by every LLM
// strategy: combine both records into one schema-conforming document
// without inventing data.
const basePrompt = `You are a data reconciliation assistant.
You will merge two JSON objects that describe the same entity:
Record A (existing) and Record B (incoming).

Rules:
1. Combine information from both records into one complete record.
2. If one record has a null or missing value and the other has data, keep the data.
3. For list fields, combine unique elements from both, preserving order of first appearance.
4. Never invent information that is not present in either record.
5. Return only a JSON object with the same fields as the inputs.`

// balancedPrompt resolves contradictions with no preference.
const balancedPrompt = basePrompt + `
6. If both records have conflicting values, choose the more detailed or more specific one.`

// preferIncomingPrompt biases only contradiction resolution toward the
// incoming side.
const preferIncomingPrompt = basePrompt + `
6. If both records have valid but conflicting values, prefer Record B (incoming).`

// preferExistingPrompt biases only contradiction resolution toward the
// existing side.
const preferExistingPrompt = basePrompt + `
6. If both records have valid but conflicting values, prefer Record A (existing).`

// systemPrompt returns the instruction block for the strategy; for
// LLMCustomRule the static rule and the per-call dynamic context are
// spliced in.
func (m *llmMerger) systemPrompt() string {
	switch m.strategy {
	case LLMBalanced:
		return balancedPrompt
	case LLMPreferIncoming:
		return preferIncomingPrompt
	case LLMPreferExisting:
		return preferExistingPrompt
	case LLMCustomRule:
		var b strings.Builder
		b.WriteString(basePrompt)
		b.WriteString("\n\nCaller rules:\n")
		b.WriteString(m.rule)
		if m.ruleContext != nil {
			if dynamic := strings.TrimSpace(m.ruleContext()); dynamic != "" {
				b.WriteString("\n\nContext:\n")
				b.WriteString(dynamic)
			}
		}
		return b.String()
	default:
		return balancedPrompt
	}
}

// buildPrompt assembles the full prompt from the strategy instructions
// and both records' JSON.
func (m *llmMerger) buildPrompt(existingJSON, incomingJSON string) string {
	return fmt.Sprintf("%s\n\nRecord A (existing):\n%s\n\nRecord B (incoming):\n%s",
		m.systemPrompt(), existingJSON, incomingJSON)
}
