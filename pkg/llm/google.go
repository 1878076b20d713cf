package llm

import (
	"context"
	"encoding/json"
	"strings"

	"google.golang.org/genai"

	"github.com/agentstation/goldrec/pkg/errors"
	"github.com/agentstation/goldrec/pkg/record"
)

// DefaultGoogleModel is the model used when none is configured.
const DefaultGoogleModel = "gemini-2.0-flash"

// GoogleClient implements Completer on top of the Google GenAI SDK
// (Gemini API backend), using structured output so responses conform to
// the record schema.
type GoogleClient struct {
	client *genai.Client
	model  string
}

// GoogleOption configures a GoogleClient.
type GoogleOption func(*GoogleClient)

// WithModel sets the model ID used for synthesis calls.
func WithModel(model string) GoogleOption {
	return func(c *GoogleClient) {
		c.model = model
	}
}

// NewGoogleClient creates a GenAI-backed completer. The API key is
// passed explicitly; no environment lookup happens here.
func NewGoogleClient(ctx context.Context, apiKey string, opts ...GoogleOption) (*GoogleClient, error) {
	if apiKey == "" {
		return nil, &errors.ConfigError{
			Component: "llm",
			Message:   "API key must not be empty",
		}
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  apiKey,
	})
	if err != nil {
		return nil, &errors.ClientError{
			Provider: "google",
			Message:  "creating genai client",
			Err:      err,
		}
	}

	c := &GoogleClient{
		client: client,
		model:  DefaultGoogleModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Complete sends the prompt with a response schema derived from the
// record schema and returns the raw JSON document.
func (c *GoogleClient) Complete(ctx context.Context, prompt string, schema *record.Schema) (json.RawMessage, error) {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema(schema),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), config)
	if err != nil {
		return nil, &errors.ClientError{
			Provider: "google",
			Message:  "generate content",
			Err:      err,
		}
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, &errors.ClientError{
			Provider: "google",
			Message:  "empty response",
		}
	}
	return json.RawMessage(text), nil
}

// responseSchema converts a record schema's field table into a GenAI
// structured-output schema.
func responseSchema(s *record.Schema) *genai.Schema {
	properties := make(map[string]*genai.Schema, s.Len())
	var required []string

	for _, f := range s.Fields() {
		var fs *genai.Schema
		switch f.Kind {
		case record.KindString:
			fs = &genai.Schema{Type: genai.TypeString}
		case record.KindInt:
			fs = &genai.Schema{Type: genai.TypeInteger}
		case record.KindFloat:
			fs = &genai.Schema{Type: genai.TypeNumber}
		case record.KindBool:
			fs = &genai.Schema{Type: genai.TypeBoolean}
		case record.KindStringList:
			fs = &genai.Schema{
				Type:  genai.TypeArray,
				Items: &genai.Schema{Type: genai.TypeString},
			}
		default:
			fs = &genai.Schema{Type: genai.TypeString}
		}
		properties[f.Name] = fs
		if f.Required {
			required = append(required, f.Name)
		}
	}

	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: properties,
		Required:   required,
	}
}
