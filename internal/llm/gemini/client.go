package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"jobboard-backend/internal/llm"
)

const defaultModel = "gemini-2.5-flash"

// generator is the part of genai.Models used by Client.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client implements llm.Client on the Gemini API.
type Client struct {
	models generator
	model  string
}

// NewClient builds a Gemini API client.
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return newWithGenerator(gc.Models, model), nil
}

func newWithGenerator(models generator, model string) *Client {
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}
	return &Client{models: models, model: model}
}

// Complete issues one GenerateContent call in JSON mode.
func (c *Client) Complete(ctx context.Context, in llm.Request) (llm.Response, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: "application/json",
	}
	if strings.TrimSpace(in.System) != "" {
		cfg.SystemInstruction = genai.NewContentFromText(in.System, genai.RoleUser)
	}
	if in.Schema != nil {
		cfg.ResponseSchema = toGenaiSchema(*in.Schema)
	}

	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(in.Prompt), cfg)
	if err != nil {
		return llm.Response{}, fmt.Errorf("gemini generate: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return llm.Response{}, fmt.Errorf("gemini response empty content")
	}

	out := llm.Response{Text: text, Provider: "gemini", Model: c.model}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = llm.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

func toGenaiSchema(s llm.Schema) *genai.Schema {
	out := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(s.Fields)),
	}
	for _, f := range s.Fields {
		var prop *genai.Schema
		switch f.Type {
		case llm.FieldInteger:
			prop = &genai.Schema{Type: genai.TypeInteger, Minimum: f.Min, Maximum: f.Max}
		case llm.FieldStringArray:
			prop = &genai.Schema{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}}
		default:
			continue
		}
		prop.Description = f.Description
		out.Properties[f.Name] = prop
		out.Required = append(out.Required, f.Name)
		out.PropertyOrdering = append(out.PropertyOrdering, f.Name)
	}
	return out
}

var _ llm.Client = (*Client)(nil)
