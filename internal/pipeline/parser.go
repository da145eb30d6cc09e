package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/statement-normalizer/internal/extraction"
	"google.golang.org/genai"
)

// contentGenerator is the part of the genai client the parser uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig configures the Gemini parser. An empty APIKey lets the genai
// client read GOOGLE_API_KEY or Vertex AI settings from the environment.
type GeminiConfig struct {
	Model      string
	APIKey     string
	APIVersion string
}

// GeminiParser sends statements to Gemini and decodes the JSON it returns.
type GeminiParser struct {
	models contentGenerator
	model  string
}

var _ ModelParser = (*GeminiParser)(nil)

// NewGeminiParser creates the genai client.
func NewGeminiParser(ctx context.Context, cfg GeminiConfig) (*GeminiParser, error) {
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: cfg.APIVersion},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiParser: create genai client: %w", err)
	}
	return newGeminiParser(client.Models, cfg.Model), nil
}

func newGeminiParser(models contentGenerator, model string) *GeminiParser {
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiParser{models: models, model: model}
}

// Model returns the model name requests are sent to.
func (p *GeminiParser) Model() string { return p.model }

// Parse sends the PDF, or its page text, to the model. When the reply is not
// usable JSON the raw text is still returned along with an INVALID_AI_OUTPUT
// error.
func (p *GeminiParser) Parse(ctx context.Context, req ModelRequest) (ModelResponse, error) {
	resp := ModelResponse{Model: p.model}

	parts := []*genai.Part{{Text: buildStatementPrompt(req.Pages)}}
	if len(req.Pages) == 0 {
		if len(req.PDF) == 0 {
			return resp, errors.New("Parse: nothing to send")
		}
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: contentTypePDF,
				Data:     req.PDF,
			},
		})
	}
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	out, err := p.models.GenerateContent(ctx, p.model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	})
	if err != nil {
		return resp, fmt.Errorf("Parse: generate content: %w", err)
	}
	if out.UsageMetadata != nil {
		resp.TokensInput = int64(out.UsageMetadata.PromptTokenCount)
		resp.TokensOutput = int64(out.UsageMetadata.CandidatesTokenCount)
	}

	resp.Raw = out.Text()
	if resp.Raw == "" {
		return resp, errors.New("Parse: empty response from model")
	}

	v, err := extraction.DecodeModelJSON(resp.Raw)
	if err != nil {
		return resp, &ProcessError{Kind: KindInvalidAIOutput, Err: fmt.Errorf("AI model returned invalid JSON: %w", err)}
	}
	resp.Output = extraction.ModelOutput{Structured: v, Pages: req.Pages}
	return resp, nil
}
