package summarize

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/hpungsan/ocrdesk/internal/config"
)

const defaultGeminiModel = "gemini-1.5-flash"

// GeminiProvider summarizes with Google's Gemini API.
type GeminiProvider struct {
	client    *genai.Client
	modelName string
}

// NewGeminiProvider creates a Gemini client. OpenAI model names fall back to the Gemini default.
func NewGeminiProvider(ctx context.Context, apiKey, modelName string) (*GeminiProvider, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	if modelName == "" || strings.HasPrefix(modelName, "gpt-") {
		modelName = defaultGeminiModel
	}
	return &GeminiProvider{client: cl, modelName: modelName}, nil
}

func (g *GeminiProvider) Name() string { return config.ProviderGemini }

func (g *GeminiProvider) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiProvider) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	m := g.client.GenerativeModel(g.modelName)
	m.SetTemperature(temperature)
	m.SetMaxOutputTokens(int32(maxTokens))
	if system != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(system)},
		}
	}

	resp, err := m.GenerateContent(ctx, genai.Text(user))
	if err != nil {
		return "", classifyGemini(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", &StatusError{Provider: g.Name(), Status: 502, Err: fmt.Errorf("response has no candidates")}
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}

// classifyGemini attaches an HTTP status when the client error exposes one.
func classifyGemini(err error) error {
	var gErr *googleapi.Error
	if stderrors.As(err, &gErr) {
		return &StatusError{Provider: config.ProviderGemini, Status: gErr.Code, Err: err}
	}
	var coded interface{ HTTPCode() int }
	if stderrors.As(err, &coded) && coded.HTTPCode() > 0 {
		return &StatusError{Provider: config.ProviderGemini, Status: coded.HTTPCode(), Err: err}
	}
	return err
}
