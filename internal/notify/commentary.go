package notify

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Commentator produces a one-line remark to accompany a death notice. It is
// strictly decorative: callers fall back to the plain notice when it fails.
type Commentator interface {
	Remark(ctx context.Context, name string, age *int) (string, error)
}

// GeminiCommentator generates remarks with the Gemini API.
type GeminiCommentator struct {
	client *genai.Client
	model  string
}

func NewGeminiCommentator(ctx context.Context, apiKey, model string) (*GeminiCommentator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiCommentator{client: client, model: model}, nil
}

func (g *GeminiCommentator) Remark(ctx context.Context, name string, age *int) (string, error) {
	prompt := fmt.Sprintf("Write one respectful, understated sentence noting the passing of %s.", name)
	if age != nil {
		prompt = fmt.Sprintf("Write one respectful, understated sentence noting the passing of %s at age %d.", name, *age)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate remark: %w", err)
	}
	remark := strings.TrimSpace(resp.Text())
	if remark == "" {
		return "", fmt.Errorf("empty remark from model")
	}
	return remark, nil
}
