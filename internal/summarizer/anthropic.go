package summarizer

import (
	"context"
	"fmt"

	"github.com/liushuangls/go-anthropic/v2"
)

type Anthropic struct {
	client *anthropic.Client
	model  string
}

func NewAnthropic(apiKey, model string) *Anthropic {
	return &Anthropic{client: anthropic.NewClient(apiKey), model: model}
}

func (a *Anthropic) Name() string { return "anthropic" }

func (a *Anthropic) Summarize(ctx context.Context, req Request) (Summary, error) {
	prompt := buildPrompt(req)
	resp, err := a.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(a.model),
		MaxTokens: 600,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &prompt},
			}},
		},
	})
	if err != nil {
		return Summary{}, fmt.Errorf("anthropic request failed: %w", err)
	}
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			return parseSummary(a.Name(), *block.Text)
		}
	}
	return Summary{}, fmt.Errorf("no text content in anthropic response")
}
