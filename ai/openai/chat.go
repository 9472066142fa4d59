package openai

import (
	"context"
	"fmt"

	"github.com/poiesic/graphrag/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// newChatModel creates the chat client shared by classification and extraction.
func newChatModel(config *ai.Config) (llms.Model, error) {
	return openai.New(
		openai.WithBaseURL(config.ClassifierHost),
		openai.WithToken(token(config)),
		openai.WithModel(config.ClassifierModel),
	)
}

// token returns the bearer token, using "none" for local services that
// don't require authentication.
func token(config *ai.Config) string {
	if config.APIKey == "" {
		return "none"
	}
	return config.APIKey
}

// complete sends one chat request and returns the first choice's text.
func complete(ctx context.Context, client llms.Model, content []llms.MessageContent, opts ...llms.CallOption) (string, error) {
	response, err := client.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", err
	}
	if len(response.Choices) < 1 {
		return "", ErrEmptyResponse
	}
	return response.Choices[0].Content, nil
}

func messages(system, human string) []llms.MessageContent {
	var content []llms.MessageContent
	if system != "" {
		content = append(content, llms.MessageContent{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(system)},
		})
	}
	return append(content, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(human)},
	})
}

func malformed(attempts int, err error) error {
	return fmt.Errorf("%w after %d attempts: %w", ErrMalformedResponse, attempts, err)
}
