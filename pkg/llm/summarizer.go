// Package llm produces short AI summaries for ingested articles through an
// OpenAI-compatible endpoint.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/acorn-news/cubafeed/pkg/config"
)

// Summarizer generates one-paragraph summaries of article text.
type Summarizer struct {
	client    *openai.Client
	config    config.LLMConfig
	systemMsg string
}

// NewSummarizer creates an LLM summarizer from the config.
func NewSummarizer(cfg config.LLMConfig) *Summarizer {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}

	// use custom system prompt if provided, otherwise use default
	systemMsg := cfg.SystemPrompt
	if systemMsg == "" {
		systemMsg = defaultSystemPrompt
	}

	return &Summarizer{
		client:    openai.NewClientWithConfig(clientConfig),
		config:    cfg,
		systemMsg: systemMsg,
	}
}

// default system prompt for article summaries
const defaultSystemPrompt = `You summarize news articles about Cuba in 2-3 sentences.
Write directly about the content itself. NEVER use phrases like "The article discusses",
"The piece covers" or "The author explains". Start with the actual subject matter.
IMPORTANT: Write the summary in the same language as the article, usually Spanish.

Example of a good summary:
- "Los cortes de electricidad en La Habana superaron las doce horas diarias durante la
  última semana. La empresa eléctrica atribuye los apagones a averías en dos
  termoeléctricas y a la falta de combustible."

Example of a bad summary:
- "El artículo habla sobre los apagones en La Habana..."`

// maxInputChars bounds how much article text goes into the prompt.
const maxInputChars = 4000

// Summarize returns a short summary of the article text.
func (s *Summarizer) Summarize(ctx context.Context, title, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("empty article text")
	}
	if len(text) > maxInputChars {
		text = text[:maxInputChars]
	}

	var sb strings.Builder
	sb.WriteString("Summarize this article:\n\n")
	if title != "" {
		sb.WriteString("Title: " + title + "\n")
	}
	sb.WriteString("Content: " + text + "\n")

	req := openai.ChatCompletionRequest{
		Model:       s.config.Model,
		Temperature: float32(s.config.Temperature),
		MaxTokens:   s.config.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: s.systemMsg},
			{Role: openai.ChatMessageRoleUser, Content: sb.String()},
		},
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llm request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from llm")
	}

	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	if summary == "" {
		return "", fmt.Errorf("empty summary from llm")
	}
	return summary, nil
}
