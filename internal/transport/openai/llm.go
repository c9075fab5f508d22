package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ChatClient talks to the chat completions API for rerank scoring and answer
// generation.
type ChatClient struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// ChatConfig holds the chat completion provider settings.
type ChatConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Logger  *zap.Logger
}

// NewChatClient creates an OpenAI-compatible chat completion client.
func NewChatClient(cfg *ChatConfig) *ChatClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &ChatClient{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: cfg.Logger,
	}
}

// scoresPayload is the JSON contract the rerank prompt demands from the model.
type scoresPayload struct {
	Scores []struct {
		Index int     `json:"index"`
		Score float64 `json:"score"`
	} `json:"scores"`
}

// ScorePassages implements rerank.Scorer: each passage gets a 0-10 relevance
// score for the query, keyed by its position in the input slice. Indexes
// outside the input range are dropped.
func (c *ChatClient) ScorePassages(ctx context.Context, query string, passages []string) (map[int]float64, error) {
	var sb strings.Builder
	sb.WriteString("You are a reranker. For the given query, score each passage 0-10 for relevance.\n")
	sb.WriteString("Return strictly JSON: {\"scores\":[{\"index\":INT, \"score\":FLOAT}, ...]}\n\n")
	fmt.Fprintf(&sb, "Query: %s\n\n", query)
	for i, p := range passages {
		fmt.Fprintf(&sb, "[%d] %s\n", i, p)
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: sb.String()},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("rerank completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("rerank completion: empty response")
	}

	var payload scoresPayload
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &payload); err != nil {
		return nil, fmt.Errorf("parse rerank scores: %w", err)
	}

	scores := make(map[int]float64, len(payload.Scores))
	for _, s := range payload.Scores {
		if s.Index < 0 || s.Index >= len(passages) {
			continue
		}
		scores[s.Index] = s.Score
	}
	return scores, nil
}

// GenerateAnswer implements answer.Generator: a concise grounded answer from
// the provided context passages.
func (c *ChatClient) GenerateAnswer(ctx context.Context, question string, passages []string) (string, error) {
	var sb strings.Builder
	sb.WriteString("Answer the question concisely using ONLY the provided context. ")
	sb.WriteString("If unsure, say you don't know.\n\n")
	fmt.Fprintf(&sb, "Question: %s\n\nContext:\n", question)
	for _, p := range passages {
		fmt.Fprintf(&sb, "- %s\n", p)
	}
	sb.WriteString("\nAnswer:")

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: sb.String()},
		},
	})
	if err != nil {
		return "", fmt.Errorf("answer completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("answer completion: empty response")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
