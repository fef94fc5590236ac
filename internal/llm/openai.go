// Package llm adapts the OpenAI API for embedding and text generation.
package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/sync/errgroup"
)

// embedBatchSize caps inputs per embeddings request; larger uploads are
// split into concurrent requests.
const embedBatchSize = 128

// Client wraps the OpenAI SDK for chat completions and embeddings.
type Client struct {
	api        openai.Client
	chatModel  string
	embedModel string
}

// Options configures a Client.
type Options struct {
	APIKey     string
	BaseURL    string // optional; for OpenAI-compatible endpoints and tests
	ChatModel  string
	EmbedModel string
}

// New creates a Client. No network traffic happens until the first call.
func New(opts Options) *Client {
	reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	chatModel := opts.ChatModel
	if chatModel == "" {
		chatModel = "gpt-3.5-turbo"
	}
	embedModel := opts.EmbedModel
	if embedModel == "" {
		embedModel = "text-embedding-3-small"
	}
	return &Client{
		api:        openai.NewClient(reqOpts...),
		chatModel:  chatModel,
		embedModel: embedModel,
	}
}

// Generate sends a single-message chat completion and returns the raw text.
func (c *Client) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.chatModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed returns the embedding vector for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedTexts returns embedding vectors for all texts, preserving order.
// Requests are batched and run concurrently with bounded parallelism.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency to stay inside rate limits.

	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		start, end := start, end
		g.Go(func() error {
			vecs, err := c.embedBatch(gCtx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embedding batch %d-%d: %w", start, end, err)
			}
			copy(results[start:], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Client) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.embedModel),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings request: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings response has %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vecs := make([][]float32, len(texts))
	for _, d := range resp.Data {
		vecs[int(d.Index)] = toFloat32(d.Embedding)
	}
	return vecs, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
