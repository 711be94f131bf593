package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
)

// Embed creates a vector embedding for the given text using the
// configured embedding model.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.embeddingClient == nil {
		return nil, fmt.Errorf("embedding client is not configured")
	}

	body := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: c.embeddingModel,
	}

	response, err := c.embeddingClient.Embeddings.New(ctx, body)
	if err != nil {
		return nil, classifyError(err)
	}
	if len(response.Data) != 1 {
		return nil, fmt.Errorf("unexpected embedding result size: got %d want 1", len(response.Data))
	}

	vec := make([]float32, 0, len(response.Data[0].Embedding))
	for _, v := range response.Data[0].Embedding {
		vec = append(vec, float32(v))
	}

	return vec, nil
}
