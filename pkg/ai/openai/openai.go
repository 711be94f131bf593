package openai

import (
	"errors"
	"net/http"

	"github.com/graphscribe/backend/pkg/dispatch"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Client adapts OpenAI-compatible endpoints to the extraction and
// embedding capabilities consumed by the pipeline. It manages separate
// underlying clients for chat/extraction and embedding tasks.
//
// A Client should be created using NewClient.
type Client struct {
	extractionModel string
	embeddingModel  string

	chatClient      *openai.Client
	embeddingClient *openai.Client
}

// NewClientParams defines the configuration parameters for creating a
// new Client.
//
// ExtractionModel specifies the model used for entity extraction.
// EmbeddingModel specifies the model used for embeddings.
// ChatURL/ChatKey and EmbeddingURL/EmbeddingKey configure the two API
// endpoints; an empty URL uses the default endpoint.
type NewClientParams struct {
	ExtractionModel string
	EmbeddingModel  string

	ChatURL      string
	ChatKey      string
	EmbeddingURL string
	EmbeddingKey string
}

// NewClient creates and returns a new Client configured with the
// provided parameters.
func NewClient(params NewClientParams) *Client {
	return &Client{
		extractionModel: params.ExtractionModel,
		embeddingModel:  params.EmbeddingModel,
		chatClient:      newOpenaiClient(params.ChatURL, params.ChatKey),
		embeddingClient: newOpenaiClient(params.EmbeddingURL, params.EmbeddingKey),
	}
}

func newOpenaiClient(baseURL string, apiKey string) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}

	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)

	return &client
}

// classifyError marks HTTP 429 responses as retryable rate-limit
// failures; everything else passes through unchanged.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return &dispatch.RateLimitError{Err: err}
	}

	return err
}
