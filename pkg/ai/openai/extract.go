package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/graphscribe/backend/pkg/ai"
	"github.com/graphscribe/backend/pkg/model"

	"github.com/openai/openai-go/v3"
)

var defaultEntityTypes = []string{
	"ORGANIZATION", "PERSON", "LOCATION", "CONCEPT", "CREATIVE_WORK", "DATE", "PRODUCT", "EVENT",
}

const extractPrompt = `You are an information extraction system. Identify all entities
mentioned in the provided text and the relationships between them.

For each entity, provide its name, a type (one of: %s),
a comprehensive description of the entity's attributes and activities as stated
by the source, and a confidence score between 0 and 1.

For each relationship, provide the source entity name, the target entity name,
a short relationship type, an explanation of why the entities are related, and
a confidence score between 0 and 1.

Only report entities and relationships supported by the text.`

type extractEntity struct {
	Name        string  `json:"name" jsonschema_description:"Name of the entity"`
	Type        string  `json:"type" jsonschema_description:"One of the provided entity types"`
	Description string  `json:"description" jsonschema_description:"Comprehensive description of the entity's attributes, activities and information provided by the source."`
	Confidence  float64 `json:"confidence" jsonschema_description:"Confidence between 0 and 1 that this entity is correctly identified"`
}

type extractRelation struct {
	Source      string  `json:"source" jsonschema_description:"Name of the source entity, as identified above"`
	Target      string  `json:"target" jsonschema_description:"Name of the target entity, as identified above"`
	Type        string  `json:"type" jsonschema_description:"Short type of the relationship, e.g. WORKS_FOR"`
	Description string  `json:"description" jsonschema_description:"Explanation as to why the source entity and the target entity are related to each other"`
	Confidence  float64 `json:"confidence" jsonschema_description:"Confidence between 0 and 1 that this relationship holds"`
}

type extractResponse struct {
	Entities  []extractEntity   `json:"entities" jsonschema_description:"Entities identified in the text"`
	Relations []extractRelation `json:"relations" jsonschema_description:"Relationships identified in the text"`
}

// Extract runs one structured extraction call over the given text and
// returns the entity and relation mentions it produced.
func (c *Client) Extract(ctx context.Context, text string) (*ai.ExtractionResult, error) {
	if c.chatClient == nil {
		return nil, fmt.Errorf("extraction client is not configured")
	}

	schema := ai.GenerateSchema(extractResponse{})
	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "extract_entities_and_relations",
		Description: openai.String("Extract entities and relationships from a provided document chunk."),
		Schema:      schema,
		Strict:      openai.Bool(true),
	}

	systemPrompt := fmt.Sprintf(extractPrompt, strings.Join(defaultEntityTypes, ","))
	body := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.extractionModel),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: schemaParam,
			},
		},
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(text),
		},
		Temperature: openai.Float(0.1),
	}

	response, err := c.chatClient.Chat.Completions.New(ctx, body)
	if err != nil {
		return nil, classifyError(err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response from model")
	}
	message := response.Choices[0].Message.Content
	if message == "" {
		return nil, fmt.Errorf("empty response from model (finish_reason: %s)", response.Choices[0].FinishReason)
	}

	var res extractResponse
	if err := ai.UnmarshalFlexible(message, &res); err != nil {
		return nil, err
	}

	result := &ai.ExtractionResult{
		Entities:  make([]model.ExtractedEntity, 0, len(res.Entities)),
		Relations: make([]model.ExtractedRelation, 0, len(res.Relations)),
	}
	for _, e := range res.Entities {
		result.Entities = append(result.Entities, model.ExtractedEntity{
			Name:        e.Name,
			Type:        e.Type,
			Description: e.Description,
			Confidence:  defaultConfidence(e.Confidence),
		})
	}
	for _, r := range res.Relations {
		result.Relations = append(result.Relations, model.ExtractedRelation{
			Source:      r.Source,
			Target:      r.Target,
			Type:        r.Type,
			Description: r.Description,
			Confidence:  defaultConfidence(r.Confidence),
		})
	}

	return result, nil
}

// defaultConfidence clamps a model-reported confidence into [0,1] and
// treats an omitted value as full confidence.
func defaultConfidence(confidence float64) float64 {
	if confidence <= 0 {
		return 1.0
	}
	if confidence > 1 {
		return 1.0
	}
	return confidence
}
