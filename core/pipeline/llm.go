package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/siherrmann/memories/model"
)

const (
	topicSystemPrompt = "You are an assistant helping with finding relevant themes and concepts in a piece of Dutch text. " +
		"Focus on larger and more abstract themes. Reply always in Dutch. " +
		"Return the list of concepts only, do not explain yourself or summarize the text."
	topicUserPrompt = "Welke thema's, concepten komen hier voor? Geef alleen de lijst met concepten in korte keywords zonder uitleg, gescheiden door een komma."

	locationSystemPrompt = "You are an assistant helping with finding relevant location in Amsterdam in a piece of Dutch text. " +
		"You also receive a list of locations that are extracted. Please respond with locations that are missing, " +
		"have likely misspellings due to transcription (example: Diemenpark instead of Diemerpark) or locations that " +
		"do not have a literal mention (example: deduct which specific theatre is mentioned). Reply always in Dutch. " +
		`Respond with JSON of the form {"locations": [{"location": string, "new": bool, "explanation": string}]}.`
	locationUserPrompt = "Welke locaties komen hier voor? Geef de lijst met locaties, met korte uitleg en of het correcties zijn, " +
		"nieuwe locaties of afgeleide locaties (die niet expliciet genoemd worden). " +
		"Geef geen locaties terug die te algemeen zijn, zoals Nederland of Amsterdam."
)

// LLMExtractor extracts topics and locations from chunk texts with a chat model.
// Any OpenAI compatible endpoint works, e.g. a local Ollama server.
type LLMExtractor struct {
	client *openai.Client
	model  string
}

// NewLLMExtractor creates an extractor for the chat model. An empty baseURL uses the OpenAI API.
func NewLLMExtractor(apiKey string, baseURL string, modelName string) (*LLMExtractor, error) {
	if modelName == "" {
		return nil, errors.New("llm model name is required")
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &LLMExtractor{
		client: openai.NewClientWithConfig(config),
		model:  modelName,
	}, nil
}

// Topics returns the topic keywords of a chunk text
func (l *LLMExtractor) Topics(ctx context.Context, text string) ([]string, error) {
	resp, err := l.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: l.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: topicSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: topicUserPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("topic completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("topic completion returned no choices")
	}

	return ParseTopics(resp.Choices[0].Message.Content), nil
}

// Locations returns the locations suggested for a chunk text given the locations already found
func (l *LLMExtractor) Locations(ctx context.Context, text string, known []string) ([]model.LLMLocation, error) {
	resp, err := l.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: l.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: locationSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: locationUserPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text + " \n Gevonden locaties: " + strings.Join(known, ",")},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return nil, fmt.Errorf("location completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("location completion returned no choices")
	}

	return ParseLocations(resp.Choices[0].Message.Content)
}

// ParseTopics splits a comma separated model answer into trimmed topics
func ParseTopics(content string) []string {
	var topics []string
	for _, topic := range strings.Split(content, ",") {
		if topic = strings.TrimSpace(topic); topic != "" {
			topics = append(topics, topic)
		}
	}
	return topics
}

// ParseLocations decodes a {"locations": [...]} model answer
func ParseLocations(content string) ([]model.LLMLocation, error) {
	var out struct {
		Locations []model.LLMLocation `json:"locations"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &out); err != nil {
		return nil, fmt.Errorf("decode location answer: %w", err)
	}
	if out.Locations == nil {
		out.Locations = []model.LLMLocation{}
	}
	return out.Locations, nil
}
