// Package translate provides the local translation capability backed by an
// OpenAI chat model.
package translate

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/babelmesh/lingua/model/types"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
)

const name = "translate"

const (
	defaultModel          = "gpt-4"
	defaultSourceLanguage = "Spanish"
	defaultTargetLanguage = "English"
)

// Service translates text between natural languages.
type Service struct {
	client *openai.Client
	model  string
}

// Input is the translation request payload.
type Input struct {
	Text           string `json:"text"`
	SourceLanguage string `json:"sourceLanguage,omitempty"`
	TargetLanguage string `json:"targetLanguage,omitempty"`
}

// Output carries the translated text.
type Output struct {
	Text string `json:"text"`
}

// Option customises the service.
type Option func(s *Service)

// WithModel overrides the default chat model.
func WithModel(model string) Option {
	return func(s *Service) {
		if model != "" {
			s.model = model
		}
	}
}

// New creates a translation service over the supplied OpenAI client.
func New(client *openai.Client, options ...Option) *Service {
	ret := &Service{client: client, model: defaultModel}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Name returns the service name
func (s *Service) Name() string {
	return name
}

// Methods returns the service methods
func (s *Service) Methods() types.Signatures {
	return []types.Signature{
		{
			Name:        "translate",
			Description: "Translates text from the source language to the target language.",
			Input:       reflect.TypeOf(&Input{}),
			Output:      reflect.TypeOf(&Output{}),
		},
	}
}

// Method returns the specified method
func (s *Service) Method(name string) (types.Executable, error) {
	switch strings.ToLower(name) {
	case "translate":
		return s.translate, nil
	default:
		return nil, types.NewMethodNotFoundError(name)
	}
}

func (s *Service) translate(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*Input)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	output, ok := out.(*Output)
	if !ok {
		return types.NewInvalidOutputError(out)
	}
	if input.Text == "" {
		return fmt.Errorf("text was empty")
	}
	source := input.SourceLanguage
	if source == "" {
		source = defaultSourceLanguage
	}
	target := input.TargetLanguage
	if target == "" {
		target = defaultTargetLanguage
	}
	if s.client == nil {
		return fmt.Errorf("openai client is not configured")
	}
	system := fmt.Sprintf("You are a translator. Translate the user's text from %v to %v. Reply with the translation only.", source, target)
	response, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(input.Text),
		},
	})
	if err != nil {
		return fmt.Errorf("translation request failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return fmt.Errorf("translation returned no choices")
	}
	output.Text = strings.TrimSpace(response.Choices[0].Message.Content)
	return nil
}
