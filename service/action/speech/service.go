// Package speech provides the local text-to-speech capability: it renders
// text into an mp3 with the OpenAI speech API and publishes the audio
// through an artifact publisher, returning its locator.
package speech

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/babelmesh/lingua/model/types"
	"github.com/babelmesh/lingua/service/artifact"
	"github.com/openai/openai-go"
)

const name = "text2speech"

// Service synthesises speech from text.
type Service struct {
	client    *openai.Client
	publisher artifact.Publisher
	voice     openai.AudioSpeechNewParamsVoice
}

// Input is the synthesis request payload.
type Input struct {
	Text string `json:"text"`
}

// Output carries the locator of the published audio artifact.
type Output struct {
	Locator string `json:"locator"`
}

// Artifacts exposes the audio locator as a task artifact.
func (o *Output) Artifacts() map[string]string {
	if o.Locator == "" {
		return nil
	}
	return map[string]string{"audio": o.Locator}
}

// Option customises the service.
type Option func(s *Service)

// WithVoice overrides the default synthesis voice.
func WithVoice(voice openai.AudioSpeechNewParamsVoice) Option {
	return func(s *Service) { s.voice = voice }
}

// New creates a speech service over the supplied OpenAI client and
// artifact publisher.
func New(client *openai.Client, publisher artifact.Publisher, options ...Option) *Service {
	ret := &Service{client: client, publisher: publisher, voice: openai.AudioSpeechNewParamsVoiceAlloy}
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
			Name:        "synthesize",
			Description: "Renders text into speech audio and publishes it as an artifact.",
			Input:       reflect.TypeOf(&Input{}),
			Output:      reflect.TypeOf(&Output{}),
		},
	}
}

// Method returns the specified method
func (s *Service) Method(name string) (types.Executable, error) {
	switch strings.ToLower(name) {
	case "synthesize":
		return s.synthesize, nil
	default:
		return nil, types.NewMethodNotFoundError(name)
	}
}

func (s *Service) synthesize(ctx context.Context, in, out interface{}) error {
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
	if s.client == nil {
		return fmt.Errorf("openai client is not configured")
	}
	if s.publisher == nil {
		return fmt.Errorf("artifact publisher is not configured")
	}
	response, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model: openai.SpeechModelTTS1,
		Voice: s.voice,
		Input: input.Text,
	})
	if err != nil {
		return fmt.Errorf("speech synthesis failed: %w", err)
	}
	defer response.Body.Close()
	audio, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("failed to read synthesized audio: %w", err)
	}
	locator, err := s.publisher.Publish(ctx, "speech.mp3", audio, "audio/mpeg")
	if err != nil {
		return err
	}
	output.Locator = locator
	return nil
}
