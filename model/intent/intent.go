// Package intent defines the closed set of declared task intents. An
// intent is resolved into an ordered step plan exactly once, at task
// acceptance, replacing any runtime inspection of free-form task fields.
package intent

import "fmt"

// Intent declares what a submitted task wants done.
type Intent string

const (
	// Translate requests text translation only.
	Translate Intent = "translate"

	// TranslateSpeech requests translation followed by speech synthesis of
	// the translated text. Whether the speech step runs locally or is
	// delegated to a counterparty agent is a property of the registry the
	// engine was wired with, not of the intent.
	TranslateSpeech Intent = "translate+text2speech"

	// Speech requests speech synthesis only. This is the intent a
	// text-to-speech agent serves when acting as a delegation counterparty.
	Speech Intent = "text2speech"
)

// Parse validates a raw intent string.
func Parse(value string) (Intent, error) {
	switch Intent(value) {
	case Translate, TranslateSpeech, Speech:
		return Intent(value), nil
	}
	return "", fmt.Errorf("unknown intent: %q", value)
}
