// Package transcribe turns captured audio into text.
package transcribe

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyAudio is returned when there is nothing to transcribe.
var ErrEmptyAudio = errors.New("transcribe: empty audio")

// Transcriber converts one captured utterance into text. The language hint
// is a BCP 47 tag such as "hi" or "en"; implementations may ignore it.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, language string) (string, error)
}

// placeholderPrefixes mark transcripts that carry no user speech, such as
// provider filler emitted for silent or unconfigured input.
var placeholderPrefixes = []string{
	"[voice input",
	"[silence",
	"[no speech",
}

// IsPlaceholder reports whether a transcript carries no usable speech and
// should not be interpreted as a command.
func IsPlaceholder(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return true
	}
	for _, p := range placeholderPrefixes {
		if strings.HasPrefix(t, p) {
			return true
		}
	}
	return false
}
