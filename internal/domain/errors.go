package domain

import "errors"

var (
	// ErrNoSpeech means the audio was heard but nothing was recognized with confidence.
	ErrNoSpeech = errors.New("no speech recognized")

	// ErrTranscriptionService means the speech service could not be reached or answered with an error.
	ErrTranscriptionService = errors.New("transcription service unavailable")
)
