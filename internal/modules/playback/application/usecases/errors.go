package usecases

import "errors"

// Errors returned synchronously by the playback use cases.
var (
	// ErrEmptySource is returned when a request carries no source.
	ErrEmptySource = errors.New("no source given")

	// ErrSourceNotFound is returned when a local source file does not exist.
	ErrSourceNotFound = errors.New("source file not found")

	// ErrInvalidDestination is returned when a request has no guild or voice channel.
	ErrInvalidDestination = errors.New("invalid voice destination")

	// ErrServiceClosed is returned when enqueueing after shutdown.
	ErrServiceClosed = errors.New("playback service is shut down")

	// ErrUserNotInVoice is returned when the user is not in a voice channel and none was given.
	ErrUserNotInVoice = errors.New("you must be in a voice channel")

	// ErrNoChannelPermission is returned when the user may not connect or speak in the chosen channel.
	ErrNoChannelPermission = errors.New("you cannot connect and speak in that channel")

	// ErrNotPlaying is returned when a control needs an active session.
	ErrNotPlaying = errors.New("nothing is currently playing")

	// ErrNotSeekable is returned when seeking a live or unknown-length session.
	ErrNotSeekable = errors.New("the current audio cannot be seeked")

	// ErrEmptyQuery is returned when searching for nothing.
	ErrEmptyQuery = errors.New("no search query given")

	// ErrEmptyPlayURL is returned when a resolver succeeds without a playable URL.
	ErrEmptyPlayURL = errors.New("resolver returned no playable url")
)
