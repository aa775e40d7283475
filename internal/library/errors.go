package library

import "errors"

// Domain errors. Use errors.Is() to check for these in calling code.
var (
	// ErrMediaNotFound is returned when a media item does not exist.
	ErrMediaNotFound = errors.New("library: media not found")

	// ErrTagNotFound is returned when a tag UID has no binding.
	ErrTagNotFound = errors.New("library: tag not bound")

	// ErrRecordNotFound is returned when a playback record does not exist.
	ErrRecordNotFound = errors.New("library: playback record not found")

	// ErrSettingNotFound is returned when a settings key does not exist.
	ErrSettingNotFound = errors.New("library: setting not found")

	// ErrInvalidKind is returned when a media kind is not audio or video.
	ErrInvalidKind = errors.New("library: invalid media kind")
)
