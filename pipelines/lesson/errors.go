package lesson

import "errors"

// Stage failure classes. Stage-level failures wrap one of these and abort
// the whole invocation. Per-item failures (one audio chunk, one image) wrap
// ErrAssetFetch, are logged, and never leave their stage.
var (
	// ErrMissingInput marks a required state field that is absent or empty.
	ErrMissingInput = errors.New("missing required input")

	// ErrGenerationService marks a failed or timed-out text-generation call.
	ErrGenerationService = errors.New("generation service failure")

	// ErrParse marks a generation response that did not have the expected
	// structural shape.
	ErrParse = errors.New("unparseable generation response")

	// ErrAssetFetch marks a single media item that failed to fetch or
	// synthesize. Non-fatal.
	ErrAssetFetch = errors.New("asset fetch failure")

	// ErrUnsupportedFormat marks a lesson document type the extractor does
	// not recognize.
	ErrUnsupportedFormat = errors.New("unsupported document format")
)
