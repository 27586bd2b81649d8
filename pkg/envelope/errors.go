package envelope

import "errors"

var (
	// ErrBadMessage is returned when a message body is not valid JSON
	ErrBadMessage = errors.New("malformed message")

	// ErrBadPayload is returned when a base64 image field does not decode
	ErrBadPayload = errors.New("undecodable payload")

	// ErrMissingRequestID is returned when a message carries no request_id
	ErrMissingRequestID = errors.New("missing request_id")

	// ErrMissingPayload is returned when a message carries no image data
	ErrMissingPayload = errors.New("missing image payload")

	// ErrMissingFilename is returned when an inbound message carries no filename
	ErrMissingFilename = errors.New("missing filename")
)
