package errors

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidDoc  = errors.New("invalid sbom document")
	ErrIncomplete  = errors.New("incomplete sbom document")
	ErrUnsupported = errors.New("unsupported")

	ErrConfig        = errors.New("configuration error")
	ErrAmbiguous     = errors.New("ambiguous match")
	ErrRemote        = errors.New("unexpected remote response")
	ErrRemoteFailure = errors.New("remote operation failed")
	ErrTimeout       = errors.New("timed out")
)
