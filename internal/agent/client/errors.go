package client

import (
	"errors"
	"fmt"
	"strconv"
)

// PreviewSize is how much of an undecodable bundle is kept for diagnosis
const PreviewSize = 512

// ErrAllEndpointsFailed is returned when both primary and fallback failed.
// The wrapped error joins each endpoint's TransportError.
var ErrAllEndpointsFailed = errors.New("all endpoints failed")

// TransportError is a failed request against one endpoint: connection
// failure, timeout or unexpected status.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusError is an HTTP response with an unexpected status code
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return "unexpected status " + strconv.Itoa(e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// ArchiveError is a bundle that was fetched but could not be unpacked.
// Preview holds the first PreviewSize bytes of the payload.
type ArchiveError struct {
	Err     error
	Preview []byte
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("invalid manifest bundle: %v (payload starts %q)", e.Err, e.Preview)
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}

func newArchiveError(err error, payload []byte) *ArchiveError {
	n := min(len(payload), PreviewSize)
	preview := make([]byte, n)
	copy(preview, payload[:n])
	return &ArchiveError{Err: err, Preview: preview}
}
