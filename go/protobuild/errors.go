package protobuild

import "errors"

var (
	// ErrConfig is returned for an invalid request. Nothing has been generated.
	ErrConfig = errors.New("invalid configuration")
	// ErrInput is returned when the proto sources could not be turned into code.
	ErrInput = errors.New("invalid input")
	// ErrWrite is returned when the output could not be written.
	ErrWrite = errors.New("write failed")
)
