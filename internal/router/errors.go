package router

import "errors"

var (
	// ErrAlreadyStarted is returned by Handle after Start.
	ErrAlreadyStarted = errors.New("router: already started")

	// ErrDuplicateHandler is returned when a command already has a handler.
	ErrDuplicateHandler = errors.New("router: handler already registered")

	// ErrUnexpectedMessage is returned by On handlers given a message of the wrong type.
	ErrUnexpectedMessage = errors.New("router: unexpected message type")

	// ErrSubscribe wraps transport failures during Start.
	ErrSubscribe = errors.New("router: subscribe failed")

	// ErrSend wraps encode and publish failures in Send.
	ErrSend = errors.New("router: send failed")
)
