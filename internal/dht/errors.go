package dht

import "errors"

var (
	// ErrClosed is returned when the engine is used after Close.
	ErrClosed = errors.New("dht engine closed")

	// ErrInvalidAddress is returned when a query targets an unusable address.
	ErrInvalidAddress = errors.New("invalid node address")

	// ErrMalformedMessage is returned when a datagram is not a KRPC message.
	ErrMalformedMessage = errors.New("malformed krpc message")
)
