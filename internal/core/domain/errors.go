package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrDocumentUnreadable indicates the document stream could not be opened or read
	ErrDocumentUnreadable = errors.New("document unreadable")

	// ErrDuplicateOffset indicates a bookmark already exists at that offset of the document
	ErrDuplicateOffset = errors.New("bookmark already exists at offset")

	// ErrSeekUnsupported indicates the document source cannot reopen at a byte offset
	ErrSeekUnsupported = errors.New("seek unsupported")

	// ErrNoOpenBook indicates an operation needs an open book but none is open
	ErrNoOpenBook = errors.New("no open book")

	// ErrSessionClosed indicates the pagination session was closed
	ErrSessionClosed = errors.New("session closed")
)
