package app

import "errors"

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrSessionNotFound = errors.New("session not found")
	ErrMessageEmpty    = errors.New("message content is empty")
	ErrChatFailed      = errors.New("chat request failed")
	ErrAnalysisFailed  = errors.New("document analysis failed")
	ErrNotDocument     = errors.New("attachment is not a document")
)
