package usecase

import "errors"

var (
	ErrUnauthenticated    = errors.New("authentication required")
	ErrForbidden          = errors.New("forbidden")
	ErrMessageNotFound    = errors.New("message not found")
	ErrInvalidRecipient   = errors.New("recipient is required")
	ErrInvalidMessageType = errors.New("unsupported message type")
	ErrEmptyContent       = errors.New("message content is required")
)
