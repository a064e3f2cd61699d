package messages

import (
	"errors"
)

var (
	ErrTextOrAttachmentRequired = errors.New("text or attachment is required")
	ErrMessageNotFound          = errors.New("message not found")
	ErrNotSender                = errors.New("only the sender may delete a message")
)
