package rooms

import (
	"errors"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrSameUser       = errors.New("a room needs two distinct participants")
	ErrEmptyUser      = errors.New("empty user id")
	ErrNotParticipant = errors.New("requester is not a room participant")
)
