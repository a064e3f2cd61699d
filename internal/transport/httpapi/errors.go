package httpapi

import (
	"errors"
	"net/http"

	"github.com/kgellert/lagoon-messenger/internal/attachments"
	"github.com/kgellert/lagoon-messenger/internal/blobstore"
	"github.com/kgellert/lagoon-messenger/internal/conversation"
	"github.com/kgellert/lagoon-messenger/internal/docstore"
	"github.com/kgellert/lagoon-messenger/internal/messages"
	"github.com/kgellert/lagoon-messenger/internal/rooms"
)

func MapError(err error) (status int, code, msg string) {
	switch {
	case errors.Is(err, messages.ErrTextOrAttachmentRequired):
		return http.StatusBadRequest, "text_or_attachment_required", err.Error()

	case errors.Is(err, rooms.ErrSameUser), errors.Is(err, rooms.ErrEmptyUser):
		return http.StatusBadRequest, "bad_participants", err.Error()

	case errors.Is(err, attachments.ErrInvalidID):
		return http.StatusBadRequest, "invalid_attachment_id", err.Error()

	case errors.Is(err, messages.ErrNotSender), errors.Is(err, rooms.ErrNotParticipant):
		return http.StatusForbidden, "forbidden", err.Error()

	case errors.Is(err, rooms.ErrRoomNotFound):
		return http.StatusNotFound, "room_not_found", err.Error()

	case errors.Is(err, messages.ErrMessageNotFound):
		return http.StatusNotFound, "message_not_found", err.Error()

	case errors.Is(err, blobstore.ErrBlobNotFound):
		return http.StatusNotFound, "attachment_not_found", err.Error()

	case errors.Is(err, docstore.ErrNotFound):
		return http.StatusNotFound, "not_found", err.Error()

	case errors.Is(err, conversation.ErrSendInFlight):
		return http.StatusConflict, "send_in_flight", err.Error()
	}

	return http.StatusInternalServerError, "internal_error", "internal server error"
}
