package conversation

import (
	"github.com/kgellert/lagoon-messenger/internal/messages"
)

// State is the snapshot the presentation layer renders. Messages are
// ascending by creation time and contain no duplicate IDs.
type State struct {
	Messages []messages.Message `json:"messages"`
	HasMore  bool               `json:"has_more"`
	Loading  bool               `json:"loading"`
	Sending  bool               `json:"sending"`
	Err      error              `json:"-"`
}

// ErrorText is the renderable form of Err.
func (s State) ErrorText() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}
