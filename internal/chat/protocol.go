package chat

import "encoding/json"

// Inbound frame types.
const (
	TypeIdentify          = "identify"
	TypeRoomOpen          = "room.open"
	TypeRoomClose         = "room.close"
	TypeDirectoryOpen     = "directory.open"
	TypeDirectorySearch   = "directory.search"
	TypeConversationStart = "conversation.start"
	TypeConversationOpen  = "conversation.open"
	TypeComposerSubmit    = "composer.submit"
	TypeMessageDelete     = "message.delete"
	TypePing              = "ping"
)

// Outbound frame types.
const (
	TypeIdentified           = "identified"
	TypeRoomBanner           = "room.banner"
	TypeFeedSnapshot         = "feed.snapshot"
	TypeFeedAppend           = "feed.append"
	TypeDirectorySnapshot    = "directory.snapshot"
	TypeConversationSelected = "conversation.selected"
	TypeToast                = "toast"
	TypeError                = "error"
	TypePong                 = "pong"
)

const (
	ScopeRoom         = "room"
	ScopeConversation = "conversation"
)

type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type IdentifyPayload struct {
	Name string `json:"name"`
}

// IdentifiedPayload carries no token when signing failed; the websocket
// session works without one.
type IdentifiedPayload struct {
	Name  string `json:"name"`
	Token string `json:"token,omitempty"`
}

type SearchPayload struct {
	Query string `json:"query"`
}

type StartConversationPayload struct {
	Peer string `json:"peer"`
}

type OpenConversationPayload struct {
	ConversationID string `json:"conversation_id"`
	OtherUser      string `json:"other_user"`
}

type SubmitPayload struct {
	Text string `json:"text"`
}

type DeletePayload struct {
	MessageID string `json:"message_id"`
}

type BannerPayload struct {
	Mode    string `json:"mode"`
	Message string `json:"message"`
}

type FeedSnapshotPayload struct {
	Scope          string `json:"scope"`
	ConversationID string `json:"conversation_id,omitempty"`
	Messages       any    `json:"messages"`
}

type FeedAppendPayload struct {
	Scope          string `json:"scope"`
	ConversationID string `json:"conversation_id,omitempty"`
	Message        any    `json:"message"`
}

type DirectorySnapshotPayload struct {
	Query         string `json:"query,omitempty"`
	Conversations any    `json:"conversations"`
}

type ConversationSelectedPayload struct {
	ConversationID string `json:"conversation_id"`
	OtherUser      string `json:"other_user"`
}

type ToastPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Variant     string `json:"variant,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func NewWSMessage(msgType string, payload interface{}) ([]byte, error) {
	var p json.RawMessage
	if payload != nil {
		var err error
		p, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	msg := WSMessage{Type: msgType, Payload: p}
	return json.Marshal(msg)
}
